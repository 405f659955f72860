package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fieldprep/internal/config"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "fieldprep.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
[paths]
download_dir = "downloads"
aoi_total = "aoi/total.kml"
fields_dir = "aoi/fields"
stats_dir = "stats"
log_dir = "logs"

[query]
start_date = "2025-05-01"
end_date = "2025-06-01"

[download]
username = "user"
password = "pass"

[[stages]]
name = "orbit"
graph = "graphs/orbit.xml"
output_suffix = "_orb.dim"
class = "intermediate"

[[stages]]
name = "terrain_correction"
graph = "graphs/tc.xml"
output_suffix = "_dB_tc.tif"
class = "final"
`

func TestLoadResolvesRelativePathsAgainstConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, minimalConfig)

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != path {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if want := filepath.Join(dir, "downloads"); cfg.Paths.DownloadDir != want {
		t.Fatalf("download dir = %q, want %q", cfg.Paths.DownloadDir, want)
	}
	if want := filepath.Join(dir, "aoi", "total.kml"); cfg.Paths.AOITotal != want {
		t.Fatalf("aoi path = %q, want %q", cfg.Paths.AOITotal, want)
	}
}

func TestPathBuilders(t *testing.T) {
	dir := t.TempDir()
	cfg, _, _, err := config.Load(writeConfig(t, dir, minimalConfig))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	scene := "S1A_IW_SLC__1SDV_20250524T170739_20250524T170806_059339_075D5F_E4AE"
	download := filepath.Join(dir, "downloads")

	if got, want := cfg.ArchivePath(scene), filepath.Join(download, scene+".zip"); got != want {
		t.Errorf("ArchivePath = %q, want %q", got, want)
	}
	if got, want := cfg.ExpandedPath(scene), filepath.Join(download, scene+".SAFE"); got != want {
		t.Errorf("ExpandedPath = %q, want %q", got, want)
	}
	inter := cfg.StageOutputPath(scene, config.Stage{OutputSuffix: "_orb.dim", Class: config.ClassIntermediate})
	if want := filepath.Join(download, "intermediate", scene+"_orb.dim"); inter != want {
		t.Errorf("intermediate output = %q, want %q", inter, want)
	}
	final := cfg.StageOutputPath(scene, config.Stage{OutputSuffix: "_dB_tc.tif", Class: config.ClassFinal})
	if want := filepath.Join(download, "final", scene+"_dB_tc.tif"); final != want {
		t.Errorf("final output = %q, want %q", final, want)
	}
	if got, want := cfg.FieldSubsetDir("field_007"), filepath.Join(download, "final", "subsets", "field_007"); got != want {
		t.Errorf("FieldSubsetDir = %q, want %q", got, want)
	}
	if got := cfg.StatsTablePath("poldecomp"); filepath.Base(got) != "stats_s1_poldecomp.csv" {
		t.Errorf("StatsTablePath = %q", got)
	}
}

func TestValidateRejectsBadStageClass(t *testing.T) {
	dir := t.TempDir()
	body := strings.Replace(minimalConfig, `class = "final"`, `class = "deliverable"`, 1)
	if _, _, _, err := config.Load(writeConfig(t, dir, body)); err == nil {
		t.Fatal("expected error for unknown stage class")
	}
}

func TestValidateRejectsDuplicateStageNames(t *testing.T) {
	dir := t.TempDir()
	body := strings.Replace(minimalConfig, `name = "terrain_correction"`, `name = "orbit"`, 1)
	if _, _, _, err := config.Load(writeConfig(t, dir, body)); err == nil {
		t.Fatal("expected error for duplicate stage name")
	}
}

func TestValidateRejectsBadDates(t *testing.T) {
	dir := t.TempDir()
	body := strings.Replace(minimalConfig, `start_date = "2025-05-01"`, `start_date = "05/01/2025"`, 1)
	if _, _, _, err := config.Load(writeConfig(t, dir, body)); err == nil {
		t.Fatal("expected error for malformed start date")
	}
}

func TestValidateRequiresCredentialsOnlyWhenFetchEnabled(t *testing.T) {
	dir := t.TempDir()
	body := strings.Replace(minimalConfig, `username = "user"
password = "pass"`, "", 1)
	body += "\n[workflow]\nfetch = false\n"
	if _, _, _, err := config.Load(writeConfig(t, dir, body)); err != nil {
		t.Fatalf("expected fetch-disabled config to load, got %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg, _, _, err := config.Load(writeConfig(t, dir, minimalConfig))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, d := range []string{cfg.Paths.DownloadDir, cfg.IntermediateDir(), cfg.FinalDir(), cfg.Paths.StatsDir, cfg.Paths.LogDir} {
		info, err := os.Stat(d)
		if err != nil {
			t.Fatalf("expected directory %q: %v", d, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be a directory", d)
		}
	}
}

func TestValidateRequiresAOIForTransform(t *testing.T) {
	dir := t.TempDir()
	body := strings.Replace(minimalConfig, `aoi_total = "aoi/total.kml"`, "", 1)
	body += "\n[workflow]\ndiscover = false\n"
	_, _, _, err := config.Load(writeConfig(t, dir, body))
	if err == nil {
		t.Fatal("expected error for missing aoi_total with transform enabled")
	}
	if !strings.Contains(err.Error(), "aoi_total") {
		t.Errorf("error = %v, want aoi_total requirement", err)
	}

	body += "transform = false\nsubset = false\nextract = false\n"
	if _, _, _, err := config.Load(writeConfig(t, dir, body)); err != nil {
		t.Fatalf("expected AOI-free config to load with discover and transform disabled, got %v", err)
	}
}
