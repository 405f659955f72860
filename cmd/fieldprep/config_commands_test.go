package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	output, err := executeCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init returned error: %v", err)
	}
	if !strings.Contains(output, target) {
		t.Errorf("output missing target path: %q", output)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	for _, section := range []string{"[paths]", "[query]", "[download]", "[workflow]", "[tools]", "[[stages]]"} {
		if !strings.Contains(string(data), section) {
			t.Errorf("sample missing section %s", section)
		}
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(target, []byte("# existing"), 0o644); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	if _, err := executeCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error without --overwrite")
	}
	if _, err := executeCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("overwrite returned error: %v", err)
	}
}

func TestConfigShowRedactsPassword(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "config.toml")
	content := `
[paths]
download_dir = "downloads"
stats_dir = "stats"
aoi_total = "aoi.wkt"
fields_dir = "fields"
log_dir = "logs"

[download]
username = "user"
password = "hunter2"

[query]
start_date = "2025-05-01"
end_date = "2025-06-30"

[[stages]]
name = "terrain_correction"
graph = "tc.xml"
output_suffix = "_dB_tc.tif"
class = "final"
`
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	output, err := executeCommand(t, "--config", target, "config", "show")
	if err != nil {
		t.Fatalf("config show returned error: %v", err)
	}
	if strings.Contains(output, "hunter2") {
		t.Error("password leaked in config show output")
	}
	if !strings.Contains(output, "[redacted]") {
		t.Errorf("output missing redaction marker: %q", output)
	}
}

func TestRunRequiresConfigFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.toml")
	_, err := executeCommand(t, "--config", missing, "run")
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "config init") {
		t.Errorf("error = %v, want init hint", err)
	}
}

func TestRunFlagsMutuallyExclusive(t *testing.T) {
	_, err := executeCommand(t, "run", "--scene", "X", "--extract-only")
	if err == nil {
		t.Fatal("expected error for combined --scene and --extract-only")
	}
}
