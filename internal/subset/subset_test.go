package subset_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"fieldprep/internal/config"
	"fieldprep/internal/logging"
	"fieldprep/internal/subset"
)

const (
	sceneOne = "S1A_IW_SLC__1SDV_20250524T170739_20250524T170806_059339_075D5F_E4AE"
	sceneTwo = "S1A_IW_SLC__1SDV_20250605T170740_20250605T170807_059514_076244_BB01"
)

// writeSubsetStub copies nothing; it just records the call and creates the
// file named by --output. failFor marks one input raster that exits non-zero.
func writeSubsetStub(t *testing.T, failFor string) string {
	t.Helper()
	script := fmt.Sprintf(`#!/bin/sh
input=""
output=""
while [ $# -gt 0 ]; do
  case "$1" in
    --input) input="$2"; shift ;;
    --output) output="$2"; shift ;;
    --kml) shift ;;
  esac
  shift
done
if [ -n %q ] && [ "$input" = %q ]; then
  echo "no overlap" >&2
  exit 1
fi
: > "$output"
`, failFor, failFor)
	path := filepath.Join(t.TempDir(), "clip")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func newSubsetConfig(t *testing.T, stub string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.DownloadDir = t.TempDir()
	cfg.Paths.FieldsDir = t.TempDir()
	cfg.Tools.Subsetter = stub
	cfg.Stages = []config.Stage{
		{Name: "deburst", Graph: "deb.xml", OutputSuffix: "_deb.dim", Class: config.ClassIntermediate},
		{Name: "terrain_correction", Graph: "tc.xml", OutputSuffix: "_dB_tc.tif", Class: config.ClassFinal},
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return &cfg
}

func addField(t *testing.T, cfg *config.Config, id string, withBoundary bool) {
	t.Helper()
	dir := filepath.Join(cfg.Paths.FieldsDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir field: %v", err)
	}
	if withBoundary {
		if err := os.WriteFile(filepath.Join(dir, "boundary.kml"), []byte("<kml/>"), 0o644); err != nil {
			t.Fatalf("write boundary: %v", err)
		}
	}
}

func addFinalRaster(t *testing.T, cfg *config.Config, scene string) string {
	t.Helper()
	path := cfg.StageOutputPath(scene, cfg.Stages[1])
	if err := os.WriteFile(path, []byte("tif"), 0o644); err != nil {
		t.Fatalf("write raster: %v", err)
	}
	return path
}

func TestFieldsExcludesHiddenAndBoundaryless(t *testing.T) {
	cfg := newSubsetConfig(t, "clip")
	addField(t, cfg, "field_a", true)
	addField(t, cfg, ".hidden_field", true)
	addField(t, cfg, "field_no_kml", false)
	if err := os.WriteFile(filepath.Join(cfg.Paths.FieldsDir, "stray.txt"), nil, 0o644); err != nil {
		t.Fatalf("write stray file: %v", err)
	}

	s := subset.New(cfg, nil, logging.NewNop())
	fields, err := s.Fields()
	if err != nil {
		t.Fatalf("Fields returned error: %v", err)
	}
	if len(fields) != 1 || fields[0].ID != "field_a" {
		t.Fatalf("fields = %+v, want only field_a", fields)
	}
	if filepath.Base(fields[0].BoundaryPath) != "boundary.kml" {
		t.Errorf("boundary = %q", fields[0].BoundaryPath)
	}
}

func TestRunClipsEveryFieldRasterPair(t *testing.T) {
	cfg := newSubsetConfig(t, writeSubsetStub(t, ""))
	addField(t, cfg, "field_a", true)
	addField(t, cfg, "field_b", true)
	addFinalRaster(t, cfg, sceneOne)
	addFinalRaster(t, cfg, sceneTwo)
	// Intermediate outputs must not be clipped.
	interPath := cfg.StageOutputPath(sceneOne, cfg.Stages[0])
	if err := os.WriteFile(interPath, nil, 0o644); err != nil {
		t.Fatalf("write intermediate: %v", err)
	}

	s := subset.New(cfg, nil, logging.NewNop())
	summary, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Total != 4 || summary.Succeeded != 4 {
		t.Errorf("summary = %+v, want 4/4", summary)
	}

	for _, field := range []string{"field_a", "field_b"} {
		for _, scene := range []string{sceneOne, sceneTwo} {
			want := filepath.Join(cfg.FieldSubsetDir(field), scene+"_dB_tc_subset.tif")
			if _, err := os.Stat(want); err != nil {
				t.Errorf("missing subset %q", want)
			}
		}
	}
}

func TestRunIsolatesPerPairFailures(t *testing.T) {
	cfg := newSubsetConfig(t, "placeholder")
	addField(t, cfg, "field_a", true)
	badRaster := addFinalRaster(t, cfg, sceneOne)
	addFinalRaster(t, cfg, sceneTwo)
	cfg.Tools.Subsetter = writeSubsetStub(t, badRaster)

	s := subset.New(cfg, nil, logging.NewNop())
	summary, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Total != 2 || summary.Succeeded != 1 {
		t.Errorf("summary = %+v, want 1 of 2", summary)
	}
}

func TestRunSkipsExistingSubsets(t *testing.T) {
	cfg := newSubsetConfig(t, writeSubsetStub(t, ""))
	addField(t, cfg, "field_a", true)
	addFinalRaster(t, cfg, sceneOne)

	outDir := cfg.FieldSubsetDir("field_a")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatalf("mkdir subsets: %v", err)
	}
	existing := filepath.Join(outDir, sceneOne+"_dB_tc_subset.tif")
	if err := os.WriteFile(existing, []byte("old"), 0o644); err != nil {
		t.Fatalf("seed subset: %v", err)
	}

	s := subset.New(cfg, nil, logging.NewNop())
	summary, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Skipped != 1 || summary.Succeeded != 1 {
		t.Errorf("summary = %+v, want one skipped success", summary)
	}
	data, err := os.ReadFile(existing)
	if err != nil || string(data) != "old" {
		t.Errorf("existing subset rewritten: %q err=%v", data, err)
	}
}
