package extract_test

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"fieldprep/internal/config"
	"fieldprep/internal/extract"
	"fieldprep/internal/logging"
	"fieldprep/internal/services"
)

const sceneName = "S1A_IW_SLC__1SDV_20250524T170739_20250524T170806_059339_075D5F_E4AE"

// writeStatsStub prints fixed metrics for any input; failFor names one input
// raster that exits non-zero instead.
func writeStatsStub(t *testing.T, failFor string) string {
	t.Helper()
	script := fmt.Sprintf(`#!/bin/sh
if [ -n %q ] && [ "$1" = %q ]; then
  echo "all-zero band" >&2
  exit 1
fi
echo "mean_VV=-11.2"
echo "variance_VV=1.9"
echo "mean_VH=-17.5"
echo "variance_VH=2.4"
`, failFor, failFor)
	path := filepath.Join(t.TempDir(), "extract-stats")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func newExtractConfig(t *testing.T, stub string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.DownloadDir = t.TempDir()
	cfg.Paths.StatsDir = t.TempDir()
	cfg.Tools.StatsTool = stub
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return &cfg
}

func addSubset(t *testing.T, cfg *config.Config, fieldID, filename string) string {
	t.Helper()
	dir := cfg.FieldSubsetDir(fieldID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir field subsets: %v", err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte("tif"), 0o644); err != nil {
		t.Fatalf("write subset: %v", err)
	}
	return path
}

func readTable(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open table: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse table: %v", err)
	}
	return rows
}

func TestRunSplitsFamiliesAcrossTables(t *testing.T) {
	cfg := newExtractConfig(t, writeStatsStub(t, ""))
	addSubset(t, cfg, "field_a", sceneName+"_orb_cal_deb_dB_tc_subset.tif")
	addSubset(t, cfg, "field_a", sceneName+"_poldecomp_tc_subset.tif")

	extractor := extract.New(cfg, nil, logging.NewNop())
	summary, err := extractor.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Files != 2 || summary.Succeeded != 2 {
		t.Errorf("summary = %+v, want 2/2", summary)
	}

	back := readTable(t, cfg.StatsTablePath(extract.FamilyBackscatter))
	if len(back) != 2 {
		t.Fatalf("backscatter rows = %d, want header + 1", len(back))
	}
	if back[1][0] != sceneName || back[1][1] != "field_a" || back[1][2] != "2025-05-24T17:07:39" {
		t.Errorf("backscatter row = %v", back[1])
	}
	if back[0][3] != "mean_VV" {
		t.Errorf("metric column = %q", back[0][3])
	}

	pol := readTable(t, cfg.StatsTablePath(extract.FamilyPoldecomp))
	if len(pol) != 2 {
		t.Errorf("poldecomp rows = %d, want header + 1", len(pol))
	}
}

func TestRunSkipsMalformedFilenames(t *testing.T) {
	cfg := newExtractConfig(t, writeStatsStub(t, ""))
	addSubset(t, cfg, "field_a", sceneName+"_dB_tc_subset.tif")
	// Missing timestamp tokens: structurally invalid, must be skipped.
	addSubset(t, cfg, "field_a", "S1A_IW_SLC__1SDV_059339_075D5F_E4AE_dB_tc_subset.tif")

	extractor := extract.New(cfg, nil, logging.NewNop())
	summary, err := extractor.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Succeeded != 1 || summary.Failed != 1 {
		t.Errorf("summary = %+v, want 1 success and 1 failure", summary)
	}
}

func TestRunIsolatesToolFailures(t *testing.T) {
	cfg := newExtractConfig(t, "placeholder")
	good := sceneName + "_dB_tc_subset.tif"
	badScene := "S1A_IW_SLC__1SDV_20250605T170740_20250605T170807_059514_076244_BB01"
	bad := addSubset(t, cfg, "field_a", badScene+"_dB_tc_subset.tif")
	addSubset(t, cfg, "field_a", good)
	cfg.Tools.StatsTool = writeStatsStub(t, bad)

	extractor := extract.New(cfg, nil, logging.NewNop())
	summary, err := extractor.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Succeeded != 1 || summary.Failed != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRunNoFilesIsFatal(t *testing.T) {
	cfg := newExtractConfig(t, writeStatsStub(t, ""))
	if err := os.MkdirAll(cfg.SubsetsDir(), 0o755); err != nil {
		t.Fatalf("mkdir subsets: %v", err)
	}

	extractor := extract.New(cfg, nil, logging.NewNop())
	_, err := extractor.Run(context.Background())
	if !errors.Is(err, services.ErrNoWork) {
		t.Fatalf("err = %v, want ErrNoWork", err)
	}
}

func TestRunZeroSuccessesIsFatal(t *testing.T) {
	cfg := newExtractConfig(t, "placeholder")
	only := addSubset(t, cfg, "field_a", sceneName+"_dB_tc_subset.tif")
	cfg.Tools.StatsTool = writeStatsStub(t, only)

	extractor := extract.New(cfg, nil, logging.NewNop())
	summary, err := extractor.Run(context.Background())
	if !errors.Is(err, services.ErrNoWork) {
		t.Fatalf("err = %v, want ErrNoWork", err)
	}
	if summary.Failed != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRunExcludesHiddenFieldDirectories(t *testing.T) {
	cfg := newExtractConfig(t, writeStatsStub(t, ""))
	addSubset(t, cfg, "field_a", sceneName+"_dB_tc_subset.tif")
	addSubset(t, cfg, ".trash", sceneName+"_dB_tc_subset.tif")

	extractor := extract.New(cfg, nil, logging.NewNop())
	summary, err := extractor.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Files != 1 {
		t.Errorf("files = %d, want hidden dir excluded", summary.Files)
	}
}
