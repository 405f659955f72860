// Package testsupport provides shared fixtures for package tests: a
// configuration rooted in per-test temp directories and executable shell
// stubs standing in for the external processing tools.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"fieldprep/internal/config"
)

// NewConfig returns a configuration whose every path points into temp
// directories owned by the test, with one intermediate and one final stage
// declared and the output directories created.
func NewConfig(t testing.TB) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Paths.DownloadDir = t.TempDir()
	cfg.Paths.FieldsDir = t.TempDir()
	cfg.Paths.StatsDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Paths.AOITotal = filepath.Join(t.TempDir(), "aoi.wkt")
	cfg.Download.Username = "user"
	cfg.Download.Password = "pass"
	cfg.Stages = []config.Stage{
		{Name: "orbit", Graph: "orbit.xml", OutputSuffix: "_orb.dim", Class: config.ClassIntermediate},
		{Name: "terrain_correction", Graph: "tc.xml", OutputSuffix: "_dB_tc.tif", Class: config.ClassFinal},
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WriteStub creates an executable shell script with the given body and
// returns its path. The body runs under /bin/sh with the stub's arguments.
func WriteStub(t testing.TB, name, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}
