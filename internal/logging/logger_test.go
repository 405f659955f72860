package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fieldprep/internal/logging"
	"fieldprep/internal/services"
)

func TestNewSplitsErrorLog(t *testing.T) {
	dir := t.TempDir()
	processLog := filepath.Join(dir, "fieldprep.log")
	errorLog := filepath.Join(dir, "errors.log")

	logger, err := logging.New(logging.Options{
		Level:      "info",
		Format:     "console",
		ProcessLog: processLog,
		ErrorLog:   errorLog,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("fetch started", logging.String("scene", "S1A_TEST"))
	logger.Error("fetch failed", logging.String("scene", "S1A_TEST"))

	process, err := os.ReadFile(processLog)
	if err != nil {
		t.Fatalf("read process log: %v", err)
	}
	if !strings.Contains(string(process), "fetch started") {
		t.Fatalf("expected info record in process log, got %q", process)
	}
	if !strings.Contains(string(process), "fetch failed") {
		t.Fatalf("expected error record in process log, got %q", process)
	}

	errors, err := os.ReadFile(errorLog)
	if err != nil {
		t.Fatalf("read error log: %v", err)
	}
	if strings.Contains(string(errors), "fetch started") {
		t.Fatalf("info record leaked into error log: %q", errors)
	}
	if !strings.Contains(string(errors), "fetch failed") {
		t.Fatalf("expected error record in error log, got %q", errors)
	}
}

func TestNewAppendsAcrossInvocations(t *testing.T) {
	dir := t.TempDir()
	processLog := filepath.Join(dir, "fieldprep.log")

	for i := 0; i < 2; i++ {
		logger, err := logging.New(logging.Options{Level: "info", Format: "console", ProcessLog: processLog})
		if err != nil {
			t.Fatalf("New returned error: %v", err)
		}
		logger.Info("run summary")
	}

	data, err := os.ReadFile(processLog)
	if err != nil {
		t.Fatalf("read process log: %v", err)
	}
	if got := strings.Count(string(data), "run summary"); got != 2 {
		t.Fatalf("expected 2 appended records, got %d", got)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsStandardFields(t *testing.T) {
	ctx := services.WithPhase(context.Background(), "fetch")
	ctx = services.WithScene(ctx, "S1A_TEST")

	fields := logging.ContextFields(ctx)
	keys := make(map[string]bool, len(fields))
	for _, f := range fields {
		keys[f.Key] = true
	}
	if !keys[logging.FieldPhase] || !keys[logging.FieldScene] {
		t.Fatalf("expected phase and scene fields, got %v", keys)
	}
}
