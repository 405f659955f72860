package journal_test

import (
	"context"
	"testing"

	"fieldprep/internal/journal"
	"fieldprep/internal/testsupport"
)

func openStore(t *testing.T) *journal.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store, err := journal.Open(cfg)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close returned error: %v", err)
		}
	})
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.BeginRun(ctx, "run-1"); err != nil {
		t.Fatalf("BeginRun returned error: %v", err)
	}
	if err := store.RecordResult(ctx, "run-1", "scene-a", "fetch", journal.OutcomeSuccess, ""); err != nil {
		t.Fatalf("RecordResult returned error: %v", err)
	}
	if err := store.RecordResult(ctx, "run-1", "scene-b", "fetch", journal.OutcomeFailed, "http 404"); err != nil {
		t.Fatalf("RecordResult returned error: %v", err)
	}
	if err := store.FinishRun(ctx, "run-1", journal.OutcomeFailed); err != nil {
		t.Fatalf("FinishRun returned error: %v", err)
	}

	results, err := store.ResultsForRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ResultsForRun returned error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Scene != "scene-a" || results[0].Status != journal.OutcomeSuccess {
		t.Errorf("first result = %+v", results[0])
	}
	if results[1].Detail != "http 404" {
		t.Errorf("detail = %q", results[1].Detail)
	}
}

func TestResultsIsolatedPerRun(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	for _, runID := range []string{"run-1", "run-2"} {
		if err := store.BeginRun(ctx, runID); err != nil {
			t.Fatalf("BeginRun(%s): %v", runID, err)
		}
		if err := store.RecordResult(ctx, runID, "scene-a", "transform", journal.OutcomeSuccess, ""); err != nil {
			t.Fatalf("RecordResult(%s): %v", runID, err)
		}
	}

	results, err := store.ResultsForRun(ctx, "run-2")
	if err != nil {
		t.Fatalf("ResultsForRun returned error: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("results = %d, want 1", len(results))
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	first, err := journal.Open(cfg)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close first: %v", err)
	}

	second, err := journal.Open(cfg)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	if err := second.Close(); err != nil {
		t.Fatalf("close second: %v", err)
	}
}
