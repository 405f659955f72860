package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"fieldprep/internal/catalog"
	"fieldprep/internal/fileutil"
	"fieldprep/internal/journal"
	"fieldprep/internal/logging"
	"fieldprep/internal/services"
)

// ErrPhaseIncomplete marks a gating phase that finished with fewer successes
// than items. The run aborts before the next phase starts.
var ErrPhaseIncomplete = errors.New("phase incomplete")

// RunOptions restrict one invocation.
type RunOptions struct {
	// Scene limits compute phases to a single catalog entry, matched by
	// scene name or identifier.
	Scene string
	// ExtractOnly skips discovery, fetch, transform, and subset and runs
	// extraction against existing outputs.
	ExtractOnly bool
}

// Run executes the configured phases in fixed order. The returned report is
// populated for every phase that ran, including the one that failed.
func (w *Orchestrator) Run(ctx context.Context, opts RunOptions) (*RunReport, error) {
	if opts.ExtractOnly && opts.Scene != "" {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "run",
			"extract-only mode cannot be combined with a single scene", nil)
	}
	if err := w.cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "run", "prepare directories", err)
	}

	lock := flock.New(w.cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "run", "acquire run lock", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "run",
			"another run already holds the lock", nil)
	}
	defer func() { _ = lock.Unlock() }()

	start := time.Now()
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := w.logger.With(logging.String(logging.FieldRunID, runID))
	report := &RunReport{RunID: runID}

	if w.journal != nil {
		if err := w.journal.BeginRun(ctx, runID); err != nil {
			logger.Warn("journal begin failed", logging.Error(err))
		}
	}

	logger.Info("run starting",
		logging.Bool("extract_only", opts.ExtractOnly),
		logging.String("scene", opts.Scene))

	runErr := w.execute(ctx, opts, report, logger)
	switch {
	case runErr == nil:
		report.Outcome = journal.OutcomeSuccess
		logger.Info("run complete", logging.Duration("elapsed", time.Since(start)))
	case errors.Is(runErr, services.ErrInterrupted) || errors.Is(runErr, context.Canceled):
		report.Outcome = journal.OutcomeInterrupted
		logger.Warn("run interrupted")
	default:
		report.Outcome = journal.OutcomeFailed
		logger.Error("run failed", logging.Error(runErr))
	}

	if w.journal != nil {
		if err := w.journal.FinishRun(ctx, runID, report.Outcome); err != nil {
			logger.Warn("journal finish failed", logging.Error(err))
		}
	}
	return report, runErr
}

func (w *Orchestrator) execute(ctx context.Context, opts RunOptions, report *RunReport, logger *slog.Logger) error {
	if opts.ExtractOnly {
		return w.runExtract(ctx, report, logger)
	}

	entries, err := w.runDiscover(ctx, opts, report, logger)
	if err != nil {
		return err
	}

	if w.cfg.Workflow.Fetch {
		if err := w.runFetch(ctx, entries, report, logger); err != nil {
			return err
		}
	}
	if w.cfg.Workflow.Transform {
		if err := w.runTransform(ctx, entries, report, logger); err != nil {
			return err
		}
	}
	if w.cfg.Workflow.Subset {
		if err := w.runSubset(ctx, report, logger); err != nil {
			return err
		}
	}
	if w.cfg.Workflow.Extract {
		if err := w.runExtract(ctx, report, logger); err != nil {
			return err
		}
	}

	if w.cfg.Workflow.CleanupAfter && w.cfg.Workflow.Transform {
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			names = append(names, entry.Name)
		}
		if err := w.chain.CleanupIntermediates(names); err != nil {
			logger.Warn("intermediate cleanup incomplete", logging.Error(err))
		}
	}
	return nil
}

// runDiscover resolves the catalog entries for this run. With the discover
// toggle enabled it queries the endpoint and rewrites the catalog file;
// otherwise it reads the catalog left by a previous run. A single-scene run
// narrows the entries after resolution.
func (w *Orchestrator) runDiscover(ctx context.Context, opts RunOptions, report *RunReport, logger *slog.Logger) ([]catalog.Entry, error) {
	var entries []catalog.Entry

	if w.cfg.Workflow.Discover {
		phaseCtx := services.WithPhase(ctx, PhaseDiscover)
		aoiWKT, err := catalog.LoadAOI(w.cfg.Paths.AOITotal)
		if err != nil {
			return nil, err
		}
		candidates, err := w.catalog.Find(phaseCtx, w.cfg.Query, aoiWKT)
		if err != nil {
			return nil, err
		}
		if err := catalog.WriteFile(w.cfg.CatalogPath(), candidates); err != nil {
			return nil, err
		}
		for _, candidate := range candidates {
			entries = append(entries, catalog.Entry{ID: candidate.ID, Name: candidate.Name})
		}
		report.addPhase(PhaseReport{Phase: PhaseDiscover, Ran: true, Total: len(entries), Succeeded: len(entries)})
		w.recordSummary(ctx, PhaseDiscover, fmt.Sprintf("%d scenes discovered", len(entries)), logger)
	} else if w.cfg.Workflow.Fetch || w.cfg.Workflow.Transform {
		loaded, err := catalog.ReadFile(w.cfg.CatalogPath())
		if err != nil {
			return nil, err
		}
		entries = loaded
		report.addPhase(PhaseReport{Phase: PhaseDiscover, Ran: false})
	}

	if opts.Scene != "" {
		narrowed := entries[:0]
		for _, entry := range entries {
			if entry.Name == opts.Scene || entry.ID == opts.Scene {
				narrowed = append(narrowed, entry)
			}
		}
		if len(narrowed) == 0 {
			return nil, services.Wrap(services.ErrDiscovery, "workflow", "discover",
				fmt.Sprintf("scene %q not present in catalog", opts.Scene), nil)
		}
		entries = narrowed
	}

	logger.Info("catalog resolved", logging.Int("entries", len(entries)))
	return entries, nil
}

func (w *Orchestrator) runFetch(ctx context.Context, entries []catalog.Entry, report *RunReport, logger *slog.Logger) error {
	phase := PhaseReport{Phase: PhaseFetch, Ran: true, Total: len(entries)}
	phaseCtx := services.WithPhase(ctx, PhaseFetch)

	for _, entry := range entries {
		if err := interrupted(phaseCtx, PhaseFetch); err != nil {
			return err
		}
		sceneCtx := services.WithScene(phaseCtx, entry.Name)
		result, err := w.fetcher.Fetch(sceneCtx, entry)
		if err != nil {
			if services.IsFatal(err) {
				return err
			}
			logger.Error("fetch failed",
				logging.String(logging.FieldScene, entry.Name),
				logging.Error(err))
			w.recordItem(ctx, entry.Name, PhaseFetch, journal.OutcomeFailed, err.Error(), logger)
			continue
		}
		phase.Succeeded++
		status := journal.OutcomeSuccess
		if result.Skipped {
			phase.Skipped++
			status = journal.OutcomeSkipped
		}
		w.recordItem(ctx, entry.Name, PhaseFetch, status, "", logger)
	}

	return w.finishPhase(ctx, phase, report, logger)
}

func (w *Orchestrator) runTransform(ctx context.Context, entries []catalog.Entry, report *RunReport, logger *slog.Logger) error {
	phase := PhaseReport{Phase: PhaseTransform, Ran: true, Total: len(entries)}
	phaseCtx := services.WithPhase(ctx, PhaseTransform)

	for _, entry := range entries {
		if err := interrupted(phaseCtx, PhaseTransform); err != nil {
			return err
		}
		sceneCtx := services.WithScene(phaseCtx, entry.Name)
		artifact := w.artifactFor(entry.Name)

		target, err := w.resolver.Resolve(sceneCtx, artifact)
		if err != nil {
			if services.IsFatal(err) {
				return err
			}
			logger.Error("geometry resolution failed, chain not started",
				logging.String(logging.FieldScene, entry.Name),
				logging.Error(err))
			w.recordItem(ctx, entry.Name, PhaseTransform, journal.OutcomeFailed, err.Error(), logger)
			continue
		}

		result, err := w.chain.Run(sceneCtx, entry.Name, artifact, target)
		if err != nil {
			if services.IsFatal(err) {
				return err
			}
			logger.Error("transformation chain failed",
				logging.String(logging.FieldScene, entry.Name),
				logging.Error(err))
			w.recordItem(ctx, entry.Name, PhaseTransform, journal.OutcomeFailed, err.Error(), logger)
			continue
		}

		phase.Succeeded++
		status := journal.OutcomeSuccess
		if result.Executed == 0 {
			phase.Skipped++
			status = journal.OutcomeSkipped
		}
		w.recordItem(ctx, entry.Name, PhaseTransform, status, result.FinalPath, logger)
	}

	return w.finishPhase(ctx, phase, report, logger)
}

func (w *Orchestrator) runSubset(ctx context.Context, report *RunReport, logger *slog.Logger) error {
	phaseCtx := services.WithPhase(ctx, PhaseSubset)
	summary, err := w.subsetter.Run(phaseCtx)
	if err != nil {
		return err
	}
	phase := PhaseReport{
		Phase:     PhaseSubset,
		Ran:       true,
		Total:     summary.Total,
		Succeeded: summary.Succeeded,
		Skipped:   summary.Skipped,
	}
	return w.finishPhase(ctx, phase, report, logger)
}

// runExtract reports per-file counts but never gates on partial success;
// the extractor itself escalates only zero-file and zero-success outcomes.
func (w *Orchestrator) runExtract(ctx context.Context, report *RunReport, logger *slog.Logger) error {
	phaseCtx := services.WithPhase(ctx, PhaseExtract)
	summary, err := w.extractor.Run(phaseCtx)
	phase := PhaseReport{
		Phase:     PhaseExtract,
		Ran:       true,
		Total:     summary.Files,
		Succeeded: summary.Succeeded,
	}
	report.addPhase(phase)
	w.recordSummary(ctx, PhaseExtract, phase.Summary(), logger)
	if err != nil {
		return err
	}
	logger.Info("extract phase finished", logging.String("summary", phase.Summary()))
	return nil
}

// finishPhase logs and journals the gating summary line, then enforces the
// all-or-nothing phase boundary.
func (w *Orchestrator) finishPhase(ctx context.Context, phase PhaseReport, report *RunReport, logger *slog.Logger) error {
	report.addPhase(phase)
	w.recordSummary(ctx, phase.Phase, phase.Summary(), logger)

	if !phase.Complete() {
		logger.Error(phase.Phase+" phase incomplete, aborting run",
			logging.String("summary", phase.Summary()))
		return fmt.Errorf("%w: %s: %s", ErrPhaseIncomplete, phase.Phase, phase.Summary())
	}
	logger.Info(phase.Phase+" phase finished", logging.String("summary", phase.Summary()))
	return nil
}

// artifactFor prefers the archive when present, falling back to the
// expanded directory left by manual unpacking.
func (w *Orchestrator) artifactFor(sceneName string) string {
	archive := w.cfg.ArchivePath(sceneName)
	if fileutil.IsFile(archive) {
		return archive
	}
	if expanded := w.cfg.ExpandedPath(sceneName); fileutil.IsDir(expanded) {
		return expanded
	}
	return archive
}

func (w *Orchestrator) recordItem(ctx context.Context, sceneName, phase, status, detail string, logger *slog.Logger) {
	if w.journal == nil {
		return
	}
	runID, _ := services.RunIDFromContext(ctx)
	if err := w.journal.RecordResult(ctx, runID, sceneName, phase, status, detail); err != nil {
		logger.Warn("journal write failed", logging.Error(err))
	}
}

func (w *Orchestrator) recordSummary(ctx context.Context, phase, detail string, logger *slog.Logger) {
	if w.journal == nil {
		return
	}
	runID, _ := services.RunIDFromContext(ctx)
	if err := w.journal.RecordResult(ctx, runID, "", phase, "summary", detail); err != nil {
		logger.Warn("journal write failed", logging.Error(err))
	}
}

func interrupted(ctx context.Context, phase string) error {
	select {
	case <-ctx.Done():
		return services.Wrap(services.ErrInterrupted, "workflow", phase, "run interrupted", ctx.Err())
	default:
		return nil
	}
}
