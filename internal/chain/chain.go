// Package chain executes the configured sequence of transformation stages
// for one scene, threading each stage's output into the next stage's input.
// The chain is policy-free about which stages exist; it only owns how they
// compose.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"fieldprep/internal/config"
	"fieldprep/internal/fileutil"
	"fieldprep/internal/geometry"
	"fieldprep/internal/logging"
	"fieldprep/internal/services"
	"fieldprep/internal/toolrun"
)

// Runner walks one scene through the declared stage order.
type Runner struct {
	cfg    *config.Config
	tools  toolrun.Runner
	logger *slog.Logger
}

// New constructs a chain runner backed by the given tool executor.
func New(cfg *config.Config, tools toolrun.Runner, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	if tools == nil {
		tools = toolrun.New()
	}
	return &Runner{
		cfg:    cfg,
		tools:  tools,
		logger: logging.NewComponentLogger(logger, "chain"),
	}
}

// Result summarizes one completed chain.
type Result struct {
	FinalPath string
	Executed  int
	Skipped   int
}

// Run executes every configured stage for the scene in declared order,
// seeding the first stage with the raw artifact. With skip-existing enabled,
// a stage whose output already exists is treated as satisfied without
// invoking the tool. A stage failure aborts the remaining stages for this
// scene; outputs already produced are left in place.
func (r *Runner) Run(ctx context.Context, sceneName, artifactPath string, target geometry.Target) (Result, error) {
	ctx = services.WithScene(ctx, sceneName)
	logger := logging.WithContext(ctx, r.logger)
	result := Result{FinalPath: artifactPath}
	currentInput := artifactPath

	for _, stage := range r.cfg.Stages {
		output := r.cfg.StageOutputPath(sceneName, stage)

		if r.cfg.Workflow.SkipExisting && fileutil.Exists(output) {
			logger.Info("stage output already present, skipping",
				logging.String("stage", stage.Name),
				logging.String("output", output))
			currentInput = output
			result.FinalPath = output
			result.Skipped++
			continue
		}

		invocation := toolrun.Invocation{
			Binary: r.cfg.Tools.GPT,
			Args: []string{
				stage.Graph,
				"-Pinput=" + currentInput,
				"-Poutput=" + output,
				"-Pswath=" + target.Swath,
				"-Pburst=" + strconv.Itoa(target.Burst),
				"-Pdem=" + r.cfg.Tools.DEMPath,
			},
		}
		logger.Info("running stage",
			logging.String("stage", stage.Name),
			logging.String("command", invocation.Command()))

		if _, err := r.tools.Run(ctx, invocation); err != nil {
			return result, services.Wrap(services.ErrExternalTool, "chain", stage.Name,
				fmt.Sprintf("stage failed for %s", sceneName), err)
		}

		currentInput = output
		result.FinalPath = output
		result.Executed++
	}

	logger.Info("chain complete",
		logging.String("final", result.FinalPath),
		logging.Int("executed", result.Executed),
		logging.Int("skipped", result.Skipped))
	return result, nil
}

// CleanupIntermediates removes intermediate-class stage outputs for the
// given scenes. Final-class outputs are never eligible for removal.
func (r *Runner) CleanupIntermediates(sceneNames []string) error {
	var firstErr error
	removed := 0
	for _, name := range sceneNames {
		for _, stage := range r.cfg.Stages {
			if stage.Class != config.ClassIntermediate {
				continue
			}
			path := r.cfg.StageOutputPath(name, stage)
			if !fileutil.Exists(path) {
				continue
			}
			if err := os.Remove(path); err != nil {
				r.logger.Warn("failed to remove intermediate output",
					logging.String("path", path),
					logging.Error(err))
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			removed++
		}
	}
	r.logger.Info("intermediate cleanup complete", logging.Int("removed", removed))
	return firstErr
}
