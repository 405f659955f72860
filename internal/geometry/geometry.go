// Package geometry resolves the swath and burst of a raw scene that
// intersect the area of interest, by invoking the external burst analyzer
// and parsing its output.
package geometry

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"fieldprep/internal/config"
	"fieldprep/internal/logging"
	"fieldprep/internal/services"
	"fieldprep/internal/toolrun"
)

// Target is the geographic sub-unit the transformation chain operates on.
type Target struct {
	Swath string
	Burst int
}

// Resolver derives the intersecting (swath, burst) pair for a scene.
type Resolver struct {
	cfg    *config.Config
	runner toolrun.Runner
	logger *slog.Logger
}

// New constructs a resolver that shells out to the configured burst analyzer.
func New(cfg *config.Config, runner toolrun.Runner, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	if runner == nil {
		runner = toolrun.New()
	}
	return &Resolver{
		cfg:    cfg,
		runner: runner,
		logger: logging.NewComponentLogger(logger, "geometry"),
	}
}

// Resolve invokes the burst analyzer against the raw artifact and the area
// of interest. The analyzer prints one intersection per line as
// "<swath> <burst>"; the first line wins. A non-zero exit, empty output, or
// a malformed line is an item-level failure.
func (r *Resolver) Resolve(ctx context.Context, artifactPath string) (Target, error) {
	invocation := toolrun.Invocation{
		Binary: r.cfg.Tools.BurstAnalyzer,
		Args: []string{
			"--scene", artifactPath,
			"--aoi", r.cfg.Paths.AOITotal,
		},
	}

	result, err := r.runner.Run(ctx, invocation)
	if err != nil {
		return Target{}, services.Wrap(services.ErrExternalTool, "geometry", "resolve", "burst analyzer failed", err)
	}

	target, err := parseOutput(result.Stdout)
	if err != nil {
		return Target{}, err
	}
	logging.WithContext(ctx, r.logger).Info("resolved intersection",
		logging.String("artifact", artifactPath),
		logging.String("swath", target.Swath),
		logging.Int("burst", target.Burst))
	return target, nil
}

// parseOutput extracts the first intersection line. Swaths are normalized
// to upper case and must be one of the three IW sub-swaths; the burst index
// must be a non-negative integer.
func parseOutput(stdout string) (Target, error) {
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return Target{}, services.Wrap(services.ErrValidation, "geometry", "parse",
				fmt.Sprintf("malformed intersection line %q", line), nil)
		}
		swath := strings.ToUpper(fields[0])
		switch swath {
		case "IW1", "IW2", "IW3":
		default:
			return Target{}, services.Wrap(services.ErrValidation, "geometry", "parse",
				fmt.Sprintf("unknown swath %q", fields[0]), nil)
		}
		burst, err := strconv.Atoi(fields[1])
		if err != nil || burst < 0 {
			return Target{}, services.Wrap(services.ErrValidation, "geometry", "parse",
				fmt.Sprintf("invalid burst index %q", fields[1]), err)
		}
		return Target{Swath: swath, Burst: burst}, nil
	}
	return Target{}, services.Wrap(services.ErrValidation, "geometry", "parse", "no intersections reported", nil)
}
