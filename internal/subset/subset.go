// Package subset clips final-stage rasters to per-field boundaries, one
// subset raster per (field, source raster) pair.
package subset

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fieldprep/internal/config"
	"fieldprep/internal/fileutil"
	"fieldprep/internal/logging"
	"fieldprep/internal/services"
	"fieldprep/internal/toolrun"
)

// Field is one declared field boundary.
type Field struct {
	ID           string
	BoundaryPath string
}

// Subsetter drives the external clipping tool over the final raster set.
type Subsetter struct {
	cfg    *config.Config
	tools  toolrun.Runner
	logger *slog.Logger
}

// New constructs a subsetter backed by the given tool executor.
func New(cfg *config.Config, tools toolrun.Runner, logger *slog.Logger) *Subsetter {
	if logger == nil {
		logger = logging.NewNop()
	}
	if tools == nil {
		tools = toolrun.New()
	}
	return &Subsetter{
		cfg:    cfg,
		tools:  tools,
		logger: logging.NewComponentLogger(logger, "subset"),
	}
}

// Summary counts the per-pair outcomes of one subset phase.
type Summary struct {
	Fields    int
	Rasters   int
	Total     int
	Succeeded int
	Skipped   int
}

// Fields enumerates the field directories under fields_dir in lexical
// order. Hidden entries (leading ".") and plain files are excluded. A field
// directory without a boundary file is logged and skipped.
func (s *Subsetter) Fields() ([]Field, error) {
	entries, err := os.ReadDir(s.cfg.Paths.FieldsDir)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "subset", "fields", "read fields directory", err)
	}

	fields := make([]Field, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		boundary, err := findBoundary(filepath.Join(s.cfg.Paths.FieldsDir, name))
		if err != nil {
			s.logger.Warn("field directory has no boundary file, skipping",
				logging.String(logging.FieldFieldID, name),
				logging.Error(err))
			continue
		}
		fields = append(fields, Field{ID: name, BoundaryPath: boundary})
	}
	return fields, nil
}

func findBoundary(fieldDir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(fieldDir, "*.kml"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", services.Wrap(services.ErrNotFound, "subset", "fields", "no .kml boundary in "+fieldDir, nil)
	}
	sort.Strings(matches)
	return matches[0], nil
}

// Run clips every final-class raster to every field boundary. Failures are
// isolated per (field, raster) pair; the summary carries the success count
// used for phase gating.
func (s *Subsetter) Run(ctx context.Context) (Summary, error) {
	fields, err := s.Fields()
	if err != nil {
		return Summary{}, err
	}
	rasters, err := s.finalRasters()
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		Fields:  len(fields),
		Rasters: len(rasters),
		Total:   len(fields) * len(rasters),
	}

	for _, field := range fields {
		fieldCtx := services.WithField(ctx, field.ID)
		logger := logging.WithContext(fieldCtx, s.logger)

		outDir := s.cfg.FieldSubsetDir(field.ID)
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			logger.Error("cannot create field subset directory", logging.Error(err))
			continue
		}
		for _, raster := range rasters {
			output := filepath.Join(outDir, subsetName(filepath.Base(raster)))

			if s.cfg.Workflow.SkipExisting && fileutil.IsFile(output) {
				logger.Info("subset already present, skipping",
					logging.String("output", output))
				summary.Succeeded++
				summary.Skipped++
				continue
			}

			invocation := toolrun.Invocation{
				Binary: s.cfg.Tools.Subsetter,
				Args: []string{
					"--input", raster,
					"--output", output,
					"--kml", field.BoundaryPath,
				},
			}
			if _, err := s.tools.Run(fieldCtx, invocation); err != nil {
				logger.Error("subset failed",
					logging.String("raster", raster),
					logging.Error(err))
				continue
			}
			summary.Succeeded++
		}
	}

	s.logger.Info("subset phase complete",
		logging.Int("fields", summary.Fields),
		logging.Int("rasters", summary.Rasters),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("total", summary.Total))
	return summary, nil
}

// finalRasters lists the files in the final output directory whose name
// carries a final-class stage suffix, in lexical order.
func (s *Subsetter) finalRasters() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.FinalDir())
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "subset", "rasters", "read final directory", err)
	}

	suffixes := make([]string, 0, len(s.cfg.Stages))
	for _, stage := range s.cfg.Stages {
		if stage.Class == config.ClassFinal {
			suffixes = append(suffixes, stage.OutputSuffix)
		}
	}

	rasters := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		for _, suffix := range suffixes {
			if strings.HasSuffix(entry.Name(), suffix) {
				rasters = append(rasters, filepath.Join(s.cfg.FinalDir(), entry.Name()))
				break
			}
		}
	}
	sort.Strings(rasters)
	return rasters, nil
}

// subsetName inserts the subset marker before the file extension, so
// <scene>_dB_tc.tif clips to <scene>_dB_tc_subset.tif.
func subsetName(base string) string {
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "_subset" + ext
}
