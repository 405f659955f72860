// Package extract recovers scene identity from subset raster filenames,
// computes field-level metrics via the external stats tool, and appends the
// results to the per-family statistics tables.
package extract

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fieldprep/internal/config"
	"fieldprep/internal/logging"
	"fieldprep/internal/scene"
	"fieldprep/internal/services"
	"fieldprep/internal/stats"
	"fieldprep/internal/toolrun"
)

// Metric family markers. Filenames carrying the decomposition marker go to
// the poldecomp table; everything else is backscatter.
const (
	FamilyBackscatter = "backscatter"
	FamilyPoldecomp   = "poldecomp"

	poldecompMarker = "_poldecomp_"
	subsetSuffix    = "_subset.tif"
)

// Extractor walks the per-field subset directories and accumulates one
// statistics row per successfully processed file.
type Extractor struct {
	cfg       *config.Config
	tools     toolrun.Runner
	logger    *slog.Logger
	appenders map[string]*stats.Appender
}

// New constructs an extractor backed by the given tool executor.
func New(cfg *config.Config, tools toolrun.Runner, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewNop()
	}
	if tools == nil {
		tools = toolrun.New()
	}
	return &Extractor{
		cfg:       cfg,
		tools:     tools,
		logger:    logging.NewComponentLogger(logger, "extract"),
		appenders: make(map[string]*stats.Appender),
	}
}

// Summary counts the per-file outcomes of one extraction phase.
type Summary struct {
	Files     int
	Succeeded int
	Failed    int
}

// Run processes every subset raster under the per-field directories.
// Failures (unparseable filename, tool failure, append failure) are isolated
// per file. Zero eligible files or zero successes is fatal; partial success
// is reported as a warning in the summary log.
func (e *Extractor) Run(ctx context.Context) (Summary, error) {
	files, err := e.eligibleFiles()
	if err != nil {
		return Summary{}, err
	}
	if len(files) == 0 {
		return Summary{}, services.Wrap(services.ErrNoWork, "extract", "run", "no subset rasters found", nil)
	}

	summary := Summary{Files: len(files)}
	for _, file := range files {
		fileCtx := services.WithField(ctx, file.fieldID)
		if err := e.processFile(fileCtx, file); err != nil {
			logging.WithContext(fileCtx, e.logger).Error("extraction failed for file",
				logging.String("file", file.path),
				logging.Error(err))
			summary.Failed++
			continue
		}
		summary.Succeeded++
	}

	if summary.Succeeded == 0 {
		return summary, services.Wrap(services.ErrNoWork, "extract", "run", "no subset raster processed successfully", nil)
	}
	if summary.Failed > 0 {
		e.logger.Warn("extraction finished with partial success",
			logging.Int("succeeded", summary.Succeeded),
			logging.Int("failed", summary.Failed))
	} else {
		e.logger.Info("extraction complete", logging.Int("files", summary.Succeeded))
	}
	return summary, nil
}

type subsetFile struct {
	fieldID string
	path    string
}

// eligibleFiles lists subset rasters grouped by field, in lexical order.
// Hidden field directories are excluded.
func (e *Extractor) eligibleFiles() ([]subsetFile, error) {
	fieldDirs, err := os.ReadDir(e.cfg.SubsetsDir())
	if err != nil {
		return nil, services.Wrap(services.ErrNoWork, "extract", "run", "read subsets directory", err)
	}

	var files []subsetFile
	for _, fieldDir := range fieldDirs {
		if !fieldDir.IsDir() || strings.HasPrefix(fieldDir.Name(), ".") {
			continue
		}
		dirPath := filepath.Join(e.cfg.SubsetsDir(), fieldDir.Name())
		entries, err := os.ReadDir(dirPath)
		if err != nil {
			e.logger.Warn("cannot read field subset directory",
				logging.String(logging.FieldFieldID, fieldDir.Name()),
				logging.Error(err))
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), subsetSuffix) {
				continue
			}
			files = append(files, subsetFile{
				fieldID: fieldDir.Name(),
				path:    filepath.Join(dirPath, entry.Name()),
			})
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files, nil
}

// processFile parses the scene identity from the filename, runs the stats
// tool, and appends the resulting row to the family table.
func (e *Extractor) processFile(ctx context.Context, file subsetFile) error {
	identity, err := scene.ParsePrefix(filepath.Base(file.path))
	if err != nil {
		return services.Wrap(services.ErrValidation, "extract", "parse", "filename does not match scene grammar", err)
	}

	family := FamilyBackscatter
	if strings.Contains(filepath.Base(file.path), poldecompMarker) {
		family = FamilyPoldecomp
	}

	metrics, err := e.computeMetrics(ctx, file, identity)
	if err != nil {
		return err
	}

	record := stats.Record{
		SceneID:         identity.Name,
		FieldID:         file.fieldID,
		AcquisitionTime: identity.AcquisitionTime(),
		Metrics:         metrics,
	}
	if err := e.appender(family).Append(record); err != nil {
		return err
	}

	ctx = services.WithScene(ctx, identity.Name)
	logging.WithContext(ctx, e.logger).Info("statistics appended",
		logging.String("family", family))
	return nil
}

// computeMetrics invokes the stats tool and parses its stdout, one
// "name=value" pair per line in tool-declared order.
func (e *Extractor) computeMetrics(ctx context.Context, file subsetFile, identity scene.Identity) ([]stats.Metric, error) {
	invocation := toolrun.Invocation{
		Binary: e.cfg.Tools.StatsTool,
		Args: []string{
			file.path,
			identity.Name,
			file.fieldID,
			identity.AcquisitionTime(),
		},
	}
	result, err := e.tools.Run(ctx, invocation)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "extract", "compute", "stats tool failed", err)
	}

	var metrics []stats.Metric
	for _, line := range strings.Split(result.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, value, found := strings.Cut(line, "=")
		if !found || strings.TrimSpace(name) == "" {
			return nil, services.Wrap(services.ErrValidation, "extract", "compute", "malformed metric line "+line, nil)
		}
		metrics = append(metrics, stats.Metric{
			Name:  strings.TrimSpace(name),
			Value: strings.TrimSpace(value),
		})
	}
	if len(metrics) == 0 {
		return nil, services.Wrap(services.ErrValidation, "extract", "compute", "stats tool produced no metrics", nil)
	}
	return metrics, nil
}

func (e *Extractor) appender(family string) *stats.Appender {
	if existing, ok := e.appenders[family]; ok {
		return existing
	}
	appender := stats.NewAppender(e.cfg.StatsTablePath(family))
	e.appenders[family] = appender
	return appender
}
