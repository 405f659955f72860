// Package workflow sequences the pipeline phases per the configured
// toggles, tracks per-item and per-phase success, and enforces the phase
// gate: a phase with partial failure aborts the run before the next phase
// starts.
package workflow

import (
	"log/slog"
	"net/http"

	"fieldprep/internal/catalog"
	"fieldprep/internal/chain"
	"fieldprep/internal/config"
	"fieldprep/internal/extract"
	"fieldprep/internal/fetch"
	"fieldprep/internal/geometry"
	"fieldprep/internal/journal"
	"fieldprep/internal/logging"
	"fieldprep/internal/subset"
	"fieldprep/internal/toolrun"
)

// Phase names in fixed execution order.
const (
	PhaseDiscover  = "discover"
	PhaseFetch     = "fetch"
	PhaseTransform = "transform"
	PhaseSubset    = "subset"
	PhaseExtract   = "extract"
)

// Orchestrator owns one pipeline run.
type Orchestrator struct {
	cfg    *config.Config
	logger *slog.Logger

	catalog   *catalog.Client
	fetcher   *fetch.Fetcher
	resolver  *geometry.Resolver
	chain     *chain.Runner
	subsetter *subset.Subsetter
	extractor *extract.Extractor
	journal   *journal.Store
}

// Option customizes orchestrator construction.
type Option func(*options)

type options struct {
	tools      toolrun.Runner
	httpClient *http.Client
	journal    *journal.Store
}

// WithToolRunner substitutes the external tool executor.
func WithToolRunner(tools toolrun.Runner) Option {
	return func(o *options) { o.tools = tools }
}

// WithHTTPClient overrides the HTTP client used for discovery and download.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithJournal attaches a run journal. Without one, outcomes are only logged.
func WithJournal(store *journal.Store) Option {
	return func(o *options) { o.journal = store }
}

// New wires the phase components around a shared configuration and logger.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.tools == nil {
		o.tools = toolrun.New()
	}

	var catalogOpts []catalog.Option
	var fetchOpts []fetch.Option
	if o.httpClient != nil {
		catalogOpts = append(catalogOpts, catalog.WithHTTPClient(o.httpClient))
		fetchOpts = append(fetchOpts, fetch.WithHTTPClient(o.httpClient))
	}

	return &Orchestrator{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "workflow"),
		catalog:   catalog.New(logger, catalogOpts...),
		fetcher:   fetch.New(cfg, logger, fetchOpts...),
		resolver:  geometry.New(cfg, o.tools, logger),
		chain:     chain.New(cfg, o.tools, logger),
		subsetter: subset.New(cfg, o.tools, logger),
		extractor: extract.New(cfg, o.tools, logger),
		journal:   o.journal,
	}
}
