// Package stats appends field-level metric rows to the persistent,
// never-truncated statistics tables, one table per metric family.
package stats

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"fieldprep/internal/services"
)

// Metric is one named value computed for a (scene, field) pair. Order is
// significant: it defines the table's column order.
type Metric struct {
	Name  string
	Value string
}

// Record is one statistics row.
type Record struct {
	SceneID         string
	FieldID         string
	AcquisitionTime string
	Metrics         []Metric
}

var fixedColumns = []string{"scene_id", "field_id", "acquisition_time"}

// Appender writes records to a single metric-family table. Appends are
// guarded by a file lock so short-lived invocations never interleave
// partial rows.
type Appender struct {
	path string
	lock *flock.Flock
}

// NewAppender targets one table file. The sibling lock file is created on
// first use.
func NewAppender(path string) *Appender {
	return &Appender{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Append adds one row, writing the header first when the table is new or
// empty. Existing rows are never rewritten.
func (a *Appender) Append(record Record) error {
	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return services.Wrap(services.ErrValidation, "stats", "append", "create stats directory", err)
	}

	if err := a.lock.Lock(); err != nil {
		return services.Wrap(services.ErrValidation, "stats", "append", "acquire table lock", err)
	}
	defer a.lock.Unlock()

	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return services.Wrap(services.ErrValidation, "stats", "append", "open table", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return services.Wrap(services.ErrValidation, "stats", "append", "stat table", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		header := make([]string, 0, len(fixedColumns)+len(record.Metrics))
		header = append(header, fixedColumns...)
		for _, metric := range record.Metrics {
			header = append(header, metric.Name)
		}
		if err := w.Write(header); err != nil {
			return services.Wrap(services.ErrValidation, "stats", "append", "write header", err)
		}
	}

	row := make([]string, 0, len(fixedColumns)+len(record.Metrics))
	row = append(row, record.SceneID, record.FieldID, record.AcquisitionTime)
	for _, metric := range record.Metrics {
		row = append(row, metric.Value)
	}
	if err := w.Write(row); err != nil {
		return services.Wrap(services.ErrValidation, "stats", "append", "write row", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return services.Wrap(services.ErrValidation, "stats", "append", "flush row", err)
	}
	return nil
}
