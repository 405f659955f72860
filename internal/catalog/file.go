package catalog

import (
	"encoding/csv"
	"os"
	"strings"

	"fieldprep/internal/services"
)

// Entry is one catalog file row: the download identifier and the scene name
// with any container suffix already stripped.
type Entry struct {
	ID   string
	Name string
}

var header = []string{"id", "name"}

// WriteFile persists candidates as the catalog file consumed by the fetch
// phase. The file is rewritten whole on every discovery run.
func WriteFile(path string, candidates []Candidate) error {
	f, err := os.Create(path)
	if err != nil {
		return services.Wrap(services.ErrDiscovery, "catalog", "write", "create catalog file", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return services.Wrap(services.ErrDiscovery, "catalog", "write", "write header", err)
	}
	for _, candidate := range candidates {
		if err := w.Write([]string{candidate.ID, candidate.Name}); err != nil {
			f.Close()
			return services.Wrap(services.ErrDiscovery, "catalog", "write", "write row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return services.Wrap(services.ErrDiscovery, "catalog", "write", "flush rows", err)
	}
	return f.Close()
}

// ReadFile loads catalog entries in file order. The header row and blank
// lines are skipped; rows without both columns are rejected.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrDiscovery, "catalog", "read", "open catalog file", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, services.Wrap(services.ErrDiscovery, "catalog", "read", "parse catalog file", err)
	}

	entries := make([]Entry, 0, len(records))
	for _, record := range records {
		if len(record) == 0 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(record[0]), header[0]) {
			continue
		}
		if len(record) < 2 {
			return nil, services.Wrap(services.ErrDiscovery, "catalog", "read", "malformed catalog row", nil)
		}
		id := strings.TrimSpace(record[0])
		name := strings.TrimSpace(record[1])
		if id == "" && name == "" {
			continue
		}
		entries = append(entries, Entry{ID: id, Name: name})
	}
	return entries, nil
}
