package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fieldprep/internal/services"
)

// LoadAOI reads the area-of-interest geometry as WKT. The path may name a
// WKT file directly or a directory, in which case the first *.wkt entry in
// lexical order is used.
func LoadAOI(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", services.Wrap(services.ErrDiscovery, "catalog", "aoi", "area of interest not found", err)
	}
	if info.IsDir() {
		matches, err := filepath.Glob(filepath.Join(path, "*.wkt"))
		if err != nil {
			return "", services.Wrap(services.ErrDiscovery, "catalog", "aoi", "scan area-of-interest directory", err)
		}
		if len(matches) == 0 {
			return "", services.Wrap(services.ErrDiscovery, "catalog", "aoi", fmt.Sprintf("no .wkt file in %s", path), nil)
		}
		sort.Strings(matches)
		path = matches[0]
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", services.Wrap(services.ErrDiscovery, "catalog", "aoi", "read area of interest", err)
	}
	wkt := strings.TrimSpace(string(data))
	upper := strings.ToUpper(wkt)
	if !strings.HasPrefix(upper, "POLYGON") && !strings.HasPrefix(upper, "MULTIPOLYGON") {
		return "", services.Wrap(services.ErrDiscovery, "catalog", "aoi", "area of interest is not polygon WKT", nil)
	}
	return wkt, nil
}
