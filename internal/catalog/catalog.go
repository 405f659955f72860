// Package catalog resolves candidate scenes from the Copernicus OData
// discovery endpoint and persists them as a catalog file consumed by the
// fetch phase.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fieldprep/internal/config"
	"fieldprep/internal/logging"
	"fieldprep/internal/scene"
	"fieldprep/internal/services"
)

const defaultHTTPTimeout = 60 * time.Second

// Candidate is one discovered scene: the catalog identifier used by the
// download endpoint plus the parsed scene identity.
type Candidate struct {
	ID       string
	Name     string
	Identity scene.Identity
}

// Client queries the discovery endpoint.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes the discovery client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New constructs a discovery client.
func New(logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	client := &Client{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     logging.NewComponentLogger(logger, "catalog"),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type odataResponse struct {
	Value []odataProduct `json:"value"`
}

type odataProduct struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

// Find queries the catalog for scenes matching the configured sensor and
// time window that intersect the area of interest. Results are deduplicated
// by identifier and returned in endpoint order; an empty result is valid.
func (c *Client) Find(ctx context.Context, query config.Query, aoiWKT string) ([]Candidate, error) {
	endpoint, err := url.Parse(query.BaseURL)
	if err != nil {
		return nil, services.Wrap(services.ErrDiscovery, "catalog", "find", "invalid discovery endpoint", err)
	}

	params := url.Values{}
	params.Set("$filter", buildFilter(query, aoiWKT))
	params.Set("$orderby", query.OrderBy)
	params.Set("$top", strconv.Itoa(query.Top))
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrDiscovery, "catalog", "find", "build request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrDiscovery, "catalog", "find", "discovery endpoint unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrDiscovery, "catalog", "find", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail := fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(firstLine(string(body))))
		return nil, services.Wrap(services.ErrDiscovery, "catalog", "find", "discovery request rejected", detail)
	}

	var payload odataResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, services.Wrap(services.ErrDiscovery, "catalog", "find", "decode response", err)
	}

	candidates := c.filter(payload.Value, query)
	c.logger.Info("discovery complete",
		logging.Int("returned", len(payload.Value)),
		logging.Int("matched", len(candidates)))
	return candidates, nil
}

// filter applies the post-query criteria the endpoint cannot express:
// COG exclusion, relative-orbit and polarisation selection, plus
// identifier deduplication.
func (c *Client) filter(products []odataProduct, query config.Query) []Candidate {
	seen := make(map[string]struct{}, len(products))
	candidates := make([]Candidate, 0, len(products))
	for _, product := range products {
		if strings.Contains(product.Name, "COG") {
			continue
		}
		if _, dup := seen[product.ID]; dup {
			continue
		}
		identity, err := scene.Parse(product.Name)
		if err != nil {
			c.logger.Warn("skipping unparseable product name",
				logging.String("name", product.Name),
				logging.Error(err))
			continue
		}
		if query.RelativeOrbit > 0 && identity.RelativeOrbit() != query.RelativeOrbit {
			continue
		}
		if query.Polarisation != "" && identity.Polarisation() != query.Polarisation {
			continue
		}
		seen[product.ID] = struct{}{}
		candidates = append(candidates, Candidate{
			ID:       product.ID,
			Name:     identity.Name,
			Identity: identity,
		})
	}
	return candidates
}

// buildFilter assembles the OData $filter expression. The BOTH satellite
// selection expands into an S1A-or-S1B name clause.
func buildFilter(query config.Query, aoiWKT string) string {
	var contains string
	if strings.EqualFold(query.Satellite, "BOTH") {
		contains = fmt.Sprintf("(contains(Name, 'S1A_%[1]s_%[2]s') or contains(Name, 'S1B_%[1]s_%[2]s'))",
			query.Mode, query.Level)
	} else {
		contains = fmt.Sprintf("contains(Name, '%s_%s_%s')", query.Satellite, query.Mode, query.Level)
	}
	clauses := []string{
		fmt.Sprintf("Collection/Name eq '%s'", query.Collection),
		contains,
		fmt.Sprintf("OData.CSC.Intersects(area=geography'SRID=4326;%s')", aoiWKT),
		fmt.Sprintf("ContentDate/Start gt %sT00:00:00.000Z", query.StartDate),
		fmt.Sprintf("ContentDate/Start lt %sT00:00:00.000Z", query.EndDate),
	}
	return strings.Join(clauses, " and ")
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
