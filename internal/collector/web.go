package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/gatherd/internal/coalesce"
	"github.com/fyrsmithlabs/gatherd/internal/query"
)

const (
	defaultWebTimeout    = 10 * time.Second
	defaultWebMaxResults = 5
	defaultWebRate       = 2.0
	defaultWebBurst      = 4
)

// WebConfig configures the external search backend.
type WebConfig struct {
	// Endpoint is the search API base URL.
	Endpoint string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// MaxResults caps results per search. Defaults to 5.
	MaxResults int

	// Timeout bounds a single HTTP exchange. Defaults to 10s.
	Timeout time.Duration

	// RatePerSecond and Burst bound outbound request rate.
	RatePerSecond float64
	Burst         int
}

// WebCollector queries an external search API. Identical normalized queries
// in flight at the same time share a single upstream call.
type WebCollector struct {
	cfg     WebConfig
	client  *http.Client
	limiter *rate.Limiter
	group   *coalesce.Group
}

// webResponse is the search backend's wire shape.
type webResponse struct {
	Results []webResult `json:"results"`
}

type webResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// NewWebCollector builds the collector. group deduplicates concurrent
// identical searches; pass a shared instance so dedup spans requests.
func NewWebCollector(cfg WebConfig, group *coalesce.Group) (*WebCollector, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("web collector requires an endpoint")
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultWebMaxResults
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultWebTimeout
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = defaultWebRate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultWebBurst
	}
	if group == nil {
		group = &coalesce.Group{}
	}

	return &WebCollector{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		group:   group,
	}, nil
}

// ID implements Collector.
func (c *WebCollector) ID() string { return "web" }

// Collect searches for the normalized query text. Concurrent callers with
// the same normalized text receive the result of one upstream call.
func (c *WebCollector) Collect(ctx context.Context, q query.Query) (string, error) {
	normalized := q.Normalized()
	if normalized == "" {
		return "", nil
	}

	args := map[string]string{"q": normalized}
	value, _, err := c.group.Do(ctx, "web.search", args, func(ctx context.Context) (string, error) {
		return c.search(ctx, normalized)
	})
	return value, err
}

func (c *WebCollector) search(ctx context.Context, text string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("web search rate limit: %w", err)
	}

	reqURL, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("web search endpoint: %w", err)
	}
	params := reqURL.Query()
	params.Set("q", text)
	params.Set("limit", strconv.Itoa(c.cfg.MaxResults))
	reqURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("building web search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("web search request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading web search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("web search returned status %d", resp.StatusCode)
	}

	var parsed webResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decoding web search response: %w", err)
	}
	if len(parsed.Results) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("web results:\n")
	for i, r := range parsed.Results {
		if i >= c.cfg.MaxResults {
			break
		}
		fmt.Fprintf(&b, "- %s (%s)\n", r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "  %s\n", strings.TrimSpace(r.Snippet))
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
