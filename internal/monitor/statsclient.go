// Package monitor renders a terminal dashboard over the daemon's stats API.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// GatherStats mirrors the gather section of the stats endpoint.
type GatherStats struct {
	Requests          int64 `json:"requests"`
	CacheHits         int64 `json:"cache_hits"`
	GlobalTimeouts    int64 `json:"global_timeouts"`
	RequiredFailures  int64 `json:"required_failures"`
	FinalizeFailures  int64 `json:"finalize_failures"`
	CollectorWarnings int64 `json:"collector_warnings"`
}

// CacheStats mirrors the cache section of the stats endpoint.
type CacheStats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Expired   int64 `json:"expired"`
	Evictions int64 `json:"evictions"`
}

// StatsSnapshot is one poll of the stats endpoint.
type StatsSnapshot struct {
	Gather GatherStats `json:"gather"`
	Cache  CacheStats  `json:"cache"`
}

// HitRate returns the cache hit ratio in [0,1].
func (s StatsSnapshot) HitRate() float64 {
	total := s.Cache.Hits + s.Cache.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Cache.Hits) / float64(total)
}

// FailureRate returns the share of runs that ended fatally, in [0,1].
func (s StatsSnapshot) FailureRate() float64 {
	if s.Gather.Requests == 0 {
		return 0
	}
	failed := s.Gather.GlobalTimeouts + s.Gather.RequiredFailures + s.Gather.FinalizeFailures
	return float64(failed) / float64(s.Gather.Requests)
}

// StatsClient queries the daemon's HTTP API.
type StatsClient struct {
	baseURL string
	client  *http.Client
}

// NewStatsClient creates a client for the given daemon base URL.
func NewStatsClient(baseURL string) *StatsClient {
	return &StatsClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 2 * time.Second,
		},
	}
}

// FetchStats retrieves the current run and cache counters.
func (c *StatsClient) FetchStats(ctx context.Context) (StatsSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/stats", nil)
	if err != nil {
		return StatsSnapshot{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return StatsSnapshot{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return StatsSnapshot{}, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	var snap StatsSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return StatsSnapshot{}, fmt.Errorf("failed to decode response: %w", err)
	}

	return snap, nil
}

// CheckHealth probes the health endpoint.
func (c *StatsClient) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	return nil
}
