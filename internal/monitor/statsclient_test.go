package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStatsClient(t *testing.T) {
	client := NewStatsClient("http://localhost:8091")
	assert.NotNil(t, client)
	assert.Equal(t, "http://localhost:8091", client.baseURL)
	assert.NotNil(t, client.client)
}

func TestStatsClient_FetchStats_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/stats", r.URL.Path)

		snap := StatsSnapshot{
			Gather: GatherStats{Requests: 77, CacheHits: 30, CollectorWarnings: 4},
			Cache:  CacheStats{Entries: 6, Hits: 30, Misses: 47},
		}
		json.NewEncoder(w).Encode(snap)
	}))
	defer server.Close()

	client := NewStatsClient(server.URL)
	snap, err := client.FetchStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(77), snap.Gather.Requests)
	assert.Equal(t, int64(4), snap.Gather.CollectorWarnings)
	assert.Equal(t, 6, snap.Cache.Entries)
	assert.InDelta(t, 30.0/77.0, snap.HitRate(), 0.01)
}

func TestStatsClient_FetchStats_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(3 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewStatsClient(server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.FetchStats(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context deadline exceeded")
}

func TestStatsClient_FetchStats_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewStatsClient(server.URL)
	_, err := client.FetchStats(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status code 500")
}

func TestStatsClient_FetchStats_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("{invalid json"))
	}))
	defer server.Close()

	client := NewStatsClient(server.URL)
	_, err := client.FetchStats(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")
}

func TestStatsClient_CheckHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewStatsClient(server.URL)
	assert.NoError(t, client.CheckHealth(context.Background()))
}

func TestStatsClient_CheckHealth_Down(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewStatsClient(server.URL)
	err := client.CheckHealth(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status code 503")
}

func TestFetchStatsCmd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(StatsSnapshot{
			Gather: GatherStats{Requests: 5},
		})
	}))
	defer server.Close()

	msg := fetchStats(server.URL)()
	snap, ok := msg.(statsMsg)
	require.True(t, ok, "expected statsMsg, got %T", msg)
	assert.Equal(t, int64(5), snap.Gather.Requests)
}

func TestFetchStatsCmd_Unreachable(t *testing.T) {
	msg := fetchStats("http://127.0.0.1:1")()
	_, ok := msg.(errMsg)
	require.True(t, ok, "expected errMsg, got %T", msg)
}
