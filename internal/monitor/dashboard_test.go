package monitor

import (
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestNewModel(t *testing.T) {
	model := NewModel("http://localhost:8091", 5*time.Second)
	assert.Equal(t, "http://localhost:8091", model.serverURL)
	assert.Equal(t, 5*time.Second, model.interval)
	assert.False(t, model.quitting)
}

func TestModel_Init(t *testing.T) {
	model := NewModel("http://localhost:8091", 5*time.Second)
	cmd := model.Init()
	assert.NotNil(t, cmd)
}

func TestModel_Update_QuitKey(t *testing.T) {
	model := NewModel("http://localhost:8091", 5*time.Second)

	keyMsg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}
	updatedModel, cmd := model.Update(keyMsg)

	m := updatedModel.(Model)
	assert.True(t, m.quitting)
	assert.NotNil(t, cmd)
}

func TestModel_Update_RefreshKey(t *testing.T) {
	model := NewModel("http://localhost:8091", 5*time.Second)

	keyMsg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}}
	updatedModel, cmd := model.Update(keyMsg)

	m := updatedModel.(Model)
	assert.False(t, m.quitting)
	assert.NotNil(t, cmd)
}

func TestModel_Update_TickMsg(t *testing.T) {
	model := NewModel("http://localhost:8091", 5*time.Second)

	msg := tickMsg(time.Now())
	updatedModel, cmd := model.Update(msg)

	m := updatedModel.(Model)
	assert.False(t, m.quitting)
	assert.NotNil(t, cmd)
}

func TestModel_Update_StatsMsg(t *testing.T) {
	model := NewModel("http://localhost:8091", 5*time.Second)

	msg := statsMsg(StatsSnapshot{
		Gather: GatherStats{Requests: 40, CacheHits: 10},
		Cache:  CacheStats{Entries: 5, Hits: 10, Misses: 30},
	})
	updatedModel, cmd := model.Update(msg)

	m := updatedModel.(Model)
	assert.Equal(t, int64(40), m.stats.Gather.Requests)
	assert.Equal(t, 5, m.stats.Cache.Entries)
	assert.False(t, m.lastUpdate.IsZero())
	assert.True(t, m.havePrev)
	assert.Nil(t, cmd)
}

func TestModel_Update_RateFromCounterDelta(t *testing.T) {
	model := NewModel("http://localhost:8091", time.Minute)

	first, _ := model.Update(statsMsg(StatsSnapshot{
		Gather: GatherStats{Requests: 100},
	}))
	second, _ := first.(Model).Update(statsMsg(StatsSnapshot{
		Gather: GatherStats{Requests: 130},
	}))

	m := second.(Model)
	assert.InDelta(t, 30.0, m.rate, 0.001)
}

func TestModel_Update_CounterResetClampsRate(t *testing.T) {
	model := NewModel("http://localhost:8091", time.Minute)

	first, _ := model.Update(statsMsg(StatsSnapshot{
		Gather: GatherStats{Requests: 500},
	}))
	second, _ := first.(Model).Update(statsMsg(StatsSnapshot{
		Gather: GatherStats{Requests: 3},
	}))

	m := second.(Model)
	assert.Equal(t, 0.0, m.rate)
}

func TestModel_Update_ErrMsg(t *testing.T) {
	model := NewModel("http://localhost:8091", 5*time.Second)

	msg := errMsg(fmt.Errorf("connection refused"))
	updatedModel, cmd := model.Update(msg)

	m := updatedModel.(Model)
	assert.NotNil(t, m.err)
	assert.Contains(t, m.err.Error(), "connection refused")
	assert.Nil(t, cmd)
}

func TestModel_View_WithStats(t *testing.T) {
	model := NewModel("http://localhost:8091", 5*time.Second)
	model.stats = StatsSnapshot{
		Gather: GatherStats{
			Requests:          1200,
			CacheHits:         800,
			GlobalTimeouts:    2,
			RequiredFailures:  1,
			CollectorWarnings: 17,
		},
		Cache: CacheStats{Entries: 42, Hits: 800, Misses: 400, Expired: 9, Evictions: 3},
	}
	model.rate = 45.7
	model.lastUpdate = time.Date(2024, 1, 1, 12, 34, 56, 0, time.UTC)

	view := model.View()

	assert.Contains(t, view, "gatherd Monitor")
	assert.Contains(t, view, "12:34:56")
	assert.Contains(t, view, "Gather Runs")
	assert.Contains(t, view, "45.7 req/min")
	assert.Contains(t, view, "Aggregate Cache")
	assert.Contains(t, view, "66.7%")
	assert.Contains(t, view, "42")
	assert.Contains(t, view, "Collector Warnings")
	assert.Contains(t, view, "[q]")
	assert.Contains(t, view, "[r]")
}

func TestModel_View_WithError(t *testing.T) {
	model := NewModel("http://localhost:8091", 5*time.Second)
	model.err = fmt.Errorf("connection refused")

	view := model.View()

	assert.Contains(t, view, "Cannot connect to gatherd")
	assert.Contains(t, view, "connection refused")
	assert.Contains(t, view, "http://localhost:8091")
	assert.Contains(t, view, "[q]")
	assert.Contains(t, view, "[r]")
}

func TestModel_View_NoData(t *testing.T) {
	model := NewModel("http://localhost:8091", 5*time.Second)

	view := model.View()

	assert.Contains(t, view, "gatherd Monitor")
	assert.Contains(t, view, "[q]")
}

func TestStatsSnapshot_Rates(t *testing.T) {
	snap := StatsSnapshot{
		Gather: GatherStats{Requests: 100, GlobalTimeouts: 3, RequiredFailures: 1, FinalizeFailures: 1},
		Cache:  CacheStats{Hits: 30, Misses: 70},
	}
	assert.InDelta(t, 0.3, snap.HitRate(), 0.001)
	assert.InDelta(t, 0.05, snap.FailureRate(), 0.001)

	empty := StatsSnapshot{}
	assert.Equal(t, 0.0, empty.HitRate())
	assert.Equal(t, 0.0, empty.FailureRate())
}
