package worker

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"price-tracker/internal/models"
	"price-tracker/internal/orchestrator"
	"price-tracker/internal/registry"
	"price-tracker/internal/schedule"
	"price-tracker/internal/scraper"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dropReconciler struct{}

func (dropReconciler) ReconcileAll(context.Context, []models.Observation) int { return 0 }

type sweepCounter struct {
	mu     sync.Mutex
	sweeps int
}

func (c *sweepCounter) PublishJobFailed(context.Context, *models.JobFailedEvent) error { return nil }

func (c *sweepCounter) PublishSweepCompleted(context.Context, *models.SweepCompletedEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweeps++
	return nil
}

func (c *sweepCounter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweeps
}

func writeTestCatalog(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()

	marketsPath := filepath.Join(dir, "markets.json")
	markets, err := json.Marshal(map[string]interface{}{
		"markets": []models.Market{{ID: "lidl", Name: "Lidl", DefaultTimeSlot: "00:00"}},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(marketsPath, markets, 0o644))

	citiesPath := filepath.Join(dir, "cities.json")
	cities, err := json.Marshal([]models.City{{ID: "madrid", Name: "Madrid"}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(citiesPath, cities, 0o644))

	return marketsPath, citiesPath
}

// A sweep takes far longer than one tick here. The ticks that fire while it
// runs must not launch it again for the same weekly fire.
func TestTickLoopDoesNotRelaunchRunningSweep(t *testing.T) {
	marketsPath, citiesPath := writeTestCatalog(t)
	reg, err := registry.New(marketsPath, citiesPath, true)
	require.NoError(t, err)

	state := schedule.NewMemoryState()
	// Sweep scheduled for today at midnight, so it is due right now.
	slots, err := schedule.NewSlotScheduler(reg.Markets(), time.Minute, time.Now().Weekday(), "00:00", state)
	require.NoError(t, err)
	rot := schedule.NewRotation(reg.Cities(), 1)

	var mu sync.Mutex
	calls := 0
	scrapers := scraper.NewRegistry()
	scrapers.Register("lidl", scraper.Func(func(context.Context, models.Market, *models.City, int, int) ([]models.Observation, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		time.Sleep(150 * time.Millisecond)
		return nil, nil
	}))

	events := &sweepCounter{}
	orch := orchestrator.New(reg, rot, slots, state, scrapers, dropReconciler{}, events, orchestrator.Config{
		WorkerPoolCeiling: 2,
		RetryBudget:       1,
		BackoffBase:       time.Millisecond,
		JobTimeout:        time.Second,
	})

	w := NewScheduleWorker(orch, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	time.Sleep(600 * time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	assert.Equal(t, 1, events.count(), "one weekly fire must expand into exactly one sweep run")
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls, "one daily run and one sweep run")
}
