package orchestrator

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"price-tracker/internal/models"
	"price-tracker/internal/registry"
	"price-tracker/internal/scraper"
	"price-tracker/internal/schedule"
	"price-tracker/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reconciler consumes a job's observations. Implemented by the audit
// pipeline.
type Reconciler interface {
	ReconcileAll(ctx context.Context, observations []models.Observation) int
}

// JobEvents receives orchestrator events. May be nil when no broker is
// attached.
type JobEvents interface {
	PublishJobFailed(ctx context.Context, event *models.JobFailedEvent) error
	PublishSweepCompleted(ctx context.Context, event *models.SweepCompletedEvent) error
}

// SweepLock is the optional distributed-lock surface of the scheduler state
// store. When the store provides it (the Redis client does, the in-memory
// store does not), the weekly sweep is additionally guarded against
// concurrent scheduler instances racing for the same fire.
type SweepLock interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

const (
	sweepLockKey = "fullsweep"
	sweepLockTTL = 2 * time.Hour
)

// Config are the dispatch and retry knobs.
type Config struct {
	WorkerPoolCeiling int
	RetryBudget       int
	BackoffBase       time.Duration
	JobTimeout        time.Duration
}

// Orchestrator expands fired schedule entries into scrape jobs and runs
// them against a bounded worker pool. Jobs for different markets run
// concurrently; a market's own jobs run one at a time, also across
// overlapping daily and full-sweep runs.
type Orchestrator struct {
	registry *registry.Registry
	rotation *schedule.Rotation
	slots    *schedule.SlotScheduler
	state    schedule.StateStore
	scrapers *scraper.Registry
	audit    Reconciler
	events   JobEvents
	cfg      Config
	logger   *zap.Logger
	lock     SweepLock

	mu          sync.Mutex
	marketLocks map[string]*sync.Mutex
	sweepMu     sync.Mutex
}

func New(reg *registry.Registry, rot *schedule.Rotation, slots *schedule.SlotScheduler, state schedule.StateStore, scrapers *scraper.Registry, audit Reconciler, events JobEvents, cfg Config) *Orchestrator {
	if cfg.WorkerPoolCeiling <= 0 {
		cfg.WorkerPoolCeiling = 5
	}
	if cfg.RetryBudget <= 0 {
		cfg.RetryBudget = 3
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	lock, _ := state.(SweepLock)
	return &Orchestrator{
		registry:    reg,
		rotation:    rot,
		slots:       slots,
		state:       state,
		scrapers:    scrapers,
		audit:       audit,
		events:      events,
		cfg:         cfg,
		logger:      util.GetLogger(),
		lock:        lock,
		marketLocks: make(map[string]*sync.Mutex),
	}
}

// RunDueWork evaluates which schedule entries have fired at now, expands
// them into jobs (one per rotation city for city-scoped markets, exactly
// one otherwise) and executes them. It returns once every expanded job has
// reached a terminal status.
func (o *Orchestrator) RunDueWork(ctx context.Context, now time.Time) {
	ctx, span := util.StartSpan(ctx, "Orchestrator.RunDueWork")
	defer span.End()

	dayCities := o.rotation.CitiesForDay(int(now.Weekday()))

	batch := make(map[string][]*models.ScrapeJob)
	fires := make(map[string]time.Time)

	for _, m := range o.registry.Markets() {
		due, fire, err := o.slots.IsDue(ctx, m.ID, now)
		if err != nil {
			o.logger.Error("Failed to evaluate schedule entry",
				zap.String("market", m.ID), zap.Error(err))
			continue
		}
		if !due {
			continue
		}
		batch[m.ID] = o.expand(m, dayCities, now, false)
		fires[m.ID] = fire
	}

	if len(batch) == 0 {
		return
	}

	o.dispatch(ctx, batch, fires)
}

// RunFullSweep runs the weekly comprehensive pass: every market, every
// city, ignoring the daily rotation buckets. It may overlap a daily run;
// per-market locks keep work on any one market serialized.
func (o *Orchestrator) RunFullSweep(ctx context.Context, now time.Time) {
	ctx, span := util.StartSpan(ctx, "Orchestrator.RunFullSweep")
	defer span.End()

	release, ok := o.claimSweep(ctx, now)
	if !ok {
		return
	}
	defer release()

	o.logger.Info("Starting comprehensive full sweep")
	util.FullSweepsTotal.Inc()

	allCities := o.registry.Cities()
	batch := make(map[string][]*models.ScrapeJob)
	for _, m := range o.registry.Markets() {
		batch[m.ID] = o.expand(m, allCities, now, true)
	}

	succeeded, failed := o.dispatch(ctx, batch, nil)

	o.logger.Info("Full sweep completed",
		zap.Int("succeeded", succeeded), zap.Int("failed", failed))

	if o.events != nil {
		event := &models.SweepCompletedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeSweepCompleted,
				Timestamp: time.Now(),
			},
			JobsTotal:     succeeded + failed,
			JobsSucceeded: succeeded,
			JobsFailed:    failed,
		}
		if err := o.events.PublishSweepCompleted(ctx, event); err != nil {
			o.logger.Error("Failed to publish SweepCompleted event", zap.Error(err))
		}
	}
}

// claimSweep re-checks that the sweep fire is still unclaimed and records
// it before any job is dispatched. A fleet-sized sweep outlives the
// scheduler tick by a wide margin, so claiming up front is what keeps later
// ticks from expanding the same fire again while this run is in flight. The
// returned release func drops the distributed lock, if one is held.
func (o *Orchestrator) claimSweep(ctx context.Context, now time.Time) (func(), bool) {
	o.sweepMu.Lock()
	defer o.sweepMu.Unlock()

	due, fire, err := o.slots.IsFullSweepDue(ctx, now)
	if err != nil {
		o.logger.Error("Failed to evaluate full sweep schedule", zap.Error(err))
		return nil, false
	}
	if !due {
		return nil, false
	}

	release := func() {}
	if o.lock != nil {
		acquired, err := o.lock.AcquireLock(ctx, sweepLockKey, sweepLockTTL)
		if err != nil {
			o.logger.Error("Failed to acquire sweep lock", zap.Error(err))
			return nil, false
		}
		if !acquired {
			// Another scheduler instance owns this fire.
			return nil, false
		}
		release = func() {
			if err := o.lock.ReleaseLock(ctx, sweepLockKey); err != nil {
				o.logger.Error("Failed to release sweep lock", zap.Error(err))
			}
		}
	}

	if err := o.state.SetLastRun(ctx, schedule.FullSweepKey, fire); err != nil {
		o.logger.Error("Failed to record full sweep run", zap.Error(err))
		release()
		return nil, false
	}
	return release, true
}

// IsFullSweepDue reports whether the weekly sweep should run at now.
func (o *Orchestrator) IsFullSweepDue(ctx context.Context, now time.Time) bool {
	due, _, err := o.slots.IsFullSweepDue(ctx, now)
	if err != nil {
		o.logger.Error("Failed to evaluate full sweep schedule", zap.Error(err))
		return false
	}
	return due
}

func (o *Orchestrator) expand(m models.Market, cities []models.City, now time.Time, fullSweep bool) []*models.ScrapeJob {
	if !m.CityScoped {
		return []*models.ScrapeJob{{
			ID:          uuid.New().String(),
			MarketID:    m.ID,
			RequestedAt: now,
			Status:      models.JobStatusPending,
			FullSweep:   fullSweep,
		}}
	}
	jobs := make([]*models.ScrapeJob, 0, len(cities))
	for i := range cities {
		city := cities[i]
		jobs = append(jobs, &models.ScrapeJob{
			ID:          uuid.New().String(),
			MarketID:    m.ID,
			City:        &city,
			RequestedAt: now,
			Status:      models.JobStatusPending,
			FullSweep:   fullSweep,
		})
	}
	return jobs
}

// dispatch runs one batch of jobs grouped by market. Different markets run
// concurrently up to the pool ceiling; within a market jobs run one at a
// time. When fires is non-nil, each market's last-run time is recorded
// after its jobs finish, terminal failures included, so a broken market is
// reported once per slot rather than re-fired every tick.
func (o *Orchestrator) dispatch(ctx context.Context, batch map[string][]*models.ScrapeJob, fires map[string]time.Time) (succeeded, failed int) {
	concurrency := o.cfg.WorkerPoolCeiling
	if len(batch) < concurrency {
		concurrency = len(batch)
	}
	sem := make(chan struct{}, concurrency)

	var mu sync.Mutex
	var wg sync.WaitGroup

	for marketID, jobs := range batch {
		wg.Add(1)
		go func(marketID string, jobs []*models.ScrapeJob) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			lock := o.marketLock(marketID)
			lock.Lock()
			defer lock.Unlock()

			var ok, bad int
			for _, job := range jobs {
				if o.runJob(ctx, job) {
					ok++
				} else {
					bad++
				}
			}

			mu.Lock()
			succeeded += ok
			failed += bad
			mu.Unlock()

			if fires != nil {
				if fire, has := fires[marketID]; has {
					if err := o.state.SetLastRun(ctx, schedule.MarketKey(marketID), fire); err != nil {
						o.logger.Error("Failed to record market run",
							zap.String("market", marketID), zap.Error(err))
					}
				}
			}
		}(marketID, jobs)
	}

	wg.Wait()
	return succeeded, failed
}

// runJob drives one job through its state machine. Returns true when the
// job succeeded, false when it exhausted its retry budget or hit a
// non-retryable failure.
func (o *Orchestrator) runJob(ctx context.Context, job *models.ScrapeJob) bool {
	util.JobsDispatchedTotal.WithLabelValues(job.MarketID).Inc()
	job.Status = models.JobStatusRunning

	var lastErr error
	for attempt := 1; attempt <= o.cfg.RetryBudget; attempt++ {
		job.Attempts = attempt
		job.Status = models.JobStatusRunning

		observations, err := o.fetchOnce(ctx, job)
		if err == nil {
			if bad := o.audit.ReconcileAll(ctx, observations); bad > 0 {
				o.logger.Warn("Some observations failed to reconcile",
					zap.String("market", job.MarketID), zap.Int("failed", bad))
			}
			job.Status = models.JobStatusSucceeded
			util.JobsSucceededTotal.WithLabelValues(job.MarketID).Inc()
			return true
		}

		lastErr = err
		if errors.Is(err, scraper.ErrMarketUnavailable) {
			// No point retrying this cycle.
			break
		}
		if ctx.Err() != nil {
			break
		}
		if attempt < o.cfg.RetryBudget {
			job.Status = models.JobStatusRetrying
			util.JobRetriesTotal.WithLabelValues(job.MarketID).Inc()
			o.logger.Warn("Scrape job failed, will retry",
				zap.String("market", job.MarketID),
				zap.String("job_id", job.ID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			if !sleepCtx(ctx, o.backoff(attempt)) {
				break
			}
		}
	}

	job.Status = models.JobStatusFailed
	o.reportFailure(ctx, job, lastErr)
	return false
}

func (o *Orchestrator) fetchOnce(ctx context.Context, job *models.ScrapeJob) ([]models.Observation, error) {
	market, err := o.registry.Config(job.MarketID)
	if err != nil {
		return nil, err
	}
	s, err := o.scrapers.For(job.MarketID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		util.JobDuration.WithLabelValues(job.MarketID).Observe(time.Since(start).Seconds())
	}()

	// A job exceeding the hard timeout is cancelled and counts as a
	// failed attempt.
	fetchCtx, cancel := context.WithTimeout(ctx, o.cfg.JobTimeout)
	defer cancel()

	return s.Fetch(fetchCtx, market, job.City, market.MaxCategories, market.MaxProductsPerRun)
}

func (o *Orchestrator) reportFailure(ctx context.Context, job *models.ScrapeJob, cause error) {
	reason := "unknown"
	if cause != nil {
		reason = cause.Error()
	}

	var city *string
	if job.City != nil {
		city = &job.City.Name
	}

	o.logger.Error("Scrape job exhausted retries",
		zap.String("market", job.MarketID),
		zap.String("job_id", job.ID),
		zap.Int("attempts", job.Attempts),
		zap.String("reason", reason))
	util.JobsFailedTotal.WithLabelValues(job.MarketID, failureClass(cause)).Inc()

	if o.events == nil {
		return
	}
	event := &models.JobFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeJobFailed,
			Timestamp: time.Now(),
		},
		JobID:    job.ID,
		MarketID: job.MarketID,
		City:     city,
		Reason:   reason,
		Attempts: job.Attempts,
	}
	if err := o.events.PublishJobFailed(ctx, event); err != nil {
		o.logger.Error("Failed to publish JobFailed event", zap.Error(err))
	}
}

func failureClass(err error) string {
	switch {
	case err == nil:
		return "unknown"
	case errors.Is(err, scraper.ErrMarketUnavailable):
		return "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "transient"
	}
}

// backoff returns the exponential delay before the next attempt, jittered
// to avoid thundering-herd re-attempts after a shared outage.
func (o *Orchestrator) backoff(attempt int) time.Duration {
	d := o.cfg.BackoffBase << (attempt - 1)
	if d <= 0 {
		return 0
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

func (o *Orchestrator) marketLock(marketID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.marketLocks[marketID]
	if !ok {
		l = &sync.Mutex{}
		o.marketLocks[marketID] = l
	}
	return l
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
