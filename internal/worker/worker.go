package worker

import (
	"context"
	"log"
	"time"

	"price-tracker/internal/auth"
	"price-tracker/internal/broker"
	"price-tracker/internal/models"
	"price-tracker/internal/orchestrator"
	"price-tracker/internal/store"
	"price-tracker/internal/util"

	"go.uber.org/zap"
)

// ScheduleWorker drives the orchestrator off a single periodic tick. The
// tick is the scheduler's only wake point; nothing here is request-driven.
type ScheduleWorker struct {
	orchestrator *orchestrator.Orchestrator
	tick         time.Duration
	logger       *zap.Logger
	stopChan     chan struct{}
}

// NewScheduleWorker creates a new schedule worker
func NewScheduleWorker(o *orchestrator.Orchestrator, tick time.Duration) *ScheduleWorker {
	if tick <= 0 {
		tick = time.Minute
	}
	return &ScheduleWorker{
		orchestrator: o,
		tick:         tick,
		logger:       util.GetLogger(),
		stopChan:     make(chan struct{}),
	}
}

// Start runs the tick loop until the context is cancelled or Stop is
// called. Daily runs and a due full sweep may overlap in real time; the
// orchestrator's per-market serialization keeps that safe.
func (w *ScheduleWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting schedule worker", zap.Duration("tick", w.tick))

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopChan:
			return nil
		case <-ticker.C:
			now := time.Now()
			if w.orchestrator.IsFullSweepDue(ctx, now) {
				go w.orchestrator.RunFullSweep(ctx, now)
			}
			w.orchestrator.RunDueWork(ctx, now)
		}
	}
}

// Stop stops the worker
func (w *ScheduleWorker) Stop() {
	close(w.stopChan)
}

// ReportWorker consumes JobFailed events and records them so exhausted
// retries surface to operators instead of vanishing into logs.
type ReportWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
	logger       *zap.Logger
}

// NewReportWorker creates a new report worker
func NewReportWorker(consumer *broker.Consumer, st *store.Store) *ReportWorker {
	w := &ReportWorker{
		consumer: consumer,
		store:    st,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnJobFailed(w.handleJobFailed)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *ReportWorker) Start(ctx context.Context) error {
	log.Println("Starting report worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ReportWorker) Stop() error {
	log.Println("Stopping report worker...")
	return w.consumer.Close()
}

func (w *ReportWorker) handleJobFailed(ctx context.Context, event *models.JobFailedEvent) error {
	w.logger.Warn("Recording terminal scrape failure",
		zap.String("market", event.MarketID),
		zap.String("reason", event.Reason))

	ctx = auth.WithIdentity(ctx, auth.IdentityService)
	return w.store.RecordScrapeFailure(ctx, &models.ScrapeFailure{
		MarketID:   event.MarketID,
		City:       event.City,
		Reason:     event.Reason,
		Attempts:   event.Attempts,
		RecordedAt: event.Timestamp,
	})
}
