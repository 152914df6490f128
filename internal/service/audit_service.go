package service

import (
	"context"
	"sync"
	"time"

	"price-tracker/internal/auth"
	"price-tracker/internal/models"
	"price-tracker/internal/store"
	"price-tracker/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuditStore is the storage surface the audit pipeline reconciles against.
type AuditStore interface {
	ApplyObservation(ctx context.Context, obs models.Observation) (*store.ReconcileResult, error)
}

// AuditEvents receives the events the pipeline emits for real changes.
type AuditEvents interface {
	PublishPriceChanged(ctx context.Context, event *models.PriceChangedEvent) error
	PublishProductDiscovered(ctx context.Context, event *models.ProductDiscoveredEvent) error
}

// AuditPipeline turns raw scraper observations into product updates and,
// when a price actually changed, exactly one history record. Reconciliations
// for the same product are serialized through a keyed mutex; different
// products reconcile fully in parallel.
type AuditPipeline struct {
	store  AuditStore
	events AuditEvents
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAuditPipeline creates a new audit pipeline. events may be nil when no
// broker is attached.
func NewAuditPipeline(store AuditStore, events AuditEvents) *AuditPipeline {
	return &AuditPipeline{
		store:  store,
		events: events,
		logger: util.GetLogger(),
		locks:  make(map[string]*sync.Mutex),
	}
}

func productKey(obs models.Observation) string {
	city := ""
	if obs.City != nil {
		city = *obs.City
	}
	return obs.MarketID + "|" + city + "|" + obs.Name
}

func (p *AuditPipeline) lockFor(key string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[key]
	if !ok {
		l = &sync.Mutex{}
		p.locks[key] = l
	}
	return l
}

// Reconcile applies one observation. It always executes under the service
// identity, regardless of what the surrounding context carries.
func (p *AuditPipeline) Reconcile(ctx context.Context, obs models.Observation) (*store.ReconcileResult, error) {
	ctx, span := util.StartSpan(ctx, "AuditPipeline.Reconcile")
	defer span.End()

	start := time.Now()
	defer func() {
		util.ReconcileLatency.Observe(time.Since(start).Seconds())
	}()

	ctx = auth.WithIdentity(ctx, auth.IdentityService)

	lock := p.lockFor(productKey(obs))
	lock.Lock()
	defer lock.Unlock()

	res, err := p.store.ApplyObservation(ctx, obs)
	if err != nil {
		util.ReconcileErrorsTotal.Inc()
		return nil, err
	}

	switch {
	case res.Created:
		util.ProductsDiscoveredTotal.Inc()
		p.publishDiscovered(ctx, res)
	case res.Changed:
		util.PriceChangesTotal.Inc()
		p.logger.Info("Price change recorded",
			zap.String("market", obs.MarketID),
			zap.String("product", obs.Name),
			zap.Int64("old_cents", res.OldPriceCents),
			zap.Int64("new_cents", res.Product.PriceCents))
		p.publishChanged(ctx, res)
	default:
		util.ReconcileNoopTotal.Inc()
	}

	return res, nil
}

// ReconcileAll applies a job's observation list, continuing past individual
// failures so one bad row never discards the rest of the batch. It returns
// the number of observations that failed.
func (p *AuditPipeline) ReconcileAll(ctx context.Context, observations []models.Observation) int {
	failed := 0
	for i, obs := range observations {
		if ctx.Err() != nil {
			return failed + len(observations) - i
		}
		if _, err := p.Reconcile(ctx, obs); err != nil {
			failed++
			p.logger.Error("Failed to reconcile observation",
				zap.String("market", obs.MarketID),
				zap.String("product", obs.Name),
				zap.Error(err))
		}
	}
	return failed
}

func (p *AuditPipeline) publishDiscovered(ctx context.Context, res *store.ReconcileResult) {
	if p.events == nil {
		return
	}
	event := &models.ProductDiscoveredEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeProductDiscovered,
			Timestamp: time.Now(),
		},
		ProductID:  res.Product.ID,
		MarketID:   res.Product.MarketID,
		City:       res.Product.City,
		Name:       res.Product.Name,
		PriceCents: res.Product.PriceCents,
	}
	if err := p.events.PublishProductDiscovered(ctx, event); err != nil {
		p.logger.Error("Failed to publish ProductDiscovered event", zap.Error(err))
	}
}

func (p *AuditPipeline) publishChanged(ctx context.Context, res *store.ReconcileResult) {
	if p.events == nil {
		return
	}
	event := &models.PriceChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePriceChanged,
			Timestamp: time.Now(),
		},
		ProductID:     res.Product.ID,
		MarketID:      res.Product.MarketID,
		City:          res.Product.City,
		ProductName:   res.Product.Name,
		OldPriceCents: res.OldPriceCents,
		NewPriceCents: res.Product.PriceCents,
	}
	if err := p.events.PublishPriceChanged(ctx, event); err != nil {
		p.logger.Error("Failed to publish PriceChanged event", zap.Error(err))
	}
}
