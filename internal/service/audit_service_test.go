package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"price-tracker/internal/auth"
	"price-tracker/internal/models"
	"price-tracker/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryAuditStore is an in-memory AuditStore implementing the same
// reconcile contract as the SQL store, for deterministic unit tests.
type memoryAuditStore struct {
	mu       sync.Mutex
	nextID   int64
	products map[string]*models.Product
	history  map[int64][]models.PriceHistoryRecord
	inFlight map[string]bool
	overlaps int
}

func newMemoryAuditStore() *memoryAuditStore {
	return &memoryAuditStore{
		products: make(map[string]*models.Product),
		history:  make(map[int64][]models.PriceHistoryRecord),
		inFlight: make(map[string]bool),
	}
}

func (m *memoryAuditStore) ApplyObservation(ctx context.Context, obs models.Observation) (*store.ReconcileResult, error) {
	if err := auth.Check(ctx, auth.OpWriteProduct); err != nil {
		return nil, err
	}

	key := productKey(obs)

	m.mu.Lock()
	if m.inFlight[key] {
		m.overlaps++
	}
	m.inFlight[key] = true
	m.mu.Unlock()

	// Window where a second writer for the same product would be visible.
	time.Sleep(time.Millisecond)

	m.mu.Lock()
	defer func() {
		m.inFlight[key] = false
		m.mu.Unlock()
	}()

	p, ok := m.products[key]
	if !ok {
		m.nextID++
		p = &models.Product{
			ID:         m.nextID,
			Name:       obs.Name,
			Category:   obs.Category,
			MarketID:   obs.MarketID,
			City:       obs.City,
			PriceCents: obs.PriceCents,
			Quantity:   obs.Quantity,
			CreatedAt:  obs.ObservedAt,
			UpdatedAt:  obs.ObservedAt,
		}
		m.products[key] = p
		return &store.ReconcileResult{Product: *p, Created: true}, nil
	}

	if p.PriceCents == obs.PriceCents {
		return &store.ReconcileResult{Product: *p}, nil
	}

	old := p.PriceCents
	p.PriceCents = obs.PriceCents
	p.UpdatedAt = obs.ObservedAt
	m.history[p.ID] = append(m.history[p.ID], models.PriceHistoryRecord{
		ProductID:     p.ID,
		OldPriceCents: old,
		NewPriceCents: obs.PriceCents,
		RecordedAt:    obs.ObservedAt,
	})
	return &store.ReconcileResult{Product: *p, Changed: true, OldPriceCents: old}, nil
}

func milkObservation(price int64, at time.Time) models.Observation {
	return models.Observation{
		MarketID:   "lidl",
		Name:       "Milk 1L",
		Category:   "alimentacion",
		PriceCents: price,
		ObservedAt: at,
	}
}

func TestReconcileIdempotentForUnchangedPrice(t *testing.T) {
	ms := newMemoryAuditStore()
	p := NewAuditPipeline(ms, nil)
	ctx := context.Background()
	now := time.Now()

	res, err := p.Reconcile(ctx, milkObservation(120, now))
	require.NoError(t, err)
	assert.True(t, res.Created)

	res, err = p.Reconcile(ctx, milkObservation(120, now.Add(time.Hour)))
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.False(t, res.Changed)

	assert.Len(t, ms.products, 1)
	assert.Empty(t, ms.history[res.Product.ID])
}

func TestReconcileHistoryChainConsistency(t *testing.T) {
	ms := newMemoryAuditStore()
	p := NewAuditPipeline(ms, nil)
	ctx := context.Background()
	now := time.Now()

	// p1 -> p2 -> p3 must produce exactly two records, the second's old
	// price equal to p2.
	for i, price := range []int64{100, 150, 175} {
		_, err := p.Reconcile(ctx, milkObservation(price, now.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	history := ms.history[1]
	require.Len(t, history, 2)
	assert.Equal(t, int64(100), history[0].OldPriceCents)
	assert.Equal(t, int64(150), history[0].NewPriceCents)
	assert.Equal(t, int64(150), history[1].OldPriceCents)
	assert.Equal(t, int64(175), history[1].NewPriceCents)
}

func TestReconcileMilkScenario(t *testing.T) {
	// Observed at 1.20, then 1.20 again, then 1.35: one history record,
	// final price 1.35.
	ms := newMemoryAuditStore()
	p := NewAuditPipeline(ms, nil)
	ctx := context.Background()
	now := time.Now()

	for i, price := range []int64{120, 120, 135} {
		_, err := p.Reconcile(ctx, milkObservation(price, now.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	product := ms.products[productKey(milkObservation(0, now))]
	require.NotNil(t, product)
	assert.Equal(t, int64(135), product.PriceCents)

	history := ms.history[product.ID]
	require.Len(t, history, 1)
	assert.Equal(t, int64(120), history[0].OldPriceCents)
	assert.Equal(t, int64(135), history[0].NewPriceCents)
}

func TestReconcileSerializesPerProduct(t *testing.T) {
	ms := newMemoryAuditStore()
	p := NewAuditPipeline(ms, nil)
	ctx := context.Background()
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := p.Reconcile(ctx, milkObservation(int64(100+i), now))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Zero(t, ms.overlaps, "concurrent writers for the same product were not serialized")
	assert.Len(t, ms.products, 1)
}

func TestReconcileRunsUnderServiceIdentity(t *testing.T) {
	ms := newMemoryAuditStore()
	p := NewAuditPipeline(ms, nil)

	// Even a public caller context reconciles fine: the pipeline attaches
	// its own service identity before touching storage.
	ctx := auth.WithIdentity(context.Background(), auth.IdentityPublic)
	_, err := p.Reconcile(ctx, milkObservation(120, time.Now()))
	assert.NoError(t, err)
}

func TestReconcileAllContinuesPastFailures(t *testing.T) {
	ms := newMemoryAuditStore()
	p := NewAuditPipeline(ms, nil)
	ctx := context.Background()
	now := time.Now()

	observations := []models.Observation{
		milkObservation(120, now),
		{MarketID: "lidl", Name: "Eggs 12", PriceCents: 250, ObservedAt: now},
	}

	failed := p.ReconcileAll(ctx, observations)
	assert.Zero(t, failed)
	assert.Len(t, ms.products, 2)
}
