package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"vendor-service/internal/models"
	"vendor-service/internal/redisclient"
	"vendor-service/internal/reliability"
	"vendor-service/internal/store"

	"github.com/google/uuid"
)

type storedSupplier struct {
	state  reliability.State
	orders []reliability.PurchaseOrder
}

// memoryStore mirrors the transactional behaviour of store.Store in memory.
// Order dates are kept at day resolution like the DATE columns.
type memoryStore struct {
	mu        sync.Mutex
	suppliers map[uuid.UUID]storedSupplier
	processed map[string]bool
	createErr error

	// afterGet and afterList run once, after a read and before it returns
	afterGet  func()
	afterList func()
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		suppliers: make(map[uuid.UUID]storedSupplier),
		processed: make(map[string]bool),
	}
}

func (m *memoryStore) put(st reliability.State, orders []reliability.PurchaseOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suppliers[st.ID] = storedSupplier{state: st, orders: dateColumns(orders)}
}

func dateColumns(orders []reliability.PurchaseOrder) []reliability.PurchaseOrder {
	day := func(t time.Time) time.Time { return t.UTC().Truncate(24 * time.Hour) }
	out := make([]reliability.PurchaseOrder, 0, len(orders))
	for _, o := range orders {
		o.OrderDate = day(o.OrderDate)
		o.ExpectedDate = day(o.ExpectedDate)
		if o.ActualDate != nil {
			actual := day(*o.ActualDate)
			o.ActualDate = &actual
		}
		out = append(out, o)
	}
	return out
}

// storedReliability is the reliability persisted on the supplier row
func (m *memoryStore) storedReliability(id uuid.UUID) reliability.Reliability {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suppliers[id].state.Reliability
}

func (m *memoryStore) CreateSupplier(_ context.Context, s *reliability.Supplier) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.put(s.State(), s.Orders())
	return nil
}

func (m *memoryStore) GetSupplier(_ context.Context, id uuid.UUID) (*reliability.Supplier, error) {
	m.mu.Lock()
	rec, ok := m.suppliers[id]
	hook := m.afterGet
	m.afterGet = nil
	m.mu.Unlock()

	if !ok {
		return nil, reliability.ErrNotFound
	}
	s, err := reliability.Restore(rec.state, rec.orders)
	if hook != nil {
		hook()
	}
	return s, err
}

func (m *memoryStore) ListSuppliers(_ context.Context, f store.SupplierFilter) ([]*reliability.Supplier, int64, error) {
	out, total, err := m.list(f)

	m.mu.Lock()
	hook := m.afterList
	m.afterList = nil
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	return out, total, err
}

func (m *memoryStore) list(f store.SupplierFilter) ([]*reliability.Supplier, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*reliability.Supplier
	for _, rec := range m.suppliers {
		if f.Category != "" && rec.state.Category != f.Category {
			continue
		}
		s, err := reliability.Restore(rec.state, nil)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	total := int64(len(out))
	if f.Limit > 0 {
		end := f.Offset + f.Limit
		if f.Offset > len(out) {
			f.Offset = len(out)
		}
		if end > len(out) {
			end = len(out)
		}
		out = out[f.Offset:end]
	}
	return out, total, nil
}

func (m *memoryStore) UpdateSupplierTx(_ context.Context, id uuid.UUID, mutate store.MutateFunc) (*reliability.Supplier, reliability.PurchaseOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.suppliers[id]
	if !ok {
		return nil, reliability.PurchaseOrder{}, reliability.ErrNotFound
	}
	s, err := reliability.Restore(rec.state, rec.orders)
	if err != nil {
		return nil, reliability.PurchaseOrder{}, err
	}
	order, err := mutate(s)
	if err != nil {
		return nil, reliability.PurchaseOrder{}, err
	}
	m.suppliers[id] = storedSupplier{state: s.State(), orders: dateColumns(s.Orders())}
	return s, order, nil
}

func (m *memoryStore) SetDeliveryRating(_ context.Context, id uuid.UUID, rating float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.suppliers[id]
	if !ok {
		return reliability.ErrNotFound
	}
	rec.state.DeliveryRating = &rating
	m.suppliers[id] = rec
	return nil
}

func (m *memoryStore) DeleteSupplier(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.suppliers[id]; !ok {
		return reliability.ErrNotFound
	}
	delete(m.suppliers, id)
	return nil
}

func (m *memoryStore) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processed[eventID], nil
}

func (m *memoryStore) MarkEventProcessed(_ context.Context, eventID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed[eventID] = true
	return nil
}

type memoryCache struct {
	mu               sync.Mutex
	held             map[uuid.UUID]bool
	lockErr          error
	scorecards       map[uuid.UUID][]byte
	versions         map[uuid.UUID]int64
	dashboard        []byte
	dashboardVersion int64
	idempotency      map[string]string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		held:        make(map[uuid.UUID]bool),
		scorecards:  make(map[uuid.UUID][]byte),
		versions:    make(map[uuid.UUID]int64),
		idempotency: make(map[string]string),
	}
}

func (c *memoryCache) WithSupplierLock(_ context.Context, id uuid.UUID, _ time.Duration, fn func() error) error {
	c.mu.Lock()
	if c.lockErr != nil {
		c.mu.Unlock()
		return c.lockErr
	}
	if c.held[id] {
		c.mu.Unlock()
		return redisclient.ErrLockHeld
	}
	c.held[id] = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.held, id)
		c.mu.Unlock()
	}()
	return fn()
}

func (c *memoryCache) ScorecardVersion(_ context.Context, id uuid.UUID) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[id], nil
}

func (c *memoryCache) GetScorecard(_ context.Context, id uuid.UUID) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scorecards[id], nil
}

func (c *memoryCache) SetScorecard(_ context.Context, id uuid.UUID, version int64, payload []byte, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[id] != version {
		return false, nil
	}
	c.scorecards[id] = payload
	return true, nil
}

func (c *memoryCache) InvalidateSupplier(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[id]++
	c.dashboardVersion++
	delete(c.scorecards, id)
	c.dashboard = nil
	return nil
}

func (c *memoryCache) DashboardVersion(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dashboardVersion, nil
}

func (c *memoryCache) GetDashboard(context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dashboard, nil
}

func (c *memoryCache) SetDashboard(_ context.Context, version int64, payload []byte, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dashboardVersion != version {
		return false, nil
	}
	c.dashboard = payload
	return true, nil
}

func (c *memoryCache) ReserveIdempotencyKey(_ context.Context, key string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.idempotency[key]; ok {
		return false, nil
	}
	c.idempotency[key] = redisclient.IdempotencyPending
	return true, nil
}

func (c *memoryCache) GetIdempotencyKey(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idempotency[key], nil
}

func (c *memoryCache) SetIdempotencyKey(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.idempotency[key] = value.(string)
	return nil
}

func (c *memoryCache) ReleaseIdempotencyKey(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.idempotency, key)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *recordingPublisher) record(eventType string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return p.err
}

func (p *recordingPublisher) PublishSupplierRegistered(_ context.Context, e *models.SupplierRegisteredEvent) error {
	return p.record(e.EventType)
}

func (p *recordingPublisher) PublishOrderPlaced(_ context.Context, e *models.OrderPlacedEvent) error {
	return p.record(e.EventType)
}

func (p *recordingPublisher) PublishDeliveryConfirmed(_ context.Context, e *models.DeliveryConfirmedEvent) error {
	return p.record(e.EventType + ":" + e.Status)
}

func (p *recordingPublisher) PublishSupplierRemoved(_ context.Context, e *models.SupplierRemovedEvent) error {
	return p.record(e.EventType)
}

var errRedisDown = errors.New("dial tcp: connection refused")
