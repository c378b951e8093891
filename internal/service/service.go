package service

import (
	"context"
	"errors"
	"time"

	"vendor-service/internal/models"
	"vendor-service/internal/reliability"
	"vendor-service/internal/store"

	"github.com/google/uuid"
)

// ErrSupplierBusy is returned when another operation is writing the same supplier
var ErrSupplierBusy = errors.New("supplier is being updated by another operation")

// SupplierStore persists suppliers and their ledgers
type SupplierStore interface {
	CreateSupplier(ctx context.Context, supplier *reliability.Supplier) error
	GetSupplier(ctx context.Context, id uuid.UUID) (*reliability.Supplier, error)
	ListSuppliers(ctx context.Context, f store.SupplierFilter) ([]*reliability.Supplier, int64, error)
	UpdateSupplierTx(ctx context.Context, id uuid.UUID, mutate store.MutateFunc) (*reliability.Supplier, reliability.PurchaseOrder, error)
	SetDeliveryRating(ctx context.Context, id uuid.UUID, rating float64) error
	DeleteSupplier(ctx context.Context, id uuid.UUID) error
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// Cache holds the single-writer lock, cached read models and idempotency keys.
// Cached views are written only if their version is unchanged, so a view
// loaded before a write is never stored after it.
type Cache interface {
	WithSupplierLock(ctx context.Context, supplierID uuid.UUID, ttl time.Duration, fn func() error) error
	ScorecardVersion(ctx context.Context, supplierID uuid.UUID) (int64, error)
	GetScorecard(ctx context.Context, supplierID uuid.UUID) ([]byte, error)
	SetScorecard(ctx context.Context, supplierID uuid.UUID, version int64, payload []byte, ttl time.Duration) (bool, error)
	InvalidateSupplier(ctx context.Context, supplierID uuid.UUID) error
	DashboardVersion(ctx context.Context) (int64, error)
	GetDashboard(ctx context.Context) ([]byte, error)
	SetDashboard(ctx context.Context, version int64, payload []byte, ttl time.Duration) (bool, error)
	ReserveIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error)
	GetIdempotencyKey(ctx context.Context, key string) (string, error)
	SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

// EventPublisher publishes supplier lifecycle events
type EventPublisher interface {
	PublishSupplierRegistered(ctx context.Context, event *models.SupplierRegisteredEvent) error
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishDeliveryConfirmed(ctx context.Context, event *models.DeliveryConfirmedEvent) error
	PublishSupplierRemoved(ctx context.Context, event *models.SupplierRemovedEvent) error
}

// Options tunes lock and cache lifetimes
type Options struct {
	LockTTL        time.Duration
	ScorecardTTL   time.Duration
	DashboardTTL   time.Duration
	IdempotencyTTL time.Duration
}

// DefaultOptions returns the lifetimes used when configuration is absent
func DefaultOptions() Options {
	return Options{
		LockTTL:        10 * time.Second,
		ScorecardTTL:   5 * time.Minute,
		DashboardTTL:   30 * time.Second,
		IdempotencyTTL: 24 * time.Hour,
	}
}
