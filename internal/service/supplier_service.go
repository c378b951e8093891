package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vendor-service/internal/models"
	"vendor-service/internal/redisclient"
	"vendor-service/internal/reliability"
	"vendor-service/internal/store"
	"vendor-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// reservationTTL bounds how long an unfinished registration holds its key
const reservationTTL = time.Minute

// SupplierService exposes the supplier operations on top of the reliability engine
type SupplierService struct {
	store     SupplierStore
	cache     Cache
	publisher EventPublisher
	opts      Options
	logger    *zap.Logger
	now       func() time.Time
}

// NewSupplierService creates a new supplier service
func NewSupplierService(store SupplierStore, cache Cache, publisher EventPublisher, opts Options) *SupplierService {
	return &SupplierService{
		store:     store,
		cache:     cache,
		publisher: publisher,
		opts:      opts,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// RegisterSupplierRequest registers a supplier together with its first order
type RegisterSupplierRequest struct {
	Name           string           `json:"name" binding:"required"`
	Contact        string           `json:"contact" binding:"required"`
	Category       string           `json:"category" binding:"required"`
	MainProduct    string           `json:"main_product" binding:"required"`
	DeliveryRating *float64         `json:"delivery_rating,omitempty"`
	Price          *decimal.Decimal `json:"price" binding:"required"`
	OrderDate      string           `json:"order_date" binding:"required"`
	ExpectedDate   string           `json:"expected_date" binding:"required"`
	IdempotencyKey string           `json:"idempotency_key,omitempty"`
}

// PlaceOrderRequest appends an order to a supplier's ledger
type PlaceOrderRequest struct {
	ProductName  string           `json:"product_name" binding:"required"`
	Price        *decimal.Decimal `json:"price" binding:"required"`
	OrderDate    string           `json:"order_date" binding:"required"`
	ExpectedDate string           `json:"expected_date" binding:"required"`
}

// ConfirmDeliveryRequest records the actual delivery date of an order
type ConfirmDeliveryRequest struct {
	ActualDate string `json:"actual_date" binding:"required"`
}

// Register creates a supplier with one pending order
func (s *SupplierService) Register(ctx context.Context, req *RegisterSupplierRequest) (*SupplierView, error) {
	ctx, span := util.StartSpan(ctx, "SupplierService.Register")
	defer span.End()

	if req.IdempotencyKey != "" {
		if view, handled, err := s.replay(ctx, req.IdempotencyKey); handled {
			return view, err
		}
	}

	if req.Price == nil {
		return nil, s.rejected("register", validationf("price is required"))
	}
	orderDate, err := parseDate("order_date", req.OrderDate)
	if err != nil {
		return nil, s.rejected("register", err)
	}
	expectedDate, err := parseDate("expected_date", req.ExpectedDate)
	if err != nil {
		return nil, s.rejected("register", err)
	}

	supplier, order, err := reliability.NewSupplier(reliability.Registration{
		Name:           req.Name,
		Contact:        req.Contact,
		Category:       req.Category,
		MainProduct:    req.MainProduct,
		DeliveryRating: req.DeliveryRating,
		OrderDate:      orderDate,
		ExpectedDate:   expectedDate,
		Price:          *req.Price,
	}, s.now())
	if err != nil {
		return nil, s.rejected("register", err)
	}

	reserved := false
	if req.IdempotencyKey != "" {
		ok, err := s.cache.ReserveIdempotencyKey(ctx, req.IdempotencyKey, reservationTTL)
		switch {
		case err != nil:
			s.logger.Warn("Idempotency reservation failed", zap.Error(err))
		case !ok:
			if view, handled, err := s.replay(ctx, req.IdempotencyKey); handled {
				return view, err
			}
			return nil, s.rejected("register", fmt.Errorf("%w: registration %q in progress", ErrSupplierBusy, req.IdempotencyKey))
		default:
			reserved = true
		}
	}

	if err := s.store.CreateSupplier(ctx, supplier); err != nil {
		if reserved {
			if rerr := s.cache.ReleaseIdempotencyKey(ctx, req.IdempotencyKey); rerr != nil {
				s.logger.Warn("Failed to release idempotency key", zap.Error(rerr))
			}
		}
		return nil, fmt.Errorf("failed to create supplier: %w", err)
	}

	util.SuppliersRegisteredTotal.Inc()
	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Supplier registered",
		zap.String("supplier_id", supplier.ID.String()),
		zap.String("category", supplier.Category))

	if req.IdempotencyKey != "" {
		if err := s.cache.SetIdempotencyKey(ctx, req.IdempotencyKey, supplier.ID.String(), s.opts.IdempotencyTTL); err != nil {
			s.logger.Warn("Failed to store idempotency key", zap.Error(err))
		}
	}
	s.invalidate(ctx, supplier.ID)

	event := &models.SupplierRegisteredEvent{
		BaseEvent:   s.baseEvent(models.EventTypeSupplierRegistered),
		SupplierID:  supplier.ID,
		Name:        supplier.Name,
		Category:    supplier.Category,
		OrderID:     order.ID,
		Reliability: snapshot(supplier),
	}
	if err := s.publisher.PublishSupplierRegistered(ctx, event); err != nil {
		s.logger.Error("Failed to publish SupplierRegistered event", zap.Error(err))
	}

	return detailView(supplier), nil
}

// replay resolves a registration that reused an idempotency key. handled is
// false when the key is unused or cannot be read.
func (s *SupplierService) replay(ctx context.Context, key string) (view *SupplierView, handled bool, err error) {
	existing, err := s.cache.GetIdempotencyKey(ctx, key)
	if err != nil {
		s.logger.Warn("Idempotency lookup failed", zap.Error(err))
		return nil, false, nil
	}

	switch existing {
	case "":
		return nil, false, nil
	case redisclient.IdempotencyPending:
		return nil, true, s.rejected("register", fmt.Errorf("%w: registration %q in progress", ErrSupplierBusy, key))
	}

	id, err := uuid.Parse(existing)
	if err != nil {
		s.logger.Warn("Ignoring unreadable idempotency value",
			zap.String("idempotency_key", key),
			zap.String("value", existing))
		return nil, false, nil
	}

	s.logger.Info("Duplicate registration request detected",
		zap.String("idempotency_key", key),
		zap.String("supplier_id", existing))
	view, err = s.GetSupplier(ctx, id)
	return view, true, err
}

// PlaceOrder appends a pending order and recomputes the supplier's reliability
func (s *SupplierService) PlaceOrder(ctx context.Context, supplierID uuid.UUID, req *PlaceOrderRequest) (*SupplierView, error) {
	ctx, span := util.StartSpan(ctx, "SupplierService.PlaceOrder")
	defer span.End()

	if req.Price == nil {
		return nil, s.rejected("place_order", validationf("price is required"))
	}
	orderDate, err := parseDate("order_date", req.OrderDate)
	if err != nil {
		return nil, s.rejected("place_order", err)
	}
	expectedDate, err := parseDate("expected_date", req.ExpectedDate)
	if err != nil {
		return nil, s.rejected("place_order", err)
	}

	supplier, order, err := s.mutate(ctx, supplierID, "place_order", func(sup *reliability.Supplier) (reliability.PurchaseOrder, error) {
		return sup.PlaceOrder(req.ProductName, orderDate, expectedDate, *req.Price)
	})
	if err != nil {
		return nil, err
	}

	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Order placed",
		zap.String("supplier_id", supplierID.String()),
		zap.String("invoice_no", order.InvoiceNo))

	event := &models.OrderPlacedEvent{
		BaseEvent:    s.baseEvent(models.EventTypeOrderPlaced),
		SupplierID:   supplier.ID,
		OrderID:      order.ID,
		InvoiceNo:    order.InvoiceNo,
		ExpectedDate: order.ExpectedDate,
		Reliability:  snapshot(supplier),
	}
	if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}

	return detailView(supplier), nil
}

// ConfirmDelivery marks a pending order as delivered on the given date
func (s *SupplierService) ConfirmDelivery(ctx context.Context, supplierID, orderID uuid.UUID, req *ConfirmDeliveryRequest) (*SupplierView, error) {
	ctx, span := util.StartSpan(ctx, "SupplierService.ConfirmDelivery")
	defer span.End()

	actual, err := parseDate("actual_date", req.ActualDate)
	if err != nil {
		return nil, s.rejected("confirm_delivery", err)
	}

	supplier, err := s.confirm(ctx, supplierID, orderID, actual, "api")
	if err != nil {
		return nil, err
	}
	return detailView(supplier), nil
}

// HandleDeliveryReceived confirms a delivery reported by the receiving dock.
// Each event is applied at most once; events that can never apply are
// recorded as processed and dropped.
func (s *SupplierService) HandleDeliveryReceived(ctx context.Context, event *models.DeliveryReceivedEvent) error {
	ctx, span := util.StartSpan(ctx, "SupplierService.HandleDeliveryReceived")
	defer span.End()

	processed, err := s.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		s.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	_, err = s.confirm(ctx, event.SupplierID, event.OrderID, event.ActualDate, "dock")
	switch {
	case err == nil:
	case errors.Is(err, reliability.ErrNotFound),
		errors.Is(err, reliability.ErrInvalidState),
		errors.Is(err, reliability.ErrValidation):
		s.logger.Warn("Dropping delivery receipt",
			zap.String("event_id", event.EventID),
			zap.String("supplier_id", event.SupplierID.String()),
			zap.String("order_id", event.OrderID.String()),
			zap.Error(err))
	default:
		return err
	}

	if err := s.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		s.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	return nil
}

func (s *SupplierService) confirm(ctx context.Context, supplierID, orderID uuid.UUID, actual time.Time, source string) (*reliability.Supplier, error) {
	actual = calendarDay(actual)
	supplier, order, err := s.mutate(ctx, supplierID, "confirm_delivery", func(sup *reliability.Supplier) (reliability.PurchaseOrder, error) {
		return sup.ConfirmDelivery(orderID, actual)
	})
	if err != nil {
		return nil, err
	}

	status := order.Status()
	util.DeliveriesConfirmedTotal.WithLabelValues(string(status), source).Inc()
	s.logger.Info("Delivery confirmed",
		zap.String("supplier_id", supplierID.String()),
		zap.String("invoice_no", order.InvoiceNo),
		zap.String("status", string(status)),
		zap.String("risk_tier", string(supplier.Reliability().RiskTier)),
		zap.Float64("score", supplier.Reliability().Score))

	event := &models.DeliveryConfirmedEvent{
		BaseEvent:   s.baseEvent(models.EventTypeDeliveryConfirmed),
		SupplierID:  supplier.ID,
		OrderID:     order.ID,
		Status:      string(status),
		ActualDate:  actual,
		Reliability: snapshot(supplier),
	}
	if err := s.publisher.PublishDeliveryConfirmed(ctx, event); err != nil {
		s.logger.Error("Failed to publish DeliveryConfirmed event", zap.Error(err))
	}

	return supplier, nil
}

// SetDeliveryRating updates the manually curated delivery rating
func (s *SupplierService) SetDeliveryRating(ctx context.Context, supplierID uuid.UUID, rating float64) (*SupplierView, error) {
	ctx, span := util.StartSpan(ctx, "SupplierService.SetDeliveryRating")
	defer span.End()

	var supplier *reliability.Supplier
	err := s.withLock(ctx, supplierID, func() error {
		var err error
		supplier, err = s.store.GetSupplier(ctx, supplierID)
		if err != nil {
			return err
		}
		if err := supplier.SetDeliveryRating(rating); err != nil {
			return err
		}
		return s.store.SetDeliveryRating(ctx, supplierID, rating)
	})
	if err != nil {
		return nil, s.rejected("set_rating", err)
	}

	s.invalidate(ctx, supplierID)
	return detailView(supplier), nil
}

// Remove deletes a supplier and its ledger
func (s *SupplierService) Remove(ctx context.Context, supplierID uuid.UUID) error {
	ctx, span := util.StartSpan(ctx, "SupplierService.Remove")
	defer span.End()

	err := s.withLock(ctx, supplierID, func() error {
		return s.store.DeleteSupplier(ctx, supplierID)
	})
	if err != nil {
		return s.rejected("remove", err)
	}

	util.SuppliersRemovedTotal.Inc()
	s.logger.Info("Supplier removed", zap.String("supplier_id", supplierID.String()))
	s.invalidate(ctx, supplierID)

	event := &models.SupplierRemovedEvent{
		BaseEvent:  s.baseEvent(models.EventTypeSupplierRemoved),
		SupplierID: supplierID,
	}
	if err := s.publisher.PublishSupplierRemoved(ctx, event); err != nil {
		s.logger.Error("Failed to publish SupplierRemoved event", zap.Error(err))
	}
	return nil
}

// mutate runs one ledger operation under the supplier's single-writer lock
// inside a storage transaction.
func (s *SupplierService) mutate(ctx context.Context, supplierID uuid.UUID, op string, fn store.MutateFunc) (*reliability.Supplier, reliability.PurchaseOrder, error) {
	var supplier *reliability.Supplier
	var order reliability.PurchaseOrder

	err := s.withLock(ctx, supplierID, func() error {
		var err error
		supplier, order, err = s.store.UpdateSupplierTx(ctx, supplierID, fn)
		return err
	})
	if err != nil {
		return nil, reliability.PurchaseOrder{}, s.rejected(op, err)
	}

	util.SupplierScore.Observe(supplier.Reliability().Score)
	s.invalidate(ctx, supplierID)
	return supplier, order, nil
}

// withLock serializes writers of one supplier. If Redis is unreachable the
// row lock taken by the store still serializes writers.
func (s *SupplierService) withLock(ctx context.Context, supplierID uuid.UUID, fn func() error) error {
	err := s.cache.WithSupplierLock(ctx, supplierID, s.opts.LockTTL, fn)
	switch {
	case errors.Is(err, redisclient.ErrLockHeld):
		util.SupplierLockContentionTotal.Inc()
		return fmt.Errorf("%w: %s", ErrSupplierBusy, supplierID)
	case errors.Is(err, redisclient.ErrLockUnavailable):
		s.logger.Warn("Supplier lock unavailable, relying on row lock",
			zap.String("supplier_id", supplierID.String()),
			zap.Error(err))
		return fn()
	default:
		return err
	}
}

func (s *SupplierService) invalidate(ctx context.Context, supplierID uuid.UUID) {
	if err := s.cache.InvalidateSupplier(ctx, supplierID); err != nil {
		s.logger.Warn("Failed to invalidate cached views",
			zap.String("supplier_id", supplierID.String()),
			zap.Error(err))
	}
}

// rejected counts engine rejections by kind and passes err through
func (s *SupplierService) rejected(op string, err error) error {
	reason := ""
	switch {
	case errors.Is(err, reliability.ErrValidation):
		reason = "validation"
	case errors.Is(err, reliability.ErrNotFound):
		reason = "not_found"
	case errors.Is(err, reliability.ErrInvalidState):
		reason = "invalid_state"
	case errors.Is(err, ErrSupplierBusy):
		reason = "busy"
	}
	if reason != "" {
		util.LedgerOperationsFailedTotal.WithLabelValues(op, reason).Inc()
	}
	return err
}

func (s *SupplierService) baseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: s.now(),
	}
}

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", reliability.ErrValidation, fmt.Sprintf(format, args...))
}

func encode(v interface{}) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return payload
}
