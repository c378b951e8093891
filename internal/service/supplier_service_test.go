package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"vendor-service/internal/models"
	"vendor-service/internal/redisclient"
	"vendor-service/internal/reliability"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc       *SupplierService
	store     *memoryStore
	cache     *memoryCache
	publisher *recordingPublisher
}

func newFixture() *fixture {
	f := &fixture{
		store:     newMemoryStore(),
		cache:     newMemoryCache(),
		publisher: &recordingPublisher{},
	}
	f.svc = NewSupplierService(f.store, f.cache, f.publisher, DefaultOptions())
	f.svc.now = func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) }
	return f
}

func price(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func registerRequest() *RegisterSupplierRequest {
	return &RegisterSupplierRequest{
		Name:         "Steel Corp India",
		Contact:      "+91 98765 43210",
		Category:     "Raw Materials",
		MainProduct:  "Steel rods",
		Price:        price("85.00"),
		OrderDate:    "2024-06-01",
		ExpectedDate: "2024-06-08",
	}
}

func TestRegister(t *testing.T) {
	f := newFixture()

	view, err := f.svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	assert.Equal(t, reliability.RiskLow, view.RiskTier)
	assert.Equal(t, 100.0, view.Score)
	require.Len(t, view.Orders, 1)
	assert.Equal(t, reliability.StatusPending, view.Orders[0].Status)
	assert.Equal(t, "INV-0001", view.Orders[0].InvoiceNo)
	assert.Equal(t, "Steel rods", view.Orders[0].Product)
	assert.Equal(t, "2024-06-08", view.Orders[0].ExpectedDate)
	assert.Equal(t, []string{models.EventTypeSupplierRegistered}, f.publisher.events)
}

func TestRegisterValidation(t *testing.T) {
	tests := map[string]func(*RegisterSupplierRequest){
		"bad order date":   func(r *RegisterSupplierRequest) { r.OrderDate = "01/06/2024" },
		"bad expected":     func(r *RegisterSupplierRequest) { r.ExpectedDate = "" },
		"missing price":    func(r *RegisterSupplierRequest) { r.Price = nil },
		"negative price":   func(r *RegisterSupplierRequest) { r.Price = price("-3") },
		"blank name":       func(r *RegisterSupplierRequest) { r.Name = "   " },
		"rating too large": func(r *RegisterSupplierRequest) { v := 140.0; r.DeliveryRating = &v },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			req := registerRequest()
			mutate(req)

			_, err := f.svc.Register(context.Background(), req)
			assert.ErrorIs(t, err, reliability.ErrValidation)
			assert.Empty(t, f.store.suppliers)
			assert.Empty(t, f.publisher.events)
		})
	}
}

func TestRegisterIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	req := registerRequest()
	req.IdempotencyKey = "form-submit-1"

	first, err := f.svc.Register(ctx, req)
	require.NoError(t, err)
	second, err := f.svc.Register(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.store.suppliers, 1)
}

func TestDeliveryHistoryDrivesReliability(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.Register(ctx, registerRequest())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		view, err = f.svc.PlaceOrder(ctx, view.ID, &PlaceOrderRequest{
			ProductName:  "Steel sheets",
			Price:        price("120.50"),
			OrderDate:    "2024-06-02",
			ExpectedDate: "2024-06-10",
		})
		require.NoError(t, err)
	}
	require.Len(t, view.Orders, 4)
	assert.Equal(t, "INV-0004", view.Orders[3].InvoiceNo)

	actuals := []string{"2024-06-09", "2024-06-10", "2024-06-09", "2024-06-08"}
	for i, actual := range actuals {
		view, err = f.svc.ConfirmDelivery(ctx, view.ID, view.Orders[i].ID, &ConfirmDeliveryRequest{ActualDate: actual})
		require.NoError(t, err)
	}

	assert.Equal(t, 25.0, view.DelayRate)
	assert.Equal(t, reliability.RiskLow, view.RiskTier)
	assert.Equal(t, 62.5, view.Score)
	assert.Equal(t, reliability.StatusDelayed, view.Orders[0].Status)
	assert.Equal(t, reliability.StatusOnTime, view.Orders[1].Status)
	assert.Equal(t, 1, view.Stats.Delayed)
	assert.Equal(t, 3, view.Stats.OnTime)

	stored, err := f.store.GetSupplier(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, 62.5, stored.Reliability().Score)

	assert.Contains(t, f.publisher.events, models.EventTypeDeliveryConfirmed+":Delayed")
	assert.Contains(t, f.publisher.events, models.EventTypeOrderPlaced)
}

func TestConfirmDeliveryTwice(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.Register(ctx, registerRequest())
	require.NoError(t, err)
	orderID := view.Orders[0].ID

	_, err = f.svc.ConfirmDelivery(ctx, view.ID, orderID, &ConfirmDeliveryRequest{ActualDate: "2024-06-20"})
	require.NoError(t, err)

	_, err = f.svc.ConfirmDelivery(ctx, view.ID, orderID, &ConfirmDeliveryRequest{ActualDate: "2024-06-05"})
	assert.ErrorIs(t, err, reliability.ErrInvalidState)

	stored, err := f.store.GetSupplier(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, reliability.StatusDelayed, stored.Orders()[0].Status())
	assert.Equal(t, reliability.RiskHigh, stored.Reliability().RiskTier)
}

func TestConfirmDeliveryNotFound(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.ConfirmDelivery(ctx, uuid.New(), uuid.New(), &ConfirmDeliveryRequest{ActualDate: "2024-06-05"})
	assert.ErrorIs(t, err, reliability.ErrNotFound)

	view, err := f.svc.Register(ctx, registerRequest())
	require.NoError(t, err)

	_, err = f.svc.ConfirmDelivery(ctx, view.ID, uuid.New(), &ConfirmDeliveryRequest{ActualDate: "2024-06-05"})
	assert.ErrorIs(t, err, reliability.ErrNotFound)
}

func TestMutationRejectedWhileLocked(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.Register(ctx, registerRequest())
	require.NoError(t, err)

	f.cache.held[view.ID] = true
	_, err = f.svc.PlaceOrder(ctx, view.ID, &PlaceOrderRequest{
		ProductName: "Steel sheets", Price: price("1"), OrderDate: "2024-06-02", ExpectedDate: "2024-06-03",
	})
	assert.ErrorIs(t, err, ErrSupplierBusy)

	stored, err := f.store.GetSupplier(ctx, view.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Orders(), 1)
}

func TestMutationProceedsWhenLockUnavailable(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.Register(ctx, registerRequest())
	require.NoError(t, err)

	f.cache.lockErr = fmt.Errorf("%w: %v", redisclient.ErrLockUnavailable, errRedisDown)
	updated, err := f.svc.PlaceOrder(ctx, view.ID, &PlaceOrderRequest{
		ProductName: "Steel sheets", Price: price("1"), OrderDate: "2024-06-02", ExpectedDate: "2024-06-03",
	})
	require.NoError(t, err)
	assert.Len(t, updated.Orders, 2)
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture()
	f.publisher.err = fmt.Errorf("kafka unavailable")

	view, err := f.svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, view.ID)
}

func TestHandleDeliveryReceived(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.Register(ctx, registerRequest())
	require.NoError(t, err)

	event := &models.DeliveryReceivedEvent{
		BaseEvent:  models.BaseEvent{EventID: "dock-1", EventType: models.EventTypeDeliveryReceived},
		SupplierID: view.ID,
		OrderID:    view.Orders[0].ID,
		ActualDate: time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, f.svc.HandleDeliveryReceived(ctx, event))
	require.NoError(t, f.svc.HandleDeliveryReceived(ctx, event))

	confirmed := 0
	for _, e := range f.publisher.events {
		if e == models.EventTypeDeliveryConfirmed+":OnTime" {
			confirmed++
		}
	}
	assert.Equal(t, 1, confirmed)
	assert.True(t, f.store.processed["dock-1"])
}

func TestHandleDeliveryReceivedDropsUnknownOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	event := &models.DeliveryReceivedEvent{
		BaseEvent:  models.BaseEvent{EventID: "dock-2", EventType: models.EventTypeDeliveryReceived},
		SupplierID: uuid.New(),
		OrderID:    uuid.New(),
		ActualDate: time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, f.svc.HandleDeliveryReceived(ctx, event))
	assert.True(t, f.store.processed["dock-2"])
}

func TestHandleDeliveryReceivedRetriesWhenBusy(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.Register(ctx, registerRequest())
	require.NoError(t, err)
	f.cache.held[view.ID] = true

	err = f.svc.HandleDeliveryReceived(ctx, &models.DeliveryReceivedEvent{
		BaseEvent:  models.BaseEvent{EventID: "dock-3", EventType: models.EventTypeDeliveryReceived},
		SupplierID: view.ID,
		OrderID:    view.Orders[0].ID,
		ActualDate: time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, ErrSupplierBusy)
	assert.False(t, f.store.processed["dock-3"])
}

func TestRemove(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.Register(ctx, registerRequest())
	require.NoError(t, err)

	require.NoError(t, f.svc.Remove(ctx, view.ID))

	_, err = f.svc.GetSupplier(ctx, view.ID)
	assert.ErrorIs(t, err, reliability.ErrNotFound)
	assert.ErrorIs(t, f.svc.Remove(ctx, view.ID), reliability.ErrNotFound)
	assert.Contains(t, f.publisher.events, models.EventTypeSupplierRemoved)
}

func TestSetDeliveryRatingAndOutlook(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.Register(ctx, registerRequest())
	require.NoError(t, err)

	outlook, err := f.svc.DelayOutlook(ctx, view.ID)
	require.NoError(t, err)
	assert.False(t, outlook.Rated)

	_, err = f.svc.SetDeliveryRating(ctx, view.ID, 150)
	assert.ErrorIs(t, err, reliability.ErrValidation)

	updated, err := f.svc.SetDeliveryRating(ctx, view.ID, 62)
	require.NoError(t, err)
	require.NotNil(t, updated.DeliveryRating)

	outlook, err = f.svc.DelayOutlook(ctx, view.ID)
	require.NoError(t, err)
	assert.True(t, outlook.Rated)
	assert.Equal(t, 38.0, outlook.Probability)
	assert.True(t, outlook.Warning)
}

func TestDockReceiptUsesCalendarDay(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.Register(ctx, registerRequest())
	require.NoError(t, err)

	err = f.svc.HandleDeliveryReceived(ctx, &models.DeliveryReceivedEvent{
		BaseEvent:  models.BaseEvent{EventID: "dock-15h", EventType: models.EventTypeDeliveryReceived},
		SupplierID: view.ID,
		OrderID:    view.Orders[0].ID,
		ActualDate: time.Date(2024, 6, 8, 15, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Contains(t, f.publisher.events, models.EventTypeDeliveryConfirmed+":OnTime")

	loaded, err := f.store.GetSupplier(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, reliability.StatusOnTime, loaded.Orders()[0].Status())
	assert.Equal(t, loaded.Reliability(), f.store.storedReliability(view.ID))
	assert.Equal(t, 100.0, f.store.storedReliability(view.ID).Score)

	fresh, err := f.svc.GetSupplier(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-08", fresh.Orders[0].ActualDate)
}

func TestDockReceiptAfterMidnightInAnotherZone(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.Register(ctx, registerRequest())
	require.NoError(t, err)

	// 01:00 on June 9th in UTC+5 is still June 8th in UTC
	zone := time.FixedZone("UTC+5", 5*60*60)
	err = f.svc.HandleDeliveryReceived(ctx, &models.DeliveryReceivedEvent{
		BaseEvent:  models.BaseEvent{EventID: "dock-tz", EventType: models.EventTypeDeliveryReceived},
		SupplierID: view.ID,
		OrderID:    view.Orders[0].ID,
		ActualDate: time.Date(2024, 6, 9, 1, 0, 0, 0, zone),
	})
	require.NoError(t, err)

	loaded, err := f.store.GetSupplier(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, reliability.StatusOnTime, loaded.Orders()[0].Status())
	assert.Equal(t, loaded.Reliability(), f.store.storedReliability(view.ID))
}

func TestStoredReliabilityMatchesLedgerAfterEveryMutation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.Register(ctx, registerRequest())
	require.NoError(t, err)
	view, err = f.svc.PlaceOrder(ctx, view.ID, &PlaceOrderRequest{
		ProductName: "Steel sheets", Price: price("10"), OrderDate: "2024-06-02", ExpectedDate: "2024-06-04",
	})
	require.NoError(t, err)

	_, err = f.svc.ConfirmDelivery(ctx, view.ID, view.Orders[1].ID, &ConfirmDeliveryRequest{ActualDate: "2024-06-05"})
	require.NoError(t, err)

	loaded, err := f.store.GetSupplier(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, loaded.Reliability(), f.store.storedReliability(view.ID))
	assert.Equal(t, 50.0, loaded.Reliability().DelayRate)
}

func TestRegisterRejectsKeyInFlight(t *testing.T) {
	f := newFixture()
	f.cache.idempotency["form-submit-2"] = redisclient.IdempotencyPending

	req := registerRequest()
	req.IdempotencyKey = "form-submit-2"

	_, err := f.svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, ErrSupplierBusy)
	assert.Empty(t, f.store.suppliers)
}

func TestRegisterReleasesKeyWhenCreateFails(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.store.createErr = errors.New("connection reset")

	req := registerRequest()
	req.IdempotencyKey = "form-submit-3"

	_, err := f.svc.Register(ctx, req)
	require.Error(t, err)
	assert.NotContains(t, f.cache.idempotency, "form-submit-3")

	f.store.createErr = nil
	view, err := f.svc.Register(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, view.ID.String(), f.cache.idempotency["form-submit-3"])
}

func TestConcurrentRegistrationsShareOneKey(t *testing.T) {
	f := newFixture()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := registerRequest()
			req.IdempotencyKey = "form-submit-4"
			_, errs[i] = f.svc.Register(context.Background(), req)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrSupplierBusy)
		}
	}
	assert.Len(t, f.store.suppliers, 1)
}
