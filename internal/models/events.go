package models

import (
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventTypeSupplierRegistered = "SUPPLIER_REGISTERED"
	EventTypeOrderPlaced        = "ORDER_PLACED"
	EventTypeDeliveryConfirmed  = "DELIVERY_CONFIRMED"
	EventTypeSupplierRemoved    = "SUPPLIER_REMOVED"
	EventTypeDeliveryReceived   = "DELIVERY_RECEIVED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ReliabilitySnapshot is the derived reliability carried on supplier events
type ReliabilitySnapshot struct {
	DelayRate float64 `json:"delay_rate"`
	RiskTier  string  `json:"risk_tier"`
	Score     float64 `json:"score"`
}

// SupplierRegisteredEvent published when a supplier is registered with its first order
type SupplierRegisteredEvent struct {
	BaseEvent
	SupplierID  uuid.UUID           `json:"supplier_id"`
	Name        string              `json:"name"`
	Category    string              `json:"category"`
	OrderID     uuid.UUID           `json:"order_id"`
	Reliability ReliabilitySnapshot `json:"reliability"`
}

// OrderPlacedEvent published when an order is appended to a ledger
type OrderPlacedEvent struct {
	BaseEvent
	SupplierID   uuid.UUID           `json:"supplier_id"`
	OrderID      uuid.UUID           `json:"order_id"`
	InvoiceNo    string              `json:"invoice_no"`
	ExpectedDate time.Time           `json:"expected_date"`
	Reliability  ReliabilitySnapshot `json:"reliability"`
}

// DeliveryConfirmedEvent published when an order leaves Pending
type DeliveryConfirmedEvent struct {
	BaseEvent
	SupplierID  uuid.UUID           `json:"supplier_id"`
	OrderID     uuid.UUID           `json:"order_id"`
	Status      string              `json:"status"`
	ActualDate  time.Time           `json:"actual_date"`
	Reliability ReliabilitySnapshot `json:"reliability"`
}

// SupplierRemovedEvent published when a supplier and its ledger are deleted
type SupplierRemovedEvent struct {
	BaseEvent
	SupplierID uuid.UUID `json:"supplier_id"`
}

// DeliveryReceivedEvent is consumed from the receiving dock
type DeliveryReceivedEvent struct {
	BaseEvent
	SupplierID uuid.UUID `json:"supplier_id"`
	OrderID    uuid.UUID `json:"order_id"`
	ActualDate time.Time `json:"actual_date"`
}
