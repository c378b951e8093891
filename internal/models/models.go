package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Supplier is a row of the suppliers table
type Supplier struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Contact        string    `db:"contact" json:"contact"`
	Category       string    `db:"category" json:"category"`
	MainProduct    string    `db:"main_product" json:"main_product"`
	DeliveryRating *float64  `db:"delivery_rating" json:"delivery_rating,omitempty"`
	DelayRate      float64   `db:"delay_rate" json:"delay_rate"`
	RiskTier       string    `db:"risk_tier" json:"risk_tier"`
	Score          float64   `db:"score" json:"score"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// PurchaseOrder is a row of the purchase_orders table. Status is not stored.
type PurchaseOrder struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	SupplierID   uuid.UUID       `db:"supplier_id" json:"supplier_id"`
	Position     int             `db:"position" json:"position"`
	InvoiceNo    string          `db:"invoice_no" json:"invoice_no"`
	ProductName  string          `db:"product_name" json:"product_name"`
	OrderDate    time.Time       `db:"order_date" json:"order_date"`
	ExpectedDate time.Time       `db:"expected_date" json:"expected_date"`
	ActualDate   *time.Time      `db:"actual_date" json:"actual_date,omitempty"`
	UnitPrice    decimal.Decimal `db:"unit_price" json:"unit_price"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
