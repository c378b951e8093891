package reliability

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the delivery classification of a purchase order
type OrderStatus string

const (
	StatusPending OrderStatus = "Pending"
	StatusOnTime  OrderStatus = "OnTime"
	StatusDelayed OrderStatus = "Delayed"
)

// PurchaseOrder is a single ledger entry
type PurchaseOrder struct {
	ID           uuid.UUID       `json:"id"`
	InvoiceNo    string          `json:"invoice_no"`
	Product      string          `json:"product"`
	OrderDate    time.Time       `json:"order_date"`
	ExpectedDate time.Time       `json:"expected_date"`
	ActualDate   *time.Time      `json:"actual_date,omitempty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
}

// Status derives the order status from its expected and actual delivery dates
func (o PurchaseOrder) Status() OrderStatus {
	if o.ActualDate == nil {
		return StatusPending
	}
	if o.ActualDate.After(o.ExpectedDate) {
		return StatusDelayed
	}
	return StatusOnTime
}

// DelayDays returns how many days late the delivery was. Zero for pending or on-time orders.
func (o PurchaseOrder) DelayDays() float64 {
	if o.Status() != StatusDelayed {
		return 0
	}
	return o.ActualDate.Sub(o.ExpectedDate).Hours() / 24
}
