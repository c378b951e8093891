package service

import (
	"time"

	"vendor-service/internal/models"
	"vendor-service/internal/reliability"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const dateLayout = time.DateOnly

// OrderView is a purchase order as shown to clients
type OrderView struct {
	ID           uuid.UUID               `json:"id"`
	InvoiceNo    string                  `json:"invoice_no"`
	Product      string                  `json:"product"`
	OrderDate    string                  `json:"order_date"`
	ExpectedDate string                  `json:"expected_date"`
	ActualDate   string                  `json:"actual_date,omitempty"`
	UnitPrice    decimal.Decimal         `json:"unit_price"`
	Status       reliability.OrderStatus `json:"status"`
}

// SupplierView is a supplier as shown to clients. Orders and Stats are only
// set on detail reads.
type SupplierView struct {
	ID             uuid.UUID                `json:"id"`
	Name           string                   `json:"name"`
	Contact        string                   `json:"contact"`
	Category       string                   `json:"category"`
	MainProduct    string                   `json:"main_product"`
	DeliveryRating *float64                 `json:"delivery_rating,omitempty"`
	DelayRate      float64                  `json:"delay_rate"`
	RiskTier       reliability.RiskTier     `json:"risk_tier"`
	Score          float64                  `json:"score"`
	CreatedAt      time.Time                `json:"created_at"`
	Orders         []OrderView              `json:"orders,omitempty"`
	Stats          *reliability.LedgerStats `json:"stats,omitempty"`
}

func orderView(o reliability.PurchaseOrder) OrderView {
	v := OrderView{
		ID:           o.ID,
		InvoiceNo:    o.InvoiceNo,
		Product:      o.Product,
		OrderDate:    o.OrderDate.Format(dateLayout),
		ExpectedDate: o.ExpectedDate.Format(dateLayout),
		UnitPrice:    o.UnitPrice,
		Status:       o.Status(),
	}
	if o.ActualDate != nil {
		v.ActualDate = o.ActualDate.Format(dateLayout)
	}
	return v
}

func summaryView(s *reliability.Supplier) SupplierView {
	r := s.Reliability()
	return SupplierView{
		ID:             s.ID,
		Name:           s.Name,
		Contact:        s.Contact,
		Category:       s.Category,
		MainProduct:    s.MainProduct,
		DeliveryRating: s.DeliveryRating,
		DelayRate:      r.DelayRate,
		RiskTier:       r.RiskTier,
		Score:          r.Score,
		CreatedAt:      s.CreatedAt,
	}
}

func detailView(s *reliability.Supplier) *SupplierView {
	v := summaryView(s)
	orders := s.Orders()
	v.Orders = make([]OrderView, 0, len(orders))
	for _, o := range orders {
		v.Orders = append(v.Orders, orderView(o))
	}
	stats := s.Stats()
	v.Stats = &stats
	return &v
}

func snapshot(s *reliability.Supplier) models.ReliabilitySnapshot {
	r := s.Reliability()
	return models.ReliabilitySnapshot{
		DelayRate: r.DelayRate,
		RiskTier:  string(r.RiskTier),
		Score:     r.Score,
	}
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, validationf("%s must be a date in YYYY-MM-DD format", field)
	}
	return calendarDay(t), nil
}

// calendarDay drops the time of day. Ledger dates are whole UTC days, the
// same resolution the DATE columns keep.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
