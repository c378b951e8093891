package reliability

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Supplier is a vendor together with its order ledger and derived reliability.
// Callers must serialize mutations of a single supplier.
type Supplier struct {
	ID             uuid.UUID
	Name           string
	Contact        string
	Category       string
	MainProduct    string
	DeliveryRating *float64
	CreatedAt      time.Time

	ledger      *Ledger
	reliability Reliability
}

// Registration holds the fields needed to register a supplier with its first order
type Registration struct {
	Name           string
	Contact        string
	Category       string
	MainProduct    string
	DeliveryRating *float64
	OrderDate      time.Time
	ExpectedDate   time.Time
	Price          decimal.Decimal
}

// State is the persisted, ledger-independent part of a supplier
type State struct {
	ID             uuid.UUID
	Name           string
	Contact        string
	Category       string
	MainProduct    string
	DeliveryRating *float64
	CreatedAt      time.Time
	Reliability    Reliability
}

// NewSupplier registers a supplier and places its first order for the main product
func NewSupplier(reg Registration, now time.Time) (*Supplier, PurchaseOrder, error) {
	required := []struct{ field, value string }{
		{"name", reg.Name},
		{"contact", reg.Contact},
		{"category", reg.Category},
		{"main product", reg.MainProduct},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, PurchaseOrder{}, fmt.Errorf("%w: %s is required", ErrValidation, r.field)
		}
	}
	if err := validateRating(reg.DeliveryRating); err != nil {
		return nil, PurchaseOrder{}, err
	}

	s := &Supplier{
		ID:             uuid.New(),
		Name:           reg.Name,
		Contact:        reg.Contact,
		Category:       reg.Category,
		MainProduct:    reg.MainProduct,
		DeliveryRating: reg.DeliveryRating,
		CreatedAt:      now,
		ledger:         NewLedger(),
		reliability:    DefaultReliability(),
	}

	order, change, err := s.ledger.PlaceOrder(reg.MainProduct, reg.OrderDate, reg.ExpectedDate, reg.Price)
	if err != nil {
		return nil, PurchaseOrder{}, err
	}
	if err := s.apply(change); err != nil {
		return nil, PurchaseOrder{}, err
	}

	return s, order, nil
}

// Restore rebuilds a persisted supplier. The stored reliability is the prior
// for recomputation, so an empty ledger keeps its stored values.
func Restore(st State, orders []PurchaseOrder) (*Supplier, error) {
	ledger, err := LoadLedger(orders)
	if err != nil {
		return nil, err
	}

	return &Supplier{
		ID:             st.ID,
		Name:           st.Name,
		Contact:        st.Contact,
		Category:       st.Category,
		MainProduct:    st.MainProduct,
		DeliveryRating: st.DeliveryRating,
		CreatedAt:      st.CreatedAt,
		ledger:         ledger,
		reliability:    Recompute(ledger.orders, st.Reliability),
	}, nil
}

// PlaceOrder appends an order and recomputes reliability
func (s *Supplier) PlaceOrder(product string, orderDate, expectedDate time.Time, price decimal.Decimal) (PurchaseOrder, error) {
	order, change, err := s.ledger.PlaceOrder(product, orderDate, expectedDate, price)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if err := s.apply(change); err != nil {
		return PurchaseOrder{}, err
	}
	return order, nil
}

// ConfirmDelivery records a delivery and recomputes reliability
func (s *Supplier) ConfirmDelivery(orderID uuid.UUID, actualDate time.Time) (PurchaseOrder, error) {
	order, change, err := s.ledger.ConfirmDelivery(orderID, actualDate)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if err := s.apply(change); err != nil {
		return PurchaseOrder{}, err
	}
	return order, nil
}

// SetDeliveryRating updates the manually curated delivery rating
func (s *Supplier) SetDeliveryRating(rating float64) error {
	if err := validateRating(&rating); err != nil {
		return err
	}
	s.DeliveryRating = &rating
	return nil
}

func (s *Supplier) apply(c Change) error {
	if c.ledger != s.ledger {
		return fmt.Errorf("%w: change does not belong to supplier %s", ErrInvalidState, s.ID)
	}
	s.reliability = Recompute(s.ledger.orders, s.reliability)
	s.ledger.dirty = false
	return nil
}

// Reliability returns the derived delay rate, risk tier and score
func (s *Supplier) Reliability() Reliability {
	return s.reliability
}

// Orders returns a copy of the ledger in insertion order
func (s *Supplier) Orders() []PurchaseOrder {
	return s.ledger.Orders()
}

// Order looks up a ledger entry
func (s *Supplier) Order(orderID uuid.UUID) (PurchaseOrder, bool) {
	return s.ledger.Order(orderID)
}

// Stats summarizes the ledger
func (s *Supplier) Stats() LedgerStats {
	return s.ledger.Stats()
}

// State returns the persisted view of the supplier
func (s *Supplier) State() State {
	return State{
		ID:             s.ID,
		Name:           s.Name,
		Contact:        s.Contact,
		Category:       s.Category,
		MainProduct:    s.MainProduct,
		DeliveryRating: s.DeliveryRating,
		CreatedAt:      s.CreatedAt,
		Reliability:    s.reliability,
	}
}

// DelayOutlook is the heuristic delay estimate shown next to a supplier
type DelayOutlook struct {
	Rated        bool    `json:"rated"`
	Probability  float64 `json:"probability"`
	Warning      bool    `json:"warning"`
	AvgDelayDays float64 `json:"avg_delay_days"`
	Orders       int     `json:"orders"`
}

// DelayOutlook estimates delay probability from the delivery rating. Without
// a rating the outlook is unrated and carries only ledger context.
func (s *Supplier) DelayOutlook() DelayOutlook {
	stats := s.ledger.Stats()
	out := DelayOutlook{
		AvgDelayDays: stats.AvgDelayDays,
		Orders:       stats.Total,
	}
	if s.DeliveryRating != nil {
		out.Rated = true
		out.Probability = DelayProbability(*s.DeliveryRating)
		out.Warning = out.Probability > DelayWarningThreshold
	}
	return out
}

func validateRating(rating *float64) error {
	if rating == nil {
		return nil
	}
	if *rating < 0 || *rating > maxScore {
		return fmt.Errorf("%w: delivery rating must be between 0 and 100", ErrValidation)
	}
	return nil
}
