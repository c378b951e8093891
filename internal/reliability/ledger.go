package reliability

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const invoicePrefix = "INV-"

// Change marks a ledger as modified. It must be applied to the owning
// supplier so the derived reliability is recomputed before it is read.
type Change struct {
	ledger *Ledger
	order  uuid.UUID
}

// OrderID returns the order touched by the mutation
func (c Change) OrderID() uuid.UUID {
	return c.order
}

// Ledger holds a supplier's purchase orders in insertion order
type Ledger struct {
	orders  []PurchaseOrder
	index   map[uuid.UUID]int
	lastSeq int
	dirty   bool
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{index: make(map[uuid.UUID]int)}
}

// LoadLedger rebuilds a ledger from persisted orders, preserving their order.
// The invoice sequence continues after the highest number already used.
func LoadLedger(orders []PurchaseOrder) (*Ledger, error) {
	l := NewLedger()
	for _, o := range orders {
		if _, ok := l.index[o.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate order id %s", ErrValidation, o.ID)
		}
		l.index[o.ID] = len(l.orders)
		l.orders = append(l.orders, o)
		if seq, ok := parseInvoiceSeq(o.InvoiceNo); ok && seq > l.lastSeq {
			l.lastSeq = seq
		}
	}
	return l, nil
}

// PlaceOrder appends a new pending order. An expected date before the order
// date is accepted; it only affects later classification.
func (l *Ledger) PlaceOrder(product string, orderDate, expectedDate time.Time, price decimal.Decimal) (PurchaseOrder, Change, error) {
	if strings.TrimSpace(product) == "" {
		return PurchaseOrder{}, Change{}, fmt.Errorf("%w: product is required", ErrValidation)
	}
	if orderDate.IsZero() || expectedDate.IsZero() {
		return PurchaseOrder{}, Change{}, fmt.Errorf("%w: order and expected dates are required", ErrValidation)
	}
	if price.IsNegative() {
		return PurchaseOrder{}, Change{}, fmt.Errorf("%w: price must not be negative", ErrValidation)
	}

	l.lastSeq++
	order := PurchaseOrder{
		ID:           uuid.New(),
		InvoiceNo:    formatInvoice(l.lastSeq),
		Product:      product,
		OrderDate:    orderDate,
		ExpectedDate: expectedDate,
		UnitPrice:    price,
	}

	l.index[order.ID] = len(l.orders)
	l.orders = append(l.orders, order)
	l.dirty = true

	return order, Change{ledger: l, order: order.ID}, nil
}

// ConfirmDelivery records the actual delivery date of a pending order
func (l *Ledger) ConfirmDelivery(orderID uuid.UUID, actualDate time.Time) (PurchaseOrder, Change, error) {
	if actualDate.IsZero() {
		return PurchaseOrder{}, Change{}, fmt.Errorf("%w: actual date is required", ErrValidation)
	}

	i, ok := l.index[orderID]
	if !ok {
		return PurchaseOrder{}, Change{}, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}

	order := &l.orders[i]
	if order.ActualDate != nil {
		return PurchaseOrder{}, Change{}, fmt.Errorf("%w: order %s already delivered on %s",
			ErrInvalidState, orderID, order.ActualDate.Format(time.DateOnly))
	}

	actual := actualDate
	order.ActualDate = &actual
	l.dirty = true

	return *order, Change{ledger: l, order: orderID}, nil
}

// Orders returns a copy of the ledger entries in insertion order
func (l *Ledger) Orders() []PurchaseOrder {
	out := make([]PurchaseOrder, len(l.orders))
	copy(out, l.orders)
	return out
}

// Order looks up a single entry
func (l *Ledger) Order(orderID uuid.UUID) (PurchaseOrder, bool) {
	i, ok := l.index[orderID]
	if !ok {
		return PurchaseOrder{}, false
	}
	return l.orders[i], true
}

// Len returns the number of orders
func (l *Ledger) Len() int {
	return len(l.orders)
}

// Dirty reports whether the ledger changed since reliability was last recomputed
func (l *Ledger) Dirty() bool {
	return l.dirty
}

// LedgerStats summarizes a ledger by status
type LedgerStats struct {
	Total        int     `json:"total"`
	Pending      int     `json:"pending"`
	OnTime       int     `json:"on_time"`
	Delayed      int     `json:"delayed"`
	AvgDelayDays float64 `json:"avg_delay_days"`
}

// Stats counts orders per status and averages the delay of late deliveries
func (l *Ledger) Stats() LedgerStats {
	stats := LedgerStats{Total: len(l.orders)}
	var delayDays float64
	for _, o := range l.orders {
		switch o.Status() {
		case StatusPending:
			stats.Pending++
		case StatusOnTime:
			stats.OnTime++
		case StatusDelayed:
			stats.Delayed++
			delayDays += o.DelayDays()
		}
	}
	if stats.Delayed > 0 {
		stats.AvgDelayDays = delayDays / float64(stats.Delayed)
	}
	return stats
}

func formatInvoice(seq int) string {
	return fmt.Sprintf("%s%04d", invoicePrefix, seq)
}

func parseInvoiceSeq(invoice string) (int, bool) {
	if !strings.HasPrefix(invoice, invoicePrefix) {
		return 0, false
	}
	seq, err := strconv.Atoi(strings.TrimPrefix(invoice, invoicePrefix))
	if err != nil {
		return 0, false
	}
	return seq, true
}
