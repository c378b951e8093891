package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vendor-service/internal/models"
	"vendor-service/internal/reliability"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// SupplierFilter narrows supplier listings. A zero Limit returns every row.
type SupplierFilter struct {
	Category string
	Limit    int
	Offset   int
}

// MutateFunc applies one ledger operation and returns the order it touched
type MutateFunc func(s *reliability.Supplier) (reliability.PurchaseOrder, error)

const insertOrderQuery = `
	INSERT INTO purchase_orders (id, supplier_id, position, invoice_no, product_name, order_date, expected_date, actual_date, unit_price)
	VALUES (:id, :supplier_id, :position, :invoice_no, :product_name, :order_date, :expected_date, :actual_date, :unit_price)
	ON CONFLICT (id) DO UPDATE SET actual_date = EXCLUDED.actual_date`

// CreateSupplier inserts a supplier together with its ledger
func (s *Store) CreateSupplier(ctx context.Context, supplier *reliability.Supplier) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	row := supplierRow(supplier)
	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO suppliers (id, name, contact, category, main_product, delivery_rating, delay_rate, risk_tier, score, created_at, updated_at)
		VALUES (:id, :name, :contact, :category, :main_product, :delivery_rating, :delay_rate, :risk_tier, :score, :created_at, :created_at)`,
		row)
	if err != nil {
		return fmt.Errorf("failed to insert supplier: %w", err)
	}

	for i, o := range supplier.Orders() {
		if _, err := tx.NamedExecContext(ctx, insertOrderQuery, orderRow(supplier, i, o)); err != nil {
			return fmt.Errorf("failed to insert order %s: %w", o.InvoiceNo, err)
		}
	}

	return tx.Commit()
}

// GetSupplier loads a supplier and its ledger
func (s *Store) GetSupplier(ctx context.Context, id uuid.UUID) (*reliability.Supplier, error) {
	var row models.Supplier
	err := s.db.GetContext(ctx, &row, "SELECT * FROM suppliers WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: supplier %s", reliability.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	orders, err := s.ordersFor(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return toSupplier(row, orders)
}

// ListSuppliers returns suppliers newest first together with the total count.
// Ledgers are not loaded; the stored reliability is used.
func (s *Store) ListSuppliers(ctx context.Context, f SupplierFilter) ([]*reliability.Supplier, int64, error) {
	where := ""
	args := []interface{}{}
	if f.Category != "" {
		where = " WHERE category = $1"
		args = append(args, f.Category)
	}

	var total int64
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM suppliers"+where, args...); err != nil {
		return nil, 0, err
	}

	query := "SELECT * FROM suppliers" + where + " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	}

	var rows []models.Supplier
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, err
	}

	suppliers := make([]*reliability.Supplier, 0, len(rows))
	for _, row := range rows {
		supplier, err := toSupplier(row, nil)
		if err != nil {
			return nil, 0, err
		}
		suppliers = append(suppliers, supplier)
	}
	return suppliers, total, nil
}

// UpdateSupplierTx locks the supplier row, applies mutate to the loaded
// aggregate and persists the touched order and the recomputed reliability.
// Nothing is written if mutate fails.
func (s *Store) UpdateSupplierTx(ctx context.Context, id uuid.UUID, mutate MutateFunc) (*reliability.Supplier, reliability.PurchaseOrder, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, reliability.PurchaseOrder{}, err
	}
	defer tx.Rollback()

	var row models.Supplier
	err = tx.GetContext(ctx, &row, "SELECT * FROM suppliers WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reliability.PurchaseOrder{}, fmt.Errorf("%w: supplier %s", reliability.ErrNotFound, id)
	}
	if err != nil {
		return nil, reliability.PurchaseOrder{}, fmt.Errorf("failed to lock supplier: %w", err)
	}

	orderRows, err := s.ordersFor(ctx, tx, id)
	if err != nil {
		return nil, reliability.PurchaseOrder{}, err
	}

	supplier, err := toSupplier(row, orderRows)
	if err != nil {
		return nil, reliability.PurchaseOrder{}, err
	}

	order, err := mutate(supplier)
	if err != nil {
		return nil, reliability.PurchaseOrder{}, err
	}

	position := -1
	for i, o := range supplier.Orders() {
		if o.ID == order.ID {
			position = i
			break
		}
	}
	if position < 0 {
		return nil, reliability.PurchaseOrder{}, fmt.Errorf("%w: order %s", reliability.ErrNotFound, order.ID)
	}

	if _, err := tx.NamedExecContext(ctx, insertOrderQuery, orderRow(supplier, position, order)); err != nil {
		return nil, reliability.PurchaseOrder{}, fmt.Errorf("failed to save order: %w", err)
	}

	updated := supplierRow(supplier)
	_, err = tx.NamedExecContext(ctx, `
		UPDATE suppliers
		SET delivery_rating = :delivery_rating, delay_rate = :delay_rate, risk_tier = :risk_tier, score = :score, updated_at = NOW()
		WHERE id = :id`, updated)
	if err != nil {
		return nil, reliability.PurchaseOrder{}, fmt.Errorf("failed to update reliability: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, reliability.PurchaseOrder{}, err
	}
	return supplier, order, nil
}

// SetDeliveryRating stores a new manual delivery rating
func (s *Store) SetDeliveryRating(ctx context.Context, id uuid.UUID, rating float64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE suppliers SET delivery_rating = $1, updated_at = NOW() WHERE id = $2", rating, id)
	if err != nil {
		return err
	}
	return expectOneRow(res, id)
}

// DeleteSupplier removes a supplier; its ledger is removed by cascade
func (s *Store) DeleteSupplier(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM suppliers WHERE id = $1", id)
	if err != nil {
		return err
	}
	return expectOneRow(res, id)
}

func (s *Store) ordersFor(ctx context.Context, q sqlx.QueryerContext, supplierID uuid.UUID) ([]models.PurchaseOrder, error) {
	var orders []models.PurchaseOrder
	err := sqlx.SelectContext(ctx, q, &orders,
		"SELECT * FROM purchase_orders WHERE supplier_id = $1 ORDER BY position", supplierID)
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	return orders, nil
}

func expectOneRow(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: supplier %s", reliability.ErrNotFound, id)
	}
	return nil
}
