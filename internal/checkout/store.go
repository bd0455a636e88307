// Package checkout turns a quoted cart into a placed order. Placement
// re-runs the pricing pipeline and settles every reserved counter (coupon
// uses, flash sale stock) inside one transaction.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// ErrNotFound indicates the order does not exist.
var ErrNotFound = errors.New("checkout: order not found")

// DBTX abstracts a pgx pool or transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Order is the immutable settlement record: every amount is snapshotted at
// placement time and never recomputed.
type Order struct {
	ID         uuid.UUID       `json:"id"`
	UserID     uuid.UUID       `json:"userId"`
	CartID     uuid.UUID       `json:"cartId"`
	Status     string          `json:"status"`
	Currency   string          `json:"currency"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	Shipping   decimal.Decimal `json:"shipping"`
	Total      decimal.Decimal `json:"total"`
	CouponCode *string         `json:"couponCode,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// OrderItem is one settled line with its price provenance.
type OrderItem struct {
	ID        uuid.UUID       `json:"id"`
	OrderID   uuid.UUID       `json:"orderId"`
	VariantID uuid.UUID       `json:"variantId"`
	SKU       string          `json:"sku"`
	Title     string          `json:"title"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Source    string          `json:"priceSource"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Store runs hand-written order queries against Postgres.
type Store struct {
	db DBTX
}

// NewStore constructs a Store.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

// WithTx returns a copy of the store bound to the transaction.
func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{db: tx}
}

// InsertOrder creates the order header.
func (s *Store) InsertOrder(ctx context.Context, o Order) (Order, error) {
	const q = `
INSERT INTO orders (user_id, cart_id, status, currency, subtotal, discount, shipping, total, coupon_code)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, created_at`
	err := s.db.QueryRow(ctx, q,
		o.UserID, o.CartID, o.Status, o.Currency,
		o.Subtotal, o.Discount, o.Shipping, o.Total, o.CouponCode,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}
	return o, nil
}

// InsertItem appends one settled line to an order.
func (s *Store) InsertItem(ctx context.Context, it OrderItem) error {
	const q = `
INSERT INTO order_items (order_id, variant_id, sku, title, qty, unit_price, price_source, subtotal)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.db.Exec(ctx, q,
		it.OrderID, it.VariantID, it.SKU, it.Title, it.Qty, it.UnitPrice, it.Source, it.Subtotal,
	)
	if err != nil {
		return fmt.Errorf("insert order item: %w", err)
	}
	return nil
}

// GetByID loads an order with its items, scoped to the owning user.
func (s *Store) GetByID(ctx context.Context, orderID, userID uuid.UUID) (Order, []OrderItem, error) {
	const q = `
SELECT id, user_id, cart_id, status, currency, subtotal, discount, shipping, total, coupon_code, created_at
FROM orders WHERE id = $1 AND user_id = $2`
	var o Order
	err := s.db.QueryRow(ctx, q, orderID, userID).Scan(
		&o.ID, &o.UserID, &o.CartID, &o.Status, &o.Currency,
		&o.Subtotal, &o.Discount, &o.Shipping, &o.Total, &o.CouponCode, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, nil, ErrNotFound
		}
		return Order{}, nil, fmt.Errorf("get order: %w", err)
	}

	const itemsQ = `
SELECT id, order_id, variant_id, sku, title, qty, unit_price, price_source, subtotal
FROM order_items WHERE order_id = $1 ORDER BY created_at`
	rows, err := s.db.Query(ctx, itemsQ, orderID)
	if err != nil {
		return Order{}, nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.VariantID, &it.SKU, &it.Title,
			&it.Qty, &it.UnitPrice, &it.Source, &it.Subtotal); err != nil {
			return Order{}, nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	return o, items, rows.Err()
}
