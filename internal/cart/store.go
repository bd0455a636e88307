// Package cart owns cart persistence and the quote pipeline that turns
// stored quantities into priced totals. Cart items persist quantity only;
// unit prices are resolved on every read so slab changes, flash sale
// windows, and coupon validity are always reflected live.
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates the cart or item does not exist.
	ErrNotFound = errors.New("cart: not found")
	// ErrInvalidInput is returned when the provided payload is invalid.
	ErrInvalidInput = errors.New("cart: invalid input")
)

// DBTX abstracts a pgx pool or transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Cart is the persistent shell: identity, applied coupon code, expiry.
type Cart struct {
	ID         uuid.UUID  `json:"id"`
	UserID     *uuid.UUID `json:"userId,omitempty"`
	AnonID     *string    `json:"anonId,omitempty"`
	CouponCode *string    `json:"couponCode,omitempty"`
	ExpiresAt  time.Time  `json:"expiresAt"`
}

// Item stores what the shopper chose, not what it costs.
type Item struct {
	ID        uuid.UUID `json:"id"`
	CartID    uuid.UUID `json:"cartId"`
	VariantID uuid.UUID `json:"variantId"`
	Qty       int       `json:"qty"`
}

// Store runs hand-written cart queries against Postgres.
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

const cartColumns = `id, user_id, anon_id, coupon_code, expires_at`

func scanCart(row pgx.Row) (Cart, error) {
	var c Cart
	err := row.Scan(&c.ID, &c.UserID, &c.AnonID, &c.CouponCode, &c.ExpiresAt)
	return c, err
}

// GetByID loads a cart regardless of expiry.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (Cart, error) {
	q := `SELECT ` + cartColumns + ` FROM carts WHERE id = $1`
	c, err := scanCart(s.db.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cart{}, ErrNotFound
		}
		return Cart{}, fmt.Errorf("get cart: %w", err)
	}
	return c, nil
}

// GetActiveByUser returns the user's unexpired cart.
func (s *Store) GetActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) (Cart, error) {
	q := `SELECT ` + cartColumns + ` FROM carts WHERE user_id = $1 AND expires_at > $2 ORDER BY created_at DESC LIMIT 1`
	c, err := scanCart(s.db.QueryRow(ctx, q, userID, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cart{}, ErrNotFound
		}
		return Cart{}, fmt.Errorf("get cart by user: %w", err)
	}
	return c, nil
}

// GetActiveByAnon returns the guest session's unexpired cart.
func (s *Store) GetActiveByAnon(ctx context.Context, anonID string, now time.Time) (Cart, error) {
	q := `SELECT ` + cartColumns + ` FROM carts WHERE anon_id = $1 AND expires_at > $2 ORDER BY created_at DESC LIMIT 1`
	c, err := scanCart(s.db.QueryRow(ctx, q, anonID, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cart{}, ErrNotFound
		}
		return Cart{}, fmt.Errorf("get cart by anon: %w", err)
	}
	return c, nil
}

// Create inserts a cart for one of the two identity kinds.
func (s *Store) Create(ctx context.Context, userID *uuid.UUID, anonID *string, expiresAt time.Time) (Cart, error) {
	q := `INSERT INTO carts (user_id, anon_id, expires_at) VALUES ($1, $2, $3) RETURNING ` + cartColumns
	c, err := scanCart(s.db.QueryRow(ctx, q, userID, anonID, expiresAt))
	if err != nil {
		return Cart{}, fmt.Errorf("create cart: %w", err)
	}
	return c, nil
}

// Touch slides the cart's expiry forward.
func (s *Store) Touch(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	const q = `UPDATE carts SET expires_at = $2, updated_at = now() WHERE id = $1`
	_, err := s.db.Exec(ctx, q, id, expiresAt)
	return err
}

// SetCoupon attaches or clears the applied coupon code.
func (s *Store) SetCoupon(ctx context.Context, id uuid.UUID, code *string) error {
	const q = `UPDATE carts SET coupon_code = $2, updated_at = now() WHERE id = $1`
	tag, err := s.db.Exec(ctx, q, id, code)
	if err != nil {
		return fmt.Errorf("set cart coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListItems returns the cart's items in insertion order.
func (s *Store) ListItems(ctx context.Context, cartID uuid.UUID) ([]Item, error) {
	const q = `SELECT id, cart_id, variant_id, qty FROM cart_items WHERE cart_id = $1 ORDER BY created_at`
	rows, err := s.db.Query(ctx, q, cartID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.CartID, &it.VariantID, &it.Qty); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// FindItemByVariant locates the cart line for a variant, if any.
func (s *Store) FindItemByVariant(ctx context.Context, cartID, variantID uuid.UUID) (Item, error) {
	const q = `SELECT id, cart_id, variant_id, qty FROM cart_items WHERE cart_id = $1 AND variant_id = $2`
	var it Item
	err := s.db.QueryRow(ctx, q, cartID, variantID).Scan(&it.ID, &it.CartID, &it.VariantID, &it.Qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, fmt.Errorf("find cart item: %w", err)
	}
	return it, nil
}

// GetItemByID loads one cart line.
func (s *Store) GetItemByID(ctx context.Context, itemID uuid.UUID) (Item, error) {
	const q = `SELECT id, cart_id, variant_id, qty FROM cart_items WHERE id = $1`
	var it Item
	err := s.db.QueryRow(ctx, q, itemID).Scan(&it.ID, &it.CartID, &it.VariantID, &it.Qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, fmt.Errorf("get cart item: %w", err)
	}
	return it, nil
}

// InsertItem creates a cart line.
func (s *Store) InsertItem(ctx context.Context, cartID, variantID uuid.UUID, qty int) (Item, error) {
	const q = `INSERT INTO cart_items (cart_id, variant_id, qty) VALUES ($1, $2, $3) RETURNING id, cart_id, variant_id, qty`
	var it Item
	err := s.db.QueryRow(ctx, q, cartID, variantID, qty).Scan(&it.ID, &it.CartID, &it.VariantID, &it.Qty)
	if err != nil {
		return Item{}, fmt.Errorf("insert cart item: %w", err)
	}
	return it, nil
}

// UpdateItemQty overwrites a line's quantity.
func (s *Store) UpdateItemQty(ctx context.Context, itemID uuid.UUID, qty int) error {
	const q = `UPDATE cart_items SET qty = $2, updated_at = now() WHERE id = $1`
	tag, err := s.db.Exec(ctx, q, itemID, qty)
	if err != nil {
		return fmt.Errorf("update cart item qty: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteItem removes a line, scoped to the owning cart.
func (s *Store) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	const q = `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`
	tag, err := s.db.Exec(ctx, q, itemID, cartID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearItems empties a cart after a successful checkout.
func (s *Store) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	const q = `DELETE FROM cart_items WHERE cart_id = $1`
	_, err := s.db.Exec(ctx, q, cartID)
	return err
}

// DeleteExpired removes carts whose expiry has passed; items cascade.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM carts WHERE expires_at <= $1`
	tag, err := s.db.Exec(ctx, q, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired carts: %w", err)
	}
	return tag.RowsAffected(), nil
}
