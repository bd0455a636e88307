package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstracts a pgx pool or transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store runs hand-written coupon queries against Postgres. Codes are stored
// in canonical uppercase form; lookups canonicalize before matching.
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

const couponColumns = `id, code, kind, value, min_order_amount, max_uses, used_count,
       starts_at, ends_at, active, product_ids, category_ids, brand_ids`

func scanCoupon(row pgx.Row) (Coupon, error) {
	var c Coupon
	err := row.Scan(
		&c.ID, &c.Code, &c.Kind, &c.Value, &c.MinOrderAmount, &c.MaxUses, &c.UsedCount,
		&c.StartsAt, &c.EndsAt, &c.Active, &c.ProductIDs, &c.CategoryIDs, &c.BrandIDs,
	)
	return c, err
}

// GetByCode looks a coupon up by its case-insensitive code.
func (s *Store) GetByCode(ctx context.Context, code string) (Coupon, error) {
	q := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`
	c, err := scanCoupon(s.db.QueryRow(ctx, q, CanonicalCode(code)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Coupon{}, ErrNotFound
		}
		return Coupon{}, fmt.Errorf("get coupon by code: %w", err)
	}
	return c, nil
}

// Create inserts a coupon, canonicalizing the code.
func (s *Store) Create(ctx context.Context, c Coupon) (Coupon, error) {
	q := `
INSERT INTO coupons (code, kind, value, min_order_amount, max_uses, starts_at, ends_at, active,
                     product_ids, category_ids, brand_ids)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + couponColumns
	created, err := scanCoupon(s.db.QueryRow(ctx, q,
		CanonicalCode(c.Code), c.Kind, c.Value, c.MinOrderAmount, c.MaxUses,
		c.StartsAt, c.EndsAt, c.Active,
		idsOrEmpty(c.ProductIDs), idsOrEmpty(c.CategoryIDs), idsOrEmpty(c.BrandIDs),
	))
	if err != nil {
		return Coupon{}, fmt.Errorf("create coupon: %w", err)
	}
	return created, nil
}

// Update overwrites the coupon identified by code. The usage counter is
// deliberately untouched: it only moves through Redeem.
func (s *Store) Update(ctx context.Context, c Coupon) (Coupon, error) {
	q := `
UPDATE coupons
SET kind = $2, value = $3, min_order_amount = $4, max_uses = $5,
    starts_at = $6, ends_at = $7, active = $8,
    product_ids = $9, category_ids = $10, brand_ids = $11, updated_at = now()
WHERE code = $1
RETURNING ` + couponColumns
	updated, err := scanCoupon(s.db.QueryRow(ctx, q,
		CanonicalCode(c.Code), c.Kind, c.Value, c.MinOrderAmount, c.MaxUses,
		c.StartsAt, c.EndsAt, c.Active,
		idsOrEmpty(c.ProductIDs), idsOrEmpty(c.CategoryIDs), idsOrEmpty(c.BrandIDs),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Coupon{}, ErrNotFound
		}
		return Coupon{}, fmt.Errorf("update coupon: %w", err)
	}
	return updated, nil
}

// Delete removes a coupon by code.
func (s *Store) Delete(ctx context.Context, code string) error {
	const q = `DELETE FROM coupons WHERE code = $1`
	tag, err := s.db.Exec(ctx, q, CanonicalCode(code))
	if err != nil {
		return fmt.Errorf("delete coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all coupons for the admin listing.
func (s *Store) List(ctx context.Context) ([]Coupon, error) {
	q := `SELECT ` + couponColumns + ` FROM coupons ORDER BY starts_at DESC`
	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()
	var coupons []Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		coupons = append(coupons, c)
	}
	return coupons, rows.Err()
}

// Redeem increments the usage counter, guarded by the quota. The conditional
// update is the concurrency control preventing over-redemption under
// concurrent checkouts; no row means the quota is spent.
func (s *Store) Redeem(ctx context.Context, id uuid.UUID) error {
	const q = `
UPDATE coupons
SET used_count = used_count + 1, updated_at = now()
WHERE id = $1 AND (max_uses IS NULL OR used_count < max_uses)`
	tag, err := s.db.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("redeem coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUsesExhausted
	}
	return nil
}

// DeactivateExpired flips off coupons whose end date has passed, returning
// the number swept.
func (s *Store) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `UPDATE coupons SET active = FALSE, updated_at = now() WHERE active AND ends_at IS NOT NULL AND ends_at < $1`
	tag, err := s.db.Exec(ctx, q, now)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired coupons: %w", err)
	}
	return tag.RowsAffected(), nil
}

func idsOrEmpty(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
