// Package catalog provides the read layer the pricing pipeline consumes:
// variant snapshots, bulk pricing slabs, and flash sales, plus the admin
// surface that maintains slabs and sales.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/lapak-id/backend-lapak/internal/pricing"
)

// ErrNotFound indicates the requested catalog row does not exist.
var ErrNotFound = errors.New("catalog: not found")

// ErrSaleSoldOut indicates the flash sale quantity ceiling blocked an
// increment.
var ErrSaleSoldOut = errors.New("catalog: flash sale sold out")

// DBTX abstracts a pgx pool or transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// VariantSnapshot is the immutable per-variant view the pricing pipeline
// needs to build a line item.
type VariantSnapshot struct {
	VariantID   uuid.UUID       `json:"variantId"`
	ProductID   uuid.UUID       `json:"productId"`
	SKU         string          `json:"sku"`
	Title       string          `json:"title"`
	BasePrice   decimal.Decimal `json:"basePrice"`
	MOQOverride *int            `json:"moqOverride,omitempty"`
	BrandID     *uuid.UUID      `json:"brandId,omitempty"`
	CategoryIDs []uuid.UUID     `json:"categoryIds"`
}

// LineItem builds a validated pricing line item for the given quantity.
func (v VariantSnapshot) LineItem(qty int) (pricing.LineItem, error) {
	return pricing.NewLineItem(v.VariantID, v.ProductID, v.CategoryIDs, v.BrandID, qty, v.BasePrice, v.MOQOverride)
}

// FlashSaleRecord is the admin-facing view of a flash sale.
type FlashSaleRecord struct {
	ID          uuid.UUID       `json:"id"`
	StartsAt    time.Time       `json:"startsAt"`
	EndsAt      time.Time       `json:"endsAt"`
	DiscountPct decimal.Decimal `json:"discountPct"`
	MaxQty      *int            `json:"maxQty,omitempty"`
	SoldCount   int             `json:"soldCount"`
	Active      bool            `json:"active"`
	ProductIDs  []uuid.UUID     `json:"productIds"`
}

// Store runs hand-written catalog queries against Postgres.
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

// GetVariantSnapshot loads the pricing view of one variant.
func (s *Store) GetVariantSnapshot(ctx context.Context, variantID uuid.UUID) (VariantSnapshot, error) {
	const q = `
SELECT v.id, v.product_id, v.sku, p.title, v.base_price, v.moq_override, p.brand_id,
       COALESCE((SELECT array_agg(category_id) FROM product_categories WHERE product_id = p.id), '{}')
FROM product_variants v
JOIN products p ON p.id = v.product_id
WHERE v.id = $1`
	var snap VariantSnapshot
	err := s.db.QueryRow(ctx, q, variantID).Scan(
		&snap.VariantID, &snap.ProductID, &snap.SKU, &snap.Title,
		&snap.BasePrice, &snap.MOQOverride, &snap.BrandID, &snap.CategoryIDs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return VariantSnapshot{}, ErrNotFound
		}
		return VariantSnapshot{}, fmt.Errorf("get variant snapshot: %w", err)
	}
	return snap, nil
}

// ListSlabs returns the bulk pricing tiers for a variant ordered by
// ascending minimum quantity.
func (s *Store) ListSlabs(ctx context.Context, variantID uuid.UUID) ([]pricing.Slab, error) {
	const q = `SELECT min_qty, unit_price FROM pricing_slabs WHERE variant_id = $1 ORDER BY min_qty`
	rows, err := s.db.Query(ctx, q, variantID)
	if err != nil {
		return nil, fmt.Errorf("list slabs: %w", err)
	}
	defer rows.Close()
	var slabs []pricing.Slab
	for rows.Next() {
		var slab pricing.Slab
		if err := rows.Scan(&slab.MinQty, &slab.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan slab: %w", err)
		}
		slabs = append(slabs, slab)
	}
	return slabs, rows.Err()
}

// ActiveSaleForProduct finds the flash sale covering the product whose window
// contains now. Effectiveness (including the quantity ceiling) is still
// re-evaluated by the pricing core on every call.
func (s *Store) ActiveSaleForProduct(ctx context.Context, productID uuid.UUID, now time.Time) (*pricing.FlashSale, error) {
	const q = `
SELECT fs.id, fs.starts_at, fs.ends_at, fs.discount_pct, fs.max_qty, fs.sold_count, fs.active,
       COALESCE((SELECT array_agg(product_id) FROM flash_sale_products WHERE flash_sale_id = fs.id), '{}')
FROM flash_sales fs
JOIN flash_sale_products fsp ON fsp.flash_sale_id = fs.id
WHERE fsp.product_id = $1 AND fs.active AND fs.starts_at <= $2 AND fs.ends_at >= $2
ORDER BY fs.starts_at DESC
LIMIT 1`
	var (
		sale   pricing.FlashSale
		maxQty *int
	)
	err := s.db.QueryRow(ctx, q, productID, now).Scan(
		&sale.ID, &sale.StartAt, &sale.EndAt, &sale.DiscountPct,
		&maxQty, &sale.SoldCount, &sale.Active, &sale.ProductIDs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("active sale for product: %w", err)
	}
	sale.MaxQty = maxQty
	return &sale, nil
}

// CreateSlab inserts one pricing tier. Thresholds are unique per variant.
func (s *Store) CreateSlab(ctx context.Context, variantID uuid.UUID, slab pricing.Slab) error {
	const q = `INSERT INTO pricing_slabs (variant_id, min_qty, unit_price) VALUES ($1, $2, $3)`
	_, err := s.db.Exec(ctx, q, variantID, slab.MinQty, slab.UnitPrice)
	if err != nil {
		return fmt.Errorf("create slab: %w", err)
	}
	return nil
}

// DeleteSlab removes one pricing tier by variant and threshold.
func (s *Store) DeleteSlab(ctx context.Context, variantID uuid.UUID, minQty int) error {
	const q = `DELETE FROM pricing_slabs WHERE variant_id = $1 AND min_qty = $2`
	tag, err := s.db.Exec(ctx, q, variantID, minQty)
	if err != nil {
		return fmt.Errorf("delete slab: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateFlashSale inserts a sale and its product scope.
func (s *Store) CreateFlashSale(ctx context.Context, rec FlashSaleRecord) (uuid.UUID, error) {
	const q = `
INSERT INTO flash_sales (starts_at, ends_at, discount_pct, max_qty, active)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`
	var id uuid.UUID
	if err := s.db.QueryRow(ctx, q, rec.StartsAt, rec.EndsAt, rec.DiscountPct, rec.MaxQty, rec.Active).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("create flash sale: %w", err)
	}
	for _, productID := range rec.ProductIDs {
		const pq = `INSERT INTO flash_sale_products (flash_sale_id, product_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
		if _, err := s.db.Exec(ctx, pq, id, productID); err != nil {
			return uuid.Nil, fmt.Errorf("attach flash sale product: %w", err)
		}
	}
	return id, nil
}

// SetFlashSaleActive toggles a sale on or off.
func (s *Store) SetFlashSaleActive(ctx context.Context, id uuid.UUID, active bool) error {
	const q = `UPDATE flash_sales SET active = $2 WHERE id = $1`
	tag, err := s.db.Exec(ctx, q, id, active)
	if err != nil {
		return fmt.Errorf("set flash sale active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFlashSales returns all sales for the admin listing.
func (s *Store) ListFlashSales(ctx context.Context) ([]FlashSaleRecord, error) {
	const q = `
SELECT fs.id, fs.starts_at, fs.ends_at, fs.discount_pct, fs.max_qty, fs.sold_count, fs.active,
       COALESCE((SELECT array_agg(product_id) FROM flash_sale_products WHERE flash_sale_id = fs.id), '{}')
FROM flash_sales fs
ORDER BY fs.starts_at DESC`
	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list flash sales: %w", err)
	}
	defer rows.Close()
	var records []FlashSaleRecord
	for rows.Next() {
		var rec FlashSaleRecord
		if err := rows.Scan(&rec.ID, &rec.StartsAt, &rec.EndsAt, &rec.DiscountPct, &rec.MaxQty, &rec.SoldCount, &rec.Active, &rec.ProductIDs); err != nil {
			return nil, fmt.Errorf("scan flash sale: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// IncrementSoldCount reserves sold quantity against the sale's ceiling. The
// conditional update is the concurrency control preventing overselling under
// concurrent checkouts; no row means the ceiling would be exceeded.
func (s *Store) IncrementSoldCount(ctx context.Context, saleID uuid.UUID, qty int) error {
	const q = `
UPDATE flash_sales
SET sold_count = sold_count + $2
WHERE id = $1 AND (max_qty IS NULL OR sold_count + $2 <= max_qty)`
	tag, err := s.db.Exec(ctx, q, saleID, qty)
	if err != nil {
		return fmt.Errorf("increment sold count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSaleSoldOut
	}
	return nil
}

// DeactivateEndedSales flips off sales whose window has passed, returning the
// number of sales swept.
func (s *Store) DeactivateEndedSales(ctx context.Context, now time.Time) (int64, error) {
	const q = `UPDATE flash_sales SET active = FALSE WHERE active AND ends_at < $1`
	tag, err := s.db.Exec(ctx, q, now)
	if err != nil {
		return 0, fmt.Errorf("deactivate ended sales: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListVariantIDsByProduct supports cache invalidation when a product's sale
// or slab configuration changes.
func (s *Store) ListVariantIDsByProduct(ctx context.Context, productID uuid.UUID) ([]uuid.UUID, error) {
	const q = `SELECT id FROM product_variants WHERE product_id = $1`
	rows, err := s.db.Query(ctx, q, productID)
	if err != nil {
		return nil, fmt.Errorf("list variant ids: %w", err)
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan variant id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
