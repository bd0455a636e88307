// Package settings holds the store-wide configuration the pricing pipeline
// consumes: the global minimum order quantity, the guest price-visibility
// toggle, and the shipping rule parameters. The snapshot is injected into
// the core at call time so the pricing functions stay pure and testable.
package settings

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/lapak-id/backend-lapak/internal/pricing"
)

// Snapshot is an immutable view of the settings row.
type Snapshot struct {
	MOQ                   pricing.GlobalMOQ `json:"moq"`
	HidePricesForGuests   bool              `json:"hidePricesForGuests"`
	FreeShippingThreshold decimal.Decimal   `json:"freeShippingThreshold"`
	FlatShippingFee       decimal.Decimal   `json:"flatShippingFee"`
	UpdatedAt             time.Time         `json:"updatedAt"`
}

// ShippingRule builds the injected shipping policy from the snapshot.
func (s Snapshot) ShippingRule() pricing.ShippingRule {
	return pricing.FlatWithFreeThreshold(s.FreeShippingThreshold, s.FlatShippingFee)
}

// DBTX abstracts a pgx pool or transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads and writes the single settings row.
type Store struct {
	db DBTX
}

// NewStore constructs a Store.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

// Get loads the settings row.
func (s *Store) Get(ctx context.Context) (Snapshot, error) {
	const q = `
SELECT moq_active, moq_min_qty, hide_prices_for_guests,
       free_shipping_threshold, flat_shipping_fee, updated_at
FROM store_settings WHERE id = 1`
	var snap Snapshot
	err := s.db.QueryRow(ctx, q).Scan(
		&snap.MOQ.Active, &snap.MOQ.MinQty, &snap.HidePricesForGuests,
		&snap.FreeShippingThreshold, &snap.FlatShippingFee, &snap.UpdatedAt,
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("get settings: %w", err)
	}
	return snap, nil
}

// Update overwrites the settings row.
func (s *Store) Update(ctx context.Context, snap Snapshot) error {
	const q = `
UPDATE store_settings
SET moq_active = $1, moq_min_qty = $2, hide_prices_for_guests = $3,
    free_shipping_threshold = $4, flat_shipping_fee = $5, updated_at = now()
WHERE id = 1`
	_, err := s.db.Exec(ctx, q,
		snap.MOQ.Active, snap.MOQ.MinQty, snap.HidePricesForGuests,
		snap.FreeShippingThreshold, snap.FlatShippingFee,
	)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}
