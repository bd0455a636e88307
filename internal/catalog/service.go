package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lapak-id/backend-lapak/internal/pricing"
)

// Reader captures the store methods the pricing context needs.
type Reader interface {
	GetVariantSnapshot(ctx context.Context, variantID uuid.UUID) (VariantSnapshot, error)
	ListSlabs(ctx context.Context, variantID uuid.UUID) ([]pricing.Slab, error)
	ActiveSaleForProduct(ctx context.Context, productID uuid.UUID, now time.Time) (*pricing.FlashSale, error)
	ListVariantIDsByProduct(ctx context.Context, productID uuid.UUID) ([]uuid.UUID, error)
}

// PricingContext bundles everything the unit price resolver needs for one
// variant.
type PricingContext struct {
	Variant VariantSnapshot    `json:"variant"`
	Slabs   []pricing.Slab     `json:"slabs"`
	Sale    *pricing.FlashSale `json:"sale,omitempty"`
}

// Service assembles pricing contexts with a short-lived Redis cache in front
// of the store. The cache TTL bounds sold-count staleness for previews;
// checkout re-checks the ceiling with a guarded increment regardless.
type Service struct {
	Store Reader
	Cache *Cache
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func pricingContextKey(variantID uuid.UUID) string {
	return fmt.Sprintf("pricectx:%s", variantID)
}

// PricingContext loads the variant snapshot, slabs, and any sale window
// covering the variant's product right now.
func (s *Service) PricingContext(ctx context.Context, variantID uuid.UUID) (PricingContext, error) {
	if s == nil || s.Store == nil {
		return PricingContext{}, fmt.Errorf("catalog service not configured")
	}

	key := pricingContextKey(variantID)
	var cached PricingContext
	if ok, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}

	snap, err := s.Store.GetVariantSnapshot(ctx, variantID)
	if err != nil {
		return PricingContext{}, err
	}
	slabs, err := s.Store.ListSlabs(ctx, variantID)
	if err != nil {
		return PricingContext{}, err
	}
	sale, err := s.Store.ActiveSaleForProduct(ctx, snap.ProductID, s.now())
	if err != nil {
		return PricingContext{}, err
	}

	pc := PricingContext{Variant: snap, Slabs: slabs, Sale: sale}
	_ = s.Cache.SetJSON(ctx, key, pc)
	return pc, nil
}

// InvalidateVariants drops cached pricing contexts after admin changes.
func (s *Service) InvalidateVariants(ctx context.Context, variantIDs ...uuid.UUID) {
	if s == nil || len(variantIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(variantIDs))
	for _, id := range variantIDs {
		keys = append(keys, pricingContextKey(id))
	}
	_ = s.Cache.Delete(ctx, keys...)
}

// InvalidateProducts drops cached pricing contexts for every variant of the
// given products, used when a flash sale's scope changes.
func (s *Service) InvalidateProducts(ctx context.Context, productIDs ...uuid.UUID) {
	if s == nil || s.Store == nil {
		return
	}
	for _, productID := range productIDs {
		ids, err := s.Store.ListVariantIDsByProduct(ctx, productID)
		if err != nil {
			continue
		}
		s.InvalidateVariants(ctx, ids...)
	}
}
