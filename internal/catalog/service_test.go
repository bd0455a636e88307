package catalog_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lapak-id/backend-lapak/internal/catalog"
	"github.com/lapak-id/backend-lapak/internal/pricing"
)

type stubReader struct {
	snapshot      catalog.VariantSnapshot
	slabs         []pricing.Slab
	sale          *pricing.FlashSale
	variantCalls  int
	productToVars map[uuid.UUID][]uuid.UUID
}

func (r *stubReader) GetVariantSnapshot(_ context.Context, variantID uuid.UUID) (catalog.VariantSnapshot, error) {
	r.variantCalls++
	if variantID != r.snapshot.VariantID {
		return catalog.VariantSnapshot{}, catalog.ErrNotFound
	}
	return r.snapshot, nil
}

func (r *stubReader) ListSlabs(_ context.Context, _ uuid.UUID) ([]pricing.Slab, error) {
	return r.slabs, nil
}

func (r *stubReader) ActiveSaleForProduct(_ context.Context, _ uuid.UUID, _ time.Time) (*pricing.FlashSale, error) {
	return r.sale, nil
}

func (r *stubReader) ListVariantIDsByProduct(_ context.Context, productID uuid.UUID) ([]uuid.UUID, error) {
	return r.productToVars[productID], nil
}

func newTestService(t *testing.T) (*catalog.Service, *stubReader) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	variantID := uuid.New()
	productID := uuid.New()
	reader := &stubReader{
		snapshot: catalog.VariantSnapshot{
			VariantID: variantID,
			ProductID: productID,
			SKU:       "SKU-1",
			Title:     "Widget",
			BasePrice: decimal.NewFromInt(100),
		},
		slabs: []pricing.Slab{
			{MinQty: 5, UnitPrice: decimal.NewFromInt(90)},
		},
		productToVars: map[uuid.UUID][]uuid.UUID{productID: {variantID}},
	}

	svc := &catalog.Service{
		Store: reader,
		Cache: catalog.NewCache(client, time.Minute),
	}
	return svc, reader
}

func TestPricingContextCachesSecondRead(t *testing.T) {
	svc, reader := newTestService(t)
	ctx := context.Background()

	first, err := svc.PricingContext(ctx, reader.snapshot.VariantID)
	require.NoError(t, err)
	require.Equal(t, "SKU-1", first.Variant.SKU)
	require.Len(t, first.Slabs, 1)
	require.Equal(t, 1, reader.variantCalls)

	second, err := svc.PricingContext(ctx, reader.snapshot.VariantID)
	require.NoError(t, err)
	require.True(t, first.Variant.BasePrice.Equal(second.Variant.BasePrice))
	require.Equal(t, 1, reader.variantCalls, "second read should be served from cache")
}

func TestPricingContextUnknownVariant(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.PricingContext(context.Background(), uuid.New())
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestInvalidateVariantsDropsCachedContext(t *testing.T) {
	svc, reader := newTestService(t)
	ctx := context.Background()

	_, err := svc.PricingContext(ctx, reader.snapshot.VariantID)
	require.NoError(t, err)
	require.Equal(t, 1, reader.variantCalls)

	svc.InvalidateVariants(ctx, reader.snapshot.VariantID)

	_, err = svc.PricingContext(ctx, reader.snapshot.VariantID)
	require.NoError(t, err)
	require.Equal(t, 2, reader.variantCalls, "invalidation should force a store read")
}

func TestInvalidateProductsDropsEveryVariant(t *testing.T) {
	svc, reader := newTestService(t)
	ctx := context.Background()

	_, err := svc.PricingContext(ctx, reader.snapshot.VariantID)
	require.NoError(t, err)

	svc.InvalidateProducts(ctx, reader.snapshot.ProductID)

	_, err = svc.PricingContext(ctx, reader.snapshot.VariantID)
	require.NoError(t, err)
	require.Equal(t, 2, reader.variantCalls)
}

func TestPricingContextCarriesActiveSale(t *testing.T) {
	svc, reader := newTestService(t)
	now := time.Now()
	reader.sale = &pricing.FlashSale{
		ID:          uuid.New(),
		StartAt:     now.Add(-time.Hour),
		EndAt:       now.Add(time.Hour),
		DiscountPct: decimal.NewFromInt(20),
		Active:      true,
		ProductIDs:  []uuid.UUID{reader.snapshot.ProductID},
	}

	pc, err := svc.PricingContext(context.Background(), reader.snapshot.VariantID)
	require.NoError(t, err)
	require.NotNil(t, pc.Sale)
	require.True(t, pc.Sale.DiscountPct.Equal(decimal.NewFromInt(20)))
}
