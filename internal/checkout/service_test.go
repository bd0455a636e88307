package checkout

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lapak-id/backend-lapak/internal/cart"
	"github.com/lapak-id/backend-lapak/internal/pricing"
)

func quotedLine(t *testing.T, qty int, unit string, sale *pricing.FlashSale) cart.QuotedItem {
	t.Helper()
	item, err := pricing.NewLineItem(uuid.New(), uuid.New(), nil, nil, qty, decimal.RequireFromString(unit), nil)
	require.NoError(t, err)
	price := decimal.RequireFromString(unit)
	return cart.QuotedItem{
		ItemID: uuid.New(),
		Priced: pricing.PricedItem{
			Item:         item,
			UnitPrice:    price,
			Source:       pricing.SourceDefault,
			LineSubtotal: price.Mul(decimal.NewFromInt(int64(qty))),
		},
		Sale: sale,
	}
}

func TestValidateQuoteRejectsEmptyCart(t *testing.T) {
	require.ErrorIs(t, ValidateQuote(cart.Quote{}), ErrEmptyCart)
}

func TestValidateQuoteRejectsMOQShortfall(t *testing.T) {
	line := quotedLine(t, 2, "10.00", nil)
	q := cart.Quote{
		Items: []cart.QuotedItem{line},
		MOQViolations: []cart.MOQViolation{
			{ItemID: line.ItemID, Qty: 2, Required: 5},
		},
		Totals: pricing.CartTotals{Total: decimal.NewFromInt(20)},
	}
	require.ErrorIs(t, ValidateQuote(q), ErrBelowMOQ)
}

func TestValidateQuoteRejectsBelowMinimumPayable(t *testing.T) {
	q := cart.Quote{
		Items:  []cart.QuotedItem{quotedLine(t, 1, "0.50", nil)},
		Totals: pricing.CartTotals{BelowMinimumPayable: true},
	}
	require.ErrorIs(t, ValidateQuote(q), ErrBelowMinimumPayable)
}

func TestValidateQuoteAcceptsPayableCart(t *testing.T) {
	q := cart.Quote{
		Items:  []cart.QuotedItem{quotedLine(t, 1, "10.00", nil)},
		Totals: pricing.CartTotals{Total: decimal.NewFromInt(10)},
	}
	require.NoError(t, ValidateQuote(q))
}

func TestSaleIncrementsAggregatesPerSale(t *testing.T) {
	now := time.Now()
	saleA, err := pricing.NewFlashSale(uuid.New(), now.Add(-time.Hour), now.Add(time.Hour),
		decimal.NewFromInt(20), nil, 0, true, []uuid.UUID{uuid.New()})
	require.NoError(t, err)
	saleB, err := pricing.NewFlashSale(uuid.New(), now.Add(-time.Hour), now.Add(time.Hour),
		decimal.NewFromInt(30), nil, 0, true, []uuid.UUID{uuid.New()})
	require.NoError(t, err)

	q := cart.Quote{Items: []cart.QuotedItem{
		quotedLine(t, 2, "10.00", &saleA),
		quotedLine(t, 3, "10.00", &saleA),
		quotedLine(t, 1, "10.00", &saleB),
		quotedLine(t, 4, "10.00", nil),
	}}

	increments := SaleIncrements(q)
	require.Len(t, increments, 2)
	require.Equal(t, 5, increments[saleA.ID])
	require.Equal(t, 1, increments[saleB.ID])
}
