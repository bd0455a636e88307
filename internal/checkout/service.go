package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lapak-id/backend-lapak/internal/cart"
	"github.com/lapak-id/backend-lapak/internal/catalog"
	"github.com/lapak-id/backend-lapak/internal/common"
	"github.com/lapak-id/backend-lapak/internal/coupon"
	"github.com/lapak-id/backend-lapak/internal/events"
	"github.com/lapak-id/backend-lapak/internal/obs"
)

var (
	// ErrAuthRequired is returned when a guest session attempts checkout.
	ErrAuthRequired = errors.New("checkout: sign in required")
	// ErrEmptyCart is returned when the cart has no lines.
	ErrEmptyCart = errors.New("checkout: cart is empty")
	// ErrBelowMinimumPayable is returned when the quoted total is under the
	// smallest chargeable amount.
	ErrBelowMinimumPayable = errors.New("checkout: total below minimum payable amount")
	// ErrBelowMOQ is returned when a cart line sits below its minimum order
	// quantity, which can happen when the minimum rose after the line was
	// added.
	ErrBelowMOQ = errors.New("checkout: line quantity below minimum order quantity")
)

// statusPendingPayment is the initial order state; payment capture is an
// external concern.
const statusPendingPayment = "PENDING_PAYMENT"

// Output is the placement result.
type Output struct {
	OrderID uuid.UUID   `json:"orderId"`
	Status  string      `json:"status"`
	Order   Order       `json:"order"`
	Items   []OrderItem `json:"items"`
}

// Service places orders. Counter settlement (coupon uses, flash sale stock)
// and the order insert share one transaction so a lost race on either
// counter aborts the whole placement.
type Service struct {
	Pool     *pgxpool.Pool
	Orders   *Store
	Carts    *cart.Store
	Coupons  *coupon.Store
	Catalog  *catalog.Store
	CartSvc  *cart.Service
	Events   *events.Bus
	Currency string
}

// Create re-quotes the caller's cart and settles it into an order.
func (s *Service) Create(ctx context.Context) (Output, error) {
	out, err := s.create(ctx)
	if obs.CheckoutTotal != nil {
		obs.CheckoutTotal.WithLabelValues(checkoutResult(err)).Inc()
	}
	return out, err
}

func (s *Service) create(ctx context.Context) (Output, error) {
	if s == nil || s.Pool == nil || s.Orders == nil || s.CartSvc == nil {
		return Output{}, errors.New("checkout service not configured")
	}
	rawUserID, ok := common.UserID(ctx)
	if !ok {
		return Output{}, ErrAuthRequired
	}
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		return Output{}, fmt.Errorf("parse user id: %w", err)
	}

	// Fresh quote: stored cart state is quantities only, so this picks up
	// current slabs, sale windows, and coupon validity.
	q, err := s.CartSvc.Quote(ctx)
	if err != nil {
		return Output{}, err
	}
	if err := ValidateQuote(q); err != nil {
		return Output{}, err
	}

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Output{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	order := Order{
		UserID:   userID,
		CartID:   q.Cart.ID,
		Status:   statusPendingPayment,
		Currency: s.Currency,
		Subtotal: q.Totals.Subtotal,
		Discount: q.Totals.Discount,
		Shipping: q.Totals.Shipping,
		Total:    q.Totals.Total,
	}
	if q.Coupon != nil {
		code := q.Coupon.Code
		order.CouponCode = &code
	}

	otx := s.Orders.WithTx(tx)
	order, err = otx.InsertOrder(ctx, order)
	if err != nil {
		return Output{}, err
	}

	items := make([]OrderItem, 0, len(q.Items))
	for _, qi := range q.Items {
		item := OrderItem{
			OrderID:   order.ID,
			VariantID: qi.Priced.Item.VariantID,
			SKU:       qi.SKU,
			Title:     qi.Title,
			Qty:       qi.Priced.Item.Qty,
			UnitPrice: qi.Priced.UnitPrice,
			Source:    string(qi.Priced.Source),
			Subtotal:  qi.Priced.LineSubtotal,
		}
		if err := otx.InsertItem(ctx, item); err != nil {
			return Output{}, err
		}
		items = append(items, item)
	}

	// Settle the coupon's global usage quota. The guarded increment is the
	// race arbiter between concurrent checkouts on the last use.
	var redeemedCoupon *coupon.Coupon
	if q.Coupon != nil && s.Coupons != nil {
		couponTx := s.Coupons.WithTx(tx)
		cpn, err := couponTx.GetByCode(ctx, q.Coupon.Code)
		if err != nil {
			return Output{}, err
		}
		if err := couponTx.Redeem(ctx, cpn.ID); err != nil {
			return Output{}, err
		}
		redeemedCoupon = &cpn
	}

	// Settle flash sale stock per sale, aggregated across lines. A sold-out
	// ceiling aborts placement; the storefront re-quotes at the base price.
	if s.Catalog != nil {
		cattx := s.Catalog.WithTx(tx)
		for saleID, qty := range SaleIncrements(q) {
			if err := cattx.IncrementSoldCount(ctx, saleID, qty); err != nil {
				return Output{}, err
			}
		}
	}

	if s.Carts != nil {
		carttx := s.Carts.WithTx(tx)
		if err := carttx.ClearItems(ctx, q.Cart.ID); err != nil {
			return Output{}, err
		}
		if err := carttx.SetCoupon(ctx, q.Cart.ID, nil); err != nil {
			return Output{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Output{}, err
	}

	if s.Events != nil {
		_, _ = s.Events.Emit(ctx, events.TopicOrderCreated, order.ID, map[string]any{
			"orderId": order.ID,
			"userId":  userID,
			"total":   order.Total,
			"items":   len(items),
		})
		if redeemedCoupon != nil {
			_, _ = s.Events.Emit(ctx, events.TopicCouponRedeemed, redeemedCoupon.ID, map[string]any{
				"code":     redeemedCoupon.Code,
				"orderId":  order.ID,
				"discount": order.Discount,
			})
		}
	}

	return Output{OrderID: order.ID, Status: order.Status, Order: order, Items: items}, nil
}

// Get returns one of the caller's orders.
func (s *Service) Get(ctx context.Context, orderID uuid.UUID) (Order, []OrderItem, error) {
	if s == nil || s.Orders == nil {
		return Order{}, nil, errors.New("checkout service not configured")
	}
	rawUserID, ok := common.UserID(ctx)
	if !ok {
		return Order{}, nil, ErrAuthRequired
	}
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		return Order{}, nil, fmt.Errorf("parse user id: %w", err)
	}
	return s.Orders.GetByID(ctx, orderID, userID)
}

// ValidateQuote rejects quotes that cannot settle into an order.
func ValidateQuote(q cart.Quote) error {
	if len(q.Items) == 0 {
		return ErrEmptyCart
	}
	if len(q.MOQViolations) > 0 {
		return ErrBelowMOQ
	}
	if q.Totals.BelowMinimumPayable {
		return ErrBelowMinimumPayable
	}
	return nil
}

// SaleIncrements aggregates how much each flash sale's sold counter must
// advance for this quote, one increment per sale regardless of line count.
func SaleIncrements(q cart.Quote) map[uuid.UUID]int {
	increments := make(map[uuid.UUID]int)
	for _, qi := range q.Items {
		if qi.Sale != nil {
			increments[qi.Sale.ID] += qi.Priced.Item.Qty
		}
	}
	return increments
}

func checkoutResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrBelowMinimumPayable):
		return "below_minimum"
	case errors.Is(err, ErrBelowMOQ):
		return "below_moq"
	case errors.Is(err, coupon.ErrUsesExhausted):
		return "coupon_exhausted"
	case errors.Is(err, catalog.ErrSaleSoldOut):
		return "sale_sold_out"
	case errors.Is(err, ErrAuthRequired):
		return "auth_required"
	default:
		return "error"
	}
}
