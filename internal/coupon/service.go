package coupon

import (
	"context"
	"errors"
	"time"

	"github.com/lapak-id/backend-lapak/internal/obs"
	"github.com/lapak-id/backend-lapak/internal/pricing"
)

// Repo captures the coupon lookups the service needs.
type Repo interface {
	GetByCode(ctx context.Context, code string) (Coupon, error)
}

// Service evaluates coupons against priced carts without mutating state.
// Redemption (counter increments) happens only at checkout time.
type Service struct {
	Repo Repo
	Now  func() time.Time
}

// Preview resolves the code and runs a dry evaluation against the given
// priced items. The returned Application carries the discount a checkout
// would grant right now; nothing is reserved.
func (s *Service) Preview(ctx context.Context, code string, items []pricing.PricedItem) (Application, error) {
	if s == nil || s.Repo == nil {
		return Application{}, errors.New("coupon service not configured")
	}
	c, err := s.Repo.GetByCode(ctx, code)
	if err != nil {
		observeEval(err)
		return Application{}, err
	}
	app, err := Evaluate(c, items, s.now())
	observeEval(err)
	if err != nil {
		return Application{}, err
	}
	if app.Capped && obs.CouponCappedTotal != nil {
		obs.CouponCappedTotal.Inc()
	}
	return app, nil
}

// Resolve fetches a coupon for attachment to a cart. Attachment only checks
// existence; the full gate runs on every subsequent quote so a coupon that
// expires while attached stops discounting on its own.
func (s *Service) Resolve(ctx context.Context, code string) (Coupon, error) {
	if s == nil || s.Repo == nil {
		return Coupon{}, errors.New("coupon service not configured")
	}
	return s.Repo.GetByCode(ctx, code)
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func observeEval(err error) {
	if obs.CouponEvalTotal == nil {
		return
	}
	obs.CouponEvalTotal.WithLabelValues(evalResult(err)).Inc()
}

func evalResult(err error) string {
	var belowMin *BelowMinOrderError
	switch {
	case err == nil:
		return "applied"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInactive):
		return "inactive"
	case errors.Is(err, ErrNotYetValid):
		return "not_yet_valid"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrUsesExhausted):
		return "uses_exhausted"
	case errors.Is(err, ErrNoEligibleItems):
		return "no_eligible_items"
	case errors.As(err, &belowMin):
		return "below_min_order"
	default:
		return "error"
	}
}
