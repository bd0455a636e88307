package coupon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/lapak-id/backend-lapak/internal/common"
	"github.com/lapak-id/backend-lapak/internal/pricing"
)

// Quoter prices the caller's current cart. Implemented by the cart service;
// the indirection keeps this package from importing it.
type Quoter interface {
	PricedItems(ctx context.Context) ([]pricing.PricedItem, error)
}

// Handler exposes the public preview endpoint and the admin CRUD surface.
type Handler struct {
	Store    *Store
	Svc      *Service
	Quoter   Quoter
	Validate *validator.Validate
}

type couponPayload struct {
	Code           string           `json:"code" validate:"required,min=2,max=64"`
	Kind           string           `json:"kind" validate:"required,oneof=PERCENTAGE FIXED_AMOUNT"`
	Value          decimal.Decimal  `json:"value"`
	MinOrderAmount *decimal.Decimal `json:"minOrderAmount"`
	MaxUses        *int             `json:"maxUses" validate:"omitempty,min=1"`
	StartsAt       time.Time        `json:"startsAt" validate:"required"`
	EndsAt         *time.Time       `json:"endsAt"`
	Active         *bool            `json:"active"`
	ProductIDs     []string         `json:"productIds" validate:"omitempty,dive,uuid"`
	CategoryIDs    []string         `json:"categoryIds" validate:"omitempty,dive,uuid"`
	BrandIDs       []string         `json:"brandIds" validate:"omitempty,dive,uuid"`
}

func (p couponPayload) toCoupon() (Coupon, error) {
	active := true
	if p.Active != nil {
		active = *p.Active
	}
	c := Coupon{
		Code:           CanonicalCode(p.Code),
		Kind:           Kind(p.Kind),
		Value:          p.Value,
		MinOrderAmount: p.MinOrderAmount,
		MaxUses:        p.MaxUses,
		StartsAt:       p.StartsAt,
		EndsAt:         p.EndsAt,
		Active:         active,
	}
	var err error
	if c.ProductIDs, err = parseIDs(p.ProductIDs); err != nil {
		return Coupon{}, err
	}
	if c.CategoryIDs, err = parseIDs(p.CategoryIDs); err != nil {
		return Coupon{}, err
	}
	if c.BrandIDs, err = parseIDs(p.BrandIDs); err != nil {
		return Coupon{}, err
	}
	return c, c.Validate()
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

type applicationResponse struct {
	Code             string          `json:"code"`
	Discount         decimal.Decimal `json:"discount"`
	MatchedItems     int             `json:"matchedItems"`
	EligibleSubtotal decimal.Decimal `json:"eligibleSubtotal"`
	Capped           bool            `json:"capped"`
}

// Preview evaluates a code against the caller's current cart without
// reserving anything.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Code string `json:"code" validate:"required,min=2,max=64"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	items, err := h.Quoter.PricedItems(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to price cart", nil)
		return
	}
	app, err := h.Svc.Preview(r.Context(), payload.Code, items)
	if err != nil {
		WriteEvalError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, applicationResponse{
		Code:             app.Code,
		Discount:         app.Discount,
		MatchedItems:     app.MatchedItems,
		EligibleSubtotal: app.EligibleSubtotal,
		Capped:           app.Capped,
	})
}

// WriteEvalError maps evaluation failures onto the response envelope. Shared
// with the cart handlers so apply and preview report rejections identically.
func WriteEvalError(w http.ResponseWriter, err error) {
	var belowMin *BelowMinOrderError
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "COUPON_NOT_FOUND", "coupon not found", nil)
	case errors.Is(err, ErrInactive):
		common.JSONError(w, http.StatusUnprocessableEntity, "COUPON_INACTIVE", "coupon is not active", nil)
	case errors.Is(err, ErrNotYetValid):
		common.JSONError(w, http.StatusUnprocessableEntity, "COUPON_NOT_YET_VALID", "coupon is not valid yet", nil)
	case errors.Is(err, ErrExpired):
		common.JSONError(w, http.StatusUnprocessableEntity, "COUPON_EXPIRED", "coupon has expired", nil)
	case errors.Is(err, ErrUsesExhausted):
		common.JSONError(w, http.StatusUnprocessableEntity, "COUPON_EXHAUSTED", "coupon usage limit reached", nil)
	case errors.Is(err, ErrNoEligibleItems):
		common.JSONError(w, http.StatusUnprocessableEntity, "COUPON_NOT_ELIGIBLE", "no eligible items in cart", nil)
	case errors.As(err, &belowMin):
		common.JSONError(w, http.StatusUnprocessableEntity, "COUPON_MIN_ORDER", belowMin.Error(), map[string]any{
			"required": belowMin.Required,
			"eligible": belowMin.Eligible,
		})
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to evaluate coupon", nil)
	}
}

// Create registers a new coupon.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload couponPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	c, err := payload.toCoupon()
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	created, err := h.Store.Create(r.Context(), c)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "coupon code already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create coupon", nil)
		return
	}
	common.JSONData(w, http.StatusCreated, created)
}

// Update overwrites a coupon's rule by code.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	var payload couponPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	payload.Code = code
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	c, err := payload.toCoupon()
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	updated, err := h.Store.Update(r.Context(), c)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "coupon not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update coupon", nil)
		return
	}
	common.JSONData(w, http.StatusOK, updated)
}

// Delete removes a coupon by code.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Delete(r.Context(), chi.URLParam(r, "code")); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "coupon not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete coupon", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List returns all coupons.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.Store.List(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list coupons", nil)
		return
	}
	common.JSONData(w, http.StatusOK, coupons)
}
