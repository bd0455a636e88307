package cart

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lapak-id/backend-lapak/internal/catalog"
	"github.com/lapak-id/backend-lapak/internal/common"
	"github.com/lapak-id/backend-lapak/internal/coupon"
	"github.com/lapak-id/backend-lapak/internal/pricing"
)

// Handler exposes the storefront cart endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type addItemPayload struct {
	VariantID string `json:"variantId" validate:"required,uuid"`
	Qty       int    `json:"qty" validate:"required,min=1"`
}

type itemResponse struct {
	ID        uuid.UUID        `json:"id"`
	VariantID uuid.UUID        `json:"variantId"`
	SKU       string           `json:"sku"`
	Title     string           `json:"title"`
	Qty       int              `json:"qty"`
	UnitPrice *decimal.Decimal `json:"unitPrice,omitempty"`
	Source    string           `json:"priceSource,omitempty"`
	Subtotal  *decimal.Decimal `json:"subtotal,omitempty"`
}

type moqViolationResponse struct {
	ItemID      uuid.UUID `json:"itemId"`
	SKU         string    `json:"sku"`
	Qty         int       `json:"qty"`
	RequiredQty int       `json:"requiredQty"`
}

type quoteResponse struct {
	CartID          uuid.UUID              `json:"cartId"`
	Items           []itemResponse         `json:"items"`
	CouponCode      *string                `json:"couponCode,omitempty"`
	CouponRejection string                 `json:"couponRejection,omitempty"`
	MOQViolations   []moqViolationResponse `json:"moqViolations,omitempty"`
	Subtotal        *decimal.Decimal       `json:"subtotal,omitempty"`
	Discount        *decimal.Decimal       `json:"discount,omitempty"`
	Shipping        *decimal.Decimal       `json:"shipping,omitempty"`
	Total           *decimal.Decimal       `json:"total,omitempty"`
	PricesHidden    bool                   `json:"pricesHidden,omitempty"`
}

// renderQuote flattens a quote for transport. When the session must not see
// prices every monetary field is withheld; quantities and titles remain.
func renderQuote(q Quote) quoteResponse {
	resp := quoteResponse{
		CartID:       q.Cart.ID,
		Items:        make([]itemResponse, 0, len(q.Items)),
		CouponCode:   q.Cart.CouponCode,
		PricesHidden: q.Totals.RedactPrices,
	}
	if q.CouponRejection != nil {
		resp.CouponRejection = q.CouponRejection.Error()
	}
	for _, v := range q.MOQViolations {
		resp.MOQViolations = append(resp.MOQViolations, moqViolationResponse{
			ItemID:      v.ItemID,
			SKU:         v.SKU,
			Qty:         v.Qty,
			RequiredQty: v.Required,
		})
	}
	for _, it := range q.Items {
		item := itemResponse{
			ID:        it.ItemID,
			VariantID: it.Priced.Item.VariantID,
			SKU:       it.SKU,
			Title:     it.Title,
			Qty:       it.Priced.Item.Qty,
		}
		if !q.Totals.RedactPrices {
			unit := it.Priced.UnitPrice
			sub := it.Priced.LineSubtotal
			item.UnitPrice = &unit
			item.Subtotal = &sub
			item.Source = string(it.Priced.Source)
		}
		resp.Items = append(resp.Items, item)
	}
	if !q.Totals.RedactPrices {
		resp.Subtotal = &q.Totals.Subtotal
		resp.Discount = &q.Totals.Discount
		resp.Shipping = &q.Totals.Shipping
		resp.Total = &q.Totals.Total
	}
	return resp
}

// Get returns the live quote for the caller's cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	q, err := h.Svc.Quote(r.Context())
	if err != nil {
		writeCartError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, renderQuote(q))
}

// AddItem adds or increments a variant in the cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var payload addItemPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	variantID, err := uuid.Parse(payload.VariantID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid variant id", nil)
		return
	}
	if _, err := h.Svc.AddItem(r.Context(), variantID, payload.Qty); err != nil {
		writeCartError(w, err)
		return
	}
	h.respondWithQuote(w, r, http.StatusCreated)
}

// UpdateItem sets a line's quantity.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	var payload struct {
		Qty int `json:"qty" validate:"required,min=1"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	if _, err := h.Svc.UpdateItemQty(r.Context(), itemID, payload.Qty); err != nil {
		writeCartError(w, err)
		return
	}
	h.respondWithQuote(w, r, http.StatusOK)
}

// RemoveItem deletes a line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	if err := h.Svc.RemoveItem(r.Context(), itemID); err != nil {
		writeCartError(w, err)
		return
	}
	h.respondWithQuote(w, r, http.StatusOK)
}

// ApplyCoupon attaches a code to the cart after a full evaluation.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
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
	if _, err := h.Svc.ApplyCoupon(r.Context(), payload.Code); err != nil {
		writeCartError(w, err)
		return
	}
	h.respondWithQuote(w, r, http.StatusOK)
}

// RemoveCoupon detaches the applied code.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.RemoveCoupon(r.Context()); err != nil {
		writeCartError(w, err)
		return
	}
	h.respondWithQuote(w, r, http.StatusOK)
}

func (h *Handler) respondWithQuote(w http.ResponseWriter, r *http.Request, status int) {
	q, err := h.Svc.Quote(r.Context())
	if err != nil {
		writeCartError(w, err)
		return
	}
	common.JSONData(w, status, renderQuote(q))
}

func writeCartError(w http.ResponseWriter, err error) {
	var belowMin *pricing.BelowMinimumError
	switch {
	case errors.As(err, &belowMin):
		common.JSONError(w, http.StatusUnprocessableEntity, "MOQ_NOT_MET", belowMin.Error(), map[string]any{
			"requiredQty": belowMin.Required,
		})
	case errors.Is(err, ErrNoIdentity):
		common.JSONError(w, http.StatusBadRequest, "NO_SESSION", "sign in or provide a cart token", nil)
	case errors.Is(err, catalog.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "VARIANT_NOT_FOUND", "variant not found", nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart item not found", nil)
	case errors.Is(err, ErrInvalidInput), errors.Is(err, pricing.ErrInvalidLineItem):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case isCouponError(err):
		coupon.WriteEvalError(w, err)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart operation failed", nil)
	}
}

func isCouponError(err error) bool {
	var belowMin *coupon.BelowMinOrderError
	return errors.Is(err, coupon.ErrNotFound) ||
		errors.Is(err, coupon.ErrInactive) ||
		errors.Is(err, coupon.ErrNotYetValid) ||
		errors.Is(err, coupon.ErrExpired) ||
		errors.Is(err, coupon.ErrUsesExhausted) ||
		errors.Is(err, coupon.ErrNoEligibleItems) ||
		errors.As(err, &belowMin)
}
