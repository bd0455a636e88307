package checkout

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lapak-id/backend-lapak/internal/cart"
	"github.com/lapak-id/backend-lapak/internal/catalog"
	"github.com/lapak-id/backend-lapak/internal/common"
	"github.com/lapak-id/backend-lapak/internal/coupon"
)

// Handler exposes order placement and retrieval.
type Handler struct {
	Svc *Service
}

// Create places an order from the caller's cart.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.Create(r.Context())
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, out)
}

// Get returns one of the caller's orders.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	order, items, err := h.Svc.Get(r.Context(), orderID)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{"order": order, "items": items})
}

func writeCheckoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAuthRequired):
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "sign in to checkout", nil)
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_CART", "cart is empty", nil)
	case errors.Is(err, ErrBelowMOQ):
		common.JSONError(w, http.StatusUnprocessableEntity, "MOQ_NOT_MET", "a cart line is below its minimum order quantity, update the cart and retry", nil)
	case errors.Is(err, ErrBelowMinimumPayable):
		common.JSONError(w, http.StatusUnprocessableEntity, "BELOW_MINIMUM_PAYABLE", "order total is below the minimum payable amount", nil)
	case errors.Is(err, coupon.ErrUsesExhausted):
		common.JSONError(w, http.StatusConflict, "COUPON_EXHAUSTED", "coupon usage limit reached, remove the coupon and retry", nil)
	case errors.Is(err, catalog.ErrSaleSoldOut):
		common.JSONError(w, http.StatusConflict, "SALE_SOLD_OUT", "flash sale stock ran out, refresh the cart and retry", nil)
	case errors.Is(err, cart.ErrNoIdentity):
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "sign in to checkout", nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout failed", nil)
	}
}
