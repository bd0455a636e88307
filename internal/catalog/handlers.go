package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/lapak-id/backend-lapak/internal/common"
	"github.com/lapak-id/backend-lapak/internal/pricing"
)

// Handler exposes the admin endpoints for slabs and flash sales.
type Handler struct {
	Store    *Store
	Svc      *Service
	Validate *validator.Validate
}

type slabPayload struct {
	MinQty    int             `json:"minQty" validate:"required,min=1"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type flashSalePayload struct {
	StartsAt    time.Time       `json:"startsAt" validate:"required"`
	EndsAt      time.Time       `json:"endsAt" validate:"required"`
	DiscountPct decimal.Decimal `json:"discountPct"`
	MaxQty      *int            `json:"maxQty" validate:"omitempty,min=1"`
	Active      *bool           `json:"active"`
	ProductIDs  []string        `json:"productIds" validate:"required,min=1,dive,uuid"`
}

// CreateSlab attaches a bulk pricing tier to a variant.
func (h *Handler) CreateSlab(w http.ResponseWriter, r *http.Request) {
	variantID, err := uuid.Parse(chi.URLParam(r, "variantID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid variant id", nil)
		return
	}
	var payload slabPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	slab, err := pricing.NewSlab(payload.MinQty, payload.UnitPrice)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	if err := h.Store.CreateSlab(r.Context(), variantID, slab); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "slab threshold already exists for variant", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create slab", nil)
		return
	}
	h.Svc.InvalidateVariants(r.Context(), variantID)
	common.JSONData(w, http.StatusCreated, slab)
}

// DeleteSlab removes a tier by variant and threshold.
func (h *Handler) DeleteSlab(w http.ResponseWriter, r *http.Request) {
	variantID, err := uuid.Parse(chi.URLParam(r, "variantID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid variant id", nil)
		return
	}
	minQty, err := strconv.Atoi(chi.URLParam(r, "minQty"))
	if err != nil || minQty < 1 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid slab threshold", nil)
		return
	}
	if err := h.Store.DeleteSlab(r.Context(), variantID, minQty); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "slab not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete slab", nil)
		return
	}
	h.Svc.InvalidateVariants(r.Context(), variantID)
	w.WriteHeader(http.StatusNoContent)
}

// ListSlabs returns the tiers configured for a variant.
func (h *Handler) ListSlabs(w http.ResponseWriter, r *http.Request) {
	variantID, err := uuid.Parse(chi.URLParam(r, "variantID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid variant id", nil)
		return
	}
	slabs, err := h.Store.ListSlabs(r.Context(), variantID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list slabs", nil)
		return
	}
	common.JSONData(w, http.StatusOK, slabs)
}

// CreateFlashSale registers a new sale window.
func (h *Handler) CreateFlashSale(w http.ResponseWriter, r *http.Request) {
	var payload flashSalePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	productIDs := make([]uuid.UUID, 0, len(payload.ProductIDs))
	for _, raw := range payload.ProductIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid product id", nil)
			return
		}
		productIDs = append(productIDs, id)
	}
	active := true
	if payload.Active != nil {
		active = *payload.Active
	}
	// Construction validates the window and discount bounds.
	if _, err := pricing.NewFlashSale(uuid.New(), payload.StartsAt, payload.EndsAt, payload.DiscountPct, payload.MaxQty, 0, active, productIDs); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	rec := FlashSaleRecord{
		StartsAt:    payload.StartsAt,
		EndsAt:      payload.EndsAt,
		DiscountPct: payload.DiscountPct,
		MaxQty:      payload.MaxQty,
		Active:      active,
		ProductIDs:  productIDs,
	}
	id, err := h.Store.CreateFlashSale(r.Context(), rec)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create flash sale", nil)
		return
	}
	rec.ID = id
	h.Svc.InvalidateProducts(r.Context(), productIDs...)
	common.JSONData(w, http.StatusCreated, rec)
}

// ListFlashSales returns all sales.
func (h *Handler) ListFlashSales(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListFlashSales(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list flash sales", nil)
		return
	}
	common.JSONData(w, http.StatusOK, records)
}

// SetFlashSaleActive toggles a sale on or off.
func (h *Handler) SetFlashSaleActive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "saleID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid sale id", nil)
		return
	}
	var payload struct {
		Active *bool `json:"active" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Active == nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "active flag is required", nil)
		return
	}
	if err := h.Store.SetFlashSaleActive(r.Context(), id, *payload.Active); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "flash sale not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update flash sale", nil)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{"id": id, "active": *payload.Active})
}
