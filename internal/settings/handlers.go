package settings

import (
	"encoding/json"
	"net/http"

	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/lapak-id/backend-lapak/internal/common"
	"github.com/lapak-id/backend-lapak/internal/pricing"
)

// Handler exposes the admin settings endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type settingsPayload struct {
	MOQActive             bool            `json:"moqActive"`
	MOQMinQty             int             `json:"moqMinQty" validate:"required,min=1"`
	HidePricesForGuests   bool            `json:"hidePricesForGuests"`
	FreeShippingThreshold decimal.Decimal `json:"freeShippingThreshold"`
	FlatShippingFee       decimal.Decimal `json:"flatShippingFee"`
}

// Get returns the current settings snapshot.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Svc.Snapshot(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load settings", nil)
		return
	}
	common.JSONData(w, http.StatusOK, snap)
}

// Update overwrites the settings snapshot.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var payload settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	if payload.FreeShippingThreshold.IsNegative() || payload.FlatShippingFee.IsNegative() {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "shipping amounts must not be negative", nil)
		return
	}
	snap := Snapshot{
		MOQ:                   pricing.GlobalMOQ{Active: payload.MOQActive, MinQty: payload.MOQMinQty},
		HidePricesForGuests:   payload.HidePricesForGuests,
		FreeShippingThreshold: payload.FreeShippingThreshold,
		FlatShippingFee:       payload.FlatShippingFee,
	}
	if err := h.Svc.Update(r.Context(), snap); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update settings", nil)
		return
	}
	common.JSONData(w, http.StatusOK, snap)
}
