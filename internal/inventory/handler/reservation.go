package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/younes21/PastryLabManager-sub003/internal/inventory/service"
	"github.com/younes21/PastryLabManager-sub003/pkg/httputil"
	"github.com/younes21/PastryLabManager-sub003/pkg/logger"
)

// ReservationHandler handles reservation endpoints
type ReservationHandler struct {
	service *service.LifecycleService
	logger  *logger.Logger
}

// NewReservationHandler creates a new reservation handler
func NewReservationHandler(svc *service.LifecycleService, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service: svc,
		logger:  log,
	}
}

// ListByOperation lists every reservation owned by an operation
func (h *ReservationHandler) ListByOperation(w http.ResponseWriter, r *http.Request) {
	operationID := chi.URLParam(r, "id")

	reservations, err := h.service.ReservationsForOperation(r.Context(), operationID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, reservations)
}

// Release releases a single active reservation
func (h *ReservationHandler) Release(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.service.ReleaseReservation(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, res)
}

// Deliver records a partial delivery against an active reservation
func (h *ReservationHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		Quantity decimal.Decimal `json:"quantity"`
	}
	if err := httputil.DecodeJSON(r, &body); err != nil {
		httputil.Error(w, err)
		return
	}

	res, err := h.service.RecordDelivery(r.Context(), id, body.Quantity)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, res)
}
