package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/younes21/PastryLabManager-sub003/internal/inventory/repository"
	"github.com/younes21/PastryLabManager-sub003/internal/inventory/service"
	"github.com/younes21/PastryLabManager-sub003/pkg/httputil"
	"github.com/younes21/PastryLabManager-sub003/pkg/logger"
)

// AvailabilityHandler handles availability and stock query endpoints
type AvailabilityHandler struct {
	service   *service.AvailabilityService
	stockRepo *repository.StockRepository
	logger    *logger.Logger
}

// NewAvailabilityHandler creates a new availability handler
func NewAvailabilityHandler(svc *service.AvailabilityService, stockRepo *repository.StockRepository, log *logger.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		service:   svc,
		stockRepo: stockRepo,
		logger:    log,
	}
}

// Get computes availability for an article. Optional query parameters:
// lot_id and zone_id narrow the combinations; exclude_operation_id
// removes one operation's own holds from the computation.
func (h *AvailabilityHandler) Get(w http.ResponseWriter, r *http.Request) {
	articleID := chi.URLParam(r, "articleID")

	opts := service.AvailabilityOptions{}
	if v := r.URL.Query().Get("lot_id"); v != "" {
		opts.LotID = &v
	}
	if v := r.URL.Query().Get("zone_id"); v != "" {
		opts.ZoneID = &v
	}
	if v := r.URL.Query().Get("exclude_operation_id"); v != "" {
		opts.ExcludeOperationID = &v
	}

	result, err := h.service.Availability(r.Context(), articleID, opts)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// Stock lists the raw ledger rows of an article
func (h *AvailabilityHandler) Stock(w http.ResponseWriter, r *http.Request) {
	articleID := chi.URLParam(r, "articleID")

	filter := repository.StockFilter{}
	if v := r.URL.Query().Get("lot_id"); v != "" {
		filter.LotID = &v
	}
	if v := r.URL.Query().Get("zone_id"); v != "" {
		filter.ZoneID = &v
	}

	entries, err := h.stockRepo.Query(r.Context(), articleID, filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, entries)
}
