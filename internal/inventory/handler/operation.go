package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/younes21/PastryLabManager-sub003/internal/inventory/repository"
	"github.com/younes21/PastryLabManager-sub003/internal/inventory/service"
	"github.com/younes21/PastryLabManager-sub003/pkg/httputil"
	"github.com/younes21/PastryLabManager-sub003/pkg/logger"
)

// OperationHandler handles inventory operation endpoints
type OperationHandler struct {
	service *service.LifecycleService
	logger  *logger.Logger
}

// NewOperationHandler creates a new operation handler
func NewOperationHandler(svc *service.LifecycleService, log *logger.Logger) *OperationHandler {
	return &OperationHandler{
		service: svc,
		logger:  log,
	}
}

// Create creates a new operation in draft status
func (h *OperationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.OperationInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, err)
		return
	}

	detail, err := h.service.Create(r.Context(), &in)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, detail)
}

// Get gets an operation with its items, reservations and output lots
func (h *OperationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, detail)
}

// List lists operations with optional type and status filters
func (h *OperationHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := repository.OperationFilter{
		Type:   r.URL.Query().Get("type"),
		Status: r.URL.Query().Get("status"),
	}
	page, perPage := pagination(r)

	ops, total, err := h.service.List(r.Context(), filter, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, ops, &httputil.Meta{
		Page:    page,
		PerPage: perPage,
		Total:   total,
	})
}

// Update replaces the items of a draft or pending operation
func (h *OperationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var in service.OperationInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, err)
		return
	}

	detail, err := h.service.Update(r.Context(), id, &in)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, detail)
}

// SetStatus transitions an operation to a new status
func (h *OperationHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var in service.StatusChangeInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, err)
		return
	}
	in.PerformedBy = httputil.GetUserID(r.Context())
	in.Role = httputil.GetUserRole(r.Context())

	detail, warnings, err := h.service.SetStatus(r.Context(), id, &in)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if len(warnings) > 0 {
		out := make([]httputil.Warning, 0, len(warnings))
		for _, wrn := range warnings {
			out = append(out, httputil.Warning{Code: wrn.Code, Message: wrn.Message})
		}
		httputil.JSONWithWarnings(w, http.StatusOK, detail, out)
		return
	}

	httputil.JSON(w, http.StatusOK, detail)
}

// Delete deletes an operation and its reservations. Terminal
// operations require the admin role.
func (h *OperationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), id, httputil.GetUserRole(r.Context())); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

func pagination(r *http.Request) (page, perPage int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}
