package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/younes21/PastryLabManager-sub003/internal/inventory/repository"
	"github.com/younes21/PastryLabManager-sub003/pkg/httputil"
	"github.com/younes21/PastryLabManager-sub003/pkg/logger"
)

// ArticleHandler handles article, zone and lot read endpoints. Master
// data is owned by the catalog service; this service only reads it.
type ArticleHandler struct {
	articleRepo *repository.ArticleRepository
	lotRepo     *repository.LotRepository
	logger      *logger.Logger
}

// NewArticleHandler creates a new article handler
func NewArticleHandler(articleRepo *repository.ArticleRepository, lotRepo *repository.LotRepository, log *logger.Logger) *ArticleHandler {
	return &ArticleHandler{
		articleRepo: articleRepo,
		lotRepo:     lotRepo,
		logger:      log,
	}
}

// List lists active articles
func (h *ArticleHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := pagination(r)

	articles, total, err := h.articleRepo.List(r.Context(), page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, articles, &httputil.Meta{
		Page:    page,
		PerPage: perPage,
		Total:   total,
	})
}

// Get gets an article by ID
func (h *ArticleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	article, err := h.articleRepo.GetByID(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, article)
}

// ListZones lists active storage zones
func (h *ArticleHandler) ListZones(w http.ResponseWriter, r *http.Request) {
	zones, err := h.articleRepo.ListZones(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, zones)
}

// ListLots lists the lots of an article, newest first
func (h *ArticleHandler) ListLots(w http.ResponseWriter, r *http.Request) {
	articleID := chi.URLParam(r, "id")

	lots, err := h.lotRepo.ListByArticle(r.Context(), articleID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lots)
}

// ExpiringLots lists lots whose alert date falls within the window
func (h *ArticleHandler) ExpiringLots(w http.ResponseWriter, r *http.Request) {
	withinDays := 7
	if v := r.URL.Query().Get("within_days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			withinDays = n
		}
	}

	lots, err := h.lotRepo.ListExpiring(r.Context(), withinDays)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lots)
}
