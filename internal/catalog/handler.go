package catalog

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/seifenwerk/seifenwerk/internal/platform/httpx"
	"github.com/seifenwerk/seifenwerk/internal/shared"
	"github.com/seifenwerk/seifenwerk/internal/stock"
)

// ThresholdPort updates the reorder threshold on the stock record belonging
// to an article.
type ThresholdPort interface {
	SetThreshold(ctx context.Context, ref stock.ArticleRef, threshold float64) error
}

// Handler wires HTTP endpoints for the article catalog.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	thresholds ThresholdPort
}

// NewHandler constructs catalog handler.
func NewHandler(logger *slog.Logger, service *Service, thresholds ThresholdPort) *Handler {
	return &Handler{logger: logger, service: service, thresholds: thresholds}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/articles", h.handleList)
	r.Post("/articles", h.handleCreate)
	r.Get("/articles/{id}", h.handleGet)
	r.Put("/articles/{id}", h.handleUpdate)
	r.Delete("/articles/{id}", h.handleDelete)
	r.Get("/articles/{id}/formula", h.handleGetFormula)
	r.Put("/articles/{id}/formula", h.handleSetFormula)
	r.Put("/articles/{id}/threshold", h.handleSetThreshold)
}

func respondCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrArticleNotFound), errors.Is(err, ErrNoFormula):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrKindMismatch), errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 || limit > 200 {
		limit = 50
	}
	filters := ListFilters{
		Page:   page,
		Limit:  limit,
		Search: q.Get("search"),
		Kind:   Kind(q.Get("kind")),
	}
	articles, total, err := h.service.ListArticles(r.Context(), filters)
	if err != nil {
		h.logger.Error("list articles failed", slog.Any("error", err))
		respondCatalogError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"articles":   articles,
		"pagination": shared.NewPagination(page, limit, total),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid article id")
		return
	}
	article, err := h.service.GetArticle(r.Context(), id)
	if err != nil {
		respondCatalogError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, article)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input ArticleInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	article, err := h.service.CreateArticle(r.Context(), input)
	if err != nil {
		respondCatalogError(w, err)
		return
	}
	h.logger.Info("article created",
		slog.Int64("id", article.ID),
		slog.String("kind", string(article.Kind)),
		slog.String("actor", shared.ActorFromContext(r.Context())))
	httpx.JSON(w, http.StatusCreated, article)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid article id")
		return
	}
	var input ArticleInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	article, err := h.service.UpdateArticle(r.Context(), id, input)
	if err != nil {
		respondCatalogError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, article)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid article id")
		return
	}
	if err := h.service.DeleteArticle(r.Context(), id); err != nil {
		respondCatalogError(w, err)
		return
	}
	h.logger.Info("article deleted",
		slog.Int64("id", id),
		slog.String("actor", shared.ActorFromContext(r.Context())))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetFormula(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid article id")
		return
	}
	formula, err := h.service.GetFormula(r.Context(), id)
	if err != nil {
		respondCatalogError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, formula)
}

func (h *Handler) handleSetFormula(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid article id")
		return
	}
	var input FormulaInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	input.ArticleID = id
	if err := h.service.SetFormula(r.Context(), input); err != nil {
		respondCatalogError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type thresholdRequest struct {
	Threshold float64 `json:"threshold"`
}

func (h *Handler) handleSetThreshold(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid article id")
		return
	}
	var req thresholdRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	article, err := h.service.SetReorderThreshold(r.Context(), id, req.Threshold)
	if err != nil {
		respondCatalogError(w, err)
		return
	}
	ref := stock.ArticleRef{Type: stock.ArticleType(article.Kind), ID: article.ID}
	if err := h.thresholds.SetThreshold(r.Context(), ref, req.Threshold); err != nil {
		if !errors.Is(err, stock.ErrRecordNotFound) {
			respondCatalogError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
