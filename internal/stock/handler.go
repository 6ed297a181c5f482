package stock

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/seifenwerk/seifenwerk/internal/platform/httpx"
	"github.com/seifenwerk/seifenwerk/internal/shared"
)

// respondDomainError maps engine errors onto RFC7807 responses, keeping the
// structured detail (shortfall breakdowns) machine readable.
func respondDomainError(w http.ResponseWriter, err error) {
	var insufficient *InsufficientStockError
	var invalidFormula *InvalidFormulaError
	switch {
	case errors.As(err, &insufficient):
		httpx.ProblemWith(w, http.StatusConflict, "Insufficient Stock", err.Error(), insufficient.Shortfalls)
	case errors.As(err, &invalidFormula):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Formula", err.Error())
	case errors.Is(err, ErrArticleNotFound), errors.Is(err, ErrRecordNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateReference):
		httpx.Problem(w, http.StatusConflict, "Duplicate Reference", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrNegativeStock):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrStoreUnavailable):
		httpx.Problem(w, http.StatusServiceUnavailable, "Store Unavailable", "")
	default:
		httpx.RespondError(w, err)
	}
}

// Handler wires HTTP endpoints for the stock engine.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs stock handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/stock/availability", h.handleAvailability)
	r.Post("/stock/produce", h.handleProduce)
	r.Post("/stock/deduct", h.handleDeduct)
	r.Post("/stock/count", h.handleCount)
	r.Get("/stock/low", h.handleLowStock)
	r.Get("/stock/history", h.handleHistory)
}

type articleRefRequest struct {
	Type string `json:"type" validate:"required"`
	ID   int64  `json:"id" validate:"required,gt=0"`
}

func (a articleRefRequest) ref() ArticleRef {
	return ArticleRef{Type: ArticleType(a.Type), ID: a.ID}
}

type availabilityRequest struct {
	Article articleRefRequest `json:"article" validate:"required"`
	Count   float64           `json:"count" validate:"required"`
}

type mutationRequest struct {
	Article   articleRefRequest `json:"article" validate:"required"`
	Count     float64           `json:"count" validate:"required"`
	Reason    string            `json:"reason" validate:"required"`
	Reference string            `json:"reference" validate:"omitempty,uuid"`
	DryRun    bool              `json:"dry_run"`
}

type countRequest struct {
	Article  articleRefRequest `json:"article" validate:"required"`
	Quantity float64           `json:"quantity" validate:"gte=0"`
	Reason   string            `json:"reason"`
}

func (h *Handler) handleAvailability(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	summary, err := h.service.CheckAvailability(r.Context(), req.Article.ref(), req.Count)
	if err != nil {
		h.logger.Error("availability check failed", slog.Any("error", err))
		respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleProduce(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeMutation(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Produce(r.Context(), ProduceInput{
		Article:   req.Article.ref(),
		Count:     req.Count,
		Reason:    req.Reason,
		Reference: req.Reference,
		Actor:     shared.ActorFromContext(r.Context()),
		DryRun:    req.DryRun,
	})
	h.respondMutation(w, summary, err, "produce")
}

func (h *Handler) handleDeduct(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeMutation(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Deduct(r.Context(), DeductInput{
		Article:   req.Article.ref(),
		Count:     req.Count,
		Reason:    req.Reason,
		Reference: req.Reference,
		Actor:     shared.ActorFromContext(r.Context()),
		DryRun:    req.DryRun,
	})
	h.respondMutation(w, summary, err, "deduct")
}

func (h *Handler) decodeMutation(w http.ResponseWriter, r *http.Request) (mutationRequest, bool) {
	var req mutationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return req, false
	}
	return req, true
}

func (h *Handler) respondMutation(w http.ResponseWriter, summary MutationSummary, err error, op string) {
	if err != nil {
		h.logger.Error("stock mutation rejected",
			slog.String("op", op),
			slog.Any("error", err))
		respondDomainError(w, err)
		return
	}
	h.logger.Info("stock mutation completed",
		slog.String("op", op),
		slog.String("article", summary.Article.String()),
		slog.Bool("success", summary.Success),
		slog.Bool("dry_run", summary.DryRun))
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleCount(w http.ResponseWriter, r *http.Request) {
	var req countRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	movement, err := h.service.CountInventory(r.Context(), CountInput{
		Article:  req.Article.ref(),
		Quantity: req.Quantity,
		Reason:   req.Reason,
		Actor:    shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.logger.Error("inventory count failed", slog.Any("error", err))
		respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movement)
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.LowStock(r.Context())
	if err != nil {
		h.logger.Error("low stock query failed", slog.Any("error", err))
		respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, records)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref := ArticleRef{Type: ArticleType(q.Get("type"))}
	id, err := strconv.ParseInt(q.Get("id"), 10, 64)
	if err != nil || !ref.Type.Valid() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "type and id query parameters required")
		return
	}
	ref.ID = id
	limit, _ := strconv.Atoi(q.Get("limit"))
	movements, err := h.service.History(r.Context(), ref, limit)
	if err != nil {
		h.logger.Error("history query failed", slog.Any("error", err))
		respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}
