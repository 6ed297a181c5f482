package sales

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/seifenwerk/seifenwerk/internal/platform/httpx"
	"github.com/seifenwerk/seifenwerk/internal/shared"
	"github.com/seifenwerk/seifenwerk/internal/stock"
)

// Handler wires HTTP endpoints for shop orders.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs sales handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Get("/{id}/preview", h.handlePreview)
	r.Post("/{id}/complete", h.handleComplete)
	r.Post("/{id}/return", h.handleReturn)
	r.Post("/{id}/cancel", h.handleCancel)
}

func respondOrderError(w http.ResponseWriter, err error) {
	var insufficient *stock.InsufficientStockError
	switch {
	case errors.Is(err, ErrOrderNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrBadTransition), errors.Is(err, ErrEmptyOrder):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.As(err, &insufficient):
		httpx.ProblemWith(w, http.StatusConflict, "Insufficient Stock", err.Error(), insufficient.Shortfalls)
	default:
		httpx.RespondError(w, err)
	}
}

func orderID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	orders, err := h.service.ListOrders(r.Context(), OrderStatus(r.URL.Query().Get("status")), limit)
	if err != nil {
		h.logger.Error("list orders failed", slog.Any("error", err))
		respondOrderError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input CreateOrderInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	order, err := h.service.CreateOrder(r.Context(), input)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		respondOrderError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	report, err := h.service.PreviewOrder(r.Context(), id)
	if err != nil {
		respondOrderError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	report, err := h.service.CompleteOrder(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		respondOrderError(w, err)
		return
	}
	status := http.StatusOK
	if !report.AllBooked {
		// Partial success: some lines booked, some failed.
		status = http.StatusMultiStatus
	}
	httpx.JSON(w, status, report)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	report, err := h.service.ReturnOrder(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		respondOrderError(w, err)
		return
	}
	status := http.StatusOK
	if !report.AllBooked {
		status = http.StatusMultiStatus
	}
	httpx.JSON(w, status, report)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	if err := h.service.CancelOrder(r.Context(), id); err != nil {
		respondOrderError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
