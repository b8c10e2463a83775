package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/restaurant-ordering/internal/order/domain"
	"github.com/dmehra2102/restaurant-ordering/internal/platform/httpx"
)

type Ledger interface {
	GetOrder(ctx context.Context, tenantID, orderID string) (domain.Order, error)
	ListOrders(ctx context.Context, tenantID string, f domain.ListFilter) (domain.Page, error)
	UpdateStatus(ctx context.Context, tenantID, orderID string, to domain.Status, actor string) (domain.Order, error)
	RestaurantSummary(ctx context.Context, tenantID, restaurantID string) (domain.Summary, error)
	OrderHistory(ctx context.Context, tenantID, orderID string) ([]domain.StatusChange, error)
}

type Handler struct {
	log    *slog.Logger
	ledger Ledger
	tracer trace.Tracer
}

func NewHandler(log *slog.Logger, ledger Ledger) *Handler {
	return &Handler{
		log:    log,
		ledger: ledger,
		tracer: otel.Tracer("order-http"),
	}
}

type updateStatusReq struct {
	Status string `json:"status" validate:"required"`
	Actor  string `json:"actor,omitempty" validate:"max=100"`
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/history", h.history)
	r.Patch("/orders/{id}/status", h.updateStatus)
	r.Get("/restaurants/{id}/orders/summary", h.summary)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := httpx.FromContext(r.Context())
	o, err := h.ledger.GetOrder(r.Context(), id.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, o)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id := httpx.FromContext(r.Context())
	changes, err := h.ledger.OrderHistory(r.Context(), id.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, changes)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		httpx.BadRequest(w, err.Error())
		return
	}
	id := httpx.FromContext(r.Context())
	page, err := h.ledger.ListOrders(r.Context(), id.TenantID, f)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, page)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateOrderStatus")
	defer span.End()

	var req updateStatusReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.BadRequest(w, err.Error())
		return
	}
	to, err := domain.ParseStatus(req.Status)
	if err != nil {
		httpx.BadRequest(w, err.Error())
		return
	}

	id := httpx.FromContext(ctx)
	actor := req.Actor
	if actor == "" {
		actor = id.UserID
	}
	o, err := h.ledger.UpdateStatus(ctx, id.TenantID, chi.URLParam(r, "id"), to, actor)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, o)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	id := httpx.FromContext(r.Context())
	s, err := h.ledger.RestaurantSummary(r.Context(), id.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, s)
}

func parseFilter(r *http.Request) (domain.ListFilter, error) {
	q := r.URL.Query()
	f := domain.ListFilter{
		RestaurantID: q.Get("restaurantId"),
		CustomerID:   q.Get("customerId"),
	}
	if v := q.Get("status"); v != "" {
		st, err := domain.ParseStatus(v)
		if err != nil {
			return f, err
		}
		f.Status = &st
	}
	for name, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		if v := q.Get(name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return f, fmt.Errorf("%s must be RFC3339: %w", name, err)
			}
			*dst = &t
		}
	}
	for name, dst := range map[string]*int{"page": &f.Page, "pageSize": &f.PageSize} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return f, fmt.Errorf("%s must be a positive integer", name)
			}
			*dst = n
		}
	}
	return f, nil
}

// fail reports the attempted and current status on a rejected transition.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	var ite *domain.InvalidTransitionError
	switch {
	case errors.As(err, &ite):
		httpx.ErrorWithDetails(w, http.StatusConflict, err.Error(), map[string]domain.Status{
			"current":   ite.From,
			"requested": ite.To,
		})
	case errors.Is(err, domain.ErrOrderNotFound):
		httpx.Error(w, http.StatusNotFound, err.Error())
	default:
		h.log.Error("order request failed", "err", err)
		httpx.ServerError(w)
	}
}
