package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	cart "github.com/dmehra2102/restaurant-ordering/internal/cart/domain"
	"github.com/dmehra2102/restaurant-ordering/internal/checkout/application"
	order "github.com/dmehra2102/restaurant-ordering/internal/order/domain"
	"github.com/dmehra2102/restaurant-ordering/internal/platform/httpx"
)

const IdempotencyHeader = "Idempotency-Key"

type Checkout interface {
	Checkout(ctx context.Context, tenantID, userID string, in application.Input) (order.Order, error)
}

type Handler struct {
	log      *slog.Logger
	checkout Checkout
}

func NewHandler(log *slog.Logger, checkout Checkout) *Handler {
	return &Handler{log: log, checkout: checkout}
}

type checkoutReq struct {
	DeliveryAddress     *string `json:"deliveryAddress,omitempty" validate:"omitempty,max=500"`
	SpecialInstructions *string `json:"specialInstructions,omitempty" validate:"omitempty,max=500"`
	TipCents            int64   `json:"tipCents" validate:"min=0"`
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/checkout", h.placeOrder)
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	// An empty body is a checkout with no extras.
	var req checkoutReq
	if err := httpx.Decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpx.BadRequest(w, err.Error())
		return
	}

	id := httpx.FromContext(r.Context())
	o, err := h.checkout.Checkout(r.Context(), id.TenantID, id.UserID, application.Input{
		DeliveryAddress:     req.DeliveryAddress,
		SpecialInstructions: req.SpecialInstructions,
		TipCents:            req.TipCents,
		IdempotencyKey:      r.Header.Get(IdempotencyHeader),
	})

	var invalid *cart.InvalidError
	switch {
	case err == nil:
		httpx.Created(w, o)
	case errors.As(err, &invalid):
		httpx.ErrorWithDetails(w, http.StatusUnprocessableEntity, "cart is invalid", invalid.Issues)
	case errors.Is(err, application.ErrEmptyCart):
		httpx.Error(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, application.ErrInProgress):
		httpx.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, order.ErrInvalidTip), errors.Is(err, order.ErrInvalidLine):
		httpx.BadRequest(w, err.Error())
	default:
		h.log.Error("checkout failed", "tenant_id", id.TenantID, "user_id", id.UserID, "err", err)
		httpx.ServerError(w)
	}
}
