package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmehra2102/restaurant-ordering/internal/cart/application"
	"github.com/dmehra2102/restaurant-ordering/internal/cart/domain"
	"github.com/dmehra2102/restaurant-ordering/internal/platform/httpx"
)

type CartService interface {
	Get(ctx context.Context, tenantID, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, tenantID, userID string, in application.AddItemInput) (*domain.Cart, error)
	UpdateItem(ctx context.Context, tenantID, userID, itemID string, ch domain.ItemChanges) (*domain.Cart, error)
	RemoveItem(ctx context.Context, tenantID, userID, itemID string) (*domain.Cart, error)
	Clear(ctx context.Context, tenantID, userID string) error
	Validate(ctx context.Context, tenantID, userID string) (domain.Validation, error)
}

type Handler struct {
	log     *slog.Logger
	service CartService
}

func NewHandler(log *slog.Logger, service CartService) *Handler {
	return &Handler{log: log, service: service}
}

type addItemReq struct {
	RestaurantID string  `json:"restaurantId" validate:"required"`
	MenuItemID   string  `json:"menuItemId" validate:"required"`
	Quantity     int     `json:"quantity" validate:"min=1,max=99"`
	Instructions *string `json:"instructions,omitempty" validate:"omitempty,max=500"`
}

type updateItemReq struct {
	Quantity     *int    `json:"quantity,omitempty" validate:"omitempty,max=99"`
	Instructions *string `json:"instructions,omitempty" validate:"omitempty,max=500"`
}

// Routes expects httpx.RequireTenant(true) upstream.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/cart", h.getCart)
	r.Delete("/cart", h.clearCart)
	r.Get("/cart/validation", h.validateCart)
	r.Post("/cart/items", h.addItem)
	r.Patch("/cart/items/{itemID}", h.updateItem)
	r.Delete("/cart/items/{itemID}", h.removeItem)
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	id := httpx.FromContext(r.Context())
	c, err := h.service.Get(r.Context(), id.TenantID, id.UserID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, c)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.BadRequest(w, err.Error())
		return
	}
	id := httpx.FromContext(r.Context())
	c, err := h.service.AddItem(r.Context(), id.TenantID, id.UserID, application.AddItemInput{
		RestaurantID: req.RestaurantID,
		MenuItemID:   req.MenuItemID,
		Quantity:     req.Quantity,
		Instructions: req.Instructions,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, c)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.BadRequest(w, err.Error())
		return
	}
	id := httpx.FromContext(r.Context())
	c, err := h.service.UpdateItem(r.Context(), id.TenantID, id.UserID, chi.URLParam(r, "itemID"), domain.ItemChanges{
		Quantity:     req.Quantity,
		Instructions: req.Instructions,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, c)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	id := httpx.FromContext(r.Context())
	c, err := h.service.RemoveItem(r.Context(), id.TenantID, id.UserID, chi.URLParam(r, "itemID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, c)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	id := httpx.FromContext(r.Context())
	if err := h.service.Clear(r.Context(), id.TenantID, id.UserID); err != nil {
		h.fail(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) validateCart(w http.ResponseWriter, r *http.Request) {
	id := httpx.FromContext(r.Context())
	v, err := h.service.Validate(r.Context(), id.TenantID, id.UserID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, v)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		httpx.BadRequest(w, err.Error())
	case errors.Is(err, domain.ErrCartNotFound), errors.Is(err, domain.ErrItemNotFound):
		httpx.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrRestaurantMismatch):
		httpx.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrItemUnavailable):
		httpx.Error(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error("cart request failed", "err", err)
		httpx.ServerError(w)
	}
}
