package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cart "github.com/dmehra2102/restaurant-ordering/internal/cart/domain"
	"github.com/dmehra2102/restaurant-ordering/internal/checkout/application"
	order "github.com/dmehra2102/restaurant-ordering/internal/order/domain"
	"github.com/dmehra2102/restaurant-ordering/internal/platform/httpx"
	"github.com/dmehra2102/restaurant-ordering/pkg/logging"
)

type stubCheckout struct {
	in  application.Input
	o   order.Order
	err error
}

func (s *stubCheckout) Checkout(_ context.Context, _, _ string, in application.Input) (order.Order, error) {
	s.in = in
	return s.o, s.err
}

func post(t *testing.T, svc Checkout, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	r := chi.NewRouter()
	r.Use(httpx.RequireTenant(true))
	NewHandler(logging.Discard(), svc).Routes(r)

	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body))
	req.Header.Set(httpx.TenantHeader, "t1")
	req.Header.Set(httpx.UserHeader, "u1")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func TestCheckoutCreated(t *testing.T) {
	svc := &stubCheckout{o: order.Order{ID: "o1", OrderNumber: "20260501-0001", Items: []order.Item{}}}
	rec, body := post(t, svc, `{"deliveryAddress":"1 Main St","tipCents":250}`, map[string]string{IdempotencyHeader: "abc"})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "20260501-0001", body["data"].(map[string]any)["orderNumber"])
	assert.Equal(t, int64(250), svc.in.TipCents)
	assert.Equal(t, "abc", svc.in.IdempotencyKey)
	assert.Equal(t, "1 Main St", *svc.in.DeliveryAddress)
}

func TestCheckoutEmptyBodyAllowed(t *testing.T) {
	svc := &stubCheckout{o: order.Order{ID: "o1"}}
	rec, _ := post(t, svc, "", nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCheckoutInvalidCartListsIssues(t *testing.T) {
	issue := cart.PriceChangedIssue(cart.Item{ID: "l1", MenuItemID: "m1", Name: "Pad Thai", UnitPriceCents: 1000}, 1200)
	svc := &stubCheckout{err: &cart.InvalidError{Issues: []cart.Issue{issue}}}

	rec, body := post(t, svc, `{}`, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	details := body["details"].([]any)
	require.Len(t, details, 1)
	assert.Equal(t, "price_changed", details[0].(map[string]any)["kind"])
}

func TestCheckoutErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{application.ErrEmptyCart, http.StatusUnprocessableEntity},
		{application.ErrInProgress, http.StatusConflict},
		{order.ErrInvalidTip, http.StatusBadRequest},
		{order.ErrPersistence, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		rec, _ := post(t, &stubCheckout{err: c.err}, `{}`, nil)
		assert.Equal(t, c.code, rec.Code, c.err.Error())
	}

	rec, _ := post(t, &stubCheckout{}, `{"tipCents":-1}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
