package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/restaurant-ordering/internal/order/domain"
	"github.com/dmehra2102/restaurant-ordering/internal/platform/httpx"
	"github.com/dmehra2102/restaurant-ordering/pkg/logging"
)

type stubLedger struct {
	order      domain.Order
	err        error
	filter     domain.ListFilter
	to         domain.Status
	actor      string
	restaurant string
}

func (s *stubLedger) GetOrder(context.Context, string, string) (domain.Order, error) {
	return s.order, s.err
}

func (s *stubLedger) ListOrders(_ context.Context, _ string, f domain.ListFilter) (domain.Page, error) {
	s.filter = f
	return domain.Page{Orders: []domain.Order{s.order}, Total: 1, Page: 1, PageSize: 20}, s.err
}

func (s *stubLedger) UpdateStatus(_ context.Context, _, _ string, to domain.Status, actor string) (domain.Order, error) {
	s.to, s.actor = to, actor
	return s.order, s.err
}

func (s *stubLedger) RestaurantSummary(_ context.Context, _, restaurantID string) (domain.Summary, error) {
	s.restaurant = restaurantID
	return domain.Summary{RestaurantID: restaurantID, CountsByStatus: map[domain.Status]int{domain.StatusPending: 2}}, s.err
}

func (s *stubLedger) OrderHistory(_ context.Context, tenantID, orderID string) ([]domain.StatusChange, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []domain.StatusChange{{
		TenantID: tenantID, OrderID: orderID,
		From: domain.StatusPending, To: domain.StatusConfirmed,
		Actor: "payment-service", ChangedAt: time.Date(2026, 5, 1, 18, 5, 0, 0, time.UTC),
	}}, nil
}

func call(t *testing.T, l Ledger, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	r := chi.NewRouter()
	r.Use(httpx.RequireTenant(false))
	NewHandler(logging.Discard(), l).Routes(r)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(httpx.TenantHeader, "t1")
	req.Header.Set(httpx.UserHeader, "operator-9")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func TestGetOrder(t *testing.T) {
	l := &stubLedger{order: domain.Order{ID: "o1", Status: domain.StatusPending}}
	rec, body := call(t, l, http.MethodGet, "/orders/o1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "o1", body["data"].(map[string]any)["id"])

	l.err = domain.ErrOrderNotFound
	rec, _ = call(t, l, http.MethodGet, "/orders/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOrdersParsesFilter(t *testing.T) {
	l := &stubLedger{}
	rec, _ := call(t, l, http.MethodGet, "/orders?status=ready&restaurantId=r1&from=2026-05-01T00:00:00Z&page=2&pageSize=5", "")
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, l.filter.Status)
	assert.Equal(t, domain.StatusReady, *l.filter.Status)
	assert.Equal(t, "r1", l.filter.RestaurantID)
	require.NotNil(t, l.filter.From)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), l.filter.From.UTC())
	assert.Nil(t, l.filter.To)
	assert.Equal(t, 2, l.filter.Page)
	assert.Equal(t, 5, l.filter.PageSize)

	for _, bad := range []string{"?status=shipped", "?from=yesterday", "?page=0", "?pageSize=x"} {
		rec, _ := call(t, l, http.MethodGet, "/orders"+bad, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestUpdateStatus(t *testing.T) {
	l := &stubLedger{order: domain.Order{ID: "o1", Status: domain.StatusConfirmed}}
	rec, _ := call(t, l, http.MethodPatch, "/orders/o1/status", `{"status":"confirmed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StatusConfirmed, l.to)
	assert.Equal(t, "operator-9", l.actor)

	rec, _ = call(t, l, http.MethodPatch, "/orders/o1/status", `{"status":"teleported"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateStatusRejectedTransition(t *testing.T) {
	l := &stubLedger{err: &domain.InvalidTransitionError{From: domain.StatusDelivered, To: domain.StatusCancelled}}
	rec, body := call(t, l, http.MethodPatch, "/orders/o1/status", `{"status":"cancelled","actor":"ops"}`)

	require.Equal(t, http.StatusConflict, rec.Code)
	details := body["details"].(map[string]any)
	assert.Equal(t, "delivered", details["current"])
	assert.Equal(t, "cancelled", details["requested"])
	assert.Equal(t, "ops", l.actor)
}

func TestSummary(t *testing.T) {
	l := &stubLedger{}
	rec, body := call(t, l, http.MethodGet, "/restaurants/r7/orders/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "r7", l.restaurant)
	counts := body["data"].(map[string]any)["countsByStatus"].(map[string]any)
	assert.Equal(t, float64(2), counts["pending"])
}

func TestOrderHistory(t *testing.T) {
	rec, body := call(t, &stubLedger{}, http.MethodGet, "/orders/o1/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	changes := body["data"].([]any)
	require.Len(t, changes, 1)
	ch := changes[0].(map[string]any)
	assert.Equal(t, "o1", ch["orderId"])
	assert.Equal(t, "pending", ch["from"])
	assert.Equal(t, "confirmed", ch["to"])
	assert.Equal(t, "payment-service", ch["actor"])

	rec, _ = call(t, &stubLedger{err: domain.ErrOrderNotFound}, http.MethodGet, "/orders/ghost/history", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
