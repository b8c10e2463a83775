package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireTenant(t *testing.T) {
	var got Identity
	h := RequireTenant(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
		OK(w, "fine")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TenantHeader, "t1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.Header.Set(UserHeader, "u1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Identity{TenantID: "t1", UserID: "u1"}, got)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "fine", body["data"])
}

type payload struct {
	Name     string `json:"name" validate:"required"`
	Quantity int    `json:"quantity" validate:"min=1"`
}

func TestDecode(t *testing.T) {
	var p payload
	err := Decode(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","quantity":2}`)), &p)
	require.NoError(t, err)
	assert.Equal(t, payload{Name: "x", Quantity: 2}, p)

	err = Decode(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":0}`)), &p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Name failed required")
	assert.Contains(t, err.Error(), "Quantity failed min")

	err = Decode(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","quantity":1,"extra":true}`)), &p)
	assert.ErrorContains(t, err, "invalid body")
}

func TestErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	ErrorWithDetails(rec, http.StatusUnprocessableEntity, "cart is invalid", []string{"a"})

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "cart is invalid", body["error"])
	assert.Equal(t, []any{"a"}, body["details"])
}
