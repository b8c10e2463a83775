package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Cart.TTL)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "8", cfg.Order.TaxRate().String())
	assert.Equal(t, int64(299), cfg.Order.DeliveryFeeCents)
	assert.Equal(t, time.UTC, cfg.Order.Location())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PG_URL", "postgres://u:p@db:5432/x")
	t.Setenv("KAFKA_ADDR", "k1:9092, k2:9092")
	t.Setenv("CART_TTL", "2h")
	t.Setenv("DEFAULT_TAX_RATE", "8.875")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.Postgres.URL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Hour, cfg.Cart.TTL)
	assert.Equal(t, "8.875", cfg.Order.TaxRate().String())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("order:\n  currency: EUR\n  delivery_fee_cents: 450\n  timezone: Europe/Berlin\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "EUR", cfg.Order.Currency)
	assert.Equal(t, int64(450), cfg.Order.DeliveryFeeCents)
	assert.Equal(t, "Europe/Berlin", cfg.Order.Location().String())
}

func TestLoadRejectsBadTaxRate(t *testing.T) {
	t.Setenv("DEFAULT_TAX_RATE", "eight")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid default tax rate")
}
