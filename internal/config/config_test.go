package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequiresProviderCredentials(t *testing.T) {
	cfg := Config{SiteURL: "https://shop.example.com"}
	require.Error(t, cfg.Validate())

	cfg.ProviderToken = "tok"
	require.NoError(t, cfg.Validate())

	cfg.SiteURL = ""
	require.Error(t, cfg.Validate())
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, "UYU", cfg.Currency)
	assert.Equal(t, int64(200000), cfg.Shipping.FreeThresholdCents)
	assert.Equal(t, int64(25000), cfg.Shipping.FlatFeeCents)
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitCSV("a, b"))
	assert.Equal(t, []string{"kafka:9092"}, splitCSV("kafka:9092,"))
	assert.Empty(t, splitCSV(" , "))
}
