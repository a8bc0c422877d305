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
	t.Setenv("DEV_MODE", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "0.2", cfg.TaxRateDecimal().String())
	assert.Equal(t, "5", cfg.ShippingFlatDecimal().String())
	assert.Equal(t, "100", cfg.FreeShippingOverDecimal().String())
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.False(t, cfg.MailEnabled())
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.Origins())
	assert.Empty(t, cfg.Proxies())
}

func TestLoadFromDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=s3cret\nCORS_ORIGINS=https://a.example, https://b.example\nTAX_RATE=0.055\nTRUSTED_PROXIES=10.0.0.0/8\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("JWT_SECRET")
		os.Unsetenv("CORS_ORIGINS")
		os.Unsetenv("TAX_RATE")
		os.Unsetenv("TRUSTED_PROXIES")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Origins())
	assert.Equal(t, "0.055", cfg.TaxRateDecimal().String())
	assert.Equal(t, []string{"10.0.0.0/8"}, cfg.Proxies())
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{JWTSecret: "x", RateLimitRPS: 1, RateLimitBurst: 1, TaxRate: 0.2, ShippingFlat: "5", FreeShippingOver: "100", Workers: 1}
	}

	c := base()
	require.NoError(t, c.Validate())

	c = base()
	c.JWTSecret = ""
	assert.Error(t, c.Validate())

	c = base()
	c.TaxRate = 1.5
	assert.Error(t, c.Validate())

	c = base()
	c.RateLimitBurst = 0
	assert.Error(t, c.Validate())

	c = base()
	c.ShippingFlat = "five"
	assert.Error(t, c.Validate())
}
