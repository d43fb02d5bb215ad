package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	c := Default()
	assert.Equal(t, 8000, c.Port)
	assert.Equal(t, "dev", c.Env)
	assert.Equal(t, "https://api-merchant.payos.vn", c.PayOSAPIURL)
	assert.Empty(t, c.DatabaseURL)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BAKERY_PORT", "9090")
	t.Setenv("BAKERY_DATABASE_URL", "postgres://localhost/bakery")
	t.Setenv("BAKERY_JWT_SECRET", "hush")
	t.Setenv("PAYOS_CLIENT_ID", "client-1")
	t.Setenv("VNPAY_TMN_CODE", "BAKERY01")

	c := EnvDefaults()
	assert.Equal(t, 9090, c.Port)
	assert.Equal(t, "postgres://localhost/bakery", c.DatabaseURL)
	assert.Equal(t, "hush", c.JWTSecret)
	assert.Equal(t, "client-1", c.PayOSClientID)
	assert.Equal(t, "BAKERY01", c.VNPayTmnCode)
}

func TestEnvBadPortIgnored(t *testing.T) {
	t.Setenv("BAKERY_PORT", "not-a-number")
	c := EnvDefaults()
	assert.Equal(t, 8000, c.Port)
}
