package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("CHARGING_POSTGRES_DSN", "postgres://localhost/charging")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PAYMENT_GATEWAY_HMAC_SECRET", "hmac")
	t.Setenv("PAYMENT_GATEWAY_MOCK", "true")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8085", cfg.HTTPAddress())
	require.Equal(t, 5*time.Minute, cfg.Requests.PendingTTL)
	require.Equal(t, "EGP", cfg.Payments.Currency)
	require.True(t, cfg.Payments.Mock)
	require.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout)
	require.Empty(t, cfg.WS.AllowedOrigins)
}

func TestLoadAllowedOriginsFromEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://app.example, https://admin.example")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"https://app.example", "https://admin.example"}, cfg.WS.AllowedOrigins)
}

func TestLoadFileThenEnv(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "charging.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: "9000"
fees:
  minimumFee: 3
  percentage: 12.5
requests:
  pendingTtl: 2m
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("FEES_PERCENTAGE", "15")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.HTTPAddress())
	require.Equal(t, 3.0, cfg.Fees.MinimumFee)
	require.Equal(t, 15.0, cfg.Fees.Percentage)
	require.Equal(t, 2*time.Minute, cfg.Requests.PendingTTL)
}

func TestValidateRequiresGatewayOutsideMock(t *testing.T) {
	setRequired(t)
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PAYMENT_GATEWAY_MOCK", "false")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("PAYMENT_GATEWAY_BASE_URL", "https://accept.example.invalid/api")
	t.Setenv("PAYMENT_GATEWAY_API_KEY", "key")
	_, err = Load()
	require.NoError(t, err)
}

func TestValidateRejectsFees(t *testing.T) {
	setRequired(t)
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("FEES_PERCENTAGE", "120")

	_, err := Load()
	require.Error(t, err)
}
