package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Empty(t, cfg.AuthSecret)
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "VOUCHER_VALIDITY_DAYS", "LAYAWAY_VALIDITY_DAYS", "VOUCHER_SWEEP_CRON"} {
		unsetEnv(t, key)
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Address())
	require.Equal(t, 90*24*time.Hour, cfg.VoucherValidity())
	require.Equal(t, 90*24*time.Hour, cfg.LayawayValidity())
	require.Equal(t, "@hourly", cfg.VoucherSweepCron)
}

func TestLoadRejectsNonPositiveValidity(t *testing.T) {
	t.Setenv("VOUCHER_VALIDITY_DAYS", "0")

	_, err := Load()
	require.Error(t, err)
}

// unsetEnv clears key for the duration of the test. envconfig treats a set
// but empty variable as a value, not as missing.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestIsDevelopment(t *testing.T) {
	require.True(t, Config{AppEnv: "Development"}.IsDevelopment())
	require.False(t, Config{AppEnv: "production"}.IsDevelopment())
}
