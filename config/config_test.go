package config

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phillip/newvision-backend/utils"
)

func testViper(overrides map[string]any) *viper.Viper {
	v := viper.New()
	defaults(v)
	for k, val := range overrides {
		v.Set(k, val)
	}
	return v
}

func TestFromViperDefaults(t *testing.T) {
	cfg, err := fromViper(testViper(nil))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "mongo", cfg.StoreDriver)
	assert.Equal(t, "newvision", cfg.DBName)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "Asia/Kathmandu", cfg.Location.String())
	assert.Equal(t, []byte(devJWTSecret), cfg.JWTSecret)
	assert.False(t, cfg.Mailer.(*utils.Mailer).Configured())
}

func TestFromViperOverrides(t *testing.T) {
	cfg, err := fromViper(testViper(map[string]any{
		"GIN_MODE":           "release",
		"JWT_SECRET":         "prod-secret",
		"STORE_DRIVER":       "Memory",
		"CORS_ORIGINS":       "https://newvision.edu.np, https://admin.newvision.edu.np ,",
		"REQUEST_TIMEOUT":    "10s",
		"MONGO_TRANSACTIONS": "true",
		"TIMEZONE":           "UTC",
	}))
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, []byte("prod-secret"), cfg.JWTSecret)
	assert.Equal(t, []string{"https://newvision.edu.np", "https://admin.newvision.edu.np"}, cfg.CORSOrigins)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.Transactions)
	assert.Equal(t, time.UTC, cfg.Location)
}

func TestFromViperRejects(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]any
	}{
		{name: "release without secret", overrides: map[string]any{"GIN_MODE": "release"}},
		{name: "unknown timezone", overrides: map[string]any{"TIMEZONE": "Mars/Olympus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fromViper(testViper(tt.overrides))
			assert.Error(t, err)
		})
	}
}

func TestOpenMemory(t *testing.T) {
	cfg, err := fromViper(testViper(map[string]any{"STORE_DRIVER": "memory"}))
	require.NoError(t, err)
	require.NoError(t, cfg.Open(context.Background()))

	assert.NotNil(t, cfg.Store)
	assert.IsType(t, utils.DisabledAssets{}, cfg.Assets)

	ctx, cancel := cfg.Timeout(context.Background())
	defer cancel()
	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(cfg.RequestTimeout), deadline, time.Second)
}
