package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Database.TxTimeout)
	assert.Equal(t, 150*time.Millisecond, cfg.Cart.CacheTimeout)
	assert.Equal(t, 50, cfg.Cart.MaxItems)
	assert.Equal(t, "localhost:6379", cfg.GetRedisAddr())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("CART_CACHE_TTL", "5m")
	t.Setenv("CART_MAX_ITEMS", "7")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Cart.CacheTTL)
	assert.Equal(t, 7, cfg.Cart.MaxItems)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.CORSAllowedOrigins)
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_TX_TIMEOUT", "not-a-duration")
	t.Setenv("CART_MAX_ITEMS", "many")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Database.TxTimeout)
	assert.Equal(t, 50, cfg.Cart.MaxItems)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:      AppConfig{Environment: "test"},
			Server:   ServerConfig{Port: "8080", RequestTimeout: 10 * time.Second},
			Database: DatabaseConfig{Host: "db", Name: "shop", User: "shop", TxTimeout: time.Second},
			Redis:    RedisConfig{Host: "cache"},
			Cart:     CartConfig{CacheTimeout: 100 * time.Millisecond, MaxItems: 10},
			JWT:      JWTConfig{Secret: "0123456789abcdef0123456789abcdef"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "short jwt secret", mutate: func(c *Config) { c.JWT.Secret = "short" }, wantErr: "JWT_SECRET"},
		{name: "missing db host", mutate: func(c *Config) { c.Database.Host = "" }, wantErr: "DB_HOST"},
		{name: "zero tx timeout", mutate: func(c *Config) { c.Database.TxTimeout = 0 }, wantErr: "DB_TX_TIMEOUT"},
		{
			name:    "cache timeout above request timeout",
			mutate:  func(c *Config) { c.Cart.CacheTimeout = 20 * time.Second },
			wantErr: "CART_CACHE_TIMEOUT",
		},
		{name: "zero max items", mutate: func(c *Config) { c.Cart.MaxItems = 0 }, wantErr: "CART_MAX_ITEMS"},
		{
			name: "production without payment key",
			mutate: func(c *Config) {
				c.App.Environment = "production"
			},
			wantErr: "PAYMENT_PRIVATE_KEY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
