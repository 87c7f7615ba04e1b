package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.ServerPort)
	assert.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	assert.Equal(t, CacheDriverRedis, cfg.Cache.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 72*time.Hour, cfg.Auth.CookieTTL)
	assert.Equal(t, 5*time.Minute, cfg.Auth.OTPTTL)
	assert.Equal(t, 5*time.Minute, cfg.Auth.ResetTTL)
	assert.Equal(t, 10*time.Minute, cfg.Auth.LoginCacheTTL)
	assert.Equal(t, "EduSphere", cfg.Storage.UploadFolder)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("CACHE_DRIVER", "memory")
	t.Setenv("JWT_EXPIRE", "2h")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("FRONTEND_URL", "https://edusphere.dev/")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverMongo, cfg.Store.Driver)
	assert.Equal(t, CacheDriverMemory, cfg.Cache.Driver)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "https://edusphere.dev", cfg.FrontendBaseURL())
}

func TestValidate(t *testing.T) {
	valid := Config{
		Auth: AuthConfig{
			JWTSecret:     "secret",
			OTPTTL:        time.Minute,
			ResetTTL:      time.Minute,
			LoginCacheTTL: time.Minute,
		},
		Store:   StoreConfig{Driver: StoreDriverMemory},
		Cache:   CacheConfig{Driver: CacheDriverMemory},
		Storage: StorageConfig{Driver: StorageDriverS3},
		MQ:      MQConfig{Driver: MQDriverNone},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing secret", mutate: func(c *Config) { c.Auth.JWTSecret = " " }},
		{name: "unknown store", mutate: func(c *Config) { c.Store.Driver = "sqlite" }},
		{name: "unknown cache", mutate: func(c *Config) { c.Cache.Driver = "memcached" }},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Driver = "cloudinary" }},
		{name: "unknown mq", mutate: func(c *Config) { c.MQ.Driver = "kafka" }},
		{name: "sub-second ttl", mutate: func(c *Config) { c.Auth.OTPTTL = time.Millisecond }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
