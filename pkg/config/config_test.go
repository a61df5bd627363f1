package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("MONITOR_INTERVAL", "")

	cfg, err := Load("threatwatch")
	require.NoError(t, err)

	assert.Equal(t, "threatwatch", cfg.Server.ServiceName)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, 300*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, "crossing", cfg.Patterns.TrendEmission)
	assert.Empty(t, cfg.Models.ThreatPath)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MONITOR_INTERVAL", "30s")
	t.Setenv("MONITOR_RADIUS_KM", "2.5")
	t.Setenv("TREND_EMISSION", "every")
	t.Setenv("STORE_DRIVER", StorePostgres)

	cfg, err := Load("threatwatch")
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, 2.5, cfg.Monitor.RadiusKm)
	assert.Equal(t, "every", cfg.Patterns.TrendEmission)
	assert.Equal(t, StorePostgres, cfg.Store.Driver)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Store:    StoreConfig{Driver: StoreMemory},
			Monitor:  MonitorConfig{Interval: time.Minute},
			Patterns: PatternsConfig{TrendEmission: "crossing"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid memory", func(c *Config) {}, false},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mongo" }, true},
		{"firestore without project", func(c *Config) { c.Store.Driver = StoreFirestore }, true},
		{"firestore with project", func(c *Config) {
			c.Store.Driver = StoreFirestore
			c.Firebase.ProjectID = "demo"
		}, false},
		{"zero interval", func(c *Config) { c.Monitor.Interval = 0 }, true},
		{"bad trend emission", func(c *Config) { c.Patterns.TrendEmission = "sometimes" }, true},
		{"rate limit without redis", func(c *Config) { c.RateLimit.Enabled = true }, true},
		{"unknown secrets provider", func(c *Config) { c.Secrets.Provider = "keychain" }, true},
		{"vault secrets provider", func(c *Config) { c.Secrets.Provider = "vault" }, false},
		{"rate limit with redis", func(c *Config) {
			c.RateLimit.Enabled = true
			c.Redis.Enabled = true
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatabaseConfig_URLs(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "tw", SSLMode: "disable"}

	assert.Equal(t, "host=db port=5432 user=u password=p dbname=tw sslmode=disable", db.DSN())
	assert.Equal(t, "pgx5://u:p@db:5432/tw?sslmode=disable", db.MigrationURL())
}

func TestRateLimitConfig_Window(t *testing.T) {
	assert.Equal(t, time.Hour, (&RateLimitConfig{}).Window())
	assert.Equal(t, 90*time.Second, (&RateLimitConfig{WindowSeconds: 90}).Window())
}
