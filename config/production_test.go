package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *ProductionConfig {
	return &ProductionConfig{
		Database: DatabaseConfig{Host: "localhost", Port: 5432, Name: "drip_mailer", User: "postgres"},
		Server:   ServerConfig{Port: 8080, ReadTimeout: time.Second, WriteTimeout: time.Second},
		Email:    EmailConfig{Provider: "mock", Timeout: time.Second},
		Logging:  LoggingConfig{Level: "info", Output: "stdout"},
		Scheduler: SchedulerConfig{
			DispatchInterval:       2 * time.Minute,
			DispatchBatchSize:      10,
			DispatchLockTTL:        time.Minute,
			InsertBatchSize:        500,
			WindowUTCOffsetMinutes: 330,
			DefaultIntervalMinutes: 5,
		},
	}
}

func TestValidateProductionConfig(t *testing.T) {
	require.NoError(t, ValidateProductionConfig(validConfig()))

	tests := []struct {
		name   string
		mutate func(*ProductionConfig)
		want   string
	}{
		{name: "missing db host", mutate: func(c *ProductionConfig) { c.Database.Host = "" }, want: "DB_HOST is required"},
		{name: "bad server port", mutate: func(c *ProductionConfig) { c.Server.Port = 70000 }, want: "SERVER_PORT"},
		{name: "unknown provider", mutate: func(c *ProductionConfig) { c.Email.Provider = "sendgrid" }, want: "EMAIL_PROVIDER must be one of"},
		{name: "smtp without host", mutate: func(c *ProductionConfig) {
			c.Email.Provider = "smtp"
			c.Email.FromEmail = "team@example.com"
		}, want: "EMAIL_HOST is required"},
		{name: "tls and starttls", mutate: func(c *ProductionConfig) {
			c.Email = EmailConfig{Provider: "smtp", Host: "smtp.example.com", FromEmail: "a@example.com", UseTLS: true, UseSTARTTLS: true, Timeout: time.Second}
		}, want: "mutually exclusive"},
		{name: "resend without key", mutate: func(c *ProductionConfig) {
			c.Email.Provider = "resend"
			c.Email.FromEmail = "team@example.com"
		}, want: "RESEND_API_KEY"},
		{name: "bad log output", mutate: func(c *ProductionConfig) { c.Logging.Output = "syslog" }, want: "LOG_OUTPUT"},
		{name: "zero dispatch batch", mutate: func(c *ProductionConfig) { c.Scheduler.DispatchBatchSize = 0 }, want: "SCHEDULER_DISPATCH_BATCH_SIZE"},
		{name: "lock shorter than a full batch", mutate: func(c *ProductionConfig) {
			c.Email.Timeout = 30 * time.Second
			c.Scheduler.DispatchLockTTL = 5 * time.Minute
		}, want: "SCHEDULER_DISPATCH_LOCK_TTL must exceed"},
		{name: "huge insert batch", mutate: func(c *ProductionConfig) { c.Scheduler.InsertBatchSize = 10000 }, want: "SCHEDULER_INSERT_BATCH_SIZE"},
		{name: "offset out of range", mutate: func(c *ProductionConfig) { c.Scheduler.WindowUTCOffsetMinutes = 900 }, want: "SCHEDULER_WINDOW_UTC_OFFSET_MINUTES"},
		{name: "broker without url", mutate: func(c *ProductionConfig) { c.Broker.Enabled = true }, want: "BROKER_URL"},
		{name: "redis without url", mutate: func(c *ProductionConfig) {
			c.Cache.Enabled = true
			c.Cache.Provider = "redis"
		}, want: "CACHE_REDIS_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := ValidateProductionConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "configuration validation failed: ")
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("all problems are reported together", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.Name = ""
		cfg.Scheduler.DefaultIntervalMinutes = 0
		err := ValidateProductionConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DB_NAME is required; SCHEDULER_DEFAULT_INTERVAL_MINUTES must be at least 1")
	})
}

func TestLoadProductionConfig(t *testing.T) {
	t.Setenv("EMAIL_PROVIDER", "mock")
	t.Setenv("LOG_OUTPUT", "stdout")
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("BROKER_ENABLED", "false")
	t.Setenv("SCHEDULER_DISPATCH_BATCH_SIZE", "25")
	t.Setenv("SCHEDULER_DISPATCH_INTERVAL", "30s")
	t.Setenv("SCHEDULER_DISPATCH_LOCK_TTL", "20m")
	t.Setenv("SCHEDULER_WINDOW_UTC_OFFSET_MINUTES", "-300")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := LoadProductionConfig()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Scheduler.DispatchBatchSize)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.DispatchInterval)
	assert.Equal(t, 20*time.Minute, cfg.Scheduler.DispatchLockTTL)
	assert.Equal(t, -5*time.Hour, cfg.Scheduler.WindowOffset())
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Security.AllowedOrigins)

	t.Setenv("SCHEDULER_DISPATCH_LOCK_TTL", "5m")
	_, err = LoadProductionConfig()
	assert.ErrorContains(t, err, "SCHEDULER_DISPATCH_LOCK_TTL")

	t.Setenv("SCHEDULER_DISPATCH_LOCK_TTL", "20m")
	t.Setenv("EMAIL_PROVIDER", "carrier-pigeon")
	_, err = LoadProductionConfig()
	assert.Error(t, err)
}
