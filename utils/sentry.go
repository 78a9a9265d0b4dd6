package utils

import (
	"time"

	"github.com/amirphl/drip-mailer/config"
	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// InitSentry initializes Sentry for error tracking. Without a DSN it is a no-op
// and the returned flush does nothing.
func InitSentry(cfg config.SentryConfig, deployment config.DeploymentConfig) (func(), error) {
	if cfg.DSN == "" {
		logrus.Info("sentry disabled, no DSN configured")
		return func() {}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      deployment.Environment,
		Release:          deployment.Version,
		EnableTracing:    cfg.TracesSampleRate > 0,
		TracesSampleRate: cfg.TracesSampleRate,
	})
	if err != nil {
		return nil, err
	}

	logrus.WithField("environment", deployment.Environment).Info("sentry initialized")
	return func() { sentry.Flush(2 * time.Second) }, nil
}
