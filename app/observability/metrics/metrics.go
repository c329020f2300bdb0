package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	RegisterRequestsTotal metric.Int64Counter
	LoginAttemptsTotal    metric.Int64Counter
	LoginFailuresTotal    metric.Int64Counter
	TokenRefreshesTotal   metric.Int64Counter
	PasswordResetsTotal   metric.Int64Counter
	AuthDurationSeconds   metric.Float64Histogram
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metric instruments once. It reads
// the Meter from the globally configured MeterProvider, so the provider must
// be set up first.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("tasknest")
		var err error
		m := &AppMetrics{}

		m.RegisterRequestsTotal, err = meter.Int64Counter(
			"register_requests_total",
			metric.WithDescription("Total number of registration requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create register_requests_total: %v", err)
		}

		m.LoginAttemptsTotal, err = meter.Int64Counter(
			"login_attempts_total",
			metric.WithDescription("Total number of login attempts"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create login_attempts_total: %v", err)
		}

		m.LoginFailuresTotal, err = meter.Int64Counter(
			"login_failures_total",
			metric.WithDescription("Total number of rejected login attempts"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create login_failures_total: %v", err)
		}

		m.TokenRefreshesTotal, err = meter.Int64Counter(
			"token_refreshes_total",
			metric.WithDescription("Total number of access-token refreshes"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create token_refreshes_total: %v", err)
		}

		m.PasswordResetsTotal, err = meter.Int64Counter(
			"password_resets_total",
			metric.WithDescription("Total number of confirmed password resets"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create password_resets_total: %v", err)
		}

		m.AuthDurationSeconds, err = meter.Float64Histogram(
			"auth_operation_duration_seconds",
			metric.WithDescription("Duration of auth service operations in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create auth_operation_duration_seconds: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}
