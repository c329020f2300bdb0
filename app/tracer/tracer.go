package tracer

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// InitMetricsProvider wires the global otel MeterProvider to a Prometheus
// exporter and returns an HTTP handler serving the /metrics scrape endpoint.
func InitMetricsProvider(serviceName string) (http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := metric.NewMeterProvider(
		metric.WithReader(exporter),
		metric.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		)),
	)
	otel.SetMeterProvider(mp)

	return promhttp.Handler(), nil
}

// ServeMetrics runs the Prometheus scrape endpoint on its own port.
// Intended to be started in a goroutine from main.
func ServeMetrics(port string, handler http.Handler, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	addr := fmt.Sprintf(":%s", port)
	logger.Info("Starting metrics server", slog.String("address", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics server stopped", slog.Any("error", err))
	}
}
