package metrics

import (
	"context"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	PlanRequestsTotal      metric.Int64Counter
	PlanResultsBySource    metric.Int64Counter
	PlanDurationSeconds    metric.Float64Histogram
	GatewayFallbacksTotal  metric.Int64Counter
	GatewayFailuresTotal   metric.Int64Counter
	LocationConflictsTotal metric.Int64Counter
	SelectionTogglesTotal  metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments only once.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("PlanEngine")
		var err error
		m := &AppMetrics{}

		m.PlanRequestsTotal, err = meter.Int64Counter(
			"plan_requests_total",
			metric.WithDescription("Total number of planning invocations"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create plan_requests_total: %v", err)
		}

		m.PlanResultsBySource, err = meter.Int64Counter(
			"plan_results_by_source_total",
			metric.WithDescription("Plan results broken down by generation fallback tier"),
			metric.WithUnit("{result}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create plan_results_by_source_total: %v", err)
		}

		m.PlanDurationSeconds, err = meter.Float64Histogram(
			"plan_duration_seconds",
			metric.WithDescription("Duration of planning invocations in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create plan_duration_seconds: %v", err)
		}

		m.GatewayFallbacksTotal, err = meter.Int64Counter(
			"gateway_fallbacks_total",
			metric.WithDescription("Times a gateway dropped to its fallback provider tier"),
			metric.WithUnit("{fallback}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create gateway_fallbacks_total: %v", err)
		}

		m.GatewayFailuresTotal, err = meter.Int64Counter(
			"gateway_failures_total",
			metric.WithDescription("Upstream failures swallowed at a gateway boundary"),
			metric.WithUnit("{failure}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create gateway_failures_total: %v", err)
		}

		m.LocationConflictsTotal, err = meter.Int64Counter(
			"location_conflicts_total",
			metric.WithDescription("Country conflicts between idea text and explicit location filter"),
			metric.WithUnit("{conflict}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create location_conflicts_total: %v", err)
		}

		m.SelectionTogglesTotal, err = meter.Int64Counter(
			"selection_toggles_total",
			metric.WithDescription("Suggestion selection toggles"),
			metric.WithUnit("{toggle}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create selection_toggles_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the global metrics instance, initializing it if needed.
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}

// RecordGatewayFallback counts one provider-tier fallback for the named gateway.
func (m *AppMetrics) RecordGatewayFallback(ctx context.Context, gateway, from, to string) {
	m.GatewayFallbacksTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("gateway", gateway),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordGatewayFailure counts one swallowed upstream failure for the named gateway.
func (m *AppMetrics) RecordGatewayFailure(ctx context.Context, gateway, tier string) {
	m.GatewayFailuresTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("gateway", gateway),
		attribute.String("tier", tier),
	))
}
