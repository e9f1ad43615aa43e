// Package observe holds the OpenTelemetry metric instruments shared by the
// API client, the tool layer and the HTTP server. [InitProvider] bridges them
// to a Prometheus registry so serve mode can expose /metrics.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/courtside/courtside-cli"

// Metrics holds the application's metric instruments. The OTel types are safe
// for concurrent use.
type Metrics struct {
	// UpstreamRequests counts sports-data and exchange-rate calls by
	// upstream, endpoint and status ("ok", "error", "http_<code>").
	UpstreamRequests metric.Int64Counter

	// UpstreamDuration tracks upstream call latency in seconds.
	UpstreamDuration metric.Float64Histogram

	// ToolCalls counts tool invocations by tool and status.
	ToolCalls metric.Int64Counter

	// Predictions counts predictor results by outcome kind.
	Predictions metric.Int64Counter

	// HTTPRequestDuration tracks serve-mode request latency.
	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}
	var err error

	if met.UpstreamRequests, err = m.Int64Counter("courtside.upstream.requests",
		metric.WithDescription("Outbound API calls."),
	); err != nil {
		return nil, err
	}
	if met.UpstreamDuration, err = m.Float64Histogram("courtside.upstream.duration",
		metric.WithDescription("Latency of outbound API calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("courtside.tool.calls",
		metric.WithDescription("Tool invocations."),
	); err != nil {
		return nil, err
	}
	if met.Predictions, err = m.Int64Counter("courtside.predictor.results",
		metric.WithDescription("Predictor results by kind."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("courtside.http.request.duration",
		metric.WithDescription("Latency of served HTTP requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance built on the global
// meter provider. Without [InitProvider] the global provider is a no-op.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordUpstream records one outbound call.
func (m *Metrics) RecordUpstream(ctx context.Context, upstream, endpoint, status string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("upstream", upstream),
		attribute.String("endpoint", endpoint),
		attribute.String("status", status),
	)
	m.UpstreamRequests.Add(ctx, 1, attrs)
	m.UpstreamDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordToolCall records one tool invocation.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	))
}

// RecordPrediction records one predictor result by kind.
func (m *Metrics) RecordPrediction(ctx context.Context, kind string) {
	m.Predictions.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordHTTP records one served request. route is the matched route
// template, not the raw path.
func (m *Metrics) RecordHTTP(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.response.status_code", status),
	))
}
