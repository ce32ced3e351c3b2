package telemetry

import (
	"context"
	"time"

	"tokenpoint/internal/types"
)

// APIMetrics adapts the Collector to the HTTP server's per-request metrics
// hook, emitting a request counter and a latency datum per served request.
type APIMetrics struct {
	collector *Collector
}

// NewAPIMetrics creates an APIMetrics adapter over the collector.
func NewAPIMetrics(collector *Collector) *APIMetrics {
	return &APIMetrics{collector: collector}
}

// RecordRequest publishes the request count and latency for one request.
// Dimensions use the chi route pattern, not the raw path, so cardinality
// stays bounded.
func (m *APIMetrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	dims := map[string]string{
		types.DimMethod:   method,
		types.DimEndpoint: endpoint,
		types.DimStatus:   status,
	}
	ctx := context.Background()
	m.collector.Count(ctx, types.MetricAPIRequestCount, dims)
	m.collector.Duration(ctx, types.MetricAPILatency, duration, dims)
}
