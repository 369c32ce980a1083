package otlp

import (
	"time"

	"github.com/streamfold/wan-publisher/internal/wanstats"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	otlpMetrics "go.opentelemetry.io/proto/otlp/metrics/v1"
)

// MetricPrefix is prepended to the wire field names to form metric names.
const MetricPrefix = "wan.publisher."

// StatusMetrics encodes a status snapshot as one metric per wire field. The
// per-object counters are not exported.
func StatusMetrics(publisher, instanceID string, status *wanstats.PublisherStatus, now time.Time) *otlpMetrics.ResourceMetrics {
	doc := status.Document()
	ts := uint64(now.UnixNano())

	metrics := []*otlpMetrics.Metric{
		gauge(wanstats.FieldIsConnected, boolInt(doc.IsConnected), ts),
		sum(wanstats.FieldTotalPublishLatencies, "ms", doc.TotalPublishLatencies, ts),
		sum(wanstats.FieldTotalPublishedEventCount, "{event}", doc.TotalPublishedEventCount, ts),
		gauge(wanstats.FieldOutboundQueueSize, int64(doc.OutboundQueueSize), ts),
		gauge(wanstats.FieldPaused, boolInt(doc.Paused), ts),
		gauge(wanstats.FieldStopped, boolInt(doc.Stopped), ts),
	}

	return &otlpMetrics.ResourceMetrics{
		Resource: NewResource(publisher, instanceID),
		ScopeMetrics: []*otlpMetrics.ScopeMetrics{
			{
				Scope:     NewScope("1.0.0"),
				Metrics:   metrics,
				SchemaUrl: semconv.SchemaURL,
			},
		},
		SchemaUrl: semconv.SchemaURL,
	}
}

// StatusFromMetrics decodes resource metrics built by StatusMetrics. Metrics
// that are missing take the same defaults as a JSON document with missing
// fields.
func StatusFromMetrics(rm *otlpMetrics.ResourceMetrics) (string, *wanstats.PublisherStatus) {
	doc := wanstats.DefaultDocument()

	for _, sm := range rm.GetScopeMetrics() {
		for _, m := range sm.GetMetrics() {
			v, ok := firstValue(m)
			if !ok {
				continue
			}

			switch m.GetName() {
			case MetricPrefix + wanstats.FieldIsConnected:
				doc.IsConnected = v != 0
			case MetricPrefix + wanstats.FieldTotalPublishLatencies:
				doc.TotalPublishLatencies = v
			case MetricPrefix + wanstats.FieldTotalPublishedEventCount:
				doc.TotalPublishedEventCount = v
			case MetricPrefix + wanstats.FieldOutboundQueueSize:
				doc.OutboundQueueSize = int32(v)
			case MetricPrefix + wanstats.FieldPaused:
				doc.Paused = v != 0
			case MetricPrefix + wanstats.FieldStopped:
				doc.Stopped = v != 0
			}
		}
	}

	status := wanstats.NewPublisherStatus()
	status.ApplyDocument(doc)

	return ExtractPublisherName(rm.GetResource()), status
}

func firstValue(m *otlpMetrics.Metric) (int64, bool) {
	var points []*otlpMetrics.NumberDataPoint
	switch d := m.GetData().(type) {
	case *otlpMetrics.Metric_Gauge:
		points = d.Gauge.GetDataPoints()
	case *otlpMetrics.Metric_Sum:
		points = d.Sum.GetDataPoints()
	default:
		return 0, false
	}
	if len(points) == 0 {
		return 0, false
	}

	switch v := points[0].GetValue().(type) {
	case *otlpMetrics.NumberDataPoint_AsInt:
		return v.AsInt, true
	case *otlpMetrics.NumberDataPoint_AsDouble:
		return int64(v.AsDouble), true
	default:
		return 0, false
	}
}

func gauge(field string, value int64, ts uint64) *otlpMetrics.Metric {
	return &otlpMetrics.Metric{
		Name: MetricPrefix + field,
		Data: &otlpMetrics.Metric_Gauge{
			Gauge: &otlpMetrics.Gauge{
				DataPoints: []*otlpMetrics.NumberDataPoint{intPoint(value, ts)},
			},
		},
	}
}

func sum(field, unit string, value int64, ts uint64) *otlpMetrics.Metric {
	return &otlpMetrics.Metric{
		Name: MetricPrefix + field,
		Unit: unit,
		Data: &otlpMetrics.Metric_Sum{
			Sum: &otlpMetrics.Sum{
				DataPoints:             []*otlpMetrics.NumberDataPoint{intPoint(value, ts)},
				AggregationTemporality: otlpMetrics.AggregationTemporality_AGGREGATION_TEMPORALITY_CUMULATIVE,
				IsMonotonic:            true,
			},
		},
	}
}

func intPoint(value int64, ts uint64) *otlpMetrics.NumberDataPoint {
	return &otlpMetrics.NumberDataPoint{
		TimeUnixNano: ts,
		Value:        &otlpMetrics.NumberDataPoint_AsInt{AsInt: value},
	}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
