package stats

import "sync/atomic"

type Stat interface {
	Incr(delta uint64)
	Value() uint64
}

type stat struct {
	statType StatType

	value atomic.Uint64

	// guarded by the owning statDomain
	lastReportValue uint64
}

func (s *stat) Incr(delta uint64) {
	s.value.Add(delta)
}

func (s *stat) Value() uint64 {
	return s.value.Load()
}

type StatType int

const (
	StatEventsEnqueued StatType = iota
	StatEventsPublished
	StatBatchesPublished
	StatPublishLatency
	StatEventsDropped
)

func (s StatType) String() string {
	switch s {
	case StatEventsEnqueued:
		return "events_enqueued"
	case StatEventsPublished:
		return "events_published"
	case StatBatchesPublished:
		return "batches_published"
	case StatPublishLatency:
		return "publish_latency_ms"
	case StatEventsDropped:
		return "events_dropped"
	default:
		return "unknown"
	}
}

func (s StatType) desc() string {
	switch s {
	case StatEventsEnqueued:
		return "enqueued"
	case StatEventsPublished:
		return "published"
	case StatBatchesPublished:
		return "batches"
	case StatPublishLatency:
		return "latency"
	case StatEventsDropped:
		return "dropped"
	default:
		return ""
	}
}

func (s StatType) unit() string {
	switch s {
	case StatEventsEnqueued, StatEventsPublished, StatEventsDropped:
		return "events"
	case StatBatchesPublished:
		return "batches"
	case StatPublishLatency:
		return "ms"
	default:
		return ""
	}
}
