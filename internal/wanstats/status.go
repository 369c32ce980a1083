package wanstats

import (
	"fmt"
	"sync/atomic"
)

// PublisherStatus is the live status of one WAN publisher. Every field is
// updated independently with atomics; there is no lock spanning fields, so
// a reader may see a published-event count that already includes an event
// whose latency has not been added yet.
//
// A status is never reset in place. Replace the instance instead.
type PublisherStatus struct {
	connected         atomic.Bool
	state             atomic.Int32
	outboundQueueSize atomic.Int32

	totalPublishLatency      atomic.Int64
	totalPublishedEventCount atomic.Int64

	sentMapEventCounters   atomic.Pointer[map[string]*EventCounters]
	sentCacheEventCounters atomic.Pointer[map[string]*EventCounters]
}

// NewPublisherStatus returns a disconnected, replicating status with zeroed
// counters and no per-object counters attached.
func NewPublisherStatus() *PublisherStatus {
	s := &PublisherStatus{}
	s.state.Store(int32(StateReplicating))
	return s
}

func (s *PublisherStatus) IsConnected() bool {
	return s.connected.Load()
}

func (s *PublisherStatus) SetConnected(connected bool) {
	s.connected.Store(connected)
}

func (s *PublisherStatus) OutboundQueueSize() int32 {
	return s.outboundQueueSize.Load()
}

func (s *PublisherStatus) SetOutboundQueueSize(size int32) {
	s.outboundQueueSize.Store(size)
}

func (s *PublisherStatus) State() PublisherState {
	return PublisherState(s.state.Load())
}

func (s *PublisherStatus) SetState(state PublisherState) {
	s.state.Store(int32(state))
}

// TotalPublishLatency is the sum of the latencies, in milliseconds, of all
// published events. A decoded status reports -1 when the value was unknown.
func (s *PublisherStatus) TotalPublishLatency() int64 {
	return s.totalPublishLatency.Load()
}

// TotalPublishedEventCount is the number of published events. A decoded
// status reports -1 when the value was unknown.
func (s *PublisherStatus) TotalPublishedEventCount() int64 {
	return s.totalPublishedEventCount.Load()
}

// RecordPublishedEvent counts one published event and adds its latency in
// milliseconds. The two counters are updated one after the other, not as a
// single transaction. Negative latencies count as zero.
func (s *PublisherStatus) RecordPublishedEvent(latency int64) {
	if latency < 0 {
		latency = 0
	}
	s.totalPublishedEventCount.Add(1)
	s.totalPublishLatency.Add(latency)
}

// SentMapEventCounters returns the per-map counters last attached, or nil
// when none were.
func (s *PublisherStatus) SentMapEventCounters() map[string]*EventCounters {
	return loadCounters(&s.sentMapEventCounters)
}

// SetSentMapEventCounters replaces the per-map counters. nil detaches them.
func (s *PublisherStatus) SetSentMapEventCounters(counters map[string]*EventCounters) {
	storeCounters(&s.sentMapEventCounters, counters)
}

// SentCacheEventCounters returns the per-cache counters last attached, or nil
// when none were.
func (s *PublisherStatus) SentCacheEventCounters() map[string]*EventCounters {
	return loadCounters(&s.sentCacheEventCounters)
}

// SetSentCacheEventCounters replaces the per-cache counters. nil detaches them.
func (s *PublisherStatus) SetSentCacheEventCounters(counters map[string]*EventCounters) {
	storeCounters(&s.sentCacheEventCounters, counters)
}

func loadCounters(p *atomic.Pointer[map[string]*EventCounters]) map[string]*EventCounters {
	m := p.Load()
	if m == nil {
		return nil
	}
	return *m
}

func storeCounters(p *atomic.Pointer[map[string]*EventCounters], counters map[string]*EventCounters) {
	if counters == nil {
		p.Store(nil)
		return
	}
	p.Store(&counters)
}

// Snapshot is a point in time copy of a PublisherStatus. Fields are read one
// at a time, so the copy is consistent per field only.
type Snapshot struct {
	Connected                bool
	State                    PublisherState
	OutboundQueueSize        int32
	TotalPublishLatency      int64
	TotalPublishedEventCount int64
	SentMapEventCounters     map[string]*EventCounters
	SentCacheEventCounters   map[string]*EventCounters
}

func (s *PublisherStatus) Snapshot() Snapshot {
	return Snapshot{
		Connected:                s.IsConnected(),
		State:                    s.State(),
		OutboundQueueSize:        s.OutboundQueueSize(),
		TotalPublishedEventCount: s.TotalPublishedEventCount(),
		TotalPublishLatency:      s.TotalPublishLatency(),
		SentMapEventCounters:     s.SentMapEventCounters(),
		SentCacheEventCounters:   s.SentCacheEventCounters(),
	}
}

// MeanLatency is the average publish latency in milliseconds, or 0 when no
// event count is known. Approximate while writers are active.
func (s Snapshot) MeanLatency() float64 {
	if s.TotalPublishedEventCount <= 0 || s.TotalPublishLatency < 0 {
		return 0
	}
	return float64(s.TotalPublishLatency) / float64(s.TotalPublishedEventCount)
}

func (s *PublisherStatus) String() string {
	return fmt.Sprintf("PublisherStatus{connected=%t, totalPublishLatency=%d, totalPublishedEventCount=%d, outboundQueueSize=%d, state=%s}",
		s.IsConnected(),
		s.TotalPublishLatency(),
		s.TotalPublishedEventCount(),
		s.OutboundQueueSize(),
		s.State(),
	)
}

// Source exposes the live statuses of a set of publishers keyed by name.
type Source interface {
	Statuses() map[string]*PublisherStatus
}
