package wanstats

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherState_Flags(t *testing.T) {
	tests := []struct {
		state      PublisherState
		enqueues   bool
		replicates bool
	}{
		{StateReplicating, true, true},
		{StatePaused, true, false},
		{StateStopped, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			assert.Equal(t, tt.enqueues, tt.state.EnqueuesNewEvents())
			assert.Equal(t, tt.replicates, tt.state.ReplicatesEnqueuedEvents())
		})
	}
}

func TestParseState(t *testing.T) {
	for _, s := range []PublisherState{StateReplicating, StatePaused, StateStopped} {
		got, err := ParseState(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	got, err := ParseState(" paused ")
	require.NoError(t, err)
	assert.Equal(t, StatePaused, got)

	_, err = ParseState("draining")
	assert.Error(t, err)
}

func TestNewPublisherStatus(t *testing.T) {
	s := NewPublisherStatus()

	assert.False(t, s.IsConnected())
	assert.Equal(t, StateReplicating, s.State())
	assert.Equal(t, int32(0), s.OutboundQueueSize())
	assert.Equal(t, int64(0), s.TotalPublishedEventCount())
	assert.Equal(t, int64(0), s.TotalPublishLatency())
	assert.Nil(t, s.SentMapEventCounters())
	assert.Nil(t, s.SentCacheEventCounters())
}

func TestPublisherStatus_Setters(t *testing.T) {
	s := NewPublisherStatus()

	s.SetConnected(true)
	s.SetOutboundQueueSize(42)
	s.SetState(StatePaused)

	assert.True(t, s.IsConnected())
	assert.Equal(t, int32(42), s.OutboundQueueSize())
	assert.Equal(t, StatePaused, s.State())

	s.SetState(StateStopped)
	assert.Equal(t, StateStopped, s.State())

	// stopped is not terminal
	s.SetState(StateReplicating)
	assert.Equal(t, StateReplicating, s.State())
}

func TestPublisherStatus_CounterMapsReplace(t *testing.T) {
	s := NewPublisherStatus()

	first := map[string]*EventCounters{"orders": {}}
	first["orders"].IncrementUpdate()
	s.SetSentMapEventCounters(first)

	second := map[string]*EventCounters{"users": {}}
	s.SetSentMapEventCounters(second)

	got := s.SentMapEventCounters()
	require.Len(t, got, 1)
	assert.Contains(t, got, "users")
	assert.Nil(t, s.SentCacheEventCounters(), "cache counters are independent of map counters")

	empty := map[string]*EventCounters{}
	s.SetSentCacheEventCounters(empty)
	assert.NotNil(t, s.SentCacheEventCounters())
	assert.Empty(t, s.SentCacheEventCounters())

	s.SetSentMapEventCounters(nil)
	assert.Nil(t, s.SentMapEventCounters())
}

func TestPublisherStatus_RecordPublishedEvent(t *testing.T) {
	s := NewPublisherStatus()

	s.RecordPublishedEvent(10)
	s.RecordPublishedEvent(30)
	s.RecordPublishedEvent(-5)

	assert.Equal(t, int64(3), s.TotalPublishedEventCount())
	assert.Equal(t, int64(40), s.TotalPublishLatency())

	snap := s.Snapshot()
	assert.InDelta(t, 40.0/3.0, snap.MeanLatency(), 0.0001)
}

func TestPublisherStatus_ConcurrentRecord(t *testing.T) {
	const latency = 7

	for _, n := range []int{1, 10, 1000} {
		t.Run(fmt.Sprintf("workers=%d", n), func(t *testing.T) {
			s := NewPublisherStatus()

			var start sync.WaitGroup
			var done sync.WaitGroup
			start.Add(1)
			for i := 0; i < n; i++ {
				done.Add(1)
				go func() {
					defer done.Done()
					start.Wait()
					s.RecordPublishedEvent(latency)
				}()
			}
			start.Done()
			done.Wait()

			assert.Equal(t, int64(n), s.TotalPublishedEventCount())
			assert.Equal(t, int64(n*latency), s.TotalPublishLatency())
		})
	}
}

func TestPublisherStatus_MonotonicUnderWriters(t *testing.T) {
	s := NewPublisherStatus()

	const writers = 8
	const perWriter = 2000

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				s.RecordPublishedEvent(3)
			}
		}()
	}

	stop := make(chan struct{})
	violations := make(chan string, 1)
	var readerWg sync.WaitGroup
	readerWg.Add(1)
	go func() {
		defer readerWg.Done()
		var lastCount, lastLatency int64
		for {
			select {
			case <-stop:
				return
			default:
			}
			count := s.TotalPublishedEventCount()
			lat := s.TotalPublishLatency()
			if count < lastCount || lat < lastLatency {
				select {
				case violations <- fmt.Sprintf("count %d->%d latency %d->%d", lastCount, count, lastLatency, lat):
				default:
				}
				return
			}
			lastCount, lastLatency = count, lat
		}
	}()

	wg.Wait()
	close(stop)
	readerWg.Wait()

	select {
	case v := <-violations:
		t.Fatalf("counters decreased: %s", v)
	default:
	}

	assert.Equal(t, int64(writers*perWriter), s.TotalPublishedEventCount())
	assert.Equal(t, int64(writers*perWriter*3), s.TotalPublishLatency())
}

func TestSnapshot_MeanLatencyUnknown(t *testing.T) {
	assert.Equal(t, 0.0, Snapshot{}.MeanLatency())
	assert.Equal(t, 0.0, Snapshot{TotalPublishedEventCount: Unknown, TotalPublishLatency: Unknown}.MeanLatency())
}

func TestPublisherStatus_String(t *testing.T) {
	s := NewPublisherStatus()
	s.SetConnected(true)
	s.SetOutboundQueueSize(3)
	s.SetState(StatePaused)
	s.RecordPublishedEvent(12)

	assert.Equal(t,
		"PublisherStatus{connected=true, totalPublishLatency=12, totalPublishedEventCount=1, outboundQueueSize=3, state=PAUSED}",
		s.String())
}

func TestObjectCounters(t *testing.T) {
	oc := NewObjectCounters()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			oc.Get("orders").IncrementUpdate()
			oc.Get("users").IncrementSync()
		}()
	}
	wg.Wait()

	oc.Get("orders").IncrementRemove()
	oc.Get("orders").IncrementDropped()

	snap := oc.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, EventCountersSnapshot{UpdateCount: 50, RemoveCount: 1, DroppedCount: 1}, snap["orders"].Snapshot())
	assert.Equal(t, EventCountersSnapshot{SyncCount: 50}, snap["users"].Snapshot())

	// snapshot copies do not track later increments
	oc.Get("orders").IncrementUpdate()
	assert.Equal(t, uint64(50), snap["orders"].UpdateCount())

	other := NewObjectCounters()
	other.Merge(snap)
	other.Merge(snap)
	assert.Equal(t, uint64(100), other.Get("users").SyncCount())
}
