package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/streamfold/wan-publisher/internal/control"
	"github.com/streamfold/wan-publisher/internal/stats"
	"github.com/streamfold/wan-publisher/internal/wanstats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingTarget struct {
	mu      sync.Mutex
	err     error
	batches [][]Event
	closed  bool
}

func (t *recordingTarget) Publish(ctx context.Context, batch []Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.err != nil {
		return t.err
	}
	cp := append([]Event(nil), batch...)
	t.batches = append(t.batches, cp)
	return nil
}

func (t *recordingTarget) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	return nil
}

func (t *recordingTarget) published() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, b := range t.batches {
		n += len(b)
	}
	return n
}

func newTestPublisher(t *testing.T, cfg PublisherConfig, target Target) *Publisher {
	t.Helper()
	if cfg.PushInterval == 0 {
		cfg.PushInterval = time.Hour
	}
	return NewPublisher("test", cfg, target, stats.NewStatTracker().NewDomain("test"), zap.NewNop())
}

func testEvent(seq uint64, ot ObjectType, name string, op Op, at time.Time) Event {
	return Event{Seq: seq, ObjectType: ot, ObjectName: name, Op: op, CreatedAt: at}
}

func TestPublisher_OfferRespectsState(t *testing.T) {
	p := newTestPublisher(t, PublisherConfig{QueueCapacity: 10}, &recordingTarget{})
	now := time.Now()

	require.NoError(t, p.Offer(testEvent(1, ObjectMap, "orders", OpUpdate, now)))

	p.Pause()
	require.NoError(t, p.Offer(testEvent(2, ObjectMap, "orders", OpUpdate, now)))

	p.Stop()
	assert.ErrorIs(t, p.Offer(testEvent(3, ObjectMap, "orders", OpUpdate, now)), ErrPublisherStopped)

	assert.Equal(t, int32(2), p.Status().OutboundQueueSize())
}

func TestPublisher_NoEnqueueAfterStop(t *testing.T) {
	p := newTestPublisher(t, PublisherConfig{QueueCapacity: 100_000}, &recordingTarget{})
	now := time.Now()

	var wg sync.WaitGroup
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for seq := uint64(0); ; seq++ {
				select {
				case <-done:
					return
				default:
				}
				if errors.Is(p.Offer(testEvent(seq, ObjectMap, "orders", OpUpdate, now)), ErrPublisherStopped) {
					return
				}
			}
		}()
	}

	time.Sleep(5 * time.Millisecond)
	p.Stop()
	queued := len(p.queue)

	close(done)
	wg.Wait()

	assert.Equal(t, queued, len(p.queue))
}

func TestPublisher_QueueFullDrops(t *testing.T) {
	p := newTestPublisher(t, PublisherConfig{QueueCapacity: 2}, &recordingTarget{})
	now := time.Now()

	require.NoError(t, p.Offer(testEvent(1, ObjectCache, "sessions", OpUpdate, now)))
	require.NoError(t, p.Offer(testEvent(2, ObjectCache, "sessions", OpUpdate, now)))
	assert.ErrorIs(t, p.Offer(testEvent(3, ObjectCache, "sessions", OpUpdate, now)), ErrQueueFull)

	caches := p.Status().SentCacheEventCounters()
	require.Contains(t, caches, "sessions")
	assert.Equal(t, uint64(1), caches["sessions"].DroppedCount())
}

func TestPublisher_PushRecordsLatencyAndCounters(t *testing.T) {
	target := &recordingTarget{}
	p := newTestPublisher(t, PublisherConfig{QueueCapacity: 10, BatchSize: 10}, target)

	base := time.Now()
	p.now = func() time.Time { return base.Add(25 * time.Millisecond) }

	require.NoError(t, p.Offer(testEvent(1, ObjectMap, "orders", OpUpdate, base)))
	require.NoError(t, p.Offer(testEvent(2, ObjectMap, "orders", OpRemove, base)))
	require.NoError(t, p.Offer(testEvent(3, ObjectCache, "sessions", OpSync, base)))

	require.True(t, p.pushIt())

	s := p.Status()
	assert.True(t, s.IsConnected())
	assert.Equal(t, int64(3), s.TotalPublishedEventCount())
	assert.Equal(t, int64(75), s.TotalPublishLatency())
	assert.Equal(t, int32(0), s.OutboundQueueSize())

	maps := s.SentMapEventCounters()
	require.Contains(t, maps, "orders")
	assert.Equal(t, wanstats.EventCountersSnapshot{UpdateCount: 1, RemoveCount: 1}, maps["orders"].Snapshot())

	caches := s.SentCacheEventCounters()
	require.Contains(t, caches, "sessions")
	assert.Equal(t, uint64(1), caches["sessions"].SyncCount())

	assert.Equal(t, 3, target.published())
}

func TestPublisher_PausedDoesNotReplicate(t *testing.T) {
	target := &recordingTarget{}
	p := newTestPublisher(t, PublisherConfig{QueueCapacity: 10}, target)

	require.NoError(t, p.Offer(testEvent(1, ObjectMap, "orders", OpUpdate, time.Now())))

	p.Pause()
	assert.False(t, p.pushIt())
	p.Stop()
	assert.False(t, p.pushIt())
	assert.Equal(t, 0, target.published())
	assert.Equal(t, int32(1), p.Status().OutboundQueueSize())

	p.Resume()
	assert.True(t, p.pushIt())
	assert.Equal(t, 1, target.published())
}

func TestPublisher_BatchSizeLimit(t *testing.T) {
	target := &recordingTarget{}
	p := newTestPublisher(t, PublisherConfig{QueueCapacity: 10, BatchSize: 2}, target)

	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, p.Offer(testEvent(i, ObjectMap, "orders", OpUpdate, time.Now())))
	}

	require.True(t, p.pushIt())
	assert.Equal(t, int32(3), p.Status().OutboundQueueSize())
	assert.Equal(t, int64(2), p.Status().TotalPublishedEventCount())
}

func TestPublisher_TargetFailureDisconnects(t *testing.T) {
	target := &recordingTarget{}
	p := newTestPublisher(t, PublisherConfig{QueueCapacity: 10}, target)

	require.NoError(t, p.Offer(testEvent(1, ObjectMap, "orders", OpUpdate, time.Now())))
	require.True(t, p.pushIt())
	require.True(t, p.Status().IsConnected())

	target.err = errors.New("connection refused")
	require.NoError(t, p.Offer(testEvent(2, ObjectMap, "orders", OpUpdate, time.Now())))
	assert.False(t, p.pushIt())

	s := p.Status()
	assert.False(t, s.IsConnected())
	assert.Equal(t, int64(1), s.TotalPublishedEventCount())
	assert.Equal(t, uint64(1), s.SentMapEventCounters()["orders"].DroppedCount())
}

func TestPublisher_StartClose(t *testing.T) {
	target := &recordingTarget{}
	p := newTestPublisher(t, PublisherConfig{QueueCapacity: 100, PushInterval: 5 * time.Millisecond, NumWorkers: 3}, target)

	p.Start()
	p.Start()

	for i := uint64(1); i <= 20; i++ {
		require.NoError(t, p.Offer(testEvent(i, ObjectMap, "orders", OpUpdate, time.Now())))
	}

	require.Eventually(t, func() bool {
		return p.Status().TotalPublishedEventCount() == 20
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, target.closed)
}

func TestWorkers_Apply(t *testing.T) {
	w := New(Config{}, zap.NewNop())
	_, err := w.Add("eu-west", &recordingTarget{})
	require.NoError(t, err)

	_, err = w.Add("eu-west", &recordingTarget{})
	assert.Error(t, err)

	state, err := w.Apply("eu-west", control.ActionPause)
	require.NoError(t, err)
	assert.Equal(t, wanstats.StatePaused, state)

	state, err = w.Apply("eu-west", control.ActionStop)
	require.NoError(t, err)
	assert.Equal(t, wanstats.StateStopped, state)

	state, err = w.Apply("eu-west", control.ActionResume)
	require.NoError(t, err)
	assert.Equal(t, wanstats.StateReplicating, state)

	_, err = w.Apply("us-east", control.ActionPause)
	assert.ErrorIs(t, err, control.ErrUnknownPublisher)

	_, err = w.Apply("eu-west", control.Action("drain"))
	assert.ErrorIs(t, err, control.ErrUnknownAction)

	statuses := w.Statuses()
	require.Len(t, statuses, 1)
	p, ok := w.Publisher("eu-west")
	require.True(t, ok)
	assert.Same(t, p.Status(), statuses["eu-west"])
}

func TestWorkers_GenerateAndPublish(t *testing.T) {
	w := New(Config{
		NumWorkers:       2,
		PushInterval:     5 * time.Millisecond,
		GenerateInterval: 5 * time.Millisecond,
		EventsPerTick:    10,
		BatchSize:        50,
		QueueCapacity:    1000,
		MapNames:         []string{"orders"},
		CacheNames:       []string{"sessions"},
	}, zap.NewNop())

	target := &recordingTarget{}
	_, err := w.Add("eu-west", target)
	require.NoError(t, err)

	w.Start()

	require.Eventually(t, func() bool {
		s := w.Statuses()["eu-west"]
		return s.TotalPublishedEventCount() >= 50 &&
			len(s.SentMapEventCounters()) == 1 &&
			len(s.SentCacheEventCounters()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, w.Stop())
	assert.True(t, target.closed)
}
