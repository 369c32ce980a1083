package worker

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streamfold/wan-publisher/internal/stats"
	"github.com/streamfold/wan-publisher/internal/wanstats"
	"go.uber.org/zap"
)

var (
	ErrPublisherStopped = errors.New("publisher is stopped")
	ErrQueueFull        = errors.New("outbound queue is full")
)

type PublisherConfig struct {
	NumWorkers     int
	PushInterval   time.Duration
	PublishTimeout time.Duration
	BatchSize      int
	QueueCapacity  int
}

// Publisher replicates events to a single target. It owns the
// PublisherStatus of that target and keeps it current as events are
// enqueued and published.
type Publisher struct {
	name   string
	id     string
	cfg    PublisherConfig
	log    *zap.Logger
	target Target
	status *wanstats.PublisherStatus

	// stateMu orders state changes against in-flight Offers
	stateMu       sync.RWMutex
	queue         chan Event
	mapCounters   *wanstats.ObjectCounters
	cacheCounters *wanstats.ObjectCounters

	statEnqueued  stats.Stat
	statPublished stats.Stat
	statBatches   stats.Stat
	statLatency   stats.Stat
	statDropped   stats.Stat

	startOnce sync.Once
	stopOnce  sync.Once
	stopChan  chan bool
	wg        sync.WaitGroup
	now       func() time.Time
}

func NewPublisher(name string, cfg PublisherConfig, target Target, statsBuilder stats.Builder, log *zap.Logger) *Publisher {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 10_000
	}
	if cfg.PushInterval <= 0 {
		cfg.PushInterval = 50 * time.Millisecond
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}

	id := uuid.New().String()

	return &Publisher{
		name:          name,
		id:            id,
		cfg:           cfg,
		log:           log.With(zap.String("publisher", name), zap.String("publisher_id", id)),
		target:        target,
		status:        wanstats.NewPublisherStatus(),
		queue:         make(chan Event, cfg.QueueCapacity),
		mapCounters:   wanstats.NewObjectCounters(),
		cacheCounters: wanstats.NewObjectCounters(),
		statEnqueued:  statsBuilder.NewStat(stats.StatEventsEnqueued),
		statPublished: statsBuilder.NewStat(stats.StatEventsPublished),
		statBatches:   statsBuilder.NewStat(stats.StatBatchesPublished),
		statLatency:   statsBuilder.NewStat(stats.StatPublishLatency),
		statDropped:   statsBuilder.NewStat(stats.StatEventsDropped),
		stopChan:      make(chan bool),
		now:           time.Now,
	}
}

func (p *Publisher) Name() string {
	return p.name
}

// ID is unique per publisher instance, so restarts can be told apart.
func (p *Publisher) ID() string {
	return p.id
}

// Status returns the live status. It is shared with the push workers.
func (p *Publisher) Status() *wanstats.PublisherStatus {
	return p.status
}

// Offer enqueues ev for replication. Events are refused with
// ErrPublisherStopped while the publisher is stopped and dropped with
// ErrQueueFull when the outbound queue is at capacity. No event is enqueued
// once Stop has returned.
func (p *Publisher) Offer(ev Event) error {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()

	if !p.status.State().EnqueuesNewEvents() {
		return ErrPublisherStopped
	}

	select {
	case p.queue <- ev:
		p.statEnqueued.Incr(1)
		p.status.SetOutboundQueueSize(int32(len(p.queue)))
		return nil
	default:
		p.countersFor(ev.ObjectType).Get(ev.ObjectName).IncrementDropped()
		p.statDropped.Incr(1)
		p.attachCounters()
		return ErrQueueFull
	}
}

func (p *Publisher) Pause() {
	p.setState(wanstats.StatePaused)
	p.log.Info("publisher paused")
}

func (p *Publisher) Resume() {
	p.setState(wanstats.StateReplicating)
	p.log.Info("publisher resumed")
}

// Stop refuses new events and halts replication. The queue is kept, and a
// stopped publisher can be resumed.
func (p *Publisher) Stop() {
	p.setState(wanstats.StateStopped)
	p.log.Info("publisher stopped")
}

func (p *Publisher) setState(state wanstats.PublisherState) {
	p.stateMu.Lock()
	p.status.SetState(state)
	p.stateMu.Unlock()
}

// Start launches the push workers. Calling it more than once has no effect.
func (p *Publisher) Start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.cfg.NumWorkers; i++ {
			ticker := time.NewTicker(p.cfg.PushInterval)

			p.wg.Add(1)
			go func() {
				defer func() {
					ticker.Stop()
					p.wg.Done()
				}()

				p.pushWait(ticker)
			}()
		}
		p.log.Debug("publisher started", zap.Int("workers", p.cfg.NumWorkers))
	})
}

// Close stops the push workers and closes the target if it is closable.
func (p *Publisher) Close() error {
	var err error
	p.stopOnce.Do(func() {
		close(p.stopChan)
		p.wg.Wait()

		if c, ok := p.target.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}

func (p *Publisher) pushWait(ticker *time.Ticker) {
	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.pushIt()
		}
	}
}

// pushIt publishes one batch if the state allows replication.
func (p *Publisher) pushIt() bool {
	if !p.status.State().ReplicatesEnqueuedEvents() {
		return false
	}

	batch := p.drain()
	if len(batch) == 0 {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.PublishTimeout)
	defer cancel()

	if err := p.target.Publish(ctx, batch); err != nil {
		if p.status.IsConnected() {
			p.log.Warn("lost connection to target", zap.Error(err))
		}
		p.status.SetConnected(false)
		p.dropBatch(batch)
		return false
	}

	if !p.status.IsConnected() {
		p.log.Info("connected to target")
	}
	p.status.SetConnected(true)
	p.recordBatch(batch, p.now())
	return true
}

func (p *Publisher) drain() []Event {
	batch := make([]Event, 0, p.cfg.BatchSize)
	for len(batch) < p.cfg.BatchSize {
		select {
		case ev := <-p.queue:
			batch = append(batch, ev)
		default:
			p.status.SetOutboundQueueSize(int32(len(p.queue)))
			return batch
		}
	}
	p.status.SetOutboundQueueSize(int32(len(p.queue)))
	return batch
}

func (p *Publisher) recordBatch(batch []Event, ackedAt time.Time) {
	for _, ev := range batch {
		latency := ackedAt.Sub(ev.CreatedAt).Milliseconds()
		if latency < 0 {
			latency = 0
		}
		p.status.RecordPublishedEvent(latency)
		p.statLatency.Incr(uint64(latency))

		c := p.countersFor(ev.ObjectType).Get(ev.ObjectName)
		switch ev.Op {
		case OpSync:
			c.IncrementSync()
		case OpRemove:
			c.IncrementRemove()
		default:
			c.IncrementUpdate()
		}
	}

	p.statPublished.Incr(uint64(len(batch)))
	p.statBatches.Incr(1)
	p.attachCounters()
}

func (p *Publisher) dropBatch(batch []Event) {
	for _, ev := range batch {
		p.countersFor(ev.ObjectType).Get(ev.ObjectName).IncrementDropped()
	}
	p.statDropped.Incr(uint64(len(batch)))
	p.attachCounters()
}

func (p *Publisher) attachCounters() {
	p.status.SetSentMapEventCounters(p.mapCounters.Snapshot())
	p.status.SetSentCacheEventCounters(p.cacheCounters.Snapshot())
}

func (p *Publisher) countersFor(t ObjectType) *wanstats.ObjectCounters {
	if t == ObjectCache {
		return p.cacheCounters
	}
	return p.mapCounters
}
