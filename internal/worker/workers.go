package worker

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/streamfold/wan-publisher/internal/control"
	"github.com/streamfold/wan-publisher/internal/stats"
	"github.com/streamfold/wan-publisher/internal/wanstats"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Workers struct {
	cfg        Config
	log        *zap.Logger
	stats      stats.Tracker
	statsStop  chan bool
	statsWg    *sync.WaitGroup
	genStop    chan bool
	genWg      *sync.WaitGroup
	mu         sync.RWMutex
	publishers map[string]*Publisher
	order      []string
}

type Config struct {
	NumWorkers       int
	ReportInterval   time.Duration
	PushInterval     time.Duration
	PublishTimeout   time.Duration
	GenerateInterval time.Duration
	EventsPerTick    int
	BatchSize        int
	QueueCapacity    int
	MapNames         []string
	CacheNames       []string
}

func (c Config) publisherConfig() PublisherConfig {
	return PublisherConfig{
		NumWorkers:     c.NumWorkers,
		PushInterval:   c.PushInterval,
		PublishTimeout: c.PublishTimeout,
		BatchSize:      c.BatchSize,
		QueueCapacity:  c.QueueCapacity,
	}
}

func New(cfg Config, log *zap.Logger) *Workers {
	return &Workers{
		cfg:        cfg,
		log:        log,
		stats:      stats.NewStatTracker(),
		publishers: make(map[string]*Publisher),
	}
}

// Add registers a publisher replicating to target under name.
func (w *Workers) Add(name string, target Target) (*Publisher, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.publishers[name]; exists {
		return nil, fmt.Errorf("publisher %q already registered", name)
	}

	p := NewPublisher(name, w.cfg.publisherConfig(), target, w.stats.NewDomain(name), w.log)
	w.publishers[name] = p
	w.order = append(w.order, name)

	return p, nil
}

func (w *Workers) Publisher(name string) (*Publisher, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	p, ok := w.publishers[name]
	return p, ok
}

func (w *Workers) Statuses() map[string]*wanstats.PublisherStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make(map[string]*wanstats.PublisherStatus, len(w.publishers))
	for name, p := range w.publishers {
		out[name] = p.Status()
	}
	return out
}

func (w *Workers) Apply(name string, action control.Action) (wanstats.PublisherState, error) {
	p, ok := w.Publisher(name)
	if !ok {
		return wanstats.StateReplicating, fmt.Errorf("%w: %s", control.ErrUnknownPublisher, name)
	}

	switch action {
	case control.ActionPause:
		p.Pause()
	case control.ActionResume:
		p.Resume()
	case control.ActionStop:
		p.Stop()
	default:
		return p.Status().State(), fmt.Errorf("%w: %q", control.ErrUnknownAction, action)
	}

	return p.Status().State(), nil
}

func (w *Workers) Start() {
	w.mu.RLock()
	pubs := w.sortedPublishers()
	w.mu.RUnlock()

	w.genStop = make(chan bool)
	w.genWg = &sync.WaitGroup{}

	for _, p := range pubs {
		p.Start()

		if w.cfg.GenerateInterval <= 0 || w.cfg.EventsPerTick <= 0 {
			continue
		}

		gen := NewEventGenerator(w.cfg.MapNames, w.cfg.CacheNames)
		w.genWg.Add(1)
		go func(p *Publisher) {
			defer w.genWg.Done()
			w.generate(p, gen)
		}(p)
	}

	w.statsStop = make(chan bool)
	w.statsWg = &sync.WaitGroup{}

	if w.cfg.ReportInterval <= 0 {
		return
	}

	ticker := time.NewTicker(w.cfg.ReportInterval)
	w.statsWg.Add(1)
	go func() {
		defer func() {
			ticker.Stop()
			w.statsWg.Done()
		}()

		w.printStats(ticker)
	}()
}

func (w *Workers) Stop() error {
	if w.statsStop != nil {
		close(w.statsStop)
		w.statsWg.Wait()
	}
	if w.genStop != nil {
		close(w.genStop)
		w.genWg.Wait()
	}

	w.mu.RLock()
	pubs := w.sortedPublishers()
	w.mu.RUnlock()

	var err error
	for _, p := range pubs {
		if cerr := p.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to close publisher %s: %w", p.Name(), cerr))
		}
	}
	return err
}

func (w *Workers) sortedPublishers() []*Publisher {
	pubs := make([]*Publisher, 0, len(w.order))
	for _, name := range w.order {
		pubs = append(pubs, w.publishers[name])
	}
	return pubs
}

func (w *Workers) generate(p *Publisher, gen *EventGenerator) {
	ticker := time.NewTicker(w.cfg.GenerateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.genStop:
			return
		case <-ticker.C:
			for i := 0; i < w.cfg.EventsPerTick; i++ {
				ev, ok := gen.Next()
				if !ok {
					return
				}
				// a full queue is already counted as a drop
				if err := p.Offer(ev); errors.Is(err, ErrPublisherStopped) {
					break
				}
			}
		}
	}
}

func (w *Workers) printStats(ticker *time.Ticker) {
	for {
		select {
		case <-w.statsStop:
			return

		case <-ticker.C:
			now := time.Now()

			reports := w.stats.Report(now)
			if len(reports) == 0 {
				continue
			}

			names := make([]string, 0, len(reports))
			for name := range reports {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				line := reports[name].String()
				if p, ok := w.Publisher(name); ok {
					snap := p.Status().Snapshot()
					line = fmt.Sprintf("%s, state=%s queue=%d", line, snap.State, snap.OutboundQueueSize)
				}
				fmt.Printf("REPORT: [%s] %s\n", name, line)
			}
		}
	}
}
