package stats

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

type Tracker interface {
	NewDomain(publisher string) Builder
	Report(now time.Time) map[string]WindowReport
}

type Builder interface {
	NewStat(statType StatType) Stat
}

// WindowReport is what one publisher did between two reports.
type WindowReport struct {
	Window time.Duration
	deltas map[StatType]uint64
}

type statTracker struct {
	sync.RWMutex
	domains map[string]*statDomain
}

// statDomain holds the stats of one publisher. Its lock guards the report
// window and every stat's last reported value.
type statDomain struct {
	sync.Mutex
	stats      map[StatType]*stat
	lastReport time.Time
}

type statBuilder struct {
	domain *statDomain
}

func NewStatTracker() Tracker {
	return &statTracker{
		domains: make(map[string]*statDomain),
	}
}

func (s *statTracker) NewDomain(publisher string) Builder {
	s.Lock()
	defer s.Unlock()

	d, ok := s.domains[publisher]
	if !ok {
		d = &statDomain{
			stats: make(map[StatType]*stat),
		}
		s.domains[publisher] = d
	}

	return &statBuilder{domain: d}
}

// NewStat returns the publisher's stat of the given type, creating it on
// first use.
func (s *statBuilder) NewStat(statType StatType) Stat {
	s.domain.Lock()
	defer s.domain.Unlock()

	if existing, ok := s.domain.stats[statType]; ok {
		return existing
	}

	newStat := &stat{
		statType: statType,
	}
	s.domain.stats[statType] = newStat

	return newStat
}

// report closes the current window. The first call only opens one.
func (d *statDomain) report(now time.Time) (WindowReport, bool) {
	d.Lock()
	defer d.Unlock()

	first := d.lastReport.IsZero()
	wr := WindowReport{
		Window: now.Sub(d.lastReport),
		deltas: make(map[StatType]uint64, len(d.stats)),
	}
	for t, s := range d.stats {
		curr := s.value.Load()
		wr.deltas[t] = curr - s.lastReportValue
		s.lastReportValue = curr
	}
	d.lastReport = now

	if first || len(wr.deltas) == 0 {
		return WindowReport{}, false
	}
	return wr, true
}

// Report closes the window of every publisher that has one open and returns
// them keyed by publisher name.
func (s *statTracker) Report(now time.Time) map[string]WindowReport {
	s.RLock()
	domains := make(map[string]*statDomain, len(s.domains))
	for k, d := range s.domains {
		domains[k] = d
	}
	s.RUnlock()

	reports := make(map[string]WindowReport)
	for k, d := range domains {
		if wr, ok := d.report(now); ok {
			reports[k] = wr
		}
	}

	return reports
}

func (w WindowReport) Has(t StatType) bool {
	_, ok := w.deltas[t]
	return ok
}

func (w WindowReport) Delta(t StatType) uint64 {
	return w.deltas[t]
}

// Rate is the per second change of t over the window.
func (w WindowReport) Rate(t StatType) float64 {
	if w.Window <= 0 {
		return 0
	}
	return float64(w.deltas[t]) / w.Window.Seconds()
}

// MeanLatency is the average latency in milliseconds of the events published
// during the window, or 0 when none were.
func (w WindowReport) MeanLatency() float64 {
	published := w.deltas[StatEventsPublished]
	if published == 0 {
		return 0
	}
	return float64(w.deltas[StatPublishLatency]) / float64(published)
}

func (w WindowReport) String() string {
	parts := make([]string, 0, len(w.deltas))
	for _, t := range []StatType{StatEventsEnqueued, StatEventsPublished, StatBatchesPublished, StatEventsDropped} {
		if !w.Has(t) {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d %s (%4.2f %s/sec)", w.Delta(t), t.desc(), w.Rate(t), t.unit()))
	}
	if w.Has(StatPublishLatency) {
		parts = append(parts, fmt.Sprintf("mean latency %.1fms", w.MeanLatency()))
	}
	return strings.Join(parts, ", ")
}
