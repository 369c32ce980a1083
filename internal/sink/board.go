package sink

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/streamfold/wan-publisher/internal/wanstats"
)

// StatusBoard keeps the most recent status received for each publisher.
type StatusBoard struct {
	sync.RWMutex
	entries map[string]boardEntry
}

type boardEntry struct {
	status     *wanstats.PublisherStatus
	receivedAt time.Time
}

func NewStatusBoard() *StatusBoard {
	return &StatusBoard{
		entries: make(map[string]boardEntry),
	}
}

// Update replaces the status held for publisher.
func (b *StatusBoard) Update(publisher string, status *wanstats.PublisherStatus) {
	b.Lock()
	defer b.Unlock()

	b.entries[publisher] = boardEntry{status: status, receivedAt: time.Now()}
}

func (b *StatusBoard) Statuses() map[string]*wanstats.PublisherStatus {
	b.RLock()
	defer b.RUnlock()

	out := make(map[string]*wanstats.PublisherStatus, len(b.entries))
	for name, e := range b.entries {
		out[name] = e.status
	}
	return out
}

// Report returns one line per publisher, sorted by name. Publishers not
// heard from since staleAfter are flagged.
func (b *StatusBoard) Report(now time.Time, staleAfter time.Duration) []string {
	b.RLock()
	names := make([]string, 0, len(b.entries))
	for name := range b.entries {
		names = append(names, name)
	}
	entries := make(map[string]boardEntry, len(b.entries))
	for k, v := range b.entries {
		entries[k] = v
	}
	b.RUnlock()

	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		e := entries[name]
		snap := e.status.Snapshot()

		line := fmt.Sprintf("Publisher %s, state: %s, connected: %t, published: %d, mean latency: %.1fms, queue: %d",
			name, snap.State, snap.Connected, snap.TotalPublishedEventCount, snap.MeanLatency(), snap.OutboundQueueSize)
		if staleAfter > 0 && now.Sub(e.receivedAt) > staleAfter {
			line += fmt.Sprintf(" (stale, last seen %s ago)", now.Sub(e.receivedAt).Truncate(time.Second))
		}
		lines = append(lines, line)
	}
	return lines
}
