package wanstats

import (
	"sync"
	"sync/atomic"
)

// EventCounters counts the events sent for a single replicated map or cache.
type EventCounters struct {
	syncCount    atomic.Uint64
	updateCount  atomic.Uint64
	removeCount  atomic.Uint64
	droppedCount atomic.Uint64
}

// EventCountersSnapshot is a plain copy of an EventCounters.
type EventCountersSnapshot struct {
	SyncCount    uint64 `json:"syncCount"`
	UpdateCount  uint64 `json:"updateCount"`
	RemoveCount  uint64 `json:"removeCount"`
	DroppedCount uint64 `json:"droppedCount"`
}

func (c *EventCounters) IncrementSync()    { c.syncCount.Add(1) }
func (c *EventCounters) IncrementUpdate()  { c.updateCount.Add(1) }
func (c *EventCounters) IncrementRemove()  { c.removeCount.Add(1) }
func (c *EventCounters) IncrementDropped() { c.droppedCount.Add(1) }

func (c *EventCounters) SyncCount() uint64    { return c.syncCount.Load() }
func (c *EventCounters) UpdateCount() uint64  { return c.updateCount.Load() }
func (c *EventCounters) RemoveCount() uint64  { return c.removeCount.Load() }
func (c *EventCounters) DroppedCount() uint64 { return c.droppedCount.Load() }

// Add sums other into c. Each counter is added independently.
func (c *EventCounters) Add(other *EventCounters) {
	if other == nil {
		return
	}
	c.syncCount.Add(other.SyncCount())
	c.updateCount.Add(other.UpdateCount())
	c.removeCount.Add(other.RemoveCount())
	c.droppedCount.Add(other.DroppedCount())
}

func (c *EventCounters) Snapshot() EventCountersSnapshot {
	return EventCountersSnapshot{
		SyncCount:    c.SyncCount(),
		UpdateCount:  c.UpdateCount(),
		RemoveCount:  c.RemoveCount(),
		DroppedCount: c.DroppedCount(),
	}
}

// ObjectCounters holds the EventCounters of every distributed object of one
// kind (maps or caches) replicated by a publisher.
type ObjectCounters struct {
	sync.RWMutex
	counters map[string]*EventCounters
}

func NewObjectCounters() *ObjectCounters {
	return &ObjectCounters{
		counters: make(map[string]*EventCounters),
	}
}

// Get returns the counters for name, creating them on first use.
func (o *ObjectCounters) Get(name string) *EventCounters {
	o.RLock()
	c, ok := o.counters[name]
	o.RUnlock()
	if ok {
		return c
	}

	o.Lock()
	defer o.Unlock()

	c, ok = o.counters[name]
	if !ok {
		c = &EventCounters{}
		o.counters[name] = c
	}
	return c
}

// Snapshot returns a new map holding copies of the current counters, suitable
// for handing to PublisherStatus.SetSentMapEventCounters and friends.
func (o *ObjectCounters) Snapshot() map[string]*EventCounters {
	o.RLock()
	defer o.RUnlock()

	out := make(map[string]*EventCounters, len(o.counters))
	for name, c := range o.counters {
		cp := &EventCounters{}
		cp.Add(c)
		out[name] = cp
	}
	return out
}

// Merge adds every counter in other into o.
func (o *ObjectCounters) Merge(other map[string]*EventCounters) {
	for name, c := range other {
		o.Get(name).Add(c)
	}
}
