package worker

import (
	"time"
)

// Every syncEvery-th event is a sync, every removeEvery-th a remove, the
// rest are updates.
const (
	syncEvery   = 50
	removeEvery = 7
)

type objectRef struct {
	objectType ObjectType
	name       string
}

// EventGenerator produces synthetic replication events with increasing
// sequence numbers, cycling over the configured maps and caches. It is not
// safe for concurrent use.
type EventGenerator struct {
	nextSeq uint64
	objects []objectRef
	now     func() time.Time
}

func NewEventGenerator(mapNames, cacheNames []string) *EventGenerator {
	objects := make([]objectRef, 0, len(mapNames)+len(cacheNames))
	for _, name := range mapNames {
		objects = append(objects, objectRef{objectType: ObjectMap, name: name})
	}
	for _, name := range cacheNames {
		objects = append(objects, objectRef{objectType: ObjectCache, name: name})
	}

	return &EventGenerator{
		nextSeq: 1,
		objects: objects,
		now:     time.Now,
	}
}

// Next returns the next event. ok is false when the generator has no objects
// to produce events for.
func (g *EventGenerator) Next() (Event, bool) {
	if len(g.objects) == 0 {
		return Event{}, false
	}

	seq := g.nextSeq
	g.nextSeq++

	obj := g.objects[int((seq-1)%uint64(len(g.objects)))]

	return Event{
		Seq:        seq,
		ObjectType: obj.objectType,
		ObjectName: obj.name,
		Op:         opFor(seq),
		CreatedAt:  g.now(),
	}, true
}

func opFor(seq uint64) Op {
	switch {
	case seq%syncEvery == 0:
		return OpSync
	case seq%removeEvery == 0:
		return OpRemove
	default:
		return OpUpdate
	}
}
