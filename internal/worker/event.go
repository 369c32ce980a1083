package worker

import "time"

type ObjectType int

const (
	ObjectMap ObjectType = iota
	ObjectCache
)

func (o ObjectType) String() string {
	switch o {
	case ObjectMap:
		return "map"
	case ObjectCache:
		return "cache"
	default:
		return "unknown"
	}
}

type Op int

const (
	OpSync Op = iota
	OpUpdate
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpSync:
		return "sync"
	case OpUpdate:
		return "update"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Event is a single replication event for an entry of a map or cache.
type Event struct {
	Seq        uint64
	ObjectType ObjectType
	ObjectName string
	Op         Op
	CreatedAt  time.Time
}
