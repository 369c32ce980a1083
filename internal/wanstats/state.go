package wanstats

import (
	"fmt"
	"strings"
)

// PublisherState is the lifecycle state of a WAN publisher. The zero value
// is StateReplicating.
type PublisherState int32

const (
	StateReplicating PublisherState = iota
	StatePaused
	StateStopped
)

// EnqueuesNewEvents reports whether a publisher in this state accepts new
// events into its outbound queue.
func (s PublisherState) EnqueuesNewEvents() bool {
	switch s {
	case StateReplicating, StatePaused:
		return true
	default:
		return false
	}
}

// ReplicatesEnqueuedEvents reports whether a publisher in this state drains
// its outbound queue towards the target.
func (s PublisherState) ReplicatesEnqueuedEvents() bool {
	return s == StateReplicating
}

func (s PublisherState) String() string {
	switch s {
	case StateReplicating:
		return "REPLICATING"
	case StatePaused:
		return "PAUSED"
	case StateStopped:
		return "STOPPED"
	default:
		return "unknown"
	}
}

// ParseState is the inverse of String, ignoring case.
func ParseState(s string) (PublisherState, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "REPLICATING":
		return StateReplicating, nil
	case "PAUSED":
		return StatePaused, nil
	case "STOPPED":
		return StateStopped, nil
	default:
		return StateReplicating, fmt.Errorf("unknown publisher state %q", s)
	}
}

// stateFromFlags rebuilds a state from the two wire flags. A stopped
// publisher is also paused, so stopped wins.
func stateFromFlags(paused, stopped bool) PublisherState {
	if stopped {
		return StateStopped
	}
	if paused {
		return StatePaused
	}
	return StateReplicating
}
