package control

import (
	"errors"
	"fmt"

	"github.com/streamfold/wan-publisher/internal/wanstats"
)

var (
	ErrUnknownPublisher = errors.New("unknown publisher")
	ErrUnknownAction    = errors.New("unknown action")
)

// Action is a lifecycle command accepted by the control server.
type Action string

const (
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
	ActionStop   Action = "stop"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionPause, ActionResume, ActionStop:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

// Registry is the set of publishers served by the control server.
type Registry interface {
	wanstats.Source

	// Apply runs action against the named publisher and returns its new
	// state. It returns ErrUnknownPublisher when no such publisher exists.
	Apply(name string, action Action) (wanstats.PublisherState, error)
}

// ActionResult is the response body of a lifecycle command.
type ActionResult struct {
	Status string `json:"status"`
	State  string `json:"state"`
}

// ErrorResult is the response body of a failed request.
type ErrorResult struct {
	Error string `json:"error"`
}
