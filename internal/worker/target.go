package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/streamfold/wan-publisher/internal/util"
)

var ErrTargetUnavailable = errors.New("target unavailable")

// Target receives batches of replication events from a publisher.
type Target interface {
	Publish(ctx context.Context, batch []Event) error
}

// SimulatedTarget acknowledges batches after a jittered latency and fails a
// configurable share of them. It stands in for a remote cluster.
type SimulatedTarget struct {
	latency      time.Duration
	failureRatio float64
	rand         *util.Rand
}

func NewSimulatedTarget(latency time.Duration, failureRatio float64) *SimulatedTarget {
	return &SimulatedTarget{
		latency:      latency,
		failureRatio: failureRatio,
		rand:         util.NewRand(),
	}
}

func (t *SimulatedTarget) Publish(ctx context.Context, batch []Event) error {
	if len(batch) == 0 {
		return nil
	}

	if d := time.Duration(t.rand.Jitter(int64(t.latency))); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("failed to publish batch: %w", ctx.Err())
		case <-timer.C:
		}
	}

	if t.failureRatio > 0 && t.rand.Float64() < t.failureRatio {
		return fmt.Errorf("failed to publish batch of %d: %w", len(batch), ErrTargetUnavailable)
	}

	return nil
}
