// Package ratelimit implements proactive request pacing.
// Both upstream APIs throttle aggressively, so the archiver spaces its
// requests out instead of waiting to be told off with a 429.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var pacerWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "f1_pacer_wait_seconds",
	Help:    "Time spent waiting for the inter-request pacing interval",
	Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2},
})

// Pacer enforces a minimum interval between consecutive requests.
// The zero-interval pacer never waits.
type Pacer struct {
	interval time.Duration

	mu   sync.Mutex
	next time.Time
}

// NewPacer creates a pacer with the given minimum interval.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{interval: interval}
}

// Wait blocks until the pacing interval since the previous request has
// elapsed, or the context is cancelled. Safe for concurrent use, though
// the archiver issues requests strictly sequentially.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.interval <= 0 {
		return nil
	}

	p.mu.Lock()
	now := time.Now()
	slot := p.next
	if slot.Before(now) {
		slot = now
	}
	p.next = slot.Add(p.interval)
	p.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return nil
	}
	pacerWaitSeconds.Observe(wait.Seconds())

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Interval returns the configured pacing interval.
func (p *Pacer) Interval() time.Duration {
	if p == nil {
		return 0
	}
	return p.interval
}
