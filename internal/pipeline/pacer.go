package pipeline

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pacer waits a random duration in [Min, Max] between consecutive items.
type Pacer struct {
	Min time.Duration
	Max time.Duration

	// rand returns a value in [0, n). Defaults to math/rand/v2.
	rand func(n int64) int64
	// sleep blocks for d or until ctx ends.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a Pacer. Min and Max are swapped if given out of order.
func NewPacer(lo, hi time.Duration) *Pacer {
	if hi < lo {
		lo, hi = hi, lo
	}
	return &Pacer{Min: lo, Max: hi}
}

// Delay returns the next randomized delay.
func (p *Pacer) Delay() time.Duration {
	span := int64(p.Max - p.Min)
	if span <= 0 {
		return p.Min
	}
	rnd := p.rand
	if rnd == nil {
		rnd = rand.Int64N
	}
	return p.Min + time.Duration(rnd(span+1))
}

// Wait sleeps for the next delay. It returns ctx.Err() if ctx ends first.
func (p *Pacer) Wait(ctx context.Context) error {
	d := p.Delay()
	if d <= 0 {
		return ctx.Err()
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return sleep(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
