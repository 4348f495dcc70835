// Package ratelimit provides per-platform admission control for
// outbound upstream calls. Each platform owns one token bucket, tokens
// refill continuously at capacity/window, and waiters are admitted
// strictly in arrival order.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"socialscope-backend/lib/platforms"

	"golang.org/x/time/rate"
)

// ErrQueueFull is returned when the admission queue for a platform is
// saturated. Callers treat it the same as an admission timeout.
var ErrQueueFull = errors.New("rate limit admission queue is full")

const queueBound = 1024

type Config struct {
	// Capacity is the burst size of the bucket.
	Capacity int `json:"capacity"`
	// Window is the duration over which Capacity tokens refill.
	Window time.Duration `json:"window"`
}

type Stats struct {
	Available   int `json:"available"`
	Capacity    int `json:"capacity"`
	QueueLength int `json:"queue_length"`
}

type admission struct {
	ctx  context.Context
	done chan error
}

type bucket struct {
	lim      *rate.Limiter
	requests chan admission
	queued   atomic.Int64
}

// every admission goes through the pump goroutine, only the head of the
// queue ever waits on the limiter, which is what makes admission FIFO
func (b *bucket) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.drain(ctx.Err())
			return
		case req := <-b.requests:
			err := b.lim.Wait(req.ctx)
			b.queued.Add(-1)
			req.done <- err
		}
	}
}

// drain fails everything still queued so no waiter is left parked on a
// dead pump
func (b *bucket) drain(err error) {
	for {
		select {
		case req := <-b.requests:
			b.queued.Add(-1)
			req.done <- err
		default:
			return
		}
	}
}

type Registry struct {
	ctx     context.Context
	buckets map[platforms.Platform]*bucket
}

// NewRegistry constructs one bucket per configured platform. The pump
// goroutines live until ctx is cancelled.
func NewRegistry(ctx context.Context, configs map[platforms.Platform]Config) *Registry {
	buckets := make(map[platforms.Platform]*bucket, len(configs))
	for platform, config := range configs {
		b := &bucket{
			lim: rate.NewLimiter(
				rate.Limit(float64(config.Capacity)/config.Window.Seconds()),
				config.Capacity,
			),
			requests: make(chan admission, queueBound),
		}
		go b.pump(ctx)
		buckets[platform] = b
	}
	return &Registry{ctx: ctx, buckets: buckets}
}

// Admit blocks until one token is available for the platform or the
// context expires. Admission order is the order Admit was called in.
func (r *Registry) Admit(ctx context.Context, platform platforms.Platform) error {
	b, ok := r.buckets[platform]
	if !ok {
		return fmt.Errorf("no rate limit bucket for platform %q", platform)
	}

	req := admission{ctx: ctx, done: make(chan error, 1)}
	b.queued.Add(1)
	select {
	case b.requests <- req:
	default:
		b.queued.Add(-1)
		return ErrQueueFull
	}

	// a queued waiter must not outlive its own deadline while the pump
	// serves earlier arrivals, nor survive registry shutdown
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.ctx.Done():
		return r.ctx.Err()
	}
}

func (r *Registry) Stats(platform platforms.Platform) Stats {
	b, ok := r.buckets[platform]
	if !ok {
		return Stats{}
	}

	available := int(b.lim.Tokens())
	capacity := b.lim.Burst()
	if available < 0 {
		available = 0
	}
	if available > capacity {
		available = capacity
	}

	return Stats{
		Available:   available,
		Capacity:    capacity,
		QueueLength: int(b.queued.Load()),
	}
}
