// Package fetch bounds the load the engine may place on its storage
// collaborator. Fetch-more is driven by UI scrolling and can fire in bursts;
// the governor caps both the number of outstanding requests and the rate at
// which new ones are issued.
package fetch

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds fetch limits.
type Config struct {
	// MaxInFlight is the maximum number of outstanding fetch requests.
	// If 0, defaults to 1.
	MaxInFlight int64

	// RequestsPerSec is the maximum rate of fetch requests.
	// If 0, unlimited.
	RequestsPerSec float64

	// Burst is the rate limiter burst size. If 0, defaults to 1.
	Burst int
}

// Governor admits fetch requests within the configured limits.
type Governor struct {
	cfg Config

	sem      *semaphore.Weighted
	limiter  *rate.Limiter // nil if unlimited
	inFlight atomic.Int64
}

// NewGovernor creates a new fetch governor.
func NewGovernor(cfg Config) *Governor {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 1
	}

	g := &Governor{
		cfg: cfg,
		sem: semaphore.NewWeighted(cfg.MaxInFlight),
	}
	if cfg.RequestsPerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), burst)
	}
	return g
}

// Admit attempts to admit one fetch request without blocking. The engine runs
// on an event loop and must never wait here; a false result simply means the
// caller retries on a later fetch-more.
func (g *Governor) Admit() bool {
	if !g.sem.TryAcquire(1) {
		return false
	}
	if g.limiter != nil && !g.limiter.Allow() {
		g.sem.Release(1)
		return false
	}
	g.inFlight.Add(1)
	return true
}

// Wait admits one fetch request, blocking until capacity and rate allow or
// the context is cancelled. Intended for collaborators running off the event
// loop, not for the engine itself.
func (g *Governor) Wait(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			g.sem.Release(1)
			return err
		}
	}
	g.inFlight.Add(1)
	return nil
}

// Done releases one admitted request. Call it when a synchronous fetch
// returns, or when a pending fetch's records finally arrive.
func (g *Governor) Done() {
	g.inFlight.Add(-1)
	g.sem.Release(1)
}

// InFlight returns the number of currently admitted requests.
func (g *Governor) InFlight() int64 {
	return g.inFlight.Load()
}
