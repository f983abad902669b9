package fetch

import (
	"context"
	"testing"
	"time"
)

func TestGovernorInFlightLimit(t *testing.T) {
	g := NewGovernor(Config{MaxInFlight: 2})

	if !g.Admit() || !g.Admit() {
		t.Fatal("first two requests should be admitted")
	}
	if g.Admit() {
		t.Fatal("third request should be refused")
	}
	if g.InFlight() != 2 {
		t.Fatalf("InFlight = %d, want 2", g.InFlight())
	}

	g.Done()
	if !g.Admit() {
		t.Fatal("request should be admitted after Done")
	}
}

func TestGovernorRateLimit(t *testing.T) {
	g := NewGovernor(Config{MaxInFlight: 10, RequestsPerSec: 1, Burst: 1})

	if !g.Admit() {
		t.Fatal("burst request should be admitted")
	}
	g.Done()

	// Rate exhausted; the semaphore slot must have been given back.
	if g.Admit() {
		t.Fatal("request past the rate limit should be refused")
	}
	if g.InFlight() != 0 {
		t.Fatalf("InFlight = %d, want 0", g.InFlight())
	}
}

func TestGovernorWait(t *testing.T) {
	g := NewGovernor(Config{MaxInFlight: 1})
	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := g.Wait(ctx); err == nil {
		t.Fatal("Wait should fail once capacity is exhausted and the context expires")
	}
	g.Done()
}
