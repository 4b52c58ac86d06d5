package relay_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jpillora/ssh-relay/relay"
)

func TestGateDeliverThenAwait(t *testing.T) {
	t.Parallel()
	g := relay.NewGate()
	ep := relay.NewChannelEndpoint(nil)
	if !g.Deliver(ep, "echo hello") {
		t.Fatal("deliver rejected")
	}
	ex, err := g.Await(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if ex.Command != "echo hello" {
		t.Fatalf("unexpected command %q", ex.Command)
	}
	if ex.Endpoint != ep {
		t.Fatal("unexpected endpoint")
	}
}

func TestGateAwaitWakesOnDeliver(t *testing.T) {
	t.Parallel()
	g := relay.NewGate()
	go func() {
		time.Sleep(20 * time.Millisecond)
		g.Deliver(nil, "ls")
	}()
	ex, err := g.Await(context.Background(), 5*time.Second)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if ex.Command != "ls" {
		t.Fatalf("unexpected command %q", ex.Command)
	}
}

func TestGateAwaitTimeout(t *testing.T) {
	t.Parallel()
	g := relay.NewGate()
	start := time.Now()
	_, err := g.Await(context.Background(), 50*time.Millisecond)
	if !errors.Is(err, relay.ErrCommandTimeout) {
		t.Fatalf("got %v, want ErrCommandTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("await took %s, expected prompt timeout", elapsed)
	}
}

func TestGateAwaitCancel(t *testing.T) {
	t.Parallel()
	g := relay.NewGate()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if _, err := g.Await(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestGateConsumesFirstCommandOnly(t *testing.T) {
	t.Parallel()
	g := relay.NewGate()
	g.Deliver(nil, "first")
	g.Deliver(nil, "second")
	ex, err := g.Await(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if ex.Command != "first" {
		t.Fatalf("got %q, want first delivered command", ex.Command)
	}
}

func TestGateBacklogBounded(t *testing.T) {
	t.Parallel()
	g := relay.NewGate()
	rejected := false
	for i := 0; i < 100; i++ {
		if !g.Deliver(nil, "flood") {
			rejected = true
			break
		}
	}
	if !rejected {
		t.Fatal("gate accepted an unbounded number of requests")
	}
}
