package clock

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
)

// runSubscriber processes ticks until the subscription is stopped,
// calling fn for each tick before acknowledging it.
func runSubscriber(s *Subscription, fn func(tick uint64)) {
	for {
		tick, err := s.AwaitTick(context.Background())
		if err != nil {
			return
		}
		fn(tick)
		s.Acknowledge()
	}
}

func TestClock_Rendezvous(t *testing.T) {
	const (
		subscribers = 4
		ticks       = 2000
	)

	c := New()
	var acked [ticks + 1]int32
	var violations int32

	var wg sync.WaitGroup
	for i := 0; i < subscribers; i++ {
		s := c.Subscribe()
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			runSubscriber(s, func(tick uint64) {
				// every subscriber must have acknowledged the previous tick
				if tick > 1 && atomic.LoadInt32(&acked[tick-1]) != subscribers {
					atomic.AddInt32(&violations, 1)
				}
				if (int(tick)+i)%3 == 0 {
					runtime.Gosched()
				}
				atomic.AddInt32(&acked[tick], 1)
			})
		}(i)
	}

	for i := 0; i < ticks; i++ {
		if err := c.Step(context.Background()); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got := atomic.LoadInt32(&acked[i+1]); got != subscribers {
			t.Fatalf("tick %d: step returned with %d/%d acknowledgements", i+1, got, subscribers)
		}
	}
	c.Stop()
	wg.Wait()

	if violations != 0 {
		t.Errorf("%d subscribers observed a tick before the previous one was acknowledged", violations)
	}
	if c.Ticks() != ticks {
		t.Errorf("expected %d ticks, got %d", ticks, c.Ticks())
	}
}

func TestClock_NoSubscribers(t *testing.T) {
	c := New()
	for i := 0; i < 10; i++ {
		if err := c.Step(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if c.Ticks() != 10 {
		t.Errorf("expected 10 ticks, got %d", c.Ticks())
	}
}

// stepAsync runs Step in a goroutine, returning a channel receiving its
// result.
func stepAsync(c *Clock) <-chan error {
	result := make(chan error, 1)
	go func() { result <- c.Step(context.Background()) }()
	return result
}

func expectBlocked(t *testing.T, result <-chan error) {
	t.Helper()
	select {
	case err := <-result:
		t.Fatalf("expected step to wait for acknowledgement, returned %v", err)
	case <-time.After(30 * time.Millisecond):
	}
}

func expectDone(t *testing.T, result <-chan error) {
	t.Helper()
	select {
	case err := <-result:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("step did not complete")
	}
}

func TestClock_SubscribeBetweenTicks(t *testing.T) {
	c := New()
	a := c.Subscribe()

	result := stepAsync(c)
	if tick, err := a.AwaitTick(context.Background()); err != nil || tick != 1 {
		t.Fatalf("expected tick 1, got %d (%v)", tick, err)
	}

	// subscribing mid-tick does not add to the current round
	b := c.Subscribe()
	a.Acknowledge()
	expectDone(t, result)

	// but the next round waits for both
	result = stepAsync(c)
	if tick, _ := a.AwaitTick(context.Background()); tick != 2 {
		t.Fatalf("expected tick 2, got %d", tick)
	}
	a.Acknowledge()
	expectBlocked(t, result)

	if tick, _ := b.AwaitTick(context.Background()); tick != 2 {
		t.Fatalf("expected b to observe tick 2 first, got %d", tick)
	}
	b.Acknowledge()
	expectDone(t, result)

	// once b unsubscribes only a is required
	b.Close()
	if c.Subscribers() != 1 {
		t.Errorf("expected 1 subscriber, got %d", c.Subscribers())
	}
	result = stepAsync(c)
	a.AwaitTick(context.Background())
	a.Acknowledge()
	expectDone(t, result)

	if _, err := b.AwaitTick(context.Background()); errors.Cause(err) != ErrStopped {
		t.Errorf("expected ErrStopped from closed subscription, got %v", err)
	}
}

func TestClock_CloseReleasesRound(t *testing.T) {
	c := New()
	a := c.Subscribe()
	b := c.Subscribe()

	result := stepAsync(c)
	a.AwaitTick(context.Background())
	a.Acknowledge()
	expectBlocked(t, result)

	// b never acknowledges, but closing counts as acknowledgement
	b.Close()
	expectDone(t, result)
}

func TestClock_DuplicateAcknowledge(t *testing.T) {
	c := New()
	a := c.Subscribe()

	// acknowledging before receiving the tick does nothing
	a.Acknowledge()
	result := stepAsync(c)
	expectBlocked(t, result)

	a.AwaitTick(context.Background())
	a.Acknowledge()
	a.Acknowledge()
	expectDone(t, result)

	// the extra acknowledgement does not leak into the next tick
	result = stepAsync(c)
	expectBlocked(t, result)
	a.AwaitTick(context.Background())
	a.Acknowledge()
	expectDone(t, result)
}

func TestClock_StallTimeout(t *testing.T) {
	c := New(WithStallTimeout(20 * time.Millisecond))
	s := c.Subscribe()

	go func() {
		// receives the tick, but never acknowledges it
		s.AwaitTick(context.Background())
	}()

	err := c.Step(context.Background())
	if errors.Cause(err) != ErrStalled {
		t.Fatalf("expected ErrStalled, got %v", err)
	}
}

func TestClock_StepCancelled(t *testing.T) {
	c := New()
	c.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Step(ctx); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestClock_Run(t *testing.T) {
	c := New(WithCadence(100, time.Millisecond))
	s := c.Subscribe()

	var processed uint64
	done := make(chan struct{})
	go func() {
		defer close(done)
		runSubscriber(s, func(tick uint64) {
			atomic.StoreUint64(&processed, tick)
		})
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for atomic.LoadUint64(&processed) < 500 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	if err := c.Run(ctx); err != nil {
		t.Fatalf("expected clean exit, got %v", err)
	}

	// Run releases subscribers when it returns
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscriber was not released")
	}
	if c.Ticks() < 500 {
		t.Errorf("expected at least 500 ticks, got %d", c.Ticks())
	}
}

func TestClock_RunPacing(t *testing.T) {
	c := New(WithCadence(10, 10*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()
	if err := c.Run(ctx); err != nil {
		t.Fatal(err)
	}

	// one batch immediately, then one per frame
	if ticks := c.Ticks(); ticks < 30 || ticks > 70 {
		t.Errorf("expected roughly 60 ticks in 55ms, got %d", ticks)
	}
}

func TestClock_Constants(t *testing.T) {
	if TicksPerFrame != 17556 {
		t.Errorf("expected 17556 ticks per frame, got %d", TicksPerFrame)
	}
	if FrameTime < 16*time.Millisecond || FrameTime > 17*time.Millisecond {
		t.Errorf("expected ~16.74ms frames, got %s", FrameTime)
	}
}
