// Package clock provides the tick barrier that paces every emulated
// component to a common logical clock.
//
// The Clock emits a tick to every Subscription, and waits until each of
// them has acknowledged it before emitting the next one. No subscriber
// can observe tick N+1 until all subscribers have finished tick N, which
// keeps independently scheduled goroutines in lock-step.
package clock

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/thelolagemann/tickboy/pkg/log"
)

const (
	// ClockSpeed is the number of clock pulses per second.
	ClockSpeed = 4194304
	// CyclesPerFrame is the number of clock pulses per frame.
	CyclesPerFrame = 70224
	// PulsesPerTick is the number of clock pulses in a tick. One tick is
	// one machine cycle.
	PulsesPerTick = 4
	// TicksPerFrame is the number of ticks emitted back to back before
	// the clock sleeps until the next frame.
	TicksPerFrame = CyclesPerFrame / PulsesPerTick
	// FrameTime is the real time taken by a frame (~16.74ms).
	FrameTime = time.Second * CyclesPerFrame / ClockSpeed
)

var (
	// ErrStalled is returned when a subscriber fails to acknowledge a
	// tick within the stall timeout.
	ErrStalled = errors.New("clock stalled")
	// ErrStopped is returned to subscribers waiting on a clock that has
	// stopped, or on a closed subscription.
	ErrStopped = errors.New("clock stopped")
)

// Clock is the tick barrier.
type Clock struct {
	mu    sync.Mutex
	subs  map[*Subscription]struct{}
	ticks uint64
	// remaining is the number of subscribers yet to acknowledge the
	// current tick.
	remaining int
	// done receives a value once remaining reaches zero.
	done chan struct{}

	stopped  chan struct{}
	stopOnce sync.Once

	ticksPerFrame int
	frameTime     time.Duration
	stallTimeout  time.Duration
	stallTimer    *time.Timer

	log log.Logger
}

// Opt configures a Clock.
type Opt func(c *Clock)

// WithLogger sets the logger of the Clock.
func WithLogger(l log.Logger) Opt {
	return func(c *Clock) {
		c.log = l
	}
}

// WithStallTimeout turns a subscriber that fails to acknowledge a tick
// within d into an ErrStalled error. A zero duration waits forever.
func WithStallTimeout(d time.Duration) Opt {
	return func(c *Clock) {
		c.stallTimeout = d
	}
}

// WithCadence sets how many ticks Run emits per frame, and how long a
// frame lasts in real time.
func WithCadence(ticksPerFrame int, frame time.Duration) Opt {
	return func(c *Clock) {
		c.ticksPerFrame = ticksPerFrame
		c.frameTime = frame
	}
}

// New returns a new Clock running at TicksPerFrame ticks per FrameTime.
func New(opts ...Opt) *Clock {
	c := &Clock{
		subs:          make(map[*Subscription]struct{}),
		done:          make(chan struct{}, 1),
		stopped:       make(chan struct{}),
		ticksPerFrame: TicksPerFrame,
		frameTime:     FrameTime,
		log:           log.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers a new consumer. It takes part in every tick
// emitted after this call returns.
func (c *Clock) Subscribe() *Subscription {
	s := &Subscription{
		c:      c,
		ticks:  make(chan uint64, 1),
		closed: make(chan struct{}),
	}

	c.mu.Lock()
	c.subs[s] = struct{}{}
	c.mu.Unlock()

	return s
}

// Subscribers returns the number of registered subscriptions.
func (c *Clock) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Ticks returns the number of ticks emitted.
func (c *Clock) Ticks() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

// Step emits a single tick to every subscriber, and blocks until all of
// them have acknowledged it (or closed their subscription).
func (c *Clock) Step(ctx context.Context) error {
	c.mu.Lock()
	// drop a completion left over from a round that was abandoned
	select {
	case <-c.done:
	default:
	}
	c.ticks++
	tick := c.ticks
	c.remaining = len(c.subs)
	for s := range c.subs {
		s.pending = true
		s.deliver(tick)
	}
	if c.remaining == 0 {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	return c.await(ctx, tick)
}

// await blocks until the current round has been acknowledged.
func (c *Clock) await(ctx context.Context, tick uint64) error {
	// fast path, avoids arming the stall timer
	select {
	case <-c.done:
		return nil
	default:
	}

	var timeout <-chan time.Time
	if c.stallTimeout > 0 {
		if c.stallTimer == nil {
			c.stallTimer = time.NewTimer(c.stallTimeout)
		} else {
			c.stallTimer.Reset(c.stallTimeout)
		}
		defer func() {
			if !c.stallTimer.Stop() {
				select {
				case <-c.stallTimer.C:
				default:
				}
			}
		}()
		timeout = c.stallTimer.C
	}

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout:
		c.mu.Lock()
		remaining := c.remaining
		c.mu.Unlock()
		return errors.Wrapf(ErrStalled, "tick %d: %d subscriber(s) did not acknowledge within %s", tick, remaining, c.stallTimeout)
	}
}

// release marks s as having finished the current tick. Must be called
// with mu held.
func (c *Clock) release(s *Subscription) {
	if !s.pending {
		return
	}
	s.pending = false
	c.remaining--
	if c.remaining == 0 {
		c.done <- struct{}{}
	}
}

// Run drives the clock until ctx is cancelled. Ticks are emitted in
// batches of ticksPerFrame, after which the clock sleeps until the next
// frame is due. A nil error is returned when ctx is cancelled; stalls
// are returned as errors. Subscribers waiting on the clock are released
// with ErrStopped once Run returns.
func (c *Clock) Run(ctx context.Context) error {
	defer c.Stop()

	ticker := time.NewTicker(c.frameTime)
	defer ticker.Stop()

	c.log.Infof("clock: running at %d ticks every %s", c.ticksPerFrame, c.frameTime)
	var frames uint64
	start := time.Now()
	for {
		for i := 0; i < c.ticksPerFrame; i++ {
			if err := c.Step(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}

		// report the effective speed roughly once a second
		if frames++; frames%60 == 0 {
			elapsed := time.Since(start)
			c.log.Debugf("clock: %d frames in %s (%.1f%% speed)", 60, elapsed, float64(60*c.frameTime)/float64(elapsed)*100)
			start = time.Now()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Stop releases every subscriber waiting for a tick with ErrStopped.
// It is safe to call more than once.
func (c *Clock) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopped)
	})
}

// Subscription is a consumer's handle on the Clock.
type Subscription struct {
	c     *Clock
	ticks chan uint64

	// pending is set while the clock waits for this subscription to
	// acknowledge a tick, guarded by c.mu.
	pending bool
	// seen is the last tick received, only touched by the subscriber.
	seen uint64

	closed    chan struct{}
	closeOnce sync.Once
}

// deliver hands tick to the subscription without blocking. Must be
// called with c.mu held.
func (s *Subscription) deliver(tick uint64) {
	select {
	case s.ticks <- tick:
	default:
		// a tick was never received, replace it
		select {
		case <-s.ticks:
		default:
		}
		s.ticks <- tick
	}
}

// AwaitTick blocks until the next tick is emitted, and returns it.
func (s *Subscription) AwaitTick(ctx context.Context) (uint64, error) {
	select {
	case tick := <-s.ticks:
		s.seen = tick
		return tick, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-s.closed:
		return 0, ErrStopped
	case <-s.c.stopped:
		return 0, ErrStopped
	}
}

// Acknowledge signals that the subscriber has finished processing the
// tick last returned by AwaitTick. Acknowledging a tick more than once,
// or before it was received, has no effect.
func (s *Subscription) Acknowledge() {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	if s.seen == s.c.ticks {
		s.c.release(s)
	}
}

// Close unsubscribes from the clock. If the clock is waiting for this
// subscription, the current tick counts as acknowledged.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.c.mu.Lock()
		delete(s.c.subs, s)
		s.c.release(s)
		s.c.mu.Unlock()

		close(s.closed)
	})
}
