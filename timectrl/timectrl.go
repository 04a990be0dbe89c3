// Package timectrl drives simulation time for a place.
package timectrl

import (
	"context"
	"sync"
	"time"
)

// SimClock is an interface for accessing simulation time. World models and
// drivers depend on it rather than on a concrete controller.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
	// After returns a channel that receives the simulation time once d has
	// elapsed in simulation time.
	After(d time.Duration) <-chan time.Time
	// SimulationStepDuration returns the duration of one simulation step
	// expressed in unit (time.Second gives seconds).
	SimulationStepDuration(unit time.Duration) float64
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime advances according to wall-clock time.
	RealTime Mode = iota
	// Accelerated advances as quickly as the loop can run while still stepping by Tick.
	Accelerated
)

// ParseMode maps a flag value to a Mode.
func ParseMode(accelerated bool) Mode {
	if accelerated {
		return Accelerated
	}
	return RealTime
}

type timer struct {
	at time.Time
	ch chan time.Time
}

// TimeController drives simulation time and notifies registered listeners.
// It implements SimClock.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time
	steps       uint64

	listeners []func(time.Time)
	timers    []timer
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// Steps returns how many ticks have elapsed since the start time.
func (tc *TimeController) Steps() uint64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.steps
}

// SetTime moves the simulation clock without notifying listeners.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	tc.currentTime = t
	fired := tc.collectTimers(t)
	tc.mu.Unlock()
	fire(fired, t)
}

// SimulationStepDuration implements SimClock.
func (tc *TimeController) SimulationStepDuration(unit time.Duration) float64 {
	if unit <= 0 {
		unit = time.Second
	}
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return float64(tc.Tick) / float64(unit)
}

// After returns a channel that will receive the current simulation time
// after the duration d has elapsed in simulation time. Implements SimClock.
func (tc *TimeController) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	tc.mu.Lock()
	at := tc.currentTime.Add(d)
	if d <= 0 {
		now := tc.currentTime
		tc.mu.Unlock()
		ch <- now
		return ch
	}
	tc.timers = append(tc.timers, timer{at: at, ch: ch})
	tc.mu.Unlock()
	return ch
}

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Step advances simulation time by one tick and runs the listeners
// synchronously. It returns the new simulation time.
func (tc *TimeController) Step() time.Time {
	tc.mu.Lock()
	tc.currentTime = tc.currentTime.Add(tc.Tick)
	tc.steps++
	now := tc.currentTime
	listeners := append([]func(time.Time){}, tc.listeners...)
	fired := tc.collectTimers(now)
	tc.mu.Unlock()

	fire(fired, now)
	for _, fn := range listeners {
		fn(now)
	}
	return now
}

// Start runs the controller for the specified duration in a separate goroutine.
// A zero duration runs until ctx is cancelled. It returns a channel that is
// closed when the controller finishes.
func (tc *TimeController) Start(ctx context.Context, duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		tc.mu.Lock()
		tc.currentTime = tc.StartTime
		tc.steps = 0
		tc.mu.Unlock()

		var tick <-chan time.Time
		if tc.Mode == RealTime {
			ticker := time.NewTicker(tc.Tick)
			defer ticker.Stop()
			tick = ticker.C
		}

		elapsed := time.Duration(0)
		for {
			if duration > 0 && elapsed >= duration {
				return
			}
			if tick != nil {
				select {
				case <-ctx.Done():
					return
				case <-tick:
				}
			} else if ctx.Err() != nil {
				return
			}
			tc.Step()
			elapsed += tc.Tick
		}
	}()
	return done
}

// collectTimers must be called with tc.mu held.
func (tc *TimeController) collectTimers(now time.Time) []timer {
	var fired []timer
	pending := tc.timers[:0]
	for _, t := range tc.timers {
		if !t.at.After(now) {
			fired = append(fired, t)
			continue
		}
		pending = append(pending, t)
	}
	tc.timers = pending
	return fired
}

func fire(timers []timer, now time.Time) {
	for _, t := range timers {
		t.ch <- now
	}
}
