package timectrl

import (
	"context"
	"testing"
	"time"
)

func TestTimeControllerSetTime(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Second, RealTime)

	newNow := start.Add(42 * time.Second)
	tc.SetTime(newNow)

	if got := tc.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() = %v, want %v", got, newNow)
	}
}

func TestTimeControllerStartUpdatesNow(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 5*time.Millisecond, Accelerated)

	done := tc.Start(context.Background(), 15*time.Millisecond)
	<-done

	expected := start.Add(15 * time.Millisecond)
	if got := tc.Now(); !got.Equal(expected) {
		t.Fatalf("Now() = %v, want %v", got, expected)
	}
	if got := tc.Steps(); got != 3 {
		t.Fatalf("Steps() = %d, want 3", got)
	}
}

func TestTimeControllerStartHonoursCancel(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Millisecond, RealTime)

	ctx, cancel := context.WithCancel(context.Background())
	done := tc.Start(ctx, 0)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("controller did not stop after cancel")
	}
}

func TestStepNotifiesListenersAndTimers(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 500*time.Millisecond, Accelerated)

	var ticks []time.Time
	tc.AddListener(func(now time.Time) { ticks = append(ticks, now) })
	after := tc.After(time.Second)

	tc.Step()
	select {
	case <-after:
		t.Fatalf("timer fired too early")
	default:
	}
	tc.Step()

	select {
	case got := <-after:
		if !got.Equal(start.Add(time.Second)) {
			t.Fatalf("timer fired at %v", got)
		}
	default:
		t.Fatalf("timer did not fire")
	}
	if len(ticks) != 2 {
		t.Fatalf("listener called %d times, want 2", len(ticks))
	}
}

func TestSimulationStepDuration(t *testing.T) {
	tc := NewTimeController(time.Time{}, 250*time.Millisecond, Accelerated)
	if got := tc.SimulationStepDuration(time.Second); got != 0.25 {
		t.Fatalf("SimulationStepDuration(s) = %v, want 0.25", got)
	}
	if got := tc.SimulationStepDuration(time.Millisecond); got != 250 {
		t.Fatalf("SimulationStepDuration(ms) = %v, want 250", got)
	}
}
