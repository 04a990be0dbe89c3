package state

import (
	"errors"
	"testing"
)

func TestRegistryResolvesPlaces(t *testing.T) {
	reg := NewRegistry()
	p, segs, conns := newTestPlace(t, reg)

	got, ok := reg.LookupPlace("test")
	if !ok || got.ID() != p.ID() {
		t.Fatalf("LookupPlace = (%v, %v)", got, ok)
	}
	if step := got.SimulationClock().SimulationStepDuration(0); step != 1 {
		t.Fatalf("step duration = %v, want 1", step)
	}
	if _, err := reg.Place("missing"); !errors.Is(err, ErrPlaceNotFound) {
		t.Fatalf("Place(missing) error = %v", err)
	}

	n, _, _ := newLineNetwork(t, 10)
	if _, err := NewPlace("test", n, reg); !errors.Is(err, ErrPlaceExists) {
		t.Fatalf("duplicate place error = %v", err)
	}
	if _, err := NewPlace("alpha", n, reg); err != nil {
		t.Fatalf("NewPlace alpha: %v", err)
	}
	places := reg.Places()
	if len(places) != 2 || places[0].ID() != "alpha" || places[1].ID() != "test" {
		t.Fatalf("Places() = %v", places)
	}

	v := addVehicle(t, p, segs[0], conns[0], 10, true)
	if _, ok := v.Place().Clock(); !ok {
		t.Fatalf("vehicle clock does not resolve")
	}
	p.Close()
	if _, ok := v.Place().Clock(); ok {
		t.Fatalf("vehicle clock resolves after the place closed")
	}
	if reg.Len() != 1 {
		t.Fatalf("registry holds %d places after Close", reg.Len())
	}
	reg.Remove("never-registered")
}
