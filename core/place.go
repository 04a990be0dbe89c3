package core

import "time"

// PlaceID identifies a simulated place (environment).
type PlaceID string

// Clock is the part of the simulation clock the world model reads.
type Clock interface {
	// SimulationStepDuration returns the duration of one simulation step
	// expressed in unit.
	SimulationStepDuration(unit time.Duration) float64
}

// Place is the environment that owns a world model and its entities.
type Place interface {
	ID() PlaceID
	SimulationClock() Clock
}

// PlaceRegistry resolves place identifiers to live places.
type PlaceRegistry interface {
	LookupPlace(id PlaceID) (Place, bool)
}

// PlaceHandle is a non-owning reference to a place. Entities and world
// models keep a handle instead of a pointer so that they never keep a
// place alive.
type PlaceHandle struct {
	ID       PlaceID
	Registry PlaceRegistry
}

// Resolve returns the referenced place if it is still registered.
func (h PlaceHandle) Resolve() (Place, bool) {
	if h.Registry == nil || h.ID == "" {
		return nil, false
	}
	return h.Registry.LookupPlace(h.ID)
}

// IsZero reports whether the handle references nothing.
func (h PlaceHandle) IsZero() bool {
	return h.ID == "" && h.Registry == nil
}

// Clock resolves the place and returns its simulation clock.
func (h PlaceHandle) Clock() (Clock, bool) {
	p, ok := h.Resolve()
	if !ok {
		return nil, false
	}
	c := p.SimulationClock()
	return c, c != nil
}
