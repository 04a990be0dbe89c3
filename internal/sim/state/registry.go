package state

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/signalsfoundry/roadsim/core"
	"github.com/signalsfoundry/roadsim/kb"
)

// Registry resolves place ids to live places. Entities reference their
// place through a core.PlaceHandle backed by a Registry, so removing a place
// from the registry detaches every entity clock at once.
type Registry struct {
	places *kb.KnowledgeBase[core.PlaceID, *Place]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{places: kb.NewKnowledgeBase[core.PlaceID, *Place]()}
}

// Add registers p.
func (r *Registry) Add(p *Place) error {
	if p == nil {
		return errors.New("place is nil")
	}
	if err := r.places.Add(p.ID(), p); err != nil {
		if errors.Is(err, kb.ErrExists) {
			return fmt.Errorf("%w: %s", ErrPlaceExists, p.ID())
		}
		return err
	}
	return nil
}

// Remove unregisters a place. Removing an unknown place is a no-op.
func (r *Registry) Remove(id core.PlaceID) {
	_, _ = r.places.Remove(id)
}

// LookupPlace implements core.PlaceRegistry.
func (r *Registry) LookupPlace(id core.PlaceID) (core.Place, bool) {
	p, ok := r.places.Get(id)
	if !ok {
		return nil, false
	}
	return p, true
}

// Place returns the concrete place registered under id.
func (r *Registry) Place(id core.PlaceID) (*Place, error) {
	p, ok := r.places.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlaceNotFound, id)
	}
	return p, nil
}

// Places returns every registered place ordered by id.
func (r *Registry) Places() []*Place {
	out := r.places.List()
	slices.SortFunc(out, func(a, b *Place) int { return strings.Compare(string(a.ID()), string(b.ID())) })
	return out
}

// Len returns the number of registered places.
func (r *Registry) Len() int { return r.places.Len() }
