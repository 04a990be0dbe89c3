// Package core implements the 1.5D world model: entities anchored to road
// segments, the transform protocol that moves them along the network, and
// the per-tick perception pass.
package core

import (
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/signalsfoundry/roadsim/model"
	"github.com/signalsfoundry/roadsim/roadnet"
)

// WorldEntity is anything the world model can index.
type WorldEntity interface {
	ID() uuid.UUID
	Base() *Entity1D5
}

// MobileEntity is a WorldEntity that moves along the network.
type MobileEntity interface {
	WorldEntity
	Mobile() *MobileEntity1D5
}

// Entity1D5 is a world object anchored to one road segment through its
// bounds.
type Entity1D5 struct {
	Capabilities

	id           uuid.UUID
	typ          model.Semantic
	semantics    []model.Semantic
	bounds       model.Bounds1D5
	groundHeight float64
}

// EntityOption customises entity construction.
type EntityOption func(*Entity1D5)

// WithID supplies the entity identifier instead of generating one.
func WithID(id uuid.UUID) EntityOption {
	return func(e *Entity1D5) { e.id = id }
}

// WithType sets the entity type.
func WithType(t model.Semantic) EntityOption {
	return func(e *Entity1D5) {
		if t != "" {
			e.typ = t
		}
	}
}

// WithSemantics adds semantic tags.
func WithSemantics(tags ...model.Semantic) EntityOption {
	return func(e *Entity1D5) { e.AddSemantics(tags...) }
}

// WithGroundHeight sets the altitude of the ground under the entity.
func WithGroundHeight(h float64) EntityOption {
	return func(e *Entity1D5) { e.groundHeight = h }
}

// NewEntity1D5 builds a static entity owning bounds.
func NewEntity1D5(bounds model.Bounds1D5, opts ...EntityOption) *Entity1D5 {
	e := &Entity1D5{}
	e.init(bounds, opts)
	return e
}

func (e *Entity1D5) init(bounds model.Bounds1D5, opts []EntityOption) {
	e.bounds = bounds
	e.typ = model.ObjectSemantic
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.id == uuid.Nil {
		e.id = uuid.New()
	}
}

// DeclareCapabilities records the optional traits implemented by owner,
// which is usually the concrete type embedding the entity.
func (e *Entity1D5) DeclareCapabilities(owner any) {
	e.Capabilities = CapabilitiesOf(owner)
}

func (e *Entity1D5) ID() uuid.UUID             { return e.id }
func (e *Entity1D5) Base() *Entity1D5          { return e }
func (e *Entity1D5) Type() model.Semantic      { return e.typ }
func (e *Entity1D5) Bounds() model.Bounds1D5   { return e.bounds }
func (e *Entity1D5) GroundHeight() float64     { return e.groundHeight }
func (e *Entity1D5) SetGroundHeight(h float64) { e.groundHeight = h }

// RoadSegment returns the segment the entity is located on.
func (e *Entity1D5) RoadSegment() *roadnet.Segment {
	if e.bounds == nil {
		return nil
	}
	return e.bounds.Segment()
}

// Semantics returns the sorted semantic tags.
func (e *Entity1D5) Semantics() []model.Semantic {
	return slices.Clone(e.semantics)
}

// HasSemantic reports whether tag is attached to the entity.
func (e *Entity1D5) HasSemantic(tag model.Semantic) bool {
	_, found := slices.BinarySearch(e.semantics, tag)
	return found
}

// AddSemantics attaches tags, ignoring duplicates.
func (e *Entity1D5) AddSemantics(tags ...model.Semantic) {
	for _, tag := range tags {
		i, found := slices.BinarySearch(e.semantics, tag)
		if !found {
			e.semantics = slices.Insert(e.semantics, i, tag)
		}
	}
}

// RemoveSemantic detaches tag. The tag set is released when it becomes
// empty.
func (e *Entity1D5) RemoveSemantic(tag model.Semantic) bool {
	i, found := slices.BinarySearch(e.semantics, tag)
	if !found {
		return false
	}
	e.semantics = slices.Delete(e.semantics, i, i+1)
	if len(e.semantics) == 0 {
		e.semantics = nil
	}
	return true
}

// Position1D is the centre of the entity on its segment.
func (e *Entity1D5) Position1D() model.Point1D {
	return e.Position1D5().Point1D()
}

// Position1D5 is the centre of the entity on its segment, with jutting.
func (e *Entity1D5) Position1D5() model.Point1D5 {
	if e.bounds == nil {
		return model.Point1D5{}
	}
	return e.bounds.Center()
}

// Position2D projects the entity centre on the segment geometry.
func (e *Entity1D5) Position2D() orb.Point {
	seg := e.RoadSegment()
	if seg == nil {
		return orb.Point{}
	}
	p, _ := seg.GeoLocation(e.bounds.CenterX(), e.bounds.Jutting())
	return p
}

// Position3D is Position2D lifted to the ground height.
func (e *Entity1D5) Position3D() mgl64.Vec3 {
	p := e.Position2D()
	return mgl64.Vec3{p[0], p[1], e.groundHeight}
}

// Bounds1D returns the curviline interval of the entity.
func (e *Entity1D5) Bounds1D() (lower, upper model.Point1D) {
	if e.bounds == nil {
		return lower, upper
	}
	return e.bounds.Lower().Point1D(), e.bounds.Upper().Point1D()
}

// Bounds2D returns the 2D bounding box of the entity.
func (e *Entity1D5) Bounds2D() orb.Bound {
	if e.bounds == nil {
		return orb.Bound{}
	}
	return e.bounds.Bound2D()
}

// Bounds3D returns the 2D bounding box lifted to the ground height.
func (e *Entity1D5) Bounds3D() (lower, upper mgl64.Vec3) {
	b := e.Bounds2D()
	return mgl64.Vec3{b.Min[0], b.Min[1], e.groundHeight}, mgl64.Vec3{b.Max[0], b.Max[1], e.groundHeight}
}

func (e *Entity1D5) String() string {
	return fmt.Sprintf("%s[%s]@%s", e.typ, e.id, e.Position1D5())
}
