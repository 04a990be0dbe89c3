package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/signalsfoundry/roadsim/model"
	"github.com/signalsfoundry/roadsim/roadnet"
)

// CullingResult1D5 is one entity seen through one frustum.
type CullingResult1D5 struct {
	FrustumID      uuid.UUID
	Classification model.IntersectionType
	Entity         WorldEntity
	// Distance is the non-negative curviline distance from the eye to the
	// near edge of the entity.
	Distance float64
	// LateralDistance is the entity jutting minus the observer jutting.
	LateralDistance float64
	InFront         bool
	// SameDirection is true for mobile entities that entered the segment
	// through the same connection as the traversal.
	SameDirection bool
}

// GroundPerception1D5 is the part of the network an agent's sensors
// traversed during a tick.
type GroundPerception1D5 struct {
	*roadnet.SubNetwork
}

// Percept1D is a culling result with a 1D position.
type Percept1D struct {
	CullingResult1D5
	Position model.Point1D
}

// Percept1D5 is a culling result with a 1.5D position.
type Percept1D5 struct {
	CullingResult1D5
	Position model.Point1D5
}

// Percept2D is a culling result with a position and bounds in the plane.
type Percept2D struct {
	CullingResult1D5
	Position orb.Point
	Bound    orb.Bound
}

// Percept3D is a culling result with a 3D position.
type Percept3D struct {
	CullingResult1D5
	Position mgl64.Vec3
}

// Perceptions holds the percepts of one agent for one tick.
type Perceptions[P any] struct {
	Static  []P
	Dynamic []P
	Ground  *GroundPerception1D5
}

// Len is the number of percepts.
func (p Perceptions[P]) Len() int { return len(p.Static) + len(p.Dynamic) }

// PerceptionList is the per-agent perception container. The concrete
// variant depends on the dimension the agent asked for.
type PerceptionList interface {
	Dimension() model.Dimension
	Len() int
	Results() (static, dynamic []CullingResult1D5)
	Ground() *GroundPerception1D5

	add(r CullingResult1D5, static bool)
	setGround(g *GroundPerception1D5)
	view() any
}

// NewPerceptionList allocates the variant matching d. 2.5D agents get 3D
// percepts.
func NewPerceptionList(d model.Dimension) (PerceptionList, error) {
	switch d {
	case model.Dimension1D:
		return &PerceptionList1D{perceptionList[Percept1D]{project: project1D}}, nil
	case model.Dimension1D5:
		return &PerceptionList1D5{perceptionList[Percept1D5]{project: project1D5}}, nil
	case model.Dimension2D:
		return &PerceptionList2D{perceptionList[Percept2D]{project: project2D}}, nil
	case model.Dimension2D5, model.Dimension3D:
		return &PerceptionList3D{perceptionList[Percept3D]{project: project3D}}, nil
	default:
		return nil, fmt.Errorf("%w: dimension %v", ErrUnsupportedConfiguration, d)
	}
}

type perceptionList[P any] struct {
	data    Perceptions[P]
	raw     [2][]CullingResult1D5
	project func(CullingResult1D5) P
}

func (l *perceptionList[P]) add(r CullingResult1D5, static bool) {
	p := l.project(r)
	if static {
		l.data.Static = append(l.data.Static, p)
		l.raw[0] = append(l.raw[0], r)
		return
	}
	l.data.Dynamic = append(l.data.Dynamic, p)
	l.raw[1] = append(l.raw[1], r)
}

func (l *perceptionList[P]) setGround(g *GroundPerception1D5) { l.data.Ground = g }
func (l *perceptionList[P]) view() any                        { return l.data }
func (l *perceptionList[P]) Len() int                         { return l.data.Len() }
func (l *perceptionList[P]) Ground() *GroundPerception1D5     { return l.data.Ground }

func (l *perceptionList[P]) Results() (static, dynamic []CullingResult1D5) {
	return append([]CullingResult1D5(nil), l.raw[0]...), append([]CullingResult1D5(nil), l.raw[1]...)
}

// Perceptions returns the typed percepts.
func (l *perceptionList[P]) Perceptions() Perceptions[P] { return l.data }

// PerceptionList1D carries Percept1D values.
type PerceptionList1D struct{ perceptionList[Percept1D] }

// PerceptionList1D5 carries Percept1D5 values.
type PerceptionList1D5 struct{ perceptionList[Percept1D5] }

// PerceptionList2D carries Percept2D values.
type PerceptionList2D struct{ perceptionList[Percept2D] }

// PerceptionList3D carries Percept3D values.
type PerceptionList3D struct{ perceptionList[Percept3D] }

func (*PerceptionList1D) Dimension() model.Dimension  { return model.Dimension1D }
func (*PerceptionList1D5) Dimension() model.Dimension { return model.Dimension1D5 }
func (*PerceptionList2D) Dimension() model.Dimension  { return model.Dimension2D }
func (*PerceptionList3D) Dimension() model.Dimension  { return model.Dimension3D }

func project1D(r CullingResult1D5) Percept1D {
	return Percept1D{CullingResult1D5: r, Position: r.Entity.Base().Position1D()}
}

func project1D5(r CullingResult1D5) Percept1D5 {
	return Percept1D5{CullingResult1D5: r, Position: r.Entity.Base().Position1D5()}
}

func project2D(r CullingResult1D5) Percept2D {
	b := r.Entity.Base()
	return Percept2D{CullingResult1D5: r, Position: b.Position2D(), Bound: b.Bounds2D()}
}

func project3D(r CullingResult1D5) Percept3D {
	return Percept3D{CullingResult1D5: r, Position: r.Entity.Base().Position3D()}
}

// PerceptionsOf extracts typed percepts from a list. It fails with
// ErrUnsupportedPerceptionType when P does not match the list variant.
func PerceptionsOf[P any](l PerceptionList) (Perceptions[P], error) {
	if l == nil {
		return Perceptions[P]{}, ErrEntityNotFound
	}
	p, ok := l.view().(Perceptions[P])
	if !ok {
		var zero P
		return Perceptions[P]{}, fmt.Errorf("%w: %T requested from a %s list", ErrUnsupportedPerceptionType, zero, l.Dimension())
	}
	return p, nil
}
