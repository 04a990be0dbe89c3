package core

import (
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/roadsim/model"
	"github.com/signalsfoundry/roadsim/roadnet"
)

// PositionListener is told about every position change of a mobile entity.
type PositionListener func(seg *roadnet.Segment, entry *roadnet.Connection, curviline, jutting float64)

// InvalidTransformHandler is invoked when a transform is rejected.
type InvalidTransformHandler func(m *MobileEntity1D5, t Transform1D5, err error)

// MobileEntity1D5 is an entity that travels along the road network. Its
// direction of travel is given by the connection it entered its current
// segment through.
type MobileEntity1D5 struct {
	Entity1D5

	place              PlaceHandle
	roadEntry          *roadnet.Connection
	linearVelocity     mgl64.Vec2
	linearAcceleration float64

	integrator MotionIntegrator
	onInvalid  InvalidTransformHandler
	listeners  []PositionListener
}

// NewMobileEntity1D5 builds a mobile entity entering the bounds segment
// through entry. An entry that is not an endpoint of the segment is
// replaced by the segment begin connection.
func NewMobileEntity1D5(bounds model.Bounds1D5, entry *roadnet.Connection, opts ...EntityOption) *MobileEntity1D5 {
	m := &MobileEntity1D5{}
	m.init(bounds, opts)
	if seg := m.RoadSegment(); seg != nil && !seg.HasEndpoint(entry) {
		entry = seg.BeginPoint()
	}
	m.roadEntry = entry
	m.DeclareCapabilities(m)
	return m
}

// Mobile returns m.
func (m *MobileEntity1D5) Mobile() *MobileEntity1D5 { return m }

// Place returns the handle of the owning place.
func (m *MobileEntity1D5) Place() PlaceHandle { return m.place }

// SetPlace attaches the entity to a place. The handle does not keep the
// place alive.
func (m *MobileEntity1D5) SetPlace(h PlaceHandle) { m.place = h }

// SetMotionIntegrator replaces the strategy used to derive velocity from
// transforms. A nil integrator restores the finite-difference default.
func (m *MobileEntity1D5) SetMotionIntegrator(mi MotionIntegrator) { m.integrator = mi }

// SetInvalidTransformHandler replaces the handler run on rejected
// transforms. A nil handler restores the default, which zeroes the
// kinetic state.
func (m *MobileEntity1D5) SetInvalidTransformHandler(h InvalidTransformHandler) { m.onInvalid = h }

// AddPositionListener registers l for position changes.
func (m *MobileEntity1D5) AddPositionListener(l PositionListener) {
	if l != nil {
		m.listeners = append(m.listeners, l)
	}
}

// RoadEntry is the connection the entity entered its segment through.
func (m *MobileEntity1D5) RoadEntry() *roadnet.Connection { return m.roadEntry }

// RoadExit is the connection the entity is heading to.
func (m *MobileEntity1D5) RoadExit() *roadnet.Connection {
	seg := m.RoadSegment()
	if seg == nil || m.roadEntry == nil {
		return nil
	}
	return seg.OtherSidePoint(m.roadEntry)
}

// DirectionOnRoad derives the direction of travel from the entry point.
func (m *MobileEntity1D5) DirectionOnRoad() model.Direction1D {
	return model.DirectionOf(m.RoadSegment(), m.roadEntry)
}

func (m *MobileEntity1D5) clamp(curviline float64) float64 {
	seg := m.RoadSegment()
	if seg == nil {
		return curviline
	}
	return model.Clamp(curviline, seg.Length())
}

// SetTranslation teleports the entity on its current segment. The kinetic
// state is reset.
func (m *MobileEntity1D5) SetTranslation(curviline, jutting float64) {
	m.setTranslation(curviline, jutting, true)
}

// SetTranslationAt teleports the entity on seg, entered through entry. A
// registered entity is re-indexed at the next commit.
func (m *MobileEntity1D5) SetTranslationAt(seg *roadnet.Segment, entry *roadnet.Connection, curviline, jutting float64) error {
	if err := m.setRoadSegment(seg, entry); err != nil {
		return err
	}
	m.setTranslation(curviline, jutting, true)
	return nil
}

// SetIdentityTransform moves the entity to the origin of its segment.
func (m *MobileEntity1D5) SetIdentityTransform() {
	m.setTranslation(0, 0, true)
}

// SetRoadSegment moves the entity to seg, entered through entry, keeping
// its curviline coordinate as far as the new segment allows.
func (m *MobileEntity1D5) SetRoadSegment(seg *roadnet.Segment, entry *roadnet.Connection) error {
	if err := m.setRoadSegment(seg, entry); err != nil {
		return err
	}
	m.setTranslation(m.bounds.CenterX(), m.bounds.Jutting(), false)
	return nil
}

func (m *MobileEntity1D5) setRoadSegment(seg *roadnet.Segment, entry *roadnet.Connection) error {
	if seg == nil {
		return fmt.Errorf("%w: no segment", ErrInvalidPath)
	}
	seg = seg.Canonical()
	if !seg.HasEndpoint(entry) {
		return fmt.Errorf("%w: connection %s is not an endpoint of segment %s", ErrInvalidPath, entry, seg)
	}
	m.roadEntry = entry
	m.bounds.SetSegment(seg)
	return nil
}

// SetTransform teleports the entity to the first segment of t's path (if
// any) at the transform translation. A wrapping segment is replaced by the
// segment it aliases.
func (m *MobileEntity1D5) SetTransform(t Transform1D5) {
	if t.HasPath() {
		seg := t.path[0].Canonical()
		entry := m.roadEntry
		if !seg.HasEndpoint(entry) {
			entry = seg.BeginPoint()
		}
		m.roadEntry = entry
		m.bounds.SetSegment(seg)
	}
	m.setTranslation(t.curviline, t.jutting, true)
}

// TransformMatrix describes the current position as a transform from the
// origin of the current segment.
func (m *MobileEntity1D5) TransformMatrix() Transform1D5 {
	p := m.Position1D5()
	seg := m.RoadSegment()
	if seg == nil {
		return NewDirectedTransform1D5(model.BothDirections, p.Curviline, p.Jutting)
	}
	return NewDirectedTransform1D5(model.BothDirections, p.Curviline, p.Jutting, seg)
}

// Jutt shifts the entity laterally in the segment frame.
func (m *MobileEntity1D5) Jutt(dJutting float64) {
	m.bounds.SetJutting(m.bounds.Jutting() + dJutting)
	m.notify(m.bounds.CenterX(), m.bounds.Jutting())
}

// SetJutting sets the lateral offset in the segment frame.
func (m *MobileEntity1D5) SetJutting(jutting float64) {
	m.bounds.SetJutting(jutting)
	m.notify(m.bounds.CenterX(), m.bounds.Jutting())
}

func (m *MobileEntity1D5) setTranslation(curviline, jutting float64, resetKinetics bool) {
	clamped := m.clamp(curviline)
	half := m.bounds.SizeX() / 2
	m.bounds.Set(clamped-half, clamped+half)
	m.bounds.SetJutting(jutting)
	if resetKinetics {
		m.linearVelocity = mgl64.Vec2{}
		m.linearAcceleration = 0
	}
	m.notify(clamped, jutting)
}

func (m *MobileEntity1D5) notify(curviline, jutting float64) {
	seg := m.RoadSegment()
	for _, l := range m.listeners {
		l(seg, m.roadEntry, curviline, jutting)
	}
}

// Translate moves the entity along its current segment in its direction
// of travel.
func (m *MobileEntity1D5) Translate(dCurviline, dJutting float64) error {
	return m.Transform(NewTransform1D5(dCurviline, dJutting))
}

// TranslatePath moves the entity along path, which starts with the
// current segment.
func (m *MobileEntity1D5) TranslatePath(path []*roadnet.Segment, dCurviline, dJutting float64) error {
	return m.Transform(NewTransform1D5(dCurviline, dJutting, path...))
}

// Transform applies t. Direction mismatches and unresolvable paths are
// reported as ErrInvalidPath after the invalid-transform handler ran; the
// entity does not move. A NaN result is reported as ErrInvariantViolation.
func (m *MobileEntity1D5) Transform(t Transform1D5) error {
	seg, entry, res, err := m.resolve(t)
	if err != nil {
		m.invalidTransform(t, err)
		return err
	}
	if math.IsNaN(res.Curviline) || math.IsNaN(res.Jutting) {
		return fmt.Errorf("%w: NaN position for entity %s after %s (was %s, entry %s)",
			ErrInvariantViolation, m.id, t, m.Position1D5(), m.roadEntry)
	}

	m.updateLinearSpeed(res.Motion.X(), res.Motion.Y())

	m.roadEntry = entry
	m.bounds.SetSegment(seg)
	m.setTranslation(res.Curviline, res.Jutting, false)
	return nil
}

func (m *MobileEntity1D5) resolve(t Transform1D5) (*roadnet.Segment, *roadnet.Connection, TransformResult, error) {
	current := m.RoadSegment()
	if current == nil || m.roadEntry == nil {
		return nil, nil, TransformResult{}, fmt.Errorf("%w: entity %s is not located on a segment", ErrInvalidPath, m.id)
	}
	dir := m.DirectionOnRoad()
	if !dir.Accepts(t.direction) {
		return nil, nil, TransformResult{}, fmt.Errorf(
			"%w: the entity travels in %s direction but the path starts in %s direction", ErrInvalidPath, dir, t.direction)
	}

	res := t.Apply(current, m.bounds.CenterX(), m.bounds.Jutting(), dir)
	if res.Index < 0 {
		return nil, nil, res, fmt.Errorf("%w: the entity is not located on the first segment of the path", ErrInvalidPath)
	}

	entry := m.roadEntry
	for i := 0; i < res.Index; i++ {
		entry = t.path[i].OtherSidePoint(entry)
		if entry == nil {
			return nil, nil, res, ErrPathEntryUnresolved
		}
	}

	seg := res.Segment.Canonical()
	if !seg.HasEndpoint(entry) {
		return nil, nil, res, fmt.Errorf("%w: %s is not an endpoint of %s", ErrPathEntryUnresolved, entry, seg)
	}
	return seg, entry, res, nil
}

func (m *MobileEntity1D5) invalidTransform(t Transform1D5, err error) {
	if m.onInvalid != nil {
		m.onInvalid(m, t, err)
		return
	}
	m.linearVelocity = mgl64.Vec2{}
	m.linearAcceleration = 0
}

func (m *MobileEntity1D5) updateLinearSpeed(dx, dy float64) {
	clock, ok := m.place.Clock()
	if !ok {
		m.linearVelocity = mgl64.Vec2{}
		m.linearAcceleration = 0
		return
	}
	integrator := m.integrator
	if integrator == nil {
		integrator = FiniteDifferenceIntegrator{}
	}
	dt := clock.SimulationStepDuration(time.Second)
	m.linearVelocity, m.linearAcceleration = integrator.Integrate(dx, dy, dt, m.LinearSpeed())
}

// TurnBack reverses the direction of travel. It is a no-op on a segment
// whose two endpoints are the same connection.
func (m *MobileEntity1D5) TurnBack() {
	seg := m.RoadSegment()
	if seg == nil || m.roadEntry == nil {
		return
	}
	other := seg.OtherSidePoint(m.roadEntry)
	if other == nil || other == m.roadEntry {
		return
	}
	m.roadEntry = other
	m.bounds.SetJutting(-m.bounds.Jutting())
	m.linearVelocity = mgl64.Vec2{}
	m.linearAcceleration = 0
	m.notify(m.bounds.CenterX(), m.bounds.Jutting())
}

// LinearSpeed is the magnitude of the linear velocity, in m/s.
func (m *MobileEntity1D5) LinearSpeed() float64 { return m.linearVelocity.Len() }

// LinearAcceleration is in m/s².
func (m *MobileEntity1D5) LinearAcceleration() float64 { return m.linearAcceleration }

// LinearVelocity1D5 is the velocity in the travel frame (curviline,
// lateral).
func (m *MobileEntity1D5) LinearVelocity1D5() mgl64.Vec2 { return m.linearVelocity }

// LinearVelocity1D is the curviline component of the velocity.
func (m *MobileEntity1D5) LinearVelocity1D() float64 { return m.linearVelocity.X() }

// LinearVelocity2D projects the velocity on the segment geometry.
func (m *MobileEntity1D5) LinearVelocity2D() mgl64.Vec2 {
	seg := m.RoadSegment()
	speed := m.LinearSpeed()
	if seg == nil || speed == 0 {
		return mgl64.Vec2{}
	}
	sign := 1.0
	if m.DirectionOnRoad() == model.RevertedDirection {
		sign = -1
	}
	_, tangent := seg.GeoLocation(m.bounds.CenterX(), m.bounds.Jutting())
	along := mgl64.Vec2{tangent[0], tangent[1]}
	left := mgl64.Vec2{-tangent[1], tangent[0]}
	dir := along.Mul(sign * m.linearVelocity.X()).Add(left.Mul(sign * m.linearVelocity.Y()))
	if dir.Len() == 0 {
		return dir
	}
	return dir.Normalize().Mul(speed)
}

// LinearVelocity3D is LinearVelocity2D on the ground plane.
func (m *MobileEntity1D5) LinearVelocity3D() mgl64.Vec3 {
	v := m.LinearVelocity2D()
	return mgl64.Vec3{v.X(), v.Y(), 0}
}

func (m *MobileEntity1D5) String() string {
	return fmt.Sprintf("%s entry=%s v=%.3f", m.Entity1D5.String(), m.roadEntry, m.LinearSpeed())
}
