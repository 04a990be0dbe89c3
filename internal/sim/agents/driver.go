package agents

import (
	"context"
	"math"

	"github.com/google/uuid"

	"github.com/signalsfoundry/roadsim/core"
	"github.com/signalsfoundry/roadsim/model"
	"github.com/signalsfoundry/roadsim/roadnet"
)

// ObstacleSemantic marks static entities that block the lane.
const ObstacleSemantic model.Semantic = "obstacle"

const maxPathLength = 32

// Driver turns the perceptions of one agent into the action it submits
// for the current tick. ok is false when the agent does not act.
type Driver interface {
	AgentID() uuid.UUID
	Decide(ctx context.Context, w *core.WorldModelManager1D5, dt float64) (action core.EnvironmentalAction1D5, ok bool, err error)
}

// RouteChooser picks the segment taken when leaving from through exit.
// Returning nil makes the vehicle turn back on from.
type RouteChooser func(from *roadnet.Segment, exit *roadnet.Connection) *roadnet.Segment

// FirstExit takes the first other segment attached to exit.
func FirstExit(from *roadnet.Segment, exit *roadnet.Connection) *roadnet.Segment {
	for _, s := range exit.Segments() {
		if s != from {
			return s
		}
	}
	return nil
}

// CruiseDriver drives a Vehicle at its maximum speed while keeping enough
// room to stop behind the nearest vehicle ahead travelling the same way,
// or behind an obstacle.
type CruiseDriver struct {
	vehicle *Vehicle
	minGap  float64
	choose  RouteChooser
}

// CruiseOption customises a CruiseDriver.
type CruiseOption func(*CruiseDriver)

// WithMinimumGap sets the bumper-to-bumper distance kept when stopped.
func WithMinimumGap(gap float64) CruiseOption {
	return func(d *CruiseDriver) {
		if gap >= 0 {
			d.minGap = gap
		}
	}
}

// WithRouteChooser replaces FirstExit.
func WithRouteChooser(c RouteChooser) CruiseOption {
	return func(d *CruiseDriver) {
		if c != nil {
			d.choose = c
		}
	}
}

// NewCruiseDriver builds a driver for v.
func NewCruiseDriver(v *Vehicle, opts ...CruiseOption) *CruiseDriver {
	d := &CruiseDriver{vehicle: v, minGap: 2, choose: FirstExit}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// AgentID implements Driver.
func (d *CruiseDriver) AgentID() uuid.UUID { return d.vehicle.ID() }

// Vehicle returns the driven vehicle.
func (d *CruiseDriver) Vehicle() *Vehicle { return d.vehicle }

// Decide implements Driver. The target speed is the highest one from
// which the vehicle can still brake before the free gap ahead runs out.
func (d *CruiseDriver) Decide(_ context.Context, w *core.WorldModelManager1D5, dt float64) (core.EnvironmentalAction1D5, bool, error) {
	if dt <= 0 || d.vehicle.RoadSegment() == nil {
		return core.EnvironmentalAction1D5{}, false, nil
	}
	spec := d.vehicle.Spec()
	speed := d.vehicle.LinearSpeed()

	target := spec.MaxSpeed
	gap, blocked := d.gapAhead(w)
	free := math.Max(0, gap-d.minGap)
	if blocked {
		target = math.Min(target, math.Sqrt(2*spec.MaxDeceleration*free))
	}

	var next float64
	if target >= speed {
		next = math.Min(target, speed+spec.MaxAcceleration*dt)
	} else {
		next = math.Max(target, speed-spec.MaxDeceleration*dt)
	}
	dist := (speed + next) / 2 * dt
	if blocked {
		dist = math.Min(dist, free)
	}

	t := core.NewTransform1D5(dist, 0, d.Plan(dist)...)
	return core.NewEnvironmentalAction1D5(d.vehicle.ID(), t), true, nil
}

// gapAhead returns the bumper-to-bumper distance to the closest blocking
// entity in front of the vehicle.
func (d *CruiseDriver) gapAhead(w *core.WorldModelManager1D5) (float64, bool) {
	list, ok := w.PerceptionList(d.vehicle.ID())
	if !ok {
		return 0, false
	}
	static, dynamic := list.Results()
	half := d.vehicle.Bounds().SizeX() / 2

	best, found := math.Inf(1), false
	consider := func(r core.CullingResult1D5) {
		if !r.InFront {
			return
		}
		if gap := math.Max(0, r.Distance-half); gap < best {
			best, found = gap, true
		}
	}
	for _, r := range dynamic {
		if r.SameDirection {
			consider(r)
		}
	}
	for _, r := range static {
		if r.Entity.Base().Type() == ObstacleSemantic {
			consider(r)
		}
	}
	return best, found
}

// Plan returns the path covering dist from the vehicle position. The path
// starts with the current segment; a dead end becomes a U-turn.
func (d *CruiseDriver) Plan(dist float64) []*roadnet.Segment {
	current := d.vehicle.RoadSegment()
	entry := d.vehicle.RoadEntry()
	if current == nil || entry == nil {
		return nil
	}
	path := []*roadnet.Segment{current}

	covered := d.vehicle.Bounds().CenterX()
	if entry == current.BeginPoint() {
		covered = current.Length() - covered
	}
	exit := current.OtherSidePoint(entry)
	for covered < dist && exit != nil && len(path) < maxPathLength {
		next := d.choose(current, exit)
		if next == nil {
			next = current
		}
		path = append(path, next)
		covered += next.Length()
		exit = next.OtherSidePoint(exit)
		current = next
	}
	return path
}
