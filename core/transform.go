package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/roadsim/model"
	"github.com/signalsfoundry/roadsim/roadnet"
)

// Transform1D5 is a move expressed in the frame of the direction of
// travel: a curviline delta along an optional path of segments and a
// lateral delta (positive to the left). The path starts with the segment
// the entity is currently on.
type Transform1D5 struct {
	path      []*roadnet.Segment
	direction model.Direction1D
	curviline float64
	jutting   float64
}

// IdentityTransform moves nothing.
func IdentityTransform() Transform1D5 {
	return Transform1D5{direction: model.BothDirections}
}

// NewTransform1D5 builds a transform and detects the direction in which
// the first segment of path is travelled.
func NewTransform1D5(dCurviline, dJutting float64, path ...*roadnet.Segment) Transform1D5 {
	return NewDirectedTransform1D5(detectFirstSegmentDirection(path), dCurviline, dJutting, path...)
}

// NewDirectedTransform1D5 builds a transform with an explicit first-segment
// direction.
func NewDirectedTransform1D5(dir model.Direction1D, dCurviline, dJutting float64, path ...*roadnet.Segment) Transform1D5 {
	t := Transform1D5{direction: dir, curviline: dCurviline, jutting: dJutting}
	if len(path) > 0 {
		t.path = append([]*roadnet.Segment(nil), path...)
	}
	return t
}

func (t Transform1D5) HasPath() bool { return len(t.path) > 0 }

// Path returns a copy of the segments the transform walks through.
func (t Transform1D5) Path() []*roadnet.Segment { return append([]*roadnet.Segment(nil), t.path...) }

// FirstSegmentDirection is the direction the path requires on its first
// segment. BothDirections accepts an entity travelling either way.
func (t Transform1D5) FirstSegmentDirection() model.Direction1D { return t.direction }

func (t Transform1D5) Curviline() float64 { return t.curviline }
func (t Transform1D5) Jutting() float64   { return t.jutting }

// Translation is the (curviline, jutting) delta.
func (t Transform1D5) Translation() mgl64.Vec2 { return mgl64.Vec2{t.curviline, t.jutting} }

// Translate accumulates another delta on the same path.
func (t Transform1D5) Translate(dCurviline, dJutting float64) Transform1D5 {
	t.curviline += dCurviline
	t.jutting += dJutting
	t.path = append([]*roadnet.Segment(nil), t.path...)
	return t
}

func (t Transform1D5) String() string {
	return fmt.Sprintf("transform(%g, %g, dir=%s, path=%v)", t.curviline, t.jutting, t.direction, t.path)
}

// TransformResult is the outcome of applying a transform to a position.
// Index is the position in the path of the destination segment; a
// negative Index means the position was not on the first path segment.
type TransformResult struct {
	Segment   *roadnet.Segment
	Curviline float64
	Jutting   float64
	Index     int
	Motion    mgl64.Vec2
}

// detectFirstSegmentDirection finds the first pair of distinct consecutive
// segments; a repeated segment is a U-turn and flips the parity.
func detectFirstSegmentDirection(path []*roadnet.Segment) model.Direction1D {
	if len(path) < 2 {
		return model.BothDirections
	}
	i := 1
	s1, s2 := path[0], path[1]
	for s1 == s2 && i < len(path)-1 {
		i++
		s1, s2 = s2, path[i]
	}
	if s1 == s2 {
		return model.BothDirections
	}
	sgDir := s1.IsLastPointConnectedTo(s2)
	if i%2 == 0 {
		sgDir = !sgDir
	}
	if sgDir {
		return model.SegmentDirection
	}
	return model.RevertedDirection
}

// Apply moves the position (seg, curviline, jutting) of something
// travelling in direction travel. A transform without a path, or without
// a known first-segment direction, uses travel.
func (t Transform1D5) Apply(seg *roadnet.Segment, curviline, jutting float64, travel model.Direction1D) TransformResult {
	dir := t.direction
	if dir == model.BothDirections || dir == model.NoDirection {
		if travel == model.SegmentDirection || travel == model.RevertedDirection {
			dir = travel
		} else {
			dir = model.BothDirections
		}
	}

	res := TransformResult{
		Segment: seg,
		Motion:  mgl64.Vec2{t.curviline, t.jutting},
	}
	if dir.IsSegmentDirection() {
		jutting += t.jutting
	} else {
		jutting -= t.jutting
	}

	invertJutting := false
	switch {
	case seg == nil:
		curviline += t.curviline
		res.Index = -1

	case !t.HasPath():
		curviline = moveAlong(curviline, t.curviline, dir)

	case t.path[0] != seg:
		curviline += t.curviline
		res.Index = -1

	case t.curviline > 0 && len(t.path) > 1:
		res.Segment, curviline, invertJutting, res.Index = t.walk(seg, curviline, dir)

	default:
		curviline = moveAlong(curviline, t.curviline, dir)
	}

	if invertJutting {
		jutting = -jutting
	}
	res.Curviline = curviline
	res.Jutting = jutting
	return res
}

func moveAlong(curviline, delta float64, dir model.Direction1D) float64 {
	if dir.IsSegmentDirection() {
		return curviline + delta
	}
	return curviline - delta
}

// walk consumes the curviline delta segment by segment along the path. The
// jutting side flips whenever two consecutive segments are joined
// begin-to-begin or end-to-end.
func (t Transform1D5) walk(current *roadnet.Segment, curviline float64, dir model.Direction1D) (*roadnet.Segment, float64, bool, int) {
	idx := 1
	var previous *roadnet.Segment
	next := t.segmentAt(idx)
	sameSegment := next != nil && current == next
	rest := t.curviline
	invertJutting := false

	var firstLastOrder bool
	if sameSegment {
		firstLastOrder = dir.IsSegmentDirection()
	} else {
		firstLastOrder = current.IsLastPointConnectedTo(next)
	}

	restOnCurrent := curviline
	if firstLastOrder {
		restOnCurrent = current.Length() - curviline
	}

	var byFirst, byLast bool
	switch {
	case next == nil:
	case sameSegment:
		byFirst, byLast = true, true
	default:
		byFirst = current.IsFirstPointConnectedTo(next)
		byLast = current.IsLastPointConnectedTo(next)
	}

	for next != nil && rest > restOnCurrent {
		rest -= restOnCurrent

		var byFirst2, byLast2 bool
		if sameSegment {
			byFirst2, byLast2 = true, true
		} else {
			byFirst2 = next.IsFirstPointConnectedTo(current)
			byLast2 = next.IsLastPointConnectedTo(current)
		}
		if (byFirst && byFirst2) || (byLast && byLast2) {
			invertJutting = !invertJutting
		}

		idx++
		previous = current
		previousSameSegment := sameSegment
		current = next

		next = t.segmentAt(idx)
		if next != nil {
			byFirst2 = current.IsFirstPointConnectedTo(next)
			byLast2 = current.IsLastPointConnectedTo(next)
			if !byFirst2 && !byLast2 {
				next = nil
			}
		}
		restOnCurrent = current.Length()
		byFirst, byLast = byFirst2, byLast2

		sameSegment = next != nil && current == next
		switch {
		case sameSegment:
			firstLastOrder = !firstLastOrder
		case next != nil:
			firstLastOrder = current.IsLastPointConnectedTo(next)
		case previous != nil:
			if previousSameSegment {
				firstLastOrder = !firstLastOrder
			} else {
				firstLastOrder = current.IsFirstPointConnectedTo(previous)
			}
		}
	}

	switch {
	case idx == 1 && firstLastOrder:
		curviline += rest
	case idx == 1:
		curviline -= rest
	case firstLastOrder:
		curviline = rest
	default:
		curviline = current.Length() - rest
	}
	return current, curviline, invertJutting, idx - 1
}

func (t Transform1D5) segmentAt(i int) *roadnet.Segment {
	if i < len(t.path) {
		return t.path[i]
	}
	return nil
}
