package model

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/roadsim/roadnet"
)

// Point1D is a position along a road segment. The segment is referenced by
// ID so that a point never keeps a segment alive.
type Point1D struct {
	Segment   roadnet.SegmentID
	Curviline float64
}

// Compare orders two points on the same segment. ok is false when the
// points lie on different segments.
func (p Point1D) Compare(o Point1D) (cmp int, ok bool) {
	if p.Segment != o.Segment {
		return 0, false
	}
	switch {
	case p.Curviline < o.Curviline:
		return -1, true
	case p.Curviline > o.Curviline:
		return 1, true
	default:
		return 0, true
	}
}

func (p Point1D) String() string {
	return fmt.Sprintf("%s@%g", p.Segment, p.Curviline)
}

// Point1D5 is a position along a road segment plus a signed lateral offset
// from the segment centerline. Positive jutting is on the left of the
// begin-to-end direction.
type Point1D5 struct {
	Segment   roadnet.SegmentID
	Curviline float64
	Jutting   float64
}

// Point1D drops the lateral component.
func (p Point1D5) Point1D() Point1D {
	return Point1D{Segment: p.Segment, Curviline: p.Curviline}
}

// Compare orders two points on the same segment by curviline then jutting.
func (p Point1D5) Compare(o Point1D5) (cmp int, ok bool) {
	cmp, ok = p.Point1D().Compare(o.Point1D())
	if !ok || cmp != 0 {
		return cmp, ok
	}
	switch {
	case p.Jutting < o.Jutting:
		return -1, true
	case p.Jutting > o.Jutting:
		return 1, true
	default:
		return 0, true
	}
}

// IsNaN reports whether either coordinate is NaN.
func (p Point1D5) IsNaN() bool {
	return math.IsNaN(p.Curviline) || math.IsNaN(p.Jutting)
}

func (p Point1D5) String() string {
	return fmt.Sprintf("%s@%g/%g", p.Segment, p.Curviline, p.Jutting)
}

// Clamp bounds curviline into [0, length].
func Clamp(curviline, length float64) float64 {
	if length < 0 {
		length = 0
	}
	return math.Max(0, math.Min(curviline, length))
}
