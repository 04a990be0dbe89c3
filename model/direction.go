package model

import "github.com/signalsfoundry/roadsim/roadnet"

// Direction1D is a direction of travel relative to a segment's own
// begin-to-end orientation.
type Direction1D int

const (
	SegmentDirection  Direction1D = iota // from begin to end
	RevertedDirection                    // from end to begin
	BothDirections
	NoDirection
)

// IsSegmentDirection reports whether travel from begin to end is allowed.
func (d Direction1D) IsSegmentDirection() bool {
	return d == SegmentDirection || d == BothDirections
}

// IsRevertedSegmentDirection reports whether travel from end to begin is
// allowed.
func (d Direction1D) IsRevertedSegmentDirection() bool {
	return d == RevertedDirection || d == BothDirections
}

// Reverse swaps the two single directions.
func (d Direction1D) Reverse() Direction1D {
	switch d {
	case SegmentDirection:
		return RevertedDirection
	case RevertedDirection:
		return SegmentDirection
	default:
		return d
	}
}

// Accepts reports whether an entity travelling in d may follow o.
func (d Direction1D) Accepts(o Direction1D) bool {
	switch {
	case d == NoDirection || o == NoDirection:
		return false
	case d == BothDirections || o == BothDirections:
		return true
	default:
		return d == o
	}
}

func (d Direction1D) String() string {
	switch d {
	case SegmentDirection:
		return "segment"
	case RevertedDirection:
		return "reverted"
	case BothDirections:
		return "both"
	default:
		return "none"
	}
}

// DirectionOf derives the direction of travel of something that entered
// seg through entry.
func DirectionOf(seg *roadnet.Segment, entry *roadnet.Connection) Direction1D {
	switch {
	case seg == nil || entry == nil:
		return NoDirection
	case entry == seg.BeginPoint():
		return SegmentDirection
	case entry == seg.EndPoint():
		return RevertedDirection
	default:
		return NoDirection
	}
}
