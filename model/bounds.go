package model

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/paulmach/orb"

	"github.com/signalsfoundry/roadsim/roadnet"
)

// Bounds1D5 is an extent on a road segment: a curviline interval
// [MinX, MaxX] plus a lateral band centred on Jutting and LateralSize wide.
type Bounds1D5 interface {
	Segment() *roadnet.Segment
	SetSegment(seg *roadnet.Segment)

	MinX() float64
	MaxX() float64
	SizeX() float64
	CenterX() float64
	Jutting() float64
	LateralSize() float64
	MinJutting() float64
	MaxJutting() float64

	// Set replaces the curviline interval; the arguments may be given in
	// any order.
	Set(minX, maxX float64)
	SetJutting(jutting float64)
	SetLateralSize(size float64)
	Translate(dx float64)
	// Clamp shifts the interval inside [0, segment length] without
	// changing its size. An interval longer than the segment is centred
	// on it.
	Clamp()
	Combine(other Bounds1D5)
	IsEmpty() bool

	Lower() Point1D5
	Upper() Point1D5
	Center() Point1D5
	Bound2D() orb.Bound
	Clone() Bounds1D5
}

// BoundingRect1D5 is the rectangular Bounds1D5 used by road entities.
type BoundingRect1D5 struct {
	segment     *roadnet.Segment
	minX, maxX  float64
	jutting     float64
	lateralSize float64
}

// NewBoundingRect1D5 builds a rectangle on seg.
func NewBoundingRect1D5(seg *roadnet.Segment, minX, maxX, jutting, lateralSize float64) *BoundingRect1D5 {
	b := &BoundingRect1D5{segment: seg}
	b.Set(minX, maxX)
	b.jutting = jutting
	b.lateralSize = math.Abs(lateralSize)
	return b
}

func (b *BoundingRect1D5) Segment() *roadnet.Segment       { return b.segment }
func (b *BoundingRect1D5) SetSegment(seg *roadnet.Segment) { b.segment = seg }
func (b *BoundingRect1D5) MinX() float64                   { return b.minX }
func (b *BoundingRect1D5) MaxX() float64                   { return b.maxX }
func (b *BoundingRect1D5) SizeX() float64                  { return b.maxX - b.minX }
func (b *BoundingRect1D5) CenterX() float64                { return (b.minX + b.maxX) / 2 }
func (b *BoundingRect1D5) Jutting() float64                { return b.jutting }
func (b *BoundingRect1D5) LateralSize() float64            { return b.lateralSize }
func (b *BoundingRect1D5) MinJutting() float64             { return b.jutting - b.lateralSize/2 }
func (b *BoundingRect1D5) MaxJutting() float64             { return b.jutting + b.lateralSize/2 }
func (b *BoundingRect1D5) SetJutting(jutting float64)      { b.jutting = jutting }
func (b *BoundingRect1D5) SetLateralSize(size float64)     { b.lateralSize = math.Abs(size) }
func (b *BoundingRect1D5) IsEmpty() bool                   { return b.maxX <= b.minX && b.lateralSize <= 0 }
func (b *BoundingRect1D5) Translate(dx float64)            { b.minX += dx; b.maxX += dx }
func (b *BoundingRect1D5) Center() Point1D5                { return b.point(b.CenterX(), b.jutting) }
func (b *BoundingRect1D5) Lower() Point1D5                 { return b.point(b.minX, b.MinJutting()) }
func (b *BoundingRect1D5) Upper() Point1D5                 { return b.point(b.maxX, b.MaxJutting()) }

func (b *BoundingRect1D5) Set(minX, maxX float64) {
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	b.minX, b.maxX = minX, maxX
}

func (b *BoundingRect1D5) Clamp() {
	if b.segment == nil {
		return
	}
	length := b.segment.Length()
	switch {
	case b.SizeX() > length:
		b.Translate(length/2 - b.CenterX())
	case b.minX < 0:
		b.Translate(-b.minX)
	case b.maxX > length:
		b.Translate(length - b.maxX)
	}
}

// Combine grows b to enclose other. Bounds on another segment are ignored.
func (b *BoundingRect1D5) Combine(other Bounds1D5) {
	if other == nil || other.IsEmpty() || (b.segment != nil && other.Segment() != b.segment) {
		return
	}
	if b.IsEmpty() {
		b.segment = other.Segment()
		b.minX, b.maxX = other.MinX(), other.MaxX()
		b.jutting, b.lateralSize = other.Jutting(), other.LateralSize()
		return
	}
	lowJ := math.Min(b.MinJutting(), other.MinJutting())
	highJ := math.Max(b.MaxJutting(), other.MaxJutting())
	b.minX = math.Min(b.minX, other.MinX())
	b.maxX = math.Max(b.maxX, other.MaxX())
	b.jutting = (lowJ + highJ) / 2
	b.lateralSize = highJ - lowJ
}

// Bound2D projects the four corners of the rectangle on the segment
// geometry and returns their bounding box.
func (b *BoundingRect1D5) Bound2D() orb.Bound {
	if b.segment == nil {
		return orb.Bound{}
	}
	p, _ := b.segment.GeoLocation(b.minX, b.MinJutting())
	bound := p.Bound()
	for _, c := range [][2]float64{
		{b.minX, b.MaxJutting()},
		{b.maxX, b.MinJutting()},
		{b.maxX, b.MaxJutting()},
	} {
		p, _ = b.segment.GeoLocation(c[0], c[1])
		bound = bound.Extend(p)
	}
	return bound
}

func (b *BoundingRect1D5) Clone() Bounds1D5 {
	c := *b
	return &c
}

func (b *BoundingRect1D5) point(curviline, jutting float64) Point1D5 {
	p := Point1D5{Curviline: curviline, Jutting: jutting}
	if b.segment != nil {
		p.Segment = b.segment.ID()
	}
	return p
}

// BoundsFactory creates bounds of a concrete type.
type BoundsFactory[B Bounds1D5] interface {
	NewBounds(seg *roadnet.Segment, minX, maxX, jutting, lateralSize float64) B
}

// RectFactory creates BoundingRect1D5 values.
type RectFactory struct{}

func (RectFactory) NewBounds(seg *roadnet.Segment, minX, maxX, jutting, lateralSize float64) *BoundingRect1D5 {
	return NewBoundingRect1D5(seg, minX, maxX, jutting, lateralSize)
}

// BoundsFromPoints returns the smallest bounds on seg enclosing points.
func BoundsFromPoints[B Bounds1D5](f BoundsFactory[B], seg *roadnet.Segment, points ...Point1D5) B {
	if len(points) == 0 {
		return f.NewBounds(seg, 0, 0, 0, 0)
	}
	minX, maxX := math.Inf(1), math.Inf(-1)
	minJ, maxJ := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		minX, maxX = math.Min(minX, p.Curviline), math.Max(maxX, p.Curviline)
		minJ, maxJ = math.Min(minJ, p.Jutting), math.Max(maxJ, p.Jutting)
	}
	return f.NewBounds(seg, minX, maxX, (minJ+maxJ)/2, maxJ-minJ)
}

// BoundsFromPoints2D is BoundsFromPoints for hull points expressed as
// (curviline, jutting) vectors.
func BoundsFromPoints2D[B Bounds1D5](f BoundsFactory[B], seg *roadnet.Segment, points ...mgl64.Vec2) B {
	pts := make([]Point1D5, len(points))
	for i, v := range points {
		pts[i] = Point1D5{Curviline: v.X(), Jutting: v.Y()}
	}
	return BoundsFromPoints(f, seg, pts...)
}
