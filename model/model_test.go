package model

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/paulmach/orb"

	"github.com/signalsfoundry/roadsim/roadnet"
)

func testSegment(t *testing.T, length float64) (*roadnet.Network, *roadnet.Segment) {
	t.Helper()
	n := roadnet.NewNetwork("test")
	if _, err := n.AddConnection("a", orb.Point{0, 0}); err != nil {
		t.Fatalf("AddConnection: %v", err)
	}
	if _, err := n.AddConnection("b", orb.Point{length, 0}); err != nil {
		t.Fatalf("AddConnection: %v", err)
	}
	seg, err := n.AddSegment("ab", "a", "b")
	if err != nil {
		t.Fatalf("AddSegment: %v", err)
	}
	return n, seg
}

func TestClampIdempotent(t *testing.T) {
	for _, length := range []float64{0, 1, 10, 100} {
		for _, c := range []float64{-50, -1, 0, 0.5, 5, 10, 99, 100, 250} {
			once := Clamp(c, length)
			if once < 0 || once > length {
				t.Fatalf("Clamp(%v, %v) = %v out of range", c, length, once)
			}
			if twice := Clamp(once, length); twice != once {
				t.Fatalf("Clamp not idempotent for %v/%v: %v then %v", c, length, once, twice)
			}
		}
	}
}

func TestPointCompare(t *testing.T) {
	a := Point1D5{Segment: "s", Curviline: 1, Jutting: 0}
	b := Point1D5{Segment: "s", Curviline: 1, Jutting: 2}
	if cmp, ok := a.Compare(b); !ok || cmp != -1 {
		t.Fatalf("expected a<b, got %d ok=%v", cmp, ok)
	}
	if _, ok := a.Compare(Point1D5{Segment: "other"}); ok {
		t.Fatalf("points on different segments must not compare")
	}
	if !(Point1D5{Curviline: math.NaN()}).IsNaN() {
		t.Fatalf("expected NaN detection")
	}
}

func TestDirectionOf(t *testing.T) {
	n, seg := testSegment(t, 10)
	a, _ := n.Connection("a")
	b, _ := n.Connection("b")

	if got := DirectionOf(seg, a); got != SegmentDirection {
		t.Fatalf("entry at begin: got %v", got)
	}
	if got := DirectionOf(seg, b); got != RevertedDirection {
		t.Fatalf("entry at end: got %v", got)
	}
	if got := DirectionOf(seg, nil); got != NoDirection {
		t.Fatalf("nil entry: got %v", got)
	}
	if !BothDirections.Accepts(RevertedDirection) || SegmentDirection.Accepts(RevertedDirection) {
		t.Fatalf("unexpected Accepts results")
	}
	if SegmentDirection.Reverse() != RevertedDirection || BothDirections.Reverse() != BothDirections {
		t.Fatalf("unexpected Reverse results")
	}
}

func TestClassifyInterval(t *testing.T) {
	cases := []struct {
		name           string
		l1, u1, l2, u2 float64
		want           IntersectionType
	}{
		{"before", 0, 1, 2, 3, Outside},
		{"after", 4, 5, 2, 3, Outside},
		{"enclosing", 0, 5, 2, 3, Enclosing},
		{"inside", 2.5, 2.7, 2, 3, Inside},
		{"overlap left", 1, 2.5, 2, 3, Spanning},
		{"overlap right", 2.5, 4, 2, 3, Spanning},
		{"touching", 3, 4, 2, 3, Spanning},
		{"identical", 2, 3, 2, 3, Spanning},
	}
	for _, tc := range cases {
		if got := ClassifyInterval(tc.l1, tc.u1, tc.l2, tc.u2); got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIntersectionAlgebra(t *testing.T) {
	if got := Inside.And(Enclosing); got != Spanning {
		t.Fatalf("Inside AND Enclosing = %v", got)
	}
	if got := Inside.And(Outside); got != Outside {
		t.Fatalf("Inside AND Outside = %v", got)
	}
	if got := Same.And(Inside); got != Inside {
		t.Fatalf("Same AND Inside = %v", got)
	}
	if got := Outside.Or(Inside); got != Inside {
		t.Fatalf("Outside OR Inside = %v", got)
	}
	if got := Outside.Or(Enclosing); got != Spanning {
		t.Fatalf("Outside OR Enclosing = %v", got)
	}
	if Inside.Invert() != Enclosing || Spanning.Invert() != Spanning {
		t.Fatalf("unexpected Invert")
	}
}

func TestBoundingRectClampKeepsSize(t *testing.T) {
	_, seg := testSegment(t, 10)
	b := NewBoundingRect1D5(seg, 12, 8, 1, -2)
	if b.MinX() != 8 || b.MaxX() != 12 || b.LateralSize() != 2 {
		t.Fatalf("unexpected normalisation: %+v", b)
	}

	b.Set(14, 18)
	b.Clamp()
	if b.MinX() != 6 || b.MaxX() != 10 {
		t.Fatalf("clamp high: [%v,%v], want [6,10]", b.MinX(), b.MaxX())
	}

	b.Set(-6, -2)
	b.Clamp()
	if b.MinX() != 0 || b.MaxX() != 4 {
		t.Fatalf("clamp low: [%v,%v], want [0,4]", b.MinX(), b.MaxX())
	}

	b.Set(3, 7)
	b.Clamp()
	if b.MinX() != 3 || b.MaxX() != 7 {
		t.Fatalf("inside interval moved: [%v,%v]", b.MinX(), b.MaxX())
	}

	b.Set(-2, 14)
	b.Clamp()
	if b.MinX() != -3 || b.MaxX() != 13 || b.SizeX() != 16 {
		t.Fatalf("oversized interval: [%v,%v]", b.MinX(), b.MaxX())
	}
	if b.MinJutting() != 0 || b.MaxJutting() != 2 {
		t.Fatalf("jutting band: [%v,%v]", b.MinJutting(), b.MaxJutting())
	}
}

func TestBoundingRectCombine(t *testing.T) {
	_, seg := testSegment(t, 10)
	b := &BoundingRect1D5{}
	b.Combine(NewBoundingRect1D5(seg, 1, 2, 0, 2))
	b.Combine(NewBoundingRect1D5(seg, 4, 6, 3, 2))

	if b.MinX() != 1 || b.MaxX() != 6 {
		t.Fatalf("x interval [%v,%v]", b.MinX(), b.MaxX())
	}
	if b.MinJutting() != -1 || b.MaxJutting() != 4 {
		t.Fatalf("jutting band [%v,%v]", b.MinJutting(), b.MaxJutting())
	}
	if b.Segment() != seg {
		t.Fatalf("segment not adopted")
	}
}

func TestBoundsFromPoints(t *testing.T) {
	_, seg := testSegment(t, 10)
	b := BoundsFromPoints2D[*BoundingRect1D5](RectFactory{}, seg,
		mgl64.Vec2{2, -1}, mgl64.Vec2{5, 1}, mgl64.Vec2{3, 3})

	if b.MinX() != 2 || b.MaxX() != 5 {
		t.Fatalf("x interval [%v,%v]", b.MinX(), b.MaxX())
	}
	if b.Jutting() != 1 || b.LateralSize() != 4 {
		t.Fatalf("jutting=%v lateral=%v", b.Jutting(), b.LateralSize())
	}

	bound := b.Bound2D()
	if bound.Min != (orb.Point{2, -1}) || bound.Max != (orb.Point{5, 3}) {
		t.Fatalf("unexpected 2D bound %+v", bound)
	}

	empty := BoundsFromPoints[*BoundingRect1D5](RectFactory{}, seg)
	if !empty.IsEmpty() {
		t.Fatalf("expected empty bounds")
	}
}

func TestParseDimension(t *testing.T) {
	if d, ok := ParseDimension("2.5D"); !ok || d != Dimension2D5 {
		t.Fatalf("ParseDimension(2.5D) = %v %v", d, ok)
	}
	if d, ok := ParseDimension(""); !ok || d != Dimension1D5 {
		t.Fatalf("empty dimension should default to 1.5D, got %v", d)
	}
	if _, ok := ParseDimension("4D"); ok {
		t.Fatalf("4D should be rejected")
	}
}
