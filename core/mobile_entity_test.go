package core

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/signalsfoundry/roadsim/model"
	"github.com/signalsfoundry/roadsim/roadnet"
)

func TestTranslateAcrossConnection(t *testing.T) {
	_, segs, conns := lineNetwork(t, 10, 20)
	m := NewMobileEntity1D5(rect(segs[0], 0, 2), conns[0])

	if err := m.TranslatePath([]*roadnet.Segment{segs[0], segs[1]}, 15, 0); err != nil {
		t.Fatalf("TranslatePath: %v", err)
	}
	if m.RoadSegment() != segs[1] {
		t.Fatalf("segment = %s, want %s", m.RoadSegment(), segs[1])
	}
	if got := m.Position1D5().Curviline; !almostEqual(got, 5) {
		t.Fatalf("curviline = %v, want 5", got)
	}
	if m.RoadEntry() != conns[1] {
		t.Fatalf("entry = %s, want %s", m.RoadEntry(), conns[1])
	}
	if m.DirectionOnRoad() != model.SegmentDirection {
		t.Fatalf("direction = %s", m.DirectionOnRoad())
	}
}

func TestTranslateEndToEndInvertsJutting(t *testing.T) {
	n, segs, conns := lineNetwork(t, 10, 20)
	// s3 runs from c3 back to c2, so s2 and s3 meet end to end.
	if _, err := n.AddConnection("c3", orb.Point{60, 0}); err != nil {
		t.Fatalf("AddConnection: %v", err)
	}
	s3, err := n.AddSegment("s3", "c3", "c2")
	if err != nil {
		t.Fatalf("AddSegment: %v", err)
	}

	m := NewMobileEntity1D5(rect(segs[1], 15, 2), conns[1])
	m.SetJutting(1)
	if err := m.TranslatePath([]*roadnet.Segment{segs[1], s3}, 10, 0); err != nil {
		t.Fatalf("TranslatePath: %v", err)
	}
	p := m.Position1D5()
	if m.RoadSegment() != s3 || !almostEqual(p.Curviline, 25) || !almostEqual(p.Jutting, -1) {
		t.Fatalf("position = %s on %s, want 25/-1 on s3", p, m.RoadSegment())
	}
	if m.RoadEntry() != conns[2] {
		t.Fatalf("entry = %s, want c2", m.RoadEntry())
	}
	if m.DirectionOnRoad() != model.RevertedDirection {
		t.Fatalf("direction = %s, want reverted", m.DirectionOnRoad())
	}
}

func TestTranslateWithoutPathFollowsTravelDirection(t *testing.T) {
	_, segs, conns := lineNetwork(t, 20)

	forward := NewMobileEntity1D5(rect(segs[0], 5, 2), conns[0])
	if err := forward.Translate(3, 0); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got := forward.Position1D5().Curviline; !almostEqual(got, 8) {
		t.Fatalf("forward curviline = %v, want 8", got)
	}

	backward := NewMobileEntity1D5(rect(segs[0], 15, 2), conns[1])
	if err := backward.Translate(5, 0); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got := backward.Position1D5().Curviline; !almostEqual(got, 10) {
		t.Fatalf("backward curviline = %v, want 10", got)
	}
}

func TestTranslateClampsToSegment(t *testing.T) {
	_, segs, conns := lineNetwork(t, 20)
	m := NewMobileEntity1D5(rect(segs[0], 5, 2), conns[0])
	if err := m.Translate(1000, 0); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got := m.Position1D5().Curviline; got != 20 {
		t.Fatalf("curviline = %v, want 20", got)
	}
	if got := m.Bounds().SizeX(); !almostEqual(got, 2) {
		t.Fatalf("size = %v, want 2", got)
	}
}

func TestTransformComputesVelocityFromPlaceClock(t *testing.T) {
	_, segs, conns := lineNetwork(t, 100)
	m := NewMobileEntity1D5(rect(segs[0], 10, 2), conns[0])
	if err := m.Translate(5, 0); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if m.LinearSpeed() != 0 {
		t.Fatalf("speed without a place = %v, want 0", m.LinearSpeed())
	}

	m.SetPlace(placeWithStep(500 * time.Millisecond))
	if err := m.Translate(5, 0); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got := m.LinearSpeed(); !almostEqual(got, 10) {
		t.Fatalf("speed = %v, want 10", got)
	}
	if got := m.LinearAcceleration(); !almostEqual(got, 20) {
		t.Fatalf("acceleration = %v, want 20", got)
	}
	v := m.LinearVelocity2D()
	if !almostEqual(v.X(), 10) || !almostEqual(v.Y(), 0) {
		t.Fatalf("velocity 2D = %v, want (10, 0)", v)
	}
}

func TestDirectionMismatchZeroesKinetics(t *testing.T) {
	_, segs, conns := lineNetwork(t, 10, 20, 5)
	m := NewMobileEntity1D5(rect(segs[1], 15, 2), conns[2])
	m.SetPlace(placeWithStep(time.Second))
	if err := m.Translate(2, 0); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if m.LinearSpeed() == 0 {
		t.Fatalf("expected a non-zero speed")
	}
	before := m.Position1D5()

	// The path heads to c2 while the entity drives towards c1.
	err := m.TranslatePath([]*roadnet.Segment{segs[1], segs[2]}, 1, 0)
	if !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("err = %v, want ErrInvalidPath", err)
	}
	if m.LinearSpeed() != 0 || m.LinearAcceleration() != 0 {
		t.Fatalf("kinetics not reset: v=%v a=%v", m.LinearSpeed(), m.LinearAcceleration())
	}
	if m.Position1D5() != before {
		t.Fatalf("entity moved to %s", m.Position1D5())
	}
}

func TestTransformRejectsForeignPath(t *testing.T) {
	_, segs, conns := lineNetwork(t, 10, 20, 5)
	m := NewMobileEntity1D5(rect(segs[0], 2, 2), conns[0])
	var handled error
	m.SetInvalidTransformHandler(func(_ *MobileEntity1D5, _ Transform1D5, err error) { handled = err })

	err := m.TranslatePath([]*roadnet.Segment{segs[1], segs[2]}, 1, 0)
	if !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("err = %v, want ErrInvalidPath", err)
	}
	if !errors.Is(handled, ErrInvalidPath) {
		t.Fatalf("handler saw %v", handled)
	}
}

func TestTransformNaNIsInvariantViolation(t *testing.T) {
	_, segs, conns := lineNetwork(t, 10)
	m := NewMobileEntity1D5(rect(segs[0], 2, 2), conns[0])
	if err := m.Translate(math.NaN(), 0); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("err = %v, want ErrInvariantViolation", err)
	}
}

func TestTurnBackIsAnInvolution(t *testing.T) {
	_, segs, conns := lineNetwork(t, 10, 20)
	m := NewMobileEntity1D5(rect(segs[1], 5, 2), conns[1])
	m.SetJutting(1.5)
	m.SetPlace(placeWithStep(time.Second))
	_ = m.Translate(1, 0)

	m.TurnBack()
	if m.RoadEntry() != conns[2] || m.Position1D5().Jutting != -1.5 {
		t.Fatalf("after one turn: entry=%s jutting=%v", m.RoadEntry(), m.Position1D5().Jutting)
	}
	if m.LinearSpeed() != 0 {
		t.Fatalf("speed = %v after turn back", m.LinearSpeed())
	}
	m.TurnBack()
	if m.RoadEntry() != conns[1] || m.Position1D5().Jutting != 1.5 {
		t.Fatalf("after two turns: entry=%s jutting=%v", m.RoadEntry(), m.Position1D5().Jutting)
	}
	if m.LinearSpeed() != 0 {
		t.Fatalf("speed = %v after turn back", m.LinearSpeed())
	}
}

func TestTurnBackOnLoopIsNoop(t *testing.T) {
	n := roadnet.NewNetwork("loop")
	c, _ := n.AddConnection("c", orb.Point{0, 0})
	loop, err := n.AddSegment("loop", c.ID(), c.ID(), roadnet.WithLength(50))
	if err != nil {
		t.Fatalf("AddSegment: %v", err)
	}
	m := NewMobileEntity1D5(rect(loop, 10, 2), c)
	m.SetJutting(1)
	m.TurnBack()
	if m.RoadEntry() != c || m.Position1D5().Jutting != 1 {
		t.Fatalf("loop turn back changed state: %s", m)
	}
}

func TestDirectionConsistencyAfterTransforms(t *testing.T) {
	_, segs, conns := lineNetwork(t, 10, 10, 10)
	m := NewMobileEntity1D5(rect(segs[0], 1, 2), conns[0])
	path := []*roadnet.Segment{segs[0], segs[1], segs[2]}
	for i := 0; i < 5; i++ {
		_ = m.TranslatePath(path, 4, 0)
		seg := m.RoadSegment()
		if m.RoadEntry() != seg.BeginPoint() && m.RoadEntry() != seg.EndPoint() {
			t.Fatalf("entry %s not on %s", m.RoadEntry(), seg)
		}
		if m.DirectionOnRoad() == model.NoDirection {
			t.Fatalf("no direction on %s", seg)
		}
		path = path[indexOf(path, seg):]
	}
}

func indexOf(path []*roadnet.Segment, s *roadnet.Segment) int {
	for i, p := range path {
		if p == s {
			return i
		}
	}
	return 0
}

func TestPositionListenersFollowEntity(t *testing.T) {
	_, segs, conns := lineNetwork(t, 10, 20)
	f := NewFrustum1D5(30, 5)
	body := NewBody1D5(rect(segs[0], 2, 2), conns[0], nil, WithFrustums(f))

	if err := body.TranslatePath([]*roadnet.Segment{segs[0], segs[1]}, 12, 0); err != nil {
		t.Fatalf("TranslatePath: %v", err)
	}
	if f.RoadSegment() != segs[1] || f.RoadEntry() != conns[1] {
		t.Fatalf("frustum on %s via %s", f.RoadSegment(), f.RoadEntry())
	}
	if got := f.EyePosition().Curviline; !almostEqual(got, 4) {
		t.Fatalf("eye = %v, want 4", got)
	}
	if f.HeadingPoint() != conns[2] {
		t.Fatalf("heading = %s, want c2", f.HeadingPoint())
	}
	body.TurnBack()
	if f.RoadEntry() != conns[2] {
		t.Fatalf("frustum did not turn back")
	}
}

func TestCapabilities(t *testing.T) {
	_, segs, conns := lineNetwork(t, 10)
	m := NewMobileEntity1D5(rect(segs[0], 2, 2), conns[0])
	if !m.IsKinematic() {
		t.Fatalf("mobile entity should be kinematic")
	}
	if _, err := m.ToKinematic(); err != nil {
		t.Fatalf("ToKinematic: %v", err)
	}
	if _, err := m.ToSteering(); !errors.Is(err, ErrCapabilityAbsent) {
		t.Fatalf("ToSteering err = %v, want ErrCapabilityAbsent", err)
	}

	p := newProp(rect(segs[0], 5, 1))
	if p.IsKinematic() {
		t.Fatalf("prop should not be kinematic")
	}
	if _, err := p.ToInfluencable(); err != nil {
		t.Fatalf("ToInfluencable: %v", err)
	}
}

func TestSetTranslationAtValidatesEntry(t *testing.T) {
	_, segs, conns := lineNetwork(t, 10, 20)
	m := NewMobileEntity1D5(rect(segs[0], 2, 2), conns[0])
	if err := m.SetTranslationAt(segs[1], conns[0], 3, 0); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("err = %v, want ErrInvalidPath", err)
	}
	if err := m.SetTranslationAt(segs[1], conns[2], 3, 0.5); err != nil {
		t.Fatalf("SetTranslationAt: %v", err)
	}
	if m.RoadSegment() != segs[1] || m.DirectionOnRoad() != model.RevertedDirection {
		t.Fatalf("unexpected placement %s", m)
	}
}

func TestTeleportOntoWrappingSegment(t *testing.T) {
	_, segs, conns, alias := wrappedNetwork(t)
	m := NewMobileEntity1D5(rect(segs[0], 2, 2), conns[0])
	if err := m.SetTranslationAt(alias, conns[2], 5, 0); err != nil {
		t.Fatalf("SetTranslationAt: %v", err)
	}
	if m.RoadSegment() != segs[1] || m.DirectionOnRoad() != model.RevertedDirection {
		t.Fatalf("unexpected placement %s", m)
	}
}

func TestLateralMovesUpdateFrustum(t *testing.T) {
	_, segs, conns := lineNetwork(t, 10)
	f := NewFrustum1D5(30, 5)
	body := NewBody1D5(rect(segs[0], 2, 2), conns[0], nil, WithFrustums(f))

	body.Jutt(1.5)
	if got := f.EyePosition().Jutting; !almostEqual(got, 1.5) {
		t.Fatalf("eye jutting after Jutt = %v, want 1.5", got)
	}
	body.SetJutting(-0.5)
	if got := f.EyePosition().Jutting; !almostEqual(got, -0.5) {
		t.Fatalf("eye jutting after SetJutting = %v, want -0.5", got)
	}
	if got := f.EyePosition().Curviline; !almostEqual(got, 2) {
		t.Fatalf("eye curviline = %v, want 2", got)
	}
}
