package core

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/signalsfoundry/roadsim/model"
	"github.com/signalsfoundry/roadsim/roadnet"
)

const eps = 1e-9

func almostEqual(a, b float64) bool { return math.Abs(a-b) < eps }

// lineNetwork builds c0 - s1 - c1 - s2 - c2 ... along the x axis, each
// segment declared from the lower to the higher connection.
func lineNetwork(t *testing.T, lengths ...float64) (*roadnet.Network, []*roadnet.Segment, []*roadnet.Connection) {
	t.Helper()
	n := roadnet.NewNetwork("test")
	x := 0.0
	c, err := n.AddConnection("c0", orb.Point{x, 0})
	if err != nil {
		t.Fatalf("AddConnection: %v", err)
	}
	conns := []*roadnet.Connection{c}
	var segs []*roadnet.Segment
	for i, l := range lengths {
		x += l
		c, err := n.AddConnection(roadnet.ConnectionID(fmt.Sprintf("c%d", i+1)), orb.Point{x, 0})
		if err != nil {
			t.Fatalf("AddConnection: %v", err)
		}
		conns = append(conns, c)
		s, err := n.AddSegment(roadnet.SegmentID(fmt.Sprintf("s%d", i+1)), conns[i].ID(), c.ID())
		if err != nil {
			t.Fatalf("AddSegment: %v", err)
		}
		segs = append(segs, s)
	}
	return n, segs, conns
}

// wrappedNetwork is lineNetwork(10, 20) plus "alias", a second c1 - c2
// segment wrapping s2.
func wrappedNetwork(t *testing.T) (*roadnet.Network, []*roadnet.Segment, []*roadnet.Connection, *roadnet.Segment) {
	t.Helper()
	n, segs, conns := lineNetwork(t, 10, 20)
	alias, err := n.AddSegment("alias", "c1", "c2")
	if err != nil {
		t.Fatalf("AddSegment: %v", err)
	}
	if err := n.SetWrappedSegment("alias", "s2"); err != nil {
		t.Fatalf("SetWrappedSegment: %v", err)
	}
	return n, segs, conns, alias
}

// rect is a 2-wide rectangle of the given length centred on curviline.
func rect(seg *roadnet.Segment, curviline, length float64) *model.BoundingRect1D5 {
	return model.NewBoundingRect1D5(seg, curviline-length/2, curviline+length/2, 0, 2)
}

type stepClock struct{ step time.Duration }

func (c stepClock) SimulationStepDuration(unit time.Duration) float64 {
	return float64(c.step) / float64(unit)
}

type testPlace struct {
	id    PlaceID
	clock Clock
}

func (p *testPlace) ID() PlaceID            { return p.id }
func (p *testPlace) SimulationClock() Clock { return p.clock }

type testRegistry struct{ places map[PlaceID]Place }

func (r *testRegistry) LookupPlace(id PlaceID) (Place, bool) {
	p, ok := r.places[id]
	return p, ok
}

func placeWithStep(step time.Duration) PlaceHandle {
	p := &testPlace{id: "test-place", clock: stepClock{step: step}}
	return PlaceHandle{ID: p.id, Registry: &testRegistry{places: map[PlaceID]Place{p.id: p}}}
}

type namedFilter string

func (f namedFilter) Name() string { return string(f) }

// prop is a static entity that accepts an environment.
type prop struct {
	*Entity1D5
	env PlaceHandle
}

func newProp(bounds model.Bounds1D5) *prop {
	p := &prop{Entity1D5: NewEntity1D5(bounds)}
	p.DeclareCapabilities(p)
	return p
}

func (p *prop) SetEnvironment(env PlaceHandle) { p.env = env }

func (p *prop) Environment() (PlaceHandle, bool) { return p.env, !p.env.IsZero() }
