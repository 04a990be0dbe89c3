package state

import (
	"fmt"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/signalsfoundry/roadsim/core"
	"github.com/signalsfoundry/roadsim/internal/sim/agents"
	"github.com/signalsfoundry/roadsim/roadnet"
	"github.com/signalsfoundry/roadsim/timectrl"
)

var testEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newLineNetwork(t *testing.T, lengths ...float64) (*roadnet.Network, []*roadnet.Segment, []*roadnet.Connection) {
	t.Helper()
	n := roadnet.NewNetwork("state")
	c, err := n.AddConnection("c0", orb.Point{0, 0})
	if err != nil {
		t.Fatalf("AddConnection: %v", err)
	}
	conns := []*roadnet.Connection{c}
	var segs []*roadnet.Segment
	x := 0.0
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

// newTestPlace builds a place with a one-second accelerated clock.
func newTestPlace(t *testing.T, reg *Registry, opts ...PlaceOption) (*Place, []*roadnet.Segment, []*roadnet.Connection) {
	t.Helper()
	n, segs, conns := newLineNetwork(t, 100, 50)
	clock := timectrl.NewTimeController(testEpoch, time.Second, timectrl.Accelerated)
	p, err := NewPlace("test", n, reg, append([]PlaceOption{WithClock(clock), WithStrictInvariants(true)}, opts...)...)
	if err != nil {
		t.Fatalf("NewPlace: %v", err)
	}
	return p, segs, conns
}

// addVehicle registers a vehicle with a 50 m forward frustum. driven
// attaches a CruiseDriver.
func addVehicle(t *testing.T, p *Place, seg *roadnet.Segment, entry *roadnet.Connection, curviline float64, driven bool) *agents.Vehicle {
	t.Helper()
	v, err := agents.NewVehicle(seg, entry, curviline, 0, agents.DefaultVehicleSpec, nil,
		core.WithFrustums(core.NewFrustum1D5(50, 0)))
	if err != nil {
		t.Fatalf("NewVehicle: %v", err)
	}
	var d agents.Driver
	if driven {
		d = agents.NewCruiseDriver(v)
	}
	if err := p.AddAgent(v, d); err != nil {
		t.Fatalf("AddAgent: %v", err)
	}
	return v
}
