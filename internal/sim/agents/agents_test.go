package agents

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/paulmach/orb"

	"github.com/signalsfoundry/roadsim/core"
	"github.com/signalsfoundry/roadsim/roadnet"
)

const eps = 1e-9

func lineNetwork(t *testing.T, lengths ...float64) (*roadnet.Network, []*roadnet.Segment, []*roadnet.Connection) {
	t.Helper()
	n := roadnet.NewNetwork("agents")
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

func mustVehicle(t *testing.T, seg *roadnet.Segment, entry *roadnet.Connection, curviline float64, bodyOpts ...core.BodyOption) *Vehicle {
	t.Helper()
	v, err := NewVehicle(seg, entry, curviline, 0, DefaultVehicleSpec, nil, bodyOpts...)
	if err != nil {
		t.Fatalf("NewVehicle: %v", err)
	}
	return v
}

func decide(t *testing.T, w *core.WorldModelManager1D5, d *CruiseDriver) core.EnvironmentalAction1D5 {
	t.Helper()
	if err := w.ComputeAgentPerceptions(context.Background()); err != nil {
		t.Fatalf("ComputeAgentPerceptions: %v", err)
	}
	action, ok, err := d.Decide(context.Background(), w, 1)
	if err != nil || !ok {
		t.Fatalf("Decide = (%v, %v)", ok, err)
	}
	if action.EntityID != d.AgentID() {
		t.Fatalf("action for %s, want %s", action.EntityID, d.AgentID())
	}
	return action
}

func TestVehicleDeclaresCapabilities(t *testing.T) {
	_, segs, conns := lineNetwork(t, 100)
	v := mustVehicle(t, segs[0], conns[0], 10)

	caps := v.Base().Capabilities
	if !caps.IsSteering() || !caps.IsInfluencable() || !caps.IsKinematic() {
		t.Fatalf("capabilities = %+v", caps)
	}
	steer, err := caps.ToSteering()
	if err != nil || steer.MaxLinearSpeed() != DefaultVehicleSpec.MaxSpeed {
		t.Fatalf("steering = (%v, %v)", steer, err)
	}
	if v.Base().Type() != VehicleSemantic {
		t.Fatalf("type = %s", v.Base().Type())
	}
	if _, ok := v.Environment(); ok {
		t.Fatalf("fresh vehicle attached to an environment")
	}
	v.SetEnvironment(core.PlaceHandle{ID: "ring"})
	if env, ok := v.Environment(); !ok || env.ID != "ring" {
		t.Fatalf("environment = (%v, %v)", env, ok)
	}
	if got := v.Bounds().SizeX(); math.Abs(got-DefaultVehicleSpec.Length) > eps {
		t.Fatalf("length = %v", got)
	}
}

func TestVehicleSpecValidation(t *testing.T) {
	_, segs, conns := lineNetwork(t, 100)
	bad := []VehicleSpec{
		{Length: 0, Width: 1, MaxSpeed: 1, MaxAcceleration: 1, MaxDeceleration: 1},
		{Length: 1, Width: 1, MaxSpeed: 0, MaxAcceleration: 1, MaxDeceleration: 1},
		{Length: 1, Width: 1, MaxSpeed: 1, MaxAcceleration: 1, MaxDeceleration: 0},
	}
	for _, spec := range bad {
		if _, err := NewVehicle(segs[0], conns[0], 10, 0, spec, nil); err == nil {
			t.Fatalf("spec %+v accepted", spec)
		}
	}
	if _, err := NewVehicle(nil, conns[0], 10, 0, DefaultVehicleSpec, nil); err == nil {
		t.Fatalf("vehicle without a segment accepted")
	}
}

func TestCruiseDriverGap(t *testing.T) {
	cases := []struct {
		name string
		add  func(t *testing.T, w *core.WorldModelManager1D5, seg *roadnet.Segment, conns []*roadnet.Connection)
		want float64
	}{
		{
			name: "free road",
			add:  func(*testing.T, *core.WorldModelManager1D5, *roadnet.Segment, []*roadnet.Connection) {},
			want: 1.25,
		},
		{
			name: "leader far ahead",
			add: func(t *testing.T, w *core.WorldModelManager1D5, seg *roadnet.Segment, conns []*roadnet.Connection) {
				if err := w.RegisterMobileEntity(mustVehicle(t, seg, conns[0], 30)); err != nil {
					t.Fatalf("register: %v", err)
				}
			},
			want: 1.25,
		},
		{
			name: "leader too close",
			add: func(t *testing.T, w *core.WorldModelManager1D5, seg *roadnet.Segment, conns []*roadnet.Connection) {
				if err := w.RegisterMobileEntity(mustVehicle(t, seg, conns[0], 14)); err != nil {
					t.Fatalf("register: %v", err)
				}
			},
			want: 0,
		},
		{
			name: "oncoming vehicle",
			add: func(t *testing.T, w *core.WorldModelManager1D5, seg *roadnet.Segment, conns []*roadnet.Connection) {
				if err := w.RegisterMobileEntity(mustVehicle(t, seg, conns[1], 14)); err != nil {
					t.Fatalf("register: %v", err)
				}
			},
			want: 1.25,
		},
		{
			name: "obstacle",
			add: func(t *testing.T, w *core.WorldModelManager1D5, seg *roadnet.Segment, _ []*roadnet.Connection) {
				l, err := NewLandmark(seg, "barrier", ObstacleSemantic, 13, 15, 0, 2)
				if err != nil {
					t.Fatalf("NewLandmark: %v", err)
				}
				if err := w.RegisterStaticEntity(l); err != nil {
					t.Fatalf("register: %v", err)
				}
			},
			want: 0,
		},
		{
			name: "sign",
			add: func(t *testing.T, w *core.WorldModelManager1D5, seg *roadnet.Segment, _ []*roadnet.Connection) {
				l, err := NewLandmark(seg, "speed limit", "", 13, 15, 0, 2)
				if err != nil {
					t.Fatalf("NewLandmark: %v", err)
				}
				if err := w.RegisterStaticEntity(l); err != nil {
					t.Fatalf("register: %v", err)
				}
			},
			want: 1.25,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n, segs, conns := lineNetwork(t, 100)
			w := core.NewWorldModelManager1D5(n)
			tc.add(t, w, segs[0], conns)

			me := mustVehicle(t, segs[0], conns[0], 10, core.WithFrustums(core.NewFrustum1D5(50, 0)))
			if err := w.RegisterMobileEntity(me); err != nil {
				t.Fatalf("register: %v", err)
			}
			action := decide(t, w, NewCruiseDriver(me))
			if got := action.Transform.Curviline(); math.Abs(got-tc.want) > eps {
				t.Fatalf("advance = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCruiseDriverSkipsWithoutTime(t *testing.T) {
	n, segs, conns := lineNetwork(t, 100)
	w := core.NewWorldModelManager1D5(n)
	d := NewCruiseDriver(mustVehicle(t, segs[0], conns[0], 10))
	if _, ok, err := d.Decide(context.Background(), w, 0); ok || err != nil {
		t.Fatalf("Decide with dt=0 = (%v, %v)", ok, err)
	}
}

func TestPlanCrossesConnections(t *testing.T) {
	_, segs, conns := lineNetwork(t, 100, 50)
	v := mustVehicle(t, segs[0], conns[0], 98)
	d := NewCruiseDriver(v)

	path := d.Plan(5)
	if len(path) != 2 || path[0] != segs[0] || path[1] != segs[1] {
		t.Fatalf("path = %v", path)
	}
	if err := v.TranslatePath(path, 5, 0); err != nil {
		t.Fatalf("TranslatePath: %v", err)
	}
	if v.RoadSegment() != segs[1] || v.RoadEntry() != conns[1] {
		t.Fatalf("vehicle on %v entered via %v", v.RoadSegment(), v.RoadEntry())
	}
	if got := v.Position1D5().Curviline; math.Abs(got-3) > eps {
		t.Fatalf("curviline = %v, want 3", got)
	}

	if short := d.Plan(1); len(short) != 1 || short[0] != segs[1] {
		t.Fatalf("short path = %v", short)
	}
}

func TestPlanTurnsBackAtDeadEnd(t *testing.T) {
	_, segs, conns := lineNetwork(t, 100, 50)
	d := NewCruiseDriver(mustVehicle(t, segs[1], conns[1], 48))
	path := d.Plan(5)
	if len(path) != 2 || path[0] != segs[1] || path[1] != segs[1] {
		t.Fatalf("path = %v", path)
	}

	custom := NewCruiseDriver(mustVehicle(t, segs[0], conns[0], 98), WithRouteChooser(func(*roadnet.Segment, *roadnet.Connection) *roadnet.Segment {
		return nil
	}))
	if path := custom.Plan(5); len(path) != 2 || path[1] != segs[0] {
		t.Fatalf("custom chooser path = %v", path)
	}
}

func TestLandmark(t *testing.T) {
	_, segs, _ := lineNetwork(t, 100)
	l, err := NewLandmark(segs[0], "stop", "", 40, 42, 3, 1)
	if err != nil {
		t.Fatalf("NewLandmark: %v", err)
	}
	if l.Label() != "stop" || l.Base().Type() != LandmarkSemantic {
		t.Fatalf("landmark = %q %s", l.Label(), l.Base().Type())
	}
	if l.RoadSegment() != segs[0] || math.Abs(l.Position1D5().Jutting-3) > eps {
		t.Fatalf("landmark position %v", l.Position1D5())
	}
	if _, err := NewLandmark(segs[0], "bad", "", 1, 2, 0, -1); err == nil {
		t.Fatalf("negative width accepted")
	}

	edge, err := NewLandmark(segs[0], "barrier", "", 97, 103, 0, 1)
	if err != nil {
		t.Fatalf("NewLandmark: %v", err)
	}
	if lo, hi := edge.Bounds1D(); lo.Curviline != 94 || hi.Curviline != 100 {
		t.Fatalf("overhanging landmark spans [%v,%v], want [94,100]", lo.Curviline, hi.Curviline)
	}
}
