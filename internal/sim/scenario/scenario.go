// Package scenario loads road-network scenarios from YAML or JSON files and
// builds them into a running Place.
package scenario

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/roadsim/core"
	"github.com/signalsfoundry/roadsim/internal/sim/agents"
	"github.com/signalsfoundry/roadsim/internal/sim/state"
	"github.com/signalsfoundry/roadsim/model"
	"github.com/signalsfoundry/roadsim/roadnet"
	"github.com/signalsfoundry/roadsim/timectrl"
)

// ErrInvalidScenario is wrapped by every validation failure.
var ErrInvalidScenario = errors.New("invalid scenario")

// Format selects the decoder used by Parse.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Driver kinds accepted in the vehicle "driver" field.
const (
	DriverCruise = "cruise"
	DriverNone   = "none"
)

// Scenario is the file representation of a place.
type Scenario struct {
	Name        string       `yaml:"name" json:"name"`
	Tick        string       `yaml:"tick,omitempty" json:"tick,omitempty"`
	Start       string       `yaml:"start,omitempty" json:"start,omitempty"`
	Connections []Connection `yaml:"connections" json:"connections"`
	Segments    []Segment    `yaml:"segments" json:"segments"`
	Wrapped     []Wrapping   `yaml:"wrapped,omitempty" json:"wrapped,omitempty"`
	Landmarks   []Landmark   `yaml:"landmarks,omitempty" json:"landmarks,omitempty"`
	Vehicles    []Vehicle    `yaml:"vehicles,omitempty" json:"vehicles,omitempty"`
}

// Connection is a road junction at a planar position.
type Connection struct {
	ID string  `yaml:"id" json:"id"`
	X  float64 `yaml:"x" json:"x"`
	Y  float64 `yaml:"y" json:"y"`
}

// Segment joins two connections. Points are intermediate polyline vertices;
// Length overrides the geometric length when positive.
type Segment struct {
	ID     string       `yaml:"id" json:"id"`
	Begin  string       `yaml:"begin" json:"begin"`
	End    string       `yaml:"end" json:"end"`
	Points [][2]float64 `yaml:"points,omitempty" json:"points,omitempty"`
	Length float64      `yaml:"length,omitempty" json:"length,omitempty"`
}

// Wrapping declares Alias as a wrapping segment of Segment.
type Wrapping struct {
	Alias   string `yaml:"alias" json:"alias"`
	Segment string `yaml:"segment" json:"segment"`
}

// Landmark is a static prop spanning [Min, Max] on a segment.
type Landmark struct {
	ID        string   `yaml:"id,omitempty" json:"id,omitempty"`
	Label     string   `yaml:"label" json:"label"`
	Type      string   `yaml:"type,omitempty" json:"type,omitempty"`
	Semantics []string `yaml:"semantics,omitempty" json:"semantics,omitempty"`
	Segment   string   `yaml:"segment" json:"segment"`
	Min       float64  `yaml:"min" json:"min"`
	Max       float64  `yaml:"max" json:"max"`
	Jutting   float64  `yaml:"jutting,omitempty" json:"jutting,omitempty"`
	Width     float64  `yaml:"width,omitempty" json:"width,omitempty"`
}

// Vehicle places an agent body centred at Curviline on Segment, travelling
// away from Entry.
type Vehicle struct {
	ID        string       `yaml:"id,omitempty" json:"id,omitempty"`
	Segment   string       `yaml:"segment" json:"segment"`
	Entry     string       `yaml:"entry" json:"entry"`
	Curviline float64      `yaml:"curviline" json:"curviline"`
	Jutting   float64      `yaml:"jutting,omitempty" json:"jutting,omitempty"`
	Dimension string       `yaml:"dimension,omitempty" json:"dimension,omitempty"`
	Driver    string       `yaml:"driver,omitempty" json:"driver,omitempty"`
	MinGap    float64      `yaml:"min_gap,omitempty" json:"min_gap,omitempty"`
	Spec      *VehicleSpec `yaml:"spec,omitempty" json:"spec,omitempty"`
	Frustums  []Frustum    `yaml:"frustums,omitempty" json:"frustums,omitempty"`
}

// VehicleSpec overrides fields of agents.DefaultVehicleSpec. Zero fields keep
// the default.
type VehicleSpec struct {
	Length          float64 `yaml:"length,omitempty" json:"length,omitempty"`
	Width           float64 `yaml:"width,omitempty" json:"width,omitempty"`
	MaxSpeed        float64 `yaml:"max_speed,omitempty" json:"max_speed,omitempty"`
	MaxAcceleration float64 `yaml:"max_acceleration,omitempty" json:"max_acceleration,omitempty"`
	MaxDeceleration float64 `yaml:"max_deceleration,omitempty" json:"max_deceleration,omitempty"`
}

// Frustum is a perception volume attached to a vehicle.
type Frustum struct {
	Forward  float64 `yaml:"forward" json:"forward"`
	Backward float64 `yaml:"backward,omitempty" json:"backward,omitempty"`
	Lateral  float64 `yaml:"lateral,omitempty" json:"lateral,omitempty"`
}

// Load reads a scenario file, choosing the decoder from its extension.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}
	format := FormatYAML
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = FormatJSON
	}
	sc, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes data. Unknown fields are rejected.
func Parse(data []byte, format Format) (*Scenario, error) {
	var sc Scenario
	switch format {
	case FormatYAML, "":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&sc); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&sc); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported scenario format %q", format)
	}
	return &sc, nil
}

// TickDuration returns the configured tick, or state.DefaultTick.
func (s *Scenario) TickDuration() (time.Duration, error) {
	if s.Tick == "" {
		return state.DefaultTick, nil
	}
	d, err := time.ParseDuration(s.Tick)
	if err != nil {
		return 0, fmt.Errorf("%w: tick: %v", ErrInvalidScenario, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: tick must be positive, got %s", ErrInvalidScenario, d)
	}
	return d, nil
}

// StartTime returns the configured RFC 3339 start, or the Unix epoch.
func (s *Scenario) StartTime() (time.Time, error) {
	if s.Start == "" {
		return time.Unix(0, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s.Start)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: start: %v", ErrInvalidScenario, err)
	}
	return t.UTC(), nil
}

// Validate checks references and value ranges. All problems are reported
// together.
func (s *Scenario) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidScenario}, args...)...))
	}

	if s.Name == "" {
		fail("name is required")
	}
	if _, err := s.TickDuration(); err != nil {
		errs = append(errs, err)
	}
	if _, err := s.StartTime(); err != nil {
		errs = append(errs, err)
	}

	conns := make(map[string]bool, len(s.Connections))
	for i, c := range s.Connections {
		switch {
		case c.ID == "":
			fail("connection %d has no id", i)
		case conns[c.ID]:
			fail("duplicate connection %q", c.ID)
		}
		conns[c.ID] = true
	}

	segs := make(map[string]Segment, len(s.Segments))
	for i, seg := range s.Segments {
		switch {
		case seg.ID == "":
			fail("segment %d has no id", i)
			continue
		case segs[seg.ID].ID != "":
			fail("duplicate segment %q", seg.ID)
		}
		if !conns[seg.Begin] {
			fail("segment %q: unknown begin connection %q", seg.ID, seg.Begin)
		}
		if !conns[seg.End] {
			fail("segment %q: unknown end connection %q", seg.ID, seg.End)
		}
		if seg.Length < 0 {
			fail("segment %q: negative length %g", seg.ID, seg.Length)
		}
		segs[seg.ID] = seg
	}

	for _, w := range s.Wrapped {
		if _, ok := segs[w.Alias]; !ok {
			fail("wrapping: unknown alias segment %q", w.Alias)
		}
		if _, ok := segs[w.Segment]; !ok {
			fail("wrapping: unknown segment %q", w.Segment)
		}
		if w.Alias == w.Segment {
			fail("wrapping: segment %q cannot wrap itself", w.Alias)
		}
	}

	ids := make(map[string]bool)
	checkID := func(kind, id string) {
		if id == "" {
			return
		}
		if _, err := uuid.Parse(id); err != nil {
			fail("%s id %q: %v", kind, id, err)
			return
		}
		if ids[id] {
			fail("duplicate entity id %q", id)
		}
		ids[id] = true
	}

	for i, l := range s.Landmarks {
		checkID("landmark", l.ID)
		if _, ok := segs[l.Segment]; !ok {
			fail("landmark %d (%s): unknown segment %q", i, l.Label, l.Segment)
		}
		if l.Max < l.Min {
			fail("landmark %d (%s): max %g below min %g", i, l.Label, l.Max, l.Min)
		}
		if l.Width < 0 {
			fail("landmark %d (%s): negative width %g", i, l.Label, l.Width)
		}
	}

	for i, v := range s.Vehicles {
		checkID("vehicle", v.ID)
		seg, ok := segs[v.Segment]
		if !ok {
			fail("vehicle %d: unknown segment %q", i, v.Segment)
		} else if v.Entry != seg.Begin && v.Entry != seg.End {
			fail("vehicle %d: entry %q is not an end of segment %q", i, v.Entry, v.Segment)
		}
		if _, ok := model.ParseDimension(v.Dimension); !ok {
			fail("vehicle %d: unknown dimension %q", i, v.Dimension)
		}
		switch v.Driver {
		case "", DriverCruise, DriverNone:
		default:
			fail("vehicle %d: unknown driver %q", i, v.Driver)
		}
		if v.MinGap < 0 {
			fail("vehicle %d: negative min_gap %g", i, v.MinGap)
		}
		if err := v.spec().Validate(); err != nil {
			fail("vehicle %d: %v", i, err)
		}
		for j, f := range v.Frustums {
			if f.Forward < 0 || f.Backward < 0 || f.Lateral < 0 {
				fail("vehicle %d frustum %d: distances must not be negative", i, j)
			}
		}
	}
	return errors.Join(errs...)
}

func (v Vehicle) spec() agents.VehicleSpec {
	spec := agents.DefaultVehicleSpec
	if v.Spec == nil {
		return spec
	}
	override := func(dst *float64, src float64) {
		if src != 0 {
			*dst = src
		}
	}
	override(&spec.Length, v.Spec.Length)
	override(&spec.Width, v.Spec.Width)
	override(&spec.MaxSpeed, v.Spec.MaxSpeed)
	override(&spec.MaxAcceleration, v.Spec.MaxAcceleration)
	override(&spec.MaxDeceleration, v.Spec.MaxDeceleration)
	return spec
}

// BuildNetwork validates the scenario and returns its road network.
func (s *Scenario) BuildNetwork() (*roadnet.Network, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	n := roadnet.NewNetwork(s.Name)
	for _, c := range s.Connections {
		if _, err := n.AddConnection(roadnet.ConnectionID(c.ID), orb.Point{c.X, c.Y}); err != nil {
			return nil, err
		}
	}
	for _, seg := range s.Segments {
		var opts []roadnet.SegmentOption
		if len(seg.Points) > 0 {
			pts := make([]orb.Point, len(seg.Points))
			for i, p := range seg.Points {
				pts[i] = orb.Point(p)
			}
			opts = append(opts, roadnet.WithPolyline(pts...))
		}
		if seg.Length > 0 {
			opts = append(opts, roadnet.WithLength(seg.Length))
		}
		if _, err := n.AddSegment(roadnet.SegmentID(seg.ID), roadnet.ConnectionID(seg.Begin), roadnet.ConnectionID(seg.End), opts...); err != nil {
			return nil, err
		}
	}
	for _, w := range s.Wrapped {
		if err := n.SetWrappedSegment(roadnet.SegmentID(w.Alias), roadnet.SegmentID(w.Segment)); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// Build creates a Place named after the scenario, populated with its
// landmarks and vehicles. A clock built from the scenario tick and start is
// installed ahead of opts, so callers can still replace it.
func Build(s *Scenario, registry *state.Registry, mode timectrl.Mode, opts ...state.PlaceOption) (*state.Place, error) {
	n, err := s.BuildNetwork()
	if err != nil {
		return nil, err
	}
	tick, _ := s.TickDuration()
	start, _ := s.StartTime()
	clock := timectrl.NewTimeController(start, tick, mode)

	p, err := state.NewPlace(core.PlaceID(s.Name), n, registry, append([]state.PlaceOption{state.WithClock(clock)}, opts...)...)
	if err != nil {
		return nil, err
	}
	if err := populate(p, n, s); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func populate(p *state.Place, n *roadnet.Network, s *Scenario) error {
	for i, l := range s.Landmarks {
		seg, _ := n.Segment(roadnet.SegmentID(l.Segment))
		var opts []core.EntityOption
		if l.ID != "" {
			opts = append(opts, core.WithID(uuid.MustParse(l.ID)))
		}
		if len(l.Semantics) > 0 {
			opts = append(opts, core.WithSemantics(semantics(l.Semantics)...))
		}
		lm, err := agents.NewLandmark(seg, l.Label, model.Semantic(l.Type), l.Min, l.Max, l.Jutting, l.Width, opts...)
		if err != nil {
			return fmt.Errorf("landmark %d: %w", i, err)
		}
		if err := p.AddLandmark(lm); err != nil {
			return fmt.Errorf("landmark %d: %w", i, err)
		}
	}

	for i, v := range s.Vehicles {
		seg, _ := n.Segment(roadnet.SegmentID(v.Segment))
		entry, _ := n.Connection(roadnet.ConnectionID(v.Entry))
		dim, _ := model.ParseDimension(v.Dimension)

		var entityOpts []core.EntityOption
		if v.ID != "" {
			entityOpts = append(entityOpts, core.WithID(uuid.MustParse(v.ID)))
		}
		frustums := make([]*core.Frustum1D5, 0, len(v.Frustums))
		for _, f := range v.Frustums {
			var fopts []core.FrustumOption
			if f.Lateral > 0 {
				fopts = append(fopts, core.WithLateralSize(f.Lateral))
			}
			frustums = append(frustums, core.NewFrustum1D5(f.Forward, f.Backward, fopts...))
		}

		vehicle, err := agents.NewVehicle(seg, entry, v.Curviline, v.Jutting, v.spec(), entityOpts,
			core.WithFrustums(frustums...), core.WithPreferredDimension(dim))
		if err != nil {
			return fmt.Errorf("vehicle %d: %w", i, err)
		}

		var d agents.Driver
		if v.Driver != DriverNone {
			var cruise []agents.CruiseOption
			if v.MinGap > 0 {
				cruise = append(cruise, agents.WithMinimumGap(v.MinGap))
			}
			d = agents.NewCruiseDriver(vehicle, cruise...)
		}
		if err := p.AddAgent(vehicle, d); err != nil {
			return fmt.Errorf("vehicle %d: %w", i, err)
		}
	}
	return nil
}

func semantics(tags []string) []model.Semantic {
	out := make([]model.Semantic, len(tags))
	for i, t := range tags {
		out[i] = model.Semantic(t)
	}
	return out
}
