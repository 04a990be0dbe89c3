// Package state holds the live simulation places. A Place owns a road
// network, its world model, a simulation clock and the drivers of its
// agents, and runs the tick loop over them.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/roadsim/core"
	"github.com/signalsfoundry/roadsim/internal/logging"
	"github.com/signalsfoundry/roadsim/internal/sim/agents"
	"github.com/signalsfoundry/roadsim/roadnet"
	"github.com/signalsfoundry/roadsim/timectrl"
)

const tracerName = "github.com/signalsfoundry/roadsim/internal/sim/state"

var (
	// ErrPlaceExists indicates a place id already registered.
	ErrPlaceExists = errors.New("place already exists")
	// ErrPlaceNotFound indicates an unknown place id.
	ErrPlaceNotFound = errors.New("place not found")
	// ErrAgentNotFound indicates an unknown agent id. It matches
	// core.ErrEntityNotFound.
	ErrAgentNotFound = core.ErrEntityNotFound
	// ErrDriverMismatch indicates a driver built for another agent.
	ErrDriverMismatch = errors.New("driver does not drive this agent")
)

// DefaultTick is the simulation step used when no clock is supplied.
const DefaultTick = 100 * time.Millisecond

// MetricsRecorder receives tick, perception and commit measurements.
// observability.SimCollector implements it.
type MetricsRecorder interface {
	core.WorldMetricsRecorder
	ObserveTick(elapsed time.Duration)
}

// TickReport summarises one tick. Perception and decision failures are
// per-agent and do not stop the tick.
type TickReport struct {
	Tick          uint64
	Time          time.Time
	Actions       int
	PerceptionErr error
	DecisionErr   error
}

// Place is one simulated environment. It implements core.Place.
type Place struct {
	// mu serialises ticks against mutations and readers. The world model
	// is not safe for concurrent use on its own.
	mu sync.RWMutex

	id       core.PlaceID
	registry *Registry
	clock    *timectrl.TimeController
	world    *core.WorldModelManager1D5
	drivers  []agents.Driver

	telemetry *TelemetryState

	log     logging.Logger
	metrics MetricsRecorder
	tracer  trace.Tracer
	strict  bool
}

// PlaceOption customises Place construction.
type PlaceOption func(*Place)

// WithLogger sets the logger of the place and of its world model.
func WithLogger(l logging.Logger) PlaceOption {
	return func(p *Place) {
		if l != nil {
			p.log = l
		}
	}
}

// WithMetricsRecorder attaches a recorder for loop metrics.
func WithMetricsRecorder(m MetricsRecorder) PlaceOption {
	return func(p *Place) { p.metrics = m }
}

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) PlaceOption {
	return func(p *Place) {
		if t != nil {
			p.tracer = t
		}
	}
}

// WithClock supplies the simulation clock.
func WithClock(c *timectrl.TimeController) PlaceOption {
	return func(p *Place) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithStrictInvariants makes invariant violations panic during commits.
func WithStrictInvariants(strict bool) PlaceOption {
	return func(p *Place) { p.strict = strict }
}

// NewPlace builds a place over network and registers it in registry. A nil
// registry gives the place a private one.
func NewPlace(id core.PlaceID, network *roadnet.Network, registry *Registry, opts ...PlaceOption) (*Place, error) {
	if id == "" {
		return nil, errors.New("place id is required")
	}
	if network == nil {
		return nil, fmt.Errorf("place %s: road network is nil", id)
	}
	if registry == nil {
		registry = NewRegistry()
	}
	p := &Place{
		id:        id,
		registry:  registry,
		telemetry: NewTelemetryState(),
		log:       logging.Noop(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.clock == nil {
		p.clock = timectrl.NewTimeController(time.Unix(0, 0).UTC(), DefaultTick, timectrl.Accelerated)
	}
	p.log = p.log.With(logging.String("place", string(id)))

	worldOpts := []core.WorldModelOption{
		core.WithLogger(p.log),
		core.WithTracer(p.tracer),
		core.WithStrictInvariants(p.strict),
		core.WithPlace(core.PlaceHandle{ID: id, Registry: registry}),
	}
	if p.metrics != nil {
		worldOpts = append(worldOpts, core.WithMetricsRecorder(p.metrics))
	}
	p.world = core.NewWorldModelManager1D5(network, worldOpts...)

	if err := registry.Add(p); err != nil {
		return nil, err
	}
	return p, nil
}

// ID implements core.Place.
func (p *Place) ID() core.PlaceID { return p.id }

// SimulationClock implements core.Place.
func (p *Place) SimulationClock() core.Clock { return p.clock }

// Clock returns the controller driving the place.
func (p *Place) Clock() *timectrl.TimeController { return p.clock }

// Network returns the road network of the place.
func (p *Place) Network() *roadnet.Network { return p.world.InnerWorldModel() }

// Telemetry returns the per-agent telemetry store.
func (p *Place) Telemetry() *TelemetryState { return p.telemetry }

// WithReadLock executes fn on the world model while holding the place read
// lock. fn must not call other Place methods that take the lock.
func (p *Place) WithReadLock(fn func(w *core.WorldModelManager1D5) error) error {
	if fn == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return fn(p.world)
}

// AddLandmark registers a static entity.
func (p *Place) AddLandmark(e core.WorldEntity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.world.RegisterStaticEntity(e)
}

// AddAgent registers a mobile entity and the driver deciding its actions.
// A nil driver leaves the entity passive.
func (p *Place) AddAgent(m core.MobileEntity, d agents.Driver) error {
	if d != nil && d.AgentID() != m.ID() {
		return fmt.Errorf("%w: driver of %s attached to %s", ErrDriverMismatch, d.AgentID(), m.ID())
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.world.RegisterMobileEntity(m); err != nil {
		return err
	}
	if d != nil {
		p.drivers = append(p.drivers, d)
	}
	p.log.Debug(context.Background(), "agent added",
		logging.String("entity_id", m.ID().String()),
		logging.Bool("driven", d != nil),
	)
	return nil
}

// RemoveAgent unregisters a mobile entity and its driver.
func (p *Place) RemoveAgent(id uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.world.UnregisterMobileEntity(id); err != nil {
		return err
	}
	kept := p.drivers[:0]
	for _, d := range p.drivers {
		if d.AgentID() != id {
			kept = append(kept, d)
		}
	}
	clear(p.drivers[len(kept):])
	p.drivers = kept
	p.telemetry.Remove(id)
	return nil
}

// DriverCount returns the number of driven agents.
func (p *Place) DriverCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.drivers)
}

// RunTick runs one simulation step: perception, decisions, commit, then
// the clock advances. Only a commit failure is returned as an error; the
// clock advances even then since the other actions were applied.
func (p *Place) RunTick(ctx context.Context) (TickReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	tick := p.clock.Steps() + 1
	ctx = logging.ContextWithTick(ctx, tick)
	ctx, span := p.tracer.Start(ctx, "place.RunTick", trace.WithAttributes(
		attribute.String("place.id", string(p.id)),
		attribute.Int64("tick", int64(tick)),
	))
	defer span.End()

	report := TickReport{Tick: tick}
	report.PerceptionErr = p.world.ComputeAgentPerceptions(ctx)

	dt := p.clock.SimulationStepDuration(time.Second)
	actions := make([]core.EnvironmentalAction1D5, 0, len(p.drivers))
	advances := make(map[uuid.UUID]float64, len(p.drivers))
	var decisionErrs []error
	for _, d := range p.drivers {
		action, ok, err := d.Decide(ctx, p.world, dt)
		if err != nil {
			p.log.Warn(ctx, "driver decision failed",
				logging.String("entity_id", d.AgentID().String()),
				logging.Err(err),
			)
			decisionErrs = append(decisionErrs, fmt.Errorf("agent %s: %w", d.AgentID(), err))
			continue
		}
		if ok {
			actions = append(actions, action)
			advances[action.EntityID] = action.Transform.Curviline()
		}
	}
	report.DecisionErr = errors.Join(decisionErrs...)
	report.Actions = len(actions)

	p.world.RegisterActions(p.clock.Now(), actions)
	commitErr := p.world.Commit(ctx)

	report.Time = p.clock.Step()
	p.recordTelemetry(tick, report.Time, advances)

	elapsed := time.Since(start)
	if p.metrics != nil {
		p.metrics.ObserveTick(elapsed)
	}
	span.SetAttributes(attribute.Int("actions", report.Actions))
	if commitErr != nil {
		span.RecordError(commitErr)
		span.SetStatus(codes.Error, "commit failed")
		return report, fmt.Errorf("place %s tick %d: %w", p.id, tick, commitErr)
	}
	p.log.Debug(ctx, "tick completed",
		logging.Int("actions", report.Actions),
		logging.Duration("elapsed", elapsed),
	)
	return report, nil
}

// recordTelemetry must be called with p.mu held.
func (p *Place) recordTelemetry(tick uint64, now time.Time, advances map[uuid.UUID]float64) {
	for m := range p.world.MobileEntities() {
		mob := m.Mobile()
		pos := mob.Position1D5()
		rec := &AgentTelemetry{
			AgentID:   m.ID(),
			Tick:      tick,
			Segment:   pos.Segment,
			Curviline: pos.Curviline,
			Jutting:   pos.Jutting,
			Speed:     mob.LinearSpeed(),
			Advance:   advances[m.ID()],
			UpdatedAt: now,
		}
		if entry := mob.RoadEntry(); entry != nil {
			rec.Entry = entry.ID()
		}
		if list, ok := p.world.PerceptionList(m.ID()); ok {
			static, dynamic := list.Results()
			rec.StaticPercepts, rec.DynamicPercepts = len(static), len(dynamic)
		}
		p.telemetry.Update(rec)
	}
}

// Run executes ticks until n ticks ran, or until ctx is done when n is not
// positive. In real-time mode each tick waits for one clock period of wall
// time. Commit failures stop the loop.
func (p *Place) Run(ctx context.Context, n int) error {
	var wait <-chan time.Time
	if p.clock.Mode == timectrl.RealTime {
		ticker := time.NewTicker(p.clock.Tick)
		defer ticker.Stop()
		wait = ticker.C
	}

	for i := 0; n <= 0 || i < n; i++ {
		if wait != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-wait:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		report, err := p.RunTick(ctx)
		if err != nil {
			return err
		}
		if report.PerceptionErr != nil || report.DecisionErr != nil {
			p.log.Debug(ctx, "tick completed with agent failures",
				logging.Uint64("tick", report.Tick),
				logging.Err(errors.Join(report.PerceptionErr, report.DecisionErr)),
			)
		}
	}
	return nil
}

// EntityState is a read-only view of one entity.
type EntityState struct {
	ID        uuid.UUID
	Type      string
	Mobile    bool
	Segment   roadnet.SegmentID
	Entry     roadnet.ConnectionID
	Curviline float64
	Jutting   float64
	X, Y      float64
	Speed     float64
}

// PlaceSnapshot is a coherent view of a place between two ticks.
type PlaceSnapshot struct {
	ID       core.PlaceID
	Tick     uint64
	Time     time.Time
	Mobiles  []EntityState
	Statics  []EntityState
	Segments int
}

// Snapshot returns the current state of every entity.
func (p *Place) Snapshot() PlaceSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snap := PlaceSnapshot{
		ID:       p.id,
		Tick:     p.clock.Steps(),
		Time:     p.clock.Now(),
		Segments: p.world.InnerWorldModel().SegmentCount(),
	}
	for m := range p.world.MobileEntities() {
		st := entityState(m)
		mob := m.Mobile()
		st.Mobile = true
		st.Speed = mob.LinearSpeed()
		if entry := mob.RoadEntry(); entry != nil {
			st.Entry = entry.ID()
		}
		snap.Mobiles = append(snap.Mobiles, st)
	}
	for e := range p.world.StaticEntities() {
		snap.Statics = append(snap.Statics, entityState(e))
	}
	return snap
}

func entityState(e core.WorldEntity) EntityState {
	base := e.Base()
	pos := base.Position1D5()
	xy := base.Position2D()
	return EntityState{
		ID:        e.ID(),
		Type:      string(base.Type()),
		Segment:   pos.Segment,
		Curviline: pos.Curviline,
		Jutting:   pos.Jutting,
		X:         xy.X(),
		Y:         xy.Y(),
	}
}

// Perceptions returns the culling results of the last perception pass for
// agent.
func (p *Place) Perceptions(agent uuid.UUID) (static, dynamic []core.CullingResult1D5, err error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	list, ok := p.world.PerceptionList(agent)
	if !ok {
		return nil, nil, fmt.Errorf("%w: no perceptions for agent %s", ErrAgentNotFound, agent)
	}
	static, dynamic = list.Results()
	return static, dynamic, nil
}

// Close unregisters the place and releases its world model. Entity clocks
// stop resolving once the place is gone.
func (p *Place) Close() {
	p.registry.Remove(p.id)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.world.Destroy()
	p.drivers = nil
}
