package core

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/roadsim/internal/logging"
	"github.com/signalsfoundry/roadsim/kb"
	"github.com/signalsfoundry/roadsim/roadnet"
)

const tracerName = "github.com/signalsfoundry/roadsim/core"

// WorldMetricsRecorder receives per-tick measurements of the world model.
type WorldMetricsRecorder interface {
	ObservePerception(agents, results, failures int, elapsed time.Duration)
	ObserveCommit(applied, rejected int, elapsed time.Duration)
	SetEntityCounts(static, mobile int)
}

// WorldModelManager1D5 owns the entities located on a road network, indexes
// them by segment, computes the agents' perceptions and applies their
// actions.
//
// The manager is not safe for concurrent use. Perception and commit are
// expected to alternate under the control of the owning place.
type WorldModelManager1D5 struct {
	network *roadnet.Network
	place   PlaceHandle

	statics *kb.KnowledgeBase[uuid.UUID, WorldEntity]
	mobiles *kb.KnowledgeBase[uuid.UUID, MobileEntity]

	staticIndex *segmentIndex
	mobileIndex *segmentIndex

	perceptions map[uuid.UUID]PerceptionList

	actions    []EnvironmentalAction1D5
	actionTime time.Time

	log     logging.Logger
	metrics WorldMetricsRecorder
	tracer  trace.Tracer
	strict  bool
}

// WorldModelOption customises a WorldModelManager1D5.
type WorldModelOption func(*WorldModelManager1D5)

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) WorldModelOption {
	return func(w *WorldModelManager1D5) {
		if l != nil {
			w.log = l
		}
	}
}

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m WorldMetricsRecorder) WorldModelOption {
	return func(w *WorldModelManager1D5) { w.metrics = m }
}

// WithTracer replaces the tracer obtained from the global provider.
func WithTracer(t trace.Tracer) WorldModelOption {
	return func(w *WorldModelManager1D5) {
		if t != nil {
			w.tracer = t
		}
	}
}

// WithStrictInvariants makes Commit panic on a NaN position.
func WithStrictInvariants(strict bool) WorldModelOption {
	return func(w *WorldModelManager1D5) { w.strict = strict }
}

// WithPlace sets the place the manager and its entities belong to.
func WithPlace(h PlaceHandle) WorldModelOption {
	return func(w *WorldModelManager1D5) { w.place = h }
}

// NewWorldModelManager1D5 builds an empty manager over network.
func NewWorldModelManager1D5(network *roadnet.Network, opts ...WorldModelOption) *WorldModelManager1D5 {
	w := &WorldModelManager1D5{
		network:     network,
		statics:     kb.NewKnowledgeBase[uuid.UUID, WorldEntity](),
		mobiles:     kb.NewKnowledgeBase[uuid.UUID, MobileEntity](),
		staticIndex: newSegmentIndex(StaticEntitiesTag),
		mobileIndex: newSegmentIndex(MobileEntitiesTag),
		perceptions: make(map[uuid.UUID]PerceptionList),
		log:         logging.Noop(),
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// InnerWorldModel returns the road network.
func (w *WorldModelManager1D5) InnerWorldModel() *roadnet.Network { return w.network }

// Place returns the handle of the owning place.
func (w *WorldModelManager1D5) Place() PlaceHandle { return w.place }

// Init registers the initial population. Entities located outside the
// network are skipped; other failures are returned together.
func (w *WorldModelManager1D5) Init(ctx context.Context, statics iter.Seq[WorldEntity], mobiles iter.Seq[MobileEntity]) error {
	var errs []error
	skip := func(e WorldEntity, err error) {
		if errors.Is(err, ErrSegmentNotInNetwork) {
			w.log.Warn(ctx, "entity outside road network skipped",
				logging.String("entity_id", e.ID().String()),
				logging.Err(err),
			)
			return
		}
		errs = append(errs, err)
	}
	if statics != nil {
		for e := range statics {
			if err := w.RegisterStaticEntity(e); err != nil {
				skip(e, err)
			}
		}
	}
	if mobiles != nil {
		for m := range mobiles {
			if err := w.RegisterMobileEntity(m); err != nil {
				skip(m, err)
			}
		}
	}
	w.log.Info(ctx, "world model initialised",
		logging.Int("static_entities", w.statics.Len()),
		logging.Int("mobile_entities", w.mobiles.Len()),
	)
	return errors.Join(errs...)
}

// Destroy unregisters every entity and drops the buffered state.
func (w *WorldModelManager1D5) Destroy() {
	for _, m := range w.mobiles.List() {
		detachEnvironment(m)
	}
	for _, e := range w.statics.List() {
		detachEnvironment(e)
	}
	w.mobiles.Clear()
	w.statics.Clear()
	w.mobileIndex.clear()
	w.staticIndex.clear()
	clear(w.perceptions)
	w.actions = nil
	w.recordCounts()
}

// locate returns the canonical segment of e. An entity placed on a
// wrapping segment is moved to the segment it aliases.
func (w *WorldModelManager1D5) locate(e WorldEntity) (*roadnet.Segment, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil entity", ErrEntityNotFound)
	}
	seg := e.Base().RoadSegment()
	if seg == nil || w.network == nil || !w.network.Contains(seg) {
		return nil, fmt.Errorf("%w: entity %s on %v", ErrSegmentNotInNetwork, e.ID(), seg)
	}
	canonical := seg.Canonical()
	if canonical == seg {
		return seg, nil
	}
	if m, ok := e.(MobileEntity); ok {
		mobile := m.Mobile()
		if err := mobile.SetRoadSegment(canonical, mobile.RoadEntry()); err != nil {
			return nil, fmt.Errorf("entity %s on wrapping segment %s: %w", e.ID(), seg, err)
		}
		return canonical, nil
	}
	e.Base().Bounds().SetSegment(canonical)
	return canonical, nil
}

// RegisterMobileEntity indexes m on its current segment and attaches it to
// the manager's place.
func (w *WorldModelManager1D5) RegisterMobileEntity(m MobileEntity) error {
	seg, err := w.locate(m)
	if err != nil {
		return err
	}
	if err := w.mobiles.Add(m.ID(), m); err != nil {
		if errors.Is(err, kb.ErrExists) {
			return fmt.Errorf("%w: %s", ErrEntityExists, m.ID())
		}
		return err
	}
	w.mobileIndex.add(seg.ID(), m.ID())
	if m.Mobile().Place().IsZero() {
		m.Mobile().SetPlace(w.place)
	}
	w.attachEnvironment(m)
	w.recordCounts()
	return nil
}

// UnregisterMobileEntity removes the entity with the given identifier and
// returns it.
func (w *WorldModelManager1D5) UnregisterMobileEntity(id uuid.UUID) (MobileEntity, error) {
	m, err := w.mobiles.Remove(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	w.mobileIndex.remove(id)
	delete(w.perceptions, id)
	detachEnvironment(m)
	w.recordCounts()
	return m, nil
}

// RegisterStaticEntity indexes e on its segment.
func (w *WorldModelManager1D5) RegisterStaticEntity(e WorldEntity) error {
	seg, err := w.locate(e)
	if err != nil {
		return err
	}
	if err := w.statics.Add(e.ID(), e); err != nil {
		if errors.Is(err, kb.ErrExists) {
			return fmt.Errorf("%w: %s", ErrEntityExists, e.ID())
		}
		return err
	}
	w.staticIndex.add(seg.ID(), e.ID())
	w.attachEnvironment(e)
	w.recordCounts()
	return nil
}

// UnregisterStaticEntity removes the static entity with the given
// identifier and returns it.
func (w *WorldModelManager1D5) UnregisterStaticEntity(id uuid.UUID) (WorldEntity, error) {
	e, err := w.statics.Remove(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	w.staticIndex.remove(id)
	detachEnvironment(e)
	w.recordCounts()
	return e, nil
}

func (w *WorldModelManager1D5) attachEnvironment(e WorldEntity) {
	if inf, ok := e.Base().Influencable(); ok {
		inf.SetEnvironment(w.place)
	}
}

func detachEnvironment(e WorldEntity) {
	if inf, ok := e.Base().Influencable(); ok {
		inf.SetEnvironment(PlaceHandle{})
	}
}

// MobileEntity returns a registered mobile entity.
func (w *WorldModelManager1D5) MobileEntity(id uuid.UUID) (MobileEntity, bool) { return w.mobiles.Get(id) }

// StaticEntity returns a registered static entity.
func (w *WorldModelManager1D5) StaticEntity(id uuid.UUID) (WorldEntity, bool) { return w.statics.Get(id) }

// MobileEntities yields the mobile entities in registration order.
func (w *WorldModelManager1D5) MobileEntities() iter.Seq[MobileEntity] {
	return func(yield func(MobileEntity) bool) {
		for _, m := range w.mobiles.All() {
			if !yield(m) {
				return
			}
		}
	}
}

// StaticEntities yields the static entities in registration order.
func (w *WorldModelManager1D5) StaticEntities() iter.Seq[WorldEntity] {
	return func(yield func(WorldEntity) bool) {
		for _, e := range w.statics.All() {
			if !yield(e) {
				return
			}
		}
	}
}

// MobileEntityCount is the number of registered mobile entities.
func (w *WorldModelManager1D5) MobileEntityCount() int { return w.mobiles.Len() }

// StaticEntityCount is the number of registered static entities.
func (w *WorldModelManager1D5) StaticEntityCount() int { return w.statics.Len() }

// EntitiesOn returns the identifiers indexed on seg under tag.
func (w *WorldModelManager1D5) EntitiesOn(tag string, seg roadnet.SegmentID) []uuid.UUID {
	ix := w.index(tag)
	if ix == nil {
		return nil
	}
	return append([]uuid.UUID(nil), ix.bucket(seg)...)
}

// OccupiedSegments returns the segments with at least one entity under
// tag, in ID order.
func (w *WorldModelManager1D5) OccupiedSegments(tag string) []roadnet.SegmentID {
	ix := w.index(tag)
	if ix == nil {
		return nil
	}
	return ix.segments()
}

// IsOccupied reports whether seg holds at least one entity under tag.
func (w *WorldModelManager1D5) IsOccupied(tag string, seg roadnet.SegmentID) bool {
	ix := w.index(tag)
	return ix != nil && ix.has(seg)
}

func (w *WorldModelManager1D5) index(tag string) *segmentIndex {
	switch tag {
	case StaticEntitiesTag:
		return w.staticIndex
	case MobileEntitiesTag:
		return w.mobileIndex
	default:
		return nil
	}
}

// ComputeAgentPerceptions replaces the perceptions of every agent body
// located on the network. A failing agent gets no perception list; the
// failures are returned together once every agent was processed.
func (w *WorldModelManager1D5) ComputeAgentPerceptions(ctx context.Context) error {
	ctx, span := w.tracer.Start(ctx, "world.ComputeAgentPerceptions")
	defer span.End()
	start := time.Now()

	clear(w.perceptions)

	var (
		errs     []error
		agents   int
		results  int
		failures int
	)
	for _, segID := range w.mobileIndex.segments() {
		for _, id := range w.mobileIndex.bucket(segID) {
			m, ok := w.mobiles.Get(id)
			if !ok {
				continue
			}
			body, ok := m.(AgentBody1D5)
			if !ok {
				continue
			}
			agents++
			list, n, err := w.perceive(body)
			if err != nil {
				failures++
				w.log.Warn(ctx, "agent perception failed",
					logging.String("entity_id", id.String()),
					logging.String("segment", string(segID)),
					logging.Err(err),
				)
				errs = append(errs, fmt.Errorf("agent %s: %w", id, err))
				continue
			}
			results += n
			w.perceptions[id] = list
		}
	}

	elapsed := time.Since(start)
	span.SetAttributes(
		attribute.Int("roadsim.agents", agents),
		attribute.Int("roadsim.culling_results", results),
	)
	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "agent perception failed")
	}
	if w.metrics != nil {
		w.metrics.ObservePerception(agents, results, failures, elapsed)
	}
	w.log.Debug(ctx, "perceptions computed",
		logging.Int("agents", agents),
		logging.Int("results", results),
		logging.Int("failures", failures),
	)
	return err
}

func (w *WorldModelManager1D5) perceive(body AgentBody1D5) (PerceptionList, int, error) {
	if f := body.PhysicalFilter(); f != nil {
		return nil, 0, fmt.Errorf("%w: physical perception filter %q", ErrUnsupportedConfiguration, f.Name())
	}
	if f := body.InterestFilter(); f != nil {
		return nil, 0, fmt.Errorf("%w: interest filter %q", ErrUnsupportedConfiguration, f.Name())
	}
	list, err := NewPerceptionList(body.PreferredDimension())
	if err != nil {
		return nil, 0, err
	}
	ground := roadnet.NewSubNetwork()
	results := 0
	for _, f := range body.Frustums() {
		sub, n := w.doFrustumPerception(f, body, list)
		ground.Merge(sub)
		results += n
	}
	list.setGround(&GroundPerception1D5{SubNetwork: ground})
	return list, results, nil
}

func (w *WorldModelManager1D5) doFrustumPerception(f *Frustum1D5, body AgentBody1D5, list PerceptionList) (*roadnet.SubNetwork, int) {
	sub := roadnet.NewSubNetwork()
	seg := f.RoadSegment()
	if seg == nil {
		return sub, 0
	}
	entry := f.RoadEntry()
	position := f.EyePosition().Curviline
	if seg.EndPoint() == entry {
		position = seg.Length() - position
	}
	builder := newPerceptionBuilder(w, f, body, list)
	sub.Build(w.network.DepthIterator(seg, f.ForwardDistance(), position, entry), builder)
	return sub, builder.results
}

// PerceptionList returns the perceptions computed for agent during the
// last perception pass.
func (w *WorldModelManager1D5) PerceptionList(agent uuid.UUID) (PerceptionList, bool) {
	l, ok := w.perceptions[agent]
	return l, ok
}

// GetPerceptions returns the typed perceptions of agent. P must match the
// dimension the agent prefers (Percept1D, Percept1D5, Percept2D or
// Percept3D).
func GetPerceptions[P any](w *WorldModelManager1D5, agent uuid.UUID) (Perceptions[P], error) {
	l, ok := w.perceptions[agent]
	if !ok {
		return Perceptions[P]{}, fmt.Errorf("%w: no perceptions for agent %s", ErrEntityNotFound, agent)
	}
	return PerceptionsOf[P](l)
}

// RegisterActions buffers the actions to apply at the next commit,
// replacing any previously buffered batch.
func (w *WorldModelManager1D5) RegisterActions(t time.Time, actions []EnvironmentalAction1D5) {
	w.actionTime = t
	w.actions = append([]EnvironmentalAction1D5(nil), actions...)
}

// BufferedActions returns the number of actions waiting for commit.
func (w *WorldModelManager1D5) BufferedActions() int { return len(w.actions) }

// Commit applies the buffered actions and re-indexes the entities that
// changed segment. Rejected transforms leave their entity in place and are
// only logged. Actions targeting unknown entities and invariant violations
// are returned. The buffer is always emptied.
func (w *WorldModelManager1D5) Commit(ctx context.Context) error {
	actions := w.actions
	w.actions = nil

	ctx, span := w.tracer.Start(ctx, "world.Commit", trace.WithAttributes(
		attribute.Int("roadsim.actions", len(actions)),
	))
	defer span.End()
	start := time.Now()

	var (
		errs     []error
		applied  int
		rejected int
	)
	for _, a := range actions {
		m, ok := w.mobiles.Get(a.EntityID)
		if !ok {
			rejected++
			errs = append(errs, fmt.Errorf("%w: action on %s", ErrEntityNotFound, a.EntityID))
			continue
		}
		mobile := m.Mobile()
		previous := mobile.RoadSegment()
		if err := mobile.Transform(a.Transform); err != nil {
			rejected++
			if errors.Is(err, ErrInvariantViolation) {
				if w.strict {
					panic(err)
				}
				errs = append(errs, err)
				continue
			}
			w.log.Warn(ctx, "transform rejected",
				logging.String("entity_id", a.EntityID.String()),
				logging.String("segment", segmentName(previous)),
				logging.Err(err),
			)
			continue
		}
		applied++
	}
	w.reindexMobiles()

	span.SetAttributes(
		attribute.Int("roadsim.applied", applied),
		attribute.Int("roadsim.rejected", rejected),
	)
	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
	}
	if w.metrics != nil {
		w.metrics.ObserveCommit(applied, rejected, time.Since(start))
	}
	return err
}

// reindexMobiles moves every mobile entity whose segment changed, through a
// transform or a teleport, to the bucket of its current segment.
func (w *WorldModelManager1D5) reindexMobiles() {
	for id, m := range w.mobiles.All() {
		current := segmentKey(m.Base().RoadSegment())
		if indexed, ok := w.mobileIndex.segmentOf(id); !ok || indexed != current {
			w.mobileIndex.add(current, id)
		}
	}
}

func (w *WorldModelManager1D5) recordCounts() {
	if w.metrics != nil {
		w.metrics.SetEntityCounts(w.statics.Len(), w.mobiles.Len())
	}
}

func segmentKey(s *roadnet.Segment) roadnet.SegmentID {
	if s == nil {
		return ""
	}
	return s.ID()
}

func segmentName(s *roadnet.Segment) string { return string(segmentKey(s)) }
