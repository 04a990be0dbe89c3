package core

import (
	"math"

	"github.com/google/uuid"

	"github.com/signalsfoundry/roadsim/model"
	"github.com/signalsfoundry/roadsim/roadnet"
)

// perceptionBuilder culls the entities of each segment reached by a frustum
// traversal. It is the BuildListener of the traversed sub-network.
type perceptionBuilder struct {
	w         *WorldModelManager1D5
	list      PerceptionList
	frustumID uuid.UUID
	forward   float64
	bodyID    uuid.UUID

	observerJutting float64
	lowerJutt       float64
	upperJutt       float64

	results int
}

func newPerceptionBuilder(w *WorldModelManager1D5, f *Frustum1D5, body AgentBody1D5, list PerceptionList) *perceptionBuilder {
	bounds := body.Base().Bounds()
	jutting := bounds.Jutting()
	half := f.LateralSize() / 2
	if half == 0 {
		half = bounds.LateralSize() / 2
	}
	return &perceptionBuilder{
		w:               w,
		list:            list,
		frustumID:       f.ID(),
		forward:         f.ForwardDistance(),
		bodyID:          body.ID(),
		observerJutting: jutting,
		lowerJutt:       jutting - half,
		upperJutt:       jutting + half,
	}
}

func (b *perceptionBuilder) SegmentAdded(_ *roadnet.SubNetwork, el roadnet.IterationElement) {
	id := el.Segment.ID()
	for _, eid := range b.w.mobileIndex.bucket(id) {
		if m, ok := b.w.mobiles.Get(eid); ok {
			b.cull(m, el, false)
		}
	}
	for _, eid := range b.w.staticIndex.bucket(id) {
		if e, ok := b.w.statics.Get(eid); ok {
			b.cull(e, el, true)
		}
	}
}

func (b *perceptionBuilder) cull(entity WorldEntity, el roadnet.IterationElement, static bool) {
	if entity.ID() == b.bodyID {
		return
	}
	base := entity.Base()
	bounds := base.Bounds()
	p := bounds.Center()

	distance := el.DistanceToReachSegment
	if el.EnteredViaBegin() {
		distance += p.Curviline
	} else {
		distance += el.Segment.Length() - p.Curviline
	}
	inFront := distance >= 0

	half := bounds.SizeX() / 2
	near, far := distance-half, distance+half
	// Straddling the eye is a contact.
	if (inFront && near < 0) || (!inFront && far > 0) {
		near = 0
	}

	along := model.ClassifyInterval(near, far, 0, b.forward)
	lateralHalf := bounds.LateralSize() / 2
	across := model.ClassifyInterval(p.Jutting-lateralHalf, p.Jutting+lateralHalf, b.lowerJutt, b.upperJutt)
	classification := along.And(across)
	if classification.IsOutside() {
		return
	}

	sameDirection := false
	if m, ok := entity.(MobileEntity); ok {
		sameDirection = m.Mobile().RoadEntry() == el.Point
	}
	b.list.add(CullingResult1D5{
		FrustumID:       b.frustumID,
		Classification:  classification,
		Entity:          entity,
		Distance:        math.Max(near, 0),
		LateralDistance: p.Jutting - b.observerJutting,
		InFront:         inFront,
		SameDirection:   sameDirection,
	}, static)
	b.results++
}
