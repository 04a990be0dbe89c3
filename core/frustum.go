package core

import (
	"github.com/google/uuid"

	"github.com/signalsfoundry/roadsim/model"
	"github.com/signalsfoundry/roadsim/roadnet"
)

// Frustum1D5 is a directional sensor volume on the road network. It looks
// ForwardDistance ahead of its eye in the direction given by its entry
// connection.
type Frustum1D5 struct {
	id          uuid.UUID
	forward     float64
	backward    float64
	lateralSize float64

	segment *roadnet.Segment
	entry   *roadnet.Connection
	eye     float64
	jutting float64
}

// FrustumOption customises a frustum.
type FrustumOption func(*Frustum1D5)

// WithFrustumID supplies the frustum identifier.
func WithFrustumID(id uuid.UUID) FrustumOption {
	return func(f *Frustum1D5) { f.id = id }
}

// WithLateralSize sets the width of the frustum. Without it the width of
// the observer is used.
func WithLateralSize(size float64) FrustumOption {
	return func(f *Frustum1D5) { f.lateralSize = size }
}

// NewFrustum1D5 builds a frustum that is not yet placed on the network.
func NewFrustum1D5(forward, backward float64, opts ...FrustumOption) *Frustum1D5 {
	f := &Frustum1D5{forward: forward, backward: backward}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	if f.id == uuid.Nil {
		f.id = uuid.New()
	}
	return f
}

// ID identifies the frustum in culling results.
func (f *Frustum1D5) ID() uuid.UUID { return f.id }

// ForwardDistance is how far ahead of the eye the frustum reaches.
func (f *Frustum1D5) ForwardDistance() float64 { return f.forward }

// BackwardDistance is the reach behind the eye. Culling only looks
// forward, so it is informational.
func (f *Frustum1D5) BackwardDistance() float64 { return f.backward }

// LateralSize is the full width of the frustum; zero means the observer
// width.
func (f *Frustum1D5) LateralSize() float64 { return f.lateralSize }

func (f *Frustum1D5) RoadSegment() *roadnet.Segment  { return f.segment }
func (f *Frustum1D5) RoadEntry() *roadnet.Connection { return f.entry }

// EyePosition is the position of the frustum origin.
func (f *Frustum1D5) EyePosition() model.Point1D5 {
	p := model.Point1D5{Curviline: f.eye, Jutting: f.jutting}
	if f.segment != nil {
		p.Segment = f.segment.ID()
	}
	return p
}

// HeadingPoint is the connection the frustum looks towards.
func (f *Frustum1D5) HeadingPoint() *roadnet.Connection {
	if f.segment == nil {
		return nil
	}
	return f.segment.OtherSidePoint(f.entry)
}

// SetPosition places the frustum eye. It has the PositionListener
// signature so that a frustum can follow a mobile entity.
func (f *Frustum1D5) SetPosition(seg *roadnet.Segment, entry *roadnet.Connection, curviline, jutting float64) {
	f.segment = seg
	f.entry = entry
	f.eye = curviline
	f.jutting = jutting
}

// Follow places the frustum on m and keeps it there as m moves.
func (f *Frustum1D5) Follow(m *MobileEntity1D5) {
	p := m.Position1D5()
	f.SetPosition(m.RoadSegment(), m.RoadEntry(), p.Curviline, p.Jutting)
	m.AddPositionListener(f.SetPosition)
}
