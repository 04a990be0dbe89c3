package core

import (
	"github.com/signalsfoundry/roadsim/model"
	"github.com/signalsfoundry/roadsim/roadnet"
)

// PerceptionFilter restricts what an agent perceives. No filter kind is
// implemented yet; configuring one makes perception fail for that agent.
type PerceptionFilter interface {
	Name() string
}

// AgentBody1D5 is a mobile entity driven by an agent and equipped with
// sensors.
type AgentBody1D5 interface {
	MobileEntity
	Frustums() []*Frustum1D5
	PreferredDimension() model.Dimension
	PhysicalFilter() PerceptionFilter
	InterestFilter() PerceptionFilter
}

// Body1D5 is the default AgentBody1D5. Its frustums follow the body.
type Body1D5 struct {
	*MobileEntity1D5

	frustums  []*Frustum1D5
	dimension model.Dimension
	physical  PerceptionFilter
	interest  PerceptionFilter
}

// BodyOption customises a body.
type BodyOption func(*Body1D5)

// WithFrustums attaches sensors to the body.
func WithFrustums(frustums ...*Frustum1D5) BodyOption {
	return func(b *Body1D5) { b.frustums = append(b.frustums, frustums...) }
}

// WithPreferredDimension sets the dimensionality of the perceptions.
func WithPreferredDimension(d model.Dimension) BodyOption {
	return func(b *Body1D5) { b.dimension = d }
}

// WithPhysicalFilter sets the physical perception filter.
func WithPhysicalFilter(f PerceptionFilter) BodyOption {
	return func(b *Body1D5) { b.physical = f }
}

// WithInterestFilter sets the interest perception filter.
func WithInterestFilter(f PerceptionFilter) BodyOption {
	return func(b *Body1D5) { b.interest = f }
}

// NewBody1D5 builds a body on bounds, entered through entry.
func NewBody1D5(bounds model.Bounds1D5, entry *roadnet.Connection, entityOpts []EntityOption, opts ...BodyOption) *Body1D5 {
	b := &Body1D5{
		MobileEntity1D5: NewMobileEntity1D5(bounds, entry, entityOpts...),
		dimension:       model.Dimension1D5,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	for _, f := range b.frustums {
		f.Follow(b.MobileEntity1D5)
	}
	return b
}

// AddFrustum attaches another sensor.
func (b *Body1D5) AddFrustum(f *Frustum1D5) {
	b.frustums = append(b.frustums, f)
	f.Follow(b.MobileEntity1D5)
}

func (b *Body1D5) Frustums() []*Frustum1D5             { return append([]*Frustum1D5(nil), b.frustums...) }
func (b *Body1D5) PreferredDimension() model.Dimension { return b.dimension }
func (b *Body1D5) PhysicalFilter() PerceptionFilter    { return b.physical }
func (b *Body1D5) InterestFilter() PerceptionFilter    { return b.interest }
