package agents

import (
	"fmt"

	"github.com/signalsfoundry/roadsim/core"
	"github.com/signalsfoundry/roadsim/model"
	"github.com/signalsfoundry/roadsim/roadnet"
)

// Landmark is a static prop anchored to a segment: a sign, a parked car,
// a road works barrier.
type Landmark struct {
	*core.Entity1D5

	label string
}

// NewLandmark builds a landmark covering [minX, maxX] along seg. An interval
// overhanging the segment is shifted back onto it. An empty type defaults
// to LandmarkSemantic.
func NewLandmark(seg *roadnet.Segment, label string, typ model.Semantic, minX, maxX, jutting, width float64, opts ...core.EntityOption) (*Landmark, error) {
	if seg == nil {
		return nil, fmt.Errorf("landmark %q needs a road segment", label)
	}
	if width < 0 {
		return nil, fmt.Errorf("landmark %q has a negative width", label)
	}
	if typ == "" {
		typ = LandmarkSemantic
	}
	bounds := model.NewBoundingRect1D5(seg, minX, maxX, jutting, width)
	bounds.Clamp()
	return &Landmark{
		Entity1D5: core.NewEntity1D5(bounds, append([]core.EntityOption{core.WithType(typ)}, opts...)...),
		label:     label,
	}, nil
}

// Label returns the display name given in the scenario.
func (l *Landmark) Label() string { return l.label }
