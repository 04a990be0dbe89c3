package roadnet

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// GeoLocation projects a 1.5D coordinate onto the segment geometry. It
// returns the 2D point and the unit tangent at that point. Positive jutting
// is on the left of the begin-to-end direction. Curviline values outside
// [0, Length()] are clamped.
func (s *Segment) GeoLocation(curviline, jutting float64) (orb.Point, orb.Point) {
	if len(s.geom) == 0 {
		return orb.Point{}, orb.Point{1, 0}
	}
	if len(s.geom) == 1 || s.geomLen == 0 {
		return s.geom[0], orb.Point{1, 0}
	}

	c := math.Max(0, math.Min(curviline, s.length))
	target := c * s.geomLen / s.length

	walked := 0.0
	for i := 1; i < len(s.geom); i++ {
		a, b := s.geom[i-1], s.geom[i]
		step := planar.Distance(a, b)
		if step == 0 {
			continue
		}
		if walked+step >= target || i == len(s.geom)-1 {
			t := math.Min(1, (target-walked)/step)
			tx, ty := (b[0]-a[0])/step, (b[1]-a[1])/step
			p := orb.Point{
				a[0] + t*(b[0]-a[0]) - ty*jutting,
				a[1] + t*(b[1]-a[1]) + tx*jutting,
			}
			return p, orb.Point{tx, ty}
		}
		walked += step
	}
	return s.geom[len(s.geom)-1], orb.Point{1, 0}
}

// Bound returns the 2D bounding box of the segment geometry.
func (s *Segment) Bound() orb.Bound {
	return s.geom.Bound()
}
