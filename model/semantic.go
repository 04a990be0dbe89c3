package model

// Semantic is a type tag attached to world entities ("vehicle",
// "pedestrian", "traffic-light", ...).
type Semantic string

// ObjectSemantic is the default type of an entity created without one.
const ObjectSemantic Semantic = "object"

// Dimension is the dimensionality an agent wants its perceptions in.
type Dimension int

const (
	Dimension1D Dimension = iota
	Dimension1D5
	Dimension2D
	Dimension2D5
	Dimension3D
)

func (d Dimension) String() string {
	switch d {
	case Dimension1D:
		return "1D"
	case Dimension1D5:
		return "1.5D"
	case Dimension2D:
		return "2D"
	case Dimension2D5:
		return "2.5D"
	case Dimension3D:
		return "3D"
	default:
		return "unknown"
	}
}

// ParseDimension maps the textual forms accepted in scenario files.
func ParseDimension(s string) (Dimension, bool) {
	switch s {
	case "1D", "1d":
		return Dimension1D, true
	case "1.5D", "1.5d", "1D5", "1d5", "":
		return Dimension1D5, true
	case "2D", "2d":
		return Dimension2D, true
	case "2.5D", "2.5d", "2D5", "2d5":
		return Dimension2D5, true
	case "3D", "3d":
		return Dimension3D, true
	default:
		return 0, false
	}
}
