package model

// IntersectionType classifies how a candidate interval relates to a
// reference interval. The declaration order is significant: And keeps the
// most restrictive classification.
type IntersectionType int

const (
	// Same: both intervals are identical.
	Same IntersectionType = iota
	// Enclosing: the candidate encloses the reference.
	Enclosing
	// Inside: the candidate is inside the reference.
	Inside
	// Spanning: the intervals partly overlap.
	Spanning
	// Outside: the intervals do not intersect.
	Outside
)

// And combines the classifications along two independent axes.
func (t IntersectionType) And(o IntersectionType) IntersectionType {
	if t == o {
		return t
	}
	if (t == Inside && o == Enclosing) || (t == Enclosing && o == Inside) {
		return Spanning
	}
	if t > o {
		return t
	}
	return o
}

// Or merges two classifications of the same candidate.
func (t IntersectionType) Or(o IntersectionType) IntersectionType {
	if t == o {
		return t
	}
	if t == Inside || o == Inside {
		return Inside
	}
	return Spanning
}

// Invert swaps the roles of the candidate and the reference.
func (t IntersectionType) Invert() IntersectionType {
	switch t {
	case Inside:
		return Enclosing
	case Enclosing:
		return Inside
	default:
		return t
	}
}

// IsOutside reports whether t is Outside.
func (t IntersectionType) IsOutside() bool { return t == Outside }

func (t IntersectionType) String() string {
	switch t {
	case Same:
		return "same"
	case Enclosing:
		return "enclosing"
	case Inside:
		return "inside"
	case Spanning:
		return "spanning"
	case Outside:
		return "outside"
	default:
		return "unknown"
	}
}

// ClassifyInterval classifies the candidate [l1, u1] against the reference
// [l2, u2]. Bounds are inclusive, so touching intervals are Spanning.
func ClassifyInterval(l1, u1, l2, u2 float64) IntersectionType {
	if l1 < l2 {
		switch {
		case u1 < l2:
			return Outside
		case u1 > u2:
			return Enclosing
		default:
			return Spanning
		}
	}
	switch {
	case u2 < l1:
		return Outside
	case u2 > u1:
		return Inside
	default:
		return Spanning
	}
}
