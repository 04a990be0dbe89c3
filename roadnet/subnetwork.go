package roadnet

// BuildListener is notified for every segment added to a SubNetwork while it
// is being built.
type BuildListener interface {
	SegmentAdded(sub *SubNetwork, el IterationElement)
}

// BuildListenerFunc adapts a function to a BuildListener.
type BuildListenerFunc func(sub *SubNetwork, el IterationElement)

// SegmentAdded calls f.
func (f BuildListenerFunc) SegmentAdded(sub *SubNetwork, el IterationElement) { f(sub, el) }

// SubNetwork is the set of segments reached by a traversal, kept in
// traversal order.
type SubNetwork struct {
	segments []*Segment
	elements map[*Segment]IterationElement
}

// NewSubNetwork returns an empty subnetwork.
func NewSubNetwork() *SubNetwork {
	return &SubNetwork{elements: make(map[*Segment]IterationElement)}
}

// Build drains it into the subnetwork, invoking listener (which may be nil)
// for every new segment.
func (sn *SubNetwork) Build(it *DepthIterator, listener BuildListener) {
	for el := range it.All() {
		if !sn.add(el) {
			continue
		}
		if listener != nil {
			listener.SegmentAdded(sn, el)
		}
	}
}

// Merge adds the segments of other that are not already present.
func (sn *SubNetwork) Merge(other *SubNetwork) {
	if other == nil {
		return
	}
	for _, s := range other.segments {
		sn.add(other.elements[s])
	}
}

func (sn *SubNetwork) add(el IterationElement) bool {
	if sn.elements == nil {
		sn.elements = make(map[*Segment]IterationElement)
	}
	if _, exists := sn.elements[el.Segment]; exists {
		return false
	}
	sn.elements[el.Segment] = el
	sn.segments = append(sn.segments, el.Segment)
	return true
}

// Segments returns the segments in the order they were added.
func (sn *SubNetwork) Segments() []*Segment {
	return append([]*Segment(nil), sn.segments...)
}

// Element returns how the traversal reached s.
func (sn *SubNetwork) Element(s *Segment) (IterationElement, bool) {
	el, ok := sn.elements[s]
	return el, ok
}

// Contains reports whether s is part of the subnetwork.
func (sn *SubNetwork) Contains(s *Segment) bool {
	_, ok := sn.elements[s]
	return ok
}

// Len returns the number of segments.
func (sn *SubNetwork) Len() int { return len(sn.segments) }
