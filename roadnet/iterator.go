package roadnet

import (
	"container/heap"
	"iter"
)

// IterationElement is one segment reached by a DepthIterator. Point is the
// connection the traversal entered the segment through and
// DistanceToReachSegment is the distance from the iteration origin to that
// connection. The first element has a non-positive distance equal to minus
// the start offset.
type IterationElement struct {
	Segment                *Segment
	Point                  *Connection
	DistanceToReachSegment float64
}

// EnteredViaBegin reports whether the segment was entered at its begin
// connection.
func (e IterationElement) EnteredViaBegin() bool {
	return e.Point == e.Segment.BeginPoint()
}

// ExitPoint is the connection the traversal leaves the segment through.
func (e IterationElement) ExitPoint() *Connection {
	return e.Segment.OtherSidePoint(e.Point)
}

// DepthIterator visits segments in non-decreasing order of distance from an
// origin until the distance budget is exhausted. Each segment is yielded at
// most once.
type DepthIterator struct {
	maxDistance float64
	queue       elementQueue
	visited     map[*Segment]struct{}
	seq         int
}

// DepthIterator starts a traversal on start, startOffset away from the entry
// connection, and explores up to maxDistance. An entry that is not an
// endpoint of start defaults to its begin connection.
func (n *Network) DepthIterator(start *Segment, maxDistance, startOffset float64, entry *Connection) *DepthIterator {
	it := &DepthIterator{
		maxDistance: maxDistance,
		visited:     make(map[*Segment]struct{}),
	}
	if start == nil {
		return it
	}
	if !start.HasEndpoint(entry) {
		entry = start.BeginPoint()
	}
	it.push(IterationElement{Segment: start, Point: entry, DistanceToReachSegment: -startOffset})
	return it
}

// Next returns the next closest unvisited segment.
func (it *DepthIterator) Next() (IterationElement, bool) {
	for it.queue.Len() > 0 {
		item := heap.Pop(&it.queue).(queuedElement)
		el := item.element
		if _, seen := it.visited[el.Segment]; seen {
			continue
		}
		it.visited[el.Segment] = struct{}{}
		it.expand(el)
		return el, true
	}
	return IterationElement{}, false
}

// All yields the remaining elements in traversal order.
func (it *DepthIterator) All() iter.Seq[IterationElement] {
	return func(yield func(IterationElement) bool) {
		for {
			el, ok := it.Next()
			if !ok || !yield(el) {
				return
			}
		}
	}
}

func (it *DepthIterator) expand(el IterationElement) {
	exit := el.ExitPoint()
	if exit == nil {
		return
	}
	reach := el.DistanceToReachSegment + el.Segment.Length()
	if reach >= it.maxDistance {
		return
	}
	for _, next := range exit.segments {
		if _, seen := it.visited[next]; seen {
			continue
		}
		it.push(IterationElement{Segment: next, Point: exit, DistanceToReachSegment: reach})
	}
}

func (it *DepthIterator) push(el IterationElement) {
	heap.Push(&it.queue, queuedElement{element: el, seq: it.seq})
	it.seq++
}

type queuedElement struct {
	element IterationElement
	seq     int
}

type elementQueue []queuedElement

func (q elementQueue) Len() int { return len(q) }

func (q elementQueue) Less(i, j int) bool {
	di, dj := q[i].element.DistanceToReachSegment, q[j].element.DistanceToReachSegment
	if di != dj {
		return di < dj
	}
	return q[i].seq < q[j].seq
}

func (q elementQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *elementQueue) Push(x any) { *q = append(*q, x.(queuedElement)) }

func (q *elementQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
