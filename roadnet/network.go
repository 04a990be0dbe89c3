// Package roadnet holds the road-network graph that entities are
// constrained to: connections (graph nodes), segments (graph edges with a
// polyline geometry) and the distance-bounded traversal used by perception.
package roadnet

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

var (
	ErrConnectionExists   = errors.New("connection already exists")
	ErrConnectionNotFound = errors.New("connection not found")
	ErrSegmentExists      = errors.New("segment already exists")
	ErrSegmentNotFound    = errors.New("segment not found")
	ErrInvalidSegment     = errors.New("invalid segment")
)

// ConnectionID and SegmentID identify graph primitives inside a Network.
type (
	ConnectionID string
	SegmentID    string
)

// Connection is a graph node joining one or more segment endpoints.
type Connection struct {
	id       ConnectionID
	position orb.Point
	segments []*Segment
}

// ID returns the connection identifier.
func (c *Connection) ID() ConnectionID { return c.id }

// Position returns the 2D location of the connection.
func (c *Connection) Position() orb.Point { return c.position }

// Segments returns a copy of the segments attached to the connection.
func (c *Connection) Segments() []*Segment {
	return append([]*Segment(nil), c.segments...)
}

// SegmentCount is the number of segments attached to the connection.
func (c *Connection) SegmentCount() int { return len(c.segments) }

func (c *Connection) String() string {
	if c == nil {
		return "<nil>"
	}
	return string(c.id)
}

// Segment is a road segment between two connections. Curviline coordinates
// are measured from the begin connection.
type Segment struct {
	id      SegmentID
	begin   *Connection
	end     *Connection
	geom    orb.LineString
	geomLen float64
	length  float64
	wrapped *Segment
}

// ID returns the segment identifier.
func (s *Segment) ID() SegmentID { return s.id }

// Length is the curviline length of the segment.
func (s *Segment) Length() float64 { return s.length }

// BeginPoint is the connection at curviline 0.
func (s *Segment) BeginPoint() *Connection { return s.begin }

// EndPoint is the connection at curviline Length().
func (s *Segment) EndPoint() *Connection { return s.end }

// Geometry returns the polyline of the segment.
func (s *Segment) Geometry() orb.LineString { return s.geom.Clone() }

// OtherSidePoint returns the endpoint opposite to c, or nil when c is not an
// endpoint of the segment. For a loop segment both endpoints are the same
// connection and c itself is returned.
func (s *Segment) OtherSidePoint(c *Connection) *Connection {
	switch c {
	case nil:
		return nil
	case s.begin:
		return s.end
	case s.end:
		return s.begin
	default:
		return nil
	}
}

// HasEndpoint reports whether c is the begin or the end of the segment.
func (s *Segment) HasEndpoint(c *Connection) bool {
	return c != nil && (c == s.begin || c == s.end)
}

// IsFirstPointConnectedTo reports whether the begin connection of s is an
// endpoint of other.
func (s *Segment) IsFirstPointConnectedTo(other *Segment) bool {
	return other != nil && other.HasEndpoint(s.begin)
}

// IsLastPointConnectedTo reports whether the end connection of s is an
// endpoint of other.
func (s *Segment) IsLastPointConnectedTo(other *Segment) bool {
	return other != nil && other.HasEndpoint(s.end)
}

// SharedConnection returns a connection joining s and other, preferring the
// end of s. It returns nil when the segments are not adjacent.
func (s *Segment) SharedConnection(other *Segment) *Connection {
	switch {
	case s.IsLastPointConnectedTo(other):
		return s.end
	case s.IsFirstPointConnectedTo(other):
		return s.begin
	default:
		return nil
	}
}

// Wrapped returns the canonical segment this segment aliases, or the segment
// itself when it is canonical.
func (s *Segment) Wrapped() *Segment {
	if s.wrapped == nil {
		return s
	}
	return s.wrapped
}

// Canonical follows the wrapping chain until a canonical segment is reached.
func (s *Segment) Canonical() *Segment {
	seg := s
	for i := 0; ; i++ {
		next := seg.Wrapped()
		if next == seg || i > 64 {
			return seg
		}
		seg = next
	}
}

func (s *Segment) String() string {
	if s == nil {
		return "<nil>"
	}
	return string(s.id)
}

// Network is a registry of connections and segments. Reads are safe for
// concurrent use; topology changes take the write lock.
type Network struct {
	mu          sync.RWMutex
	name        string
	connections map[ConnectionID]*Connection
	segments    map[SegmentID]*Segment
}

// NewNetwork constructs an empty network.
func NewNetwork(name string) *Network {
	return &Network{
		name:        name,
		connections: make(map[ConnectionID]*Connection),
		segments:    make(map[SegmentID]*Segment),
	}
}

// Name returns the network name.
func (n *Network) Name() string { return n.name }

// AddConnection registers a new connection at the given 2D position.
func (n *Network) AddConnection(id ConnectionID, pos orb.Point) (*Connection, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.connections[id]; exists {
		return nil, fmt.Errorf("%w: %q", ErrConnectionExists, id)
	}
	c := &Connection{id: id, position: pos}
	n.connections[id] = c
	return c, nil
}

// SegmentOption customises segment creation.
type SegmentOption func(*Segment)

// WithPolyline sets intermediate geometry points between the begin and end
// connections.
func WithPolyline(points ...orb.Point) SegmentOption {
	return func(s *Segment) {
		ls := make(orb.LineString, 0, len(points)+2)
		ls = append(ls, s.begin.position)
		ls = append(ls, points...)
		ls = append(ls, s.end.position)
		s.geom = ls
	}
}

// WithLength overrides the curviline length. Geometry is stretched to match.
func WithLength(length float64) SegmentOption {
	return func(s *Segment) {
		s.length = length
	}
}

// AddSegment registers a segment from begin to end. The default geometry is
// the straight line between the two connections.
func (n *Network) AddSegment(id SegmentID, begin, end ConnectionID, opts ...SegmentOption) (*Segment, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.segments[id]; exists {
		return nil, fmt.Errorf("%w: %q", ErrSegmentExists, id)
	}
	b, ok := n.connections[begin]
	if !ok {
		return nil, fmt.Errorf("segment %q: %w: begin %q", id, ErrConnectionNotFound, begin)
	}
	e, ok := n.connections[end]
	if !ok {
		return nil, fmt.Errorf("segment %q: %w: end %q", id, ErrConnectionNotFound, end)
	}

	s := &Segment{
		id:     id,
		begin:  b,
		end:    e,
		geom:   orb.LineString{b.position, e.position},
		length: -1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.geomLen = planar.Length(s.geom)
	if s.length < 0 {
		s.length = s.geomLen
	}
	if s.length <= 0 {
		return nil, fmt.Errorf("%w: %q has no length", ErrInvalidSegment, id)
	}

	b.segments = append(b.segments, s)
	if e != b {
		e.segments = append(e.segments, s)
	}
	n.segments[id] = s
	return s, nil
}

// SetWrappedSegment declares alias as a wrapping segment of canonical.
func (n *Network) SetWrappedSegment(alias, canonical SegmentID) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	a, ok := n.segments[alias]
	if !ok {
		return fmt.Errorf("%w: %q", ErrSegmentNotFound, alias)
	}
	c, ok := n.segments[canonical]
	if !ok {
		return fmt.Errorf("%w: %q", ErrSegmentNotFound, canonical)
	}
	if c.Canonical() == a {
		return fmt.Errorf("%w: wrapping %q -> %q forms a cycle", ErrInvalidSegment, alias, canonical)
	}
	a.wrapped = c
	return nil
}

// Segment returns the segment with the given ID.
func (n *Network) Segment(id SegmentID) (*Segment, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	s, ok := n.segments[id]
	return s, ok
}

// Connection returns the connection with the given ID.
func (n *Network) Connection(id ConnectionID) (*Connection, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	c, ok := n.connections[id]
	return c, ok
}

// Contains reports whether s belongs to this network.
func (n *Network) Contains(s *Segment) bool {
	if s == nil {
		return false
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.segments[s.id] == s
}

// Segments returns all segments ordered by ID.
func (n *Network) Segments() []*Segment {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]*Segment, 0, len(n.segments))
	for _, s := range n.segments {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Connections returns all connections ordered by ID.
func (n *Network) Connections() []*Connection {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]*Connection, 0, len(n.connections))
	for _, c := range n.connections {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// SegmentCount returns the number of segments.
func (n *Network) SegmentCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.segments)
}
