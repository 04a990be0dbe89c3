package roadnet

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chain builds c0 -(s1,10)- c1 -(s2,20)- c2 -(s3,30)- c3 where s3 is
// declared from c3 to c2.
func chain(t *testing.T) *Network {
	t.Helper()
	n := NewNetwork("chain")
	for id, x := range map[ConnectionID]float64{"c0": 0, "c1": 10, "c2": 30, "c3": 60} {
		_, err := n.AddConnection(id, orb.Point{x, 0})
		require.NoError(t, err)
	}
	_, err := n.AddSegment("s1", "c0", "c1")
	require.NoError(t, err)
	_, err = n.AddSegment("s2", "c1", "c2")
	require.NoError(t, err)
	_, err = n.AddSegment("s3", "c3", "c2")
	require.NoError(t, err)
	return n
}

func TestAddSegmentComputesLength(t *testing.T) {
	n := chain(t)
	s2, ok := n.Segment("s2")
	require.True(t, ok)
	assert.InDelta(t, 20.0, s2.Length(), 1e-9)
	assert.Equal(t, ConnectionID("c1"), s2.BeginPoint().ID())
	assert.Equal(t, ConnectionID("c2"), s2.EndPoint().ID())
	assert.True(t, n.Contains(s2))
}

func TestAddSegmentErrors(t *testing.T) {
	n := chain(t)

	_, err := n.AddSegment("s1", "c0", "c1")
	assert.ErrorIs(t, err, ErrSegmentExists)

	_, err = n.AddSegment("s9", "c0", "missing")
	assert.ErrorIs(t, err, ErrConnectionNotFound)

	_, err = n.AddConnection("c0", orb.Point{})
	assert.ErrorIs(t, err, ErrConnectionExists)

	_, err = n.AddConnection("c9", orb.Point{0, 0})
	require.NoError(t, err)
	_, err = n.AddSegment("degenerate", "c0", "c9")
	assert.ErrorIs(t, err, ErrInvalidSegment)
}

func TestWithLengthOverridesGeometry(t *testing.T) {
	n := chain(t)
	s, err := n.AddSegment("long", "c0", "c1", WithLength(40))
	require.NoError(t, err)
	assert.InDelta(t, 40.0, s.Length(), 1e-9)

	p, _ := s.GeoLocation(20, 0)
	assert.InDelta(t, 5.0, p[0], 1e-9)
}

func TestOtherSidePointAndAdjacency(t *testing.T) {
	n := chain(t)
	s1, _ := n.Segment("s1")
	s2, _ := n.Segment("s2")
	s3, _ := n.Segment("s3")
	c0, _ := n.Connection("c0")
	c1, _ := n.Connection("c1")
	c3, _ := n.Connection("c3")

	assert.Equal(t, c1, s1.OtherSidePoint(c0))
	assert.Equal(t, c0, s1.OtherSidePoint(c1))
	assert.Nil(t, s1.OtherSidePoint(c3))
	assert.Nil(t, s1.OtherSidePoint(nil))

	assert.True(t, s1.IsLastPointConnectedTo(s2))
	assert.False(t, s1.IsFirstPointConnectedTo(s2))
	assert.True(t, s2.IsLastPointConnectedTo(s3))
	assert.True(t, s3.IsLastPointConnectedTo(s2))
	assert.Equal(t, c1, s1.SharedConnection(s2))
	assert.Nil(t, s1.SharedConnection(s3))
	assert.Equal(t, 2, c1.SegmentCount())
}

func TestLoopSegment(t *testing.T) {
	n := NewNetwork("loop")
	_, err := n.AddConnection("a", orb.Point{0, 0})
	require.NoError(t, err)
	_, err = n.AddConnection("b", orb.Point{10, 0})
	require.NoError(t, err)
	loop, err := n.AddSegment("loop", "a", "a", WithPolyline(orb.Point{5, 5}, orb.Point{10, 0}, orb.Point{5, -5}))
	require.NoError(t, err)

	a, _ := n.Connection("a")
	assert.Equal(t, a, loop.OtherSidePoint(a))
	assert.Equal(t, 1, a.SegmentCount())
}

func TestWrappedSegments(t *testing.T) {
	n := chain(t)
	s1, _ := n.Segment("s1")
	s2, _ := n.Segment("s2")
	assert.Same(t, s1, s1.Wrapped())

	require.NoError(t, n.SetWrappedSegment("s1", "s2"))
	assert.Same(t, s2, s1.Wrapped())
	assert.Same(t, s2, s1.Canonical())

	assert.ErrorIs(t, n.SetWrappedSegment("s2", "s1"), ErrInvalidSegment)
	assert.ErrorIs(t, n.SetWrappedSegment("nope", "s1"), ErrSegmentNotFound)
}

func TestGeoLocation(t *testing.T) {
	n := chain(t)
	s1, _ := n.Segment("s1")

	p, tangent := s1.GeoLocation(4, 2)
	assert.InDelta(t, 4.0, p[0], 1e-9)
	assert.InDelta(t, 2.0, p[1], 1e-9)
	assert.Equal(t, orb.Point{1, 0}, tangent)

	p, _ = s1.GeoLocation(50, 0)
	assert.InDelta(t, 10.0, p[0], 1e-9)
}

func TestGeoLocationFollowsPolyline(t *testing.T) {
	n := NewNetwork("bend")
	_, err := n.AddConnection("a", orb.Point{0, 0})
	require.NoError(t, err)
	_, err = n.AddConnection("b", orb.Point{10, 10})
	require.NoError(t, err)
	s, err := n.AddSegment("bend", "a", "b", WithPolyline(orb.Point{10, 0}))
	require.NoError(t, err)
	assert.InDelta(t, 20.0, s.Length(), 1e-9)

	p, tangent := s.GeoLocation(15, 1)
	assert.InDelta(t, 9.0, p[0], 1e-9)
	assert.InDelta(t, 5.0, p[1], 1e-9)
	assert.InDelta(t, 0.0, tangent[0], 1e-9)
	assert.InDelta(t, 1.0, tangent[1], 1e-9)

	b := s.Bound()
	assert.Equal(t, orb.Point{0, 0}, b.Min)
	assert.Equal(t, orb.Point{10, 10}, b.Max)
}

func TestSegmentsSortedByID(t *testing.T) {
	n := chain(t)
	var ids []SegmentID
	for _, s := range n.Segments() {
		ids = append(ids, s.ID())
	}
	assert.Equal(t, []SegmentID{"s1", "s2", "s3"}, ids)
	assert.Len(t, n.Connections(), 4)
	assert.Equal(t, 3, n.SegmentCount())
}
