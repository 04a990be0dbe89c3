package core

import (
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/signalsfoundry/roadsim/roadnet"
)

// Tags of the two per-segment entity tables.
const (
	StaticEntitiesTag = "StaticEntities"
	MobileEntitiesTag = "MobileEntities"
)

// segmentIndex maps each segment to the entities located on it. A segment
// is present only while its bucket is non-empty. Each entity sits in
// exactly one bucket; located remembers which.
type segmentIndex struct {
	tag     string
	buckets map[roadnet.SegmentID][]uuid.UUID
	located map[uuid.UUID]roadnet.SegmentID
}

func newSegmentIndex(tag string) *segmentIndex {
	return &segmentIndex{
		tag:     tag,
		buckets: make(map[roadnet.SegmentID][]uuid.UUID),
		located: make(map[uuid.UUID]roadnet.SegmentID),
	}
}

// add puts id in the bucket of seg, taking it out of its previous bucket.
func (ix *segmentIndex) add(seg roadnet.SegmentID, id uuid.UUID) {
	if prev, ok := ix.located[id]; ok {
		if prev == seg {
			return
		}
		ix.drop(prev, id)
	}
	ix.buckets[seg] = append(ix.buckets[seg], id)
	ix.located[id] = seg
}

// remove takes id out of the index and returns the segment it was on.
func (ix *segmentIndex) remove(id uuid.UUID) (roadnet.SegmentID, bool) {
	seg, ok := ix.located[id]
	if !ok {
		return "", false
	}
	delete(ix.located, id)
	ix.drop(seg, id)
	return seg, true
}

func (ix *segmentIndex) drop(seg roadnet.SegmentID, id uuid.UUID) {
	bucket := ix.buckets[seg]
	i := slices.Index(bucket, id)
	if i < 0 {
		return
	}
	bucket = slices.Delete(bucket, i, i+1)
	if len(bucket) == 0 {
		delete(ix.buckets, seg)
	} else {
		ix.buckets[seg] = bucket
	}
}

func (ix *segmentIndex) segmentOf(id uuid.UUID) (roadnet.SegmentID, bool) {
	seg, ok := ix.located[id]
	return seg, ok
}

func (ix *segmentIndex) bucket(seg roadnet.SegmentID) []uuid.UUID { return ix.buckets[seg] }

func (ix *segmentIndex) has(seg roadnet.SegmentID) bool {
	_, ok := ix.buckets[seg]
	return ok
}

// segments returns the non-empty segments in ID order.
func (ix *segmentIndex) segments() []roadnet.SegmentID {
	return slices.Sorted(maps.Keys(ix.buckets))
}

func (ix *segmentIndex) clear() {
	clear(ix.buckets)
	clear(ix.located)
}
