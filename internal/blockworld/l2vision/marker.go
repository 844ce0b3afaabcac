package l2vision

import (
	"fmt"
	"sort"

	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"gonum.org/v1/gonum/spatial/r3"
)

// Timestamp is a robot clock reading in milliseconds.
type Timestamp uint32

// PoseKey identifies an entry in the robot's pose history.
type PoseKey int64

// MarkerCode names a decoded fiducial pattern.
type MarkerCode string

// ObservedMarker is one detection from one image. It lives for one tick.
type ObservedMarker struct {
	Code      MarkerCode
	Timestamp Timestamp
	PoseKey   PoseKey

	// ImageCorners are pixel coordinates in l1frames.Quad corner order.
	ImageCorners l1frames.Quad

	// PoseWrtCamera is the upstream estimate of the marker frame in the
	// camera frame at the time of the image.
	PoseWrtCamera l1frames.Transform

	// Used is set once an object has been built from this marker.
	Used bool
}

func (m *ObservedMarker) String() string {
	return fmt.Sprintf("%s@%d", m.Code, m.Timestamp)
}

// Distance returns the camera-to-marker distance.
func (m *ObservedMarker) Distance() float64 {
	return r3.Norm(m.PoseWrtCamera.Trans)
}

// MarkerGroup is all markers seen at one timestamp.
type MarkerGroup struct {
	Timestamp Timestamp
	Markers   []*ObservedMarker
}

// Unused returns the markers not yet consumed by any object.
func (g *MarkerGroup) Unused() []*ObservedMarker {
	out := make([]*ObservedMarker, 0, len(g.Markers))
	for _, m := range g.Markers {
		if !m.Used {
			out = append(out, m)
		}
	}
	return out
}

// MarkerQueue buffers observed markers between ticks. Not safe for
// concurrent use: one producer and the tick driver share a thread.
type MarkerQueue struct {
	markers []ObservedMarker
}

// Push appends a marker.
func (q *MarkerQueue) Push(m ObservedMarker) {
	q.markers = append(q.markers, m)
}

// Len returns the number of queued markers.
func (q *MarkerQueue) Len() int { return len(q.markers) }

// Clear drops everything queued.
func (q *MarkerQueue) Clear() { q.markers = q.markers[:0] }

// Groups returns the queue split by timestamp in ascending order. Markers
// keep their insertion order inside a group. The returned markers are
// copies; the queue itself is not modified.
func (q *MarkerQueue) Groups() []MarkerGroup {
	idx := make(map[Timestamp]int)
	var groups []MarkerGroup
	for i := range q.markers {
		m := q.markers[i]
		gi, ok := idx[m.Timestamp]
		if !ok {
			gi = len(groups)
			idx[m.Timestamp] = gi
			groups = append(groups, MarkerGroup{Timestamp: m.Timestamp})
		}
		groups[gi].Markers = append(groups[gi].Markers, &m)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Timestamp < groups[j].Timestamp })
	diagf("queue of %d markers split into %d timestamp groups", len(q.markers), len(groups))
	return groups
}

// RemoveMarkersWithinMarkers drops any marker whose four image corners all
// lie inside another marker from the same image.
func RemoveMarkersWithinMarkers(markers []*ObservedMarker) []*ObservedMarker {
	drop := make(map[int]bool)
	for i, outer := range markers {
		if drop[i] {
			continue
		}
		for j, inner := range markers {
			if i == j || drop[j] || inner.Timestamp != outer.Timestamp {
				continue
			}
			inside := true
			for _, c := range inner.ImageCorners {
				if !outer.ImageCorners.Contains(c) {
					inside = false
					break
				}
			}
			if inside {
				diagf("removing %s marker contained within %s marker", inner.Code, outer.Code)
				drop[j] = true
			}
		}
	}
	if len(drop) == 0 {
		return markers
	}
	kept := make([]*ObservedMarker, 0, len(markers)-len(drop))
	for i, m := range markers {
		if !drop[i] {
			kept = append(kept, m)
		}
	}
	return kept
}
