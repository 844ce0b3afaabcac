package l6world

import (
	"fmt"

	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l3objects"
	"github.com/banshee-data/blockworld/internal/blockworld/l4navmap"
	"gonum.org/v1/gonum/spatial/r2"
)

// AddProxObstacle records an obstacle found by the proximity sensor at p,
// the sensed point on the ground. It returns the new or refreshed object,
// or NoID when the point falls inside an object already known.
func (w *World) AddProxObstacle(p l1frames.Pose) (l3objects.ObjectID, error) {
	return w.addMarkerless(l3objects.TypeProxObstacle, p)
}

// AddCliff records a drop found by the cliff sensor at p, whose X axis
// points over the edge. The cliff is stamped into the memory map even when
// no object is added for it.
func (w *World) AddCliff(p l1frames.Pose) (l3objects.ObjectID, error) {
	id, err := w.addMarkerless(l3objects.TypeCliffDetection, p)
	if g := w.CurrentMemoryMap(); g != nil {
		if po, perr := w.arena.WithRespectTo(p, w.maps.CurrentOrigin()); perr == nil {
			centre := r2.Vec{X: po.Trans.X, Y: po.Trans.Y}
			q := l1frames.OrientedRect(centre, po.Yaw(), l3objects.CliffLength/2, l3objects.CliffWidth/2)
			dir := po.Rotate(l1frames.XAxis)
			g.AddQuad(q, l4navmap.Content{
				Type:           l4navmap.ContentCliff,
				CliffDirection: r2.Unit(r2.Vec{X: dir.X, Y: dir.Y}),
			})
		}
	}
	return id, err
}

func (w *World) addMarkerless(typ l3objects.Type, p l1frames.Pose) (l3objects.ObjectID, error) {
	po, err := w.arena.WithRespectTo(p, w.robot.WorldOrigin())
	if err != nil {
		opsf("%s pose is not under the robot's origin: %v", typ, err)
		return l3objects.NoID, fmt.Errorf("add %s: %w", typ, err)
	}
	obj, err := w.lib.New(typ, po)
	if err != nil {
		return l3objects.NoID, fmt.Errorf("add %s: %w", typ, err)
	}
	po.Trans.Z += obj.Size().Z / 2
	if err := obj.SetPose(po, -1, l3objects.PoseKnown); err != nil {
		return l3objects.NoID, fmt.Errorf("add %s: %w", typ, err)
	}
	ts := w.robot.LastImageTimestamp()

	markerless := l3objects.NewFilter().AllowFamily(l3objects.FamilyMarkerless)
	if match := w.reg.FindClosestMatchingObject(obj, obj.SameDistanceTolerance(), l3objects.DefaultSameAngleTolerance, markerless); match != nil {
		tracef("%s already known as %s", typ, match)
		if err := match.SetPose(po, -1, l3objects.PoseKnown); err != nil {
			opsf("refreshing %s: %v", match, err)
		}
		match.SetLastObservedTime(ts)
		return match.ID(), nil
	}

	others := l3objects.NewFilter().IgnoreFamily(l3objects.FamilyMarkerless).IgnoreID(w.robot.LocalizedTo())
	if hits := w.reg.FindIntersectingObjects(obj, 0, others); len(hits) > 0 {
		diagf("%s at (%.0f, %.0f) is inside %s; not adding", typ, po.Trans.X, po.Trans.Y, hits[0])
		return l3objects.NoID, nil
	}
	if !w.reg.AdditionEnabled() {
		opsf("saw a new %s but adding objects is disabled", typ)
		return l3objects.NoID, nil
	}

	// Sensor obstacles are trusted on first contact.
	for obj.NumTimesObserved() < w.cfg.MinTimesToObserve {
		obj.SetLastObservedTime(ts)
	}
	id, err := w.reg.Add(obj)
	if err != nil {
		opsf("adding %s: %v", typ, err)
		return l3objects.NoID, fmt.Errorf("add %s: %w", typ, err)
	}
	if typ == l3objects.TypeProxObstacle {
		w.stampObject(obj, l4navmap.ContentObstacleUnrecognized)
	}
	w.didChange = true
	diagf("added %s at (%.0f, %.0f)", obj, po.Trans.X, po.Trans.Y)
	return id, nil
}
