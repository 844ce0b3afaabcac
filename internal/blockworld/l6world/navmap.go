package l6world

import (
	"math"

	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l2vision"
	"github.com/banshee-data/blockworld/internal/blockworld/l3objects"
	"github.com/banshee-data/blockworld/internal/blockworld/l4navmap"
	"gonum.org/v1/gonum/spatial/r2"
)

// CurrentMemoryMap returns the memory map of the current origin, or nil
// when map memory is disabled.
func (w *World) CurrentMemoryMap() *l4navmap.GridMap {
	if !w.cfg.EnableMapMemory {
		return nil
	}
	return w.maps.Current()
}

// CreateLocalizedMemoryMap makes origin's map current, creating it if
// needed. It returns nil when map memory is disabled.
func (w *World) CreateLocalizedMemoryMap(origin l1frames.FrameID) *l4navmap.GridMap {
	if !w.cfg.EnableMapMemory {
		return nil
	}
	return w.maps.CreateLocalized(origin)
}

// MemoryMaps returns every per-origin map.
func (w *World) MemoryMaps() *l4navmap.Maps { return w.maps }

// mapForRobot returns the current map if it is the robot's origin's.
func (w *World) mapForRobot() *l4navmap.GridMap {
	g := w.CurrentMemoryMap()
	if g == nil || w.maps.CurrentOrigin() != w.robot.WorldOrigin() {
		return nil
	}
	return g
}

// stampObject marks o's footprint in the current map when o lives in the
// map's origin.
func (w *World) stampObject(o *l3objects.Object, content l4navmap.ContentType) {
	g := w.CurrentMemoryMap()
	if g == nil || w.maps.CurrentOrigin() != o.Origin() {
		return
	}
	q, err := o.BoundingQuadXY(0)
	if err != nil {
		tracef("no footprint for %s: %v", o, err)
		return
	}
	n := g.AddQuad(q, l4navmap.Content{Type: content})
	tracef("stamped %s as %s over %d cells", o, content, n)
}

// UpdateNavMemoryMap stamps what the robot's own body and cliff sensor say
// about the ground: the footprint is clear, and the strip under the front
// edge is either a cliff or clear of one.
func (w *World) UpdateNavMemoryMap() {
	g := w.mapForRobot()
	if g == nil {
		return
	}
	rp, err := w.robotPoseWrtOrigin()
	if err != nil {
		return
	}
	size := w.robot.Size()
	yaw := rp.Yaw()
	centre := r2.Vec{X: rp.Trans.X, Y: rp.Trans.Y}

	front := rp.ApplyXY(r2.Vec{X: size.X / 2})
	cliffQuad := l1frames.OrientedRect(front, yaw, l3objects.ProxObstacleLength/2, l3objects.ProxObstacleWidth/2)
	if detected, dir := w.robot.CliffDetected(); detected {
		s, c := math.Sincos(yaw)
		world := r2.Vec{X: c*dir.X - s*dir.Y, Y: s*dir.X + c*dir.Y}
		if r2.Norm(world) > 0 {
			world = r2.Unit(world)
		}
		g.AddQuad(cliffQuad, l4navmap.Content{Type: l4navmap.ContentCliff, CliffDirection: world})
	} else {
		g.AddQuad(cliffQuad, l4navmap.Content{Type: l4navmap.ContentClearOfCliff})
	}

	body := l1frames.OrientedRect(centre, yaw, size.X/2, size.Y/2)
	g.AddQuad(body, l4navmap.Content{Type: l4navmap.ContentClearOfObstacle})
}

// ProcessVisionOverheadEdges folds one frame of ground-plane edges into the
// current map: the ground between the camera and each edge is clear, and
// border edges are interesting. The frame is in robot coordinates at the
// robot's current pose. Frames without a valid ground plane are ignored.
func (w *World) ProcessVisionOverheadEdges(frame *l2vision.OverheadEdgeFrame) {
	if frame == nil || !frame.GroundPlaneValid {
		return
	}
	g := w.mapForRobot()
	if g == nil {
		return
	}
	rp, err := w.robotPoseWrtOrigin()
	if err != nil {
		return
	}
	camWrtRobot, err := w.arena.PoseWrtPose(w.robot.Camera().Pose, w.robot.Pose())
	if err != nil {
		opsf("camera is not connected to the robot: %v", err)
		return
	}
	cam := r2.Vec{X: camWrtRobot.Trans.X, Y: camWrtRobot.Trans.Y}

	quads := l4navmap.OverheadEdgeQuads(frame, cam, w.cfg.Edges)
	for _, q := range quads.Clear {
		g.AddQuad(q.Transform(rp.Transform), l4navmap.Content{Type: l4navmap.ContentClearOfObstacle})
	}
	for _, q := range quads.Borders {
		g.AddQuad(q.Transform(rp.Transform), l4navmap.Content{Type: l4navmap.ContentInterestingEdge})
	}
	tracef("overhead edges at t=%d: %d clear, %d border quads", frame.Timestamp, len(quads.Clear), len(quads.Borders))
}
