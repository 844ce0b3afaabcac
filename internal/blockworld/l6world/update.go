package l6world

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/blockworld/internal/blockworld/events"
	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l2vision"
	"github.com/banshee-data/blockworld/internal/blockworld/l3objects"
	"github.com/banshee-data/blockworld/internal/blockworld/l4navmap"
	"gonum.org/v1/gonum/spatial/r2"
)

// familyOrder is the order object families are resolved in each group.
// Mats are handled first, separately, because they move the robot.
var familyOrder = []l3objects.Family{
	l3objects.FamilyLightCube,
	l3objects.FamilyBlock,
	l3objects.FamilyRamp,
	l3objects.FamilyCharger,
}

// QueueObservedMarker buffers a detection for the next Update. The marker
// is stamped with key, which must name a recorded robot pose.
func (w *World) QueueObservedMarker(key l2vision.PoseKey, m l2vision.ObservedMarker) error {
	if _, ok := w.robot.PoseAt(key); !ok {
		opsf("marker %s at t=%d refers to unknown pose key %d", m.Code, m.Timestamp, key)
		return fmt.Errorf("queue marker %s: key %d: %w", m.Code, key, ErrUnknownPoseKey)
	}
	m.PoseKey = key
	m.Used = false
	w.queue.Push(m)
	tracef("queued marker %s at t=%d", m.Code, m.Timestamp)
	return nil
}

// QueuedMarkers returns the number of markers waiting for Update.
func (w *World) QueuedMarkers() int { return w.queue.Len() }

// Update processes every queued marker, oldest timestamp first, and then
// clears the queue whatever happened. The returned error joins every
// family pass or migration that failed; state changed before a failure is
// kept.
func (w *World) Update() error {
	start := w.clock.Now()
	defer w.queue.Clear()

	w.robot.Camera().ClearOccluders()
	w.currentObserved = w.currentObserved[:0]
	w.didChange = false

	if w.cfg.EnableMapMemory && w.maps.CurrentOrigin() != w.robot.WorldOrigin() {
		w.CreateLocalizedMemoryMap(w.robot.WorldOrigin())
	}

	var errs []error
	numMarkers := w.queue.Len()
	groups := w.queue.Groups()
	ts := w.robot.LastImageTimestamp()
	for _, g := range groups {
		if err := w.processGroup(g); err != nil {
			errs = append(errs, err)
		}
		if g.Timestamp > ts {
			ts = g.Timestamp
		}
	}
	if len(groups) == 0 {
		// An image with nothing in it still shows what is not there.
		if cam, ok := w.currentCameraPose(); ok {
			w.checkForUnobservedObjects(ts, cam)
		}
	}

	if len(w.currentObserved) == 0 {
		w.bc.Broadcast(events.ObservedNothing{Timestamp: ts})
	}

	w.clearObjectsIntersectingRobot()

	err := errors.Join(errs...)
	if err != nil {
		opsf("update at t=%d: %v", ts, err)
	}
	if w.vis != nil {
		w.vis.Draw(w.Snapshot(ts))
	}
	if w.obs != nil {
		w.obs.ObserveTick(TickStats{
			Timestamp: ts,
			Markers:   numMarkers,
			Groups:    len(groups),
			Observed:  len(w.currentObserved),
			Objects:   w.reg.Len(),
			Duration:  w.clock.Since(start),
			Err:       err,
		})
	}
	return err
}

// processGroup handles the markers of one image.
func (w *World) processGroup(g l2vision.MarkerGroup) error {
	markers := make([]*l2vision.ObservedMarker, 0, len(g.Markers))
	for _, m := range l2vision.RemoveMarkersWithinMarkers(g.Markers) {
		if _, ok := w.robot.PoseAt(m.PoseKey); !ok {
			opsf("dropping marker %s: pose key %d no longer in history", m.Code, m.PoseKey)
			continue
		}
		markers = append(markers, m)
	}
	if len(markers) == 0 {
		// Nothing usable, but the image still shows what is not there.
		if cam, ok := w.currentCameraPose(); ok {
			w.checkForUnobservedObjects(g.Timestamp, cam)
		}
		return nil
	}
	key := markers[0].PoseKey
	tracef("group t=%d: %d markers at pose key %d", g.Timestamp, len(markers), key)

	var errs []error
	if !w.robot.IsOnRamp() && !(w.robot.IsPhysical() && w.robot.SkipVisionLocalization()) {
		if err := w.updateRobotPose(markers, key, g.Timestamp); err != nil {
			errs = append(errs, err)
		}
	}

	// Localizing may have moved the robot or its origin; re-read the camera.
	camPose, ok := w.robot.CameraPoseAt(key)
	if !ok {
		opsf("no camera pose for key %d after localizing", key)
		return errors.Join(errs...)
	}
	for _, fam := range familyOrder {
		cands := w.lib.CreateObjectsFromMarkers(fam, markers, camPose)
		if len(cands) == 0 {
			continue
		}
		if err := w.updateObjectPoses(cands, fam, g.Timestamp); err != nil {
			errs = append(errs, fmt.Errorf("%s pass at t=%d: %w", fam, g.Timestamp, err))
		}
	}
	for _, m := range markers {
		if !m.Used {
			opsf("marker %s at t=%d matched no object", m.Code, m.Timestamp)
		}
	}

	w.checkForUnobservedObjects(g.Timestamp, camPose)
	return errors.Join(errs...)
}

// updateObjectPoses brings candidates under the robot's origin, clears the
// ground between the robot and each seen marker, and resolves them.
func (w *World) updateObjectPoses(cands []*l3objects.Object, fam l3objects.Family, ts l2vision.Timestamp) error {
	origin := w.robot.WorldOrigin()
	for _, c := range cands {
		if c.Pose().Parent == origin {
			continue
		}
		p, err := w.arena.WithRespectTo(c.Pose(), origin)
		if err != nil {
			opsf("%s candidate is not under the robot's origin: %v", c.Type(), err)
			continue
		}
		if err := c.SetPose(p, -1, c.PoseState()); err != nil {
			opsf("re-parenting %s candidate: %v", c.Type(), err)
		}
	}
	if g := w.mapForRobot(); g != nil {
		for _, c := range cands {
			w.stampClearToMarkers(g, c)
		}
	}
	return w.resolver.AddAndUpdateObjects(cands, fam, ts)
}

// stampClearToMarkers marks the ground between the robot's front edge and
// the bottom edge of each of cand's seen markers as clear.
func (w *World) stampClearToMarkers(g *l4navmap.GridMap, cand *l3objects.Object) {
	rp, err := w.robotPoseWrtOrigin()
	if err != nil {
		return
	}
	cp, err := cand.PoseWrtOrigin()
	if err != nil || cp.Parent != rp.Parent {
		return
	}
	size := w.robot.Size()
	frontLeft := rp.ApplyXY(r2.Vec{X: size.X / 2, Y: size.Y / 2})
	frontRight := rp.ApplyXY(r2.Vec{X: size.X / 2, Y: -size.Y / 2})

	for _, km := range cand.Markers() {
		if km.LastObserved != cand.LastObservedTime() {
			continue
		}
		corners := km.Corners(cp.Compose(km.Pose))
		bl := r2.Vec{X: corners[l1frames.BottomLeft].X, Y: corners[l1frames.BottomLeft].Y}
		br := r2.Vec{X: corners[l1frames.BottomRight].X, Y: corners[l1frames.BottomRight].Y}
		pts := []r2.Vec{frontLeft, frontRight, bl, br}
		mid := r2.Scale(0.5, r2.Add(bl, br))
		dir := r2.Sub(mid, rp.ApplyXY(r2.Vec{}))
		yaw := 0.0
		if r2.Norm(dir) > 0 {
			yaw = math.Atan2(dir.Y, dir.X)
		}
		n := g.AddQuad(l1frames.BoundingQuad(pts, yaw), l4navmap.Content{Type: l4navmap.ContentClearOfObstacle})
		tracef("cleared %d cells towards marker %s", n, km.Code)
	}
}

// currentCameraPose is the camera pose at the robot's current pose.
func (w *World) currentCameraPose() (l1frames.Pose, bool) {
	cam := w.robot.Camera()
	if !cam.IsCalibrated() {
		return l1frames.Pose{}, false
	}
	return cam.Pose, true
}

// clearObjectsIntersectingRobot clears objects the robot's body now
// overlaps: the robot must have driven into them, so they are no longer
// where the registry says.
func (w *World) clearObjectsIntersectingRobot() {
	if w.robot.IsPickingOrPlacing() {
		return
	}
	rp, err := w.robotPoseWrtOrigin()
	if err != nil {
		return
	}
	size := w.robot.Size()
	pad := w.cfg.RobotBBoxPadding
	body := l1frames.OrientedRect(r2.Vec{X: rp.Trans.X, Y: rp.Trans.Y}, rp.Yaw(), size.X/2+pad, size.Y/2+pad)
	bottom, top := rp.Trans.Z, rp.Trans.Z+size.Z
	lastImage := w.robot.LastImageTimestamp()

	f := l3objects.NewFilter().IgnoreFamily(l3objects.FamilyMat, l3objects.FamilyMarkerless).
		IgnoreID(w.robot.CarryingObject(), w.robot.DockingObject())
	for _, o := range w.reg.Find(f) {
		if o.LastObservedTime() >= lastImage || !o.IsPoseStateKnown() {
			continue
		}
		lo, hi, err := o.HeightRange()
		if err != nil || hi < bottom || lo > top {
			continue
		}
		q, err := o.BoundingQuadXY(0)
		if err != nil || !q.Intersects(body) {
			continue
		}
		diagf("robot body overlaps %s; clearing it and anything stacked on it", o)
		w.ClearObject(o.ID())
	}
}
