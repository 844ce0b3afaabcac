package l6world

import (
	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l2vision"
	"github.com/banshee-data/blockworld/internal/blockworld/l3objects"
)

// checkForUnobservedObjects looks at every object in the robot's origin that
// was not refreshed at ts and decides, from where the camera was at ts,
// whether its absence means anything.
func (w *World) checkForUnobservedObjects(ts l2vision.Timestamp, camPose l1frames.Pose) {
	if w.robot.IsPickedUp() {
		tracef("robot picked up; skipping unobserved sweep at t=%d", ts)
		return
	}
	cam := *w.robot.Camera()
	cam.Pose = camPose
	params := w.cfg.visibilityFor(&cam)
	timeout := w.cfg.identificationTimeout()

	var toDelete, toClear []*l3objects.Object
	for _, o := range w.reg.Find(l3objects.NewFilter()) {
		if !o.IsPoseStateKnown() || o.LastObservedTime() >= ts || o.ID() == w.robot.DockingObject() {
			continue
		}
		a, active := o.AsActive()
		connected := active && a.IsConnected()

		if o.NumTimesObserved() < w.cfg.MinTimesToObserve {
			if !connected {
				tracef("%s seen %d times and not since; treating as noise", o, o.NumTimesObserved())
				toDelete = append(toDelete, o)
			}
			continue
		}
		if active && a.Identity == l3objects.WaitingForIdentity && o.LastObservedTime()+timeout < ts {
			if !connected {
				opsf("%s was not identified within %v; deleting", o, w.cfg.IdentificationTimeout)
				toDelete = append(toDelete, o)
			}
			continue
		}

		v, err := o.CheckVisibility(&cam, params)
		if err != nil {
			tracef("visibility of %s: %v", o, err)
			continue
		}
		if v.Visible {
			if connected && w.observedWithActiveID(a.ID, o) {
				diagf("%s not seen but its radio ID %d was; deciding next tick", o, a.ID)
				continue
			}
			if n := o.MarkUnobserved(); n >= w.cfg.UnobservedFramesBeforeClear {
				diagf("%s should have been seen %d times and was not; clearing", o, n)
				toClear = append(toClear, o)
			}
			continue
		}
		o.ResetUnobserved()

		if v.Occluded || o.Family() == l3objects.FamilyMat || o.ID() == w.robot.CarryingObject() {
			continue
		}
		if w.isPartiallyVisible(o, &cam, ts) {
			w.BroadcastObservation(o, false)
		}
	}

	for _, o := range toDelete {
		w.DeleteObject(o.ID())
	}
	for _, o := range toClear {
		w.ClearObject(o.ID())
	}
}

// observedWithActiveID reports whether an object other than o resolved this
// tick carries the radio ID aid.
func (w *World) observedWithActiveID(aid l3objects.ActiveID, o *l3objects.Object) bool {
	for _, seen := range w.currentObserved {
		if seen == o {
			continue
		}
		if a, ok := seen.AsActive(); ok && a.ID == aid {
			return true
		}
	}
	return false
}

// isPartiallyVisible reports whether some of o's box lands in the image in
// front of the camera even though no marker could be read, subject to the
// optional recency and range limits.
func (w *World) isPartiallyVisible(o *l3objects.Object, cam *l2vision.Camera, ts l2vision.Timestamp) bool {
	pts, depth, err := o.ProjectedCorners(cam)
	if err != nil || depth <= 0 {
		return false
	}
	inFrame := false
	for _, p := range pts {
		if cam.InFrame(p, 0, 0) {
			inFrame = true
			break
		}
	}
	if !inFrame {
		return false
	}
	if w.cfg.PartialSeenWithin > 0 {
		window := l2vision.Timestamp(w.cfg.PartialSeenWithin.Milliseconds())
		if ts-o.LastObservedTime() > window {
			return false
		}
	}
	if w.cfg.PartialMaxDistance >= 0 {
		d, err := w.arena.Distance(cam.Pose, o.FramePose())
		if err != nil || d > w.cfg.PartialMaxDistance {
			return false
		}
	}
	return true
}
