package l6world

import (
	"fmt"

	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l2vision"
	"github.com/banshee-data/blockworld/internal/blockworld/l3objects"
)

// updateRobotPose localizes the robot to the mats seen in one image and
// records every flat mat it saw. Mat markers occlude whatever lies behind
// them for the rest of the tick.
func (w *World) updateRobotPose(markers []*l2vision.ObservedMarker, key l2vision.PoseKey, ts l2vision.Timestamp) error {
	camPose, ok := w.robot.CameraPoseAt(key)
	if !ok {
		return nil
	}
	seen := w.lib.CreateObjectsFromMarkers(l3objects.FamilyMat, markers, camPose)
	if len(seen) == 0 {
		return nil
	}
	cam := w.robot.Camera()
	for _, s := range seen {
		for _, m := range s.ObservedMarkers() {
			cam.AddMarkerOccluder(m)
		}
	}

	flat := make([]*l3objects.Object, 0, len(seen))
	for _, s := range seen {
		ok, err := s.IsFlat(w.cfg.MatFlatMaxTilt, w.cfg.MatFlatMaxAxisAngle)
		if err != nil || !ok {
			diagf("ignoring %s seen at a steep angle", s.Type())
			continue
		}
		flat = append(flat, s)
	}
	if len(flat) == 0 {
		return nil
	}

	chosen := w.chooseLocalizationMat(flat)
	err := w.localizeToMat(chosen, ts)
	for _, s := range flat {
		if s != chosen {
			w.recordMat(s, ts)
		}
	}
	return err
}

// chooseLocalizationMat prefers the mat the robot stands on, then the mat it
// is already localized to, then the closest one.
func (w *World) chooseLocalizationMat(flat []*l3objects.Object) *l3objects.Object {
	robotPose := w.robot.Pose()
	var on []*l3objects.Object
	for _, s := range flat {
		ok, err := s.IsPoseOn(robotPose, 0, w.cfg.RobotOnMatHeightTol)
		if err == nil && ok {
			on = append(on, s)
		}
	}
	if len(on) > 0 {
		if len(on) > 1 {
			opsf("robot appears to be on %d mats at once; using %s", len(on), on[0].Type())
		}
		return on[0]
	}
	if cur := w.reg.GetInFamily(w.robot.LocalizedTo(), l3objects.FamilyMat); cur != nil {
		for _, s := range flat {
			same, err := cur.IsSameAs(s, s.SameDistanceTolerance(), l3objects.DefaultSameAngleTolerance)
			if err == nil && same {
				return s
			}
		}
	}
	return flat[0]
}

// localizeToMat registers or refreshes the mat seen as s and localizes the
// robot to it once it is trusted. The very first mat becomes an origin of
// its own and is trusted immediately.
func (w *World) localizeToMat(s *l3objects.Object, ts l2vision.Timestamp) error {
	seenPose := s.Pose()
	if len(w.reg.ByFamily(l3objects.FamilyMat)) == 0 {
		if !w.reg.AdditionEnabled() {
			return nil
		}
		if err := s.SetPose(l1frames.Pose{Transform: l1frames.Identity()}, s.ObservationDistance(), l3objects.PoseKnown); err != nil {
			return fmt.Errorf("first mat: %w", err)
		}
		if _, err := w.reg.Add(s); err != nil {
			return fmt.Errorf("first mat: %w", err)
		}
		for s.NumTimesObserved() < w.cfg.MinTimesToObserve {
			s.SetLastObservedTime(ts)
		}
		diagf("first mat %s is a new origin", s)
		w.didChange = true
		w.markObserved(s)
		return w.localizeTo(s, seenPose)
	}

	existing := w.findMat(s)
	if existing == nil {
		w.addMat(s)
		return nil
	}
	existing.SetLastObservedTime(ts)
	existing.UpdateMarkerObservationTimes(s)
	w.markObserved(existing)
	if existing.NumTimesObserved() < w.cfg.MinTimesToObserve {
		return nil
	}
	return w.localizeTo(existing, seenPose)
}

// localizeTo corrects the robot so that mat, seen at seen, is where the
// registry says, migrating objects if the origin changes.
func (w *World) localizeTo(mat *l3objects.Object, seen l1frames.Pose) error {
	change, err := w.robot.LocalizeToObject(mat.ID(), seen, mat.FramePose())
	if err != nil {
		opsf("failed to localize to %s: %v", mat, err)
		return fmt.Errorf("localize to %s: %w", mat, err)
	}
	tracef("localized to %s", mat)
	if change.Changed() {
		return w.OriginChanged(change)
	}
	return nil
}

// recordMat refreshes or adds a flat mat that is not used for localization.
func (w *World) recordMat(s *l3objects.Object, ts l2vision.Timestamp) {
	existing := w.findMat(s)
	if existing == nil {
		w.addMat(s)
		return
	}
	existing.SetLastObservedTime(ts)
	existing.UpdateMarkerObservationTimes(s)
	w.markObserved(existing)
	if w.arena.IsOrigin(existing.Frame()) {
		// An origin mat does not move; the robot moves relative to it.
		return
	}
	p, err := w.arena.WithRespectTo(s.Pose(), existing.Pose().Parent)
	if err != nil {
		tracef("%s seen under another origin: %v", existing, err)
		return
	}
	if err := existing.SetPose(p, s.ObservationDistance(), l3objects.PoseKnown); err != nil {
		opsf("moving %s: %v", existing, err)
	}
	w.didChange = true
}

// findMat returns the registered mat s is a sighting of.
func (w *World) findMat(s *l3objects.Object) *l3objects.Object {
	f := l3objects.NewFilter().AllowFamily(l3objects.FamilyMat).AnyOrigin()
	return w.reg.FindClosestMatchingObject(s, s.SameDistanceTolerance(), l3objects.DefaultSameAngleTolerance, f)
}

// addMat registers a new mat under the robot's origin.
func (w *World) addMat(s *l3objects.Object) {
	if !w.reg.AdditionEnabled() {
		opsf("saw a new %s but adding objects is disabled", s.Type())
		return
	}
	p, err := w.arena.WrtOrigin(s.Pose())
	if err == nil {
		err = s.SetPose(p, s.ObservationDistance(), l3objects.PoseKnown)
	}
	if err == nil {
		_, err = w.reg.Add(s)
	}
	if err != nil {
		opsf("adding %s: %v", s.Type(), err)
		return
	}
	w.didChange = true
	w.markObserved(s)
}
