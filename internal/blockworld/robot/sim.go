package robot

import (
	"fmt"

	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l2vision"
	"github.com/banshee-data/blockworld/internal/blockworld/l3objects"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Robot body dimensions, mm.
const (
	BoundingX = 88.0
	BoundingY = 54.0
	BoundingZ = 66.0

	// CameraHeight is the camera's height above the ground plane.
	CameraHeight = 40.0
	// CameraForward is the camera's offset ahead of the robot origin.
	CameraForward = 15.0
)

// Sim is a deterministic robot driven by explicit calls. It satisfies Oracle.
type Sim struct {
	arena  *l1frames.Arena
	origin l1frames.FrameID
	pose   l1frames.Transform

	history map[l2vision.PoseKey]l1frames.Pose
	nextKey l2vision.PoseKey

	camera      *l2vision.Camera
	cameraMount l1frames.Transform

	localizedTo l3objects.ObjectID
	moved       bool
	carrying    l3objects.ObjectID
	docking     l3objects.ObjectID

	lastImage                          l2vision.Timestamp
	pickedUp, pickingOrPlacing         bool
	onRamp, physical, skipLocalization bool
	cliff                              bool
	cliffDir                           r2.Vec
}

// NewSim returns a robot at the identity pose of a fresh origin in arena.
func NewSim(arena *l1frames.Arena, calib l2vision.Calibration) *Sim {
	s := &Sim{
		arena:       arena,
		history:     make(map[l2vision.PoseKey]l1frames.Pose),
		nextKey:     1,
		camera:      l2vision.NewCamera(calib),
		cameraMount: l2vision.ForwardLooking(0).Translated(r3.Vec{X: CameraForward, Z: CameraHeight}),
	}
	s.origin = arena.AddOrigin(originName())
	s.pose = l1frames.Identity()
	s.moved = true
	return s
}

func originName() string { return fmt.Sprintf("origin_%s", uuid.NewString()) }

// Pose returns the robot's current pose.
func (s *Sim) Pose() l1frames.Pose { return l1frames.Pose{Transform: s.pose, Parent: s.origin} }

// WorldOrigin returns the robot's current origin.
func (s *Sim) WorldOrigin() l1frames.FrameID { return s.origin }

// SetPose teleports the robot within its origin.
func (s *Sim) SetPose(t l1frames.Transform) {
	s.pose = t
	s.moved = true
}

// Drive moves the robot by delta expressed in its own frame.
func (s *Sim) Drive(delta l1frames.Transform) {
	s.SetPose(s.pose.Compose(delta))
}

// SetCameraMount changes where the camera sits on the robot.
func (s *Sim) SetCameraMount(t l1frames.Transform) { s.cameraMount = t }

// RecordPose stores the current pose in the history and returns its key.
func (s *Sim) RecordPose() l2vision.PoseKey {
	k := s.nextKey
	s.nextKey++
	s.history[k] = s.Pose()
	tracef("pose key %d = %v", k, s.pose)
	return k
}

// ForgetPosesBefore evicts history entries older than key.
func (s *Sim) ForgetPosesBefore(key l2vision.PoseKey) {
	for k := range s.history {
		if k < key {
			delete(s.history, k)
		}
	}
}

// PoseAt returns the recorded pose for key.
func (s *Sim) PoseAt(key l2vision.PoseKey) (l1frames.Pose, bool) {
	p, ok := s.history[key]
	return p, ok
}

// CameraPoseAt returns the camera pose at the time of key, expressed under
// the robot's current origin when the two are connected.
func (s *Sim) CameraPoseAt(key l2vision.PoseKey) (l1frames.Pose, bool) {
	p, ok := s.history[key]
	if !ok {
		return l1frames.Pose{}, false
	}
	if p.Parent != s.origin {
		moved, err := s.arena.WithRespectTo(p, s.origin)
		if err != nil {
			opsf("pose key %d is under an unconnected origin: %v", key, err)
			return l1frames.Pose{}, false
		}
		p = moved
	}
	return l1frames.Pose{Transform: p.Transform.Compose(s.cameraMount), Parent: p.Parent}, true
}

// Camera returns the robot's camera.
func (s *Sim) Camera() *l2vision.Camera {
	s.camera.Pose = l1frames.Pose{Transform: s.pose.Compose(s.cameraMount), Parent: s.origin}
	return s.camera
}

// Size returns the robot's bounding box.
func (s *Sim) Size() r3.Vec { return r3.Vec{X: BoundingX, Y: BoundingY, Z: BoundingZ} }

// IsLocalized reports whether the robot is anchored to an object.
func (s *Sim) IsLocalized() bool { return s.localizedTo.IsSet() }

// LocalizedTo returns the anchoring object.
func (s *Sim) LocalizedTo() l3objects.ObjectID { return s.localizedTo }

// SetLocalizedTo sets or (with NoID) clears the anchoring object.
func (s *Sim) SetLocalizedTo(id l3objects.ObjectID) {
	s.localizedTo = id
	if id.IsSet() {
		s.moved = false
	}
}

// HasMovedSinceBeingLocalized reports whether the robot moved since it last
// localized.
func (s *Sim) HasMovedSinceBeingLocalized() bool { return s.moved }

// Delocalize puts the robot in a brand-new origin, as after a pick-up.
func (s *Sim) Delocalize() {
	s.origin = s.arena.AddOrigin(originName())
	s.pose = l1frames.Identity()
	s.localizedTo = l3objects.NoID
	s.moved = true
	diagf("delocalized into origin %d", s.origin)
}

// LocalizeToObject implements Oracle.
func (s *Sim) LocalizeToObject(id l3objects.ObjectID, seen, existing l1frames.Pose) (OriginChange, error) {
	seenO, err := s.arena.WrtOrigin(seen)
	if err != nil {
		return OriginChange{}, fmt.Errorf("localize to %s: seen pose: %w", id, err)
	}
	existingO, err := s.arena.WrtOrigin(existing)
	if err != nil {
		return OriginChange{}, fmt.Errorf("localize to %s: existing pose: %w", id, err)
	}
	if seenO.Parent != s.origin {
		return OriginChange{}, fmt.Errorf("localize to %s: seen pose under origin %d, robot under %d: %w",
			id, seenO.Parent, s.origin, l1frames.ErrNotConnected)
	}

	// correction maps coordinates under the robot's origin onto the object's.
	correction := existingO.Transform.Compose(seenO.Transform.Inverse())
	change := OriginChange{Old: s.origin, New: existingO.Parent, OldToNew: correction}
	if change.Changed() {
		if err := s.arena.SetPose(s.origin, l1frames.Pose{Transform: correction, Parent: existingO.Parent}); err != nil {
			return OriginChange{}, fmt.Errorf("localize to %s: re-parent origin: %w", id, err)
		}
		diagf("origin %d re-parented under %d by %v", change.Old, change.New, correction)
		s.origin = existingO.Parent
	} else {
		// Poses recorded under the origin move with the correction so
		// that markers queued this tick project consistently.
		for k, p := range s.history {
			if p.Parent == s.origin {
				s.history[k] = l1frames.Pose{Transform: correction.Compose(p.Transform), Parent: p.Parent}
			}
		}
	}
	s.pose = correction.Compose(s.pose)
	s.SetLocalizedTo(id)
	return change, nil
}

// CarryingObject returns the object on the lift.
func (s *Sim) CarryingObject() l3objects.ObjectID { return s.carrying }

// SetCarryingObject puts an object on the lift.
func (s *Sim) SetCarryingObject(id l3objects.ObjectID) { s.carrying = id }

// UnsetCarryingObject empties the lift.
func (s *Sim) UnsetCarryingObject() { s.carrying = l3objects.NoID }

// DockingObject returns the object the robot is docking to.
func (s *Sim) DockingObject() l3objects.ObjectID { return s.docking }

// SetDockingObject sets the docking target.
func (s *Sim) SetDockingObject(id l3objects.ObjectID) { s.docking = id }

// IsOnRamp reports whether the robot is on a ramp.
func (s *Sim) IsOnRamp() bool { return s.onRamp }

// SetOnRamp marks the robot as on or off a ramp.
func (s *Sim) SetOnRamp(on bool) { s.onRamp = on }

// IsPhysical reports whether this is a real robot.
func (s *Sim) IsPhysical() bool { return s.physical }

// SetPhysical marks the robot as physical.
func (s *Sim) SetPhysical(on bool) { s.physical = on }

// SkipVisionLocalization reports the localization-skip test mode.
func (s *Sim) SkipVisionLocalization() bool { return s.skipLocalization }

// SetSkipVisionLocalization toggles the localization-skip test mode.
func (s *Sim) SetSkipVisionLocalization(on bool) { s.skipLocalization = on }

// CliffDetected reports the cliff sensor.
func (s *Sim) CliffDetected() (bool, r2.Vec) { return s.cliff, s.cliffDir }

// SetCliff sets the cliff sensor state.
func (s *Sim) SetCliff(detected bool, dir r2.Vec) {
	s.cliff, s.cliffDir = detected, dir
}

// LastImageTimestamp implements Oracle.
func (s *Sim) LastImageTimestamp() l2vision.Timestamp { return s.lastImage }

// SetLastImageTimestamp records that the camera delivered an image at ts.
func (s *Sim) SetLastImageTimestamp(ts l2vision.Timestamp) {
	if ts > s.lastImage {
		s.lastImage = ts
	}
}

// IsPickedUp reports whether the robot is off the ground.
func (s *Sim) IsPickedUp() bool { return s.pickedUp }

// SetPickedUp sets the picked-up state.
func (s *Sim) SetPickedUp(on bool) { s.pickedUp = on }

// IsPickingOrPlacing reports whether a lift action is under way.
func (s *Sim) IsPickingOrPlacing() bool { return s.pickingOrPlacing }

// SetPickingOrPlacing sets the lift action state.
func (s *Sim) SetPickingOrPlacing(on bool) { s.pickingOrPlacing = on }

var _ Oracle = (*Sim)(nil)
