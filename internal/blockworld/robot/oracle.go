package robot

import (
	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l2vision"
	"github.com/banshee-data/blockworld/internal/blockworld/l3objects"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// OriginChange describes a localization that moved the robot from one
// origin to another. Old has already been re-parented under New by OldToNew
// when the change is returned.
type OriginChange struct {
	Old, New l1frames.FrameID
	OldToNew l1frames.Transform
}

// Changed reports whether the origin actually changed.
func (c OriginChange) Changed() bool { return c.Old != c.New }

// Oracle is the robot as seen by the world model.
type Oracle interface {
	// Pose is the robot's current pose, parented to its world origin.
	Pose() l1frames.Pose
	WorldOrigin() l1frames.FrameID
	// PoseAt returns the historical robot pose recorded under key.
	PoseAt(key l2vision.PoseKey) (l1frames.Pose, bool)
	// CameraPoseAt returns the camera pose at the time of key.
	CameraPoseAt(key l2vision.PoseKey) (l1frames.Pose, bool)
	Camera() *l2vision.Camera
	// Size is the robot's bounding box, mm.
	Size() r3.Vec

	IsLocalized() bool
	LocalizedTo() l3objects.ObjectID
	SetLocalizedTo(id l3objects.ObjectID)
	HasMovedSinceBeingLocalized() bool
	// LocalizeToObject corrects the robot so that an object seen at seen
	// (under the robot's origin) is where existing (under its own origin)
	// says it is. When the origins differ the robot's origin is re-parented
	// under the object's and the change is returned.
	LocalizeToObject(id l3objects.ObjectID, seen, existing l1frames.Pose) (OriginChange, error)

	CarryingObject() l3objects.ObjectID
	UnsetCarryingObject()
	DockingObject() l3objects.ObjectID

	// LastImageTimestamp is the time of the most recent camera image,
	// whether or not anything was seen in it.
	LastImageTimestamp() l2vision.Timestamp
	IsPickedUp() bool
	IsPickingOrPlacing() bool
	IsOnRamp() bool
	IsPhysical() bool
	// SkipVisionLocalization is a test mode in which physical robots do not
	// localize to what they see.
	SkipVisionLocalization() bool

	// CliffDetected reports a cliff sensor trigger and the direction of the
	// drop in the robot frame.
	CliffDetected() (bool, r2.Vec)
}
