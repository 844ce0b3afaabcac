package l3objects

import (
	"fmt"

	"github.com/banshee-data/blockworld/internal/blockworld/l2vision"
)

// Timestamp is re-exported so callers of this layer need not import l2vision
// for the common case.
type Timestamp = l2vision.Timestamp

// ObjectID identifies an object for its whole lifetime. NoID is unset.
type ObjectID int32

// NoID is the unset object ID.
const NoID ObjectID = 0

// IsSet reports whether the ID has been assigned.
func (id ObjectID) IsSet() bool { return id > NoID }

func (id ObjectID) String() string {
	if !id.IsSet() {
		return "unset"
	}
	return fmt.Sprintf("%d", int32(id))
}

// Family is the coarse category an object belongs to.
type Family string

const (
	FamilyUnknown    Family = "unknown"
	FamilyBlock      Family = "block"
	FamilyLightCube  Family = "light_cube"
	FamilyMat        Family = "mat"
	FamilyRamp       Family = "ramp"
	FamilyCharger    Family = "charger"
	FamilyMarkerless Family = "markerless"
)

// Families lists every real family in a stable order.
var Families = []Family{
	FamilyBlock, FamilyLightCube, FamilyMat, FamilyRamp, FamilyCharger, FamilyMarkerless,
}

// Type is the fine-grained object type. Types are unique across families.
type Type string

const (
	TypeUnknown Type = "UNKNOWN"

	TypeLightCube1 Type = "LIGHTCUBE1"
	TypeLightCube2 Type = "LIGHTCUBE2"
	TypeLightCube3 Type = "LIGHTCUBE3"

	TypeBlockBullseye Type = "BLOCK_BULLSEYE"
	TypeBlockFire     Type = "BLOCK_FIRE"
	TypeBlockStar     Type = "BLOCK_STAR"

	TypeMatLetters4x4    Type = "MAT_LETTERS_4x4"
	TypeMatLargePlatform Type = "MAT_LARGE_PLATFORM"

	TypeRampBasic    Type = "RAMP_BASIC"
	TypeChargerBasic Type = "CHARGER_BASIC"

	TypeProxObstacle   Type = "PROX_OBSTACLE"
	TypeCliffDetection Type = "CLIFF_DETECTION"
)

// PoseState tracks how much an object's pose can be trusted.
type PoseState int

const (
	// PoseKnown means the pose came from a recent observation.
	PoseKnown PoseState = iota
	// PoseDirty means the pose was set indirectly and may have drifted.
	PoseDirty
	// PoseUnknown means the object is registered but its location is not.
	PoseUnknown
)

func (s PoseState) String() string {
	switch s {
	case PoseKnown:
		return "known"
	case PoseDirty:
		return "dirty"
	case PoseUnknown:
		return "unknown"
	}
	return fmt.Sprintf("PoseState(%d)", int(s))
}

// ActiveID is the radio slot of a connected active object. NoActiveID is unset.
type ActiveID int32

// NoActiveID means the object is not radio-connected.
const NoActiveID ActiveID = -1

// FactoryID is the hardware serial of an active object.
type FactoryID uint32

// IdentityState tracks radio identification of an active object.
type IdentityState int

const (
	// WaitingForIdentity means the object was seen but not yet paired with a radio.
	WaitingForIdentity IdentityState = iota
	// Identified means the object's radio identity is known.
	Identified
)

func (s IdentityState) String() string {
	if s == Identified {
		return "identified"
	}
	return "waiting_for_identity"
}
