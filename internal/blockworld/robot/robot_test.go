package robot

import (
	"math"
	"testing"

	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l2vision"
	"github.com/banshee-data/blockworld/internal/blockworld/l3objects"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

func newSim(t *testing.T) (*l1frames.Arena, *Sim) {
	t.Helper()
	arena := l1frames.NewArena()
	return arena, NewSim(arena, l2vision.DefaultCalibration())
}

func TestSimStartsUnlocalized(t *testing.T) {
	t.Parallel()

	arena, s := newSim(t)
	assert.True(t, arena.IsOrigin(s.WorldOrigin()))
	assert.False(t, s.IsLocalized())
	assert.True(t, s.HasMovedSinceBeingLocalized())
	assert.Equal(t, l3objects.NoID, s.CarryingObject())
	assert.Equal(t, r3.Vec{X: BoundingX, Y: BoundingY, Z: BoundingZ}, s.Size())

	s.SetLocalizedTo(7)
	assert.True(t, s.IsLocalized())
	assert.False(t, s.HasMovedSinceBeingLocalized())

	s.Drive(l1frames.Translation(10, 0, 0))
	assert.True(t, s.HasMovedSinceBeingLocalized())
	assert.InDelta(t, 10, s.Pose().Trans.X, 1e-9)
}

func TestSimPoseHistory(t *testing.T) {
	t.Parallel()

	_, s := newSim(t)
	k1 := s.RecordPose()
	s.SetPose(l1frames.NewTransform(math.Pi/2, l1frames.ZAxis, r3.Vec{X: 100}))
	k2 := s.RecordPose()
	assert.NotEqual(t, k1, k2)

	p1, ok := s.PoseAt(k1)
	require.True(t, ok)
	assert.InDelta(t, 0, p1.Trans.X, 1e-9)

	cam, ok := s.CameraPoseAt(k2)
	require.True(t, ok)
	// The camera looks along the robot's heading (+Y after the turn).
	ahead := cam.Rotate(l1frames.ZAxis)
	assert.InDelta(t, 1, ahead.Y, 1e-9)
	assert.InDelta(t, 100, cam.Trans.X, 1e-9)
	assert.InDelta(t, CameraForward, cam.Trans.Y, 1e-9)
	assert.InDelta(t, CameraHeight, cam.Trans.Z, 1e-9)

	_, ok = s.PoseAt(99)
	assert.False(t, ok)

	s.ForgetPosesBefore(k2)
	_, ok = s.PoseAt(k1)
	assert.False(t, ok)
	_, ok = s.PoseAt(k2)
	assert.True(t, ok)
}

func TestSimLocalizeSameOrigin(t *testing.T) {
	t.Parallel()

	_, s := newSim(t)
	origin := s.WorldOrigin()
	s.SetPose(l1frames.Translation(100, 0, 0))

	seen := l1frames.Pose{Transform: l1frames.Translation(300, 0, 22), Parent: origin}
	existing := l1frames.Pose{Transform: l1frames.Translation(280, 10, 22), Parent: origin}
	change, err := s.LocalizeToObject(3, seen, existing)
	require.NoError(t, err)
	assert.False(t, change.Changed())
	assert.Equal(t, origin, s.WorldOrigin())
	assert.InDelta(t, 80, s.Pose().Trans.X, 1e-9)
	assert.InDelta(t, 10, s.Pose().Trans.Y, 1e-9)
	assert.Equal(t, l3objects.ObjectID(3), s.LocalizedTo())
	assert.False(t, s.HasMovedSinceBeingLocalized())
}

func TestSimLocalizeAcrossOrigins(t *testing.T) {
	t.Parallel()

	arena, s := newSim(t)
	old := s.WorldOrigin()
	s.Delocalize()
	newer := s.WorldOrigin()
	require.NotEqual(t, old, newer)

	// An object known at (500,0) in the first origin is seen 200mm ahead
	// in the second.
	seen := l1frames.Pose{Transform: l1frames.Translation(200, 0, 22), Parent: newer}
	existing := l1frames.Pose{Transform: l1frames.Translation(500, 0, 22), Parent: old}
	change, err := s.LocalizeToObject(4, seen, existing)
	require.NoError(t, err)
	assert.True(t, change.Changed())
	assert.Equal(t, newer, change.Old)
	assert.Equal(t, old, change.New)
	assert.Equal(t, old, s.WorldOrigin())
	assert.InDelta(t, 300, s.Pose().Trans.X, 1e-9)

	// Anything left under the retired origin now resolves into the new one.
	p, err := arena.WrtOrigin(l1frames.Pose{Transform: l1frames.Translation(50, 0, 0), Parent: newer})
	require.NoError(t, err)
	assert.Equal(t, old, p.Parent)
	assert.InDelta(t, 350, p.Trans.X, 1e-9)
	assert.False(t, arena.IsOrigin(newer))
}

func TestSimLocalizeRejectsForeignSighting(t *testing.T) {
	t.Parallel()

	arena, s := newSim(t)
	other := arena.AddOrigin("elsewhere")
	seen := l1frames.Pose{Transform: l1frames.Identity(), Parent: other}
	_, err := s.LocalizeToObject(1, seen, seen)
	assert.ErrorIs(t, err, l1frames.ErrNotConnected)
}

func TestSimSensors(t *testing.T) {
	t.Parallel()

	_, s := newSim(t)
	s.SetCarryingObject(5)
	s.SetDockingObject(6)
	s.SetOnRamp(true)
	s.SetPhysical(true)
	s.SetSkipVisionLocalization(true)
	s.SetCliff(true, r2.Vec{X: 1})

	assert.Equal(t, l3objects.ObjectID(5), s.CarryingObject())
	s.UnsetCarryingObject()
	assert.Equal(t, l3objects.NoID, s.CarryingObject())
	assert.Equal(t, l3objects.ObjectID(6), s.DockingObject())
	assert.True(t, s.IsOnRamp())
	assert.True(t, s.IsPhysical())
	assert.True(t, s.SkipVisionLocalization())
	cliff, dir := s.CliffDetected()
	assert.True(t, cliff)
	assert.Equal(t, r2.Vec{X: 1}, dir)
}
