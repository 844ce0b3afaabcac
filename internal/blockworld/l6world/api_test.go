package l6world

import (
	"testing"

	"github.com/banshee-data/blockworld/internal/blockworld/events"
	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l2vision"
	"github.com/banshee-data/blockworld/internal/blockworld/l3objects"
	"github.com/banshee-data/blockworld/internal/blockworld/l4navmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

func withMaps(c *Config) { c.EnableMapMemory = true }

func (f *fixture) at(x, y, z float64) l1frames.Pose {
	return l1frames.Pose{Transform: l1frames.Translation(x, y, z), Parent: f.sim.WorldOrigin()}
}

// ---------------------------------------------------------------------------
// Clearing and deleting
// ---------------------------------------------------------------------------

func TestClearKeepsObjectDeleteRemovesIt(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	a := f.add(t, l3objects.TypeBlockFire, 300, 0, 22, 10)
	b := f.add(t, l3objects.TypeBlockStar, 300, 200, 22, 10)

	require.True(t, f.w.ClearObject(a.ID()))
	assert.Equal(t, l3objects.PoseUnknown, a.PoseState())
	assert.Same(t, a, f.w.GetObjectByID(a.ID()))
	assert.Len(t, f.rec.PoseUnknowns(a.ID()), 1)

	// Clearing again reports nothing new.
	require.True(t, f.w.ClearObject(a.ID()))
	assert.Len(t, f.rec.PoseUnknowns(a.ID()), 1)

	require.True(t, f.w.DeleteObject(b.ID()))
	assert.Nil(t, f.w.GetObjectByID(b.ID()))
	assert.Len(t, f.rec.PoseUnknowns(b.ID()), 1)
	assert.Equal(t, 1, f.w.Registry().Len())

	assert.False(t, f.w.DeleteObject(b.ID()))
	assert.False(t, f.w.ClearObject(l3objects.ObjectID(999)))
	assert.NoError(t, f.w.Registry().CheckInvariants())
}

func TestClearingBaseClearsStack(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	bottom := f.add(t, l3objects.TypeBlockFire, 300, 0, 22, 10)
	top := f.add(t, l3objects.TypeBlockStar, 300, 0, 66, 10)
	aside := f.add(t, l3objects.TypeBlockBullseye, 300, 200, 22, 10)
	f.sim.SetLocalizedTo(bottom.ID())

	require.True(t, f.w.ClearObject(bottom.ID()))
	assert.False(t, bottom.IsPoseStateKnown())
	assert.False(t, top.IsPoseStateKnown())
	assert.True(t, aside.IsPoseStateKnown())
	assert.False(t, f.sim.IsLocalized(), "clearing the object the robot is localized to delocalizes it")
	assert.Equal(t, 2, f.rec.Count(events.KindPoseUnknown))
}

func TestDeletionDisabled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(c *Config) { c.MinTimesToObserve = 2 })
	confirmed := f.add(t, l3objects.TypeBlockFire, 300, 0, 22, 10)

	unconfirmed, err := f.w.Library().New(l3objects.TypeBlockStar, f.at(300, 200, 22))
	require.NoError(t, err)
	unconfirmed.SetLastObservedTime(10)
	_, err = f.w.Registry().Add(unconfirmed)
	require.NoError(t, err)
	require.False(t, unconfirmed.IsExistenceConfirmed())

	f.w.EnableObjectDeletion(false)
	assert.False(t, f.w.ClearObject(confirmed.ID()))
	assert.False(t, f.w.DeleteObject(confirmed.ID()))
	assert.True(t, confirmed.IsPoseStateKnown())
	assert.True(t, f.w.DeleteObject(unconfirmed.ID()), "unconfirmed objects can always go")

	f.w.EnableObjectDeletion(true)
	assert.True(t, f.w.DeleteObject(confirmed.ID()))
	assert.Zero(t, f.w.Registry().Len())
}

func TestBulkClearAndDelete(t *testing.T) {
	t.Parallel()

	f := newFixture(t, withMaps)
	f.add(t, l3objects.TypeBlockFire, 300, 0, 22, 10)
	f.add(t, l3objects.TypeBlockStar, 300, 200, 22, 10)
	f.add(t, l3objects.TypeChargerBasic, -300, 0, l3objects.ChargerHeight/2, 10)

	assert.Equal(t, 1, f.w.ClearObjectsByType(l3objects.TypeBlockStar))
	assert.Equal(t, 2, f.w.ClearObjectsByFamily(l3objects.FamilyBlock))
	assert.Equal(t, 1, f.w.DeleteObjectsByFamily(l3objects.FamilyCharger))
	assert.Equal(t, 2, f.w.ClearAllObjects())
	assert.Equal(t, 1, f.w.DeleteObjectsByType(l3objects.TypeBlockFire))

	f.w.CurrentMemoryMap().AddQuad(l1frames.OrientedRect(r2.Vec{}, 0, 50, 50), l4navmap.Content{Type: l4navmap.ContentClearOfObstacle})
	assert.Equal(t, 1, f.w.DeleteAllObjects())
	assert.Zero(t, f.w.Registry().Len())
	assert.Zero(t, f.w.CurrentMemoryMap().Len())
	assert.Equal(t, f.sim.WorldOrigin(), f.w.MemoryMaps().CurrentOrigin())
}

// ---------------------------------------------------------------------------
// Origins
// ---------------------------------------------------------------------------

func TestUpdateObjectOriginsMigratesObjectsAndMap(t *testing.T) {
	t.Parallel()

	f := newFixture(t, withMaps)
	oldOrigin := f.sim.WorldOrigin()
	o := f.add(t, l3objects.TypeBlockFire, 100, 0, 22, 10)
	f.w.CurrentMemoryMap().AddQuad(l1frames.OrientedRect(r2.Vec{X: 105, Y: 5}, 0, 5, 5), l4navmap.Content{Type: l4navmap.ContentObstacleCube})

	newOrigin := f.arena.AddOrigin("elsewhere")
	require.NoError(t, f.arena.SetPose(oldOrigin, l1frames.Pose{Transform: l1frames.Translation(1000, 0, 0), Parent: newOrigin}))
	f.w.CreateLocalizedMemoryMap(newOrigin)

	require.NoError(t, f.w.UpdateObjectOrigins(oldOrigin, newOrigin))
	assert.Equal(t, newOrigin, o.Pose().Parent)
	vecNear(t, r3.Vec{X: 1100, Z: 22}, o.Pose().Trans, 1e-9)

	g, ok := f.w.MemoryMaps().Get(newOrigin)
	require.True(t, ok)
	assert.Equal(t, l4navmap.ContentObstacleCube, g.ContentAt(r2.Vec{X: 1105, Y: 5}).Type)
	_, ok = f.w.MemoryMaps().Get(oldOrigin)
	assert.False(t, ok)

	merged := f.rec.OfKind(events.KindOriginsMerged)
	require.Len(t, merged, 1)
	ev := merged[0].(events.OriginsMerged)
	assert.Equal(t, []l3objects.ObjectID{o.ID()}, ev.Migrated)
	assert.Empty(t, ev.Failed)
	assert.Len(t, f.rec.Observed(o.ID()), 1, "migrated objects are re-reported")

	assert.NoError(t, f.w.UpdateObjectOrigins(newOrigin, newOrigin))
}

func TestUpdateObjectOriginsMissingMap(t *testing.T) {
	t.Parallel()

	f := newFixture(t, withMaps)
	stray := f.arena.AddOrigin("stray")
	newOrigin := f.arena.AddOrigin("elsewhere")
	require.NoError(t, f.arena.SetPose(stray, l1frames.Pose{Transform: l1frames.Identity(), Parent: newOrigin}))

	err := f.w.UpdateObjectOrigins(stray, newOrigin)
	require.Error(t, err)
	assert.ErrorIs(t, err, l3objects.ErrInvariant)
	assert.ErrorIs(t, err, l4navmap.ErrMissingMap)
}

func TestUpdateObjectOriginsUnconnectedRetiresOldMap(t *testing.T) {
	t.Parallel()

	f := newFixture(t, withMaps)
	oldOrigin := f.sim.WorldOrigin()
	f.w.CurrentMemoryMap().AddQuad(l1frames.OrientedRect(r2.Vec{X: 50}, 0, 5, 5), l4navmap.Content{Type: l4navmap.ContentObstacleCube})
	unconnected := f.arena.AddOrigin("unconnected")

	require.Error(t, f.w.UpdateObjectOrigins(oldOrigin, unconnected))
	_, ok := f.w.MemoryMaps().Get(oldOrigin)
	assert.False(t, ok)
	assert.Equal(t, unconnected, f.w.MemoryMaps().CurrentOrigin())
	assert.Equal(t, 1, f.w.MemoryMaps().Len())
}

func TestUpdateObjectOriginsUnknownOrigin(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	err := f.w.UpdateObjectOrigins(f.sim.WorldOrigin(), l1frames.FrameID(12345))
	assert.ErrorIs(t, err, ErrUnknownOrigin)
	assert.Zero(t, f.rec.Count(events.KindOriginsMerged))
}

// ---------------------------------------------------------------------------
// Markerless obstacles
// ---------------------------------------------------------------------------

func TestAddProxObstacle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, withMaps)
	id, err := f.w.AddProxObstacle(f.at(150, 0, 0))
	require.NoError(t, err)
	require.True(t, id.IsSet())

	o := f.w.GetObjectByID(id)
	require.NotNil(t, o)
	assert.True(t, o.IsExistenceConfirmed())
	assert.InDelta(t, l3objects.ProxObstacleHeight/2, o.Pose().Trans.Z, 1e-9)
	assert.Equal(t, l4navmap.ContentObstacleUnrecognized, f.w.CurrentMemoryMap().ContentAt(r2.Vec{X: 150, Y: 2}).Type)

	again, err := f.w.AddProxObstacle(f.at(151, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Len(t, f.w.GetObjectsByFamily(l3objects.FamilyMarkerless), 1)
}

func TestProxObstacleInsideKnownObjectIsIgnored(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.add(t, l3objects.TypeBlockFire, 300, 0, 22, 10)

	id, err := f.w.AddProxObstacle(f.at(300, 0, 0))
	require.NoError(t, err)
	assert.False(t, id.IsSet())
	assert.Empty(t, f.w.GetObjectsByFamily(l3objects.FamilyMarkerless))
}

func TestAddCliffStampsMap(t *testing.T) {
	t.Parallel()

	f := newFixture(t, withMaps)
	id, err := f.w.AddCliff(f.at(63, 0, 0))
	require.NoError(t, err)
	require.True(t, id.IsSet())
	assert.Equal(t, l3objects.TypeCliffDetection, f.w.GetObjectByID(id).Type())

	c := f.w.CurrentMemoryMap().ContentAt(r2.Vec{X: 63, Y: 2})
	assert.Equal(t, l4navmap.ContentCliff, c.Type)
	assert.InDelta(t, 1, c.CliffDirection.X, 1e-9)
}

// ---------------------------------------------------------------------------
// Active objects
// ---------------------------------------------------------------------------

func TestAddActiveObject(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	assert.False(t, f.w.AddActiveObject(MaxActiveID+1, 0xa, l3objects.TypeLightCube1).IsSet())
	assert.False(t, f.w.AddActiveObject(1, 0xa, l3objects.TypeBlockFire).IsSet())

	id := f.w.AddActiveObject(1, 0xa, l3objects.TypeLightCube1)
	require.True(t, id.IsSet())
	o := f.w.GetObjectByID(id)
	assert.Equal(t, l3objects.PoseUnknown, o.PoseState())
	a, ok := o.AsActive()
	require.True(t, ok)
	assert.Equal(t, l3objects.FactoryID(0xa), a.Factory)
	assert.Equal(t, l3objects.Identified, a.Identity)
	assert.Same(t, o, f.w.GetActiveObjectByActiveID(1))

	assert.Equal(t, id, f.w.AddActiveObject(1, 0xa, l3objects.TypeLightCube1), "reconnecting is idempotent")
	assert.False(t, f.w.AddActiveObject(2, 0xb, l3objects.TypeLightCube1).IsSet(), "type already paired with another device")

	// The slot now belongs to a different cube.
	other := f.w.AddActiveObject(1, 0xc, l3objects.TypeLightCube3)
	require.True(t, other.IsSet())
	assert.Nil(t, f.w.GetObjectByID(id))
	assert.Equal(t, l3objects.TypeLightCube3, f.w.GetActiveObjectByActiveID(1).Type())
	assert.Equal(t, 1, f.w.Registry().Len())
}

func TestAddActiveObjectAdditionDisabled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.w.EnableObjectAddition(false)
	assert.False(t, f.w.AddActiveObject(0, 0xa, l3objects.TypeChargerBasic).IsSet())
	assert.Zero(t, f.w.Registry().Len())
}

// ---------------------------------------------------------------------------
// Selection and queries
// ---------------------------------------------------------------------------

func TestCycleSelectedObject(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	assert.Nil(t, f.w.CycleSelectedObject())

	a := f.add(t, l3objects.TypeBlockFire, 300, 0, 22, 10)
	b := f.add(t, l3objects.TypeBlockStar, 300, 200, 22, 10)
	c := f.add(t, l3objects.TypeBlockBullseye, 300, -200, 22, 10)
	_, err := f.w.AddProxObstacle(f.at(-200, 0, 0))
	require.NoError(t, err)
	f.sim.SetCarryingObject(c.ID())

	assert.Same(t, a, f.w.CycleSelectedObject())
	assert.Same(t, b, f.w.CycleSelectedObject())
	assert.Same(t, a, f.w.CycleSelectedObject(), "wraps past the carried cube and the obstacle")
	assert.Same(t, a, f.w.GetSelectedObject())
	assert.False(t, b.IsSelected())

	require.True(t, f.w.SelectObject(b.ID()))
	assert.False(t, a.IsSelected())
	f.w.DeselectCurrentObject()
	assert.Nil(t, f.w.GetSelectedObject())
	assert.False(t, f.w.SelectObject(l3objects.ObjectID(999)))
}

func TestGetObstaclesSkipsCarriedObject(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	carried := f.add(t, l3objects.TypeBlockFire, 0, 0, 22, 10)
	f.add(t, l3objects.TypeBlockStar, 300, 0, 22, 10)
	f.add(t, l3objects.TypeBlockBullseye, 300, 200, 200, 10) // overhead
	f.sim.SetCarryingObject(carried.ID())

	obstacles := f.w.GetObstacles(0)
	require.Len(t, obstacles, 1)
	assert.True(t, obstacles[0].Contains(r2.Vec{X: 300, Y: 0}))

	all := f.w.GetObjectBoundingBoxesXY(0, 1000, 5, l3objects.NewFilter())
	assert.Len(t, all, 3)
}

func TestAnyRemainingLocalizableObjects(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.add(t, l3objects.TypeBlockFire, 300, 0, 22, 10)
	f.add(t, l3objects.TypeChargerBasic, -300, 0, l3objects.ChargerHeight/2, 10)
	assert.False(t, f.w.AnyRemainingLocalizableObjects())

	cube := f.add(t, l3objects.TypeLightCube1, 300, 200, 22, 10)
	assert.True(t, f.w.AnyRemainingLocalizableObjects())

	f.w.ClearObject(cube.ID())
	assert.False(t, f.w.AnyRemainingLocalizableObjects())
}

// ---------------------------------------------------------------------------
// Memory map
// ---------------------------------------------------------------------------

func TestMemoryMapDisabled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	assert.Nil(t, f.w.CurrentMemoryMap())
	assert.Nil(t, f.w.CreateLocalizedMemoryMap(f.sim.WorldOrigin()))
	f.w.UpdateNavMemoryMap()
	f.w.ProcessVisionOverheadEdges(&l2vision.OverheadEdgeFrame{GroundPlaneValid: true})
}

func TestUpdateNavMemoryMapCliff(t *testing.T) {
	t.Parallel()

	f := newFixture(t, withMaps)
	f.sim.SetCliff(true, r2.Vec{X: 1})
	f.w.UpdateNavMemoryMap()

	g := f.w.CurrentMemoryMap()
	cliff := g.ContentAt(r2.Vec{X: 45, Y: 2})
	assert.Equal(t, l4navmap.ContentCliff, cliff.Type)
	assert.InDelta(t, 1, cliff.CliffDirection.X, 1e-9)
	assert.Equal(t, l4navmap.ContentClearOfObstacle, g.ContentAt(r2.Vec{X: 5, Y: 5}).Type)
}

func TestUpdateNavMemoryMapNoCliff(t *testing.T) {
	t.Parallel()

	f := newFixture(t, withMaps)
	f.sim.SetCliff(false, r2.Vec{})
	f.w.UpdateNavMemoryMap()
	assert.Equal(t, l4navmap.ContentClearOfCliff, f.w.CurrentMemoryMap().ContentAt(r2.Vec{X: 45, Y: 2}).Type)
}

func TestProcessVisionOverheadEdges(t *testing.T) {
	t.Parallel()

	f := newFixture(t, withMaps)
	ground := l1frames.NewQuad(
		r2.Vec{X: 300, Y: 150}, r2.Vec{X: 60, Y: 50},
		r2.Vec{X: 300, Y: -150}, r2.Vec{X: 60, Y: -50})

	f.w.ProcessVisionOverheadEdges(nil)
	f.w.ProcessVisionOverheadEdges(&l2vision.OverheadEdgeFrame{GroundPlane: ground})
	assert.Zero(t, f.w.CurrentMemoryMap().Len(), "frames without a ground plane are ignored")

	f.w.ProcessVisionOverheadEdges(&l2vision.OverheadEdgeFrame{
		Timestamp:        100,
		GroundPlaneValid: true,
		GroundPlane:      ground,
		Chains: []l2vision.EdgeChain{{
			Points:   []r2.Vec{{X: 200, Y: 50}, {X: 200, Y: -50}},
			IsBorder: true,
		}},
	})
	g := f.w.CurrentMemoryMap()
	assert.Positive(t, g.AreaM2(l4navmap.ContentInterestingEdge))
	assert.Positive(t, g.AreaM2(l4navmap.ContentClearOfObstacle))
}
