package l3objects

import (
	"math"
	"testing"

	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l2vision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

type fixture struct {
	arena  *l1frames.Arena
	origin l1frames.FrameID
	reg    *Registry
	lib    *Library
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	arena := l1frames.NewArena()
	origin := arena.AddOrigin("world")
	return &fixture{
		arena:  arena,
		origin: origin,
		reg:    NewRegistry(arena, func() l1frames.FrameID { return origin }),
		lib:    NewDefaultLibrary(arena, 2),
	}
}

func (f *fixture) add(t *testing.T, typ Type, x, y, z float64) *Object {
	t.Helper()
	o, err := f.lib.New(typ, l1frames.Pose{Transform: l1frames.Translation(x, y, z), Parent: f.origin})
	require.NoError(t, err)
	_, err = f.reg.Add(o)
	require.NoError(t, err)
	return o
}

// cameraAt returns a forward-looking camera pose at the given height.
func (f *fixture) cameraAt(x, y, z float64) l1frames.Pose {
	return l1frames.Pose{Transform: l2vision.ForwardLooking(0).Translated(r3.Vec{X: x, Y: y, Z: z}), Parent: f.origin}
}

func facingMarker(code l2vision.MarkerCode, ts l2vision.Timestamp, depth float64) *l2vision.ObservedMarker {
	return &l2vision.ObservedMarker{
		Code:          code,
		Timestamp:     ts,
		PoseWrtCamera: l1frames.NewTransform(math.Pi, l1frames.XAxis, r3.Vec{Z: depth}),
	}
}

// ---------------------------------------------------------------------------
// Library
// ---------------------------------------------------------------------------

func TestCubeAmbiguities(t *testing.T) {
	t.Parallel()

	amb := CubeAmbiguities()
	require.Len(t, amb, 23)
	for i := range amb {
		assert.Greater(t, amb[i].Angle(), 0.1, "ambiguity %d is the identity", i)
		for j := i + 1; j < len(amb); j++ {
			assert.Greater(t, amb[i].AngleTo(amb[j]), 0.1, "ambiguities %d and %d coincide", i, j)
		}
	}
}

func TestCreateObjectsFromMarkers(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	cam := f.cameraAt(0, 0, CubeSize/2)
	m := facingMarker("MARKER_LIGHTCUBE1", 100, 200-CubeSize/2)
	other := facingMarker("MARKER_MAT_A", 100, 300)

	cands := f.lib.CreateObjectsFromMarkers(FamilyLightCube, []*l2vision.ObservedMarker{m, other}, cam)
	require.Len(t, cands, 1)
	c := cands[0]
	assert.Equal(t, TypeLightCube1, c.Type())
	assert.True(t, m.Used)
	assert.False(t, other.Used, "markers of other families are left alone")

	p, err := c.PoseWrtOrigin()
	require.NoError(t, err)
	assert.InDelta(t, 200, p.Trans.X, 1e-6)
	assert.InDelta(t, 0, p.Trans.Y, 1e-6)
	assert.InDelta(t, CubeSize/2, p.Trans.Z, 1e-6)
	assert.InDelta(t, 1, p.Rotate(l1frames.ZAxis).Z, 1e-6, "cube should come out upright")

	assert.Equal(t, Timestamp(100), c.LastObservedTime())
	assert.Equal(t, 1, c.NumTimesObserved())
	assert.False(t, c.IsExistenceConfirmed())
	a, ok := c.AsActive()
	require.True(t, ok)
	assert.Equal(t, WaitingForIdentity, a.Identity)
}

func TestCreateObjectsFromMarkersMergesAgreeingMarkers(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	cam := f.cameraAt(0, 0, CubeSize/2)
	near := facingMarker("MARKER_BLOCK_FIRE", 7, 178)
	far := facingMarker("MARKER_BLOCK_FIRE", 7, 183)
	elsewhere := facingMarker("MARKER_BLOCK_FIRE", 7, 178)
	elsewhere.PoseWrtCamera.Trans.X = 150

	cands := f.lib.CreateObjectsFromMarkers(FamilyBlock, []*l2vision.ObservedMarker{far, near, elsewhere}, cam)
	require.Len(t, cands, 2)
	assert.Len(t, cands[0].ObservedMarkers(), 2)
	assert.InDelta(t, 178, cands[0].ObservationDistance(), 1e-9)
	assert.Len(t, cands[1].ObservedMarkers(), 1)
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

func TestRegistryAddRemove(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	a := f.add(t, TypeBlockFire, 100, 0, 22)
	b := f.add(t, TypeBlockFire, 300, 0, 22)
	c := f.add(t, TypeLightCube2, 0, 100, 22)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 3, f.reg.Len())
	require.NoError(t, f.reg.CheckInvariants())

	assert.Equal(t, []*Object{a, b}, f.reg.ByFamily(FamilyBlock))
	assert.Equal(t, []*Object{c}, f.reg.ByType(TypeLightCube2))
	assert.Equal(t, c, f.reg.GetInFamily(c.ID(), FamilyLightCube))
	assert.Nil(t, f.reg.GetInFamily(c.ID(), FamilyBlock))

	_, err := f.reg.Add(a)
	assert.ErrorIs(t, err, ErrDuplicateID)

	removed, err := f.reg.Remove(a.ID())
	require.NoError(t, err)
	assert.Equal(t, a, removed)
	assert.Nil(t, f.reg.Get(a.ID()))
	assert.False(t, a.IsRegistered())
	assert.InDelta(t, 100, a.Pose().Trans.X, 1e-9, "removed objects keep their last pose")
	require.NoError(t, f.reg.CheckInvariants())

	_, err = f.reg.Remove(a.ID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryRemoveKeepsOriginFrame(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	mat := f.add(t, TypeMatLetters4x4, 0, 0, 0)
	frame := mat.Frame()
	require.NoError(t, f.arena.SetPose(frame, l1frames.Pose{Transform: l1frames.Identity()}))
	require.True(t, f.arena.IsOrigin(frame))
	block, err := f.lib.New(TypeBlockFire, l1frames.Pose{Transform: l1frames.Translation(50, 0, 22), Parent: frame})
	require.NoError(t, err)
	_, err = f.reg.Add(block)
	require.NoError(t, err)

	_, err = f.reg.Remove(mat.ID())
	require.NoError(t, err)
	assert.Nil(t, f.reg.Get(mat.ID()))
	assert.True(t, f.arena.IsOrigin(frame))
	assert.Equal(t, frame, block.Origin())
	assert.InDelta(t, 50, block.Pose().Trans.X, 1e-9)
	require.NoError(t, f.reg.CheckInvariants())
}

func TestRegistryActiveLookup(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	cube := f.add(t, TypeLightCube3, 0, 0, 22)
	assert.Nil(t, f.reg.GetByActiveID(4))
	a, ok := cube.AsActive()
	require.True(t, ok)
	a.ID = 4
	assert.Equal(t, cube, f.reg.GetByActiveID(4))
	assert.Nil(t, f.reg.GetByActiveID(NoActiveID))
}

func TestRegistryCanRemove(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	o := f.add(t, TypeBlockStar, 0, 0, 22)
	f.reg.EnableDeletion(false)
	o.SetLastObservedTime(1)
	assert.True(t, f.reg.CanRemove(o), "a single sighting is noise")
	o.SetLastObservedTime(2)
	assert.False(t, f.reg.CanRemove(o))
	f.reg.EnableDeletion(true)
	assert.True(t, f.reg.CanRemove(o))
}

// ---------------------------------------------------------------------------
// Filter
// ---------------------------------------------------------------------------

func TestFilter(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	block := f.add(t, TypeBlockFire, 100, 0, 22)
	cube := f.add(t, TypeLightCube1, 200, 0, 22)
	block.SetLastObservedTime(10)
	cube.SetLastObservedTime(20)

	elsewhere := f.arena.AddOrigin("elsewhere")
	lost, err := f.lib.New(TypeBlockStar, l1frames.Pose{Transform: l1frames.Identity(), Parent: elsewhere})
	require.NoError(t, err)
	_, err = f.reg.Add(lost)
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter *Filter
		want   []*Object
	}{
		{name: "nil filter uses robot origin", filter: nil, want: []*Object{block, cube}},
		{name: "any origin", filter: NewFilter().AnyOrigin(), want: []*Object{block, cube, lost}},
		{name: "custom origin", filter: NewFilter().InOrigin(elsewhere), want: []*Object{lost}},
		{name: "allowed family", filter: NewFilter().AllowFamily(FamilyLightCube), want: []*Object{cube}},
		{name: "ignored type", filter: NewFilter().IgnoreType(TypeLightCube1), want: []*Object{block}},
		{name: "ignored id", filter: NewFilter().IgnoreID(block.ID()), want: []*Object{cube}},
		{name: "latest update", filter: &Filter{OnlyConsiderLatestUpdate: true}, want: []*Object{cube}},
		{
			name:   "custom predicate",
			filter: NewFilter().Where(func(o *Object) bool { return o.IsActive() }),
			want:   []*Object{cube},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.reg.Find(tt.filter))
		})
	}
}

// ---------------------------------------------------------------------------
// Spatial queries
// ---------------------------------------------------------------------------

func TestFindClosestMatchingObject(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	near := f.add(t, TypeBlockFire, 100, 0, 22)
	f.add(t, TypeBlockFire, 120, 0, 22)
	f.add(t, TypeBlockStar, 100, 0, 22)

	cand, err := f.lib.New(TypeBlockFire, l1frames.Pose{
		Transform: l1frames.NewTransform(math.Pi/2, l1frames.ZAxis, r3.Vec{X: 104, Y: 2, Z: 22}),
		Parent:    f.origin,
	})
	require.NoError(t, err)

	got := f.reg.FindClosestMatchingObject(cand, cand.SameDistanceTolerance(), DefaultSameAngleTolerance, nil)
	assert.Equal(t, near, got, "a quarter turn of a cube is the same cube")

	near.SetPoseState(PoseUnknown)
	got = f.reg.FindClosestMatchingObject(cand, cand.SameDistanceTolerance(), DefaultSameAngleTolerance, nil)
	assert.Equal(t, near, got, "objects with unknown pose are still matched")

	cand.pose.Transform = l1frames.Translation(500, 0, 22)
	assert.Nil(t, f.reg.FindClosestMatchingObject(cand, cand.SameDistanceTolerance(), DefaultSameAngleTolerance, nil))
}

func TestFindStacked(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	bottom := f.add(t, TypeBlockFire, 100, 0, CubeSize/2)
	middle := f.add(t, TypeLightCube1, 102, 3, CubeSize*1.5)
	top := f.add(t, TypeBlockStar, 99, -2, CubeSize*2.5)
	f.add(t, TypeLightCube2, 300, 0, CubeSize/2)

	assert.Equal(t, middle, f.reg.FindObjectOnTopOf(bottom, 15, nil))
	assert.Equal(t, top, f.reg.FindObjectOnTopOf(middle, 15, nil))
	assert.Nil(t, f.reg.FindObjectOnTopOf(top, 15, nil))
	assert.Equal(t, middle, f.reg.FindObjectUnderneath(top, 15, nil))
	assert.Nil(t, f.reg.FindObjectUnderneath(bottom, 15, nil))
}

func TestFindIntersectingAndClosest(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	a := f.add(t, TypeBlockFire, 0, 0, 22)
	b := f.add(t, TypeBlockStar, 40, 0, 22)
	c := f.add(t, TypeLightCube1, 200, 0, 22)

	assert.Equal(t, []*Object{b}, f.reg.FindIntersectingObjects(a, 0, nil))
	assert.Empty(t, f.reg.FindIntersectingObjects(c, 0, nil))

	p := l1frames.Pose{Transform: l1frames.Translation(190, 5, 22), Parent: f.origin}
	assert.Equal(t, c, f.reg.FindObjectClosestTo(p, r3.Vec{X: 50, Y: 50, Z: 50}, nil))
	assert.Nil(t, f.reg.FindObjectClosestTo(p, r3.Vec{X: 5, Y: 5, Z: 5}, nil))

	b.SetLastObservedTime(50)
	a.SetLastObservedTime(40)
	assert.Equal(t, b, f.reg.FindMostRecentlyObserved(nil))
}

// ---------------------------------------------------------------------------
// Mats
// ---------------------------------------------------------------------------

func TestMatIsPoseOn(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	mat := f.add(t, TypeMatLetters4x4, 0, 0, MatLettersThickness/2)
	on := l1frames.Pose{Transform: l1frames.Translation(100, 100, MatLettersThickness), Parent: f.origin}
	off := l1frames.Pose{Transform: l1frames.Translation(600, 0, MatLettersThickness), Parent: f.origin}
	high := l1frames.Pose{Transform: l1frames.Translation(0, 0, 100), Parent: f.origin}

	for _, tc := range []struct {
		pose l1frames.Pose
		want bool
	}{{on, true}, {off, false}, {high, false}} {
		got, err := mat.IsPoseOn(tc.pose, 0, 15)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	flat, err := mat.IsFlat(l1frames.DegToRad(5), l1frames.DegToRad(45))
	require.NoError(t, err)
	assert.True(t, flat)

	require.NoError(t, mat.SetPose(l1frames.Pose{
		Transform: l1frames.NewTransform(l1frames.DegToRad(30), l1frames.XAxis, r3.Vec{}),
		Parent:    f.origin,
	}, -1, PoseKnown))
	flat, err = mat.IsFlat(l1frames.DegToRad(5), l1frames.DegToRad(45))
	require.NoError(t, err)
	assert.False(t, flat)
}

func TestPlatformUnsafeRegions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	platform := f.add(t, TypeMatLargePlatform, 500, 0, PlatformHeight/2)
	quads, ok, err := platform.UnsafeQuads(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, quads, 4)
	for _, q := range quads {
		c := q.Centroid()
		assert.InDelta(t, 500, c.X, PlatformSize/2)
	}

	cube := f.add(t, TypeBlockFire, 0, 0, 22)
	_, ok, err = cube.UnsafeQuads(0)
	require.NoError(t, err)
	assert.False(t, ok)
}
