package l1frames

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

func vecNear(t *testing.T, want, got r3.Vec) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-6, "x")
	assert.InDelta(t, want.Y, got.Y, 1e-6, "y")
	assert.InDelta(t, want.Z, got.Z, 1e-6, "z")
}

// ---------------------------------------------------------------------------
// Transform
// ---------------------------------------------------------------------------

func TestTransform(t *testing.T) {
	t.Parallel()

	t.Run("zero value is identity", func(t *testing.T) {
		t.Parallel()
		var xf Transform
		vecNear(t, r3.Vec{X: 1, Y: 2, Z: 3}, xf.Apply(r3.Vec{X: 1, Y: 2, Z: 3}))
		assert.InDelta(t, 0, xf.Angle(), 1e-9)
	})

	t.Run("rotation about Z then translation", func(t *testing.T) {
		t.Parallel()
		xf := NewTransform(math.Pi/2, ZAxis, r3.Vec{X: 10})
		vecNear(t, r3.Vec{X: 10, Y: 1}, xf.Apply(r3.Vec{X: 1}))
		assert.InDelta(t, math.Pi/2, xf.Yaw(), 1e-9)
	})

	t.Run("compose with inverse is identity", func(t *testing.T) {
		t.Parallel()
		xf := NewTransform(0.7, r3.Vec{X: 1, Y: 2, Z: 3}, r3.Vec{X: 5, Y: -4, Z: 2})
		id := xf.Compose(xf.Inverse())
		assert.InDelta(t, 0, id.Angle(), 1e-6)
		vecNear(t, r3.Vec{}, id.Trans)
	})

	t.Run("compose applies right operand first", func(t *testing.T) {
		t.Parallel()
		a := NewTransform(math.Pi/2, ZAxis, r3.Vec{})
		b := Translation(1, 0, 0)
		vecNear(t, r3.Vec{Y: 1}, a.Compose(b).Apply(r3.Vec{}))
		vecNear(t, r3.Vec{X: 1}, b.Compose(a).Apply(r3.Vec{}))
	})

	t.Run("angle to", func(t *testing.T) {
		t.Parallel()
		a := NewTransform(0.2, ZAxis, r3.Vec{})
		b := NewTransform(0.5, ZAxis, r3.Vec{})
		assert.InDelta(t, 0.3, a.AngleTo(b), 1e-9)
	})
}

// ---------------------------------------------------------------------------
// Arena
// ---------------------------------------------------------------------------

func TestArenaWithRespectTo(t *testing.T) {
	t.Parallel()

	a := NewArena()
	origin := a.AddOrigin("world")
	mat, err := a.AddFrame("mat", NewPose(math.Pi/2, ZAxis, r3.Vec{X: 100}, origin))
	require.NoError(t, err)

	onMat := Pose{Transform: Translation(10, 0, 5), Parent: mat}
	wrtOrigin, err := a.WithRespectTo(onMat, origin)
	require.NoError(t, err)
	assert.Equal(t, origin, wrtOrigin.Parent)
	vecNear(t, r3.Vec{X: 100, Y: 10, Z: 5}, wrtOrigin.Trans)

	back, err := a.WithRespectTo(wrtOrigin, mat)
	require.NoError(t, err)
	vecNear(t, r3.Vec{X: 10, Z: 5}, back.Trans)

	assert.Equal(t, origin, a.FindOrigin(onMat))
}

func TestArenaNotConnected(t *testing.T) {
	t.Parallel()

	a := NewArena()
	o1 := a.AddOrigin("a")
	o2 := a.AddOrigin("b")
	_, err := a.WithRespectTo(Pose{Transform: Identity(), Parent: o1}, o2)
	assert.True(t, errors.Is(err, ErrNotConnected))

	_, err = a.Distance(Pose{Parent: o1}, Pose{Parent: o2})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestArenaReparentOrigin(t *testing.T) {
	t.Parallel()

	a := NewArena()
	oldOrigin := a.AddOrigin("old")
	newOrigin := a.AddOrigin("new")
	p := Pose{Transform: Translation(1, 2, 0), Parent: oldOrigin}

	require.NoError(t, a.SetPose(oldOrigin, Pose{Transform: Translation(50, 0, 0), Parent: newOrigin}))
	assert.False(t, a.IsOrigin(oldOrigin))

	moved, err := a.WithRespectTo(p, newOrigin)
	require.NoError(t, err)
	vecNear(t, r3.Vec{X: 51, Y: 2}, moved.Trans)
}

func TestArenaCycleRejected(t *testing.T) {
	t.Parallel()

	a := NewArena()
	o := a.AddOrigin("o")
	f1, err := a.AddFrame("f1", Pose{Parent: o})
	require.NoError(t, err)
	f2, err := a.AddFrame("f2", Pose{Parent: f1})
	require.NoError(t, err)

	err = a.SetPose(f1, Pose{Parent: f2})
	assert.ErrorIs(t, err, ErrCycle)
	err = a.SetPose(f1, Pose{Parent: f1})
	assert.ErrorIs(t, err, ErrCycle)
}

func TestArenaReleaseFlattensChildren(t *testing.T) {
	t.Parallel()

	a := NewArena()
	o := a.AddOrigin("o")
	mat, err := a.AddFrame("mat", Pose{Transform: Translation(100, 0, 0), Parent: o})
	require.NoError(t, err)
	child, err := a.AddFrame("child", Pose{Transform: Translation(5, 0, 0), Parent: mat})
	require.NoError(t, err)

	require.NoError(t, a.Release(mat))
	assert.False(t, a.Exists(mat))
	p, ok := a.Pose(child)
	require.True(t, ok)
	assert.Equal(t, o, p.Parent)
	vecNear(t, r3.Vec{X: 105}, p.Trans)

	assert.ErrorIs(t, a.Release(mat), ErrUnknownFrame)
}

// ---------------------------------------------------------------------------
// Quad
// ---------------------------------------------------------------------------

func TestQuad(t *testing.T) {
	t.Parallel()

	sq := OrientedRect(r2.Vec{}, 0, 10, 5)

	t.Run("contains", func(t *testing.T) {
		t.Parallel()
		assert.True(t, sq.Contains(r2.Vec{X: 9, Y: 4}))
		assert.True(t, sq.Contains(r2.Vec{X: 10, Y: 0}))
		assert.False(t, sq.Contains(r2.Vec{X: 11, Y: 0}))
		assert.InDelta(t, 200, sq.Area(), 1e-9)
	})

	t.Run("intersects", func(t *testing.T) {
		t.Parallel()
		rotated := OrientedRect(r2.Vec{X: 14}, math.Pi/4, 5, 5)
		assert.True(t, sq.Intersects(rotated))
		far := OrientedRect(r2.Vec{X: 30}, math.Pi/4, 5, 5)
		assert.False(t, sq.Intersects(far))
	})

	t.Run("bounding quad aligned with yaw", func(t *testing.T) {
		t.Parallel()
		pts := []r2.Vec{{X: -1, Y: -1}, {X: 3, Y: 2}, {X: 0, Y: 4}}
		q := BoundingQuad(pts, 0)
		lo, hi := q.Bounds()
		assert.Equal(t, r2.Vec{X: -1, Y: -1}, lo)
		assert.Equal(t, r2.Vec{X: 3, Y: 4}, hi)
	})

	t.Run("clamp to near line", func(t *testing.T) {
		t.Parallel()
		cam := r2.Vec{}
		q := NewQuad(r2.Vec{X: 100, Y: 10}, cam, r2.Vec{X: 100, Y: -10}, cam)
		clamped, ok := q.ClampToNearLine(r2.Vec{X: 20, Y: 50}, r2.Vec{X: 20, Y: -50})
		require.True(t, ok)
		assert.InDelta(t, 20, clamped[BottomLeft].X, 1e-9)
		assert.InDelta(t, 2, clamped[BottomLeft].Y, 1e-9)
		assert.InDelta(t, -2, clamped[BottomRight].Y, 1e-9)

		behind := NewQuad(r2.Vec{X: 10}, cam, r2.Vec{X: 10, Y: 1}, cam)
		_, ok = behind.ClampToNearLine(r2.Vec{X: 20, Y: 50}, r2.Vec{X: 20, Y: -50})
		assert.False(t, ok)
	})
}
