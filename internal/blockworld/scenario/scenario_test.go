package scenario

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/banshee-data/blockworld/internal/blockworld/events"
	"github.com/banshee-data/blockworld/internal/blockworld/l2vision"
	"github.com/banshee-data/blockworld/internal/blockworld/l3objects"
	"github.com/banshee-data/blockworld/internal/blockworld/l6world"
	"github.com/banshee-data/blockworld/internal/blockworld/robot"
	"github.com/banshee-data/blockworld/internal/testutil"
	"github.com/banshee-data/blockworld/internal/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWorld(t *testing.T) (*l6world.World, *robot.Sim, *events.Recorder) {
	t.Helper()
	w := testutil.NewWorld(t, nil, l6world.Options{})
	return w.World, w.Sim, w.Rec
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

func TestParseRejectsBadScenarios(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "name: x\nspeed: 3\n"},
		{"unknown type", "objects:\n  - {name: a, type: BLOCK_MOON}\n"},
		{"unnamed object", "objects:\n  - {type: BLOCK_FIRE}\n"},
		{"duplicate name", "objects:\n  - {name: a, type: BLOCK_FIRE}\n  - {name: a, type: BLOCK_STAR}\n"},
		{"time goes backwards", "steps:\n  - t: 10\n  - t: 10\n"},
		{"remove unknown", "steps:\n  - t: 10\n    remove: [ghost]\n"},
		{"connect unknown type", "steps:\n  - t: 10\n    connect:\n      - {active_id: 1, factory: 1, type: TOASTER}\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestParseValidationErrorsWrapErrInvalid(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("steps:\n  - t: 10\n    remove: [ghost]\n"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	sc, err := Load("testdata/two_blocks.yaml")
	require.NoError(t, err)
	assert.Equal(t, "two blocks, one taken", sc.Name)
	require.Len(t, sc.Objects, 2)
	assert.Equal(t, l3objects.TypeBlockStar, sc.Objects[1].Type)
	assert.Equal(t, 60.0, sc.Objects[1].Y)
	require.Len(t, sc.Steps, 6)
	assert.Equal(t, []string{"star"}, sc.Steps[2].Remove)
	assert.Equal(t, l3objects.FactoryID(0xa11), sc.Steps[4].Connect[0].Factory)
	assert.True(t, sc.Steps[5].Blind)

	_, err = Load("testdata/missing.yaml")
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Replay
// ---------------------------------------------------------------------------

func TestRunTwoBlocks(t *testing.T) {
	t.Parallel()

	sc, err := Load("testdata/two_blocks.yaml")
	require.NoError(t, err)
	w, sim, rec := newWorld(t)
	d := NewDriver(sc, w, sim)

	require.NoError(t, d.Run(context.Background()))
	assert.True(t, d.Done())

	results := d.Results()
	require.Len(t, results, 6)
	assert.Positive(t, results[0].Markers)
	assert.Zero(t, results[5].Markers, "blind step")

	fire := w.GetObjectsByType(l3objects.TypeBlockFire)
	require.Len(t, fire, 1)
	assert.True(t, fire[0].IsExistenceConfirmed())
	assert.True(t, fire[0].IsPoseStateKnown())

	star := w.GetObjectsByType(l3objects.TypeBlockStar)
	require.Len(t, star, 1)
	assert.True(t, star[0].IsExistenceConfirmed(), "star is within identification range")
	assert.False(t, star[0].IsPoseStateKnown(), "star was taken away while in view")
	assert.Len(t, rec.PoseUnknowns(star[0].ID()), 1)

	assert.Len(t, w.GetObjectsByType(l3objects.TypeProxObstacle), 1)
	cube := w.GetActiveObjectByActiveID(1)
	require.NotNil(t, cube)
	assert.Equal(t, l3objects.TypeLightCube1, cube.Type())

	assert.InDelta(t, math.Pi, math.Abs(d.TruePose().Yaw()), 1e-9)
	assert.InDelta(t, math.Pi, math.Abs(sim.Pose().Yaw()), 1e-9)
	assert.Positive(t, w.CurrentMemoryMap().Len())
}

func TestSlipLeavesOdometryBehind(t *testing.T) {
	t.Parallel()

	sc, err := Parse([]byte(`
steps:
  - t: 10
    drive: {x: 100}
    slip: {x: 20}
    blind: true
`))
	require.NoError(t, err)
	w, sim, _ := newWorld(t)
	d := NewDriver(sc, w, sim)
	require.NoError(t, d.Run(context.Background()))

	assert.InDelta(t, 120, d.TruePose().Trans.X, 1e-9)
	assert.InDelta(t, 100, sim.Pose().Trans.X, 1e-9)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	sc, err := Load("testdata/two_blocks.yaml")
	require.NoError(t, err)
	w, sim, _ := newWorld(t)
	d := NewDriver(sc, w, sim)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Run(ctx), context.Canceled)
	assert.Empty(t, d.Results())

	res := d.Step()
	assert.Equal(t, l2vision.Timestamp(100), res.T)
	assert.Len(t, d.Results(), 1)
}

func TestRunPacedStepsOnTicks(t *testing.T) {
	t.Parallel()

	sc, err := Load("testdata/two_blocks.yaml")
	require.NoError(t, err)
	w, sim, _ := newWorld(t)
	d := NewDriver(sc, w, sim)
	clock := timeutil.NewMockClock(time.Unix(0, 0))

	done := make(chan error, 1)
	go func() { done <- d.RunPaced(context.Background(), clock, 33*time.Millisecond) }()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-done:
			require.NoError(t, err)
			assert.Len(t, d.Results(), len(sc.Steps))
			return
		case <-deadline:
			t.Fatal("paced replay did not finish")
		default:
			clock.Advance(33 * time.Millisecond)
			time.Sleep(time.Millisecond)
		}
	}
}

func TestRunPacedHonoursContext(t *testing.T) {
	t.Parallel()

	sc, err := Load("testdata/two_blocks.yaml")
	require.NoError(t, err)
	w, sim, _ := newWorld(t)
	d := NewDriver(sc, w, sim)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = d.RunPaced(ctx, timeutil.NewMockClock(time.Unix(0, 0)), time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, d.Results())
}
