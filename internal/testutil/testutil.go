// Package testutil provides shared test fixtures for the packages built on
// top of the World: a world over a simulated robot, and HTTP helpers for
// the endpoints that expose it.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/blockworld/internal/blockworld/events"
	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l2vision"
	"github.com/banshee-data/blockworld/internal/blockworld/l3objects"
	"github.com/banshee-data/blockworld/internal/blockworld/l6world"
	"github.com/banshee-data/blockworld/internal/blockworld/robot"
)

// World is a world driven by a simulated robot, recording its events.
type World struct {
	Arena *l1frames.Arena
	Sim   *robot.Sim
	Rec   *events.Recorder
	*l6world.World
}

// NewWorld builds a World from the repository tuning defaults with map
// memory on. tune, if non-nil, edits the config first. opts.Broadcaster is
// replaced by the recorder.
func NewWorld(t *testing.T, tune func(*l6world.Config), opts l6world.Options) *World {
	t.Helper()
	cfg := l6world.DefaultConfig()
	cfg.EnableMapMemory = true
	if tune != nil {
		tune(&cfg)
	}
	arena := l1frames.NewArena()
	sim := robot.NewSim(arena, l2vision.DefaultCalibration())
	rec := &events.Recorder{}
	opts.Broadcaster = rec
	return &World{Arena: arena, Sim: sim, Rec: rec, World: l6world.New(arena, sim, cfg, opts)}
}

// AddConfirmed registers a confirmed object of typ at (x, y, z) in the
// robot's origin, as last seen at ts.
func (w *World) AddConfirmed(t *testing.T, typ l3objects.Type, x, y, z float64, ts l2vision.Timestamp) *l3objects.Object {
	t.Helper()
	o, err := w.Library().New(typ, l1frames.Pose{Transform: l1frames.Translation(x, y, z), Parent: w.Sim.WorldOrigin()})
	if err != nil {
		t.Fatalf("new %s: %v", typ, err)
	}
	for !o.IsExistenceConfirmed() {
		o.SetLastObservedTime(ts)
	}
	if _, err := w.Registry().Add(o); err != nil {
		t.Fatalf("add %s: %v", typ, err)
	}
	return o
}

// Get serves a GET of path from h and returns the status code and body.
func Get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rec.Code, string(body)
}
