package l6world

import (
	"errors"
	"time"

	"github.com/banshee-data/blockworld/internal/blockworld/events"
	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l2vision"
	"github.com/banshee-data/blockworld/internal/blockworld/l3objects"
	"github.com/banshee-data/blockworld/internal/blockworld/l4navmap"
	"github.com/banshee-data/blockworld/internal/blockworld/l5identity"
	"github.com/banshee-data/blockworld/internal/blockworld/robot"
	"github.com/banshee-data/blockworld/internal/timeutil"
)

var (
	// ErrUnknownPoseKey is returned when a marker refers to a pose the
	// robot never recorded.
	ErrUnknownPoseKey = errors.New("pose key not in robot history")
	// ErrUnknownOrigin is returned for origin handles the arena does not know.
	ErrUnknownOrigin = errors.New("unknown origin")
)

// Snapshot is what a Visualizer is handed after each tick. Objects and Map
// are live; a visualizer must not keep or modify them.
type Snapshot struct {
	Timestamp l2vision.Timestamp
	Robot     l1frames.Pose // under Origin
	Origin    l1frames.FrameID
	Objects   []*l3objects.Object
	Map       *l4navmap.GridMap
}

// Visualizer draws the world after each tick. Calls are fire-and-forget:
// a visualizer logs its own failures.
type Visualizer interface {
	Draw(s Snapshot)
}

// TickStats summarises one Update.
type TickStats struct {
	Timestamp l2vision.Timestamp
	Markers   int
	Groups    int
	Observed  int
	Objects   int
	Duration  time.Duration
	Err       error
}

// TickObserver receives a summary after each Update.
type TickObserver interface {
	ObserveTick(s TickStats)
}

// TickObservers hands each summary to every non-nil observer in order.
type TickObservers []TickObserver

// ObserveTick implements TickObserver.
func (o TickObservers) ObserveTick(s TickStats) {
	for _, ob := range o {
		if ob != nil {
			ob.ObserveTick(s)
		}
	}
}

// Options carries the optional collaborators of a World. Nil fields get
// harmless defaults.
type Options struct {
	Broadcaster events.Broadcaster
	Visualizer  Visualizer
	Observer    TickObserver
	Clock       timeutil.Clock
	// Library defaults to every built-in object type.
	Library *l3objects.Library
}

// World is the BlockWorld model: the object registry, the robot's view of
// it and the memory maps, updated once per tick. It is not safe for
// concurrent use.
type World struct {
	cfg      Config
	arena    *l1frames.Arena
	robot    robot.Oracle
	reg      *l3objects.Registry
	lib      *l3objects.Library
	resolver *l5identity.Resolver
	maps     *l4navmap.Maps

	queue l2vision.MarkerQueue

	bc    events.Broadcaster
	vis   Visualizer
	obs   TickObserver
	clock timeutil.Clock

	didChange       bool
	currentObserved []*l3objects.Object
}

// New returns an empty world for rob, whose poses live in arena.
func New(arena *l1frames.Arena, rob robot.Oracle, cfg Config, opts Options) *World {
	w := &World{
		cfg:   cfg,
		arena: arena,
		robot: rob,
		reg:   l3objects.NewRegistry(arena, rob.WorldOrigin),
		lib:   opts.Library,
		maps:  l4navmap.NewMaps(cfg.NavMapPrecision),
		bc:    opts.Broadcaster,
		vis:   opts.Visualizer,
		obs:   opts.Observer,
		clock: opts.Clock,
	}
	if w.lib == nil {
		w.lib = l3objects.NewDefaultLibrary(arena, cfg.MinTimesToObserve)
	}
	if w.bc == nil {
		w.bc = events.Discard
	}
	if w.clock == nil {
		w.clock = timeutil.RealClock{}
	}
	w.resolver = l5identity.NewResolver(w.reg, rob, w, cfg.resolverParams())
	if cfg.EnableMapMemory {
		w.maps.CreateLocalized(rob.WorldOrigin())
	}
	return w
}

// Config returns the world's tuning.
func (w *World) Config() Config { return w.cfg }

// Registry exposes the object registry for read-only queries.
func (w *World) Registry() *l3objects.Registry { return w.reg }

// Library returns the object templates.
func (w *World) Library() *l3objects.Library { return w.lib }

// Arena returns the frame arena.
func (w *World) Arena() *l1frames.Arena { return w.arena }

// Robot returns the robot oracle.
func (w *World) Robot() robot.Oracle { return w.robot }

// SetActiveIdentityPolicy swaps how active sightings are matched.
func (w *World) SetActiveIdentityPolicy(p l5identity.ActiveIdentityPolicy) { w.resolver.SetPolicy(p) }

// EnableObjectAddition toggles whether unmatched sightings become objects.
func (w *World) EnableObjectAddition(on bool) { w.reg.EnableAddition(on) }

// EnableObjectDeletion toggles whether confirmed objects may be cleared or
// deleted.
func (w *World) EnableObjectDeletion(on bool) { w.reg.EnableDeletion(on) }

// DidObjectsChange reports whether the last Update, or any call since it,
// added, moved or cleared an object.
func (w *World) DidObjectsChange() bool { return w.didChange }

// CurrentObservedObjects returns the objects resolved in the last Update.
func (w *World) CurrentObservedObjects() []*l3objects.Object {
	out := make([]*l3objects.Object, len(w.currentObserved))
	copy(out, w.currentObserved)
	return out
}

func (w *World) markObserved(o *l3objects.Object) {
	for _, seen := range w.currentObserved {
		if seen == o {
			return
		}
	}
	w.currentObserved = append(w.currentObserved, o)
}

// ---------------------------------------------------------------------------
// l5identity.Sink
// ---------------------------------------------------------------------------

// BroadcastObservation reports a sighting of o. Confirmed objects are
// broadcast as observed; unconfirmed ones only as possible objects, and
// only when their markers were actually seen.
func (w *World) BroadcastObservation(o *l3objects.Object, markersVisible bool) {
	obs := events.Observation{
		Timestamp:      o.LastObservedTime(),
		Family:         o.Family(),
		Type:           o.Type(),
		ID:             o.ID(),
		MarkersVisible: markersVisible,
		IsActive:       o.IsActive(),
	}
	if p, err := o.PoseWrtOrigin(); err == nil {
		obs.Position = p.Trans
		obs.Rotation = p.Quat()
		obs.Origin = p.Parent
	}
	if pts, depth, err := o.ProjectedCorners(w.robot.Camera()); err == nil && depth > 0 && len(pts) > 0 {
		lo, hi := l3objects.ImageBounds(pts)
		obs.BoxX, obs.BoxY = lo.X, lo.Y
		obs.BoxW, obs.BoxH = hi.X-lo.X, hi.Y-lo.Y
	}
	if o.IsActive() && o.Family() == l3objects.FamilyLightCube {
		obs.TopFaceOrientation = o.TopMarkerOrientation()
	}

	switch {
	case o.IsExistenceConfirmed():
		w.bc.Broadcast(events.ObjectObserved{Observation: obs})
	case markersVisible:
		obs.ID = l3objects.NoID
		w.bc.Broadcast(events.PossibleObjectObserved{Observation: obs})
	}
}

// ObjectResolved records o as seen this tick and marks its footprint in
// the memory map, confirmed or not.
func (w *World) ObjectResolved(o *l3objects.Object) {
	w.didChange = true
	w.markObserved(o)
	var content l4navmap.ContentType
	switch o.Family() {
	case l3objects.FamilyLightCube, l3objects.FamilyBlock:
		content = l4navmap.ContentObstacleCube
	case l3objects.FamilyCharger:
		content = l4navmap.ContentObstacleCharger
	default:
		return
	}
	w.stampObject(o, content)
}

// OriginChanged migrates everything under the robot's old origin.
func (w *World) OriginChanged(c robot.OriginChange) error {
	return w.UpdateObjectOrigins(c.Old, c.New)
}

var _ l5identity.Sink = (*World)(nil)

// broadcastPoseUnknown reports that o's pose was cleared.
func (w *World) broadcastPoseUnknown(o *l3objects.Object) {
	w.bc.Broadcast(events.PoseUnknown{
		Timestamp: w.robot.LastImageTimestamp(),
		ID:        o.ID(),
		Family:    o.Family(),
		Type:      o.Type(),
	})
}

// robotPoseWrtOrigin is the robot's pose directly under its origin.
func (w *World) robotPoseWrtOrigin() (l1frames.Pose, error) {
	return w.arena.WrtOrigin(w.robot.Pose())
}

// Snapshot captures the current state for a visualizer.
func (w *World) Snapshot(ts l2vision.Timestamp) Snapshot {
	s := Snapshot{
		Timestamp: ts,
		Origin:    w.robot.WorldOrigin(),
		Objects:   w.reg.All(),
		Map:       w.CurrentMemoryMap(),
	}
	if p, err := w.robotPoseWrtOrigin(); err == nil {
		s.Robot = p
	}
	return s
}
