// Package l6world owns Layer 6 (World) of the BlockWorld model.
//
// Responsibilities: the World facade the rest of the robot talks to; the
// per-tick Update that drains queued markers by timestamp, localizes the
// robot to mats, resolves each object family and sweeps for objects that
// should have been seen; migration of objects and memory maps when the
// robot's origin changes; markerless and radio-connected objects; clear,
// delete and selection; and the read-only query surface.
// Key types: World, Config, Options, Snapshot.
//
// Dependency rule: L6 may depend on every lower layer, the robot oracle
// and events. Outer packages (storage, monitor, metrics, scenario) plug in
// through events.Broadcaster, Visualizer and TickObserver and are never
// imported here.
package l6world
