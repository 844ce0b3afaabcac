// Package l2vision owns Layer 2 (Vision inputs) of the BlockWorld model.
//
// Responsibilities: observed-marker records produced by the external vision
// pipeline, the per-tick marker queue grouped by timestamp, marker
// placement on objects (KnownMarker), the pinhole camera model with its
// per-frame occluders, and overhead ground-edge frames.
// Key types: ObservedMarker, MarkerQueue, KnownMarker, Camera, OverheadEdgeFrame.
//
// Dependency rule: L2 may depend on L1 only. Marker decoding and marker pose
// estimation happen upstream; this layer only carries their results.
package l2vision
