// Package l1frames owns Layer 1 (Frames) of the BlockWorld model.
//
// Responsibilities: the reference-frame arena (integer FrameID handles,
// parent links, origins), rigid transforms, poses expressed relative to a
// parent frame, and 2D quads used for footprints and map stamping.
// Key types: Arena, FrameID, Transform, Pose, Quad.
//
// Dependency rule: L1 depends on nothing else in blockworld.
//
// A pose is only comparable with another pose when both chains end at the
// same origin. Re-parenting is explicit (Arena.SetPose) and is the only way
// two frames become related.
package l1frames
