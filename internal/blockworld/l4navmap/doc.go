// Package l4navmap owns Layer 4 (Navigation memory) of the BlockWorld model.
//
// Responsibilities: content types and their payloads, the total
// invalidation table used by collision-ray queries, a sparse grid memory
// map with its conflict policy, per-origin map sets with a single current
// map, and the conversion of overhead edge chains into clear and border
// quads.
// Key types: ContentType, Content, InvalidationTable, GridMap, Maps.
//
// Dependency rule: L4 may depend on L1-L2, but never on L3 or above.
// Objects reach the map only as quads stamped by the layers above.
package l4navmap
