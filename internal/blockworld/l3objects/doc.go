// Package l3objects owns Layer 3 (Objects) of the BlockWorld model.
//
// Responsibilities: the observable-object model (families, types, pose
// state, observation counters, active-object identity), the closed set of
// object kinds with capability views, the per-family template library that
// turns observed markers into candidate objects, the query filter, and the
// object registry (family→type→ID) with its spatial searches.
// Key types: Object, Kind, Library, Filter, Registry.
//
// Dependency rule: L3 may depend on L1-L2, but never on L4 or above.
// The registry owns every registered object; nothing else may hold an
// object across ticks without looking it up again by ID.
package l3objects
