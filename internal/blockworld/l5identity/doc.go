// Package l5identity owns Layer 5 (Identity) of the BlockWorld model.
//
// Responsibilities: deciding, for each candidate object built from one
// timestamp's markers, whether it is an object already in the registry or
// a new one; carrying stacked objects along when the object under them
// moves; and choosing which sighting, if any, the robot localizes to.
// Key types: Resolver, ActiveIdentityPolicy, Sink.
//
// Dependency rule: L5 may depend on L1-L4 and the robot oracle, but never
// on L6. Failures are soft except invariant violations, which
// abort the current family pass.
package l5identity
