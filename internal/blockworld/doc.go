// Package blockworld ties together the layers of the BlockWorld model.
//
// Layers, bottom up:
//
//	l1frames   pose frames and rigid transforms
//	l2vision   camera, markers and the per-tick marker queue
//	l3objects  object kinds, prototypes and the registry
//	l4navmap   per-origin memory maps
//	l5identity matching observations to known objects
//	l6world    the World facade and its per-tick Update
//
// Around them sit robot (the robot oracle and a simulator), events,
// storage/sqlite, metrics, monitor and scenario.
//
// Dependency rule: this package may import every layer; no layer imports
// it. It only fans configuration, such as log writers, out to the layers.
package blockworld
