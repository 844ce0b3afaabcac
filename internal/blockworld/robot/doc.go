// Package robot defines what the BlockWorld model needs to know about the
// robot (pose timeline, origin, camera, carry/dock/localization state) and
// provides Sim, a deterministic in-process robot for replays and tests.
//
// The model never owns robot state; it reads and adjusts it through Oracle.
package robot
