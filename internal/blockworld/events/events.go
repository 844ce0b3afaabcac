// Package events defines what the BlockWorld model tells the rest of the
// robot: object sightings, lost poses and origin merges. Delivery is
// synchronous through a Broadcaster; transport and serialization belong to
// whoever implements it.
package events

import (
	"fmt"

	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l2vision"
	"github.com/banshee-data/blockworld/internal/blockworld/l3objects"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Kind names an event type. It is also the persisted event name.
type Kind string

const (
	KindObjectObserved         Kind = "object_observed"
	KindPossibleObjectObserved Kind = "possible_object_observed"
	KindPoseUnknown            Kind = "pose_unknown"
	KindObservedNothing        Kind = "observed_nothing"
	KindOriginsMerged          Kind = "origins_merged"
)

// Event is one broadcast.
type Event interface {
	Kind() Kind
	Time() l2vision.Timestamp
}

// Observation is the payload shared by both sighting events.
type Observation struct {
	Timestamp l2vision.Timestamp `json:"timestamp"`
	Family    l3objects.Family   `json:"family"`
	Type      l3objects.Type     `json:"type"`
	ID        l3objects.ObjectID `json:"id"`

	// Image-space bounding box of the projected object, pixels.
	BoxX float64 `json:"box_x,omitempty"`
	BoxY float64 `json:"box_y,omitempty"`
	BoxW float64 `json:"box_w,omitempty"`
	BoxH float64 `json:"box_h,omitempty"`

	Position r3.Vec           `json:"position"`
	Rotation quat.Number      `json:"rotation"`
	Origin   l1frames.FrameID `json:"origin"`

	TopFaceOrientation float64 `json:"top_face_orientation_rad"`
	MarkersVisible     bool    `json:"markers_visible"`
	IsActive           bool    `json:"is_active"`
}

// ObjectObserved reports an existence-confirmed object.
type ObjectObserved struct{ Observation }

// PossibleObjectObserved reports an unconfirmed sighting. ID is always NoID
// because it is not yet reliable.
type PossibleObjectObserved struct{ Observation }

// PoseUnknown reports that a confirmed object's pose was cleared.
type PoseUnknown struct {
	Timestamp l2vision.Timestamp `json:"timestamp"`
	ID        l3objects.ObjectID `json:"id"`
	Family    l3objects.Family   `json:"family"`
	Type      l3objects.Type     `json:"type"`
}

// ObservedNothing reports a tick in which no object was seen.
type ObservedNothing struct {
	Timestamp l2vision.Timestamp `json:"timestamp"`
}

// OriginsMerged reports that objects under Old were moved under New.
type OriginsMerged struct {
	Timestamp l2vision.Timestamp   `json:"timestamp"`
	Old       l1frames.FrameID     `json:"old_origin"`
	New       l1frames.FrameID     `json:"new_origin"`
	Migrated  []l3objects.ObjectID `json:"migrated"`
	Failed    []l3objects.ObjectID `json:"failed,omitempty"`
}

func (ObjectObserved) Kind() Kind         { return KindObjectObserved }
func (PossibleObjectObserved) Kind() Kind { return KindPossibleObjectObserved }
func (PoseUnknown) Kind() Kind            { return KindPoseUnknown }
func (ObservedNothing) Kind() Kind        { return KindObservedNothing }
func (OriginsMerged) Kind() Kind          { return KindOriginsMerged }

func (e ObjectObserved) Time() l2vision.Timestamp         { return e.Timestamp }
func (e PossibleObjectObserved) Time() l2vision.Timestamp { return e.Timestamp }
func (e PoseUnknown) Time() l2vision.Timestamp            { return e.Timestamp }
func (e ObservedNothing) Time() l2vision.Timestamp        { return e.Timestamp }
func (e OriginsMerged) Time() l2vision.Timestamp          { return e.Timestamp }

func (e ObjectObserved) String() string {
	return fmt.Sprintf("observed %s/%s#%s markers=%t", e.Family, e.Type, e.ID, e.MarkersVisible)
}

func (e PoseUnknown) String() string {
	return fmt.Sprintf("pose unknown %s/%s#%s", e.Family, e.Type, e.ID)
}

// Broadcaster receives events. Implementations must not call back into the
// model.
type Broadcaster interface {
	Broadcast(Event)
}

// BroadcastFunc adapts a function to Broadcaster.
type BroadcastFunc func(Event)

// Broadcast calls f(e).
func (f BroadcastFunc) Broadcast(e Event) { f(e) }

// Discard drops every event.
var Discard Broadcaster = BroadcastFunc(func(Event) {})

// Fanout delivers each event to every member in order.
type Fanout []Broadcaster

// Broadcast implements Broadcaster.
func (f Fanout) Broadcast(e Event) {
	for _, b := range f {
		if b != nil {
			b.Broadcast(e)
		}
	}
}
