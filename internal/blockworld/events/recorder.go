package events

import "github.com/banshee-data/blockworld/internal/blockworld/l3objects"

// Recorder keeps every event it receives, in order.
type Recorder struct {
	events []Event
}

// Broadcast implements Broadcaster.
func (r *Recorder) Broadcast(e Event) { r.events = append(r.events, e) }

// Events returns everything recorded so far.
func (r *Recorder) Events() []Event { return r.events }

// Len returns the number of recorded events.
func (r *Recorder) Len() int { return len(r.events) }

// Reset forgets all recorded events.
func (r *Recorder) Reset() { r.events = r.events[:0] }

// OfKind returns the recorded events of kind k.
func (r *Recorder) OfKind(k Kind) []Event {
	var out []Event
	for _, e := range r.events {
		if e.Kind() == k {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many events of kind k were recorded.
func (r *Recorder) Count(k Kind) int { return len(r.OfKind(k)) }

// Observed returns the ObjectObserved events for id.
func (r *Recorder) Observed(id l3objects.ObjectID) []ObjectObserved {
	var out []ObjectObserved
	for _, e := range r.events {
		if o, ok := e.(ObjectObserved); ok && o.ID == id {
			out = append(out, o)
		}
	}
	return out
}

// PoseUnknowns returns the PoseUnknown events for id.
func (r *Recorder) PoseUnknowns(id l3objects.ObjectID) []PoseUnknown {
	var out []PoseUnknown
	for _, e := range r.events {
		if p, ok := e.(PoseUnknown); ok && p.ID == id {
			out = append(out, p)
		}
	}
	return out
}
