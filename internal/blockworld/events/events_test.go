package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFanoutAndRecorder(t *testing.T) {
	t.Parallel()

	var a, b Recorder
	var seen []Kind
	out := Fanout{&a, nil, &b, BroadcastFunc(func(e Event) { seen = append(seen, e.Kind()) })}

	out.Broadcast(ObjectObserved{Observation{Timestamp: 10, ID: 3, MarkersVisible: true}})
	out.Broadcast(PoseUnknown{Timestamp: 11, ID: 3})
	out.Broadcast(ObservedNothing{Timestamp: 12})
	Discard.Broadcast(ObservedNothing{})

	assert.Equal(t, 3, a.Len())
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, []Kind{KindObjectObserved, KindPoseUnknown, KindObservedNothing}, seen)
	assert.Len(t, a.Observed(3), 1)
	assert.Empty(t, a.Observed(4))
	assert.Len(t, a.PoseUnknowns(3), 1)
	assert.Equal(t, 1, a.Count(KindObservedNothing))
	assert.Equal(t, uint32(12), uint32(a.Events()[2].Time()))

	a.Reset()
	assert.Zero(t, a.Len())
	assert.Equal(t, 3, b.Len())
}

func TestEventStrings(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "observed LightCube/LIGHTCUBE1#5 markers=true",
		ObjectObserved{Observation{Family: "LightCube", Type: "LIGHTCUBE1", ID: 5, MarkersVisible: true}}.String())
	assert.Equal(t, "pose unknown Block/X#2", PoseUnknown{Family: "Block", Type: "X", ID: 2}.String())
}
