package l6world

import (
	"github.com/banshee-data/blockworld/internal/blockworld/l3objects"
)

// ClearObject marks the object's pose unknown, along with everything
// stacked on it. The object stays registered. It returns false when the
// object does not exist or deletion is disabled and it is confirmed.
func (w *World) ClearObject(id l3objects.ObjectID) bool {
	o := w.reg.Get(id)
	if o == nil {
		opsf("clear %s: no such object", id)
		return false
	}
	if !w.reg.CanRemove(o) {
		opsf("not clearing %s: deletion is disabled", o)
		return false
	}
	w.clearObject(o)
	return true
}

// DeleteObject clears the object and then removes it from the registry. It
// returns whether the object was found and could be removed. When the
// object's frame anchors an origin, the origin outlives it.
func (w *World) DeleteObject(id l3objects.ObjectID) bool {
	o := w.reg.Get(id)
	if o == nil {
		opsf("delete %s: no such object", id)
		return false
	}
	if !w.reg.CanRemove(o) {
		opsf("not deleting %s: deletion is disabled", o)
		return false
	}
	w.clearObject(o)
	if _, err := w.reg.Remove(id); err != nil {
		opsf("delete %s: %v", o, err)
		return false
	}
	for i, seen := range w.currentObserved {
		if seen == o {
			w.currentObserved = append(w.currentObserved[:i], w.currentObserved[i+1:]...)
			break
		}
	}
	w.didChange = true
	return true
}

// ClearObjectsByFamily clears every object of fam and returns how many were
// cleared.
func (w *World) ClearObjectsByFamily(fam l3objects.Family) int {
	return w.forEach(w.reg.ByFamily(fam), w.ClearObject)
}

// ClearObjectsByType clears every object of typ.
func (w *World) ClearObjectsByType(typ l3objects.Type) int {
	return w.forEach(w.reg.ByType(typ), w.ClearObject)
}

// DeleteObjectsByFamily deletes every object of fam and returns how many
// were deleted.
func (w *World) DeleteObjectsByFamily(fam l3objects.Family) int {
	return w.forEach(w.reg.ByFamily(fam), w.DeleteObject)
}

// DeleteObjectsByType deletes every object of typ.
func (w *World) DeleteObjectsByType(typ l3objects.Type) int {
	return w.forEach(w.reg.ByType(typ), w.DeleteObject)
}

// ClearAllObjects clears every registered object.
func (w *World) ClearAllObjects() int {
	return w.forEach(w.reg.All(), w.ClearObject)
}

// DeleteAllObjects deletes every registered object and the memory maps.
func (w *World) DeleteAllObjects() int {
	n := w.forEach(w.reg.All(), w.DeleteObject)
	if w.cfg.EnableMapMemory {
		for _, origin := range w.maps.Origins() {
			w.maps.Retire(origin)
		}
		w.maps.CreateLocalized(w.robot.WorldOrigin())
	}
	return n
}

func (w *World) forEach(objs []*l3objects.Object, fn func(l3objects.ObjectID) bool) int {
	n := 0
	for _, o := range objs {
		if fn(o.ID()) {
			n++
		}
	}
	return n
}

// clearObject drops the robot's references to o, clears what is stacked on
// it and marks its pose unknown.
func (w *World) clearObject(o *l3objects.Object) {
	w.clearStacked(o, 0)
}

func (w *World) clearStacked(o *l3objects.Object, level int) {
	if level > w.cfg.MaxStackWalk {
		opsf("stack above %s is deeper than %d; stopping", o, w.cfg.MaxStackWalk)
		return
	}
	if w.robot.LocalizedTo() == o.ID() {
		diagf("robot was localized to %s; delocalizing", o)
		w.robot.SetLocalizedTo(l3objects.NoID)
	}
	if w.robot.CarryingObject() == o.ID() {
		w.robot.UnsetCarryingObject()
	}
	o.SetBeingCarried(false)
	o.SetSelected(false)

	if o.IsPoseStateKnown() {
		if top := w.reg.FindObjectOnTopOf(o, w.cfg.StackedHeightTol, l3objects.NewFilter().AnyOrigin()); top != nil {
			w.clearStacked(top, level+1)
		}
	}

	wasKnown := o.IsPoseStateKnown()
	o.SetPoseState(l3objects.PoseUnknown)
	if wasKnown && o.IsExistenceConfirmed() {
		w.broadcastPoseUnknown(o)
	}
	w.didChange = true
	tracef("cleared %s", o)
}

// ---------------------------------------------------------------------------
// Selection
// ---------------------------------------------------------------------------

// SelectObject makes id the selected object. It returns false for unknown IDs.
func (w *World) SelectObject(id l3objects.ObjectID) bool {
	o := w.reg.Get(id)
	if o == nil {
		opsf("select %s: no such object", id)
		return false
	}
	w.DeselectCurrentObject()
	o.SetSelected(true)
	return true
}

// DeselectCurrentObject clears the selection.
func (w *World) DeselectCurrentObject() {
	if o := w.GetSelectedObject(); o != nil {
		o.SetSelected(false)
	}
}

// GetSelectedObject returns the selected object, or nil.
func (w *World) GetSelectedObject() *l3objects.Object {
	for _, o := range w.reg.All() {
		if o.IsSelected() {
			return o
		}
	}
	return nil
}

// CycleSelectedObject selects the next selectable object after the current
// one in ID order, wrapping around, and returns it. Markerless, carried and
// unconfirmed objects are skipped.
func (w *World) CycleSelectedObject() *l3objects.Object {
	var candidates []*l3objects.Object
	for _, o := range w.reg.All() {
		if o.IsMarkerless() || !o.IsExistenceConfirmed() || o.ID() == w.robot.CarryingObject() {
			continue
		}
		candidates = append(candidates, o)
	}
	if len(candidates) == 0 {
		w.DeselectCurrentObject()
		return nil
	}
	next := candidates[0]
	if cur := w.GetSelectedObject(); cur != nil {
		for _, o := range candidates {
			if o.ID() > cur.ID() {
				next = o
				break
			}
		}
	}
	w.SelectObject(next.ID())
	return next
}
