package l6world

import (
	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l3objects"
)

// MaxActiveID is the highest radio slot.
const MaxActiveID l3objects.ActiveID = 3

// AddActiveObject pairs a radio connection with an object. It reuses the
// object already paired with activeID, or an unpaired object of the same
// type, and otherwise creates a new object whose pose is unknown until it
// is seen. It returns NoID when activeID is invalid or the type is already
// paired with a different device.
func (w *World) AddActiveObject(activeID l3objects.ActiveID, factory l3objects.FactoryID, typ l3objects.Type) l3objects.ObjectID {
	if activeID < 0 || activeID > MaxActiveID {
		opsf("invalid active ID %d for %s", activeID, typ)
		return l3objects.NoID
	}

	if o := w.reg.GetByActiveID(activeID); o != nil {
		a, _ := o.AsActive()
		if o.Type() == typ && (a.Factory == factory || a.Factory == 0) {
			a.Factory = factory
			a.Identity = l3objects.Identified
			return o.ID()
		}
		opsf("active ID %d was %s (factory %#x), now a %s (factory %#x); replacing",
			activeID, o, a.Factory, typ, factory)
		w.forceDelete(o)
	}

	for _, o := range w.reg.ByType(typ) {
		a, ok := o.AsActive()
		if !ok {
			continue
		}
		switch {
		case !a.IsConnected():
			a.Factory = factory
		case a.Factory != factory:
			opsf("a %s is already connected as factory %#x; ignoring factory %#x", typ, a.Factory, factory)
			return l3objects.NoID
		}
		a.ID = activeID
		a.Identity = l3objects.Identified
		diagf("paired %s with active ID %d", o, activeID)
		return o.ID()
	}

	switch w.lib.FamilyOf(typ) {
	case l3objects.FamilyLightCube, l3objects.FamilyCharger:
	default:
		opsf("cannot add active object of type %s", typ)
		return l3objects.NoID
	}
	if !w.reg.AdditionEnabled() {
		opsf("connected to a %s but adding objects is disabled", typ)
		return l3objects.NoID
	}
	o, err := w.lib.New(typ, l1frames.Pose{Transform: l1frames.Identity(), Parent: w.robot.WorldOrigin()})
	if err != nil {
		opsf("adding active %s: %v", typ, err)
		return l3objects.NoID
	}
	a, ok := o.AsActive()
	if !ok {
		opsf("type %s has no radio", typ)
		return l3objects.NoID
	}
	a.ID = activeID
	a.Factory = factory
	a.Identity = l3objects.Identified
	o.SetPoseState(l3objects.PoseUnknown)
	id, err := w.reg.Add(o)
	if err != nil {
		opsf("adding active %s: %v", typ, err)
		return l3objects.NoID
	}
	diagf("added %s for active ID %d; pose unknown until seen", o, activeID)
	w.didChange = true
	return id
}

// forceDelete removes o regardless of the deletion toggle.
func (w *World) forceDelete(o *l3objects.Object) {
	was := w.reg.DeletionEnabled()
	w.reg.EnableDeletion(true)
	w.DeleteObject(o.ID())
	w.reg.EnableDeletion(was)
}
