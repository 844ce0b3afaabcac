package l6world

import (
	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l3objects"
	"gonum.org/v1/gonum/spatial/r3"
)

// GetObjectByID returns the object with id, or nil.
func (w *World) GetObjectByID(id l3objects.ObjectID) *l3objects.Object { return w.reg.Get(id) }

// GetObjectByIDAndFamily returns the object with id if it is in fam.
func (w *World) GetObjectByIDAndFamily(id l3objects.ObjectID, fam l3objects.Family) *l3objects.Object {
	return w.reg.GetInFamily(id, fam)
}

// GetActiveObjectByActiveID returns the object paired with radio slot aid.
func (w *World) GetActiveObjectByActiveID(aid l3objects.ActiveID) *l3objects.Object {
	return w.reg.GetByActiveID(aid)
}

// GetObjectsByFamily returns fam's objects in every origin, ordered by ID.
func (w *World) GetObjectsByFamily(fam l3objects.Family) []*l3objects.Object {
	return w.reg.ByFamily(fam)
}

// GetObjectsByType returns typ's objects in every origin, ordered by ID.
func (w *World) GetObjectsByType(typ l3objects.Type) []*l3objects.Object {
	return w.reg.ByType(typ)
}

// FindMatchingObjects returns the objects passing f.
func (w *World) FindMatchingObjects(f *l3objects.Filter) []*l3objects.Object { return w.reg.Find(f) }

// FindFirstMatchingObject returns the lowest-ID object passing f.
func (w *World) FindFirstMatchingObject(f *l3objects.Filter) *l3objects.Object {
	return w.reg.FindFirst(f)
}

// FindClosestMatchingObject returns the object that cand is a sighting of.
func (w *World) FindClosestMatchingObject(cand *l3objects.Object, distThreshold r3.Vec, angleThreshold float64, f *l3objects.Filter) *l3objects.Object {
	return w.reg.FindClosestMatchingObject(cand, distThreshold, angleThreshold, f)
}

// FindObjectOnTopOf returns the object resting on base.
func (w *World) FindObjectOnTopOf(base *l3objects.Object, zTol float64, f *l3objects.Filter) *l3objects.Object {
	return w.reg.FindObjectOnTopOf(base, zTol, f)
}

// FindObjectUnderneath returns the object top rests on.
func (w *World) FindObjectUnderneath(top *l3objects.Object, zTol float64, f *l3objects.Filter) *l3objects.Object {
	return w.reg.FindObjectUnderneath(top, zTol, f)
}

// FindObjectClosestTo returns the known object nearest pose.
func (w *World) FindObjectClosestTo(pose l1frames.Pose, distThreshold r3.Vec, f *l3objects.Filter) *l3objects.Object {
	return w.reg.FindObjectClosestTo(pose, distThreshold, f)
}

// FindMostRecentlyObservedObject returns the last object seen.
func (w *World) FindMostRecentlyObservedObject(f *l3objects.Filter) *l3objects.Object {
	return w.reg.FindMostRecentlyObserved(f)
}

// FindIntersectingObjects returns objects overlapping o.
func (w *World) FindIntersectingObjects(o *l3objects.Object, padding float64, f *l3objects.Filter) []*l3objects.Object {
	return w.reg.FindIntersectingObjects(o, padding, f)
}

// GetObjectBoundingBoxesXY returns the padded footprints of confirmed,
// known objects passing f whose height range overlaps [minHeight,
// maxHeight] in their origin.
func (w *World) GetObjectBoundingBoxesXY(minHeight, maxHeight, padding float64, f *l3objects.Filter) []l1frames.Quad {
	var out []l1frames.Quad
	for _, o := range w.reg.Find(f) {
		if !o.IsExistenceConfirmed() || !o.IsPoseStateKnown() {
			continue
		}
		lo, hi, err := o.HeightRange()
		if err != nil || hi < minHeight || lo > maxHeight {
			continue
		}
		q, err := o.BoundingQuadXY(padding)
		if err != nil {
			continue
		}
		out = append(out, q)
	}
	return out
}

// GetObstacles returns the footprints the robot must avoid at its current
// height: every object in its way except what it carries and the mat it
// stands on, plus that mat's unsafe regions.
func (w *World) GetObstacles(padding float64) []l1frames.Quad {
	rp, err := w.robotPoseWrtOrigin()
	if err != nil {
		return nil
	}
	size := w.robot.Size()
	ignore := []l3objects.ObjectID{w.robot.CarryingObject()}
	var out []l1frames.Quad
	for _, mat := range w.reg.Find(l3objects.NewFilter().AllowFamily(l3objects.FamilyMat)) {
		on, err := mat.IsPoseOn(w.robot.Pose(), 0, 0.25*size.Z)
		if err != nil || !on {
			continue
		}
		ignore = append(ignore, mat.ID())
		if quads, _, err := mat.UnsafeQuads(padding); err == nil {
			out = append(out, quads...)
		}
	}
	f := l3objects.NewFilter().IgnoreID(ignore...)
	return append(out, w.GetObjectBoundingBoxesXY(rp.Trans.Z, rp.Trans.Z+size.Z, padding, f)...)
}

// AnyRemainingLocalizableObjects reports whether any confirmed object with
// a known pose could still anchor the robot. Cubes without a radio,
// chargers, ramps and markerless obstacles do not count.
func (w *World) AnyRemainingLocalizableObjects() bool {
	f := l3objects.NewFilter().AnyOrigin().IgnoreFamily(
		l3objects.FamilyBlock, l3objects.FamilyCharger, l3objects.FamilyMarkerless, l3objects.FamilyRamp)
	for _, o := range w.reg.Find(f) {
		if o.IsLocalizable() && o.IsPoseStateKnown() && o.IsExistenceConfirmed() {
			return true
		}
	}
	return false
}
