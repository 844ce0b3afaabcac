package l3objects

import (
	"errors"
	"math"

	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// FindClosestMatchingObject returns the registered object of cand's type
// that IsSameAs cand and sits closest to it. Objects with unknown pose are
// considered too. cand itself is never returned.
func (r *Registry) FindClosestMatchingObject(cand *Object, distThreshold r3.Vec, angleThreshold float64, f *Filter) *Object {
	cp, err := cand.PoseWrtOrigin()
	if err != nil {
		return nil
	}
	var (
		best     *Object
		bestDist = math.Inf(1)
	)
	ctx := r.MatchContext()
	for _, o := range r.ByType(cand.typ) {
		if o == cand || !f.Matches(o, ctx) {
			continue
		}
		same, err := o.IsSameAs(cand, distThreshold, angleThreshold)
		if err != nil {
			if !errors.Is(err, l1frames.ErrNotConnected) {
				opsf("matching %s against %s: %v", cand, o, err)
			}
			continue
		}
		if !same {
			continue
		}
		op, _ := o.PoseWrtOrigin()
		if d := r3.Norm(r3.Sub(op.Trans, cp.Trans)); d < bestDist {
			best, bestDist = o, d
		}
	}
	if best != nil {
		tracef("candidate %s matched %s at %.1fmm", cand.typ, best, bestDist)
	}
	return best
}

// FindObjectOnTopOf returns the object resting on base: its centre is over
// base's footprint and its bottom is within zTol of base's top.
func (r *Registry) FindObjectOnTopOf(base *Object, zTol float64, f *Filter) *Object {
	return r.findStacked(base, zTol, f, true)
}

// FindObjectUnderneath returns the object top is resting on.
func (r *Registry) FindObjectUnderneath(top *Object, zTol float64, f *Filter) *Object {
	return r.findStacked(top, zTol, f, false)
}

func (r *Registry) findStacked(ref *Object, zTol float64, f *Filter, above bool) *Object {
	refQuad, err := ref.BoundingQuadXY(0)
	if err != nil {
		return nil
	}
	refLo, refHi, _ := ref.HeightRange()
	refPose, _ := ref.PoseWrtOrigin()
	ctx := r.MatchContext()
	for _, o := range r.All() {
		if o == ref || !o.IsPoseStateKnown() || o.IsMarkerless() || !f.Matches(o, ctx) {
			continue
		}
		if o.Origin() != refPose.Parent {
			continue
		}
		lo, hi, err := o.HeightRange()
		if err != nil {
			continue
		}
		op, _ := o.PoseWrtOrigin()
		centre := r2.Vec{X: op.Trans.X, Y: op.Trans.Y}
		if above {
			if math.Abs(lo-refHi) <= zTol && refQuad.Contains(centre) {
				return o
			}
			continue
		}
		oQuad, err := o.BoundingQuadXY(0)
		if err != nil {
			continue
		}
		refCentre := r2.Vec{X: refPose.Trans.X, Y: refPose.Trans.Y}
		if math.Abs(refLo-hi) <= zTol && oQuad.Contains(refCentre) {
			return o
		}
	}
	return nil
}

// FindIntersectingObjects returns objects whose padded footprints overlap
// o's and whose height ranges overlap.
func (r *Registry) FindIntersectingObjects(o *Object, padding float64, f *Filter) []*Object {
	q, err := o.BoundingQuadXY(padding)
	if err != nil {
		return nil
	}
	lo, hi, _ := o.HeightRange()
	var out []*Object
	for _, other := range r.FindIntersectingQuad(q, lo, hi, padding, f) {
		if other != o && other.id != o.id {
			out = append(out, other)
		}
	}
	return out
}

// FindIntersectingQuad returns objects whose padded footprint overlaps q
// and whose height range overlaps [minZ, maxZ].
func (r *Registry) FindIntersectingQuad(q l1frames.Quad, minZ, maxZ, padding float64, f *Filter) []*Object {
	ctx := r.MatchContext()
	var out []*Object
	for _, o := range r.All() {
		if !o.IsPoseStateKnown() || !f.Matches(o, ctx) {
			continue
		}
		oq, err := o.BoundingQuadXY(padding)
		if err != nil {
			continue
		}
		lo, hi, _ := o.HeightRange()
		if hi < minZ || lo > maxZ {
			continue
		}
		if oq.Intersects(q) {
			out = append(out, o)
		}
	}
	return out
}

// FindObjectClosestTo returns the known-pose object nearest pose within
// distThreshold per axis.
func (r *Registry) FindObjectClosestTo(pose l1frames.Pose, distThreshold r3.Vec, f *Filter) *Object {
	p, err := r.arena.WrtOrigin(pose)
	if err != nil {
		return nil
	}
	var (
		best     *Object
		bestDist = math.Inf(1)
	)
	ctx := r.MatchContext()
	for _, o := range r.All() {
		if !o.IsPoseStateKnown() || !f.Matches(o, ctx) {
			continue
		}
		op, err := o.PoseWrtOrigin()
		if err != nil || op.Parent != p.Parent {
			continue
		}
		d := r3.Sub(op.Trans, p.Trans)
		if math.Abs(d.X) > distThreshold.X || math.Abs(d.Y) > distThreshold.Y || math.Abs(d.Z) > distThreshold.Z {
			continue
		}
		if n := r3.Norm(d); n < bestDist {
			best, bestDist = o, n
		}
	}
	return best
}

// FindMostRecentlyObserved returns the object with the latest observation
// time, lowest ID first on ties.
func (r *Registry) FindMostRecentlyObserved(f *Filter) *Object {
	var best *Object
	for _, o := range r.Find(f) {
		if best == nil || o.lastObserved > best.lastObserved {
			best = o
		}
	}
	return best
}
