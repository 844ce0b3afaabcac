package l5identity

import (
	"errors"
	"fmt"
	"sort"

	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l3objects"
	"github.com/banshee-data/blockworld/internal/blockworld/robot"
	"gonum.org/v1/gonum/spatial/r3"
)

// Params tunes identity resolution.
type Params struct {
	MaxLocalizationDistance float64 // mm; farther candidates are reported but not resolved
	StackedHeightTol        float64 // mm
	MaxStackWalk            int
	OnePerType              OnePerType
}

// Sink receives the outcome of each resolved candidate. The world model
// implements it.
type Sink interface {
	// BroadcastObservation reports a sighting of o.
	BroadcastObservation(o *l3objects.Object, markersVisible bool)
	// ObjectResolved is called once per candidate that ended up as a
	// registered object this pass.
	ObjectResolved(o *l3objects.Object)
	// OriginChanged is called after the robot localized into another
	// origin; objects and maps under c.Old must follow.
	OriginChanged(c robot.OriginChange) error
}

// Resolver matches candidate objects against the registry.
type Resolver struct {
	reg    *l3objects.Registry
	robot  robot.Oracle
	sink   Sink
	policy ActiveIdentityPolicy
	params Params
}

// NewResolver returns a resolver using the single-instance active policy.
func NewResolver(reg *l3objects.Registry, rob robot.Oracle, sink Sink, params Params) *Resolver {
	return &Resolver{reg: reg, robot: rob, sink: sink, policy: SingleInstancePerType{}, params: params}
}

// SetPolicy swaps the active identity policy.
func (r *Resolver) SetPolicy(p ActiveIdentityPolicy) { r.policy = p }

// localization is a sighting of an existing object held back until every
// candidate of the pass is resolved.
type localization struct {
	seen     *l3objects.Object
	matched  *l3objects.Object
	distance float64
}

// apply gives up on localizing and moves the object instead.
func (l localization) apply() {
	if err := l.matched.SetPose(l.seen.Pose(), l.distance, l3objects.PoseKnown); err != nil {
		opsf("updating %s: %v", l.matched, err)
	}
}

// AddAndUpdateObjects resolves one family's candidates, all built from
// markers at ts, in order of distance from the robot. Candidates that match
// nothing become new objects when addition is enabled. At most one sighting
// per origin is used to localize the robot, the nearest, and the nearest
// overall is applied last. The returned error is non-nil only on an
// invariant violation or a failed localization; candidates already resolved
// stay resolved.
func (r *Resolver) AddAndUpdateObjects(cands []*l3objects.Object, family l3objects.Family, ts l3objects.Timestamp) error {
	arena := r.reg.Arena()
	currFrame := r.robot.WorldOrigin()
	resolved := make(map[l3objects.ObjectID]bool)
	pending := make(map[l1frames.FrameID]localization)

	type byDist struct {
		o *l3objects.Object
		d float64
	}
	ordered := make([]byDist, 0, len(cands))
	for _, c := range cands {
		d, err := arena.Distance(r.robot.Pose(), c.Pose())
		if err != nil {
			opsf("%s candidate is not connected to the robot: %v", c.Type(), err)
			continue
		}
		ordered = append(ordered, byDist{c, d})
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].d < ordered[j].d })

	for _, cd := range ordered {
		cand, dist := cd.o, cd.d
		if dist > r.params.MaxLocalizationDistance {
			tracef("%s candidate at %.0fmm is beyond identification range", cand.Type(), dist)
			r.sink.BroadcastObservation(cand, true)
			continue
		}

		var match *l3objects.Object
		if cand.IsActive() {
			m, skip := r.policy.Match(r.reg, cand)
			if skip {
				continue
			}
			if m != nil && resolved[m.ID()] {
				opsf("ignoring second %s seen at the same time as %s", cand.Type(), m)
				continue
			}
			match = m
			if match != nil && match.ID() == r.robot.CarryingObject() {
				same, err := match.IsSameAs(cand, cand.SameDistanceTolerance(), l3objects.DefaultSameAngleTolerance)
				if err == nil && same {
					tracef("%s seen where it is carried", match)
					continue
				}
				diagf("%s seen off the lift; no longer carried", match)
				r.robot.UnsetCarryingObject()
				match.SetBeingCarried(false)
			}
		} else {
			match = r.reg.FindClosestMatchingObject(cand, cand.SameDistanceTolerance(),
				l3objects.DefaultSameAngleTolerance, l3objects.NewFilter().AnyOrigin())
			if match != nil && match.ID() == r.robot.CarryingObject() {
				continue
			}
		}

		r.reparentToMat(cand)

		var observed *l3objects.Object
		if match == nil {
			o, ok := r.addNew(cand, ts, resolved)
			if !ok {
				continue
			}
			observed = o
		} else {
			PropagateStack(r.reg, match, cand.Pose(), ts, r.params.StackedHeightTol, r.params.MaxStackWalk)
			match.SetLastObservedTime(ts)
			match.UpdateMarkerObservationTimes(cand)

			if r.shouldLocalizeTo(match, dist) {
				frame := match.Origin()
				if prev, ok := pending[frame]; ok {
					if dist < prev.distance {
						prev.apply()
						pending[frame] = localization{cand, match, dist}
					} else {
						localization{cand, match, dist}.apply()
					}
				} else {
					pending[frame] = localization{cand, match, dist}
				}
			} else {
				localization{cand, match, dist}.apply()
			}
			observed = match

			if observed.IsIdentified() && observed.Origin() == currFrame {
				cam := r.robot.Camera()
				for _, m := range cand.ObservedMarkers() {
					cam.AddMarkerOccluder(m)
				}
			}
		}

		if observed.IsBeingCarried() && r.robot.CarryingObject() != observed.ID() {
			opsf("%s thinks it is being carried but the robot is carrying %s; setting it uncarried",
				observed, r.robot.CarryingObject())
			observed.SetBeingCarried(false)
		}
		if !observed.ID().IsSet() {
			return fmt.Errorf("%s object resolved without an ID: %w", observed.Type(), l3objects.ErrInvariant)
		}
		resolved[observed.ID()] = true
		if observed.Origin() == currFrame {
			r.sink.BroadcastObservation(observed, true)
		}
		r.sink.ObjectResolved(observed)
	}

	return r.localize(pending, currFrame)
}

// addNew registers cand, or under the one-per-type mode folds it into the
// existing object of its type.
func (r *Resolver) addNew(cand *l3objects.Object, ts l3objects.Timestamp, resolved map[l3objects.ObjectID]bool) (*l3objects.Object, bool) {
	if !cand.IsActive() && r.params.OnePerType.Applies(r.robot.IsPhysical()) {
		if same := r.reg.ByType(cand.Type()); len(same) > 0 {
			existing := same[0]
			if resolved[existing.ID()] || existing.LastObservedTime() >= ts {
				opsf("ignoring second %s seen at the same time (one object per type)", cand.Type())
				return nil, false
			}
			opsf("%s did not match by pose; assuming it is %s (one object per type)", cand.Type(), existing)
			if err := existing.SetPose(cand.Pose(), -1, l3objects.PoseKnown); err != nil {
				opsf("moving %s: %v", existing, err)
				return nil, false
			}
			// Only a re-sighting in the same place counts towards confirmation.
			if existing.IsExistenceConfirmed() {
				existing.SetLastObservedTime(ts)
				existing.UpdateMarkerObservationTimes(cand)
			}
			if r.robot.CarryingObject() == existing.ID() {
				r.robot.UnsetCarryingObject()
				existing.SetBeingCarried(false)
			}
			return existing, true
		}
	}

	if !r.reg.AdditionEnabled() {
		opsf("saw a new %s but adding objects is disabled", cand.Type())
		return nil, false
	}
	if a, ok := cand.AsActive(); ok && !a.IsConnected() {
		a.Identity = l3objects.WaitingForIdentity
		a.IdentifyStart = ts
	}
	if _, err := r.reg.Add(cand); err != nil {
		opsf("adding %s: %v", cand.Type(), err)
		return nil, false
	}
	p := cand.Pose()
	diagf("added %s at (%.1f, %.1f, %.1f) under frame %d", cand, p.Trans.X, p.Trans.Y, p.Trans.Z, p.Parent)
	return cand, true
}

// reparentToMat re-expresses cand relative to a trusted mat it rests on.
func (r *Resolver) reparentToMat(cand *l3objects.Object) {
	tol := r3.Norm(cand.SameDistanceTolerance()) * 0.5
	for _, mat := range r.reg.ByFamily(l3objects.FamilyMat) {
		if !mat.IsExistenceConfirmed() || !mat.IsPoseStateKnown() {
			continue
		}
		on, err := mat.IsPoseOn(cand.Pose(), tol, tol)
		if err != nil || !on {
			continue
		}
		p, err := r.reg.Arena().WithRespectTo(cand.Pose(), mat.Frame())
		if err != nil {
			continue
		}
		if err := cand.SetPose(p, -1, cand.PoseState()); err == nil {
			tracef("%s candidate is on %s", cand.Type(), mat)
		}
	}
}

// shouldLocalizeTo decides whether a matched sighting corrects the robot
// rather than the object.
func (r *Resolver) shouldLocalizeTo(match *l3objects.Object, dist float64) bool {
	if r.robot.IsPhysical() && r.robot.SkipVisionLocalization() {
		return false
	}
	return dist <= r.params.MaxLocalizationDistance &&
		match.CanBeUsedForLocalization() &&
		match.ID() != r.robot.DockingObject() &&
		(!r.robot.IsLocalized() || r.robot.HasMovedSinceBeingLocalized())
}

// localize applies the held-back sightings. When sightings in other
// origins exist, the current origin's is applied to its object; the rest
// localize the robot farthest first so the nearest wins.
func (r *Resolver) localize(pending map[l1frames.FrameID]localization, currFrame l1frames.FrameID) error {
	if cur, ok := pending[currFrame]; ok && len(pending) > 1 {
		cur.apply()
		delete(pending, currFrame)
	}
	order := make([]localization, 0, len(pending))
	for _, l := range pending {
		order = append(order, l)
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].distance != order[j].distance {
			return order[i].distance > order[j].distance
		}
		return order[i].matched.ID() < order[j].matched.ID()
	})

	var errs []error
	for _, l := range order {
		change, err := r.robot.LocalizeToObject(l.matched.ID(), l.seen.Pose(), l.matched.FramePose())
		if err != nil {
			opsf("failed to localize to %s: %v", l.matched, err)
			return fmt.Errorf("localize to %s: %w", l.matched, err)
		}
		diagf("localized to %s at %.0fmm", l.matched, l.distance)
		if change.Changed() {
			if err := r.sink.OriginChanged(change); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
