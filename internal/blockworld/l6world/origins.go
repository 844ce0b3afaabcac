package l6world

import (
	"errors"
	"fmt"

	"github.com/banshee-data/blockworld/internal/blockworld/events"
	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l3objects"
	"github.com/banshee-data/blockworld/internal/blockworld/l4navmap"
)

// UpdateObjectOrigins re-parents every object directly under oldOrigin onto
// newOrigin and folds oldOrigin's memory map into newOrigin's. Migration is
// best effort: an object that cannot be moved keeps its old parent and the
// failure is returned, but the rest still migrate.
func (w *World) UpdateObjectOrigins(oldOrigin, newOrigin l1frames.FrameID) error {
	if oldOrigin == newOrigin {
		return nil
	}
	if !w.arena.Exists(oldOrigin) || !w.arena.Exists(newOrigin) {
		opsf("cannot migrate objects from origin %d to %d", oldOrigin, newOrigin)
		return fmt.Errorf("update object origins %d -> %d: %w", oldOrigin, newOrigin, ErrUnknownOrigin)
	}

	var (
		errs     []error
		migrated []l3objects.ObjectID
		failed   []l3objects.ObjectID
	)
	for _, o := range w.reg.All() {
		cur := o.Pose()
		if cur.Parent != oldOrigin {
			continue
		}
		p, err := w.arena.WithRespectTo(cur, newOrigin)
		if err == nil {
			err = o.SetPose(p, -1, o.PoseState())
		}
		if err != nil {
			opsf("failed to move %s from origin %d to %d: %v", o, oldOrigin, newOrigin, err)
			errs = append(errs, fmt.Errorf("migrate %s: %w", o, err))
			failed = append(failed, o.ID())
			continue
		}
		migrated = append(migrated, o.ID())
		diagf("moved %s from origin %d to %d", o, oldOrigin, newOrigin)
		if o.IsPoseStateKnown() {
			w.BroadcastObservation(o, false)
		}
	}

	if w.cfg.EnableMapMemory {
		oldToNew, err := w.arena.WithRespectTo(l1frames.Pose{Transform: l1frames.Identity(), Parent: oldOrigin}, newOrigin)
		if err != nil {
			errs = append(errs, fmt.Errorf("memory map transform %d -> %d: %w", oldOrigin, newOrigin, err))
			w.maps.Retire(oldOrigin)
			w.maps.CreateLocalized(newOrigin)
		} else if err := w.maps.Merge(oldOrigin, newOrigin, oldToNew.Transform); err != nil {
			if errors.Is(err, l4navmap.ErrMissingMap) {
				err = fmt.Errorf("%w: %w", l3objects.ErrInvariant, err)
			}
			opsf("merging memory maps: %v", err)
			errs = append(errs, err)
		}
	}

	if len(migrated) > 0 || len(failed) > 0 {
		w.didChange = true
	}
	w.bc.Broadcast(events.OriginsMerged{
		Timestamp: w.robot.LastImageTimestamp(),
		Old:       oldOrigin,
		New:       newOrigin,
		Migrated:  migrated,
		Failed:    failed,
	})
	return errors.Join(errs...)
}
