package l5identity

import (
	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l3objects"
	"gonum.org/v1/gonum/spatial/r3"
)

// PropagateStack carries the objects stacked on bottom along with it when
// bottom is about to move to newPose. Each level keeps its offset from the
// level below; only translation is carried. The walk stops at an object
// already observed at ts, after maxWalk levels, or on a revisit. It must
// run before bottom's pose is overwritten. It returns how many objects
// moved.
func PropagateStack(reg *l3objects.Registry, bottom *l3objects.Object, newPose l1frames.Pose,
	ts l3objects.Timestamp, zTol float64, maxWalk int) int {
	oldBottom, err := bottom.PoseWrtOrigin()
	if err != nil {
		return 0
	}
	newBottom, err := reg.Arena().WrtOrigin(newPose)
	if err != nil || newBottom.Parent != oldBottom.Parent {
		tracef("not propagating stack on %s across origins", bottom)
		return 0
	}

	all := l3objects.NewFilter().AnyOrigin()
	visited := map[l3objects.ObjectID]bool{bottom.ID(): true}
	moved := 0
	top := reg.FindObjectOnTopOf(bottom, zTol, all)
	for top != nil && top.LastObservedTime() != ts {
		if moved >= maxWalk {
			opsf("stack on %s deeper than %d levels; stopped propagating", bottom, maxWalk)
			break
		}
		if visited[top.ID()] {
			opsf("stack on %s revisits %s; stopped propagating", bottom, top)
			break
		}
		visited[top.ID()] = true

		topPose, err := top.PoseWrtOrigin()
		if err != nil {
			break
		}
		// Find the next level while top still sits where it was.
		next := reg.FindObjectOnTopOf(top, zTol, all)

		newTop := l1frames.Pose{
			Transform: topPose.Translated(r3.Add(newBottom.Trans, r3.Sub(topPose.Trans, oldBottom.Trans))),
			Parent:    topPose.Parent,
		}
		target := newTop
		if parent := top.Pose().Parent; parent != target.Parent {
			if p, err := reg.Arena().WithRespectTo(target, parent); err == nil {
				target = p
			}
		}
		if err := top.SetPose(target, -1, top.PoseState()); err != nil {
			opsf("moving %s with the stack under it: %v", top, err)
			break
		}
		d := r3.Sub(newTop.Trans, topPose.Trans)
		tracef("moved %s with %s by (%.1f, %.1f, %.1f)", top, bottom, d.X, d.Y, d.Z)
		moved++

		oldBottom, newBottom = topPose, newTop
		top = next
	}
	return moved
}
