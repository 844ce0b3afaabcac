package scenario

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l2vision"
	"github.com/banshee-data/blockworld/internal/blockworld/l3objects"
	"github.com/banshee-data/blockworld/internal/blockworld/l6world"
	"github.com/banshee-data/blockworld/internal/blockworld/robot"
	"github.com/banshee-data/blockworld/internal/timeutil"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// truthObject is a ground-truth object, posed in the truth frame.
type truthObject struct {
	typ  l3objects.Type
	pose l1frames.Transform
}

// StepResult summarizes one replayed step.
type StepResult struct {
	T       l2vision.Timestamp
	Markers int
	// Err is the step's Update or sensor error, if any.
	Err error
}

// Driver feeds a scenario into a World through a simulated robot. The
// truth frame is where the robot started; the driver tracks the true robot
// pose in it separately from the robot's own odometry.
type Driver struct {
	sc    *Scenario
	world *l6world.World
	sim   *robot.Sim
	mount l1frames.Transform

	truth     map[string]truthObject
	truePose  l1frames.Transform
	next      int
	results   []StepResult
	visParams l2vision.VisibilityParams
}

// NewDriver places sc's objects and mounts the camera on sim. The world
// must be built over sim.
func NewDriver(sc *Scenario, w *l6world.World, sim *robot.Sim) *Driver {
	d := &Driver{
		sc:       sc,
		world:    w,
		sim:      sim,
		mount:    l2vision.ForwardLooking(l1frames.DegToRad(sc.CameraTiltDeg)).Translated(r3.Vec{X: robot.CameraForward, Z: robot.CameraHeight}),
		truth:    make(map[string]truthObject),
		truePose: l1frames.Identity(),
	}
	sim.SetCameraMount(d.mount)

	cfg := w.Config()
	cam := sim.Camera()
	d.visParams = cfg.Visibility
	d.visParams.XBorderPad = cfg.BorderPadFraction * float64(cam.Calib.NumCols)
	d.visParams.YBorderPad = cfg.BorderPadFraction * float64(cam.Calib.NumRows)

	for _, o := range sc.Objects {
		d.truth[o.Name] = truthObject{typ: o.Type, pose: o.Transform()}
	}
	return d
}

// Done reports whether every step has run.
func (d *Driver) Done() bool { return d.next >= len(d.sc.Steps) }

// Results returns the results of the steps run so far.
func (d *Driver) Results() []StepResult { return append([]StepResult(nil), d.results...) }

// TruePose returns the robot's ground-truth pose in the truth frame.
func (d *Driver) TruePose() l1frames.Transform { return d.truePose }

// Run replays the remaining steps. A failing step does not stop the replay;
// the returned error joins every step error, or is ctx's error if ctx is
// cancelled between steps.
func (d *Driver) Run(ctx context.Context) error {
	var errs []error
	for !d.Done() {
		if err := ctx.Err(); err != nil {
			return err
		}
		errs = d.stepCollect(errs)
	}
	return errors.Join(errs...)
}

// RunPaced is Run with one step per tick of a ticker from clock. every of
// zero or less runs flat out.
func (d *Driver) RunPaced(ctx context.Context, clock timeutil.Clock, every time.Duration) error {
	if every <= 0 {
		return d.Run(ctx)
	}
	t := clock.NewTicker(every)
	defer t.Stop()

	var errs []error
	for !d.Done() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C():
		}
		errs = d.stepCollect(errs)
	}
	return errors.Join(errs...)
}

func (d *Driver) stepCollect(errs []error) []error {
	if res := d.Step(); res.Err != nil {
		errs = append(errs, fmt.Errorf("t=%d: %w", res.T, res.Err))
	}
	return errs
}

// Step replays the next step. It must not be called once Done.
func (d *Driver) Step() StepResult {
	st := d.sc.Steps[d.next]
	d.next++
	res := StepResult{T: st.T}
	var errs []error

	for _, o := range st.Place {
		d.truth[o.Name] = truthObject{typ: o.Type, pose: o.Transform()}
	}
	for _, name := range st.Remove {
		delete(d.truth, name)
	}

	if st.Drive != nil {
		delta := st.Drive.Transform()
		d.sim.Drive(delta)
		d.truePose = d.truePose.Compose(delta)
	}
	if st.Slip != nil {
		d.truePose = d.truePose.Compose(st.Slip.Transform())
	}
	if st.PickedUp != nil {
		d.sim.SetPickedUp(*st.PickedUp)
	}
	if st.PickingOrPlacing != nil {
		d.sim.SetPickingOrPlacing(*st.PickingOrPlacing)
	}
	if st.CliffSensor != nil {
		d.sim.SetCliff(st.CliffSensor.Detected, r2.Vec{X: st.CliffSensor.DirX, Y: st.CliffSensor.DirY})
	}

	d.sim.SetLastImageTimestamp(st.T)
	if st.Prox != nil {
		if _, err := d.world.AddProxObstacle(d.robotRelative(*st.Prox)); err != nil {
			errs = append(errs, err)
		}
	}
	if st.Cliff != nil {
		if _, err := d.world.AddCliff(d.robotRelative(*st.Cliff)); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range st.Connect {
		if id := d.world.AddActiveObject(c.ActiveID, c.Factory, c.Type); !id.IsSet() {
			opsf("t=%d: could not pair active ID %d with a %s", st.T, c.ActiveID, c.Type)
		}
	}
	if st.NavMap {
		d.world.UpdateNavMemoryMap()
	}

	if !st.Blind {
		n, err := d.look(st.T)
		res.Markers = n
		if err != nil {
			errs = append(errs, err)
		}
	}
	if err := d.world.Update(); err != nil {
		opsf("t=%d: update: %v", st.T, err)
		errs = append(errs, err)
	}

	res.Err = errors.Join(errs...)
	d.results = append(d.results, res)
	diagf("t=%d: %d markers, %d objects", st.T, res.Markers, d.world.Registry().Len())
	return res
}

// robotRelative expresses p, given in the robot's frame, under the robot's
// current origin using odometry.
func (d *Driver) robotRelative(p PoseSpec) l1frames.Pose {
	rp := d.sim.Pose()
	return l1frames.Pose{Transform: rp.Transform.Compose(p.Transform()), Parent: rp.Parent}
}

// look queues every marker the camera can see from the true robot pose and
// returns how many it queued.
func (d *Driver) look(ts l2vision.Timestamp) (int, error) {
	key := d.sim.RecordPose()
	cam := d.sim.Camera()
	cam.ClearOccluders()
	camTruth := d.truePose.Compose(d.mount)
	toCam := camTruth.Inverse()

	names := make([]string, 0, len(d.truth))
	for name := range d.truth {
		names = append(names, name)
	}
	sort.Strings(names)

	lib := d.world.Library()
	n := 0
	for _, name := range names {
		obj := d.truth[name]
		proto, ok := lib.Prototype(obj.typ)
		if !ok {
			return n, fmt.Errorf("object %q: %w", name, l3objects.ErrUnknownType)
		}
		for i := range proto.Markers {
			km := &proto.Markers[i]
			wrt := toCam.Compose(obj.pose).Compose(km.Pose)
			if visible, why := km.IsVisibleFrom(cam, wrt, d.visParams); !visible {
				tracef("t=%d %s marker %s not visible: %v", ts, name, km.Code, why)
				continue
			}
			corners, ok := km.ProjectCorners(cam, wrt)
			if !ok {
				continue
			}
			err := d.world.QueueObservedMarker(key, l2vision.ObservedMarker{
				Code:          km.Code,
				Timestamp:     ts,
				ImageCorners:  corners,
				PoseWrtCamera: wrt,
			})
			if err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}
