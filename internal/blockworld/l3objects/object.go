package l3objects

import (
	"fmt"
	"math"

	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l2vision"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultSameAngleTolerance is the rotation within which two poses of one
// object are considered the same.
var DefaultSameAngleTolerance = l1frames.DegToRad(45)

// Object is an observable object: a cube, mat, ramp, charger or a
// markerless obstacle.
//
// Before registration an object carries its own pose. Once registered the
// pose lives in the arena under the object's frame, so objects stacked on
// or resting on it can be parented to it.
type Object struct {
	id     ObjectID
	family Family
	typ    Type
	kind   Kind

	size        r3.Vec
	markers     []*l2vision.KnownMarker
	ambiguities []l1frames.Transform
	localizable bool
	confirmAt   int

	arena *l1frames.Arena
	frame l1frames.FrameID
	pose  l1frames.Pose

	poseState          PoseState
	lastObserved       Timestamp
	numObserved        int
	numUnobserved      int
	lastPoseUpdateDist float64
	selected           bool

	// Set on candidates built from markers in the current tick.
	observedMarkers []*l2vision.ObservedMarker
	obsDistance     float64
}

// ID returns the object's ID, or NoID before registration.
func (o *Object) ID() ObjectID { return o.id }

// Family returns the object's family.
func (o *Object) Family() Family { return o.family }

// Type returns the object's type.
func (o *Object) Type() Type { return o.typ }

// Size returns the object's extent along its own axes, mm.
func (o *Object) Size() r3.Vec { return o.size }

// Markers returns the object's known markers.
func (o *Object) Markers() []*l2vision.KnownMarker { return o.markers }

// Frame returns the arena frame backing a registered object.
func (o *Object) Frame() l1frames.FrameID { return o.frame }

// IsRegistered reports whether the object is owned by a registry.
func (o *Object) IsRegistered() bool { return o.frame != l1frames.NoFrame }

// Arena returns the frame arena the object's pose refers to.
func (o *Object) Arena() *l1frames.Arena { return o.arena }

func (o *Object) String() string {
	return fmt.Sprintf("%s/%s#%s", o.family, o.typ, o.id)
}

// Pose returns the object's pose relative to its parent frame.
func (o *Object) Pose() l1frames.Pose {
	if o.frame != l1frames.NoFrame {
		if p, ok := o.arena.Pose(o.frame); ok {
			return p
		}
	}
	return o.pose
}

// SetPose moves the object. dist is the distance from the robot at which the
// pose was measured; pass a negative value to leave it unchanged.
func (o *Object) SetPose(p l1frames.Pose, dist float64, state PoseState) error {
	if o.frame != l1frames.NoFrame {
		if err := o.arena.SetPose(o.frame, p); err != nil {
			return fmt.Errorf("set pose of %s: %w", o, err)
		}
	} else {
		o.pose = p
	}
	if dist >= 0 {
		o.lastPoseUpdateDist = dist
	}
	o.poseState = state
	return nil
}

// PoseState returns how far the pose can be trusted.
func (o *Object) PoseState() PoseState { return o.poseState }

// SetPoseState changes the pose state without moving the object.
func (o *Object) SetPoseState(s PoseState) { o.poseState = s }

// IsPoseStateKnown reports whether the object has a usable pose.
func (o *Object) IsPoseStateKnown() bool { return o.poseState != PoseUnknown }

// LastPoseUpdateDistance is the robot distance of the last pose measurement.
func (o *Object) LastPoseUpdateDistance() float64 { return o.lastPoseUpdateDist }

// PoseWrtOrigin returns the pose expressed directly under its origin. A
// registered object whose own frame is an origin sits at identity.
func (o *Object) PoseWrtOrigin() (l1frames.Pose, error) {
	if o.frame != l1frames.NoFrame {
		return o.arena.WrtOrigin(o.FramePose())
	}
	return o.arena.WrtOrigin(o.pose)
}

// FramePose is the identity pose inside the object's own frame, usable
// wherever a pose for a registered object is needed.
func (o *Object) FramePose() l1frames.Pose {
	return l1frames.Pose{Transform: l1frames.Identity(), Parent: o.frame}
}

// Origin returns the origin at the end of the object's frame chain.
func (o *Object) Origin() l1frames.FrameID {
	if o.frame != l1frames.NoFrame {
		return o.arena.FrameOrigin(o.frame)
	}
	return o.arena.FindOrigin(o.pose)
}

// LastObservedTime returns the timestamp of the most recent sighting.
func (o *Object) LastObservedTime() Timestamp { return o.lastObserved }

// SetLastObservedTime records a sighting and counts it.
func (o *Object) SetLastObservedTime(t Timestamp) {
	o.lastObserved = t
	o.numObserved++
	o.numUnobserved = 0
}

// NumTimesObserved returns the number of sightings.
func (o *Object) NumTimesObserved() int { return o.numObserved }

// NumTimesUnobserved returns the consecutive frames in which the object
// should have been seen and was not.
func (o *Object) NumTimesUnobserved() int { return o.numUnobserved }

// MarkUnobserved counts a missed sighting and returns the new count.
func (o *Object) MarkUnobserved() int {
	o.numUnobserved++
	return o.numUnobserved
}

// ResetUnobserved restarts the missed-sighting count after a frame in which
// the object could not have been seen.
func (o *Object) ResetUnobserved() { o.numUnobserved = 0 }

// IsExistenceConfirmed reports whether the object was seen often enough to
// be trusted.
func (o *Object) IsExistenceConfirmed() bool { return o.numObserved >= o.confirmAt }

// IsSelected reports whether the object is the current selection.
func (o *Object) IsSelected() bool { return o.selected }

// SetSelected marks or unmarks the object as selected.
func (o *Object) SetSelected(s bool) { o.selected = s }

// IsLocalizable reports whether the object type may anchor the robot.
func (o *Object) IsLocalizable() bool { return o.localizable }

// CanBeUsedForLocalization reports whether the object may anchor the robot
// right now.
func (o *Object) CanBeUsedForLocalization() bool {
	return o.localizable && o.poseState == PoseKnown && o.IsExistenceConfirmed() && o.IsIdentified()
}

// ObservedMarkers returns the markers a candidate was built from.
func (o *Object) ObservedMarkers() []*l2vision.ObservedMarker { return o.observedMarkers }

// ObservationDistance is the camera distance of a candidate's closest marker.
func (o *Object) ObservationDistance() float64 { return o.obsDistance }

// SameDistanceTolerance is the per-axis translation within which two poses
// of this object are considered the same.
func (o *Object) SameDistanceTolerance() r3.Vec {
	m := math.Max(o.size.X, math.Max(o.size.Y, o.size.Z))
	return r3.Vec{X: 0.5 * m, Y: 0.5 * m, Z: 0.5 * m}
}

// IsSameAs reports whether other is the same physical object at the same
// place, accounting for the object's rotation ambiguities.
func (o *Object) IsSameAs(other *Object, distThreshold r3.Vec, angleThreshold float64) (bool, error) {
	if o.typ != other.typ {
		return false, nil
	}
	p, err := o.PoseWrtOrigin()
	if err != nil {
		return false, err
	}
	q, err := other.PoseWrtOrigin()
	if err != nil {
		return false, err
	}
	if p.Parent != q.Parent {
		return false, l1frames.ErrNotConnected
	}
	d := r3.Sub(p.Trans, q.Trans)
	if math.Abs(d.X) > distThreshold.X || math.Abs(d.Y) > distThreshold.Y || math.Abs(d.Z) > distThreshold.Z {
		return false, nil
	}
	return o.angleTo(p.Transform, q.Transform) <= angleThreshold, nil
}

// angleTo returns the smallest rotation between a and b over the object's
// symmetric orientations.
func (o *Object) angleTo(a, b l1frames.Transform) float64 {
	best := a.AngleTo(b)
	for _, amb := range o.ambiguities {
		if ang := a.AngleTo(b.Compose(amb)); ang < best {
			best = ang
		}
	}
	return best
}

// Corners returns the eight box corners in the object's origin frame.
func (o *Object) Corners() ([8]r3.Vec, error) {
	var out [8]r3.Vec
	p, err := o.PoseWrtOrigin()
	if err != nil {
		return out, err
	}
	h := r3.Scale(0.5, o.size)
	i := 0
	for _, sx := range []float64{-1, 1} {
		for _, sy := range []float64{-1, 1} {
			for _, sz := range []float64{-1, 1} {
				out[i] = p.Apply(r3.Vec{X: sx * h.X, Y: sy * h.Y, Z: sz * h.Z})
				i++
			}
		}
	}
	return out, nil
}

// BoundingQuadXY returns the object's footprint on its origin's ground
// plane, grown by padding.
func (o *Object) BoundingQuadXY(padding float64) (l1frames.Quad, error) {
	corners, err := o.Corners()
	if err != nil {
		return l1frames.Quad{}, err
	}
	p, err := o.PoseWrtOrigin()
	if err != nil {
		return l1frames.Quad{}, err
	}
	pts := make([]r2.Vec, 0, len(corners))
	for _, c := range corners {
		pts = append(pts, r2.Vec{X: c.X, Y: c.Y})
	}
	return BoundingQuadPadded(pts, p.Yaw(), padding), nil
}

// BoundingQuadPadded is l1frames.BoundingQuad grown by padding on every side.
func BoundingQuadPadded(pts []r2.Vec, yaw, padding float64) l1frames.Quad {
	q := l1frames.BoundingQuad(pts, yaw)
	if padding == 0 {
		return q
	}
	c := q.Centroid()
	halfU := r2.Norm(r2.Sub(q[l1frames.TopLeft], q[l1frames.BottomLeft])) / 2
	halfV := r2.Norm(r2.Sub(q[l1frames.TopLeft], q[l1frames.TopRight])) / 2
	return l1frames.OrientedRect(c, yaw, halfU+padding, halfV+padding)
}

// HeightRange returns the lowest and highest Z of the object in its origin
// frame.
func (o *Object) HeightRange() (float64, float64, error) {
	corners, err := o.Corners()
	if err != nil {
		return 0, 0, err
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range corners {
		lo, hi = math.Min(lo, c.Z), math.Max(hi, c.Z)
	}
	return lo, hi, nil
}

// IsPoseOn reports whether p lies on the object's top surface: inside its
// footprint grown by padXY and within heightTol of the top.
func (o *Object) IsPoseOn(p l1frames.Pose, padXY, heightTol float64) (bool, error) {
	ref, err := o.PoseWrtOrigin()
	if err != nil {
		return false, err
	}
	local, err := o.arena.PoseWrtPose(p, ref)
	if err != nil {
		return false, err
	}
	t := local.Trans
	h := r3.Scale(0.5, o.size)
	if math.Abs(t.X) > h.X+padXY || math.Abs(t.Y) > h.Y+padXY {
		return false, nil
	}
	return math.Abs(t.Z-h.Z) <= heightTol, nil
}

// DrivingSurfaceHeight returns the origin-frame Z of the object's top.
func (o *Object) DrivingSurfaceHeight() (float64, error) {
	_, hi, err := o.HeightRange()
	return hi, err
}

// IsFlat reports whether the object lies flat: barely rotated, or rotated
// about an axis close to vertical.
func (o *Object) IsFlat(maxTilt, maxAxisAngle float64) (bool, error) {
	p, err := o.PoseWrtOrigin()
	if err != nil {
		return false, err
	}
	if p.Angle() <= maxTilt {
		return true, nil
	}
	axisAngle := math.Acos(math.Min(1, math.Abs(r3.Dot(p.Axis(), l1frames.ZAxis))))
	return axisAngle <= maxAxisAngle, nil
}

// MarkerPoseWrtCamera returns where one of the object's known markers sits
// in the camera frame given the camera's pose.
func (o *Object) MarkerPoseWrtCamera(m *l2vision.KnownMarker, cameraWrtOrigin l1frames.Pose) (l1frames.Transform, error) {
	p, err := o.PoseWrtOrigin()
	if err != nil {
		return l1frames.Transform{}, err
	}
	if p.Parent != cameraWrtOrigin.Parent {
		return l1frames.Transform{}, l1frames.ErrNotConnected
	}
	return cameraWrtOrigin.Inverse().Compose(p.Transform).Compose(m.Pose), nil
}

// MarkersObservedAt returns how many known markers were last seen at t.
func (o *Object) MarkersObservedAt(t Timestamp) int {
	n := 0
	for _, m := range o.markers {
		if m.LastObserved == t {
			n++
		}
	}
	return n
}

// UpdateMarkerObservationTimes copies the marker sighting times of other
// (normally a fresh candidate of the same type) onto o.
func (o *Object) UpdateMarkerObservationTimes(other *Object) {
	for i, m := range o.markers {
		if i < len(other.markers) && other.markers[i].LastObserved > m.LastObserved {
			m.LastObserved = other.markers[i].LastObserved
		}
	}
}

// SetMarkerObserved records a sighting time for every known marker with
// the given code.
func (o *Object) SetMarkerObserved(code l2vision.MarkerCode, t Timestamp) {
	for _, m := range o.markers {
		if m.Code == code {
			m.LastObserved = t
		}
	}
}
