package l2vision

import (
	"math"

	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Calibration holds pinhole intrinsics.
type Calibration struct {
	NumCols int
	NumRows int
	Fx, Fy  float64
	Cx, Cy  float64
}

// DefaultCalibration is a QVGA camera with a ~60 degree horizontal field of view.
func DefaultCalibration() Calibration {
	return Calibration{NumCols: 320, NumRows: 240, Fx: 277, Fy: 277, Cx: 160, Cy: 120}
}

// Occluder is an image-space rectangle known to hold something at Depth.
type Occluder struct {
	Min, Max r2.Vec
	Depth    float64
}

func (o Occluder) contains(p r2.Vec) bool {
	return p.X >= o.Min.X && p.X <= o.Max.X && p.Y >= o.Min.Y && p.Y <= o.Max.Y
}

// Camera is a calibrated pinhole camera. Camera-frame axes: +Z along the
// optical axis, +X right, +Y down. Pose places the camera frame in the
// robot's world.
type Camera struct {
	Calib Calibration
	Pose  l1frames.Pose

	occluders []Occluder
}

// NewCamera returns a calibrated camera.
func NewCamera(calib Calibration) *Camera {
	return &Camera{Calib: calib}
}

// IsCalibrated reports whether the intrinsics are usable.
func (c *Camera) IsCalibrated() bool {
	return c != nil && c.Calib.NumCols > 0 && c.Calib.NumRows > 0 && c.Calib.Fx > 0 && c.Calib.Fy > 0
}

// ForwardLooking returns the rotation that points the optical axis along a
// body's +X with image right along -Y and image down along -Z, tilted down
// by tilt radians.
func ForwardLooking(tilt float64) l1frames.Transform {
	// Columns of the camera-to-body rotation: x_cam→-Y, y_cam→-Z, z_cam→+X.
	base := l1frames.FromQuat(quat.Number{Real: 0.5, Imag: -0.5, Jmag: 0.5, Kmag: -0.5}, r3.Vec{})
	if tilt == 0 {
		return base
	}
	return l1frames.NewTransform(tilt, l1frames.YAxis, r3.Vec{}).Compose(base)
}

// Project maps a camera-frame point to pixels. ok is false behind the camera.
func (c *Camera) Project(p r3.Vec) (r2.Vec, bool) {
	if p.Z <= 1e-6 {
		return r2.Vec{}, false
	}
	return r2.Vec{
		X: c.Calib.Fx*p.X/p.Z + c.Calib.Cx,
		Y: c.Calib.Fy*p.Y/p.Z + c.Calib.Cy,
	}, true
}

// InFrame reports whether a pixel lies within the image minus the padding.
func (c *Camera) InFrame(px r2.Vec, xPad, yPad float64) bool {
	return px.X >= xPad && px.X <= float64(c.Calib.NumCols)-xPad &&
		px.Y >= yPad && px.Y <= float64(c.Calib.NumRows)-yPad
}

// AddOccluder records an image region known to be filled at depth.
func (c *Camera) AddOccluder(corners l1frames.Quad, depth float64) {
	lo, hi := corners.Bounds()
	c.occluders = append(c.occluders, Occluder{Min: lo, Max: hi, Depth: depth})
}

// AddMarkerOccluder records an observed marker as an occluder.
func (c *Camera) AddMarkerOccluder(m *ObservedMarker) {
	c.AddOccluder(m.ImageCorners, m.Distance())
}

// ClearOccluders forgets all occluders; called once per processed image.
func (c *Camera) ClearOccluders() { c.occluders = c.occluders[:0] }

// Occluders returns the current occluder list.
func (c *Camera) Occluders() []Occluder { return c.occluders }

// IsOccluded reports whether something nearer than depth covers px.
func (c *Camera) IsOccluded(px r2.Vec, depth float64) bool {
	for _, o := range c.occluders {
		if o.contains(px) && o.Depth < depth {
			return true
		}
	}
	return false
}

// HasSomethingBehind reports whether something farther than depth was seen at px.
func (c *Camera) HasSomethingBehind(px r2.Vec, depth float64) bool {
	for _, o := range c.occluders {
		if o.contains(px) && o.Depth > depth {
			return true
		}
	}
	return false
}

// NotVisibleReason says why a known marker would not have been detected.
type NotVisibleReason int

const (
	Visible NotVisibleReason = iota
	BehindCamera
	FaceAngle
	OutOfFrame
	TooSmall
	Occluded
	NothingBehind
)

func (r NotVisibleReason) String() string {
	switch r {
	case Visible:
		return "visible"
	case BehindCamera:
		return "behind_camera"
	case FaceAngle:
		return "face_angle"
	case OutOfFrame:
		return "out_of_frame"
	case TooSmall:
		return "too_small"
	case Occluded:
		return "occluded"
	case NothingBehind:
		return "nothing_behind"
	}
	return "unknown"
}

// VisibilityParams bundles the thresholds used by IsVisibleFrom.
type VisibilityParams struct {
	MaxFaceAngle           float64 // radians
	MinImageSize           float64 // pixels, shortest projected side
	RequireSomethingBehind bool
	XBorderPad, YBorderPad float64 // pixels
}

// KnownMarker is a marker at a fixed place on an object. The marker lies in
// its local XY plane with its outward normal along local +Z.
type KnownMarker struct {
	Code MarkerCode
	Pose l1frames.Transform // relative to the owning object
	Size float64            // side length, mm

	LastObserved Timestamp
}

// Corners returns the marker corners in the frame described by
// markerPose, in Quad corner order.
func (m *KnownMarker) Corners(markerPose l1frames.Transform) [4]r3.Vec {
	h := m.Size / 2
	local := [4]r3.Vec{
		{X: -h, Y: h}, {X: -h, Y: -h}, {X: h, Y: h}, {X: h, Y: -h},
	}
	var out [4]r3.Vec
	for i, p := range local {
		out[i] = markerPose.Apply(p)
	}
	return out
}

// ProjectCorners projects the marker's corners given its pose in camera
// coordinates. ok is false if any corner is behind the camera.
func (m *KnownMarker) ProjectCorners(cam *Camera, wrtCamera l1frames.Transform) (l1frames.Quad, bool) {
	var q l1frames.Quad
	for i, p := range m.Corners(wrtCamera) {
		px, ok := cam.Project(p)
		if !ok {
			return q, false
		}
		q[i] = px
	}
	return q, true
}

// IsVisibleFrom decides whether the camera should have detected this marker
// given the marker's pose in camera coordinates.
func (m *KnownMarker) IsVisibleFrom(cam *Camera, wrtCamera l1frames.Transform, p VisibilityParams) (bool, NotVisibleReason) {
	centre := wrtCamera.Trans
	if centre.Z <= 0 {
		return false, BehindCamera
	}
	normal := wrtCamera.Rotate(l1frames.ZAxis)
	toCam := r3.Unit(r3.Scale(-1, centre))
	if math.Acos(math.Max(-1, math.Min(1, r3.Dot(normal, toCam)))) > p.MaxFaceAngle {
		return false, FaceAngle
	}
	q, ok := m.ProjectCorners(cam, wrtCamera)
	if !ok {
		return false, BehindCamera
	}
	for _, c := range q {
		if !cam.InFrame(c, p.XBorderPad, p.YBorderPad) {
			return false, OutOfFrame
		}
	}
	minSide := math.Inf(1)
	for _, e := range [4][2]int{
		{l1frames.TopLeft, l1frames.TopRight},
		{l1frames.TopRight, l1frames.BottomRight},
		{l1frames.BottomRight, l1frames.BottomLeft},
		{l1frames.BottomLeft, l1frames.TopLeft},
	} {
		minSide = math.Min(minSide, r2.Norm(r2.Sub(q[e[1]], q[e[0]])))
	}
	if minSide < p.MinImageSize {
		return false, TooSmall
	}
	depth := r3.Norm(centre)
	px := q.Centroid()
	if cam.IsOccluded(px, depth) {
		return false, Occluded
	}
	if p.RequireSomethingBehind && !cam.HasSomethingBehind(px, depth) {
		return false, NothingBehind
	}
	tracef("marker %s visible at (%.0f, %.0f) side %.1fpx", m.Code, px.X, px.Y, minSide)
	return true, Visible
}
