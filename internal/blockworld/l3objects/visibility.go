package l3objects

import (
	"math"

	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l2vision"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Visibility is the outcome of checking an object's markers against a camera.
type Visibility struct {
	// Visible is set when at least one marker should have been detected.
	Visible bool
	// Occluded is set when some marker failed only because it was covered.
	Occluded bool
	// Reason is why the last failing marker was not visible.
	Reason l2vision.NotVisibleReason
}

// CheckVisibility tests each of the object's markers against cam, stopping
// at the first visible one. The camera pose must share the object's origin.
func (o *Object) CheckVisibility(cam *l2vision.Camera, p l2vision.VisibilityParams) (Visibility, error) {
	var v Visibility
	camPose, err := o.arena.WrtOrigin(cam.Pose)
	if err != nil {
		return v, err
	}
	for _, m := range o.markers {
		wrt, err := o.MarkerPoseWrtCamera(m, camPose)
		if err != nil {
			return v, err
		}
		ok, reason := m.IsVisibleFrom(cam, wrt, p)
		if ok {
			return Visibility{Visible: true, Reason: l2vision.Visible}, nil
		}
		if reason == l2vision.Occluded {
			v.Occluded = true
		}
		v.Reason = reason
	}
	return v, nil
}

// ProjectedCorners projects the object's box corners into cam. Corners
// behind the camera are skipped. depth is the object centre's distance
// along the optical axis; it is not positive when the centre is behind.
func (o *Object) ProjectedCorners(cam *l2vision.Camera) ([]r2.Vec, float64, error) {
	corners, err := o.Corners()
	if err != nil {
		return nil, 0, err
	}
	camPose, err := o.arena.WrtOrigin(cam.Pose)
	if err != nil {
		return nil, 0, err
	}
	p, err := o.PoseWrtOrigin()
	if err != nil {
		return nil, 0, err
	}
	if camPose.Parent != p.Parent {
		return nil, 0, l1frames.ErrNotConnected
	}
	toCam := camPose.Inverse()
	out := make([]r2.Vec, 0, len(corners))
	for _, c := range corners {
		if px, ok := cam.Project(toCam.Apply(c)); ok {
			out = append(out, px)
		}
	}
	return out, toCam.Apply(p.Trans).Z, nil
}

// ImageBounds returns the axis-aligned image rectangle around pts.
func ImageBounds(pts []r2.Vec) (lo, hi r2.Vec) {
	if len(pts) == 0 {
		return r2.Vec{}, r2.Vec{}
	}
	lo = r2.Vec{X: math.Inf(1), Y: math.Inf(1)}
	hi = r2.Vec{X: math.Inf(-1), Y: math.Inf(-1)}
	for _, p := range pts {
		lo = r2.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y)}
		hi = r2.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y)}
	}
	return lo, hi
}

// TopMarkerOrientation is the rotation about vertical of whichever face of
// the object currently points up, used to orient cube lights.
func (o *Object) TopMarkerOrientation() float64 {
	p, err := o.PoseWrtOrigin()
	if err != nil {
		return 0
	}
	var (
		best   *l2vision.KnownMarker
		bestUp = math.Inf(-1)
	)
	for _, m := range o.markers {
		n := p.Compose(m.Pose).Rotate(l1frames.ZAxis)
		if n.Z > bestUp {
			best, bestUp = m, n.Z
		}
	}
	if best == nil {
		return 0
	}
	x := p.Compose(best.Pose).Rotate(r3.Vec{X: 1})
	return math.Atan2(x.Y, x.X)
}
