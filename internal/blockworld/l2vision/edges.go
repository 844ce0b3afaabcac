package l2vision

import (
	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"gonum.org/v1/gonum/spatial/r2"
)

// EdgeChain is a polyline of ground-plane points, in robot coordinates, along
// a detected edge. IsBorder marks chains that trace a real discontinuity
// rather than the limit of the ground plane in view.
type EdgeChain struct {
	Points   []r2.Vec
	IsBorder bool
}

// OverheadEdgeFrame is one image's worth of ground-plane edge detections.
// GroundPlane is the visible ground region in robot coordinates; its
// BottomLeft/BottomRight corners form the near line closest to the camera.
type OverheadEdgeFrame struct {
	Timestamp        Timestamp
	GroundPlaneValid bool
	GroundPlane      l1frames.Quad
	Chains           []EdgeChain
}

// NearLine returns the near edge of the ground plane, left then right as
// seen from the camera.
func (f *OverheadEdgeFrame) NearLine() (r2.Vec, r2.Vec) {
	return f.GroundPlane[l1frames.BottomLeft], f.GroundPlane[l1frames.BottomRight]
}
