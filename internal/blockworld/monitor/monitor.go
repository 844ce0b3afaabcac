// Package monitor draws BlockWorld snapshots for humans: a PNG per tick
// through gonum/plot and an interactive HTML page through go-echarts. Both
// implement l6world.Visualizer and are fire-and-forget: failures go to the
// ops log and never reach the world.
package monitor

import (
	"image/color"

	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l4navmap"
	"github.com/banshee-data/blockworld/internal/blockworld/l6world"
	"gonum.org/v1/gonum/spatial/r2"
)

// Nop draws nothing.
type Nop struct{}

// Draw implements l6world.Visualizer.
func (Nop) Draw(l6world.Snapshot) {}

// Multi draws each snapshot with every member in order.
type Multi []l6world.Visualizer

// Draw implements l6world.Visualizer.
func (m Multi) Draw(s l6world.Snapshot) {
	for _, v := range m {
		if v != nil {
			v.Draw(s)
		}
	}
}

// footprint is an object's outline in the snapshot origin's ground plane.
type footprint struct {
	Label   string
	Centre  r2.Vec
	Outline []r2.Vec // closed
}

// footprints returns the outlines of the snapshot's known objects that
// live in the robot's origin.
func footprints(s l6world.Snapshot) []footprint {
	var out []footprint
	for _, o := range s.Objects {
		if !o.IsPoseStateKnown() || o.Origin() != s.Origin {
			continue
		}
		q, err := o.BoundingQuadXY(0)
		if err != nil {
			tracef("no footprint for %s: %v", o, err)
			continue
		}
		out = append(out, footprint{Label: o.String(), Centre: q.Centroid(), Outline: outline(q)})
	}
	return out
}

// outline walks q's corners around its perimeter and back to the start.
func outline(q l1frames.Quad) []r2.Vec {
	return []r2.Vec{
		q[l1frames.TopLeft], q[l1frames.TopRight], q[l1frames.BottomRight], q[l1frames.BottomLeft], q[l1frames.TopLeft],
	}
}

// cellLayers groups the snapshot map's cell centres by content.
func cellLayers(s l6world.Snapshot) map[l4navmap.ContentType][]r2.Vec {
	layers := make(map[l4navmap.ContentType][]r2.Vec)
	if s.Map == nil {
		return layers
	}
	for _, c := range s.Map.Cells() {
		layers[c.Content.Type] = append(layers[c.Content.Type], c.Centre)
	}
	return layers
}

// contentColors are shared by both renderers.
var contentColors = map[l4navmap.ContentType]color.RGBA{
	l4navmap.ContentClearOfObstacle:      {R: 0xb5, G: 0xde, B: 0x2b, A: 0xff},
	l4navmap.ContentClearOfCliff:         {R: 0x6e, G: 0xce, B: 0x58, A: 0xff},
	l4navmap.ContentObstacleCube:         {R: 0x31, G: 0x68, B: 0x8e, A: 0xff},
	l4navmap.ContentObstacleCharger:      {R: 0x48, G: 0x27, B: 0x77, A: 0xff},
	l4navmap.ContentObstacleUnrecognized: {R: 0x44, G: 0x01, B: 0x54, A: 0xff},
	l4navmap.ContentCliff:                {R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	l4navmap.ContentInterestingEdge:      {R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	l4navmap.ContentNotInterestingEdge:   {R: 0x99, G: 0x99, B: 0x99, A: 0xff},
}
