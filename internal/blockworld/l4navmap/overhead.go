package l4navmap

import (
	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l2vision"
	"gonum.org/v1/gonum/spatial/r2"
)

// EdgeParams tunes overhead-edge chain simplification.
type EdgeParams struct {
	// MergeDot is the minimum cosine between the direction of the last step
	// and the step to the next point for the point to be merged.
	MergeDot float64
	// BorderDepthMM is how far border quads extend beyond the edge.
	BorderDepthMM float64
}

// EdgeQuads is the result of processing one overhead edge frame, in the
// frame's own (robot) coordinates.
type EdgeQuads struct {
	Clear   []l1frames.Quad
	Borders []l1frames.Quad
}

// Segment is a straight run of a simplified edge chain.
type Segment struct{ Start, End r2.Vec }

// SimplifyChain merges consecutive chain points into straight segments
// while each step turns by no more than MergeDot allows from the step
// before it.
func SimplifyChain(points []r2.Vec, mergeDot float64) []Segment {
	if len(points) < 2 {
		return nil
	}
	var out []Segment
	seg := Segment{Start: points[0], End: points[1]}
	dir := unit(r2.Sub(seg.End, seg.Start))
	for _, p := range points[2:] {
		cand := unit(r2.Sub(p, seg.End))
		if r2.Dot(dir, cand) >= mergeDot {
			seg.End = p
			dir = cand
			continue
		}
		out = append(out, seg)
		seg = Segment{Start: seg.End, End: p}
		dir = unit(r2.Sub(seg.End, seg.Start))
	}
	return append(out, seg)
}

// OverheadEdgeQuads converts a frame's edge chains into clear quads (the
// ground between the camera and each segment, clipped at the near line of
// the visible ground plane) and, for border chains, interesting-edge quads
// just beyond each segment. cam is the camera's ground position in the
// frame's coordinates. An invalid ground plane yields nothing.
func OverheadEdgeQuads(frame *l2vision.OverheadEdgeFrame, cam r2.Vec, p EdgeParams) EdgeQuads {
	var out EdgeQuads
	if frame == nil || !frame.GroundPlaneValid {
		return out
	}
	nearLeft, nearRight := frame.NearLine()
	for _, chain := range frame.Chains {
		for _, s := range SimplifyChain(chain.Points, p.MergeDot) {
			swept := l1frames.NewQuad(s.Start, cam, s.End, cam)
			if clamped, ok := swept.ClampToNearLine(nearLeft, nearRight); ok {
				out.Clear = append(out.Clear, clamped)
			} else {
				tracef("segment (%.0f,%.0f)-(%.0f,%.0f) not beyond near line", s.Start.X, s.Start.Y, s.End.X, s.End.Y)
			}
			if !chain.IsBorder {
				continue
			}
			ds := r2.Scale(p.BorderDepthMM, unit(r2.Sub(s.Start, cam)))
			de := r2.Scale(p.BorderDepthMM, unit(r2.Sub(s.End, cam)))
			out.Borders = append(out.Borders, l1frames.NewQuad(
				r2.Add(s.Start, ds), s.Start, r2.Add(s.End, de), s.End,
			))
		}
	}
	return out
}

func unit(v r2.Vec) r2.Vec {
	n := r2.Norm(v)
	if n == 0 {
		return r2.Vec{}
	}
	return r2.Scale(1/n, v)
}
