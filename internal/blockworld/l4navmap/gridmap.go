package l4navmap

import (
	"math"
	"sort"

	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"gonum.org/v1/gonum/spatial/r2"
)

type cellKey struct{ X, Y int32 }

// Cell is one occupied map cell, for rendering and export.
type Cell struct {
	Centre  r2.Vec
	Content Content
}

// GridMap is a sparse square-cell memory map in its origin's ground plane.
// Cells never stamped hold ContentUnknown. Not safe for concurrent use.
type GridMap struct {
	precision float64
	cells     map[cellKey]Content
}

// NewGridMap returns an empty map with cells of precisionMM on a side.
func NewGridMap(precisionMM float64) *GridMap {
	if precisionMM <= 0 {
		precisionMM = 10
	}
	return &GridMap{precision: precisionMM, cells: make(map[cellKey]Content)}
}

// ContentPrecisionMM returns the cell size.
func (g *GridMap) ContentPrecisionMM() float64 { return g.precision }

// Len returns the number of stamped cells.
func (g *GridMap) Len() int { return len(g.cells) }

func (g *GridMap) key(p r2.Vec) cellKey {
	return cellKey{X: int32(math.Floor(p.X / g.precision)), Y: int32(math.Floor(p.Y / g.precision))}
}

func (g *GridMap) centre(k cellKey) r2.Vec {
	return r2.Vec{X: (float64(k.X) + 0.5) * g.precision, Y: (float64(k.Y) + 0.5) * g.precision}
}

func (g *GridMap) set(k cellKey, c Content) bool {
	if old, ok := g.cells[k]; ok && !replaces(old.Type, c.Type) {
		return false
	}
	if c.Type == ContentUnknown {
		delete(g.cells, k)
		return true
	}
	g.cells[k] = c
	return true
}

// AddQuad stamps every cell whose centre lies in q with c, subject to the
// conflict policy. It returns the number of cells written.
func (g *GridMap) AddQuad(q l1frames.Quad, c Content) int {
	lo, hi := q.Bounds()
	k0, k1 := g.key(lo), g.key(hi)
	n := 0
	for x := k0.X; x <= k1.X; x++ {
		for y := k0.Y; y <= k1.Y; y++ {
			k := cellKey{X: x, Y: y}
			if q.Contains(g.centre(k)) && g.set(k, c) {
				n++
			}
		}
	}
	if n == 0 {
		// Quads thinner than a cell still mark the cell under their centre.
		if g.set(g.key(q.Centroid()), c) {
			n = 1
		}
	}
	tracef("stamped %d cells %s", n, c.Type)
	return n
}

// ContentAt returns the content of the cell holding p.
func (g *GridMap) ContentAt(p r2.Vec) Content {
	return g.cells[g.key(p)]
}

// HasCollisionRayWithTypes reports whether the segment from→to crosses a
// cell whose type is invalidating in table.
func (g *GridMap) HasCollisionRayWithTypes(from, to r2.Vec, table InvalidationTable) bool {
	d := r2.Sub(to, from)
	length := r2.Norm(d)
	steps := int(math.Ceil(length/(g.precision/2))) + 1
	seen := make(map[cellKey]bool, steps)
	for i := 0; i <= steps; i++ {
		p := r2.Add(from, r2.Scale(float64(i)/float64(steps), d))
		k := g.key(p)
		if seen[k] {
			continue
		}
		seen[k] = true
		if c, ok := g.cells[k]; ok && table.Invalidates(c.Type) {
			return true
		}
	}
	return false
}

// Merge copies other's content into g, mapping other's coordinates through
// otherToThis. Cells keep g's conflict policy.
func (g *GridMap) Merge(other *GridMap, otherToThis l1frames.Transform) {
	if other == nil {
		return
	}
	half := other.precision / 2
	for _, cell := range other.Cells() {
		q := l1frames.OrientedRect(cell.Centre, 0, half, half).Transform(otherToThis)
		g.AddQuad(q, cell.Content)
	}
	diagf("merged %d cells into map of %d cells", other.Len(), g.Len())
}

// Cells returns every stamped cell in a stable order.
func (g *GridMap) Cells() []Cell {
	keys := make([]cellKey, 0, len(g.cells))
	for k := range g.cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].X != keys[j].X {
			return keys[i].X < keys[j].X
		}
		return keys[i].Y < keys[j].Y
	})
	out := make([]Cell, 0, len(keys))
	for _, k := range keys {
		out = append(out, Cell{Centre: g.centre(k), Content: g.cells[k]})
	}
	return out
}

// AreaM2 returns the area covered by cells of type t.
func (g *GridMap) AreaM2(t ContentType) float64 {
	n := 0
	for _, c := range g.cells {
		if c.Type == t {
			n++
		}
	}
	side := g.precision / 1000
	return float64(n) * side * side
}

// InterestingEdgeAreaM2 returns the area tagged as interesting edge.
func (g *GridMap) InterestingEdgeAreaM2() float64 {
	return g.AreaM2(ContentInterestingEdge)
}

// CalculateBorders returns the centres of inner-typed cells that touch an
// outer-typed cell (4-neighbourhood).
func (g *GridMap) CalculateBorders(inner, outer ContentType) []r2.Vec {
	var out []r2.Vec
	for _, cell := range g.Cells() {
		if cell.Content.Type != inner {
			continue
		}
		k := g.key(cell.Centre)
		for _, d := range [4]cellKey{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			if g.cells[cellKey{X: k.X + d.X, Y: k.Y + d.Y}].Type == outer {
				out = append(out, cell.Centre)
				break
			}
		}
	}
	return out
}

// HasBorders reports whether any inner-typed cell touches an outer-typed one.
func (g *GridMap) HasBorders(inner, outer ContentType) bool {
	return len(g.CalculateBorders(inner, outer)) > 0
}
