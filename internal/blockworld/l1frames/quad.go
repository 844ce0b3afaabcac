package l1frames

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Quad corner indices.
const (
	TopLeft = iota
	BottomLeft
	TopRight
	BottomRight
)

// Quad is a 2D quadrilateral stored as TopLeft, BottomLeft, TopRight,
// BottomRight. Walking TL→TR→BR→BL traces the outline.
type Quad [4]r2.Vec

// NewQuad builds a quad from its corners.
func NewQuad(tl, bl, tr, br r2.Vec) Quad {
	return Quad{TopLeft: tl, BottomLeft: bl, TopRight: tr, BottomRight: br}
}

// OrientedRect returns a rectangle centred at c, rotated by yaw, with the
// given half extents along its local X and Y axes.
func OrientedRect(c r2.Vec, yaw, halfX, halfY float64) Quad {
	u := r2.Vec{X: math.Cos(yaw), Y: math.Sin(yaw)}
	v := r2.Vec{X: -u.Y, Y: u.X}
	at := func(sx, sy float64) r2.Vec {
		return r2.Add(c, r2.Add(r2.Scale(sx*halfX, u), r2.Scale(sy*halfY, v)))
	}
	return NewQuad(at(1, 1), at(-1, 1), at(1, -1), at(-1, -1))
}

// BoundingQuad returns the smallest rectangle aligned with yaw that contains
// all points.
func BoundingQuad(points []r2.Vec, yaw float64) Quad {
	if len(points) == 0 {
		return Quad{}
	}
	u := r2.Vec{X: math.Cos(yaw), Y: math.Sin(yaw)}
	v := r2.Vec{X: -u.Y, Y: u.X}
	minU, maxU := math.Inf(1), math.Inf(-1)
	minV, maxV := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		pu, pv := r2.Dot(p, u), r2.Dot(p, v)
		minU, maxU = math.Min(minU, pu), math.Max(maxU, pu)
		minV, maxV = math.Min(minV, pv), math.Max(maxV, pv)
	}
	at := func(a, b float64) r2.Vec { return r2.Add(r2.Scale(a, u), r2.Scale(b, v)) }
	return NewQuad(at(maxU, maxV), at(minU, maxV), at(maxU, minV), at(minU, minV))
}

// outline returns the corners in perimeter order.
func (q Quad) outline() [4]r2.Vec {
	return [4]r2.Vec{q[TopLeft], q[TopRight], q[BottomRight], q[BottomLeft]}
}

// Centroid returns the mean of the four corners.
func (q Quad) Centroid() r2.Vec {
	var c r2.Vec
	for _, p := range q {
		c = r2.Add(c, p)
	}
	return r2.Scale(0.25, c)
}

// Area returns the (unsigned) area of the outline.
func (q Quad) Area() float64 {
	o := q.outline()
	var s float64
	for i := range o {
		s += r2.Cross(o[i], o[(i+1)%4])
	}
	return math.Abs(s) / 2
}

// Bounds returns the axis-aligned min/max corners.
func (q Quad) Bounds() (r2.Vec, r2.Vec) {
	lo := r2.Vec{X: math.Inf(1), Y: math.Inf(1)}
	hi := r2.Vec{X: math.Inf(-1), Y: math.Inf(-1)}
	for _, p := range q {
		lo = r2.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y)}
		hi = r2.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y)}
	}
	return lo, hi
}

// Contains reports whether p lies inside or on the outline. The quad must be
// convex; either winding is accepted and degenerate edges are ignored.
func (q Quad) Contains(p r2.Vec) bool {
	o := q.outline()
	const eps = 1e-9
	pos, neg := false, false
	for i := range o {
		a, b := o[i], o[(i+1)%4]
		if r2.Norm2(r2.Sub(b, a)) < eps {
			continue
		}
		c := r2.Cross(r2.Sub(b, a), r2.Sub(p, a))
		if c > eps {
			pos = true
		} else if c < -eps {
			neg = true
		}
		if pos && neg {
			return false
		}
	}
	return true
}

// Intersects reports whether two convex quads overlap (separating axis test).
func (q Quad) Intersects(o Quad) bool {
	for _, poly := range [2][4]r2.Vec{q.outline(), o.outline()} {
		for i := range poly {
			e := r2.Sub(poly[(i+1)%4], poly[i])
			if r2.Norm2(e) < 1e-12 {
				continue
			}
			axis := r2.Vec{X: -e.Y, Y: e.X}
			aMin, aMax := project(q, axis)
			bMin, bMax := project(o, axis)
			if aMax < bMin || bMax < aMin {
				return false
			}
		}
	}
	return true
}

func project(q Quad, axis r2.Vec) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range q {
		d := r2.Dot(p, axis)
		lo, hi = math.Min(lo, d), math.Max(hi, d)
	}
	return lo, hi
}

// Translate shifts every corner by d.
func (q Quad) Translate(d r2.Vec) Quad {
	for i := range q {
		q[i] = r2.Add(q[i], d)
	}
	return q
}

// Transform applies t to every corner on the ground plane.
func (q Quad) Transform(t Transform) Quad {
	for i := range q {
		q[i] = t.ApplyXY(q[i])
	}
	return q
}

// ClampToNearLine clips the quad's bottom corners onto the line through
// nearLeft and nearRight (as seen by a camera looking past them). It returns
// false when either top corner is not beyond that line.
func (q Quad) ClampToNearLine(nearLeft, nearRight r2.Vec) (Quad, bool) {
	dir := r2.Sub(nearRight, nearLeft)
	side := func(p r2.Vec) float64 { return r2.Cross(dir, r2.Sub(p, nearLeft)) }
	if side(q[TopLeft]) <= 0 || side(q[TopRight]) <= 0 {
		return q, false
	}
	clip := func(top, bottom r2.Vec) r2.Vec {
		st, sb := side(top), side(bottom)
		if st*sb > 0 {
			return bottom
		}
		t := st / (st - sb)
		return r2.Add(top, r2.Scale(t, r2.Sub(bottom, top)))
	}
	q[BottomLeft] = clip(q[TopLeft], q[BottomLeft])
	q[BottomRight] = clip(q[TopRight], q[BottomRight])
	return q, true
}
