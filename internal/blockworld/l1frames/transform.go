package l1frames

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Unit axes.
var (
	XAxis = r3.Vec{X: 1}
	YAxis = r3.Vec{Y: 1}
	ZAxis = r3.Vec{Z: 1}
)

// Transform is a rigid transform: rotate by Rot, then translate by Trans.
// The zero value is the identity transform.
type Transform struct {
	Rot   r3.Rotation
	Trans r3.Vec
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{Rot: r3.Rotation(quat.Number{Real: 1})}
}

// NewTransform builds a transform rotating by angle (radians) around axis,
// followed by translation t.
func NewTransform(angle float64, axis r3.Vec, t r3.Vec) Transform {
	if r3.Norm(axis) == 0 || angle == 0 {
		return Transform{Rot: r3.Rotation(quat.Number{Real: 1}), Trans: t}
	}
	return Transform{Rot: r3.NewRotation(angle, r3.Unit(axis)), Trans: t}
}

// Translation builds a pure translation.
func Translation(x, y, z float64) Transform {
	return Transform{Rot: r3.Rotation(quat.Number{Real: 1}), Trans: r3.Vec{X: x, Y: y, Z: z}}
}

// FromQuat builds a transform from a (not necessarily normalised) quaternion.
func FromQuat(q quat.Number, t r3.Vec) Transform {
	return Transform{Rot: r3.Rotation(normalise(q)), Trans: t}
}

func (t Transform) quat() quat.Number {
	q := quat.Number(t.Rot)
	if q == (quat.Number{}) {
		return quat.Number{Real: 1}
	}
	return q
}

// Quat returns the rotation as a unit quaternion.
func (t Transform) Quat() quat.Number { return t.quat() }

func normalise(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

// Rotate applies only the rotational part of t to v.
func (t Transform) Rotate(v r3.Vec) r3.Vec {
	return r3.Rotation(t.quat()).Rotate(v)
}

// Apply maps p from the transform's child frame into its parent frame.
func (t Transform) Apply(p r3.Vec) r3.Vec {
	return r3.Add(t.Rotate(p), t.Trans)
}

// ApplyXY applies t to the ground point (p.X, p.Y, 0) and drops Z.
func (t Transform) ApplyXY(p r2.Vec) r2.Vec {
	q := t.Apply(r3.Vec{X: p.X, Y: p.Y})
	return r2.Vec{X: q.X, Y: q.Y}
}

// Compose returns t∘o: the transform that first applies o, then t.
func (t Transform) Compose(o Transform) Transform {
	q := normalise(quat.Mul(t.quat(), o.quat()))
	return Transform{
		Rot:   r3.Rotation(q),
		Trans: r3.Add(t.Rotate(o.Trans), t.Trans),
	}
}

// Inverse returns the transform that undoes t.
func (t Transform) Inverse() Transform {
	qi := quat.Conj(t.quat())
	inv := Transform{Rot: r3.Rotation(qi)}
	inv.Trans = r3.Scale(-1, inv.Rotate(t.Trans))
	return inv
}

// Angle returns the magnitude of the rotation in [0, π].
func (t Transform) Angle() float64 {
	q := t.quat()
	w := math.Min(1, math.Abs(q.Real))
	return 2 * math.Acos(w)
}

// Axis returns the unit rotation axis. Identity rotations report ZAxis.
func (t Transform) Axis() r3.Vec {
	q := t.quat()
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	v := r3.Vec{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
	if r3.Norm(v) < 1e-12 {
		return ZAxis
	}
	return r3.Unit(v)
}

// Yaw returns the heading (rotation about Z) of the rotated X axis.
func (t Transform) Yaw() float64 {
	x := t.Rotate(XAxis)
	return math.Atan2(x.Y, x.X)
}

// AngleTo returns the magnitude of the rotation taking t's orientation to o's.
func (t Transform) AngleTo(o Transform) float64 {
	d := Transform{Rot: r3.Rotation(normalise(quat.Mul(quat.Conj(t.quat()), o.quat())))}
	return d.Angle()
}

// Translated returns a copy of t with a new translation.
func (t Transform) Translated(trans r3.Vec) Transform {
	t.Trans = trans
	return t
}

// String formats the transform for logs.
func (t Transform) String() string {
	ax := t.Axis()
	return fmt.Sprintf("T=(%.1f, %.1f, %.1f) R=%.1fdeg@(%.2f, %.2f, %.2f)",
		t.Trans.X, t.Trans.Y, t.Trans.Z, t.Angle()*180/math.Pi, ax.X, ax.Y, ax.Z)
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 { return deg * math.Pi / 180 }

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 { return rad * 180 / math.Pi }
