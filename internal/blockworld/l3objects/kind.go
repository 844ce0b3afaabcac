package l3objects

import (
	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"gonum.org/v1/gonum/spatial/r2"
)

// Kind is the closed set of object kinds. Use the capability views on
// Object (AsActive, AsMat, IsCarryable) rather than switching on Kind
// outside this package.
type Kind interface {
	kindName() string
}

// ActiveState is the radio identity of an active object.
type ActiveState struct {
	ID       ActiveID
	Factory  FactoryID
	Identity IdentityState

	// IdentifyStart is when identification was first requested.
	IdentifyStart Timestamp
}

// IsConnected reports whether a radio is paired to the object.
func (a *ActiveState) IsConnected() bool { return a != nil && a.ID != NoActiveID }

// CubeKind is a liftable cube. Active is nil for passive blocks.
type CubeKind struct {
	Active *ActiveState
	// BeingCarried is the cube's own belief that it is on the lift. The
	// robot's carried ID is authoritative.
	BeingCarried bool
}

// ChargerKind is a charging base. It is radio-connected.
type ChargerKind struct {
	Active *ActiveState
}

// RampKind is a drivable ramp.
type RampKind struct{}

// MarkerlessKind is an obstacle inferred from proximity or cliff sensors.
type MarkerlessKind struct{}

// MatKind is a flat piece the robot can localize to and drive on.
type MatKind struct {
	// UnsafeRegions are rectangles in the mat's own frame that must not be
	// driven over while on the mat (e.g. a platform lip).
	UnsafeRegions []UnsafeRegion
}

// UnsafeRegion is a rectangle in a mat's frame.
type UnsafeRegion struct {
	Centre       r2.Vec
	HalfX, HalfY float64
}

func (CubeKind) kindName() string       { return "cube" }
func (ChargerKind) kindName() string    { return "charger" }
func (RampKind) kindName() string       { return "ramp" }
func (MarkerlessKind) kindName() string { return "markerless" }
func (MatKind) kindName() string        { return "mat" }

// cloneKind returns a deep copy so template state never leaks into
// instances.
func cloneKind(k Kind) Kind {
	switch v := k.(type) {
	case *CubeKind:
		c := *v
		if v.Active != nil {
			a := *v.Active
			c.Active = &a
		}
		return &c
	case *ChargerKind:
		c := *v
		if v.Active != nil {
			a := *v.Active
			c.Active = &a
		}
		return &c
	case *MatKind:
		c := *v
		c.UnsafeRegions = append([]UnsafeRegion(nil), v.UnsafeRegions...)
		return &c
	case *RampKind:
		return &RampKind{}
	case *MarkerlessKind:
		return &MarkerlessKind{}
	}
	return k
}

// AsActive returns the radio state of active objects.
func (o *Object) AsActive() (*ActiveState, bool) {
	switch v := o.kind.(type) {
	case *CubeKind:
		return v.Active, v.Active != nil
	case *ChargerKind:
		return v.Active, v.Active != nil
	}
	return nil, false
}

// IsActive reports whether the object has a radio.
func (o *Object) IsActive() bool {
	_, ok := o.AsActive()
	return ok
}

// AsMat returns the mat view of mat objects.
func (o *Object) AsMat() (*MatKind, bool) {
	m, ok := o.kind.(*MatKind)
	return m, ok
}

// IsCarryable reports whether the robot can lift the object.
func (o *Object) IsCarryable() bool {
	_, ok := o.kind.(*CubeKind)
	return ok
}

// IsBeingCarried reports whether a carryable object believes it is on the
// robot's lift.
func (o *Object) IsBeingCarried() bool {
	c, ok := o.kind.(*CubeKind)
	return ok && c.BeingCarried
}

// SetBeingCarried records whether a carryable object is on the lift. Other
// kinds ignore it.
func (o *Object) SetBeingCarried(on bool) {
	if c, ok := o.kind.(*CubeKind); ok {
		c.BeingCarried = on
	}
}

// IsMarkerless reports whether the object was inferred without a marker.
func (o *Object) IsMarkerless() bool {
	_, ok := o.kind.(*MarkerlessKind)
	return ok
}

// Kind returns the object's kind.
func (o *Object) Kind() Kind { return o.kind }

// IsIdentified reports whether the object is fully identified: passive
// objects always are; active ones once paired with a radio.
func (o *Object) IsIdentified() bool {
	a, ok := o.AsActive()
	return !ok || a.Identity == Identified
}

// UnsafeQuads returns the mat's unsafe regions on the ground plane of its
// origin, grown by padding. ok is false for non-mats.
func (o *Object) UnsafeQuads(padding float64) ([]l1frames.Quad, bool, error) {
	m, ok := o.AsMat()
	if !ok {
		return nil, false, nil
	}
	p, err := o.PoseWrtOrigin()
	if err != nil {
		return nil, true, err
	}
	yaw := p.Yaw()
	out := make([]l1frames.Quad, 0, len(m.UnsafeRegions))
	for _, r := range m.UnsafeRegions {
		c := p.ApplyXY(r.Centre)
		out = append(out, l1frames.OrientedRect(c, yaw, r.HalfX+padding, r.HalfY+padding))
	}
	return out, true, nil
}
