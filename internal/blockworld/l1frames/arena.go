package l1frames

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// FrameID is an opaque handle into an Arena. NoFrame is the sentinel.
type FrameID int32

// NoFrame means "no parent" for a frame and "unset" everywhere else.
const NoFrame FrameID = 0

var (
	// ErrUnknownFrame is returned for handles that were never allocated or were released.
	ErrUnknownFrame = errors.New("unknown frame")
	// ErrNotConnected is returned when two poses do not share an origin.
	ErrNotConnected = errors.New("frames do not share an origin")
	// ErrCycle is returned when re-parenting would make a frame its own ancestor.
	ErrCycle = errors.New("re-parenting would create a cycle")
)

// Pose is a transform relative to a parent frame.
type Pose struct {
	Transform
	Parent FrameID
}

// NewPose builds a pose relative to parent.
func NewPose(angle float64, axis r3.Vec, t r3.Vec, parent FrameID) Pose {
	return Pose{Transform: NewTransform(angle, axis, t), Parent: parent}
}

// WithParent returns a copy of p re-labelled onto a different parent without
// changing its transform.
func (p Pose) WithParent(parent FrameID) Pose {
	p.Parent = parent
	return p
}

type frame struct {
	name   string
	parent FrameID
	xf     Transform
}

// Arena owns every named reference frame. Origins are frames with no
// parent. It is not safe for concurrent use.
type Arena struct {
	frames map[FrameID]*frame
	next   FrameID
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{frames: make(map[FrameID]*frame), next: 1}
}

func (a *Arena) alloc(f *frame) FrameID {
	id := a.next
	a.next++
	a.frames[id] = f
	return id
}

// AddOrigin allocates a new root frame.
func (a *Arena) AddOrigin(name string) FrameID {
	id := a.alloc(&frame{name: name, xf: Identity()})
	diagf("added origin %d (%s)", id, name)
	return id
}

// AddFrame allocates a frame at pose p. The parent must exist.
func (a *Arena) AddFrame(name string, p Pose) (FrameID, error) {
	if p.Parent != NoFrame && !a.Exists(p.Parent) {
		return NoFrame, fmt.Errorf("add frame %q: parent %d: %w", name, p.Parent, ErrUnknownFrame)
	}
	return a.alloc(&frame{name: name, parent: p.Parent, xf: p.Transform}), nil
}

// Exists reports whether id refers to a live frame.
func (a *Arena) Exists(id FrameID) bool {
	_, ok := a.frames[id]
	return ok
}

// Len returns the number of live frames.
func (a *Arena) Len() int { return len(a.frames) }

// Name returns the frame's name, or "" for unknown handles.
func (a *Arena) Name(id FrameID) string {
	if f, ok := a.frames[id]; ok {
		return f.name
	}
	return ""
}

// IsOrigin reports whether id is a live frame without a parent.
func (a *Arena) IsOrigin(id FrameID) bool {
	f, ok := a.frames[id]
	return ok && f.parent == NoFrame
}

// Pose returns the frame's pose relative to its parent.
func (a *Arena) Pose(id FrameID) (Pose, bool) {
	f, ok := a.frames[id]
	if !ok {
		return Pose{}, false
	}
	return Pose{Transform: f.xf, Parent: f.parent}, true
}

// SetPose moves and/or re-parents a frame.
func (a *Arena) SetPose(id FrameID, p Pose) error {
	f, ok := a.frames[id]
	if !ok {
		return fmt.Errorf("set pose of %d: %w", id, ErrUnknownFrame)
	}
	if p.Parent != NoFrame {
		if !a.Exists(p.Parent) {
			return fmt.Errorf("set pose of %d: parent %d: %w", id, p.Parent, ErrUnknownFrame)
		}
		for cur, steps := p.Parent, 0; cur != NoFrame; steps++ {
			if cur == id || steps > len(a.frames) {
				return fmt.Errorf("set parent of %d to %d: %w", id, p.Parent, ErrCycle)
			}
			cur = a.frames[cur].parent
		}
	}
	if f.parent != p.Parent {
		tracef("frame %d re-parented %d -> %d", id, f.parent, p.Parent)
	}
	f.parent = p.Parent
	f.xf = p.Transform
	return nil
}

// Release removes a frame. Children are flattened onto the released
// frame's parent so their world placement is unchanged. Releasing an origin
// with children makes each child a new origin.
func (a *Arena) Release(id FrameID) error {
	f, ok := a.frames[id]
	if !ok {
		return fmt.Errorf("release %d: %w", id, ErrUnknownFrame)
	}
	for cid, c := range a.frames {
		if c.parent != id {
			continue
		}
		if f.parent == NoFrame {
			opsf("releasing origin %d orphans child frame %d", id, cid)
			c.parent = NoFrame
			c.xf = Identity()
			continue
		}
		c.xf = f.xf.Compose(c.xf)
		c.parent = f.parent
	}
	delete(a.frames, id)
	return nil
}

// chain returns the transform from frame id to its origin.
func (a *Arena) chain(id FrameID) (Transform, FrameID, error) {
	t := Identity()
	cur := id
	for steps := 0; ; steps++ {
		f, ok := a.frames[cur]
		if !ok {
			return Transform{}, NoFrame, fmt.Errorf("frame %d: %w", cur, ErrUnknownFrame)
		}
		if f.parent == NoFrame {
			return t, cur, nil
		}
		if steps > len(a.frames) {
			return Transform{}, NoFrame, fmt.Errorf("frame %d: %w", id, ErrCycle)
		}
		t = f.xf.Compose(t)
		cur = f.parent
	}
}

// FrameOrigin returns the origin at the end of id's parent chain, or NoFrame.
func (a *Arena) FrameOrigin(id FrameID) FrameID {
	_, origin, err := a.chain(id)
	if err != nil {
		return NoFrame
	}
	return origin
}

// FindOrigin returns the origin at the end of p's parent chain, or NoFrame.
func (a *Arena) FindOrigin(p Pose) FrameID {
	if p.Parent == NoFrame {
		return NoFrame
	}
	return a.FrameOrigin(p.Parent)
}

// WrtOrigin returns p expressed directly relative to its origin.
func (a *Arena) WrtOrigin(p Pose) (Pose, error) {
	if p.Parent == NoFrame {
		return Pose{}, fmt.Errorf("pose has no parent: %w", ErrUnknownFrame)
	}
	t, origin, err := a.chain(p.Parent)
	if err != nil {
		return Pose{}, err
	}
	return Pose{Transform: t.Compose(p.Transform), Parent: origin}, nil
}

// WithRespectTo re-expresses p relative to target. Both must share an origin.
func (a *Arena) WithRespectTo(p Pose, target FrameID) (Pose, error) {
	if p.Parent == target {
		return p, nil
	}
	po, err := a.WrtOrigin(p)
	if err != nil {
		return Pose{}, err
	}
	tt, torigin, err := a.chain(target)
	if err != nil {
		return Pose{}, err
	}
	if torigin != po.Parent {
		return Pose{}, fmt.Errorf("pose under origin %d vs target %d under origin %d: %w",
			po.Parent, target, torigin, ErrNotConnected)
	}
	return Pose{Transform: tt.Inverse().Compose(po.Transform), Parent: target}, nil
}

// PoseWrtPose re-expresses p in the frame described by ref (which need not be
// an arena frame itself).
func (a *Arena) PoseWrtPose(p, ref Pose) (Pose, error) {
	po, err := a.WrtOrigin(p)
	if err != nil {
		return Pose{}, err
	}
	ro, err := a.WrtOrigin(ref)
	if err != nil {
		return Pose{}, err
	}
	if po.Parent != ro.Parent {
		return Pose{}, ErrNotConnected
	}
	return Pose{Transform: ro.Transform.Inverse().Compose(po.Transform), Parent: NoFrame}, nil
}

// Distance returns the translation distance between two poses.
func (a *Arena) Distance(p, q Pose) (float64, error) {
	po, err := a.WrtOrigin(p)
	if err != nil {
		return 0, err
	}
	qo, err := a.WrtOrigin(q)
	if err != nil {
		return 0, err
	}
	if po.Parent != qo.Parent {
		return 0, ErrNotConnected
	}
	return r3.Norm(r3.Sub(po.Trans, qo.Trans)), nil
}

// IsSameAs reports whether p and q are within distThreshold (per axis, in
// q's origin frame) and angleThreshold of each other. The returned values are
// the absolute translation difference and angle difference.
func (a *Arena) IsSameAs(p, q Pose, distThreshold r3.Vec, angleThreshold float64) (bool, r3.Vec, float64, error) {
	po, err := a.WrtOrigin(p)
	if err != nil {
		return false, r3.Vec{}, 0, err
	}
	qo, err := a.WrtOrigin(q)
	if err != nil {
		return false, r3.Vec{}, 0, err
	}
	if po.Parent != qo.Parent {
		return false, r3.Vec{}, 0, ErrNotConnected
	}
	d := r3.Sub(po.Trans, qo.Trans)
	d = r3.Vec{X: abs(d.X), Y: abs(d.Y), Z: abs(d.Z)}
	ang := po.AngleTo(qo.Transform)
	same := d.X <= distThreshold.X && d.Y <= distThreshold.Y && d.Z <= distThreshold.Z && ang <= angleThreshold
	return same, d, ang, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
