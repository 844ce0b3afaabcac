package l3objects

import (
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l2vision"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Object geometry, mm.
const (
	CubeSize       = 44.0
	CubeMarkerSize = 30.0

	MatLettersSize       = 1000.0
	MatLettersThickness  = 2.5
	MatLettersMarkerSize = 30.0

	PlatformSize       = 240.0
	PlatformHeight     = 44.0
	PlatformMarkerSize = 30.0
	PlatformLipWall    = 3.0
	PlatformLipGroove  = 3.75

	RampLength     = 170.0
	RampWidth      = 60.0
	RampHeight     = 44.0
	RampMarkerSize = 25.0

	ChargerLength     = 104.0
	ChargerWidth      = 98.0
	ChargerHeight     = 50.0
	ChargerMarkerSize = 30.0

	ProxObstacleLength = 10.0
	ProxObstacleWidth  = 20.0
	ProxObstacleHeight = 20.0

	CliffLength = 10.0
	CliffWidth  = 20.0
	CliffHeight = 1.0
)

// Prototype is a template from which objects of one type are built.
type Prototype struct {
	Family      Family
	Type        Type
	Size        r3.Vec
	Markers     []l2vision.KnownMarker
	Kind        Kind
	Localizable bool
	Ambiguities []l1frames.Transform
}

type markerRef struct {
	proto *Prototype
	index int
}

// Library is the per-family catalogue of prototypes used to recognize and
// instantiate objects.
type Library struct {
	arena     *l1frames.Arena
	confirmAt int
	byType    map[Type]*Prototype
	byCode    map[l2vision.MarkerCode][]markerRef
}

// NewLibrary returns an empty library whose objects refer to arena and
// count as confirmed after confirmAt sightings.
func NewLibrary(arena *l1frames.Arena, confirmAt int) *Library {
	return &Library{
		arena:     arena,
		confirmAt: confirmAt,
		byType:    make(map[Type]*Prototype),
		byCode:    make(map[l2vision.MarkerCode][]markerRef),
	}
}

// NewDefaultLibrary returns a library holding every built-in object type.
func NewDefaultLibrary(arena *l1frames.Arena, confirmAt int) *Library {
	l := NewLibrary(arena, confirmAt)
	for _, t := range []Type{TypeLightCube1, TypeLightCube2, TypeLightCube3} {
		l.Register(lightCubePrototype(t))
	}
	for _, t := range []Type{TypeBlockBullseye, TypeBlockFire, TypeBlockStar} {
		l.Register(blockPrototype(t))
	}
	l.Register(lettersMatPrototype())
	l.Register(platformPrototype())
	l.Register(rampPrototype())
	l.Register(chargerPrototype())
	l.Register(Prototype{
		Family: FamilyMarkerless, Type: TypeProxObstacle, Kind: &MarkerlessKind{},
		Size: r3.Vec{X: ProxObstacleLength, Y: ProxObstacleWidth, Z: ProxObstacleHeight},
	})
	l.Register(Prototype{
		Family: FamilyMarkerless, Type: TypeCliffDetection, Kind: &MarkerlessKind{},
		Size: r3.Vec{X: CliffLength, Y: CliffWidth, Z: CliffHeight},
	})
	return l
}

// Register adds or replaces a prototype.
func (l *Library) Register(p Prototype) {
	proto := p
	l.byType[p.Type] = &proto
	for code, refs := range l.byCode {
		kept := refs[:0]
		for _, r := range refs {
			if r.proto.Type != p.Type {
				kept = append(kept, r)
			}
		}
		l.byCode[code] = kept
	}
	for i, m := range proto.Markers {
		l.byCode[m.Code] = append(l.byCode[m.Code], markerRef{proto: &proto, index: i})
	}
}

// Prototype returns the template for t.
func (l *Library) Prototype(t Type) (*Prototype, bool) {
	p, ok := l.byType[t]
	return p, ok
}

// FamilyOf returns the family t belongs to, or FamilyUnknown.
func (l *Library) FamilyOf(t Type) Family {
	if p, ok := l.byType[t]; ok {
		return p.Family
	}
	return FamilyUnknown
}

// FamilyOfCode returns the family of the objects carrying code.
func (l *Library) FamilyOfCode(code l2vision.MarkerCode) Family {
	refs := l.byCode[code]
	if len(refs) == 0 {
		return FamilyUnknown
	}
	return refs[0].proto.Family
}

// New instantiates an unregistered object of type t at pose.
func (l *Library) New(t Type, pose l1frames.Pose) (*Object, error) {
	p, ok := l.byType[t]
	if !ok {
		return nil, fmt.Errorf("new object: %w: %s", ErrUnknownType, t)
	}
	o := &Object{
		family:      p.Family,
		typ:         p.Type,
		kind:        cloneKind(p.Kind),
		size:        p.Size,
		ambiguities: p.Ambiguities,
		localizable: p.Localizable,
		confirmAt:   l.confirmAt,
		arena:       l.arena,
		pose:        pose,
		poseState:   PoseKnown,
	}
	o.markers = make([]*l2vision.KnownMarker, len(p.Markers))
	for i := range p.Markers {
		m := p.Markers[i]
		o.markers[i] = &m
	}
	return o, nil
}

// CreateObjectsFromMarkers builds one candidate object per physical object
// of family seen in markers. Markers that agree on the same object are
// merged; every marker used is flagged. cameraPose is the camera frame in
// the robot's origin at the markers' timestamp.
func (l *Library) CreateObjectsFromMarkers(family Family, markers []*l2vision.ObservedMarker, cameraPose l1frames.Pose) []*Object {
	var out []*Object
	for _, m := range markers {
		if m.Used {
			continue
		}
		proto, pose, ok := l.poseFromMarker(family, m, cameraPose)
		if !ok {
			continue
		}
		cand, err := l.New(proto.Type, pose)
		if err != nil {
			opsf("marker %s: %v", m, err)
			continue
		}
		cand.obsDistance = m.Distance()
		cand.observedMarkers = []*l2vision.ObservedMarker{m}
		m.Used = true

		merged := false
		for _, prev := range out {
			same, err := prev.IsSameAs(cand, prev.SameDistanceTolerance(), DefaultSameAngleTolerance)
			if err != nil || !same {
				continue
			}
			prev.observedMarkers = append(prev.observedMarkers, m)
			if cand.obsDistance < prev.obsDistance {
				prev.pose = cand.pose
				prev.obsDistance = cand.obsDistance
			}
			prev.SetMarkerObserved(m.Code, m.Timestamp)
			merged = true
			break
		}
		if merged {
			tracef("marker %s merged into existing %s candidate", m, proto.Type)
			continue
		}
		cand.SetLastObservedTime(m.Timestamp)
		cand.SetMarkerObserved(m.Code, m.Timestamp)
		tracef("candidate %s from marker %s at %.1fmm", proto.Type, m, cand.obsDistance)
		out = append(out, cand)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].obsDistance < out[j].obsDistance })
	return out
}

// poseFromMarker picks the known marker that best explains m and returns
// the implied object pose. Where a code appears on several faces, the face
// giving the most upright object wins.
func (l *Library) poseFromMarker(family Family, m *l2vision.ObservedMarker, cameraPose l1frames.Pose) (*Prototype, l1frames.Pose, bool) {
	var (
		best     *Prototype
		bestPose l1frames.Pose
		bestUp   = math.Inf(-1)
	)
	markerWrtOrigin := cameraPose.Transform.Compose(m.PoseWrtCamera)
	for _, ref := range l.byCode[m.Code] {
		if ref.proto.Family != family {
			continue
		}
		known := ref.proto.Markers[ref.index]
		objXf := markerWrtOrigin.Compose(known.Pose.Inverse())
		up := objXf.Rotate(l1frames.ZAxis).Z
		if up > bestUp+1e-9 {
			best, bestUp = ref.proto, up
			bestPose = l1frames.Pose{Transform: objXf, Parent: cameraPose.Parent}
		}
	}
	return best, bestPose, best != nil
}

// ---------------------------------------------------------------------------
// Built-in prototypes
// ---------------------------------------------------------------------------

// faceMarkers places one marker of the given code centred on each listed
// face of a box of the given size.
func faceMarkers(code l2vision.MarkerCode, size r3.Vec, markerSize float64, faces ...r3.Vec) []l2vision.KnownMarker {
	out := make([]l2vision.KnownMarker, 0, len(faces))
	for _, f := range faces {
		out = append(out, l2vision.KnownMarker{Code: code, Size: markerSize, Pose: facePose(f, size)})
	}
	return out
}

// facePose returns the pose of a marker centred on the box face whose
// outward normal is n.
func facePose(n r3.Vec, size r3.Vec) l1frames.Transform {
	h := r3.Scale(0.5, size)
	switch {
	case n.X > 0:
		return l1frames.NewTransform(math.Pi/2, l1frames.YAxis, r3.Vec{X: h.X})
	case n.X < 0:
		return l1frames.NewTransform(-math.Pi/2, l1frames.YAxis, r3.Vec{X: -h.X})
	case n.Y > 0:
		return l1frames.NewTransform(-math.Pi/2, l1frames.XAxis, r3.Vec{Y: h.Y})
	case n.Y < 0:
		return l1frames.NewTransform(math.Pi/2, l1frames.XAxis, r3.Vec{Y: -h.Y})
	case n.Z < 0:
		return l1frames.NewTransform(math.Pi, l1frames.XAxis, r3.Vec{Z: -h.Z})
	}
	return l1frames.Translation(0, 0, h.Z)
}

var allFaces = []r3.Vec{
	{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1},
}

// CubeAmbiguities returns the 23 non-identity rotations that map a cube
// onto itself.
func CubeAmbiguities() []l1frames.Transform {
	var out []l1frames.Transform
	add := func(angle float64, axis r3.Vec) {
		out = append(out, l1frames.NewTransform(angle, axis, r3.Vec{}))
	}
	for _, axis := range []r3.Vec{l1frames.XAxis, l1frames.YAxis, l1frames.ZAxis} {
		for _, a := range []float64{math.Pi / 2, math.Pi, 3 * math.Pi / 2} {
			add(a, axis)
		}
	}
	for _, axis := range []r3.Vec{
		{X: 1, Y: 1}, {X: 1, Y: -1}, {X: 1, Z: 1}, {X: 1, Z: -1}, {Y: 1, Z: 1}, {Y: 1, Z: -1},
	} {
		add(math.Pi, axis)
	}
	for _, axis := range []r3.Vec{
		{X: 1, Y: 1, Z: 1}, {X: -1, Y: 1, Z: 1}, {X: 1, Y: -1, Z: 1}, {X: 1, Y: 1, Z: -1},
	} {
		add(2*math.Pi/3, axis)
		add(4*math.Pi/3, axis)
	}
	return out
}

func cubeSize() r3.Vec { return r3.Vec{X: CubeSize, Y: CubeSize, Z: CubeSize} }

func lightCubePrototype(t Type) Prototype {
	return Prototype{
		Family:      FamilyLightCube,
		Type:        t,
		Size:        cubeSize(),
		Markers:     faceMarkers(l2vision.MarkerCode("MARKER_"+string(t)), cubeSize(), CubeMarkerSize, allFaces...),
		Kind:        &CubeKind{Active: &ActiveState{ID: NoActiveID, Identity: WaitingForIdentity}},
		Localizable: true,
		Ambiguities: CubeAmbiguities(),
	}
}

func blockPrototype(t Type) Prototype {
	return Prototype{
		Family:      FamilyBlock,
		Type:        t,
		Size:        cubeSize(),
		Markers:     faceMarkers(l2vision.MarkerCode("MARKER_"+string(t)), cubeSize(), CubeMarkerSize, allFaces...),
		Kind:        &CubeKind{},
		Localizable: true,
		Ambiguities: CubeAmbiguities(),
	}
}

// LettersMatCode returns the code of the letters mat marker in row r,
// column c (0-based, 4x4 grid).
func LettersMatCode(r, c int) l2vision.MarkerCode {
	return l2vision.MarkerCode(fmt.Sprintf("MARKER_MAT_%c", rune('A'+r*4+c)))
}

func lettersMatPrototype() Prototype {
	size := r3.Vec{X: MatLettersSize, Y: MatLettersSize, Z: MatLettersThickness}
	var markers []l2vision.KnownMarker
	spacing := MatLettersSize / 4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			x := -MatLettersSize/2 + spacing*(float64(c)+0.5)
			y := MatLettersSize/2 - spacing*(float64(r)+0.5)
			markers = append(markers, l2vision.KnownMarker{
				Code: LettersMatCode(r, c),
				Size: MatLettersMarkerSize,
				Pose: l1frames.Translation(x, y, MatLettersThickness/2),
			})
		}
	}
	return Prototype{
		Family:      FamilyMat,
		Type:        TypeMatLetters4x4,
		Size:        size,
		Markers:     markers,
		Kind:        &MatKind{},
		Localizable: true,
	}
}

func platformPrototype() Prototype {
	size := r3.Vec{X: PlatformSize, Y: PlatformSize, Z: PlatformHeight}
	var markers []l2vision.KnownMarker
	for _, f := range []struct {
		code l2vision.MarkerCode
		n    r3.Vec
	}{
		{"MARKER_PLATFORM_FRONT", r3.Vec{X: 1}},
		{"MARKER_PLATFORM_BACK", r3.Vec{X: -1}},
		{"MARKER_PLATFORM_LEFT", r3.Vec{Y: 1}},
		{"MARKER_PLATFORM_RIGHT", r3.Vec{Y: -1}},
		{"MARKER_PLATFORM_TOP", r3.Vec{Z: 1}},
	} {
		markers = append(markers, faceMarkers(f.code, size, PlatformMarkerSize, f.n)...)
	}
	lip := PlatformLipWall + PlatformLipGroove
	half := PlatformSize / 2
	band := lip / 2
	return Prototype{
		Family:  FamilyMat,
		Type:    TypeMatLargePlatform,
		Size:    size,
		Markers: markers,
		Kind: &MatKind{UnsafeRegions: []UnsafeRegion{
			{Centre: r2.Vec{X: half - band}, HalfX: band, HalfY: half},
			{Centre: r2.Vec{X: -half + band}, HalfX: band, HalfY: half},
			{Centre: r2.Vec{Y: half - band}, HalfX: half, HalfY: band},
			{Centre: r2.Vec{Y: -half + band}, HalfX: half, HalfY: band},
		}},
		Localizable: true,
	}
}

func rampPrototype() Prototype {
	size := r3.Vec{X: RampLength, Y: RampWidth, Z: RampHeight}
	markers := append(
		faceMarkers("MARKER_RAMP_FRONT", size, RampMarkerSize, r3.Vec{X: -1}),
		faceMarkers("MARKER_RAMP_BACK", size, RampMarkerSize, r3.Vec{X: 1})...,
	)
	return Prototype{
		Family:      FamilyRamp,
		Type:        TypeRampBasic,
		Size:        size,
		Markers:     markers,
		Kind:        &RampKind{},
		Localizable: true,
	}
}

func chargerPrototype() Prototype {
	size := r3.Vec{X: ChargerLength, Y: ChargerWidth, Z: ChargerHeight}
	return Prototype{
		Family:      FamilyCharger,
		Type:        TypeChargerBasic,
		Size:        size,
		Markers:     faceMarkers("MARKER_CHARGER_HOME", size, ChargerMarkerSize, r3.Vec{X: 1}),
		Kind:        &ChargerKind{Active: &ActiveState{ID: NoActiveID, Identity: WaitingForIdentity}},
		Localizable: true,
	}
}
