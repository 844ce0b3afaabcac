package l3objects

import (
	"errors"
	"fmt"
	"sort"

	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
)

var (
	// ErrUnknownType is returned for types with no prototype.
	ErrUnknownType = errors.New("unknown object type")
	// ErrDuplicateID is returned when registering an ID that is already live.
	ErrDuplicateID = errors.New("object ID already registered")
	// ErrNotFound is returned for IDs that are not registered.
	ErrNotFound = errors.New("object not found")
	// ErrInvariant marks an internal consistency failure.
	ErrInvariant = errors.New("invariant violation")
)

// Registry owns every known object, indexed family→type→ID with a flat ID
// index alongside. It is not safe for concurrent use.
type Registry struct {
	arena   *l1frames.Arena
	objects map[Family]map[Type]map[ObjectID]*Object
	byID    map[ObjectID]*Object
	nextID  ObjectID

	addEnabled    bool
	deleteEnabled bool
	robotOrigin   func() l1frames.FrameID
}

// NewRegistry returns an empty registry over arena. robotOrigin reports the
// robot's current origin for filters in InRobotFrame mode.
func NewRegistry(arena *l1frames.Arena, robotOrigin func() l1frames.FrameID) *Registry {
	if robotOrigin == nil {
		robotOrigin = func() l1frames.FrameID { return l1frames.NoFrame }
	}
	return &Registry{
		arena:         arena,
		objects:       make(map[Family]map[Type]map[ObjectID]*Object),
		byID:          make(map[ObjectID]*Object),
		nextID:        1,
		addEnabled:    true,
		deleteEnabled: true,
		robotOrigin:   robotOrigin,
	}
}

// Arena returns the frame arena objects live in.
func (r *Registry) Arena() *l1frames.Arena { return r.arena }

// EnableAddition toggles whether unmatched sightings may become objects.
func (r *Registry) EnableAddition(on bool) { r.addEnabled = on }

// EnableDeletion toggles whether confirmed objects may be cleared or deleted.
func (r *Registry) EnableDeletion(on bool) { r.deleteEnabled = on }

// AdditionEnabled reports the addition toggle.
func (r *Registry) AdditionEnabled() bool { return r.addEnabled }

// DeletionEnabled reports the deletion toggle.
func (r *Registry) DeletionEnabled() bool { return r.deleteEnabled }

// CanRemove reports whether o may be cleared or deleted under the current
// deletion toggle. Unconfirmed objects are noise and may always go.
func (r *Registry) CanRemove(o *Object) bool {
	return r.deleteEnabled || !o.IsExistenceConfirmed()
}

// Add registers o, assigning an ID if it has none, and gives it an arena
// frame at its current pose.
func (r *Registry) Add(o *Object) (ObjectID, error) {
	if o.IsRegistered() {
		return o.id, fmt.Errorf("add %s: already registered: %w", o, ErrDuplicateID)
	}
	if !o.id.IsSet() {
		o.id = r.nextID
		r.nextID++
	} else if o.id >= r.nextID {
		r.nextID = o.id + 1
	}
	if _, exists := r.byID[o.id]; exists {
		return o.id, fmt.Errorf("add %s: %w", o, ErrDuplicateID)
	}
	frame, err := r.arena.AddFrame(fmt.Sprintf("%s-%d", o.typ, o.id), o.pose)
	if err != nil {
		return o.id, fmt.Errorf("add %s: %w", o, err)
	}
	o.arena = r.arena
	o.frame = frame

	byType, ok := r.objects[o.family]
	if !ok {
		byType = make(map[Type]map[ObjectID]*Object)
		r.objects[o.family] = byType
	}
	byID, ok := byType[o.typ]
	if !ok {
		byID = make(map[ObjectID]*Object)
		byType[o.typ] = byID
	}
	byID[o.id] = o
	r.byID[o.id] = o
	diagf("added %s at %v", o, o.Pose().Transform)
	return o.id, nil
}

// Remove unregisters an object and releases its frame. Anything parented to
// the object keeps its world placement. A frame that has become an origin
// is left in the arena as a bare origin, since other poses are rooted at it.
func (r *Registry) Remove(id ObjectID) (*Object, error) {
	o, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	o.pose = o.Pose()
	if r.arena.IsOrigin(o.frame) {
		diagf("%s anchors origin %d; keeping the origin", o, o.frame)
	} else if err := r.arena.Release(o.frame); err != nil {
		opsf("removing %s: %v", o, err)
	}
	o.frame = l1frames.NoFrame
	delete(r.objects[o.family][o.typ], id)
	if len(r.objects[o.family][o.typ]) == 0 {
		delete(r.objects[o.family], o.typ)
	}
	if len(r.objects[o.family]) == 0 {
		delete(r.objects, o.family)
	}
	delete(r.byID, id)
	diagf("removed %s", o)
	return o, nil
}

// Get returns the object with id, or nil.
func (r *Registry) Get(id ObjectID) *Object { return r.byID[id] }

// GetInFamily returns the object with id if it belongs to fam, or nil.
func (r *Registry) GetInFamily(id ObjectID, fam Family) *Object {
	return r.objects[fam][r.familyTypeOf(id)][id]
}

func (r *Registry) familyTypeOf(id ObjectID) Type {
	if o, ok := r.byID[id]; ok {
		return o.typ
	}
	return TypeUnknown
}

// GetByActiveID returns the active object paired with aid, or nil.
func (r *Registry) GetByActiveID(aid ActiveID) *Object {
	if aid == NoActiveID {
		return nil
	}
	for _, o := range r.All() {
		if a, ok := o.AsActive(); ok && a.ID == aid {
			return o
		}
	}
	return nil
}

// Len returns the number of registered objects.
func (r *Registry) Len() int { return len(r.byID) }

// All returns every object ordered by ID.
func (r *Registry) All() []*Object {
	out := make([]*Object, 0, len(r.byID))
	for _, o := range r.byID {
		out = append(out, o)
	}
	sortByID(out)
	return out
}

// ByFamily returns the family's objects ordered by ID.
func (r *Registry) ByFamily(fam Family) []*Object {
	var out []*Object
	for _, byID := range r.objects[fam] {
		for _, o := range byID {
			out = append(out, o)
		}
	}
	sortByID(out)
	return out
}

// ByType returns the type's objects ordered by ID.
func (r *Registry) ByType(t Type) []*Object {
	var out []*Object
	for _, byType := range r.objects {
		for _, o := range byType[t] {
			out = append(out, o)
		}
	}
	sortByID(out)
	return out
}

func sortByID(objs []*Object) {
	sort.Slice(objs, func(i, j int) bool { return objs[i].id < objs[j].id })
}

// MatchContext returns the context filters are evaluated against.
func (r *Registry) MatchContext() MatchContext {
	ctx := MatchContext{RobotOrigin: r.robotOrigin()}
	for _, o := range r.byID {
		if o.lastObserved > ctx.LatestUpdate {
			ctx.LatestUpdate = o.lastObserved
		}
	}
	return ctx
}

// Find returns every object passing f, ordered by ID.
func (r *Registry) Find(f *Filter) []*Object {
	ctx := r.MatchContext()
	var out []*Object
	for _, o := range r.All() {
		if f.ConsiderFamily(o.family) && f.ConsiderType(o.typ) && f.Matches(o, ctx) {
			out = append(out, o)
		}
	}
	return out
}

// FindFirst returns the lowest-ID object passing f, or nil.
func (r *Registry) FindFirst(f *Filter) *Object {
	if objs := r.Find(f); len(objs) > 0 {
		return objs[0]
	}
	return nil
}

// CheckInvariants verifies the family/type/ID index against the flat index.
func (r *Registry) CheckInvariants() error {
	n := 0
	for fam, byType := range r.objects {
		for t, byID := range byType {
			for id, o := range byID {
				n++
				if o.id != id || o.typ != t || o.family != fam {
					return fmt.Errorf("object %s filed under %s/%s/%s: %w", o, fam, t, id, ErrInvariant)
				}
				if r.byID[id] != o {
					return fmt.Errorf("object %s missing from ID index: %w", o, ErrInvariant)
				}
				if !r.arena.Exists(o.frame) {
					return fmt.Errorf("object %s has no frame: %w", o, ErrInvariant)
				}
			}
		}
	}
	if n != len(r.byID) {
		return fmt.Errorf("index sizes differ (%d vs %d): %w", n, len(r.byID), ErrInvariant)
	}
	return nil
}
