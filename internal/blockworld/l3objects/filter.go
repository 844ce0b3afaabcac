package l3objects

import "github.com/banshee-data/blockworld/internal/blockworld/l1frames"

// OriginMode selects which origins a Filter accepts.
type OriginMode int

const (
	// InRobotFrame accepts only objects under the robot's current origin.
	InRobotFrame OriginMode = iota
	// InAnyFrame accepts objects under any origin.
	InAnyFrame
	// InCustomFrame accepts only objects under Filter.Origin.
	InCustomFrame
)

// Filter is a composable predicate over objects. The zero value accepts
// every object under the robot's current origin. Filters are built per
// query and not retained.
type Filter struct {
	AllowedFamilies map[Family]bool
	IgnoreFamilies  map[Family]bool
	AllowedTypes    map[Type]bool
	IgnoreTypes     map[Type]bool
	IgnoreIDs       map[ObjectID]bool

	// OnlyConsiderLatestUpdate limits matches to objects observed at the
	// most recent observation time of any object.
	OnlyConsiderLatestUpdate bool

	OriginMode OriginMode
	Origin     l1frames.FrameID

	// Additional predicates; all must hold.
	Funcs []func(*Object) bool
}

// NewFilter returns a filter accepting everything in the robot's origin.
func NewFilter() *Filter { return &Filter{} }

// AllowFamily restricts the filter to the listed families (cumulative).
func (f *Filter) AllowFamily(fams ...Family) *Filter {
	if f.AllowedFamilies == nil {
		f.AllowedFamilies = make(map[Family]bool)
	}
	for _, fam := range fams {
		f.AllowedFamilies[fam] = true
	}
	return f
}

// IgnoreFamily excludes families.
func (f *Filter) IgnoreFamily(fams ...Family) *Filter {
	if f.IgnoreFamilies == nil {
		f.IgnoreFamilies = make(map[Family]bool)
	}
	for _, fam := range fams {
		f.IgnoreFamilies[fam] = true
	}
	return f
}

// AllowType restricts the filter to the listed types (cumulative).
func (f *Filter) AllowType(types ...Type) *Filter {
	if f.AllowedTypes == nil {
		f.AllowedTypes = make(map[Type]bool)
	}
	for _, t := range types {
		f.AllowedTypes[t] = true
	}
	return f
}

// IgnoreType excludes types.
func (f *Filter) IgnoreType(types ...Type) *Filter {
	if f.IgnoreTypes == nil {
		f.IgnoreTypes = make(map[Type]bool)
	}
	for _, t := range types {
		f.IgnoreTypes[t] = true
	}
	return f
}

// IgnoreID excludes specific objects.
func (f *Filter) IgnoreID(ids ...ObjectID) *Filter {
	if f.IgnoreIDs == nil {
		f.IgnoreIDs = make(map[ObjectID]bool)
	}
	for _, id := range ids {
		f.IgnoreIDs[id] = true
	}
	return f
}

// AnyOrigin makes the filter accept objects under every origin.
func (f *Filter) AnyOrigin() *Filter {
	f.OriginMode = InAnyFrame
	return f
}

// InOrigin makes the filter accept only objects under origin.
func (f *Filter) InOrigin(origin l1frames.FrameID) *Filter {
	f.OriginMode = InCustomFrame
	f.Origin = origin
	return f
}

// Where adds a custom predicate.
func (f *Filter) Where(fn func(*Object) bool) *Filter {
	f.Funcs = append(f.Funcs, fn)
	return f
}

// ConsiderFamily reports whether objects of fam can pass.
func (f *Filter) ConsiderFamily(fam Family) bool {
	if f == nil {
		return true
	}
	if f.IgnoreFamilies[fam] {
		return false
	}
	return len(f.AllowedFamilies) == 0 || f.AllowedFamilies[fam]
}

// ConsiderType reports whether objects of t can pass.
func (f *Filter) ConsiderType(t Type) bool {
	if f == nil {
		return true
	}
	if f.IgnoreTypes[t] {
		return false
	}
	return len(f.AllowedTypes) == 0 || f.AllowedTypes[t]
}

// MatchContext carries the world state a filter is evaluated against.
type MatchContext struct {
	RobotOrigin  l1frames.FrameID
	LatestUpdate Timestamp
}

// Matches reports whether o passes every clause.
func (f *Filter) Matches(o *Object, ctx MatchContext) bool {
	if f == nil {
		f = &Filter{}
	}
	if !f.ConsiderFamily(o.family) || !f.ConsiderType(o.typ) {
		return false
	}
	if f.IgnoreIDs[o.id] {
		return false
	}
	if f.OnlyConsiderLatestUpdate && o.lastObserved != ctx.LatestUpdate {
		return false
	}
	switch f.OriginMode {
	case InRobotFrame:
		if o.Origin() != ctx.RobotOrigin {
			return false
		}
	case InCustomFrame:
		if o.Origin() != f.Origin {
			return false
		}
	}
	for _, fn := range f.Funcs {
		if !fn(o) {
			return false
		}
	}
	return true
}
