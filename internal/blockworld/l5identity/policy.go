package l5identity

import (
	"fmt"

	"github.com/banshee-data/blockworld/internal/blockworld/l3objects"
)

// ActiveIdentityPolicy decides which registered object an active
// candidate is. Matching for active objects is by identity, not pose, so
// a match may live under another origin.
type ActiveIdentityPolicy interface {
	// Match returns the registered object cand is, or nil when cand is a
	// new object. skip is set when cand cannot be resolved and must be
	// dropped.
	Match(reg *l3objects.Registry, cand *l3objects.Object) (match *l3objects.Object, skip bool)
}

// SingleInstancePerType allows at most one live object of each active
// type: a candidate is whichever object of its type already exists.
type SingleInstancePerType struct{}

// Match implements ActiveIdentityPolicy.
func (SingleInstancePerType) Match(reg *l3objects.Registry, cand *l3objects.Object) (*l3objects.Object, bool) {
	same := reg.Find(l3objects.NewFilter().AllowType(cand.Type()).AnyOrigin())
	switch len(same) {
	case 0:
		opsf("active %s seen with no existing object of its type; is it powered?", cand.Type())
		return nil, false
	case 1:
		return same[0], false
	default:
		opsf("active %s matches %d existing objects; multiple objects of one active type are not supported",
			cand.Type(), len(same))
		return nil, true
	}
}

// OnePerType controls whether unmatched passive sightings are folded into
// an existing object of the same type instead of creating another.
type OnePerType string

const (
	OnePerTypeOff      OnePerType = "off"
	OnePerTypePhysical OnePerType = "physical"
	OnePerTypeAlways   OnePerType = "always"
)

// ParseOnePerType validates a configured mode. The empty string is Off.
func ParseOnePerType(s string) (OnePerType, error) {
	switch OnePerType(s) {
	case "", OnePerTypeOff:
		return OnePerTypeOff, nil
	case OnePerTypePhysical, OnePerTypeAlways:
		return OnePerType(s), nil
	}
	return OnePerTypeOff, fmt.Errorf("unknown one_object_per_type mode %q", s)
}

// Applies reports whether the mode is in force for a robot.
func (m OnePerType) Applies(physicalRobot bool) bool {
	return m == OnePerTypeAlways || (m == OnePerTypePhysical && physicalRobot)
}
