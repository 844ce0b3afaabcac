package l4navmap

import (
	"errors"
	"fmt"

	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
)

// ErrMissingMap is returned when a known origin has no map.
var ErrMissingMap = errors.New("no memory map for origin")

// Maps holds one memory map per origin. At most one is current.
type Maps struct {
	precision float64
	maps      map[l1frames.FrameID]*GridMap
	current   l1frames.FrameID
}

// NewMaps returns an empty set whose maps use precisionMM cells.
func NewMaps(precisionMM float64) *Maps {
	return &Maps{precision: precisionMM, maps: make(map[l1frames.FrameID]*GridMap)}
}

// CreateLocalized returns origin's map, creating it if needed, and makes it
// current.
func (m *Maps) CreateLocalized(origin l1frames.FrameID) *GridMap {
	g, ok := m.maps[origin]
	if !ok {
		g = NewGridMap(m.precision)
		m.maps[origin] = g
		diagf("created memory map for origin %d", origin)
	}
	m.current = origin
	return g
}

// Current returns the current map, or nil.
func (m *Maps) Current() *GridMap { return m.maps[m.current] }

// CurrentOrigin returns the origin of the current map, or NoFrame.
func (m *Maps) CurrentOrigin() l1frames.FrameID {
	if _, ok := m.maps[m.current]; !ok {
		return l1frames.NoFrame
	}
	return m.current
}

// Get returns origin's map.
func (m *Maps) Get(origin l1frames.FrameID) (*GridMap, bool) {
	g, ok := m.maps[origin]
	return g, ok
}

// Len returns the number of maps.
func (m *Maps) Len() int { return len(m.maps) }

// Origins returns the origins that have maps.
func (m *Maps) Origins() []l1frames.FrameID {
	out := make([]l1frames.FrameID, 0, len(m.maps))
	for id := range m.maps {
		out = append(out, id)
	}
	return out
}

// Merge folds oldOrigin's map into newOrigin's (created if absent) using
// oldToNew, makes newOrigin current and retires oldOrigin's map. A missing
// old map is reported with ErrMissingMap after the switch is done.
func (m *Maps) Merge(oldOrigin, newOrigin l1frames.FrameID, oldToNew l1frames.Transform) error {
	dst := m.CreateLocalized(newOrigin)
	if oldOrigin == newOrigin {
		return nil
	}
	src, ok := m.maps[oldOrigin]
	if !ok {
		opsf("merge %d into %d: no map for old origin", oldOrigin, newOrigin)
		return fmt.Errorf("merge origin %d into %d: %w", oldOrigin, newOrigin, ErrMissingMap)
	}
	dst.Merge(src, oldToNew)
	delete(m.maps, oldOrigin)
	diagf("retired memory map for origin %d into %d", oldOrigin, newOrigin)
	return nil
}

// Retire drops origin's map.
func (m *Maps) Retire(origin l1frames.FrameID) {
	delete(m.maps, origin)
}
