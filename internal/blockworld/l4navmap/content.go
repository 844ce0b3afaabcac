package l4navmap

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// ContentType tags what a map cell is known to hold.
type ContentType int

const (
	ContentUnknown ContentType = iota
	ContentClearOfObstacle
	ContentClearOfCliff
	ContentObstacleCube
	ContentObstacleCharger
	ContentObstacleUnrecognized
	ContentCliff
	ContentInterestingEdge
	ContentNotInterestingEdge

	// NumContentTypes is the number of content types; keep it last.
	NumContentTypes
)

var contentNames = [NumContentTypes]string{
	ContentUnknown:              "unknown",
	ContentClearOfObstacle:      "clear_of_obstacle",
	ContentClearOfCliff:         "clear_of_cliff",
	ContentObstacleCube:         "obstacle_cube",
	ContentObstacleCharger:      "obstacle_charger",
	ContentObstacleUnrecognized: "obstacle_unrecognized",
	ContentCliff:                "cliff",
	ContentInterestingEdge:      "interesting_edge",
	ContentNotInterestingEdge:   "not_interesting_edge",
}

func (c ContentType) String() string {
	if c >= 0 && c < NumContentTypes {
		return contentNames[c]
	}
	return fmt.Sprintf("ContentType(%d)", int(c))
}

// ParseContentType is the inverse of String.
func ParseContentType(s string) (ContentType, error) {
	for i, n := range contentNames {
		if n == s {
			return ContentType(i), nil
		}
	}
	return ContentUnknown, fmt.Errorf("unknown content type %q", s)
}

// Content is what gets stamped into a cell.
type Content struct {
	Type ContentType

	// CliffDirection points from the robot towards the drop for
	// ContentCliff; zero otherwise.
	CliffDirection r2.Vec
}

// InvalidationTable says, for every content type, whether a ray crossing it
// is blocked. Being an array indexed by type, it is total by construction.
type InvalidationTable [NumContentTypes]bool

// NewInvalidationTable returns a table in which exactly the listed types
// invalidate.
func NewInvalidationTable(invalidating ...ContentType) InvalidationTable {
	var t InvalidationTable
	for _, c := range invalidating {
		t[c] = true
	}
	return t
}

// Invalidates reports whether c blocks a ray.
func (t InvalidationTable) Invalidates(c ContentType) bool {
	if c < 0 || c >= NumContentTypes {
		return false
	}
	return t[c]
}

// ObstacleTypes is the table used for driving: anything solid or a drop.
var ObstacleTypes = NewInvalidationTable(
	ContentObstacleCube,
	ContentObstacleCharger,
	ContentObstacleUnrecognized,
	ContentCliff,
)

// replaces reports whether incoming content may overwrite existing content.
// A cliff is only ever replaced by positive evidence that there is none.
func replaces(existing, incoming ContentType) bool {
	if existing == ContentCliff {
		return incoming == ContentClearOfCliff || incoming == ContentCliff
	}
	return true
}
