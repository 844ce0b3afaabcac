// Package scenario replays scripted robot sessions through a World. A
// scenario places ground-truth objects around the robot and lists timed
// steps: drive, look, sense obstacles and cliffs, pair radios. The driver
// turns each look into the marker observations the camera would report.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l2vision"
	"github.com/banshee-data/blockworld/internal/blockworld/l3objects"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every scenario validation failure.
var ErrInvalid = errors.New("invalid scenario")

// Scenario is a scripted session.
type Scenario struct {
	Name string `yaml:"name"`
	// CameraTiltDeg pitches the camera down from horizontal.
	CameraTiltDeg float64      `yaml:"camera_tilt_deg"`
	Objects       []ObjectSpec `yaml:"objects"`
	Steps         []Step       `yaml:"steps"`
}

// PoseSpec is a pose in the ground-truth frame, which starts where the
// robot starts. Distances are mm.
type PoseSpec struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Z      float64 `yaml:"z"`
	YawDeg float64 `yaml:"yaw_deg"`
}

// Transform returns the pose as a rigid transform.
func (p PoseSpec) Transform() l1frames.Transform {
	return l1frames.NewTransform(l1frames.DegToRad(p.YawDeg), l1frames.ZAxis, r3.Vec{X: p.X, Y: p.Y, Z: p.Z})
}

// ObjectSpec places a named ground-truth object.
type ObjectSpec struct {
	Name     string         `yaml:"name"`
	Type     l3objects.Type `yaml:"type"`
	PoseSpec `yaml:",inline"`
}

// ConnectSpec pairs a radio connection with an object type.
type ConnectSpec struct {
	ActiveID l3objects.ActiveID  `yaml:"active_id"`
	Factory  l3objects.FactoryID `yaml:"factory"`
	Type     l3objects.Type      `yaml:"type"`
}

// CliffSensorSpec is the robot's cliff sensor reading.
type CliffSensorSpec struct {
	Detected bool    `yaml:"detected"`
	DirX     float64 `yaml:"dir_x"`
	DirY     float64 `yaml:"dir_y"`
}

// Step is one tick. Fields apply in declaration order: truth edits, robot
// motion, sensors, radios, then the camera look and Update.
type Step struct {
	T l2vision.Timestamp `yaml:"t"`

	Place  []ObjectSpec `yaml:"place"`  // add or move ground-truth objects
	Remove []string     `yaml:"remove"` // names of ground-truth objects

	// Drive moves the robot in its own frame; odometry and truth agree.
	Drive *PoseSpec `yaml:"drive"`
	// Slip moves only the true robot, leaving odometry behind.
	Slip *PoseSpec `yaml:"slip"`

	PickedUp         *bool            `yaml:"picked_up"`
	PickingOrPlacing *bool            `yaml:"picking_or_placing"`
	CliffSensor      *CliffSensorSpec `yaml:"cliff_sensor"`
	Prox             *PoseSpec        `yaml:"prox"`  // robot frame
	Cliff            *PoseSpec        `yaml:"cliff"` // robot frame
	Connect          []ConnectSpec    `yaml:"connect"`

	// Blind skips the camera for this step; Update still runs.
	Blind bool `yaml:"blind"`
	// NavMap stamps the robot footprint and cliff sensor into the memory map.
	NavMap bool `yaml:"nav_map"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	sc, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes and validates a scenario. Unknown fields are rejected.
func Parse(b []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := sc.Validate(l3objects.NewDefaultLibrary(l1frames.NewArena(), 1)); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks that every type is known to lib, names are unique and
// step timestamps strictly increase.
func (sc *Scenario) Validate(lib *l3objects.Library) error {
	known := func(t l3objects.Type) bool {
		_, ok := lib.Prototype(t)
		return ok
	}
	names := make(map[string]bool)
	place := func(where string, o ObjectSpec) error {
		if o.Name == "" {
			return fmt.Errorf("%s: object without a name: %w", where, ErrInvalid)
		}
		if !known(o.Type) {
			return fmt.Errorf("%s: object %q has unknown type %q: %w", where, o.Name, o.Type, ErrInvalid)
		}
		names[o.Name] = true
		return nil
	}

	seen := make(map[string]bool)
	for _, o := range sc.Objects {
		if seen[o.Name] {
			return fmt.Errorf("objects: duplicate name %q: %w", o.Name, ErrInvalid)
		}
		seen[o.Name] = true
		if err := place("objects", o); err != nil {
			return err
		}
	}

	var last l2vision.Timestamp
	for i, st := range sc.Steps {
		where := fmt.Sprintf("step %d", i)
		if i > 0 && st.T <= last {
			return fmt.Errorf("%s: timestamp %d does not follow %d: %w", where, st.T, last, ErrInvalid)
		}
		last = st.T
		for _, o := range st.Place {
			if err := place(where, o); err != nil {
				return err
			}
		}
		for _, name := range st.Remove {
			if !names[name] {
				return fmt.Errorf("%s: remove unknown object %q: %w", where, name, ErrInvalid)
			}
		}
		for _, c := range st.Connect {
			if !known(c.Type) {
				return fmt.Errorf("%s: connect unknown type %q: %w", where, c.Type, ErrInvalid)
			}
		}
	}
	return nil
}
