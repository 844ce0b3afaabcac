package l6world

import (
	"fmt"
	"time"

	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l2vision"
	"github.com/banshee-data/blockworld/internal/blockworld/l4navmap"
	"github.com/banshee-data/blockworld/internal/blockworld/l5identity"
	"github.com/banshee-data/blockworld/internal/config"
)

// Config holds the runtime tuning for a World. Build it with
// ConfigFromTuning or DefaultConfig; it is not changed after New.
type Config struct {
	MinTimesToObserve       int
	MaxLocalizationDistance float64 // mm
	StackedHeightTol        float64 // mm
	MaxStackWalk            int
	IdentificationTimeout   time.Duration
	OnePerType              l5identity.OnePerType

	// Padding around the robot's box when clearing objects it drove into.
	RobotBBoxPadding            float64 // mm
	UnobservedFramesBeforeClear int

	Visibility        l2vision.VisibilityParams
	BorderPadFraction float64 // of image width and height

	// Partially visible objects are re-reported when seen within this
	// window and range. Zero window or negative range disables each check.
	PartialSeenWithin   time.Duration
	PartialMaxDistance  float64 // mm
	MatFlatMaxTilt      float64 // radians
	MatFlatMaxAxisAngle float64 // radians
	RobotOnMatHeightTol float64 // mm

	EnableMapMemory bool
	NavMapPrecision float64 // mm
	Edges           l4navmap.EdgeParams
}

// ConfigFromTuning builds a Config from a validated tuning file.
func ConfigFromTuning(cfg *config.TuningConfig) (Config, error) {
	onePerType, err := l5identity.ParseOnePerType(cfg.GetOneObjectPerType())
	if err != nil {
		return Config{}, fmt.Errorf("world config: %w", err)
	}
	return Config{
		MinTimesToObserve:       cfg.GetMinTimesToObserveObject(),
		MaxLocalizationDistance: cfg.GetMaxLocalizationAndIDDistanceMM(),
		StackedHeightTol:        cfg.GetStackedHeightTolMM(),
		MaxStackWalk:            cfg.GetMaxStackWalk(),
		IdentificationTimeout:   cfg.GetBlockIdentificationTimeout(),
		OnePerType:              onePerType,

		RobotBBoxPadding:            cfg.GetRobotBBoxPaddingForDeletionMM(),
		UnobservedFramesBeforeClear: cfg.GetUnobservedFramesBeforeClear(),

		Visibility: l2vision.VisibilityParams{
			MaxFaceAngle:           l1frames.DegToRad(cfg.GetVisibilityMaxFaceAngleDeg()),
			MinImageSize:           cfg.GetVisibilityMinMarkerImageSizePx(),
			RequireSomethingBehind: cfg.GetRequireSomethingBehind(),
		},
		BorderPadFraction: cfg.GetVisibilityBorderPadFraction(),

		PartialSeenWithin:   cfg.GetPartialVisibilitySeenWithin(),
		PartialMaxDistance:  cfg.GetPartialVisibilityMaxDistanceMM(),
		MatFlatMaxTilt:      l1frames.DegToRad(cfg.GetMatFlatMaxTiltDeg()),
		MatFlatMaxAxisAngle: l1frames.DegToRad(cfg.GetMatFlatAxisMaxDeg()),
		RobotOnMatHeightTol: cfg.GetRobotOnMatHeightTolMM(),

		EnableMapMemory: cfg.GetEnableMapMemory(),
		NavMapPrecision: cfg.GetNavMapPrecisionMM(),
		Edges: l4navmap.EdgeParams{
			MergeDot:      cfg.GetOverheadEdgeMergeDot(),
			BorderDepthMM: cfg.GetOverheadBorderDepthMM(),
		},
	}, nil
}

// DefaultConfig loads the canonical defaults file. It panics when the file
// cannot be found, so it is meant for tests and binaries run from the
// repository.
func DefaultConfig() Config {
	cfg, err := ConfigFromTuning(config.MustLoadDefaultConfig())
	if err != nil {
		panic(err)
	}
	return cfg
}

// identificationTimeout is the timeout on the robot clock.
func (c Config) identificationTimeout() l2vision.Timestamp {
	return l2vision.Timestamp(c.IdentificationTimeout.Milliseconds())
}

func (c Config) resolverParams() l5identity.Params {
	return l5identity.Params{
		MaxLocalizationDistance: c.MaxLocalizationDistance,
		StackedHeightTol:        c.StackedHeightTol,
		MaxStackWalk:            c.MaxStackWalk,
		OnePerType:              c.OnePerType,
	}
}

// visibilityFor fills in the image border padding for cam.
func (c Config) visibilityFor(cam *l2vision.Camera) l2vision.VisibilityParams {
	p := c.Visibility
	p.XBorderPad = c.BorderPadFraction * float64(cam.Calib.NumCols)
	p.YBorderPad = c.BorderPadFraction * float64(cam.Calib.NumRows)
	return p
}
