package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for world model tuning.
// Every field is optional; the Get* methods supply the defaults, so a
// partial file only overrides what it names.
type TuningConfig struct {
	// Object confirmation and identification
	MinTimesToObserveObject        *int     `json:"min_times_to_observe_object,omitempty"`
	MaxLocalizationAndIDDistanceMM *float64 `json:"max_localization_and_id_distance_mm,omitempty"`
	StackedHeightTolMM             *float64 `json:"stacked_height_tol_mm,omitempty"`
	MaxStackWalk                   *int     `json:"max_stack_walk,omitempty"`
	BlockIdentificationTimeout     *string  `json:"block_identification_timeout,omitempty"` // duration string like "500ms"
	OneObjectPerType               *string  `json:"one_object_per_type,omitempty"`          // off, physical or always
	RobotBBoxPaddingForDeletionMM  *float64 `json:"robot_bbox_padding_for_object_deletion_mm,omitempty"`
	UnobservedFramesBeforeClear    *int     `json:"unobserved_frames_before_clear,omitempty"`
	RequireSomethingBehind         *bool    `json:"require_something_behind,omitempty"`
	PartialVisibilitySeenWithin    *string  `json:"partial_visibility_seen_within,omitempty"` // duration; zero disables
	PartialVisibilityMaxDistanceMM *float64 `json:"partial_visibility_max_distance_mm,omitempty"`
	VisibilityMaxFaceAngleDeg      *float64 `json:"visibility_max_face_angle_deg,omitempty"`
	VisibilityMinMarkerImageSizePx *float64 `json:"visibility_min_marker_image_size_px,omitempty"`
	VisibilityBorderPadFraction    *float64 `json:"visibility_border_pad_fraction,omitempty"`

	// Mats
	MatFlatMaxTiltDeg     *float64 `json:"mat_flat_max_tilt_deg,omitempty"`
	MatFlatAxisMaxDeg     *float64 `json:"mat_flat_axis_max_deg,omitempty"`
	RobotOnMatHeightTolMM *float64 `json:"robot_on_mat_height_tol_mm,omitempty"`

	// Navigation memory map
	EnableMapMemory       *bool    `json:"enable_map_memory,omitempty"`
	NavMapPrecisionMM     *float64 `json:"nav_map_precision_mm,omitempty"`
	OverheadEdgeMergeDot  *float64 `json:"overhead_edge_merge_dot,omitempty"`
	OverheadBorderDepthMM *float64 `json:"overhead_border_depth_mm,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,          // from internal/config/
		"../../../" + DefaultConfigPath,       // from internal/blockworld/l6world/
		"../../../../" + DefaultConfigPath,    // deeper packages
		"../../../../../" + DefaultConfigPath, // even deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	nonNegInts := []struct {
		name string
		v    *int
	}{
		{"min_times_to_observe_object", c.MinTimesToObserveObject},
		{"max_stack_walk", c.MaxStackWalk},
		{"unobserved_frames_before_clear", c.UnobservedFramesBeforeClear},
	}
	for _, f := range nonNegInts {
		if f.v != nil && *f.v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", f.name, *f.v)
		}
	}

	nonNegFloats := []struct {
		name string
		v    *float64
	}{
		{"max_localization_and_id_distance_mm", c.MaxLocalizationAndIDDistanceMM},
		{"stacked_height_tol_mm", c.StackedHeightTolMM},
		{"robot_bbox_padding_for_object_deletion_mm", c.RobotBBoxPaddingForDeletionMM},
		{"visibility_max_face_angle_deg", c.VisibilityMaxFaceAngleDeg},
		{"visibility_min_marker_image_size_px", c.VisibilityMinMarkerImageSizePx},
		{"visibility_border_pad_fraction", c.VisibilityBorderPadFraction},
		{"mat_flat_max_tilt_deg", c.MatFlatMaxTiltDeg},
		{"mat_flat_axis_max_deg", c.MatFlatAxisMaxDeg},
		{"robot_on_mat_height_tol_mm", c.RobotOnMatHeightTolMM},
		{"overhead_border_depth_mm", c.OverheadBorderDepthMM},
	}
	for _, f := range nonNegFloats {
		if f.v != nil && *f.v < 0 {
			return fmt.Errorf("%s must be non-negative, got %f", f.name, *f.v)
		}
	}

	if c.NavMapPrecisionMM != nil && *c.NavMapPrecisionMM <= 0 {
		return fmt.Errorf("nav_map_precision_mm must be positive, got %f", *c.NavMapPrecisionMM)
	}

	if c.OverheadEdgeMergeDot != nil {
		if *c.OverheadEdgeMergeDot < -1 || *c.OverheadEdgeMergeDot > 1 {
			return fmt.Errorf("overhead_edge_merge_dot must be between -1 and 1, got %f", *c.OverheadEdgeMergeDot)
		}
	}

	if c.OneObjectPerType != nil {
		switch *c.OneObjectPerType {
		case "", "off", "physical", "always":
		default:
			return fmt.Errorf("one_object_per_type must be off, physical or always, got %q", *c.OneObjectPerType)
		}
	}

	if c.BlockIdentificationTimeout != nil && *c.BlockIdentificationTimeout != "" {
		d, err := time.ParseDuration(*c.BlockIdentificationTimeout)
		if err != nil {
			return fmt.Errorf("invalid block_identification_timeout '%s': %w", *c.BlockIdentificationTimeout, err)
		}
		if d < 0 {
			return fmt.Errorf("block_identification_timeout must be non-negative, got %s", d)
		}
	}

	if c.PartialVisibilitySeenWithin != nil && *c.PartialVisibilitySeenWithin != "" {
		if _, err := time.ParseDuration(*c.PartialVisibilitySeenWithin); err != nil {
			return fmt.Errorf("invalid partial_visibility_seen_within '%s': %w", *c.PartialVisibilitySeenWithin, err)
		}
	}

	return nil
}

// GetMinTimesToObserveObject returns the min_times_to_observe_object value or the default.
func (c *TuningConfig) GetMinTimesToObserveObject() int {
	if c.MinTimesToObserveObject == nil {
		return 2
	}
	return *c.MinTimesToObserveObject
}

// GetMaxLocalizationAndIDDistanceMM returns the max_localization_and_id_distance_mm value or the default.
func (c *TuningConfig) GetMaxLocalizationAndIDDistanceMM() float64 {
	if c.MaxLocalizationAndIDDistanceMM == nil {
		return 250
	}
	return *c.MaxLocalizationAndIDDistanceMM
}

// GetStackedHeightTolMM returns the stacked_height_tol_mm value or the default.
func (c *TuningConfig) GetStackedHeightTolMM() float64 {
	if c.StackedHeightTolMM == nil {
		return 15
	}
	return *c.StackedHeightTolMM
}

// GetMaxStackWalk returns the max_stack_walk value or the default.
func (c *TuningConfig) GetMaxStackWalk() int {
	if c.MaxStackWalk == nil {
		return 20
	}
	return *c.MaxStackWalk
}

// GetBlockIdentificationTimeout parses and returns the BlockIdentificationTimeout as a time.Duration.
func (c *TuningConfig) GetBlockIdentificationTimeout() time.Duration {
	if c.BlockIdentificationTimeout == nil || *c.BlockIdentificationTimeout == "" {
		return 500 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.BlockIdentificationTimeout)
	if err != nil {
		return 500 * time.Millisecond // default on parse error
	}
	return d
}

// GetOneObjectPerType returns the one_object_per_type mode or "off".
func (c *TuningConfig) GetOneObjectPerType() string {
	if c.OneObjectPerType == nil || *c.OneObjectPerType == "" {
		return "off"
	}
	return *c.OneObjectPerType
}

// GetRobotBBoxPaddingForDeletionMM returns the robot_bbox_padding_for_object_deletion_mm value or the default.
func (c *TuningConfig) GetRobotBBoxPaddingForDeletionMM() float64 {
	if c.RobotBBoxPaddingForDeletionMM == nil {
		return 2
	}
	return *c.RobotBBoxPaddingForDeletionMM
}

// GetUnobservedFramesBeforeClear returns the unobserved_frames_before_clear value or the default.
func (c *TuningConfig) GetUnobservedFramesBeforeClear() int {
	if c.UnobservedFramesBeforeClear == nil || *c.UnobservedFramesBeforeClear < 1 {
		return 1
	}
	return *c.UnobservedFramesBeforeClear
}

// GetRequireSomethingBehind returns the require_something_behind value or the default.
func (c *TuningConfig) GetRequireSomethingBehind() bool {
	if c.RequireSomethingBehind == nil {
		return false
	}
	return *c.RequireSomethingBehind
}

// GetPartialVisibilitySeenWithin returns how recently an object must have
// been seen to be reported as partially visible. Zero disables the check.
func (c *TuningConfig) GetPartialVisibilitySeenWithin() time.Duration {
	if c.PartialVisibilitySeenWithin == nil || *c.PartialVisibilitySeenWithin == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.PartialVisibilitySeenWithin)
	if err != nil {
		return 0
	}
	return d
}

// GetPartialVisibilityMaxDistanceMM returns the partial-visibility range.
// Negative disables the check.
func (c *TuningConfig) GetPartialVisibilityMaxDistanceMM() float64 {
	if c.PartialVisibilityMaxDistanceMM == nil {
		return -1
	}
	return *c.PartialVisibilityMaxDistanceMM
}

// GetVisibilityMaxFaceAngleDeg returns the visibility_max_face_angle_deg value or the default.
func (c *TuningConfig) GetVisibilityMaxFaceAngleDeg() float64 {
	if c.VisibilityMaxFaceAngleDeg == nil {
		return 45
	}
	return *c.VisibilityMaxFaceAngleDeg
}

// GetVisibilityMinMarkerImageSizePx returns the visibility_min_marker_image_size_px value or the default.
func (c *TuningConfig) GetVisibilityMinMarkerImageSizePx() float64 {
	if c.VisibilityMinMarkerImageSizePx == nil {
		return 20
	}
	return *c.VisibilityMinMarkerImageSizePx
}

// GetVisibilityBorderPadFraction returns the visibility_border_pad_fraction value or the default.
func (c *TuningConfig) GetVisibilityBorderPadFraction() float64 {
	if c.VisibilityBorderPadFraction == nil {
		return 0.05
	}
	return *c.VisibilityBorderPadFraction
}

// GetMatFlatMaxTiltDeg returns the mat_flat_max_tilt_deg value or the default.
func (c *TuningConfig) GetMatFlatMaxTiltDeg() float64 {
	if c.MatFlatMaxTiltDeg == nil {
		return 5
	}
	return *c.MatFlatMaxTiltDeg
}

// GetMatFlatAxisMaxDeg returns the mat_flat_axis_max_deg value or the default.
func (c *TuningConfig) GetMatFlatAxisMaxDeg() float64 {
	if c.MatFlatAxisMaxDeg == nil {
		return 45
	}
	return *c.MatFlatAxisMaxDeg
}

// GetRobotOnMatHeightTolMM returns the robot_on_mat_height_tol_mm value or the default.
func (c *TuningConfig) GetRobotOnMatHeightTolMM() float64 {
	if c.RobotOnMatHeightTolMM == nil {
		return 15
	}
	return *c.RobotOnMatHeightTolMM
}

// GetEnableMapMemory returns the enable_map_memory value or the default.
func (c *TuningConfig) GetEnableMapMemory() bool {
	if c.EnableMapMemory == nil {
		return false
	}
	return *c.EnableMapMemory
}

// GetNavMapPrecisionMM returns the nav_map_precision_mm value or the default.
func (c *TuningConfig) GetNavMapPrecisionMM() float64 {
	if c.NavMapPrecisionMM == nil {
		return 10
	}
	return *c.NavMapPrecisionMM
}

// GetOverheadEdgeMergeDot returns the overhead_edge_merge_dot value or the default.
func (c *TuningConfig) GetOverheadEdgeMergeDot() float64 {
	if c.OverheadEdgeMergeDot == nil {
		return 0.766 // cos(40deg)
	}
	return *c.OverheadEdgeMergeDot
}

// GetOverheadBorderDepthMM returns the overhead_border_depth_mm value or the default.
func (c *TuningConfig) GetOverheadBorderDepthMM() float64 {
	if c.OverheadBorderDepthMM == nil {
		return 1
	}
	return *c.OverheadBorderDepthMM
}
