package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "min_times_to_observe_object": 4,
  "max_localization_and_id_distance_mm": 300,
  "block_identification_timeout": "750ms",
  "one_object_per_type": "always",
  "enable_map_memory": true
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.MinTimesToObserveObject == nil || *cfg.MinTimesToObserveObject != 4 {
		t.Errorf("Expected MinTimesToObserveObject 4, got %v", cfg.MinTimesToObserveObject)
	}
	if cfg.GetMaxLocalizationAndIDDistanceMM() != 300 {
		t.Errorf("Expected max distance 300, got %f", cfg.GetMaxLocalizationAndIDDistanceMM())
	}
	if cfg.GetBlockIdentificationTimeout() != 750*time.Millisecond {
		t.Errorf("Expected timeout 750ms, got %v", cfg.GetBlockIdentificationTimeout())
	}
	if cfg.GetOneObjectPerType() != "always" {
		t.Errorf("Expected one_object_per_type always, got %q", cfg.GetOneObjectPerType())
	}
	if !cfg.GetEnableMapMemory() {
		t.Error("Expected map memory enabled")
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	invalidJSON := `{
  "min_times_to_observe_object": "two"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{
			name:    "defaults file is valid",
			cfg:     MustLoadDefaultConfig(),
			wantErr: false,
		},
		{
			name:    "empty config is valid",
			cfg:     &TuningConfig{},
			wantErr: false,
		},
		{
			name:    "negative min times observed",
			cfg:     &TuningConfig{MinTimesToObserveObject: ptrInt(-1)},
			wantErr: true,
		},
		{
			name:    "negative stack walk",
			cfg:     &TuningConfig{MaxStackWalk: ptrInt(-3)},
			wantErr: true,
		},
		{
			name:    "negative localization distance",
			cfg:     &TuningConfig{MaxLocalizationAndIDDistanceMM: ptrFloat64(-1)},
			wantErr: true,
		},
		{
			name:    "zero map precision",
			cfg:     &TuningConfig{NavMapPrecisionMM: ptrFloat64(0)},
			wantErr: true,
		},
		{
			name:    "merge dot above one",
			cfg:     &TuningConfig{OverheadEdgeMergeDot: ptrFloat64(1.2)},
			wantErr: true,
		},
		{
			name:    "merge dot at minus one",
			cfg:     &TuningConfig{OverheadEdgeMergeDot: ptrFloat64(-1)},
			wantErr: false,
		},
		{
			name:    "unknown per-type mode",
			cfg:     &TuningConfig{OneObjectPerType: ptrString("sometimes")},
			wantErr: true,
		},
		{
			name:    "invalid identification timeout",
			cfg:     &TuningConfig{BlockIdentificationTimeout: ptrString("soon")},
			wantErr: true,
		},
		{
			name:    "negative identification timeout",
			cfg:     &TuningConfig{BlockIdentificationTimeout: ptrString("-1s")},
			wantErr: true,
		},
		{
			name:    "invalid partial visibility window",
			cfg:     &TuningConfig{PartialVisibilitySeenWithin: ptrString("recently")},
			wantErr: true,
		},
		{
			name:    "negative partial visibility distance disables",
			cfg:     &TuningConfig{PartialVisibilityMaxDistanceMM: ptrFloat64(-1)},
			wantErr: false,
		},
		{
			name:    "require something behind",
			cfg:     &TuningConfig{RequireSomethingBehind: ptrBool(true)},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetBlockIdentificationTimeout(t *testing.T) {
	tests := []struct {
		name  string
		value *string
		want  time.Duration
	}{
		{"nil", nil, 500 * time.Millisecond},
		{"empty", ptrString(""), 500 * time.Millisecond},
		{"set", ptrString("2s"), 2 * time.Second},
		{"unparseable falls back", ptrString("bogus"), 500 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &TuningConfig{BlockIdentificationTimeout: tt.value}
			if got := cfg.GetBlockIdentificationTimeout(); got != tt.want {
				t.Errorf("GetBlockIdentificationTimeout() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetUnobservedFramesBeforeClear(t *testing.T) {
	if got := (&TuningConfig{UnobservedFramesBeforeClear: ptrInt(0)}).GetUnobservedFramesBeforeClear(); got != 1 {
		t.Errorf("zero frames should mean clear on first miss, got %d", got)
	}
	if got := (&TuningConfig{UnobservedFramesBeforeClear: ptrInt(3)}).GetUnobservedFramesBeforeClear(); got != 3 {
		t.Errorf("GetUnobservedFramesBeforeClear() = %d, want 3", got)
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../config/tuning.defaults.json")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	empty := &TuningConfig{}
	if cfg.GetMinTimesToObserveObject() != empty.GetMinTimesToObserveObject() {
		t.Errorf("defaults file min times %d, getter default %d",
			cfg.GetMinTimesToObserveObject(), empty.GetMinTimesToObserveObject())
	}
	if cfg.GetMaxLocalizationAndIDDistanceMM() != empty.GetMaxLocalizationAndIDDistanceMM() {
		t.Errorf("defaults file max distance %f, getter default %f",
			cfg.GetMaxLocalizationAndIDDistanceMM(), empty.GetMaxLocalizationAndIDDistanceMM())
	}
	if cfg.GetOverheadEdgeMergeDot() != empty.GetOverheadEdgeMergeDot() {
		t.Errorf("defaults file merge dot %f, getter default %f",
			cfg.GetOverheadEdgeMergeDot(), empty.GetOverheadEdgeMergeDot())
	}
	if cfg.GetPartialVisibilitySeenWithin() != 0 {
		t.Errorf("partial visibility should be disabled, got %v", cfg.GetPartialVisibilitySeenWithin())
	}
}

func TestLoadExampleConfigFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../config/tuning.example.json")
	if err != nil {
		t.Fatalf("Failed to load example: %v", err)
	}
	if cfg.GetMinTimesToObserveObject() != 3 {
		t.Errorf("Expected 3, got %d", cfg.GetMinTimesToObserveObject())
	}
	if cfg.GetOneObjectPerType() != "physical" {
		t.Errorf("Expected physical, got %q", cfg.GetOneObjectPerType())
	}
	if cfg.GetNavMapPrecisionMM() != 20 {
		t.Errorf("Expected 20, got %f", cfg.GetNavMapPrecisionMM())
	}
}

func TestLoadTuningConfigPartial(t *testing.T) {
	// Partial config: only override the stack tolerance; everything else keeps defaults.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.json")

	partialJSON := `{
  "stacked_height_tol_mm": 8
}`
	if err := os.WriteFile(configPath, []byte(partialJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load partial config: %v", err)
	}

	if cfg.GetStackedHeightTolMM() != 8 {
		t.Errorf("Expected overridden StackedHeightTolMM 8, got %f", cfg.GetStackedHeightTolMM())
	}
	if cfg.GetMinTimesToObserveObject() != 2 {
		t.Errorf("Expected default MinTimesToObserveObject 2, got %d", cfg.GetMinTimesToObserveObject())
	}
	if cfg.GetBlockIdentificationTimeout() != 500*time.Millisecond {
		t.Errorf("Expected default timeout 500ms, got %v", cfg.GetBlockIdentificationTimeout())
	}
	if cfg.GetEnableMapMemory() {
		t.Error("Expected map memory disabled by default")
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	_, err := LoadTuningConfig("/some/path/config.yaml")
	if err == nil {
		t.Error("Expected error for non-.json extension, got nil")
	}
}

func TestLoadTuningConfigRejectsLargeFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "large.json")

	largeData := make([]byte, 2*1024*1024) // 2MB
	if err := os.WriteFile(configPath, largeData, 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}

func TestGetterDefaults(t *testing.T) {
	cfg := &TuningConfig{}

	if cfg.GetMinTimesToObserveObject() != 2 {
		t.Errorf("GetMinTimesToObserveObject() = %d, want 2", cfg.GetMinTimesToObserveObject())
	}
	if cfg.GetMaxLocalizationAndIDDistanceMM() != 250 {
		t.Errorf("GetMaxLocalizationAndIDDistanceMM() = %f, want 250", cfg.GetMaxLocalizationAndIDDistanceMM())
	}
	if cfg.GetStackedHeightTolMM() != 15 {
		t.Errorf("GetStackedHeightTolMM() = %f, want 15", cfg.GetStackedHeightTolMM())
	}
	if cfg.GetMaxStackWalk() != 20 {
		t.Errorf("GetMaxStackWalk() = %d, want 20", cfg.GetMaxStackWalk())
	}
	if cfg.GetOneObjectPerType() != "off" {
		t.Errorf("GetOneObjectPerType() = %q, want off", cfg.GetOneObjectPerType())
	}
	if cfg.GetRobotBBoxPaddingForDeletionMM() != 2 {
		t.Errorf("GetRobotBBoxPaddingForDeletionMM() = %f, want 2", cfg.GetRobotBBoxPaddingForDeletionMM())
	}
	if cfg.GetUnobservedFramesBeforeClear() != 1 {
		t.Errorf("GetUnobservedFramesBeforeClear() = %d, want 1", cfg.GetUnobservedFramesBeforeClear())
	}
	if cfg.GetRequireSomethingBehind() {
		t.Error("GetRequireSomethingBehind() = true, want false")
	}
	if cfg.GetPartialVisibilityMaxDistanceMM() >= 0 {
		t.Errorf("GetPartialVisibilityMaxDistanceMM() = %f, want negative", cfg.GetPartialVisibilityMaxDistanceMM())
	}
	if cfg.GetVisibilityMaxFaceAngleDeg() != 45 {
		t.Errorf("GetVisibilityMaxFaceAngleDeg() = %f, want 45", cfg.GetVisibilityMaxFaceAngleDeg())
	}
	if cfg.GetVisibilityMinMarkerImageSizePx() != 20 {
		t.Errorf("GetVisibilityMinMarkerImageSizePx() = %f, want 20", cfg.GetVisibilityMinMarkerImageSizePx())
	}
	if cfg.GetVisibilityBorderPadFraction() != 0.05 {
		t.Errorf("GetVisibilityBorderPadFraction() = %f, want 0.05", cfg.GetVisibilityBorderPadFraction())
	}
	if cfg.GetMatFlatMaxTiltDeg() != 5 || cfg.GetMatFlatAxisMaxDeg() != 45 {
		t.Errorf("mat flatness defaults = %f/%f, want 5/45", cfg.GetMatFlatMaxTiltDeg(), cfg.GetMatFlatAxisMaxDeg())
	}
	if cfg.GetRobotOnMatHeightTolMM() != 15 {
		t.Errorf("GetRobotOnMatHeightTolMM() = %f, want 15", cfg.GetRobotOnMatHeightTolMM())
	}
	if cfg.GetNavMapPrecisionMM() != 10 {
		t.Errorf("GetNavMapPrecisionMM() = %f, want 10", cfg.GetNavMapPrecisionMM())
	}
	if cfg.GetOverheadBorderDepthMM() != 1 {
		t.Errorf("GetOverheadBorderDepthMM() = %f, want 1", cfg.GetOverheadBorderDepthMM())
	}
}
