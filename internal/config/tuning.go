// Package config loads planner tuning values from JSON files with
// pointer-optional overrides, validated at load time.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig holds the planner's named tuning constants (the curvature
// sentinel, the jerk floor, the lateral-accel bound) so they're visible
// and overridable without touching code.
type TuningConfig struct {
	NoCurvatureSpeedMPH      *float64 `json:"no_curvature_speed_mph,omitempty"`
	AYMax                    *float64 `json:"ay_max,omitempty"`
	ForceSlowDecel           *float64 `json:"force_slow_decel,omitempty"`
	JerkFloor                *float64 `json:"jerk_floor,omitempty"`
	MinCanSpeed              *float64 `json:"min_can_speed,omitempty"`
	DistanceLinesCostEpsilon *float64 `json:"distance_lines_cost_epsilon,omitempty"`
	FCWEnabled               *bool    `json:"fcw_enabled,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields nil. Use
// LoadTuningConfig to load actual values from a defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must
// have a .json extension and be under 1MB; fields omitted from the file
// retain their default values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
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

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath, searching common relative locations. Intended for
// tests and binaries; panics if the file cannot be found.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that any set configuration values are physically sane.
func (c *TuningConfig) Validate() error {
	if c.AYMax != nil && *c.AYMax <= 0 {
		return fmt.Errorf("ay_max must be positive, got %f", *c.AYMax)
	}
	if c.ForceSlowDecel != nil && *c.ForceSlowDecel >= 0 {
		return fmt.Errorf("force_slow_decel must be negative, got %f", *c.ForceSlowDecel)
	}
	if c.JerkFloor != nil && *c.JerkFloor <= 0 {
		return fmt.Errorf("jerk_floor must be positive, got %f", *c.JerkFloor)
	}
	if c.NoCurvatureSpeedMPH != nil && *c.NoCurvatureSpeedMPH <= 0 {
		return fmt.Errorf("no_curvature_speed_mph must be positive, got %f", *c.NoCurvatureSpeedMPH)
	}
	if c.DistanceLinesCostEpsilon != nil && *c.DistanceLinesCostEpsilon < 0 {
		return fmt.Errorf("distance_lines_cost_epsilon must be non-negative, got %f", *c.DistanceLinesCostEpsilon)
	}
	return nil
}

const mphToMS = 0.44704

// GetNoCurvatureSpeed returns the NO_CURVATURE_SPEED sentinel in m/s.
func (c *TuningConfig) GetNoCurvatureSpeed() float64 {
	if c.NoCurvatureSpeedMPH == nil {
		return 200 * mphToMS
	}
	return *c.NoCurvatureSpeedMPH * mphToMS
}

// GetAYMax returns the comfortable lateral accel bound.
func (c *TuningConfig) GetAYMax() float64 {
	if c.AYMax == nil {
		return 1.85
	}
	return *c.AYMax
}

// GetForceSlowDecel returns the awareness/distraction decel ceiling.
func (c *TuningConfig) GetForceSlowDecel() float64 {
	if c.ForceSlowDecel == nil {
		return -0.2
	}
	return *c.ForceSlowDecel
}

// GetJerkFloor returns the minimum magnitude of the jerk envelope.
func (c *TuningConfig) GetJerkFloor() float64 {
	if c.JerkFloor == nil {
		return 0.1
	}
	return *c.JerkFloor
}

// GetMinCanSpeed returns the minimum speed reported while starting from a
// stop.
func (c *TuningConfig) GetMinCanSpeed() float64 {
	if c.MinCanSpeed == nil {
		return 0.3
	}
	return *c.MinCanSpeed
}

// GetDistanceLinesCostEpsilon returns the cost-delta threshold that
// triggers a solver re-init under the dynamic distance_lines profile.
func (c *TuningConfig) GetDistanceLinesCostEpsilon() float64 {
	if c.DistanceLinesCostEpsilon == nil {
		return 0.2
	}
	return *c.DistanceLinesCostEpsilon
}

// GetFCWEnabled returns whether the FCW detector is allowed to fire at
// all (a driver/vehicle-profile setting, distinct from per-tick arming).
func (c *TuningConfig) GetFCWEnabled() bool {
	if c.FCWEnabled == nil {
		return true
	}
	return *c.FCWEnabled
}
