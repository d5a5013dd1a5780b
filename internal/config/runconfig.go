package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// RunConfig is the JSON run configuration for a visibility computation.
// Fields are pointers so a partial file keeps defaults; the Get* accessors
// supply the fallback values. The same document is stored verbatim in the
// run registry, so it doubles as the run's parameter record.
type RunConfig struct {
	// Target
	TargetX *float64 `json:"target_x,omitempty"`
	TargetY *float64 `json:"target_y,omitempty"`
	HeightM *float64 `json:"height_m,omitempty"`

	// Observer and sampling
	ObserverHeightM *float64 `json:"observer_height_m,omitempty"`
	StrictNoData    *bool    `json:"strict_nodata,omitempty"`
	MaxDistanceM    *float64 `json:"max_distance_m,omitempty"` // 0 = unlimited
	SampleStepM     *float64 `json:"sample_step_m,omitempty"`

	// Radial mode
	RadiusM *float64 `json:"radius_m,omitempty"`
	Rays    *int     `json:"rays,omitempty"` // 0 = derive and snap to preset

	// Execution
	Workers *int `json:"workers,omitempty"` // 0 = logical core count

	// Refinement pass (optional)
	FineBBox       *string  `json:"fine_bbox,omitempty"` // "minx,miny,maxx,maxy"
	FineStepM      *float64 `json:"fine_step_m,omitempty"`
	FineRays       *int     `json:"fine_rays,omitempty"`
	FineFullExtent *bool    `json:"fine_full_extent,omitempty"`
}

// maxConfigSize bounds config files for safety (1MB).
const maxConfigSize = 1 * 1024 * 1024

// Load reads a RunConfig from a JSON file. The path must have a .json
// extension and stay under the size bound; omitted fields keep defaults.
func Load(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &RunConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration values that have been set.
func (c *RunConfig) Validate() error {
	if c.HeightM != nil && *c.HeightM <= 0 {
		return fmt.Errorf("height_m must be > 0, got %g", *c.HeightM)
	}
	if c.ObserverHeightM != nil && *c.ObserverHeightM < 0 {
		return fmt.Errorf("observer_height_m must be >= 0, got %g", *c.ObserverHeightM)
	}
	if c.MaxDistanceM != nil && *c.MaxDistanceM < 0 {
		return fmt.Errorf("max_distance_m must be >= 0 (0 = unlimited), got %g", *c.MaxDistanceM)
	}
	if c.SampleStepM != nil && *c.SampleStepM <= 0 {
		return fmt.Errorf("sample_step_m must be > 0, got %g", *c.SampleStepM)
	}
	if c.RadiusM != nil && *c.RadiusM <= 0 {
		return fmt.Errorf("radius_m must be > 0, got %g", *c.RadiusM)
	}
	if c.Rays != nil && *c.Rays < 0 {
		return fmt.Errorf("rays must be >= 0 (0 = auto), got %d", *c.Rays)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0 (0 = core count), got %d", *c.Workers)
	}
	if c.FineStepM != nil && *c.FineStepM <= 0 {
		return fmt.Errorf("fine_step_m must be > 0, got %g", *c.FineStepM)
	}
	return nil
}

// GetHeightM returns the target height or the default.
func (c *RunConfig) GetHeightM() float64 {
	if c.HeightM == nil {
		return 200.0
	}
	return *c.HeightM
}

// GetObserverHeightM returns the observer eye height or the default.
func (c *RunConfig) GetObserverHeightM() float64 {
	if c.ObserverHeightM == nil {
		return 1.6
	}
	return *c.ObserverHeightM
}

// GetStrictNoData returns the strict nodata policy or the default.
func (c *RunConfig) GetStrictNoData() bool {
	if c.StrictNoData == nil {
		return true
	}
	return *c.StrictNoData
}

// GetMaxDistanceM returns the direct-mode distance cutoff or the default.
func (c *RunConfig) GetMaxDistanceM() float64 {
	if c.MaxDistanceM == nil {
		return 15000.0
	}
	return *c.MaxDistanceM
}

// GetSampleStepM returns the sample step or the default.
func (c *RunConfig) GetSampleStepM() float64 {
	if c.SampleStepM == nil {
		return 25.0
	}
	return *c.SampleStepM
}

// GetRays returns the direction count, 0 meaning derive-and-snap.
func (c *RunConfig) GetRays() int {
	if c.Rays == nil {
		return 0
	}
	return *c.Rays
}

// GetWorkers returns the worker count or the logical core count.
func (c *RunConfig) GetWorkers() int {
	if c.Workers == nil || *c.Workers == 0 {
		return runtime.NumCPU()
	}
	return *c.Workers
}

// GetFineFullExtent returns the refinement windowing mode or the default.
func (c *RunConfig) GetFineFullExtent() bool {
	if c.FineFullExtent == nil {
		return false
	}
	return *c.FineFullExtent
}

// MarshalParams serialises the effective configuration for the run registry.
func (c *RunConfig) MarshalParams() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal run parameters: %w", err)
	}
	return string(data), nil
}
