// Package config loads JSON processing-parameter files for the offline
// tools. Fields omitted from the JSON keep their library defaults, so
// partial configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/mfdop/internal/dop"
)

// ProcessingConfig represents the tunable parameters of a processing run.
// Every field is optional; the Get* methods provide fallback defaults that
// match dop.DefaultUnwrapOptions and dop.DefaultInversionOptions.
type ProcessingConfig struct {
	// Unwrapper params
	Kappa           *float64 `json:"kappa,omitempty"`
	MaxIter         *int     `json:"max_iter,omitempty"`
	Tol             *float64 `json:"tol,omitempty"`
	MinCorrel       *float64 `json:"min_correl,omitempty"`
	MaxWeight       *float64 `json:"max_weight,omitempty"`
	UseHuber        *bool    `json:"use_huber,omitempty"`
	MedianFilter3x3 *bool    `json:"median_filter_3x3,omitempty"`
	HybridMode      *bool    `json:"hybrid_mode,omitempty"`
	RangeMin        *int     `json:"range_min,omitempty"`
	RangeMax        *int     `json:"range_max,omitempty"`

	// Averaging and orientation params
	Nave     *int     `json:"nave,omitempty"`
	PitchDeg *float64 `json:"pitch_deg,omitempty"`
	RollDeg  *float64 `json:"roll_deg,omitempty"`
	YawDeg   *float64 `json:"yaw_deg,omitempty"`

	// Execution params
	Workers *int `json:"workers,omitempty"`
}

// EmptyProcessingConfig returns a ProcessingConfig with all fields nil.
func EmptyProcessingConfig() *ProcessingConfig {
	return &ProcessingConfig{}
}

// LoadProcessingConfig loads a ProcessingConfig from a JSON file. The path
// must carry a .json extension and stay under the max file size.
func LoadProcessingConfig(path string) (*ProcessingConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

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

	cfg := EmptyProcessingConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *ProcessingConfig) Validate() error {
	if c.Kappa != nil && *c.Kappa <= 0 {
		return fmt.Errorf("kappa must be positive, got %f", *c.Kappa)
	}
	if c.MaxIter != nil && *c.MaxIter < 1 {
		return fmt.Errorf("max_iter must be at least 1, got %d", *c.MaxIter)
	}
	if c.Tol != nil && *c.Tol <= 0 {
		return fmt.Errorf("tol must be positive, got %g", *c.Tol)
	}
	if c.MinCorrel != nil && (*c.MinCorrel < 0 || *c.MinCorrel > 100) {
		return fmt.Errorf("min_correl must be between 0 and 100, got %f", *c.MinCorrel)
	}
	if c.Nave != nil && (*c.Nave < 1 || *c.Nave%2 == 0) {
		return fmt.Errorf("nave must be odd and positive, got %d", *c.Nave)
	}
	return nil
}

// GetKappa returns the kappa value or the default.
func (c *ProcessingConfig) GetKappa() float64 {
	if c.Kappa == nil {
		return dop.DefaultUnwrapOptions().Kappa
	}
	return *c.Kappa
}

// GetMaxIter returns the max_iter value or the default.
func (c *ProcessingConfig) GetMaxIter() int {
	if c.MaxIter == nil {
		return dop.DefaultUnwrapOptions().MaxIter
	}
	return *c.MaxIter
}

// GetTol returns the tol value or the default.
func (c *ProcessingConfig) GetTol() float64 {
	if c.Tol == nil {
		return dop.DefaultUnwrapOptions().Tol
	}
	return *c.Tol
}

// GetMinCorrel returns the min_correl value or the default.
func (c *ProcessingConfig) GetMinCorrel() float64 {
	if c.MinCorrel == nil {
		return dop.DefaultUnwrapOptions().MinCorrel
	}
	return *c.MinCorrel
}

// GetNave returns the nave value or the default.
func (c *ProcessingConfig) GetNave() int {
	if c.Nave == nil {
		return dop.DefaultInversionOptions().Nave
	}
	return *c.Nave
}

// GetWorkers returns the workers value or 0 (one per CPU).
func (c *ProcessingConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// Options converts the file-level configuration into the typed option
// structs the dop package consumes.
func (c *ProcessingConfig) Options() dop.ProcessOptions {
	opts := dop.DefaultProcessOptions()
	opts.Unwrap.Kappa = c.GetKappa()
	opts.Unwrap.MaxIter = c.GetMaxIter()
	opts.Unwrap.Tol = c.GetTol()
	opts.Unwrap.MinCorrel = c.GetMinCorrel()
	if c.MaxWeight != nil {
		opts.Unwrap.MaxWeight = *c.MaxWeight
	}
	if c.UseHuber != nil {
		opts.Unwrap.UseHuber = *c.UseHuber
	}
	if c.MedianFilter3x3 != nil {
		opts.Unwrap.MedianFilter3x3 = *c.MedianFilter3x3
	}
	if c.HybridMode != nil {
		opts.Unwrap.HybridMode = *c.HybridMode
	}
	if c.RangeMin != nil {
		opts.Unwrap.RangeMin = *c.RangeMin
	}
	if c.RangeMax != nil {
		opts.Unwrap.RangeMax = *c.RangeMax
	}
	opts.Inversion.Nave = c.GetNave()
	if c.PitchDeg != nil {
		opts.Inversion.PitchDeg = *c.PitchDeg
	}
	if c.RollDeg != nil {
		opts.Inversion.RollDeg = *c.RollDeg
	}
	if c.YawDeg != nil {
		opts.Inversion.YawDeg = *c.YawDeg
	}
	opts.Workers = c.GetWorkers()
	opts.Inversion.Workers = c.GetWorkers()
	return opts
}
