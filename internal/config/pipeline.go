// Package config loads pipeline parameters from JSON defaults files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical pipeline defaults file.
// This is the single source of truth for all default run parameters.
const DefaultConfigPath = "config/pipeline.defaults.json"

// PipelineConfig is the root run configuration. Fields are pointers so a
// partial JSON file only overrides what it names; the Get* accessors
// supply fallbacks for everything else.
type PipelineConfig struct {
	// Archive window
	StartYear *int    `json:"start_year,omitempty"`
	EndYear   *int    `json:"end_year,omitempty"`
	StartDay  *string `json:"start_day,omitempty"` // "mm-dd", inclusive
	EndDay    *string `json:"end_day,omitempty"`   // "mm-dd", inclusive

	// Geometric alignment (zero keeps source shape)
	TargetWidth  *int `json:"target_width,omitempty"`
	TargetHeight *int `json:"target_height,omitempty"`

	// Trend inputs
	Index    *string  `json:"index,omitempty"`
	FTVBands []string `json:"ftv_bands,omitempty"`

	// Event selection
	EventStartYear *int     `json:"event_start_year,omitempty"`
	EventEndYear   *int     `json:"event_end_year,omitempty"`
	DSNRThreshold  *float64 `json:"dsnr_threshold,omitempty"`

	// Worker fan-out for the pixel-parallel stages
	Workers *int `json:"workers,omitempty"`
}

// EmptyPipelineConfig returns a PipelineConfig with all fields set to nil.
// Use LoadPipelineConfig to load actual values from a defaults file.
func EmptyPipelineConfig() *PipelineConfig {
	return &PipelineConfig{}
}

// LoadPipelineConfig loads a PipelineConfig from a JSON file. Fields
// omitted from the file retain their defaults, so partial configs are safe.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
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

	cfg := EmptyPipelineConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, walking up from the
// working directory so tests in nested packages still find it. Panics when
// the file cannot be located; intended for binaries and tests that have
// already validated config availability.
func MustLoadDefaultConfig() *PipelineConfig {
	dir, err := os.Getwd()
	if err != nil {
		panic(fmt.Sprintf("config: getwd: %v", err))
	}
	for {
		candidate := filepath.Join(dir, DefaultConfigPath)
		if _, err := os.Stat(candidate); err == nil {
			cfg, err := LoadPipelineConfig(candidate)
			if err != nil {
				panic(fmt.Sprintf("config: load %s: %v", candidate, err))
			}
			return cfg
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			panic(fmt.Sprintf("config: %s not found above working directory", DefaultConfigPath))
		}
		dir = parent
	}
}

// Accessors with fallback defaults.

func (c *PipelineConfig) GetStartYear() int {
	if c != nil && c.StartYear != nil {
		return *c.StartYear
	}
	return 1985
}

func (c *PipelineConfig) GetEndYear() int {
	if c != nil && c.EndYear != nil {
		return *c.EndYear
	}
	return 2020
}

func (c *PipelineConfig) GetStartDay() string {
	if c != nil && c.StartDay != nil {
		return *c.StartDay
	}
	return "06-20"
}

func (c *PipelineConfig) GetEndDay() string {
	if c != nil && c.EndDay != nil {
		return *c.EndDay
	}
	return "09-10"
}

func (c *PipelineConfig) GetTargetWidth() int {
	if c != nil && c.TargetWidth != nil {
		return *c.TargetWidth
	}
	return 0
}

func (c *PipelineConfig) GetTargetHeight() int {
	if c != nil && c.TargetHeight != nil {
		return *c.TargetHeight
	}
	return 0
}

func (c *PipelineConfig) GetIndex() string {
	if c != nil && c.Index != nil {
		return *c.Index
	}
	return "NBR"
}

func (c *PipelineConfig) GetFTVBands() []string {
	if c != nil && len(c.FTVBands) > 0 {
		return c.FTVBands
	}
	return []string{"B4", "B7"}
}

func (c *PipelineConfig) GetEventStartYear() int {
	if c != nil && c.EventStartYear != nil {
		return *c.EventStartYear
	}
	return c.GetStartYear()
}

func (c *PipelineConfig) GetEventEndYear() int {
	if c != nil && c.EventEndYear != nil {
		return *c.EventEndYear
	}
	return c.GetEndYear()
}

func (c *PipelineConfig) GetDSNRThreshold() float64 {
	if c != nil && c.DSNRThreshold != nil {
		return *c.DSNRThreshold
	}
	return 2.0
}

func (c *PipelineConfig) GetWorkers() int {
	if c != nil && c.Workers != nil && *c.Workers > 0 {
		return *c.Workers
	}
	return 4
}
