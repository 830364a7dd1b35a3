// Package config provides configuration loading and management for imtools.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// FFmpeg subprocess parameters
	FFmpeg struct {
		// Binary is the ffmpeg executable, resolved through PATH when bare
		Binary string `yaml:"binary"`

		// ProbeBinary is the ffprobe executable used for stream metadata
		ProbeBinary string `yaml:"probeBinary"`
	} `yaml:"ffmpeg"`

	// Frame extraction parameters
	Extraction struct {
		// JPEGQuality is the ffmpeg -qscale:v value; 2 is near lossless
		JPEGQuality int `yaml:"jpegQuality"`

		// OutputFPS is the extraction frame rate; 0 keeps the source rate
		OutputFPS float64 `yaml:"outputFPS"`

		// Overwrite allows ffmpeg to replace existing output files
		Overwrite bool `yaml:"overwrite"`

		// RoundPosition snaps seek positions to the nearest frame boundary
		RoundPosition bool `yaml:"roundPosition"`
	} `yaml:"extraction"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default ffmpeg parameters
	cfg.FFmpeg.Binary = "ffmpeg"
	cfg.FFmpeg.ProbeBinary = "ffprobe"

	// Set default extraction parameters
	cfg.Extraction.JPEGQuality = 2
	cfg.Extraction.OutputFPS = 0
	cfg.Extraction.Overwrite = true
	cfg.Extraction.RoundPosition = true

	// Set default output parameters
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
