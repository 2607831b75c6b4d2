package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// JobConfig is the typed, immutable configuration a pipeline run is built
// from: the operator's CLI inputs merged with config-file values and
// defaults. It replaces a dynamically-typed property bag threaded through
// every call site; the driver hands it to workers read-only.
type JobConfig struct {
	Input       string `json:"-" yaml:"-"`
	TempDir     string `json:"-" yaml:"-"`
	OutputPath  string `json:"-" yaml:"-"`

	Encoder     string `json:"encoder" yaml:"encoder"`
	Passes      int    `json:"passes" yaml:"passes"`
	VideoParams string `json:"video_params" yaml:"video_params"`
	FFmpegParams string `json:"ffmpeg" yaml:"ffmpeg"`
	AudioParams string `json:"audio_params" yaml:"audio_params"`

	SplitMethod string `json:"split_method" yaml:"split_method"`
	Threshold   int    `json:"threshold" yaml:"threshold"`
	MaxChunkLen int    `json:"max_chunk_len" yaml:"max_chunk_len"`
	ScenesFile  string `json:"scenes_file,omitempty" yaml:"scenes_file,omitempty"`

	PixelFormat string `json:"pixel_format" yaml:"pixel_format"`
	Workers     int    `json:"workers" yaml:"workers"`

	TargetQuality bool    `json:"-" yaml:"-"`
	VMAFTarget    float64 `json:"vmaf_target" yaml:"vmaf_target"`
	QPMin         float64 `json:"qp_min" yaml:"qp_min"`
	QPMax         float64 `json:"qp_max" yaml:"qp_max"`
	Steps         int     `json:"steps" yaml:"steps"`

	Resume   bool `json:"-" yaml:"-"`
	KeepTemp bool `json:"-" yaml:"-"`
	NoCheck  bool `json:"-" yaml:"-"`
	VMAF     bool `json:"-" yaml:"-"`
	VMAFPlots bool `json:"-" yaml:"-"`
	Boost    bool `json:"-" yaml:"-"`
	BoostLimit int `json:"boost_limit" yaml:"boost_limit"`
	BoostRange int `json:"boost_range" yaml:"boost_range"`
}

// Defaults returns the baseline operator-facing configuration.
func Defaults() JobConfig {
	return JobConfig{
		TempDir:     ".temp",
		Encoder:     "aom",
		Passes:      2,
		SplitMethod: "pyscene",
		Threshold:   50,
		AudioParams: "copy",
		PixelFormat: "yuv420p",
		VMAFTarget:  90,
		QPMin:       25,
		QPMax:       50,
		Steps:       4,
		BoostLimit:  10,
		BoostRange:  15,
	}
}

// Validate checks the configuration's invariants: steps < 4 is rejected
// before any probing, and qp_min == qp_max degenerates to a single probe
// rather than an error.
func (c JobConfig) Validate() error {
	if c.Input == "" {
		return ErrMissingInput
	}
	switch c.Encoder {
	case "aom", "vpx", "rav1e", "svt-av1":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidEncoder, c.Encoder)
	}
	if c.Passes != 1 && c.Passes != 2 {
		return fmt.Errorf("%w: passes must be 1 or 2, got %d", ErrInvalidPasses, c.Passes)
	}
	if c.TargetQuality {
		if c.Steps < 4 {
			return fmt.Errorf("%w: steps must be >= 4, got %d", ErrInvalidSteps, c.Steps)
		}
		if c.QPMin > c.QPMax {
			return fmt.Errorf("%w: qp_min (%v) must be <= qp_max (%v)", ErrInvalidQPRange, c.QPMin, c.QPMax)
		}
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0 (0 means auto-detect)", ErrInvalidWorkers)
	}
	return nil
}

// Load reads a config file by extension (.json, .yaml, .yml) and merges its
// values over base, returning the merged config. If path does not exist, it
// is written from base (an absent file triggers a write-from-current-config)
// and base is returned unchanged.
func Load(path string, base JobConfig) (JobConfig, error) {
	if path == "" {
		return base, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if writeErr := Save(path, base); writeErr != nil {
			return base, writeErr
		}
		return base, nil
	}
	if err != nil {
		return base, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := base
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return base, fmt.Errorf("failed to parse yaml config %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return base, fmt.Errorf("failed to parse json config %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Save writes cfg to path in the format implied by its extension, defaulting
// to JSON.
func Save(path string, cfg JobConfig) error {
	var data []byte
	var err error

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	return os.WriteFile(path, data, 0644)
}
