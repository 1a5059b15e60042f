package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// ScorerWeights holds the per-category multipliers the element scorer applies to each
// subscore before summing them into a total (structural + visual + content + context).
type ScorerWeights struct {
	Structural float64 `json:"structural"`
	Visual     float64 `json:"visual"`
	Content    float64 `json:"content"`
	Context    float64 `json:"context"`
}

// DetectionConfig holds the operator-overridable knobs for C2-C5.
type DetectionConfig struct {
	Weights          ScorerWeights `json:"weights"`
	MinPatternSize   int           `json:"minPatternSize"`   // fingerprint groups smaller than this get no boost
	PatternBoost     float64       `json:"patternBoost"`     // additive bonus for belonging to a fingerprint group of at least MinPatternSize
	MinConfidence    float64       `json:"minConfidence"`    // below this, detector recommends fallback
	MaxCandidates    int           `json:"maxCandidates"`    // cap on probe output per detect cycle
}

// PaginationConfig holds the operator-overridable knobs for C6.
type PaginationConfig struct {
	MaxTrialClicks   int           `json:"maxTrialClicks"`
	TrialTimeout      time.Duration `json:"trialTimeout"`
	MinOffsetSamples int           `json:"minOffsetSamples"`
}

// LazyLoadConfig holds the operator-overridable knobs for C7.
type LazyLoadConfig struct {
	DefaultStrategy     string        `json:"defaultStrategy"` // adaptive | rapid
	AdaptiveScrollDelay time.Duration `json:"adaptiveScrollDelay"`
	RapidScrollDelay    time.Duration `json:"rapidScrollDelay"`
	RapidScrollStep     int           `json:"rapidScrollStep"`
	StabilityTimeout    time.Duration `json:"stabilityTimeout"` // MutationObserver quiet period
	LoadingTimeout      time.Duration `json:"loadingTimeout"`   // budget for waitForIndicatorsToVanish
	MaxIterations       int           `json:"maxIterations"`
	TargetProducts      int           `json:"targetProducts"` // 0 means no target; run runs maxIterations
}

// OracleConfig holds the operator-overridable knobs for the optional AI Oracle port.
type OracleConfig struct {
	Enabled       bool          `json:"enabled"`
	RequestsPerSecond float64   `json:"requestsPerSecond"`
	Timeout       time.Duration `json:"timeout"`
}

// Config is the top-level process configuration, extending the original storage-path
// settings with the knobs the detection/pagination/lazy-load/oracle packages read.
type Config struct {
	Port           string `json:"port"`
	StoragePath    string `json:"storagePath"`
	ThumbnailsPath string `json:"thumbnailsPath"`
	DataPath       string `json:"dataPath"`
	MaxConcurrent  int    `json:"maxConcurrent"`
	DefaultTimeout int    `json:"defaultTimeout"` // IN MS

	Detection  DetectionConfig  `json:"detection"`
	Pagination PaginationConfig `json:"pagination"`
	LazyLoad   LazyLoadConfig   `json:"lazyLoad"`
	Oracle     OracleConfig     `json:"oracle"`
}

// LoadConfig loads a Config from a JSON file on disk.
func LoadConfig(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := json.Unmarshal(file, &raw); err != nil {
		return nil, err
	}

	config := *GetDefaultConfig()
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	config.StoragePath = sanitizePath(config.StoragePath)
	config.ThumbnailsPath = sanitizePath(config.ThumbnailsPath)
	config.DataPath = sanitizePath(config.DataPath)

	return &config, nil
}

// SaveConfig writes a Config to a JSON file on disk.
func SaveConfig(config *Config, path string) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetDefaultConfig returns the baseline configuration used when no config file is
// present, and as the base that LoadConfig unmarshals over (so a partial config file
// only overrides the fields it names).
func GetDefaultConfig() *Config {
	return &Config{
		Port:           "8080",
		StoragePath:    "./storage",
		ThumbnailsPath: "./thumbnails",
		DataPath:       "./data",
		MaxConcurrent:  5,
		DefaultTimeout: 5 * 60 * 1000,

		Detection: DetectionConfig{
			Weights: ScorerWeights{
				Structural: 0.30,
				Visual:     0.25,
				Content:    0.30,
				Context:    0.15,
			},
			MinPatternSize: 3,
			PatternBoost:   10,
			MinConfidence:  0.6,
			MaxCandidates:  500,
		},
		Pagination: PaginationConfig{
			MaxTrialClicks:   3,
			TrialTimeout:     8 * time.Second,
			MinOffsetSamples: 2,
		},
		LazyLoad: LazyLoadConfig{
			DefaultStrategy:     "adaptive",
			AdaptiveScrollDelay: 400 * time.Millisecond,
			RapidScrollDelay:    80 * time.Millisecond,
			RapidScrollStep:     1200,
			StabilityTimeout:    500 * time.Millisecond,
			LoadingTimeout:      3 * time.Second,
			MaxIterations:       100,
			TargetProducts:      0,
		},
		Oracle: OracleConfig{
			Enabled:           false,
			RequestsPerSecond: 2,
			Timeout:           10 * time.Second,
		},
	}
}

// sanitizePath ensures a configured path is non-empty and cleaned.
func sanitizePath(path string) string {
	if path == "" {
		return "."
	}
	return filepath.Clean(path)
}
