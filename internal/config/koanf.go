// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where a config file is searched for,
// in order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/campuscore/config.yaml",
	"/etc/campuscore/config.yml",
}

// ConfigPathEnvVar names the environment variable that overrides the
// config file search path.
const ConfigPathEnvVar = "CAMPUSCORE_CONFIG_PATH"

// defaultConfig returns the configuration defaults from spec.md section 6,
// applied before any file or environment layer.
func defaultConfig() *Config {
	return &Config{
		Resolver: ResolverConfig{
			NameSimilarityThreshold: 0.85,
			FuzzyMatchThreshold:     0.80,
			TimeWindowMinutes:       10,
			MatchCacheSize:          4096,
			BlockingEnabled:         true,
		},
		Fusion: FusionConfig{
			ConfidenceThreshold:     0.70,
			MaxTimeGapMinutes:       15,
			FaceSimilarityThreshold: 0.85,
			WorkerPoolSize:          runtime.GOMAXPROCS(0),
		},
		Timeline: TimelineConfig{
			MaxGapHours:        2,
			SummaryWindowHours: 24,
			MergeWindowMinutes: 5,
		},
		Prediction: PredictionConfig{
			MissingDataThresholdHours:     1,
			PredictionConfidenceThreshold: 0.6,
			AnomalyDetectionThreshold:     0.8,
			AlertAbsenceHours:             12,
			ForestTreeCount:               64,
			OutlierTreeCount:              64,
			WorkingHoursStart:             8,
			WorkingHoursEnd:               18,
			EveningHoursEnd:               22,
		},
		Extractor: ExtractorConfig{
			DuckDBPath:         "",
			SourceLoadTimeout:  30 * time.Second,
			BreakerMaxRequests: 1,
			BreakerInterval:    60 * time.Second,
			BreakerTimeout:     30 * time.Second,
		},
		Pipeline: PipelineConfig{
			QueryTimeoutSeconds: 10,
			WorkerPoolSize:      runtime.GOMAXPROCS(0),
		},
		Store: StoreConfig{
			ModelPath: "/data/campuscore/model",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "json",
			Caller:    false,
			Timestamp: true,
		},
	}
}

// Load reads the layered configuration: built-in defaults, then an
// optional YAML file, then environment variables (highest priority).
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("CAMPUSCORE_", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps CAMPUSCORE_RESOLVER_FUZZY_MATCH_THRESHOLD style
// environment variable names onto dotted koanf paths
// (resolver.fuzzy_match_threshold). koanf's env provider passes the
// full variable name, so the CAMPUSCORE_ prefix is removed here.
func envTransformFunc(key string) string {
	return koanfPathFromEnvKey(strings.TrimPrefix(key, "CAMPUSCORE_"))
}
