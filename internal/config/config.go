// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides layered configuration loading (defaults, then an
// optional YAML file, then environment variables) for the campus entity
// resolution pipeline.
package config

import "time"

// ResolverConfig tunes the Entity Resolver (component 4.2).
type ResolverConfig struct {
	NameSimilarityThreshold float64 `koanf:"name_similarity_threshold"`
	FuzzyMatchThreshold     float64 `koanf:"fuzzy_match_threshold"`
	TimeWindowMinutes       int     `koanf:"time_window_minutes"`
	MatchCacheSize          int     `koanf:"match_cache_size"`
	BlockingEnabled         bool    `koanf:"blocking_enabled"`
}

// FusionConfig tunes the Multi-Modal Fusion stage (component 4.3).
type FusionConfig struct {
	ConfidenceThreshold    float64 `koanf:"confidence_threshold"`
	MaxTimeGapMinutes      int     `koanf:"max_time_gap_minutes"`
	FaceSimilarityThreshold float64 `koanf:"face_similarity_threshold"`
	WorkerPoolSize         int     `koanf:"worker_pool_size"`
}

// TimelineConfig tunes the Timeline Builder (component 4.4).
type TimelineConfig struct {
	MaxGapHours        float64 `koanf:"max_gap_hours"`
	SummaryWindowHours float64 `koanf:"summary_window_hours"`
	MergeWindowMinutes float64 `koanf:"merge_window_minutes"`
}

// PredictionConfig tunes the Predictive Monitor (component 4.5).
type PredictionConfig struct {
	MissingDataThresholdHours   float64 `koanf:"missing_data_threshold_hours"`
	PredictionConfidenceThreshold float64 `koanf:"prediction_confidence_threshold"`
	AnomalyDetectionThreshold   float64 `koanf:"anomaly_detection_threshold"`
	AlertAbsenceHours           float64 `koanf:"alert_absence_hours"`
	ForestTreeCount             int     `koanf:"forest_tree_count"`
	OutlierTreeCount            int     `koanf:"outlier_tree_count"`
	WorkingHoursStart           int     `koanf:"working_hours_start"`
	WorkingHoursEnd             int     `koanf:"working_hours_end"`
	EveningHoursEnd             int     `koanf:"evening_hours_end"`
}

// StoreConfig points at the embedded model store.
type StoreConfig struct {
	ModelPath string `koanf:"model_path"`
}

// ExtractorConfig tunes the Record Extractor (component 4.1).
type ExtractorConfig struct {
	DuckDBPath         string        `koanf:"duckdb_path"`
	SourceLoadTimeout  time.Duration `koanf:"source_load_timeout"`
	BreakerMaxRequests uint32        `koanf:"breaker_max_requests"`
	BreakerInterval    time.Duration `koanf:"breaker_interval"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`
}

// PipelineConfig tunes cross-stage concurrency and timeouts.
type PipelineConfig struct {
	QueryTimeoutSeconds float64 `koanf:"query_timeout_seconds"`
	WorkerPoolSize      int     `koanf:"worker_pool_size"`
}

// LoggingConfig mirrors internal/logging.Config, expressed as plain
// config values so it can be loaded the same way as everything else.
type LoggingConfig struct {
	Level     string `koanf:"level"`
	Format    string `koanf:"format"`
	Caller    bool   `koanf:"caller"`
	Timestamp bool   `koanf:"timestamp"`
}

// Config is the single root configuration struct for the pipeline.
type Config struct {
	Resolver   ResolverConfig   `koanf:"resolver"`
	Fusion     FusionConfig     `koanf:"fusion"`
	Timeline   TimelineConfig   `koanf:"timeline"`
	Prediction PredictionConfig `koanf:"prediction"`
	Extractor  ExtractorConfig  `koanf:"extractor"`
	Pipeline   PipelineConfig   `koanf:"pipeline"`
	Store      StoreConfig      `koanf:"store"`
	Logging    LoggingConfig    `koanf:"logging"`
}
