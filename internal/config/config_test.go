// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import "testing"

func TestDefaultConfigValidates(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
}

func TestDefaultConfigMatchesSpec(t *testing.T) {
	cfg := defaultConfig()

	cases := []struct {
		name string
		got  float64
		want float64
	}{
		{"resolver.name_similarity_threshold", cfg.Resolver.NameSimilarityThreshold, 0.85},
		{"resolver.fuzzy_match_threshold", cfg.Resolver.FuzzyMatchThreshold, 0.80},
		{"fusion.confidence_threshold", cfg.Fusion.ConfidenceThreshold, 0.70},
		{"fusion.face_similarity_threshold", cfg.Fusion.FaceSimilarityThreshold, 0.85},
		{"timeline.max_gap_hours", cfg.Timeline.MaxGapHours, 2},
		{"timeline.summary_window_hours", cfg.Timeline.SummaryWindowHours, 24},
		{"prediction.prediction_confidence_threshold", cfg.Prediction.PredictionConfidenceThreshold, 0.6},
		{"prediction.anomaly_detection_threshold", cfg.Prediction.AnomalyDetectionThreshold, 0.8},
		{"prediction.alert_absence_hours", cfg.Prediction.AlertAbsenceHours, 12},
		{"pipeline.query_timeout_seconds", cfg.Pipeline.QueryTimeoutSeconds, 10},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s = %v, want %v", tc.name, tc.got, tc.want)
		}
	}

	if cfg.Resolver.TimeWindowMinutes != 10 {
		t.Errorf("resolver.time_window_minutes = %d, want 10", cfg.Resolver.TimeWindowMinutes)
	}
	if cfg.Fusion.MaxTimeGapMinutes != 15 {
		t.Errorf("fusion.max_time_gap_minutes = %d, want 15", cfg.Fusion.MaxTimeGapMinutes)
	}
}

func TestValidateRejectsOutOfRangeThresholds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative name similarity", func(c *Config) { c.Resolver.NameSimilarityThreshold = -0.1 }},
		{"name similarity above one", func(c *Config) { c.Resolver.NameSimilarityThreshold = 1.1 }},
		{"zero time window", func(c *Config) { c.Resolver.TimeWindowMinutes = 0 }},
		{"zero max time gap", func(c *Config) { c.Fusion.MaxTimeGapMinutes = 0 }},
		{"zero max gap hours", func(c *Config) { c.Timeline.MaxGapHours = 0 }},
		{"zero query timeout", func(c *Config) { c.Pipeline.QueryTimeoutSeconds = 0 }},
		{"working hours end before start", func(c *Config) {
			c.Prediction.WorkingHoursStart = 18
			c.Prediction.WorkingHoursEnd = 8
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error, got nil")
			}
		})
	}
}

func TestKoanfPathFromEnvKey(t *testing.T) {
	cases := map[string]string{
		"RESOLVER_FUZZY_MATCH_THRESHOLD": "resolver.fuzzy_match_threshold",
		"FUSION_MAX_TIME_GAP_MINUTES":    "fusion.max_time_gap_minutes",
		"UNRECOGNIZED_KEY":               "unrecognized_key",
	}
	for in, want := range cases {
		if got := koanfPathFromEnvKey(in); got != want {
			t.Errorf("koanfPathFromEnvKey(%q) = %q, want %q", in, got, want)
		}
	}
}
