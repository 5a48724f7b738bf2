// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import "fmt"

// Validate checks that every threshold and knob is within the range the
// pipeline's algorithms assume. It never rejects a zero-value duration or
// path — those are caught by the components that actually need them.
func (c *Config) Validate() error {
	if err := c.validateResolver(); err != nil {
		return err
	}
	if err := c.validateFusion(); err != nil {
		return err
	}
	if err := c.validateTimeline(); err != nil {
		return err
	}
	if err := c.validatePrediction(); err != nil {
		return err
	}
	return c.validatePipeline()
}

func unitInterval(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be in [0,1], got %v", name, v)
	}
	return nil
}

func (c *Config) validateResolver() error {
	if err := unitInterval("resolver.name_similarity_threshold", c.Resolver.NameSimilarityThreshold); err != nil {
		return err
	}
	if err := unitInterval("resolver.fuzzy_match_threshold", c.Resolver.FuzzyMatchThreshold); err != nil {
		return err
	}
	if c.Resolver.TimeWindowMinutes <= 0 {
		return fmt.Errorf("resolver.time_window_minutes must be positive, got %d", c.Resolver.TimeWindowMinutes)
	}
	if c.Resolver.MatchCacheSize < 0 {
		return fmt.Errorf("resolver.match_cache_size must not be negative, got %d", c.Resolver.MatchCacheSize)
	}
	return nil
}

func (c *Config) validateFusion() error {
	if err := unitInterval("fusion.confidence_threshold", c.Fusion.ConfidenceThreshold); err != nil {
		return err
	}
	if err := unitInterval("fusion.face_similarity_threshold", c.Fusion.FaceSimilarityThreshold); err != nil {
		return err
	}
	if c.Fusion.MaxTimeGapMinutes <= 0 {
		return fmt.Errorf("fusion.max_time_gap_minutes must be positive, got %d", c.Fusion.MaxTimeGapMinutes)
	}
	if c.Fusion.WorkerPoolSize <= 0 {
		return fmt.Errorf("fusion.worker_pool_size must be positive, got %d", c.Fusion.WorkerPoolSize)
	}
	return nil
}

func (c *Config) validateTimeline() error {
	if c.Timeline.MaxGapHours <= 0 {
		return fmt.Errorf("timeline.max_gap_hours must be positive, got %v", c.Timeline.MaxGapHours)
	}
	if c.Timeline.SummaryWindowHours <= 0 {
		return fmt.Errorf("timeline.summary_window_hours must be positive, got %v", c.Timeline.SummaryWindowHours)
	}
	if c.Timeline.MergeWindowMinutes < 0 {
		return fmt.Errorf("timeline.merge_window_minutes must not be negative, got %v", c.Timeline.MergeWindowMinutes)
	}
	return nil
}

func (c *Config) validatePrediction() error {
	if err := unitInterval("prediction.prediction_confidence_threshold", c.Prediction.PredictionConfidenceThreshold); err != nil {
		return err
	}
	if c.Prediction.AnomalyDetectionThreshold <= 0 {
		return fmt.Errorf("prediction.anomaly_detection_threshold must be positive, got %v", c.Prediction.AnomalyDetectionThreshold)
	}
	if c.Prediction.AlertAbsenceHours <= 0 {
		return fmt.Errorf("prediction.alert_absence_hours must be positive, got %v", c.Prediction.AlertAbsenceHours)
	}
	if c.Prediction.ForestTreeCount <= 0 {
		return fmt.Errorf("prediction.forest_tree_count must be positive, got %d", c.Prediction.ForestTreeCount)
	}
	if c.Prediction.OutlierTreeCount <= 0 {
		return fmt.Errorf("prediction.outlier_tree_count must be positive, got %d", c.Prediction.OutlierTreeCount)
	}
	if c.Prediction.WorkingHoursStart < 0 || c.Prediction.WorkingHoursStart >= 24 {
		return fmt.Errorf("prediction.working_hours_start must be in [0,24), got %d", c.Prediction.WorkingHoursStart)
	}
	if c.Prediction.WorkingHoursEnd <= c.Prediction.WorkingHoursStart || c.Prediction.WorkingHoursEnd > 24 {
		return fmt.Errorf("prediction.working_hours_end must be > working_hours_start and <= 24, got %d", c.Prediction.WorkingHoursEnd)
	}
	if c.Prediction.EveningHoursEnd <= c.Prediction.WorkingHoursEnd || c.Prediction.EveningHoursEnd > 24 {
		return fmt.Errorf("prediction.evening_hours_end must be > working_hours_end and <= 24, got %d", c.Prediction.EveningHoursEnd)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.QueryTimeoutSeconds <= 0 {
		return fmt.Errorf("pipeline.query_timeout_seconds must be positive, got %v", c.Pipeline.QueryTimeoutSeconds)
	}
	if c.Pipeline.WorkerPoolSize <= 0 {
		return fmt.Errorf("pipeline.worker_pool_size must be positive, got %d", c.Pipeline.WorkerPoolSize)
	}
	return nil
}
