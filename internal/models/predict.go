// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import "time"

// AlternativePrediction is one runner-up (location or activity, score)
// pair retained alongside a Prediction's top choice for explainability.
type AlternativePrediction struct {
	Label string
	Score float64
}

// Prediction is the predictive monitor's best guess at where and what
// an entity was doing at a point in time with no direct observation,
// together with the reasoning that produced it.
type Prediction struct {
	EntityID               string
	Timestamp              time.Time
	PredictedLocation      string
	PredictedActivity      string
	Confidence             float64
	Explanation            map[string]any
	Evidence               []string
	AlternativePredictions []AlternativePrediction
}

// AnomalyAlert flags a detected deviation from an entity's established
// pattern — prolonged absence or a behavioral outlier — along with the
// evidence and suggested response.
type AnomalyAlert struct {
	EntityID          string
	AlertType         string
	Severity          string
	Timestamp         time.Time
	Description       string
	Evidence          map[string]any
	RecommendedActions []string
}
