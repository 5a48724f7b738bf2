// SPDX-License-Identifier: AGPL-3.0-or-later

package predict

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/campustrace/resolve/internal/config"
	"github.com/campustrace/resolve/internal/logging"
	"github.com/campustrace/resolve/internal/models"
)

// outlierSampleSize bounds the isolation forest's per-tree subsample,
// following the original paper's recommendation that beyond a few
// hundred points gives no added isolation power.
const outlierSampleSize = 256

// Metrics reports training-time performance, the package's analogue of
// train_predictive_models' returned performance dict.
type Metrics struct {
	LocationAccuracy float64
	ActivityAccuracy float64
	TrainingSamples  int
	TestSamples      int
	OutlierThreshold float64
}

// Stats is a diagnostic accessor over the monitor's trained state.
type Stats struct {
	Trained          bool
	LocationAccuracy float64
	ActivityAccuracy float64
	OutlierThreshold float64
}

// Monitor is the predictive monitor: it trains location/activity
// classifiers and an outlier scorer from fused observations, then
// predicts missing data points and flags anomalies against them.
type Monitor struct {
	cfg   config.PredictionConfig
	store config.StoreConfig
	log   zerolog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	mu      sync.RWMutex
	model   *artifact
	metrics Metrics
}

// New constructs a Monitor. seed fixes the bootstrap/split/isolation
// randomness for reproducible training runs.
func New(cfg config.PredictionConfig, store config.StoreConfig, seed int64) *Monitor {
	return &Monitor{
		cfg:   cfg,
		store: store,
		log:   logging.WithComponent("predict"),
		rng:   rand.New(rand.NewSource(seed)), //nolint:gosec // math/rand is fine for model training
	}
}

// IsTrained reports whether the monitor has a usable model.
func (m *Monitor) IsTrained() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.model != nil
}

// Train fits the location classifier, activity classifier, and outlier
// scorer from fusion records and their entities' profiles (keyed by
// UnifiedEntityID), holding out 20% for accuracy reporting.
func (m *Monitor) Train(records []models.FusionRecord, profiles map[string]models.EntityRecord) (Metrics, error) {
	if len(records) == 0 {
		return Metrics{}, fmt.Errorf("train predictive monitor: no training data provided")
	}

	rows := make([][]float64, 0, len(records))
	locationLabels := make([]string, 0, len(records))
	activityLabels := make([]string, 0, len(records))
	for _, r := range records {
		profile := profiles[r.UnifiedEntityID]
		rows = append(rows, recordFeatures(r, profile))
		locationLabels = append(locationLabels, r.Location)
		activityLabels = append(activityLabels, r.ActivityType)
	}

	locationEncoder := &LabelEncoder{}
	locationEncoder.Fit(locationLabels)
	activityEncoder := &LabelEncoder{}
	activityEncoder.Fit(activityLabels)

	locationTargets := make([]int, len(locationLabels))
	activityTargets := make([]int, len(activityLabels))
	for i, l := range locationLabels {
		locationTargets[i], _ = locationEncoder.Transform(l)
	}
	for i, a := range activityLabels {
		activityTargets[i], _ = activityEncoder.Transform(a)
	}

	m.rngMu.Lock()
	perm := m.rng.Perm(len(rows))
	m.rngMu.Unlock()

	testSize := len(rows) / 5
	if testSize < 1 {
		testSize = 1
	}
	if testSize >= len(rows) {
		testSize = len(rows) - 1
	}
	testIdx := perm[:testSize]
	trainIdx := perm[testSize:]

	trainRows, trainLoc := subset(rows, locationTargets, trainIdx)
	_, trainAct := subset(rows, activityTargets, trainIdx)
	testRows, testLoc := subset(rows, locationTargets, testIdx)
	_, testAct := subset(rows, activityTargets, testIdx)

	scaler := &FeatureScaler{}
	scaler.Fit(trainRows)
	trainScaled := scaler.TransformAll(trainRows)
	testScaled := scaler.TransformAll(testRows)

	m.rngMu.Lock()
	locationForest := FitForest(trainScaled, trainLoc, len(locationEncoder.Classes), m.cfg.ForestTreeCount, m.rng)
	activityForest := FitForest(trainScaled, trainAct, len(activityEncoder.Classes), m.cfg.ForestTreeCount, m.rng)
	outlierForest := FitIsolationForest(trainScaled, m.cfg.OutlierTreeCount, outlierSampleSize, m.rng)
	m.rngMu.Unlock()

	locationAccuracy := forestAccuracy(locationForest, testScaled, testLoc)
	activityAccuracy := forestAccuracy(activityForest, testScaled, testAct)

	outlierScores := make([]float64, len(testScaled))
	for i, row := range testScaled {
		outlierScores[i] = outlierForest.Score(row)
	}
	outlierThreshold := percentile(outlierScores, 10)

	art := artifact{
		LocationEncoder:  locationEncoder,
		ActivityEncoder:  activityEncoder,
		Scaler:           scaler,
		LocationForest:   locationForest,
		ActivityForest:   activityForest,
		OutlierForest:    outlierForest,
		OutlierThreshold: outlierThreshold,
		Config:           m.cfg,
	}

	metrics := Metrics{
		LocationAccuracy: locationAccuracy,
		ActivityAccuracy: activityAccuracy,
		TrainingSamples:  len(trainRows),
		TestSamples:      len(testRows),
		OutlierThreshold: outlierThreshold,
	}

	m.mu.Lock()
	m.model = &art
	m.metrics = metrics
	m.mu.Unlock()

	m.log.Info().
		Float64("location_accuracy", locationAccuracy).
		Float64("activity_accuracy", activityAccuracy).
		Int("training_samples", len(trainRows)).
		Msg("predictive models trained")
	return metrics, nil
}

func forestAccuracy(f *Forest, rows [][]float64, labels []int) float64 {
	if len(rows) == 0 {
		return 0
	}
	correct := 0
	for i, row := range rows {
		pred, _ := f.Predict(row)
		if pred == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(rows))
}

// percentile computes the p-th percentile (linear interpolation) of
// values, matching numpy.percentile's default behavior closely enough
// for a threshold statistic.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := (p / 100) * float64(len(sorted)-1)
	lo := int(rank)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Predict guesses the most likely location and activity for
// (entityID, timestamp) given a trailing window of prior context
// records and the entity's profile.
func (m *Monitor) Predict(entityID string, timestamp time.Time, context []models.FusionRecord, profile models.EntityRecord) (*models.Prediction, error) {
	m.mu.RLock()
	art := m.model
	m.mu.RUnlock()
	if art == nil {
		return nil, fmt.Errorf("predict: monitor has not been trained")
	}

	features := syntheticFeatures(timestamp, profile)
	scaled := art.Scaler.Transform(features)

	locationProbs := art.LocationForest.PredictProba(scaled)
	activityProbs := art.ActivityForest.PredictProba(scaled)

	locationIdx, locationConfidence := argmax(locationProbs)
	activityIdx, activityConfidence := argmax(activityProbs)

	predictedLocation, _ := art.LocationEncoder.Inverse(locationIdx)
	predictedActivity, _ := art.ActivityEncoder.Inverse(activityIdx)

	return &models.Prediction{
		EntityID:               entityID,
		Timestamp:              timestamp,
		PredictedLocation:      predictedLocation,
		PredictedActivity:      predictedActivity,
		Confidence:             (locationConfidence + activityConfidence) / 2,
		Explanation:            buildExplanation(m.cfg, timestamp, predictedLocation, predictedActivity, context, profile),
		Evidence:               buildEvidence(m.cfg, timestamp, context, profile),
		AlternativePredictions: alternativePredictions(locationProbs, activityProbs, art.LocationEncoder, art.ActivityEncoder),
	}, nil
}

// DetectAnomalies checks an entity's records for prolonged absence and
// behavioral outliers against the trained outlier scorer.
func (m *Monitor) DetectAnomalies(records []models.FusionRecord, profile models.EntityRecord) []models.AnomalyAlert {
	m.mu.RLock()
	art := m.model
	m.mu.RUnlock()
	if art == nil || len(records) == 0 {
		return nil
	}

	var alerts []models.AnomalyAlert
	if alert := m.checkAbsence(records, profile); alert != nil {
		alerts = append(alerts, *alert)
	}

	recent := records
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	for _, r := range recent {
		features := recordFeatures(r, profile)
		scaled := art.Scaler.Transform(features)
		score := art.OutlierForest.Score(scaled)
		if score < -0.5 {
			alerts = append(alerts, behavioralAlert(r, score, profile))
		}
	}
	return alerts
}

func (m *Monitor) checkAbsence(records []models.FusionRecord, profile models.EntityRecord) *models.AnomalyAlert {
	last := records[0]
	for _, r := range records[1:] {
		if r.Timestamp.After(last.Timestamp) {
			last = r
		}
	}

	now := time.Now()
	since := now.Sub(last.Timestamp)
	threshold := time.Duration(m.cfg.AlertAbsenceHours * float64(time.Hour))
	if since <= threshold {
		return nil
	}

	severity := "medium"
	if since > 24*time.Hour {
		severity = "high"
	}
	role := profile.Role
	if role == "" {
		role = "unknown"
	}

	return &models.AnomalyAlert{
		EntityID:  last.UnifiedEntityID,
		AlertType: "absence",
		Severity:  severity,
		Timestamp: now,
		Description: fmt.Sprintf("No activity detected for %.1f hours", since.Hours()),
		Evidence: map[string]any{
			"last_seen":               last.Timestamp,
			"last_location":           last.Location,
			"absence_duration_hours":  since.Hours(),
			"entity_role":             role,
		},
		RecommendedActions: []string{
			"Contact entity directly",
			"Check with department/supervisor",
			"Review recent access logs",
			"Verify if planned absence",
		},
	}
}

func behavioralAlert(record models.FusionRecord, score float64, profile models.EntityRecord) models.AnomalyAlert {
	severity := "medium"
	if score < -0.8 {
		severity = "high"
	}
	role := profile.Role
	if role == "" {
		role = "unknown"
	}

	sources := make([]string, len(record.SourceRecords))
	for i, sr := range record.SourceRecords {
		sources[i] = sr.SourceDataset
	}

	return models.AnomalyAlert{
		EntityID:    record.UnifiedEntityID,
		AlertType:   "behavioral",
		Severity:    severity,
		Timestamp:   record.Timestamp,
		Description: fmt.Sprintf("Unusual activity pattern detected at %s", record.Location),
		Evidence: map[string]any{
			"anomaly_score": score,
			"location":      record.Location,
			"activity":      record.ActivityType,
			"confidence":    record.Confidence,
			"sources":       sources,
			"entity_role":   role,
		},
		RecommendedActions: []string{
			"Review activity details",
			"Check for data quality issues",
			"Verify entity authorization for location",
			"Investigate if security concern",
		},
	}
}

// Stats returns the monitor's last training metrics.
func (m *Monitor) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Trained:          m.model != nil,
		LocationAccuracy: m.metrics.LocationAccuracy,
		ActivityAccuracy: m.metrics.ActivityAccuracy,
		OutlierThreshold: m.metrics.OutlierThreshold,
	}
}

// Save persists the trained model to the configured store.
func (m *Monitor) Save() error {
	m.mu.RLock()
	art := m.model
	m.mu.RUnlock()
	if art == nil {
		return fmt.Errorf("save model: monitor has not been trained")
	}
	return Save(m.store, *art)
}

// Load restores a previously trained model from the configured store.
// On error the monitor is left exactly as it was (untrained, or with
// whatever model it already had).
func (m *Monitor) Load() error {
	art, err := Load(m.store)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.model = &art
	m.cfg = art.Config
	m.mu.Unlock()
	return nil
}
