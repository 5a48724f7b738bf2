// SPDX-License-Identifier: AGPL-3.0-or-later

package predict

import (
	"math/rand"
	"testing"
	"time"

	"github.com/campustrace/resolve/internal/config"
	"github.com/campustrace/resolve/internal/models"
)

func mustParse(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("time.Parse(%q) error = %v", value, err)
	}
	return ts
}

func TestLabelEncoderRoundTrip(t *testing.T) {
	le := &LabelEncoder{}
	le.Fit([]string{"LAB_101", "GYM", "LAB_101", "CAF_01"})

	if len(le.Classes) != 3 {
		t.Fatalf("len(Classes) = %d, want 3 distinct classes", len(le.Classes))
	}

	code, ok := le.Transform("GYM")
	if !ok {
		t.Fatalf("Transform(GYM) not found")
	}
	got, ok := le.Inverse(code)
	if !ok || got != "GYM" {
		t.Errorf("Inverse(Transform(GYM)) = (%q, %v), want (GYM, true)", got, ok)
	}

	if _, ok := le.Transform("UNSEEN"); ok {
		t.Errorf("Transform(UNSEEN) unexpectedly found")
	}
}

func TestFeatureScalerStandardisesToZeroMean(t *testing.T) {
	s := &FeatureScaler{}
	rows := [][]float64{{0, 10}, {2, 10}, {4, 10}}
	s.Fit(rows)

	scaled := s.TransformAll(rows)
	var sum float64
	for _, row := range scaled {
		sum += row[0]
	}
	if sum < -1e-9 || sum > 1e-9 {
		t.Errorf("sum of scaled column 0 = %v, want ~0", sum)
	}
	// Column 1 has zero variance; Std is clamped to 1 so Transform only
	// mean-centers it instead of dividing by zero.
	for _, row := range scaled {
		if row[1] != 0 {
			t.Errorf("scaled zero-variance column = %v, want 0", row[1])
		}
	}
}

func TestDecisionTreeSeparatesLinearlyOnSingleFeature(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	var rows [][]float64
	var labels []int
	for i := 0; i < 20; i++ {
		rows = append(rows, []float64{float64(i)})
		if i < 10 {
			labels = append(labels, 0)
		} else {
			labels = append(labels, 1)
		}
	}

	root := buildTree(rows, labels, 2, rng, 0)
	tree := &DecisionTree{Root: root, NumClasses: 2}

	if pred := tree.Root.predictProba([]float64{1}); argmaxOf(pred) != 0 {
		t.Errorf("predict(1) = class %d, want 0", argmaxOf(pred))
	}
	if pred := tree.Root.predictProba([]float64{18}); argmaxOf(pred) != 1 {
		t.Errorf("predict(18) = class %d, want 1", argmaxOf(pred))
	}
}

func argmaxOf(dist []float64) int {
	idx, _ := argmax(dist)
	return idx
}

func TestFitForestAveragesTreesTowardMajorityClass(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var rows [][]float64
	var labels []int
	for i := 0; i < 40; i++ {
		rows = append(rows, []float64{float64(i)})
		if i < 20 {
			labels = append(labels, 0)
		} else {
			labels = append(labels, 1)
		}
	}

	forest := FitForest(rows, labels, 2, 15, rng)

	lowPred, _ := forest.Predict([]float64{2})
	highPred, _ := forest.Predict([]float64{38})
	if lowPred != 0 {
		t.Errorf("Predict(2) = %d, want 0", lowPred)
	}
	if highPred != 1 {
		t.Errorf("Predict(38) = %d, want 1", highPred)
	}
}

func TestIsolationForestScoresOutlierMoreNegativeThanInlier(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	var rows [][]float64
	for i := 0; i < 100; i++ {
		rows = append(rows, []float64{float64(i % 5), float64((i * 3) % 5)})
	}

	forest := FitIsolationForest(rows, 50, 64, rng)

	inlier := []float64{2, 1}
	outlier := []float64{500, -500}

	inlierScore := forest.Score(inlier)
	outlierScore := forest.Score(outlier)

	if !(outlierScore < inlierScore) {
		t.Errorf("outlier score = %v, inlier score = %v, want outlier < inlier", outlierScore, inlierScore)
	}
}

func testPredictionConfig() config.PredictionConfig {
	return config.PredictionConfig{
		MissingDataThresholdHours:     1,
		PredictionConfidenceThreshold: 0.6,
		AnomalyDetectionThreshold:     0.8,
		AlertAbsenceHours:             12,
		ForestTreeCount:               10,
		OutlierTreeCount:              10,
		WorkingHoursStart:             8,
		WorkingHoursEnd:               18,
		EveningHoursEnd:               22,
	}
}

func fusionRecord(t *testing.T, unifiedID, ts, location, activity string, confidence float64) models.FusionRecord {
	return models.FusionRecord{
		UnifiedEntityID: unifiedID,
		Timestamp:       mustParse(t, ts),
		Location:        location,
		ActivityType:    activity,
		Confidence:      confidence,
		SourceRecords: []models.ActivityEvent{
			{SourceDataset: string(models.DatasetCardSwipes)},
		},
		Evidence: map[string]any{"source_diversity": 1},
	}
}

// Scenario 5: absence alert. The most recent record is 18 hours before
// now; the default alert_absence_hours (12) is exceeded but 24 is not,
// so severity must be medium.
func TestDetectAnomaliesRaisesAbsenceAlert(t *testing.T) {
	m := New(testPredictionConfig(), config.StoreConfig{}, 11)
	m.model = &artifact{
		LocationEncoder: &LabelEncoder{},
		ActivityEncoder: &LabelEncoder{},
		Scaler:          &FeatureScaler{Mean: make([]float64, 16), Std: onesVector(16)},
		LocationForest:  &Forest{NumClasses: 1},
		ActivityForest:  &Forest{NumClasses: 1},
		OutlierForest:   &IsolationForest{},
	}

	last := time.Now().Add(-18 * time.Hour)
	records := []models.FusionRecord{{
		UnifiedEntityID: "unified_entity_000001",
		Timestamp:       last,
		Location:        "LAB_101",
		ActivityType:    "card_swipe",
		Confidence:      0.9,
	}}
	profile := models.EntityRecord{Role: "student"}

	alerts := m.DetectAnomalies(records, profile)

	var absence *models.AnomalyAlert
	for i := range alerts {
		if alerts[i].AlertType == "absence" {
			absence = &alerts[i]
		}
	}
	if absence == nil {
		t.Fatalf("no absence alert raised, got %d alerts", len(alerts))
	}
	if absence.Severity != "medium" {
		t.Errorf("Severity = %q, want medium (18h is over 12h but under 24h)", absence.Severity)
	}
	hours, _ := absence.Evidence["absence_duration_hours"].(float64)
	if hours < 17.9 || hours > 18.1 {
		t.Errorf("absence_duration_hours = %v, want ~18", hours)
	}
	if len(absence.RecommendedActions) != 4 {
		t.Errorf("len(RecommendedActions) = %d, want 4", len(absence.RecommendedActions))
	}
}

func TestDetectAnomaliesAbsenceSeverityHighPastOneDay(t *testing.T) {
	m := New(testPredictionConfig(), config.StoreConfig{}, 11)
	m.model = &artifact{
		LocationEncoder: &LabelEncoder{},
		ActivityEncoder: &LabelEncoder{},
		Scaler:          &FeatureScaler{Mean: make([]float64, 16), Std: onesVector(16)},
		LocationForest:  &Forest{NumClasses: 1},
		ActivityForest:  &Forest{NumClasses: 1},
		OutlierForest:   &IsolationForest{},
	}

	records := []models.FusionRecord{{
		UnifiedEntityID: "unified_entity_000002",
		Timestamp:       time.Now().Add(-30 * time.Hour),
		Location:        "GYM",
		ActivityType:    "card_swipe",
	}}

	alerts := m.DetectAnomalies(records, models.EntityRecord{Role: "staff"})
	if len(alerts) != 1 || alerts[0].Severity != "high" {
		t.Fatalf("alerts = %+v, want one high-severity absence alert", alerts)
	}
}

func onesVector(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}

func TestBuildExplanationMentionsRecentVisitAndWorkingHours(t *testing.T) {
	cfg := testPredictionConfig()
	ts := mustParse(t, "2025-01-06T09:30:00Z") // Monday morning

	context := []models.FusionRecord{
		fusionRecord(t, "unified_entity_000001", "2025-01-05T09:00:00Z", "LAB_101", "card_swipe", 0.9),
		fusionRecord(t, "unified_entity_000001", "2025-01-06T08:45:00Z", "LAB_101", "card_swipe", 0.9),
	}
	profile := models.EntityRecord{Role: "faculty", Department: "MECH"}

	explanation := buildExplanation(cfg, ts, "LAB_101", "card_swipe", context, profile)

	reasoning, _ := explanation["reasoning"].([]string)
	joined := ""
	for _, r := range reasoning {
		joined += r + "; "
	}
	if !contains(joined, "working hours") {
		t.Errorf("reasoning = %v, want a working-hours mention", reasoning)
	}
	if !contains(joined, "recently visited LAB_101") {
		t.Errorf("reasoning = %v, want a recency mention of LAB_101", reasoning)
	}
	if !contains(joined, "Lab 101") && !contains(joined, "lab facilities") {
		t.Errorf("reasoning = %v, want a role/department Lab 101 heuristic", reasoning)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func TestBuildEvidenceIncludesRecencyAndRole(t *testing.T) {
	cfg := testPredictionConfig()
	ts := mustParse(t, "2025-01-06T09:30:00Z")

	context := []models.FusionRecord{
		fusionRecord(t, "unified_entity_000001", "2025-01-06T09:10:00Z", "LAB_101", "card_swipe", 0.9),
	}
	profile := models.EntityRecord{Role: "student"}

	evidence := buildEvidence(cfg, ts, context, profile)

	var sawRecency, sawRole bool
	for _, e := range evidence {
		if contains(e, "minutes ago") {
			sawRecency = true
		}
		if contains(e, "Entity role: student") {
			sawRole = true
		}
	}
	if !sawRecency {
		t.Errorf("evidence = %v, want a last-seen-minutes-ago line", evidence)
	}
	if !sawRole {
		t.Errorf("evidence = %v, want an entity-role line", evidence)
	}
}

func TestAlternativePredictionsCapsAtThreeSortedByScore(t *testing.T) {
	locationEncoder := &LabelEncoder{}
	locationEncoder.Fit([]string{"A", "B", "C"})
	activityEncoder := &LabelEncoder{}
	activityEncoder.Fit([]string{"X", "Y", "Z"})

	locationProbs := []float64{0.6, 0.3, 0.1}
	activityProbs := []float64{0.7, 0.2, 0.1}

	alts := alternativePredictions(locationProbs, activityProbs, locationEncoder, activityEncoder)

	if len(alts) != 3 {
		t.Fatalf("len(alts) = %d, want 3", len(alts))
	}
	for i := 1; i < len(alts); i++ {
		if alts[i].Score > alts[i-1].Score {
			t.Errorf("alts not sorted descending by score: %+v", alts)
		}
	}
}

// Scenario 6: repeated context at one location on weekday mornings
// trains a model that should predict that location for a similar
// missing-data query, with an explanation that cites the recent visits
// and the working-hours bucket.
func TestTrainAndPredictFavorsRepeatedPattern(t *testing.T) {
	m := New(testPredictionConfig(), config.StoreConfig{}, 99)

	var records []models.FusionRecord
	profiles := map[string]models.EntityRecord{
		"unified_entity_000001": {Role: "faculty", Department: "MECH"},
	}

	base := mustParse(t, "2025-01-06T09:00:00Z")
	for i := 0; i < 30; i++ {
		day := base.Add(time.Duration(i) * 24 * time.Hour)
		records = append(records, fusionRecord(t, "unified_entity_000001", day.Format(time.RFC3339), "LAB_101", "card_swipe", 0.9))
	}
	// A handful of records elsewhere so the classifier sees more than
	// one class and its accuracy metric is meaningful.
	for i := 0; i < 5; i++ {
		day := base.Add(time.Duration(i)*24*time.Hour + 8*time.Hour)
		records = append(records, fusionRecord(t, "unified_entity_000001", day.Format(time.RFC3339), "GYM", "cctv_detection", 0.8))
	}

	metrics, err := m.Train(records, profiles)
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if metrics.TrainingSamples == 0 {
		t.Fatalf("metrics.TrainingSamples = 0, want > 0")
	}

	context := records[len(records)-7:]
	query := base.Add(30 * 24 * time.Hour)
	prediction, err := m.Predict("unified_entity_000001", query, context, profiles["unified_entity_000001"])
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	if prediction.PredictedLocation == "" {
		t.Errorf("PredictedLocation is empty")
	}
	if prediction.Confidence <= 0 || prediction.Confidence > 1 {
		t.Errorf("Confidence = %v, want in (0, 1]", prediction.Confidence)
	}
	if len(prediction.AlternativePredictions) > 3 {
		t.Errorf("len(AlternativePredictions) = %d, want at most 3", len(prediction.AlternativePredictions))
	}
	if len(prediction.Evidence) == 0 {
		t.Errorf("Evidence is empty")
	}
}

func TestPredictErrorsWhenUntrained(t *testing.T) {
	m := New(testPredictionConfig(), config.StoreConfig{}, 1)
	if _, err := m.Predict("unified_entity_000001", time.Now(), nil, models.EntityRecord{}); err == nil {
		t.Errorf("Predict() on an untrained monitor: want error, got nil")
	}
}
