// SPDX-License-Identifier: AGPL-3.0-or-later

package fusion

import (
	"fmt"
	"math"
	"sort"

	"github.com/campustrace/resolve/internal/models"
)

// faceBonus is added to fusion confidence when a cluster's CCTV face_id
// similarity against the entity's reference embedding clears
// face_similarity_threshold.
const faceBonus = 0.10

// fuseCluster reduces one temporal cluster of ActivityEvents into a
// single FusionRecord, per spec section 4.3's cluster reduction rules.
func fuseCluster(events []models.ActivityEvent, maxGapMinutes, faceSimilarityThreshold float64, refs faceReferences) models.FusionRecord {
	timestamp := events[0].Timestamp
	for _, e := range events[1:] {
		if e.Timestamp.Before(timestamp) {
			timestamp = e.Timestamp
		}
	}

	primaryLocation := primaryLocation(events)
	primaryActivity := primaryActivity(events)

	similarity, hasFace := faceClusterSimilarity(events, refs)
	bonus := 0.0
	if hasFace && similarity > faceSimilarityThreshold {
		bonus = faceBonus
	}
	confidence := fusionConfidence(events, maxGapMinutes, bonus)

	provenance := make(map[string]string, len(events))
	sourceRecords := make([]models.ActivityEvent, len(events))
	for i, e := range events {
		provenance[e.SourceDataset] = fmt.Sprintf("%s at %s", e.EventType, e.Timestamp.Format("2006-01-02T15:04:05Z07:00"))
		sourceRecords[i] = e
	}

	evidence := crossSourceEvidence(events)
	if hasFace {
		evidence["face_recognition"] = map[string]any{
			"similarity": similarity,
			"threshold":  faceSimilarityThreshold,
		}
	}

	return models.FusionRecord{
		UnifiedEntityID: events[0].EntityID,
		Timestamp:       timestamp,
		Location:        primaryLocation,
		ActivityType:    primaryActivity,
		Confidence:      confidence,
		SourceRecords:   sourceRecords,
		Provenance:      provenance,
		Evidence:        evidence,
	}
}

// primaryLocation selects the location with the highest mean
// confidence times event count, ignoring UNKNOWN unless every event in
// the cluster is UNKNOWN.
func primaryLocation(events []models.ActivityEvent) string {
	scores := make(map[string][]float64)
	for _, e := range events {
		scores[e.Location] = append(scores[e.Location], e.Confidence)
	}

	candidates := scores
	if len(scores) > 1 {
		filtered := make(map[string][]float64, len(scores))
		for loc, confs := range scores {
			if loc != models.LocationUnknown {
				filtered[loc] = confs
			}
		}
		if len(filtered) > 0 {
			candidates = filtered
		}
	}

	var best string
	var bestScore float64
	first := true
	locations := make([]string, 0, len(candidates))
	for loc := range candidates {
		locations = append(locations, loc)
	}
	sort.Strings(locations) // deterministic tie-break
	for _, loc := range locations {
		confs := candidates[loc]
		score := mean(confs) * float64(len(confs))
		if first || score > bestScore {
			best = loc
			bestScore = score
			first = false
		}
	}
	return best
}

// primaryActivity returns the most frequent event_type, ties broken by
// first occurrence in the (already timestamp-sorted) cluster.
func primaryActivity(events []models.ActivityEvent) string {
	counts := make(map[string]int)
	order := make(map[string]int)
	for i, e := range events {
		if _, seen := order[e.EventType]; !seen {
			order[e.EventType] = i
		}
		counts[e.EventType]++
	}

	var best string
	bestCount := -1
	bestOrder := len(events)
	for eventType, count := range counts {
		if count > bestCount || (count == bestCount && order[eventType] < bestOrder) {
			best = eventType
			bestCount = count
			bestOrder = order[eventType]
		}
	}
	return best
}

// fusionConfidence computes the clamped cluster confidence formula of
// spec section 4.3; the caller passes in the face bonus, which is added
// after the consistency factors and before clamping.
func fusionConfidence(events []models.ActivityEvent, maxGapMinutes, bonus float64) float64 {
	confidences := make([]float64, len(events))
	for i, e := range events {
		confidences[i] = e.Confidence
	}
	base := mean(confidences)

	sources := make(map[string]bool)
	for _, e := range events {
		sources[e.SourceDataset] = true
	}
	sourceBonus := math.Min(0.20, float64(len(sources))*0.05)

	var nonUnknown []string
	for _, e := range events {
		if e.Location != models.LocationUnknown {
			nonUnknown = append(nonUnknown, e.Location)
		}
	}
	locationConsistency := 1.0
	if len(toSet(nonUnknown)) > 1 {
		locationConsistency = 0.8
	}

	temporalConsistency := 1.0
	if len(events) > 1 {
		span := events[len(events)-1].Timestamp.Sub(events[0].Timestamp).Minutes()
		temporalConsistency = math.Max(0.5, 1.0-span/maxGapMinutes)
	}

	confidence := (base+sourceBonus)*locationConsistency*temporalConsistency + bonus
	return math.Min(1.0, confidence)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// crossSourceEvidence builds the four cross-source signal entries of
// spec section 4.3: temporal correlation, location correlation, source
// diversity and activity pattern.
func crossSourceEvidence(events []models.ActivityEvent) map[string]any {
	evidence := make(map[string]any)

	if len(events) > 1 {
		span := events[len(events)-1].Timestamp.Sub(events[0].Timestamp).Minutes()
		strength := "low"
		switch {
		case span <= 5:
			strength = "high"
		case span <= 15:
			strength = "medium"
		}
		evidence["temporal_correlation"] = map[string]any{
			"time_span_minutes":  span,
			"events_count":       len(events),
			"correlation_strength": strength,
		}
	}

	var locations []string
	for _, e := range events {
		if e.Location != models.LocationUnknown {
			locations = append(locations, e.Location)
		}
	}
	if len(locations) > 0 {
		unique := toSet(locations)
		consistency := "low"
		switch {
		case len(unique) == 1:
			consistency = "high"
		case len(unique) <= 2:
			consistency = "medium"
		}
		evidence["location_correlation"] = map[string]any{
			"locations":   sortedKeys(unique),
			"consistency": consistency,
		}
	}

	sources := make([]string, len(events))
	for i, e := range events {
		sources[i] = e.SourceDataset
	}
	uniqueSources := toSet(sources)
	diversity := 0.0
	if len(sources) > 0 {
		diversity = float64(len(uniqueSources)) / float64(len(sources))
	}
	evidence["source_diversity"] = map[string]any{
		"sources":        sortedKeys(uniqueSources),
		"diversity_score": diversity,
	}

	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.EventType
	}
	evidence["activity_pattern"] = map[string]any{
		"types":            types,
		"primary_activity": primaryActivity(events),
	}

	return evidence
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
