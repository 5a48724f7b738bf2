// SPDX-License-Identifier: AGPL-3.0-or-later

package resolver

import (
	"math"
	"strings"
	"time"

	"github.com/campustrace/resolve/internal/models"
)

// matchTypeDirectEntityID and matchTypeFuzzy label the two kinds of
// EntityMatch this package can emit.
const (
	matchTypeDirectEntityID = "direct_entity_id"
	matchTypeFuzzy          = "fuzzy_match"
)

// compare evaluates the matching rules of spec.md section 4.2 in
// priority order and returns the resulting EntityMatch, or ok=false if
// the pair's confidence never reaches cfg.FuzzyMatchThreshold.
func compare(r1, r2 models.EntityRecord, cfg ComparisonConfig) (models.EntityMatch, bool) {
	if r1.EntityID != "" && r1.EntityID == r2.EntityID {
		return models.EntityMatch{
			SourceID:      r1.RecordID,
			TargetID:      r2.RecordID,
			SourceDataset: r1.Dataset,
			TargetDataset: r2.Dataset,
			Confidence:    1.0,
			MatchType:     matchTypeDirectEntityID,
			Evidence:      map[string]any{"entity_id": r1.EntityID},
		}, true
	}

	evidence := make(map[string]any)
	var scores []float64

	if r1.CardID != "" && r1.CardID == r2.CardID {
		scores = append(scores, 0.95)
		evidence["card_id_match"] = true
	}
	if r1.DeviceHash != "" && r1.DeviceHash == r2.DeviceHash {
		scores = append(scores, 0.90)
		evidence["device_hash_match"] = true
	}
	if r1.FaceID != "" && r1.FaceID == r2.FaceID {
		scores = append(scores, 0.85)
		evidence["face_id_match"] = true
	}

	if sim := nameSimilarity(r1.Name, r2.Name); sim >= cfg.NameSimilarityThreshold {
		scores = append(scores, 0.8*sim)
		evidence["name_similarity"] = sim
	}

	if sim := emailSimilarity(r1.Email, r2.Email); sim > 0.8 {
		scores = append(scores, 0.7*sim)
		evidence["email_similarity"] = sim
	}

	if score := temporalOverlap(r1, r2, cfg.TimeWindowMinutes); score > 0.5 {
		scores = append(scores, 0.6*score)
		evidence["temporal_correlation"] = score
	}

	if score := locationJaccard(r1, r2); score > 0.5 {
		scores = append(scores, 0.5*score)
		evidence["location_correlation"] = score
	}

	if len(scores) == 0 {
		return models.EntityMatch{}, false
	}

	confidence := scores[0]
	for _, s := range scores[1:] {
		if s > confidence {
			confidence = s
		}
	}
	if confidence < cfg.FuzzyMatchThreshold {
		return models.EntityMatch{}, false
	}

	return models.EntityMatch{
		SourceID:      r1.RecordID,
		TargetID:      r2.RecordID,
		SourceDataset: r1.Dataset,
		TargetDataset: r2.Dataset,
		Confidence:    confidence,
		MatchType:     matchTypeFuzzy,
		Evidence:      evidence,
	}, true
}

// ComparisonConfig is the subset of resolver configuration the pairwise
// comparison rules need.
type ComparisonConfig struct {
	NameSimilarityThreshold float64
	FuzzyMatchThreshold     float64
	TimeWindowMinutes       int
}

// temporalOverlap scores the closest pair of timestamps across the two
// records' first_seen/last_seen fields, in [0,1].
func temporalOverlap(r1, r2 models.EntityRecord, windowMinutes int) float64 {
	times1 := recordTimestamps(r1)
	times2 := recordTimestamps(r2)
	if len(times1) == 0 || len(times2) == 0 {
		return 0
	}

	var best float64
	window := float64(windowMinutes)
	for _, t1 := range times1 {
		for _, t2 := range times2 {
			diffMinutes := math.Abs(t1.Sub(t2).Minutes())
			if diffMinutes <= window {
				score := 1.0 - diffMinutes/window
				if score > best {
					best = score
				}
			}
		}
	}
	return best
}

func recordTimestamps(r models.EntityRecord) []time.Time {
	var times []time.Time
	if !r.FirstSeen.IsZero() {
		times = append(times, r.FirstSeen)
	}
	if !r.LastSeen.IsZero() {
		times = append(times, r.LastSeen)
	}
	return times
}

// locationJaccard scores the overlap between the two records' location
// sets (LocationsVisited doubling as access points for WiFi-derived
// records).
func locationJaccard(r1, r2 models.EntityRecord) float64 {
	set1 := toLocationSet(r1.LocationsVisited)
	set2 := toLocationSet(r2.LocationsVisited)
	if len(set1) == 0 || len(set2) == 0 {
		return 0
	}

	intersection := 0
	for loc := range set1 {
		if set2[loc] {
			intersection++
		}
	}
	union := len(set1) + len(set2) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func toLocationSet(locations []string) map[string]bool {
	set := make(map[string]bool, len(locations))
	for _, loc := range locations {
		set[loc] = true
	}
	return set
}

// blockingKey returns the cheap bucket a record is compared within,
// before any O(N^2) pairwise scan: the first letter of the lowercased
// name if present, otherwise the first 4 characters of whichever
// identifier hash the record carries.
func blockingKey(r models.EntityRecord) string {
	if r.Name != "" {
		for _, c := range strings.ToLower(r.Name) {
			if c != ' ' {
				return "name:" + string(c)
			}
		}
	}
	for _, id := range []string{r.CardID, r.DeviceHash, r.FaceID, r.EntityID} {
		if len(id) >= 4 {
			return "id:" + id[:4]
		}
		if id != "" {
			return "id:" + id
		}
	}
	return "block:none"
}
