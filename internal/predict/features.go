// SPDX-License-Identifier: AGPL-3.0-or-later

package predict

import (
	"sort"
	"sync"
	"time"

	"github.com/campustrace/resolve/internal/models"
)

// sourceOrder fixes the presence-flag column order shared by training
// and prediction.
var sourceOrder = []models.Dataset{
	models.DatasetCardSwipes,
	models.DatasetCCTVFrames,
	models.DatasetWiFiLogs,
	models.DatasetLabBookings,
	models.DatasetLibrary,
	models.DatasetNotes,
}

var locationCodes = sync.OnceValue(func() map[string]int {
	codes := make([]string, 0, len(models.CampusLocations))
	for code := range models.CampusLocations {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	index := make(map[string]int, len(codes))
	for i, code := range codes {
		index[code] = i
	}
	return index
})

var departmentCodes = sync.OnceValue(func() map[string]int {
	index := make(map[string]int, len(models.Departments))
	for i, d := range models.Departments {
		index[d] = i
	}
	return index
})

func locationCode(location string) float64 {
	if code, ok := locationCodes()[location]; ok {
		return float64(code)
	}
	return -1
}

func departmentCode(department string) float64 {
	if code, ok := departmentCodes()[department]; ok {
		return float64(code)
	}
	return -1
}

func roleCode(role string) float64 {
	switch role {
	case "staff":
		return 1
	case "faculty":
		return 2
	default:
		return 0
	}
}

// mondayWeekday converts Go's Sunday=0 week numbering to the
// Monday=0 convention the rest of the feature vector assumes.
func mondayWeekday(ts time.Time) float64 {
	return float64((int(ts.Weekday()) + 6) % 7)
}

// featureVector builds the fixed 16-element numeric feature vector for
// one fused observation, per the predictive monitor's feature
// contract: temporal fields, role and department codes, source-record
// count, fusion confidence, evidence size, location code, and six
// binary per-dataset presence flags.
func featureVector(ts time.Time, location string, sourceCount int, confidence float64, evidenceSize int, sources map[models.Dataset]bool, profile models.EntityRecord) []float64 {
	features := make([]float64, 0, 16)
	features = append(features,
		float64(ts.Hour()),
		mondayWeekday(ts),
		float64(ts.Day()),
		float64(ts.Month()),
	)
	features = append(features, roleCode(profile.Role))
	features = append(features, departmentCode(profile.Department))
	features = append(features,
		float64(sourceCount),
		confidence,
		float64(evidenceSize),
	)
	features = append(features, locationCode(location))
	for _, source := range sourceOrder {
		if sources[source] {
			features = append(features, 1)
		} else {
			features = append(features, 0)
		}
	}
	return features
}

// recordFeatures derives the feature vector for a historical fusion
// record, whose source presence is read from its own SourceRecords.
func recordFeatures(record models.FusionRecord, profile models.EntityRecord) []float64 {
	sources := make(map[models.Dataset]bool)
	for _, sr := range record.SourceRecords {
		sources[models.Dataset(sr.SourceDataset)] = true
	}
	return featureVector(record.Timestamp, record.Location, len(record.SourceRecords), record.Confidence, len(record.Evidence), sources, profile)
}

// syntheticFeatures derives the feature vector for a missing-data
// query: unknown location and activity, no source records, matching
// predict_missing_data's synthetic FusionRecord.
func syntheticFeatures(ts time.Time, profile models.EntityRecord) []float64 {
	return featureVector(ts, models.LocationUnknown, 0, 0, 0, nil, profile)
}
