// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import "time"

// ActivityEvent is one observation of a resolved entity doing
// something at some place and time, extracted from a single source
// row before temporal clustering collapses it into a FusionRecord.
type ActivityEvent struct {
	EntityID      string
	Timestamp     time.Time
	Location      string
	EventType     string
	SourceDataset string
	RawData       map[string]any
	Confidence    float64
}

// FusionRecord is one fused, temporally-clustered activity produced by
// the multi-modal fusion stage: a single place/time/activity
// attributed to a resolved entity, with its supporting evidence and
// per-source provenance retained for explainability downstream.
type FusionRecord struct {
	UnifiedEntityID string
	Timestamp       time.Time
	Location        string
	ActivityType    string
	Confidence      float64
	SourceRecords   []ActivityEvent
	Provenance      map[string]string
	Evidence        map[string]any
}
