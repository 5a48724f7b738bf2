// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import "time"

// TimelineEvent is one chronological entry in an entity's activity
// timeline, after near-duplicate merging and gap-event insertion.
type TimelineEvent struct {
	Timestamp     time.Time
	Location      string
	Activity      string
	Description   string
	Confidence    float64
	Sources       []string
	Duration      time.Duration // zero when unknown
	RelatedEvents []string
}

// TimeRange is a [Start, End) interval, used to record detected gaps
// in a TimelineSummary.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// TimelineSummary is a natural-language summarization of an entity's
// activity over a bounded window, along with the structured facts the
// summary text was derived from.
type TimelineSummary struct {
	EntityID          string
	StartTime         time.Time
	EndTime           time.Time
	TotalEvents       int
	LocationsVisited  []string
	PrimaryActivities []string
	SummaryText       string
	ConfidenceScore   float64
	Gaps              []TimeRange
}
