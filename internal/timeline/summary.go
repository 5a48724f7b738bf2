// SPDX-License-Identifier: AGPL-3.0-or-later

package timeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/campustrace/resolve/internal/models"
)

// Summarise generates a windowed natural-language summary of an
// entity's timeline, anchored at the latest event and extending back
// windowHours (0 uses the builder's configured default).
func (b *Builder) Summarise(entityID string, events []models.TimelineEvent, windowHours float64) models.TimelineSummary {
	if windowHours <= 0 {
		windowHours = b.cfg.SummaryWindowHours
	}
	return summariseAt(entityID, events, windowHours, time.Now())
}

func summariseAt(entityID string, events []models.TimelineEvent, windowHours float64, now time.Time) models.TimelineSummary {
	if len(events) == 0 {
		return models.TimelineSummary{
			EntityID:    entityID,
			StartTime:   now,
			EndTime:     now,
			SummaryText: "No activity recorded",
		}
	}

	endTime := events[0].Timestamp
	for _, e := range events {
		if e.Timestamp.After(endTime) {
			endTime = e.Timestamp
		}
	}
	startTime := endTime.Add(-time.Duration(windowHours * float64(time.Hour)))

	var recent []models.TimelineEvent
	for _, e := range events {
		if e.Activity == "gap" {
			continue
		}
		if e.Timestamp.Before(startTime) {
			continue
		}
		recent = append(recent, e)
	}

	locationSet := make(map[string]bool)
	activitySet := make(map[string]bool)
	var confidenceSum float64
	for _, e := range recent {
		if e.Location != models.LocationUnknown {
			locationSet[e.Location] = true
		}
		activitySet[e.Activity] = true
		confidenceSum += e.Confidence
	}

	var confidenceScore float64
	if len(recent) > 0 {
		confidenceScore = confidenceSum / float64(len(recent))
	}

	var gaps []models.TimeRange
	for _, e := range events {
		if e.Activity == "gap" && e.Duration > 0 {
			gaps = append(gaps, models.TimeRange{Start: e.Timestamp, End: e.Timestamp.Add(e.Duration)})
		}
	}

	locations := sortedStringSet(locationSet)
	activities := sortedStringSet(activitySet)

	return models.TimelineSummary{
		EntityID:          entityID,
		StartTime:         startTime,
		EndTime:           endTime,
		TotalEvents:       len(recent),
		LocationsVisited:  locations,
		PrimaryActivities: activities,
		SummaryText:       narrativeSummary(recent, locations, now),
		ConfidenceScore:   confidenceScore,
		Gaps:              gaps,
	}
}

// narrativeSummary builds the human-readable paragraph per spec section
// 4.4: time span, locations (first three named, "and N other
// locations" if more), activity counts, and wall-clock "last seen"
// phrasing.
func narrativeSummary(events []models.TimelineEvent, locations []string, now time.Time) string {
	if len(events) == 0 {
		return "No recent activity detected."
	}

	start := events[0].Timestamp
	end := events[0].Timestamp
	for _, e := range events {
		if e.Timestamp.Before(start) {
			start = e.Timestamp
		}
		if e.Timestamp.After(end) {
			end = e.Timestamp
		}
	}

	var parts []string

	var timeRange string
	if start.Format("2006-01-02") == end.Format("2006-01-02") {
		timeRange = "on " + start.Format("January 2, 2006")
	} else {
		timeRange = fmt.Sprintf("from %s to %s", start.Format("January 2"), end.Format("January 2, 2006"))
	}
	parts = append(parts, "Activity summary "+timeRange+":")

	if len(locations) > 0 {
		names := make([]string, 0, len(locations))
		limit := len(locations)
		if limit > 3 {
			limit = 3
		}
		for _, loc := range locations[:limit] {
			names = append(names, locationName(loc))
		}
		switch {
		case len(locations) == 1:
			parts = append(parts, "Visited "+names[0])
		case len(locations) <= 3:
			parts = append(parts, "Visited "+strings.Join(names[:len(names)-1], ", ")+" and "+names[len(names)-1])
		default:
			parts = append(parts, fmt.Sprintf("Visited %s and %d other locations", strings.Join(names, ", "), len(locations)-3))
		}
	}

	activityCounts := make(map[string]int)
	var order []string
	for _, e := range events {
		if _, seen := activityCounts[e.Activity]; !seen {
			order = append(order, e.Activity)
		}
		activityCounts[e.Activity]++
	}
	sort.SliceStable(order, func(i, j int) bool { return activityCounts[order[i]] > activityCounts[order[j]] })
	top := order
	if len(top) > 3 {
		top = top[:3]
	}

	var descriptions []string
	for _, activity := range top {
		count := activityCounts[activity]
		descriptions = append(descriptions, activityCountPhrase(activity, count))
	}
	if len(descriptions) > 0 {
		parts = append(parts, "Recorded "+strings.Join(descriptions, ", "))
	}

	last := events[0]
	for _, e := range events {
		if e.Timestamp.After(last.Timestamp) {
			last = e
		}
	}
	parts = append(parts, lastSeenPhrase(last, now))

	return strings.Join(parts, ". ") + "."
}

func activityCountPhrase(activity string, count int) string {
	plural := ""
	if count > 1 {
		plural = "s"
	}
	switch {
	case activity == "card_swipe":
		suffix := ""
		if count > 1 {
			suffix = "es"
		}
		return fmt.Sprintf("%d access%s", count, suffix)
	case activity == "wifi_connection":
		return fmt.Sprintf("%d WiFi connection%s", count, plural)
	case activity == "cctv_detection":
		return fmt.Sprintf("%d CCTV detection%s", count, plural)
	case strings.HasPrefix(activity, "lab_booking"):
		return fmt.Sprintf("%d lab session%s", count, plural)
	default:
		return fmt.Sprintf("%d %s event%s", count, strings.ReplaceAll(activity, "_", " "), plural)
	}
}

func lastSeenPhrase(last models.TimelineEvent, now time.Time) string {
	since := now.Sub(last.Timestamp)
	name := locationName(last.Location)
	switch {
	case since < time.Hour:
		return fmt.Sprintf("Last seen %d minutes ago at %s", int(since.Minutes()), name)
	case since < 24*time.Hour:
		return fmt.Sprintf("Last seen %d hours ago at %s", int(since.Hours()), name)
	default:
		return fmt.Sprintf("Last seen on %s", last.Timestamp.Format("January 2 at 3:04 PM"))
	}
}
