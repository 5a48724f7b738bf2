// SPDX-License-Identifier: AGPL-3.0-or-later

package timeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/campustrace/resolve/internal/models"
)

// convertToEvents projects each fusion record, already sorted by
// timestamp, into a TimelineEvent carrying its deterministic
// description.
func convertToEvents(records []models.FusionRecord) []models.TimelineEvent {
	events := make([]models.TimelineEvent, len(records))
	for i, r := range records {
		sources := make([]string, len(r.SourceRecords))
		for j, sr := range r.SourceRecords {
			sources[j] = sr.SourceDataset
		}
		events[i] = models.TimelineEvent{
			Timestamp:   r.Timestamp,
			Location:    r.Location,
			Activity:    r.ActivityType,
			Description: describeEvent(r),
			Confidence:  r.Confidence,
			Sources:     sources,
		}
	}
	return events
}

// mergeRelatedEvents walks events in order, grouping consecutive events
// at the same location within mergeWindowMinutes of the previous event
// in the group, and reduces each group to a single TimelineEvent.
func mergeRelatedEvents(events []models.TimelineEvent, mergeWindowMinutes float64) []models.TimelineEvent {
	if len(events) == 0 {
		return nil
	}

	var groups [][]models.TimelineEvent
	group := []models.TimelineEvent{events[0]}
	for _, e := range events[1:] {
		last := group[len(group)-1]
		sameLocation := e.Location == last.Location
		withinWindow := e.Timestamp.Sub(last.Timestamp).Minutes() <= mergeWindowMinutes
		if sameLocation && withinWindow {
			group = append(group, e)
		} else {
			groups = append(groups, group)
			group = []models.TimelineEvent{e}
		}
	}
	groups = append(groups, group)

	merged := make([]models.TimelineEvent, len(groups))
	for i, g := range groups {
		merged[i] = reduceGroup(g)
	}
	return merged
}

// reduceGroup collapses one group of related events per spec section
// 4.4's merging rules.
func reduceGroup(group []models.TimelineEvent) models.TimelineEvent {
	if len(group) == 1 {
		return group[0]
	}

	timestamp := group[0].Timestamp
	latest := group[0].Timestamp
	for _, e := range group[1:] {
		if e.Timestamp.Before(timestamp) {
			timestamp = e.Timestamp
		}
		if e.Timestamp.After(latest) {
			latest = e.Timestamp
		}
	}

	location := modeString(locationsOf(group))
	activities := activitiesOf(group)
	primaryActivity := modeString(activities)

	unique := uniqueOrdered(activities)
	var description string
	if len(unique) == 1 {
		description = group[0].Description
	} else {
		shown := unique
		suffix := ""
		if len(unique) > 3 {
			shown = unique[:3]
			suffix = fmt.Sprintf(" and %d more", len(unique)-3)
		}
		description = fmt.Sprintf("Multiple activities at %s: %s%s", locationName(location), joinComma(shown), suffix)
	}

	var confidenceSum float64
	sourceSet := make(map[string]bool)
	var relatedEvents []string
	for i, e := range group {
		confidenceSum += e.Confidence
		for _, s := range e.Sources {
			sourceSet[s] = true
		}
		if i > 0 {
			relatedEvents = append(relatedEvents, fmt.Sprintf("%s@%s", e.Activity, e.Timestamp.Format(time.RFC3339)))
		}
	}

	return models.TimelineEvent{
		Timestamp:     timestamp,
		Location:      location,
		Activity:      primaryActivity,
		Description:   description,
		Confidence:    confidenceSum / float64(len(group)),
		Sources:       sortedStringSet(sourceSet),
		Duration:      latest.Sub(timestamp),
		RelatedEvents: relatedEvents,
	}
}

// detectGaps inserts a synthetic gap TimelineEvent between each pair of
// consecutive events whose separation exceeds maxGapHours. The
// returned bool is false when ctx was cancelled before every gap had
// been considered, matching the pipeline's per-gap cancellation
// checkpoint.
func detectGaps(ctx context.Context, events []models.TimelineEvent, maxGapHours float64) ([]models.TimelineEvent, bool) {
	if len(events) < 2 {
		return events, true
	}

	enhanced := make([]models.TimelineEvent, 0, len(events))
	maxGap := time.Duration(maxGapHours * float64(time.Hour))
	for i, e := range events {
		enhanced = append(enhanced, e)
		if i == len(events)-1 {
			continue
		}
		gap := events[i+1].Timestamp.Sub(e.Timestamp)
		if gap > maxGap {
			if err := ctx.Err(); err != nil {
				return enhanced, false
			}
			enhanced = append(enhanced, gapEvent(e, gap))
		}
	}
	return enhanced, true
}

func gapEvent(before models.TimelineEvent, gap time.Duration) models.TimelineEvent {
	hours := int(gap.Hours())
	minutes := int(gap.Minutes()) % 60

	var duration string
	if hours > 0 {
		if minutes > 0 {
			duration = fmt.Sprintf("%dh %dm", hours, minutes)
		} else {
			duration = fmt.Sprintf("%dh", hours)
		}
	} else {
		duration = fmt.Sprintf("%dm", minutes)
	}

	return models.TimelineEvent{
		Timestamp:   before.Timestamp.Add(30 * time.Minute),
		Location:    models.LocationUnknown,
		Activity:    "gap",
		Description: fmt.Sprintf("No activity detected for %s", duration),
		Confidence:  0,
		Duration:    gap,
	}
}

func locationsOf(events []models.TimelineEvent) []string {
	locations := make([]string, len(events))
	for i, e := range events {
		locations[i] = e.Location
	}
	return locations
}

func activitiesOf(events []models.TimelineEvent) []string {
	activities := make([]string, len(events))
	for i, e := range events {
		activities[i] = e.Activity
	}
	return activities
}

// modeString returns the most frequent value, ties broken by first
// occurrence.
func modeString(values []string) string {
	counts := make(map[string]int)
	order := make(map[string]int)
	for i, v := range values {
		if _, seen := order[v]; !seen {
			order[v] = i
		}
		counts[v]++
	}
	var best string
	bestCount := -1
	bestOrder := len(values)
	for v, c := range counts {
		if c > bestCount || (c == bestCount && order[v] < bestOrder) {
			best = v
			bestCount = c
			bestOrder = order[v]
		}
	}
	return best
}

func uniqueOrdered(values []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func joinComma(values []string) string {
	if len(values) == 0 {
		return ""
	}
	out := values[0]
	for _, v := range values[1:] {
		out += ", " + v
	}
	return out
}

func sortedStringSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
