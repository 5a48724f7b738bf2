// SPDX-License-Identifier: AGPL-3.0-or-later

package fusion

import "github.com/campustrace/resolve/internal/models"

// clusterTemporalEvents greedily extends the current cluster while the
// gap to the previous event is within maxGapMinutes, starting a new
// cluster otherwise. events must already be sorted by timestamp.
func clusterTemporalEvents(events []models.ActivityEvent, maxGapMinutes float64) [][]models.ActivityEvent {
	if len(events) == 0 {
		return nil
	}

	clusters := [][]models.ActivityEvent{{events[0]}}
	for _, event := range events[1:] {
		current := clusters[len(clusters)-1]
		gap := event.Timestamp.Sub(current[len(current)-1].Timestamp).Minutes()
		if gap <= maxGapMinutes {
			clusters[len(clusters)-1] = append(current, event)
		} else {
			clusters = append(clusters, []models.ActivityEvent{event})
		}
	}
	return clusters
}
