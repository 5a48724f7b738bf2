// SPDX-License-Identifier: AGPL-3.0-or-later

package timeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/campustrace/resolve/internal/models"
)

// describeEvent generates the deterministic human-readable description
// for one fusion record's primary activity type, per spec section 4.4's
// "Event descriptions" table.
func describeEvent(record models.FusionRecord) string {
	locationName := locationName(record.Location)

	switch {
	case record.ActivityType == "card_swipe":
		return fmt.Sprintf("Accessed %s using campus card", locationName)
	case record.ActivityType == "cctv_detection":
		return fmt.Sprintf("Detected by CCTV camera at %s", locationName)
	case record.ActivityType == "wifi_connection":
		return fmt.Sprintf("Connected to WiFi network at %s", locationName)
	case record.ActivityType == "lab_booking_start":
		if duration, ok := bookingDuration(record); ok {
			return fmt.Sprintf("Started lab session at %s for %s", locationName, duration)
		}
		return fmt.Sprintf("Started lab session at %s", locationName)
	case record.ActivityType == "lab_booking_end":
		return fmt.Sprintf("Ended lab session at %s", locationName)
	case record.ActivityType == "library_checkout":
		return fmt.Sprintf("Checked out book at Library%s", bookInfo(record))
	case strings.HasPrefix(record.ActivityType, "note_"):
		category := strings.TrimPrefix(record.ActivityType, "note_")
		return fmt.Sprintf("Submitted %s request: %s", category, noteSummary(record))
	default:
		return fmt.Sprintf("Activity at %s: %s", locationName, record.ActivityType)
	}
}

func locationName(code string) string {
	if loc, ok := models.CampusLocations[code]; ok {
		return loc.Name
	}
	return code
}

// bookingDuration derives the "<N> minutes" / "<H>h <M>m" / "<H> hours"
// string from the lab_booking_start source record's start/end times.
func bookingDuration(record models.FusionRecord) (string, bool) {
	for _, sr := range record.SourceRecords {
		if sr.SourceDataset != string(models.DatasetLabBookings) {
			continue
		}
		start, sok := sr.RawData["start_time"].(string)
		end, eok := sr.RawData["end_time"].(string)
		if !sok || !eok {
			continue
		}
		startTime, err1 := time.Parse(time.RFC3339, start)
		endTime, err2 := time.Parse(time.RFC3339, end)
		if err1 != nil || err2 != nil {
			continue
		}
		minutes := endTime.Sub(startTime).Minutes()
		if minutes <= 0 {
			continue
		}
		if minutes < 60 {
			return fmt.Sprintf("%d minutes", int(minutes)), true
		}
		hours := int(minutes) / 60
		remaining := int(minutes) % 60
		if remaining > 0 {
			return fmt.Sprintf("%dh %dm", hours, remaining), true
		}
		return fmt.Sprintf("%d hours", hours), true
	}
	return "", false
}

func bookInfo(record models.FusionRecord) string {
	for _, sr := range record.SourceRecords {
		if sr.SourceDataset != string(models.DatasetLibrary) {
			continue
		}
		if bookID, ok := sr.RawData["book_id"].(string); ok && bookID != "" {
			return fmt.Sprintf(" (Book ID: %s)", bookID)
		}
	}
	return ""
}

func noteSummary(record models.FusionRecord) string {
	for _, sr := range record.SourceRecords {
		if sr.SourceDataset != string(models.DatasetNotes) {
			continue
		}
		text, _ := sr.RawData["text"].(string)
		if len(text) > 50 {
			return text[:50] + "..."
		}
		if text != "" {
			return text
		}
	}
	return "No details available"
}
