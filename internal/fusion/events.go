// SPDX-License-Identifier: AGPL-3.0-or-later

package fusion

import (
	"sort"
	"time"

	"github.com/campustrace/resolve/internal/extractor"
	"github.com/campustrace/resolve/internal/models"
)

// Base confidences per source, fixed per spec section 4.3.
const (
	confidenceCardSwipe        = 0.95
	confidenceCCTVDetection    = 0.85
	confidenceWiFiConnection   = 0.75
	confidenceLabBookingGood   = 0.90
	confidenceLabBookingPoor   = 0.60
	confidenceLibraryCheckout  = 0.85
	confidenceNote             = 0.70
)

// extractActivityEvents collects every ActivityEvent belonging to the
// given entity across all raw tables, filtered by the entity's resolved
// identifier sets (card_ids, device_hashes, face_ids, student_ids/
// entity_ids via the profile's own entity_id, emails are not used for
// row matching since no raw table keys events by email).
func extractActivityEvents(entity models.ResolvedEntity, tables extractor.Tables) []models.ActivityEvent {
	cardIDs := toSet(entity.IdentifierValues("card_ids"))
	deviceHashes := toSet(entity.IdentifierValues("device_hashes"))
	faceIDs := toSet(entity.IdentifierValues("face_ids"))
	entityIDs := toSet(entityIDList(entity))

	var events []models.ActivityEvent

	for _, row := range tables.CardSwipes {
		if !cardIDs[row.CardID] {
			continue
		}
		ts, ok := parseEventTime(row.Timestamp)
		if !ok {
			continue
		}
		events = append(events, models.ActivityEvent{
			EntityID:      entity.UnifiedID,
			Timestamp:     ts,
			Location:      row.LocationID,
			EventType:     "card_swipe",
			SourceDataset: string(models.DatasetCardSwipes),
			RawData: map[string]any{
				"card_id":     row.CardID,
				"location_id": row.LocationID,
				"timestamp":   row.Timestamp,
			},
			Confidence: confidenceCardSwipe,
		})
	}

	for _, row := range tables.CCTVFrames {
		if !faceIDs[row.FaceID] {
			continue
		}
		ts, ok := parseEventTime(row.Timestamp)
		if !ok {
			continue
		}
		events = append(events, models.ActivityEvent{
			EntityID:      entity.UnifiedID,
			Timestamp:     ts,
			Location:      row.LocationID,
			EventType:     "cctv_detection",
			SourceDataset: string(models.DatasetCCTVFrames),
			RawData: map[string]any{
				"face_id":     row.FaceID,
				"location_id": row.LocationID,
				"timestamp":   row.Timestamp,
			},
			Confidence: confidenceCCTVDetection,
		})
	}

	for _, row := range tables.WiFiLogs {
		if !deviceHashes[row.DeviceHash] {
			continue
		}
		ts, ok := parseEventTime(row.Timestamp)
		if !ok {
			continue
		}
		events = append(events, models.ActivityEvent{
			EntityID:      entity.UnifiedID,
			Timestamp:     ts,
			Location:      inferLocationFromAP(row.APID),
			EventType:     "wifi_connection",
			SourceDataset: string(models.DatasetWiFiLogs),
			RawData: map[string]any{
				"device_hash": row.DeviceHash,
				"ap_id":       row.APID,
				"timestamp":   row.Timestamp,
			},
			Confidence: confidenceWiFiConnection,
		})
	}

	for _, row := range tables.LabBookings {
		if !entityIDs[row.EntityID] {
			continue
		}
		confidence := confidenceLabBookingPoor
		if row.Attended {
			confidence = confidenceLabBookingGood
		}
		if ts, ok := parseEventTime(row.StartTime); ok {
			events = append(events, models.ActivityEvent{
				EntityID:      entity.UnifiedID,
				Timestamp:     ts,
				Location:      row.RoomID,
				EventType:     "lab_booking_start",
				SourceDataset: string(models.DatasetLabBookings),
				RawData: map[string]any{
					"room_id":    row.RoomID,
					"start_time": row.StartTime,
					"end_time":   row.EndTime,
					"attended":   row.Attended,
				},
				Confidence: confidence,
			})
		}
		if ts, ok := parseEventTime(row.EndTime); ok {
			events = append(events, models.ActivityEvent{
				EntityID:      entity.UnifiedID,
				Timestamp:     ts,
				Location:      row.RoomID,
				EventType:     "lab_booking_end",
				SourceDataset: string(models.DatasetLabBookings),
				RawData: map[string]any{
					"room_id":    row.RoomID,
					"start_time": row.StartTime,
					"end_time":   row.EndTime,
					"attended":   row.Attended,
				},
				Confidence: confidence,
			})
		}
	}

	for _, row := range tables.LibraryCheckouts {
		if !entityIDs[row.EntityID] {
			continue
		}
		ts, ok := parseEventTime(row.Timestamp)
		if !ok {
			continue
		}
		events = append(events, models.ActivityEvent{
			EntityID:      entity.UnifiedID,
			Timestamp:     ts,
			Location:      "LIB_ENT",
			EventType:     "library_checkout",
			SourceDataset: string(models.DatasetLibrary),
			RawData: map[string]any{
				"book_id":   row.BookID,
				"timestamp": row.Timestamp,
			},
			Confidence: confidenceLibraryCheckout,
		})
	}

	for _, row := range tables.Notes {
		if !entityIDs[row.EntityID] {
			continue
		}
		ts, ok := parseEventTime(row.Timestamp)
		if !ok {
			continue
		}
		events = append(events, models.ActivityEvent{
			EntityID:      entity.UnifiedID,
			Timestamp:     ts,
			Location:      inferLocationFromText(row.Text),
			EventType:     "note_" + row.Category,
			SourceDataset: string(models.DatasetNotes),
			RawData: map[string]any{
				"category":  row.Category,
				"text":      row.Text,
				"timestamp": row.Timestamp,
			},
			Confidence: confidenceNote,
		})
	}

	sort.Slice(events, func(i, j int) bool { return events[i].Timestamp.Before(events[j].Timestamp) })
	return events
}

// entityIDList returns every profile entity_id the resolved entity
// absorbed, used to match EntityID-keyed raw rows (lab_bookings,
// library_checkouts, notes).
func entityIDList(entity models.ResolvedEntity) []string {
	ids := make([]string, 0, len(entity.EntityIDs))
	for id := range entity.EntityIDs {
		ids = append(ids, id)
	}
	return ids
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func parseEventTime(raw string) (time.Time, bool) {
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
