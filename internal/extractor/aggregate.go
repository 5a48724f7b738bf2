// SPDX-License-Identifier: AGPL-3.0-or-later

package extractor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/campustrace/resolve/internal/models"
)

// extractCardSwipes returns one aggregated EntityRecord per distinct
// card_id, with first/last seen and the set of locations visited.
func (e *Extractor) extractCardSwipes(ctx context.Context, rows []CardSwipeRow) ([]models.EntityRecord, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	if _, err := e.db.ExecContext(ctx, `
		CREATE OR REPLACE TEMP TABLE card_swipes (
			card_id TEXT, location_id TEXT, ts TIMESTAMP
		)`); err != nil {
		return nil, fmt.Errorf("create card_swipes table: %w", err)
	}

	stmt, err := e.db.PrepareContext(ctx, `INSERT INTO card_swipes VALUES (?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare card_swipes insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		ts, ok := parseTimestamp(ctx, "card_swipes", r.Timestamp)
		if !ok {
			continue
		}
		if _, err := stmt.ExecContext(ctx, r.CardID, r.LocationID, ts); err != nil {
			return nil, fmt.Errorf("insert card_swipes row: %w", err)
		}
	}

	rs, err := e.db.QueryContext(ctx, `
		SELECT card_id, MIN(ts), MAX(ts), COUNT(*), string_agg(DISTINCT location_id, ',')
		FROM card_swipes GROUP BY card_id`)
	if err != nil {
		return nil, fmt.Errorf("query card_swipes aggregate: %w", err)
	}
	defer rs.Close()

	var records []models.EntityRecord
	for rs.Next() {
		var cardID, locations string
		var firstSeen, lastSeen time.Time
		var count int
		if err := rs.Scan(&cardID, &firstSeen, &lastSeen, &count, &locations); err != nil {
			return nil, fmt.Errorf("scan card_swipes aggregate row: %w", err)
		}
		records = append(records, models.EntityRecord{
			RecordID:         "card_" + cardID,
			Dataset:          models.DatasetCardSwipes,
			CardID:           cardID,
			FirstSeen:        firstSeen,
			LastSeen:         lastSeen,
			LocationsVisited: splitDistinct(locations),
			RecordCount:      count,
		})
	}
	return records, rs.Err()
}

// extractWiFiLogs returns one aggregated EntityRecord per distinct
// device_hash.
func (e *Extractor) extractWiFiLogs(ctx context.Context, rows []WiFiLogRow) ([]models.EntityRecord, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	if _, err := e.db.ExecContext(ctx, `
		CREATE OR REPLACE TEMP TABLE wifi_logs (
			device_hash TEXT, ap_id TEXT, ts TIMESTAMP
		)`); err != nil {
		return nil, fmt.Errorf("create wifi_logs table: %w", err)
	}

	stmt, err := e.db.PrepareContext(ctx, `INSERT INTO wifi_logs VALUES (?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare wifi_logs insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		ts, ok := parseTimestamp(ctx, "wifi_logs", r.Timestamp)
		if !ok {
			continue
		}
		if _, err := stmt.ExecContext(ctx, r.DeviceHash, r.APID, ts); err != nil {
			return nil, fmt.Errorf("insert wifi_logs row: %w", err)
		}
	}

	rs, err := e.db.QueryContext(ctx, `
		SELECT device_hash, MIN(ts), MAX(ts), COUNT(*), string_agg(DISTINCT ap_id, ',')
		FROM wifi_logs GROUP BY device_hash`)
	if err != nil {
		return nil, fmt.Errorf("query wifi_logs aggregate: %w", err)
	}
	defer rs.Close()

	var records []models.EntityRecord
	for rs.Next() {
		var deviceHash, aps string
		var firstSeen, lastSeen time.Time
		var count int
		if err := rs.Scan(&deviceHash, &firstSeen, &lastSeen, &count, &aps); err != nil {
			return nil, fmt.Errorf("scan wifi_logs aggregate row: %w", err)
		}
		records = append(records, models.EntityRecord{
			RecordID:         "wifi_" + deviceHash,
			Dataset:          models.DatasetWiFiLogs,
			DeviceHash:       deviceHash,
			FirstSeen:        firstSeen,
			LastSeen:         lastSeen,
			LocationsVisited: splitDistinct(aps),
			RecordCount:      count,
		})
	}
	return records, rs.Err()
}

// extractCCTVFrames returns one aggregated EntityRecord per distinct
// face_id. Frames without a face_id never produce a candidate
// record — they surface later only as fusion-stage evidence.
func (e *Extractor) extractCCTVFrames(ctx context.Context, rows []CCTVFrameRow) ([]models.EntityRecord, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	if _, err := e.db.ExecContext(ctx, `
		CREATE OR REPLACE TEMP TABLE cctv_frames (
			face_id TEXT, location_id TEXT, ts TIMESTAMP
		)`); err != nil {
		return nil, fmt.Errorf("create cctv_frames table: %w", err)
	}

	stmt, err := e.db.PrepareContext(ctx, `INSERT INTO cctv_frames VALUES (?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare cctv_frames insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if r.FaceID == "" {
			continue
		}
		ts, ok := parseTimestamp(ctx, "cctv_frames", r.Timestamp)
		if !ok {
			continue
		}
		if _, err := stmt.ExecContext(ctx, r.FaceID, r.LocationID, ts); err != nil {
			return nil, fmt.Errorf("insert cctv_frames row: %w", err)
		}
	}

	rs, err := e.db.QueryContext(ctx, `
		SELECT face_id, MIN(ts), MAX(ts), COUNT(*), string_agg(DISTINCT location_id, ',')
		FROM cctv_frames GROUP BY face_id`)
	if err != nil {
		return nil, fmt.Errorf("query cctv_frames aggregate: %w", err)
	}
	defer rs.Close()

	var records []models.EntityRecord
	for rs.Next() {
		var faceID, locations string
		var firstSeen, lastSeen time.Time
		var count int
		if err := rs.Scan(&faceID, &firstSeen, &lastSeen, &count, &locations); err != nil {
			return nil, fmt.Errorf("scan cctv_frames aggregate row: %w", err)
		}
		records = append(records, models.EntityRecord{
			RecordID:         "face_" + faceID,
			Dataset:          models.DatasetCCTVFrames,
			FaceID:           faceID,
			FirstSeen:        firstSeen,
			LastSeen:         lastSeen,
			LocationsVisited: splitDistinct(locations),
			RecordCount:      count,
		})
	}
	return records, rs.Err()
}

// extractNotes returns one aggregated EntityRecord per distinct
// entity_id referenced by the free-text notes source.
func (e *Extractor) extractNotes(ctx context.Context, rows []NoteRow) ([]models.EntityRecord, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	if _, err := e.db.ExecContext(ctx, `
		CREATE OR REPLACE TEMP TABLE notes (
			entity_id TEXT, category TEXT, ts TIMESTAMP
		)`); err != nil {
		return nil, fmt.Errorf("create notes table: %w", err)
	}

	stmt, err := e.db.PrepareContext(ctx, `INSERT INTO notes VALUES (?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare notes insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		ts, ok := parseTimestamp(ctx, "notes", r.Timestamp)
		if !ok {
			continue
		}
		if _, err := stmt.ExecContext(ctx, r.EntityID, r.Category, ts); err != nil {
			return nil, fmt.Errorf("insert notes row: %w", err)
		}
	}

	rs, err := e.db.QueryContext(ctx, `
		SELECT entity_id, MIN(ts), MAX(ts), COUNT(*), string_agg(DISTINCT category, ',')
		FROM notes GROUP BY entity_id`)
	if err != nil {
		return nil, fmt.Errorf("query notes aggregate: %w", err)
	}
	defer rs.Close()

	var records []models.EntityRecord
	for rs.Next() {
		var entityID, categories string
		var firstNote, lastNote time.Time
		var count int
		if err := rs.Scan(&entityID, &firstNote, &lastNote, &count, &categories); err != nil {
			return nil, fmt.Errorf("scan notes aggregate row: %w", err)
		}
		records = append(records, models.EntityRecord{
			RecordID:       "notes_" + entityID,
			Dataset:        models.DatasetNotes,
			EntityID:       entityID,
			FirstSeen:      firstNote,
			LastSeen:       lastNote,
			NoteCategories: splitDistinct(categories),
			RecordCount:    count,
		})
	}
	return records, rs.Err()
}

// extractLabBookings returns one aggregated EntityRecord per distinct
// entity_id, counting only bookings with attended = true toward
// RecordCount and the visited-locations set, matching the Python
// prototype's attendance filter.
func (e *Extractor) extractLabBookings(ctx context.Context, rows []LabBookingRow) ([]models.EntityRecord, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	if _, err := e.db.ExecContext(ctx, `
		CREATE OR REPLACE TEMP TABLE lab_bookings (
			entity_id TEXT, room_id TEXT, ts TIMESTAMP
		)`); err != nil {
		return nil, fmt.Errorf("create lab_bookings table: %w", err)
	}

	stmt, err := e.db.PrepareContext(ctx, `INSERT INTO lab_bookings VALUES (?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare lab_bookings insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if !r.Attended {
			continue
		}
		ts, ok := parseTimestamp(ctx, "lab_bookings", r.StartTime)
		if !ok {
			continue
		}
		if _, err := stmt.ExecContext(ctx, r.EntityID, r.RoomID, ts); err != nil {
			return nil, fmt.Errorf("insert lab_bookings row: %w", err)
		}
	}

	rs, err := e.db.QueryContext(ctx, `
		SELECT entity_id, MIN(ts), MAX(ts), COUNT(*), string_agg(DISTINCT room_id, ',')
		FROM lab_bookings GROUP BY entity_id`)
	if err != nil {
		return nil, fmt.Errorf("query lab_bookings aggregate: %w", err)
	}
	defer rs.Close()

	var records []models.EntityRecord
	for rs.Next() {
		var entityID, rooms string
		var firstSeen, lastSeen time.Time
		var count int
		if err := rs.Scan(&entityID, &firstSeen, &lastSeen, &count, &rooms); err != nil {
			return nil, fmt.Errorf("scan lab_bookings aggregate row: %w", err)
		}
		records = append(records, models.EntityRecord{
			RecordID:         "lab_" + entityID,
			Dataset:          models.DatasetLabBookings,
			EntityID:         entityID,
			FirstSeen:        firstSeen,
			LastSeen:         lastSeen,
			LocationsVisited: splitDistinct(rooms),
			RecordCount:      count,
		})
	}
	return records, rs.Err()
}

// extractLibraryCheckouts returns one aggregated EntityRecord per
// distinct entity_id referenced by the library checkout log.
func (e *Extractor) extractLibraryCheckouts(ctx context.Context, rows []LibraryCheckoutRow) ([]models.EntityRecord, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	if _, err := e.db.ExecContext(ctx, `
		CREATE OR REPLACE TEMP TABLE library_checkouts (
			entity_id TEXT, book_id TEXT, ts TIMESTAMP
		)`); err != nil {
		return nil, fmt.Errorf("create library_checkouts table: %w", err)
	}

	stmt, err := e.db.PrepareContext(ctx, `INSERT INTO library_checkouts VALUES (?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare library_checkouts insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		ts, ok := parseTimestamp(ctx, "library_checkouts", r.Timestamp)
		if !ok {
			continue
		}
		if _, err := stmt.ExecContext(ctx, r.EntityID, r.BookID, ts); err != nil {
			return nil, fmt.Errorf("insert library_checkouts row: %w", err)
		}
	}

	rs, err := e.db.QueryContext(ctx, `
		SELECT entity_id, MIN(ts), MAX(ts), COUNT(*), string_agg(DISTINCT book_id, ',')
		FROM library_checkouts GROUP BY entity_id`)
	if err != nil {
		return nil, fmt.Errorf("query library_checkouts aggregate: %w", err)
	}
	defer rs.Close()

	var records []models.EntityRecord
	for rs.Next() {
		var entityID, books string
		var firstSeen, lastSeen time.Time
		var count int
		if err := rs.Scan(&entityID, &firstSeen, &lastSeen, &count, &books); err != nil {
			return nil, fmt.Errorf("scan library_checkouts aggregate row: %w", err)
		}
		records = append(records, models.EntityRecord{
			RecordID:         "library_" + entityID,
			Dataset:          models.DatasetLibrary,
			EntityID:         entityID,
			FirstSeen:        firstSeen,
			LastSeen:         lastSeen,
			LocationsVisited: splitDistinct(books),
			RecordCount:      count,
		})
	}
	return records, rs.Err()
}

func splitDistinct(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}
