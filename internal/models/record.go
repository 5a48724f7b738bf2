// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import "time"

// Dataset identifies the source collection an EntityRecord was
// extracted from.
type Dataset string

const (
	DatasetProfiles    Dataset = "profiles"
	DatasetCardSwipes  Dataset = "card_swipes"
	DatasetWiFiLogs    Dataset = "wifi_logs"
	DatasetCCTVFrames  Dataset = "cctv_frames"
	DatasetNotes       Dataset = "notes"
	DatasetLabBookings Dataset = "lab_bookings"
	DatasetLibrary     Dataset = "library_checkouts"
)

// EntityRecord is a candidate entity extracted from one dataset. It is
// a tagged union keyed by Dataset: the profile fields are populated
// for DatasetProfiles rows, while the secondary sources populate the
// aggregate fields (FirstSeen/LastSeen/LocationsVisited/RecordCount)
// around whichever identifier that source is keyed on (CardID,
// DeviceHash, FaceID, or EntityID for notes, lab bookings and library
// checkouts).
type EntityRecord struct {
	RecordID string
	Dataset  Dataset

	// Profile identity fields, set when Dataset == DatasetProfiles;
	// notes, lab-booking and library records set only EntityID.
	EntityID   string
	Name       string
	Email      string
	Role       string
	Department string
	StudentID  string
	StaffID    string

	// Cross-source identifiers. Any of these may be populated
	// regardless of Dataset, since secondary sources key off one of
	// them.
	CardID     string
	DeviceHash string
	FaceID     string

	// Aggregate fields populated when a secondary source is reduced to
	// one record per distinct key.
	FirstSeen       time.Time
	LastSeen        time.Time
	LocationsVisited []string
	RecordCount     int

	// NoteCategories holds the distinct helpdesk/RSVP categories seen
	// for a notes-derived record.
	NoteCategories []string
}

// HasIdentifier reports whether the record carries a non-empty value
// for the given identifier kind ("entity_id", "card_id",
// "device_hash", "face_id").
func (r EntityRecord) HasIdentifier(kind string) bool {
	switch kind {
	case "entity_id":
		return r.EntityID != ""
	case "card_id":
		return r.CardID != ""
	case "device_hash":
		return r.DeviceHash != ""
	case "face_id":
		return r.FaceID != ""
	default:
		return false
	}
}
