// SPDX-License-Identifier: AGPL-3.0-or-later

package extractor

import (
	"context"
	"testing"

	"github.com/campustrace/resolve/internal/config"
	"github.com/campustrace/resolve/internal/models"
)

func TestExtractProfiles(t *testing.T) {
	e, err := New(config.ExtractorConfig{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer e.Close()

	tables := Tables{
		Profiles: []ProfileRow{
			{EntityID: "E1", Name: "Neha Mehta", Email: "neha@campus.edu", Role: "student", CardID: "C100"},
		},
	}

	records, err := e.Extract(context.Background(), tables)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].Dataset != models.DatasetProfiles || records[0].EntityID != "E1" {
		t.Errorf("records[0] = %+v, want profile record for E1", records[0])
	}
}

func TestExtractCardSwipesAggregatesByCardID(t *testing.T) {
	e, err := New(config.ExtractorConfig{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer e.Close()

	tables := Tables{
		CardSwipes: []CardSwipeRow{
			{CardID: "C100", LocationID: "LAB_101", Timestamp: "2025-01-02T09:00:00Z"},
			{CardID: "C100", LocationID: "LIB_ENT", Timestamp: "2025-01-02T10:00:00Z"},
			{CardID: "C200", LocationID: "GYM", Timestamp: "2025-01-02T09:30:00Z"},
		},
	}

	records, err := e.Extract(context.Background(), tables)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2 (one per distinct card_id)", len(records))
	}

	byCard := make(map[string]models.EntityRecord)
	for _, r := range records {
		byCard[r.CardID] = r
	}
	c100 := byCard["C100"]
	if c100.RecordCount != 2 {
		t.Errorf("C100 RecordCount = %d, want 2", c100.RecordCount)
	}
	if len(c100.LocationsVisited) != 2 {
		t.Errorf("C100 LocationsVisited = %v, want 2 distinct locations", c100.LocationsVisited)
	}
}

func TestExtractDropsMalformedTimestamp(t *testing.T) {
	e, err := New(config.ExtractorConfig{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer e.Close()

	tables := Tables{
		CardSwipes: []CardSwipeRow{
			{CardID: "C100", LocationID: "LAB_101", Timestamp: "not-a-timestamp"},
			{CardID: "C100", LocationID: "LAB_101", Timestamp: "2025-01-02T09:00:00Z"},
		},
	}

	records, err := e.Extract(context.Background(), tables)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].RecordCount != 1 {
		t.Errorf("RecordCount = %d, want 1 (malformed row dropped)", records[0].RecordCount)
	}
}

func TestExtractLabBookingsOnlyCountsAttended(t *testing.T) {
	e, err := New(config.ExtractorConfig{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer e.Close()

	tables := Tables{
		LabBookings: []LabBookingRow{
			{EntityID: "E1", RoomID: "LAB_101", StartTime: "2025-01-02T09:00:00Z", EndTime: "2025-01-02T10:00:00Z", Attended: true},
			{EntityID: "E1", RoomID: "LAB_102", StartTime: "2025-01-03T09:00:00Z", EndTime: "2025-01-03T10:00:00Z", Attended: false},
		},
	}

	records, err := e.Extract(context.Background(), tables)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].Dataset != models.DatasetLabBookings || records[0].RecordCount != 1 {
		t.Errorf("records[0] = %+v, want one lab_bookings record counting only the attended row", records[0])
	}
	if len(records[0].LocationsVisited) != 1 || records[0].LocationsVisited[0] != "LAB_101" {
		t.Errorf("LocationsVisited = %v, want [LAB_101]", records[0].LocationsVisited)
	}
}

func TestExtractLibraryCheckoutsAggregatesByEntityID(t *testing.T) {
	e, err := New(config.ExtractorConfig{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer e.Close()

	tables := Tables{
		LibraryCheckouts: []LibraryCheckoutRow{
			{EntityID: "E1", BookID: "B1", Timestamp: "2025-01-02T09:00:00Z"},
			{EntityID: "E1", BookID: "B2", Timestamp: "2025-01-03T09:00:00Z"},
		},
	}

	records, err := e.Extract(context.Background(), tables)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].Dataset != models.DatasetLibrary || records[0].RecordCount != 2 {
		t.Errorf("records[0] = %+v, want one library_checkouts record with count 2", records[0])
	}
}

func TestExtractMissingSourceTolerated(t *testing.T) {
	e, err := New(config.ExtractorConfig{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer e.Close()

	records, err := e.Extract(context.Background(), Tables{})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("len(records) = %d, want 0 for empty input", len(records))
	}
}
