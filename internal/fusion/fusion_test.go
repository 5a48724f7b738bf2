// SPDX-License-Identifier: AGPL-3.0-or-later

package fusion

import (
	"context"
	"testing"

	"github.com/campustrace/resolve/internal/extractor"
	"github.com/campustrace/resolve/internal/models"
)

func testConfig() Config {
	return Config{
		ConfidenceThreshold:     0.70,
		MaxTimeGapMinutes:       15,
		FaceSimilarityThreshold: 0.85,
		WorkerPoolSize:          2,
	}
}

func unifiedEntity(unifiedID string, cardIDs ...string) models.ResolvedEntity {
	entity := models.ResolvedEntity{
		UnifiedID:   unifiedID,
		EntityIDs:   map[string]struct{}{"E1": {}},
		Identifiers: make(map[string]map[string]struct{}),
	}
	for _, c := range cardIDs {
		entity.AddIdentifier("card_ids", c)
	}
	return entity
}

// Scenario 1: exact card match's fusion half. A single card_swipe event
// produces one fusion record at the swipe's location and activity, with
// confidence close to the source's base confidence (0.95).
func TestFuseEntitySingleCardSwipe(t *testing.T) {
	eng := New(testConfig())
	entity := unifiedEntity("unified_entity_000001", "C100")

	tables := extractor.Tables{
		CardSwipes: []extractor.CardSwipeRow{
			{CardID: "C100", LocationID: "LAB_101", Timestamp: "2025-01-02T09:00:00Z"},
		},
	}

	records, _ := eng.FuseEntity(context.Background(), entity, tables)
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	r := records[0]
	if r.Location != "LAB_101" {
		t.Errorf("Location = %q, want LAB_101", r.Location)
	}
	if r.ActivityType != "card_swipe" {
		t.Errorf("ActivityType = %q, want card_swipe", r.ActivityType)
	}
	if r.Confidence < 0.90 || r.Confidence > 0.96 {
		t.Errorf("Confidence = %v, want close to 0.95", r.Confidence)
	}
}

// Scenario 3: multi-source fusion. A card swipe, a CCTV detection and a
// WiFi connection within 8 minutes at the same location produce a
// single fusion record with distinct_sources = 3 and higher confidence
// than any individual base confidence.
func TestFuseEntityMultiSourceCluster(t *testing.T) {
	eng := New(testConfig())
	entity := models.ResolvedEntity{
		UnifiedID:   "unified_entity_000001",
		EntityIDs:   map[string]struct{}{"E1": {}},
		Identifiers: make(map[string]map[string]struct{}),
	}
	entity.AddIdentifier("card_ids", "C100")
	entity.AddIdentifier("face_ids", "F100")
	entity.AddIdentifier("device_hashes", "D100")

	tables := extractor.Tables{
		CardSwipes: []extractor.CardSwipeRow{
			{CardID: "C100", LocationID: "LAB_101", Timestamp: "2025-01-02T09:00:00Z"},
		},
		CCTVFrames: []extractor.CCTVFrameRow{
			{FaceID: "F100", LocationID: "LAB_101", Timestamp: "2025-01-02T09:04:00Z"},
		},
		WiFiLogs: []extractor.WiFiLogRow{
			{DeviceHash: "D100", APID: "AP_LAB_1", Timestamp: "2025-01-02T09:07:00Z"},
		},
	}

	records, _ := eng.FuseEntity(context.Background(), entity, tables)
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1 fused cluster", len(records))
	}
	r := records[0]
	if len(r.SourceRecords) != 3 {
		t.Fatalf("len(SourceRecords) = %d, want 3", len(r.SourceRecords))
	}
	if r.Confidence <= 0.95 {
		t.Errorf("Confidence = %v, want > 0.95 (base of highest individual source)", r.Confidence)
	}
	diversity, ok := r.Evidence["source_diversity"].(map[string]any)
	if !ok {
		t.Fatalf("Evidence[source_diversity] missing or wrong type: %#v", r.Evidence["source_diversity"])
	}
	sources, _ := diversity["sources"].([]string)
	if len(sources) != 3 {
		t.Errorf("source_diversity.sources = %v, want 3 distinct sources", sources)
	}
}

// Records below confidence_threshold are dropped entirely.
func TestFuseEntityFiltersLowConfidence(t *testing.T) {
	cfg := testConfig()
	cfg.ConfidenceThreshold = 0.99 // unreachable by a single note event
	eng := New(cfg)

	entity := models.ResolvedEntity{
		UnifiedID:   "unified_entity_000001",
		EntityIDs:   map[string]struct{}{"E1": {}},
		Identifiers: make(map[string]map[string]struct{}),
	}

	tables := extractor.Tables{
		Notes: []extractor.NoteRow{
			{EntityID: "E1", Category: "helpdesk", Text: "visited the library today", Timestamp: "2025-01-02T09:00:00Z"},
		},
	}

	records, _ := eng.FuseEntity(context.Background(), entity, tables)
	if len(records) != 0 {
		t.Errorf("len(records) = %d, want 0 (filtered by confidence_threshold)", len(records))
	}
}

// Note text location inference picks the first matching keyword.
func TestInferLocationFromText(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Saw them near the library entrance", "LIB_ENT"},
		{"Reported in the lab this morning", "LAB_101"},
		{"No location clue here", models.LocationUnknown},
	}
	for _, tt := range tests {
		if got := inferLocationFromText(tt.text); got != tt.want {
			t.Errorf("inferLocationFromText(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestInferLocationFromAP(t *testing.T) {
	tests := []struct {
		apID string
		want string
	}{
		{"AP_LAB_1", "LAB_101"},
		{"AP_GYM_3", "GYM_AREA"},
		{"not-an-ap-id", models.LocationUnknown},
	}
	for _, tt := range tests {
		if got := inferLocationFromAP(tt.apID); got != tt.want {
			t.Errorf("inferLocationFromAP(%q) = %q, want %q", tt.apID, got, tt.want)
		}
	}
}

// FuseAll fans out across entities and aggregates Stats.
func TestFuseAllAggregatesStats(t *testing.T) {
	eng := New(testConfig())
	entities := map[string]models.ResolvedEntity{
		"unified_entity_000001": unifiedEntity("unified_entity_000001", "C100"),
		"unified_entity_000002": unifiedEntity("unified_entity_000002", "C200"),
	}
	tables := extractor.Tables{
		CardSwipes: []extractor.CardSwipeRow{
			{CardID: "C100", LocationID: "LAB_101", Timestamp: "2025-01-02T09:00:00Z"},
			{CardID: "C200", LocationID: "GYM", Timestamp: "2025-01-02T09:00:00Z"},
		},
	}

	results, err := eng.FuseAll(context.Background(), entities, tables)
	if err != nil {
		t.Fatalf("FuseAll() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}

	stats := eng.Stats()
	if stats.EntitiesProcessed != 2 || stats.RecordsProduced != 2 {
		t.Errorf("Stats() = %+v, want 2 entities / 2 records produced", stats)
	}
}
