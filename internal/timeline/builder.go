// SPDX-License-Identifier: AGPL-3.0-or-later

package timeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/campustrace/resolve/internal/logging"
	"github.com/campustrace/resolve/internal/models"
)

// Config tunes the timeline builder's merge and gap rules.
type Config struct {
	MaxGapHours        float64
	SummaryWindowHours float64
	MergeWindowMinutes float64
}

// Builder turns an entity's FusionRecords into a chronological timeline
// and windowed natural-language summaries.
type Builder struct {
	cfg Config
	log zerolog.Logger

	mu    sync.Mutex
	stats Stats
}

// Stats is a diagnostic accessor over the last Build call.
type Stats struct {
	RecordsConsidered int
	EventsProduced    int
	GapsInserted      int
}

// New constructs a Builder.
func New(cfg Config) *Builder {
	return &Builder{cfg: cfg, log: logging.WithComponent("timeline")}
}

// Build generates a chronological timeline from fused records,
// optionally bounded to [start, end]. A nil bound is unrestricted on
// that side. The returned bool is false when ctx was cancelled before
// every gap event had been inserted, in which case events holds
// whatever had been produced so far.
func (b *Builder) Build(ctx context.Context, entityID string, records []models.FusionRecord, start, end *time.Time) ([]models.TimelineEvent, bool) {
	b.log.Info().Str("entity_id", entityID).Int("records", len(records)).Msg("generating timeline")

	filtered := filterByTimeRange(records, start, end)
	if len(filtered) == 0 {
		b.log.Warn().Str("entity_id", entityID).Msg("no records in requested time range")
		b.recordStats(len(records), 0, 0)
		return nil, true
	}

	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Timestamp.Before(filtered[j].Timestamp) })

	events := convertToEvents(filtered)
	merged := mergeRelatedEvents(events, b.cfg.MergeWindowMinutes)
	withGaps, complete := detectGaps(ctx, merged, b.cfg.MaxGapHours)

	b.recordStats(len(records), len(withGaps), len(withGaps)-len(merged))
	b.log.Info().Str("entity_id", entityID).Int("events", len(withGaps)).Msg("timeline generated")
	return withGaps, complete
}

func (b *Builder) recordStats(considered, produced, gaps int) {
	b.mu.Lock()
	b.stats = Stats{RecordsConsidered: considered, EventsProduced: produced, GapsInserted: gaps}
	b.mu.Unlock()
}

// Stats returns the last Build call's diagnostic counters.
func (b *Builder) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func filterByTimeRange(records []models.FusionRecord, start, end *time.Time) []models.FusionRecord {
	if start == nil && end == nil {
		return records
	}
	filtered := make([]models.FusionRecord, 0, len(records))
	for _, r := range records {
		if start != nil && r.Timestamp.Before(*start) {
			continue
		}
		if end != nil && r.Timestamp.After(*end) {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}
