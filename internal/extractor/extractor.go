// SPDX-License-Identifier: AGPL-3.0-or-later

package extractor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/sony/gobreaker/v2"

	"github.com/campustrace/resolve/internal/config"
	"github.com/campustrace/resolve/internal/logging"
	"github.com/campustrace/resolve/internal/metrics"
	"github.com/campustrace/resolve/internal/models"
)

// Extractor turns parsed table rows into the EntityRecord population.
// Secondary-source aggregation (first/last seen, location set, row
// count per distinct key) runs as a GROUP BY query against an
// in-process DuckDB connection, rather than a hand-rolled Go groupby.
type Extractor struct {
	db       *sql.DB
	breakers map[string]*gobreaker.CircuitBreaker[[]models.EntityRecord]
	cfg      config.ExtractorConfig
}

// New opens the DuckDB connection used for aggregation queries, at
// cfg.DuckDBPath (an empty path opens an in-memory database). The
// connection is private to this Extractor and closed by Close.
func New(cfg config.ExtractorConfig) (*Extractor, error) {
	path := cfg.DuckDBPath
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb connection: %w", err)
	}
	return &Extractor{
		db:       db,
		breakers: make(map[string]*gobreaker.CircuitBreaker[[]models.EntityRecord]),
		cfg:      cfg,
	}, nil
}

// Close releases the DuckDB connection.
func (e *Extractor) Close() error {
	return e.db.Close()
}

// Extract builds the complete EntityRecord population: one record per
// profile row, plus one aggregated record per distinct key for every
// secondary source present in tables.
func (e *Extractor) Extract(ctx context.Context, tables Tables) ([]models.EntityRecord, error) {
	start := time.Now()
	defer func() { metrics.ObserveStage("extract", time.Since(start)) }()

	records := make([]models.EntityRecord, 0, len(tables.Profiles))

	for _, p := range tables.Profiles {
		records = append(records, models.EntityRecord{
			RecordID:   "profile_" + p.EntityID,
			Dataset:    models.DatasetProfiles,
			EntityID:   p.EntityID,
			Name:       p.Name,
			Email:      p.Email,
			Role:       p.Role,
			Department: p.Department,
			StudentID:  p.StudentID,
			StaffID:    p.StaffID,
			CardID:     p.CardID,
			DeviceHash: p.DeviceHash,
			FaceID:     p.FaceID,
		})
	}

	cardRecords, err := e.loadSource(ctx, "card_swipes", func(ctx context.Context) ([]models.EntityRecord, error) {
		return e.extractCardSwipes(ctx, tables.CardSwipes)
	})
	if err != nil {
		return nil, err
	}
	records = append(records, cardRecords...)

	wifiRecords, err := e.loadSource(ctx, "wifi_logs", func(ctx context.Context) ([]models.EntityRecord, error) {
		return e.extractWiFiLogs(ctx, tables.WiFiLogs)
	})
	if err != nil {
		return nil, err
	}
	records = append(records, wifiRecords...)

	cctvRecords, err := e.loadSource(ctx, "cctv_frames", func(ctx context.Context) ([]models.EntityRecord, error) {
		return e.extractCCTVFrames(ctx, tables.CCTVFrames)
	})
	if err != nil {
		return nil, err
	}
	records = append(records, cctvRecords...)

	noteRecords, err := e.loadSource(ctx, "notes", func(ctx context.Context) ([]models.EntityRecord, error) {
		return e.extractNotes(ctx, tables.Notes)
	})
	if err != nil {
		return nil, err
	}
	records = append(records, noteRecords...)

	labRecords, err := e.loadSource(ctx, "lab_bookings", func(ctx context.Context) ([]models.EntityRecord, error) {
		return e.extractLabBookings(ctx, tables.LabBookings)
	})
	if err != nil {
		return nil, err
	}
	records = append(records, labRecords...)

	libraryRecords, err := e.loadSource(ctx, "library_checkouts", func(ctx context.Context) ([]models.EntityRecord, error) {
		return e.extractLibraryCheckouts(ctx, tables.LibraryCheckouts)
	})
	if err != nil {
		return nil, err
	}
	records = append(records, libraryRecords...)

	// face_embeddings never produces a standalone EntityRecord: a raw
	// embedding carries no identity field to key an aggregate on, only
	// a face_id that fusion's face-bonus path consumes directly from
	// tables.FaceEmbeddings.
	return records, nil
}

// loadSource runs one secondary source's aggregation query behind a
// circuit breaker keyed by source name. A tripped breaker degrades the
// source to "tolerated as absent" rather than failing the whole
// extraction.
func (e *Extractor) loadSource(ctx context.Context, source string, load func(context.Context) ([]models.EntityRecord, error)) ([]models.EntityRecord, error) {
	if timeout := e.cfg.SourceLoadTimeout; timeout > 0 {
		loadCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		ctx = loadCtx
	}

	records, err := e.breakerFor(source).Execute(func() ([]models.EntityRecord, error) {
		return load(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logging.CtxWarn(ctx).Str("source", source).Err(err).Msg("source load circuit open, treating as absent")
			metrics.ExtractorSourceTripped.WithLabelValues(source).Inc()
			return nil, nil
		}
		return nil, fmt.Errorf("load %s: %w", source, err)
	}
	return records, nil
}

// breakerFor returns (creating if necessary) the circuit breaker
// guarding one named source's load path, so a misbehaving source
// degrades to "tolerated as absent" instead of blocking the other
// five.
func (e *Extractor) breakerFor(source string) *gobreaker.CircuitBreaker[[]models.EntityRecord] {
	if b, ok := e.breakers[source]; ok {
		return b
	}
	maxRequests := e.cfg.BreakerMaxRequests
	if maxRequests == 0 {
		maxRequests = 1
	}
	interval := e.cfg.BreakerInterval
	if interval == 0 {
		interval = 60 * time.Second
	}
	timeout := e.cfg.BreakerTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	b := gobreaker.NewCircuitBreaker[[]models.EntityRecord](gobreaker.Settings{
		Name:        source,
		MaxRequests: maxRequests,
		Interval:    interval,
		Timeout:     timeout,
	})
	e.breakers[source] = b
	return b
}

// parseTimestamp parses an RFC3339 timestamp, logging and signalling
// failure rather than aborting the caller's extraction loop.
func parseTimestamp(ctx context.Context, source, raw string) (time.Time, bool) {
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		logging.CtxDebug(ctx).Err(err).Str("source", source).Str("raw_timestamp", raw).Msg("dropping row with malformed timestamp")
		return time.Time{}, false
	}
	return ts, true
}
