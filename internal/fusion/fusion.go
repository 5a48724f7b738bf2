// SPDX-License-Identifier: AGPL-3.0-or-later

package fusion

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/campustrace/resolve/internal/extractor"
	"github.com/campustrace/resolve/internal/logging"
	"github.com/campustrace/resolve/internal/models"
)

// Config tunes the fusion engine's clustering and confidence rules.
type Config struct {
	ConfidenceThreshold     float64
	MaxTimeGapMinutes       float64
	FaceSimilarityThreshold float64
	WorkerPoolSize          int
}

// Engine fuses resolved entities' raw observations into FusionRecords.
// Per-entity runs are independent and fanned out across a bounded
// worker pool.
type Engine struct {
	cfg Config
	log zerolog.Logger

	mu    sync.RWMutex
	stats Stats
}

// Stats mirrors generate_activity_summary's run-level counters, kept as
// a diagnostic accessor.
type Stats struct {
	EntitiesProcessed int
	RecordsProduced   int
	RecordsFiltered   int
}

// New constructs a fusion Engine.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg, log: logging.WithComponent("fusion")}
}

// FuseEntity runs the per-entity fusion pipeline for a single resolved
// entity: extract activity events, temporally cluster them, reduce each
// cluster to a FusionRecord, and drop records below confidence_threshold.
// The returned bool is false when ctx was cancelled between cluster
// formation and cluster reduction, in which case records is whatever
// had already been reduced.
func (eng *Engine) FuseEntity(ctx context.Context, entity models.ResolvedEntity, tables extractor.Tables) ([]models.FusionRecord, bool) {
	records, _, complete := eng.fuseEntityDetailed(ctx, entity, tables)
	return records, complete
}

// fuseEntityDetailed is FuseEntity plus the count of clusters dropped by
// the confidence filter, used to keep Stats honest.
func (eng *Engine) fuseEntityDetailed(ctx context.Context, entity models.ResolvedEntity, tables extractor.Tables) ([]models.FusionRecord, int, bool) {
	events := extractActivityEvents(entity, tables)
	if len(events) == 0 {
		return nil, 0, true
	}

	refs := buildFaceReferences(entity, tables.FaceEmbeddings)
	clusters := clusterTemporalEvents(events, eng.cfg.MaxTimeGapMinutes)

	// Cancellation checkpoint between cluster formation and cluster
	// reduction, per the pipeline's concurrency model.
	if err := ctx.Err(); err != nil {
		return nil, 0, false
	}

	records := make([]models.FusionRecord, 0, len(clusters))
	filtered := 0
	for _, cluster := range clusters {
		record := fuseCluster(cluster, eng.cfg.MaxTimeGapMinutes, eng.cfg.FaceSimilarityThreshold, refs)
		if record.Confidence >= eng.cfg.ConfidenceThreshold {
			records = append(records, record)
		} else {
			filtered++
		}
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Timestamp.Before(records[j].Timestamp) })
	return records, filtered, true
}

// FuseAll runs FuseEntity across every resolved entity concurrently,
// bounded to cfg.WorkerPoolSize (defaulting to GOMAXPROCS), the Go
// analogue of the source's single-threaded per-entity loop.
func (eng *Engine) FuseAll(ctx context.Context, entities map[string]models.ResolvedEntity, tables extractor.Tables) (map[string][]models.FusionRecord, error) {
	limit := eng.cfg.WorkerPoolSize
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	eng.log.Info().Int("entities", len(entities)).Int("worker_pool_size", limit).Msg("starting fusion run")

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)

	results := make(map[string][]models.FusionRecord, len(entities))
	var mu sync.Mutex
	var produced, filtered int

	for unifiedID, entity := range entities {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			records, droppedByFilter, _ := eng.fuseEntityDetailed(egCtx, entity, tables)

			mu.Lock()
			results[unifiedID] = records
			produced += len(records)
			filtered += droppedByFilter
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("fuse entities: %w", err)
	}

	eng.mu.Lock()
	eng.stats = Stats{
		EntitiesProcessed: len(entities),
		RecordsProduced:   produced,
		RecordsFiltered:   filtered,
	}
	eng.mu.Unlock()

	eng.log.Info().Int("records_produced", produced).Msg("fusion run complete")
	return results, nil
}

// Stats returns the last FuseAll call's diagnostic counters.
func (eng *Engine) Stats() Stats {
	eng.mu.RLock()
	defer eng.mu.RUnlock()
	return eng.stats
}
