// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/campustrace/resolve/internal/config"
	"github.com/campustrace/resolve/internal/extractor"
	"github.com/campustrace/resolve/internal/fusion"
	"github.com/campustrace/resolve/internal/logging"
	"github.com/campustrace/resolve/internal/metrics"
	"github.com/campustrace/resolve/internal/models"
	"github.com/campustrace/resolve/internal/predict"
	"github.com/campustrace/resolve/internal/resolver"
	"github.com/campustrace/resolve/internal/timeline"
)

// ResolvedEntityTable is the read-mostly snapshot published by
// ResolveEntities: a completed clustering run, never mutated in place.
type ResolvedEntityTable = map[string]models.ResolvedEntity

// ProfileIndex maps a UnifiedID to the resolved entity's primary
// profile, the shape the predictive monitor's Train expects in place
// of the original prototype's raw entity_id keying.
type ProfileIndex = map[string]models.EntityRecord

// EntityResult is one entity's outcome from a full Run: its fused
// records, built timeline, rolling summary, optional point prediction,
// and any anomalies raised against its recent activity. Complete is
// false when the per-entity deadline was hit before every stage
// finished.
type EntityResult struct {
	UnifiedID  string
	Fusion     []models.FusionRecord
	Timeline   []models.TimelineEvent
	Summary    models.TimelineSummary
	Prediction *models.Prediction
	Anomalies  []models.AnomalyAlert
	Complete   bool
}

// Context is the explicit pipeline context threaded through every
// stage in place of the original prototype's module-level table and
// profile dictionaries. The resolved-entity table and its derived
// profile index are read-mostly after construction; any replacement is
// published atomically under publishMu, so a reader never observes a
// half-built table.
type Context struct {
	cfg config.Config
	log zerolog.Logger

	extractor *extractor.Extractor
	resolver  *resolver.Resolver
	fusion    *fusion.Engine
	timeline  *timeline.Builder
	predict   *predict.Monitor

	publishMu sync.Mutex
	entities  atomic.Pointer[ResolvedEntityTable]
	profiles  atomic.Pointer[ProfileIndex]
	metrics   atomic.Pointer[predict.Metrics]
}

// New wires one Context from a fully-loaded configuration. seed fixes
// the predictive monitor's training randomness.
func New(cfg config.Config, seed int64) (*Context, error) {
	ext, err := extractor.New(cfg.Extractor)
	if err != nil {
		return nil, fmt.Errorf("construct pipeline: %w", err)
	}

	return &Context{
		cfg: cfg,
		log: logging.WithComponent("pipeline"),
		extractor: ext,
		resolver: resolver.New(resolver.Config{
			NameSimilarityThreshold: cfg.Resolver.NameSimilarityThreshold,
			FuzzyMatchThreshold:     cfg.Resolver.FuzzyMatchThreshold,
			TimeWindowMinutes:       cfg.Resolver.TimeWindowMinutes,
			MatchCacheSize:          cfg.Resolver.MatchCacheSize,
			BlockingEnabled:         cfg.Resolver.BlockingEnabled,
		}),
		fusion: fusion.New(fusion.Config{
			ConfidenceThreshold:     cfg.Fusion.ConfidenceThreshold,
			MaxTimeGapMinutes:       float64(cfg.Fusion.MaxTimeGapMinutes),
			FaceSimilarityThreshold: cfg.Fusion.FaceSimilarityThreshold,
			WorkerPoolSize:          cfg.Fusion.WorkerPoolSize,
		}),
		timeline: timeline.New(timeline.Config{
			MaxGapHours:        cfg.Timeline.MaxGapHours,
			SummaryWindowHours: cfg.Timeline.SummaryWindowHours,
			MergeWindowMinutes: cfg.Timeline.MergeWindowMinutes,
		}),
		predict: predict.New(cfg.Prediction, cfg.Store, seed),
	}, nil
}

// Close releases the extractor's embedded DuckDB connection.
func (c *Context) Close() error {
	return c.extractor.Close()
}

// Extract delegates to the extractor, turning raw table rows into the
// EntityRecord population the resolver clusters.
func (c *Context) Extract(ctx context.Context, tables extractor.Tables) ([]models.EntityRecord, error) {
	return c.extractor.Extract(ctx, tables)
}

// ResolveEntities clusters records into ResolvedEntitys and publishes
// the result as the pipeline's current resolved-entity table, along
// with the derived UnifiedID -> primary-profile index Train consumes.
func (c *Context) ResolveEntities(records []models.EntityRecord) ResolvedEntityTable {
	start := time.Now()
	defer func() { metrics.ObserveStage("resolve", time.Since(start)) }()

	resolved := c.resolver.Resolve(records)

	profiles := make(ProfileIndex, len(resolved))
	for unifiedID, entity := range resolved {
		profiles[unifiedID] = entity.PrimaryProfile
	}

	c.publishMu.Lock()
	c.entities.Store(&resolved)
	c.profiles.Store(&profiles)
	c.publishMu.Unlock()

	c.log.Info().Int("records", len(records)).Int("resolved_entities", len(resolved)).Msg("published resolved-entity table")

	return resolved
}

// GetEntity looks up one resolved entity from the currently published
// table by identifier, optionally restricted to a single identifier
// kind.
func (c *Context) GetEntity(identifier, kind string) (models.ResolvedEntity, bool) {
	return c.resolver.GetEntity(identifier, kind)
}

// Entities returns the currently published resolved-entity table.
func (c *Context) Entities() ResolvedEntityTable {
	if table := c.entities.Load(); table != nil {
		return *table
	}
	return nil
}

// Train fits the predictive monitor against fusion records, using the
// published profile index built by the last ResolveEntities call.
func (c *Context) Train(records []models.FusionRecord) (predict.Metrics, error) {
	profiles := ProfileIndex(nil)
	if p := c.profiles.Load(); p != nil {
		profiles = *p
	}
	trained, err := c.predict.Train(records, profiles)
	if err != nil {
		return predict.Metrics{}, err
	}
	c.metrics.Store(&trained)
	return trained, nil
}

// IsTrained reports whether the predictive monitor currently holds a
// usable model.
func (c *Context) IsTrained() bool {
	return c.predict.IsTrained()
}

// SaveModel persists the trained predictive model via the configured
// store.
func (c *Context) SaveModel() error {
	return c.predict.Save()
}

// LoadModel restores a previously persisted predictive model. The
// monitor is left untrained on failure, matching the model-load-failure
// error kind.
func (c *Context) LoadModel() error {
	return c.predict.Load()
}

// Run executes the full per-entity pipeline — fuse, build timeline,
// summarise, optionally predict at predictAt, and check for anomalies
// — for one resolved entity, bounded by the configured per-entity
// query timeout. The three cancellation checkpoints named in the
// concurrency model (after cluster formation, before each gap event,
// before each prediction call) are honoured by the underlying fusion
// and timeline calls and by the guard immediately before Predict.
func (c *Context) Run(ctx context.Context, entity models.ResolvedEntity, tables extractor.Tables, predictAt *time.Time) *EntityResult {
	start := time.Now()
	defer func() { metrics.ObserveStage("run", time.Since(start)) }()

	timeout := time.Duration(c.cfg.Pipeline.QueryTimeoutSeconds * float64(time.Second))
	entityCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := &EntityResult{UnifiedID: entity.UnifiedID, Complete: true}
	defer func() {
		metrics.EntitiesProcessed.WithLabelValues(fmt.Sprintf("%t", result.Complete)).Inc()
	}()

	fusionRecords, complete := c.fusion.FuseEntity(entityCtx, entity, tables)
	result.Fusion = fusionRecords
	if !complete {
		c.log.Warn().Str("unified_id", entity.UnifiedID).Msg("fusion stage incomplete before deadline")
		result.Complete = false
		return result
	}

	timelineEvents, complete := c.timeline.Build(entityCtx, entity.UnifiedID, fusionRecords, nil, nil)
	result.Timeline = timelineEvents
	if !complete {
		c.log.Warn().Str("unified_id", entity.UnifiedID).Msg("timeline stage incomplete before deadline")
		result.Complete = false
		return result
	}
	result.Summary = c.timeline.Summarise(entity.UnifiedID, timelineEvents, 0)

	if c.predict.IsTrained() {
		result.Anomalies = c.predict.DetectAnomalies(fusionRecords, entity.PrimaryProfile)
		for _, alert := range result.Anomalies {
			metrics.AnomaliesRaised.WithLabelValues(alert.AlertType).Inc()
		}

		if predictAt != nil {
			if err := entityCtx.Err(); err != nil {
				result.Complete = false
				return result
			}
			prediction, err := c.predict.Predict(entity.UnifiedID, *predictAt, fusionRecords, entity.PrimaryProfile)
			if err == nil {
				result.Prediction = prediction
			}
		}
	}

	return result
}

// RunAll fans Run out across every entity in entities, bounded to
// cfg.Pipeline.WorkerPoolSize (defaulting to GOMAXPROCS), mirroring the
// fusion engine's own per-entity fan-out. No cross-entity state is
// written during fan-out; each result is keyed by UnifiedID.
func (c *Context) RunAll(ctx context.Context, entities ResolvedEntityTable, tables extractor.Tables, predictAt *time.Time) map[string]*EntityResult {
	limit := c.cfg.Pipeline.WorkerPoolSize
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)

	results := make(map[string]*EntityResult, len(entities))
	var mu sync.Mutex

	for unifiedID, entity := range entities {
		eg.Go(func() error {
			result := c.Run(egCtx, entity, tables, predictAt)
			mu.Lock()
			results[unifiedID] = result
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait() // Run never returns an error; per-entity failure is Complete=false

	return results
}

// Stats aggregates the last run's diagnostic counters from every
// stage, the pipeline-level analogue of each component's own Stats
// accessor.
type Stats struct {
	Resolver resolver.Stats
	Fusion   fusion.Stats
	Timeline timeline.Stats
	Predict  predict.Stats
}

// Stats returns a snapshot of every stage's last-run diagnostics.
func (c *Context) Stats() Stats {
	return Stats{
		Resolver: c.resolver.Stats(),
		Fusion:   c.fusion.Stats(),
		Timeline: c.timeline.Stats(),
		Predict:  c.predict.Stats(),
	}
}
