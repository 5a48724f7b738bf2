// SPDX-License-Identifier: AGPL-3.0-or-later

package resolver

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/campustrace/resolve/internal/logging"
	"github.com/campustrace/resolve/internal/models"
)

// Config tunes the resolver's matching and clustering behaviour.
type Config struct {
	NameSimilarityThreshold float64
	FuzzyMatchThreshold     float64
	TimeWindowMinutes       int
	MatchCacheSize          int
	BlockingEnabled         bool
}

// Resolver clusters EntityRecords into ResolvedEntitys. It owns the
// similarity graph and the resolved entity table; neither is shared
// with any other pipeline stage.
type Resolver struct {
	cfg   Config
	cache *matchCache

	log zerolog.Logger

	mu       sync.RWMutex
	entities map[string]models.ResolvedEntity

	stats Stats
}

// Stats mirrors entity_resolver.py's resolution-run statistics, kept
// as a diagnostic accessor per SPEC_FULL.md.
type Stats struct {
	RecordsConsidered int
	MatchesFound      int
	ClustersFormed    int
	ResolvedEntities  int
}

// New constructs a Resolver with the given configuration.
func New(cfg Config) *Resolver {
	return &Resolver{
		cfg:      cfg,
		cache:    newMatchCache(cfg.MatchCacheSize),
		entities: make(map[string]models.ResolvedEntity),
		log:      logging.WithComponent("resolver"),
	}
}

// Resolve clusters the given records into unified ResolvedEntitys and
// replaces the resolver's current table with the result. It is safe to
// call again; the new table atomically replaces the old one.
func (r *Resolver) Resolve(records []models.EntityRecord) map[string]models.ResolvedEntity {
	r.log.Info().Int("records", len(records)).Msg("starting entity resolution")

	matches := r.findMatches(records)

	graph := newSimilarityGraph()
	for _, rec := range records {
		graph.addNode(rec.RecordID)
	}
	for _, m := range matches {
		graph.addEdge(m.SourceID, m.TargetID, m.Confidence)
	}

	components := graph.connectedComponents()
	byID := make(map[string]models.EntityRecord, len(records))
	for _, rec := range records {
		byID[rec.RecordID] = rec
	}

	evidenceByPair := edgeEvidence(matches)

	resolved := make(map[string]models.ResolvedEntity)
	clustersFormed := 0
	unifiedSeq := 0
	for _, component := range components {
		weight := 1.0 // singleton components are kept at full confidence
		if len(component) > 1 {
			weight = graph.meanEdgeWeight(component)
			// Can't trigger in practice: every edge in the graph was
			// already emitted at >= FuzzyMatchThreshold (see
			// compare.go), so a multi-node component's mean can never
			// fall below it. Kept as a guard against a future scoring
			// path that emits sub-threshold edges.
			if weight < r.cfg.FuzzyMatchThreshold {
				continue
			}
		}
		clustersFormed++
		unifiedSeq++
		entity := contractCluster(component, byID, evidenceByPair, unifiedSeq)
		entity.Confidence = weight
		resolved[entity.UnifiedID] = entity
	}

	r.mu.Lock()
	r.entities = resolved
	r.stats = Stats{
		RecordsConsidered: len(records),
		MatchesFound:      len(matches),
		ClustersFormed:    clustersFormed,
		ResolvedEntities:  len(resolved),
	}
	r.mu.Unlock()

	r.log.Info().
		Int("matches", len(matches)).
		Int("clusters", clustersFormed).
		Int("resolved_entities", len(resolved)).
		Msg("entity resolution complete")

	return resolved
}

// findMatches runs the pairwise comparison rules over blocked
// candidate pairs, plus every pair sharing a direct identifier found
// through a reverse index.
func (r *Resolver) findMatches(records []models.EntityRecord) []models.EntityMatch {
	cmpCfg := ComparisonConfig{
		NameSimilarityThreshold: r.cfg.NameSimilarityThreshold,
		FuzzyMatchThreshold:     r.cfg.FuzzyMatchThreshold,
		TimeWindowMinutes:       r.cfg.TimeWindowMinutes,
	}

	candidates := r.candidatePairs(records)

	var matches []models.EntityMatch
	seen := make(map[string]bool, len(candidates))
	for _, pair := range candidates {
		key := pairKey(records[pair[0]].RecordID, records[pair[1]].RecordID)
		if seen[key] {
			continue
		}
		seen[key] = true

		// The cache stores only the scalar confidence, so a cached miss
		// (below threshold) short-circuits without touching compare();
		// a cached hit still calls compare() once to rebuild the
		// evidence map an EntityMatch needs.
		if cached, ok := r.cache.Get(key); ok {
			if cached >= r.cfg.FuzzyMatchThreshold {
				if m, ok := compare(records[pair[0]], records[pair[1]], cmpCfg); ok {
					matches = append(matches, m)
				}
			}
			continue
		}

		m, ok := compare(records[pair[0]], records[pair[1]], cmpCfg)
		if !ok {
			r.cache.Add(key, 0)
			continue
		}
		r.cache.Add(key, m.Confidence)
		matches = append(matches, m)
	}
	return matches
}

// candidatePairs returns index pairs into records that should be
// compared: same-blocking-bucket pairs, plus all pairs that share a
// non-empty direct identifier (found via a reverse index, bypassing
// blocking).
func (r *Resolver) candidatePairs(records []models.EntityRecord) [][2]int {
	var pairs [][2]int

	if r.cfg.BlockingEnabled {
		buckets := make(map[string][]int)
		for i, rec := range records {
			key := blockingKey(rec)
			buckets[key] = append(buckets[key], i)
		}
		for _, idxs := range buckets {
			pairs = append(pairs, allPairs(idxs)...)
		}
	} else {
		pairs = append(pairs, allPairs(indexRange(len(records)))...)
	}

	for _, field := range []func(models.EntityRecord) string{
		func(r models.EntityRecord) string { return r.EntityID },
		func(r models.EntityRecord) string { return r.CardID },
		func(r models.EntityRecord) string { return r.DeviceHash },
		func(r models.EntityRecord) string { return r.FaceID },
	} {
		reverse := make(map[string][]int)
		for i, rec := range records {
			if v := field(rec); v != "" {
				reverse[v] = append(reverse[v], i)
			}
		}
		for _, idxs := range reverse {
			pairs = append(pairs, allPairs(idxs)...)
		}
	}

	return pairs
}

func indexRange(n int) []int {
	idxs := make([]int, n)
	for i := range idxs {
		idxs[i] = i
	}
	return idxs
}

func allPairs(idxs []int) [][2]int {
	var pairs [][2]int
	for i := 0; i < len(idxs); i++ {
		for j := i + 1; j < len(idxs); j++ {
			pairs = append(pairs, [2]int{idxs[i], idxs[j]})
		}
	}
	return pairs
}

// contractCluster merges one connected component's records into a
// single ResolvedEntity. The lexicographically smallest non-empty
// entity_id owns the primary profile; the caller fills in Confidence
// from the component's mean edge weight.
func contractCluster(component []string, byID map[string]models.EntityRecord, evidenceByPair map[string]models.EntityMatch, seq int) models.ResolvedEntity {
	entity := models.ResolvedEntity{
		UnifiedID:   fmt.Sprintf("unified_entity_%06d", seq),
		EntityIDs:   make(map[string]struct{}),
		Names:       make(map[string]struct{}),
		Identifiers: make(map[string]map[string]struct{}),
	}

	inComponent := make(map[string]bool, len(component))
	for _, id := range component {
		inComponent[id] = true
	}
	for pair, m := range evidenceByPair {
		if inComponent[m.SourceID] && inComponent[m.TargetID] {
			if entity.MatchEvidence == nil {
				entity.MatchEvidence = make(map[string]models.EntityMatch)
			}
			entity.MatchEvidence[pair] = m
		}
	}

	var profileIDs []string
	profiles := make(map[string]models.EntityRecord)

	for _, recordID := range component {
		rec, ok := byID[recordID]
		if !ok {
			continue
		}
		if rec.EntityID != "" {
			entity.EntityIDs[rec.EntityID] = struct{}{}
		}
		if rec.Name != "" {
			entity.Names[rec.Name] = struct{}{}
		}
		entity.AddIdentifier("card_ids", rec.CardID)
		entity.AddIdentifier("device_hashes", rec.DeviceHash)
		entity.AddIdentifier("face_ids", rec.FaceID)
		entity.AddIdentifier("student_ids", rec.StudentID)
		entity.AddIdentifier("staff_ids", rec.StaffID)
		entity.AddIdentifier("emails", rec.Email)

		if rec.Dataset == models.DatasetProfiles {
			profileIDs = append(profileIDs, rec.EntityID)
			profiles[rec.EntityID] = rec
		}
	}

	if len(profileIDs) > 0 {
		sort.Strings(profileIDs)
		entity.PrimaryProfile = profiles[profileIDs[0]]
	}

	return entity
}

// GetEntity scans the current resolved entity table for one matching
// identifier, optionally restricted to a single identifier kind.
func (r *Resolver) GetEntity(identifier, kind string) (models.ResolvedEntity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, entity := range r.entities {
		if _, ok := entity.EntityIDs[identifier]; ok && (kind == "" || kind == "entity_id") {
			return entity, true
		}
		if kind == "" {
			for _, set := range entity.Identifiers {
				if _, ok := set[identifier]; ok {
					return entity, true
				}
			}
			continue
		}
		if set, ok := entity.Identifiers[kind]; ok {
			if _, ok := set[identifier]; ok {
				return entity, true
			}
		}
	}
	return models.ResolvedEntity{}, false
}

// Entities returns a snapshot of the current resolved entity table.
func (r *Resolver) Entities() map[string]models.ResolvedEntity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot := make(map[string]models.ResolvedEntity, len(r.entities))
	for k, v := range r.entities {
		snapshot[k] = v
	}
	return snapshot
}

// Stats returns the last Resolve call's diagnostic counters.
func (r *Resolver) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}
