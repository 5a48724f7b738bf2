// Package main is the entry point for the campuscore batch pipeline.
//
// campuscore runs the four-stage offline pipeline — entity resolution,
// multi-modal fusion, timeline generation, and predictive monitoring —
// over a bounded, time-stamped batch of campus observation tables
// supplied as a single JSON document, and prints the resolved entities
// and per-entity results as JSON.
//
// # Input shape
//
// The input document is the JSON encoding of extractor.Tables: arrays
// of rows under "Profiles", "CardSwipes", "CCTVFrames", "WiFiLogs",
// "LabBookings", "LibraryCheckouts", "Notes", and "FaceEmbeddings".
// Reading that document from CSV or any other upstream format is
// outside the core pipeline's scope.
//
// # Example usage
//
//	campuscore -input campus.json -train -predict-at 2025-01-10T09:00:00Z
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"

	"github.com/campustrace/resolve/internal/config"
	"github.com/campustrace/resolve/internal/extractor"
	"github.com/campustrace/resolve/internal/logging"
	"github.com/campustrace/resolve/internal/models"
	"github.com/campustrace/resolve/internal/pipeline"
)

// report is the JSON-encoded shape printed to stdout: the resolved
// entity table plus every entity's pipeline result.
type report struct {
	Entities map[string]models.ResolvedEntity  `json:"entities"`
	Results  map[string]*pipeline.EntityResult `json:"results,omitempty"`
	Stats    pipeline.Stats                    `json:"stats"`
	Metrics  *predictMetrics                   `json:"training_metrics,omitempty"`
}

type predictMetrics struct {
	LocationAccuracy float64 `json:"location_accuracy"`
	ActivityAccuracy float64 `json:"activity_accuracy"`
	TrainingSamples  int     `json:"training_samples"`
	TestSamples      int     `json:"test_samples"`
	OutlierThreshold float64 `json:"outlier_threshold"`
}

func main() {
	inputPath := flag.String("input", "", "path to a JSON document holding the observation tables")
	seed := flag.Int64("seed", 42, "predictive monitor training seed")
	train := flag.Bool("train", false, "train the predictive monitor over this batch's fusion records before running")
	predictAtFlag := flag.String("predict-at", "", "RFC3339 timestamp to predict each entity's location/activity at, once trained")
	loadModel := flag.Bool("load-model", false, "load a previously persisted model instead of training")
	saveModel := flag.Bool("save-model", false, "persist the trained model after a successful -train run")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Caller: cfg.Logging.Caller, Timestamp: cfg.Logging.Timestamp})

	if *inputPath == "" {
		logging.Fatal().Msg("-input is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logging.ContextWithNewCorrelationID(ctx)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.CtxInfo(ctx).Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	tables, err := loadTables(*inputPath)
	if err != nil {
		logging.Fatal().Err(err).Str("path", *inputPath).Msg("failed to load input tables")
	}

	pc, err := pipeline.New(*cfg, *seed)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to construct pipeline")
	}
	defer func() {
		if err := pc.Close(); err != nil {
			logging.CtxError(ctx).Err(err).Msg("error closing pipeline")
		}
	}()

	records, err := pc.Extract(ctx, tables)
	if err != nil {
		logging.Fatal().Err(err).Msg("extraction failed")
	}
	logging.CtxInfo(ctx).Int("records", len(records)).Msg("extraction complete")

	entities := pc.ResolveEntities(records)
	logging.CtxInfo(ctx).Int("resolved_entities", len(entities)).Msg("entity resolution complete")

	if *loadModel {
		if err := pc.LoadModel(); err != nil {
			logging.CtxWarn(ctx).Err(err).Msg("failed to load persisted model, continuing untrained")
		}
	}

	out := report{Entities: entities}

	if *train {
		var trainingRecords []models.FusionRecord
		for unifiedID, entity := range entities {
			preview := pc.Run(ctx, entity, tables, nil)
			if !preview.Complete {
				logging.CtxWarn(ctx).Str("unified_id", unifiedID).Msg("fusion incomplete before training, using partial records")
			}
			trainingRecords = append(trainingRecords, preview.Fusion...)
		}
		metrics, err := pc.Train(trainingRecords)
		if err != nil {
			logging.CtxError(ctx).Err(err).Msg("training failed, continuing untrained")
		} else {
			out.Metrics = &predictMetrics{
				LocationAccuracy: metrics.LocationAccuracy,
				ActivityAccuracy: metrics.ActivityAccuracy,
				TrainingSamples:  metrics.TrainingSamples,
				TestSamples:      metrics.TestSamples,
				OutlierThreshold: metrics.OutlierThreshold,
			}
			logging.CtxInfo(ctx).
				Float64("location_accuracy", metrics.LocationAccuracy).
				Float64("activity_accuracy", metrics.ActivityAccuracy).
				Msg("predictive monitor trained")

			if *saveModel {
				if err := pc.SaveModel(); err != nil {
					logging.CtxError(ctx).Err(err).Msg("failed to persist trained model")
				}
			}
		}
	}

	var predictAt *time.Time
	if *predictAtFlag != "" {
		ts, err := time.Parse(time.RFC3339, *predictAtFlag)
		if err != nil {
			logging.Fatal().Err(err).Str("predict_at", *predictAtFlag).Msg("invalid -predict-at timestamp")
		}
		predictAt = &ts
	}

	out.Results = pc.RunAll(ctx, entities, tables, predictAt)
	out.Stats = pc.Stats()

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		logging.Fatal().Err(err).Msg("failed to encode report")
	}
}

func loadTables(path string) (extractor.Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return extractor.Tables{}, err
	}
	defer f.Close()

	var tables extractor.Tables
	if err := json.NewDecoder(f).Decode(&tables); err != nil {
		return extractor.Tables{}, err
	}
	return tables, nil
}
