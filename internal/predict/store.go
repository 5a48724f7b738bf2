// SPDX-License-Identifier: AGPL-3.0-or-later

package predict

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/campustrace/resolve/internal/config"
)

// modelKey is the single fixed key the trained artefact blob is stored
// under, matching spec's "single opaque file" persisted-state model.
var modelKey = []byte("campuscore:predict:model")

// artifact is everything Train produces, gob-encoded as one unit so
// Save/Load are all-or-nothing.
type artifact struct {
	LocationEncoder *LabelEncoder
	ActivityEncoder *LabelEncoder
	Scaler          *FeatureScaler
	LocationForest  *Forest
	ActivityForest  *Forest
	OutlierForest   *IsolationForest
	OutlierThreshold float64
	Config          config.PredictionConfig
}

// Save opens (or creates) the BadgerDB store at cfg.ModelPath and
// writes the trained artefact under its fixed key in a single
// transaction.
func Save(cfg config.StoreConfig, art artifact) error {
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(art); err != nil {
		return fmt.Errorf("encode model artifact: %w", err)
	}

	err = db.Update(func(txn *badger.Txn) error {
		return txn.Set(modelKey, buf.Bytes())
	})
	if err != nil {
		return fmt.Errorf("persist model artifact: %w", err)
	}
	return nil
}

// Load opens the BadgerDB store at cfg.ModelPath and reads back the
// artefact written by Save. Either every field decodes successfully or
// an error is returned and the caller's monitor stays untrained — the
// Badger transaction and the all-at-once gob decode together give the
// atomicity spec.md requires.
func Load(cfg config.StoreConfig) (artifact, error) {
	db, err := openStore(cfg)
	if err != nil {
		return artifact{}, err
	}
	defer db.Close()

	var art artifact
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(modelKey)
		if err != nil {
			return fmt.Errorf("get model artifact: %w", err)
		}
		return item.Value(func(val []byte) error {
			return gob.NewDecoder(bytes.NewReader(val)).Decode(&art)
		})
	})
	if err != nil {
		return artifact{}, fmt.Errorf("load model artifact: %w", err)
	}
	return art, nil
}

func openStore(cfg config.StoreConfig) (*badger.DB, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("open model store: model_path is not configured")
	}
	opts := badger.DefaultOptions(cfg.ModelPath)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open model store at %q: %w", cfg.ModelPath, err)
	}
	return db, nil
}
