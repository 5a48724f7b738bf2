// SPDX-License-Identifier: AGPL-3.0-or-later

// Package extractor builds the complete models.EntityRecord population
// from the bounded input tables: one record per profile row, plus one
// aggregated record per distinct key (card_id, device_hash, face_id, or
// entity_id) for each secondary source. CSV parsing into the row types
// below, and the HTTP/dashboard surface that calls this package, both
// stay outside its scope.
package extractor
