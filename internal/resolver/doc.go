// SPDX-License-Identifier: AGPL-3.0-or-later

// Package resolver clusters observation-derived EntityRecords that
// refer to the same physical person: deterministic identifier joins,
// fuzzy name/email/temporal/spatial evidence, an undirected similarity
// graph, and connected-component clustering with a mean-edge-weight
// floor.
package resolver
