// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pipeline wires the extraction, resolution, fusion, timeline,
// and prediction stages into one explicit context, replacing the
// module-level table/profile dictionaries the original prototype relied
// on. Nothing in this package is ambient: every stage's output lives
// behind a value passed by the caller or swapped atomically on publish.
package pipeline
