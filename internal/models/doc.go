// SPDX-License-Identifier: AGPL-3.0-or-later

// Package models holds the shared data types that flow through the
// campus entity resolution pipeline: EntityRecord, EntityMatch,
// ResolvedEntity, ActivityEvent, FusionRecord, TimelineEvent,
// TimelineSummary, Prediction, and AnomalyAlert.
//
// Each resolver/fusion/timeline/predict package consumes the immutable
// output of the stage before it; nothing in this package depends on any
// other internal package, matching the dependency discipline the
// pipeline's stages are built to.
package models
