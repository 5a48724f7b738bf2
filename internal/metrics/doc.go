// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics records Prometheus instrumentation for the pipeline.
// Metrics register globally via promauto; nothing in this package needs
// an explicit Init call.
package metrics
