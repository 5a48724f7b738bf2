// SPDX-License-Identifier: AGPL-3.0-or-later

// Package fusion correlates a resolved entity's raw observations across
// card swipes, CCTV, WiFi, lab bookings, library checkouts and helpdesk
// notes into temporally coherent, confidence-scored FusionRecords.
package fusion
