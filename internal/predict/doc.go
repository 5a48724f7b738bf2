// SPDX-License-Identifier: AGPL-3.0-or-later

// Package predict implements the predictive monitor: it learns each
// entity's typical location and activity patterns from fused activity
// records, fills in missing observations with an explained guess, and
// flags absences and behavioral outliers against the learned model.
package predict
