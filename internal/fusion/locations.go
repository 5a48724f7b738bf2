// SPDX-License-Identifier: AGPL-3.0-or-later

package fusion

import (
	"regexp"
	"strings"

	"github.com/campustrace/resolve/internal/models"
)

// apTokenPattern pulls the location token out of an access point id of
// shape AP_<TOKEN>_<n>, e.g. AP_LAB_1.
var apTokenPattern = regexp.MustCompile(`^AP_([A-Z]+)_\d+$`)

// apTokenLocations maps a WiFi access point token to its canonical
// campus location, ported from multimodal_fusion.py's
// _infer_location_from_ap.
var apTokenLocations = map[string]string{
	"LAB":    "LAB_101",
	"LIB":    "LIB_ENT",
	"CAF":    "CAF_01",
	"AUD":    "AUDITORIUM",
	"ENG":    "LAB_101",
	"HOSTEL": "HOSTEL_GATE",
}

// inferLocationFromAP resolves a WiFi AP id to a location, falling back
// to "<TOKEN>_AREA" for a recognised-but-unmapped prefix and UNKNOWN for
// an unparseable id.
func inferLocationFromAP(apID string) string {
	match := apTokenPattern.FindStringSubmatch(apID)
	if match == nil {
		return models.LocationUnknown
	}
	token := match[1]
	if loc, ok := apTokenLocations[token]; ok {
		return loc
	}
	return token + "_AREA"
}

// noteLocationKeywords maps a case-insensitive substring of note text to
// its canonical location, checked in this fixed order so the first
// match wins.
var noteLocationKeywords = []struct {
	keyword  string
	location string
}{
	{"library", "LIB_ENT"},
	{"lab", "LAB_101"},
	{"gym", "GYM"},
	{"cafeteria", "CAF_01"},
	{"hostel", "HOSTEL_GATE"},
	{"auditorium", "AUDITORIUM"},
	{"seminar", "SEM_01"},
	{"admin", "ADMIN_LOBBY"},
}

// inferLocationFromText scans note text for the first matching location
// keyword, or UNKNOWN if none is found.
func inferLocationFromText(text string) string {
	lower := strings.ToLower(text)
	for _, entry := range noteLocationKeywords {
		if strings.Contains(lower, entry.keyword) {
			return entry.location
		}
	}
	return models.LocationUnknown
}
