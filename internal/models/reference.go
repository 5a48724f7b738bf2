// SPDX-License-Identifier: AGPL-3.0-or-later

package models

// Location describes one fixed campus location known to the resolver
// and fusion stages. Unrecognized access-point tokens and free-text
// mentions fall back to LocationUnknown rather than failing the
// pipeline.
type Location struct {
	Code     string
	Name     string
	Building string
	Floor    int
}

// LocationUnknown is the sentinel used whenever a record or inferred
// mention cannot be mapped to a known campus location.
const LocationUnknown = "UNKNOWN"

// CampusLocations is the fixed reference table of known campus
// locations, keyed by location code.
var CampusLocations = map[string]Location{
	"LAB_101":     {Code: "LAB_101", Name: "Computer Lab 101", Building: "Engineering", Floor: 1},
	"LAB_102":     {Code: "LAB_102", Name: "Computer Lab 102", Building: "Engineering", Floor: 1},
	"LAB_305":     {Code: "LAB_305", Name: "Research Lab 305", Building: "Engineering", Floor: 3},
	"LIB_ENT":     {Code: "LIB_ENT", Name: "Library Entrance", Building: "Library", Floor: 0},
	"GYM":         {Code: "GYM", Name: "Gymnasium", Building: "Sports Complex", Floor: 0},
	"AUDITORIUM":  {Code: "AUDITORIUM", Name: "Main Auditorium", Building: "Academic Block", Floor: 0},
	"CAF_01":      {Code: "CAF_01", Name: "Cafeteria", Building: "Student Center", Floor: 0},
	"HOSTEL_GATE": {Code: "HOSTEL_GATE", Name: "Hostel Gate", Building: "Residential", Floor: 0},
	"ADMIN_LOBBY": {Code: "ADMIN_LOBBY", Name: "Administration Lobby", Building: "Admin Block", Floor: 0},
	"SEM_01":      {Code: "SEM_01", Name: "Seminar Room 1", Building: "Academic Block", Floor: 1},
	"ROOM_A2":     {Code: "ROOM_A2", Name: "Classroom A2", Building: "Academic Block", Floor: 2},
}

// EntityTypeInfo describes the scheduling priors associated with one
// entity role.
type EntityTypeInfo struct {
	Priority          int
	DefaultAccessFrom int
	DefaultAccessTo   int
}

// EntityTypes is the fixed reference table of known entity roles.
var EntityTypes = map[string]EntityTypeInfo{
	"student": {Priority: 1, DefaultAccessFrom: 6, DefaultAccessTo: 22},
	"staff":   {Priority: 2, DefaultAccessFrom: 8, DefaultAccessTo: 18},
	"faculty": {Priority: 2, DefaultAccessFrom: 8, DefaultAccessTo: 20},
	"visitor": {Priority: 3, DefaultAccessFrom: 9, DefaultAccessTo: 17},
}

// Departments is the fixed reference list of known academic/admin
// departments, used by the predictive monitor's feature encoder.
var Departments = []string{
	"Physics", "MECH", "ECE", "CIVIL", "BIO", "Chemistry",
	"Admin", "Maths", "Computer Science", "Electrical",
}

// ActivityCategories enumerates the fusion activity classes the
// timeline builder and predictive monitor both reason about.
var ActivityCategories = []string{
	"access_control", "wifi_connection", "library_activity",
	"lab_booking", "cctv_detection", "helpdesk_interaction",
}
