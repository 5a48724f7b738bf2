// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import "strings"

// sections lists the top-level koanf keys of Config, used to split a
// flattened environment variable name into "section.field".
var sections = []string{
	"resolver", "fusion", "timeline", "prediction",
	"extractor", "pipeline", "store", "logging",
}

// koanfPathFromEnvKey converts an environment variable name (already
// stripped of the CAMPUSCORE_ prefix by envTransformFunc) such as
// "RESOLVER_FUZZY_MATCH_THRESHOLD" into the dotted koanf path
// "resolver.fuzzy_match_threshold".
func koanfPathFromEnvKey(key string) string {
	lower := strings.ToLower(key)
	for _, section := range sections {
		prefix := section + "_"
		if strings.HasPrefix(lower, prefix) {
			return section + "." + strings.TrimPrefix(lower, prefix)
		}
	}
	return lower
}
