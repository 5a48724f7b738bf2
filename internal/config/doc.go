// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads the pipeline's single configuration struct from
// layered sources: built-in defaults, an optional YAML file, and
// environment variables, in that order of increasing priority.
package config
