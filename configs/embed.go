// Package configs embeds the example configuration written by
// `schemamatch config init`.
//
// Load order (see internal/config Load):
//  1. Hardcoded defaults
//  2. User config (~/.config/schemamatch/config.yaml)
//  3. Project config (.schemamatch.yaml)
//  4. Environment variables (SCHEMAMATCH_*)
package configs

import _ "embed"

// ExampleConfig is the commented template for both user and project config files.
//
//go:embed schemamatch.example.yaml
var ExampleConfig string
