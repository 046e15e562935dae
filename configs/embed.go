// Package configs provides the embedded configuration template for
// markdex.
//
// The template is embedded at build time with //go:embed so it ships
// with every distribution. `markdex config init` writes it to disk as
// a starting point; internal/config applies the same defaults when no
// file is present.
package configs

import _ "embed"

// ConfigTemplate is the annotated example configuration written by
// `markdex config init`.
//
//go:embed markdex.example.yaml
var ConfigTemplate string
