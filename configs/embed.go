// Package configs provides the embedded configuration template for
// searchcore. Embedding at build time keeps the template available in
// every distribution; "searchcore config init" writes it out for the
// user to edit.
package configs

import _ "embed"

// ConfigTemplate is the annotated example configuration written by
// "searchcore config init". It mirrors the built-in defaults.
//
//go:embed config.example.yaml
var ConfigTemplate string
