// Package defaults provides embedded copies of the default
// configuration and persona files for the leoctl init subcommand and
// first-run seeding.
package defaults

import _ "embed"

//go:embed config.example.yaml
var ConfigYAML []byte

//go:embed persona.example.yaml
var PersonaYAML []byte
