// Package config defines the fragmenter settings and helpers to load,
// validate and save them in YAML format.
//
// It also owns the fragment size rules: sizes are given in decimal megabytes
// and a malformed or non-positive value falls back to the default.
package config
