// Package config defines the daemon settings and provides helpers to load,
// validate and save them in YAML format, plus a file watcher for hot reload.
//
// Prayer times live in a separate YAML file so upstream tooling can replace
// the daily set without touching the daemon settings.
package config
