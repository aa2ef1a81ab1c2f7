// Package version carries the daemon's build metadata.
//
// Version, Commit and BuildTime are overridden with Go ldflags by the
// release build; local builds keep the defaults. Short and Full format the
// values for CLI output and the health endpoint.
package version
