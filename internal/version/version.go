// Package version holds build version information.
package version

// Version is set at build time via -ldflags.
var Version = "0.1.0-dev"
