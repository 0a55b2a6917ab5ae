package version

// Version is the current release, set at build time via -ldflags.
var Version = "0.2.0-dev"
