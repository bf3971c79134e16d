// Package version holds the build version reported by the about
// endpoint. It is overridden at build time via
// -ldflags "-X github.com/releng/waiverd/pkg/version.Version=...".
package version

// Version is the running waiverd version.
var Version = "dev"
