package config

import (
	"fmt"
	"runtime"
)

// Build metadata, injected at build time:
//
//	go build -ldflags "-X webtoondl/config.Version=v1.0.0 -X webtoondl/config.GitCommit=$(git rev-parse --short HEAD)"
var (
	Version   = "dev"
	GitCommit = "local"
	BuildTime = "unknown"
)

// VersionString formats the build metadata for `webtoondl version` and the
// startup log line.
func VersionString() string {
	return fmt.Sprintf("webtoondl %s (commit %s, built %s, %s)", Version, GitCommit, BuildTime, runtime.Version())
}
