// Package version holds build-time version information for connpool
// binaries.
//
// Values are injected with ldflags:
//
//	go build -ldflags "-X github.com/go-i2p/connpool/version.Version=1.0.0 -X github.com/go-i2p/connpool/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Development builds report "dev".
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the release version.
	Version = "dev"
	// GitCommit is the short commit hash the binary was built from.
	GitCommit = ""
	// BuildTime is the UTC build timestamp.
	BuildTime = ""
)

// Full returns the version with commit and build time when they are set.
func Full() string {
	v := Version
	if GitCommit != "" {
		v += "-" + GitCommit
	}
	if BuildTime != "" {
		v += " (" + BuildTime + ")"
	}
	return v
}

// Banner returns the line a command prints for -version.
func Banner(program string) string {
	return fmt.Sprintf("%s version %s %s/%s %s", program, Full(), runtime.GOOS, runtime.GOARCH, runtime.Version())
}
