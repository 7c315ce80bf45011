package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Build information, overridden with -ldflags "-X" at build time
var (
	Version   = "0.1.0"
	GitCommit = ""
	BuildDate = ""
)

const (
	// AppName is the name of the binary
	AppName = "nixie"
	// Description is the one-line summary shown in help output
	Description = "Serve a single always-current number over HTTP for a Nixie tube display"
)

// GetVersionInfo returns a formatted version string with additional build information
func GetVersionInfo() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s version %s", AppName, Version)
	if GitCommit != "" {
		fmt.Fprintf(&b, "\nGit commit: %s", GitCommit)
	}
	if BuildDate != "" {
		fmt.Fprintf(&b, "\nBuild date: %s", BuildDate)
	}
	fmt.Fprintf(&b, "\nGo version: %s", runtime.Version())
	fmt.Fprintf(&b, "\nPlatform: %s/%s", runtime.GOOS, runtime.GOARCH)

	return b.String()
}
