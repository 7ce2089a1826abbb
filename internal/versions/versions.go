// Package versions reports build information for kindreg binaries.
package versions

import (
	"fmt"
	"runtime"
)

// Set with -ldflags "-X github.com/itsneelabh/kindreg/internal/versions.Version=..."
var (
	// Version is the release version.
	Version = "development"

	// GitCommit is the commit the binary was built from.
	GitCommit = "unknown"

	// BuildDate is the build timestamp.
	BuildDate = "development"
)

// APIVersion is the version of the HTTP API.
const APIVersion = "v1"

// Info describes the running binary.
type Info struct {
	Version    string `json:"version"`
	APIVersion string `json:"api_version"`
	Commit     string `json:"commit"`
	BuildDate  string `json:"build_date"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

// GetVersionInfo returns the build information.
func GetVersionInfo() Info {
	return Info{
		Version:    Version,
		APIVersion: APIVersion,
		Commit:     GitCommit,
		BuildDate:  BuildDate,
		GoVersion:  runtime.Version(),
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}
