// Package settings provides build metadata, per-run options and context
// helpers shared by the kvgrid CLI packages.
package settings

import "time"

// CliBinaryName is the canonical binary name for this tool.
const CliBinaryName = "kvgrid"

// VersionInformation is populated at build time via ldflags.
var VersionInformation = VersionInfo{
	Commit:       "unknown",
	BuildVersion: "v0.0.0-nightly",
	BuildTime:    "unknown",
}

// VersionInfo holds the commit hash, build version and build timestamp.
type VersionInfo struct {
	Commit       string `json:"commit" yaml:"commit"`
	BuildVersion string `json:"version" yaml:"version"`
	BuildTime    string `json:"build_time" yaml:"build_time"`
}

// Run holds the settings of a single invocation, derived from flags and the
// loaded config.
type Run struct {
	LogLevel       string
	LogFile        string
	ConfigPath     string
	NoColor        bool
	Interactive    bool
	RequestTimeout time.Duration
	ExitOnError    bool
}

// NewCliParams returns the defaults for a CLI run.
func NewCliParams() *Run {
	return &Run{
		LogLevel:       "info",
		RequestTimeout: 15 * time.Second,
		ExitOnError:    true,
	}
}
