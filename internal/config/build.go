package config

// Set via -ldflags "-X aigrowth/internal/config.version=..." at release time.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo returns the metadata stamped in by -ldflags.
func NewBuildInfo() BuildInfo {
	return BuildInfo{Version: version, Commit: commit, BuildTime: buildTime}
}
