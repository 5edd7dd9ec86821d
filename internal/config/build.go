package config

// Linker-injected build metadata, for example:
//
//	go build -ldflags "-X github.com/ToFood/tofood-zip/internal/config.version=1.4.0 \
//	    -X github.com/ToFood/tofood-zip/internal/config.commit=$(git rev-parse --short HEAD)"
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo constructs a BuildInfo from the linker-injected variables.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}
