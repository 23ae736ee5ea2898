package core

// Build metadata, injected with:
//
//	go build -ldflags "-X imagestream/core.Version=$(git describe --tags --always) \
//	  -X imagestream/core.GitCommit=$(git rev-parse --short HEAD) \
//	  -X imagestream/core.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" .
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// GetVersionInfo returns the version with build time and commit, e.g.
// "v1.2.0 (built 2026-03-01T10:30:00Z, commit abc1234)".
func GetVersionInfo() string {
	return Version + " (built " + BuildTime + ", commit " + GitCommit + ")"
}
