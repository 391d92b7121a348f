package version

import "fmt"

// Set at build time with -ldflags "-X gateway-console/pkg/version.Version=..."
var (
	Version = "dev"
	Commit  = "none"
	Built   = "unknown"
)

type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Built   string `json:"built"`
}

func Info() BuildInfo {
	return BuildInfo{Version: Version, Commit: Commit, Built: Built}
}

// String formats the build info for --version output.
func String() string {
	return fmt.Sprintf("%s, commit %s, built %s", Version, Commit, Built)
}
