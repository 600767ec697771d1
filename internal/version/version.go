// Package version holds build metadata set with -ldflags.
package version

import "fmt"

// Name is the program name shown in banners and --version.
const Name = "gokernel"

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func String() string {
	return fmt.Sprintf("%s %s (commit: %s, built: %s)", Name, Version, Commit, BuildDate)
}
