// Package version holds build information injected with -ldflags:
//
//	-X github.com/pipeaalzamora/el-blog-del-ceo/internal/version.Version=v1.2.0
//	-X github.com/pipeaalzamora/el-blog-del-ceo/internal/version.Commit=abc1234
//	-X github.com/pipeaalzamora/el-blog-del-ceo/internal/version.Date=2026-10-01T00:00:00Z
package version

import "fmt"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String returns e.g. "v1.2.0 (commit abc1234, built 2026-10-01T00:00:00Z)".
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
}
