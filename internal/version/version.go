package version

import (
	"fmt"
	"runtime"
)

// Populated by the release build:
//
//	go build -ldflags "-X github.com/soyeahso/matchchat/internal/version.Version=0.3.0
//	  -X github.com/soyeahso/matchchat/internal/version.Commit=$(git rev-parse HEAD)"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info is the long form printed by `matchchat version`.
func Info() string {
	return fmt.Sprintf("matchchat %s (commit %s, built %s, %s/%s)",
		Version, short(Commit), Date, runtime.GOOS, runtime.GOARCH)
}

// UserAgent identifies the client to the REST API.
func UserAgent() string {
	return fmt.Sprintf("matchchat/%s (%s)", Version, runtime.GOOS)
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
