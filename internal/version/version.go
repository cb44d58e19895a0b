package version

import (
	"fmt"
	"io"
)

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String is the one-line version banner.
func String() string {
	return fmt.Sprintf("spectrometer %s (%s, built %s)", Version, GitSHA, BuildTime)
}

// Print writes the banner to w.
func Print(w io.Writer) {
	fmt.Fprintln(w, String())
}
