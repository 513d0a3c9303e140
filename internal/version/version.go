// Package version holds build information for the mend CLI.
// The variables are overridden at build time via -ldflags, e.g.
//
//	-X mend/internal/version.Version=1.0.0 -X mend/internal/version.GitCommit=$(git rev-parse HEAD)
package version

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

var (
	versionMajorColor = color.New(color.FgYellow, color.Bold)
	versionMinorColor = color.New(color.FgGreen, color.Bold)
	versionPatchColor = color.New(color.FgBlue, color.Bold)

	// Version is the semantic version of the CLI.
	Version = "0.1.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

// Colored renders Version with each numeric part in its own colour.
// Anything that is not MAJOR.MINOR.PATCH[-suffix] is returned as is.
func Colored() string {
	core, suffix, _ := strings.Cut(Version, "-")
	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return Version
	}
	out := versionMajorColor.Sprint(parts[0]) + "." + versionMinorColor.Sprint(parts[1]) + "." + versionPatchColor.Sprint(parts[2])
	if suffix != "" {
		out += "-" + suffix
	}
	return out
}

// Info is the multi-line text printed by "mend version".
func Info(colored bool) string {
	v := Version
	if colored {
		v = Colored()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "mend %s\n", v)
	if GitCommit != "" {
		fmt.Fprintf(&b, "commit: %s\n", GitCommit)
	}
	if BuildDate != "" {
		fmt.Fprintf(&b, "built:  %s\n", BuildDate)
	}
	return b.String()
}
