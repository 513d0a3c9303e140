package diagfmt

import (
	"fmt"

	"mend/internal/source"
)

// PathMode specifies how file paths are displayed.
type PathMode uint8

const (
	// PathModeAuto chooses relative or absolute path automatically.
	PathModeAuto PathMode = iota
	// PathModeAbsolute always uses absolute paths.
	PathModeAbsolute
	PathModeRelative
	PathModeBasename
)

func (m PathMode) String() string {
	switch m {
	case PathModeAbsolute:
		return "absolute"
	case PathModeRelative:
		return "relative"
	case PathModeBasename:
		return "basename"
	default:
		return "auto"
	}
}

// ParsePathMode accepts auto|absolute|relative|basename.
func ParsePathMode(s string) (PathMode, error) {
	switch s {
	case "", "auto":
		return PathModeAuto, nil
	case "absolute":
		return PathModeAbsolute, nil
	case "relative":
		return PathModeRelative, nil
	case "basename":
		return PathModeBasename, nil
	}
	return 0, fmt.Errorf("unknown path mode %q (expected auto|absolute|relative|basename)", s)
}

// PrettyOpts configures pretty-printing of diagnostics.
type PrettyOpts struct {
	Color    bool
	Context  int8 // 0 - без строки исходника
	PathMode PathMode
	BaseDir  string
	Max      int // обрезка вывода, не Bag
}

// JSONOpts configures JSON output of diagnostics.
type JSONOpts struct {
	PathMode   PathMode
	BaseDir    string
	Max        int
	IncludeRaw bool // исходная строка лога
}

// SarifRunMeta provides metadata for SARIF output.
type SarifRunMeta struct {
	ToolName       string
	ToolVersion    string
	InvocationArgs []string
}

func formatPath(path string, mode PathMode, baseDir string) string {
	return source.FormatPath(path, mode.String(), baseDir)
}
