package diag

import "fmt"

// Severity defines the importance of a diagnostic.
type Severity uint8

const (
	// SevInfo is for informational diagnostics.
	SevInfo Severity = iota
	// SevWarning is for warning diagnostics.
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "INFO"
	case SevWarning:
		return "WARNING"
	case SevError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Prefix returns the one-letter marker the build tool puts in front of a diagnostic.
func (s Severity) Prefix() string {
	switch s {
	case SevInfo:
		return "i"
	case SevWarning:
		return "w"
	default:
		return "e"
	}
}

// SeverityFromPrefix maps "e", "w", "i" (as in "e: file://...") to a Severity.
func SeverityFromPrefix(p string) (Severity, bool) {
	switch p {
	case "e":
		return SevError, true
	case "w":
		return SevWarning, true
	case "i":
		return SevInfo, true
	}
	return 0, false
}

// ParseSeverity accepts either the prefix letter or the full name, case-insensitive.
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "e", "error", "ERROR":
		return SevError, nil
	case "w", "warning", "WARNING":
		return SevWarning, nil
	case "i", "info", "INFO":
		return SevInfo, nil
	}
	return 0, fmt.Errorf("unknown severity %q (expected error|warning|info)", s)
}
