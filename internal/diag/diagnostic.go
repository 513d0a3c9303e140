package diag

import (
	"regexp"
	"strings"
)

// Diagnostic is one parsed build-tool record. Values are never mutated after parsing.
type Diagnostic struct {
	Severity Severity
	Scheme   string // URI scheme of the location, usually "file"
	Path     string
	Line     uint32 // 1-based
	Column   uint32 // 1-based
	Message  string
	Category Category
	Raw      string // исходная строка
}

func (d Diagnostic) String() string {
	return Format(d)
}

var unresolvedName = regexp.MustCompile(`Unresolved reference:?\s+'?([A-Za-z_][A-Za-z0-9_]*)'?`)

// Subject returns the identifier named by an "Unresolved reference: X" message.
func (d Diagnostic) Subject() (string, bool) {
	if d.Category != UnresolvedReference {
		return "", false
	}
	m := unresolvedName.FindStringSubmatch(d.Message)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}
