package diag

import (
	"fmt"
	"iter"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// PathStyle controls how the path part of a location URI is turned back into a filesystem path.
type PathStyle uint8

const (
	// PathUnix re-prefixes the separator stripped by the URI: file:///home/x -> /home/x.
	PathUnix PathStyle = iota
	// PathWindows drops the slash in front of a drive letter: file:///C:/x -> C:/x.
	PathWindows
	// PathVerbatim keeps whatever follows "scheme://".
	PathVerbatim
)

func (s PathStyle) String() string {
	switch s {
	case PathUnix:
		return "unix"
	case PathWindows:
		return "windows"
	case PathVerbatim:
		return "verbatim"
	}
	return "unknown"
}

// ParsePathStyle converts a config value into a PathStyle.
func ParsePathStyle(s string) (PathStyle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unix":
		return PathUnix, nil
	case "windows":
		return PathWindows, nil
	case "verbatim":
		return PathVerbatim, nil
	}
	return 0, fmt.Errorf("invalid path style %q (expected unix|windows|verbatim)", s)
}

// <sev>: <scheme>://<path>:<line>:<col> <message>
var lineGrammar = regexp.MustCompile(`^([a-z]):\s+([A-Za-z][A-Za-z0-9+.\-]*)://(.*?):(\d+):(\d+) (.*)$`)

var windowsDrive = regexp.MustCompile(`^/?[A-Za-z]:[/\\]`)

// Parser turns raw build output lines into Diagnostics.
type Parser struct {
	Style PathStyle
	// Severities accepted by Parse. Nil means errors only.
	Severities []Severity
}

// NewParser returns a parser that accepts error-level lines.
func NewParser(style PathStyle) *Parser {
	return &Parser{Style: style}
}

func (p *Parser) accepts(sev Severity) bool {
	if p == nil || len(p.Severities) == 0 {
		return sev == SevError
	}
	for _, s := range p.Severities {
		if s == sev {
			return true
		}
	}
	return false
}

// Parse converts one line. Lines that do not follow the grammar, and lines with a
// severity the parser was not asked for, report false; Parse never fails.
func (p *Parser) Parse(line string) (Diagnostic, bool) {
	line = strings.TrimRight(line, "\r\n")
	m := lineGrammar.FindStringSubmatch(line)
	if m == nil {
		return Diagnostic{}, false
	}
	sev, ok := SeverityFromPrefix(m[1])
	if !ok || !p.accepts(sev) {
		return Diagnostic{}, false
	}
	lineNo, err := strconv.ParseUint(m[4], 10, 32)
	if err != nil || lineNo == 0 {
		return Diagnostic{}, false
	}
	col, err := strconv.ParseUint(m[5], 10, 32)
	if err != nil || col == 0 {
		return Diagnostic{}, false
	}
	style := PathUnix
	if p != nil {
		style = p.Style
	}
	path := decodePath(m[3], style)
	if path == "" {
		return Diagnostic{}, false
	}
	msg := norm.NFC.String(m[6])
	return Diagnostic{
		Severity: sev,
		Scheme:   m[2],
		Path:     path,
		Line:     uint32(lineNo),
		Column:   uint32(col),
		Message:  msg,
		Category: Classify(msg),
		Raw:      line,
	}, true
}

func decodePath(rest string, style PathStyle) string {
	switch style {
	case PathUnix:
		return "/" + strings.TrimLeft(rest, "/")
	case PathWindows:
		if windowsDrive.MatchString(rest) {
			return strings.TrimPrefix(rest, "/")
		}
		return "/" + strings.TrimLeft(rest, "/")
	default:
		return rest
	}
}

func encodePath(path string, style PathStyle) string {
	switch style {
	case PathWindows:
		if windowsDrive.MatchString(path) {
			return "/" + path
		}
		return path
	default:
		return path
	}
}

// Format renders a diagnostic back into the build tool's line grammar.
func Format(d Diagnostic) string {
	return FormatStyle(d, PathUnix)
}

// FormatStyle is Format with an explicit path style; Parse(FormatStyle(d, s)) with a
// parser of style s yields d's location and message again.
func FormatStyle(d Diagnostic, style PathStyle) string {
	scheme := d.Scheme
	if scheme == "" {
		scheme = "file"
	}
	return fmt.Sprintf("%s: %s://%s:%d:%d %s",
		d.Severity.Prefix(), scheme, encodePath(d.Path, style), d.Line, d.Column, d.Message)
}

// ParseLines drains lines into a new Bag, skipping everything that does not parse.
func (p *Parser) ParseLines(lines iter.Seq[string]) *Bag {
	bag := NewBag(0)
	for line := range lines {
		if d, ok := p.Parse(line); ok {
			bag.Add(d)
		}
	}
	return bag
}

// SplitLines yields the lines of text one by one.
func SplitLines(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for line := range strings.Lines(text) {
			if !yield(strings.TrimRight(line, "\r\n")) {
				return
			}
		}
	}
}
