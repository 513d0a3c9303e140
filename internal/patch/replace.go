package patch

import (
	"bytes"
	"regexp"

	"mend/internal/fix"
	"mend/internal/source"
	"mend/internal/syntax"
)

// ReplaceAction rewrites every match of Pattern with Replacement. Matches
// touching comments or literals are left alone unless CodeOnly is off.
type ReplaceAction struct {
	base
	Pattern     *regexp.Regexp
	Replacement string
	// Unless skips the file when its text contains this substring.
	Unless   string
	CodeOnly bool
}

func (a *ReplaceAction) Apply(in Input) (Output, error) {
	if !a.applies(in.Path) {
		return Unchanged(in), nil
	}
	if a.Unless != "" && bytes.Contains(in.Text, []byte(a.Unless)) {
		return Unchanged(in), nil
	}
	matches := a.Pattern.FindAllSubmatchIndex(in.Text, -1)
	if len(matches) == 0 {
		return Unchanged(in), nil
	}
	var toks []syntax.Token
	if a.CodeOnly {
		var err error
		toks, err = syntax.Tokenize(0, in.Text)
		if err != nil {
			return Unchanged(in), unparsable(a.name, err)
		}
	}

	fixes := make([]fix.Fix, 0, len(matches))
	for _, m := range matches {
		start, end := m[0], m[1]
		if start == end {
			continue
		}
		if a.CodeOnly && !codeRange(toks, start, end) {
			continue
		}
		repl := a.Pattern.Expand(nil, []byte(a.Replacement), in.Text, m)
		old := string(in.Text[start:end])
		if string(repl) == old {
			continue
		}
		span := source.Span{Start: uint32(start), End: uint32(end)}
		fixes = append(fixes, fix.ReplaceSpan("replace", span, string(repl), old))
	}
	return a.finish(in, fixes), nil
}

// codeRange reports whether [start, end) overlaps no comment or literal.
func codeRange(toks []syntax.Token, start, end int) bool {
	for _, t := range toks {
		if int(t.Span.Start) >= end {
			break
		}
		if int(t.Span.End) <= start || t.IsCode() {
			continue
		}
		return false
	}
	return true
}
