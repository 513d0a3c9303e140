package patch

import (
	"fmt"
	"strings"

	"mend/internal/fix"
	"mend/internal/source"
	"mend/internal/syntax"
)

const indentUnit = "    "

// parseSnippet returns the single declaration a rule inserts.
func parseSnippet(text string) (*syntax.Decl, error) {
	o, err := syntax.Parse(0, []byte(text))
	if err != nil {
		return nil, err
	}
	if len(o.Decls) != 1 {
		return nil, fmt.Errorf("expected exactly one declaration, found %d", len(o.Decls))
	}
	return o.Decls[0], nil
}

func sameDecl(a, b *syntax.Decl) bool {
	return a.Kind == b.Kind && a.Signature() == b.Signature()
}

func containsDecl(ds []*syntax.Decl, want *syntax.Decl) bool {
	for _, d := range ds {
		if sameDecl(d, want) {
			return true
		}
	}
	return false
}

// indentBlock prefixes every non-empty line of text with indent.
func indentBlock(text, indent string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			lines[i] = indent + l
		}
	}
	return strings.Join(lines, "\n")
}

// MemberAction makes sure a class or object named Target declares a member.
type MemberAction struct {
	base
	Target string
	Text   string
	decl   *syntax.Decl
}

func (a *MemberAction) Apply(in Input) (Output, error) {
	if !a.applies(in.Path) {
		return Unchanged(in), nil
	}
	o, err := syntax.Parse(0, in.Text)
	if err != nil {
		return Unchanged(in), unparsable(a.name, err)
	}
	var fixes []fix.Fix
	for _, target := range o.FindAll(0, a.Target) {
		if !target.Kind.IsContainer() || !target.HasBody() || containsDecl(target.Children, a.decl) {
			continue
		}
		indent := o.Indent(target.Body.Start)
		inner := indent + indentUnit
		if len(target.Children) > 0 {
			inner = o.Indent(target.Children[0].Span.Start)
		}
		at := target.Body.Start + 1
		text := "\n" + indentBlock(a.Text, inner)
		if int(at) < len(in.Text) && in.Text[at] != '\n' {
			text += "\n" + indent
		}
		fixes = append(fixes, fix.InsertText("add member", source.At(0, at), text, ""))
	}
	return a.finish(in, fixes), nil
}

// AfterDeclAction makes sure a top-level declaration follows the top-level
// declaration named Anchor.
type AfterDeclAction struct {
	base
	Anchor string
	Text   string
	decl   *syntax.Decl
}

func (a *AfterDeclAction) Apply(in Input) (Output, error) {
	if !a.applies(in.Path) {
		return Unchanged(in), nil
	}
	o, err := syntax.Parse(0, in.Text)
	if err != nil {
		return Unchanged(in), unparsable(a.name, err)
	}
	if containsDecl(o.Decls, a.decl) {
		return Unchanged(in), nil
	}
	for _, d := range o.Decls {
		if d.Name != a.Anchor {
			continue
		}
		text := "\n\n" + indentBlock(a.Text, "")
		f := fix.InsertText("add declaration", source.At(0, d.Span.End), text, "")
		return a.finish(in, []fix.Fix{f}), nil
	}
	return Unchanged(in), nil
}

// RemoveDuplicateAction deletes repeated functions inside class bodies,
// keeping the first one.
type RemoveDuplicateAction struct {
	base
	Target string // container name, "" for every container
	Symbol string // function name, "" for every function
	// BySignature compares parameter lists too, so overloads survive.
	BySignature bool
}

func (a *RemoveDuplicateAction) Apply(in Input) (Output, error) {
	if !a.applies(in.Path) {
		return Unchanged(in), nil
	}
	o, err := syntax.Parse(0, in.Text)
	if err != nil {
		return Unchanged(in), unparsable(a.name, err)
	}
	var fixes []fix.Fix
	o.Walk(func(c *syntax.Decl) bool {
		if !c.Kind.IsContainer() || (a.Target != "" && c.Name != a.Target) {
			return true
		}
		seen := make(map[string]bool)
		for _, d := range c.Children {
			if d.Kind != syntax.DeclFun || (a.Symbol != "" && d.Name != a.Symbol) {
				continue
			}
			key := d.Name
			if a.BySignature {
				key = d.Signature()
			}
			if !seen[key] {
				seen[key] = true
				continue
			}
			span := removalSpan(o, d)
			fixes = append(fixes, fix.DeleteSpan("remove duplicate", span, string(in.Text[span.Start:span.End])))
		}
		return true
	})
	return a.finish(in, fixes), nil
}

// removalSpan widens a declaration to whole lines when it sits alone on
// them, and takes one blank line above it along.
func removalSpan(o *syntax.Outline, d *syntax.Decl) source.Span {
	src := o.Src
	start, end := d.Span.Start, d.Span.End
	if ls := o.LineStart(start); blank(src[ls:start]) {
		start = ls
		if le := o.LineEnd(end); blank(src[end:le]) {
			end = le
			if start > 0 {
				prev := o.LineStart(start - 1)
				if blank(src[prev:start]) {
					start = prev
				}
			}
		}
	}
	return source.Span{Start: start, End: end}
}

func blank(b []byte) bool {
	return strings.TrimSpace(string(b)) == ""
}
