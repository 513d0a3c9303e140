package patch

import (
	"mend/internal/fix"
	"mend/internal/source"
	"mend/internal/syntax"
)

// QualifyAction rewrites bare uses of Symbol to Qualifier.Symbol.
type QualifyAction struct {
	base
	Symbol    string
	Qualifier string
}

func (a *QualifyAction) Apply(in Input) (Output, error) {
	if !a.applies(in.Path) {
		return Unchanged(in), nil
	}
	o, err := syntax.Parse(0, in.Text)
	if err != nil {
		return Unchanged(in), unparsable(a.name, err)
	}
	if o.ImportsName(a.Symbol) || o.DeclaresTopLevel(a.Symbol) {
		return Unchanged(in), nil
	}
	var fixes []fix.Fix
	prefix := a.Qualifier + "."
	for _, ref := range o.UnqualifiedReferences(a.Symbol) {
		if a.isDeclName(o, ref) {
			continue
		}
		fixes = append(fixes, fix.InsertText("qualify", source.At(0, ref.Span.Start), prefix, a.Symbol))
	}
	return a.finish(in, fixes), nil
}

// isDeclName reports whether ref is the name being declared ("fun X", "val X").
func (a *QualifyAction) isDeclName(o *syntax.Outline, ref syntax.Token) bool {
	prev := previousCode(o.Tokens, ref.Span.Start)
	if prev == nil || prev.Kind != syntax.Ident {
		return false
	}
	switch prev.Text {
	case "fun", "val", "var", "class", "interface", "object", "typealias":
		return true
	}
	return false
}

func previousCode(toks []syntax.Token, off uint32) *syntax.Token {
	var prev *syntax.Token
	for i := range toks {
		t := &toks[i]
		if t.Span.Start >= off {
			break
		}
		if t.Kind != syntax.Comment {
			prev = t
		}
	}
	return prev
}
