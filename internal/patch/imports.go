package patch

import (
	"strings"

	"mend/internal/fix"
	"mend/internal/source"
	"mend/internal/syntax"
)

// ImportSpec maps a simple name to the import that provides it.
type ImportSpec struct {
	Symbol string
	Path   string
}

// ImportAction adds missing import directives.
type ImportAction struct {
	base
	Specs []ImportSpec
	// RequireExisting leaves files without any import untouched.
	RequireExisting bool
}

func (a *ImportAction) Apply(in Input) (Output, error) {
	if !a.applies(in.Path) {
		return Unchanged(in), nil
	}
	o, err := syntax.Parse(0, in.Text)
	if err != nil {
		return Unchanged(in), unparsable(a.name, err)
	}
	if a.RequireExisting && len(o.Imports) == 0 {
		return Unchanged(in), nil
	}

	unresolved := make(map[string]bool)
	for _, d := range in.Diagnostics {
		if name, ok := d.Subject(); ok {
			unresolved[name] = true
		}
	}

	var lines []string
	seen := make(map[string]bool)
	for _, spec := range a.Specs {
		if seen[spec.Path] || !a.needed(o, spec, unresolved) {
			continue
		}
		seen[spec.Path] = true
		lines = append(lines, "import "+spec.Path+"\n")
	}
	if len(lines) == 0 {
		return Unchanged(in), nil
	}

	at := o.ImportInsertPoint()
	text := strings.Join(lines, "")
	switch {
	case at > 0 && in.Text[at-1] != '\n':
		text = "\n" + text
	case len(o.Imports) == 0 && o.Package != nil:
		// keep a blank line between the package directive and the imports
		text = "\n" + text
	case len(o.Imports) == 0 && at < uint32(len(in.Text)):
		text += "\n"
	}
	f := fix.InsertText("add imports", source.At(0, at), text, "")
	return a.finish(in, []fix.Fix{f}), nil
}

func (a *ImportAction) needed(o *syntax.Outline, spec ImportSpec, unresolved map[string]bool) bool {
	if o.HasImport(spec.Path) || o.ImportsName(spec.Symbol) || o.DeclaresTopLevel(spec.Symbol) {
		return false
	}
	if o.Package != nil && spec.Path == o.Package.Name+"."+spec.Symbol {
		return false
	}
	return unresolved[spec.Symbol] || len(o.UnqualifiedReferences(spec.Symbol)) > 0
}
