package fuzztests

import (
	"errors"
	"testing"

	"mend/internal/patch"
	"mend/internal/syntax"
)

func FuzzStructuralActions(f *testing.F) {
	addSourceSeeds(f)
	set, err := patch.NewRegistry().BuildSet([]patch.Rule{
		{Name: "browser", Kind: "import", Imports: map[string]string{
			"document": "kotlinx.browser.document",
			"window":   "kotlinx.browser.window",
		}},
		{Name: "dups", Kind: "remove-duplicate", Match: "signature"},
		{Name: "visible", Kind: "member", Target: "Object3D", Decl: "var visible: Boolean = true"},
	})
	if err != nil {
		f.Fatal(err)
	}

	f.Fuzz(func(t *testing.T, input []byte) {
		input = clampInput(input)
		wellFormed := syntax.Validate(input) == nil
		for _, a := range set.Actions() {
			out, err := patch.CheckIdempotent(a, patch.Input{Path: "Fuzz.kt", Text: input})
			if errors.Is(err, patch.ErrUnparsable) {
				if wellFormed {
					t.Fatalf("%s rejected well-formed input", a.Name())
				}
				continue
			}
			if err != nil {
				t.Fatalf("%s: %v", a.Name(), err)
			}
			if out.Changed && wellFormed {
				if verr := syntax.Validate(out.Text); verr != nil {
					t.Fatalf("%s broke the file: %v", a.Name(), verr)
				}
			}
		}
	})
}
