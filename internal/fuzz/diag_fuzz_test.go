package fuzztests

import (
	"testing"

	"mend/internal/diag"
)

func FuzzDiagnosticLine(f *testing.F) {
	for _, s := range []string{
		"e: file:///home/project/src/Foo.kt:12:5 Unresolved reference: Bar",
		"w: file:///a/B.kt:3:4 Parameter 'x' is never used",
		"e: file:///C:/work/app/src/Main.kt:1:1 Type mismatch: inferred type is String but Int was expected",
		"e: file:///a/B.kt:0:1 zero line",
		"> Task :compileKotlinJs FAILED",
		"",
	} {
		f.Add(s)
	}

	p := diag.NewParser(diag.PathUnix)
	f.Fuzz(func(t *testing.T, line string) {
		d, ok := p.Parse(line)
		if !ok {
			return
		}
		if d.Line == 0 || d.Column == 0 {
			t.Fatalf("parsed zero position from %q", line)
		}
		if d.Category != diag.Classify(d.Message) {
			t.Fatalf("category %v does not match message %q", d.Category, d.Message)
		}
		again, ok := p.Parse(diag.Format(d))
		if !ok {
			t.Fatalf("Format output %q does not parse", diag.Format(d))
		}
		if again.Line != d.Line || again.Column != d.Column || again.Severity != d.Severity || again.Category != d.Category {
			t.Fatalf("round trip changed %+v into %+v", d, again)
		}
	})
}
