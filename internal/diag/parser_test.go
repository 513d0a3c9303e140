package diag

import (
	"testing"
)

func TestParseExampleLine(t *testing.T) {
	p := NewParser(PathUnix)
	d, ok := p.Parse("e: file:///home/project/src/Foo.kt:12:5 Unresolved reference: Bar")
	if !ok {
		t.Fatal("expected line to parse")
	}
	if d.Path != "/home/project/src/Foo.kt" {
		t.Errorf("path = %q", d.Path)
	}
	if d.Line != 12 || d.Column != 5 {
		t.Errorf("position = %d:%d", d.Line, d.Column)
	}
	if d.Message != "Unresolved reference: Bar" {
		t.Errorf("message = %q", d.Message)
	}
	if d.Category != UnresolvedReference {
		t.Errorf("category = %s", d.Category)
	}
	if d.Severity != SevError {
		t.Errorf("severity = %s", d.Severity)
	}
	if name, ok := d.Subject(); !ok || name != "Bar" {
		t.Errorf("Subject() = %q, %v", name, ok)
	}
}

func TestParseSkipsNonDiagnostics(t *testing.T) {
	p := NewParser(PathUnix)
	lines := []string{
		"",
		"> Task :compileKotlinJs FAILED",
		"e: something went wrong",
		"e: file:///a/B.kt:x:1 bad line number",
		"e: file:///a/B.kt:0:1 zero line",
		"e: file:///a/B.kt:1:1",
		"w: file:///a/B.kt:3:4 Parameter 'x' is never used",
		"    val x = foo()",
		"FAILURE: Build failed with an exception.",
	}
	for _, line := range lines {
		if d, ok := p.Parse(line); ok {
			t.Errorf("line %q unexpectedly parsed into %+v", line, d)
		}
	}
}

func TestParseAcceptsConfiguredSeverities(t *testing.T) {
	p := &Parser{Style: PathUnix, Severities: []Severity{SevError, SevWarning}}
	d, ok := p.Parse("w: file:///a/B.kt:3:4 Parameter 'x' is never used\r")
	if !ok {
		t.Fatal("warning should parse when enabled")
	}
	if d.Severity != SevWarning || d.Category != Other {
		t.Fatalf("unexpected record %+v", d)
	}
}

func TestParsePathStyles(t *testing.T) {
	tests := []struct {
		style PathStyle
		line  string
		want  string
	}{
		{PathUnix, "e: file:///home/p/A.kt:1:1 m", "/home/p/A.kt"},
		{PathWindows, "e: file:///C:/p/A.kt:1:1 m", "C:/p/A.kt"},
		{PathWindows, "e: file:///home/p/A.kt:1:1 m", "/home/p/A.kt"},
		{PathVerbatim, "e: file://src/A.kt:1:1 m", "src/A.kt"},
	}
	for _, tt := range tests {
		t.Run(tt.style.String()+" "+tt.want, func(t *testing.T) {
			d, ok := NewParser(tt.style).Parse(tt.line)
			if !ok {
				t.Fatalf("%q did not parse", tt.line)
			}
			if d.Path != tt.want {
				t.Fatalf("path = %q, want %q", d.Path, tt.want)
			}
		})
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	lines := map[PathStyle][]string{
		PathUnix: {
			"e: file:///home/project/src/Foo.kt:12:5 Unresolved reference: Bar",
			"e: file:///x/Y.kt:1:1 Type mismatch: inferred type is Int but Float was expected",
			"e: file:///x/with space/Z.kt:300:41 Overload resolution ambiguity: a: b",
		},
		PathWindows: {
			"e: file:///D:/work/Foo.kt:2:9 Unresolved reference 'Baz'.",
		},
		PathVerbatim: {
			"e: file://relative/Foo.kt:7:3 Something else",
		},
	}
	for style, group := range lines {
		p := NewParser(style)
		for _, line := range group {
			d, ok := p.Parse(line)
			if !ok {
				t.Fatalf("%q did not parse", line)
			}
			again, ok := p.Parse(FormatStyle(d, style))
			if !ok {
				t.Fatalf("formatted %q did not parse", FormatStyle(d, style))
			}
			again.Raw, d.Raw = "", ""
			if again != d {
				t.Fatalf("round trip mismatch:\n  %+v\n  %+v", d, again)
			}
			if FormatStyle(d, style) != line {
				t.Fatalf("Format = %q, want %q", FormatStyle(d, style), line)
			}
		}
	}
}

func TestParseLines(t *testing.T) {
	out := "> Task :compileKotlinJs\n" +
		"e: file:///a/A.kt:1:1 Unresolved reference: X\n" +
		"e: file:///a/B.kt:2:2 Type mismatch: x\n" +
		"BUILD FAILED\n"
	bag := NewParser(PathUnix).ParseLines(SplitLines(out))
	if bag.Len() != 2 {
		t.Fatalf("expected 2 diagnostics, got %d", bag.Len())
	}
	if got := bag.Paths(); len(got) != 2 || got[0] != "/a/A.kt" {
		t.Fatalf("Paths() = %v", got)
	}
}
