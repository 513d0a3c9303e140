package diag

import "testing"

func TestClassifyPriority(t *testing.T) {
	tests := []struct {
		msg  string
		want Category
	}{
		{"Unresolved reference: Bar", UnresolvedReference},
		{"Unresolved reference 'Bar'.", UnresolvedReference},
		{"type mismatch: inferred type is Int", TypeMismatch},
		{"Type mismatch: inferred type is Int", TypeMismatch},
		{"Overload resolution ambiguity: public fun a()", OverloadAmbiguity},
		{"Unresolved reference: Bar after type mismatch", UnresolvedReference},
		{"type mismatch caused Overload resolution ambiguity", TypeMismatch},
		{"TYPE MISMATCH: inferred type is Int", TypeMismatch},
		{"unresolved reference: Bar", Other},
		{"overload resolution ambiguity: fun a()", Other},
		{"'when' expression must be exhaustive", Other},
		{"", Other},
	}
	for _, tt := range tests {
		if got := Classify(tt.msg); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.msg, got, tt.want)
		}
		// детерминированность
		if again := Classify(tt.msg); again != Classify(tt.msg) {
			t.Errorf("Classify(%q) is not deterministic", tt.msg)
		}
	}
}

func TestParseCategory(t *testing.T) {
	for _, c := range Categories {
		for _, s := range []string{c.Slug(), c.String()} {
			got, err := ParseCategory(s)
			if err != nil || got != c {
				t.Errorf("ParseCategory(%q) = %v, %v", s, got, err)
			}
		}
	}
	if _, err := ParseCategory("nope"); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestSubjectOnlyForUnresolved(t *testing.T) {
	d := Diagnostic{Category: TypeMismatch, Message: "Unresolved reference: X"}
	if _, ok := d.Subject(); ok {
		t.Error("Subject must only apply to unresolved references")
	}
}
