package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mend/internal/diag"
	"mend/internal/syntax"
)

func mustBuild(t *testing.T, r Rule) Action {
	t.Helper()
	a, err := NewRegistry().Build(r)
	require.NoError(t, err)
	return a
}

func apply(t *testing.T, a Action, text string, diags ...diag.Diagnostic) Output {
	t.Helper()
	out, err := CheckIdempotent(a, Input{Path: "src/Main.kt", Text: []byte(text), Diagnostics: diags})
	require.NoError(t, err)
	if out.Changed {
		require.NoError(t, syntax.Validate(out.Text), "output must stay well-formed")
	}
	return out
}

func importRule() Rule {
	return Rule{
		Name: "browser-imports",
		Kind: "import",
		Imports: map[string]string{
			"document": "kotlinx.browser.document",
			"window":   "kotlinx.browser.window",
		},
	}
}

func TestImportAddsAfterLastImport(t *testing.T) {
	src := "package app\n\nimport kotlin.math.PI\n\nfun main() {\n    document.title = \"x\"\n}\n"
	out := apply(t, mustBuild(t, importRule()), src)

	require.True(t, out.Changed)
	assert.Equal(t, "package app\n\nimport kotlin.math.PI\nimport kotlinx.browser.document\n\nfun main() {\n    document.title = \"x\"\n}\n", string(out.Text))
	assert.Equal(t, 1, out.Edits)
}

func TestImportAfterPackage(t *testing.T) {
	src := "package app\n\nfun main() { window.alert(\"hi\") }\n"
	out := apply(t, mustBuild(t, importRule()), src)
	assert.Equal(t, "package app\n\nimport kotlinx.browser.window\n\nfun main() { window.alert(\"hi\") }\n", string(out.Text))
}

func TestImportRequireExistingLeavesFileIdentical(t *testing.T) {
	r := importRule()
	r.RequireExistingImports = true
	src := "package app\n\nfun main() { window.alert(\"hi\") }\n"
	out := apply(t, mustBuild(t, r), src)
	assert.False(t, out.Changed)
	assert.Equal(t, src, string(out.Text))
}

func TestImportIgnoresCommentsAndStrings(t *testing.T) {
	src := "import a.B\n// document\nval s = \"window\"\nval d = x.document\n"
	out := apply(t, mustBuild(t, importRule()), src)
	assert.False(t, out.Changed)
}

func TestImportFromDiagnostic(t *testing.T) {
	r := Rule{Name: "r", Kind: "import", On: []string{"unresolved"}, Imports: map[string]string{"Json": "kotlinx.serialization.json.Json"}}
	a := mustBuild(t, r)
	// the name only appears as a call on a receiver, so the diagnostic decides
	src := "import a.B\n\nval j = B.Json\n"
	d := diag.Diagnostic{Category: diag.UnresolvedReference, Message: "Unresolved reference: Json"}

	assert.False(t, apply(t, a, src).Changed)
	out := apply(t, a, src, d)
	assert.True(t, out.Changed)
	assert.Contains(t, string(out.Text), "import kotlinx.serialization.json.Json\n")
}

func TestImportSkipsCoveredSymbols(t *testing.T) {
	src := "import kotlinx.browser.*\n\nfun f() = document\n"
	assert.False(t, apply(t, mustBuild(t, importRule()), src).Changed)

	local := "package kotlinx.browser\n\nval x = window\n"
	assert.False(t, apply(t, mustBuild(t, importRule()), local).Changed)
}

func TestImportRespectsAlias(t *testing.T) {
	a := mustBuild(t, Rule{Name: "r", Kind: "import", Imports: map[string]string{"D": "x.y.D"}})
	src := "import a.b.C as D\n\nval d = D()\n"
	assert.False(t, apply(t, a, src).Changed)
}

func TestImportRejectsBrokenInput(t *testing.T) {
	a := mustBuild(t, importRule())
	in := Input{Path: "a.kt", Text: []byte("fun f() {\n document\n")}
	out, err := a.Apply(in)
	require.ErrorIs(t, err, ErrUnparsable)
	assert.Equal(t, in.Text, out.Text)
}

func TestReplaceCodeOnly(t *testing.T) {
	a := mustBuild(t, Rule{Name: "plus-assign", Kind: "replace", Pattern: `(\w+) = (\w+) \+ (\w+)`, Replace: "$1 += $3"})
	src := "fun f() {\n    x = x + y\n    // x = x + y\n    val s = \"x = x + y\"\n}\n"
	out := apply(t, a, src)
	assert.Equal(t, "fun f() {\n    x += y\n    // x = x + y\n    val s = \"x = x + y\"\n}\n", string(out.Text))
}

func TestReplaceUnlessAndPaths(t *testing.T) {
	off := false
	r := Rule{Name: "r", Kind: "replace", Pattern: `console\.log`, Replace: "println", Unless: "@file:Suppress", CodeOnly: &off, Paths: []string{"src/**/*.kt"}}
	a := mustBuild(t, r)

	assert.True(t, apply(t, a, "fun f() = console.log(1)\n").Changed)
	assert.False(t, apply(t, a, "@file:Suppress(\"x\")\nfun f() = console.log(1)\n").Changed)

	out, err := a.Apply(Input{Path: "test/Main.kt", Text: []byte("console.log(1)")})
	require.NoError(t, err)
	assert.False(t, out.Changed)
}

func TestCheckIdempotentRejectsGrowingRewrite(t *testing.T) {
	a := mustBuild(t, Rule{Name: "grow", Kind: "replace", Pattern: `foo`, Replace: "foofoo"})
	_, err := CheckIdempotent(a, Input{Text: []byte("val foo = 1\n")})
	require.ErrorIs(t, err, ErrNotIdempotent)
}

func TestQualify(t *testing.T) {
	a := mustBuild(t, Rule{Name: "q", Kind: "qualify", Symbol: "PI", Qualifier: "kotlin.math"})
	src := "val r = PI * 2\nval s = kotlin.math.PI\nval t = \"PI\"\n"
	out := apply(t, a, src)
	assert.Equal(t, "val r = kotlin.math.PI * 2\nval s = kotlin.math.PI\nval t = \"PI\"\n", string(out.Text))

	imported := "import kotlin.math.PI\nval r = PI\n"
	assert.False(t, apply(t, a, imported).Changed)
}

func TestQualifySkipsAliasedImport(t *testing.T) {
	a := mustBuild(t, Rule{Name: "q", Kind: "qualify", Symbol: "Js", Qualifier: "other"})
	src := "import kotlin.js.JsName as Js\n\nval a = Js\n"
	assert.False(t, apply(t, a, src).Changed)
}

const sceneSrc = `package engine

class Scene(val name: String) {
    val nodes = mutableListOf<String>()

    fun add(n: String) {
        nodes.add(n)
    }

    fun clear() {
        nodes.clear()
    }

    fun add(n: String) {
        nodes.add(n)
    }
}

class Empty {}
`

func TestMemberInsertedAfterOpeningBrace(t *testing.T) {
	a := mustBuild(t, Rule{Name: "m", Kind: "member", Target: "Scene", Decl: "var visible: Boolean = true"})
	out := apply(t, a, sceneSrc)
	require.True(t, out.Changed)
	assert.Contains(t, string(out.Text), "class Scene(val name: String) {\n    var visible: Boolean = true\n    val nodes")

	empty := mustBuild(t, Rule{Name: "e", Kind: "member", Target: "Empty", Decl: "fun size(): Int {\n    return 0\n}"})
	out = apply(t, empty, sceneSrc)
	assert.Contains(t, string(out.Text), "class Empty {\n    fun size(): Int {\n        return 0\n    }\n}\n")
}

func TestMemberPresentIsNoop(t *testing.T) {
	a := mustBuild(t, Rule{Name: "m", Kind: "member", Target: "Scene", Decl: "fun clear() { }"})
	assert.False(t, apply(t, a, sceneSrc).Changed)

	missing := mustBuild(t, Rule{Name: "m", Kind: "member", Target: "Nope", Decl: "fun clear() { }"})
	assert.False(t, apply(t, missing, sceneSrc).Changed)
}

func TestAfterDecl(t *testing.T) {
	decl := "operator fun Scene.plus(n: String): Scene {\n    add(n)\n    return this\n}"
	a := mustBuild(t, Rule{Name: "op", Kind: "after-decl", Target: "Scene", Decl: decl})
	out := apply(t, a, sceneSrc)
	require.True(t, out.Changed)
	assert.Contains(t, string(out.Text), "    }\n}\n\n"+decl+"\n\nclass Empty {}\n")
}

func TestRemoveDuplicate(t *testing.T) {
	a := mustBuild(t, Rule{Name: "dups", Kind: "remove-duplicate", Target: "Scene"})
	out := apply(t, a, sceneSrc)
	require.True(t, out.Changed)
	want := `package engine

class Scene(val name: String) {
    val nodes = mutableListOf<String>()

    fun add(n: String) {
        nodes.add(n)
    }

    fun clear() {
        nodes.clear()
    }
}

class Empty {}
`
	assert.Equal(t, want, string(out.Text))
}

func TestRemoveDuplicateBySignatureKeepsOverloads(t *testing.T) {
	src := "class A {\n    fun f(x: Int) = x\n    fun f(x: String) = x\n}\n"
	bySig := mustBuild(t, Rule{Name: "d", Kind: "remove-duplicate", Match: "signature"})
	assert.False(t, apply(t, bySig, src).Changed)

	byName := mustBuild(t, Rule{Name: "d", Kind: "remove-duplicate"})
	assert.Equal(t, "class A {\n    fun f(x: Int) = x\n}\n", string(apply(t, byName, src).Text))
}

func TestSetAppliesInOrderAndHonoursTriggers(t *testing.T) {
	set, err := NewRegistry().BuildSet([]Rule{
		{Name: "rename", Kind: "replace", Pattern: `\bfoo\b`, Replace: "bar"},
		{Name: "only-on-mismatch", Kind: "replace", On: []string{"type-mismatch"}, Pattern: `\bbar\b`, Replace: "baz"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())

	in := Input{Text: []byte("val foo = 1\n")}
	out, err := set.Apply(in)
	require.NoError(t, err)
	assert.Equal(t, "val bar = 1\n", string(out.Text))

	in.Diagnostics = []diag.Diagnostic{{Category: diag.TypeMismatch}}
	out, err = set.Apply(in)
	require.NoError(t, err)
	assert.Equal(t, "val baz = 1\n", string(out.Text))
	assert.Equal(t, 2, out.Edits)
}

func TestRegistryValidation(t *testing.T) {
	reg := NewRegistry()
	cases := []Rule{
		{Kind: "import", Imports: map[string]string{"a": "b.a"}},
		{Name: "x", Kind: "teleport"},
		{Name: "x", Kind: "replace"},
		{Name: "x", Kind: "replace", Pattern: "("},
		{Name: "x", Kind: "import"},
		{Name: "x", Kind: "qualify", Symbol: "A"},
		{Name: "x", Kind: "member", Target: "A", Decl: "fun broken( {"},
		{Name: "x", Kind: "member", Target: "A", Decl: "val a = 1\nval b = 2"},
		{Name: "x", Kind: "remove-duplicate", Match: "fuzzy"},
		{Name: "x", Kind: "replace", Pattern: "a", On: []string{"warnings"}},
		{Name: "x", Kind: "replace", Pattern: "a", Paths: []string{"[a"}},
	}
	for _, r := range cases {
		_, err := reg.Build(r)
		assert.Error(t, err, "rule %+v", r)
	}

	_, err := reg.Build(Rule{Name: "x", Kind: "teleport"})
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = reg.BuildSet([]Rule{
		{Name: "same", Kind: "replace", Pattern: "a"},
		{Name: "same", Kind: "replace", Pattern: "b"},
	})
	assert.ErrorIs(t, err, ErrInvalidRule)

	assert.Equal(t, []string{"after-decl", "import", "member", "qualify", "remove-duplicate", "replace"}, reg.Kinds())
}
