package driver

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mend/internal/diag"
	"mend/internal/patch"
	"mend/internal/project"
)

const (
	needsImport = "package app\n\nfun main() { window.alert(\"hi\") }\n"
	fixedImport = "package app\n\nimport kotlinx.browser.window\n\nfun main() { window.alert(\"hi\") }\n"
	noAnchor    = "package app\n\nfun main() = println(1)\n"
)

func actions(t *testing.T, rules ...patch.Rule) *patch.Set {
	t.Helper()
	if len(rules) == 0 {
		rules = []patch.Rule{{Name: "browser", Kind: "import", Imports: map[string]string{"window": "kotlinx.browser.window"}}}
	}
	set, err := patch.NewRegistry().BuildSet(rules)
	require.NoError(t, err)
	return set
}

func tree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func read(t *testing.T, root, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(b)
}

func options(t *testing.T, root string) Options {
	return Options{
		Root:    root,
		Filter:  project.Filter{Extensions: []string{".kt"}, Exclude: project.DefaultExcludes},
		Actions: actions(t),
		Jobs:    2,
	}
}

func TestEmptyDirectoryChangesNothing(t *testing.T) {
	root := t.TempDir()
	report, err := Run(context.Background(), options(t, root))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Files)
	assert.Equal(t, 0, report.Changed)
	assert.Equal(t, 0, report.Written)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAtomicRunFixesFiles(t *testing.T) {
	root := tree(t, map[string]string{
		"src/A.kt":      needsImport,
		"src/B.kt":      noAnchor,
		"build/Gen.kt":  needsImport,
		"src/notes.txt": needsImport,
	})
	report, err := Run(context.Background(), options(t, root))
	require.NoError(t, err)

	assert.Equal(t, 2, report.Files)
	assert.Equal(t, 1, report.Changed)
	assert.Equal(t, 1, report.Written)
	assert.Equal(t, 1, report.Unchanged)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, map[string]int{"browser": 1}, report.ActionCounts)

	assert.Equal(t, fixedImport, read(t, root, "src/A.kt"))
	assert.Equal(t, noAnchor, read(t, root, "src/B.kt"))
	assert.Equal(t, needsImport, read(t, root, "build/Gen.kt"), "excluded directory untouched")

	require.Len(t, report.Results, 2)
	assert.Equal(t, "src/A.kt", report.Results[0].Rel)
	assert.Equal(t, StateDone, report.Results[0].State)
	assert.True(t, report.Results[0].Written)
	assert.False(t, report.Results[1].Changed)
	assert.Equal(t, []string{filepath.Join(root, "src", "A.kt")}, report.ChangedFiles())
}

func TestDryRunWritesNothing(t *testing.T) {
	root := tree(t, map[string]string{"A.kt": needsImport})
	opts := options(t, root)
	opts.DryRun = true

	report, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Changed)
	assert.Equal(t, 0, report.Written)
	assert.Equal(t, needsImport, read(t, root, "A.kt"))

	require.Equal(t, 1, report.Changeset.Len())
	c := report.Changeset.Changes()[0]
	assert.Equal(t, fixedImport, string(c.Proposed))
	assert.Equal(t, []string{"browser"}, c.Actions)
}

func TestIncrementalModeKeepsLineEndings(t *testing.T) {
	crlf := "\xEF\xBB\xBFpackage app\r\n\r\nfun main() { window.alert(\"hi\") }\r\n"
	root := tree(t, map[string]string{"A.kt": crlf, "B.kt": needsImport})
	opts := options(t, root)
	opts.Mode = ModeIncremental

	report, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Written)
	assert.Equal(t, "\xEF\xBB\xBFpackage app\r\n\r\nimport kotlinx.browser.window\r\n\r\nfun main() { window.alert(\"hi\") }\r\n", read(t, root, "A.kt"))
	assert.Equal(t, fixedImport, read(t, root, "B.kt"))
}

func TestDiagnosticsGateTriggeredActions(t *testing.T) {
	src := "package app\n\nval j = B.Json\n"
	root := tree(t, map[string]string{"A.kt": src, "B.kt": src})
	opts := options(t, root)
	opts.Actions = actions(t, patch.Rule{
		Name:    "json",
		Kind:    "import",
		On:      []string{"unresolved"},
		Imports: map[string]string{"Json": "kotlinx.serialization.json.Json"},
	})
	bag := diag.NewBag(0)
	bag.Add(diag.Diagnostic{
		Severity: diag.SevError,
		Path:     filepath.Join(root, "A.kt"),
		Line:     3,
		Column:   11,
		Message:  "Unresolved reference: Json",
		Category: diag.UnresolvedReference,
	})
	opts.Diagnostics = bag

	report, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Changed)
	assert.Contains(t, read(t, root, "A.kt"), "import kotlinx.serialization.json.Json\n")
	assert.Equal(t, src, read(t, root, "B.kt"))
}

func TestContinueOnErrorSkipsBrokenFile(t *testing.T) {
	root := tree(t, map[string]string{"A.kt": needsImport, "Broken.kt": "fun f() {\n window\n"})
	report, err := Run(context.Background(), options(t, root))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Changed)
	assert.Equal(t, 1, report.Failed)
	failed := report.Failures()
	require.Len(t, failed, 1)
	assert.Equal(t, "Broken.kt", failed[0].Rel)
	assert.ErrorIs(t, failed[0].Err, patch.ErrUnparsable)

	var ferr *FileError
	require.ErrorAs(t, failed[0].Err, &ferr)
	assert.Equal(t, "browser", ferr.Action)
	assert.Equal(t, fixedImport, read(t, root, "A.kt"))
}

func TestFailFastWritesNothing(t *testing.T) {
	root := tree(t, map[string]string{"A.kt": needsImport, "Broken.kt": "fun f() {\n window\n"})
	opts := options(t, root)
	opts.Policy = FailFast

	report, err := Run(context.Background(), opts)
	require.ErrorIs(t, err, patch.ErrUnparsable)
	assert.Equal(t, 0, report.Written)
	assert.Equal(t, needsImport, read(t, root, "A.kt"))
}

func TestOscillatingActionsRejectFile(t *testing.T) {
	src := "val foo = bar\n"
	root := tree(t, map[string]string{"A.kt": src})
	opts := options(t, root)
	opts.Actions = actions(t,
		patch.Rule{Name: "to-bar", Kind: "replace", Pattern: `\bfoo\b`, Replace: "bar"},
		patch.Rule{Name: "to-foo", Kind: "replace", Pattern: `\bbar\b`, Replace: "foo"},
	)

	report, err := Run(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)
	assert.ErrorIs(t, report.Results[0].Err, ErrOscillation)
	var ferr *FileError
	require.ErrorAs(t, report.Results[0].Err, &ferr)
	assert.Equal(t, "to-bar", ferr.Action)
	assert.Equal(t, src, read(t, root, "A.kt"))
	assert.Equal(t, 0, report.Written)
}

func TestChainedActionsSettle(t *testing.T) {
	root := tree(t, map[string]string{"A.kt": "val foo = 1\n"})
	opts := options(t, root)
	opts.Actions = actions(t,
		patch.Rule{Name: "foo-to-bar", Kind: "replace", Pattern: `\bfoo\b`, Replace: "bar"},
		patch.Rule{Name: "bar-to-baz", Kind: "replace", Pattern: `\bbar\b`, Replace: "baz"},
	)

	report, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, "val baz = 1\n", read(t, root, "A.kt"))
}

func TestNonIdempotentActionIsSkipped(t *testing.T) {
	root := tree(t, map[string]string{"A.kt": needsImport})
	opts := options(t, root)
	opts.Actions = actions(t,
		patch.Rule{Name: "grow", Kind: "replace", Pattern: `alert`, Replace: "alertalert"},
		patch.Rule{Name: "browser", Kind: "import", Imports: map[string]string{"window": "kotlinx.browser.window"}},
	)

	report, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Changed)
	assert.Equal(t, fixedImport, read(t, root, "A.kt"))

	res := report.Results[0]
	require.Len(t, res.Actions, 2)
	assert.ErrorIs(t, res.Actions[0].Err, patch.ErrNotIdempotent)
	assert.Equal(t, map[string]int{"browser": 1}, report.ActionCounts)
}

func TestExplicitFilesAndEvents(t *testing.T) {
	root := tree(t, map[string]string{"A.kt": needsImport, "B.kt": needsImport})
	opts := options(t, root)
	a := filepath.Join(root, "A.kt")
	opts.Files = []string{a, a}

	var mu sync.Mutex
	var events []Event
	opts.Events = SinkFunc(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})

	report, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Files)
	assert.Equal(t, needsImport, read(t, root, "B.kt"))

	var states []State
	for _, e := range events {
		states = append(states, e.State)
	}
	assert.Equal(t, []State{StateRead, StateTransformed, StateWritten, StateDone}, states)
}

func TestMissingFileFails(t *testing.T) {
	root := t.TempDir()
	opts := options(t, root)
	opts.Files = []string{filepath.Join(root, "Gone.kt")}

	report, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.ErrorIs(t, report.Results[0].Err, ErrFileIO)

	opts.Policy = FailFast
	_, err = Run(context.Background(), opts)
	assert.ErrorIs(t, err, ErrFileIO)
}

func TestCancelledContext(t *testing.T) {
	root := tree(t, map[string]string{"A.kt": needsImport})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, options(t, root))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, needsImport, read(t, root, "A.kt"))
}

func TestParsePolicyAndMode(t *testing.T) {
	p, err := ParsePolicy("fail-fast")
	require.NoError(t, err)
	assert.Equal(t, FailFast, p)
	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, ContinueOnError, p)
	_, err = ParsePolicy("panic")
	assert.Error(t, err)

	m, err := ParseMode("Incremental")
	require.NoError(t, err)
	assert.Equal(t, ModeIncremental, m)
	assert.Equal(t, "atomic", ModeAtomic.String())
	_, err = ParseMode("yolo")
	assert.Error(t, err)
}
