package changeset

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func change(path, rel, from, to string) *Change {
	return &Change{Path: path, Rel: rel, Original: []byte(from), Proposed: []byte(to), Actions: []string{"test"}}
}

func readFile(t *testing.T, p string) string {
	t.Helper()
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	return string(b)
}

func TestAddIgnoresNoops(t *testing.T) {
	cs := New()
	cs.Add(change("/a", "a", "x", "x"))
	cs.Add(nil)
	assert.Equal(t, 0, cs.Len())

	cs.Add(change("/b", "b", "x", "y"))
	cs.Add(change("/a", "a", "x", "z"))
	require.Equal(t, 2, cs.Len())
	got := cs.Changes()
	assert.Equal(t, "/a", got[0].Path)
	assert.Equal(t, os.FileMode(0o644), got[0].Mode)
}

func TestValidateRejectsBrokenProposal(t *testing.T) {
	cs := New()
	cs.Add(change("/ok", "ok", "class A {}\n", "class A { val x = 1 }\n"))
	cs.Add(change("/broken", "broken", "class A {}\n", "class A {\n"))
	cs.Add(change("/was-broken", "was-broken", "class A {\n", "class A {\n val x = 1\n"))

	rejected := cs.Validate()
	require.Len(t, rejected, 1)
	assert.Equal(t, "/broken", rejected[0].Path)
	assert.ErrorIs(t, rejected[0].Err, ErrInvalidOutput)
	assert.Equal(t, 2, cs.Len())
	_, ok := cs.Get("/broken")
	assert.False(t, ok)
}

func TestCommitWritesAll(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "A.kt", "val a = 1\n")
	b := writeFile(t, dir, "B.kt", "val b = 1\n")
	require.NoError(t, os.Chmod(b, 0o600))

	cs := New()
	cs.Add(change(a, "A.kt", "val a = 1\n", "val a = 2\n"))
	c := change(b, "B.kt", "val b = 1\n", "val b = 2\n")
	c.Mode = 0o600
	cs.Add(c)

	paths, err := cs.Commit()
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, paths)
	assert.Equal(t, "val a = 2\n", readFile(t, a))
	assert.Equal(t, "val b = 2\n", readFile(t, b))

	info, err := os.Stat(b)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files left behind")
}

func TestCommitRollsBackOnFailure(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "A.kt", "val a = 1\n")
	b := writeFile(t, dir, "B.kt", "val b = 1\n")

	cs := New()
	cs.Add(change(a, "A.kt", "val a = 1\n", "val a = 2\n"))
	cs.Add(change(b, "B.kt", "val b = 1\n", "val b = 2\n"))

	calls := 0
	rename = func(from, to string) error {
		calls++
		if calls == 2 {
			return errors.New("disk full")
		}
		return os.Rename(from, to)
	}
	t.Cleanup(func() { rename = os.Rename })

	_, err := cs.Commit()
	require.ErrorIs(t, err, ErrCommit)
	assert.Contains(t, err.Error(), "disk full")

	assert.Equal(t, "val a = 1\n", readFile(t, a), "first file restored")
	assert.Equal(t, "val b = 1\n", readFile(t, b), "second file untouched")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestCommitRefusesStaleFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "A.kt", "val a = 1\n")
	b := writeFile(t, dir, "B.kt", "edited meanwhile\n")

	cs := New()
	cs.Add(change(a, "A.kt", "val a = 1\n", "val a = 2\n"))
	cs.Add(change(b, "B.kt", "val b = 1\n", "val b = 2\n"))

	_, err := cs.Commit()
	require.ErrorIs(t, err, ErrStale)
	assert.Equal(t, "val a = 1\n", readFile(t, a))
	assert.Equal(t, "edited meanwhile\n", readFile(t, b))
}

func TestCommitOne(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "A.kt", "x += y\n")
	require.NoError(t, CommitOne(change(a, "A.kt", "x += y\n", "x = x + y\n")))
	assert.Equal(t, "x = x + y\n", readFile(t, a))

	// no-op change never touches the disk
	require.NoError(t, CommitOne(change(filepath.Join(dir, "missing.kt"), "", "a", "a")))
}

func TestCommitEmpty(t *testing.T) {
	paths, err := New().Commit()
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestDiff(t *testing.T) {
	cs := New()
	cs.Add(change("/root/src/A.kt", "src/A.kt", "import a.B\n\nval x = 1\n", "import a.B\nimport c.D\n\nval x = 1\n"))

	var buf bytes.Buffer
	require.NoError(t, cs.Diff(&buf, DiffOptions{}))
	out := buf.String()
	assert.Contains(t, out, "--- a/src/A.kt")
	assert.Contains(t, out, "+++ b/src/A.kt")
	assert.Contains(t, out, "+import c.D\n")
	assert.NotContains(t, out, "\x1b[")

	buf.Reset()
	require.NoError(t, cs.Diff(&buf, DiffOptions{Color: true}))
	assert.Contains(t, buf.String(), "\x1b[32m+import c.D")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))

	c, _ := cs.Get("/root/src/A.kt")
	added, removed := c.Stat()
	assert.Equal(t, 1, added)
	assert.Equal(t, 0, removed)
}
