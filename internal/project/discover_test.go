package project

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte("package x\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
}

func relAll(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			t.Fatalf("rel: %v", err)
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func TestDiscoverSortedByExtension(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "z/Last.kt", "a/First.kt", "a/notes.md", "m/Mid.KT", "build/gen/Gen.kt")

	got, err := Discover(root, Filter{Extensions: []string{"kt"}, Exclude: DefaultExcludes})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []string{"a/First.kt", "m/Mid.KT", "z/Last.kt"}
	if rel := relAll(t, root, got); !slices.Equal(rel, want) {
		t.Fatalf("got %v, want %v", rel, want)
	}
}

func TestDiscoverInclude(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "src/commonMain/kotlin/A.kt", "src/jvmMain/kotlin/B.kt")

	got, err := Discover(root, Filter{
		Extensions: []string{".kt"},
		Include:    []string{"src/commonMain/**"},
	})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if rel := relAll(t, root, got); !slices.Equal(rel, []string{"src/commonMain/kotlin/A.kt"}) {
		t.Fatalf("unexpected files %v", rel)
	}
}

func TestDiscoverEmptyDirectory(t *testing.T) {
	got, err := Discover(t.TempDir(), Filter{Extensions: []string{".kt"}})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no files, got %v", got)
	}
}

func TestDiscoverBadPattern(t *testing.T) {
	if _, err := Discover(t.TempDir(), Filter{Exclude: []string{"[unclosed"}}); err == nil {
		t.Fatal("expected pattern error")
	}
}

func TestFindManifestWalksUp(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ManifestName), []byte(""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, ok, err := FindProjectRoot(nested)
	if err != nil || !ok {
		t.Fatalf("FindProjectRoot: ok=%v err=%v", ok, err)
	}
	want, _ := filepath.Abs(root)
	if got != want {
		t.Fatalf("root = %q, want %q", got, want)
	}
}

func TestFindManifestStopsAtRepository(t *testing.T) {
	outer := t.TempDir()
	if err := os.WriteFile(filepath.Join(outer, ManifestName), []byte(""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	repo := filepath.Join(outer, "repo")
	nested := filepath.Join(repo, "src")
	for _, d := range []string{filepath.Join(repo, ".git"), nested} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	if _, ok, err := FindManifest(nested); err != nil || ok {
		t.Fatalf("manifest outside the repository must not be found: ok=%v err=%v", ok, err)
	}
}

func TestFindProjectRootFallsBackToGradle(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "settings.gradle.kts", "app/src/main/kotlin/Main.kt")
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, ok, err := FindProjectRoot(filepath.Join(root, "app", "src", "main", "kotlin"))
	if err != nil || !ok {
		t.Fatalf("FindProjectRoot: ok=%v err=%v", ok, err)
	}
	if got != root {
		t.Fatalf("root = %q, want %q", got, root)
	}

	if _, ok, _ := FindProjectRoot(t.TempDir()); ok {
		t.Fatal("no manifest and no Gradle markers means no root")
	}
}

func TestRootDigestStable(t *testing.T) {
	root := t.TempDir()
	if RootDigest(root) != RootDigest(root+string(filepath.Separator)+".") {
		t.Fatal("digest must ignore redundant path elements")
	}
	if RootDigest(root).Hex() == RootDigest(filepath.Join(root, "x")).Hex() {
		t.Fatal("different roots must differ")
	}
}
