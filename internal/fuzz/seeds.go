package fuzztests

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

const maxSeedBytes = 64 << 10 // 64 KiB, ограничение для тестового корпуса

var kotlinSeeds = []string{
	"",
	"package app\n",
	"package app\n\nimport kotlinx.browser.document\n\nfun main() { document.title = \"x\" }\n",
	"class A {\n    fun f(x: Int) = x\n    fun f(x: Int) = x\n}\n",
	"val s = \"\"\"\n raw ${'$'}{x} \"\"\"\n",
	"/* /* nested */ */ val a = '}'\n",
	"fun f() {\n window\n",
	"\xEF\xBB\xBFpackage app\r\n\r\nfun main() {}\r\n",
	"@file:JsModule(\"x\")\npackage a.b\nimport c.D as E\ntypealias F = E\n",
}

// addSourceSeeds adds the built-in snippets and every .kt file under testdata/seeds.
func addSourceSeeds(f *testing.F) {
	for _, s := range kotlinSeeds {
		f.Add([]byte(s))
	}
	root := filepath.Join("testdata", "seeds")
	// #nosec G304 -- paths come from the package testdata walk
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() || filepath.Ext(path) != ".kt" {
			return nil
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		f.Add(clampSeed(src))
		return nil
	})
}

func clampSeed(src []byte) []byte {
	if len(src) <= maxSeedBytes {
		return append([]byte(nil), src...)
	}
	return append([]byte(nil), src[:maxSeedBytes]...)
}
