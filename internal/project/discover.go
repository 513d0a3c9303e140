package project

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter selects which files under a root take part in a run.
type Filter struct {
	// Extensions such as ".kt"; the leading dot is optional. Empty means every file.
	Extensions []string
	// Include patterns (doublestar, relative to root, slash separated). Empty means everything.
	Include []string
	// Exclude patterns win over Include.
	Exclude []string
}

// DefaultExcludes skips build output and VCS metadata.
var DefaultExcludes = []string{"**/build/**", "**/.gradle/**", "**/.git/**", "**/.idea/**"}

// Validate reports malformed glob patterns.
func (f Filter) Validate() error {
	for _, p := range append(append([]string(nil), f.Include...), f.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	return nil
}

// Match reports whether rel (slash separated, relative to root) passes the filter.
func (f Filter) Match(rel string) bool {
	rel = filepath.ToSlash(rel)
	if len(f.Extensions) > 0 && !hasExtension(rel, f.Extensions) {
		return false
	}
	for _, p := range f.Exclude {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return false
		}
	}
	if len(f.Include) == 0 {
		return true
	}
	for _, p := range f.Include {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func hasExtension(path string, exts []string) bool {
	ext := filepath.Ext(path)
	for _, e := range exts {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// Discover returns every regular file under root that passes the filter.
// Paths are absolute-or-root-joined as walked and always sorted, so runs are reproducible.
func Discover(root string, filter Filter) ([]string, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && excludedDir(rel, filter.Exclude) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if filter.Match(rel) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", root, err)
	}

	// Сортируем для детерминированного порядка
	sort.Strings(files)
	return files, nil
}

// excludedDir prunes directories whose whole subtree is excluded ("dir/**").
func excludedDir(rel string, patterns []string) bool {
	for _, p := range patterns {
		if !strings.HasSuffix(p, "/**") {
			continue
		}
		if ok, err := doublestar.Match(strings.TrimSuffix(p, "/**"), rel); err == nil && ok {
			return true
		}
	}
	return false
}
