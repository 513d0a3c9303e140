package changeset

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// rename is swapped in tests to simulate failures.
var rename = os.Rename

type staged struct {
	change *Change
	tmp    string
	placed bool
}

// Commit writes every change or none of them. Each proposal goes to a
// synced temp file next to its target first; the temps are then renamed
// into place. If any step fails, files already replaced get their original
// bytes back and the remaining temps are removed. It returns the committed
// paths in order.
func (cs *Changeset) Commit() ([]string, error) {
	changes := cs.Changes()
	if len(changes) == 0 {
		return nil, nil
	}
	for _, c := range changes {
		if err := checkFresh(c); err != nil {
			return nil, err
		}
	}

	items := make([]*staged, 0, len(changes))
	cleanup := func() {
		for _, it := range items {
			if !it.placed {
				_ = os.Remove(it.tmp)
			}
		}
	}
	for _, c := range changes {
		tmp, err := writeTemp(c.Path, c.Proposed, c.Mode)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("%w: stage %s: %w", ErrCommit, c.display(), err)
		}
		items = append(items, &staged{change: c, tmp: tmp})
	}

	for _, it := range items {
		if err := rename(it.tmp, it.change.Path); err != nil {
			restoreErr := rollback(items)
			cleanup()
			return nil, errors.Join(
				fmt.Errorf("%w: replace %s: %w", ErrCommit, it.change.display(), err),
				restoreErr,
			)
		}
		it.placed = true
	}

	paths := make([]string, 0, len(items))
	dirs := make(map[string]bool)
	for _, it := range items {
		paths = append(paths, it.change.Path)
		dirs[filepath.Dir(it.change.Path)] = true
	}
	for dir := range dirs {
		_ = syncDir(dir)
	}
	return paths, nil
}

// CommitOne writes a single change atomically. Used by incremental runs
// where every file is written as soon as it is transformed.
func CommitOne(c *Change) error {
	if !c.Changed() {
		return nil
	}
	if err := checkFresh(c); err != nil {
		return err
	}
	if err := writeAtomic(c.Path, c.Proposed, c.Mode); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCommit, c.display(), err)
	}
	return nil
}

func rollback(items []*staged) error {
	var errs []error
	for _, it := range items {
		if !it.placed {
			continue
		}
		if err := writeAtomic(it.change.Path, it.change.Original, it.change.Mode); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", it.change.display(), err))
			continue
		}
		it.placed = false
		it.tmp = ""
	}
	return errors.Join(errs...)
}

func checkFresh(c *Change) error {
	cur, err := os.ReadFile(c.Path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCommit, c.display(), err)
	}
	if !bytes.Equal(cur, c.Original) {
		return fmt.Errorf("%s: %w", c.display(), ErrStale)
	}
	return nil
}

func writeTemp(path string, data []byte, mode os.FileMode) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(path), ".mend-*")
	if err != nil {
		return "", err
	}
	name := f.Name()
	fail := func(err error) (string, error) {
		_ = f.Close()
		_ = os.Remove(name)
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		return fail(err)
	}
	if err := f.Chmod(mode); err != nil && runtime.GOOS != "windows" {
		return fail(err)
	}
	if err := f.Sync(); err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}

func writeAtomic(path string, data []byte, mode os.FileMode) error {
	tmp, err := writeTemp(path, data, mode)
	if err != nil {
		return err
	}
	// Атомарная замена
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return syncDir(filepath.Dir(path))
}

// syncDir persists directory metadata after renames. Windows has no
// directory fsync.
func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
