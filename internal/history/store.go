// Package history keeps a small on-disk record of past runs per project root.
package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"mend/internal/diag"
	"mend/internal/project"
)

// Current schema version - increment when Snapshot format changes
const schemaVersion uint16 = 1

const ext = ".mp"

// Snapshot is the outcome of one fix or loop run.
type Snapshot struct {
	Schema  uint16
	RunID   string
	Time    time.Time
	Root    string
	Command string
	// Counts holds error diagnostics per category slug, as seen by the last build of the run.
	Counts       map[string]int
	Total        int
	Iterations   int
	FilesChanged int
	Files        []string
}

// NewSnapshot stamps a snapshot with a fresh run id and the current time.
func NewSnapshot(root, command string, counts diag.Counts) *Snapshot {
	s := &Snapshot{
		Schema:  schemaVersion,
		RunID:   uuid.NewString(),
		Time:    time.Now().UTC(),
		Root:    root,
		Command: command,
		Counts:  make(map[string]int, len(counts)),
	}
	for c, n := range counts {
		s.Counts[c.Slug()] += n
		s.Total += n
	}
	return s
}

// Store is a directory of msgpack-encoded snapshots. Safe for concurrent use.
type Store struct {
	mu  sync.RWMutex
	dir string
}

// CacheDir returns $XDG_CACHE_HOME/app, falling back to ~/.cache/app.
func CacheDir(app string) (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, app), nil
}

// Open returns the store for a project root under the user cache directory.
func Open(app, root string) (*Store, error) {
	dir, err := CacheDir(app)
	if err != nil {
		return nil, err
	}
	// один каталог на корень проекта
	return OpenDir(filepath.Join(dir, project.RootDigest(root).Hex()[:16]))
}

// OpenDir uses dir as is.
func OpenDir(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

// Dir is the store's directory.
func (s *Store) Dir() string { return s.dir }

// Put writes s atomically. The file name orders snapshots by time.
func (s *Store) Put(snap *Snapshot) error {
	if s == nil || snap == nil {
		return nil
	}
	if snap.RunID == "" {
		snap.RunID = uuid.NewString()
	}
	if snap.Time.IsZero() {
		snap.Time = time.Now().UTC()
	}
	snap.Schema = schemaVersion

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.CreateTemp(s.dir, "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp) //nolint:errcheck // после rename файла уже нет

	if err := msgpack.NewEncoder(f).Encode(snap); err != nil {
		f.Close() //nolint:errcheck
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	name := fmt.Sprintf("%020d-%s%s", snap.Time.UnixNano(), snap.RunID, ext)
	// Атомарная замена
	return os.Rename(tmp, filepath.Join(s.dir, name))
}

// List returns up to limit snapshots, newest first. limit <= 0 means all.
// Files from an older schema are skipped.
func (s *Store) List(limit int) ([]*Snapshot, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ext) {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	var out []*Snapshot
	for _, name := range names {
		if limit > 0 && len(out) >= limit {
			break
		}
		snap, err := s.read(filepath.Join(s.dir, name))
		if err != nil {
			return out, err
		}
		if snap.Schema != schemaVersion {
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

// Latest returns the newest snapshot, or false when there is none.
func (s *Store) Latest() (*Snapshot, bool, error) {
	list, err := s.List(1)
	if err != nil || len(list) == 0 {
		return nil, false, err
	}
	return list[0], true, nil
}

func (s *Store) read(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	var snap Snapshot
	if err := msgpack.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return &snap, nil
}

// Clear removes every snapshot of this store.
func (s *Store) Clear() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// тривиально: переименуем каталог и удалим
	old := s.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(s.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.RemoveAll(old); err != nil {
		return err
	}
	return os.MkdirAll(s.dir, 0o755)
}
