// Package changeset stages proposed file contents in memory, validates them
// and commits them to disk.
package changeset

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"mend/internal/syntax"
)

var (
	// ErrInvalidOutput marks a proposal that broke a well-formed file.
	ErrInvalidOutput = errors.New("proposed output is not well-formed")
	// ErrStale is returned when a file changed on disk after it was read.
	ErrStale = errors.New("file changed on disk since it was read")
	// ErrCommit wraps a failed commit; the working tree has been restored.
	ErrCommit = errors.New("commit failed")
)

// Change is the proposed new content of one file.
type Change struct {
	Path     string // absolute path on disk
	Rel      string // path shown to the user
	Original []byte // bytes as read from disk
	Proposed []byte
	Mode     os.FileMode
	Actions  []string // names of the actions that contributed
}

// Changed reports whether the proposal differs from the original.
func (c *Change) Changed() bool {
	return !bytes.Equal(c.Original, c.Proposed)
}

// Validate rejects a proposal that is malformed when its original was not.
// A file that was already broken is not held to a standard it never met.
func (c *Change) Validate() error {
	perr := syntax.Validate(c.Proposed)
	if perr == nil {
		return nil
	}
	if syntax.Validate(c.Original) != nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", c.display(), ErrInvalidOutput, perr)
}

func (c *Change) display() string {
	if c.Rel != "" {
		return c.Rel
	}
	return c.Path
}

// Rejection is a change dropped by Validate.
type Rejection struct {
	Path string
	Err  error
}

// Changeset holds at most one change per path.
type Changeset struct {
	changes map[string]*Change
}

func New() *Changeset {
	return &Changeset{changes: make(map[string]*Change)}
}

// Add stages c. Unchanged proposals are ignored; a later change for the same
// path replaces the earlier one.
func (cs *Changeset) Add(c *Change) {
	if c == nil || !c.Changed() {
		return
	}
	if c.Mode == 0 {
		c.Mode = 0o644
	}
	cs.changes[c.Path] = c
}

// Remove drops the change for path.
func (cs *Changeset) Remove(path string) {
	delete(cs.changes, path)
}

func (cs *Changeset) Len() int {
	if cs == nil {
		return 0
	}
	return len(cs.changes)
}

// Get returns the staged change for path.
func (cs *Changeset) Get(path string) (*Change, bool) {
	c, ok := cs.changes[path]
	return c, ok
}

// Changes returns the staged changes sorted by path.
func (cs *Changeset) Changes() []*Change {
	if cs == nil {
		return nil
	}
	out := make([]*Change, 0, len(cs.changes))
	for _, c := range cs.changes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Validate drops every change whose proposal fails Change.Validate and
// returns what it dropped.
func (cs *Changeset) Validate() []Rejection {
	var rejected []Rejection
	for _, c := range cs.Changes() {
		if err := c.Validate(); err != nil {
			rejected = append(rejected, Rejection{Path: c.Path, Err: err})
			delete(cs.changes, c.Path)
		}
	}
	return rejected
}
