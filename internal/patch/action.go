// Package patch holds the source rewriting actions applied to files flagged
// by the build. Actions are pure: they get the current text of one file and
// return the proposed text, never touching the disk.
package patch

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"mend/internal/diag"
	"mend/internal/fix"
)

var (
	// ErrNotIdempotent is returned when an action changes its own output again.
	ErrNotIdempotent = errors.New("action is not idempotent")
	// ErrUnparsable is returned by structural actions when the input is not well-formed.
	ErrUnparsable = errors.New("source is not well-formed")
)

// Input is what an action sees of one file.
type Input struct {
	Path        string // slash-separated, relative to the project root
	Text        []byte
	Diagnostics []diag.Diagnostic // diagnostics reported for this file
}

// Output is the proposed text of the file.
type Output struct {
	Text    []byte
	Changed bool
	Edits   int
	Skipped []fix.SkippedFix
}

// Action rewrites one file.
type Action interface {
	Name() string
	Kind() string
	// Triggers lists the diagnostic categories that make the action run.
	// Empty means the action runs regardless of diagnostics.
	Triggers() []diag.Category
	Apply(in Input) (Output, error)
}

// Triggered reports whether a runs for a file with the given diagnostics.
func Triggered(a Action, diags []diag.Diagnostic) bool {
	triggers := a.Triggers()
	if len(triggers) == 0 {
		return true
	}
	for _, d := range diags {
		for _, c := range triggers {
			if d.Category == c {
				return true
			}
		}
	}
	return false
}

// Unchanged returns the input text as-is.
func Unchanged(in Input) Output {
	return Output{Text: in.Text}
}

// base carries the settings shared by every built-in action.
type base struct {
	name     string
	kind     string
	triggers []diag.Category
	paths    []string
}

func (b *base) Name() string              { return b.name }
func (b *base) Kind() string              { return b.kind }
func (b *base) Triggers() []diag.Category { return b.triggers }

// applies reports whether the path filter admits path.
func (b *base) applies(path string) bool {
	if len(b.paths) == 0 {
		return true
	}
	for _, p := range b.paths {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}

// finish runs fixes through the edit engine.
func (b *base) finish(in Input, fixes []fix.Fix) Output {
	if len(fixes) == 0 {
		return Unchanged(in)
	}
	for i := range fixes {
		fixes[i].Action = b.name
	}
	text, applied, skipped := fix.ApplyEdits(in.Text, fixes)
	edits := 0
	for _, a := range applied {
		edits += a.EditCount
	}
	if edits == 0 || bytes.Equal(text, in.Text) {
		return Output{Text: in.Text, Skipped: skipped}
	}
	return Output{Text: text, Changed: true, Edits: edits, Skipped: skipped}
}

func unparsable(name string, err error) error {
	return fmt.Errorf("%s: %w: %w", name, ErrUnparsable, err)
}

// CheckIdempotent applies a to in, then again to the result. The second
// application must not change anything.
func CheckIdempotent(a Action, in Input) (Output, error) {
	out, err := a.Apply(in)
	if err != nil || !out.Changed {
		return out, err
	}
	again, err := a.Apply(Input{Path: in.Path, Text: out.Text, Diagnostics: in.Diagnostics})
	if err != nil {
		return out, fmt.Errorf("%s: reapply: %w", a.Name(), err)
	}
	if again.Changed {
		return out, fmt.Errorf("%s: %w", a.Name(), ErrNotIdempotent)
	}
	return out, nil
}

// Set is an ordered list of actions.
type Set struct {
	actions []Action
}

// NewSet keeps actions in the given order.
func NewSet(actions ...Action) *Set {
	return &Set{actions: append([]Action(nil), actions...)}
}

func (s *Set) Actions() []Action {
	if s == nil {
		return nil
	}
	return s.actions
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.actions)
}

// Lookup finds an action by name.
func (s *Set) Lookup(name string) (Action, bool) {
	for _, a := range s.Actions() {
		if a.Name() == name {
			return a, true
		}
	}
	return nil, false
}

// Apply runs every triggered action in order, each on the output of the previous.
func (s *Set) Apply(in Input) (Output, error) {
	cur := Unchanged(in)
	for _, a := range s.Actions() {
		if !Triggered(a, in.Diagnostics) {
			continue
		}
		out, err := a.Apply(Input{Path: in.Path, Text: cur.Text, Diagnostics: in.Diagnostics})
		if err != nil {
			return cur, err
		}
		if out.Changed {
			cur.Text = out.Text
			cur.Changed = true
			cur.Edits += out.Edits
		}
		cur.Skipped = append(cur.Skipped, out.Skipped...)
	}
	if cur.Changed && bytes.Equal(cur.Text, in.Text) {
		cur.Changed = false
	}
	return cur, nil
}
