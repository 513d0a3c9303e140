package changeset

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/pmezard/go-difflib/difflib"
)

// DiffOptions controls the preview rendering.
type DiffOptions struct {
	Color   bool
	Context int // lines of context, 3 when zero
}

// Unified renders the change as a unified diff.
func (c *Change) Unified(context int) (string, error) {
	if context <= 0 {
		context = 3
	}
	name := strings.TrimPrefix(c.display(), "/")
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(c.Original)),
		B:        difflib.SplitLines(string(c.Proposed)),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  context,
	})
}

// Stat counts inserted and deleted lines.
func (c *Change) Stat() (added, removed int) {
	m := difflib.NewMatcher(difflib.SplitLines(string(c.Original)), difflib.SplitLines(string(c.Proposed)))
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'r':
			removed += op.I2 - op.I1
			added += op.J2 - op.J1
		case 'd':
			removed += op.I2 - op.I1
		case 'i':
			added += op.J2 - op.J1
		}
	}
	return added, removed
}

// Diff writes a unified diff of every staged change, sorted by path.
func (cs *Changeset) Diff(w io.Writer, opts DiffOptions) error {
	for _, c := range cs.Changes() {
		if err := WriteDiff(w, c, opts); err != nil {
			return err
		}
	}
	return nil
}

// WriteDiff writes the diff of a single change.
func WriteDiff(w io.Writer, c *Change, opts DiffOptions) error {
	text, err := c.Unified(opts.Context)
	if err != nil {
		return fmt.Errorf("diff %s: %w", c.display(), err)
	}
	if !opts.Color {
		_, err = io.WriteString(w, text)
		return err
	}

	header := color.New(color.Bold)
	hunk := color.New(color.FgCyan)
	add := color.New(color.FgGreen)
	del := color.New(color.FgRed)
	for _, col := range []*color.Color{header, hunk, add, del} {
		col.EnableColor()
	}

	var buf bytes.Buffer
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			header.Fprintln(&buf, line)
		case strings.HasPrefix(line, "@@"):
			hunk.Fprintln(&buf, line)
		case strings.HasPrefix(line, "+"):
			add.Fprintln(&buf, line)
		case strings.HasPrefix(line, "-"):
			del.Fprintln(&buf, line)
		default:
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	_, err = w.Write(buf.Bytes())
	return err
}
