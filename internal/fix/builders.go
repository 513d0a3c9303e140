package fix

import (
	"mend/internal/source"
)

// TextEdit replaces the bytes covered by Span with NewText. A non-empty
// OldText must match the covered bytes for the edit to apply.
type TextEdit struct {
	Span    source.Span
	NewText string
	OldText string
}

// Fix is a group of edits that apply together or not at all.
type Fix struct {
	ID     string
	Title  string
	Action string // name of the patch action that produced the fix
	Edits  []TextEdit
}

// Option mutates fix during construction.
type Option func(*Fix)

// WithID sets stable identifier for fix.
func WithID(id string) Option {
	return func(f *Fix) {
		f.ID = id
	}
}

// WithAction records the producing action.
func WithAction(name string) Option {
	return func(f *Fix) {
		f.Action = name
	}
}

// WithEdit appends an extra edit to the fix.
func WithEdit(edit TextEdit) Option {
	return func(f *Fix) {
		f.Edits = append(f.Edits, edit)
	}
}

func applyOptions(f Fix, opts []Option) Fix {
	for _, opt := range opts {
		if opt != nil {
			opt(&f)
		}
	}
	return f
}

// InsertText creates fix that inserts text at span (Span.Start == Span.End).
func InsertText(title string, at source.Span, text string, guard string, opts ...Option) Fix {
	at.End = at.Start
	edit := TextEdit{
		Span:    at,
		NewText: text,
		OldText: guard,
	}
	return applyOptions(Fix{Title: title, Edits: []TextEdit{edit}}, opts)
}

// DeleteSpan removes text covered by span.
func DeleteSpan(title string, span source.Span, expect string, opts ...Option) Fix {
	edit := TextEdit{
		Span:    span,
		NewText: "",
		OldText: expect,
	}
	return applyOptions(Fix{Title: title, Edits: []TextEdit{edit}}, opts)
}

// ReplaceSpan replaces text covered by span with newText.
func ReplaceSpan(title string, span source.Span, newText, expect string, opts ...Option) Fix {
	edit := TextEdit{
		Span:    span,
		NewText: newText,
		OldText: expect,
	}
	return applyOptions(Fix{Title: title, Edits: []TextEdit{edit}}, opts)
}
