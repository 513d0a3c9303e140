package syntax

import (
	"fmt"

	"mend/internal/source"
)

// Kind classifies a token.
type Kind uint8

const (
	Ident Kind = iota + 1
	Number
	String // whole literal, quotes and templates included
	Char
	Comment
	Punct
)

func (k Kind) String() string {
	switch k {
	case Ident:
		return "ident"
	case Number:
		return "number"
	case String:
		return "string"
	case Char:
		return "char"
	case Comment:
		return "comment"
	case Punct:
		return "punct"
	}
	return "unknown"
}

// Token is a lexical unit with its byte span.
type Token struct {
	Kind Kind
	Span source.Span
	Text string
	// NewlineBefore is set when a line break separates this token from the previous one.
	NewlineBefore bool
	// Template marks code tokens inside a string template ("${...}" or "$name").
	Template bool
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d", t.Kind, t.Text, t.Span.Start)
}

// IsCode reports whether the token belongs to program text proper.
func (t Token) IsCode() bool {
	return t.Kind != Comment && t.Kind != String && t.Kind != Char
}

func (t Token) is(text string) bool {
	return t.Kind == Punct && t.Text == text
}

// Error is a lexical or structural problem at a byte offset.
type Error struct {
	Offset uint32
	Pos    source.LineCol
	Msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Col, e.Msg)
}

func errorAt(src []byte, off int, format string, args ...any) *Error {
	if off > len(src) {
		off = len(src)
	}
	pos := source.LineCol{Line: 1, Col: 1}
	for _, b := range src[:off] {
		if b == '\n' {
			pos.Line++
			pos.Col = 1
		} else {
			pos.Col++
		}
	}
	return &Error{Offset: toU32(off), Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
