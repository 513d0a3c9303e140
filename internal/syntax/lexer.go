package syntax

import (
	"unicode"
	"unicode/utf8"

	"mend/internal/source"
)

type lexer struct {
	cur  cursor
	file source.FileID
	toks []Token
	nl   bool
	err  *Error
}

// Tokenize splits src into tokens. Whitespace is dropped; comments and
// string literals are kept as single tokens so callers can tell code
// regions apart. Code inside string templates follows the literal's token
// with Template set.
func Tokenize(file source.FileID, src []byte) ([]Token, error) {
	lx := &lexer{cur: cursor{src: src}, file: file}
	lx.scan(false)
	if lx.err != nil {
		return lx.toks, lx.err
	}
	return lx.toks, nil
}

func (lx *lexer) fail(off int, format string, args ...any) {
	if lx.err == nil {
		lx.err = errorAt(lx.cur.src, off, format, args...)
	}
}

func (lx *lexer) emit(kind Kind, start int, template bool) int {
	end := lx.cur.off
	lx.toks = append(lx.toks, Token{
		Kind:          kind,
		Span:          source.Span{File: lx.file, Start: toU32(start), End: toU32(end)},
		Text:          string(lx.cur.src[start:end]),
		NewlineBefore: lx.nl,
		Template:      template,
	})
	lx.nl = false
	return len(lx.toks) - 1
}

// scan lexes code. Inside a template it stops at the unmatched closing brace
// without consuming it.
func (lx *lexer) scan(template bool) {
	depth := 0
	c := &lx.cur
	for !c.eof() && lx.err == nil {
		start := c.off
		b := c.peek()
		switch {
		case b == '\n':
			lx.nl = true
			c.bump()
		case b == ' ' || b == '\t' || b == '\r' || b == '\f':
			c.bump()
		case b == '/' && c.peekAt(1) == '/':
			for !c.eof() && c.peek() != '\n' {
				c.bump()
			}
			lx.emitComment(start, template)
		case b == '/' && c.peekAt(1) == '*':
			lx.scanBlockComment()
			lx.emitComment(start, template)
		case b == '"':
			lx.scanString(template)
		case b == '\'':
			lx.scanChar(template)
		case b == '`':
			c.bump()
			for !c.eof() && c.peek() != '`' && c.peek() != '\n' {
				c.bump()
			}
			if c.peek() != '`' {
				lx.fail(start, "unterminated backtick identifier")
				return
			}
			c.bump()
			lx.emit(Ident, start, template)
		case isDigit(b):
			lx.scanNumber()
			lx.emit(Number, start, template)
		case b >= utf8.RuneSelf || isIdentStart(rune(b)):
			r, size := utf8.DecodeRune(c.src[c.off:])
			if isIdentStart(r) {
				lx.scanIdent()
				lx.emit(Ident, start, template)
				continue
			}
			c.off += size
			lx.emit(Punct, start, template)
		default:
			if template {
				switch b {
				case '{':
					depth++
				case '}':
					if depth == 0 {
						return
					}
					depth--
				}
			}
			c.bump()
			lx.emit(Punct, start, template)
		}
	}
	if template && lx.err == nil {
		lx.fail(c.off, "unterminated string template")
	}
}

// Comments do not reset the newline flag: a token after "// x\n" still starts a line.
func (lx *lexer) emitComment(start int, template bool) {
	nl := lx.nl
	lx.emit(Comment, start, template)
	lx.nl = nl
}

// Block comments nest.
func (lx *lexer) scanBlockComment() {
	c := &lx.cur
	start := c.off
	depth := 0
	for !c.eof() {
		switch {
		case c.hasPrefix("/*"):
			depth++
			c.off += 2
		case c.hasPrefix("*/"):
			depth--
			c.off += 2
			if depth == 0 {
				return
			}
		default:
			c.bump()
		}
	}
	lx.fail(start, "unterminated block comment")
}

func (lx *lexer) scanString(template bool) {
	c := &lx.cur
	start := c.off
	raw := c.hasPrefix(`"""`)
	idx := lx.emit(String, start, template)
	if raw {
		c.off += 3
	} else {
		c.bump()
	}
	closed := false
	for !c.eof() && lx.err == nil && !closed {
		b := c.peek()
		switch {
		case raw && c.hasPrefix(`"""`):
			// The closing delimiter is the last three quotes of a run.
			for c.peek() == '"' {
				c.bump()
			}
			closed = true
		case !raw && b == '"':
			c.bump()
			closed = true
		case !raw && b == '\n':
			lx.fail(start, "unterminated string literal")
		case !raw && b == '\\':
			c.bump()
			c.bump()
		case b == '$' && c.peekAt(1) == '{':
			c.off += 2
			lx.scan(true)
			if lx.err == nil {
				c.bump() // '}'
			}
		case b == '$' && isIdentStart(rune(c.peekAt(1))):
			c.bump()
			s := c.off
			lx.scanIdent()
			lx.emit(Ident, s, true)
		default:
			c.bump()
		}
	}
	if !closed {
		lx.fail(start, "unterminated string literal")
	}
	lx.toks[idx].Span.End = toU32(c.off)
	lx.toks[idx].Text = string(c.src[start:c.off])
	lx.nl = false
}

func (lx *lexer) scanChar(template bool) {
	c := &lx.cur
	start := c.off
	c.bump()
	for !c.eof() {
		b := c.peek()
		if b == '\n' {
			break
		}
		c.bump()
		if b == '\\' {
			c.bump()
			continue
		}
		if b == '\'' {
			lx.emit(Char, start, template)
			return
		}
	}
	lx.fail(start, "unterminated character literal")
}

func (lx *lexer) scanIdent() {
	c := &lx.cur
	for !c.eof() {
		r, size := utf8.DecodeRune(c.src[c.off:])
		if !isIdentPart(r) {
			return
		}
		c.off += size
	}
}

// Number literals swallow suffixes, radix prefixes and exponents; a dot is
// only consumed when a digit follows so ranges like 1..2 stay separate.
func (lx *lexer) scanNumber() {
	c := &lx.cur
	for !c.eof() {
		b := c.peek()
		switch {
		case isDigit(b) || isASCIILetter(b) || b == '_':
			c.bump()
		case b == '.' && isDigit(c.peekAt(1)):
			c.bump()
		case (b == '+' || b == '-') && c.off > 0 && (c.src[c.off-1] == 'e' || c.src[c.off-1] == 'E') && isDigit(c.peekAt(1)):
			c.bump()
		default:
			return
		}
	}
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isASCIILetter(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
