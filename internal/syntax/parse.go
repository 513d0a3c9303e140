package syntax

import (
	"strings"

	"mend/internal/source"
)

var modifiers = map[string]bool{
	"public": true, "private": true, "protected": true, "internal": true,
	"open": true, "abstract": true, "final": true, "sealed": true,
	"data": true, "enum": true, "annotation": true, "inner": true, "value": true,
	"companion": true, "override": true, "lateinit": true, "const": true,
	"suspend": true, "inline": true, "noinline": true, "crossinline": true,
	"tailrec": true, "operator": true, "infix": true, "external": true,
	"expect": true, "actual": true,
}

var declKeywords = map[string]DeclKind{
	"class":     DeclClass,
	"interface": DeclInterface,
	"object":    DeclObject,
	"fun":       DeclFun,
	"val":       DeclProperty,
	"var":       DeclProperty,
	"typealias": DeclTypeAlias,
}

// Tokens that continue the previous line's expression when they start a new line.
var continuationStarts = map[string]bool{
	".": true, "?": true, ":": true, "&": true, "|": true, "=": true,
	"as": true, "is": true, "else": true, "catch": true, "finally": true,
	"get": true, "set": true, "by": true, "where": true,
}

// Tokens that leave an expression open at the end of a line.
var continuationEnds = map[string]bool{
	"=": true, "+": true, "-": true, "*": true, "/": true, "%": true, ",": true,
	".": true, "(": true, "[": true, "&": true, "|": true, ":": true,
}

var closers = map[string]string{")": "(", "]": "[", "}": "{"}

type parser struct {
	src   []byte
	file  source.FileID
	toks  []Token // code tokens only
	match []int   // index of the partner bracket, -1 otherwise
}

// Validate reports the first lexical or bracket-balance problem in src. It is
// the structural check applied to patched output before it is committed.
func Validate(src []byte) error {
	toks, err := Tokenize(0, src)
	if err != nil {
		return err
	}
	_, err = matchBrackets(src, codeTokens(toks))
	return err
}

// Parse builds the outline of src.
func Parse(file source.FileID, src []byte) (*Outline, error) {
	toks, err := Tokenize(file, src)
	if err != nil {
		return nil, err
	}
	code := codeTokens(toks)
	match, err := matchBrackets(src, code)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, file: file, toks: code, match: match}
	o := &Outline{File: file, Src: src, Tokens: toks}
	i := p.parseDirectives(o)
	o.Decls = p.parseContainer(i, len(code), nil)
	return o, nil
}

// codeTokens drops comments and template code; string literals stay as opaque tokens.
func codeTokens(toks []Token) []Token {
	out := make([]Token, 0, len(toks))
	for _, t := range toks {
		if t.Kind == Comment || t.Template {
			continue
		}
		out = append(out, t)
	}
	return out
}

func matchBrackets(src []byte, toks []Token) ([]int, error) {
	match := make([]int, len(toks))
	var stack []int
	for i, t := range toks {
		match[i] = -1
		if t.Kind != Punct {
			continue
		}
		switch t.Text {
		case "(", "[", "{":
			stack = append(stack, i)
		case ")", "]", "}":
			if len(stack) == 0 {
				return nil, errorAt(src, int(t.Span.Start), "unexpected %q", t.Text)
			}
			open := stack[len(stack)-1]
			if toks[open].Text != closers[t.Text] {
				return nil, errorAt(src, int(t.Span.Start), "%q does not close %q", t.Text, toks[open].Text)
			}
			stack = stack[:len(stack)-1]
			match[open] = i
			match[i] = open
		}
	}
	if len(stack) > 0 {
		open := toks[stack[len(stack)-1]]
		return nil, errorAt(src, int(open.Span.Start), "unclosed %q", open.Text)
	}
	return match, nil
}

// parseDirectives consumes file annotations, package and imports, and returns
// the index of the first token after them.
func (p *parser) parseDirectives(o *Outline) int {
	i := 0
	for i < len(p.toks) {
		t := p.toks[i]
		switch {
		case t.is("@") && i+1 < len(p.toks) && p.toks[i+1].Text == "file":
			i = p.skipAnnotation(i)
		case t.Kind == Ident && t.Text == "package" && o.Package == nil && len(o.Imports) == 0:
			name, end := p.dottedPath(i + 1)
			o.Package = &Header{Name: name, Span: p.span(i, end)}
			i = end
		case t.Kind == Ident && t.Text == "import":
			path, end := p.dottedPath(i + 1)
			imp := Import{Path: path}
			if end < len(p.toks) && p.toks[end].Text == "as" && !p.toks[end].NewlineBefore {
				end++
				if end < len(p.toks) && p.toks[end].Kind == Ident && !p.toks[end].NewlineBefore {
					imp.Alias = p.toks[end].Text
					end++
				}
			}
			imp.Span = p.span(i, end)
			o.Imports = append(o.Imports, imp)
			i = end
		case t.is(";"):
			i++
		default:
			return i
		}
	}
	return i
}

// dottedPath reads "a.b.C" or "a.b.*" on one line starting at i. Names and dots
// alternate, so the "as" of an aliased import ends the path.
func (p *parser) dottedPath(i int) (string, int) {
	var sb strings.Builder
	start := i
	wantName := true
	for i < len(p.toks) {
		t := p.toks[i]
		if i > start && t.NewlineBefore {
			break
		}
		switch {
		case wantName && t.Kind == Ident:
			wantName = false
		case wantName && t.is("*") && i > start:
			sb.WriteString(t.Text)
			return sb.String(), i + 1
		case !wantName && t.is("."):
			wantName = true
		default:
			return sb.String(), i
		}
		sb.WriteString(t.Text)
		i++
	}
	return sb.String(), i
}

// span covers tokens [from, to).
func (p *parser) span(from, to int) source.Span {
	if to <= from {
		return source.At(p.file, p.toks[from].Span.Start)
	}
	return source.Span{File: p.file, Start: p.toks[from].Span.Start, End: p.toks[to-1].Span.End}
}

func (p *parser) skipAnnotation(i int) int {
	n := len(p.toks)
	i++ // '@'
	// use-site target: @file:, @get:
	if i+1 < n && p.toks[i].Kind == Ident && p.toks[i+1].is(":") {
		i += 2
	}
	if i < n && p.toks[i].is("[") {
		return p.match[i] + 1
	}
	for i < n && p.toks[i].Kind == Ident {
		i++
		if i+1 < n && p.toks[i].is(".") && p.toks[i+1].Kind == Ident {
			i++
			continue
		}
		break
	}
	if i < n && p.toks[i].is("<") {
		i = p.skipAngles(i, n)
	}
	if i < n && p.toks[i].is("(") && !p.toks[i].NewlineBefore {
		i = p.match[i] + 1
	}
	return i
}

// skipModifiers moves past modifiers and annotations preceding a declaration keyword.
func (p *parser) skipModifiers(i, hi int) int {
	for i < hi {
		t := p.toks[i]
		switch {
		case t.is("@"):
			i = p.skipAnnotation(i)
		case t.Kind == Ident && modifiers[t.Text] && i+1 < hi && (p.toks[i+1].Kind == Ident || p.toks[i+1].is("@")):
			i++
		default:
			return i
		}
	}
	return i
}

func (p *parser) stmtStart(i, lo int) bool {
	if i == lo || p.toks[i].NewlineBefore {
		return true
	}
	prev := p.toks[i-1]
	return prev.is(";") || prev.is("{") || prev.is("}")
}

// parseContainer collects declarations among toks[lo:hi] at one nesting level.
func (p *parser) parseContainer(lo, hi int, parent *Decl) []*Decl {
	var decls []*Decl
	i := lo
	for i < hi {
		if p.stmtStart(i, lo) {
			kw := p.skipModifiers(i, hi)
			if kw < hi && p.toks[kw].Kind == Ident {
				if kind, ok := declKeywords[p.toks[kw].Text]; ok {
					d, end := p.parseDecl(i, kw, hi, kind)
					d.Parent = parent
					decls = append(decls, d)
					i = max(end, kw+1)
					continue
				}
			}
		}
		if p.match[i] > i {
			i = p.match[i] + 1
			continue
		}
		i++
	}
	return decls
}

func (p *parser) parseDecl(start, kw, hi int, kind DeclKind) (*Decl, int) {
	d := &Decl{Kind: kind}
	if kind == DeclFun && kw+1 < hi && p.toks[kw+1].Text == "interface" {
		// fun interface
		d.Kind = DeclInterface
		kw++
	}
	var end, bodyOpen int
	switch d.Kind {
	case DeclClass, DeclInterface, DeclObject:
		end, bodyOpen = p.parseClassLike(d, start, kw, hi)
	case DeclFun:
		end, bodyOpen = p.parseFun(d, kw, hi)
	default:
		end = p.parseNamed(d, kw, hi)
		bodyOpen = -1
	}
	d.Span = p.span(start, end)
	if bodyOpen >= 0 {
		closeIdx := p.match[bodyOpen]
		d.Header = p.span(start, bodyOpen)
		d.Body = p.span(bodyOpen, closeIdx+1)
		if d.Kind.IsContainer() {
			d.Children = p.parseContainer(bodyOpen+1, closeIdx, d)
		}
	} else {
		d.Header = d.Span
	}
	return d, end
}

func (p *parser) parseClassLike(d *Decl, start, kw, hi int) (end, bodyOpen int) {
	i := kw + 1
	if i < hi && p.toks[i].Kind == Ident && !p.toks[i].NewlineBefore {
		d.Name = p.toks[i].Text
		i++
	} else if d.Kind == DeclObject && p.hasModifier(start, kw, "companion") {
		d.Name = "Companion"
	}
	for i < hi {
		t := p.toks[i]
		switch {
		case t.is("{"):
			return p.match[i] + 1, i
		case t.is("(") || t.is("["):
			i = p.match[i] + 1
			continue
		case t.is(";") || t.is("}"):
			return i, -1
		case p.endsStatement(i):
			return i, -1
		}
		i++
	}
	return i, -1
}

func (p *parser) parseFun(d *Decl, kw, hi int) (end, bodyOpen int) {
	i := kw + 1
	if i < hi && p.toks[i].is("<") {
		i = p.skipAngles(i, hi)
	}
	sigStart := i
	lastIdent := -1
	for i < hi && !p.toks[i].is("(") {
		if p.toks[i].is("<") {
			i = p.skipAngles(i, hi)
			continue
		}
		if p.toks[i].Kind == Ident {
			lastIdent = i
		}
		if p.toks[i].is("{") || p.toks[i].is("=") || p.toks[i].is("}") {
			break
		}
		i++
	}
	if lastIdent >= 0 {
		d.Name = p.toks[lastIdent].Text
		if lastIdent > sigStart+1 {
			d.Receiver = string(p.src[p.toks[sigStart].Span.Start:p.toks[lastIdent-1].Span.Start])
		}
	}
	if i < hi && p.toks[i].is("(") {
		d.Params = string(p.src[p.toks[i].Span.Start:p.toks[p.match[i]].Span.End])
		i = p.match[i] + 1
	}
	for i < hi {
		t := p.toks[i]
		switch {
		case t.is("{"):
			return p.match[i] + 1, i
		case t.is("="):
			return p.scanExpression(i+1, hi), -1
		case t.is("(") || t.is("["):
			i = p.match[i] + 1
			continue
		case t.is(";") || t.is("}"):
			return i, -1
		case p.endsStatement(i):
			return i, -1
		}
		i++
	}
	return i, -1
}

// parseNamed handles properties and type aliases: "val Recv.name: T = expr".
func (p *parser) parseNamed(d *Decl, kw, hi int) int {
	i := kw + 1
	if i < hi && p.toks[i].is("<") {
		i = p.skipAngles(i, hi)
	}
	var parts []string
	for i < hi && p.toks[i].Kind == Ident {
		parts = append(parts, p.toks[i].Text)
		i++
		if i+1 < hi && p.toks[i].is(".") && p.toks[i+1].Kind == Ident {
			i++
			continue
		}
		break
	}
	if len(parts) > 0 {
		d.Name = parts[len(parts)-1]
		d.Receiver = strings.Join(parts[:len(parts)-1], ".")
	}
	return p.scanExpression(i, hi)
}

// scanExpression returns the index of the first token after the statement
// starting at i. Bracketed groups are skipped whole.
func (p *parser) scanExpression(i, hi int) int {
	first := i
	for i < hi {
		t := p.toks[i]
		if t.is(";") || t.is("}") {
			return i
		}
		if i > first && p.endsStatement(i) {
			return i
		}
		if p.match[i] > i {
			i = p.match[i] + 1
			continue
		}
		i++
	}
	return i
}

// endsStatement reports whether a line break before toks[i] terminates the
// current statement.
func (p *parser) endsStatement(i int) bool {
	t := p.toks[i]
	if !t.NewlineBefore || i == 0 {
		return false
	}
	if continuationStarts[t.Text] || continuationEnds[p.toks[i-1].Text] {
		return false
	}
	return true
}

func (p *parser) skipAngles(i, hi int) int {
	depth := 0
	for i < hi {
		switch {
		case p.toks[i].is("<"):
			depth++
		case p.toks[i].is(">"):
			depth--
			if depth == 0 {
				return i + 1
			}
		case p.match[i] > i:
			i = p.match[i] + 1
			continue
		}
		i++
	}
	return i
}

func (p *parser) hasModifier(start, kw int, name string) bool {
	for i := start; i < kw; i++ {
		if p.toks[i].Kind == Ident && p.toks[i].Text == name {
			return true
		}
	}
	return false
}
