package syntax

import (
	"sort"
	"strings"

	"mend/internal/source"
)

// DeclKind is the declaration keyword family.
type DeclKind uint8

const (
	DeclClass DeclKind = iota + 1
	DeclInterface
	DeclObject
	DeclFun
	DeclProperty
	DeclTypeAlias
)

func (k DeclKind) String() string {
	switch k {
	case DeclClass:
		return "class"
	case DeclInterface:
		return "interface"
	case DeclObject:
		return "object"
	case DeclFun:
		return "fun"
	case DeclProperty:
		return "property"
	case DeclTypeAlias:
		return "typealias"
	}
	return "unknown"
}

// ParseDeclKind maps a keyword to a kind. "val" and "var" both yield DeclProperty.
func ParseDeclKind(s string) (DeclKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "class":
		return DeclClass, true
	case "interface":
		return DeclInterface, true
	case "object":
		return DeclObject, true
	case "fun":
		return DeclFun, true
	case "val", "var", "property":
		return DeclProperty, true
	case "typealias":
		return DeclTypeAlias, true
	}
	return 0, false
}

// IsContainer reports whether members of this kind may hold nested declarations.
func (k DeclKind) IsContainer() bool {
	return k == DeclClass || k == DeclInterface || k == DeclObject
}

// Header is the package directive.
type Header struct {
	Name string
	Span source.Span
}

// Import is a single import directive.
type Import struct {
	Path  string // dotted path, "a.b.*" for star imports
	Alias string
	Span  source.Span
}

// Name is the simple name the import brings into scope, "" for star imports.
func (imp Import) Name() string {
	if imp.Alias != "" {
		return imp.Alias
	}
	if strings.HasSuffix(imp.Path, ".*") {
		return ""
	}
	if i := strings.LastIndexByte(imp.Path, '.'); i >= 0 {
		return imp.Path[i+1:]
	}
	return imp.Path
}

// Covers reports whether the import makes path available.
func (imp Import) Covers(path string) bool {
	if imp.Path == path {
		return true
	}
	if pkg, ok := strings.CutSuffix(imp.Path, ".*"); ok {
		i := strings.LastIndexByte(path, '.')
		return i >= 0 && path[:i] == pkg
	}
	return false
}

// Decl is a declaration with its nested members.
type Decl struct {
	Kind     DeclKind
	Name     string
	Receiver string // extension receiver, "" if none
	Params   string // parameter list of a fun, parentheses included
	// Span runs from the first modifier or annotation to the end of the declaration.
	Span source.Span
	// Header covers the modifiers, keyword, name and signature up to the body.
	Header source.Span
	// Body covers the braces of a block body. Empty when the declaration has none.
	Body     source.Span
	Children []*Decl
	Parent   *Decl
}

// Signature identifies a declaration among overloads: receiver, name and
// the parameter list with whitespace removed.
func (d *Decl) Signature() string {
	var sb strings.Builder
	if d.Receiver != "" {
		sb.WriteString(d.Receiver)
		sb.WriteByte('.')
	}
	sb.WriteString(d.Name)
	for _, r := range d.Params {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// HasBody reports whether the declaration has a brace-delimited body.
func (d *Decl) HasBody() bool {
	return !d.Body.Empty()
}

// Outline is the declaration structure of one file.
type Outline struct {
	File    source.FileID
	Src     []byte
	Tokens  []Token
	Package *Header
	Imports []Import
	Decls   []*Decl
}

// Walk visits every declaration depth-first in source order. Returning false
// from fn skips the children of that declaration.
func (o *Outline) Walk(fn func(*Decl) bool) {
	var walk func([]*Decl)
	walk = func(ds []*Decl) {
		for _, d := range ds {
			if fn(d) {
				walk(d.Children)
			}
		}
	}
	walk(o.Decls)
}

// FindDecl returns the first declaration of kind with name, searching nested
// members too. A zero kind matches any kind.
func (o *Outline) FindDecl(kind DeclKind, name string) *Decl {
	var found *Decl
	o.Walk(func(d *Decl) bool {
		if found != nil {
			return false
		}
		if d.Name == name && (kind == 0 || d.Kind == kind) {
			found = d
			return false
		}
		return true
	})
	return found
}

// FindAll returns every declaration of kind with name in source order.
func (o *Outline) FindAll(kind DeclKind, name string) []*Decl {
	var out []*Decl
	o.Walk(func(d *Decl) bool {
		if d.Name == name && (kind == 0 || d.Kind == kind) {
			out = append(out, d)
		}
		return true
	})
	return out
}

// DeclaresTopLevel reports whether the file declares name at top level.
func (o *Outline) DeclaresTopLevel(name string) bool {
	for _, d := range o.Decls {
		if d.Name == name {
			return true
		}
	}
	return false
}

// HasImport reports whether some import already covers path.
func (o *Outline) HasImport(path string) bool {
	for _, imp := range o.Imports {
		if imp.Covers(path) {
			return true
		}
	}
	return false
}

// ImportsName reports whether some non-star import brings name into scope.
func (o *Outline) ImportsName(name string) bool {
	for _, imp := range o.Imports {
		if imp.Name() == name {
			return true
		}
	}
	return false
}

// ImportInsertPoint returns the offset where a new import line belongs: after
// the last import, else after the package directive, else at the file start.
func (o *Outline) ImportInsertPoint() uint32 {
	switch {
	case len(o.Imports) > 0:
		return o.lineEnd(o.Imports[len(o.Imports)-1].Span.End)
	case o.Package != nil:
		return o.lineEnd(o.Package.Span.End)
	}
	return 0
}

// lineEnd returns the offset just past the newline ending the line at off,
// or len(Src) on the last line.
func (o *Outline) lineEnd(off uint32) uint32 {
	for i := int(off); i < len(o.Src); i++ {
		if o.Src[i] == '\n' {
			return toU32(i + 1)
		}
	}
	return toU32(len(o.Src))
}

// LineEnd is lineEnd for callers outside the package.
func (o *Outline) LineEnd(off uint32) uint32 {
	return o.lineEnd(off)
}

// LineStart returns the offset of the first byte of the line holding off.
func (o *Outline) LineStart(off uint32) uint32 {
	i := min(int(off), len(o.Src))
	for i > 0 && o.Src[i-1] != '\n' {
		i--
	}
	return toU32(i)
}

// Indent returns the leading whitespace of the line holding off.
func (o *Outline) Indent(off uint32) string {
	start := int(o.LineStart(off))
	end := start
	for end < len(o.Src) && (o.Src[end] == ' ' || o.Src[end] == '\t') {
		end++
	}
	return string(o.Src[start:end])
}

// References returns code tokens spelling name, template code included.
// Package and import directives are not code.
func (o *Outline) References(name string) []Token {
	var out []Token
	for _, t := range o.Tokens {
		if t.Kind != Ident || t.Text != name || o.inDirective(t.Span.Start) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// UnqualifiedReferences are References not preceded by a member access dot.
func (o *Outline) UnqualifiedReferences(name string) []Token {
	var out []Token
	prev := Token{}
	for _, t := range o.Tokens {
		if t.Kind == Comment {
			continue
		}
		if t.Kind == Ident && t.Text == name && !o.inDirective(t.Span.Start) && !prev.is(".") {
			out = append(out, t)
		}
		prev = t
	}
	return out
}

// InCode reports whether off lies outside comments and literals. Template
// code inside strings counts as code.
func (o *Outline) InCode(off uint32) bool {
	return InCode(o.Tokens, off)
}

// InCode reports whether off lies outside comments and literals of toks.
func InCode(toks []Token, off uint32) bool {
	n := sort.Search(len(toks), func(i int) bool { return toks[i].Span.Start > off })
	for j := n - 1; j >= 0; j-- {
		t := toks[j]
		if t.Span.Contains(off) {
			return t.IsCode() || t.Template
		}
		// Template tokens sit inside their literal; keep looking for it.
		if !t.Template {
			return true
		}
	}
	return true
}

func (o *Outline) inDirective(off uint32) bool {
	if o.Package != nil && o.Package.Span.Contains(off) {
		return true
	}
	for _, imp := range o.Imports {
		if imp.Span.Contains(off) {
			return true
		}
	}
	return false
}
