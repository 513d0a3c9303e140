package patch

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"mend/internal/diag"
)

var (
	ErrUnknownKind = errors.New("unknown rule kind")
	ErrInvalidRule = errors.New("invalid rule")
)

// Rule is the declarative form of an action as written in configuration.
type Rule struct {
	Name  string   `toml:"name" yaml:"name"`
	Kind  string   `toml:"kind" yaml:"kind"`
	On    []string `toml:"on" yaml:"on"`
	Paths []string `toml:"paths" yaml:"paths"`

	// import
	Imports                map[string]string `toml:"imports" yaml:"imports"`
	RequireExistingImports bool              `toml:"require_existing_imports" yaml:"require_existing_imports"`

	// replace
	Pattern  string `toml:"pattern" yaml:"pattern"`
	Replace  string `toml:"replace" yaml:"replace"`
	Unless   string `toml:"unless" yaml:"unless"`
	CodeOnly *bool  `toml:"code_only" yaml:"code_only"`

	// qualify, remove-duplicate
	Symbol    string `toml:"symbol" yaml:"symbol"`
	Qualifier string `toml:"qualifier" yaml:"qualifier"`

	// member, after-decl, remove-duplicate
	Target string `toml:"target" yaml:"target"`
	Decl   string `toml:"decl" yaml:"decl"`
	Match  string `toml:"match" yaml:"match"`
}

// Builder turns a rule into an action.
type Builder func(r Rule, b base) (Action, error)

// Registry maps rule kinds to builders.
type Registry struct {
	kinds map[string]Builder
}

// NewRegistry returns a registry with every built-in kind.
func NewRegistry() *Registry {
	r := &Registry{kinds: make(map[string]Builder)}
	r.Register("import", buildImport)
	r.Register("replace", buildReplace)
	r.Register("qualify", buildQualify)
	r.Register("member", buildMember)
	r.Register("after-decl", buildAfterDecl)
	r.Register("remove-duplicate", buildRemoveDuplicate)
	return r
}

func (r *Registry) Register(kind string, b Builder) {
	r.kinds[kind] = b
}

// Kinds lists registered kinds, sorted.
func (r *Registry) Kinds() []string {
	out := make([]string, 0, len(r.kinds))
	for k := range r.kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Build validates rule and constructs its action.
func (r *Registry) Build(rule Rule) (Action, error) {
	if strings.TrimSpace(rule.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	build, ok := r.kinds[rule.Kind]
	if !ok {
		return nil, fmt.Errorf("rule %q: %w %q (known: %s)", rule.Name, ErrUnknownKind, rule.Kind, strings.Join(r.Kinds(), ", "))
	}
	b := base{name: rule.Name, kind: rule.Kind}
	for _, on := range rule.On {
		c, err := diag.ParseCategory(on)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w: on: %w", rule.Name, ErrInvalidRule, err)
		}
		if !slices.Contains(b.triggers, c) {
			b.triggers = append(b.triggers, c)
		}
	}
	for _, p := range rule.Paths {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("rule %q: %w: bad paths pattern %q", rule.Name, ErrInvalidRule, p)
		}
		b.paths = append(b.paths, p)
	}
	a, err := build(rule, b)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w: %w", rule.Name, ErrInvalidRule, err)
	}
	return a, nil
}

// BuildSet builds rules in order. Rule names must be unique.
func (r *Registry) BuildSet(rules []Rule) (*Set, error) {
	seen := make(map[string]bool, len(rules))
	actions := make([]Action, 0, len(rules))
	var errs []error
	for _, rule := range rules {
		if seen[rule.Name] {
			errs = append(errs, fmt.Errorf("rule %q: %w: duplicate name", rule.Name, ErrInvalidRule))
			continue
		}
		seen[rule.Name] = true
		a, err := r.Build(rule)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		actions = append(actions, a)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return NewSet(actions...), nil
}

func buildImport(r Rule, b base) (Action, error) {
	if len(r.Imports) == 0 {
		return nil, errors.New("imports must not be empty")
	}
	symbols := make([]string, 0, len(r.Imports))
	for s := range r.Imports {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	a := &ImportAction{base: b, RequireExisting: r.RequireExistingImports}
	for _, s := range symbols {
		path := strings.TrimSpace(r.Imports[s])
		if path == "" || strings.ContainsAny(path, " \t\n") {
			return nil, fmt.Errorf("bad import path %q for %s", path, s)
		}
		a.Specs = append(a.Specs, ImportSpec{Symbol: s, Path: path})
	}
	return a, nil
}

func buildReplace(r Rule, b base) (Action, error) {
	if r.Pattern == "" {
		return nil, errors.New("pattern is required")
	}
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return nil, err
	}
	codeOnly := true
	if r.CodeOnly != nil {
		codeOnly = *r.CodeOnly
	}
	return &ReplaceAction{base: b, Pattern: re, Replacement: r.Replace, Unless: r.Unless, CodeOnly: codeOnly}, nil
}

func buildQualify(r Rule, b base) (Action, error) {
	if r.Symbol == "" || r.Qualifier == "" {
		return nil, errors.New("symbol and qualifier are required")
	}
	return &QualifyAction{base: b, Symbol: r.Symbol, Qualifier: r.Qualifier}, nil
}

func buildMember(r Rule, b base) (Action, error) {
	if r.Target == "" {
		return nil, errors.New("target is required")
	}
	d, err := parseSnippet(r.Decl)
	if err != nil {
		return nil, fmt.Errorf("decl: %w", err)
	}
	return &MemberAction{base: b, Target: r.Target, Text: r.Decl, decl: d}, nil
}

func buildAfterDecl(r Rule, b base) (Action, error) {
	if r.Target == "" {
		return nil, errors.New("target is required")
	}
	d, err := parseSnippet(r.Decl)
	if err != nil {
		return nil, fmt.Errorf("decl: %w", err)
	}
	return &AfterDeclAction{base: b, Anchor: r.Target, Text: r.Decl, decl: d}, nil
}

func buildRemoveDuplicate(r Rule, b base) (Action, error) {
	a := &RemoveDuplicateAction{base: b, Target: r.Target, Symbol: r.Symbol}
	switch r.Match {
	case "", "name":
	case "signature":
		a.BySignature = true
	default:
		return nil, fmt.Errorf("match must be name or signature, got %q", r.Match)
	}
	return a, nil
}
