package diag

import (
	"fmt"
	"strings"
)

// Category is the coarse kind of a diagnostic, derived from its message text.
type Category uint8

const (
	UnresolvedReference Category = iota
	TypeMismatch
	OverloadAmbiguity
	Other
)

// Categories lists every category in classification priority order.
var Categories = []Category{UnresolvedReference, TypeMismatch, OverloadAmbiguity, Other}

// порядок важен: первое совпадение выигрывает
var categoryKeywords = []struct {
	cat     Category
	keyword string
	fold    bool // без учёта регистра
}{
	{UnresolvedReference, "Unresolved reference", false},
	{TypeMismatch, "type mismatch", true},
	{OverloadAmbiguity, "Overload resolution ambiguity", false},
}

func (c Category) String() string {
	switch c {
	case UnresolvedReference:
		return "UnresolvedReference"
	case TypeMismatch:
		return "TypeMismatch"
	case OverloadAmbiguity:
		return "OverloadAmbiguity"
	case Other:
		return "Other"
	}
	return "Unknown"
}

// Slug is the lower-case identifier used in config files and JSON output.
func (c Category) Slug() string {
	switch c {
	case UnresolvedReference:
		return "unresolved"
	case TypeMismatch:
		return "type-mismatch"
	case OverloadAmbiguity:
		return "overload"
	default:
		return "other"
	}
}

// ParseCategory accepts a slug or the CamelCase name.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if strings.EqualFold(s, c.Slug()) || strings.EqualFold(s, c.String()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q (expected unresolved|type-mismatch|overload|other)", s)
}

// Classify maps a message to exactly one category by keyword containment.
// Keywords are checked in priority order; only "type mismatch" ignores case.
func Classify(message string) Category {
	lower := strings.ToLower(message)
	for _, k := range categoryKeywords {
		text := message
		if k.fold {
			text = lower
		}
		if strings.Contains(text, k.keyword) {
			return k.cat
		}
	}
	return Other
}

// Counts holds per-category totals.
type Counts map[Category]int

// Total sums every category.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}
