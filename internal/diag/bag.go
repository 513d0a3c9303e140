package diag

import (
	"fmt"
	"sort"
)

// Bag collects diagnostics from one build invocation.
type Bag struct {
	items []Diagnostic
	max   int // 0 - без лимита
}

// NewBag creates a bag that holds at most max diagnostics (0 means unlimited).
func NewBag(max int) *Bag {
	capacity := max
	if capacity <= 0 || capacity > 1024 {
		capacity = 16
	}
	return &Bag{
		items: make([]Diagnostic, 0, capacity),
		max:   max,
	}
}

// Add добавляет диагностику, учитывая лимит.
// Возвращает false, если диагностика не добавлена (достигнут лимит).
func (b *Bag) Add(d Diagnostic) bool {
	if b.max > 0 && len(b.items) >= b.max {
		return false
	}
	b.items = append(b.items, d)
	return true
}

func (b *Bag) Cap() int {
	return b.max
}

// HasErrors возвращает true, если есть хотя бы одна диагностика с Severity >= Error
func (b *Bag) HasErrors() bool {
	for i := range b.items {
		if b.items[i].Severity >= SevError {
			return true
		}
	}
	return false
}

// ErrorCount counts error-level diagnostics.
func (b *Bag) ErrorCount() int {
	n := 0
	for i := range b.items {
		if b.items[i].Severity >= SevError {
			n++
		}
	}
	return n
}

func (b *Bag) Len() int {
	if b == nil {
		return 0
	}
	return len(b.items)
}

// Items возвращает read-only slice диагностик.
// ВАЖНО: не модифицируйте возвращаемый срез! (он указывает на внутренний массив Bag)
func (b *Bag) Items() []Diagnostic {
	if b == nil {
		return nil
	}
	return b.items
}

// Merge объединяет диагностики из другого Bag, игнорируя лимит.
func (b *Bag) Merge(other *Bag) {
	if other == nil {
		return
	}
	b.items = append(b.items, other.items...)
	if b.max > 0 && len(b.items) > b.max {
		b.max = len(b.items)
	}
}

// Sort сортирует диагностики по: path, line, column, severity (desc), category
// для стабильного и детерминированного порядка вывода.
func (b *Bag) Sort() {
	sort.SliceStable(b.items, func(i, j int) bool {
		di, dj := b.items[i], b.items[j]
		if di.Path != dj.Path {
			return di.Path < dj.Path
		}
		if di.Line != dj.Line {
			return di.Line < dj.Line
		}
		if di.Column != dj.Column {
			return di.Column < dj.Column
		}
		if di.Severity != dj.Severity {
			return di.Severity > dj.Severity
		}
		if di.Category != dj.Category {
			return di.Category < dj.Category
		}
		return di.Message < dj.Message
	})
}

// Dedup drops repeated (severity, location, message) entries; Gradle prints
// the same error once per compilation of a shared source set.
func (b *Bag) Dedup() {
	seen := make(map[string]bool, len(b.items))
	newitems := make([]Diagnostic, 0, len(b.items))
	for _, d := range b.items {
		key := fmt.Sprintf("%d|%s|%d|%d|%s", d.Severity, d.Path, d.Line, d.Column, d.Message)
		if seen[key] {
			continue
		}
		seen[key] = true
		newitems = append(newitems, d)
	}
	b.items = newitems
}

// CountByCategory returns per-category totals; every category is present.
func (b *Bag) CountByCategory() Counts {
	out := make(Counts, len(Categories))
	for _, c := range Categories {
		out[c] = 0
	}
	for _, d := range b.Items() {
		out[d.Category]++
	}
	return out
}

// ByPath groups diagnostics by file path, keeping bag order inside each group.
func (b *Bag) ByPath() map[string][]Diagnostic {
	out := make(map[string][]Diagnostic)
	for _, d := range b.Items() {
		out[d.Path] = append(out[d.Path], d)
	}
	return out
}

// Paths returns the distinct file paths in sorted order.
func (b *Bag) Paths() []string {
	groups := b.ByPath()
	out := make([]string, 0, len(groups))
	for p := range groups {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Filter returns a new bag with the diagnostics for which keep returns true.
func (b *Bag) Filter(keep func(Diagnostic) bool) *Bag {
	out := NewBag(0)
	for _, d := range b.Items() {
		if keep(d) {
			out.Add(d)
		}
	}
	return out
}
