package fix

import (
	"bytes"
	"fmt"
	"sort"
)

// AppliedFix records a successfully applied fix.
type AppliedFix struct {
	ID        string
	Title     string
	Action    string
	EditCount int
}

// SkippedFix captures a skipped or failed fix with a reason.
type SkippedFix struct {
	ID     string
	Title  string
	Action string
	Reason string
}

type candidate struct {
	fix   Fix
	order int
}

// ApplyEdits applies fixes to content in memory and returns the new content.
// All spans refer to the original content. Fixes are applied in span order;
// one whose edits overlap an already applied fix, fall out of range or fail
// their OldText guard is skipped as a whole. content is never modified.
func ApplyEdits(content []byte, fixes []Fix) ([]byte, []AppliedFix, []SkippedFix) {
	applied := make([]AppliedFix, 0, len(fixes))
	skipped := make([]SkippedFix, 0)

	cands := make([]candidate, 0, len(fixes))
	for idx, f := range fixes {
		if len(f.Edits) == 0 {
			skipped = append(skipped, skip(f, "fix has no edits"))
			continue
		}
		if f.ID == "" {
			f.ID = fmt.Sprintf("%s-%d-%d", f.Action, f.Edits[0].Span.Start, idx)
		}
		f.Edits = append([]TextEdit(nil), f.Edits...)
		cands = append(cands, candidate{fix: f, order: idx})
	}
	sortCandidates(cands)

	working := append([]byte(nil), content...)
	var appliedEdits []TextEdit

	for _, cand := range cands {
		edits := cand.fix.Edits
		if overlapping(edits) {
			skipped = append(skipped, skip(cand.fix, "fix has overlapping edits"))
			continue
		}
		if conflictsWithExisting(appliedEdits, edits) {
			skipped = append(skipped, skip(cand.fix, "conflicts with previously applied edits"))
			continue
		}

		sort.SliceStable(edits, func(i, j int) bool {
			if edits[i].Span.Start == edits[j].Span.Start {
				return edits[i].Span.End > edits[j].Span.End
			}
			return edits[i].Span.Start > edits[j].Span.Start
		})

		staged := append([]byte(nil), working...)
		existing := append([]TextEdit(nil), appliedEdits...)
		var reason string
		for _, edit := range edits {
			start := int(edit.Span.Start) + cumulativeDelta(existing, int(edit.Span.Start), true)
			end := start
			if !edit.Span.Empty() {
				// insertions sitting exactly at the end stay outside the replaced range
				end = int(edit.Span.End) + cumulativeDelta(existing, int(edit.Span.End), false)
			}
			if int(edit.Span.End) > len(content) || start < 0 || end < start || end > len(staged) {
				reason = "edit span out of range"
				break
			}
			if !guardHolds(staged, start, end, edit.OldText) {
				reason = "existing text does not match expected content"
				break
			}
			suffix := append([]byte(nil), staged[end:]...)
			staged = append(append(staged[:start], edit.NewText...), suffix...)
			existing = insertEditSorted(existing, edit)
		}
		if reason != "" {
			skipped = append(skipped, skip(cand.fix, reason))
			continue
		}

		working = staged
		appliedEdits = existing
		applied = append(applied, AppliedFix{
			ID:        cand.fix.ID,
			Title:     cand.fix.Title,
			Action:    cand.fix.Action,
			EditCount: len(edits),
		})
	}
	return working, applied, skipped
}

// guardHolds checks OldText. Replacements must match the covered bytes
// exactly; insertions require the text at the insertion point to start with it.
func guardHolds(buf []byte, start, end int, guard string) bool {
	if guard == "" {
		return true
	}
	if start == end {
		return bytes.HasPrefix(buf[start:], []byte(guard))
	}
	return string(buf[start:end]) == guard
}

func skip(f Fix, reason string) SkippedFix {
	return SkippedFix{ID: f.ID, Title: f.Title, Action: f.Action, Reason: reason}
}

// sortCandidates orders fixes by their first edit, then by insertion order,
// then by ID, so equal inputs always produce equal outputs.
func sortCandidates(candidates []candidate) {
	first := func(f Fix) TextEdit {
		e := f.Edits[0]
		for _, x := range f.Edits[1:] {
			if x.Span.Start < e.Span.Start {
				e = x
			}
		}
		return e
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		ei, ej := first(candidates[i].fix), first(candidates[j].fix)
		if ei.Span.Start != ej.Span.Start {
			return ei.Span.Start < ej.Span.Start
		}
		if ei.Span.End != ej.Span.End {
			return ei.Span.End < ej.Span.End
		}
		if candidates[i].order != candidates[j].order {
			return candidates[i].order < candidates[j].order
		}
		return candidates[i].fix.ID < candidates[j].fix.ID
	})
}

func overlapping(edits []TextEdit) bool {
	for i := range edits {
		for j := i + 1; j < len(edits); j++ {
			if spansConflict(edits[i], edits[j]) {
				return true
			}
		}
	}
	return false
}

func conflictsWithExisting(existing []TextEdit, edits []TextEdit) bool {
	for _, prev := range existing {
		for _, cand := range edits {
			if spansConflict(prev, cand) {
				return true
			}
		}
	}
	return false
}

// spansConflict reports whether two text edits' spans overlap.
// Spans are treated as half-open intervals [Start, End). Two zero-length edits
// (Start == End) never conflict. A zero-length edit conflicts with a non-zero
// span if its position is within that span (Start <= pos < End). For two
// non-zero spans, any overlap yields a conflict.
func spansConflict(a, b TextEdit) bool {
	aStart, aEnd := a.Span.Start, a.Span.End
	bStart, bEnd := b.Span.Start, b.Span.End

	if aStart == aEnd && bStart == bEnd {
		return false
	}
	if aStart == aEnd {
		return bStart <= aStart && aStart < bEnd
	}
	if bStart == bEnd {
		return aStart <= bStart && bStart < aEnd
	}
	return aStart < bEnd && bStart < aEnd
}

// cumulativeDelta is the length change caused by edits ending at or before pos.
// Zero-width edits at pos count only when inclusive is set.
func cumulativeDelta(edits []TextEdit, pos int, inclusive bool) int {
	delta := 0
	for _, e := range edits {
		eStart := int(e.Span.Start)
		if eStart > pos {
			break
		}
		eEnd := int(e.Span.End)
		length := eEnd - eStart
		change := len(e.NewText) - length
		if eStart == pos && eEnd == pos && !inclusive {
			continue
		}
		if eEnd <= pos {
			delta += change
		}
	}
	return delta
}

func insertEditSorted(edits []TextEdit, edit TextEdit) []TextEdit {
	insertIdx := sort.Search(len(edits), func(i int) bool {
		if edits[i].Span.Start == edit.Span.Start {
			return edits[i].Span.End >= edit.Span.End
		}
		return edits[i].Span.Start > edit.Span.Start
	})
	edits = append(edits, TextEdit{})
	copy(edits[insertIdx+1:], edits[insertIdx:])
	edits[insertIdx] = edit
	return edits
}
