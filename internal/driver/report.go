package driver

import (
	"sort"

	"mend/internal/changeset"
)

// ActionResult is what one action did to one file.
type ActionResult struct {
	Name    string
	Edits   int
	Skipped int // fixes the edit engine refused
	Err     error
}

// FileResult is the outcome for one file.
type FileResult struct {
	Path    string
	Rel     string
	State   State
	Changed bool
	Written bool
	Actions []ActionResult
	Err     error
}

// Report summarises a run. Results follow the sorted file order.
type Report struct {
	Files     int
	Changed   int // files fixed (or that would be fixed on a dry run)
	Written   int
	Unchanged int
	Failed    int
	Results   []FileResult
	// ActionCounts is the number of files each action changed.
	ActionCounts map[string]int
	// Changeset holds the accepted proposals; used for diff previews.
	Changeset *changeset.Changeset
}

// Failures returns the failed results in file order.
func (r *Report) Failures() []FileResult {
	var out []FileResult
	for _, res := range r.Results {
		if res.State == StateFailed {
			out = append(out, res)
		}
	}
	return out
}

// ChangedFiles returns the paths of changed files, sorted.
func (r *Report) ChangedFiles() []string {
	var out []string
	for _, res := range r.Results {
		if res.Changed {
			out = append(out, res.Path)
		}
	}
	sort.Strings(out)
	return out
}

// ActionNames returns the names in ActionCounts, sorted.
func (r *Report) ActionNames() []string {
	names := make([]string, 0, len(r.ActionCounts))
	for n := range r.ActionCounts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *Report) tally() {
	r.Files = len(r.Results)
	r.Changed, r.Written, r.Unchanged, r.Failed = 0, 0, 0, 0
	r.ActionCounts = make(map[string]int)
	for _, res := range r.Results {
		switch {
		case res.State == StateFailed:
			r.Failed++
		case res.Changed:
			r.Changed++
		default:
			r.Unchanged++
		}
		if res.Written {
			r.Written++
		}
		if res.State == StateFailed {
			continue
		}
		for _, a := range res.Actions {
			if a.Err == nil && a.Edits > 0 {
				r.ActionCounts[a.Name]++
			}
		}
	}
}
