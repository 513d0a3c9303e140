// Package driver runs a patch action set over the files of a project.
package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mend/internal/changeset"
	"mend/internal/diag"
	"mend/internal/patch"
	"mend/internal/project"
	"mend/internal/source"
)

var (
	// ErrOscillation marks a file whose actions keep rewriting each other's output.
	ErrOscillation = errors.New("actions do not converge")
	// ErrFileIO wraps read and write failures of a single file.
	ErrFileIO = errors.New("file i/o failed")
)

// FileError is the failure of one file. Action names the action at fault, if any.
type FileError struct {
	Path   string
	Action string
	Err    error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

type fileJob struct {
	path  string // as discovered
	abs   string
	rel   string // slash separated, relative to root
	raw   []byte
	mode  os.FileMode
	file  *source.File
	diags []diag.Diagnostic
}

type runner struct {
	opts  Options
	log   *zap.Logger
	gated bool // diagnostics were supplied, so triggers apply
	diags map[string][]diag.Diagnostic
}

// Run applies opts.Actions to every selected file and commits the result
// according to opts.Mode. The returned report is valid even when err is not nil.
func Run(ctx context.Context, opts Options) (*Report, error) {
	r := &runner{opts: opts, log: opts.Logger}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	if r.opts.Root == "" {
		r.opts.Root = "."
	}
	if opts.Diagnostics != nil {
		r.gated = true
		r.diags = diagnosticsByPath(opts.Diagnostics)
	}

	report := &Report{Changeset: changeset.New()}
	paths, err := r.files()
	if err != nil {
		report.tally()
		return report, err
	}
	report.Results = make([]FileResult, len(paths))
	if len(paths) == 0 {
		report.tally()
		return report, nil
	}

	// Сначала последовательно читаем все файлы: FileSet не потокобезопасен на запись
	fileSet := source.NewFileSetWithBase(r.opts.Root)
	jobs := make([]*fileJob, len(paths))
	for i, p := range paths {
		res := &report.Results[i]
		res.Path, res.Rel, res.State = p, r.rel(p), StateUnvisited
		job, err := r.load(fileSet, p, res.Rel)
		if err != nil {
			r.fail(res, err)
			if opts.Policy == FailFast {
				report.tally()
				return report, err
			}
			continue
		}
		jobs[i] = job
		r.advance(res, StateRead)
	}

	changes := make([]*changeset.Change, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers(opts.Jobs, len(paths)))
	for i, job := range jobs {
		if job == nil {
			continue
		}
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			res := &report.Results[i]
			change, err := r.process(job, res)
			if err != nil {
				r.fail(res, err)
				if opts.Policy == FailFast {
					return err
				}
				return nil
			}
			changes[i] = change
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		report.tally()
		return report, err
	}

	for _, c := range changes {
		if c != nil {
			report.Changeset.Add(c)
		}
	}
	if opts.Mode == ModeAtomic {
		if err := r.commit(report); err != nil {
			report.tally()
			return report, err
		}
	}

	for i := range report.Results {
		res := &report.Results[i]
		if res.State != StateFailed && res.State != StateUnvisited {
			r.advance(res, StateDone)
		}
	}
	report.tally()
	r.log.Info("run finished",
		zap.Int("files", report.Files),
		zap.Int("changed", report.Changed),
		zap.Int("written", report.Written),
		zap.Int("failed", report.Failed),
		zap.Bool("dry_run", opts.DryRun),
	)
	return report, nil
}

func (r *runner) files() ([]string, error) {
	if len(r.opts.Files) == 0 {
		return project.Discover(r.opts.Root, r.opts.Filter)
	}
	seen := make(map[string]struct{}, len(r.opts.Files))
	out := make([]string, 0, len(r.opts.Files))
	for _, f := range r.opts.Files {
		f = filepath.Clean(f)
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	return out, nil
}

func (r *runner) rel(path string) string {
	rel, err := filepath.Rel(r.opts.Root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (r *runner) load(fileSet *source.FileSet, path, rel string) (*fileJob, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &FileError{Path: rel, Err: fmt.Errorf("%w: %w", ErrFileIO, err)}
	}
	if !info.Mode().IsRegular() {
		return nil, &FileError{Path: rel, Err: fmt.Errorf("%w: not a regular file", ErrFileIO)}
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileError{Path: rel, Err: fmt.Errorf("%w: %w", ErrFileIO, err)}
	}
	content, flags := source.Normalize(raw)
	id := fileSet.Add(path, content, flags)

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	job := &fileJob{
		path: path,
		abs:  abs,
		rel:  rel,
		raw:  raw,
		mode: info.Mode().Perm(),
		file: fileSet.Get(id),
	}
	if r.gated {
		job.diags = r.diags[filepath.Clean(abs)]
	}
	return job, nil
}

// process transforms one file and, in incremental mode, writes it.
func (r *runner) process(job *fileJob, res *FileResult) (*changeset.Change, error) {
	text, actions, err := r.transform(job)
	res.Actions = actions
	if err != nil {
		return nil, err
	}
	if bytes.Equal(text, job.file.Content) {
		r.advance(res, StateUnchanged)
		return nil, nil
	}

	var names []string
	for _, a := range actions {
		if a.Err == nil && a.Edits > 0 {
			names = append(names, a.Name)
		}
	}
	change := &changeset.Change{
		Path:     job.path,
		Rel:      job.rel,
		Original: job.raw,
		Proposed: job.file.Restore(text),
		Mode:     job.mode,
		Actions:  names,
	}
	if !change.Changed() {
		r.advance(res, StateUnchanged)
		return nil, nil
	}
	res.Changed = true
	r.advance(res, StateTransformed)

	if r.opts.Mode != ModeIncremental || r.opts.DryRun {
		return change, nil
	}
	if err := change.Validate(); err != nil {
		res.Changed = false
		return nil, &FileError{Path: job.rel, Err: err}
	}
	if err := changeset.CommitOne(change); err != nil {
		res.Changed = false
		return nil, &FileError{Path: job.rel, Err: fmt.Errorf("%w: %w", ErrFileIO, err)}
	}
	res.Written = true
	r.advance(res, StateWritten)
	return change, nil
}

// transform runs the action set over one file. Each action must be
// idempotent on its own, and a second pass of the whole set must change nothing.
func (r *runner) transform(job *fileJob) ([]byte, []ActionResult, error) {
	text := job.file.Content
	var results []ActionResult
	excluded := make(map[string]bool)

	for _, a := range r.opts.Actions.Actions() {
		if !r.runs(a, job) {
			continue
		}
		in := patch.Input{Path: job.rel, Text: text, Diagnostics: job.diags}
		out, err := patch.CheckIdempotent(a, in)
		ar := ActionResult{Name: a.Name(), Skipped: len(out.Skipped)}
		if errors.Is(err, patch.ErrNotIdempotent) {
			ar.Err = err
			results = append(results, ar)
			excluded[a.Name()] = true
			r.log.Warn("action skipped",
				zap.String("action", a.Name()),
				zap.String("file", job.rel),
				zap.Error(err),
			)
			continue
		}
		if err != nil {
			ar.Err = err
			results = append(results, ar)
			return nil, results, &FileError{Path: job.rel, Action: a.Name(), Err: err}
		}
		if out.Changed {
			text = out.Text
			ar.Edits = out.Edits
			r.log.Debug("action applied",
				zap.String("action", a.Name()),
				zap.String("file", job.rel),
				zap.Int("edits", out.Edits),
			)
		}
		results = append(results, ar)
	}

	if bytes.Equal(text, job.file.Content) {
		return text, results, nil
	}
	culprit, err := r.settled(job, text, excluded)
	if err != nil {
		return nil, results, &FileError{Path: job.rel, Action: culprit, Err: err}
	}
	return text, results, nil
}

// settled reapplies the set to text. Any action that still changes it means
// the actions fight over the file, even if a later one changes it back.
func (r *runner) settled(job *fileJob, text []byte, excluded map[string]bool) (string, error) {
	for _, a := range r.opts.Actions.Actions() {
		if excluded[a.Name()] || !r.runs(a, job) {
			continue
		}
		out, err := a.Apply(patch.Input{Path: job.rel, Text: text, Diagnostics: job.diags})
		if err != nil {
			return a.Name(), err
		}
		if out.Changed {
			return a.Name(), fmt.Errorf("%w: %s rewrote the file on a second pass", ErrOscillation, a.Name())
		}
	}
	return "", nil
}

func (r *runner) runs(a patch.Action, job *fileJob) bool {
	if !r.gated {
		return true
	}
	return patch.Triggered(a, job.diags)
}

// commit validates the collected changeset and writes it all-or-nothing.
func (r *runner) commit(report *Report) error {
	cs := report.Changeset
	index := make(map[string]int, len(report.Results))
	for i, res := range report.Results {
		index[res.Path] = i
	}

	rejected := cs.Validate()
	for _, rej := range rejected {
		if i, ok := index[rej.Path]; ok {
			res := &report.Results[i]
			res.Changed = false
			r.fail(res, &FileError{Path: res.Rel, Err: rej.Err})
		}
	}
	if len(rejected) > 0 && r.opts.Policy == FailFast {
		return rejected[0].Err
	}
	if r.opts.DryRun || cs.Len() == 0 {
		return nil
	}

	written, err := cs.Commit()
	if err != nil {
		r.log.Error("commit failed", zap.Int("files", cs.Len()), zap.Error(err))
		return err
	}
	for _, p := range written {
		if i, ok := index[p]; ok {
			res := &report.Results[i]
			res.Written = true
			r.advance(res, StateWritten)
		}
	}
	return nil
}

func (r *runner) advance(res *FileResult, s State) {
	res.State = s
	if r.opts.Events != nil {
		r.opts.Events.OnEvent(Event{File: res.Rel, State: s})
	}
}

func (r *runner) fail(res *FileResult, err error) {
	res.State = StateFailed
	res.Err = err
	action := ""
	var ferr *FileError
	if errors.As(err, &ferr) {
		action = ferr.Action
	}
	r.log.Warn("file skipped",
		zap.String("action", action),
		zap.String("file", res.Rel),
		zap.Error(err),
	)
	if r.opts.Events != nil {
		r.opts.Events.OnEvent(Event{File: res.Rel, State: StateFailed, Err: err})
	}
}

// diagnosticsByPath keys diagnostics by cleaned absolute path.
func diagnosticsByPath(bag *diag.Bag) map[string][]diag.Diagnostic {
	out := make(map[string][]diag.Diagnostic)
	for p, ds := range bag.ByPath() {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		key := filepath.Clean(p)
		out[key] = append(out[key], ds...)
	}
	return out
}

func workers(jobs, files int) int {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	return max(1, min(jobs, files))
}
