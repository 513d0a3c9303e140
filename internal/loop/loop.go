// Package loop drives the build → classify → patch → rebuild cycle.
package loop

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"mend/internal/build"
	"mend/internal/diag"
	"mend/internal/driver"
	"mend/internal/history"
)

// StopReason says why the loop ended.
type StopReason string

const (
	StopClean      StopReason = "no errors left"
	StopNoChanges  StopReason = "no files changed"
	StopStalled    StopReason = "error count did not go down"
	StopLimit      StopReason = "iteration limit reached"
	StopSinglePass StopReason = "rebuild disabled"
	StopDryRun     StopReason = "dry run"
)

// Iteration is one patch pass and the build that measured it.
type Iteration struct {
	N      int
	Before diag.Counts
	After  diag.Counts // nil when the pass was not followed by a build
	Files  int         // files that carried diagnostics
	Report *driver.Report
}

// Progress is the drop in errors achieved by the iteration; negative means it got worse.
func (it Iteration) Progress() int {
	if it.After == nil {
		return 0
	}
	return it.Before.Total() - it.After.Total()
}

// Result summarises a loop run.
type Result struct {
	Iterations []Iteration
	Stop       StopReason
	Initial    diag.Counts
	Final      diag.Counts
	// Changed lists every file touched by any iteration, sorted.
	Changed  []string
	Snapshot *history.Snapshot
}

// Loop runs the build, patches the files it complains about and rebuilds
// until the errors are gone or no further progress is made.
type Loop struct {
	Runner build.Runner
	Parser *diag.Parser
	// Collect overrides Runner/Parser as the source of diagnostics.
	Collect func(ctx context.Context) (*diag.Bag, error)
	// Driver is the template for each patch pass; Files and Diagnostics are set per iteration.
	Driver          driver.Options
	MaxIterations   int
	Rebuild         bool
	StopWhenStalled bool
	History         *history.Store
	Command         string // recorded in history; "loop" when empty
	Logger          *zap.Logger
	OnIteration     func(Iteration)
}

// Run executes the loop. A build that cannot produce diagnostics ends it with
// an error wrapping build.ErrBuildUnavailable.
func (l *Loop) Run(ctx context.Context) (*Result, error) {
	log := l.Logger
	if log == nil {
		log = zap.NewNop()
	}
	root := l.Driver.Root
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	bag, err := l.collect(ctx)
	if err != nil {
		return nil, err
	}
	errs := errorsOnly(bag)
	res := &Result{Initial: errs.CountByCategory()}
	changed := make(map[string]struct{})

	for n := 1; ; n++ {
		if errs.Len() == 0 {
			res.Stop = StopClean
			break
		}
		if l.MaxIterations > 0 && n > l.MaxIterations {
			res.Stop = StopLimit
			break
		}

		files, scoped := l.implicated(errs, absRoot)
		it := Iteration{N: n, Before: errs.CountByCategory(), Files: len(files)}
		log.Info("iteration started",
			zap.Int("iteration", n),
			zap.Int("errors", errs.Len()),
			zap.Int("files", len(files)),
		)
		if len(files) == 0 {
			res.Stop = StopNoChanges
			break
		}

		opts := l.Driver
		opts.Root = absRoot
		opts.Files = files
		opts.Diagnostics = scoped
		if opts.Logger == nil {
			opts.Logger = log
		}
		report, err := driver.Run(ctx, opts)
		it.Report = report
		if err != nil {
			res.Iterations = append(res.Iterations, it)
			res.Final = errs.CountByCategory()
			return res, fmt.Errorf("iteration %d: %w", n, err)
		}
		for _, p := range report.ChangedFiles() {
			changed[p] = struct{}{}
		}

		stop := StopReason("")
		switch {
		case report.Changed == 0:
			stop = StopNoChanges
		case opts.DryRun:
			stop = StopDryRun
		case !l.Rebuild:
			stop = StopSinglePass
		}
		if stop != "" {
			l.record(res, it)
			res.Stop = stop
			break
		}

		next, err := l.collect(ctx)
		if err != nil {
			l.record(res, it)
			res.Final = errs.CountByCategory()
			return res, fmt.Errorf("rebuild after iteration %d: %w", n, err)
		}
		errs = errorsOnly(next)
		it.After = errs.CountByCategory()
		l.record(res, it)
		log.Info("iteration finished",
			zap.Int("iteration", n),
			zap.Int("changed", report.Changed),
			zap.Int("errors_before", it.Before.Total()),
			zap.Int("errors_after", it.After.Total()),
		)
		if l.StopWhenStalled && it.Progress() <= 0 && errs.Len() > 0 {
			res.Stop = StopStalled
			break
		}
	}

	res.Final = errs.CountByCategory()
	res.Changed = make([]string, 0, len(changed))
	for p := range changed {
		res.Changed = append(res.Changed, p)
	}
	sort.Strings(res.Changed)

	if l.History != nil && !l.Driver.DryRun {
		command := l.Command
		if command == "" {
			command = "loop"
		}
		snap := history.NewSnapshot(absRoot, command, res.Final)
		snap.Iterations = len(res.Iterations)
		snap.FilesChanged = len(res.Changed)
		snap.Files = res.Changed
		if err := l.History.Put(snap); err != nil {
			log.Warn("history not saved", zap.Error(err))
		} else {
			res.Snapshot = snap
		}
	}
	return res, nil
}

func (l *Loop) record(res *Result, it Iteration) {
	res.Iterations = append(res.Iterations, it)
	if l.OnIteration != nil {
		l.OnIteration(it)
	}
}

func (l *Loop) collect(ctx context.Context) (*diag.Bag, error) {
	if l.Collect != nil {
		return l.Collect(ctx)
	}
	parser := l.Parser
	if parser == nil {
		parser = diag.NewParser(diag.PathUnix)
	}
	bag, _, err := build.Collect(ctx, l.Runner, parser)
	return bag, err
}

// implicated returns the files under root named by errs that pass the driver's
// filter, and their diagnostics with paths made absolute against root.
func (l *Loop) implicated(errs *diag.Bag, absRoot string) ([]string, *diag.Bag) {
	var files []string
	scoped := diag.NewBag(0)
	for p, ds := range errs.ByPath() {
		abs := p
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(absRoot, abs)
		}
		abs = filepath.Clean(abs)
		rel, err := filepath.Rel(absRoot, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if !l.Driver.Filter.Match(filepath.ToSlash(rel)) {
			continue
		}
		files = append(files, abs)
		for _, d := range ds {
			d.Path = abs
			scoped.Add(d)
		}
	}
	sort.Strings(files)
	return files, scoped
}

func errorsOnly(bag *diag.Bag) *diag.Bag {
	if bag == nil {
		return diag.NewBag(0)
	}
	return bag.Filter(func(d diag.Diagnostic) bool { return d.Severity == diag.SevError })
}
