package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mend/internal/changeset"
	"mend/internal/diag"
	"mend/internal/driver"
	"mend/internal/history"
	"mend/internal/loop"
)

func newFixCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fix [flags] [root]",
		Short: "Apply the configured rules to the project sources",
		Long: `Run every configured rule over the source files under root (default: [scan].root).
With --from-build only the files named by the build's errors are patched, and
rules with "on" triggers run only where a matching diagnostic was reported.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runFix,
	}
	cmd.Flags().Bool("dry-run", false, "compute the changes without writing them")
	cmd.Flags().Bool("diff", false, "print a unified diff of the changes")
	cmd.Flags().Bool("check", false, "exit with status 2 if any file would change; implies --dry-run")
	cmd.Flags().Bool("fail-fast", false, "stop at the first failing file and write nothing")
	cmd.Flags().Int("jobs", 0, "max parallel workers (0=auto)")
	cmd.Flags().String("mode", "", "write mode (atomic|incremental), overrides [run].mode")
	cmd.Flags().Bool("from-build", false, "patch only the files the build reports errors in")
	cmd.Flags().String("input", "", "with --from-build, read a captured build log instead of running the build")
	cmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
	return cmd
}

type fixFlags struct {
	dryRun    bool
	diff      bool
	check     bool
	failFast  bool
	fromBuild bool
	input     string
	ui        uiMode
}

func runFix(cmd *cobra.Command, args []string) error {
	var (
		ff  fixFlags
		err error
	)
	if ff.dryRun, err = cmd.Flags().GetBool("dry-run"); err != nil {
		return err
	}
	if ff.diff, err = cmd.Flags().GetBool("diff"); err != nil {
		return err
	}
	if ff.check, err = cmd.Flags().GetBool("check"); err != nil {
		return err
	}
	if ff.failFast, err = cmd.Flags().GetBool("fail-fast"); err != nil {
		return err
	}
	if ff.fromBuild, err = cmd.Flags().GetBool("from-build"); err != nil {
		return err
	}
	if ff.input, err = cmd.Flags().GetString("input"); err != nil {
		return err
	}
	if ff.input != "" && !ff.fromBuild {
		return fmt.Errorf("--input requires --from-build")
	}
	uiStr, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
	}
	if ff.ui, err = readUIMode(uiStr); err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.finish()

	opts, err := driverOptions(cmd, a)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		if opts.Root, err = filepath.Abs(args[0]); err != nil {
			return err
		}
	}
	if ff.dryRun || ff.check {
		opts.DryRun = true
	}
	if ff.failFast {
		opts.Policy = driver.FailFast
	}

	var report *driver.Report
	done := a.timer.Track("fix")
	work := func(sink driver.ProgressSink) error {
		opts.Events = sink
		if ff.fromBuild {
			res, err := fixFromBuild(cmd.Context(), a, opts, ff.input)
			if res != nil && len(res.Iterations) > 0 {
				report = res.Iterations[0].Report
			}
			return err
		}
		var err error
		report, err = driver.Run(cmd.Context(), opts)
		return err
	}
	if shouldUseTUI(ff.ui, a.out, a.quiet) {
		err = runWithUI(a.out, "mend fix", nil, work)
	} else {
		err = work(nil)
	}
	if report != nil {
		done(fmt.Sprintf("%d files, %d changed", report.Files, report.Changed))
	} else {
		done("")
	}
	if err != nil {
		if report != nil {
			printFailures(a, report)
		}
		return err
	}
	if report == nil {
		a.printf("No files to fix\n")
		return nil
	}

	if ff.diff && report.Changeset.Len() > 0 {
		if err := report.Changeset.Diff(a.out, changeset.DiffOptions{Color: a.color}); err != nil {
			return err
		}
	}
	printFailures(a, report)
	printFixed(a, report, opts.DryRun)

	if !ff.fromBuild && !opts.DryRun && report.Written > 0 {
		recordFix(a, opts.Root, report)
	}
	if ff.check && report.Changed > 0 {
		return &exitError{code: exitChanges}
	}
	return nil
}

// driverOptions layers the shared run flags over the configuration.
func driverOptions(cmd *cobra.Command, a *app) (driver.Options, error) {
	opts := a.cfg.DriverOptions()
	set, err := a.cfg.Actions(nil)
	if err != nil {
		return opts, err
	}
	opts.Actions = set
	opts.Logger = a.log

	if f := cmd.Flags().Lookup("jobs"); f != nil && f.Changed {
		if opts.Jobs, err = cmd.Flags().GetInt("jobs"); err != nil {
			return opts, err
		}
		if opts.Jobs < 0 {
			return opts, fmt.Errorf("--jobs must not be negative, got %d", opts.Jobs)
		}
	}
	if f := cmd.Flags().Lookup("mode"); f != nil && f.Changed {
		if opts.Mode, err = driver.ParseMode(f.Value.String()); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// fixFromBuild is a single loop pass: collect, patch the implicated files, no rebuild.
func fixFromBuild(ctx context.Context, a *app, opts driver.Options, input string) (*loop.Result, error) {
	l := &loop.Loop{
		Collect:       func(ctx context.Context) (*diag.Bag, error) { return a.diagnostics(ctx, input) },
		Driver:        opts,
		MaxIterations: 1,
		Rebuild:       false,
		History:       a.historyStore(opts.Root),
		Command:       "fix",
		Logger:        a.log,
	}
	return l.Run(ctx)
}

// recordFix stores a snapshot of a plain fix run; --from-build runs are
// recorded by the loop with their diagnostic counts.
func recordFix(a *app, root string, report *driver.Report) {
	store := a.historyStore(root)
	if store == nil {
		return
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	snap := history.NewSnapshot(abs, "fix", nil)
	snap.Iterations = 1
	snap.Files = report.ChangedFiles()
	snap.FilesChanged = len(snap.Files)
	if err := store.Put(snap); err != nil {
		a.log.Warn("history not saved", zap.Error(err))
	}
}

func printFailures(a *app, report *driver.Report) {
	for _, res := range report.Failures() {
		fmt.Fprintf(a.errOut, "skipped %s: %v\n", res.Rel, res.Err)
	}
}

func printFixed(a *app, report *driver.Report, dryRun bool) {
	for _, res := range report.Results {
		if !res.Changed {
			continue
		}
		var names []string
		for _, ar := range res.Actions {
			if ar.Err == nil && ar.Edits > 0 {
				names = append(names, ar.Name)
			}
		}
		a.printf("  %s %v\n", res.Rel, names)
	}
	if dryRun {
		fmt.Fprintf(a.out, "Would fix %d files\n", report.Changed)
		return
	}
	fmt.Fprintf(a.out, "Fixed %d files\n", report.Written)
}
