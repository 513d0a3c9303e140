package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mend/internal/diag"
	"mend/internal/diagfmt"
	"mend/internal/driver"
	"mend/internal/loop"
)

func newLoopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loop [flags]",
		Short: "Build, patch and rebuild until the errors are gone",
		Long: `Run the build, patch the files its errors point at and rebuild, repeating until
no errors remain, nothing changes, the error count stops falling or the
iteration limit is reached.`,
		Args: cobra.NoArgs,
		RunE: runLoop,
	}
	cmd.Flags().Int("max-iterations", 0, "iteration limit, overrides [loop].max_iterations")
	cmd.Flags().Bool("no-rebuild", false, "patch once and stop without rebuilding")
	cmd.Flags().Bool("dry-run", false, "compute the first pass without writing it")
	cmd.Flags().Bool("fail-fast", false, "stop at the first failing file")
	cmd.Flags().Int("jobs", 0, "max parallel workers (0=auto)")
	cmd.Flags().String("mode", "", "write mode (atomic|incremental), overrides [run].mode")
	cmd.Flags().String("input", "", "start from a captured build log; implies --no-rebuild")
	return cmd
}

// runLoop exits with status 1 when errors remain after the loop gave up.
func runLoop(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.finish()

	opts, err := driverOptions(cmd, a)
	if err != nil {
		return err
	}
	if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
		opts.DryRun = true
	}
	if ff, _ := cmd.Flags().GetBool("fail-fast"); ff {
		opts.Policy = driver.FailFast
	}
	input, err := cmd.Flags().GetString("input")
	if err != nil {
		return err
	}

	l := &loop.Loop{
		Driver:          opts,
		MaxIterations:   a.cfg.Loop.MaxIterations,
		Rebuild:         a.cfg.Loop.Rebuild,
		StopWhenStalled: a.cfg.Loop.StopWhenStalled,
		History:         a.historyStore(opts.Root),
		Logger:          a.log,
		OnIteration: func(it loop.Iteration) {
			line := fmt.Sprintf("iteration %d: %s in %s, %s patched",
				it.N, plural(it.Before.Total(), "error"), plural(it.Files, "file"), plural(it.Report.Changed, "file"))
			if it.After != nil {
				line += fmt.Sprintf(", %d left", it.After.Total())
			}
			a.printf("%s\n", line)
		},
	}
	if f := cmd.Flags().Lookup("max-iterations"); f.Changed {
		if l.MaxIterations, err = cmd.Flags().GetInt("max-iterations"); err != nil {
			return err
		}
		if l.MaxIterations < 0 {
			return fmt.Errorf("--max-iterations must not be negative, got %d", l.MaxIterations)
		}
	}
	if noRebuild, _ := cmd.Flags().GetBool("no-rebuild"); noRebuild {
		l.Rebuild = false
	}
	if input != "" || a.cfg.BuildLog() != "" {
		// лог не меняется после правок, пересобирать нечего
		l.Rebuild = false
	}
	l.Collect = func(ctx context.Context) (*diag.Bag, error) { return a.diagnostics(ctx, input) }

	done := a.timer.Track("loop")
	res, err := l.Run(cmd.Context())
	if res != nil {
		done(string(res.Stop))
	} else {
		done("failed")
	}
	if err != nil {
		return err
	}

	if !a.quiet {
		a.printf("\n")
		if err := diagfmt.Summary(a.out, res.Final, a.color); err != nil {
			return err
		}
		a.printf("stopped: %s\n", res.Stop)
	}
	if opts.DryRun {
		fmt.Fprintf(a.out, "Would fix %d files\n", len(res.Changed))
	} else {
		fmt.Fprintf(a.out, "Fixed %d files\n", len(res.Changed))
	}

	if remaining := res.Final.Total(); remaining > 0 && res.Stop != loop.StopSinglePass && res.Stop != loop.StopDryRun {
		return &exitError{code: exitFailure, err: errors.New(plural(remaining, "error") + " remain")}
	}
	return nil
}
