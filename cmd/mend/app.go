package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mend/internal/build"
	"mend/internal/config"
	"mend/internal/diag"
	"mend/internal/history"
	"mend/internal/logger"
	"mend/internal/observ"
	"mend/internal/prof"
)

// app is the state every subcommand starts from.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	timer   *observ.Timer
	profile *prof.Session
	color   bool
	quiet   bool
	timings bool
	out     io.Writer
	errOut  io.Writer
}

func newApp(cmd *cobra.Command) (*app, error) {
	flags := cmd.Root().PersistentFlags()
	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	colorFlag, err := flags.GetString("color")
	if err != nil {
		return nil, err
	}
	quiet, err := flags.GetBool("quiet")
	if err != nil {
		return nil, err
	}
	timings, err := flags.GetBool("timings")
	if err != nil {
		return nil, err
	}
	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return nil, err
	}
	logFormat, err := flags.GetString("log-format")
	if err != nil {
		return nil, err
	}

	a := &app{
		timer:   observ.NewTimer(),
		quiet:   quiet,
		timings: timings,
		out:     cmd.OutOrStdout(),
		errOut:  cmd.ErrOrStderr(),
	}
	a.color, err = readColorMode(colorFlag, a.out)
	if err != nil {
		return nil, err
	}
	color.NoColor = !a.color

	done := a.timer.Track("config")
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	a.cfg, err = config.Discover(cwd, configPath)
	if err != nil {
		return nil, err
	}
	done(a.cfg.Path)

	if logLevel == "" {
		logLevel = a.cfg.Log.Level
	}
	if logFormat == "" {
		logFormat = a.cfg.Log.Format
	}
	if err := logger.InitWriter(logLevel, logFormat, a.errOut); err != nil {
		return nil, err
	}
	a.log = logger.L()
	if a.cfg.Path != "" {
		a.log.Debug("config loaded", zap.String("path", a.cfg.Path))
	}

	var popts prof.Options
	if popts.CPU, err = flags.GetString("cpu-profile"); err != nil {
		return nil, err
	}
	if popts.Mem, err = flags.GetString("mem-profile"); err != nil {
		return nil, err
	}
	if popts.Trace, err = flags.GetString("runtime-trace"); err != nil {
		return nil, err
	}
	if a.profile, err = prof.Start(popts); err != nil {
		return nil, err
	}
	return a, nil
}

func readColorMode(value string, out io.Writer) (bool, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return os.Getenv("NO_COLOR") == "" && isTerminal(out), nil
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid --color value %q (expected auto|on|off)", value)
	}
}

// printf пишет вспомогательный вывод, который --quiet подавляет
func (a *app) printf(format string, args ...any) {
	if a.quiet {
		return
	}
	fmt.Fprintf(a.out, format, args...)
}

// finish stops profiling and prints the timer when --timings was given.
func (a *app) finish() {
	if err := a.profile.Stop(); err != nil {
		a.log.Warn("profiling", zap.Error(err))
	}
	a.log.Debug("timings", a.timer.Fields()...)
	if a.timings {
		fmt.Fprint(a.errOut, a.timer.Summary())
	}
}

// diagnostics reads input ("-" for stdin) or the configured [build].log, and
// runs the build when neither is set.
func (a *app) diagnostics(ctx context.Context, input string) (*diag.Bag, error) {
	parser := a.cfg.Parser()
	if input == "" {
		input = a.cfg.BuildLog()
	}
	done := a.timer.Track("build")
	if input != "" {
		res, err := build.ReadLog(input)
		if err != nil {
			done("failed")
			return nil, err
		}
		bag := parser.ParseLines(res.AllLines())
		done(fmt.Sprintf("%d diagnostics from %s", bag.Len(), input))
		return bag, nil
	}

	runner := a.cfg.Runner()
	a.log.Info("running build", zap.String("command", runner.String()))
	bag, res, err := build.Collect(ctx, runner, parser)
	if err != nil {
		done("failed")
		return nil, err
	}
	done(fmt.Sprintf("exit %d, %d diagnostics", res.ExitCode, bag.Len()))
	return bag, nil
}

// historyStore opens the snapshot store of root, or returns nil when [history] is off.
func (a *app) historyStore(root string) *history.Store {
	if !a.cfg.History.Enabled {
		return nil
	}
	store, err := history.Open("mend", root)
	if err != nil {
		a.log.Warn("history unavailable", zap.Error(err))
		return nil
	}
	return store
}

func errorsOnly(bag *diag.Bag) *diag.Bag {
	return bag.Filter(func(d diag.Diagnostic) bool { return d.Severity == diag.SevError })
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
