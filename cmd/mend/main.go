package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mend/internal/logger"
	"mend/internal/version"
)

// Коды выхода
const (
	exitOK      = 0
	exitFailure = 1
	exitChanges = 2 // --check нашёл файлы, которые нужно исправить
)

// exitError ends the process with code. A nil err prints nothing.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mend",
		Short:         "Patch Kotlin sources until the build stops complaining",
		Long:          `mend runs the build, classifies its compile errors and applies rewrite rules to the files they point at`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Глобальные флаги
	root.PersistentFlags().String("config", "", "path to mend.toml (default: nearest one above the working directory)")
	root.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	root.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	root.PersistentFlags().Bool("timings", false, "show timing information")
	root.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error), overrides [log].level")
	root.PersistentFlags().String("log-format", "", "log format (console|json), overrides [log].format")
	root.PersistentFlags().String("cpu-profile", "", "write a CPU profile to this file")
	root.PersistentFlags().String("mem-profile", "", "write a heap profile to this file on exit")
	root.PersistentFlags().String("runtime-trace", "", "write a runtime trace to this file")

	root.AddCommand(newDiagnoseCmd())
	root.AddCommand(newFixCmd())
	root.AddCommand(newLoopCmd())
	root.AddCommand(newRulesCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and maps the outcome to an exit code.
func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	logger.Sync() //nolint:errcheck
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "mend: %v\n", ee.err)
		}
		return ee.code
	}
	fmt.Fprintf(stderr, "mend: %v\n", err)
	return exitFailure
}

// isTerminal проверяет, является ли writer терминалом
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
