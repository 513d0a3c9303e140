package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mend/internal/diag"
	"mend/internal/diagfmt"
	"mend/internal/source"
	"mend/internal/version"
)

func newDiagnoseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "diagnose [flags]",
		Aliases: []string{"diag"},
		Short:   "Run the build and print its classified diagnostics",
		Long:    `Run the configured build (or read a captured log with --input) and print the parsed diagnostics with their category`,
		Args:    cobra.NoArgs,
		RunE:    runDiagnose,
	}
	cmd.Flags().String("input", "", "read a captured build log instead of running the build (- for stdin)")
	cmd.Flags().String("format", "pretty", "output format (pretty|json|short|summary|sarif)")
	cmd.Flags().Int("max", 100, "maximum number of diagnostics to show (0 = all)")
	cmd.Flags().Int("context", 1, "source lines to show around each diagnostic (pretty only)")
	cmd.Flags().String("path-mode", "auto", "how to print paths (auto|absolute|relative|basename)")
	cmd.Flags().Bool("warnings", false, "keep warnings and infos, not only errors")
	return cmd
}

// runDiagnose exits with status 1 when any error diagnostic remains, so it can gate CI.
func runDiagnose(cmd *cobra.Command, args []string) error {
	input, err := cmd.Flags().GetString("input")
	if err != nil {
		return fmt.Errorf("failed to get input flag: %w", err)
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	maxDiagnostics, err := cmd.Flags().GetInt("max")
	if err != nil {
		return fmt.Errorf("failed to get max flag: %w", err)
	}
	contextLines, err := cmd.Flags().GetInt("context")
	if err != nil {
		return fmt.Errorf("failed to get context flag: %w", err)
	}
	pathModeStr, err := cmd.Flags().GetString("path-mode")
	if err != nil {
		return fmt.Errorf("failed to get path-mode flag: %w", err)
	}
	keepWarnings, err := cmd.Flags().GetBool("warnings")
	if err != nil {
		return fmt.Errorf("failed to get warnings flag: %w", err)
	}

	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "pretty", "json", "short", "summary", "sarif":
	default:
		return fmt.Errorf("unknown format %q (expected pretty|json|short|summary|sarif)", format)
	}
	pathMode, err := diagfmt.ParsePathMode(pathModeStr)
	if err != nil {
		return err
	}
	if contextLines < 0 || contextLines > 10 {
		return fmt.Errorf("--context must be between 0 and 10, got %d", contextLines)
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.finish()

	bag, err := a.diagnostics(cmd.Context(), input)
	if err != nil {
		return err
	}
	if !keepWarnings {
		bag = errorsOnly(bag)
	}
	bag.Dedup()
	bag.Sort()

	root := a.cfg.Root()
	done := a.timer.Track("render")
	switch format {
	case "pretty":
		fs := source.NewFileSetWithBase(root)
		err = diagfmt.Pretty(a.out, bag, fs, diagfmt.PrettyOpts{
			Color:    a.color,
			Context:  int8(contextLines), //nolint:gosec // проверено выше
			PathMode: pathMode,
			BaseDir:  root,
			Max:      maxDiagnostics,
		})
		if err == nil && !a.quiet {
			err = diagfmt.Summary(a.out, bag.CountByCategory(), a.color)
		}
	case "json":
		err = diagfmt.JSON(a.out, bag, diagfmt.JSONOpts{
			PathMode: pathMode,
			BaseDir:  root,
			Max:      maxDiagnostics,
		})
	case "short":
		style, _ := diag.ParsePathStyle(a.cfg.Parse.PathStyle) // проверено в config.Validate
		err = diagfmt.Short(a.out, bag, style)
	case "summary":
		err = diagfmt.Summary(a.out, bag.CountByCategory(), a.color)
	case "sarif":
		err = diagfmt.Sarif(a.out, bag, diagfmt.SarifRunMeta{
			ToolName:       "mend",
			ToolVersion:    version.Version,
			InvocationArgs: append([]string{cmd.CommandPath()}, args...),
		})
	}
	done(format)
	if err != nil {
		return err
	}

	if bag.HasErrors() {
		return &exitError{code: exitFailure}
	}
	return nil
}
