// Package build runs the external build tool and collects its diagnostic output.
package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"os/exec"
	"strings"
	"time"

	"mend/internal/diag"
)

// ErrBuildUnavailable reports that no usable diagnostics could be obtained:
// the tool is missing or not executable, or it failed without printing any.
var ErrBuildUnavailable = errors.New("build unavailable")

// Runner describes how to invoke the build.
type Runner struct {
	Command string
	Args    []string
	Dir     string
	Env     []string      // appended to the current environment
	Timeout time.Duration // 0 - без таймаута
}

// DefaultRunner is the Gradle invocation the repair scripts always used.
func DefaultRunner(dir string) Runner {
	return Runner{
		Command: "./gradlew",
		Args:    []string{"compileKotlinJs", "--no-daemon"},
		Dir:     dir,
	}
}

// Result is the captured outcome of one build invocation.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Lines yields stderr one line at a time. The sequence is lazy and reads the
// captured buffer, so ranging over it twice sees the same lines.
func (r *Result) Lines() iter.Seq[string] {
	if r == nil {
		return func(func(string) bool) {}
	}
	return diag.SplitLines(string(r.Stderr))
}

// AllLines yields stderr followed by stdout; some wrappers print diagnostics on stdout.
func (r *Result) AllLines() iter.Seq[string] {
	return func(yield func(string) bool) {
		if r == nil {
			return
		}
		for line := range diag.SplitLines(string(r.Stderr)) {
			if !yield(line) {
				return
			}
		}
		for line := range diag.SplitLines(string(r.Stdout)) {
			if !yield(line) {
				return
			}
		}
	}
}

// String renders the command line for logs.
func (r Runner) String() string {
	return strings.TrimSpace(r.Command + " " + strings.Join(r.Args, " "))
}

// Run executes the build and captures its output. A non-zero exit is not an
// error here: failing builds are the normal input. Only a failure to start the
// process is reported, wrapped in ErrBuildUnavailable.
func (r Runner) Run(ctx context.Context) (*Result, error) {
	if strings.TrimSpace(r.Command) == "" {
		return nil, fmt.Errorf("%w: no build command configured", ErrBuildUnavailable)
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	// #nosec G204 -- command comes from the project config
	cmd := exec.CommandContext(ctx, r.Command, r.Args...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &exitErr):
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, fmt.Errorf("build %s: %w", r, ctxErr)
		}
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	default:
		// процесс не запустился
		return nil, fmt.Errorf("%w: %s: %w", ErrBuildUnavailable, r, err)
	}
}

// Collect runs the build and parses its output. A build that fails without a
// single parseable diagnostic is reported as ErrBuildUnavailable rather than as
// an empty, successful-looking result.
func Collect(ctx context.Context, r Runner, p *diag.Parser) (*diag.Bag, *Result, error) {
	res, err := r.Run(ctx)
	if err != nil {
		return nil, res, err
	}
	bag := p.ParseLines(res.AllLines())
	if res.ExitCode != 0 && bag.Len() == 0 {
		return bag, res, fmt.Errorf("%w: %s exited with code %d and no parseable diagnostics%s",
			ErrBuildUnavailable, r, res.ExitCode, tail(res.Stderr))
	}
	bag.Dedup()
	bag.Sort()
	return bag, res, nil
}

// tail returns the last non-empty stderr line as context for error messages.
func tail(stderr []byte) string {
	lines := strings.Split(strings.TrimSpace(string(stderr)), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return ""
	}
	return ": " + last
}
