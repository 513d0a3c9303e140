package driver

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"mend/internal/diag"
	"mend/internal/patch"
	"mend/internal/project"
)

// Policy decides what a failing file does to the rest of the run.
type Policy uint8

const (
	// ContinueOnError logs the failure, skips the file and goes on.
	ContinueOnError Policy = iota
	// FailFast aborts the run on the first failure, before anything is written.
	FailFast
)

func (p Policy) String() string {
	if p == FailFast {
		return "fail-fast"
	}
	return "continue"
}

// ParsePolicy accepts "continue" or "fail-fast".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "continue", "continue-on-error":
		return ContinueOnError, nil
	case "fail-fast", "failfast":
		return FailFast, nil
	}
	return 0, fmt.Errorf("unknown error policy %q (expected continue or fail-fast)", s)
}

// Mode decides when transformed files reach the disk.
type Mode uint8

const (
	// ModeAtomic validates every proposal, then writes all of them or none.
	ModeAtomic Mode = iota
	// ModeIncremental writes each file as soon as it is transformed.
	ModeIncremental
)

func (m Mode) String() string {
	if m == ModeIncremental {
		return "incremental"
	}
	return "atomic"
}

// ParseMode accepts "atomic" or "incremental".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "atomic":
		return ModeAtomic, nil
	case "incremental":
		return ModeIncremental, nil
	}
	return 0, fmt.Errorf("unknown commit mode %q (expected atomic or incremental)", s)
}

// Options configures a patch run.
type Options struct {
	Root   string
	Filter project.Filter
	// Files restricts the run to these paths instead of discovering under Root.
	Files   []string
	Actions *patch.Set
	// Diagnostics, when set, gate triggered actions per file.
	Diagnostics *diag.Bag
	Jobs        int
	Policy      Policy
	Mode        Mode
	DryRun      bool
	Logger      *zap.Logger
	Events      ProgressSink
}
