package build

import (
	"fmt"
	"io"
	"os"
)

// ReadLog wraps a previously captured build log as a Result so that it can be
// parsed without re-running the build. "-" reads standard input.
func ReadLog(path string) (*Result, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		// #nosec G304 -- path is provided by the caller
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read build log: %w", err)
	}
	return &Result{Stderr: data}, nil
}
