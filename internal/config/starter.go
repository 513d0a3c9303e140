package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"mend/internal/project"
)

// ErrExists is returned by WriteStarter when a manifest is already present.
var ErrExists = errors.New("mend.toml already exists")

// Starter is the manifest written by "mend init".
const Starter = `# mend configuration. Paths are relative to this file.

[build]
command = "./gradlew"
args = ["compileKotlinJs", "--no-daemon"]
timeout = "15m"
# log = "build/compile.log"   # read a captured log instead of running the build

[parse]
path_style = "unix"           # unix | windows | verbatim
severities = ["error"]

[scan]
root = "."
extensions = [".kt"]
exclude = ["**/generated/**"]

[run]
jobs = 0                      # 0 = one worker per CPU
policy = "continue"           # continue | fail-fast
mode = "atomic"               # atomic | incremental

[loop]
max_iterations = 5
rebuild = true
stop_when_stalled = true

[log]
level = "warn"
format = "console"

[history]
enabled = true

# rules_files = ["mend.rules.yaml"]

[[rule]]
name = "platform-time"
kind = "replace"
pattern = 'System\.currentTimeMillis\(\)'
replace = "currentTimeMillis()"

[[rule]]
name = "platform-imports"
kind = "import"
on = ["unresolved"]
imports = { currentTimeMillis = "io.kreekt.core.platform.currentTimeMillis" }
`

// WriteStarter creates dir/mend.toml unless one exists and force is false.
func WriteStarter(dir string, force bool) (string, error) {
	path := filepath.Join(dir, project.ManifestName)
	if _, err := os.Stat(path); err == nil && !force {
		return path, fmt.Errorf("%s: %w", path, ErrExists)
	}
	if err := os.WriteFile(path, []byte(Starter), 0o644); err != nil {
		return path, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
