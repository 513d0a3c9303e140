package version

import (
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestVersion_DefaultValues(t *testing.T) {
	if Version == "" {
		t.Error("Version should have a default value")
	}
}

func TestInfo(t *testing.T) {
	origVersion, origCommit, origDate := Version, GitCommit, BuildDate
	t.Cleanup(func() { Version, GitCommit, BuildDate = origVersion, origCommit, origDate })

	// Override values (simulating build-time ldflags)
	Version = "1.2.3"
	GitCommit = "abc123def456"
	BuildDate = "2024-01-15T10:30:00Z"

	got := Info(false)
	want := "mend 1.2.3\ncommit: abc123def456\nbuilt:  2024-01-15T10:30:00Z\n"
	if got != want {
		t.Errorf("Info = %q, want %q", got, want)
	}

	GitCommit, BuildDate = "", ""
	if got := Info(false); got != "mend 1.2.3\n" {
		t.Errorf("optional fields should be omitted, got %q", got)
	}
}

func TestColored(t *testing.T) {
	origVersion := Version
	origNoColor := color.NoColor
	t.Cleanup(func() { Version, color.NoColor = origVersion, origNoColor })
	color.NoColor = false

	Version = "0.1.0-dev"
	got := Colored()
	if !strings.Contains(got, "\x1b[") || !strings.HasSuffix(got, "-dev") {
		t.Errorf("Colored = %q", got)
	}

	for _, v := range []string{"nightly", "1.2", "1.2.3.4"} {
		Version = v
		if got := Colored(); got != v {
			t.Errorf("Colored(%q) = %q, want unchanged", v, got)
		}
	}
}
