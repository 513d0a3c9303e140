package observ

import (
	"strings"
	"testing"
	"time"
)

func fakeClock(step time.Duration) func() time.Time {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	tm.now = fakeClock(10 * time.Millisecond)

	done := tm.Track("build")
	done("exit 1")
	idx := tm.Begin("patch")
	tm.End(idx, "")
	tm.End(42, "ignored")

	report := tm.Report()
	if len(report.Phases) != 2 {
		t.Fatalf("phases = %d", len(report.Phases))
	}
	if report.Phases[0].DurationMS != 10 || report.Phases[0].Note != "exit 1" {
		t.Errorf("unexpected phase %+v", report.Phases[0])
	}
	if report.TotalMS != 20 {
		t.Errorf("total = %v", report.TotalMS)
	}

	summary := tm.Summary()
	if !strings.Contains(summary, "build") || !strings.Contains(summary, "// exit 1") || !strings.Contains(summary, "total") {
		t.Errorf("summary:\n%s", summary)
	}
	if got := len(tm.Fields()); got != 3 {
		t.Errorf("fields = %d", got)
	}
}

func TestNilTimer(t *testing.T) {
	var tm *Timer
	tm.Track("x")("")
	if len(tm.Report().Phases) != 0 {
		t.Error("nil timer should report nothing")
	}
}
