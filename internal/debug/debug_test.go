package debug

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func withOutput(t *testing.T, lvl int) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	Init(lvl)
	SetOutput(&buf)
	t.Cleanup(func() { Init(LevelOff) })
	return &buf
}

func TestLevelGating(t *testing.T) {
	buf := withOutput(t, LevelInfo)

	Info("visible %d", 1)
	Live("hidden live")
	Verbose("hidden verbose")
	Trace("hidden trace")

	got := buf.String()
	if !strings.Contains(got, "visible 1") {
		t.Errorf("expected info message, got %q", got)
	}
	for _, hidden := range []string{"hidden live", "hidden verbose", "hidden trace"} {
		if strings.Contains(got, hidden) {
			t.Errorf("message %q should be filtered at level %d", hidden, LevelInfo)
		}
	}
}

func TestOffProducesNothing(t *testing.T) {
	buf := withOutput(t, LevelOff)

	Info("nope")
	Warn(errors.New("nope"))
	Summary("nope")

	if buf.Len() != 0 {
		t.Errorf("expected no output at level off, got %q", buf.String())
	}
}

func TestWindowFields(t *testing.T) {
	buf := withOutput(t, LevelLive)

	Window("ticks_left", 5, "ticks_right", 2)

	got := buf.String()
	if !strings.Contains(got, "window") || !strings.Contains(got, "ticks_left") {
		t.Errorf("expected structured window line, got %q", got)
	}
}

func TestTraceGPIO(t *testing.T) {
	buf := withOutput(t, LevelTrace)

	GPIO("WritePulse", 12, 1500)

	got := buf.String()
	if !strings.Contains(got, "WritePulse") || !strings.Contains(got, "1500") {
		t.Errorf("expected GPIO trace, got %q", got)
	}
}

func TestLoggerNopWhenDisabled(t *testing.T) {
	withOutput(t, LevelInfo)

	if Logger(LevelTrace) == nil {
		t.Fatal("Logger should never return nil")
	}
	if !IsEnabled(LevelInfo) || IsEnabled(LevelLive) {
		t.Errorf("IsEnabled mismatch at level %d", Level())
	}
}

func TestFmt(t *testing.T) {
	withOutput(t, LevelOff)
	if got := Fmt("x=%d", 1); got != "" {
		t.Errorf("Fmt at level off = %q, want empty", got)
	}
	Init(LevelInfo)
	if got := Fmt("x=%d", 1); got != "x=1" {
		t.Errorf("Fmt = %q, want x=1", got)
	}
}
