package logger

import (
	"bytes"
	"strings"
	"testing"
)

func newBuffered(level LogLevel) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Config{Level: level, Output: &buf}), &buf
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newBuffered(WARN)

	l.Infof("hidden")
	l.Warnf("shown %d", 1)
	l.Errorf("also shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("INFO message logged below WARN level")
	}
	if !strings.Contains(out, "[WARN] shown 1") || !strings.Contains(out, "[ERROR] also shown") {
		t.Errorf("output = %q", out)
	}
}

func TestWithComponent(t *testing.T) {
	l, buf := newBuffered(DEBUG)

	l.With("pipeline").With("align").Debugf("lag %d", 3)

	if !strings.Contains(buf.String(), "(pipeline/align) lag 3") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestChildLevelIndependent(t *testing.T) {
	l, buf := newBuffered(INFO)
	child := l.With("x")
	child.SetLevel(ERROR)

	l.Infof("parent")
	child.Infof("child")

	if !strings.Contains(buf.String(), "parent") || strings.Contains(buf.String(), "child") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestFatalExits(t *testing.T) {
	l, buf := newBuffered(INFO)
	code := -1
	l.exit = func(c int) { code = c }

	l.Fatalf("bye")

	if code != 1 || !strings.Contains(buf.String(), "[FATAL] bye") {
		t.Errorf("code = %d, output = %q", code, buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{"debug": DEBUG, " Info ": INFO, "warning": WARN, "ERROR": ERROR}
	for in, want := range tests {
		got, ok := ParseLevel(in)
		if !ok || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", in, got, ok)
		}
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Error("expected unknown level to fail")
	}
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	l.Errorf("nothing")
	if l.Level() <= FATAL {
		t.Errorf("Nop level = %v", l.Level())
	}
}
