package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewWithOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput(&buf, false)
	l.Debugf("hidden %d", 1)
	l.Infof("cartridge %s", "TEST")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug message logged at info level: %q", out)
	}
	if !strings.Contains(out, "msg=cartridge TEST") {
		t.Errorf("expected info message, got %q", out)
	}

	buf.Reset()
	l = NewWithOutput(&buf, true)
	l.Debugf("visible")
	if !strings.Contains(buf.String(), "level=debug msg=visible") {
		t.Errorf("expected debug message, got %q", buf.String())
	}
}
