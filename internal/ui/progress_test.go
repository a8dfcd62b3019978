package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrinterFinishShowsComplete(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, 1000)

	p.Add(400)
	p.Finish()

	out := buf.String()
	if !strings.Contains(out, "100%") {
		t.Errorf("expected final output to show 100%%, got %q", out)
	}
}

func TestPrinterNoTotalIsNoop(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, 0)

	p.Add(10)

	if buf.Len() != 0 {
		t.Errorf("expected no output when total is unknown, got %q", buf.String())
	}
}
