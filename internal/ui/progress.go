package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/resiliome/upload/internal/protocol"
)

// Pre-computed progress bars to eliminate string allocations on every update.
var progressBars [protocol.ProgressBarWidth + 1]string

func init() {
	for i := 0; i <= protocol.ProgressBarWidth; i++ {
		progressBars[i] = strings.Repeat(protocol.ProgressBarFilled, i) + strings.Repeat(protocol.ProgressBarEmpty, protocol.ProgressBarWidth-i)
	}
}

// Printer renders upload progress to a writer as chunks complete
// concurrently. Unlike a single io.Reader wrapper, bytes can arrive out of
// order from multiple workers, so Printer tracks only the running total.
type Printer struct {
	mu        sync.Mutex
	out       io.Writer
	total     int64
	done      int64
	startTime time.Time
	lastWrite time.Time
}

// NewPrinter creates a Printer for an upload of the given total size.
func NewPrinter(out io.Writer, total int64) *Printer {
	return &Printer{out: out, total: total, startTime: time.Now()}
}

// Add records newly completed bytes (typically one chunk's size) and
// redraws the progress line, throttled to ProgressUpdateInterval.
func (p *Printer) Add(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done += n
	now := time.Now()
	if now.Sub(p.lastWrite) < protocol.ProgressUpdateInterval && p.done < p.total {
		return
	}
	p.lastWrite = now
	p.render(now)
}

// Finish draws a final 100% line and a trailing newline.
func (p *Printer) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = p.total
	p.render(time.Now())
	_, _ = fmt.Fprintln(p.out)
}

func (p *Printer) render(now time.Time) {
	if p.out == nil || p.total <= 0 {
		return
	}

	elapsed := now.Sub(p.startTime)
	pct := float64(p.done) / float64(p.total) * 100.0

	var etaStr string
	if p.done > 0 && elapsed.Seconds() > 0.5 {
		rate := float64(p.done) / elapsed.Seconds()
		if rate > 0 {
			eta := time.Duration(float64(p.total-p.done) / rate * float64(time.Second))
			etaStr = FormatDuration(eta)
		}
	}

	speedStr := ""
	if elapsed.Seconds() > 0 {
		speedStr = FormatSpeed(float64(p.done) / elapsed.Seconds())
	}

	barStr := bar(pct)
	elapsedStr := FormatDuration(elapsed)

	switch {
	case etaStr != "" && speedStr != "":
		_, _ = fmt.Fprintf(p.out, "\r[%s%-*s%s] %s%3.0f%%%s | %s/%s | %s | Time: %s | ETA: %s",
			Colors.Green, protocol.ProgressBarWidth, barStr, Colors.Reset, Colors.Green, pct, Colors.Reset,
			FormatBytes(p.done), FormatBytes(p.total), speedStr, elapsedStr, etaStr)
	case speedStr != "":
		_, _ = fmt.Fprintf(p.out, "\r[%s%-*s%s] %s%3.0f%%%s | %s/%s | %s | Time: %s",
			Colors.Green, protocol.ProgressBarWidth, barStr, Colors.Reset, Colors.Green, pct, Colors.Reset,
			FormatBytes(p.done), FormatBytes(p.total), speedStr, elapsedStr)
	default:
		_, _ = fmt.Fprintf(p.out, "\r[%s%-*s%s] %s%3.0f%%%s | %s/%s",
			Colors.Green, protocol.ProgressBarWidth, barStr, Colors.Reset, Colors.Green, pct, Colors.Reset,
			FormatBytes(p.done), FormatBytes(p.total))
	}
}

func bar(pct float64) string {
	filled := int(pct / 5)
	if filled < 0 {
		filled = 0
	}
	if filled > protocol.ProgressBarWidth {
		filled = protocol.ProgressBarWidth
	}
	return progressBars[filled]
}
