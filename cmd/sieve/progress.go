package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// progressLine redraws a single status line on a terminal and stays silent
// otherwise, so redirected output and log files are not flooded.
type progressLine struct {
	w        io.Writer
	enabled  bool
	interval time.Duration
	last     time.Time
	drawn    bool
}

func newProgressLine(w io.Writer) *progressLine {
	return &progressLine{w: w, enabled: isTerminal(w), interval: 200 * time.Millisecond}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (p *progressLine) update(format string, args ...any) {
	if !p.enabled {
		return
	}
	now := time.Now()
	if p.drawn && now.Sub(p.last) < p.interval {
		return
	}
	p.last = now
	p.drawn = true
	fmt.Fprintf(p.w, "\r\033[K"+format, args...)
}

func (p *progressLine) done() {
	if p.enabled && p.drawn {
		fmt.Fprint(p.w, "\r\033[K")
	}
}
