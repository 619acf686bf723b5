package main

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// barProgress draws a progress line. On a terminal it redraws in place;
// otherwise it prints a single line once the operation finishes.
type barProgress struct {
	out   io.Writer
	tty   bool
	label string

	total     atomic.Int64
	completed atomic.Int64
	mu        sync.Mutex
}

func newBarProgress(out io.Writer, tty bool, label string) *barProgress {
	return &barProgress{out: out, tty: tty, label: label}
}

func (p *barProgress) Start(total int) {
	p.total.Store(int64(total))
	p.draw()
}

func (p *barProgress) Increment() {
	p.completed.Add(1)
	p.draw()
}

func (p *barProgress) Done(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	status := "done"
	if err != nil {
		status = "failed"
	}
	if p.tty {
		fmt.Fprintf(p.out, "\r%s %s\n", p.line(), status)
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", p.line(), status)
}

// Total returns the value passed to Start.
func (p *barProgress) Total() int {
	return int(p.total.Load())
}

func (p *barProgress) draw() {
	if !p.tty {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "\r%s", p.line())
}

const barWidth = 30

func (p *barProgress) line() string {
	total, done := p.total.Load(), p.completed.Load()
	filled := barWidth
	if total > 0 {
		filled = int(done * barWidth / total)
	}
	bar := make([]byte, barWidth)
	for i := range bar {
		if i < filled {
			bar[i] = '#'
		} else {
			bar[i] = '.'
		}
	}
	return fmt.Sprintf("%s [%s] %d/%d", p.label, bar, done, total)
}
