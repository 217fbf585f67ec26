package board

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"research-tracker/internal/model"
)

const (
	DefaultRefresh = 700 * time.Millisecond
	barWidth       = 24
	nameWidth      = 32
	ruleWidth      = 100
)

// Source is anything that can produce a job snapshot.
type Source interface {
	Snapshot() model.Snapshot
}

type Options struct {
	Source       Source
	Out          io.Writer
	Refresh      time.Duration
	TickInterval time.Duration
	MaxStep      int
	// Plain disables the clear-screen prefix, for non-terminal output.
	Plain bool
}

// Live redraws the job history on a fixed refresh interval until stopped.
type Live struct {
	opts Options

	mu      sync.Mutex
	stop    chan struct{}
	stopped bool
}

func NewLive(opts Options) *Live {
	if opts.Refresh <= 0 {
		opts.Refresh = DefaultRefresh
	}
	return &Live{
		opts: opts,
		stop: make(chan struct{}),
	}
}

func (l *Live) Start() {
	go func() {
		t := time.NewTicker(l.opts.Refresh)
		defer t.Stop()
		for {
			select {
			case <-l.stop:
				return
			case <-t.C:
				l.render()
			}
		}
	}()
}

// Stop halts the refresh loop and draws one final frame.
func (l *Live) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	close(l.stop)
	l.mu.Unlock()
	l.render()
}

func (l *Live) render() {
	l.mu.Lock()
	defer l.mu.Unlock()

	var b strings.Builder
	if !l.opts.Plain {
		b.WriteString("\033[H\033[2J")
	}
	b.WriteString(Render(l.opts.Source.Snapshot(), l.opts.TickInterval, l.opts.MaxStep))
	fmt.Fprint(l.opts.Out, b.String())
}

// Render lays out a snapshot as a text board, newest job first.
func Render(snap model.Snapshot, interval time.Duration, maxStep int) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("research-tracker live | jobs %d | running %d | done %d\n",
		snap.Total, snap.InProgress, snap.Completed))
	b.WriteString(strings.Repeat("-", ruleWidth) + "\n")

	if len(snap.Jobs) == 0 {
		b.WriteString("(no research yet)\n")
		return b.String()
	}
	for _, job := range snap.Jobs {
		b.WriteString(fmt.Sprintf("%-7s %-*s %s %s\n",
			StatusLabel(job.Status),
			nameWidth, Truncate(job.Name, nameWidth),
			Bar(job.Progress, barWidth),
			Detail(job, interval, maxStep)))
	}
	return b.String()
}

// Truncate shortens s to at most max runes, marking the cut with an ellipsis.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max == 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}
