package cli

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const teaSchedulerBuffer = 64

// researchTickMsg carries a due timer func into the bubbletea update loop.
type researchTickMsg struct {
	run func()
}

// teaScheduler hands due timer funcs to the bubbletea program, so ticks run on
// the same goroutine as key handling.
type teaScheduler struct {
	due  chan func()
	stop chan struct{}
	once sync.Once
}

func newTeaScheduler() *teaScheduler {
	return &teaScheduler{
		due:  make(chan func(), teaSchedulerBuffer),
		stop: make(chan struct{}),
	}
}

func (s *teaScheduler) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, func() {
		select {
		case s.due <- fn:
		case <-s.stop:
		}
	})
}

// waitCmd blocks until the next timer is due. Keep exactly one outstanding.
func (s *teaScheduler) waitCmd() tea.Cmd {
	return func() tea.Msg {
		select {
		case fn := <-s.due:
			return researchTickMsg{run: fn}
		case <-s.stop:
			return nil
		}
	}
}

func (s *teaScheduler) Close() {
	s.once.Do(func() { close(s.stop) })
}
