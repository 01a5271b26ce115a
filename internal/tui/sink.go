package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/autotype/internal/session"
)

// ProgramSink forwards session events to a Bubble Tea program. Events
// reported before Attach are dropped.
type ProgramSink struct {
	mu sync.Mutex
	p  *tea.Program
}

// Attach sets the receiving program.
func (s *ProgramSink) Attach(p *tea.Program) {
	s.mu.Lock()
	s.p = p
	s.mu.Unlock()
}

// Report implements session.StatusSink.
func (s *ProgramSink) Report(ev session.Event) {
	s.mu.Lock()
	p := s.p
	s.mu.Unlock()
	if p != nil {
		p.Send(eventMsg{ev: ev})
	}
}
