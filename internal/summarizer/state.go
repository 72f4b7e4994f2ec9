package summarizer

import (
	"fmt"
	"sync"

	"github.com/helixir/paper-digest-service/internal/domain"
)

// StateListener observes run state transitions.
type StateListener func(from, to domain.RunState)

// runState tracks one run through PENDING, CHUNK_SUMMARIZING, CONSOLIDATING
// and a terminal state. Illegal transitions are rejected.
type runState struct {
	mu       sync.Mutex
	state    domain.RunState
	listener StateListener
}

func newRunState(listener StateListener) *runState {
	return &runState{state: domain.RunStatePending, listener: listener}
}

func (s *runState) current() domain.RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *runState) transition(to domain.RunState) error {
	s.mu.Lock()
	from := s.state
	if !from.CanTransitionTo(to) {
		s.mu.Unlock()
		return fmt.Errorf("illegal run state transition %s -> %s", from, to)
	}
	s.state = to
	s.mu.Unlock()

	if s.listener != nil {
		s.listener(from, to)
	}
	return nil
}

// fail moves an active run to FAILED. It is a no-op otherwise.
func (s *runState) fail() {
	_ = s.transition(domain.RunStateFailed)
}
