package pipeline

import "sync"

// Phase identifies where a run is in its lifecycle.
type Phase string

const (
	PhaseNotStarted  Phase = "not_started"
	PhaseEnumerating Phase = "enumerating"
	PhaseFetching    Phase = "fetching"
	PhaseAggregating Phase = "aggregating"
	PhaseDone        Phase = "done"
	// PhaseAborted is terminal and reachable only on a fatal,
	// non-entry-scoped error such as an unwritable checkpoint store.
	PhaseAborted Phase = "aborted"
)

type runState struct {
	mu    sync.Mutex
	phase Phase
}

func newRunState() *runState {
	return &runState{phase: PhaseNotStarted}
}

func (s *runState) set(phase Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phase
}

func (s *runState) current() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}
