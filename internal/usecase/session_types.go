package usecase

import (
	"sync"
	"time"

	"buddy/internal/domain"
	"buddy/internal/ports"
)

// listenSession is one push-to-talk capture from Start to Stop or Abort.
type listenSession struct {
	cancel    func()
	audio     ports.AudioSession
	stream    ports.StreamingSession
	startedAt time.Time

	stateMu sync.Mutex
	state   domain.SessionState

	transcript *transcriptAggregator
	eventsDone chan struct{}
	pump       *audioPump
}

func (s *listenSession) setState(state domain.SessionState) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.state = state
}

func (s *listenSession) getState() domain.SessionState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}
