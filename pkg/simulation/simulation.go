// Package simulation gates the producers behind an activation signal and
// manages run lifecycle.
package simulation

import (
	"sync"

	"github.com/hervehildenbrand/attack-radar/pkg/session"
	"go.uber.org/zap"
)

// Producer writes into a session for the duration of one run.
type Producer interface {
	Start(run session.Run)
	Stop()
}

// Simulation owns the session lifecycle. Nothing runs until Activate.
type Simulation struct {
	session   *session.Session
	producers []Producer
	logger    *zap.Logger

	mu     sync.Mutex
	run    session.Run
	active bool
}

// New creates an inactive simulation. Nil producers are ignored.
func New(sess *session.Session, logger *zap.Logger, producers ...Producer) *Simulation {
	s := &Simulation{session: sess, logger: logger}
	for _, p := range producers {
		if p != nil {
			s.producers = append(s.producers, p)
		}
	}
	return s
}

// Activate is the ready signal. The first call begins a run and starts
// every producer; calls while a run is active do nothing. It reports
// whether a run was started.
func (s *Simulation) Activate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return false
	}
	s.startLocked()
	return true
}

// Stop ends the current run and stops every producer.
func (s *Simulation) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Restart stops the current run, if any, and begins a fresh one.
func (s *Simulation) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.startLocked()
}

// Active reports whether a run is in progress.
func (s *Simulation) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Session returns the session the producers write into.
func (s *Simulation) Session() *session.Session {
	return s.session
}

func (s *Simulation) startLocked() {
	s.run = s.session.Begin()
	s.active = true
	for _, p := range s.producers {
		p.Start(s.run)
	}
	s.logger.Info("Simulation activated",
		zap.String("run_id", s.run.ID.String()),
		zap.Int("producers", len(s.producers)))
}

func (s *Simulation) stopLocked() {
	if !s.active {
		return
	}
	// End the run first so nothing still in flight can mutate state
	s.session.End(s.run)
	for _, p := range s.producers {
		p.Stop()
	}
	s.active = false
	s.logger.Info("Simulation stopped", zap.String("run_id", s.run.ID.String()))
}
