// Package scheduler drives event arrival on a jittered cadence.
package scheduler

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hervehildenbrand/attack-radar/pkg/geo"
	"github.com/hervehildenbrand/attack-radar/pkg/session"
	"go.uber.org/zap"
)

const (
	DefaultMinInterval = 1200 * time.Millisecond
	DefaultMaxInterval = 2800 * time.Millisecond
	DefaultSeedCount   = 8
)

// Config controls seeding and inter-arrival delays.
type Config struct {
	MinInterval time.Duration
	MaxInterval time.Duration
	SeedCount   int
}

// DefaultConfig returns the reference cadence.
func DefaultConfig() Config {
	return Config{
		MinInterval: DefaultMinInterval,
		MaxInterval: DefaultMaxInterval,
		SeedCount:   DefaultSeedCount,
	}
}

// Spawner seeds a run and then spawns one event per jittered delay.
type Spawner struct {
	session *session.Session
	cfg     Config
	logger  *zap.Logger

	rngMu sync.Mutex
	rng   geo.Rand

	done chan struct{}
	wg   sync.WaitGroup

	// Stats
	spawned atomic.Uint64

	// State
	running atomic.Bool
}

// Option configures a Spawner.
type Option func(*Spawner)

// WithRand sets the source for delay jitter.
func WithRand(rng geo.Rand) Option {
	return func(s *Spawner) { s.rng = rng }
}

// NewSpawner creates a stopped spawner writing into sess.
func NewSpawner(sess *session.Session, cfg Config, logger *zap.Logger, opts ...Option) *Spawner {
	s := &Spawner{
		session: sess,
		cfg:     cfg,
		logger:  logger,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start seeds run synchronously and begins the cadence in a goroutine.
// The first spawn waits a jittered delay like every later one.
func (s *Spawner) Start(run session.Run) {
	if s.running.Swap(true) {
		s.logger.Debug("Spawner already running")
		return
	}

	if s.cfg.SeedCount > 0 {
		if batch, ok := s.session.Seed(run, s.cfg.SeedCount); ok {
			s.logger.Info("Seeded buffer", zap.Int("events", len(batch)))
		}
	}

	s.done = make(chan struct{})
	s.wg.Add(1)
	go s.runLoop(run, s.done)
	s.logger.Info("Spawner started",
		zap.Duration("min_interval", s.cfg.MinInterval),
		zap.Duration("max_interval", s.cfg.MaxInterval))
}

// Stop cancels the pending spawn and waits for the loop to exit.
// No spawn happens after Stop returns.
func (s *Spawner) Stop() {
	if !s.running.Swap(false) {
		return
	}
	close(s.done)
	s.wg.Wait()
	s.logger.Info("Spawner stopped", zap.Uint64("spawned", s.spawned.Load()))
}

// Spawned returns the number of events spawned by the cadence (seed excluded).
func (s *Spawner) Spawned() uint64 {
	return s.spawned.Load()
}

// NextDelay draws a delay uniformly from [MinInterval, MaxInterval].
func (s *Spawner) NextDelay() time.Duration {
	span := s.cfg.MaxInterval - s.cfg.MinInterval
	if span <= 0 {
		return s.cfg.MinInterval
	}
	s.rngMu.Lock()
	f := s.rng.Float64()
	s.rngMu.Unlock()
	return s.cfg.MinInterval + time.Duration(f*float64(span))
}

func (s *Spawner) runLoop(run session.Run, done <-chan struct{}) {
	defer s.wg.Done()

	timer := time.NewTimer(s.NextDelay())
	defer timer.Stop()

	for {
		select {
		case <-done:
			return
		case <-timer.C:
		}

		// Stop may have been called while the timer fired
		select {
		case <-done:
			return
		default:
		}

		event, ok := s.session.Spawn(run)
		if !ok {
			s.logger.Debug("Run no longer current, spawner idle")
			return
		}
		s.spawned.Add(1)
		s.logger.Debug("Spawned event",
			zap.String("id", event.ID),
			zap.String("source", event.Source.Name),
			zap.String("target", event.Target.Name),
			zap.String("threat", string(event.ThreatLevel)))

		timer.Reset(s.NextDelay())
	}
}
