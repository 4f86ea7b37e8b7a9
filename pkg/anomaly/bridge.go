package anomaly

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hervehildenbrand/attack-radar/pkg/metrics"
	"github.com/hervehildenbrand/attack-radar/pkg/session"
	"go.uber.org/zap"
)

const (
	DefaultInterval = 10 * time.Second
	DefaultTimeout  = 3 * time.Second
)

// Config controls the poll cadence and payload.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
	Features []float64
}

// DefaultConfig returns the reference cadence and the fixed demo vector.
func DefaultConfig() Config {
	return Config{
		Interval: DefaultInterval,
		Timeout:  DefaultTimeout,
		Features: SuspiciousFeatures(DefaultFeatureCount, DefaultFeatureValue),
	}
}

// Bridge polls a Classifier on a fixed period. A positive verdict inserts
// a new event and selects it. Failures and negative verdicts change nothing.
type Bridge struct {
	session    *session.Session
	classifier Classifier
	cfg        Config
	logger     *zap.Logger
	metrics    *metrics.Metrics

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Stats
	polls     atomic.Uint64
	anomalies atomic.Uint64
	failures  atomic.Uint64

	// State
	running atomic.Bool
}

// NewBridge creates a stopped bridge.
func NewBridge(sess *session.Session, classifier Classifier, cfg Config, logger *zap.Logger, m *metrics.Metrics) *Bridge {
	return &Bridge{
		session:    sess,
		classifier: classifier,
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
	}
}

// Start begins polling for run. The first poll happens one interval later.
func (b *Bridge) Start(run session.Run) {
	if b.running.Swap(true) {
		b.logger.Debug("Bridge already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.wg.Add(1)
	go b.runLoop(ctx, run)
	b.logger.Info("Anomaly bridge started",
		zap.Duration("interval", b.cfg.Interval),
		zap.Duration("timeout", b.cfg.Timeout))
}

// Stop cancels the ticker and any in-flight request and waits for the loop.
func (b *Bridge) Stop() {
	if !b.running.Swap(false) {
		return
	}
	b.cancel()
	b.wg.Wait()
	b.logger.Info("Anomaly bridge stopped",
		zap.Uint64("polls", b.polls.Load()),
		zap.Uint64("anomalies", b.anomalies.Load()),
		zap.Uint64("failures", b.failures.Load()))
}

// Stats returns current statistics.
func (b *Bridge) Stats() map[string]interface{} {
	return map[string]interface{}{
		"running":   b.running.Load(),
		"polls":     b.polls.Load(),
		"anomalies": b.anomalies.Load(),
		"failures":  b.failures.Load(),
	}
}

func (b *Bridge) runLoop(ctx context.Context, run session.Run) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			// Polls never overlap; ticks missed during a slow poll are dropped
			b.poll(ctx, run)
		}
	}
}

// poll runs one classifier round trip and applies its verdict.
func (b *Bridge) poll(ctx context.Context, run session.Run) {
	n := b.polls.Add(1)

	reqCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	result, err := b.classifier.Classify(reqCtx, b.cfg.Features)
	cancel()

	if ctx.Err() != nil {
		b.logger.Debug("Discarding classifier result after stop")
		return
	}

	if err != nil {
		failures := b.failures.Add(1)
		b.metrics.PollResult(metrics.PollError)
		// Log the first few failures, then sample
		if failures <= 10 || failures%100 == 0 {
			b.logger.Warn("Anomaly detection failed",
				zap.Error(err),
				zap.Uint64("poll", n),
				zap.Uint64("failures", failures))
		}
		return
	}

	if !result.IsAnomaly() {
		b.metrics.PollResult(metrics.PollNormal)
		b.logger.Debug("No anomaly", zap.String("status", result.Status), zap.Float64("score", result.Score))
		return
	}

	event, ok := b.session.SpawnSelected(run)
	if !ok {
		b.logger.Debug("Discarding anomaly for ended run")
		return
	}
	b.anomalies.Add(1)
	b.metrics.PollResult(metrics.PollAnomaly)
	b.logger.Warn("Anomaly detected",
		zap.Float64("score", result.Score),
		zap.String("id", event.ID),
		zap.String("source", event.Source.Name),
		zap.String("target", event.Target.Name),
		zap.String("threat", string(event.ThreatLevel)))
}
