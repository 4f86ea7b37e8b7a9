package stream

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/hervehildenbrand/attack-radar/pkg/models"
	"go.uber.org/zap"
)

// Subscriber settings
const (
	DefaultReconnectDelay = 2 * time.Second
	maxReconnectDelay     = time.Minute
	reconnectBackoff      = 2.0
	handshakeTimeout      = 10 * time.Second
)

// Subscriber is a WebSocket client for an attack-radar stream with
// automatic reconnection. Every (re)connect begins with a snapshot frame.
type Subscriber struct {
	url            string
	frames         chan models.Frame
	logger         *zap.Logger
	reconnectDelay time.Duration
	done           chan struct{}
	wg             sync.WaitGroup

	// Stats
	framesReceived atomic.Uint64
	framesDropped  atomic.Uint64
	errors         atomic.Uint64
	reconnects     atomic.Uint64

	// State
	running   atomic.Bool
	connected atomic.Bool
}

// NewSubscriber creates a subscriber for url (ws:// or wss://).
// reconnectDelay <= 0 uses DefaultReconnectDelay.
func NewSubscriber(url string, bufferSize int, reconnectDelay time.Duration, logger *zap.Logger) *Subscriber {
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	return &Subscriber{
		url:            url,
		frames:         make(chan models.Frame, bufferSize),
		logger:         logger,
		reconnectDelay: reconnectDelay,
		done:           make(chan struct{}),
	}
}

// Frames returns the channel of received frames. It is closed by Stop.
func (s *Subscriber) Frames() <-chan models.Frame {
	return s.frames
}

// Start begins the WebSocket connection in a goroutine.
func (s *Subscriber) Start() {
	if s.running.Swap(true) {
		return
	}
	s.wg.Add(1)
	go s.runLoop()
	s.logger.Info("Subscriber started", zap.String("url", s.url))
}

// Stop closes the connection and the frames channel.
func (s *Subscriber) Stop() {
	if !s.running.Swap(false) {
		return
	}
	close(s.done)
	s.wg.Wait()
	close(s.frames)
	s.logger.Info("Subscriber stopped")
}

// Stats returns current statistics.
func (s *Subscriber) Stats() map[string]interface{} {
	return map[string]interface{}{
		"connected":       s.connected.Load(),
		"frames_received": s.framesReceived.Load(),
		"frames_dropped":  s.framesDropped.Load(),
		"errors":          s.errors.Load(),
		"reconnects":      s.reconnects.Load(),
	}
}

func (s *Subscriber) runLoop() {
	defer s.wg.Done()

	delay := s.reconnectDelay
	for s.running.Load() {
		connected, err := s.connectAndStream()
		if connected {
			// The stream worked; start the backoff over
			delay = s.reconnectDelay
		}
		if err != nil {
			s.errors.Add(1)
			s.logger.Warn("Stream connection error",
				zap.Error(err),
				zap.Duration("retry_in", delay))
		}

		select {
		case <-s.done:
			return
		case <-time.After(delay):
			s.reconnects.Add(1)
			delay = nextDelay(delay)
		}
	}
}

// nextDelay applies exponential backoff up to maxReconnectDelay.
func nextDelay(d time.Duration) time.Duration {
	d = time.Duration(float64(d) * reconnectBackoff)
	if d > maxReconnectDelay {
		d = maxReconnectDelay
	}
	return d
}

// connectAndStream reports whether the dial succeeded.
func (s *Subscriber) connectAndStream() (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.Dial(s.url, nil)
	if err != nil {
		return false, fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	s.connected.Store(true)
	defer s.connected.Store(false)

	// Close the connection to unblock ReadMessage on Stop
	streamDone := make(chan struct{})
	defer close(streamDone)
	go func() {
		select {
		case <-s.done:
			conn.Close()
		case <-streamDone:
		}
	}()

	for s.running.Load() {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || !s.running.Load() {
				return true, nil
			}
			return true, fmt.Errorf("read failed: %w", err)
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var frame models.Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			if s.errors.Add(1) <= 10 {
				s.logger.Warn("Invalid frame", zap.Error(err))
			}
			continue
		}
		received := s.framesReceived.Add(1)
		if received <= 3 {
			s.logger.Debug("Frame received", zap.String("type", frame.Type), zap.Int("count", frame.Count))
		}

		select {
		case s.frames <- frame:
		default:
			if s.framesDropped.Add(1)%1000 == 1 {
				s.logger.Warn("Frame channel full, dropping frames")
			}
		}
	}
	return true, nil
}
