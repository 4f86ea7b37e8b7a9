package stream

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hervehildenbrand/attack-radar/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func nextFrame(t *testing.T, s *Subscriber) models.Frame {
	t.Helper()
	select {
	case f, ok := <-s.Frames():
		require.True(t, ok, "frames channel closed")
		return f
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
	return models.Frame{}
}

func TestSubscriber_ReceivesSnapshotAndChanges(t *testing.T) {
	hub, srv := newTestHub(t)

	sub := NewSubscriber("ws"+strings.TrimPrefix(srv.URL, "http"), 16, 50*time.Millisecond, zaptest.NewLogger(t))
	sub.Start()
	defer sub.Stop()

	f := nextFrame(t, sub)
	assert.Equal(t, models.FrameSnapshot, f.Type)
	assert.Equal(t, 2, f.Count)

	require.Eventually(t, func() bool { return hub.Stats()["clients"] == int64(1) }, 2*time.Second, 10*time.Millisecond)
	hub.Notify(models.Notification{
		Kind:   models.NotifySelected,
		Origin: models.OriginAnomaly,
		RunID:  "run-1",
		Event:  models.AttackEvent{ID: "ATK-10003", ThreatLevel: models.ThreatMedium},
		Seq:    5,
		Count:  3,
	})

	f = nextFrame(t, sub)
	assert.Equal(t, "selected", f.Type)
	assert.Equal(t, models.OriginAnomaly, f.Origin)
	require.NotNil(t, f.Event)
	assert.Equal(t, "ATK-10003", f.Event.ID)
	assert.Equal(t, "#ff4444", f.Event.Color)
	assert.Equal(t, true, sub.Stats()["connected"])
}

func TestSubscriber_Reconnects(t *testing.T) {
	// Each connection gets one snapshot numbered by connection, then is closed.
	var conns atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := conns.Add(1)
		conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf(`{"type":"snapshot","count":%d}`, n)))
	}))
	defer srv.Close()

	sub := NewSubscriber("ws"+strings.TrimPrefix(srv.URL, "http"), 16, 20*time.Millisecond, zaptest.NewLogger(t))
	sub.Start()
	defer sub.Stop()

	first := nextFrame(t, sub)
	assert.Equal(t, models.FrameSnapshot, first.Type)
	assert.Equal(t, 1, first.Count)

	second := nextFrame(t, sub)
	assert.Equal(t, models.FrameSnapshot, second.Type)
	assert.Equal(t, 2, second.Count)
	assert.GreaterOrEqual(t, sub.Stats()["reconnects"].(uint64), uint64(1))
}

func TestSubscriber_StopWhileDisconnected(t *testing.T) {
	sub := NewSubscriber("ws://127.0.0.1:1/ws", 4, time.Hour, zaptest.NewLogger(t))
	sub.Start()
	sub.Start()

	require.Eventually(t, func() bool { return sub.Stats()["errors"].(uint64) >= 1 }, 3*time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		sub.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked")
	}

	_, ok := <-sub.Frames()
	assert.False(t, ok)
	sub.Stop()
}

func TestNextDelay(t *testing.T) {
	assert.Equal(t, 4*time.Second, nextDelay(2*time.Second))
	assert.Equal(t, maxReconnectDelay, nextDelay(45*time.Second))
	assert.Equal(t, maxReconnectDelay, nextDelay(maxReconnectDelay))
}

// After failed dials grow the backoff, a connection that works resets it.
func TestSubscriber_BackoffResetsAfterConnect(t *testing.T) {
	const failedDials = 5
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		if n <= failedDials {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf(`{"type":"snapshot","count":%d}`, n)))
	}))
	defer srv.Close()

	// Backoff before the first success: 20+40+80+160+320 ms. Without a
	// reset the next wait would be 640 ms.
	sub := NewSubscriber("ws"+strings.TrimPrefix(srv.URL, "http"), 16, 20*time.Millisecond, zaptest.NewLogger(t))
	sub.Start()
	defer sub.Stop()

	first := nextFrame(t, sub)
	assert.Equal(t, failedDials+1, first.Count)
	connectedAt := time.Now()

	second := nextFrame(t, sub)
	assert.Equal(t, failedDials+2, second.Count)
	assert.Less(t, time.Since(connectedAt), 400*time.Millisecond)
	assert.GreaterOrEqual(t, sub.Stats()["errors"].(uint64), uint64(failedDials))
}
