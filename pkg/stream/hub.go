// Package stream pushes the live buffer and its changes to WebSocket clients.
package stream

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hervehildenbrand/attack-radar/pkg/models"
	"github.com/hervehildenbrand/attack-radar/pkg/session"
	"go.uber.org/zap"
)

const (
	sendBufferSize = 64
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StateSource provides the snapshot a client receives on connect.
type StateSource interface {
	State() session.State
}

// Client is one connected consumer.
type Client struct {
	ID   string
	Send chan []byte

	// since is the sequence its snapshot already covers
	since uint64
}

type message struct {
	seq  uint64
	data []byte
}

// Hub maintains the set of active clients and broadcasts frames to them.
type Hub struct {
	source StateSource
	logger *zap.Logger

	clients    map[*Client]bool
	broadcast  chan message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	connected atomic.Int64
	sent      atomic.Uint64
	dropped   atomic.Uint64
}

// NewHub creates a hub. Call Run to start it.
func NewHub(source StateSource, logger *zap.Logger) *Hub {
	return &Hub{
		source:     source,
		logger:     logger,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			// The snapshot goes out before any later broadcast. Queued
			// changes it already includes are skipped for this client.
			snapshot, seq, err := h.snapshot()
			if err != nil {
				h.logger.Error("Failed to encode snapshot", zap.Error(err))
				close(client.Send)
				continue
			}
			client.since = seq
			client.Send <- snapshot
			h.clients[client] = true
			h.connected.Store(int64(len(h.clients)))
			h.logger.Debug("Client registered", zap.String("client", client.ID))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.connected.Store(int64(len(h.clients)))
				h.logger.Debug("Client unregistered", zap.String("client", client.ID))
			}

		case msg := <-h.broadcast:
			for client := range h.clients {
				if msg.seq <= client.since {
					continue
				}
				select {
				case client.Send <- msg.data:
					h.sent.Add(1)
				default:
					h.logger.Info("Client send buffer full, dropping client", zap.String("client", client.ID))
					delete(h.clients, client)
					close(client.Send)
					h.dropped.Add(1)
				}
			}
			h.connected.Store(int64(len(h.clients)))

		case <-h.done:
			for client := range h.clients {
				delete(h.clients, client)
				close(client.Send)
			}
			h.connected.Store(0)
			return
		}
	}
}

// Stop disconnects every client and ends Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Notify broadcasts a session notification. It never blocks.
func (h *Hub) Notify(n models.Notification) {
	data, err := json.Marshal(models.NotificationFrame(n))
	if err != nil {
		h.logger.Error("Failed to encode frame", zap.String("kind", string(n.Kind)), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- message{seq: n.Seq, data: data}:
	default:
		h.logger.Warn("Broadcast queue full, dropping frame", zap.String("kind", string(n.Kind)))
	}
}

// Stats returns hub statistics.
func (h *Hub) Stats() map[string]interface{} {
	return map[string]interface{}{
		"clients":         h.connected.Load(),
		"frames_sent":     h.sent.Load(),
		"clients_dropped": h.dropped.Load(),
	}
}

// ServeHTTP upgrades the request to a WebSocket and streams frames to it.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{ID: uuid.NewString(), Send: make(chan []byte, sendBufferSize)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(conn, client)
	h.readPump(conn, client)
}

func (h *Hub) snapshot() ([]byte, uint64, error) {
	st := h.source.State()
	data, err := json.Marshal(models.SnapshotFrame(st.Seq, st.RunID, st.Events, st.Selected))
	return data, st.Seq, err
}

// readPump discards client input and unregisters on disconnect.
func (h *Hub) readPump(conn *websocket.Conn, client *Client) {
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
		conn.Close()
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
