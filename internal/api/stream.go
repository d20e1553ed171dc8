package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/lifesim/internal/notify"
)

const (
	maxStreamConns   = 16
	streamSendBuffer = 64
	writeWait        = 5 * time.Second
	pingInterval     = 30 * time.Second
)

// streamFrame is one websocket message: the notification kind plus its
// payload.
type streamFrame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub fans simulation notifications out to websocket observers.
// Broadcast never blocks the simulation; a client that cannot keep up
// is dropped.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

// NewHub subscribes to the notifier and returns a ready hub.
func NewHub(n *notify.Notifier) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[chan []byte]struct{}),
	}

	n.OnDayRollover(func(e notify.DayRollover) { h.broadcast("day_rollover", e) })
	n.OnTimeSet(func(e notify.TimeSet) { h.broadcast("time_set", e) })
	n.OnScheduleChanged(func(e notify.ScheduleChanged) { h.broadcast("schedule_changed", e) })
	n.OnConditionChanged(func(e notify.HealthConditionChanged) { h.broadcast("condition_changed", e) })
	n.OnResourceCritical(func(e notify.ResourceCritical) { h.broadcast("resource_critical", e) })
	n.OnResourceRemoved(func(e notify.ResourceRemoved) { h.broadcast("resource_removed", e) })
	n.OnLifeEvent(func(e notify.LifeEvent) { h.broadcast("life_event", e) })

	return h
}

func (h *Hub) broadcast(kind string, data any) {
	raw, err := json.Marshal(streamFrame{Type: kind, Data: data})
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- raw:
		default:
			// Slow consumer; close its channel and let the writer exit.
			delete(h.clients, ch)
			close(ch)
		}
	}
}

func (h *Hub) register(ch chan []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) >= maxStreamConns {
		return false
	}
	h.clients[ch] = struct{}{}
	return true
}

func (h *Hub) unregister(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
}

// handleStream upgrades the connection and streams frames until the
// client disconnects.
func (h *Hub) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch := make(chan []byte, streamSendBuffer)
	if !h.register(ch) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many observers"),
			time.Now().Add(time.Second))
		return
	}
	defer h.unregister(ch)
	slog.Info("stream observer connected", "remote", r.RemoteAddr)

	// Reader goroutine: we never expect client messages, but reading
	// surfaces disconnects and answers pings.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case raw, ok := <-ch:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "falling behind"),
					time.Now().Add(time.Second))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
