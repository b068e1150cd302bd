package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/yalochat/capforge/internal/engine"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// busEntry tracks a subscribed event bus and its forwarder's cancel func.
type busEntry struct {
	bus    *engine.EventBus
	ch     chan engine.Event
	cancel context.CancelFunc
}

// WSHub broadcasts pipeline events from every session's event bus to all
// connected WebSocket clients. Events carry their session_id so clients can
// filter.
type WSHub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]bool
	eventCh chan engine.Event
	buses   map[string]*busEntry // sessionID -> entry
}

// NewWSHub creates an empty hub; buses attach as sessions appear.
func NewWSHub() *WSHub {
	return &WSHub{
		clients: make(map[*websocket.Conn]bool),
		eventCh: make(chan engine.Event, 256),
		buses:   make(map[string]*busEntry),
	}
}

// AddEventBus subscribes the hub to a session's event bus.
func (h *WSHub) AddEventBus(sessionID string, bus *engine.EventBus) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.buses[sessionID]; ok {
		existing.cancel()
		existing.bus.Unsubscribe(existing.ch)
		delete(h.buses, sessionID)
	}

	ch := bus.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	h.buses[sessionID] = &busEntry{bus: bus, ch: ch, cancel: cancel}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				h.eventCh <- evt
			}
		}
	}()
}

// RemoveEventBus detaches the hub from a session's event bus.
func (h *WSHub) RemoveEventBus(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if entry, ok := h.buses[sessionID]; ok {
		entry.cancel()
		entry.bus.Unsubscribe(entry.ch)
		delete(h.buses, sessionID)
	}
}

// Run starts the hub's broadcast loop.
func (h *WSHub) Run() {
	for evt := range h.eventCh {
		data, err := json.Marshal(evt)
		if err != nil {
			continue
		}

		h.mu.Lock()
		for conn := range h.clients {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				conn.Close()
				delete(h.clients, conn)
			}
		}
		h.mu.Unlock()
	}
}

// HandleWebSocket upgrades HTTP connections to WebSocket.
func (h *WSHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
