package hub

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	sendBuffer = 64
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Outcome is broadcast to subscribers after every webhook delivery.
type Outcome struct {
	RequestID  string    `json:"request_id"`
	Recognized bool      `json:"recognized"`
	Saved      bool      `json:"saved"`
	Reason     string    `json:"reason"`
	MessageID  string    `json:"message_id,omitempty"`
	EventType  string    `json:"event_type,omitempty"`
	At         time.Time `json:"at"`
}

type subscriber struct {
	id   string
	send chan Outcome
}

// Hub fans ingestion outcomes out to websocket subscribers. A subscriber
// whose buffer is full is dropped so Publish never blocks.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]*subscriber
	log  zerolog.Logger
}

func New(log zerolog.Logger) *Hub {
	return &Hub{subs: make(map[string]*subscriber), log: log}
}

func (h *Hub) Publish(o Outcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		select {
		case sub.send <- o:
		default:
			h.log.Warn().Str("subscriber", id).Msg("slow event subscriber dropped")
			close(sub.send)
			delete(h.subs, id)
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) subscribe() *subscriber {
	sub := &subscriber{id: uuid.NewString(), send: make(chan Outcome, sendBuffer)}
	h.mu.Lock()
	h.subs[sub.id] = sub
	h.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.id]; ok {
		close(sub.send)
		delete(h.subs, sub.id)
	}
}

// ServeWS upgrades the request and streams outcomes until the client goes
// away or is dropped.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	sub := h.subscribe()
	h.log.Debug().Str("subscriber", sub.id).Msg("event subscriber connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.unsubscribe(sub)
		ws.Close()
		h.log.Debug().Str("subscriber", sub.id).Msg("event subscriber disconnected")
	}()

	for {
		select {
		case o, ok := <-sub.send:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteJSON(o); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
