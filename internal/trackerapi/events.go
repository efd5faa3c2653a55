package trackerapi

import (
	"net/http"
	"sync"

	"github.com/attract-vse/attract/internal/attractapi"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type eventHub struct {
	mu          sync.Mutex
	closed      bool
	subscribers map[chan attractapi.NodeEvent]struct{}
}

func newEventHub() *eventHub {
	return &eventHub{subscribers: map[chan attractapi.NodeEvent]struct{}{}}
}

func (h *eventHub) subscribe() (<-chan attractapi.NodeEvent, func()) {
	ch := make(chan attractapi.NodeEvent, 32)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subscribers[ch] = struct{}{}
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
	}
}

// publish drops the event for subscribers whose buffer is full.
func (h *eventHub) publish(event attractapi.NodeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *eventHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *eventHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subscribers {
		delete(h.subscribers, ch)
		close(ch)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logf("events: accept failed: %v", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	events, unsubscribe := s.hub.subscribe()
	defer unsubscribe()
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "server shutting down")
				return
			}
			if err := wsjson.Write(ctx, conn, event); err != nil {
				return
			}
		}
	}
}
