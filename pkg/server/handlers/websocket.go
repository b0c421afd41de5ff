package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mnohosten/pagecache/pkg/storage"
)

// upgrader upgrades /events connections to WebSocket. Origin checking is
// left to the caller's reverse proxy; this admin endpoint assumes a
// trusted network.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventBroadcaster fans out storage.Event occurrences to every connected
// WebSocket client, implementing storage.EventSink. Publish never blocks:
// an event that does not fit in a subscriber's full buffer is dropped for
// that subscriber rather than stalling the buffer pool.
type EventBroadcaster struct {
	mu          sync.Mutex
	subscribers map[chan storage.Event]struct{}
}

// NewEventBroadcaster creates an empty broadcaster.
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{
		subscribers: make(map[chan storage.Event]struct{}),
	}
}

// Publish implements storage.EventSink.
func (b *EventBroadcaster) Publish(e storage.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			// Subscriber too slow; drop this event for it rather than block
			// the caller, which may be a buffer pool holding locks.
		}
	}
}

func (b *EventBroadcaster) subscribe() chan storage.Event {
	ch := make(chan storage.Event, 64)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *EventBroadcaster) unsubscribe(ch chan storage.Event) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	b.mu.Unlock()
	close(ch)
}

// HandleEvents upgrades the connection and streams buffer pool events to
// the client as newline-delimited JSON frames until it disconnects.
func (h *Handlers) HandleEvents(broadcaster *EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("events: upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		events := broadcaster.subscribe()
		defer broadcaster.unsubscribe(events)

		// Detect client disconnects by discarding anything it sends.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		heartbeat := time.NewTicker(30 * time.Second)
		defer heartbeat.Stop()

		for {
			select {
			case <-closed:
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				if err := conn.WriteJSON(e); err != nil {
					return
				}
			case <-heartbeat.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}

// HandleEventsInfo documents the WebSocket endpoint for clients that hit it
// over plain HTTP first.
func (h *Handlers) HandleEventsInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"message":  "connect with a WebSocket client to receive live buffer pool events",
			"endpoint": "ws://<host>:<port>/events",
		})
	}
}
