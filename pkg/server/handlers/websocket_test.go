package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mnohosten/pagecache/pkg/storage"
)

func TestEventBroadcasterDeliversToSubscriber(t *testing.T) {
	b := NewEventBroadcaster()
	ch := b.subscribe()
	defer b.unsubscribe(ch)

	want := storage.Event{Type: storage.EventFetchHit, PageID: 7, FrameID: 2, At: time.Now()}
	b.Publish(want)

	select {
	case got := <-ch:
		if got.PageID != want.PageID || got.Type != want.Type {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestEventBroadcasterDropsOnFullBuffer(t *testing.T) {
	b := NewEventBroadcaster()
	ch := b.subscribe()
	defer b.unsubscribe(ch)

	for i := 0; i < 1000; i++ {
		b.Publish(storage.Event{Type: storage.EventEvict, PageID: storage.PageID(i)})
	}
	// Must not block or panic; draining whatever made it through is enough.
	drained := 0
	for {
		select {
		case <-ch:
			drained++
		default:
			return
		}
	}
}

func TestHandleEventsStreamsOverWebSocket(t *testing.T) {
	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	broadcaster := NewEventBroadcaster()
	server := httptest.NewServer(h.HandleEvents(broadcaster))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Give the handler a moment to register the subscription.
	time.Sleep(50 * time.Millisecond)
	broadcaster.Publish(storage.Event{Type: storage.EventFetchMiss, PageID: 3})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got storage.Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.PageID != 3 || got.Type != storage.EventFetchMiss {
		t.Fatalf("got %+v, want page 3 fetch_miss", got)
	}
}

func TestHandleEventsInfoRespondsOverHTTP(t *testing.T) {
	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	h.HandleEventsInfo()(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", w.Code, http.StatusOK)
	}
}
