package storage

import "time"

// EventType identifies the kind of buffer pool activity an Event reports.
type EventType string

const (
	EventFetchHit  EventType = "fetch_hit"
	EventFetchMiss EventType = "fetch_miss"
	EventEvict     EventType = "evict"
	EventFlush     EventType = "flush"
)

// Event is a single buffer pool occurrence, published to any attached
// EventSink for the admin surface's live event stream.
type Event struct {
	Type    EventType `json:"type"`
	PageID  PageID    `json:"page_id"`
	FrameID FrameID   `json:"frame_id"`
	Dirty   bool      `json:"dirty"`
	At      time.Time `json:"at"`
}

// EventSink receives buffer pool events. Publish must not block: a slow
// or disconnected subscriber must never stall a fetch or eviction.
type EventSink interface {
	Publish(Event)
}

// noopSink discards every event; it is the default sink so a pool that
// never calls SetEventSink pays no cost for publishing.
type noopSink struct{}

func (noopSink) Publish(Event) {}
