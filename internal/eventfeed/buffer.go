// Package eventfeed keeps a bounded in-memory log of operational
// events (registrations, pairings, native transitions) and fans them
// out to SSE watchers and the notification pipeline.
package eventfeed

import (
	"strconv"
	"sync"
	"time"
)

type Event struct {
	EventID  string         `json:"event_id"`
	Kind     string         `json:"kind"`
	ServerTS int64          `json:"server_ts"`
	Data     map[string]any `json:"data,omitempty"`
}

type Buffer struct {
	mu       sync.Mutex
	nextID   int64
	max      int
	events   []Event
	watchers map[chan Event]struct{}
	closed   bool
}

func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = 500
	}
	return &Buffer{
		max:      max,
		watchers: map[chan Event]struct{}{},
	}
}

// Append records an event and fans it out to watchers without
// blocking; a slow watcher misses events rather than stalling the
// producer.
func (b *Buffer) Append(kind string, data map[string]any) Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return Event{}
	}
	b.nextID++
	ev := Event{
		EventID:  strconv.FormatInt(b.nextID, 10),
		Kind:     kind,
		ServerTS: time.Now().UnixMilli(),
		Data:     data,
	}
	b.events = append(b.events, ev)
	if len(b.events) > b.max {
		b.events = b.events[len(b.events)-b.max:]
	}
	for ch := range b.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
	return ev
}

// ReplayAfter returns buffered events newer than lastEventID. An empty
// or unparseable ID replays the whole buffer.
func (b *Buffer) ReplayAfter(lastEventID string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return nil
	}
	last, err := strconv.ParseInt(lastEventID, 10, 64)
	if lastEventID == "" || err != nil {
		out := make([]Event, len(b.events))
		copy(out, b.events)
		return out
	}
	out := make([]Event, 0, len(b.events))
	for _, ev := range b.events {
		id, _ := strconv.ParseInt(ev.EventID, 10, 64)
		if id > last {
			out = append(out, ev)
		}
	}
	return out
}

func (b *Buffer) Subscribe() chan Event {
	ch := make(chan Event, 32)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.watchers[ch] = struct{}{}
	return ch
}

func (b *Buffer) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.watchers[ch]; ok {
		delete(b.watchers, ch)
		close(ch)
	}
}

func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.watchers {
		close(ch)
		delete(b.watchers, ch)
	}
}
