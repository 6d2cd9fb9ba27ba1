package progress

import (
	"sync"
	"time"
)

// SubscriberBuffer is the per-subscriber channel capacity.
const SubscriberBuffer = 32

type topic struct {
	subs   map[int]chan Event
	last   *Event
	closed bool
}

// Hub fans out events to subscribers keyed by request id. Late subscribers get
// the last event replayed. A slow subscriber may miss intermediate events but
// always receives the final one.
type Hub struct {
	mu     sync.Mutex
	topics map[string]*topic
	nextID int
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{topics: make(map[string]*topic)}
}

func (h *Hub) topic(id string) *topic {
	t, ok := h.topics[id]
	if !ok {
		t = &topic{subs: make(map[int]chan Event)}
		h.topics[id] = t
	}
	return t
}

// Subscribe returns a channel of events for id and a cancel func. The channel is
// closed after the final event or on cancel.
func (h *Hub) Subscribe(id string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, SubscriberBuffer)
	t := h.topic(id)
	if t.last != nil {
		ch <- *t.last
	}
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	h.nextID++
	key := h.nextID
	t.subs[key] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := t.subs[key]; ok {
				delete(t.subs, key)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber of ev.RequestID. A final event closes
// the topic.
func (h *Hub) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	t := h.topic(ev.RequestID)
	if t.closed {
		return
	}
	last := ev
	t.last = &last

	for _, ch := range t.subs {
		if ev.Final {
			sendLossless(ch, ev)
			continue
		}
		select {
		case ch <- ev:
		default:
		}
	}

	if ev.Final {
		h.closeTopic(t)
	}
}

// sendLossless makes room by dropping the oldest queued event. Only Publish
// sends, under the hub lock, so one drain is enough.
func sendLossless(ch chan Event, ev Event) {
	select {
	case ch <- ev:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- ev:
	default:
	}
}

// Close ends the stream for id without a final event.
func (h *Hub) Close(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.topics[id]; ok && !t.closed {
		h.closeTopic(t)
	}
}

func (h *Hub) closeTopic(t *topic) {
	t.closed = true
	for key, ch := range t.subs {
		close(ch)
		delete(t.subs, key)
	}
}

// Remove forgets id entirely.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.topics[id]; ok {
		h.closeTopic(t)
		delete(h.topics, id)
	}
}

// Last returns the most recent event for id.
func (h *Hub) Last(id string) (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.topics[id]
	if !ok || t.last == nil {
		return Event{}, false
	}
	return *t.last, true
}
