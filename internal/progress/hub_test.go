package progress

import (
	"testing"
	"time"
)

func drain(ch <-chan Event) []Event {
	var out []Event
	timeout := time.After(time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			return out
		}
	}
}

func TestHubDeliversAndClosesOnFinal(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("req-1")
	defer cancel()

	h.Publish(Event{RequestID: "req-1", Stage: "transcribing", Percent: 50})
	h.Publish(Event{RequestID: "req-2", Stage: "transcribing", Percent: 10})
	h.Publish(Event{RequestID: "req-1", Stage: "complete", Percent: 100, Final: true})

	events := drain(ch)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if !events[1].Final || events[1].Percent != 100 {
		t.Errorf("final event = %+v", events[1])
	}
	if events[0].Time.IsZero() {
		t.Error("publish should stamp time")
	}
}

func TestHubReplaysLastEvent(t *testing.T) {
	h := NewHub()
	h.Publish(Event{RequestID: "r", Stage: "encoding", Percent: 30})

	ch, cancel := h.Subscribe("r")
	defer cancel()

	select {
	case ev := <-ch:
		if ev.Percent != 30 {
			t.Errorf("replayed %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no replay")
	}
}

func TestHubSubscribeAfterFinal(t *testing.T) {
	h := NewHub()
	h.Publish(Event{RequestID: "r", Stage: "failed", Final: true, Message: "boom"})

	ch, _ := h.Subscribe("r")
	events := drain(ch)
	if len(events) != 1 || events[0].Message != "boom" {
		t.Errorf("events = %+v", events)
	}
}

func TestHubSlowSubscriberStillGetsFinal(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("r")
	defer cancel()

	for i := 0; i < SubscriberBuffer*2; i++ {
		h.Publish(Event{RequestID: "r", Percent: float64(i)})
	}
	h.Publish(Event{RequestID: "r", Percent: 100, Final: true})

	events := drain(ch)
	if len(events) == 0 || !events[len(events)-1].Final {
		t.Fatalf("final event lost, got %d events", len(events))
	}
}

func TestHubCancelAndRemove(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("r")
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel open after cancel")
	}

	h.Publish(Event{RequestID: "r", Percent: 5})
	if _, ok := h.Last("r"); !ok {
		t.Error("Last missing")
	}
	h.Remove("r")
	if _, ok := h.Last("r"); ok {
		t.Error("Remove kept topic")
	}
}
