package events

import (
	"testing"

	"learnstream/server/internal/model"
)

func TestHubDeliversToLessonSubscribersOnly(t *testing.T) {
	h := NewHub()
	a, cancelA := h.Subscribe("lesson-a", 4)
	defer cancelA()
	b, cancelB := h.Subscribe("lesson-b", 4)
	defer cancelB()

	h.Publish(model.LessonEvent{LessonID: "lesson-a", State: model.AssetReady})

	select {
	case evt := <-a:
		if evt.State != model.AssetReady {
			t.Fatalf("unexpected event %+v", evt)
		}
	default:
		t.Fatalf("expected event for lesson-a")
	}
	select {
	case evt := <-b:
		t.Fatalf("lesson-b should not receive %+v", evt)
	default:
	}
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("lesson-a", 1)
	h.Publish(model.LessonEvent{LessonID: "lesson-a", EventID: "1"})
	h.Publish(model.LessonEvent{LessonID: "lesson-a", EventID: "2"})

	if evt := <-ch; evt.EventID != "1" {
		t.Fatalf("expected first event, got %+v", evt)
	}
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed after cancel")
	}
	if n := h.Subscribers("lesson-a"); n != 0 {
		t.Fatalf("subscribers = %d", n)
	}
}
