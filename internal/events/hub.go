package events

import (
	"sync"

	"learnstream/server/internal/model"
)

// Hub fans lesson lifecycle events out to per-lesson subscribers.
// Publish never blocks; a subscriber whose buffer is full misses events.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]chan model.LessonEvent
}

func NewHub() *Hub {
	return &Hub{subs: map[string]map[uint64]chan model.LessonEvent{}}
}

// Subscribe registers a buffered channel for lessonID. The returned cancel
// func closes the channel and is safe to call more than once.
func (h *Hub) Subscribe(lessonID string, buf int) (<-chan model.LessonEvent, func()) {
	if buf < 1 {
		buf = 1
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	lessonSubs, ok := h.subs[lessonID]
	if !ok {
		lessonSubs = map[uint64]chan model.LessonEvent{}
		h.subs[lessonID] = lessonSubs
	}
	ch := make(chan model.LessonEvent, buf)
	lessonSubs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			subs := h.subs[lessonID]
			if c, ok := subs[id]; ok {
				delete(subs, id)
				close(c)
			}
			if len(subs) == 0 {
				delete(h.subs, lessonID)
			}
		})
	}
	return ch, cancel
}

func (h *Hub) Publish(evt model.LessonEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[evt.LessonID] {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribers reports how many listeners are attached to lessonID.
func (h *Hub) Subscribers(lessonID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[lessonID])
}
