package broadcast

import (
	"context"
	"sync"

	"startup-analysis-pipeline/internal/domain/model"
	"startup-analysis-pipeline/internal/domain/ports/adapter"
	"startup-analysis-pipeline/internal/infra/metrics"
)

var _ adapter.ProgressBroadcaster = (*Hub)(nil)

// Hub is the in-process progress transport: one logical channel per jobKey,
// any number of subscribers attaching and detaching independently.
// Publishing with zero subscribers is a no-op; nothing is queued for
// latecomers, who converge through the endpoint's polling fallback.
type Hub struct {
	mu     sync.RWMutex
	byKey  map[string]map[int]func(model.ProgressEvent)
	nextID int
}

func NewHub() *Hub {
	return &Hub{byKey: map[string]map[int]func(model.ProgressEvent){}}
}

func (h *Hub) Publish(_ context.Context, jobKey string, ev model.ProgressEvent) {
	ev.JobKey = jobKey

	h.mu.RLock()
	handlers := make([]func(model.ProgressEvent), 0, len(h.byKey[jobKey]))
	for _, fn := range h.byKey[jobKey] {
		handlers = append(handlers, fn)
	}
	h.mu.RUnlock()

	metrics.IncEventPublished(string(ev.Type))
	for _, fn := range handlers {
		fn(ev)
	}
}

func (h *Hub) Subscribe(jobKey string, fn func(model.ProgressEvent)) (cancel func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.byKey[jobKey] == nil {
		h.byKey[jobKey] = map[int]func(model.ProgressEvent){}
	}
	h.byKey[jobKey][id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.byKey[jobKey], id)
			if len(h.byKey[jobKey]) == 0 {
				delete(h.byKey, jobKey)
			}
			h.mu.Unlock()
		})
	}
}

// Subscribers reports the current subscriber count for a key. Test hook.
func (h *Hub) Subscribers(jobKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byKey[jobKey])
}
