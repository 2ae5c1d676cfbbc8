package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/callgate/pkg/domain"
)

// Event is one lifecycle event as sent over SSE.
type Event struct {
	Type domain.EventType
	Data []byte
}

// StreamManager fans lifecycle events out to SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe registers a buffered channel. The returned func unsubscribes and closes it.
func (sm *StreamManager) Subscribe() (<-chan Event, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan Event, 16)
	sm.subscribers[ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if _, ok := sm.subscribers[ch]; ok {
			delete(sm.subscribers, ch)
			close(ch)
		}
	}
}

// Broadcast never blocks: slow clients lose events.
func (sm *StreamManager) Broadcast(typ domain.EventType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("SSE: event encode failed", "type", typ, "err", err)
		return
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers {
		select {
		case ch <- Event{Type: typ, Data: data}:
		default:
			slog.Warn("SSE: client buffer full, dropping event", "type", typ)
		}
	}
}

// Hooks broadcasts every lifecycle event. Give them to the engine with callgate.WithLifecycleHooks.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeStarted: func(_ context.Context, e *domain.NodeEvent) {
			sm.Broadcast(domain.EventNodeStarted, e)
		},
		OnNodeEnded: func(_ context.Context, e *domain.NodeEvent) {
			sm.Broadcast(domain.EventNodeEnded, e)
		},
		OnStageTriggered: func(_ context.Context, e *domain.StageEvent) {
			sm.Broadcast(domain.EventStageTriggered, e)
		},
		OnRunEnded: func(_ context.Context, e *domain.RunEvent) {
			sm.Broadcast(domain.EventRunEnded, e)
		},
	}
}

// SubscribeEvents handles the GET /events request (SSE).
// ?types=run_ended,stage_triggered limits the stream to those event types.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	var filter map[domain.EventType]bool
	if raw := r.URL.Query().Get("types"); raw != "" {
		filter = make(map[domain.EventType]bool)
		for _, t := range strings.Split(raw, ",") {
			filter[domain.EventType(strings.TrimSpace(t))] = true
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.streams.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if filter != nil && !filter[ev.Type] {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, ev.Data)
			flusher.Flush()
		}
	}
}
