package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/aretw0/weave/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

// Event is one lifecycle notification sent to stream subscribers.
type Event struct {
	Kind string            `json:"kind"`
	Step *domain.StepEvent `json:"step,omitempty"`
	Run  *domain.RunEvent  `json:"run,omitempty"`
	Err  string            `json:"error,omitempty"`
}

// StreamManager fans lifecycle events out to the subscribers of each run.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan string]struct{} // run ID -> set of channels
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan string]struct{}),
	}
}

// Subscribe registers a buffered channel for runID and returns it with its cancel func.
func (sm *StreamManager) Subscribe(runID string) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 16)
	if _, ok := sm.subscribers[runID]; !ok {
		sm.subscribers[runID] = make(map[chan string]struct{})
	}
	sm.subscribers[runID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			subs := sm.subscribers[runID]
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, runID)
			}
		})
	}
}

// Subscribers returns the number of subscribers of runID.
func (sm *StreamManager) Subscribers(runID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[runID])
}

// Broadcast sends msg to every subscriber of runID. Slow subscribers miss it.
func (sm *StreamManager) Broadcast(runID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[runID] {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (sm *StreamManager) publish(runID string, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	sm.Broadcast(runID, string(data))
}

// Hooks returns lifecycle hooks publishing every event to the server's subscribers.
func (s *Server) Hooks() domain.LifecycleHooks {
	return s.streams.Hooks()
}

// Hooks returns lifecycle hooks publishing every event to the run's subscribers.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepStart: func(_ context.Context, e *domain.StepEvent) {
			sm.publish(e.RunID, Event{Kind: "step_start", Step: e})
		},
		OnStepFinish: func(_ context.Context, e *domain.StepEvent) {
			ev := Event{Kind: "step_finish", Step: e}
			if e.Err != nil {
				ev.Err = e.Err.Error()
			}
			sm.publish(e.RunID, ev)
		},
		OnRunFinish: func(_ context.Context, e *domain.RunEvent) {
			ev := Event{Kind: "run_finish", Run: e}
			if e.Err != nil {
				ev.Err = e.Err.Error()
			}
			sm.publish(e.RunID, ev)
		},
	}
}

// subscribeEvents streams the events of one run as server-sent events until the
// client leaves or the run finishes.
func (s *Server) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	runID := chi.URLParam(r, "runID")

	ch, cancel := s.streams.Subscribe(runID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
			var ev Event
			if json.Unmarshal([]byte(msg), &ev) == nil && ev.Kind == "run_finish" {
				return
			}
		}
	}
}
