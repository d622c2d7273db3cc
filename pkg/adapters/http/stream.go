package http

import (
	"log/slog"
	"sync"
)

// StreamManager fans project events out to active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // project ID -> set of channels
	logger      *slog.Logger
}

// NewStreamManager creates an empty manager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a listener for projectID. The returned func unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(projectID string) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[projectID]; !ok {
		sm.subscribers[projectID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[projectID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[projectID]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(sm.subscribers, projectID)
				}
			}
		})
	}
}

// Subscribers returns how many listeners projectID has.
func (sm *StreamManager) Subscribers(projectID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[projectID])
}

// Broadcast sends msg to every listener of projectID without blocking.
func (sm *StreamManager) Broadcast(projectID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[projectID] {
		select {
		case ch <- msg:
		default:
			// Slow client; drop rather than stall the request that produced the event.
			sm.logger.Warn("SSE: client buffer full, dropping event", "project_id", projectID)
		}
	}
}
