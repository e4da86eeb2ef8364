package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/kmol-editor/kmol/internal/logging"
	"github.com/kmol-editor/kmol/pkg/domain"
)

// StreamManager fans lifecycle events out to server-sent-event clients.
// Subscribers may filter by project path; an empty filter receives everything.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan<- string]string // channel -> path filter
	logger      *slog.Logger
}

// NewStreamManager creates an empty StreamManager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[chan<- string]string),
		logger:      logger,
	}
}

// Subscribe registers a client and returns its channel plus a cancel func.
func (sm *StreamManager) Subscribe(path string) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 16)
	sm.subscribers[ch] = path
	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if _, ok := sm.subscribers[ch]; ok {
			delete(sm.subscribers, ch)
			close(ch)
		}
	}
}

// Broadcast sends msg to every subscriber whose filter matches path.
// Slow clients lose messages instead of blocking the editor.
func (sm *StreamManager) Broadcast(path, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch, filter := range sm.subscribers {
		if filter != "" && filter != path {
			continue
		}
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("SSE: client buffer full, dropping message", "path", path)
		}
	}
}

// Hooks returns lifecycle hooks that broadcast each event as JSON.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnMutate: func(_ context.Context, e *domain.MutationEvent) { sm.publish(e.Path, e) },
		OnOpen:   func(_ context.Context, e *domain.ProjectEvent) { sm.publish(e.Path, e) },
		OnSave:   func(_ context.Context, e *domain.ProjectEvent) { sm.publish(e.Path, e) },
		OnClose:  func(_ context.Context, e *domain.ProjectEvent) { sm.publish(e.Path, e) },
	}
}

func (sm *StreamManager) publish(path string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		sm.logger.Error("SSE: failed to encode event", "error", err)
		return
	}
	sm.Broadcast(path, string(data))
}
