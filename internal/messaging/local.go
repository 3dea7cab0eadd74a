package messaging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// LocalBus delivers published messages to in-process handlers synchronously.
// The API server uses it when NATS is disabled.
type LocalBus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string]map[int]Handler
}

func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[string]map[int]Handler)}
}

func (b *LocalBus) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[subject]))
	for _, h := range b.handlers[subject] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(payload); err != nil {
			slog.Warn("Local handler failed", "subject", subject, "error", err)
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(subject string, handler Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.handlers[subject] == nil {
		b.handlers[subject] = make(map[int]Handler)
	}
	b.handlers[subject][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[subject], id)
	}, nil
}

func (b *LocalBus) Close() error {
	return nil
}
