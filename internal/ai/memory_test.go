package ai

import (
	"context"
	"sync"
)

// memMemory is a map-backed Memory with the same trimming as RedisMemory.
type memMemory struct {
	mu    sync.Mutex
	limit int
	convs map[string][]Message
}

func newMemMemory(limit int) *memMemory {
	return &memMemory{limit: limit, convs: make(map[string][]Message)}
}

func (m *memMemory) Load(ctx context.Context, id string) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.convs[id]...), nil
}

func (m *memMemory) Append(ctx context.Context, id string, msgs ...Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv := append(m.convs[id], msgs...)
	if len(conv) > m.limit {
		conv = append([]Message(nil), conv[len(conv)-m.limit:]...)
	}
	m.convs[id] = conv
	return nil
}

func (m *memMemory) Reset(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.convs, id)
	return nil
}
