package remote

import (
	"context"
	"sync"
)

// Memory is an in-process ObjectStore. Two engines sharing one Memory behave
// like two devices sharing a remote.
type Memory struct {
	mu      sync.Mutex
	objects map[string]Object
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]Object)}
}

func (m *Memory) Get(_ context.Context, path string) (Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[path]
	if !ok {
		return Object{}, ErrNotFound
	}
	return Object{Data: append([]byte(nil), obj.Data...), Version: obj.Version}, nil
}

func (m *Memory) Put(_ context.Context, path string, data []byte, expected string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, exists := m.objects[path]
	if exists != (expected != "") || (exists && cur.Version != expected) {
		return "", ErrVersionConflict
	}
	v := ContentVersion(data)
	m.objects[path] = Object{Data: append([]byte(nil), data...), Version: v}
	return v, nil
}
