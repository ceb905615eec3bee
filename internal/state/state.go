// Package state persists bot pagination cursors across restarts. The whole
// {botName: state} map is loaded and saved as one document.
package state

import (
	"context"
	"maps"
	"sync"
)

// Map is the persisted document: bot name to an arbitrary JSON object.
type Map map[string]any

// Store loads and saves the whole state map. Load returns an empty map when
// nothing was saved yet.
type Store interface {
	Load(ctx context.Context) (Map, error)
	Save(ctx context.Context, m Map) error
}

// Memory is a process-local Store.
type Memory struct {
	mu sync.Mutex
	m  Map
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{m: Map{}}
}

// Load implements Store.
func (s *Memory) Load(context.Context) (Map, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.m), nil
}

// Save implements Store.
func (s *Memory) Save(_ context.Context, m Map) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = maps.Clone(m)
	return nil
}
