package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is a mutex-guarded in-memory Store. List operations return
// snapshots so callers never observe partial mutation.
type Memory struct {
	mu       sync.RWMutex
	projects map[string]*Project
	events   []*Event
	eventIDs map[string]bool
	seq      map[string]int
	nextSeq  int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		projects: make(map[string]*Project),
		eventIDs: make(map[string]bool),
		seq:      make(map[string]int),
	}
}

func (m *Memory) UpsertProject(_ context.Context, p *Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

func (m *Memory) GetProject(_ context.Context, id string) (*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) ListProjects(_ context.Context) ([]*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Project, 0, len(m.projects))
	for _, p := range m.projects {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) DeleteProject(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.projects, id)
	return nil
}

func (m *Memory) AppendEvent(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.eventIDs[e.ID] {
		return &DuplicateEventError{ID: e.ID}
	}
	cp := *e
	m.events = append(m.events, &cp)
	m.eventIDs[e.ID] = true
	m.seq[e.ID] = m.nextSeq
	m.nextSeq++
	return nil
}

func (m *Memory) ListEvents(_ context.Context, f EventFilter) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Event, 0)
	for _, e := range m.events {
		if f.ProjectID != "" && e.ProjectID != f.ProjectID {
			continue
		}
		if f.Kind != "" && e.Kind != f.Kind {
			continue
		}
		if f.Since != nil && e.Timestamp.Before(*f.Since) {
			continue
		}
		if f.Until != nil && e.Timestamp.After(*f.Until) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	// Insertion order breaks ties so same-timestamp events stay stable.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return m.seq[out[i].ID] < m.seq[out[j].ID]
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
