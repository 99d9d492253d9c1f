package participant

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Store exposes participant history to the HTTP handlers and the agent.
type Store interface {
	Connected() bool
	Get(ctx context.Context, name string) (Record, error)
	Update(ctx context.Context, name string, draft Draft) error
	List(ctx context.Context) ([]Summary, error)
	Close(ctx context.Context) error
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	mu    sync.RWMutex
	items []Record
	now   func() time.Time
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied records.
func NewMemoryStore(items []Record) *MemoryStore {
	return &MemoryStore{items: append([]Record(nil), items...), now: time.Now}
}

// Connected is always true for the in-memory store.
func (s *MemoryStore) Connected() bool { return true }

// Get looks up a record by exact name first, then case-insensitively.
func (s *MemoryStore) Get(_ context.Context, name string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.items {
		if item.Name == name {
			return cloneRecord(item), nil
		}
	}
	for _, item := range s.items {
		if strings.EqualFold(item.Name, name) {
			return cloneRecord(item), nil
		}
	}
	return Record{}, ErrNotFound
}

// Update upserts the record and appends one log built from draft.
func (s *MemoryStore) Update(_ context.Context, name string, draft Draft) error {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if strings.EqualFold(s.items[i].Name, name) {
			s.items[i].Name = name
			s.items[i].Project = draft.Project
			s.items[i].Role = draft.Role
			s.items[i].LastSession = now
			s.items[i].Logs = append(s.items[i].Logs, draft.Log(now))
			return nil
		}
	}

	s.items = append(s.items, Record{
		Name:        name,
		Project:     draft.Project,
		Role:        draft.Role,
		LastSession: now,
		Logs:        []SessionLog{draft.Log(now)},
	})
	return nil
}

// List returns name and project of every record.
func (s *MemoryStore) List(_ context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, Summary{Name: item.Name, Project: item.Project})
	}
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close(context.Context) error { return nil }

// DisabledStore stands in when the backing database could not be reached.
type DisabledStore struct {
	Reason error
}

// Connected always reports false.
func (DisabledStore) Connected() bool { return false }

func (DisabledStore) Get(context.Context, string) (Record, error) { return Record{}, ErrUnavailable }

func (DisabledStore) Update(context.Context, string, Draft) error { return ErrUnavailable }

func (DisabledStore) List(context.Context) ([]Summary, error) { return nil, ErrUnavailable }

func (DisabledStore) Close(context.Context) error { return nil }

func cloneRecord(r Record) Record {
	r.Logs = append([]SessionLog(nil), r.Logs...)
	for i := range r.Logs {
		r.Logs[i].Blockers = append([]string(nil), r.Logs[i].Blockers...)
	}
	return r
}
