package hashgroup

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store used by tests and dry runs.
type MemoryStore struct {
	mu     sync.Mutex
	groups map[string]*Group
}

// NewMemoryStore returns an empty in-memory group store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{groups: make(map[string]*Group)}
}

func (s *MemoryStore) GetByDigest(_ context.Context, digest string) (*Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[digest]
	if !ok {
		return nil, nil
	}
	clone := &Group{
		Digest:        group.Digest,
		CanonicalPath: group.CanonicalPath,
		Members:       append([]Member(nil), group.Members...),
	}
	return clone, nil
}

func (s *MemoryStore) UpsertMember(_ context.Context, digest string, member Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[digest]
	if !ok {
		group = &Group{Digest: digest}
		s.groups[digest] = group
	}
	for _, existing := range group.Members {
		if existing.Path == member.Path {
			return nil
		}
	}
	group.Members = append(group.Members, member)
	return nil
}

func (s *MemoryStore) TrySetCanonical(_ context.Context, digest, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[digest]
	if !ok {
		group = &Group{Digest: digest}
		s.groups[digest] = group
	}
	if group.CanonicalPath == "" {
		group.CanonicalPath = path
		return true, nil
	}
	return group.CanonicalPath == path, nil
}

func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{Groups: len(s.groups)}
	for _, group := range s.groups {
		stats.Members += len(group.Members)
		if group.CanonicalPath != "" {
			stats.WithCanonical++
			stats.Duplicates += len(group.Members) - 1
		}
	}
	return stats, nil
}
