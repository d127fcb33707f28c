package clients

import (
	"context"
	"sync"

	"pixwebhook/internal/logger"
)

// Backend loads the whole record set, runs fn while holding an exclusive
// lock, and persists the set when fn succeeds and changed it.
type Backend interface {
	Update(ctx context.Context, fn func(*Set) error) error
}

// Repository is the narrow view of the client store used by the resolver and the CLI
type Repository interface {
	Find(ctx context.Context, name string) (Record, error)
	Upsert(ctx context.Context, rec Record) error
	ListAll(ctx context.Context) ([]Record, error)
	Update(ctx context.Context, fn func(*Set) error) error
}

// Store implements Repository over any Backend
type Store struct {
	backend Backend
}

// NewStore wraps a storage backend
func NewStore(b Backend) *Store {
	return &Store{backend: b}
}

func (s *Store) Find(ctx context.Context, name string) (Record, error) {
	var rec Record
	err := s.backend.Update(ctx, func(set *Set) error {
		r, ok := set.Find(name)
		if !ok {
			return ErrNotFound
		}
		rec = r
		return nil
	})
	return rec, err
}

func (s *Store) Upsert(ctx context.Context, rec Record) error {
	return s.backend.Update(ctx, func(set *Set) error {
		return set.Upsert(rec)
	})
}

func (s *Store) ListAll(ctx context.Context) ([]Record, error) {
	var recs []Record
	err := s.backend.Update(ctx, func(set *Set) error {
		recs = set.ListAll()
		return nil
	})
	return recs, err
}

func (s *Store) Update(ctx context.Context, fn func(*Set) error) error {
	return s.backend.Update(ctx, fn)
}

// MemoryBackend keeps the store's text in memory. Used by tests and dry runs.
type MemoryBackend struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryBackend starts from the given file contents
func NewMemoryBackend(contents string) *MemoryBackend {
	return &MemoryBackend{data: []byte(contents)}
}

func (m *MemoryBackend) Update(ctx context.Context, fn func(*Set) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, err := ParseSet(m.data)
	if err != nil {
		return storeError("parse records", err)
	}
	warnMalformed(ctx, set)
	if err := fn(set); err != nil {
		return err
	}
	if set.Dirty() {
		m.data = set.Render()
	}
	return nil
}

// Contents returns the current rendered store
func (m *MemoryBackend) Contents() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.data)
}

// warnMalformed reports store lines whose account id was ignored
func warnMalformed(ctx context.Context, set *Set) {
	for _, m := range set.Malformed() {
		logger.FromContext(ctx).Warn("client_store_malformed_line", "line", m.Number, "text", m.Text)
	}
}
