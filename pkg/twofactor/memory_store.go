package twofactor

import (
	"context"
	"errors"
	"sync"
)

// MemoryStore is an in-process Store. Records are deep-copied on the way in
// and out. Each identity has its own lock, created on demand and dropped when
// no caller holds it, so different identities never wait on each other.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*SecretRecord

	locksMu sync.Mutex
	locks   map[string]*identityLock
}

type identityLock struct {
	mu   sync.Mutex
	refs int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*SecretRecord),
		locks:   make(map[string]*identityLock),
	}
}

func (s *MemoryStore) Get(ctx context.Context, identity string) (*SecretRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[identity]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Put(ctx context.Context, identity string, rec *SecretRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := s.lock(identity)
	defer unlock()

	s.write(identity, rec.Clone())
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, identity string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := s.lock(identity)
	defer unlock()

	s.mu.Lock()
	delete(s.records, identity)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, identity string, fn UpdateFunc) (*SecretRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := s.lock(identity)
	defer unlock()

	s.mu.RLock()
	current, ok := s.records[identity]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrRecordNotFound
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		if errors.Is(err, ErrDeleteRecord) {
			s.mu.Lock()
			delete(s.records, identity)
			s.mu.Unlock()
			return nil, nil
		}
		return nil, err
	}

	stored := s.write(identity, next)
	return stored.Clone(), nil
}

// Len reports the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// write stores rec with the version following the current one.
// Callers hold the identity lock.
func (s *MemoryStore) write(identity string, rec *SecretRecord) *SecretRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var version int64
	if prev, ok := s.records[identity]; ok {
		version = prev.Version
	}
	rec.Version = version + 1
	s.records[identity] = rec
	return rec
}

func (s *MemoryStore) lock(identity string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[identity]
	if !ok {
		l = &identityLock{}
		s.locks[identity] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, identity)
		}
		s.locksMu.Unlock()
	}
}
