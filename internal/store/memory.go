package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/myrjola/doppel/internal/errors"
	"github.com/myrjola/doppel/internal/models"
)

// memoryStore is a mutex-guarded map with TTL eviction. Values are deep-copied
// on the way in and out so that callers can never race on shared slices.
type memoryStore[T any] struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord[T]
	ttl     time.Duration
	stop    chan struct{}
	once    sync.Once
}

type memoryRecord[T any] struct {
	value   T
	touched time.Time
}

// newMemoryStore creates a store evicting records idle longer than ttl.
// A zero ttl disables eviction.
func newMemoryStore[T any](ttl time.Duration) *memoryStore[T] {
	s := &memoryStore[T]{
		records: make(map[string]*memoryRecord[T]),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	if ttl > 0 {
		go s.evictLoop()
	}
	return s
}

func (s *memoryStore[T]) evictLoop() {
	// Check often enough that a record never outlives its TTL by much.
	interval := s.ttl / 4
	if interval > time.Hour {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for id, record := range s.records {
				if now.Sub(record.touched) > s.ttl {
					delete(s.records, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Close stops the eviction goroutine.
func (s *memoryStore[T]) Close() {
	s.once.Do(func() {
		close(s.stop)
	})
}

// clone deep-copies a value through JSON. Our record types are plain data, so
// this is safe and keeps the store free of per-type copy code.
func clone[T any](value T) (T, error) {
	var out T
	data, err := json.Marshal(value)
	if err != nil {
		return out, errors.Wrap(err, "marshal for clone")
	}
	if err = json.Unmarshal(data, &out); err != nil {
		return out, errors.Wrap(err, "unmarshal for clone")
	}
	return out, nil
}

func (s *memoryStore[T]) get(id string) (T, error) {
	s.mu.RLock()
	record, ok := s.records[id]
	s.mu.RUnlock()
	var zero T
	if !ok {
		return zero, ErrNotFound
	}
	return clone(record.value)
}

func (s *memoryStore[T]) put(id string, value T) error {
	copied, err := clone(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.records[id] = &memoryRecord[T]{value: copied, touched: time.Now()}
	s.mu.Unlock()
	return nil
}

func (s *memoryStore[T]) update(id string, mutate func(*T) error) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	record, ok := s.records[id]
	if !ok {
		return zero, ErrNotFound
	}
	value, err := clone(record.value)
	if err != nil {
		return zero, err
	}
	if err = mutate(&value); err != nil {
		return zero, err
	}
	stored, err := clone(value)
	if err != nil {
		return zero, err
	}
	s.records[id] = &memoryRecord[T]{value: stored, touched: time.Now()}
	return value, nil
}

func (s *memoryStore[T]) delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

// MemoryInvestigations is the in-memory InvestigationStore.
type MemoryInvestigations struct {
	store *memoryStore[models.Investigation]
}

// NewMemoryInvestigations creates an in-memory investigation store. Records
// idle longer than ttl are evicted; zero disables eviction.
func NewMemoryInvestigations(ttl time.Duration) *MemoryInvestigations {
	return &MemoryInvestigations{store: newMemoryStore[models.Investigation](ttl)}
}

func (s *MemoryInvestigations) Get(_ context.Context, id string) (*models.Investigation, error) {
	investigation, err := s.store.get(id)
	if err != nil {
		return nil, err
	}
	return &investigation, nil
}

func (s *MemoryInvestigations) Put(_ context.Context, investigation *models.Investigation) error {
	return s.store.put(investigation.TargetID, *investigation)
}

func (s *MemoryInvestigations) Update(
	_ context.Context,
	id string,
	mutate func(*models.Investigation) error,
) (*models.Investigation, error) {
	investigation, err := s.store.update(id, mutate)
	if err != nil {
		return nil, err
	}
	return &investigation, nil
}

func (s *MemoryInvestigations) Delete(_ context.Context, id string) error {
	return s.store.delete(id)
}

func (s *MemoryInvestigations) Close() {
	s.store.Close()
}

// MemorySessions is the in-memory SessionStore.
type MemorySessions struct {
	store *memoryStore[models.ConversationSession]
}

// NewMemorySessions creates an in-memory session store with the given TTL.
func NewMemorySessions(ttl time.Duration) *MemorySessions {
	return &MemorySessions{store: newMemoryStore[models.ConversationSession](ttl)}
}

func (s *MemorySessions) Get(_ context.Context, id string) (*models.ConversationSession, error) {
	session, err := s.store.get(id)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *MemorySessions) Put(_ context.Context, session *models.ConversationSession) error {
	return s.store.put(session.ID, *session)
}

func (s *MemorySessions) Update(
	_ context.Context,
	id string,
	mutate func(*models.ConversationSession) error,
) (*models.ConversationSession, error) {
	session, err := s.store.update(id, mutate)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *MemorySessions) Delete(_ context.Context, id string) error {
	return s.store.delete(id)
}

func (s *MemorySessions) Close() {
	s.store.Close()
}
