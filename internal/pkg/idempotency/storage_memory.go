package idempotency

import (
	"context"
	"sync"
	"time"
)

const sweepInterval = time.Minute

type memoryRecord struct {
	record    Record
	expiresAt time.Time
}

// MemoryStorage keeps records in process. It is not shared between replicas,
// which matches the single-process task manager it guards.
type MemoryStorage struct {
	mu        sync.Mutex
	records   map[string]memoryRecord
	now       func() time.Time
	lastSweep time.Time
}

// NewMemoryStorage creates a new in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]memoryRecord),
		now:     time.Now,
	}
}

// Load implements Storage
func (s *MemoryStorage) Load(_ context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mr, ok := s.records[key]
	if !ok || !s.now().Before(mr.expiresAt) {
		return nil, nil
	}
	rec := mr.record
	return &rec, nil
}

// TryMarkProcessing implements Storage
func (s *MemoryStorage) TryMarkProcessing(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	if mr, ok := s.records[key]; ok && now.Before(mr.expiresAt) {
		return false, nil
	}
	s.records[key] = memoryRecord{
		record:    Record{Key: key, Status: StatusProcessing, CreatedAt: now},
		expiresAt: now.Add(ttl),
	}
	return true, nil
}

// SaveResult implements Storage
func (s *MemoryStorage) SaveResult(_ context.Context, key string, result string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	created := now
	if mr, ok := s.records[key]; ok {
		created = mr.record.CreatedAt
	}
	s.records[key] = memoryRecord{
		record:    Record{Key: key, Status: StatusCompleted, Result: result, CreatedAt: created},
		expiresAt: now.Add(ttl),
	}
	return nil
}

// Release implements Storage
func (s *MemoryStorage) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored records, expired ones included
func (s *MemoryStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// sweep drops expired records at most once per sweepInterval; caller holds mu
func (s *MemoryStorage) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < sweepInterval {
		return
	}
	s.lastSweep = now
	for key, mr := range s.records {
		if !now.Before(mr.expiresAt) {
			delete(s.records, key)
		}
	}
}
