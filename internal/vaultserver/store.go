package vaultserver

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound means the account has no vault proof
	ErrNotFound = errors.New("vault proof not found")
	// ErrConflict means a different proof is already registered
	ErrConflict = errors.New("vault proof already exists")
)

// Record is the stored proof of one account's vault key
type Record struct {
	AccountID string
	Salt      string
	Verifier  string
	UpdatedAt time.Time
}

// Store persists vault proofs
type Store interface {
	// Create stores a first proof. Repeating the same proof succeeds; a
	// different proof returns ErrConflict.
	Create(ctx context.Context, rec Record) error
	// Replace stores rec whether or not a proof exists
	Replace(ctx context.Context, rec Record) error
	// Get returns the account's proof or ErrNotFound
	Get(ctx context.Context, accountID string) (Record, error)
}

// MemoryStore is an in-process Store
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Create implements Store
func (m *MemoryStore) Create(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.records[rec.AccountID]; ok {
		if existing.Salt == rec.Salt && existing.Verifier == rec.Verifier {
			return nil
		}
		return ErrConflict
	}
	m.records[rec.AccountID] = stamp(rec)
	return nil
}

// Replace implements Store
func (m *MemoryStore) Replace(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.AccountID] = stamp(rec)
	return nil
}

// Get implements Store
func (m *MemoryStore) Get(ctx context.Context, accountID string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[accountID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func stamp(rec Record) Record {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	return rec
}
