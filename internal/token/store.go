package token

import (
	"context"
	"sync"
	"time"

	"hls-relay/internal/channel"
)

// Record is one issued access token.
type Record struct {
	Token     string     `json:"token"`
	Channel   channel.ID `json:"channel"`
	ExpiresAt time.Time  `json:"expires_at"`
	PlayURL   string     `json:"play_url"`
}

// Store defines the persistence contract for access tokens.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, token string) (Record, bool, error)
	Delete(ctx context.Context, token string) error

	// PurgeExpired deletes every record whose expiry is strictly before now
	// and returns how many were removed.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// MemoryStore keeps tokens in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Save implements Store.Save.
func (s *MemoryStore) Save(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Token] = rec
	return nil
}

// Get implements Store.Get.
func (s *MemoryStore) Get(_ context.Context, token string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[token]
	return rec, ok, nil
}

// Delete implements Store.Delete.
func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, token)
	return nil
}

// PurgeExpired implements Store.PurgeExpired.
func (s *MemoryStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for tok, rec := range s.records {
		if rec.ExpiresAt.Before(now) {
			delete(s.records, tok)
			n++
		}
	}
	return n, nil
}
