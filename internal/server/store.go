// Package server implements the cardfetch service: a card lookup queue
// backed by a TTL cache, the upstream resolver feeding it, and the HTTP
// surface consumed by the client.
package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"cardfetch/pkg/api"
)

// ErrCacheMiss indicates the requested card is not in the store.
var ErrCacheMiss = errors.New("cache miss")

// Card is one resolved (or conclusively unresolved) lookup.
type Card struct {
	Name       string `json:"name"`
	OracleText string `json:"oracle_text"`
	ManaCost   string `json:"mana_cost"`
	TypeLine   string `json:"type_line"`
	SetName    string `json:"set_name"`
	Found      bool   `json:"found"`
}

// Record converts the stored card into its wire representation.
func (c Card) Record() api.CardRecord {
	status := api.StatusFound
	if !c.Found {
		status = api.StatusNotFound
	}
	return api.CardRecord{
		Name:       c.Name,
		OracleText: c.OracleText,
		ManaCost:   c.ManaCost,
		TypeLine:   c.TypeLine,
		SetName:    c.SetName,
		Status:     status,
	}
}

// CardStore is the card cache consulted and filled by the lookup worker.
// Entries expire after the store's TTL; expired entries read as misses.
type CardStore interface {
	// Get returns the cached card or ErrCacheMiss.
	Get(ctx context.Context, name string) (Card, error)

	// Set stores a card, refreshing its TTL.
	Set(ctx context.Context, card Card) error

	// Len returns the number of live entries.
	Len(ctx context.Context) (int, error)

	// All returns every live entry. Memory stores keep insertion order;
	// other backends may return entries sorted by name.
	All(ctx context.Context) ([]Card, error)

	// Clear drops every entry.
	Clear(ctx context.Context) error
}

type memoryEntry struct {
	card    Card
	expires time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return now.After(e.expires)
}

// MemoryStore is an in-process CardStore with TTL expiry and a capacity
// cap. When full, the oldest entry is evicted first.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	order   []string // insertion order, oldest first
	ttl     time.Duration
	cap     int
	now     func() time.Time
}

// NewMemoryStore creates a memory store holding at most capacity cards
// for ttl each.
func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	if capacity <= 0 {
		capacity = 1000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		cap:     capacity,
		now:     time.Now,
	}
}

// Get implements CardStore.
func (s *MemoryStore) Get(_ context.Context, name string) (Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[name]
	if !ok || entry.expired(s.now()) {
		if ok {
			s.remove(name)
		}
		cacheMissesTotal.Inc()
		return Card{}, ErrCacheMiss
	}

	cacheHitsTotal.Inc()
	return entry.card, nil
}

// Set implements CardStore.
func (s *MemoryStore) Set(_ context.Context, card Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[card.Name]; ok {
		s.remove(card.Name)
	}
	for len(s.entries) >= s.cap && len(s.order) > 0 {
		s.remove(s.order[0])
	}

	s.entries[card.Name] = memoryEntry{card: card, expires: s.now().Add(s.ttl)}
	s.order = append(s.order, card.Name)
	cacheSizeCards.Set(float64(len(s.entries)))
	return nil
}

// Len implements CardStore.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()
	return len(s.entries), nil
}

// All implements CardStore.
func (s *MemoryStore) All(_ context.Context) ([]Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()
	cards := make([]Card, 0, len(s.entries))
	for _, name := range s.order {
		cards = append(cards, s.entries[name].card)
	}
	return cards, nil
}

// Clear implements CardStore.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]memoryEntry)
	s.order = nil
	cacheSizeCards.Set(0)
	return nil
}

// remove deletes name from both the map and the order list.
// Caller holds the lock.
func (s *MemoryStore) remove(name string) {
	delete(s.entries, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	cacheSizeCards.Set(float64(len(s.entries)))
}

// sweep drops expired entries. Caller holds the lock.
func (s *MemoryStore) sweep() {
	now := s.now()
	for _, name := range append([]string(nil), s.order...) {
		if entry, ok := s.entries[name]; ok && entry.expired(now) {
			s.remove(name)
		}
	}
}
