package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"cardfetch/pkg/api"
)

func TestMemoryStore_SetGet(t *testing.T) {
	store := NewMemoryStore(10, time.Hour)
	ctx := context.Background()

	card := Card{Name: "Lightning Bolt", ManaCost: "{R}", Found: true}
	if err := store.Set(ctx, card); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, "Lightning Bolt")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != card {
		t.Errorf("Get = %+v, want %+v", got, card)
	}
}

func TestMemoryStore_Miss(t *testing.T) {
	store := NewMemoryStore(10, time.Hour)

	_, err := store.Get(context.Background(), "Nonexistent")
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	store := NewMemoryStore(10, time.Minute)
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }

	if err := store.Set(ctx, Card{Name: "Opt", Found: true}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Still live just before the TTL boundary.
	now = now.Add(59 * time.Second)
	if _, err := store.Get(ctx, "Opt"); err != nil {
		t.Fatalf("Get before expiry failed: %v", err)
	}

	now = now.Add(2 * time.Second)
	if _, err := store.Get(ctx, "Opt"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get after expiry = %v, want ErrCacheMiss", err)
	}

	n, err := store.Len(ctx)
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Len after expiry = %d, want 0", n)
	}
}

func TestMemoryStore_CapacityEviction(t *testing.T) {
	store := NewMemoryStore(2, time.Hour)
	ctx := context.Background()

	store.Set(ctx, Card{Name: "First", Found: true})
	store.Set(ctx, Card{Name: "Second", Found: true})
	store.Set(ctx, Card{Name: "Third", Found: true})

	if _, err := store.Get(ctx, "First"); !errors.Is(err, ErrCacheMiss) {
		t.Error("Oldest entry should be evicted at capacity")
	}
	if _, err := store.Get(ctx, "Second"); err != nil {
		t.Errorf("Second should survive: %v", err)
	}
	if _, err := store.Get(ctx, "Third"); err != nil {
		t.Errorf("Third should survive: %v", err)
	}
}

func TestMemoryStore_AllKeepsInsertionOrder(t *testing.T) {
	store := NewMemoryStore(10, time.Hour)
	ctx := context.Background()

	for _, name := range []string{"Gamma", "Alpha", "Beta"} {
		store.Set(ctx, Card{Name: name, Found: true})
	}

	cards, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}

	want := []string{"Gamma", "Alpha", "Beta"}
	if len(cards) != len(want) {
		t.Fatalf("All returned %d cards, want %d", len(cards), len(want))
	}
	for i, name := range want {
		if cards[i].Name != name {
			t.Errorf("cards[%d].Name = %q, want %q", i, cards[i].Name, name)
		}
	}
}

func TestMemoryStore_SetRefreshesExisting(t *testing.T) {
	store := NewMemoryStore(10, time.Hour)
	ctx := context.Background()

	store.Set(ctx, Card{Name: "Opt", Found: false})
	store.Set(ctx, Card{Name: "Opt", OracleText: "Scry 1. Draw a card.", Found: true})

	got, err := store.Get(ctx, "Opt")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Found || got.OracleText == "" {
		t.Errorf("Re-set did not replace the entry: %+v", got)
	}

	n, _ := store.Len(ctx)
	if n != 1 {
		t.Errorf("Len = %d after duplicate set, want 1", n)
	}
}

func TestMemoryStore_Clear(t *testing.T) {
	store := NewMemoryStore(10, time.Hour)
	ctx := context.Background()

	store.Set(ctx, Card{Name: "Opt", Found: true})
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	n, _ := store.Len(ctx)
	if n != 0 {
		t.Errorf("Len after clear = %d, want 0", n)
	}
	if _, err := store.Get(ctx, "Opt"); !errors.Is(err, ErrCacheMiss) {
		t.Error("Entries should be gone after clear")
	}
}

func TestCard_Record(t *testing.T) {
	tests := []struct {
		name       string
		card       Card
		wantStatus string
	}{
		{name: "found", card: Card{Name: "Opt", Found: true}, wantStatus: api.StatusFound},
		{name: "not_found", card: Card{Name: "Nope", Found: false}, wantStatus: api.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.card.Record()
			if rec.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", rec.Status, tt.wantStatus)
			}
			if rec.Name != tt.card.Name {
				t.Errorf("Name = %q, want %q", rec.Name, tt.card.Name)
			}
		})
	}
}
