package storage

import "testing"

// TestLRUKBasicOrdering replays the canonical scenario: with k=2 and seven
// frames, verify eviction order follows backward k-distance with
// least-recently-used tie-breaking among frames that have fewer than k
// recorded accesses.
func TestLRUKBasicOrdering(t *testing.T) {
	p := NewLRUKPolicy(2)

	for i := FrameID(1); i <= 6; i++ {
		p.RecordAccess(i, AccessLookup)
	}
	for i := FrameID(1); i <= 5; i++ {
		p.SetEvictable(i, true)
	}
	p.SetEvictable(6, false)

	if got := p.Size(); got != 5 {
		t.Fatalf("Size after initial setup: got %d, want 5", got)
	}

	p.RecordAccess(1, AccessLookup)

	wantOrder := []FrameID{2, 3, 4}
	for _, want := range wantOrder {
		got, ok := p.Evict()
		if !ok || got != want {
			t.Fatalf("Evict: got (%d,%v), want (%d,true)", got, ok, want)
		}
	}
	if got := p.Size(); got != 2 {
		t.Fatalf("Size after three evictions: got %d, want 2", got)
	}

	p.RecordAccess(3, AccessLookup)
	p.RecordAccess(4, AccessLookup)
	p.RecordAccess(5, AccessLookup)
	p.RecordAccess(4, AccessLookup)
	p.SetEvictable(3, true)
	p.SetEvictable(4, true)

	if got := p.Size(); got != 4 {
		t.Fatalf("Size: got %d, want 4", got)
	}

	if got, ok := p.Evict(); !ok || got != 3 {
		t.Fatalf("Evict: got (%d,%v), want (3,true)", got, ok)
	}
	if got := p.Size(); got != 3 {
		t.Fatalf("Size: got %d, want 3", got)
	}

	p.SetEvictable(6, true)
	if got, ok := p.Evict(); !ok || got != 6 {
		t.Fatalf("Evict: got (%d,%v), want (6,true)", got, ok)
	}

	p.SetEvictable(1, false)
	if got, ok := p.Evict(); !ok || got != 5 {
		t.Fatalf("Evict: got (%d,%v), want (5,true)", got, ok)
	}

	p.RecordAccess(1, AccessLookup)
	p.RecordAccess(1, AccessLookup)
	p.SetEvictable(1, true)

	if got, ok := p.Evict(); !ok || got != 4 {
		t.Fatalf("Evict: got (%d,%v), want (4,true)", got, ok)
	}
	if got, ok := p.Evict(); !ok || got != 1 {
		t.Fatalf("Evict: got (%d,%v), want (1,true)", got, ok)
	}

	if _, ok := p.Evict(); ok {
		t.Fatalf("Evict on empty policy should return ok=false")
	}
}

func TestSetEvictableUnknownFramePanics(t *testing.T) {
	p := NewLRUKPolicy(2)

	defer func() {
		if recover() == nil {
			t.Fatal("SetEvictable on unknown frame should panic")
		}
	}()
	p.SetEvictable(99, true)
}

func TestRemoveIsNoOpOnUnknown(t *testing.T) {
	p := NewLRUKPolicy(2)
	p.Remove(1) // must not panic
}

func TestHistoryBoundedByK(t *testing.T) {
	p := NewLRUKPolicy(3)
	for i := 0; i < 10; i++ {
		p.RecordAccess(1, AccessLookup)
	}
	p.SetEvictable(1, true)
	node := p.nodes[1]
	if node.history.Len() != 3 {
		t.Fatalf("history length: got %d, want 3", node.history.Len())
	}
}
