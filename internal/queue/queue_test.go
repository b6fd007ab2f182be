package queue

import (
	"sync"
	"testing"
)

var key9 = Key{Mode: "9", Format: "match"}

func TestSingleSlotPairing(t *testing.T) {
	q := New()

	if _, paired := q.Join(key9, "A"); paired {
		t.Fatal("A should wait, not pair")
	}
	peer, paired := q.Join(key9, "B")
	if !paired || peer != "A" {
		t.Fatalf("expected B to pair with A, got paired=%v peer=%q", paired, peer)
	}

	// The slot is empty again: C waits, D pairs with C.
	if _, paired := q.Join(key9, "C"); paired {
		t.Fatal("C should wait, not pair")
	}
	peer, paired = q.Join(key9, "D")
	if !paired || peer != "C" {
		t.Fatalf("expected D to pair with C, got paired=%v peer=%q", paired, peer)
	}
}

func TestRejoinSameConnectionReplacesSlot(t *testing.T) {
	q := New()
	q.Join(key9, "A")
	if _, paired := q.Join(key9, "A"); paired {
		t.Fatal("a connection must not pair with itself")
	}
	if w, ok := q.Waiting(key9); !ok || w != "A" {
		t.Fatalf("expected A still waiting, got %q", w)
	}
}

func TestDistinctKeysDoNotPair(t *testing.T) {
	q := New()
	q.Join(Key{Mode: "3", Format: "match"}, "A")
	if _, paired := q.Join(Key{Mode: "9", Format: "match"}, "B"); paired {
		t.Fatal("different modes must not pair")
	}
	if _, paired := q.Join(Key{Mode: "3", Format: "single"}, "C"); paired {
		t.Fatal("different formats must not pair")
	}
}

func TestSwitchingKeysVacatesOldSlot(t *testing.T) {
	q := New()
	key3 := Key{Mode: "3", Format: "match"}

	q.Join(key3, "A")
	q.Join(key9, "A") // A moves to another slot
	if _, ok := q.Waiting(key3); ok {
		t.Fatal("expected old slot vacated")
	}
	if w, _ := q.Waiting(key9); w != "A" {
		t.Fatalf("expected A in the new slot, got %q", w)
	}
}

func TestLeave(t *testing.T) {
	q := New()
	q.Join(key9, "A")
	q.Leave("A")
	if _, ok := q.Waiting(key9); ok {
		t.Fatal("expected slot vacated after leave")
	}

	// Leaving when not the waiter is a no-op.
	q.Join(key9, "B")
	q.Leave("A")
	if w, _ := q.Waiting(key9); w != "B" {
		t.Fatalf("leave by a non-waiter must not touch the slot, got %q", w)
	}
}

// TestConcurrentJoins races many joins at one key and checks that pairing
// stayed atomic: every connection is either in exactly one pair or left as
// the single waiter painted on the slot.
func TestConcurrentJoins(t *testing.T) {
	q := New()
	const n = 100

	var mu sync.Mutex
	paired := make(map[string]string)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id byte) {
			defer wg.Done()
			connID := string([]byte{'c', id})
			if peer, ok := q.Join(key9, connID); ok {
				mu.Lock()
				paired[connID] = peer
				mu.Unlock()
			}
		}(byte(i))
	}
	wg.Wait()

	seen := make(map[string]bool)
	for a, b := range paired {
		if seen[a] || seen[b] {
			t.Fatalf("connection paired twice: %q-%q", a, b)
		}
		seen[a] = true
		seen[b] = true
	}

	waiting := 0
	if _, ok := q.Waiting(key9); ok {
		waiting = 1
	}
	if len(seen)+waiting != n {
		t.Fatalf("expected %d connections accounted for, got %d paired + %d waiting",
			n, len(seen), waiting)
	}
}
