package queue

import "sync"

// Key identifies one matchmaking slot: a game mode ("3" or "9") and a match
// format ("match" or "single").
type Key struct {
	Mode   string
	Format string
}

// Queue holds at most one waiting connection per key. A second arrival pairs
// immediately with the waiter; pairing and dequeue happen in one critical
// section so a third arrival can never double-pair.
type Queue struct {
	mu      sync.Mutex
	waiting map[Key]string // key -> waiting conn id
	keys    map[string]Key // waiting conn id -> its key
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		waiting: make(map[Key]string),
		keys:    make(map[string]Key),
	}
}

// Join registers connID for the key. If a different connection is already
// waiting there, that waiter is dequeued and returned with paired=true.
// Otherwise connID becomes the waiter (replacing itself harmlessly) and
// paired is false.
func (q *Queue) Join(key Key, connID string) (peerConnID string, paired bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if waiter, ok := q.waiting[key]; ok && waiter != connID {
		delete(q.waiting, key)
		delete(q.keys, waiter)
		return waiter, true
	}

	// A connection can only wait in one slot at a time.
	if prev, ok := q.keys[connID]; ok && prev != key {
		delete(q.waiting, prev)
	}
	q.waiting[key] = connID
	q.keys[connID] = key
	return "", false
}

// Leave removes connID if it is the current waiter for its key. Any other
// connection's slot is untouched.
func (q *Queue) Leave(connID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key, ok := q.keys[connID]
	if !ok {
		return
	}
	if q.waiting[key] == connID {
		delete(q.waiting, key)
	}
	delete(q.keys, connID)
}

// Waiting returns the current waiter for a key, if any.
func (q *Queue) Waiting(key Key) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	w, ok := q.waiting[key]
	return w, ok
}
