package queue

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"choirsync/internal/mirror"
)

// Entry is one pending remote write. Field names follow the historical
// serialized queue format.
type Entry struct {
	Collection string         `json:"collection"`
	DocID      string         `json:"id"`
	Payload    map[string]any `json:"data"`
	EnqueuedAt int64          `json:"timestamp"` // milliseconds since epoch
}

// Sink attempts delivery of one entry, reporting success. A Sink must be
// idempotent: concurrent drain triggers may attempt the same entry twice,
// and a remote merge-write executed twice has the same effect as once.
type Sink func(Entry) bool

// Queue is the durable retry queue. At most one entry exists per
// (collection, docId) pair.
//
// Thread-safety: all methods are safe for concurrent use. In practice the
// sync engine's single-writer loop is the only caller.
type Queue struct {
	mu      sync.Mutex
	mirror  *mirror.Store
	entries []Entry
	now     func() time.Time
}

// Open loads the queue from the mirror store. A missing or malformed
// serialized queue is treated as empty with a logged warning, never an
// error: a corrupt blob must not abort startup.
func Open(m *mirror.Store) *Queue {
	q := &Queue{mirror: m, now: time.Now}

	raw, ok := m.Get(mirror.KeySyncQueue)
	if !ok {
		return q
	}
	if err := json.Unmarshal([]byte(raw), &q.entries); err != nil {
		slog.Warn("discarding corrupt sync queue", "error", err)
		q.entries = nil
	}
	return q
}

// OpenWithNow is Open with an injectable time source for tests.
func OpenWithNow(m *mirror.Store, now func() time.Time) *Queue {
	q := Open(m)
	q.now = now
	return q
}

// Enqueue upserts a pending write for (collection, docID). An existing
// entry for the same key keeps its queue position but takes the new
// payload and timestamp.
func (q *Queue) Enqueue(collection, docID string, payload map[string]any) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ts := q.now().UnixMilli()
	for i := range q.entries {
		if q.entries[i].Collection == collection && q.entries[i].DocID == docID {
			q.entries[i].Payload = payload
			q.entries[i].EnqueuedAt = ts
			q.persistLocked()
			return
		}
	}

	q.entries = append(q.entries, Entry{
		Collection: collection,
		DocID:      docID,
		Payload:    payload,
		EnqueuedAt: ts,
	})
	q.persistLocked()
}

// Dequeue removes the entry for (collection, docID) if present.
// Idempotent: removing an absent entry is not an error.
func (q *Queue) Dequeue(collection, docID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.entries[:0]
	removed := false
	for _, e := range q.entries {
		if e.Collection == collection && e.DocID == docID {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	if removed {
		q.entries = kept
		q.persistLocked()
	}
}

// Entries returns a snapshot of current entries in insertion order.
func (q *Queue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	snapshot := make([]Entry, len(q.entries))
	copy(snapshot, q.entries)
	return snapshot
}

// Len returns the number of pending entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Drain iterates a snapshot of current entries in insertion order,
// attempting delivery of each through sink. Entries that report success
// are removed; failures stay in place for the next drain. Returns the
// number of entries delivered.
//
// A drain over an empty queue is a no-op.
func (q *Queue) Drain(sink Sink) int {
	delivered := 0
	for _, e := range q.Entries() {
		if sink(e) {
			q.Dequeue(e.Collection, e.DocID)
			delivered++
		}
	}
	return delivered
}

// persistLocked rewrites the serialized queue in the mirror store.
// Callers must hold q.mu.
func (q *Queue) persistLocked() {
	raw, err := json.Marshal(q.entries)
	if err != nil {
		slog.Warn("failed to serialize sync queue", "error", err)
		return
	}
	q.mirror.Put(mirror.KeySyncQueue, string(raw))
}
