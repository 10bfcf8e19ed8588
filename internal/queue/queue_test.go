package queue

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"choirsync/internal/mirror"
)

func openTestMirror(t *testing.T) *mirror.Store {
	t.Helper()
	m, err := mirror.Open(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestEnqueue_DeduplicatesPerKey(t *testing.T) {
	q := Open(openTestMirror(t))

	q.Enqueue("attendance_records", "2025-06-01", map[string]any{"title": "first"})
	q.Enqueue("attendance_records", "2025-06-01", map[string]any{"title": "second"})

	entries := q.Entries()
	require.Len(t, entries, 1, "same key must leave exactly one entry")
	assert.Equal(t, "second", entries[0].Payload["title"], "newer enqueue wins")
}

func TestEnqueue_RefreshesTimestamp(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	q := OpenWithNow(openTestMirror(t), func() time.Time { return now })

	q.Enqueue("attendance_records", "2025-06-01", nil)
	first := q.Entries()[0].EnqueuedAt

	now = now.Add(5 * time.Second)
	q.Enqueue("attendance_records", "2025-06-01", nil)
	second := q.Entries()[0].EnqueuedAt

	assert.Equal(t, first+5000, second)
}

func TestDequeue_Idempotent(t *testing.T) {
	q := Open(openTestMirror(t))

	q.Enqueue("attendance_records", "2025-06-01", nil)
	q.Dequeue("attendance_records", "2025-06-01")
	assert.Equal(t, 0, q.Len())

	// Removing an absent entry is not an error.
	q.Dequeue("attendance_records", "2025-06-01")
	assert.Equal(t, 0, q.Len())
}

func TestQueue_SurvivesReopen(t *testing.T) {
	m := openTestMirror(t)

	q1 := Open(m)
	q1.Enqueue("attendance_records", "2025-06-01", map[string]any{"presentIds": []any{"ASC-001"}})
	q1.Enqueue("app_data", "members_list", map[string]any{})

	q2 := Open(m)
	entries := q2.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "2025-06-01", entries[0].DocID)
	assert.Equal(t, "members_list", entries[1].DocID)
}

func TestOpen_CorruptBlobTreatedAsEmpty(t *testing.T) {
	m := openTestMirror(t)
	m.Put(mirror.KeySyncQueue, "{not json")

	q := Open(m)
	assert.Equal(t, 0, q.Len())
}

func TestDrain_RemovesOnlySuccesses(t *testing.T) {
	q := Open(openTestMirror(t))

	q.Enqueue("attendance_records", "2025-06-01", nil)
	q.Enqueue("attendance_records", "2025-06-08", nil)
	q.Enqueue("attendance_records", "2025-06-15", nil)

	delivered := q.Drain(func(e Entry) bool {
		return e.DocID != "2025-06-08"
	})

	assert.Equal(t, 2, delivered)
	entries := q.Entries()
	require.Len(t, entries, 1, "failed entry stays for the next drain")
	assert.Equal(t, "2025-06-08", entries[0].DocID)
}

func TestDrain_EmptyQueueIsNoOp(t *testing.T) {
	q := Open(openTestMirror(t))

	called := false
	delivered := q.Drain(func(Entry) bool { called = true; return true })

	assert.Zero(t, delivered)
	assert.False(t, called)
}

func TestDrain_PreservesInsertionOrder(t *testing.T) {
	q := Open(openTestMirror(t))

	q.Enqueue("attendance_records", "2025-06-01", nil)
	q.Enqueue("attendance_records", "2025-06-08", nil)
	// Re-enqueue of the first key keeps its position.
	q.Enqueue("attendance_records", "2025-06-01", map[string]any{"v": "2"})

	var order []string
	q.Drain(func(e Entry) bool {
		order = append(order, e.DocID)
		return true
	})
	assert.Equal(t, []string{"2025-06-01", "2025-06-08"}, order)
}
