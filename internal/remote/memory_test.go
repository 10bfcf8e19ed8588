package remote

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SaveMergesFields(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "attendance_records", "2025-06-01", Document{
		"title": "Sunday Service", "presentIds": []any{"ASC-001"},
	}))
	require.NoError(t, s.Save(ctx, "attendance_records", "2025-06-01", Document{
		"title": "Special Service",
	}))

	doc, err := s.FetchOne(ctx, "attendance_records", "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, "Special Service", doc["title"])
	assert.Equal(t, []any{"ASC-001"}, doc["presentIds"], "fields absent from payload are preserved")
}

func TestMemoryStore_FetchOneAbsent(t *testing.T) {
	s := NewMemoryStore()

	doc, err := s.FetchOne(context.Background(), "attendance_records", "missing")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestMemoryStore_SubscribeEchoesOwnWrites(t *testing.T) {
	s := NewMemoryStore()

	var got []Document
	unsub, err := s.Subscribe("attendance_records", "2025-06-01", func(doc Document) {
		got = append(got, doc)
	})
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, s.Save(context.Background(), "attendance_records", "2025-06-01", Document{"title": "X"}))
	require.Len(t, got, 1)
	assert.Equal(t, "X", got[0]["title"])
}

func TestMemoryStore_DeleteNotifiesNil(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "attendance_records", "2025-06-01", Document{"title": "X"}))

	var got []Document
	pushed := false
	unsub, err := s.Subscribe("attendance_records", "2025-06-01", func(doc Document) {
		got = append(got, doc)
		pushed = true
	})
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, s.Delete(ctx, "attendance_records", "2025-06-01"))
	require.True(t, pushed)
	assert.Nil(t, got[len(got)-1])
}

func TestMemoryStore_Unsubscribe(t *testing.T) {
	s := NewMemoryStore()

	calls := 0
	unsub, err := s.Subscribe("attendance_records", "2025-06-01", func(Document) { calls++ })
	require.NoError(t, err)

	unsub()
	unsub() // safe to call twice

	s.Push("attendance_records", "2025-06-01", Document{"title": "X"})
	assert.Zero(t, calls)
	assert.Zero(t, s.SubscriberCount("attendance_records", "2025-06-01"))
}

func TestMemoryStore_OfflineFailsRemoteOps(t *testing.T) {
	s := NewMemoryStore()
	s.SetOnline(false)
	ctx := context.Background()

	assert.False(t, s.Online())
	assert.Error(t, s.Save(ctx, "c", "d", Document{}))
	_, err := s.FetchOne(ctx, "c", "d")
	assert.Error(t, err)
}

func TestMemoryStore_SaveErrInjection(t *testing.T) {
	s := NewMemoryStore()
	boom := errors.New("boom")
	s.SetSaveErr(boom)

	err := s.Save(context.Background(), "c", "d", Document{})
	assert.ErrorIs(t, err, boom)

	s.SetSaveErr(nil)
	assert.NoError(t, s.Save(context.Background(), "c", "d", Document{}))
}

func TestMemoryStore_PushSimulatesForeignWrite(t *testing.T) {
	s := NewMemoryStore()

	var got Document
	unsub, err := s.Subscribe("app_data", "members_list", func(doc Document) { got = doc })
	require.NoError(t, err)
	defer unsub()

	s.Push("app_data", "members_list", Document{"members": []any{}})
	require.NotNil(t, got)

	// Pushed documents are also fetchable afterwards.
	doc, err := s.FetchOne(context.Background(), "app_data", "members_list")
	require.NoError(t, err)
	assert.NotNil(t, doc)
}
