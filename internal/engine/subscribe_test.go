package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"choirsync/internal/domain"
	"choirsync/internal/mirror"
	"choirsync/internal/remote"
)

// recordFingerprint adapts the domain fingerprint to incoming documents.
func recordFingerprint(doc remote.Document) string {
	rec, err := domain.RecordFromDocument("", doc)
	if err != nil {
		return ""
	}
	return rec.Fingerprint()
}

// localState is a scriptable CurrentState for shield tests.
type localState struct {
	presentIDs []string
	title      string
}

func (s *localState) current() (string, bool) {
	return domain.RecordFingerprint(s.presentIDs, s.title), len(s.presentIDs) == 0 && s.title == ""
}

func subscribeAttendance(f *fixture, docID string, state *localState, applied *[]remote.Document) {
	f.engine.SubscribeLatest(SubscriptionSpec{
		Collection:  "attendance_records",
		DocID:       docID,
		Fingerprint: recordFingerprint,
		Current:     state.current,
		Apply: func(doc remote.Document) {
			*applied = append(*applied, doc)
		},
	})
}

func TestFlickerShield_SuppressesMatchingPush(t *testing.T) {
	f := newFixture(t)
	state := &localState{presentIDs: []string{"ASC-001", "ASC-002"}, title: "X"}
	var applied []remote.Document
	subscribeAttendance(f, "2025-06-01", state, &applied)

	// Identical content with reordered IDs - the echo of our own write.
	f.remote.Push("attendance_records", "2025-06-01", remote.Document{
		"presentIds": []any{"ASC-002", "ASC-001"},
		"title":      "X",
	})
	f.engine.ProcessPending(context.Background())

	assert.Empty(t, applied, "matching push must not invoke the apply callback")
}

func TestFlickerShield_PassesThroughDifferingPush(t *testing.T) {
	f := newFixture(t)
	state := &localState{presentIDs: []string{"ASC-001", "ASC-002"}, title: "X"}
	var applied []remote.Document
	subscribeAttendance(f, "2025-06-01", state, &applied)

	f.remote.Push("attendance_records", "2025-06-01", remote.Document{
		"presentIds": []any{"ASC-001"},
		"title":      "X",
	})
	f.engine.ProcessPending(context.Background())

	require.Len(t, applied, 1, "differing push must invoke the apply callback")
	assert.Equal(t, []any{"ASC-001"}, applied[0]["presentIds"])
}

func TestFlickerShield_ShieldedPushStillRefreshesMirror(t *testing.T) {
	f := newFixture(t)
	state := &localState{presentIDs: []string{"ASC-001"}, title: ""}
	var applied []remote.Document
	subscribeAttendance(f, "2025-06-01", state, &applied)

	f.remote.Push("attendance_records", "2025-06-01", remote.Document{
		"presentIds": []any{"ASC-001"},
		"title":      "",
	})
	f.engine.ProcessPending(context.Background())

	assert.Empty(t, applied)
	assert.NotNil(t, f.mirrorDoc(t, "attendance_records", "2025-06-01"),
		"mirror tracks the newest remote value even when shielded")
}

func TestSubscription_DeletionEchoSuppressedWhenLocalEmpty(t *testing.T) {
	f := newFixture(t)
	state := &localState{}
	var applied []remote.Document
	subscribeAttendance(f, "2025-06-01", state, &applied)

	f.remote.Push("attendance_records", "2025-06-01", nil)
	f.engine.ProcessPending(context.Background())

	assert.Empty(t, applied, "deletion echo with empty local state is a no-op")
}

func TestSubscription_DeletionAppliedWhenLocalNonEmpty(t *testing.T) {
	f := newFixture(t)
	state := &localState{presentIDs: []string{"ASC-001"}}
	var applied []remote.Document
	subscribeAttendance(f, "2025-06-01", state, &applied)
	f.mirror.Put(mirror.Key("attendance_records", "2025-06-01"), `{"presentIds":["ASC-001"]}`)

	f.remote.Push("attendance_records", "2025-06-01", nil)
	f.engine.ProcessPending(context.Background())

	require.Len(t, applied, 1)
	assert.Nil(t, applied[0], "remote deletion resets local state")
	assert.Nil(t, f.mirrorDoc(t, "attendance_records", "2025-06-01"),
		"mirror entry purged on applied deletion")
}

func TestSubscribeLatest_ReplacesPriorSubscription(t *testing.T) {
	f := newFixture(t)
	state := &localState{presentIDs: []string{"decoy"}}
	var applied []remote.Document

	subscribeAttendance(f, "2025-06-01", state, &applied)
	require.Equal(t, 1, f.remote.SubscriberCount("attendance_records", "2025-06-01"))

	// Navigating to a new date retargets the slot.
	subscribeAttendance(f, "2025-06-08", state, &applied)
	assert.Zero(t, f.remote.SubscriberCount("attendance_records", "2025-06-01"),
		"old listener torn down before the new one starts")
	assert.Equal(t, 1, f.remote.SubscriberCount("attendance_records", "2025-06-08"))
}

func TestSubscription_StaleGenerationPushDropped(t *testing.T) {
	f := newFixture(t)
	state := &localState{presentIDs: []string{"ASC-001"}}
	var applied []remote.Document
	subscribeAttendance(f, "2025-06-01", state, &applied)

	// A push from the old date arrives after navigation but before the
	// event loop runs.
	f.remote.Push("attendance_records", "2025-06-01", remote.Document{
		"presentIds": []any{"ASC-999"},
	})
	subscribeAttendance(f, "2025-06-08", state, &applied)
	f.engine.ProcessPending(context.Background())

	assert.Empty(t, applied, "stale-date push must not corrupt current-date state")
}

func TestSubscribeLatest_SetupFailureIsInactive(t *testing.T) {
	f := newFixture(t)
	f.remote.SetSubscribeErr(errors.New("watch unsupported"))

	state := &localState{}
	var applied []remote.Document
	subscribeAttendance(f, "2025-06-01", state, &applied)

	// No subscription, no pushes, no panic; cached state keeps working.
	f.remote.SetSubscribeErr(nil)
	f.remote.Push("attendance_records", "2025-06-01", remote.Document{"title": "X"})
	f.engine.ProcessPending(context.Background())
	assert.Empty(t, applied)
}

func TestSubscription_RosterSlotUnfiltered(t *testing.T) {
	f := newFixture(t)
	var applied []remote.Document

	f.engine.SubscribeLatest(SubscriptionSpec{
		Collection: "app_data",
		DocID:      "members_list",
		Apply: func(doc remote.Document) {
			applied = append(applied, doc)
		},
	})

	f.remote.Push("app_data", "members_list", remote.Document{"members": []any{}})
	f.engine.ProcessPending(context.Background())

	require.Len(t, applied, 1, "roster pushes apply unfiltered")
}

func TestUnsubscribeSlot(t *testing.T) {
	f := newFixture(t)
	state := &localState{presentIDs: []string{"ASC-001"}}
	var applied []remote.Document
	subscribeAttendance(f, "2025-06-01", state, &applied)

	f.engine.UnsubscribeSlot("attendance_records")
	assert.Zero(t, f.remote.SubscriberCount("attendance_records", "2025-06-01"))
}
