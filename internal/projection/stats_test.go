package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"choirsync/internal/domain"
)

func statsState(members []domain.Member, records ...*domain.AttendanceRecord) *State {
	s := &State{
		members: members,
		records: make(map[string]*domain.AttendanceRecord, len(records)),
	}
	for _, rec := range records {
		s.records[rec.Key()] = rec
	}
	s.recomputeStatsLocked()
	return s
}

func TestStats_SundayIsServiceSaturdayIsPractice(t *testing.T) {
	s := statsState(
		[]domain.Member{{ID: "M1", Name: "Maria"}},
		&domain.AttendanceRecord{ID: "2025-06-01", PresentIDs: []string{"M1"}}, // Sunday
		&domain.AttendanceRecord{ID: "2025-06-07", PresentIDs: []string{"M1"}}, // Saturday
	)

	m := s.members[0]
	assert.Equal(t, 1, m.ServicePresents)
	assert.Equal(t, 1, m.PracticePresents)
	assert.Zero(t, m.ServiceAbsents)
	assert.Zero(t, m.PracticeAbsents)
}

func TestStats_WeekdayRecordsIgnored(t *testing.T) {
	s := statsState(
		[]domain.Member{{ID: "M1"}},
		&domain.AttendanceRecord{ID: "2025-06-04", PresentIDs: []string{"M1"}}, // Wednesday
	)

	m := s.members[0]
	assert.Zero(t, m.ServicePresents)
	assert.Zero(t, m.PracticePresents)
}

func TestStats_AbsenceRequiresSessionEvidence(t *testing.T) {
	s := statsState(
		[]domain.Member{{ID: "M1"}, {ID: "M2"}},
		// Nobody present: no session happened, nobody is charged an absence.
		&domain.AttendanceRecord{ID: "2025-06-01"},
		// M1 present proves the session; M2 is charged.
		&domain.AttendanceRecord{ID: "2025-06-08", PresentIDs: []string{"M1"}},
	)

	assert.Zero(t, s.members[0].ServiceAbsents)
	assert.Equal(t, 1, s.members[1].ServiceAbsents)
}

func TestStats_SnapshotExemptionBlocksAbsence(t *testing.T) {
	s := statsState(
		[]domain.Member{{ID: "M1"}, {ID: "M2"}},
		&domain.AttendanceRecord{
			ID:         "2025-06-01",
			PresentIDs: []string{"M1"},
			Members: []domain.MemberSnapshot{
				{ID: "M2", Labels: domain.SnapshotLabels{AtCebu: true}},
			},
		},
	)

	// M2 is judged by the record's snapshot, even if the roster flag has
	// since been cleared.
	assert.Zero(t, s.members[1].ServiceAbsents)
}

func TestStats_DirectorsCarryNoCounters(t *testing.T) {
	s := statsState(
		[]domain.Member{
			{ID: "M1"},
			{ID: "D1", IsDirector: true},
		},
		&domain.AttendanceRecord{ID: "2025-06-01", PresentIDs: []string{"M1", "D1"}},
		&domain.AttendanceRecord{ID: "2025-06-08", PresentIDs: []string{"M1"}},
	)

	d := s.members[1]
	assert.Zero(t, d.ServicePresents)
	assert.Zero(t, d.ServiceAbsents)
}

func TestStats_RecomputeResetsPriorCounters(t *testing.T) {
	s := statsState(
		[]domain.Member{{ID: "M1"}},
		&domain.AttendanceRecord{ID: "2025-06-01", PresentIDs: []string{"M1"}},
	)
	assert.Equal(t, 1, s.members[0].ServicePresents)

	delete(s.records, "2025-06-01")
	s.recomputeStatsLocked()
	assert.Zero(t, s.members[0].ServicePresents, "counters rebuilt from scratch, not accumulated")
}

func TestStats_MalformedDateKeySkipped(t *testing.T) {
	s := statsState(
		[]domain.Member{{ID: "M1"}},
		&domain.AttendanceRecord{ID: "not-a-date", PresentIDs: []string{"M1"}},
	)

	assert.Zero(t, s.members[0].ServicePresents)
	assert.Zero(t, s.members[0].PracticePresents)
}
