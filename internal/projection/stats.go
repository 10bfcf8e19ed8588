package projection

import (
	"slices"
	"time"

	"choirsync/internal/domain"
)

// recomputeStatsLocked rebuilds every member's attendance counters from
// the full record cache. Callers must hold s.mu.
//
// Only Sundays count toward service totals and only Saturdays toward
// practice totals; records on any other weekday are ignored. Directors
// carry no counters at all. An absence is only charged when the record
// proves a session happened (at least one member present) and the member
// was not exempt in the record's own snapshot, so an empty or pre-roster
// date never manufactures absences.
func (s *State) recomputeStatsLocked() {
	for i := range s.members {
		s.members[i].ServicePresents = 0
		s.members[i].ServiceAbsents = 0
		s.members[i].PracticePresents = 0
		s.members[i].PracticeAbsents = 0
	}

	for _, rec := range s.records {
		date, err := time.ParseInLocation("2006-01-02", rec.Key(), time.Local)
		if err != nil {
			continue
		}
		wd := date.Weekday()
		if wd != time.Sunday && wd != time.Saturday {
			continue
		}
		isService := wd == time.Sunday
		sessionHeld := len(rec.PresentIDs) > 0

		for i := range s.members {
			m := &s.members[i]
			if m.IsDirector {
				continue
			}

			if slices.Contains(rec.PresentIDs, m.ID) {
				if isService {
					m.ServicePresents++
				} else {
					m.PracticePresents++
				}
				continue
			}

			if sessionHeld && !wasExempt(rec, m.ID) {
				if isService {
					m.ServiceAbsents++
				} else {
					m.PracticeAbsents++
				}
			}
		}
	}
}

// wasExempt consults the record's own member snapshot, not the current
// roster: exemption is judged as of the session date.
func wasExempt(rec *domain.AttendanceRecord, id string) bool {
	for _, snap := range rec.Members {
		if snap.ID == id {
			return snap.Labels.AtCebu
		}
	}
	return false
}
