package projection

import (
	"fmt"
	"strings"
)

// Report renders a plain-text attendance summary: the roster with
// per-member service/practice counters, followed by totals. The output is
// stable (roster order) so it can be snapshot-tested and diffed.
func (s *State) Report() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Roster: %d members, %d cached records\n", len(s.members), len(s.records))
	b.WriteString(strings.Repeat("-", 72) + "\n")
	fmt.Fprintf(&b, "%-28s %-14s %9s %9s\n", "NAME", "VOICE", "SERVICE", "PRACTICE")

	for _, m := range s.members {
		name := m.Name
		var tags []string
		if m.IsLeader {
			tags = append(tags, "leader")
		}
		if m.IsTreasurer {
			tags = append(tags, "treasurer")
		}
		if m.AtCebu {
			tags = append(tags, "at cebu")
		}
		if m.MostlyAbsent {
			tags = append(tags, "mostly absent")
		}
		if len(tags) > 0 {
			name = fmt.Sprintf("%s (%s)", name, strings.Join(tags, ", "))
		}

		if m.IsDirector {
			fmt.Fprintf(&b, "%-28s %-14s %9s %9s\n", name, m.VoiceType, "-", "-")
			continue
		}
		fmt.Fprintf(&b, "%-28s %-14s %4d/%-4d %4d/%-4d\n",
			name, m.VoiceType,
			m.ServicePresents, m.ServiceAbsents,
			m.PracticePresents, m.PracticeAbsents)
	}

	b.WriteString(strings.Repeat("-", 72) + "\n")
	fmt.Fprintf(&b, "Counters are present/absent; directors are not tracked.\n")
	return b.String()
}
