package domain

import (
	"fmt"
	"strings"
)

// Voice types recognized by the roster. Unassigned is the default for
// imported members with no voice information.
const (
	VoiceSoprano    = "Soprano"
	VoiceAlto       = "Alto"
	VoiceTenor      = "Tenor"
	VoiceBass       = "Bass"
	VoiceDirector   = "Choir Director"
	VoiceUnassigned = "Unassigned"
)

// DefaultIDPrefix is used when generating member IDs and no prefix is
// configured.
const DefaultIDPrefix = "ASC"

// Role suffixes historically embedded in member display names. They are
// stripped from the stored name and converted to boolean flags at ingestion.
const (
	suffixLeader    = " - Leader"
	suffixTreasurer = " - Treasurer"
	suffixDirector  = " - Choir Director"
)

// Member is one choir member as held in the members_list document.
//
// Selected is session-local UI state ("present on the currently viewed
// date") and is never persisted on the member itself; the authoritative
// copy lives in the AttendanceRecord's presentIds. The four attendance
// counters are recomputed from the full record history on every cache
// refresh and are likewise never persisted.
type Member struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	VoiceType    string `json:"voice_type"`
	AtCebu       bool   `json:"at_cebu"`
	MostlyAbsent bool   `json:"mostly_absent"`
	IsLeader     bool   `json:"isLeader,omitempty"`
	IsTreasurer  bool   `json:"isTreasurer,omitempty"`
	IsDirector   bool   `json:"isDirector,omitempty"`

	Selected bool `json:"-"`

	ServicePresents  int `json:"-"`
	ServiceAbsents   int `json:"-"`
	PracticePresents int `json:"-"`
	PracticeAbsents  int `json:"-"`
}

// SetAtCebu sets or clears the at_cebu flag. The at_cebu and mostly_absent
// flags are mutually exclusive; setting one clears the other.
func (m *Member) SetAtCebu(v bool) {
	m.AtCebu = v
	if v {
		m.MostlyAbsent = false
	}
}

// SetMostlyAbsent sets or clears the mostly_absent flag, clearing at_cebu
// when set.
func (m *Member) SetMostlyAbsent(v bool) {
	m.MostlyAbsent = v
	if v {
		m.AtCebu = false
	}
}

// MemberID formats the deterministic sequence token assigned to members that
// arrive without an ID: PREFIX-NNN, 1-based, zero-padded to three digits.
// Once assigned the token is persisted with the roster and never regenerated.
func MemberID(prefix string, index int) string {
	if prefix == "" {
		prefix = DefaultIDPrefix
	}
	return fmt.Sprintf("%s-%03d", prefix, index+1)
}

// NormalizeMember applies ingestion normalization to a single raw roster
// entry: role suffixes are stripped from the name and converted to flags,
// missing IDs get a deterministic sequence token, and the voice type
// defaults to Unassigned.
//
// index is the member's position in the roster and is only consulted when
// the entry has no ID.
func NormalizeMember(m Member, prefix string, index int) Member {
	name := m.Name
	if name == "" {
		name = "Unknown Member"
	}

	if strings.Contains(name, suffixLeader) {
		m.IsLeader = true
	}
	if strings.Contains(name, suffixTreasurer) {
		m.IsTreasurer = true
	}
	if strings.Contains(name, suffixDirector) {
		m.IsDirector = true
		m.VoiceType = VoiceDirector
	}
	name = strings.ReplaceAll(name, suffixLeader, "")
	name = strings.ReplaceAll(name, suffixTreasurer, "")
	name = strings.ReplaceAll(name, suffixDirector, "")
	m.Name = strings.TrimSpace(name)

	if m.ID == "" {
		m.ID = MemberID(prefix, index)
	}
	if m.VoiceType == "" {
		m.VoiceType = VoiceUnassigned
	}
	if m.VoiceType == VoiceDirector {
		m.IsDirector = true
	}

	// Flags are mutually exclusive; at_cebu wins if a document carries both.
	if m.AtCebu && m.MostlyAbsent {
		m.MostlyAbsent = false
	}

	return m
}

// NormalizeRoster normalizes every entry of a raw roster in order.
func NormalizeRoster(raw []Member, prefix string) []Member {
	members := make([]Member, len(raw))
	for i, m := range raw {
		members[i] = NormalizeMember(m, prefix, i)
	}
	return members
}
