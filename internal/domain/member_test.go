package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMember_StripsRoleSuffixes(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantName  string
		leader    bool
		treasurer bool
		director  bool
	}{
		{"leader", "Maria Santos - Leader", "Maria Santos", true, false, false},
		{"treasurer", "Jose Cruz - Treasurer", "Jose Cruz", false, true, false},
		{"director", "Ana Reyes - Choir Director", "Ana Reyes", false, false, true},
		{"plain", "Jane Doe", "Jane Doe", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NormalizeMember(Member{Name: tt.raw}, "ASC", 0)
			assert.Equal(t, tt.wantName, m.Name)
			assert.Equal(t, tt.leader, m.IsLeader)
			assert.Equal(t, tt.treasurer, m.IsTreasurer)
			assert.Equal(t, tt.director, m.IsDirector)
		})
	}
}

func TestNormalizeMember_AssignsSequenceID(t *testing.T) {
	m := NormalizeMember(Member{Name: "Jane Doe"}, "ASC", 0)
	assert.Equal(t, "ASC-001", m.ID)

	m = NormalizeMember(Member{Name: "John Roe"}, "ASC", 11)
	assert.Equal(t, "ASC-012", m.ID)
}

func TestNormalizeMember_KeepsExistingID(t *testing.T) {
	m := NormalizeMember(Member{ID: "ASC-042", Name: "Jane Doe"}, "ASC", 0)
	assert.Equal(t, "ASC-042", m.ID)
}

func TestNormalizeMember_DefaultsVoiceType(t *testing.T) {
	m := NormalizeMember(Member{Name: "Jane Doe"}, "ASC", 0)
	assert.Equal(t, VoiceUnassigned, m.VoiceType)

	m = NormalizeMember(Member{Name: "Ana Reyes", VoiceType: VoiceDirector}, "ASC", 0)
	assert.True(t, m.IsDirector, "director voice type implies director flag")

	m = NormalizeMember(Member{Name: "Ramon Ilagan - Choir Director", VoiceType: VoiceBass}, "ASC", 0)
	assert.Equal(t, VoiceDirector, m.VoiceType, "director suffix overrides voice type")
}

func TestNormalizeMember_EmptyName(t *testing.T) {
	m := NormalizeMember(Member{}, "ASC", 3)
	assert.Equal(t, "Unknown Member", m.Name)
	assert.Equal(t, "ASC-004", m.ID)
}

func TestNormalizeRoster_UsesDefaultPrefix(t *testing.T) {
	roster := NormalizeRoster([]Member{{Name: "A"}, {Name: "B"}}, "")
	require.Len(t, roster, 2)
	assert.Equal(t, "ASC-001", roster[0].ID)
	assert.Equal(t, "ASC-002", roster[1].ID)
}

func TestMemberFlags_MutuallyExclusive(t *testing.T) {
	var m Member

	m.SetAtCebu(true)
	m.SetMostlyAbsent(true)
	assert.True(t, m.MostlyAbsent)
	assert.False(t, m.AtCebu, "setting mostly_absent clears at_cebu")

	m.SetAtCebu(true)
	assert.True(t, m.AtCebu)
	assert.False(t, m.MostlyAbsent, "setting at_cebu clears mostly_absent")
}

func TestNormalizeMember_BothFlagsInDocument(t *testing.T) {
	m := NormalizeMember(Member{Name: "X", AtCebu: true, MostlyAbsent: true}, "ASC", 0)
	assert.True(t, m.AtCebu)
	assert.False(t, m.MostlyAbsent)
}
