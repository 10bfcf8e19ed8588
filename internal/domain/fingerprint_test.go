package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordFingerprint_OrderInsensitive(t *testing.T) {
	a := RecordFingerprint([]string{"ASC-001", "ASC-002"}, "Sunday Service")
	b := RecordFingerprint([]string{"ASC-002", "ASC-001"}, "Sunday Service")
	assert.Equal(t, a, b)
}

func TestRecordFingerprint_ContentSensitive(t *testing.T) {
	a := RecordFingerprint([]string{"ASC-001", "ASC-002"}, "X")
	b := RecordFingerprint([]string{"ASC-001"}, "X")
	c := RecordFingerprint([]string{"ASC-001", "ASC-002"}, "Y")
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestRecordFingerprint_DoesNotMutateInput(t *testing.T) {
	ids := []string{"ASC-002", "ASC-001"}
	RecordFingerprint(ids, "")
	assert.Equal(t, []string{"ASC-002", "ASC-001"}, ids)
}

func TestRecordFingerprint_UnicodeTitle(t *testing.T) {
	// "é" as a single code point vs "e" + combining acute
	a := RecordFingerprint(nil, "Caf\u00e9")
	b := RecordFingerprint(nil, "Cafe\u0301")
	assert.Equal(t, a, b)
}

func TestRecordFingerprint_Empty(t *testing.T) {
	assert.Equal(t, "|", RecordFingerprint(nil, ""))
}
