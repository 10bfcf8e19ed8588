package domain

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// RecordFingerprint computes the canonical comparison form of a record's
// meaningful content: the sorted, comma-joined present IDs plus the
// NFC-normalized title.
//
// The flicker shield compares fingerprints, so two records with the same
// members present in a different order, or titles differing only in Unicode
// representation, are considered identical.
func RecordFingerprint(presentIDs []string, title string) string {
	ids := make([]string, len(presentIDs))
	copy(ids, presentIDs)
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString(strings.Join(ids, ","))
	b.WriteByte('|')
	b.WriteString(norm.NFC.String(title))
	return b.String()
}
