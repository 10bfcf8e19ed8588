package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Collection names in the remote document store.
const (
	CollectionAppData    = "app_data"
	CollectionAttendance = "attendance_records"
)

// DocMembersList is the singleton document in app_data holding the roster.
const DocMembersList = "members_list"

// DateKey formats a time as the local-time ISO date used to key attendance
// records (YYYY-MM-DD).
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// MemberSnapshot is the point-in-time copy of a member embedded in an
// attendance record at save time. It is an audit trail: snapshots are never
// re-derived from the current roster on read.
type MemberSnapshot struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Voice  string         `json:"voice"`
	Labels SnapshotLabels `json:"labels"`
	Status string         `json:"status"` // "present", "absent" or "exempt"
}

// SnapshotLabels captures the member flags at save time.
type SnapshotLabels struct {
	AtCebu       bool `json:"at_cebu"`
	MostlyAbsent bool `json:"mostly_absent"`
	IsLeader     bool `json:"is_leader"`
	IsDirector   bool `json:"is_director"`
}

// RecordStats is the headline count block stored with each record.
type RecordStats struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Exempt  int `json:"exempt"`
}

// AttendanceRecord is one calendar date's session.
//
// ID and Date both carry the date key; historical documents are inconsistent
// about which one is populated, so Normalize reconciles them on ingestion and
// Key() is the canonical identity everywhere else.
//
// AbsentIDs, ExemptIDs, Members and Stats are derived at save time from
// PresentIDs plus the roster; only PresentIDs is authoritative.
type AttendanceRecord struct {
	ID         string           `json:"id"`
	Date       string           `json:"date"`
	Title      string           `json:"title"`
	PresentIDs []string         `json:"presentIds"`
	AbsentIDs  []string         `json:"absentIds,omitempty"`
	ExemptIDs  []string         `json:"exemptIds,omitempty"`
	Members    []MemberSnapshot `json:"members,omitempty"`
	Stats      *RecordStats     `json:"stats,omitempty"`
	UpdatedAt  string           `json:"updatedAt,omitempty"`
}

// Key returns the canonical date key for the record, tolerating documents
// that populated only one of the two historical fields.
func (r *AttendanceRecord) Key() string {
	if r.ID != "" {
		return r.ID
	}
	return r.Date
}

// Normalize reconciles the redundant id/date fields so both carry the
// canonical key. Returns an error when neither field is populated, since a
// record with no key cannot be stored or matched.
func (r *AttendanceRecord) Normalize() error {
	key := r.Key()
	if key == "" {
		return fmt.Errorf("attendance record has neither id nor date")
	}
	r.ID = key
	r.Date = key
	return nil
}

// IsEmpty reports whether the record is logically deleted: a record with no
// present members must not exist as a persisted document.
func (r *AttendanceRecord) IsEmpty() bool {
	return len(r.PresentIDs) == 0
}

// Fingerprint returns the record's canonical comparison form for the
// flicker shield.
func (r *AttendanceRecord) Fingerprint() string {
	return RecordFingerprint(r.PresentIDs, r.Title)
}

// ToDocument converts the record to the generic document shape used at the
// remote store boundary.
func (r *AttendanceRecord) ToDocument() (map[string]any, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode attendance record: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode attendance record: %w", err)
	}
	return doc, nil
}

// RecordFromDocument decodes and normalizes a generic document into an
// AttendanceRecord. The key argument supplies the document ID for records
// whose body carries neither id nor date.
func RecordFromDocument(key string, doc map[string]any) (*AttendanceRecord, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document %s: %w", key, err)
	}
	var rec AttendanceRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", key, err)
	}
	if rec.ID == "" && rec.Date == "" {
		rec.ID = key
	}
	if err := rec.Normalize(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// MembersList is the app_data/members_list document body.
type MembersList struct {
	Members   []Member `json:"members"`
	UpdatedAt string   `json:"updatedAt,omitempty"`
}

// ToDocument converts the roster document to the generic document shape.
func (l *MembersList) ToDocument() (map[string]any, error) {
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("encode members list: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode members list: %w", err)
	}
	return doc, nil
}

// MembersListFromDocument decodes the roster document.
func MembersListFromDocument(doc map[string]any) (*MembersList, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode members list document: %w", err)
	}
	var list MembersList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode members list document: %w", err)
	}
	return &list, nil
}
