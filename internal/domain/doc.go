// Package domain defines the core data model for choirsync: choir members,
// per-date attendance records, and the normalization rules applied at the
// data-model boundary.
//
// Two normalization concerns live here deliberately:
//
// Record keying:
// Historical documents carry the calendar date redundantly in both "id" and
// "date". Instead of checking both fields at every call site, documents are
// normalized once on ingestion (see AttendanceRecord.Normalize) and the rest
// of the codebase uses Key() as the single canonical identity.
//
// Fingerprints:
// The sync engine suppresses remote pushes whose content matches the current
// local state (the flicker shield). That comparison must be insensitive to
// presentIds ordering and Unicode representation of the title, so the
// canonical form is computed here, next to the types it describes.
package domain
