// Package mirror implements the local mirror store: a durable, synchronous
// key-value store holding the last-known value of every document the app has
// read or written, plus a handful of well-known bookkeeping keys.
//
// The store is the durability substrate for offline operation. Writes are
// best-effort by contract: a full or unavailable store degrades to a logged
// warning, never a returned error, because a failed local mirror write must
// not block the save path.
//
// Backed by SQLite with WAL mode. Key layout follows the historical client:
//
//	{collection}-{docId}   mirrored remote documents
//	firebase-sync-queue    serialized retry queue (see package queue)
//	lastOpenedDate         navigation bookmark
//	title-{date}           per-date title overrides
package mirror
