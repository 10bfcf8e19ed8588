// Package queue implements the retry queue: a durable, per-document
// deduplicated list of pending remote writes awaiting successful delivery.
//
// The queue persists through the local mirror store under a single
// well-known key, so pending writes survive process restarts. The
// serialized format matches the historical client's queue blob
// (collection/id/data/timestamp), keeping old mirror files readable.
//
// Within the queue, writes are last-write-wins per (collection, docId):
// a newer enqueue replaces the payload and timestamp of an existing entry
// for the same key. Cross-key ordering follows insertion order but is not
// a delivery guarantee.
package queue
