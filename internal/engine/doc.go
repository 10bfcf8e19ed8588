// Package engine implements the choirsync offline-first sync engine.
//
// The engine keeps three stores consistent under intermittent connectivity:
// the durable local mirror (package mirror), the retry queue (package queue)
// and the authoritative remote document store (package remote).
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Remote subscription pushes and drain triggers are funneled through a FIFO
// event queue and processed by one goroutine (Run). This serializes the
// flicker-shield comparison, mirror updates and apply callbacks, so
// interleaving remote completions can never race a local edit.
//
// Write-Through Ordering:
// SaveDocument writes the local mirror synchronously before any remote
// attempt. The local copy is durable by the time the call returns, which is
// what makes remote failure a soft failure: the write is queued and the
// caller proceeds as if it succeeded.
//
// Flicker Shield:
// A live subscription echoes the subscriber's own writes. Without
// suppression, a rapid local toggle produces a visible revert-then-reapply
// as the echo of an earlier remote state arrives after the optimistic local
// update. Incoming pushes whose canonical fingerprint matches the current
// local-authoritative state are therefore dropped before the apply callback.
//
// Drains:
// Three independent triggers request a queue drain - the online transition,
// the app becoming visible, and a periodic ticker. All three are funneled
// through the event loop, so drains are serialized and each operates on a
// snapshot of the queue taken at drain start.
package engine
