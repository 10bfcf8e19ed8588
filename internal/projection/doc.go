// Package projection maintains the in-memory application state fed by the
// sync engine: the member roster, the cached attendance record list, and
// the currently-viewed date's selection.
//
// The currently-viewed selection (currentPresentIds plus the day title) is
// the single source of truth for "who is marked present right now". On
// date navigation it is unconditionally reloaded from the cached or
// fetched record for the new date - never carried over.
//
// Statistics are recomputed from scratch from the full record cache on
// every cache change. The full recompute trades O(members x records) work
// for correctness simplicity, which is fine at tens of members times low
// hundreds of records.
//
// The state was a module-level mutable object in the historical client;
// here it is an explicit value constructed at startup and constructible
// fresh per test.
package projection
