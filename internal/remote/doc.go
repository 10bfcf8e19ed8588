// Package remote defines the boundary to the authoritative remote document
// store: an opaque key-value document API with get/set/delete/subscribe
// operations and observable connectivity/auth signals.
//
// Two implementations are provided:
//
//   - MongoStore: the production adapter, backed by MongoDB. Save uses
//     field-level merge semantics ($set), matching the contract that fields
//     absent from a payload are preserved remotely. Subscribe is backed by
//     a change stream.
//   - MemoryStore: a fully in-process store with synchronous subscription
//     delivery and failure injection. Used by tests, the conformance
//     harness, and the CLI's --local mode.
//
// Absence is represented as a nil Document, not an error; the sync engine
// treats "does not exist" as a normal state.
package remote
