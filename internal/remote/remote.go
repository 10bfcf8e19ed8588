package remote

import "context"

// Document is the opaque document body exchanged with the remote store.
// A nil Document signals "does not exist".
type Document = map[string]any

// ChangeFunc receives the full current document on every remote change,
// including the echo of the subscriber's own writes. A nil document means
// the document was deleted or does not exist.
type ChangeFunc func(doc Document)

// Unsubscribe tears down an active subscription. Safe to call more than
// once.
type Unsubscribe func()

// Store is the remote document store contract.
//
// Save upserts with field-level merge semantics: fields not present in the
// payload are preserved on the remote side. FetchOne returns (nil, nil)
// for an absent document.
type Store interface {
	FetchOne(ctx context.Context, collection, docID string) (Document, error)
	FetchAll(ctx context.Context, collection string) (map[string]Document, error)
	Save(ctx context.Context, collection, docID string, payload Document) error
	Delete(ctx context.Context, collection, docID string) error
	Subscribe(collection, docID string, onChange ChangeFunc) (Unsubscribe, error)
}

// Status exposes the connectivity and authentication signals the sync
// engine consults before attempting remote operations.
type Status interface {
	Online() bool
	Authenticated() bool
}
