package engine

import (
	"errors"
	"fmt"
)

// SyncError represents a failure detected while reconciling local and
// remote state.
//
// Per the propagation policy, sync errors never interrupt the caller: they
// are logged, and the operation either degrades to the retry queue (writes)
// or to cached values (reads). The structured form exists for diagnostics.
type SyncError struct {
	// Code identifies the error category.
	Code SyncErrorCode

	// Collection and DocID identify the affected document.
	Collection string
	DocID      string

	// Op is the correlation token of the originating operation.
	Op string

	// Err is the underlying error, if any.
	Err error
}

// SyncErrorCode categorizes sync errors.
type SyncErrorCode string

const (
	// ErrCodeOffline indicates the platform reports no connectivity.
	ErrCodeOffline SyncErrorCode = "OFFLINE"

	// ErrCodeUnauthenticated indicates no authenticated session exists.
	ErrCodeUnauthenticated SyncErrorCode = "UNAUTHENTICATED"

	// ErrCodeRemote indicates a remote operation failed (network,
	// permission, timeout). Treated as transient for writes.
	ErrCodeRemote SyncErrorCode = "REMOTE_FAILED"

	// ErrCodeCorruptCache indicates a mirrored value failed to decode.
	// The affected key is treated as absent.
	ErrCodeCorruptCache SyncErrorCode = "CORRUPT_CACHE"

	// ErrCodeSubscribe indicates subscription setup failed; the
	// subscription is treated as inactive.
	ErrCodeSubscribe SyncErrorCode = "SUBSCRIBE_FAILED"
)

// Error implements the error interface.
func (e *SyncError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s/%s: %v", e.Code, e.Collection, e.DocID, e.Err)
	}
	return fmt.Sprintf("%s: %s/%s", e.Code, e.Collection, e.DocID)
}

// Unwrap returns the underlying error.
func (e *SyncError) Unwrap() error { return e.Err }

// IsRemoteError reports whether err is a remote-failure sync error.
// Uses errors.As to handle wrapped errors.
func IsRemoteError(err error) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code == ErrCodeRemote
	}
	return false
}

func newSyncError(code SyncErrorCode, collection, docID, op string, err error) *SyncError {
	return &SyncError{Code: code, Collection: collection, DocID: docID, Op: op, Err: err}
}
