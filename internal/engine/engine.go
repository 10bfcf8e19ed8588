package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"choirsync/internal/mirror"
	"choirsync/internal/queue"
	"choirsync/internal/remote"
)

// DefaultDrainInterval is the period of the background drain ticker.
const DefaultDrainInterval = 60 * time.Second

// Engine orchestrates reads and writes across the local mirror store, the
// retry queue and the remote document store.
//
// Thread-safety model:
//   - SaveDocument / DeleteDocument / FetchDocument / LoadCollection:
//     safe from any goroutine (mirror and queue are internally locked)
//   - Run(): must be called from exactly one goroutine; all subscription
//     pushes and drains are processed there
//   - NotifyOnline() / NotifyVisible(): safe from any goroutine
type Engine struct {
	mirror *mirror.Store
	queue  *queue.Queue
	remote remote.Store
	status remote.Status

	clock         Clock
	opGen         TokenGenerator
	drainInterval time.Duration

	events *eventQueue
	subs   *subscriptionTable
}

// Option configures engine parameters.
type Option func(*Engine)

// WithClock overrides the wall clock used for updatedAt stamping.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithTokenGenerator overrides the op-token generator.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(e *Engine) { e.opGen = g }
}

// WithDrainInterval overrides the periodic drain interval.
func WithDrainInterval(d time.Duration) Option {
	return func(e *Engine) { e.drainInterval = d }
}

// New creates an Engine over the given stores.
func New(m *mirror.Store, q *queue.Queue, r remote.Store, status remote.Status, opts ...Option) *Engine {
	e := &Engine{
		mirror:        m,
		queue:         q,
		remote:        r,
		status:        status,
		clock:         SystemClock(),
		opGen:         UUIDv7Generator{},
		drainInterval: DefaultDrainInterval,
		events:        newEventQueue(),
		subs:          newSubscriptionTable(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// reachable reports whether remote operations are currently worth
// attempting.
func (e *Engine) reachable() bool {
	return e.status.Online() && e.status.Authenticated()
}

// SaveDocument saves a document through the write-through path:
//
//  1. The payload is written to the local mirror unconditionally and
//     synchronously - instant local durability.
//  2. If offline or unauthenticated, the write is queued for later.
//  3. Otherwise a remote save is attempted with updatedAt stamped to the
//     current time. Success removes any pending queue entry for this key;
//     failure queues the write.
//
// Remote failure is a soft failure: the local copy is already durable, so
// the operation is reported as locally successful and never surfaced as an
// error to the caller.
func (e *Engine) SaveDocument(ctx context.Context, collection, docID string, payload remote.Document) {
	op := e.opGen.Generate()

	e.mirrorPut(collection, docID, payload)

	if !e.reachable() {
		e.queue.Enqueue(collection, docID, payload)
		slog.Debug("save queued: remote unreachable",
			"collection", collection, "doc", docID, "op", op)
		return
	}

	if err := e.remote.Save(ctx, collection, docID, e.stamped(payload)); err != nil {
		e.queue.Enqueue(collection, docID, payload)
		slog.Warn("remote save failed, queued for retry",
			"collection", collection, "doc", docID, "op", op,
			"error", newSyncError(ErrCodeRemote, collection, docID, op, err))
		return
	}

	// Idempotent cleanup in case an earlier attempt for this key failed
	// and queued.
	e.queue.Dequeue(collection, docID)
	slog.Debug("document saved", "collection", collection, "doc", docID, "op", op)
}

// DeleteDocument actively removes a document from the local mirror, the
// retry queue and (when reachable) the remote store. Used for logically
// deleted records so empty placeholder documents never accumulate.
func (e *Engine) DeleteDocument(ctx context.Context, collection, docID string) {
	op := e.opGen.Generate()

	e.mirror.Remove(mirror.Key(collection, docID))
	e.queue.Dequeue(collection, docID)

	if !e.reachable() {
		slog.Debug("remote delete skipped: unreachable",
			"collection", collection, "doc", docID, "op", op)
		return
	}

	if err := e.remote.Delete(ctx, collection, docID); err != nil {
		slog.Warn("remote delete failed",
			"collection", collection, "doc", docID, "op", op,
			"error", newSyncError(ErrCodeRemote, collection, docID, op, err))
		return
	}
	slog.Debug("document deleted", "collection", collection, "doc", docID, "op", op)
}

// FetchDocument returns a document, preferring the remote store and
// falling back to the local mirror. A nil result means absent.
//
// When offline or unauthenticated the mirror value is returned directly.
// A successful remote fetch refreshes the mirror.
func (e *Engine) FetchDocument(ctx context.Context, collection, docID string) remote.Document {
	if !e.reachable() {
		return e.mirrorGet(collection, docID)
	}

	doc, err := e.remote.FetchOne(ctx, collection, docID)
	if err != nil {
		slog.Warn("remote fetch failed, falling back to mirror",
			"collection", collection, "doc", docID,
			"error", newSyncError(ErrCodeRemote, collection, docID, "", err))
		return e.mirrorGet(collection, docID)
	}
	if doc == nil {
		return nil
	}

	e.mirrorPut(collection, docID, doc)
	return doc
}

// LoadCollection loads every document of a collection, reconciling the
// local mirror with the remote store.
//
// The mirror is read first so a result is available without a network
// round-trip. When reachable, the remote collection is fetched and every
// locally-cached document that is absent remotely, or whose updatedAt is
// strictly newer than its remote counterpart, is pushed to remote. This
// reconciles edits made entirely offline across a full restart,
// defense-in-depth beyond the durable retry queue.
//
// Returns the merged view: remote documents plus local-only ones.
func (e *Engine) LoadCollection(ctx context.Context, collection string) map[string]remote.Document {
	local := e.mirrorScan(collection)

	if !e.reachable() {
		return local
	}

	remoteDocs, err := e.remote.FetchAll(ctx, collection)
	if err != nil {
		slog.Warn("remote collection fetch failed, using mirror",
			"collection", collection,
			"error", newSyncError(ErrCodeRemote, collection, "", "", err))
		return local
	}

	merged := make(map[string]remote.Document, len(remoteDocs)+len(local))
	for id, doc := range remoteDocs {
		merged[id] = doc
		e.mirrorPut(collection, id, doc)
	}

	for id, localDoc := range local {
		counterpart, exists := remoteDocs[id]
		if exists && !localNewer(localDoc, counterpart) {
			continue
		}
		slog.Info("migrating local record to remote", "collection", collection, "doc", id)
		e.SaveDocument(ctx, collection, id, localDoc)
		merged[id] = localDoc
	}

	return merged
}

// localNewer reports whether the local document should win migration:
// true when both sides carry updatedAt and the local one is strictly
// newer. Documents without timestamps on either side are left alone.
func localNewer(local, counterpart remote.Document) bool {
	localTS, _ := local["updatedAt"].(string)
	remoteTS, _ := counterpart["updatedAt"].(string)
	return localTS != "" && remoteTS != "" && localTS > remoteTS
}

// Drain attempts delivery of every queued write. No-op when the queue is
// empty or the remote store is unreachable. Failures stay queued.
func (e *Engine) Drain(ctx context.Context) int {
	if e.queue.Len() == 0 || !e.reachable() {
		return 0
	}

	op := e.opGen.Generate()
	slog.Info("draining sync queue", "pending", e.queue.Len(), "op", op)

	delivered := e.queue.Drain(func(entry queue.Entry) bool {
		err := e.remote.Save(ctx, entry.Collection, entry.DocID, e.stamped(entry.Payload))
		if err != nil {
			slog.Warn("queued save failed, will retry",
				"collection", entry.Collection, "doc", entry.DocID, "op", op,
				"error", err)
			return false
		}
		return true
	})

	slog.Info("drain finished", "delivered", delivered, "remaining", e.queue.Len(), "op", op)
	return delivered
}

// NotifyOnline signals a network offline-to-online transition.
// Requests a drain through the event loop; safe from any goroutine.
func (e *Engine) NotifyOnline() {
	e.events.enqueue(event{typ: eventDrain, reason: "online"})
}

// NotifyVisible signals the app becoming visible/active.
func (e *Engine) NotifyVisible() {
	e.events.enqueue(event{typ: eventDrain, reason: "visible"})
}

// Run starts the single-writer event loop: subscription pushes, drain
// triggers and the periodic drain ticker are all processed here. Blocks
// until ctx is cancelled or Stop is called.
//
// Must be called from exactly one goroutine.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("sync engine starting", "drain_interval", e.drainInterval)

	ticker := time.NewTicker(e.drainInterval)
	defer ticker.Stop()

	for {
		event, ok := e.events.tryDequeue()
		if ok {
			e.processEvent(ctx, event)
			continue
		}
		if e.events.isClosed() {
			slog.Info("sync engine stopping: queue closed")
			return nil
		}

		select {
		case <-ctx.Done():
			slog.Info("sync engine stopping: context cancelled")
			e.events.close()
			e.subs.closeAll()
			return ctx.Err()

		case <-ticker.C:
			e.Drain(ctx)

		case <-e.events.wait():
			// Loop back to tryDequeue. The signal also fires on close,
			// letting the loop observe shutdown.
		}
	}
}

// Stop gracefully shuts down the engine: tears down subscriptions and
// closes the event queue, causing Run to return.
func (e *Engine) Stop() {
	e.subs.closeAll()
	e.events.close()
}

// ProcessPending synchronously processes every queued event. Returns true
// if at least one event was handled. The Run loop uses it between waits;
// tests use it to step the engine deterministically.
func (e *Engine) ProcessPending(ctx context.Context) bool {
	handled := false
	for {
		event, ok := e.events.tryDequeue()
		if !ok {
			return handled
		}
		e.processEvent(ctx, event)
		handled = true
	}
}

func (e *Engine) processEvent(ctx context.Context, ev event) {
	switch ev.typ {
	case eventRemoteChange:
		e.handleRemoteChange(ev)
	case eventDrain:
		slog.Debug("drain requested", "reason", ev.reason)
		e.Drain(ctx)
	default:
		slog.Warn("unknown event type", "type", int(ev.typ))
	}
}

// stamped returns a copy of payload with updatedAt set to the current
// time. The caller's map is never mutated: the unstamped payload is what
// the mirror and queue hold.
func (e *Engine) stamped(payload remote.Document) remote.Document {
	out := make(remote.Document, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	out["updatedAt"] = Timestamp(e.clock.Now())
	return out
}

// mirrorPut serializes a document into the mirror. Best-effort, matching
// the mirror contract.
func (e *Engine) mirrorPut(collection, docID string, doc remote.Document) {
	raw, err := json.Marshal(doc)
	if err != nil {
		slog.Warn("cannot serialize document for mirror",
			"collection", collection, "doc", docID, "error", err)
		return
	}
	e.mirror.Put(mirror.Key(collection, docID), string(raw))
}

// mirrorGet reads a document back from the mirror. Corrupt values are
// discarded per-key and treated as absent.
func (e *Engine) mirrorGet(collection, docID string) remote.Document {
	raw, ok := e.mirror.Get(mirror.Key(collection, docID))
	if !ok {
		return nil
	}
	var doc remote.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		slog.Warn("discarding corrupt mirrored document",
			"collection", collection, "doc", docID,
			"error", newSyncError(ErrCodeCorruptCache, collection, docID, "", err))
		return nil
	}
	return doc
}

// mirrorScan reconstructs a collection's cached documents from the mirror.
// Corrupt entries are skipped per-key rather than aborting the load.
func (e *Engine) mirrorScan(collection string) map[string]remote.Document {
	prefix := collection + "-"
	docs := make(map[string]remote.Document)
	for _, key := range e.mirror.ListKeysWithPrefix(prefix) {
		docID := key[len(prefix):]
		if doc := e.mirrorGet(collection, docID); doc != nil {
			docs[docID] = doc
		}
	}
	return docs
}
