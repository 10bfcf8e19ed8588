package engine

import (
	"log/slog"
	"sync"

	"choirsync/internal/mirror"
	"choirsync/internal/remote"
)

// ApplyFunc receives an incoming remote document that passed the flicker
// shield and is now authoritative. A nil document means the document was
// deleted remotely and local state should reset.
type ApplyFunc func(doc remote.Document)

// CurrentState supplies the local-authoritative in-memory state for the
// shield comparison: its canonical fingerprint and whether it is logically
// empty.
type CurrentState func() (fingerprint string, empty bool)

// Fingerprinter computes the canonical fingerprint of an incoming remote
// document, comparable against CurrentState's fingerprint.
type Fingerprinter func(doc remote.Document) string

// SubscriptionSpec describes a live document subscription.
//
// Fingerprint and Current may both be nil, in which case every push is
// applied unfiltered (used for the roster document, which has no local
// edit path to shield).
type SubscriptionSpec struct {
	Collection string
	DocID      string

	Fingerprint Fingerprinter
	Current     CurrentState
	Apply       ApplyFunc
}

// subscription is one active slot entry.
type subscription struct {
	spec        SubscriptionSpec
	gen         int64
	unsubscribe remote.Unsubscribe
}

// subscriptionTable holds one active subscription per collection slot.
// The attendance slot is retargeted on every date navigation; the roster
// slot lives for the process lifetime.
type subscriptionTable struct {
	mu      sync.Mutex
	slots   map[string]*subscription
	nextGen int64
}

func newSubscriptionTable() *subscriptionTable {
	return &subscriptionTable{slots: make(map[string]*subscription)}
}

// replace tears down the slot's previous subscription, installs the new
// spec and returns its generation number. Pushes from the old generation
// are discarded by the event loop even if they were already in flight.
func (t *subscriptionTable) replace(spec SubscriptionSpec) (*subscription, int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.slots[spec.Collection]; ok && old.unsubscribe != nil {
		old.unsubscribe()
	}

	t.nextGen++
	sub := &subscription{spec: spec, gen: t.nextGen}
	t.slots[spec.Collection] = sub
	return sub, t.nextGen
}

// active returns the slot's current subscription if its generation
// matches.
func (t *subscriptionTable) active(collection string, gen int64) (*subscription, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sub, ok := t.slots[collection]
	if !ok || sub.gen != gen {
		return nil, false
	}
	return sub, true
}

// setUnsubscribe attaches the teardown handle to a slot entry, unless the
// slot was already retargeted, in which case the handle is invoked
// immediately.
func (t *subscriptionTable) setUnsubscribe(sub *subscription, unsubscribe remote.Unsubscribe) {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := t.slots[sub.spec.Collection]
	if !ok || current.gen != sub.gen {
		unsubscribe()
		return
	}
	sub.unsubscribe = unsubscribe
}

// remove tears down one slot.
func (t *subscriptionTable) remove(collection string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if sub, ok := t.slots[collection]; ok {
		if sub.unsubscribe != nil {
			sub.unsubscribe()
		}
		delete(t.slots, collection)
	}
}

// closeAll tears down every slot.
func (t *subscriptionTable) closeAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for collection, sub := range t.slots {
		if sub.unsubscribe != nil {
			sub.unsubscribe()
		}
		delete(t.slots, collection)
	}
}

// SubscribeLatest maintains a one-document-at-a-time subscription per
// collection slot: subscribing to a new docID in the same collection first
// tears down the prior listener, so a stale-date callback can never
// corrupt current-date state.
//
// Pushes are routed through the engine event loop, where the flicker
// shield decides whether the apply callback runs (see handleRemoteChange).
//
// Setup failure is logged and the subscription left inactive; the caller
// continues operating on last-known cached state.
func (e *Engine) SubscribeLatest(spec SubscriptionSpec) {
	sub, gen := e.subs.replace(spec)

	unsubscribe, err := e.remote.Subscribe(spec.Collection, spec.DocID, func(doc remote.Document) {
		e.events.enqueue(event{
			typ:        eventRemoteChange,
			collection: spec.Collection,
			docID:      spec.DocID,
			doc:        doc,
			gen:        gen,
		})
	})
	if err != nil {
		slog.Warn("subscription setup failed",
			"collection", spec.Collection, "doc", spec.DocID,
			"error", newSyncError(ErrCodeSubscribe, spec.Collection, spec.DocID, "", err))
		return
	}

	e.subs.setUnsubscribe(sub, unsubscribe)
	slog.Debug("subscription active", "collection", spec.Collection, "doc", spec.DocID, "gen", gen)
}

// UnsubscribeSlot cancels interest in a collection's current subscription.
// In-flight writes for that document are unaffected; their results still
// land in the mirror and retry queue.
func (e *Engine) UnsubscribeSlot(collection string) {
	e.subs.remove(collection)
}

// handleRemoteChange applies the anti-flicker protocol to one push.
// Runs on the event loop goroutine only.
func (e *Engine) handleRemoteChange(ev event) {
	sub, ok := e.subs.active(ev.collection, ev.gen)
	if !ok {
		slog.Debug("dropping push from stale subscription",
			"collection", ev.collection, "doc", ev.docID, "gen", ev.gen)
		return
	}
	spec := sub.spec

	if ev.doc == nil {
		// Deleted remotely. If local state is already empty the UI
		// already reflects the deletion - suppress the redundant refresh.
		if spec.Current != nil {
			if _, empty := spec.Current(); empty {
				slog.Debug("suppressing deletion echo: local state already empty",
					"collection", ev.collection, "doc", ev.docID)
				return
			}
		}
		e.mirror.Remove(mirror.Key(ev.collection, ev.docID))
		if spec.Apply != nil {
			spec.Apply(nil)
		}
		return
	}

	// The mirror always tracks the newest remote value, shielded or not.
	e.mirrorPut(ev.collection, ev.docID, ev.doc)

	if spec.Fingerprint != nil && spec.Current != nil {
		incoming := spec.Fingerprint(ev.doc)
		local, _ := spec.Current()
		if incoming == local {
			slog.Debug("flicker shielded: push matches local state",
				"collection", ev.collection, "doc", ev.docID)
			return
		}
	}

	if spec.Apply != nil {
		spec.Apply(ev.doc)
	}
}
