package remote

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Store with synchronous subscription
// delivery. It doubles as the test double for the sync engine and as the
// backing store for the CLI's --local mode.
//
// Connectivity and authentication are plain flags settable by the caller,
// which makes offline/online transitions scriptable in tests. Failure
// injection: SetSaveErr forces Save to fail, exercising the retry path.
type MemoryStore struct {
	mu            sync.Mutex
	collections   map[string]map[string]Document
	subs          map[string][]*memorySub
	nextSub       int
	online        bool
	authenticated bool
	saveErr       error
	subscribeErr  error
}

type memorySub struct {
	id       int
	key      string
	onChange ChangeFunc
}

// NewMemoryStore creates an empty MemoryStore that reports online and
// authenticated.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections:   make(map[string]map[string]Document),
		subs:          make(map[string][]*memorySub),
		online:        true,
		authenticated: true,
	}
}

// SetOnline flips the connectivity signal.
func (s *MemoryStore) SetOnline(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = v
}

// SetAuthenticated flips the authentication signal.
func (s *MemoryStore) SetAuthenticated(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = v
}

// SetSaveErr makes subsequent Save calls fail with err (nil restores
// normal behavior).
func (s *MemoryStore) SetSaveErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// SetSubscribeErr makes subsequent Subscribe calls fail with err.
func (s *MemoryStore) SetSubscribeErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribeErr = err
}

// Online implements Status.
func (s *MemoryStore) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// Authenticated implements Status.
func (s *MemoryStore) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// FetchOne returns the stored document, or (nil, nil) when absent.
func (s *MemoryStore) FetchOne(_ context.Context, collection, docID string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.online {
		return nil, fmt.Errorf("remote store offline")
	}
	doc, ok := s.collections[collection][docID]
	if !ok {
		return nil, nil
	}
	return cloneDoc(doc), nil
}

// FetchAll returns every document in a collection, keyed by document ID.
func (s *MemoryStore) FetchAll(_ context.Context, collection string) (map[string]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.online {
		return nil, fmt.Errorf("remote store offline")
	}
	out := make(map[string]Document, len(s.collections[collection]))
	for id, doc := range s.collections[collection] {
		out[id] = cloneDoc(doc)
	}
	return out, nil
}

// Save upserts with field-merge semantics and synchronously notifies
// subscribers, echoing the write back to its own subscriber if any.
func (s *MemoryStore) Save(_ context.Context, collection, docID string, payload Document) error {
	s.mu.Lock()

	if s.saveErr != nil {
		err := s.saveErr
		s.mu.Unlock()
		return err
	}
	if !s.online {
		s.mu.Unlock()
		return fmt.Errorf("remote store offline")
	}

	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]Document)
		s.collections[collection] = coll
	}
	doc, ok := coll[docID]
	if !ok {
		doc = make(Document)
		coll[docID] = doc
	}
	// Merge: fields absent from the payload are preserved.
	for k, v := range payload {
		doc[k] = v
	}

	subs, snapshot := s.subscribersLocked(collection, docID), cloneDoc(doc)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.onChange(cloneDoc(snapshot))
	}
	return nil
}

// Delete removes a document and notifies subscribers with nil.
func (s *MemoryStore) Delete(_ context.Context, collection, docID string) error {
	s.mu.Lock()

	if !s.online {
		s.mu.Unlock()
		return fmt.Errorf("remote store offline")
	}
	delete(s.collections[collection], docID)

	subs := s.subscribersLocked(collection, docID)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.onChange(nil)
	}
	return nil
}

// Subscribe registers onChange for a single document and returns an
// unsubscribe handle. Delivery is synchronous with the triggering write.
func (s *MemoryStore) Subscribe(collection, docID string, onChange ChangeFunc) (Unsubscribe, error) {
	s.mu.Lock()

	if s.subscribeErr != nil {
		err := s.subscribeErr
		s.mu.Unlock()
		return nil, err
	}

	key := collection + "/" + docID
	sub := &memorySub{id: s.nextSub, key: key, onChange: onChange}
	s.nextSub++
	s.subs[key] = append(s.subs[key], sub)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			subs := s.subs[key]
			for i, candidate := range subs {
				if candidate.id == sub.id {
					s.subs[key] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
		})
	}, nil
}

// Push injects a remote-origin change, as if another client had written
// the document. A nil doc simulates a remote deletion.
func (s *MemoryStore) Push(collection, docID string, doc Document) {
	s.mu.Lock()

	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]Document)
		s.collections[collection] = coll
	}
	if doc == nil {
		delete(coll, docID)
	} else {
		coll[docID] = cloneDoc(doc)
	}

	subs := s.subscribersLocked(collection, docID)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.onChange(cloneDoc(doc))
	}
}

// SubscriberCount reports active subscriptions for a document. Test hook.
func (s *MemoryStore) SubscriberCount(collection, docID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[collection+"/"+docID])
}

func (s *MemoryStore) subscribersLocked(collection, docID string) []*memorySub {
	subs := s.subs[collection+"/"+docID]
	out := make([]*memorySub, len(subs))
	copy(out, subs)
	return out
}

func cloneDoc(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
