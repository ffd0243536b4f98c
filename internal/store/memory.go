package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rumor-ml/deckhand/internal/card"
)

// MemoryStore is an in-memory Store used by tests and offline runs. Unlike
// the Firestore client it stamps server-assigned metadata itself, playing
// the backend's role.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]any

	// Identity recorded into createdBy/modifiedBy stamps.
	Actor string

	// FailNext, when non-nil, is returned by the next write and then cleared.
	FailNext error

	// Delay, when set, is waited (or the context expires) before each write.
	Delay time.Duration

	creates int
	updates int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]map[string]any)}
}

// Create assigns a fresh ID, stamps metadata, and stores the document.
func (s *MemoryStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := checkReserved(fields); err != nil {
		return "", err
	}
	if err := s.gate(ctx); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++

	id := uuid.NewString()
	doc := make(map[string]any, len(fields)+5)
	for k, v := range fields {
		doc[k] = v
	}
	now := time.Now()
	doc[card.KeyCreatedBy] = s.Actor
	doc[card.KeyCreatedAt] = now
	doc[card.KeyModifiedBy] = s.Actor
	doc[card.KeyModifiedAt] = now
	doc[card.KeyVisible] = true

	coll := s.collections[collection]
	if coll == nil {
		coll = make(map[string]map[string]any)
		s.collections[collection] = coll
	}
	coll[id] = doc

	return id, nil
}

// Update merges fields onto an existing document and refreshes the
// modified stamps. Last write wins; there is no version check.
func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := checkReserved(fields); err != nil {
		return err
	}
	if err := s.gate(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.collections[collection][id]
	if doc == nil {
		return &Error{Kind: KindUnknown, Err: errNotFound(collection, id)}
	}
	s.updates++
	for k, v := range fields {
		doc[k] = v
	}
	doc[card.KeyModifiedBy] = s.Actor
	doc[card.KeyModifiedAt] = time.Now()

	return nil
}

// Query returns documents whose field equals value, or all documents in the
// collection when field is empty.
func (s *MemoryStore) Query(ctx context.Context, collection, field string, value any) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var docs []Document
	for id, doc := range s.collections[collection] {
		if field != "" && doc[field] != value {
			continue
		}
		copied := make(map[string]any, len(doc))
		for k, v := range doc {
			copied[k] = v
		}
		docs = append(docs, Document{ID: id, Fields: copied})
	}

	return docs, nil
}

// Get returns one stored document, or false if absent.
func (s *MemoryStore) Get(collection, id string) (Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.collections[collection][id]
	if doc == nil {
		return Document{}, false
	}
	copied := make(map[string]any, len(doc))
	for k, v := range doc {
		copied[k] = v
	}
	return Document{ID: id, Fields: copied}, true
}

// Writes returns how many creates and updates have been accepted.
func (s *MemoryStore) Writes() (creates, updates int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates, s.updates
}

// gate applies the injected delay and failure, if any.
func (s *MemoryStore) gate(ctx context.Context) error {
	s.mu.Lock()
	delay := s.Delay
	fail := s.FailNext
	s.FailNext = nil
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if fail != nil {
		return fail
	}
	return ctx.Err()
}

type errNotFoundT struct{ collection, id string }

func errNotFound(collection, id string) error {
	return &errNotFoundT{collection: collection, id: id}
}

func (e *errNotFoundT) Error() string {
	return "document not found: " + e.collection + "/" + e.id
}

var _ Store = (*MemoryStore)(nil)
