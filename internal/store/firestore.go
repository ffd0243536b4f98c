package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/rumor-ml/deckhand/internal/log"
)

// FirestoreStore implements Store against a Firestore project. Document
// metadata (IDs, created/modified stamps, visibility) is assigned by the
// backend; this client only ships editable fields.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore connects to the Firestore project. credsPath may be
// empty, in which case Application Default Credentials are used.
func NewFirestoreStore(ctx context.Context, projectID, credsPath string) (*FirestoreStore, error) {
	conf := &firebase.Config{ProjectID: projectID}

	var opts []option.ClientOption
	if credsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credsPath))
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing Firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating Firestore client: %w", err)
	}

	log.Info(log.CatStore, "Firestore client ready", "project", projectID)
	return &FirestoreStore{client: client}, nil
}

// Close releases the underlying client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// Create adds a new document and returns its server-assigned ID.
func (s *FirestoreStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := checkReserved(fields); err != nil {
		return "", err
	}

	ref, _, err := s.client.Collection(collection).Add(ctx, fields)
	if err != nil {
		log.Error(log.CatStore, "create failed", "collection", collection, "kind", Kind(err))
		return "", fmt.Errorf("creating document in %s: %w", collection, err)
	}

	log.Debug(log.CatStore, "created document", "collection", collection, "id", ref.ID)
	return ref.ID, nil
}

// Update merges the given fields onto an existing document.
func (s *FirestoreStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := checkReserved(fields); err != nil {
		return err
	}

	_, err := s.client.Collection(collection).Doc(id).Set(ctx, fields, firestore.MergeAll)
	if err != nil {
		log.Error(log.CatStore, "update failed", "collection", collection, "id", id, "kind", Kind(err))
		return fmt.Errorf("updating document %s/%s: %w", collection, id, err)
	}

	log.Debug(log.CatStore, "updated document", "collection", collection, "id", id)
	return nil
}

// Query returns all documents whose field equals value, in stored order.
func (s *FirestoreStore) Query(ctx context.Context, collection, field string, value any) ([]Document, error) {
	q := s.client.Collection(collection).Query
	if field != "" {
		q = q.Where(field, "==", value)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var docs []Document
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("querying %s: %w", collection, err)
		}
		docs = append(docs, Document{ID: snap.Ref.ID, Fields: snap.Data()})
	}

	return docs, nil
}

var _ Store = (*FirestoreStore)(nil)
