// Package draftcache persists unsaved card drafts locally so an interrupted
// edit session can be resumed after a restart.
package draftcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/rumor-ml/deckhand/internal/card"
	"github.com/rumor-ml/deckhand/internal/log"
)

var draftsBucket = []byte("drafts")

// NewCardKey keys the draft of a card that has not been created yet.
const NewCardKey = "new"

// Cache stores drafts in a local bbolt file keyed by card ID.
type Cache struct {
	db *bolt.DB
}

// Open opens (or creates) the cache at path.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating draft cache directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening draft cache: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(draftsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing draft cache: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close releases the underlying database.
func (c *Cache) Close() error { return c.db.Close() }

// Put stores the draft under cardID, replacing any previous draft.
func (c *Cache) Put(cardID string, d card.Draft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding draft: %w", err)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(draftsBucket).Put([]byte(cardID), data)
	})
}

// Get returns the stored draft for cardID, or false if none exists.
func (c *Cache) Get(cardID string) (card.Draft, bool) {
	var d card.Draft
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(draftsBucket).Get([]byte(cardID))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &d); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		log.Warn(log.CatEditor, "draft cache read failed", "cardID", cardID, "error", err)
		return card.Draft{}, false
	}
	return d, found
}

// Delete removes the draft for cardID. Missing drafts are not an error.
func (c *Cache) Delete(cardID string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(draftsBucket).Delete([]byte(cardID))
	})
}
