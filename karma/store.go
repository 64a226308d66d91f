// Package karma persists per-word counters. Keys are case-insensitive; they
// are lowercased and trimmed before any lookup or update.
package karma

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrEmptyKey is returned when a key is empty after normalization.
var ErrEmptyKey = errors.New("karma: empty key")

var bucketName = []byte("karma")

// A Store is a persistent counter store backed by a single database file.
// All methods are safe for concurrent use.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("karma: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("karma: create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Increment adds one to the key's counter and returns the new score.
func (store *Store) Increment(key string) (int64, error) {
	return store.apply(key, 1)
}

// Decrement subtracts one from the key's counter and returns the new score.
func (store *Store) Decrement(key string) (int64, error) {
	return store.apply(key, -1)
}

// Score returns the key's current counter without changing it. Unknown keys
// score zero.
func (store *Store) Score(key string) (int64, error) {
	key = Normalize(key)
	if key == "" {
		return 0, ErrEmptyKey
	}

	var score int64
	err := store.db.View(func(tx *bolt.Tx) error {
		score = decodeScore(tx.Bucket(bucketName).Get([]byte(key)))
		return nil
	})

	return score, err
}

// Close closes the underlying database.
func (store *Store) Close() error {
	return store.db.Close()
}

// apply performs an atomic read-modify-write of the key's counter.
func (store *Store) apply(key string, delta int64) (int64, error) {
	key = Normalize(key)
	if key == "" {
		return 0, ErrEmptyKey
	}

	var score int64
	err := store.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)

		score = decodeScore(bucket.Get([]byte(key))) + delta

		return bucket.Put([]byte(key), encodeScore(score))
	})
	if err != nil {
		return 0, fmt.Errorf("karma: update %q: %w", key, err)
	}

	return score, nil
}

// Normalize lowercases and trims a key the way the store indexes it.
func Normalize(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func encodeScore(score int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(score))
	return buf
}

func decodeScore(value []byte) int64 {
	if len(value) != 8 {
		return 0
	}

	return int64(binary.BigEndian.Uint64(value))
}
