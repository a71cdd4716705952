// Package storage keeps exported bulk result tables so they can be downloaded
// by id after the request that produced them has finished.
//
// Results are stored in BoltDB when a data directory is configured, and in
// memory otherwise. Both stores expire entries older than a TTL on Purge.
// Session counters are never stored here.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const (
	resultsBucket = "results" // Bucket name for exported result tables
)

// ErrNotFound is returned when no result is stored under an id.
var ErrNotFound = errors.New("result not found")

// Result is one exported table.
type Result struct {
	ID       string    `json:"id"`
	FileName string    `json:"file_name"`
	Created  time.Time `json:"created"`
	Rows     int       `json:"rows"`
	Data     []byte    `json:"data"`
}

// ResultStore persists result tables by id.
type ResultStore interface {
	Put(r Result) (string, error)
	Get(id string) (Result, error)
	Purge(ttl time.Duration) (int, error)
	Close() error
}

// Store provides persistent storage for result tables using BoltDB.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// New opens (or creates) the database file at path and its bucket.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(resultsBucket)); err != nil {
			return fmt.Errorf("create results bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores r and returns its id. A new id is assigned when r.ID is empty,
// and Created defaults to now.
func (s *Store) Put(r Result) (string, error) {
	prepare(&r)

	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(resultsBucket)).Put([]byte(r.ID), data)
	})
	if err != nil {
		return "", fmt.Errorf("store result %s: %w", r.ID, err)
	}
	return r.ID, nil
}

// Get returns the result stored under id.
func (s *Store) Get(id string) (Result, error) {
	var r Result
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(resultsBucket)).Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &r)
	})
	if err != nil {
		return Result{}, err
	}
	return r, nil
}

// Purge deletes results created more than ttl ago and returns how many were
// removed. A non-positive ttl keeps everything. Malformed records are removed.
func (s *Store) Purge(ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-ttl)

	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(resultsBucket))

		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var r Result
			if err := json.Unmarshal(v, &r); err != nil || r.Created.Before(cutoff) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("delete %s: %w", k, err)
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

func prepare(r *Result) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Created.IsZero() {
		r.Created = time.Now()
	}
}
