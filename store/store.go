// Package store persists PSBT documents exchanged between signers. Every
// copy put under a session id is merged into the stored document, so signers
// may submit their copies in any order and the store converges on the same
// result.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	psbt "github.com/ghost-coin/psbt-sdk"
	"github.com/ghost-coin/psbt-sdk/netparams"
)

var (
	// ErrNotFound is returned when no document is stored under an id.
	ErrNotFound = errors.New("psbt session not found")

	// ErrEmptyID is returned for an empty session id.
	ErrEmptyID = errors.New("empty session id")
)

var keyPrefix = []byte("psbt/")

// Store is a badger backed collection of documents keyed by session id. All
// documents in one store belong to the same network.
type Store struct {
	mu  sync.Mutex
	db  *badger.DB
	net *netparams.Params
}

// Open opens the store at dir. An empty dir opens a store that lives in
// memory only.
func Open(dir string, net *netparams.Params) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("unable to open store: %w", err)
	}

	return &Store{db: db, net: net}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put merges doc into the document stored under id and returns the result.
// Nothing is written when the merge fails.
func (s *Store) Put(id string, doc *psbt.Document) (*psbt.Document, error) {
	if id == "" {
		return nil, ErrEmptyID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var merged *psbt.Document
	err := s.db.Update(func(txn *badger.Txn) error {
		stored, err := s.get(txn, id)
		switch {
		case errors.Is(err, ErrNotFound):
			merged = doc.Clone()

		case err != nil:
			return err

		default:
			merged, err = psbt.Merge(stored, doc)
			if err != nil {
				return err
			}
		}

		raw, err := merged.Serialize()
		if err != nil {
			return err
		}
		return txn.Set(sessionKey(id), raw)
	})
	if err != nil {
		return nil, err
	}

	log.Debugf("Stored session %s", id)

	return merged, nil
}

// Get returns the document stored under id.
func (s *Store) Get(id string) (*psbt.Document, error) {
	var doc *psbt.Document
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		doc, err = s.get(txn, id)
		return err
	})
	return doc, err
}

// Delete removes the document stored under id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(sessionKey(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return txn.Delete(sessionKey(id))
	})
}

// List returns the ids of all stored sessions in key order.
func (s *Store) List() ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = keyPrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			ids = append(ids, string(key[len(keyPrefix):]))
		}
		return nil
	})
	return ids, err
}

func (s *Store) get(txn *badger.Txn, id string) (*psbt.Document, error) {
	item, err := txn.Get(sessionKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return psbt.Deserialize(raw, s.net)
}

func sessionKey(id string) []byte {
	return append(append([]byte{}, keyPrefix...), id...)
}
