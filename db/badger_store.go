// ABOUTME: Badger implementation of the document Store
// ABOUTME: Keys documents as collection/zero-padded-id so prefix scans return them in id order
package db

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// BadgerStore keeps documents in an embedded Badger key-value store.
type BadgerStore struct {
	db  *badger.DB
	log *zap.Logger
}

// OpenBadgerStore opens (or creates) a Badger directory at path.
func OpenBadgerStore(path string, log *zap.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(filepath.Clean(path))
	opts.Logger = nil
	return openBadger(opts, log)
}

// OpenBadgerInMemory opens a Badger store that never touches disk.
func OpenBadgerInMemory(log *zap.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return openBadger(opts, log)
}

func openBadger(opts badger.Options, log *zap.Logger) (*BadgerStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &BadgerStore{db: db, log: log}, nil
}

func (s *BadgerStore) Close() error {
	return Error.Wrap(s.db.Close())
}

func docPrefix(collection string) []byte {
	return []byte(collection + "/")
}

func docKey(collection string, id int64) []byte {
	return []byte(fmt.Sprintf("%s/%020d", collection, id))
}

func seqKey(collection string) []byte {
	return []byte("_seq/" + collection)
}

func (s *BadgerStore) Get(ctx context.Context, collection string, id int64) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(docKey(collection, id))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound.New("%s %d", collection, id)
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return out, nil
}

func (s *BadgerStore) FindAll(ctx context.Context, collection string, filter Filter) ([][]byte, error) {
	if _, err := filter.keys(); err != nil {
		return nil, err
	}

	var docs [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = docPrefix(collection)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			ok, err := filter.match(val)
			if err != nil {
				return err
			}
			if ok {
				docs = append(docs, val)
			}
		}
		return nil
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return docs, nil
}

func (s *BadgerStore) Insert(ctx context.Context, collection string, id int64, doc []byte) error {
	key := docKey(collection, id)
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return ErrDuplicate.New("%s %d", collection, id)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, doc)
	})
	if ErrDuplicate.Has(err) {
		return err
	}
	if err != nil {
		return Error.Wrap(err)
	}
	s.log.Debug("document inserted", zap.String("collection", collection), zap.Int64("id", id))
	return nil
}

func (s *BadgerStore) Replace(ctx context.Context, collection string, id int64, doc []byte) error {
	key := docKey(collection, id)
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Set(key, doc)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound.New("%s %d", collection, id)
	}
	return Error.Wrap(err)
}

func (s *BadgerStore) Delete(ctx context.Context, collection string, id int64) error {
	key := docKey(collection, id)
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound.New("%s %d", collection, id)
	}
	if err != nil {
		return Error.Wrap(err)
	}
	s.log.Debug("document deleted", zap.String("collection", collection), zap.Int64("id", id))
	return nil
}

func (s *BadgerStore) NextID(ctx context.Context, collection string) (int64, error) {
	var next int64
	err := s.db.Update(func(txn *badger.Txn) error {
		var seq int64
		item, err := txn.Get(seqKey(collection))
		switch {
		case err == nil:
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			seq, err = strconv.ParseInt(string(val), 10, 64)
			if err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		maxID, err := s.maxID(txn, collection)
		if err != nil {
			return err
		}

		next = seq
		if maxID > next {
			next = maxID
		}
		next++
		return txn.Set(seqKey(collection), []byte(strconv.FormatInt(next, 10)))
	})
	if err != nil {
		return 0, Error.Wrap(err)
	}
	return next, nil
}

// maxID returns the highest stored id in the collection, or 0 when empty.
func (s *BadgerStore) maxID(txn *badger.Txn, collection string) (int64, error) {
	prefix := docPrefix(collection)
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	it.Seek(append(append([]byte{}, prefix...), 0xFF))
	if !it.Valid() {
		return 0, nil
	}
	key := it.Item().Key()
	id, err := strconv.ParseInt(string(key[len(prefix):]), 10, 64)
	if err != nil {
		return 0, err
	}
	return id, nil
}
