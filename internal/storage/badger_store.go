// Package storage is a small JSON entity store on top of badger.
package storage

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"tfview/internal/errors"

	"github.com/dgraph-io/badger/v4"
)

// Entity is anything stored under a string id.
type Entity interface {
	GetID() string
}

// BadgerStore keeps entities of type T under "<prefix>:<id>".
type BadgerStore[T Entity] struct {
	db     *badger.DB
	prefix string
}

func NewBadgerStore[T Entity](db *badger.DB, prefix string) *BadgerStore[T] {
	return &BadgerStore[T]{db: db, prefix: prefix}
}

func (s *BadgerStore[T]) makeKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", s.prefix, id))
}

func (s *BadgerStore[T]) keyPrefix() []byte {
	return []byte(s.prefix + ":")
}

// Put inserts or replaces entity.
func (s *BadgerStore[T]) Put(entity T) error {
	return s.PutAll([]T{entity})
}

// PutAll writes every entity in one transaction.
func (s *BadgerStore[T]) PutAll(entities []T) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, entity := range entities {
			id := entity.GetID()
			if id == "" {
				return errors.ValidationError("entity ID cannot be empty", nil)
			}
			data, err := json.Marshal(entity)
			if err != nil {
				return fmt.Errorf("marshaling entity %s: %w", id, err)
			}
			if err := txn.Set(s.makeKey(id), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get decodes the entity stored under id into out.
func (s *BadgerStore[T]) Get(id string, out T) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.makeKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return errors.NotFound(fmt.Sprintf("%s not found: %s", s.prefix, id))
	}
	return err
}

func (s *BadgerStore[T]) Exists(id string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(s.makeKey(id))
		return err
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *BadgerStore[T]) Delete(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := s.makeKey(id)
		if _, err := txn.Get(key); stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.NotFound(fmt.Sprintf("%s not found: %s", s.prefix, id))
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// Each walks every stored entity in key order. newT allocates the value to decode into.
func (s *BadgerStore[T]) Each(newT func() T, fn func(T) error) error {
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := s.keyPrefix()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			entity := newT()
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, entity)
			})
			if err != nil {
				return err
			}
			if err := fn(entity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("listing %s: %w", strings.TrimSuffix(string(s.keyPrefix()), ":"), err)
	}
	return nil
}
