// Package history persists parsed changesets so details views survive restarts
// without another round trip to the server.
package history

import (
	"sort"
	"strconv"

	"tfview/internal/changeset"
	"tfview/internal/storage"

	"github.com/dgraph-io/badger/v4"
)

const prefix = "changeset"

type Store struct {
	entities *storage.BadgerStore[*changeset.Changeset]
}

func NewStore(db *badger.DB) *Store {
	return &Store{entities: storage.NewBadgerStore[*changeset.Changeset](db, prefix)}
}

// Save records every changeset with a valid id. Changesets are immutable on the
// server, so rewriting an existing id is harmless.
func (s *Store) Save(changesets []changeset.Changeset) error {
	valid := make([]*changeset.Changeset, 0, len(changesets))
	for i := range changesets {
		if changesets[i].ID == changeset.InvalidID {
			continue
		}
		valid = append(valid, &changesets[i])
	}
	if len(valid) == 0 {
		return nil
	}
	return s.entities.PutAll(valid)
}

func (s *Store) Get(id int) (*changeset.Changeset, error) {
	cs := &changeset.Changeset{}
	if err := s.entities.Get(strconv.Itoa(id), cs); err != nil {
		return nil, err
	}
	return cs, nil
}

// List returns all stored changesets, newest first.
func (s *Store) List() ([]changeset.Changeset, error) {
	out := []changeset.Changeset{}
	err := s.entities.Each(
		func() *changeset.Changeset { return &changeset.Changeset{} },
		func(cs *changeset.Changeset) error {
			out = append(out, *cs)
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}
