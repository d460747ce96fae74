package extension

import (
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// memoryOptions keeps everything in RAM; used by tests and when no database
// path is configured.
func memoryOptions() badger.Options {
	return badger.DefaultOptions("").
		WithInMemory(true).
		WithNumVersionsToKeep(1).
		WithNumGoroutines(1).
		WithLogger(nil)
}

// OpenDB opens the badger database at path, or an in-memory one when path is empty.
func OpenDB(path string) (*badger.DB, error) {
	if path == "" {
		return badger.Open(memoryOptions())
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	opts := badger.DefaultOptions(path).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}
