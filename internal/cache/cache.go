// Package cache keeps file content fetched at a fixed changeset version.
//
// Content at C<id> never changes on the server, so it is safe to keep forever.
// Entries live in badger (zstd-compressed when it pays off) with a small LRU in
// front. Latest-version lookups always bypass the cache.
package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"tfview/internal/errors"
	"tfview/internal/logging"
	"tfview/shared/utils"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const (
	metaPrefix = "view:"
	blobPrefix = "blob:"
)

// Meta describes one cached (path, version) pair.
type Meta struct {
	Path       string    `json:"path"`
	Version    string    `json:"version"`
	Hash       string    `json:"hash"`
	Size       int       `json:"size"`
	Compressed bool      `json:"compressed"`
	CreatedAt  time.Time `json:"created_at"`
}

// Source is the uncached content fetcher, normally *tf.Client.
type Source interface {
	View(ctx context.Context, path, version string) (string, error)
}

type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

// Cache implements Source by memoizing an underlying Source.
type Cache struct {
	db     *badger.DB
	lru    *lru.Cache[string, string]
	zstd   *compressor
	source Source
	logger *logging.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
}

type Options struct {
	Size        int
	Compression CompressionOptions
}

func New(db *badger.DB, source Source, opts Options, logger *logging.Logger) (*Cache, error) {
	if opts.Size <= 0 {
		opts.Size = 256
	}
	if opts.Compression == (CompressionOptions{}) {
		opts.Compression = DefaultCompressionOptions()
	}
	if logger == nil {
		logger = logging.Nop()
	}

	mem, err := lru.New[string, string](opts.Size)
	if err != nil {
		return nil, fmt.Errorf("creating lru: %w", err)
	}
	comp, err := newCompressor(opts.Compression)
	if err != nil {
		return nil, err
	}
	return &Cache{db: db, lru: mem, zstd: comp, source: source, logger: logger}, nil
}

// Cacheable reports whether version pins immutable content.
func Cacheable(version string) bool {
	return strings.HasPrefix(version, "C") && len(version) > 1
}

func key(path, version string) string {
	return path + "@" + version
}

// View returns content at version, consulting the cache for changeset versions.
func (c *Cache) View(ctx context.Context, path, version string) (string, error) {
	if !Cacheable(version) {
		return c.source.View(ctx, path, version)
	}

	k := key(path, version)
	if content, ok := c.lru.Get(k); ok {
		c.hits.Add(1)
		return content, nil
	}

	content, err := c.load(path, version)
	if err == nil {
		c.hits.Add(1)
		c.lru.Add(k, content)
		return content, nil
	}
	if errors.TypeOf(err) != errors.ErrorTypeNotFound {
		c.logger.Warn("reading cached content", zap.String("key", k), zap.Error(err))
	}

	c.misses.Add(1)
	content, err = c.source.View(ctx, path, version)
	if err != nil {
		return "", err
	}
	if err := c.store(path, version, content); err != nil {
		c.logger.Warn("caching content", zap.String("key", k), zap.Error(err))
	}
	c.lru.Add(k, content)
	return content, nil
}

func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

func (c *Cache) store(path, version, content string) error {
	raw := []byte(content)
	payload, compressed := c.zstd.compress(raw)
	meta := Meta{
		Path:       path,
		Version:    version,
		Hash:       utils.HashContent(raw),
		Size:       len(raw),
		Compressed: compressed,
		CreatedAt:  time.Now(),
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	// Identical content at different versions shares one blob.
	return c.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(blobPrefix+meta.Hash), payload); err != nil {
			return err
		}
		return txn.Set([]byte(metaPrefix+key(path, version)), data)
	})
}

func (c *Cache) load(path, version string) (string, error) {
	var meta Meta
	var payload []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaPrefix + key(path, version)))
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &meta) }); err != nil {
			return err
		}
		blob, err := txn.Get([]byte(blobPrefix + meta.Hash))
		if err != nil {
			return err
		}
		payload, err = blob.ValueCopy(nil)
		return err
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return "", errors.NotFound("content not cached: " + key(path, version))
	}
	if err != nil {
		return "", err
	}

	raw := payload
	if meta.Compressed {
		raw, err = c.zstd.decompress(payload)
		if err != nil {
			return "", fmt.Errorf("decompressing content: %w", err)
		}
	}
	if utils.HashContent(raw) != meta.Hash {
		return "", fmt.Errorf("content hash mismatch for %s", key(path, version))
	}
	return string(raw), nil
}
