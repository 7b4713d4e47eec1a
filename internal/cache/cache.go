// Package cache stores finished project analyses keyed by the content of the
// transcripts they were computed from.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	separator      = "|||"
	DefaultLRUSize = 256
)

// ContentHash is the SHA-256 of the texts sorted and joined with "|||". Order
// of the input does not matter; any change to any text does.
func ContentHash(texts []string) string {
	sorted := make([]string, len(texts))
	copy(sorted, texts)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, separator)))
	return hex.EncodeToString(sum[:])
}

type Key struct {
	ProjectID   string
	Model       string
	ContentHash string
}

// Entry is one cached analysis. Data is opaque to the cache.
type Entry struct {
	Key
	AnalysisType string
	Data         json.RawMessage
	AnalyzedAt   time.Time
}

// Store is the persistent layer. UpsertAnalysis must resolve concurrent
// writes to the same key as last write wins.
type Store interface {
	LookupAnalysis(ctx context.Context, key Key) (Entry, bool, error)
	UpsertAnalysis(ctx context.Context, e Entry) error
}

// Cache fronts a Store with an in-process LRU. A nil Store keeps entries in
// memory only.
type Cache struct {
	store  Store
	recent *lru.Cache[Key, Entry]
	logger *slog.Logger
}

func New(store Store, size int, logger *slog.Logger) (*Cache, error) {
	if size <= 0 {
		size = DefaultLRUSize
	}
	recent, err := lru.New[Key, Entry](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Cache{store: store, recent: recent, logger: logger}, nil
}

// Lookup returns the cached entry for key. force skips the lookup entirely.
// Store errors are logged and treated as a miss.
func (c *Cache) Lookup(ctx context.Context, key Key, force bool) (Entry, bool) {
	attrs := []any{"project_id", key.ProjectID, "model", key.Model, "content_hash", key.ContentHash}

	if force {
		c.logger.Info("analysis cache bypassed", append(attrs, "reason", "regenerate")...)
		return Entry{}, false
	}

	if e, ok := c.recent.Get(key); ok {
		c.logger.Info("analysis cache hit", append(attrs, "analyzed_at", e.AnalyzedAt, "tier", "memory")...)
		return e, true
	}

	if c.store != nil {
		e, ok, err := c.store.LookupAnalysis(ctx, key)
		if err != nil {
			c.logger.Warn("analysis cache lookup failed", append(attrs, "error", err)...)
		} else if ok {
			c.recent.Add(key, e)
			c.logger.Info("analysis cache hit", append(attrs, "analyzed_at", e.AnalyzedAt, "tier", "store")...)
			return e, true
		}
	}

	c.logger.Info("analysis cache miss", attrs...)
	return Entry{}, false
}

// Put records a fresh analysis. A failed write is logged and otherwise
// ignored; the in-process copy is still kept.
func (c *Cache) Put(ctx context.Context, e Entry) Entry {
	if e.AnalyzedAt.IsZero() {
		e.AnalyzedAt = time.Now().UTC()
	}
	c.recent.Add(e.Key, e)

	if c.store == nil {
		return e
	}
	if err := c.store.UpsertAnalysis(ctx, e); err != nil {
		c.logger.Warn("analysis cache write failed",
			"project_id", e.ProjectID,
			"model", e.Model,
			"content_hash", e.ContentHash,
			"error", err,
		)
		return e
	}
	c.logger.Info("analysis cached",
		"project_id", e.ProjectID,
		"model", e.Model,
		"content_hash", e.ContentHash,
		"bytes", len(e.Data),
	)
	return e
}
