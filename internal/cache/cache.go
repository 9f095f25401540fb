// Package cache stores model answers keyed by the SHA-256 of the uploaded image.
// The cache is advisory: read and write failures are logged and treated as misses.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/pratik-mahalle/muscleai/internal/config"
	"github.com/pratik-mahalle/muscleai/internal/pkg/logger"
	"github.com/pratik-mahalle/muscleai/internal/pkg/metrics"
)

// DefaultTTL is how long an entry stays valid
const DefaultTTL = 7 * 24 * time.Hour

// ErrNotFound is returned by stores when no entry exists for a key
var ErrNotFound = errors.New("cache: entry not found")

// Entry is the stored form of a cached analysis
type Entry struct {
	Analysis  string `json:"analysis"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// Time returns the entry's write time
func (e *Entry) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Store persists entries by key
type Store interface {
	Load(ctx context.Context, key string) (*Entry, error)
	Save(ctx context.Context, key string, entry *Entry) error
	Delete(ctx context.Context, key string) error
}

// Sweeper is implemented by stores that can remove entries written before a cutoff
type Sweeper interface {
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

// Cache applies the TTL rule on top of a Store
type Cache struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger *logger.Logger
}

// New creates a cache over store. A non-positive ttl means DefaultTTL.
func New(store Store, ttl time.Duration, log *logger.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: store, ttl: ttl, now: time.Now, logger: log}
}

// WithClock replaces the time source
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Hash returns the hex SHA-256 of the image bytes
func Hash(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached analysis for hash. Missing, unreadable and expired
// entries are all reported as absent; expired ones are removed on the way out.
func (c *Cache) Get(ctx context.Context, hash string) (string, bool) {
	entry, err := c.store.Load(ctx, hash)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.WithFields(map[string]interface{}{"hash": hash}).WarnWithErr(err, "Cache read failed")
		}
		metrics.RecordCacheLookup(false)
		return "", false
	}

	if c.now().Sub(entry.Time()) >= c.ttl {
		if err := c.store.Delete(ctx, hash); err != nil && !errors.Is(err, ErrNotFound) {
			c.logger.WithFields(map[string]interface{}{"hash": hash}).WarnWithErr(err, "Failed to delete expired cache entry")
		}
		metrics.RecordCacheLookup(false)
		return "", false
	}

	metrics.RecordCacheLookup(true)
	return entry.Analysis, true
}

// Put stores an analysis. Failures are logged and otherwise ignored.
func (c *Cache) Put(ctx context.Context, hash, analysis string) {
	entry := &Entry{Analysis: analysis, Timestamp: c.now().UnixMilli()}
	if err := c.store.Save(ctx, hash, entry); err != nil {
		c.logger.WithFields(map[string]interface{}{"hash": hash}).WarnWithErr(err, "Cache write failed")
	}
}

// Sweep removes expired entries when the store supports enumeration
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	sweeper, ok := c.store.(Sweeper)
	if !ok {
		return 0, nil
	}
	return sweeper.Sweep(ctx, c.now().Add(-c.ttl))
}

// NewStore builds the store selected by configuration
func NewStore(ctx context.Context, cfg config.CacheConfig) (Store, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(cfg.Dir)
	case "memory":
		return NewMemoryStore(), nil
	case "s3":
		return NewS3StoreFromConfig(ctx, cfg)
	case "gcs":
		return NewGCSStore(ctx, cfg.Bucket, cfg.Prefix)
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}

func validKey(key string) bool {
	if len(key) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(key)
	return err == nil
}
