package overview

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/overview/pkg/cache"
	"github.com/matzehuels/overview/pkg/config"
	"github.com/matzehuels/overview/pkg/snapshot"
)

// SnapshotCache stores finished scans keyed by root path and the scan
// settings that shaped them.
type SnapshotCache struct {
	Cache   cache.Cache
	Keyer   cache.Keyer
	Backend string
	TTL     time.Duration
	Logger  *log.Logger
}

// OpenCache builds the backend named in cfg.Cache.
func OpenCache(ctx context.Context, cfg config.CacheConfig, logger *log.Logger) (*SnapshotCache, error) {
	if logger == nil {
		logger = log.Default()
	}
	sc := &SnapshotCache{
		Keyer:   cache.NewDefaultKeyer(),
		Backend: cfg.Backend,
		TTL:     time.Duration(cfg.TTL),
		Logger:  logger,
	}

	switch cfg.Backend {
	case config.BackendNone:
		sc.Cache = cache.NewNullCache()
	case config.BackendRedis:
		c, err := cache.NewRedisCache(ctx, cfg.RedisAddr, "overview:")
		if err != nil {
			return nil, fmt.Errorf("open redis cache: %w", err)
		}
		host, _ := os.Hostname()
		sc.Cache = c
		sc.Keyer = cache.NewScopedKeyer(sc.Keyer, "host:"+host+":")
	default:
		dir := cfg.Dir
		if dir == "" {
			d, err := cache.DefaultDir()
			if err != nil {
				return nil, fmt.Errorf("cache dir: %w", err)
			}
			dir = d
		}
		c, err := cache.NewFileCache(dir)
		if err != nil {
			return nil, fmt.Errorf("open file cache: %w", err)
		}
		sc.Cache = c
	}
	return sc, nil
}

func (c *SnapshotCache) key(root string, scan config.ScanConfig) string {
	return c.Keyer.SnapshotKey(root, cache.SnapshotKeyOpts{
		MaxChildren:    scan.MaxChildren,
		FollowSymlinks: scan.FollowSymlinks,
		Ignore:         scan.Ignore,
		Format:         string(snapshot.FormatBSON),
		Version:        snapshot.Version,
	})
}

// Get returns the cached snapshot of root, if any. Undecodable entries are
// treated as misses.
func (c *SnapshotCache) Get(ctx context.Context, root string, scan config.ScanConfig) (snapshot.Document, bool, error) {
	data, err := cache.Fetch(ctx, c.Cache, c.Backend, c.key(root, scan))
	if errors.Is(err, cache.ErrCacheMiss) {
		return snapshot.Document{}, false, nil
	}
	if err != nil {
		return snapshot.Document{}, false, err
	}
	doc, err := snapshot.Unmarshal(data, snapshot.FormatBSON)
	if err != nil {
		c.Logger.Warn("discarding cached snapshot", "root", root, "err", err)
		return snapshot.Document{}, false, nil
	}
	return doc, true, nil
}

// Put stores doc under its root path.
func (c *SnapshotCache) Put(ctx context.Context, doc snapshot.Document, scan config.ScanConfig) error {
	data, err := snapshot.Marshal(doc, snapshot.FormatBSON)
	if err != nil {
		return err
	}
	return cache.Store(ctx, c.Cache, c.Backend, c.key(doc.Path, scan), data, c.TTL)
}

// Clear empties the backend.
func (c *SnapshotCache) Clear(ctx context.Context) error { return c.Cache.Clear(ctx) }

// Close releases the backend.
func (c *SnapshotCache) Close() error { return c.Cache.Close() }
