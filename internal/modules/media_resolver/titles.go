package mediaresolver

import (
	"context"
	"time"

	freecache "github.com/coocood/freecache"
	gocache "github.com/eko/gocache/lib/v4/cache"
	libstore "github.com/eko/gocache/lib/v4/store"
	gocachefreecache "github.com/eko/gocache/store/freecache/v4"
	"github.com/golang/snappy"
	"github.com/mikey-austin/mtogo/internal/media"
)

const (
	defaultTitleCacheSize = 4 * 1024 * 1024
	defaultTitleTTL       = time.Hour
)

// titleCache remembers metadata titles of hosted videos.
type titleCache struct {
	cache gocache.CacheInterface[[]byte]
	ttl   time.Duration
}

func newTitleCache(size int, ttl time.Duration) *titleCache {
	if size < 0 {
		return &titleCache{}
	}
	if size == 0 {
		size = defaultTitleCacheSize
	}
	if ttl <= 0 {
		ttl = defaultTitleTTL
	}
	store := gocachefreecache.NewFreecache(freecache.NewCache(size))
	return &titleCache{cache: gocache.New[[]byte](store), ttl: ttl}
}

func (c *titleCache) get(ctx context.Context, id media.VideoID) (string, bool) {
	if c.cache == nil {
		return "", false
	}
	value, err := c.cache.Get(ctx, string(id))
	if err != nil || len(value) == 0 {
		return "", false
	}
	decoded, err := snappy.Decode(nil, value)
	if err != nil {
		return "", false
	}
	return string(decoded), true
}

func (c *titleCache) put(ctx context.Context, id media.VideoID, title string) {
	if c.cache == nil {
		return
	}
	_ = c.cache.Set(ctx, string(id), snappy.Encode(nil, []byte(title)), libstore.WithExpiration(c.ttl))
}
