// Package mediaresolver turns logical media references into playable items.
package mediaresolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mikey-austin/mtogo/internal/media"
	"github.com/mikey-austin/mtogo/internal/modules/catalog"
	musiccache "github.com/mikey-austin/mtogo/internal/modules/music_cache"
	"go.uber.org/zap"
)

const (
	DefaultRequestTimeout = 12 * time.Second
	DefaultConnectTimeout = 10 * time.Second
)

var (
	// ErrNotInCatalog is returned when a catalog song id is unknown.
	ErrNotInCatalog = errors.New("not in playlist")
	// ErrResolveFailed is returned when a search cannot be answered.
	ErrResolveFailed = errors.New("failed to resolve")
)

// CatalogSource hands out the current catalog.
type CatalogSource interface {
	Get(ctx context.Context) (*catalog.Catalog, error)
}

// Cache is the local song cache.
type Cache interface {
	Enabled() bool
	Lookup(ctx context.Context, id media.SongID) (musiccache.Entry, error)
	FetchOrStore(ctx context.Context, song media.Song, thumbnailURI string) (musiccache.Entry, error)
}

// Config configures a Resolver.
type Config struct {
	Backend        media.Backend
	HTTP           *http.Client
	Catalog        CatalogSource
	Cache          Cache
	Logger         *zap.Logger
	RequestTimeout time.Duration
	// TitleCacheSize is the byte size of the metadata title cache. Negative
	// disables it.
	TitleCacheSize int
	TitleTTL       time.Duration
}

// Resolver resolves references against the catalog, the cache and the
// hosted video backend.
type Resolver struct {
	log     *zap.Logger
	http    *http.Client
	backend media.Backend
	catalog CatalogSource
	cache   Cache
	titles  *titleCache
	timeout time.Duration
}

// New creates a resolver.
func New(cfg Config) (*Resolver, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("catalog required")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	client := cfg.HTTP
	if client == nil {
		client = &http.Client{Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: DefaultConnectTimeout}).DialContext,
		}}
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Resolver{
		log:     log,
		http:    client,
		backend: cfg.Backend,
		catalog: cfg.Catalog,
		cache:   cfg.Cache,
		titles:  newTitleCache(cfg.TitleCacheSize, cfg.TitleTTL),
		timeout: timeout,
	}, nil
}

// Resolve produces a playable item for ref.
func (r *Resolver) Resolve(ctx context.Context, ref media.Ref) (media.Item, error) {
	switch ref := ref.(type) {
	case media.CatalogSong:
		return r.resolveSong(ctx, ref.ID)
	case media.Video:
		return r.resolveVideo(ctx, ref.ID), nil
	case media.RawURL:
		if id, ok := ParseVideoURL(ref.URL); ok {
			return r.resolveVideo(ctx, id), nil
		}
		return media.Item{URI: ref.URL}, nil
	case media.SearchQuery:
		found, err := r.Search(ctx, ref.Text)
		if err != nil {
			return media.Item{}, err
		}
		return r.Resolve(ctx, found)
	default:
		return media.Item{}, fmt.Errorf("unknown reference %T", ref)
	}
}

// ResolveSong looks a song up by exact name and resolves it.
func (r *Resolver) ResolveSong(ctx context.Context, name string) (media.Item, error) {
	cat, err := r.catalog.Get(ctx)
	if err != nil {
		return media.Item{}, err
	}
	song, ok := cat.FindByName(name)
	if !ok {
		return media.Item{}, fmt.Errorf("%q: %w", name, ErrNotInCatalog)
	}
	return r.itemFor(ctx, song), nil
}

// Search turns free text into a reference. Text that looks like a URL is
// passed through untouched.
func (r *Resolver) Search(ctx context.Context, text string) (media.Ref, error) {
	if strings.HasPrefix(text, "http") {
		return media.RawURL{URL: text}, nil
	}
	body, err := r.get(ctx, r.backend.SearchURI(text))
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrResolveFailed, text, err)
	}
	id := strings.TrimSpace(string(body))
	if id == "" {
		return nil, fmt.Errorf("%w %q: empty search result", ErrResolveFailed, text)
	}
	return media.Video{ID: media.VideoID(id)}, nil
}

// UpgradeCached returns a copy of item pointing at the cached files of the
// catalog song it was resolved from. The boolean is false when item is not
// a cache candidate or nothing is cached yet.
func (r *Resolver) UpgradeCached(ctx context.Context, item media.Item) (media.Item, bool) {
	if item.CacheWith == "" || !r.cachingEnabled() {
		return item, false
	}
	cat, err := r.catalog.Get(ctx)
	if err != nil {
		return item, false
	}
	song, ok := cat.FindByID(item.CacheWith)
	if !ok {
		return item, false
	}
	entry, err := r.cache.Lookup(ctx, song.ID)
	if err != nil || entry.AudioURI == "" {
		r.prefetch(ctx, song)
		return item, false
	}
	return r.cachedItem(song, entry), true
}

func (r *Resolver) resolveSong(ctx context.Context, id media.SongID) (media.Item, error) {
	cat, err := r.catalog.Get(ctx)
	if err != nil {
		return media.Item{}, err
	}
	song, ok := cat.FindByID(id)
	if !ok {
		return media.Item{}, fmt.Errorf("%s: %w", id, ErrNotInCatalog)
	}
	return r.itemFor(ctx, song), nil
}

// itemFor prefers cached files and otherwise streams from the backend while
// the cache fills in the background.
func (r *Resolver) itemFor(ctx context.Context, song media.Song) media.Item {
	if r.cachingEnabled() {
		entry, err := r.cache.Lookup(ctx, song.ID)
		if err != nil {
			r.log.Warn("cache lookup failed", zap.String("song", string(song.ID)), zap.Error(err))
		} else if entry.AudioURI != "" {
			return r.cachedItem(song, entry)
		}
		r.prefetch(ctx, song)
	}
	item := song.Item(song.AudioURI(r.backend), song.ThumbnailURI(r.backend))
	if r.cachingEnabled() {
		item.CacheWith = song.ID
	}
	return item
}

func (r *Resolver) cachedItem(song media.Song, entry musiccache.Entry) media.Item {
	thumb := entry.ThumbnailURI
	if thumb == "" {
		thumb = song.ThumbnailURI(r.backend)
	}
	return song.Item(entry.AudioURI, thumb)
}

func (r *Resolver) prefetch(ctx context.Context, song media.Song) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if _, err := r.cache.FetchOrStore(ctx, song, ""); err != nil {
			r.log.Debug("background cache fill failed", zap.String("song", string(song.ID)), zap.Error(err))
		}
	}()
}

func (r *Resolver) cachingEnabled() bool {
	return r.cache != nil && r.cache.Enabled()
}

func (r *Resolver) resolveVideo(ctx context.Context, id media.VideoID) media.Item {
	return media.Item{
		URI:          r.backend.VideoAudioURI(id),
		Title:        r.videoTitle(ctx, id),
		ThumbnailURI: r.backend.VideoThumbnailURI(id),
	}
}

// videoTitle never fails; errors become the title.
func (r *Resolver) videoTitle(ctx context.Context, id media.VideoID) string {
	if title, ok := r.titles.get(ctx, id); ok {
		return title
	}
	body, err := r.get(ctx, r.backend.VideoMetadataURI(id))
	if err != nil {
		return "error getting title: " + err.Error()
	}
	var metadata struct {
		Title *string `json:"title"`
	}
	if err := json.Unmarshal(body, &metadata); err != nil {
		return "error getting title: " + err.Error()
	}
	if metadata.Title == nil {
		return "error getting title: missing title"
	}
	r.titles.put(ctx, id, *metadata.Title)
	return *metadata.Title
}

func (r *Resolver) get(ctx context.Context, uri string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	if r.backend.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.backend.Token)
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
