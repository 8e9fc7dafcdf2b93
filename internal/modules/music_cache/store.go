// Package musiccache keeps a local copy of catalog audio and artwork. Files
// are named so that the song id can be recovered from a directory listing,
// and are only ever visible under their final name once complete.
package musiccache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mikey-austin/mtogo/internal/media"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultAttempts       = 5
	DefaultConnectTimeout = time.Second
	DefaultRequestTimeout = 20 * time.Second
	DefaultMaxDownloads   = 4
	DefaultIOWorkers      = 4

	// sweepWeight is taken whole by Sweep and one unit at a time by stores.
	sweepWeight = 1 << 20
)

var (
	// ErrDisabled is returned when caching is turned off.
	ErrDisabled = errors.New("music cache disabled")
)

// FileStore is the flat directory the cache lives in.
type FileStore interface {
	Root() string
	List(ctx context.Context) ([]string, error)
	Create(name string) (io.WriteCloser, error)
	Rename(from string, to string) error
	Remove(name string) error
	URI(name string) string
}

// Entry holds the URIs of a cached song. Empty strings are missing slots.
type Entry struct {
	AudioURI     string
	ThumbnailURI string
}

func (e Entry) has(slot Slot) bool {
	if slot == SlotThumbnail {
		return e.ThumbnailURI != ""
	}
	return e.AudioURI != ""
}

func (e *Entry) set(slot Slot, uri string) {
	if slot == SlotThumbnail {
		e.ThumbnailURI = uri
		return
	}
	e.AudioURI = uri
}

func (e Entry) merge(other Entry) Entry {
	if e.AudioURI == "" {
		e.AudioURI = other.AudioURI
	}
	if e.ThumbnailURI == "" {
		e.ThumbnailURI = other.ThumbnailURI
	}
	return e
}

// Config configures a Store.
type Config struct {
	Mode    Mode
	Files   FileStore
	Backend media.Backend
	HTTP    *http.Client
	// Downloads bounds simultaneous downloads. Share one semaphore between
	// stores to bound them together; nil creates one of MaxDownloads.
	Downloads      *semaphore.Weighted
	MaxDownloads   int64
	IOWorkers      int64
	Attempts       int
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	Logger         *zap.Logger
	// OnError is told about every download that failed for good.
	OnError func(error)
}

// Store is the cache.
type Store struct {
	log       *zap.Logger
	backend   media.Backend
	http      *http.Client
	downloads *semaphore.Weighted
	active    *semaphore.Weighted
	io        *semaphore.Weighted
	attempts  int
	timeout   time.Duration
	onError   func(error)
	flight    singleflight.Group

	mu      sync.Mutex
	mode    Mode
	files   FileStore
	index   map[media.SongID]Entry
	indexed bool
	rewatch chan struct{}
	// published holds names this store renamed into place while a watcher
	// is running, so the watcher can tell its own writes apart.
	published map[string]struct{}
}

// New creates a store. Call Sweep once before use to clear leftovers of an
// interrupted run.
func New(cfg Config) (*Store, error) {
	if cfg.Mode != ModeDisabled && cfg.Files == nil {
		return nil, errors.New("cache directory required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxDownloads <= 0 {
		cfg.MaxDownloads = DefaultMaxDownloads
	}
	if cfg.Downloads == nil {
		cfg.Downloads = semaphore.NewWeighted(cfg.MaxDownloads)
	}
	if cfg.IOWorkers <= 0 {
		cfg.IOWorkers = DefaultIOWorkers
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.HTTP == nil {
		cfg.HTTP = newHTTPClient(cfg.ConnectTimeout)
	}
	if cfg.OnError == nil {
		cfg.OnError = func(error) {}
	}
	return &Store{
		log:       cfg.Logger,
		backend:   cfg.Backend,
		http:      cfg.HTTP,
		downloads: cfg.Downloads,
		active:    semaphore.NewWeighted(sweepWeight),
		io:        semaphore.NewWeighted(cfg.IOWorkers),
		attempts:  cfg.Attempts,
		timeout:   cfg.RequestTimeout,
		onError:   cfg.OnError,
		mode:      cfg.Mode,
		files:     cfg.Files,
		index:     map[media.SongID]Entry{},
		rewatch:   make(chan struct{}, 1),
	}, nil
}

func newHTTPClient(connectTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = 5 * connectTimeout
	return &http.Client{Transport: transport}
}

// Mode returns the active cache mode.
func (s *Store) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Enabled reports whether anything is cached.
func (s *Store) Enabled() bool {
	return s.Mode() != ModeDisabled
}

// Configure switches mode and directory. A new directory is swept and
// re-indexed from scratch.
func (s *Store) Configure(ctx context.Context, mode Mode, files FileStore) error {
	if mode != ModeDisabled && files == nil {
		return errors.New("cache directory required")
	}
	s.mu.Lock()
	rootChanged := files != nil && (s.files == nil || s.files.Root() != files.Root())
	s.mode = mode
	if files != nil {
		s.files = files
	}
	if rootChanged {
		s.index = map[media.SongID]Entry{}
		s.indexed = false
	}
	s.mu.Unlock()

	if !rootChanged {
		return nil
	}
	select {
	case s.rewatch <- struct{}{}:
	default:
	}
	if mode == ModeDisabled {
		return nil
	}
	_, err := s.Sweep(ctx)
	return err
}

// Sweep deletes in-flight downloads left over by an earlier run. It waits
// for this store's running downloads to finish first and holds off new ones
// until it is done.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	files := s.currentFiles()
	if files == nil {
		return 0, nil
	}
	if err := s.active.Acquire(ctx, sweepWeight); err != nil {
		return 0, err
	}
	defer s.active.Release(sweepWeight)

	names, err := s.list(ctx, files)
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}
	removed := 0
	for _, name := range names {
		if !IsPartial(name) {
			continue
		}
		if err := files.Remove(name); err != nil {
			s.log.Warn("sweep remove failed", zap.String("file", name), zap.Error(err))
			continue
		}
		s.log.Info("deleted partial download", zap.String("file", name))
		removed++
	}
	return removed, nil
}

// Lookup returns what is cached for id.
func (s *Store) Lookup(ctx context.Context, id media.SongID) (Entry, error) {
	s.mu.Lock()
	mode, files := s.mode, s.files
	needsIndex := !s.indexed
	entry, ok := s.index[id]
	s.mu.Unlock()
	if mode == ModeDisabled {
		return Entry{}, ErrDisabled
	}
	if ok && entry.AudioURI != "" && !needsIndex {
		return entry, nil
	}

	names, err := s.list(ctx, files)
	if err != nil {
		return Entry{}, fmt.Errorf("lookup %s: %w", id, err)
	}
	if needsIndex {
		s.rebuildIndex(files, names)
		s.mu.Lock()
		entry = s.index[id]
		s.mu.Unlock()
		if entry.AudioURI != "" {
			return entry, nil
		}
	}

	// The index may lag behind the directory, fall back to a scan.
	found := Entry{}
	for _, name := range names {
		fileID, slot, ok := ParseFileName(name)
		if !ok || fileID != id {
			continue
		}
		found.set(slot, files.URI(name))
	}
	if found.AudioURI != "" {
		s.remember(id, found)
	}
	return found.merge(entry), nil
}

// FetchOrStore returns the cached copy of song, downloading every slot the
// mode requires that is missing. thumbnailURI, when set, is an already
// cached thumbnail and suppresses the thumbnail download.
func (s *Store) FetchOrStore(ctx context.Context, song media.Song, thumbnailURI string) (Entry, error) {
	existing, err := s.Lookup(ctx, song.ID)
	if err != nil {
		return Entry{}, err
	}
	if thumbnailURI != "" && existing.ThumbnailURI == "" {
		existing.ThumbnailURI = thumbnailURI
	}
	slots := s.missingSlots(song, existing)
	if len(slots) == 0 {
		return existing, nil
	}

	v, err, _ := s.flight.Do(string(song.ID), func() (any, error) {
		return s.store(ctx, song, slots)
	})
	if err != nil {
		err = fmt.Errorf("failed to download %s: %w", song.Name, err)
		s.onError(err)
		return Entry{}, err
	}
	return v.(Entry).merge(existing), nil
}

func (s *Store) missingSlots(song media.Song, existing Entry) []Slot {
	var slots []Slot
	if !existing.has(SlotAudio) {
		slots = append(slots, SlotAudio)
	}
	if s.Mode().Thumbnails() && !existing.has(SlotThumbnail) && song.ThumbnailURI(s.backend) != "" {
		slots = append(slots, SlotThumbnail)
	}
	return slots
}

func (s *Store) currentFiles() FileStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files
}

func (s *Store) list(ctx context.Context, files FileStore) ([]string, error) {
	if err := s.io.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.io.Release(1)
	return files.List(ctx)
}

func (s *Store) rebuildIndex(files FileStore, names []string) {
	index := map[media.SongID]Entry{}
	for _, name := range names {
		id, slot, ok := ParseFileName(name)
		if !ok {
			continue
		}
		entry := index[id]
		entry.set(slot, files.URI(name))
		index[id] = entry
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files != files {
		return
	}
	s.index = index
	s.indexed = true
	s.log.Debug("cache index rebuilt", zap.Int("songs", len(index)))
}

func (s *Store) remember(id media.SongID, entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index[id] = s.index[id].merge(entry)
}

func (s *Store) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexed = false
}

func (s *Store) markPublished(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.published != nil {
		s.published[name] = struct{}{}
	}
}

func (s *Store) unmarkPublished(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.published, name)
}

// ownEvent reports whether name was just published by this store and
// forgets it.
func (s *Store) ownEvent(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.published[name]; !ok {
		return false
	}
	delete(s.published, name)
	return true
}

func (s *Store) trackPublished(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.published = map[string]struct{}{}
	} else {
		s.published = nil
	}
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "untitled"
	}
	return name
}
