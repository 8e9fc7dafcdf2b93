package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/mikey-austin/mtogo/internal/media"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	DefaultRetryDelay     = time.Second
	DefaultRequestTimeout = 12 * time.Second
	DefaultConnectTimeout = 10 * time.Second

	snapshotKey = "playlist"
)

// ErrNotLoaded is returned by TryGet before the first successful load.
var ErrNotLoaded = errors.New("catalog not loaded")

// Snapshots persists the last fetched catalog.
type Snapshots interface {
	Save(key string, value any) error
	Load(key string, out any) (time.Time, error)
}

// Config configures the catalog provider.
type Config struct {
	Backend         media.Backend
	HTTP            *http.Client
	Snapshots       Snapshots
	Feeds           []string
	RefreshInterval time.Duration
	RetryDelay      time.Duration
	RequestTimeout  time.Duration
	Logger          *zap.Logger
}

// Provider loads the catalog in the background and hands out the latest copy.
type Provider struct {
	log    *zap.Logger
	http   *http.Client
	config Config

	mu      sync.RWMutex
	current *Catalog
	lastErr error
	// settled is closed once the first load attempt has finished, whether
	// it succeeded or not.
	settled chan struct{}
	once    sync.Once
}

// NewProvider creates a provider. Nothing is fetched until Run or Refresh.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Backend.MusicURL == "" {
		return nil, errors.New("music url required")
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
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
	return &Provider{
		log:     log,
		http:    client,
		config:  cfg,
		settled: make(chan struct{}),
	}, nil
}

// Run loads the catalog, retrying until it succeeds, then refreshes it
// periodically when a refresh interval is configured.
func (p *Provider) Run(ctx context.Context) error {
	for {
		if err := p.Refresh(ctx); err == nil {
			break
		} else {
			p.log.Warn("catalog load failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(p.config.RetryDelay):
		}
	}
	if p.config.RefreshInterval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(p.config.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.Refresh(ctx); err != nil {
				p.log.Warn("catalog refresh failed", zap.Error(err))
			}
		}
	}
}

// Get waits for the first load attempt to finish, then behaves like TryGet.
// While the backend is unreachable and nothing has been loaded it returns
// the last load error.
func (p *Provider) Get(ctx context.Context) (*Catalog, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.settled:
	}
	return p.TryGet()
}

// TryGet returns the current catalog without waiting. Before the first load
// it returns the last load error, or ErrNotLoaded.
func (p *Provider) TryGet() (*Catalog, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current != nil {
		return p.current, nil
	}
	if p.lastErr != nil {
		return nil, p.lastErr
	}
	return nil, ErrNotLoaded
}

// Refresh fetches the catalog once. A failed fetch falls back to the last
// saved snapshot.
func (p *Provider) Refresh(ctx context.Context) error {
	songs, err := p.fetchPlaylist(ctx)
	if err != nil {
		p.log.Warn("playlist fetch failed", zap.Error(err))
		snapshot, snapErr := p.loadSnapshot()
		if snapErr != nil {
			p.fail(err)
			return err
		}
		songs = snapshot
	} else {
		p.saveSnapshot(songs)
	}

	for _, feedURL := range p.config.Feeds {
		feedSongs, err := p.fetchFeed(ctx, feedURL)
		if err != nil {
			p.log.Warn("feed fetch failed", zap.String("feed", feedURL), zap.Error(err))
			continue
		}
		songs = append(songs, feedSongs...)
	}

	p.publish(New(songs))
	return nil
}

func (p *Provider) publish(c *Catalog) {
	p.mu.Lock()
	p.current = c
	p.lastErr = nil
	p.mu.Unlock()
	p.settle()
	p.log.Debug("catalog loaded", zap.Int("songs", c.Len()))
}

func (p *Provider) fail(err error) {
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
	p.settle()
}

func (p *Provider) settle() {
	p.once.Do(func() { close(p.settled) })
}

// fetchPlaylist returns the backend listing, newest first.
func (p *Provider) fetchPlaylist(ctx context.Context) ([]media.Song, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.Backend.PlaylistURI(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("playlist fetch failed: %s", resp.Status)
	}
	var songs []media.Song
	if err := json.NewDecoder(resp.Body).Decode(&songs); err != nil {
		return nil, fmt.Errorf("decode playlist: %w", err)
	}
	return lo.Reverse(songs), nil
}

func (p *Provider) saveSnapshot(songs []media.Song) {
	if p.config.Snapshots == nil {
		return
	}
	if err := p.config.Snapshots.Save(snapshotKey, songs); err != nil {
		p.log.Warn("save catalog snapshot failed", zap.Error(err))
	}
}

func (p *Provider) loadSnapshot() ([]media.Song, error) {
	if p.config.Snapshots == nil {
		return nil, ErrNotLoaded
	}
	var songs []media.Song
	savedAt, err := p.config.Snapshots.Load(snapshotKey, &songs)
	if err != nil {
		return nil, err
	}
	p.log.Info("using catalog snapshot", zap.Time("saved_at", savedAt), zap.Int("songs", len(songs)))
	return songs, nil
}
