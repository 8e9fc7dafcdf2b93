package catalog

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mikey-austin/mtogo/internal/adapters/boltstore"
	"github.com/mikey-austin/mtogo/internal/media"
)

const testPlaylist = `[
 {"name":"Oldest","link":"https://music.test/playlist/song/audio/old1","time":100,"categories":["chill"]},
 {"name":"Newest","link":"https://music.test/playlist/song/audio/new1","time":200,"categories":["rock"]}
]`

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Radio Show</title>
<link>https://feeds.test/show</link>
<item>
<title>Episode One</title>
<guid>ep-1</guid>
<pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
<enclosure url="https://cdn.test/ep1.mp3" type="audio/mpeg" length="100"/>
</item>
<item>
<title>Show Notes Only</title>
<guid>ep-2</guid>
</item>
</channel>
</rss>`

type testTransport func(*http.Request) (*http.Response, error)

func (t testTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	return t(r)
}

func textResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func newTestProvider(t *testing.T, transport testTransport, snapshots Snapshots, feeds ...string) *Provider {
	t.Helper()
	p, err := NewProvider(Config{
		Backend:    media.Backend{MusicURL: "https://music.test"},
		HTTP:       &http.Client{Transport: transport},
		Snapshots:  snapshots,
		Feeds:      feeds,
		RetryDelay: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	return p
}

func openSnapshots(t *testing.T) *boltstore.Store {
	t.Helper()
	store, err := boltstore.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open snapshots: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRefreshReversesListing(t *testing.T) {
	var auth string
	p := newTestProvider(t, func(r *http.Request) (*http.Response, error) {
		auth = r.Header.Get("Authorization")
		if r.URL.String() != "https://music.test/playlist" {
			t.Fatalf("unexpected url %s", r.URL)
		}
		return textResponse(200, testPlaylist), nil
	}, nil)

	if _, err := p.TryGet(); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
	if err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	c, err := p.TryGet()
	if err != nil {
		t.Fatalf("try get: %v", err)
	}
	songs := c.Songs()
	if len(songs) != 2 || songs[0].Name != "Newest" || songs[0].ID != "new1" {
		t.Fatalf("expected newest first, got %+v", songs)
	}
	if auth != "" {
		t.Fatalf("listing must not carry credentials")
	}
}

func TestRefreshFallsBackToSnapshot(t *testing.T) {
	snapshots := openSnapshots(t)
	var down atomic.Bool
	transport := func(*http.Request) (*http.Response, error) {
		if down.Load() {
			return nil, errors.New("connection refused")
		}
		return textResponse(200, testPlaylist), nil
	}

	first := newTestProvider(t, transport, snapshots)
	if err := first.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	down.Store(true)
	second := newTestProvider(t, transport, snapshots)
	if err := second.Refresh(context.Background()); err != nil {
		t.Fatalf("expected snapshot fallback, got %v", err)
	}
	c, err := second.TryGet()
	if err != nil {
		t.Fatalf("try get: %v", err)
	}
	if songs := c.Songs(); len(songs) != 2 || songs[0].Name != "Newest" {
		t.Fatalf("unexpected snapshot songs %+v", songs)
	}
}

func TestRefreshWithoutSnapshotFails(t *testing.T) {
	p := newTestProvider(t, func(*http.Request) (*http.Response, error) {
		return textResponse(500, "boom"), nil
	}, openSnapshots(t))
	err := p.Refresh(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	if _, tryErr := p.TryGet(); tryErr == nil || tryErr.Error() != err.Error() {
		t.Fatalf("expected last error from TryGet, got %v", tryErr)
	}
}

func TestRunRetriesUntilLoaded(t *testing.T) {
	var calls int32
	p := newTestProvider(t, func(*http.Request) (*http.Response, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return nil, errors.New("unreachable")
		}
		return textResponse(200, testPlaylist), nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	var (
		c   *Catalog
		err error
	)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c, err = p.Get(ctx); err == nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 songs, got %d", c.Len())
	}
	if got := atomic.LoadInt32(&calls); got < 3 {
		t.Fatalf("expected retries, got %d calls", got)
	}
}

func TestFeedSongsMerged(t *testing.T) {
	p := newTestProvider(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Host == "feeds.test" {
			return textResponse(200, testFeed), nil
		}
		return textResponse(200, testPlaylist), nil
	}, nil, "https://feeds.test/show.xml")

	if err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	c, _ := p.TryGet()
	if c.Len() != 3 {
		t.Fatalf("expected 3 songs, got %d", c.Len())
	}
	song, ok := c.FindByName("Episode One")
	if !ok {
		t.Fatalf("expected feed episode")
	}
	if song.Enclosure != "https://cdn.test/ep1.mp3" {
		t.Fatalf("unexpected enclosure %s", song.Enclosure)
	}
	if len(song.ID) != feedIDLength {
		t.Fatalf("expected %d char id, got %q", feedIDLength, song.ID)
	}
	if got := c.InCategory("Radio Show"); len(got) != 1 {
		t.Fatalf("expected feed title category")
	}
	if song.ID != feedSongID("https://feeds.test/show.xml:ep-1") {
		t.Fatalf("expected stable id")
	}
}

func TestGetAnswersWhileBackendIsDown(t *testing.T) {
	p := newTestProvider(t, func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	if _, err := p.Get(waitCtx); err == nil || errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the load error, got %v", err)
	}
}
