package renderercore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mikey-austin/mtogo/internal/media"
)

type fakeDriver struct {
	mu         sync.Mutex
	played     []string
	failURIs   map[string]bool
	volume     float64
	paused     bool
	stopped    bool
	positionMS int64
	durationMS int64
}

func (d *fakeDriver) Play(url string, positionMS int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failURIs[url] {
		return errors.New("cannot open " + url)
	}
	d.played = append(d.played, url)
	d.paused = false
	d.stopped = false
	return nil
}
func (d *fakeDriver) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paused = true
	return nil
}
func (d *fakeDriver) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paused = false
	return nil
}
func (d *fakeDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	return nil
}
func (d *fakeDriver) Seek(positionMS int64) error { return nil }
func (d *fakeDriver) SetVolume(volume float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.volume = volume
	return nil
}
func (d *fakeDriver) SetMute(mute bool) error { return nil }
func (d *fakeDriver) Position() (int64, int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.positionMS, d.durationMS, true
}

func (d *fakeDriver) lastPlayed() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.played) == 0 {
		return ""
	}
	return d.played[len(d.played)-1]
}

func newTestRenderer(t *testing.T) (*Renderer, *fakeDriver) {
	t.Helper()
	driver := &fakeDriver{}
	r, err := NewRenderer(nil, driver, RendererConfig{})
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	return r, driver
}

func startEngine(t *testing.T) (*QueueEngine, *Renderer, *fakeDriver) {
	t.Helper()
	r, driver := newTestRenderer(t)
	engine := NewQueueEngine(nil, r)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = engine.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return engine, r, driver
}

func items(uris ...string) []media.Item {
	out := make([]media.Item, 0, len(uris))
	for _, uri := range uris {
		out = append(out, media.Item{URI: uri, Title: uri})
	}
	return out
}

func order(r *Renderer) []string {
	out := []string{}
	for i := 0; i < r.Count(); i++ {
		item, _ := r.Item(i)
		out = append(out, item.URI)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
