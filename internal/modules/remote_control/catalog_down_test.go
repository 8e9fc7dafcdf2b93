package remotecontrol

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/mikey-austin/mtogo/internal/media"
	"github.com/mikey-austin/mtogo/internal/modules/catalog"
	mediaresolver "github.com/mikey-austin/mtogo/internal/modules/media_resolver"
	renderercore "github.com/mikey-austin/mtogo/internal/modules/renderer_core"
	"github.com/mikey-austin/mtogo/pkg/spark"
)

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestQueueAnswersWhileCatalogIsDown(t *testing.T) {
	backend := media.Backend{MusicURL: "https://music.test"}
	provider, err := catalog.NewProvider(catalog.Config{
		Backend:    backend,
		HTTP:       &http.Client{Transport: failingTransport{}},
		RetryDelay: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	resolver, err := mediaresolver.New(mediaresolver.Config{Backend: backend, Catalog: provider})
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	renderer, err := renderercore.NewRenderer(nil, &fakeDriver{}, renderercore.RendererConfig{})
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	engine := renderercore.NewQueueEngine(nil, renderer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = provider.Run(ctx) }()
	go func() { _ = engine.Run(ctx) }()

	dispatcher := NewDispatcher(nil, engine, renderer, resolver, provider)
	for _, kind := range []spark.MusicCmdKind{
		spark.Queue{Query: "Song A"},
		spark.QueueCategory{Category: "chill"},
	} {
		kind := kind
		answered := make(chan spark.Response, 1)
		go func() {
			answered <- dispatcher.Handle(context.WithoutCancel(ctx), spark.Music{Command: kind})
		}()
		select {
		case resp := <-answered:
			if resp.IsOK() || resp.Err.Kind != spark.RequestFailed {
				t.Fatalf("%s: expected RequestFailed, got %+v", kind.KindName(), resp)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s: no answer with the catalog unreachable", kind.KindName())
		}
	}
}
