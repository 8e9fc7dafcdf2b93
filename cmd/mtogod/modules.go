package main

import (
	"context"
	"fmt"

	"github.com/mikey-austin/mtogo/internal/adapters/boltstore"
	"github.com/mikey-austin/mtogo/internal/adapters/clock"
	"github.com/mikey-austin/mtogo/internal/adapters/filestore"
	"github.com/mikey-austin/mtogo/internal/media"
	"github.com/mikey-austin/mtogo/internal/modules/catalog"
	mediaresolver "github.com/mikey-austin/mtogo/internal/modules/media_resolver"
	musiccache "github.com/mikey-austin/mtogo/internal/modules/music_cache"
	remotecontrol "github.com/mikey-austin/mtogo/internal/modules/remote_control"
	renderercore "github.com/mikey-austin/mtogo/internal/modules/renderer_core"
	rendererkodi "github.com/mikey-austin/mtogo/internal/modules/renderer_kodi"
	renderergstreamer "github.com/mikey-austin/mtogo/internal/modules/renderer_gstreamer"
	renderervlc "github.com/mikey-austin/mtogo/internal/modules/renderer_vlc"
	"github.com/mikey-austin/mtogo/internal/mtogod"
	"go.uber.org/zap"
)

type daemon struct {
	modules []mtogod.ModuleRunner
	closers []func() error
}

func (d *daemon) close(logger *zap.Logger) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	}
}

func newDriver(cfg mtogod.Config, logger *zap.Logger) (renderercore.Driver, error) {
	switch cfg.Player.Driver {
	case "vlc":
		return renderervlc.NewDriver(logger.With(zap.String("module", "renderer_vlc")), renderervlc.Config{
			BaseURL:  cfg.Player.VLC.BaseURL,
			Username: cfg.Player.VLC.Username,
			Password: cfg.Player.VLC.Password,
			Timeout:  mtogod.Millis(cfg.Player.VLC.TimeoutMS),
		})
	case "kodi":
		return rendererkodi.NewDriver(logger.With(zap.String("module", "renderer_kodi")), rendererkodi.Config{
			BaseURL:  cfg.Player.Kodi.BaseURL,
			Username: cfg.Player.Kodi.Username,
			Password: cfg.Player.Kodi.Password,
			Timeout:  mtogod.Millis(cfg.Player.Kodi.TimeoutMS),
		})
	case "gstreamer":
		return renderergstreamer.NewDriver(logger.With(zap.String("module", "renderer_gstreamer")), renderergstreamer.Config{
			Pipeline:  cfg.Player.GStreamer.Pipeline,
			Device:    cfg.Player.GStreamer.Device,
			Crossfade: mtogod.Millis(cfg.Player.GStreamer.CrossfadeMS),
		})
	}
	return nil, fmt.Errorf("unknown player driver %q", cfg.Player.Driver)
}

// buildDaemon wires the catalog, cache, resolver, renderer, queue engine and
// remote control module. ctx bounds background cache upgrades.
func buildDaemon(ctx context.Context, cfg mtogod.Config, transport remotecontrol.Transport, driver renderercore.Driver, logger *zap.Logger) (*daemon, error) {
	d := &daemon{}
	backend := media.Backend{
		MusicURL: cfg.Backend.MusicURL,
		VideoURL: cfg.Backend.VideoURL,
		Token:    cfg.Backend.Token,
	}

	catalogConfig := catalog.Config{
		Backend:         backend,
		Feeds:           cfg.Catalog.Feeds,
		RefreshInterval: mtogod.Millis(cfg.Catalog.RefreshIntervalMS),
		RetryDelay:      mtogod.Millis(cfg.Catalog.RetryDelayMS),
		RequestTimeout:  mtogod.Millis(cfg.Backend.TimeoutMS),
		Logger:          logger.With(zap.String("module", "catalog")),
	}
	if cfg.Catalog.SnapshotPath != "" {
		snapshots, err := boltstore.Open(cfg.Catalog.SnapshotPath)
		if err != nil {
			return nil, fmt.Errorf("catalog snapshot: %w", err)
		}
		d.closers = append(d.closers, snapshots.Close)
		catalogConfig.Snapshots = snapshots
	}
	provider, err := catalog.NewProvider(catalogConfig)
	if err != nil {
		d.close(logger)
		return nil, err
	}

	store, err := newCacheStore(cfg, backend, logger)
	if err != nil {
		d.close(logger)
		return nil, err
	}

	resolver, err := mediaresolver.New(mediaresolver.Config{
		Backend:        backend,
		Catalog:        provider,
		Cache:          store,
		Logger:         logger.With(zap.String("module", "media_resolver")),
		RequestTimeout: mtogod.Millis(cfg.Backend.TimeoutMS),
	})
	if err != nil {
		d.close(logger)
		return nil, err
	}

	renderer, err := renderercore.NewRenderer(logger.With(zap.String("module", "renderer")), driver, renderercore.RendererConfig{
		VolumeSteps:   cfg.Player.VolumeSteps,
		InitialVolume: cfg.Player.InitialVolume,
		PollInterval:  mtogod.Millis(cfg.Player.PollIntervalMS),
	})
	if err != nil {
		d.close(logger)
		return nil, err
	}

	engineLog := logger.With(zap.String("module", "queue_engine"))
	engine := renderercore.NewQueueEngine(engineLog, renderer)
	engine.OnTransition = func(next int, item media.Item) {
		if item.CacheWith == "" || !store.Enabled() {
			return
		}
		go upgradeNext(ctx, engineLog, resolver, engine, next, item)
	}

	dispatcher := remotecontrol.NewDispatcher(logger.With(zap.String("module", "dispatcher")), engine, renderer, resolver, provider)
	version, _ := mtogod.BuildVersion()
	remote, err := remotecontrol.NewModule(logger.With(zap.String("module", "remote_control")), transport, dispatcher, clock.Clock{}, remotecontrol.Config{
		DeviceID:  cfg.Server.Identity,
		TopicBase: cfg.Server.TopicBase,
		Name:      cfg.Server.Name,
		Version:   version,
	})
	if err != nil {
		d.close(logger)
		return nil, err
	}

	d.modules = append(d.modules,
		mtogod.ModuleRunner{Name: "catalog", Run: provider.Run},
		mtogod.ModuleRunner{Name: "renderer", Run: renderer.Run},
		mtogod.ModuleRunner{Name: "queue_engine", Run: engine.Run},
	)
	if store.Enabled() {
		d.modules = append(d.modules, mtogod.ModuleRunner{
			Name: "music_cache",
			Run:  cacheRunner(store, cfg.Cache.Watch, logger.With(zap.String("module", "music_cache"))),
		})
	}
	d.modules = append(d.modules, mtogod.ModuleRunner{Name: "remote_control", Run: remote.Run})
	return d, nil
}

func newCacheStore(cfg mtogod.Config, backend media.Backend, logger *zap.Logger) (*musiccache.Store, error) {
	mode, err := musiccache.ParseMode(cfg.Cache.Mode)
	if err != nil {
		return nil, err
	}
	cacheLog := logger.With(zap.String("module", "music_cache"))
	storeConfig := musiccache.Config{
		Mode:           mode,
		Backend:        backend,
		MaxDownloads:   cfg.Cache.MaxDownloads,
		IOWorkers:      cfg.Cache.IOWorkers,
		Attempts:       cfg.Cache.Attempts,
		ConnectTimeout: mtogod.Millis(cfg.Cache.ConnectTimeoutMS),
		RequestTimeout: mtogod.Millis(cfg.Cache.RequestTimeoutMS),
		Logger:         cacheLog,
		OnError: func(err error) {
			cacheLog.Warn("song could not be cached", zap.Error(err))
		},
	}
	if mode != musiccache.ModeDisabled {
		files, err := filestore.Open(cfg.Cache.Dir)
		if err != nil {
			return nil, fmt.Errorf("cache dir: %w", err)
		}
		storeConfig.Files = files
	}
	return musiccache.New(storeConfig)
}

// cacheRunner sweeps leftovers from an earlier run, then watches the cache
// directory or idles until shutdown.
func cacheRunner(store *musiccache.Store, watch bool, logger *zap.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		removed, err := store.Sweep(ctx)
		if err != nil {
			logger.Warn("cache sweep failed", zap.Error(err))
		} else if removed > 0 {
			logger.Info("removed partial downloads", zap.Int("count", removed))
		}
		if !watch {
			<-ctx.Done()
			return nil
		}
		return store.Watch(ctx)
	}
}

func upgradeNext(ctx context.Context, logger *zap.Logger, resolver *mediaresolver.Resolver, engine *renderercore.QueueEngine, index int, item media.Item) {
	upgraded, ok := resolver.UpgradeCached(ctx, item)
	if !ok {
		return
	}
	swapped, err := engine.Upgrade(ctx, index, item.URI, upgraded)
	if err != nil {
		logger.Debug("cache upgrade failed", zap.Int("index", index), zap.Error(err))
		return
	}
	if swapped {
		logger.Debug("queued item now plays from cache", zap.Int("index", index), zap.String("uri", upgraded.URI))
	}
}
