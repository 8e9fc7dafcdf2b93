// Package remotecontrol answers spark commands: it decodes requests from
// the transport, drives the queue engine and the renderer, and encodes the
// responses.
package remotecontrol

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mikey-austin/mtogo/internal/media"
	"github.com/mikey-austin/mtogo/internal/modules/catalog"
	mediaresolver "github.com/mikey-austin/mtogo/internal/modules/media_resolver"
	renderercore "github.com/mikey-austin/mtogo/internal/modules/renderer_core"
	"github.com/mikey-austin/mtogo/pkg/spark"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultNowAmount = 10
	noTitle          = "no title"
	batchResolvers   = 2
)

// ErrNothingPlaying is returned when a command needs a current item.
var ErrNothingPlaying = errors.New(spark.DetailNothingPlaying)

// Queue is the queue engine surface used by the dispatcher.
type Queue interface {
	Enqueue(ctx context.Context, item media.Item) (renderercore.QueueSummary, error)
	EnqueueBatch(ctx context.Context, items []media.Item) (renderercore.QueueSummary, error)
	Next(ctx context.Context) (media.Item, bool, error)
	Previous(ctx context.Context) (media.Item, bool, error)
	View(ctx context.Context, before int, after int) (renderercore.QueueView, error)
	ResetCursor(ctx context.Context) error
}

// Playback is the renderer surface used by the dispatcher.
type Playback interface {
	CyclePause() (bool, error)
	IsPlaying() bool
	ChangeVolume(delta int) (float64, error)
	Volume() float64
	Progress() (time.Duration, time.Duration)
}

// Resolver turns queue requests into playable items.
type Resolver interface {
	Resolve(ctx context.Context, ref media.Ref) (media.Item, error)
	ResolveSong(ctx context.Context, name string) (media.Item, error)
	Search(ctx context.Context, text string) (media.Ref, error)
}

// CatalogSource hands out the current catalog.
type CatalogSource interface {
	Get(ctx context.Context) (*catalog.Catalog, error)
}

// Dispatcher maps commands onto the queue, the renderer and the resolver.
// It is the only place where Go errors become wire errors.
type Dispatcher struct {
	log      *zap.Logger
	queue    Queue
	playback Playback
	resolver Resolver
	catalog  CatalogSource
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(log *zap.Logger, queue Queue, playback Playback, resolver Resolver, source CatalogSource) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{log: log, queue: queue, playback: playback, resolver: resolver, catalog: source}
}

// Handle executes cmd and returns its response.
func (d *Dispatcher) Handle(ctx context.Context, cmd spark.Command) spark.Response {
	switch cmd := cmd.(type) {
	case spark.Music:
		if cmd.Username != nil {
			d.log.Debug("music command", zap.String("kind", cmd.Command.KindName()), zap.String("user", *cmd.Username))
		}
		return d.handleMusic(ctx, cmd.Command)
	case nil:
		return spark.Fail(spark.DeserializingCommand, "empty command")
	default:
		return spark.Fail(spark.RequestFailed, "unsupported: "+cmd.CommandName())
	}
}

func (d *Dispatcher) handleMusic(ctx context.Context, kind spark.MusicCmdKind) spark.Response {
	switch kind := kind.(type) {
	case spark.Frwd:
		return d.seek(ctx, d.queue.Next)
	case spark.Back:
		return d.seek(ctx, d.queue.Previous)
	case spark.CyclePause:
		paused, err := d.playback.CyclePause()
		if err != nil {
			return failure(err)
		}
		return spark.Ok(spark.PlayState{Paused: paused})
	case spark.ChangeVolume:
		volume, err := d.playback.ChangeVolume(kind.Amount)
		if err != nil {
			return failure(err)
		}
		return spark.Ok(spark.Volume{Volume: volume})
	case spark.Current:
		return d.current(ctx)
	case spark.Queue:
		return d.enqueue(ctx, kind)
	case spark.QueueCategory:
		return d.enqueueCategory(ctx, kind)
	case spark.Now:
		return d.now(ctx, kind)
	case spark.ResetQueueCursor:
		if err := d.queue.ResetCursor(ctx); err != nil {
			return failure(err)
		}
		return spark.Ok(spark.Unit{})
	case nil:
		return spark.Fail(spark.DeserializingCommand, "missing music command")
	default:
		return spark.Fail(spark.RequestFailed, "unsupported: "+kind.KindName())
	}
}

func (d *Dispatcher) seek(ctx context.Context, fn func(context.Context) (media.Item, bool, error)) spark.Response {
	item, ok, err := fn(ctx)
	if err != nil {
		return failure(err)
	}
	if !ok {
		return spark.Ok(spark.Title{Title: noTitle})
	}
	return spark.Ok(spark.Title{Title: titleOf(item)})
}

func (d *Dispatcher) current(ctx context.Context) spark.Response {
	view, err := d.queue.View(ctx, 0, 1)
	if err != nil {
		return failure(err)
	}
	if !view.HasCurrent {
		return failure(ErrNothingPlaying)
	}

	position, duration := d.playback.Progress()
	song := spark.CurrentSong{
		Title:      titleOf(view.Current),
		Playing:    d.playback.IsPlaying(),
		Volume:     d.playback.Volume(),
		Duration:   spark.Duration(duration),
		Categories: view.Current.AllCategories(),
		Index:      uint(view.Index),
	}
	if song.Categories == nil {
		song.Categories = []string{}
	}
	if duration > 0 {
		progress := float64(position) / float64(duration) * 100
		elapsed := spark.Duration(position)
		song.Progress = &progress
		song.PlaybackTime = &elapsed
	}
	if len(view.After) > 0 {
		next := titleOf(view.After[0])
		song.Next = &next
	}
	return spark.Ok(song)
}

func (d *Dispatcher) enqueue(ctx context.Context, cmd spark.Queue) spark.Response {
	var (
		item media.Item
		err  error
	)
	if cmd.Search {
		var ref media.Ref
		ref, err = d.resolver.Search(ctx, cmd.Query)
		if err != nil {
			return spark.Failf(spark.RequestFailed, "failed search for %s: %v", cmd.Query, err)
		}
		item, err = d.resolver.Resolve(ctx, ref)
	} else {
		item, err = d.resolver.ResolveSong(ctx, cmd.Query)
	}
	if err != nil {
		return failure(err)
	}
	summary, err := d.queue.Enqueue(ctx, item)
	if err != nil {
		return failure(err)
	}
	return spark.Ok(wireSummary(summary))
}

func (d *Dispatcher) enqueueCategory(ctx context.Context, cmd spark.QueueCategory) spark.Response {
	cat, err := d.catalog.Get(ctx)
	if err != nil {
		return failure(err)
	}
	songs := cat.InCategory(cmd.Category)
	if len(songs) == 0 {
		return spark.Failf(spark.RequestFailed, "no songs in category %s", cmd.Category)
	}
	if cmd.Shuffle {
		songs = lo.Shuffle(songs)
	}

	items := make([]media.Item, len(songs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(batchResolvers)
	for i, song := range songs {
		i, song := i, song
		group.Go(func() error {
			item, err := d.resolver.Resolve(groupCtx, media.CatalogSong{ID: song.ID})
			if err != nil {
				return err
			}
			items[i] = item
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return failure(err)
	}

	summary, err := d.queue.EnqueueBatch(ctx, items)
	if err != nil {
		return failure(err)
	}
	return spark.Ok(wireSummary(summary))
}

func (d *Dispatcher) now(ctx context.Context, cmd spark.Now) spark.Response {
	amount := defaultNowAmount
	if cmd.Amount != nil {
		amount = int(*cmd.Amount)
	}
	prevCount := amount / 5
	nextCount := max(amount-prevCount-1, 0)

	view, err := d.queue.View(ctx, prevCount, nextCount)
	if err != nil {
		return failure(err)
	}
	if !view.HasCurrent {
		return failure(ErrNothingPlaying)
	}
	return spark.Ok(spark.NowPlaying{
		Before:  titles(view.Before),
		Current: titleOf(view.Current),
		After:   titles(view.After),
	})
}

func wireSummary(s renderercore.QueueSummary) spark.QueueSummary {
	return spark.QueueSummary{From: uint(s.From), MovedTo: uint(s.MovedTo), Current: uint(s.Current)}
}

func titles(items []media.Item) []string {
	return lo.Map(items, func(item media.Item, _ int) string {
		return titleOf(item)
	})
}

func titleOf(item media.Item) string {
	if item.Title == "" {
		return noTitle
	}
	return item.Title
}

// failure converts a domain error into a wire error.
func failure(err error) spark.Response {
	var wire *spark.Error
	switch {
	case errors.As(err, &wire):
		return spark.Response{Err: wire}
	case errors.Is(err, mediaresolver.ErrNotInCatalog):
		return spark.Fail(spark.RequestFailed, spark.DetailNotInPlaylist)
	case errors.Is(err, ErrNothingPlaying):
		return spark.Fail(spark.RequestFailed, spark.DetailNothingPlaying)
	case errors.Is(err, renderercore.ErrEngineStopped), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return spark.Fail(spark.IoError, err.Error())
	default:
		return spark.Fail(spark.RequestFailed, fmt.Sprint(err))
	}
}
