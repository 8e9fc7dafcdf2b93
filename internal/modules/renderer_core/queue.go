package renderercore

import (
	"context"

	"github.com/mikey-austin/mtogo/internal/media"
	"go.uber.org/zap"
)

const noCursor = -1

// QueueSummary describes where an enqueued item was placed.
type QueueSummary struct {
	From    int
	MovedTo int
	Current int
}

// QueueEngine is the single writer of the playback queue. Every mutation
// and every read runs on the goroutine started by Run, in arrival order.
type QueueEngine struct {
	log      *zap.Logger
	player   Player
	requests chan func()
	stopped  chan struct{}

	// cursor is the position of the last item inserted by a caller burst,
	// or noCursor. Only touched from the Run goroutine.
	cursor int

	// OnTransition is called from the engine goroutine after every player
	// transition with the index and item that now follow the current one.
	// It must not block. Set it before Run.
	OnTransition func(next int, item media.Item)
}

// NewQueueEngine creates an engine around player.
func NewQueueEngine(log *zap.Logger, player Player) *QueueEngine {
	if log == nil {
		log = zap.NewNop()
	}
	return &QueueEngine{
		log:      log,
		player:   player,
		requests: make(chan func(), 200),
		stopped:  make(chan struct{}),
		cursor:   noCursor,
	}
}

// Run processes requests and player transitions until ctx is cancelled.
func (q *QueueEngine) Run(ctx context.Context) error {
	defer close(q.stopped)
	transitions := q.player.Transitions()
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-q.requests:
			transitions = q.drainTransitions(transitions)
			req()
		case t, ok := <-transitions:
			if !ok {
				transitions = nil
				continue
			}
			q.handleTransition(t)
		}
	}
}

// Enqueue adds item right after the previous insertion of the current burst,
// or right after the current item when there is no burst in progress.
func (q *QueueEngine) Enqueue(ctx context.Context, item media.Item) (QueueSummary, error) {
	return call(ctx, q, func() (QueueSummary, error) {
		return q.enqueue(item)
	})
}

// EnqueueBatch enqueues items as one unit of work. An empty queue is
// replaced by the whole batch in one step. The cursor is cleared afterwards.
func (q *QueueEngine) EnqueueBatch(ctx context.Context, items []media.Item) (QueueSummary, error) {
	return call(ctx, q, func() (QueueSummary, error) {
		defer func() { q.cursor = noCursor }()
		if len(items) == 0 {
			return QueueSummary{Current: q.player.CurrentIndex()}, nil
		}
		if q.player.Count() == 0 {
			if err := q.player.SetItems(items); err != nil {
				return QueueSummary{}, err
			}
			return QueueSummary{}, nil
		}
		var summary QueueSummary
		for _, item := range items {
			var err error
			summary, err = q.enqueue(item)
			if err != nil {
				return summary, err
			}
		}
		return summary, nil
	})
}

// Next skips to the following item and returns the new current item.
func (q *QueueEngine) Next(ctx context.Context) (media.Item, bool, error) {
	return q.seek(ctx, q.player.SeekNext)
}

// Previous goes back one item and returns the new current item.
func (q *QueueEngine) Previous(ctx context.Context) (media.Item, bool, error) {
	return q.seek(ctx, q.player.SeekPrevious)
}

func (q *QueueEngine) seek(ctx context.Context, fn func() error) (media.Item, bool, error) {
	type result struct {
		item media.Item
		ok   bool
	}
	res, err := call(ctx, q, func() (result, error) {
		if err := fn(); err != nil {
			return result{}, err
		}
		item, ok := q.current()
		return result{item: item, ok: ok}, nil
	})
	return res.item, res.ok, err
}

// Current returns the item being played.
func (q *QueueEngine) Current(ctx context.Context) (media.Item, bool, error) {
	type result struct {
		item media.Item
		ok   bool
	}
	res, err := call(ctx, q, func() (result, error) {
		item, ok := q.current()
		return result{item: item, ok: ok}, nil
	})
	return res.item, res.ok, err
}

// PeekNext returns up to n items after the current one, nearest first.
func (q *QueueEngine) PeekNext(ctx context.Context, n int) ([]media.Item, error) {
	return call(ctx, q, func() ([]media.Item, error) {
		return q.peek(1, n), nil
	})
}

// PeekPrevious returns up to n items before the current one, nearest first.
func (q *QueueEngine) PeekPrevious(ctx context.Context, n int) ([]media.Item, error) {
	return call(ctx, q, func() ([]media.Item, error) {
		return q.peek(-1, n), nil
	})
}

// QueueView is a consistent snapshot around the current item.
type QueueView struct {
	Index   int
	Count   int
	Current media.Item
	// HasCurrent is false when the queue is empty.
	HasCurrent bool
	Before     []media.Item
	After      []media.Item
}

// View returns the current item with up to before previous and after next
// items, all read in one step.
func (q *QueueEngine) View(ctx context.Context, before int, after int) (QueueView, error) {
	return call(ctx, q, func() (QueueView, error) {
		item, ok := q.current()
		return QueueView{
			Index:      q.player.CurrentIndex(),
			Count:      q.player.Count(),
			Current:    item,
			HasCurrent: ok,
			Before:     q.peek(-1, before),
			After:      q.peek(1, after),
		}, nil
	})
}

func (q *QueueEngine) peek(step int, n int) []media.Item {
	out := []media.Item{}
	if q.player.Count() == 0 {
		return out
	}
	for i := q.player.CurrentIndex() + step; i >= 0 && i < q.player.Count() && len(out) < n; i += step {
		if item, ok := q.player.Item(i); ok {
			out = append(out, item)
		}
	}
	return out
}

// Cursor reports the insertion cursor.
func (q *QueueEngine) Cursor(ctx context.Context) (int, bool, error) {
	cursor, err := call(ctx, q, func() (int, error) {
		return q.cursor, nil
	})
	return cursor, cursor != noCursor, err
}

// ResetCursor forgets the current burst so the next enqueue lands right
// after the current item.
func (q *QueueEngine) ResetCursor(ctx context.Context) error {
	_, err := call(ctx, q, func() (struct{}, error) {
		q.cursor = noCursor
		return struct{}{}, nil
	})
	return err
}

// Upgrade swaps the item at index for item, provided the slot still holds
// an item with previousURI. It reports whether the swap happened.
func (q *QueueEngine) Upgrade(ctx context.Context, index int, previousURI string, item media.Item) (bool, error) {
	return call(ctx, q, func() (bool, error) {
		existing, ok := q.player.Item(index)
		if !ok || existing.URI != previousURI {
			return false, nil
		}
		if err := q.player.Replace(index, item); err != nil {
			return false, err
		}
		return true, nil
	})
}

func (q *QueueEngine) enqueue(item media.Item) (QueueSummary, error) {
	if q.player.Count() == 0 {
		if err := q.player.Add(item); err != nil {
			return QueueSummary{}, err
		}
		return QueueSummary{}, nil
	}

	moveTo := q.player.CurrentIndex() + 1
	if q.cursor != noCursor {
		moveTo = q.cursor + 1
	}
	if err := q.player.Add(item); err != nil {
		return QueueSummary{}, err
	}
	queued := max(q.player.Count()-1, 0)
	if moveTo > queued {
		moveTo = queued
	}
	q.cursor = moveTo
	current := q.player.CurrentIndex()
	if queued == moveTo {
		return QueueSummary{From: queued, MovedTo: queued, Current: current}, nil
	}
	if err := q.player.Move(queued, moveTo); err != nil {
		return QueueSummary{}, err
	}
	return QueueSummary{From: queued, MovedTo: moveTo, Current: current}, nil
}

func (q *QueueEngine) current() (media.Item, bool) {
	if q.player.Count() == 0 {
		return media.Item{}, false
	}
	return q.player.Item(q.player.CurrentIndex())
}

func (q *QueueEngine) handleTransition(t Transition) {
	current := q.player.CurrentIndex()
	if q.cursor != noCursor && q.cursor <= current {
		q.log.Debug("insertion cursor reached", zap.Int("cursor", q.cursor), zap.Int("current", current))
		q.cursor = noCursor
	}
	if q.OnTransition == nil || q.player.Count() == 0 {
		return
	}
	next := (current + 1) % q.player.Count()
	if item, ok := q.player.Item(next); ok {
		q.OnTransition(next, item)
	}
}

// drainTransitions applies transitions already emitted before a request is
// served, so requests always observe every earlier player movement.
func (q *QueueEngine) drainTransitions(transitions <-chan Transition) <-chan Transition {
	for {
		select {
		case t, ok := <-transitions:
			if !ok {
				return nil
			}
			q.handleTransition(t)
		default:
			return transitions
		}
	}
}

func call[T any](ctx context.Context, q *QueueEngine, fn func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	var zero T
	done := make(chan result, 1)
	req := func() {
		value, err := fn()
		done <- result{value: value, err: err}
	}

	select {
	case q.requests <- req:
	case <-q.stopped:
		return zero, ErrEngineStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case res := <-done:
		return res.value, res.err
	case <-q.stopped:
		return zero, ErrEngineStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
