package renderercore

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/mikey-austin/mtogo/internal/media"
	"go.uber.org/zap"
)

const (
	// DefaultVolumeSteps is the number of discrete device volume steps.
	DefaultVolumeSteps = 30
	eosSlackMS         = 250
)

// RendererConfig tunes a Renderer.
type RendererConfig struct {
	VolumeSteps   int
	InitialVolume int
	PollInterval  time.Duration
}

// Renderer is a Player backed by a single-stream Driver. It keeps the item
// list itself and hands the driver one URI at a time.
type Renderer struct {
	log    *zap.Logger
	driver Driver
	config RendererConfig

	mu          sync.Mutex
	items       []media.Item
	current     int
	playing     bool
	started     bool
	volume      int
	positionMS  int64
	durationMS  int64
	eosSeen     bool
	transitions chan Transition
}

// NewRenderer creates a renderer driving driver.
func NewRenderer(log *zap.Logger, driver Driver, cfg RendererConfig) (*Renderer, error) {
	if driver == nil {
		return nil, errors.New("driver required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.VolumeSteps <= 0 {
		cfg.VolumeSteps = DefaultVolumeSteps
	}
	if cfg.InitialVolume <= 0 || cfg.InitialVolume > cfg.VolumeSteps {
		cfg.InitialVolume = cfg.VolumeSteps / 2
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Renderer{
		log:         log,
		driver:      driver,
		config:      cfg,
		volume:      cfg.InitialVolume,
		transitions: make(chan Transition, 64),
	}, nil
}

// Run polls the driver for progress and advances at end of stream.
func (r *Renderer) Run(ctx context.Context) error {
	if err := r.driver.SetVolume(r.volumeFraction()); err != nil {
		r.log.Warn("initial volume failed", zap.Error(err))
	}
	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = r.driver.Stop()
			return nil
		case <-ticker.C:
			r.poll()
		}
	}
}

func (r *Renderer) Transitions() <-chan Transition {
	return r.transitions
}

func (r *Renderer) Add(item media.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
	if len(r.items) == 1 {
		r.current = 0
		r.emit(TransitionPlaylistChanged)
		return r.startCurrentLocked()
	}
	return nil
}

func (r *Renderer) SetItems(items []media.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append([]media.Item(nil), items...)
	r.current = 0
	if len(r.items) == 0 {
		r.playing = false
		r.started = false
		return r.driver.Stop()
	}
	r.emit(TransitionPlaylistChanged)
	return r.startCurrentLocked()
}

func (r *Renderer) Move(from int, to int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.validLocked(from) || !r.validLocked(to) {
		return ErrIndexOutOfRange
	}
	if from == to {
		return nil
	}
	item := r.items[from]
	r.items = append(r.items[:from], r.items[from+1:]...)
	r.items = append(r.items[:to], append([]media.Item{item}, r.items[to:]...)...)
	switch {
	case from == r.current:
		r.current = to
	case from < r.current && to >= r.current:
		r.current--
	case from > r.current && to <= r.current:
		r.current++
	}
	return nil
}

func (r *Renderer) Remove(index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.validLocked(index) {
		return ErrIndexOutOfRange
	}
	r.items = append(r.items[:index], r.items[index+1:]...)
	switch {
	case len(r.items) == 0:
		r.current = 0
		r.playing = false
		r.started = false
		return r.driver.Stop()
	case index < r.current:
		r.current--
	case index == r.current:
		r.current = clampIndex(r.current, len(r.items))
		r.emit(TransitionPlaylistChanged)
		if r.playing {
			return r.startCurrentLocked()
		}
		r.started = false
	}
	return nil
}

func (r *Renderer) Replace(index int, item media.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.validLocked(index) {
		return ErrIndexOutOfRange
	}
	r.items[index] = item
	return nil
}

func (r *Renderer) Play() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 || r.playing {
		return nil
	}
	if !r.started {
		return r.startCurrentLocked()
	}
	if err := r.driver.Resume(); err != nil {
		return err
	}
	r.playing = true
	return nil
}

func (r *Renderer) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.playing {
		return nil
	}
	if err := r.driver.Pause(); err != nil {
		return err
	}
	r.playing = false
	return nil
}

// CyclePause toggles between playing and paused and reports whether the
// renderer is paused afterwards.
func (r *Renderer) CyclePause() (bool, error) {
	if r.IsPlaying() {
		return true, r.Pause()
	}
	return false, r.Play()
}

func (r *Renderer) IsPlaying() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playing
}

func (r *Renderer) SeekNext() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current+1 >= len(r.items) {
		return nil
	}
	r.current++
	r.emit(TransitionSeek)
	return r.startCurrentLocked()
}

func (r *Renderer) SeekPrevious() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return nil
	}
	if r.current > 0 {
		r.current--
		r.emit(TransitionSeek)
	}
	return r.startCurrentLocked()
}

func (r *Renderer) CurrentIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *Renderer) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *Renderer) Item(index int) (media.Item, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.validLocked(index) {
		return media.Item{}, false
	}
	return r.items[index], true
}

// ChangeVolume moves the volume by delta percent and returns the resulting
// volume as a percentage.
func (r *Renderer) ChangeVolume(delta int) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	steps := r.config.VolumeSteps
	mapped := int(math.Round(float64(delta) * float64(steps) / 100))
	r.volume = min(max(r.volume+mapped, 0), steps)
	if err := r.driver.SetVolume(r.volumeFractionLocked()); err != nil {
		return r.volumePercentLocked(), err
	}
	return r.volumePercentLocked(), nil
}

// Volume returns the volume as a percentage.
func (r *Renderer) Volume() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.volumePercentLocked()
}

// VolumeFraction returns the volume in the range 0..1.
func (r *Renderer) VolumeFraction() float64 {
	return r.volumeFraction()
}

// Progress reports the last known position and duration of the current item.
func (r *Renderer) Progress() (time.Duration, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Duration(r.positionMS) * time.Millisecond, time.Duration(r.durationMS) * time.Millisecond
}

func (r *Renderer) poll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.playing {
		r.eosSeen = false
		return
	}
	posMS, durMS, ok := r.driver.Position()
	if !ok {
		return
	}
	r.positionMS = posMS
	if durMS > 0 {
		r.durationMS = durMS
	}
	r.advanceOnEndLocked(posMS, durMS)
}

func (r *Renderer) advanceOnEndLocked(positionMS int64, durationMS int64) {
	if durationMS <= 0 {
		return
	}
	if positionMS < durationMS-eosSlackMS {
		r.eosSeen = false
		return
	}
	if r.eosSeen {
		return
	}
	r.eosSeen = true
	if r.current+1 >= len(r.items) {
		_ = r.driver.Stop()
		r.playing = false
		r.started = false
		r.positionMS = 0
		return
	}
	r.current++
	r.emit(TransitionAuto)
	if err := r.startCurrentLocked(); err != nil {
		r.log.Warn("advance failed", zap.Error(err))
	}
}

// startCurrentLocked plays the current item, skipping forward over items
// the driver refuses.
func (r *Renderer) startCurrentLocked() error {
	var lastErr error
	for r.validLocked(r.current) {
		item := r.items[r.current]
		err := r.driver.Play(item.URI, 0)
		if err == nil {
			r.playing = true
			r.started = true
			// Cleared once the driver reports a position before the end.
			r.eosSeen = true
			r.positionMS = 0
			r.durationMS = 0
			return nil
		}
		lastErr = err
		r.log.Warn("playback failed, skipping", zap.String("uri", item.URI), zap.Int("index", r.current), zap.Error(err))
		if r.current+1 >= len(r.items) {
			break
		}
		r.current++
		r.emit(TransitionAuto)
	}
	r.playing = false
	r.started = false
	return lastErr
}

func (r *Renderer) emit(reason TransitionReason) {
	select {
	case r.transitions <- Transition{Index: r.current, Reason: reason}:
	default:
		r.log.Warn("transition dropped", zap.Int("index", r.current), zap.Stringer("reason", reason))
	}
}

func (r *Renderer) validLocked(index int) bool {
	return index >= 0 && index < len(r.items)
}

func (r *Renderer) volumeFraction() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.volumeFractionLocked()
}

func (r *Renderer) volumeFractionLocked() float64 {
	return float64(r.volume) / float64(r.config.VolumeSteps)
}

func (r *Renderer) volumePercentLocked() float64 {
	return float64(r.volume) * 100 / float64(r.config.VolumeSteps)
}

func clampIndex(index int, length int) int {
	if length == 0 {
		return 0
	}
	if index < 0 {
		return 0
	}
	if index >= length {
		return length - 1
	}
	return index
}
