//go:build gstreamer

package renderergstreamer

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-gst/go-gst/gst"
	"go.uber.org/zap"
)

var errNotPlaying = errors.New("not playing")

// Driver implements renderercore.Driver on top of GStreamer pipelines. Each
// stream gets its own pipeline; the previous one fades out when crossfade
// is configured.
type Driver struct {
	log    *zap.Logger
	config Config

	mu      sync.Mutex
	volume  float64
	muted   bool
	current *gst.Element
}

var gstInitOnce sync.Once

// NewDriver creates a GStreamer driver.
func NewDriver(log *zap.Logger, cfg Config) (*Driver, error) {
	cfg = cfg.withDefaults()
	if !strings.Contains(cfg.Pipeline, "{url}") {
		return nil, errors.New("pipeline template must reference {url}")
	}
	if log == nil {
		log = zap.NewNop()
	}
	gstInitOnce.Do(func() {
		gst.Init(nil)
	})
	return &Driver{log: log, config: cfg, volume: 1.0}, nil
}

func (d *Driver) Play(url string, positionMS int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	pipeline, err := d.buildPipeline(url, positionMS)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}
	if positionMS > 0 {
		if err := d.seek(pipeline, positionMS); err != nil {
			d.log.Warn("initial seek failed", zap.Int64("position_ms", positionMS), zap.Error(err))
		}
	}

	old := d.current
	d.current = pipeline
	switch {
	case old == nil:
	case d.config.Crossfade > 0:
		_ = pipeline.SetProperty("volume", 0.0)
		go d.fade(pipeline, 0, 1)
		go d.fade(old, 1, 0)
	default:
		_ = old.SetState(gst.StateNull)
	}
	return nil
}

func (d *Driver) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return errNotPlaying
	}
	return d.current.SetState(gst.StatePaused)
}

func (d *Driver) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return errNotPlaying
	}
	return d.current.SetState(gst.StatePlaying)
}

func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return nil
	}
	_ = d.current.SetState(gst.StateNull)
	d.current = nil
	return nil
}

func (d *Driver) Seek(positionMS int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return errNotPlaying
	}
	return d.seek(d.current, positionMS)
}

func (d *Driver) SetVolume(volume float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.volume = min(max(volume, 0), 1)
	d.applyVolumeLocked()
	return nil
}

func (d *Driver) SetMute(mute bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.muted = mute
	d.applyVolumeLocked()
	return nil
}

// Position queries the running pipeline in milliseconds.
func (d *Driver) Position() (int64, int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return 0, 0, false
	}
	okPos, posNS := d.current.QueryPosition(gst.FormatTime)
	okDur, durNS := d.current.QueryDuration(gst.FormatTime)
	if !okPos {
		return 0, 0, false
	}
	if !okDur {
		durNS = 0
	}
	return posNS / int64(time.Millisecond), durNS / int64(time.Millisecond), true
}

func (d *Driver) buildPipeline(url string, positionMS int64) (*gst.Element, error) {
	replacer := strings.NewReplacer(
		"{url}", url,
		"{device}", d.config.Device,
		"{start_ms}", fmt.Sprintf("%d", positionMS),
		"{volume}", fmt.Sprintf("%0.2f", d.effectiveVolumeLocked()),
	)
	return gst.ParseLaunch(replacer.Replace(d.config.Pipeline))
}

func (d *Driver) seek(pipeline *gst.Element, positionMS int64) error {
	positionNS := positionMS * int64(time.Millisecond)
	if !pipeline.SeekSimple(positionNS, gst.FormatTime, gst.SeekFlagFlush|gst.SeekFlagKeyUnit) {
		return errors.New("seek rejected")
	}
	return nil
}

func (d *Driver) fade(pipeline *gst.Element, from float64, to float64) {
	const steps = 10
	step := d.config.Crossfade / steps
	for i := 0; i <= steps; i++ {
		d.mu.Lock()
		target := d.effectiveVolumeLocked()
		d.mu.Unlock()
		level := from + (to-from)*float64(i)/steps
		_ = pipeline.SetProperty("volume", level*target)
		time.Sleep(step)
	}
	if to == 0 {
		_ = pipeline.SetState(gst.StateNull)
	}
}

func (d *Driver) applyVolumeLocked() {
	if d.current != nil {
		_ = d.current.SetProperty("volume", d.effectiveVolumeLocked())
	}
}

func (d *Driver) effectiveVolumeLocked() float64 {
	if d.muted {
		return 0
	}
	return d.volume
}
