package renderercore

import (
	"testing"
	"time"

	"github.com/mikey-austin/mtogo/internal/media"
)

func TestRendererVolumeMapping(t *testing.T) {
	r, driver := newTestRenderer(t)

	cases := []struct {
		delta int
		want  float64
	}{
		{delta: 10, want: 60},
		{delta: -100, want: 0},
		{delta: 1, want: 0},
		{delta: 200, want: 100},
		{delta: -5, want: 2800.0 / 30},
	}
	for _, tc := range cases {
		got, err := r.ChangeVolume(tc.delta)
		if err != nil {
			t.Fatalf("volume %d: %v", tc.delta, err)
		}
		if got != tc.want {
			t.Fatalf("volume %d: got %v want %v", tc.delta, got, tc.want)
		}
	}
	if driver.volume <= 0.9 || driver.volume > 1 {
		t.Fatalf("unexpected driver volume %v", driver.volume)
	}
}

func TestRendererMoveTracksCurrent(t *testing.T) {
	r, _ := newTestRenderer(t)
	_ = r.SetItems(items("a", "b", "c", "d"))
	_ = r.SeekNext()

	if err := r.Move(3, 0); err != nil {
		t.Fatalf("move: %v", err)
	}
	if r.CurrentIndex() != 2 {
		t.Fatalf("expected current 2, got %d", r.CurrentIndex())
	}
	if err := r.Move(2, 3); err != nil {
		t.Fatalf("move: %v", err)
	}
	if item, _ := r.Item(r.CurrentIndex()); item.URI != "b" {
		t.Fatalf("expected b current, got %q", item.URI)
	}
	if err := r.Move(9, 0); err != ErrIndexOutOfRange {
		t.Fatalf("expected out of range, got %v", err)
	}
}

func TestRendererRemoveCurrentPlaysNext(t *testing.T) {
	r, driver := newTestRenderer(t)
	_ = r.SetItems(items("a", "b", "c"))

	if err := r.Remove(0); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if driver.lastPlayed() != "b" || r.CurrentIndex() != 0 {
		t.Fatalf("expected b playing at 0, got %q at %d", driver.lastPlayed(), r.CurrentIndex())
	}
}

func TestRendererAdvancesAtEndOfStream(t *testing.T) {
	r, driver := newTestRenderer(t)
	_ = r.SetItems(items("a", "b"))
	<-r.Transitions()

	driver.durationMS = 10000
	r.poll()
	driver.positionMS = 9900
	r.poll()
	if driver.lastPlayed() != "b" {
		t.Fatalf("expected b, got %q", driver.lastPlayed())
	}
	select {
	case tr := <-r.Transitions():
		if tr.Index != 1 || tr.Reason != TransitionAuto {
			t.Fatalf("unexpected transition %+v", tr)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected transition")
	}

	// The driver still reports the old position, which must not skip b.
	r.poll()
	r.poll()
	if r.CurrentIndex() != 1 || !r.IsPlaying() {
		t.Fatalf("expected to stay on b, got %d", r.CurrentIndex())
	}

	driver.positionMS = 0
	r.poll()
	driver.positionMS = 9990
	r.poll()
	if r.IsPlaying() || !driver.stopped {
		t.Fatalf("expected playback to stop at end of queue")
	}
}

func TestRendererSkipsUnplayableItems(t *testing.T) {
	r, driver := newTestRenderer(t)
	driver.failURIs = map[string]bool{"bad": true}

	if err := r.SetItems([]media.Item{{URI: "bad"}, {URI: "good"}}); err != nil {
		t.Fatalf("set items: %v", err)
	}
	if r.CurrentIndex() != 1 || driver.lastPlayed() != "good" {
		t.Fatalf("expected good to play, got %q", driver.lastPlayed())
	}
}

func TestRendererCyclePause(t *testing.T) {
	r, driver := newTestRenderer(t)
	_ = r.Add(media.Item{URI: "a"})

	paused, err := r.CyclePause()
	if err != nil || !paused || !driver.paused {
		t.Fatalf("expected paused, got %v %v", paused, err)
	}
	paused, err = r.CyclePause()
	if err != nil || paused || driver.paused {
		t.Fatalf("expected playing, got %v %v", paused, err)
	}
}
