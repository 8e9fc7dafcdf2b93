package renderercore

import (
	"errors"

	"github.com/mikey-austin/mtogo/internal/media"
)

// Driver executes playback actions for a single stream.
type Driver interface {
	Play(url string, positionMS int64) error
	Pause() error
	Resume() error
	Stop() error
	Seek(positionMS int64) error
	SetVolume(volume float64) error
	SetMute(mute bool) error
	Position() (positionMS int64, durationMS int64, ok bool)
}

// Player is the capability set the queue engine drives. Implementations own
// the item list and the current index.
type Player interface {
	Add(item media.Item) error
	SetItems(items []media.Item) error
	Move(from int, to int) error
	Remove(index int) error
	Replace(index int, item media.Item) error
	Play() error
	Pause() error
	SeekNext() error
	SeekPrevious() error
	CurrentIndex() int
	Count() int
	Item(index int) (media.Item, bool)
	Transitions() <-chan Transition
}

// TransitionReason says why the current item changed.
type TransitionReason int

const (
	TransitionAuto TransitionReason = iota
	TransitionSeek
	TransitionPlaylistChanged
)

func (r TransitionReason) String() string {
	switch r {
	case TransitionAuto:
		return "auto"
	case TransitionSeek:
		return "seek"
	case TransitionPlaylistChanged:
		return "playlist_changed"
	default:
		return "unknown"
	}
}

// Transition is emitted whenever the player moves onto a different item.
type Transition struct {
	Index  int
	Reason TransitionReason
}

var (
	// ErrUnsupported indicates driver capability is missing.
	ErrUnsupported = errors.New("unsupported")
	// ErrIndexOutOfRange is returned for positions outside the queue.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrEngineStopped is returned once the queue engine loop has exited.
	ErrEngineStopped = errors.New("queue engine stopped")
)
