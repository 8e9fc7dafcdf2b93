//go:build !gstreamer

package renderergstreamer

import (
	"errors"

	"go.uber.org/zap"
)

var errNotEnabled = errors.New("gstreamer build tag not enabled")

// Driver is a stub when the gstreamer tag is not enabled.
type Driver struct{}

// NewDriver returns an error when the gstreamer build tag is missing.
func NewDriver(log *zap.Logger, cfg Config) (*Driver, error) {
	return nil, errNotEnabled
}

func (d *Driver) Play(url string, positionMS int64) error { return errNotEnabled }
func (d *Driver) Pause() error                            { return errNotEnabled }
func (d *Driver) Resume() error                           { return errNotEnabled }
func (d *Driver) Stop() error                             { return errNotEnabled }
func (d *Driver) Seek(positionMS int64) error             { return errNotEnabled }
func (d *Driver) SetVolume(volume float64) error          { return errNotEnabled }
func (d *Driver) SetMute(mute bool) error                 { return errNotEnabled }
func (d *Driver) Position() (int64, int64, bool)          { return 0, 0, false }
