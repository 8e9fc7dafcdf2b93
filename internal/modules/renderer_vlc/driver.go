// Package renderervlc drives a VLC instance through its HTTP interface.
package renderervlc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxVolumeLevel = 256

// Config locates the VLC HTTP interface.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// Driver implements renderercore.Driver for VLC via the status.json endpoint.
type Driver struct {
	log        *zap.Logger
	baseURL    string
	http       *http.Client
	username   string
	password   string
	lastVolume int
}

// Status is the subset of status.json the driver reads.
type Status struct {
	State  string `json:"state"`
	Time   int64  `json:"time"`
	Length int64  `json:"length"`
	Volume int    `json:"volume"`
}

// NewDriver creates a VLC HTTP driver.
func NewDriver(log *zap.Logger, cfg Config) (*Driver, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("vlc base_url required")
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{
		log:        log,
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: cfg.Timeout},
		username:   cfg.Username,
		password:   cfg.Password,
		lastVolume: maxVolumeLevel,
	}, nil
}

// Play replaces whatever VLC is playing with streamURL.
func (d *Driver) Play(streamURL string, positionMS int64) error {
	if streamURL == "" {
		return errors.New("url required")
	}
	for _, cmd := range []string{"pl_stop", "pl_empty"} {
		if _, err := d.command(cmd, nil); err != nil {
			d.log.Debug("vlc reset command failed", zap.String("command", cmd), zap.Error(err))
		}
	}
	if _, err := d.command("in_play", url.Values{"input": []string{streamURL}}); err != nil {
		return fmt.Errorf("play %s: %w", streamURL, err)
	}
	if positionMS > 0 {
		return d.Seek(positionMS)
	}
	return nil
}

func (d *Driver) Pause() error {
	status, err := d.Status()
	if err != nil {
		return err
	}
	// pl_pause toggles, so only send it while playing.
	if status.State != "playing" {
		return nil
	}
	_, err = d.command("pl_pause", nil)
	return err
}

func (d *Driver) Resume() error {
	_, err := d.command("pl_play", nil)
	return err
}

func (d *Driver) Stop() error {
	_, err := d.command("pl_stop", nil)
	return err
}

func (d *Driver) Seek(positionMS int64) error {
	_, err := d.command("seek", url.Values{"val": []string{strconv.FormatInt(max(positionMS, 0)/1000, 10)}})
	return err
}

// SetVolume maps 0..1 onto VLC's 0..256 scale.
func (d *Driver) SetVolume(volume float64) error {
	volume = min(max(volume, 0), 1)
	level := int(volume*maxVolumeLevel + 0.5)
	if level > 0 {
		d.lastVolume = level
	}
	return d.setLevel(level)
}

func (d *Driver) SetMute(mute bool) error {
	if mute {
		return d.setLevel(0)
	}
	if d.lastVolume <= 0 {
		d.lastVolume = maxVolumeLevel
	}
	return d.setLevel(d.lastVolume)
}

// Position reports playback position and stream length in milliseconds.
func (d *Driver) Position() (int64, int64, bool) {
	status, err := d.Status()
	if err != nil {
		d.log.Debug("vlc status failed", zap.Error(err))
		return 0, 0, false
	}
	return status.Time * 1000, status.Length * 1000, true
}

// Status fetches the current VLC status.
func (d *Driver) Status() (Status, error) {
	payload, err := d.command("", nil)
	if err != nil {
		return Status{}, err
	}
	var status Status
	if err := json.Unmarshal(payload, &status); err != nil {
		return Status{}, fmt.Errorf("decode vlc status: %w", err)
	}
	return status, nil
}

func (d *Driver) setLevel(level int) error {
	_, err := d.command("volume", url.Values{"val": []string{strconv.Itoa(level)}})
	return err
}

func (d *Driver) command(name string, values url.Values) ([]byte, error) {
	if values == nil {
		values = url.Values{}
	}
	if name != "" {
		values.Set("command", name)
	}
	endpoint := d.baseURL + "/requests/status.json"
	if len(values) > 0 {
		endpoint += "?" + values.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if d.username != "" || d.password != "" {
		req.SetBasicAuth(d.username, d.password)
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("vlc error: %s", msg)
	}
	return body, nil
}
