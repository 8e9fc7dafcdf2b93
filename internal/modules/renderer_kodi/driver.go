// Package rendererkodi drives a Kodi instance through JSON-RPC.
package rendererkodi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrNoPlayer is returned when Kodi reports no player and none was seen
// before.
var ErrNoPlayer = errors.New("kodi has no active player")

// Config locates the Kodi JSON-RPC endpoint.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// Driver implements renderercore.Driver for Kodi.
type Driver struct {
	log      *zap.Logger
	endpoint string
	http     *http.Client
	username string
	password string
	nextID   atomic.Int64

	mu       sync.Mutex
	playerID int
	seen     bool
}

// NewDriver creates a Kodi driver. BaseURL may omit the scheme and the
// /jsonrpc path.
func NewDriver(log *zap.Logger, cfg Config) (*Driver, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("kodi base_url required")
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("kodi base_url: %w", err)
	}
	if !strings.HasSuffix(parsed.Path, "/jsonrpc") {
		parsed.Path = path.Join(parsed.Path, "/jsonrpc")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{
		log:      log,
		endpoint: parsed.String(),
		http:     &http.Client{Timeout: cfg.Timeout},
		username: cfg.Username,
		password: cfg.Password,
	}, nil
}

// Play opens streamURL, replacing whatever Kodi is playing.
func (d *Driver) Play(streamURL string, positionMS int64) error {
	if streamURL == "" {
		return errors.New("url required")
	}
	if err := d.call("Player.Open", map[string]any{"item": map[string]any{"file": streamURL}}, nil); err != nil {
		return err
	}
	if positionMS <= 0 {
		return nil
	}
	return d.Seek(positionMS)
}

// Pause pauses playback. Kodi's PlayPause toggles unless told which way.
func (d *Driver) Pause() error {
	return d.playPause(false)
}

func (d *Driver) Resume() error {
	return d.playPause(true)
}

func (d *Driver) Stop() error {
	return d.onPlayer("Player.Stop", nil, nil)
}

func (d *Driver) Seek(positionMS int64) error {
	return d.onPlayer("Player.Seek", map[string]any{"value": map[string]any{"time": newKodiTime(positionMS)}}, nil)
}

// SetVolume maps 0..1 onto Kodi's 0..100 application volume.
func (d *Driver) SetVolume(volume float64) error {
	level := int(min(max(volume, 0), 1)*100 + 0.5)
	return d.call("Application.SetVolume", map[string]any{"volume": level}, nil)
}

func (d *Driver) SetMute(mute bool) error {
	return d.call("Application.SetMute", map[string]any{"mute": mute}, nil)
}

// Position reports the playback position and total time in milliseconds.
func (d *Driver) Position() (int64, int64, bool) {
	var props struct {
		Time      kodiTime `json:"time"`
		TotalTime kodiTime `json:"totaltime"`
	}
	err := d.onPlayer("Player.GetProperties", map[string]any{"properties": []string{"time", "totaltime"}}, &props)
	if err != nil {
		d.log.Debug("kodi position failed", zap.Error(err))
		return 0, 0, false
	}
	return props.Time.millis(), props.TotalTime.millis(), true
}

func (d *Driver) playPause(play bool) error {
	return d.onPlayer("Player.PlayPause", map[string]any{"play": play}, nil)
}

// onPlayer calls a Player.* method on the active player.
func (d *Driver) onPlayer(method string, params map[string]any, out any) error {
	playerID, err := d.activePlayer()
	if err != nil {
		return err
	}
	if params == nil {
		params = map[string]any{}
	}
	params["playerid"] = playerID
	return d.call(method, params, out)
}

// activePlayer prefers the audio player and remembers the last one seen,
// since Kodi briefly reports none between items.
func (d *Driver) activePlayer() (int, error) {
	var players []struct {
		PlayerID int    `json:"playerid"`
		Type     string `json:"type"`
	}
	if err := d.call("Player.GetActivePlayers", nil, &players); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(players) == 0 {
		if !d.seen {
			return 0, ErrNoPlayer
		}
		return d.playerID, nil
	}
	chosen := players[0].PlayerID
	for _, p := range players {
		if p.Type == "audio" {
			chosen = p.PlayerID
			break
		}
	}
	d.playerID, d.seen = chosen, true
	return chosen, nil
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("kodi error %d: %s", e.Code, e.Message)
}

func (d *Driver) call(method string, params any, out any) error {
	payload, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      d.nextID.Add(1),
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, d.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.username != "" || d.password != "" {
		req.SetBasicAuth(d.username, d.password)
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("kodi %s: %s", method, msg)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode kodi %s: %w", method, err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decode kodi %s result: %w", method, err)
	}
	return nil
}

type kodiTime struct {
	Hours        int64 `json:"hours"`
	Minutes      int64 `json:"minutes"`
	Seconds      int64 `json:"seconds"`
	Milliseconds int64 `json:"milliseconds"`
}

func newKodiTime(ms int64) kodiTime {
	ms = max(ms, 0)
	d := time.Duration(ms) * time.Millisecond
	return kodiTime{
		Hours:        int64(d / time.Hour),
		Minutes:      int64(d % time.Hour / time.Minute),
		Seconds:      int64(d % time.Minute / time.Second),
		Milliseconds: int64(d % time.Second / time.Millisecond),
	}
}

func (t kodiTime) millis() int64 {
	d := time.Duration(t.Hours)*time.Hour +
		time.Duration(t.Minutes)*time.Minute +
		time.Duration(t.Seconds)*time.Second +
		time.Duration(t.Milliseconds)*time.Millisecond
	return d.Milliseconds()
}
