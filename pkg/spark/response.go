package spark

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a failed response.
type ErrorKind string

const (
	DeserializingCommand ErrorKind = "DeserializingCommand"
	ForwardedError       ErrorKind = "ForwardedError"
	RequestFailed        ErrorKind = "RequestFailed"
	IoError              ErrorKind = "IoError"
	RelayError           ErrorKind = "RelayError"
)

// RequestFailed details that mean the requested thing does not exist.
const (
	DetailNotInPlaylist  = "Song not in playlist"
	DetailNothingPlaying = "nothing playing"
)

func (k ErrorKind) valid() bool {
	switch k {
	case DeserializingCommand, ForwardedError, RequestFailed, IoError, RelayError:
		return true
	}
	return false
}

// Error is the failure half of a Response.
type Error struct {
	Kind   ErrorKind
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// NotFound reports whether the request failed because its target is missing.
func (e *Error) NotFound() bool {
	if e.Kind != RequestFailed {
		return false
	}
	return e.Detail == DetailNotInPlaylist || e.Detail == DetailNothingPlaying
}

// Payload is the success half of a Response.
type Payload interface {
	isPayload()
}

// Unit is the empty success payload.
type Unit struct{}

// VersionInfo answers a version request.
type VersionInfo struct {
	Version string
}

type Title struct {
	Title string `json:"title"`
}

type PlayState struct {
	Paused bool `json:"paused"`
}

// Volume is on the 0..100 scale.
type Volume struct {
	Volume float64 `json:"volume"`
}

// Chapter is encoded as a [number, name] pair.
type Chapter struct {
	Number uint
	Name   string
}

func (c Chapter) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{c.Number, c.Name})
}

func (c *Chapter) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("chapter: expected 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &c.Number); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &c.Name)
}

// Duration is encoded as whole seconds plus remaining nanoseconds.
type Duration time.Duration

type durationWire struct {
	Secs  int64 `json:"secs"`
	Nanos int64 `json:"nanos"`
}

func (d Duration) MarshalJSON() ([]byte, error) {
	ns := int64(d)
	return json.Marshal(durationWire{Secs: ns / int64(time.Second), Nanos: ns % int64(time.Second)})
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var wire durationWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*d = Duration(time.Duration(wire.Secs)*time.Second + time.Duration(wire.Nanos))
	return nil
}

// CurrentSong describes the item being played.
type CurrentSong struct {
	Title        string    `json:"title"`
	Chapter      *Chapter  `json:"chapter"`
	Playing      bool      `json:"playing"`
	Volume       float64   `json:"volume"`
	Progress     *float64  `json:"progress"`
	PlaybackTime *Duration `json:"playback_time"`
	Duration     Duration  `json:"duration"`
	Categories   []string  `json:"categories"`
	Index        uint      `json:"index"`
	Next         *string   `json:"next"`
}

type QueueSummary struct {
	From    uint `json:"from"`
	MovedTo uint `json:"moved_to"`
	Current uint `json:"current"`
}

type NowPlaying struct {
	Before  []string `json:"before"`
	Current string   `json:"current"`
	After   []string `json:"after"`
}

func (Unit) isPayload()         {}
func (VersionInfo) isPayload()  {}
func (Title) isPayload()        {}
func (PlayState) isPayload()    {}
func (Volume) isPayload()       {}
func (CurrentSong) isPayload()  {}
func (QueueSummary) isPayload() {}
func (NowPlaying) isPayload()   {}

// musicTag returns the MusicResponse tag for player payloads.
func musicTag(p Payload) (string, bool) {
	switch p.(type) {
	case Title:
		return "Title", true
	case PlayState:
		return "PlayState", true
	case Volume:
		return "Volume", true
	case CurrentSong:
		return "Current", true
	case QueueSummary:
		return "QueueSummary", true
	case NowPlaying:
		return "Now", true
	}
	return "", false
}

// Response is either a Payload or an Error.
type Response struct {
	Payload Payload
	Err     *Error
}

// Ok wraps a successful payload.
func Ok(p Payload) Response {
	return Response{Payload: p}
}

// Fail builds an error response.
func Fail(kind ErrorKind, detail string) Response {
	return Response{Err: &Error{Kind: kind, Detail: detail}}
}

// Failf builds an error response with a formatted detail.
func Failf(kind ErrorKind, format string, args ...any) Response {
	return Fail(kind, fmt.Sprintf(format, args...))
}

// IsOK reports whether the response carries a payload.
func (r Response) IsOK() bool {
	return r.Err == nil
}

func (r Response) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(map[string]map[ErrorKind]string{
			"Err": {r.Err.Kind: r.Err.Detail},
		})
	}
	payload, err := encodePayload(r.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{"Ok": payload})
}

func (r *Response) UnmarshalJSON(data []byte) error {
	tag, obj, err := splitTagged(data)
	if err != nil {
		return fmt.Errorf("response: %w", err)
	}
	switch {
	case tag == "Ok" && obj != nil:
		payload, err := decodePayload(obj)
		if err != nil {
			return err
		}
		*r = Response{Payload: payload}
		return nil
	case tag == "Err" && obj != nil:
		var wire map[ErrorKind]string
		if err := json.Unmarshal(obj, &wire); err != nil {
			return fmt.Errorf("response error: %w", err)
		}
		if len(wire) != 1 {
			return errors.New("response error: expected exactly one kind")
		}
		for kind, detail := range wire {
			if !kind.valid() {
				return fmt.Errorf("response error: unknown kind %q", kind)
			}
			*r = Response{Err: &Error{Kind: kind, Detail: detail}}
		}
		return nil
	}
	return fmt.Errorf("response: unknown tag %q", tag)
}

func encodePayload(p Payload) ([]byte, error) {
	switch v := p.(type) {
	case nil, Unit:
		return json.Marshal("Unit")
	case VersionInfo:
		return json.Marshal(map[string]string{"Version": v.Version})
	}
	tag, ok := musicTag(p)
	if !ok {
		return nil, fmt.Errorf("unknown payload %T", p)
	}
	return json.Marshal(map[string]map[string]Payload{"MusicResponse": {tag: p}})
}

func decodePayload(data []byte) (Payload, error) {
	tag, obj, err := splitTagged(data)
	if err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	if obj == nil {
		if tag == "Unit" {
			return Unit{}, nil
		}
		return nil, fmt.Errorf("payload: unknown tag %q", tag)
	}
	switch tag {
	case "Version":
		var version string
		if err := json.Unmarshal(obj, &version); err != nil {
			return nil, fmt.Errorf("payload version: %w", err)
		}
		return VersionInfo{Version: version}, nil
	case "MusicResponse":
		tag, obj, err = splitTagged(obj)
		if err != nil || obj == nil {
			return nil, fmt.Errorf("music response: invalid shape")
		}
	}
	return decodeMusicPayload(tag, obj)
}

func decodeMusicPayload(tag string, obj json.RawMessage) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch tag {
	case "Title":
		var v Title
		err = json.Unmarshal(obj, &v)
		p = v
	case "PlayState":
		var v PlayState
		err = json.Unmarshal(obj, &v)
		p = v
	case "Volume":
		var v Volume
		err = json.Unmarshal(obj, &v)
		p = v
	case "Current":
		var v CurrentSong
		err = json.Unmarshal(obj, &v)
		p = v
	case "QueueSummary":
		var v QueueSummary
		err = json.Unmarshal(obj, &v)
		p = v
	case "Now":
		var v NowPlaying
		err = json.Unmarshal(obj, &v)
		p = v
	default:
		return nil, fmt.Errorf("%s is not a valid music response", tag)
	}
	if err != nil {
		return nil, fmt.Errorf("music response %s: %w", tag, err)
	}
	return p, nil
}
