// Package spark defines the command protocol spoken between controllers and
// the mtogo daemon: tagged-union commands, responses and their JSON form.
package spark

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Command is an inbound request.
type Command interface {
	CommandName() string
	isCommand()
}

type Heartbeat struct{}
type Reload struct{}
type Version struct{}

// Music carries a player command plus optional routing hints.
type Music struct {
	Command  MusicCmdKind
	Index    *int
	Username *string
}

func (Heartbeat) CommandName() string { return "Heartbeat" }
func (Reload) CommandName() string    { return "Reload" }
func (Version) CommandName() string   { return "Version" }
func (Music) CommandName() string     { return "Music" }

func (Heartbeat) isCommand() {}
func (Reload) isCommand()    {}
func (Version) isCommand()   {}
func (Music) isCommand()     {}

// MusicCmdKind is one of the player commands below.
type MusicCmdKind interface {
	KindName() string
	isMusicCmdKind()
}

type Frwd struct{}
type Back struct{}
type CyclePause struct{}
type Current struct{}

// ResetQueueCursor forgets the insertion cursor.
type ResetQueueCursor struct{}

type ChangeVolume struct {
	Amount int `json:"amount"`
}

type Queue struct {
	Query  string `json:"query"`
	Search bool   `json:"search"`
}

type Now struct {
	Amount *uint `json:"amount,omitempty"`
}

// QueueCategory enqueues every catalog song tagged with Category.
type QueueCategory struct {
	Category string `json:"category"`
	Shuffle  bool   `json:"shuffle"`
}

func (Frwd) KindName() string             { return "Frwd" }
func (Back) KindName() string             { return "Back" }
func (CyclePause) KindName() string       { return "CyclePause" }
func (Current) KindName() string          { return "Current" }
func (ResetQueueCursor) KindName() string { return "ResetQueueCursor" }
func (ChangeVolume) KindName() string     { return "ChangeVolume" }
func (Queue) KindName() string            { return "Queue" }
func (Now) KindName() string              { return "Now" }
func (QueueCategory) KindName() string    { return "QueueCategory" }

func (Frwd) isMusicCmdKind()             {}
func (Back) isMusicCmdKind()             {}
func (CyclePause) isMusicCmdKind()       {}
func (Current) isMusicCmdKind()          {}
func (ResetQueueCursor) isMusicCmdKind() {}
func (ChangeVolume) isMusicCmdKind()     {}
func (Queue) isMusicCmdKind()            {}
func (Now) isMusicCmdKind()              {}
func (QueueCategory) isMusicCmdKind()    {}

// DecodeError reports a command that could not be decoded.
type DecodeError struct {
	Input string
	Msg   string
	Err   error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Msg, e.Input)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func decodeErr(data []byte, msg string, err error) error {
	return &DecodeError{Input: string(bytes.TrimSpace(data)), Msg: msg, Err: err}
}

type musicWire struct {
	Command  json.RawMessage `json:"command"`
	Index    *int            `json:"index,omitempty"`
	Username *string         `json:"username,omitempty"`
}

// DecodeCommand parses a command from its JSON form.
func DecodeCommand(data []byte) (Command, error) {
	tag, obj, err := splitTagged(data)
	if err != nil {
		return nil, decodeErr(data, "not a valid command", err)
	}
	if obj == nil {
		switch tag {
		case "Heartbeat":
			return Heartbeat{}, nil
		case "Reload":
			return Reload{}, nil
		case "Version":
			return Version{}, nil
		}
		return nil, decodeErr(data, "unknown command", nil)
	}
	if tag != "Music" {
		return nil, decodeErr(data, "unknown command", nil)
	}
	var wire musicWire
	if err := json.Unmarshal(obj, &wire); err != nil {
		return nil, decodeErr(data, "not a valid music command", err)
	}
	if len(wire.Command) == 0 {
		return nil, decodeErr(data, "music command missing", nil)
	}
	kind, err := decodeMusicCmdKind(wire.Command)
	if err != nil {
		return nil, err
	}
	return Music{Command: kind, Index: wire.Index, Username: wire.Username}, nil
}

func decodeMusicCmdKind(data []byte) (MusicCmdKind, error) {
	tag, obj, err := splitTagged(data)
	if err != nil {
		return nil, decodeErr(data, "not a valid MusicCmdKind", err)
	}
	if obj == nil {
		switch tag {
		case "Frwd":
			return Frwd{}, nil
		case "Back":
			return Back{}, nil
		case "CyclePause":
			return CyclePause{}, nil
		case "Current":
			return Current{}, nil
		case "ResetQueueCursor":
			return ResetQueueCursor{}, nil
		case "Now":
			return Now{}, nil
		}
		return nil, decodeErr(data, "not a valid MusicCmdKind", nil)
	}

	var kind MusicCmdKind
	switch tag {
	case "ChangeVolume":
		var v struct {
			Amount *int `json:"amount"`
		}
		err = json.Unmarshal(obj, &v)
		if err == nil && v.Amount == nil {
			return nil, decodeErr(data, "ChangeVolume requires amount", nil)
		}
		if err == nil {
			kind = ChangeVolume{Amount: *v.Amount}
		}
	case "Queue":
		var v struct {
			Query  *string `json:"query"`
			Search bool    `json:"search"`
		}
		err = json.Unmarshal(obj, &v)
		if err == nil && v.Query == nil {
			return nil, decodeErr(data, "Queue requires query", nil)
		}
		if err == nil {
			kind = Queue{Query: *v.Query, Search: v.Search}
		}
	case "Now":
		var v Now
		if !isNull(obj) {
			err = json.Unmarshal(obj, &v)
		}
		kind = v
	case "QueueCategory":
		var v QueueCategory
		err = json.Unmarshal(obj, &v)
		if err == nil && v.Category == "" {
			return nil, decodeErr(data, "QueueCategory requires category", nil)
		}
		kind = v
	default:
		return nil, decodeErr(data, "not a valid MusicCmdKind", nil)
	}
	if err != nil {
		return nil, decodeErr(data, "invalid "+tag, err)
	}
	return kind, nil
}

// EncodeCommand renders cmd in its JSON form.
func EncodeCommand(cmd Command) ([]byte, error) {
	switch c := cmd.(type) {
	case Heartbeat, Reload, Version:
		return json.Marshal(c.CommandName())
	case Music:
		if c.Command == nil {
			return nil, fmt.Errorf("music command missing")
		}
		kind, err := encodeMusicCmdKind(c.Command)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]musicWire{
			"Music": {Command: kind, Index: c.Index, Username: c.Username},
		})
	default:
		return nil, fmt.Errorf("unknown command %T", cmd)
	}
}

func encodeMusicCmdKind(kind MusicCmdKind) ([]byte, error) {
	switch k := kind.(type) {
	case Frwd, Back, CyclePause, Current, ResetQueueCursor:
		return json.Marshal(k.KindName())
	case ChangeVolume, Queue, Now, QueueCategory:
		return json.Marshal(map[string]any{k.KindName(): k})
	default:
		return nil, fmt.Errorf("unknown music command %T", kind)
	}
}

// splitTagged splits a tagged union value. A bare string yields the tag and
// a nil object; a single-key object yields the key and its raw value.
func splitTagged(data []byte) (string, json.RawMessage, error) {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		return tag, nil, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", nil, err
	}
	if len(obj) != 1 {
		return "", nil, fmt.Errorf("expected exactly one tag, got %d", len(obj))
	}
	for key, value := range obj {
		if value == nil {
			value = json.RawMessage("null")
		}
		return key, value, nil
	}
	return "", nil, nil
}

func isNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}
