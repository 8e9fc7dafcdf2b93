package spark

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// BaseTopic is the default MQTT topic prefix for the protocol.
const BaseTopic = "mtogo/v1"

// Envelope frames a command on the MQTT transport.
type Envelope struct {
	ID      string          `json:"id"`
	TS      int64           `json:"ts"`
	From    string          `json:"from"`
	ReplyTo string          `json:"replyTo,omitempty"`
	Command json.RawMessage `json:"command"`
}

// ReplyEnvelope frames a response. ID matches the request envelope.
type ReplyEnvelope struct {
	ID       string          `json:"id"`
	TS       int64           `json:"ts"`
	Response json.RawMessage `json:"response"`
}

// Presence is the retained announcement of a running daemon.
type Presence struct {
	DeviceID string `json:"deviceId"`
	Name     string `json:"name"`
	Version  string `json:"version,omitempty"`
	TS       int64  `json:"ts"`
}

// NewEnvelope encodes cmd into an envelope without routing fields.
func NewEnvelope(cmd Command) (Envelope, error) {
	payload, err := EncodeCommand(cmd)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode command: %w", err)
	}
	return Envelope{Command: payload}, nil
}

// ValidateEnvelope checks routing fields. The command itself is decoded
// separately so that a malformed command can still be answered.
func ValidateEnvelope(env Envelope) error {
	if strings.TrimSpace(env.ID) == "" {
		return errors.New("id is required")
	}
	if env.TS <= 0 {
		return errors.New("ts must be a positive unix timestamp")
	}
	if strings.TrimSpace(env.From) == "" {
		return errors.New("from is required")
	}
	if len(env.Command) == 0 {
		return errors.New("command is required")
	}
	return nil
}

// NewReply encodes resp for the request with id.
func NewReply(id string, ts int64, resp Response) (ReplyEnvelope, error) {
	payload, err := json.Marshal(resp)
	if err != nil {
		return ReplyEnvelope{}, fmt.Errorf("encode response: %w", err)
	}
	return ReplyEnvelope{ID: id, TS: ts, Response: payload}, nil
}

// DecodeResponse decodes the response carried by a reply.
func (r ReplyEnvelope) DecodeResponse() (Response, error) {
	var resp Response
	if err := json.Unmarshal(r.Response, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// TopicPresence builds the presence topic for a device.
func TopicPresence(topicBase, deviceID string) string {
	return fmt.Sprintf("%s/device/%s/presence", topicBase, deviceID)
}

// TopicCommands builds the command topic for a device.
func TopicCommands(topicBase, deviceID string) string {
	return fmt.Sprintf("%s/device/%s/cmd", topicBase, deviceID)
}

// TopicReply builds the reply topic for a controller instance.
func TopicReply(topicBase, controllerID string) string {
	return fmt.Sprintf("%s/reply/%s", topicBase, controllerID)
}
