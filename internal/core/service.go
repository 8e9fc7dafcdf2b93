package core

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mikey-austin/mtogo/internal/ports"
	"github.com/mikey-austin/mtogo/pkg/spark"
)

// Service orchestrates mtogo CLI use cases.
type Service struct {
	Broker   ports.Broker
	Resolver Resolver
	Clock    ports.Clock
	IDGen    ports.IDGen
	Config   Config
}

// ListDevices returns the devices announcing presence.
func (s Service) ListDevices(ctx context.Context) (DevicesResult, error) {
	devices, err := s.Broker.ListPresence(ctx)
	if err != nil {
		return DevicesResult{}, WrapError(ExitRuntime, "list devices", err)
	}
	return DevicesResult{Devices: devices}, nil
}

// Next skips to the following item.
func (s Service) Next(ctx context.Context, selector string) (ResponseResult, error) {
	return s.music(ctx, selector, spark.Frwd{})
}

// Previous goes back one item.
func (s Service) Previous(ctx context.Context, selector string) (ResponseResult, error) {
	return s.music(ctx, selector, spark.Back{})
}

// Toggle flips between playing and paused.
func (s Service) Toggle(ctx context.Context, selector string) (ResponseResult, error) {
	return s.music(ctx, selector, spark.CyclePause{})
}

// Volume changes the volume by delta percent.
func (s Service) Volume(ctx context.Context, selector string, delta int) (ResponseResult, error) {
	if delta < -100 || delta > 100 {
		return ResponseResult{}, &CLIError{Code: ExitUsage, Msg: "volume delta must be between -100 and 100"}
	}
	return s.music(ctx, selector, spark.ChangeVolume{Amount: delta})
}

// Current describes the item being played.
func (s Service) Current(ctx context.Context, selector string) (ResponseResult, error) {
	return s.music(ctx, selector, spark.Current{})
}

// Queue enqueues a catalog song by name or, with search, anything the video
// backend can find.
func (s Service) Queue(ctx context.Context, selector string, query string, search bool) (ResponseResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return ResponseResult{}, &CLIError{Code: ExitUsage, Msg: "query required"}
	}
	return s.music(ctx, selector, spark.Queue{Query: query, Search: search})
}

// QueueCategory enqueues every catalog song in category.
func (s Service) QueueCategory(ctx context.Context, selector string, category string, shuffle bool) (ResponseResult, error) {
	if strings.TrimSpace(category) == "" {
		return ResponseResult{}, &CLIError{Code: ExitUsage, Msg: "category required"}
	}
	return s.music(ctx, selector, spark.QueueCategory{Category: category, Shuffle: shuffle})
}

// Now lists titles around the current item. A nil amount uses the daemon
// default.
func (s Service) Now(ctx context.Context, selector string, amount *uint) (ResponseResult, error) {
	return s.music(ctx, selector, spark.Now{Amount: amount})
}

// ResetCursor makes the next enqueue land right after the current item.
func (s Service) ResetCursor(ctx context.Context, selector string) (ResponseResult, error) {
	return s.music(ctx, selector, spark.ResetQueueCursor{})
}

// Ping sends a heartbeat.
func (s Service) Ping(ctx context.Context, selector string) (ResponseResult, error) {
	return s.Send(ctx, selector, spark.Heartbeat{})
}

// Version asks the device for its version.
func (s Service) Version(ctx context.Context, selector string) (ResponseResult, error) {
	return s.Send(ctx, selector, spark.Version{})
}

// Raw sends a command given as JSON and returns the undecoded response.
func (s Service) Raw(ctx context.Context, selector string, command []byte) (RawResult, error) {
	if _, err := spark.DecodeCommand(command); err != nil {
		return RawResult{}, WrapError(ExitUsage, "invalid command", err)
	}
	device, err := s.Resolver.ResolveDevice(ctx, selector)
	if err != nil {
		return RawResult{}, err
	}
	reply, err := s.publish(ctx, device, spark.Envelope{Command: json.RawMessage(command)})
	if err != nil {
		return RawResult{}, err
	}
	var data any
	if err := json.Unmarshal(reply.Response, &data); err != nil {
		return RawResult{}, WrapError(ExitRuntime, "decode response", err)
	}
	return RawResult{Data: data}, nil
}

// Send delivers cmd to the selected device and decodes the response.
func (s Service) Send(ctx context.Context, selector string, cmd spark.Command) (ResponseResult, error) {
	device, err := s.Resolver.ResolveDevice(ctx, selector)
	if err != nil {
		return ResponseResult{}, err
	}
	env, err := spark.NewEnvelope(cmd)
	if err != nil {
		return ResponseResult{}, WrapError(ExitRuntime, "build command", err)
	}
	reply, err := s.publish(ctx, device, env)
	if err != nil {
		return ResponseResult{}, err
	}
	resp, err := reply.DecodeResponse()
	if err != nil {
		return ResponseResult{}, WrapError(ExitRuntime, "decode response", err)
	}
	if !resp.IsOK() {
		return ResponseResult{}, ErrorForResponse(resp.Err)
	}
	return ResponseResult{Device: device, Command: commandName(cmd), Payload: resp.Payload}, nil
}

func (s Service) music(ctx context.Context, selector string, kind spark.MusicCmdKind) (ResponseResult, error) {
	return s.Send(ctx, selector, spark.Music{Command: kind})
}

func (s Service) publish(ctx context.Context, device spark.Presence, env spark.Envelope) (spark.ReplyEnvelope, error) {
	env.ID = s.IDGen.NewID()
	env.TS = s.Clock.NowUnix()
	env.From = s.Config.Identity
	env.ReplyTo = s.Broker.ReplyTopic()
	reply, err := s.Broker.PublishCommand(ctx, device.DeviceID, env)
	if err != nil {
		return spark.ReplyEnvelope{}, WrapError(ExitRuntime, "publish command", err)
	}
	return reply, nil
}

func commandName(cmd spark.Command) string {
	if music, ok := cmd.(spark.Music); ok && music.Command != nil {
		return music.Command.KindName()
	}
	return cmd.CommandName()
}
