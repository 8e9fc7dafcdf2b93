package core

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mikey-austin/mtogo/pkg/spark"
)

type stubClock struct{}

func (stubClock) NowUnix() int64 { return 100 }

type stubIDGen struct{}

func (stubIDGen) NewID() string { return "id-1" }

type stubBroker struct {
	presence   []spark.Presence
	response   spark.Response
	lastDevice string
	lastEnv    spark.Envelope
	replyTopic string
}

func (s *stubBroker) ReplyTopic() string { return s.replyTopic }

func (s *stubBroker) PublishCommand(_ context.Context, deviceID string, env spark.Envelope) (spark.ReplyEnvelope, error) {
	s.lastDevice = deviceID
	s.lastEnv = env
	return spark.NewReply(env.ID, 101, s.response)
}

func (s *stubBroker) ListPresence(context.Context) ([]spark.Presence, error) {
	return s.presence, nil
}

func newTestService(broker *stubBroker) Service {
	cfg := Config{Identity: "cli"}
	return Service{
		Broker:   broker,
		Resolver: Resolver{Presence: broker, Config: cfg},
		Clock:    stubClock{},
		IDGen:    stubIDGen{},
		Config:   cfg,
	}
}

func TestQueueBuildsEnvelope(t *testing.T) {
	broker := &stubBroker{
		presence:   []spark.Presence{{DeviceID: "kitchen", Name: "Kitchen"}},
		response:   spark.Ok(spark.QueueSummary{From: 3, MovedTo: 1, Current: 0}),
		replyTopic: "mtogo/v1/reply/cli",
	}
	svc := newTestService(broker)

	result, err := svc.Queue(context.Background(), "", "Song A", false)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if broker.lastDevice != "kitchen" {
		t.Fatalf("expected single device to be picked, got %q", broker.lastDevice)
	}
	env := broker.lastEnv
	if env.ID != "id-1" || env.TS != 100 || env.From != "cli" || env.ReplyTo != "mtogo/v1/reply/cli" {
		t.Fatalf("unexpected envelope %+v", env)
	}
	cmd, err := spark.DecodeCommand(env.Command)
	if err != nil {
		t.Fatalf("decode sent command: %v", err)
	}
	queue, ok := cmd.(spark.Music).Command.(spark.Queue)
	if !ok || queue.Query != "Song A" || queue.Search {
		t.Fatalf("unexpected command %+v", cmd)
	}
	if result.Command != "Queue" {
		t.Fatalf("unexpected command name %s", result.Command)
	}
	if summary := result.Payload.(spark.QueueSummary); summary.From != 3 || summary.MovedTo != 1 {
		t.Fatalf("unexpected payload %+v", summary)
	}
}

func TestWireErrorBecomesExitCode(t *testing.T) {
	broker := &stubBroker{
		presence: []spark.Presence{{DeviceID: "kitchen", Name: "Kitchen"}},
		response: spark.Fail(spark.RequestFailed, spark.DetailNotInPlaylist),
	}
	svc := newTestService(broker)
	_, err := svc.Queue(context.Background(), "kitchen", "Nope", false)
	if ExitCode(err) != ExitNotFound {
		t.Fatalf("expected not found exit, got %v", err)
	}
}

func TestUsageErrors(t *testing.T) {
	svc := newTestService(&stubBroker{})
	if _, err := svc.Volume(context.Background(), "", 250); ExitCode(err) != ExitUsage {
		t.Fatalf("expected usage error, got %v", err)
	}
	if _, err := svc.Queue(context.Background(), "", "  ", true); ExitCode(err) != ExitUsage {
		t.Fatalf("expected usage error, got %v", err)
	}
	if _, err := svc.Raw(context.Background(), "", []byte(`{"Bogus":1}`)); ExitCode(err) != ExitUsage {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestRawReturnsUndecodedResponse(t *testing.T) {
	broker := &stubBroker{
		presence: []spark.Presence{{DeviceID: "kitchen", Name: "Kitchen"}},
		response: spark.Ok(spark.Unit{}),
	}
	svc := newTestService(broker)
	result, err := svc.Raw(context.Background(), "Kitchen", []byte(`"Heartbeat"`))
	if err != nil {
		t.Fatalf("raw: %v", err)
	}
	encoded, _ := json.Marshal(result.Data)
	if string(encoded) != `{"Ok":"Unit"}` {
		t.Fatalf("unexpected raw data %s", encoded)
	}
	if string(broker.lastEnv.Command) != `"Heartbeat"` {
		t.Fatalf("raw command must be forwarded untouched, got %s", broker.lastEnv.Command)
	}
}
