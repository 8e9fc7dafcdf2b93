package embeddedmqtt

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewServerAllowAnonymous(t *testing.T) {
	server, err := newServer(zap.NewNop(), Config{AllowAnonymous: true})
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	if server == nil {
		t.Fatalf("expected server")
	}
}

func TestNewServerRequiresAuthConfig(t *testing.T) {
	_, err := newServer(zap.NewNop(), Config{})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestInlinePublishSubscribe(t *testing.T) {
	server, err := newServer(zap.NewNop(), Config{Username: "spark", Password: "secret", TopicBase: "mtogo/v1"})
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}

	received := make(chan packets.Packet, 1)
	handler := func(_ *mqtt.Client, _ packets.Subscription, pk packets.Packet) {
		received <- pk
	}
	if err := server.Subscribe("mtogo/v1/device/+/cmd", 1, handler); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := server.Publish("mtogo/v1/device/kitchen/cmd", []byte("payload"), false, 0); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case pk := <-received:
		if string(pk.Payload) != "payload" {
			t.Fatalf("unexpected payload")
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timeout waiting for message")
	}
}

func TestBrokerURL(t *testing.T) {
	if BrokerURL("127.0.0.1:1883", false) != "mqtt://127.0.0.1:1883" {
		t.Fatalf("expected mqtt scheme")
	}
	if BrokerURL("127.0.0.1:8883", true) != "mqtts://127.0.0.1:8883" {
		t.Fatalf("expected mqtts scheme")
	}
	if (Config{}).URL() != "mqtt://"+DefaultListen {
		t.Fatalf("expected default listen url")
	}
	if (Config{Listen: "0.0.0.0:8883", TLSCert: "c", TLSKey: "k"}).URL() != "mqtts://0.0.0.0:8883" {
		t.Fatalf("expected tls url")
	}
}

func TestWaitReadyTimesOut(t *testing.T) {
	err := WaitReady(context.Background(), "127.0.0.1:1", 100*time.Millisecond)
	if err == nil {
		t.Fatalf("expected readiness error")
	}
}

func TestSlogBridge(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := newSlogLogger(zap.New(core)).With("listener", "tcp")

	logger.Debug("hidden")
	logger.Warn("client refused", "client", "abc")
	logger.Error("read failed", "error", errors.New("read connection: EOF"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.WarnLevel || entry.Message != "client refused" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	fields := entry.ContextMap()
	if fields["listener"] != "tcp" || fields["client"] != "abc" {
		t.Fatalf("unexpected fields %+v", fields)
	}

	var _ slog.Handler = &zapSlogHandler{}
}
