package remotecontrol

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/mikey-austin/mtogo/internal/ports"
	"github.com/mikey-austin/mtogo/pkg/spark"
	"go.uber.org/zap"
)

// Transport is the MQTT surface the module needs.
type Transport interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, handler paho.MessageHandler) error
	Unsubscribe(topic string) error
}

// Handler executes decoded commands.
type Handler interface {
	Handle(ctx context.Context, cmd spark.Command) spark.Response
}

// Config configures the remote control module.
type Config struct {
	DeviceID  string
	TopicBase string
	Name      string
	Version   string
}

// Module answers spark commands arriving on the device command topic.
type Module struct {
	log       *zap.Logger
	transport Transport
	handler   Handler
	clock     ports.Clock
	config    Config
	cmdTopic  string

	mu       sync.Mutex
	closing  bool
	inflight sync.WaitGroup
}

// NewModule validates cfg and builds the module.
func NewModule(log *zap.Logger, transport Transport, handler Handler, clock ports.Clock, cfg Config) (*Module, error) {
	if strings.TrimSpace(cfg.DeviceID) == "" {
		return nil, errors.New("device id required")
	}
	if strings.TrimSpace(cfg.TopicBase) == "" {
		cfg.TopicBase = spark.BaseTopic
	}
	if cfg.Name == "" {
		cfg.Name = cfg.DeviceID
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Module{
		log:       log,
		transport: transport,
		handler:   handler,
		clock:     clock,
		config:    cfg,
		cmdTopic:  spark.TopicCommands(cfg.TopicBase, cfg.DeviceID),
	}, nil
}

// Run subscribes to commands and blocks until ctx is done. Requests that
// are already executing are allowed to finish.
func (m *Module) Run(ctx context.Context) error {
	requestCtx := context.WithoutCancel(ctx)
	handler := func(_ paho.Client, msg paho.Message) {
		payload := msg.Payload()
		m.mu.Lock()
		if m.closing {
			m.mu.Unlock()
			m.log.Debug("dropping command received during shutdown")
			return
		}
		m.inflight.Add(1)
		m.mu.Unlock()
		go func() {
			defer m.inflight.Done()
			m.handlePayload(requestCtx, payload)
		}()
	}
	if err := m.transport.Subscribe(m.cmdTopic, 1, handler); err != nil {
		return err
	}
	if err := m.publishPresence(); err != nil {
		_ = m.transport.Unsubscribe(m.cmdTopic)
		return err
	}
	m.log.Info("listening for commands", zap.String("topic", m.cmdTopic))

	<-ctx.Done()
	_ = m.transport.Unsubscribe(m.cmdTopic)
	// The client may still deliver messages after Unsubscribe returns.
	m.mu.Lock()
	m.closing = true
	m.mu.Unlock()
	m.inflight.Wait()
	if err := m.transport.Publish(m.PresenceTopic(), 1, true, nil); err != nil {
		m.log.Warn("clear presence failed", zap.Error(err))
	}
	return nil
}

// PresenceTopic is where the module announces itself. An empty retained
// payload there means the device is offline.
func (m *Module) PresenceTopic() string {
	return spark.TopicPresence(m.config.TopicBase, m.config.DeviceID)
}

func (m *Module) publishPresence() error {
	presence := spark.Presence{
		DeviceID: m.config.DeviceID,
		Name:     m.config.Name,
		Version:  m.config.Version,
		TS:       m.clock.NowUnix(),
	}
	payload, err := json.Marshal(presence)
	if err != nil {
		return err
	}
	return m.transport.Publish(m.PresenceTopic(), 1, true, payload)
}

func (m *Module) handlePayload(ctx context.Context, payload []byte) {
	var env spark.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		m.log.Warn("invalid envelope", zap.Error(err))
		return
	}
	if env.ReplyTo == "" {
		m.log.Warn("command without reply topic", zap.String("id", env.ID))
		return
	}

	var resp spark.Response
	if err := spark.ValidateEnvelope(env); err != nil {
		resp = spark.Fail(spark.DeserializingCommand, err.Error())
	} else if cmd, err := spark.DecodeCommand(env.Command); err != nil {
		resp = spark.Fail(spark.DeserializingCommand, err.Error())
	} else {
		resp = m.handler.Handle(ctx, cmd)
	}
	if !resp.IsOK() {
		m.log.Debug("command failed", zap.String("id", env.ID), zap.String("from", env.From), zap.Error(resp.Err))
	}
	m.reply(env, resp)
}

func (m *Module) reply(env spark.Envelope, resp spark.Response) {
	reply, err := spark.NewReply(env.ID, m.clock.NowUnix(), resp)
	if err != nil {
		m.log.Error("encode reply", zap.Error(err))
		return
	}
	payload, err := json.Marshal(reply)
	if err != nil {
		m.log.Error("marshal reply", zap.Error(err))
		return
	}
	if err := m.transport.Publish(env.ReplyTo, 1, false, payload); err != nil {
		m.log.Error("publish reply", zap.Error(err))
	}
}
