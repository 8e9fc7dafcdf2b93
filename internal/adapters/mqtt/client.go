package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/mikey-austin/mtogo/internal/adapters/mqttserver"
	"github.com/mikey-austin/mtogo/pkg/spark"
)

// ErrTimeout is returned when no reply arrives in time.
var ErrTimeout = errors.New("timeout waiting for reply")

// Options configures the MQTT client.
type Options struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	TLSCA     string
	TLSCert   string
	TLSKey    string
	TopicBase string
	Timeout   time.Duration
	// PresenceWait bounds how long retained presence is collected.
	PresenceWait time.Duration
}

// Client is the controller side of the protocol: it publishes command
// envelopes and correlates replies by envelope id.
type Client struct {
	client       paho.Client
	replyTopic   string
	topicBase    string
	timeout      time.Duration
	presenceWait time.Duration

	mu      sync.Mutex
	waiting map[string]chan spark.ReplyEnvelope
}

// NewClient creates and connects an MQTT client.
func NewClient(opts Options) (*Client, error) {
	if opts.TopicBase == "" {
		opts.TopicBase = spark.BaseTopic
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.PresenceWait == 0 {
		opts.PresenceWait = 250 * time.Millisecond
	}

	c := &Client{
		replyTopic:   spark.TopicReply(opts.TopicBase, opts.ClientID),
		topicBase:    opts.TopicBase,
		timeout:      opts.Timeout,
		presenceWait: opts.PresenceWait,
		waiting:      map[string]chan spark.ReplyEnvelope{},
	}

	clientOpts := paho.NewClientOptions().AddBroker(opts.BrokerURL)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetConnectTimeout(opts.Timeout)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetOnConnectHandler(func(client paho.Client) {
		client.Subscribe(c.replyTopic, 1, c.handleReply).Wait()
	})
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}
	tlsConfig, err := mqttserver.BuildTLSConfig(opts.TLSCA, opts.TLSCert, opts.TLSKey)
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		clientOpts.SetTLSConfig(tlsConfig)
	}

	c.client = paho.NewClient(clientOpts)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	if token := c.client.Subscribe(c.replyTopic, 1, c.handleReply); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return c, nil
}

// Close disconnects from the broker.
func (c *Client) Close() {
	c.client.Disconnect(250)
}

// ReplyTopic returns the topic used for replies.
func (c *Client) ReplyTopic() string {
	return c.replyTopic
}

// PublishCommand publishes env to a device and waits for the matching reply.
func (c *Client) PublishCommand(ctx context.Context, deviceID string, env spark.Envelope) (spark.ReplyEnvelope, error) {
	if env.ReplyTo == "" {
		env.ReplyTo = c.replyTopic
	}
	req, err := json.Marshal(env)
	if err != nil {
		return spark.ReplyEnvelope{}, fmt.Errorf("marshal command: %w", err)
	}

	replyCh := c.expect(env.ID)
	defer c.forget(env.ID)

	topic := spark.TopicCommands(c.topicBase, deviceID)
	if token := c.client.Publish(topic, 1, false, req); token.Wait() && token.Error() != nil {
		return spark.ReplyEnvelope{}, token.Error()
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return spark.ReplyEnvelope{}, ctx.Err()
	case reply := <-replyCh:
		return reply, nil
	case <-timer.C:
		return spark.ReplyEnvelope{}, ErrTimeout
	}
}

// ListPresence collects retained presence messages, sorted by device id.
func (c *Client) ListPresence(ctx context.Context) ([]spark.Presence, error) {
	var (
		mu      sync.Mutex
		collect = map[string]spark.Presence{}
	)
	handler := func(_ paho.Client, msg paho.Message) {
		presence, ok := decodePresence(msg.Payload())
		if !ok {
			return
		}
		mu.Lock()
		collect[presence.DeviceID] = presence
		mu.Unlock()
	}

	topic := spark.TopicPresence(c.topicBase, "+")
	if token := c.client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	defer func() {
		c.client.Unsubscribe(topic).Wait()
	}()

	wait := time.NewTimer(c.presenceWait)
	select {
	case <-ctx.Done():
		wait.Stop()
	case <-wait.C:
	}

	mu.Lock()
	defer mu.Unlock()
	out := make([]spark.Presence, 0, len(collect))
	for _, presence := range collect {
		out = append(out, presence)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out, nil
}

func (c *Client) expect(id string) chan spark.ReplyEnvelope {
	ch := make(chan spark.ReplyEnvelope, 1)
	c.mu.Lock()
	c.waiting[id] = ch
	c.mu.Unlock()
	return ch
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.waiting, id)
	c.mu.Unlock()
}

func (c *Client) handleReply(_ paho.Client, msg paho.Message) {
	c.deliver(msg.Payload())
}

// deliver routes a reply to its waiting request. Unknown ids are dropped.
func (c *Client) deliver(payload []byte) bool {
	var reply spark.ReplyEnvelope
	if err := json.Unmarshal(payload, &reply); err != nil {
		return false
	}
	c.mu.Lock()
	ch, ok := c.waiting[reply.ID]
	c.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- reply:
		return true
	default:
		return false
	}
}

// decodePresence ignores cleared (empty) retained messages.
func decodePresence(payload []byte) (spark.Presence, bool) {
	if len(payload) == 0 {
		return spark.Presence{}, false
	}
	var presence spark.Presence
	if err := json.Unmarshal(payload, &presence); err != nil || presence.DeviceID == "" {
		return spark.Presence{}, false
	}
	return presence, true
}
