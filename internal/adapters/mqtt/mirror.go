// Package mqtt mirrors control broadcasts onto an MQTT topic
package mqtt

import (
	"context"
	"strings"
	"sync"
	"time"

	perr "penwatch/internal/platform/errors"
	"penwatch/internal/platform/logger"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Config describes the broker connection
type Config struct {
	// Broker is host:port or a full URL such as ssl://host:8883
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
	Username    string
	Password    string

	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ClientID == "" {
		c.ClientID = "penwatch"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "penwatch"
	}
	if c.QoS > 2 {
		c.QoS = 0
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 2 * time.Second
	}
	return c
}

// Topic is where directive lines are published
func (c Config) Topic() string {
	return strings.TrimRight(c.withDefaults().TopicPrefix, "/") + "/control"
}

// Stats are mirror counters
type Stats struct {
	Connected bool   `json:"connected"`
	Topic     string `json:"topic"`
	Published uint64 `json:"published"`
	Errors    uint64 `json:"errors"`
}

// Mirror publishes every broadcast line, it implements broadcast.Mirror
type Mirror struct {
	cfg    Config
	topic  string
	client paho.Client

	mu        sync.RWMutex
	connected bool
	published uint64
	errors    uint64

	log *logger.Logger
}

// New builds a mirror; call Connect before publishing
func New(cfg Config) *Mirror {
	cfg = cfg.withDefaults()
	m := &Mirror{cfg: cfg, topic: cfg.Topic(), log: logger.Named("mqtt")}
	m.client = paho.NewClient(m.options())
	return m
}

func brokerURL(b string) string {
	if strings.Contains(b, "://") {
		return b
	}
	return "tcp://" + b
}

func (m *Mirror) options() *paho.ClientOptions {
	opts := paho.NewClientOptions()
	opts.AddBroker(brokerURL(m.cfg.Broker))
	opts.SetClientID(m.cfg.ClientID)
	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username)
		opts.SetPassword(m.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(paho.Client) {
		m.setConnected(true)
		m.log.Info().Str("broker", m.cfg.Broker).Str("topic", m.topic).Msg("mqtt connected")
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		m.setConnected(false)
		m.log.Warn().Err(err).Str("broker", m.cfg.Broker).Msg("mqtt connection lost, will auto-reconnect")
	}
	return opts
}

// Connect dials the broker and waits up to ConnectTimeout
func (m *Mirror) Connect(ctx context.Context) error {
	m.log.Info().Str("broker", m.cfg.Broker).Str("client_id", m.cfg.ClientID).Msg("connecting to mqtt broker")
	if err := m.wait(ctx, m.client.Connect(), m.cfg.ConnectTimeout); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "mqtt connect %s", m.cfg.Broker)
	}
	m.setConnected(true)
	return nil
}

// Name identifies the mirror in logs
func (m *Mirror) Name() string { return "mqtt:" + m.topic }

// Publish sends one directive line, never retained
func (m *Mirror) Publish(ctx context.Context, line string) error {
	if !m.isConnected() {
		m.countError()
		return perr.New(perr.ErrorCodeUnavailable, "mqtt not connected")
	}
	if err := m.wait(ctx, m.client.Publish(m.topic, m.cfg.QoS, false, []byte(line)), m.cfg.PublishTimeout); err != nil {
		m.countError()
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "mqtt publish")
	}

	m.mu.Lock()
	m.published++
	m.mu.Unlock()
	m.log.Debug().Str("topic", m.topic).Int("size", len(line)).Msg("line mirrored")
	return nil
}

// Stats returns mirror counters
func (m *Mirror) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{Connected: m.connected, Topic: m.topic, Published: m.published, Errors: m.errors}
}

// Close disconnects with a short grace period
func (m *Mirror) Close() {
	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(250)
		m.log.Info().Msg("mqtt disconnected")
	}
	m.setConnected(false)
}

func (m *Mirror) wait(ctx context.Context, tok paho.Token, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-tok.Done():
		return tok.Error()
	case <-t.C:
		return perr.New(perr.ErrorCodeUnavailable, "mqtt timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Mirror) setConnected(v bool) {
	m.mu.Lock()
	m.connected = v
	m.mu.Unlock()
}

func (m *Mirror) isConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

func (m *Mirror) countError() {
	m.mu.Lock()
	m.errors++
	m.mu.Unlock()
}
