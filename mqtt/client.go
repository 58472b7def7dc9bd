package mqtt

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/eddielth/sensor-monitor/config"
	"github.com/eddielth/sensor-monitor/logger"
)

const (
	connectTimeout    = 10 * time.Second
	subscribeTimeout  = 5 * time.Second
	disconnectQuiesce = 250
)

// Client represents an MQTT client
type Client struct {
	client  paho.Client
	config  config.MQTTConfig
	handler MessageHandler
	started atomic.Bool
}

// MessageHandler is the callback invoked on the paho delivery goroutine
type MessageHandler func(topic string, payload []byte)

// Manager owns the broker connection and the dispatch queue feeding ingestion
type Manager struct {
	client     *Client
	dispatcher *Dispatcher
}

// NewManager creates a new MQTT manager
func NewManager(cfg config.MQTTConfig, transformers Transformer, ingester Ingester) (*Manager, error) {
	pipeline := NewPipeline(transformers, ingester)
	dispatcher := NewDispatcher(cfg.QueueSize, cfg.Workers, cfg.EnqueueTimeout, pipeline.Handle)

	mqttClient, err := newClient(cfg, func(topic string, payload []byte) {
		dispatcher.Enqueue(Message{Topic: topic, Payload: payload})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MQTT client: %w", err)
	}

	return &Manager{
		client:     mqttClient,
		dispatcher: dispatcher,
	}, nil
}

// Start launches the workers, connects and subscribes to the configured topics
func (m *Manager) Start(ctx context.Context) error {
	m.dispatcher.Start(ctx)

	if err := m.client.Connect(); err != nil {
		m.dispatcher.Stop()
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	m.client.subscribeAll()
	m.client.started.Store(true)
	return nil
}

// Stop disconnects and drains queued messages
func (m *Manager) Stop() {
	m.client.Disconnect()
	m.dispatcher.Stop()
}

// Dropped returns how many messages the dispatch queue discarded
func (m *Manager) Dropped() uint64 {
	return m.dispatcher.Dropped()
}

func newClient(cfg config.MQTTConfig, handler MessageHandler) (*Client, error) {
	if cfg.Broker == "" {
		return nil, config.ErrMissingBroker
	}

	if cfg.ClientID == "" {
		cfg.ClientID = "sensor-monitor-" + uuid.NewString()[:8]
	}

	c := &Client{
		config:  cfg,
		handler: handler,
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Error("MQTT connection lost: %v", err)
	})

	opts.SetReconnectingHandler(func(_ paho.Client, _ *paho.ClientOptions) {
		logger.Info("trying to reconnect to MQTT broker...")
	})

	// a clean session loses subscriptions, so restore them after a reconnect
	opts.SetOnConnectHandler(func(_ paho.Client) {
		if c.started.Load() {
			c.subscribeAll()
		}
	})

	c.client = paho.NewClient(opts)
	return c, nil
}

// Connect connects to the MQTT broker
func (c *Client) Connect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("connection to MQTT broker timed out")
	}

	if err := token.Error(); err != nil {
		return err
	}

	logger.Info("successfully connected to MQTT broker: %s", c.config.Broker)
	return nil
}

func (c *Client) subscribeAll() {
	for _, topic := range c.config.Topics {
		if err := c.Subscribe(topic); err != nil {
			logger.Warn("failed to subscribe to topic %s: %v", topic, err)
		}
	}
}

// Subscribe subscribes to the specified topic at the configured QoS
func (c *Client) Subscribe(topic string) error {
	token := c.client.Subscribe(topic, c.config.QoS, func(_ paho.Client, msg paho.Message) {
		logger.Debug("received message from topic %s", msg.Topic())
		c.handler(msg.Topic(), msg.Payload())
	})

	if !token.WaitTimeout(subscribeTimeout) {
		return fmt.Errorf("subscription to topic %s timed out", topic)
	}

	if err := token.Error(); err != nil {
		return err
	}

	logger.Info("successfully subscribed to topic: %s", topic)
	return nil
}

// Disconnect disconnects from the MQTT broker
func (c *Client) Disconnect() {
	c.started.Store(false)
	c.client.Disconnect(disconnectQuiesce)
	logger.Info("disconnected from MQTT broker")
}
