// Package mqtt exposes the sensors to Home Assistant through MQTT discovery.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/georitm-bridge/internal/dispatch"
	"github.com/caarlos0/georitm-bridge/internal/entity"
	"github.com/caarlos0/georitm-bridge/internal/state"
	"github.com/charmbracelet/log"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const commandTimeout = time.Minute

type Config struct {
	Broker          string
	Username        string
	Password        string
	ClientID        string
	TopicPrefix     string
	DiscoveryPrefix string
}

// Commander sends commands to entities.
type Commander interface {
	Send(ctx context.Context, entityID string, cmd dispatch.Command) error
}

// Bridge publishes entity states and forwards commands from MQTT.
type Bridge struct {
	client    pahomqtt.Client
	topics    topics
	sensors   []entity.Sensor
	store     state.Store
	commander Commander
	logger    *log.Logger
	unwatch   func()
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewBridge creates and connects the bridge.
func NewBridge(
	cfg Config,
	sensors []entity.Sensor,
	store state.Store,
	commander Commander,
	logger *log.Logger,
) (*Bridge, error) {
	b := newBridge(cfg, sensors, store, commander, logger)
	if cfg.ClientID == "" {
		cfg.ClientID = "georitm-bridge-" + uuid.NewString()
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetOrderMatters(false).
		SetWill(b.topics.bridgeState(), payloadOffline, 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			b.logger.Info("connected", "broker", cfg.Broker, "client_id", cfg.ClientID)
			b.publish(message{Topic: b.topics.bridgeState(), Payload: []byte(payloadOnline), Retained: true})
			b.publishDiscovery()
			b.publishStates()
			b.subscribeCommands()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			b.logger.Warn("connection lost", "err", err)
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	b.client = client
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		b.cancel()
		return nil, fmt.Errorf("could not connect to %s: timeout", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		b.cancel()
		return nil, fmt.Errorf("could not connect to %s: %w", cfg.Broker, err)
	}
	return b, nil
}

func newBridge(
	cfg Config,
	sensors []entity.Sensor,
	store state.Store,
	commander Commander,
	logger *log.Logger,
) *Bridge {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "georitm"
	}
	if cfg.DiscoveryPrefix == "" {
		cfg.DiscoveryPrefix = "homeassistant"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		topics:    topics{prefix: cfg.TopicPrefix, discovery: cfg.DiscoveryPrefix},
		sensors:   sensors,
		store:     store,
		commander: commander,
		logger:    logger.With("component", "mqtt"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start publishes every state change of the store.
func (b *Bridge) Start() {
	b.unwatch = b.store.Watch(func(st state.State) {
		for _, msg := range stateMessages(st, b.topics) {
			b.publish(msg)
		}
	})
	b.logger.Info("bridge started", "prefix", b.topics.prefix, "sensors", len(b.sensors))
}

// Stop publishes the offline state and disconnects.
func (b *Bridge) Stop() {
	b.cancel()
	if b.unwatch != nil {
		b.unwatch()
	}
	token := b.client.Publish(b.topics.bridgeState(), 1, true, payloadOffline)
	token.WaitTimeout(time.Second)
	b.client.Disconnect(1000)
	b.logger.Info("bridge stopped")
}

func (b *Bridge) publishDiscovery() {
	for _, msg := range buildDiscovery(b.sensors, b.topics) {
		b.publish(msg)
	}
	b.logger.Info("published discovery", "sensors", len(b.sensors))
}

func (b *Bridge) publishStates() {
	states, err := b.store.List()
	if err != nil {
		b.logger.Error("could not list states", "err", err)
		return
	}
	for _, st := range states {
		for _, msg := range stateMessages(st, b.topics) {
			b.publish(msg)
		}
	}
}

func (b *Bridge) subscribeCommands() {
	topic := b.topics.sendCommand()
	token := b.client.Subscribe(topic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		b.handleCommand(msg.Payload())
	})
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			b.logger.Warn("subscribe timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			b.logger.Error("could not subscribe", "topic", topic, "err", err)
		}
	}()
}

type sendCommand struct {
	EntityID string `json:"entity_id"`
	Command  string `json:"command"`
}

var errInvalidCommand = errors.New("invalid command")

func decodeCommand(payload []byte) (string, dispatch.Command, error) {
	var req sendCommand
	if err := json.Unmarshal(payload, &req); err != nil {
		return "", "", fmt.Errorf("%w: %v", errInvalidCommand, err)
	}
	if req.EntityID == "" {
		return "", "", fmt.Errorf("%w: missing entity_id", errInvalidCommand)
	}
	cmd, err := dispatch.ParseCommand(req.Command)
	if err != nil {
		return "", "", err
	}
	return req.EntityID, cmd, nil
}

func (b *Bridge) handleCommand(payload []byte) {
	entityID, cmd, err := decodeCommand(payload)
	if err != nil {
		b.logger.Warn("dropping command", "payload", string(payload), "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()
	if err := b.commander.Send(ctx, entityID, cmd); err != nil {
		b.logger.Error("command failed", "entity", entityID, "command", cmd, "err", err)
		return
	}
	b.logger.Info("command sent", "entity", entityID, "command", cmd)
}

func (b *Bridge) publish(msg message) {
	token := b.client.Publish(msg.Topic, 1, msg.Retained, msg.Payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			b.logger.Warn("publish timeout", "topic", msg.Topic)
		} else if err := token.Error(); err != nil {
			b.logger.Warn("publish error", "topic", msg.Topic, "err", err)
		}
	}()
}
