// Package telemetry publishes fleet and session events to an MQTT broker.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/clankers-project/clankers/internal/config"
	"github.com/clankers-project/clankers/internal/events"
	"github.com/clankers-project/clankers/internal/util"
)

// Topic suffixes under the configured prefix.
const (
	TopicSession = "session"
	TopicFleet   = "fleet"
	TopicStatus  = "status"
	TopicHealth  = "health"
)

const disconnectQuiesceMS = 2000

// Option configures a Publisher.
type Option func(*Publisher)

// WithClient replaces the paho client built from the config.
func WithClient(c mqtt.Client) Option {
	return func(p *Publisher) { p.client = c }
}

// WithStatus publishes the result of src to <prefix>/status every interval
// while running, and once more on shutdown.
func WithStatus(src func() any, interval time.Duration) Option {
	return func(p *Publisher) {
		p.status = src
		p.statusEvery = interval
	}
}

// Publisher forwards bus events to MQTT as JSON.
type Publisher struct {
	cfg    config.MQTTConfig
	bus    *events.EventBus
	client mqtt.Client
	logger zerolog.Logger

	status      func() any
	statusEvery time.Duration

	// Included in every message
	metadata map[string]any
}

// NewPublisher builds a publisher for cfg. The broker is not contacted until Connect.
func NewPublisher(cfg config.MQTTConfig, bus *events.EventBus, opts ...Option) *Publisher {
	sysInfo := util.GetSystemInfo()
	p := &Publisher{
		cfg:    cfg,
		bus:    bus,
		logger: util.ComponentLogger("mqtt"),
		metadata: map[string]any{
			"hostname":  sysInfo.Hostname,
			"os":        sysInfo.OS,
			"cpu_cores": sysInfo.CPUCores,
			"memory_mb": sysInfo.TotalMemory,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = mqtt.NewClient(p.clientOptions(sysInfo.Hostname))
	}
	return p
}

func (p *Publisher) clientOptions(hostname string) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.cfg.Broker)

	if p.cfg.ClientID != "" {
		opts.SetClientID(p.cfg.ClientID)
	} else {
		opts.SetClientID(fmt.Sprintf("clankers-%s", hostname))
	}
	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(mqtt.Client) {
		p.logger.Info().Str("broker", p.cfg.Broker).Msg("MQTT connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.logger.Warn().Err(err).Msg("MQTT connection lost")
	})
	return opts
}

// Connect connects to the broker and subscribes to the bus. Events emitted
// before Connect returns are not published, so call it before the fleet
// starts.
func (p *Publisher) Connect() error {
	p.logger.Info().Str("broker", p.cfg.Broker).Msg("connecting to MQTT broker")

	token := p.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	p.bus.SubscribeAll(events.SessionTypes, "mqtt.session", p.onSession)
	p.bus.SubscribeAll([]events.EventType{events.EventFleetStarted, events.EventFleetStopped}, "mqtt.fleet", p.onFleet)
	p.bus.Subscribe(events.EventHealthAlert, "mqtt.health", p.onHealth)
	return nil
}

// Run publishes the status snapshot until ctx is cancelled, then publishes
// it once more, unsubscribes and disconnects. Cancel ctx only after the
// fleet has stopped so its fleet_stopped event is still forwarded.
func (p *Publisher) Run(ctx context.Context) error {
	defer func() {
		for _, t := range events.SessionTypes {
			p.bus.Unsubscribe(t, "mqtt.session")
		}
		p.bus.Unsubscribe(events.EventFleetStarted, "mqtt.fleet")
		p.bus.Unsubscribe(events.EventFleetStopped, "mqtt.fleet")
		p.bus.Unsubscribe(events.EventHealthAlert, "mqtt.health")
	}()

	var tick <-chan time.Time
	if p.status != nil && p.statusEvery > 0 {
		ticker := time.NewTicker(p.statusEvery)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			if p.status != nil {
				p.publish(p.Topic(TopicStatus), p.status())
			}
			p.client.Disconnect(disconnectQuiesceMS)
			p.logger.Info().Msg("MQTT disconnected")
			return nil
		case <-tick:
			p.publish(p.Topic(TopicStatus), p.status())
		}
	}
}

// Topic joins the configured prefix and parts with '/'.
func (p *Publisher) Topic(parts ...string) string {
	prefix := strings.TrimSuffix(p.cfg.TopicPrefix, "/")
	return strings.Join(append([]string{prefix}, parts...), "/")
}

func (p *Publisher) onSession(ctx context.Context, event events.Event) error {
	p.publish(p.Topic(TopicSession, eventSuffix(event.Type, "session_")), event.Payload)
	return nil
}

func (p *Publisher) onFleet(ctx context.Context, event events.Event) error {
	p.publish(p.Topic(TopicFleet, eventSuffix(event.Type, "fleet_")), event.Payload)
	return nil
}

func (p *Publisher) onHealth(ctx context.Context, event events.Event) error {
	topic := p.Topic(TopicHealth)
	if alert, ok := event.Payload.(events.HealthPayload); ok {
		topic = p.Topic(TopicHealth, alert.Check)
	}
	p.publish(topic, event.Payload)
	return nil
}

func eventSuffix(t events.EventType, prefix string) string {
	return strings.TrimPrefix(string(t), prefix)
}

// publish sends a JSON message at QoS 1. Messages are dropped while the
// client is offline.
func (p *Publisher) publish(topic string, payload any) {
	if !p.client.IsConnected() {
		return
	}

	data, err := json.Marshal(p.buildMessage(payload))
	if err != nil {
		p.logger.Warn().Err(err).Str("topic", topic).Msg("failed to marshal MQTT message")
		return
	}

	token := p.client.Publish(topic, 1, false, data)
	go func() {
		token.Wait()
		if token.Error() != nil {
			p.logger.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
}

// buildMessage combines metadata with the event payload.
func (p *Publisher) buildMessage(payload any) map[string]any {
	msg := make(map[string]any, len(p.metadata)+2)
	for k, v := range p.metadata {
		msg[k] = v
	}
	msg["payload"] = payload
	msg["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return msg
}
