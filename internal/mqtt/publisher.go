package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/Hezy4/LEO/internal/config"
)

// StatsSource supplies runtime values for the sensor states. The
// concrete adapter is wired in main to keep this package decoupled
// from the agent loop.
type StatsSource interface {
	Uptime() time.Duration
	Model() string
	ActiveSessions() int
	LastTurnTime() time.Time
	MoodSummary() string
}

// Publisher manages the broker connection, publishes discovery configs
// on every (re-)connect, and pushes sensor states on a timer.
type Publisher struct {
	cfg        config.MQTTConfig
	instanceID string
	device     DeviceInfo
	stats      StatsSource
	logger     *slog.Logger
	cm         *autopaho.ConnectionManager
}

// New creates a Publisher without connecting. Call Start to connect
// and run the publish loop.
func New(cfg config.MQTTConfig, instanceID string, stats StatsSource, logger *slog.Logger) *Publisher {
	return &Publisher{
		cfg:        cfg,
		instanceID: instanceID,
		device:     NewDeviceInfo(instanceID, cfg.DeviceName),
		stats:      stats,
		logger:     logger,
	}
}

// Start connects to the broker and launches the periodic publish loop
// in the background. It returns once the connection manager is
// running; autopaho keeps dialing until the broker is reachable or ctx
// is cancelled, so an unreachable broker is not an error here.
func (p *Publisher) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(p.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: p.cfg.Username,
		ConnectPassword: []byte(p.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   p.availabilityTopic(),
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.logger.Info("mqtt connected", "broker", p.cfg.Broker)
			p.publishDiscovery(ctx, cm)
			p.publishAvailability(ctx, cm, "online")
		},
		OnConnectError: func(err error) {
			p.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "leo-" + p.cfg.DeviceName,
		},
	}
	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.cm = cm

	go func() {
		connCtx, connCancel := context.WithTimeout(ctx, 30*time.Second)
		defer connCancel()
		if err := cm.AwaitConnection(connCtx); err != nil {
			// autopaho keeps retrying in the background.
			p.logger.Warn("mqtt initial connection timed out, retrying in background", "error", err)
		}
		p.runLoop(ctx)
	}()
	return nil
}

// Stop publishes "offline" and disconnects. The context bounds how
// long to wait.
func (p *Publisher) Stop(ctx context.Context) error {
	if p.cm == nil {
		return nil
	}
	p.publishAvailability(ctx, p.cm, "offline")
	return p.cm.Disconnect(ctx)
}

func (p *Publisher) baseTopic() string {
	return "leo/" + p.cfg.DeviceName
}

func (p *Publisher) availabilityTopic() string {
	return p.baseTopic() + "/availability"
}

func (p *Publisher) stateTopic(entity string) string {
	return p.baseTopic() + "/" + entity + "/state"
}

func (p *Publisher) discoveryTopic(component, entity string) string {
	return p.cfg.DiscoveryPrefix + "/" + component + "/" + p.cfg.DeviceName + "/" + entity + "/config"
}

type sensorDef struct {
	entitySuffix string
	config       SensorConfig
}

func (p *Publisher) sensorDefinitions() []sensorDef {
	avail := p.availabilityTopic()
	return []sensorDef{
		{
			entitySuffix: "uptime",
			config: SensorConfig{
				Name:              p.device.Name + " Uptime",
				UniqueID:          p.instanceID + "_uptime",
				StateTopic:        p.stateTopic("uptime"),
				AvailabilityTopic: avail,
				Device:            p.device,
				Icon:              "mdi:clock-outline",
				EntityCategory:    "diagnostic",
			},
		},
		{
			entitySuffix: "model",
			config: SensorConfig{
				Name:              p.device.Name + " Model",
				UniqueID:          p.instanceID + "_model",
				StateTopic:        p.stateTopic("model"),
				AvailabilityTopic: avail,
				Device:            p.device,
				Icon:              "mdi:brain",
				EntityCategory:    "diagnostic",
			},
		},
		{
			entitySuffix: "active_sessions",
			config: SensorConfig{
				Name:              p.device.Name + " Active Sessions",
				UniqueID:          p.instanceID + "_active_sessions",
				StateTopic:        p.stateTopic("active_sessions"),
				AvailabilityTopic: avail,
				Device:            p.device,
				Icon:              "mdi:chat-processing",
				StateClass:        "measurement",
			},
		},
		{
			entitySuffix: "last_turn",
			config: SensorConfig{
				Name:              p.device.Name + " Last Turn",
				UniqueID:          p.instanceID + "_last_turn",
				StateTopic:        p.stateTopic("last_turn"),
				AvailabilityTopic: avail,
				Device:            p.device,
				Icon:              "mdi:clock-check",
				EntityCategory:    "diagnostic",
			},
		},
		{
			entitySuffix: "mood",
			config: SensorConfig{
				Name:              p.device.Name + " Mood",
				UniqueID:          p.instanceID + "_mood",
				StateTopic:        p.stateTopic("mood"),
				AvailabilityTopic: avail,
				Device:            p.device,
				Icon:              "mdi:emoticon-outline",
			},
		},
	}
}

func (p *Publisher) publishDiscovery(ctx context.Context, cm *autopaho.ConnectionManager) {
	for _, s := range p.sensorDefinitions() {
		topic := p.discoveryTopic("sensor", s.entitySuffix)
		payload, err := json.Marshal(s.config)
		if err != nil {
			p.logger.Error("mqtt marshal discovery payload", "entity", s.entitySuffix, "error", err)
			continue
		}
		if _, err := cm.Publish(ctx, &paho.Publish{
			Topic:   topic,
			Payload: payload,
			QoS:     1,
			Retain:  true,
		}); err != nil {
			p.logger.Warn("mqtt discovery publish failed", "entity", s.entitySuffix, "error", err)
		}
	}
}

func (p *Publisher) publishAvailability(ctx context.Context, cm *autopaho.ConnectionManager, status string) {
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   p.availabilityTopic(),
		Payload: []byte(status),
		QoS:     1,
		Retain:  true,
	}); err != nil {
		p.logger.Warn("mqtt availability publish failed", "status", status, "error", err)
	} else {
		p.logger.Info("mqtt availability published", "status", status)
	}
}

func (p *Publisher) runLoop(ctx context.Context) {
	interval := time.Duration(p.cfg.PublishIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.publishStates(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishStates(ctx)
		}
	}
}

func (p *Publisher) publishStates(ctx context.Context) {
	if p.cm == nil || p.stats == nil {
		return
	}

	states := map[string]string{
		"uptime":          p.stats.Uptime().Truncate(time.Second).String(),
		"model":           p.stats.Model(),
		"active_sessions": strconv.Itoa(p.stats.ActiveSessions()),
		"mood":            p.stats.MoodSummary(),
	}
	if last := p.stats.LastTurnTime(); !last.IsZero() {
		states["last_turn"] = last.Format(time.RFC3339)
	} else {
		states["last_turn"] = "never"
	}

	for entity, value := range states {
		if _, err := p.cm.Publish(ctx, &paho.Publish{
			Topic:   p.stateTopic(entity),
			Payload: []byte(value),
			QoS:     0,
			Retain:  true,
		}); err != nil {
			p.logger.Debug("mqtt state publish failed", "entity", entity, "error", err)
		}
	}
	p.logger.Debug("mqtt sensor states published", "entities", len(states))
}
