// Package telemetry publishes session events and heartbeats to an MQTT broker.
package telemetry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/energizer-project/ottdadmin/internal/config"
	"github.com/energizer-project/ottdadmin/internal/events"
	"github.com/energizer-project/ottdadmin/internal/util"
)

// Topic suffixes below the configured prefix.
const (
	TopicStatus    = "status"
	TopicHeartbeat = "heartbeat"
	TopicEvents    = "events"
)

// publishedEvents are forwarded to the broker.
var publishedEvents = []events.EventType{
	events.EventSessionState,
	events.EventHealthAlert,
	events.EventServerRejected,
	events.EventServerWelcome,
	events.EventNewGame,
	events.EventServerShutdown,
	events.EventDate,
	events.EventClientJoin,
	events.EventClientInfo,
	events.EventClientUpdate,
	events.EventClientQuit,
	events.EventClientError,
	events.EventCompanyNew,
	events.EventCompanyInfo,
	events.EventCompanyUpdate,
	events.EventCompanyRemove,
	events.EventCompanyEconomy,
	events.EventCompanyStats,
	events.EventChat,
	events.EventConsole,
	events.EventRcon,
	events.EventGameScript,
	events.EventCmdLogging,
}

// MQTTHandler manages the MQTT connection and publishes events.
type MQTTHandler struct {
	cfg      config.MQTTConfig
	eventBus *events.EventBus
	client   mqtt.Client
	logger   zerolog.Logger

	// Metadata included in every message
	metadata map[string]interface{}
}

// NewMQTTHandler creates a new MQTT telemetry handler.
func NewMQTTHandler(cfg config.MQTTConfig, eventBus *events.EventBus) (*MQTTHandler, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("MQTT is disabled")
	}

	sysInfo := util.GetSystemInfo()
	h := &MQTTHandler{
		cfg:      cfg,
		eventBus: eventBus,
		logger:   util.ComponentLogger("mqtt"),
		metadata: map[string]interface{}{
			"hostname": sysInfo.Hostname,
			"os":       sysInfo.OS,
		},
	}

	opts, err := h.clientOptions(sysInfo.Hostname)
	if err != nil {
		return nil, err
	}
	h.client = mqtt.NewClient(opts)
	return h, nil
}

func (h *MQTTHandler) clientOptions(hostname string) (*mqtt.ClientOptions, error) {
	scheme := "tcp"
	if h.cfg.UseTLS {
		scheme = "ssl"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, h.cfg.BrokerURL, h.cfg.Port))

	if h.cfg.ClientID != "" {
		opts.SetClientID(h.cfg.ClientID)
	} else {
		opts.SetClientID(fmt.Sprintf("ottdadmin-%s", hostname))
	}
	if h.cfg.Username != "" {
		opts.SetUsername(h.cfg.Username)
		opts.SetPassword(h.cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(true)
	opts.SetWill(h.topic(TopicStatus), "offline", 1, true)

	if h.cfg.UseTLS {
		tlsConfig, err := h.tlsConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		h.logger.Info().Msg("MQTT connected")
		client.Publish(h.topic(TopicStatus), 1, true, "online")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		h.logger.Warn().Err(err).Msg("MQTT connection lost")
	})

	return opts, nil
}

func (h *MQTTHandler) tlsConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if h.cfg.CAFile != "" {
		pem, err := os.ReadFile(h.cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read MQTT CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", h.cfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	// mTLS
	if h.cfg.CertFile != "" && h.cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(h.cfg.CertFile, h.cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load MQTT TLS certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

// Start connects to the broker, forwards events and publishes a heartbeat
// every interval until ctx is cancelled.
func (h *MQTTHandler) Start(ctx context.Context, heartbeat time.Duration) error {
	h.logger.Info().
		Str("broker", h.cfg.BrokerURL).
		Int("port", h.cfg.Port).
		Msg("connecting to MQTT broker")

	token := h.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	h.eventBus.SubscribeMany("mqtt", h.onEvent, publishedEvents...)
	defer func() {
		for _, t := range publishedEvents {
			h.eventBus.Unsubscribe(t, "mqtt")
		}
	}()

	var tick <-chan time.Time
	if heartbeat > 0 {
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			h.client.Publish(h.topic(TopicStatus), 1, true, "offline").WaitTimeout(2 * time.Second)
			h.client.Disconnect(5000)
			h.logger.Info().Msg("MQTT disconnected")
			return nil
		case <-tick:
			h.publish(h.topic(TopicHeartbeat), util.GetProcessStats())
		}
	}
}

func (h *MQTTHandler) onEvent(_ context.Context, event events.Event) error {
	h.publish(TopicFor(h.cfg.TopicPrefix, event), event.Payload)
	return nil
}

// publish sends a JSON message to an MQTT topic.
func (h *MQTTHandler) publish(topic string, payload interface{}) {
	if !h.client.IsConnected() {
		return
	}

	data, err := json.Marshal(h.buildMessage(payload))
	if err != nil {
		h.logger.Warn().Err(err).Str("topic", topic).Msg("failed to marshal MQTT message")
		return
	}

	token := h.client.Publish(topic, 1, false, data)
	go func() {
		token.Wait()
		if token.Error() != nil {
			h.logger.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
}

// buildMessage combines metadata with the event payload.
func (h *MQTTHandler) buildMessage(payload interface{}) map[string]interface{} {
	msg := make(map[string]interface{}, len(h.metadata)+2)
	for k, v := range h.metadata {
		msg[k] = v
	}
	msg["payload"] = payload
	msg["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return msg
}

func (h *MQTTHandler) topic(suffix string) string {
	return joinTopic(h.cfg.TopicPrefix, suffix)
}

// TopicFor returns prefix/events/<source>/<event type>.
func TopicFor(prefix string, event events.Event) string {
	source := event.Source
	if source == "" {
		source = "default"
	}
	return joinTopic(prefix, TopicEvents, sanitize(source), string(event.Type))
}

func joinTopic(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "/")
}

// sanitize strips MQTT wildcard and level characters.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#':
			return '_'
		}
		return r
	}, s)
}
