// Package connector relays session activity to outside services.
package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/energizer-project/ottdadmin/internal/config"
	"github.com/energizer-project/ottdadmin/internal/events"
	"github.com/energizer-project/ottdadmin/internal/game"
	"github.com/energizer-project/ottdadmin/internal/protocol"
	"github.com/energizer-project/ottdadmin/internal/util"
)

const webhookTimeout = 10 * time.Second

// DiscordConnector posts chat lines and alerts to a Discord webhook.
type DiscordConnector struct {
	cfg      config.DiscordConfig
	eventBus *events.EventBus
	state    *game.State
	client   *http.Client
	logger   zerolog.Logger
}

// NewDiscordConnector creates a connector; state resolves client names and
// may be nil.
func NewDiscordConnector(cfg config.DiscordConfig, eventBus *events.EventBus, state *game.State) *DiscordConnector {
	return &DiscordConnector{
		cfg:      cfg,
		eventBus: eventBus,
		state:    state,
		client:   &http.Client{Timeout: webhookTimeout},
		logger:   util.ComponentLogger("discord"),
	}
}

// Start subscribes to the bus and relays until ctx is cancelled.
func (dc *DiscordConnector) Start(ctx context.Context) {
	var types []events.EventType
	if dc.cfg.RelayChat {
		types = append(types, events.EventChat)
	}
	if dc.cfg.NotifyAlerts {
		types = append(types, events.EventHealthAlert, events.EventServerWelcome, events.EventServerShutdown)
	}
	if len(types) == 0 {
		return
	}

	dc.eventBus.SubscribeMany("discord", dc.onEvent, types...)
	defer func() {
		for _, t := range types {
			dc.eventBus.Unsubscribe(t, "discord")
		}
	}()

	dc.logger.Info().Int("events", len(types)).Msg("discord relay started")
	<-ctx.Done()
}

func (dc *DiscordConnector) onEvent(ctx context.Context, event events.Event) error {
	switch p := event.Payload.(type) {
	case protocol.Chat:
		// Only public chat leaves the game.
		if p.Action != protocol.ActionChat || p.Dest != protocol.DestBroadcast {
			return nil
		}
		return dc.SendChat(ctx, dc.clientName(p.ID), p.Message)
	case events.HealthAlertPayload:
		return dc.SendNotification(ctx, "Health: "+p.Check, p.Message, p.Level)
	case protocol.Welcome:
		return dc.SendNotification(ctx, "Server online",
			fmt.Sprintf("%s (%s) on map %s", p.ServerName, p.Version, p.MapName), "info")
	case protocol.Shutdown:
		return dc.SendNotification(ctx, "Server shut down", "The server is shutting down.", "warning")
	}
	return nil
}

func (dc *DiscordConnector) clientName(id uint32) string {
	if dc.state != nil {
		if c, ok := dc.state.Client(id); ok && c.Name != "" {
			return c.Name
		}
	}
	return fmt.Sprintf("client #%d", id)
}

// SendChat posts one chat line as a plain webhook message.
func (dc *DiscordConnector) SendChat(ctx context.Context, user, message string) error {
	return dc.post(ctx, map[string]interface{}{
		"username": user,
		"content":  escapeMentions(message),
	})
}

// SendNotification posts an embed coloured by level.
func (dc *DiscordConnector) SendNotification(ctx context.Context, title, message, level string) error {
	var color int
	switch level {
	case "critical", "error":
		color = 0xFF0000
	case "warning":
		color = 0xFFAA00
	default:
		color = 0x00FF00
	}

	return dc.post(ctx, map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       title,
				"description": message,
				"color":       color,
				"timestamp":   time.Now().Format(time.RFC3339),
				"footer": map[string]string{
					"text": "ottdadmin",
				},
			},
		},
	})
}

func (dc *DiscordConnector) post(ctx context.Context, payload map[string]interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dc.cfg.WebhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := dc.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(body))
	}

	dc.logger.Debug().Int("status", resp.StatusCode).Msg("webhook message sent")
	return nil
}

// escapeMentions keeps in-game text from pinging Discord users.
func escapeMentions(s string) string {
	return strings.NewReplacer("@everyone", "@\u200beveryone", "@here", "@\u200bhere").Replace(s)
}
