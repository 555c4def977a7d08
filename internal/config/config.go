// Package config handles configuration loading, validation, and persistence
// for ottdadmin.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/energizer-project/ottdadmin/internal/protocol"
)

const (
	DefaultConfigDir  = "config"
	DefaultConfigFile = "config.json"
	DefaultAPIPort    = 5000
	DefaultMQTTPort   = 1883
	DefaultAdminName  = "ottdadmin"
)

// Config is the root configuration structure for ottdadmin.
type Config struct {
	mu   sync.RWMutex
	path string

	Admin         AdminConfig     `json:"admin"`
	Subscriptions []Subscription  `json:"subscriptions"`
	Session       SessionConfig   `json:"session"`
	Scheduler     SchedulerConfig `json:"scheduler"`
	API           APIConfig       `json:"api"`
	MQTT          MQTTConfig      `json:"mqtt"`
	Discord       DiscordConfig   `json:"discord"`
	Journal       JournalConfig   `json:"journal"`
	Logging       LoggingConfig   `json:"logging"`
}

// AdminConfig identifies the server and the credentials used to join it.
type AdminConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Version  string `json:"version"`
}

// Addr returns host:port.
func (a AdminConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// Subscription is one update subscription, referenced by name.
type Subscription struct {
	Type      string `json:"type"`
	Frequency string `json:"frequency"`
}

// Resolve converts the names into protocol values and checks the pair
// against the subscription matrix.
func (s Subscription) Resolve() (protocol.UpdateType, protocol.UpdateFrequency, error) {
	u, err := protocol.ParseUpdateType(s.Type)
	if err != nil {
		return 0, 0, err
	}
	f, err := protocol.ParseUpdateFrequency(s.Frequency)
	if err != nil {
		return 0, 0, err
	}
	if err := protocol.CheckFrequency(u, f); err != nil {
		return 0, 0, err
	}
	return u, f, nil
}

// SessionConfig tunes the admin session.
type SessionConfig struct {
	DialTimeoutSec     int  `json:"dial_timeout_sec"`
	ReadTimeoutMs      int  `json:"read_timeout_ms"`
	WriteTimeoutSec    int  `json:"write_timeout_sec"`
	ReadSize           int  `json:"read_size"`
	MaxReadAttempts    int  `json:"max_read_attempts"`
	ConcurrentHandlers bool `json:"concurrent_handlers"`
	ReconnectDelaySec  int  `json:"reconnect_delay_sec"`
}

// DialTimeout returns the dial timeout as a duration.
func (s SessionConfig) DialTimeout() time.Duration {
	return time.Duration(s.DialTimeoutSec) * time.Second
}

// ReadTimeout returns the per-read deadline as a duration.
func (s SessionConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMs) * time.Millisecond
}

// WriteTimeout returns the write deadline as a duration.
func (s SessionConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSec) * time.Second
}

// ReconnectDelay returns the pause between sessions; zero disables
// reconnecting.
func (s SessionConfig) ReconnectDelay() time.Duration {
	return time.Duration(s.ReconnectDelaySec) * time.Second
}

// SchedulerConfig holds the periodic task intervals. Zero disables a task.
type SchedulerConfig struct {
	PingIntervalSec      int `json:"ping_interval_sec"`
	ClientPollSec        int `json:"client_poll_interval_sec"`
	CompanyPollSec       int `json:"company_poll_interval_sec"`
	JournalCleanupMinute int `json:"journal_cleanup_interval_min"`
	HealthCheckSec       int `json:"health_check_interval_sec"`
}

// APIConfig holds the REST API settings.
type APIConfig struct {
	Enabled        bool     `json:"enabled"`
	Listen         string   `json:"listen"`
	Port           int      `json:"port"`
	Token          string   `json:"token"`
	AllowedOrigins []string `json:"allowed_origins"`
	RateLimitRPS   int      `json:"rate_limit_rps"`
}

// Addr returns the listen address.
func (a APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Listen, a.Port)
}

// MQTTConfig holds MQTT telemetry settings.
type MQTTConfig struct {
	Enabled     bool   `json:"enabled"`
	BrokerURL   string `json:"broker_url"`
	Port        int    `json:"port"`
	UseTLS      bool   `json:"use_tls"`
	CertFile    string `json:"cert_file"`
	KeyFile     string `json:"key_file"`
	CAFile      string `json:"ca_file"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
}

// DiscordConfig holds the Discord webhook relay settings.
type DiscordConfig struct {
	Enabled      bool   `json:"enabled"`
	WebhookURL   string `json:"webhook_url"`
	RelayChat    bool   `json:"relay_chat"`
	NotifyAlerts bool   `json:"notify_alerts"`
}

// JournalConfig holds the SQLite journal settings.
type JournalConfig struct {
	Enabled       bool   `json:"enabled"`
	Path          string `json:"path"`
	RetentionDays int    `json:"retention_days"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxBackups int    `json:"max_backups"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Admin: AdminConfig{
			Host:    "127.0.0.1",
			Port:    protocol.DefaultPort,
			Name:    DefaultAdminName,
			Version: "1.0",
		},
		Subscriptions: []Subscription{
			{Type: "date", Frequency: "daily"},
			{Type: "client_info", Frequency: "automatic"},
			{Type: "company_info", Frequency: "automatic"},
			{Type: "chat", Frequency: "automatic"},
			{Type: "console", Frequency: "automatic"},
		},
		Session: SessionConfig{
			DialTimeoutSec:    10,
			ReadTimeoutMs:     500,
			WriteTimeoutSec:   10,
			ReadSize:          1024,
			MaxReadAttempts:   protocol.MaxReadAttempts,
			ReconnectDelaySec: 15,
		},
		Scheduler: SchedulerConfig{
			PingIntervalSec:      30,
			ClientPollSec:        0,
			CompanyPollSec:       60,
			JournalCleanupMinute: 60,
			HealthCheckSec:       30,
		},
		API: APIConfig{
			Enabled:      true,
			Listen:       "127.0.0.1",
			Port:         DefaultAPIPort,
			RateLimitRPS: 20,
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			BrokerURL:   "localhost",
			Port:        DefaultMQTTPort,
			ClientID:    "ottdadmin",
			TopicPrefix: "ottdadmin",
		},
		Discord: DiscordConfig{
			RelayChat:    true,
			NotifyAlerts: true,
		},
		Journal: JournalConfig{
			Enabled:       true,
			Path:          filepath.Join("data", "journal.db"),
			RetentionDays: 30,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Directory:  "logs",
			MaxBackups: 5,
		},
	}
}

// Load reads configuration from a JSON file in configDir. A missing file is
// replaced by the defaults, which are written back.
func Load(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", configPath).Msg("config file not found, creating default")
			cfg := DefaultConfig()
			cfg.path = configPath
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	cfg.path = configPath
	log.Info().Str("path", configPath).Msg("configuration loaded")

	// Persist fields added since the file was written.
	if saveErr := cfg.Save(); saveErr != nil {
		log.Warn().Err(saveErr).Msg("failed to re-save config with updated defaults")
	}

	return cfg, nil
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// GetAdmin returns a copy of the admin section.
func (c *Config) GetAdmin() AdminConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Admin
}

// SetAdmin replaces the admin section.
func (c *Config) SetAdmin(a AdminConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Admin = a
}

// GetSubscriptions returns a copy of the configured subscriptions.
func (c *Config) GetSubscriptions() []Subscription {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Subscription(nil), c.Subscriptions...)
}

// SetSubscriptions replaces the configured subscriptions.
func (c *Config) SetSubscriptions(subs []Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Subscriptions = append([]Subscription(nil), subs...)
}

// GetScheduler returns a copy of the scheduler section.
func (c *Config) GetScheduler() SchedulerConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Scheduler
}

// SetScheduler replaces the scheduler section.
func (c *Config) SetScheduler(s SchedulerConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Scheduler = s
}

// Redacted returns a copy of the configuration with secrets blanked, for
// display.
func (c *Config) Redacted() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	admin := c.Admin
	if admin.Password != "" {
		admin.Password = "***"
	}
	api := c.API
	if api.Token != "" {
		api.Token = "***"
	}
	mqtt := c.MQTT
	if mqtt.Password != "" {
		mqtt.Password = "***"
	}
	discord := c.Discord
	if discord.WebhookURL != "" {
		discord.WebhookURL = "***"
	}

	return map[string]interface{}{
		"admin":         admin,
		"subscriptions": c.Subscriptions,
		"session":       c.Session,
		"scheduler":     c.Scheduler,
		"api":           api,
		"mqtt":          mqtt,
		"discord":       discord,
		"journal":       c.Journal,
		"logging":       c.Logging,
	}
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}

// IsFirstRun returns true if the configuration needs initial setup.
func (c *Config) IsFirstRun() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Admin.Password == ""
}
