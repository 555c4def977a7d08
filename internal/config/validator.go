package config

import (
	"fmt"
	"strings"

	"github.com/energizer-project/ottdadmin/internal/protocol"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate performs comprehensive validation of the configuration.
func Validate(cfg *Config) *ValidationResult {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	result := &ValidationResult{}

	validateAdmin(&cfg.Admin, result)
	validateSubscriptions(cfg.Subscriptions, result)
	validateSession(&cfg.Session, result)
	validateScheduler(&cfg.Scheduler, result)

	if cfg.API.Enabled {
		validatePort(cfg.API.Port, "api.port", result)
		if cfg.API.Token == "" && cfg.API.Listen != "127.0.0.1" && cfg.API.Listen != "localhost" {
			result.AddWarning("api.token", "API is reachable from other hosts without a token")
		}
	}

	if cfg.MQTT.Enabled {
		if strings.TrimSpace(cfg.MQTT.BrokerURL) == "" {
			result.AddError("mqtt.broker_url", "MQTT broker URL is required when enabled")
		}
		if cfg.MQTT.Port < 1 || cfg.MQTT.Port > 65535 {
			result.AddError("mqtt.port", "invalid MQTT port")
		}
		if (cfg.MQTT.CertFile == "") != (cfg.MQTT.KeyFile == "") {
			result.AddError("mqtt.cert_file", "client certificate and key must be set together")
		}
	}

	if cfg.Discord.Enabled && !strings.HasPrefix(cfg.Discord.WebhookURL, "https://") {
		result.AddError("discord.webhook_url", "an https webhook URL is required when enabled")
	}

	if cfg.Journal.Enabled && strings.TrimSpace(cfg.Journal.Path) == "" {
		result.AddError("journal.path", "journal path is required when enabled")
	}

	return result
}

func validateAdmin(a *AdminConfig, result *ValidationResult) {
	if strings.TrimSpace(a.Host) == "" {
		result.AddError("admin.host", "server host is required")
	}
	validatePort(a.Port, "admin.port", result)

	if strings.TrimSpace(a.Password) == "" {
		result.AddError("admin.password", "admin password is required")
	}
	if strings.TrimSpace(a.Name) == "" {
		result.AddError("admin.name", "admin name is required")
	}
	for field, v := range map[string]string{"admin.name": a.Name, "admin.password": a.Password, "admin.version": a.Version} {
		if strings.ContainsRune(v, 0) {
			result.AddError(field, "must not contain NUL bytes")
		}
	}
}

func validateSubscriptions(subs []Subscription, result *ValidationResult) {
	seen := make(map[protocol.UpdateType]bool, len(subs))
	for i, s := range subs {
		field := fmt.Sprintf("subscriptions[%d]", i)
		u, _, err := s.Resolve()
		if err != nil {
			result.AddError(field, err.Error())
			continue
		}
		if seen[u] {
			result.AddWarning(field, fmt.Sprintf("%s is subscribed more than once, the last one wins", u))
		}
		seen[u] = true
	}
}

func validateSession(s *SessionConfig, result *ValidationResult) {
	if s.ReadSize < protocol.HeaderSize {
		result.AddError("session.read_size", fmt.Sprintf("read size must be at least %d", protocol.HeaderSize))
	}
	if s.MaxReadAttempts < 1 {
		result.AddError("session.max_read_attempts", "must allow at least one read attempt")
	}
	if s.ReadTimeoutMs < 1 {
		result.AddError("session.read_timeout_ms", "read timeout must be positive")
	}
	if s.DialTimeoutSec < 1 {
		result.AddWarning("session.dial_timeout_sec", "dial timeout disabled, connecting may block")
	}
}

func validateScheduler(s *SchedulerConfig, result *ValidationResult) {
	if s.PingIntervalSec < 0 || s.ClientPollSec < 0 || s.CompanyPollSec < 0 || s.JournalCleanupMinute < 0 || s.HealthCheckSec < 0 {
		result.AddError("scheduler", "intervals must not be negative")
	}
	if s.CompanyPollSec > 0 && s.CompanyPollSec < 5 {
		result.AddWarning("scheduler.company_poll_interval_sec",
			"company poll interval less than 5s may flood the server")
	}
}

func validatePort(port int, field string, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("invalid port number: %d (must be 1-65535)", port))
		return
	}
	if port < 1024 {
		result.AddWarning(field,
			fmt.Sprintf("port %d is a privileged port, may require elevated permissions", port))
	}
}
