package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energizer-project/ottdadmin/internal/protocol"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Admin.Password = "secret"
	return cfg
}

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DefaultConfigFile), cfg.Path())
	assert.Equal(t, protocol.DefaultPort, cfg.Admin.Port)
	assert.True(t, cfg.IsFirstRun())

	_, err = os.Stat(cfg.Path())
	assert.NoError(t, err)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	raw := `{"admin": {"host": "game.example.org", "password": "pw"}, "session": {"read_size": 4096}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(raw), 0600))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "game.example.org", cfg.Admin.Host)
	assert.Equal(t, 3977, cfg.Admin.Port)
	assert.Equal(t, 4096, cfg.Session.ReadSize)
	assert.Equal(t, protocol.MaxReadAttempts, cfg.Session.MaxReadAttempts)
	assert.False(t, cfg.IsFirstRun())
	assert.Equal(t, "game.example.org:3977", cfg.GetAdmin().Addr())

	saved, err := os.ReadFile(cfg.Path())
	require.NoError(t, err)
	assert.Contains(t, string(saved), `"journal"`)
}

func TestLoadRejectsBadJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("{"), 0600))

	_, err := Load(dir)
	assert.ErrorContains(t, err, "failed to parse")
}

func TestSubscriptionResolve(t *testing.T) {
	u, f, err := Subscription{Type: "chat", Frequency: "automatic"}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, protocol.UpdateChat, u)
	assert.Equal(t, protocol.FrequencyAutomatic, f)

	_, _, err = Subscription{Type: "chat", Frequency: "daily"}.Resolve()
	assert.ErrorIs(t, err, protocol.ErrInvalidFrequency)

	_, _, err = Subscription{Type: "weather", Frequency: "daily"}.Resolve()
	assert.Error(t, err)
}

func TestValidateDefaults(t *testing.T) {
	result := Validate(validConfig())
	assert.True(t, result.IsValid(), "%v", result.Errors)
}

func TestValidateCatchesProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Admin.Password = ""
	cfg.Admin.Port = 0
	cfg.Admin.Name = "bad\x00name"
	cfg.Subscriptions = append(cfg.Subscriptions, Subscription{Type: "console", Frequency: "weekly"})
	cfg.Session.ReadSize = 1
	cfg.MQTT.Enabled = true
	cfg.MQTT.BrokerURL = ""

	result := Validate(cfg)
	require.False(t, result.IsValid())

	fields := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		fields = append(fields, e.Field)
	}
	assert.Contains(t, fields, "admin.password")
	assert.Contains(t, fields, "admin.port")
	assert.Contains(t, fields, "admin.name")
	assert.Contains(t, fields, "subscriptions[5]")
	assert.Contains(t, fields, "session.read_size")
	assert.Contains(t, fields, "mqtt.broker_url")
}

func TestValidateWarnsOnDuplicateSubscription(t *testing.T) {
	cfg := validConfig()
	cfg.Subscriptions = []Subscription{
		{Type: "date", Frequency: "daily"},
		{Type: "date", Frequency: "monthly"},
	}

	result := Validate(cfg)
	assert.True(t, result.IsValid())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "subscriptions[1]", result.Warnings[0].Field)
}

func TestRedactedHidesSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.API.Token = "tok"

	red := cfg.Redacted()
	assert.Equal(t, "***", red["admin"].(AdminConfig).Password)
	assert.Equal(t, "***", red["api"].(APIConfig).Token)
	assert.Equal(t, "secret", cfg.GetAdmin().Password)
}

func TestSetupWizard(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)

	in := strings.NewReader("10.1.2.3\n\nhunter2\n\nno\nno\n")
	var out bytes.Buffer
	require.NoError(t, RunSetupWizard(cfg, in, &out))

	reloaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "10.1.2.3", reloaded.Admin.Host)
	assert.Equal(t, 3977, reloaded.Admin.Port)
	assert.Equal(t, "hunter2", reloaded.Admin.Password)
	assert.False(t, reloaded.API.Enabled)
	assert.Contains(t, out.String(), "Configuration saved")
}
