// Package health implements periodic health checks: a watchdog that drops
// an admin session whose server stopped answering pings, and a disk check
// for the journal's volume.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/energizer-project/ottdadmin/internal/admin"
	"github.com/energizer-project/ottdadmin/internal/events"
	"github.com/energizer-project/ottdadmin/internal/util"
)

// Target is the session the watchdog looks after.
type Target interface {
	State() admin.State
	Drop() error
}

// Config tunes the health checks.
type Config struct {
	Interval time.Duration
	// StaleAfter is how long an active session may go without a Pong.
	StaleAfter time.Duration
	// DiskPath is checked for free space; empty disables the disk check.
	DiskPath string
}

// Manager runs periodic health checks.
type Manager struct {
	cfg      Config
	target   Target
	eventBus *events.EventBus
	logger   zerolog.Logger

	// diskUsage is swapped in tests.
	diskUsage func(path string) (*util.DiskUsage, error)

	mu          sync.Mutex
	lastPong    time.Time
	activeSince time.Time
	diskLevel   string
}

// NewManager creates a new health check manager.
func NewManager(cfg Config, target Target, eventBus *events.EventBus) *Manager {
	return &Manager{
		cfg:       cfg,
		target:    target,
		eventBus:  eventBus,
		logger:    util.ComponentLogger("health"),
		diskUsage: util.GetDiskUsage,
	}
}

// Start runs the checks every interval until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	if m.cfg.Interval <= 0 {
		m.logger.Info().Msg("health checks disabled")
		return
	}

	m.eventBus.SubscribeMany("health", m.onEvent, events.EventPong, events.EventSessionState)
	defer func() {
		m.eventBus.Unsubscribe(events.EventPong, "health")
		m.eventBus.Unsubscribe(events.EventSessionState, "health")
	}()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.logger.Info().Dur("interval", m.cfg.Interval).Msg("health check manager started")

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("health check manager stopped")
			return
		case now := <-ticker.C:
			m.Check(ctx, now)
		}
	}
}

func (m *Manager) onEvent(_ context.Context, e events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch p := e.Payload.(type) {
	case events.SessionStatePayload:
		if p.State == admin.StateActive.String() {
			m.activeSince = e.Time
		}
	default:
		if e.Type == events.EventPong {
			m.lastPong = e.Time
		}
	}
	return nil
}

// Check runs every check once.
func (m *Manager) Check(ctx context.Context, now time.Time) {
	m.checkLiveness(ctx, now)
	m.checkDisk(ctx)
}

// checkLiveness drops an active session that has not answered a ping for
// StaleAfter, counting from activation when no Pong arrived since.
func (m *Manager) checkLiveness(ctx context.Context, now time.Time) {
	if m.cfg.StaleAfter <= 0 || m.target.State() != admin.StateActive {
		return
	}

	m.mu.Lock()
	last := m.lastPong
	if m.activeSince.After(last) {
		last = m.activeSince
	}
	if last.IsZero() {
		m.activeSince = now
		m.mu.Unlock()
		return
	}
	silent := now.Sub(last)
	if silent < m.cfg.StaleAfter {
		m.mu.Unlock()
		return
	}
	m.activeSince = now
	m.mu.Unlock()

	m.logger.Warn().Dur("silent", silent).Msg("server stopped answering pings, dropping session")
	m.alert(ctx, "session_liveness", "warning",
		fmt.Sprintf("no pong for %s, session dropped", silent.Round(time.Second)))

	if err := m.target.Drop(); err != nil {
		m.logger.Debug().Err(err).Msg("failed to drop session")
	}
}

// checkDisk alerts when the journal volume crosses 80, 90, 95 or 100
// percent, once per level change.
func (m *Manager) checkDisk(ctx context.Context) {
	if m.cfg.DiskPath == "" {
		return
	}

	usage, err := m.diskUsage(m.cfg.DiskPath)
	if err != nil {
		m.logger.Warn().Err(err).Msg("disk utilization check failed")
		return
	}

	m.logger.Debug().
		Float64("used_percent", usage.UsedPercent).
		Uint64("free_gb", usage.Free).
		Msg("disk utilization")

	var level string
	switch {
	case usage.UsedPercent >= 100:
		level = "critical"
	case usage.UsedPercent >= 95:
		level = "error"
	case usage.UsedPercent >= 90:
		level = "warning"
	case usage.UsedPercent >= 80:
		level = "info"
	}

	m.mu.Lock()
	changed := level != m.diskLevel
	m.diskLevel = level
	m.mu.Unlock()

	if level == "" || !changed {
		return
	}

	message := fmt.Sprintf("Disk usage at %.1f%% (%d GB free of %d GB total)",
		usage.UsedPercent, usage.Free, usage.Total)
	m.logger.Warn().Str("level", level).Msg(message)
	m.alert(ctx, "disk_utilization", level, message)
}

func (m *Manager) alert(ctx context.Context, check, level, message string) {
	m.eventBus.Emit(ctx, events.Event{
		Type:   events.EventHealthAlert,
		Source: "health_check",
		Payload: events.HealthAlertPayload{
			Check:   check,
			Level:   level,
			Message: message,
		},
	})
}
