// Package scheduler runs the periodic background tasks of an admin
// connection: keepalive pings, update polls and journal pruning.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/energizer-project/ottdadmin/internal/admin"
	"github.com/energizer-project/ottdadmin/internal/config"
	"github.com/energizer-project/ottdadmin/internal/protocol"
	"github.com/energizer-project/ottdadmin/internal/util"
)

// Sender is the part of a session the scheduler drives.
type Sender interface {
	Ping(ctx context.Context, payload uint32) error
	Poll(ctx context.Context, u protocol.UpdateType, d1 uint32) error
}

// Pruner removes journal lines older than a cutoff.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Intervals holds task periods. Zero disables a task.
type Intervals struct {
	Ping           time.Duration
	ClientPoll     time.Duration
	CompanyPoll    time.Duration
	JournalCleanup time.Duration
}

// IntervalsFrom converts the scheduler configuration section.
func IntervalsFrom(cfg config.SchedulerConfig) Intervals {
	return Intervals{
		Ping:           time.Duration(cfg.PingIntervalSec) * time.Second,
		ClientPoll:     time.Duration(cfg.ClientPollSec) * time.Second,
		CompanyPoll:    time.Duration(cfg.CompanyPollSec) * time.Second,
		JournalCleanup: time.Duration(cfg.JournalCleanupMinute) * time.Minute,
	}
}

// Scheduler manages periodic background tasks. The sender is swapped as
// sessions come and go; tasks that need one are skipped while it is nil.
type Scheduler struct {
	intervals Intervals
	logger    zerolog.Logger

	mu     sync.RWMutex
	sender Sender

	journal   Pruner
	retention time.Duration

	pingSeq atomic.Uint32
}

// NewScheduler creates a new task scheduler.
func NewScheduler(intervals Intervals) *Scheduler {
	return &Scheduler{
		intervals: intervals,
		logger:    util.ComponentLogger("scheduler"),
	}
}

// SetSender installs the session tasks are sent on; nil pauses them.
func (s *Scheduler) SetSender(sender Sender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sender = sender
}

func (s *Scheduler) currentSender() Sender {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sender
}

// SetJournal enables pruning of lines older than retention.
func (s *Scheduler) SetJournal(p Pruner, retention time.Duration) {
	s.journal = p
	s.retention = retention
}

// Start runs all enabled tasks and blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().Msg("scheduler started")

	var wg sync.WaitGroup
	every := func(name string, d time.Duration, task func(context.Context)) {
		if d <= 0 {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.loop(ctx, name, d, task)
		}()
	}

	every("ping", s.intervals.Ping, s.ping)
	every("client_poll", s.intervals.ClientPoll, s.pollClients)
	every("company_poll", s.intervals.CompanyPoll, s.pollCompanies)
	if s.journal != nil && s.retention > 0 {
		every("journal_cleanup", s.intervals.JournalCleanup, s.pruneJournal)
	}

	<-ctx.Done()
	wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, name string, d time.Duration, task func(context.Context)) {
	s.logger.Debug().Str("task", name).Dur("interval", d).Msg("task scheduled")

	ticker := time.NewTicker(d)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			task(ctx)
		}
	}
}

func (s *Scheduler) ping(ctx context.Context) {
	sender := s.currentSender()
	if sender == nil {
		return
	}
	seq := s.pingSeq.Add(1)
	s.report("ping", sender.Ping(ctx, seq))
}

// PingSeq returns the payload of the last ping sent.
func (s *Scheduler) PingSeq() uint32 {
	return s.pingSeq.Load()
}

func (s *Scheduler) pollClients(ctx context.Context) {
	sender := s.currentSender()
	if sender == nil {
		return
	}
	s.report("client_poll", sender.Poll(ctx, protocol.UpdateClientInfo, protocol.PollAll))
}

func (s *Scheduler) pollCompanies(ctx context.Context) {
	sender := s.currentSender()
	if sender == nil {
		return
	}
	for _, u := range []protocol.UpdateType{
		protocol.UpdateCompanyInfo,
		protocol.UpdateCompanyEconomy,
		protocol.UpdateCompanyStats,
	} {
		if err := sender.Poll(ctx, u, protocol.PollAll); err != nil {
			s.report("company_poll", err)
			return
		}
	}
}

func (s *Scheduler) pruneJournal(ctx context.Context) {
	removed, err := s.journal.Prune(ctx, time.Now().Add(-s.retention))
	if err != nil {
		s.logger.Warn().Err(err).Msg("journal cleanup failed")
		return
	}
	if removed > 0 {
		s.logger.Info().Int64("removed", removed).Msg("journal cleanup completed")
	}
}

func (s *Scheduler) report(task string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, admin.ErrNotConnected), errors.Is(err, context.Canceled):
		s.logger.Debug().Err(err).Str("task", task).Msg("task skipped")
	default:
		s.logger.Warn().Err(err).Str("task", task).Msg("task failed")
	}
}
