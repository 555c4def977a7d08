package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/energizer-project/ottdadmin/internal/admin"
	"github.com/energizer-project/ottdadmin/internal/config"
	"github.com/energizer-project/ottdadmin/internal/protocol"
)

type fakeSender struct {
	mu    sync.Mutex
	pings []uint32
	polls []protocol.UpdateType
	err   error
}

func (f *fakeSender) Ping(_ context.Context, payload uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings = append(f.pings, payload)
	return f.err
}

func (f *fakeSender) Poll(_ context.Context, u protocol.UpdateType, _ uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls = append(f.polls, u)
	return f.err
}

func (f *fakeSender) snapshot() ([]uint32, []protocol.UpdateType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint32(nil), f.pings...), append([]protocol.UpdateType(nil), f.polls...)
}

type fakePruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
}

func (f *fakePruner) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return 1, nil
}

func (f *fakePruner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

func runFor(s *Scheduler, d time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	s.Start(ctx)
}

func TestIntervalsFrom(t *testing.T) {
	in := IntervalsFrom(config.SchedulerConfig{PingIntervalSec: 30, CompanyPollSec: 60, JournalCleanupMinute: 2})
	assert.Equal(t, 30*time.Second, in.Ping)
	assert.Zero(t, in.ClientPoll)
	assert.Equal(t, time.Minute, in.CompanyPoll)
	assert.Equal(t, 2*time.Minute, in.JournalCleanup)
}

func TestPingsAndPolls(t *testing.T) {
	sender := &fakeSender{}
	s := NewScheduler(Intervals{Ping: 10 * time.Millisecond, CompanyPoll: 15 * time.Millisecond})
	s.SetSender(sender)

	runFor(s, 100*time.Millisecond)

	pings, polls := sender.snapshot()
	assert.GreaterOrEqual(t, len(pings), 2)
	assert.Equal(t, uint32(1), pings[0])
	assert.Equal(t, uint32(2), pings[1])
	assert.Equal(t, uint32(len(pings)), s.PingSeq())

	assert.GreaterOrEqual(t, len(polls), 3)
	assert.Equal(t, []protocol.UpdateType{
		protocol.UpdateCompanyInfo,
		protocol.UpdateCompanyEconomy,
		protocol.UpdateCompanyStats,
	}, polls[:3])
	assert.NotContains(t, polls, protocol.UpdateClientInfo)
}

func TestNoSenderSkipsTasks(t *testing.T) {
	s := NewScheduler(Intervals{Ping: 5 * time.Millisecond})
	runFor(s, 30*time.Millisecond)
	assert.Zero(t, s.PingSeq())
}

func TestSenderErrorsDoNotStopTasks(t *testing.T) {
	sender := &fakeSender{err: admin.ErrNotConnected}
	s := NewScheduler(Intervals{ClientPoll: 5 * time.Millisecond})
	s.SetSender(sender)

	runFor(s, 50*time.Millisecond)

	_, polls := sender.snapshot()
	assert.GreaterOrEqual(t, len(polls), 2)
	assert.Equal(t, protocol.UpdateClientInfo, polls[0])
}

func TestJournalCleanup(t *testing.T) {
	pruner := &fakePruner{}
	s := NewScheduler(Intervals{JournalCleanup: 5 * time.Millisecond})
	s.SetJournal(pruner, time.Hour)

	before := time.Now()
	runFor(s, 40*time.Millisecond)

	assert.GreaterOrEqual(t, pruner.calls(), 1)
	pruner.mu.Lock()
	defer pruner.mu.Unlock()
	assert.WithinDuration(t, before.Add(-time.Hour), pruner.cutoffs[0], time.Second)
}
