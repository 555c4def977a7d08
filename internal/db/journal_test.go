package db

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energizer-project/ottdadmin/internal/events"
	"github.com/energizer-project/ottdadmin/internal/protocol"
)

func openJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := NewJournal(filepath.Join(t.TempDir(), "nested", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestAppendAndRecent(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	_, err := j.Append(ctx, Entry{Time: base, Kind: KindChat, ClientID: 4, Message: "hello"})
	require.NoError(t, err)
	_, err = j.Append(ctx, Entry{Time: base.Add(time.Minute), Kind: KindConsole, Origin: "net", Message: "joined"})
	require.NoError(t, err)
	_, err = j.Append(ctx, Entry{Time: base.Add(2 * time.Minute), Kind: KindChat, ClientID: 5, Message: "hello again"})
	require.NoError(t, err)

	all, err := j.Recent(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "hello again", all[0].Message)
	assert.True(t, all[0].Time.Equal(base.Add(2*time.Minute)))

	chats, err := j.Recent(ctx, Query{Kind: KindChat, Limit: 1})
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, uint32(5), chats[0].ClientID)

	byClient, err := j.Recent(ctx, Query{ClientID: 4})
	require.NoError(t, err)
	require.Len(t, byClient, 1)
	assert.Equal(t, "hello", byClient[0].Message)

	since, err := j.Recent(ctx, Query{Since: base.Add(30 * time.Second), Search: "join"})
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, "net", since[0].Origin)

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestPrune(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()
	now := time.Now()

	_, err := j.Append(ctx, Entry{Time: now.Add(-48 * time.Hour), Kind: KindRcon, Message: "old"})
	require.NoError(t, err)
	_, err = j.Append(ctx, Entry{Time: now, Kind: KindRcon, Message: "new"})
	require.NoError(t, err)

	removed, err := j.Prune(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	left, err := j.Recent(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "new", left[0].Message)
}

func TestEntryFor(t *testing.T) {
	e, ok := EntryFor(events.Event{
		Source:  "srv",
		Payload: protocol.Chat{Action: protocol.ActionChatClient, Dest: protocol.DestClient, ID: 9, Message: "psst"},
	})
	require.True(t, ok)
	assert.Equal(t, KindChat, e.Kind)
	assert.Equal(t, uint32(9), e.ClientID)
	assert.Equal(t, "chat_client/client", e.Origin)
	assert.Equal(t, "srv", e.Source)

	e, ok = EntryFor(events.Event{Payload: protocol.CompanyRemove{ID: 2, Reason: protocol.RemoveBankrupt}})
	require.True(t, ok)
	assert.Equal(t, "company 2 removed: bankrupt", e.Message)

	e, ok = EntryFor(events.Event{Payload: protocol.Error{Code: protocol.ErrorWrongPassword}})
	require.True(t, ok)
	assert.Equal(t, "wrong_password", e.Message)

	_, ok = EntryFor(events.Event{Payload: protocol.Date{Days: 1}})
	assert.False(t, ok)
}

func TestAttachRecordsBusEvents(t *testing.T) {
	j := openJournal(t)
	bus := events.NewEventBus()
	defer bus.Stop()
	j.Attach(bus)

	ctx := context.Background()
	require.NoError(t, bus.EmitSync(ctx, events.Event{
		Type:    events.EventConsole,
		Source:  "srv",
		Payload: protocol.Console{Origin: "script", Message: "loaded"},
	}))
	require.NoError(t, bus.EmitSync(ctx, events.Event{
		Type:    events.EventRconEnd,
		Payload: protocol.RconEnd{Command: "companies"},
	}))

	got, err := j.Recent(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, got, 2)

	kinds := []Kind{got[0].Kind, got[1].Kind}
	assert.ElementsMatch(t, []Kind{KindConsole, KindRcon}, kinds)
}

func TestAttachKeepsArrivalOrder(t *testing.T) {
	j := openJournal(t)
	bus := events.NewEventBus()
	defer bus.Stop()
	j.Attach(bus)

	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var want []string
	for i := 0; i < 40; i++ {
		line := fmt.Sprintf("line %02d", i)
		want = append(want, line)
		bus.Emit(ctx, events.Event{
			Type:    events.EventRcon,
			Time:    at,
			Payload: protocol.Rcon{Output: line},
		})
	}
	bus.Stop()

	got, err := j.Recent(ctx, Query{Kind: KindRcon})
	require.NoError(t, err)
	require.Len(t, got, len(want))

	lines := make([]string, len(got))
	for i, e := range got {
		lines[len(got)-1-i] = e.Message
	}
	assert.Equal(t, want, lines)
}

func TestMigrateAddsSeqColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	old, err := NewDatabase(path)
	require.NoError(t, err)
	_, err = old.Exec(context.Background(), `CREATE TABLE journal (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts INTEGER NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		client_id INTEGER NOT NULL DEFAULT 0,
		origin TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL
	)`)
	require.NoError(t, err)
	require.NoError(t, old.Close())

	j, err := NewJournal(path)
	require.NoError(t, err)
	defer j.Close()

	_, err = j.Append(context.Background(), Entry{Kind: KindChat, Seq: 7, Message: "after upgrade"})
	require.NoError(t, err)

	got, err := j.Recent(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(7), got[0].Seq)
}
