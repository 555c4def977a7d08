package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/energizer-project/ottdadmin/internal/events"
	"github.com/energizer-project/ottdadmin/internal/protocol"
)

// Kind classifies a journal line.
type Kind string

const (
	KindChat       Kind = "chat"
	KindConsole    Kind = "console"
	KindRcon       Kind = "rcon"
	KindClient     Kind = "client"
	KindCompany    Kind = "company"
	KindServer     Kind = "server"
	KindGameScript Kind = "gamescript"
)

// Entry is one journal line.
type Entry struct {
	ID       int64     `json:"id"`
	Time     time.Time `json:"time"`
	Seq      uint64    `json:"seq,omitempty"`
	Source   string    `json:"source"`
	Kind     Kind      `json:"kind"`
	ClientID uint32    `json:"client_id,omitempty"`
	Origin   string    `json:"origin,omitempty"`
	Message  string    `json:"message"`
}

// Query filters journal reads. Zero values match everything.
type Query struct {
	Kind     Kind
	ClientID uint32
	Since    time.Time
	Search   string
	Limit    int
}

const defaultQueryLimit = 100

// Journal stores received text lines in SQLite.
type Journal struct {
	db *Database
}

// NewJournal opens the journal database at path and migrates it.
func NewJournal(path string) (*Journal, error) {
	database, err := NewDatabase(path)
	if err != nil {
		return nil, err
	}

	j := &Journal{db: database}
	if err := j.migrate(context.Background()); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate journal database: %w", err)
	}
	return j, nil
}

func (j *Journal) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS journal (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			seq INTEGER NOT NULL DEFAULT 0,
			source TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			client_id INTEGER NOT NULL DEFAULT 0,
			origin TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_journal_ts ON journal(ts);
		CREATE INDEX IF NOT EXISTS idx_journal_kind ON journal(kind, ts);
	`
	if _, err := j.db.Exec(ctx, schema); err != nil {
		return err
	}

	// Journals created before seq existed.
	var hasSeq int
	err := j.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM pragma_table_info('journal') WHERE name = 'seq'").Scan(&hasSeq)
	if err != nil {
		return err
	}
	if hasSeq == 0 {
		_, err = j.db.Exec(ctx, "ALTER TABLE journal ADD COLUMN seq INTEGER NOT NULL DEFAULT 0")
	}
	return err
}

// Append stores e and returns its row id. A zero time is replaced by now.
func (j *Journal) Append(ctx context.Context, e Entry) (int64, error) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	res, err := j.db.Exec(ctx,
		"INSERT INTO journal (ts, seq, source, kind, client_id, origin, message) VALUES (?, ?, ?, ?, ?, ?, ?)",
		e.Time.UnixMilli(), int64(e.Seq), e.Source, string(e.Kind), int64(e.ClientID), e.Origin, e.Message)
	if err != nil {
		return 0, fmt.Errorf("journal append: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns matching entries, newest first. Entries with the same
// timestamp are ordered by their bus sequence number, so lines written by
// concurrent handlers still read back in arrival order.
func (j *Journal) Recent(ctx context.Context, q Query) ([]Entry, error) {
	var (
		where []string
		args  []interface{}
	)
	if q.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(q.Kind))
	}
	if q.ClientID != 0 {
		where = append(where, "client_id = ?")
		args = append(args, int64(q.ClientID))
	}
	if !q.Since.IsZero() {
		where = append(where, "ts >= ?")
		args = append(args, q.Since.UnixMilli())
	}
	if q.Search != "" {
		where = append(where, "message LIKE ?")
		args = append(args, "%"+q.Search+"%")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	query := "SELECT id, ts, seq, source, kind, client_id, origin, message FROM journal"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ts DESC, seq DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e        Entry
			ts       int64
			seq      int64
			kind     string
			clientID int64
		)
		if err := rows.Scan(&e.ID, &ts, &seq, &e.Source, &kind, &clientID, &e.Origin, &e.Message); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		e.Time = time.UnixMilli(ts)
		e.Seq = uint64(seq)
		e.Kind = Kind(kind)
		e.ClientID = uint32(clientID)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of stored entries.
func (j *Journal) Count(ctx context.Context) (int64, error) {
	var n int64
	err := j.db.QueryRow(ctx, "SELECT COUNT(*) FROM journal").Scan(&n)
	return n, err
}

// Prune removes entries older than cutoff and returns how many were removed.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.Exec(ctx, "DELETE FROM journal WHERE ts < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("journal prune: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// journalEvents are the bus events that produce journal lines.
var journalEvents = []events.EventType{
	events.EventChat,
	events.EventConsole,
	events.EventRcon,
	events.EventRconEnd,
	events.EventGameScript,
	events.EventClientInfo,
	events.EventClientQuit,
	events.EventClientError,
	events.EventCompanyNew,
	events.EventCompanyRemove,
	events.EventServerWelcome,
	events.EventNewGame,
	events.EventServerShutdown,
	events.EventServerRejected,
}

// Attach subscribes the journal to the bus.
func (j *Journal) Attach(bus *events.EventBus) {
	bus.SubscribeMany("journal", j.record, journalEvents...)
}

func (j *Journal) record(ctx context.Context, ev events.Event) error {
	e, ok := EntryFor(ev)
	if !ok {
		return nil
	}
	if _, err := j.Append(ctx, e); err != nil {
		return err
	}
	log.Trace().Str("kind", string(e.Kind)).Msg("journal line stored")
	return nil
}

// EntryFor converts a bus event into a journal line.
func EntryFor(ev events.Event) (Entry, bool) {
	e := Entry{Time: ev.Time, Seq: ev.Seq, Source: ev.Source}

	switch p := ev.Payload.(type) {
	case protocol.Chat:
		e.Kind = KindChat
		e.ClientID = p.ID
		e.Origin = p.Action.String() + "/" + p.Dest.String()
		e.Message = p.Message
	case protocol.Console:
		e.Kind = KindConsole
		e.Origin = p.Origin
		e.Message = p.Message
	case protocol.Rcon:
		e.Kind = KindRcon
		e.Message = p.Output
	case protocol.RconEnd:
		e.Kind = KindRcon
		e.Origin = "end"
		e.Message = p.Command
	case protocol.GameScript:
		e.Kind = KindGameScript
		e.Message = p.JSON
	case protocol.ClientInfo:
		e.Kind = KindClient
		e.ClientID = p.ID
		e.Origin = "info"
		e.Message = fmt.Sprintf("%s (%s) company %d", p.Name, p.IP, p.CompanyID)
	case protocol.ClientQuit:
		e.Kind = KindClient
		e.ClientID = p.ID
		e.Origin = "quit"
		e.Message = "client quit"
	case protocol.ClientError:
		e.Kind = KindClient
		e.ClientID = p.ID
		e.Origin = "error"
		e.Message = p.Error.String()
	case protocol.CompanyNew:
		e.Kind = KindCompany
		e.Origin = "new"
		e.Message = fmt.Sprintf("company %d founded", p.ID)
	case protocol.CompanyRemove:
		e.Kind = KindCompany
		e.Origin = "remove"
		e.Message = fmt.Sprintf("company %d removed: %s", p.ID, p.Reason)
	case protocol.Welcome:
		e.Kind = KindServer
		e.Origin = "welcome"
		e.Message = fmt.Sprintf("%s (%s) map %q", p.ServerName, p.Version, p.MapName)
	case protocol.NewGame:
		e.Kind = KindServer
		e.Origin = "new_game"
		e.Message = "new game"
	case protocol.Shutdown:
		e.Kind = KindServer
		e.Origin = "shutdown"
		e.Message = "server shutting down"
	case protocol.Full:
		e.Kind = KindServer
		e.Origin = "rejected"
		e.Message = "server full"
	case protocol.Banned:
		e.Kind = KindServer
		e.Origin = "rejected"
		e.Message = "banned"
	case protocol.Error:
		e.Kind = KindServer
		e.Origin = "rejected"
		e.Message = p.Code.String()
	default:
		return Entry{}, false
	}
	return e, true
}
