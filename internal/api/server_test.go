package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energizer-project/ottdadmin/internal/admin"
	"github.com/energizer-project/ottdadmin/internal/config"
	"github.com/energizer-project/ottdadmin/internal/db"
	"github.com/energizer-project/ottdadmin/internal/events"
	"github.com/energizer-project/ottdadmin/internal/game"
	"github.com/energizer-project/ottdadmin/internal/protocol"
)

type sentCall struct {
	Kind string
	ID   uint32
	Text string
}

// fakeController records sends; rcon commands are answered through the
// registry the way a session's receive loop would.
type fakeController struct {
	mu       sync.Mutex
	state    admin.State
	calls    []sentCall
	registry *admin.Registry
	err      error
}

func (f *fakeController) record(kind string, id uint32, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, sentCall{Kind: kind, ID: id, Text: text})
	return nil
}

func (f *fakeController) State() admin.State { return f.state }

func (f *fakeController) Subscribe(_ context.Context, u protocol.UpdateType, fr protocol.UpdateFrequency) error {
	return f.record("subscribe", uint32(u), fr.String())
}

func (f *fakeController) Poll(_ context.Context, u protocol.UpdateType, d1 uint32) error {
	return f.record("poll", d1, u.String())
}

func (f *fakeController) SendRcon(_ context.Context, command string) error {
	if err := f.record("rcon", 0, command); err != nil {
		return err
	}
	go func() {
		f.registry.Dispatch(nil, protocol.Rcon{Colour: 3, Output: "out:" + command})
		f.registry.Dispatch(nil, protocol.RconEnd{Command: command})
	}()
	return nil
}

func (f *fakeController) SendGlobal(_ context.Context, message string) error {
	return f.record("global", 0, message)
}

func (f *fakeController) SendCompany(_ context.Context, message string, id uint32) error {
	return f.record("company", id, message)
}

func (f *fakeController) SendPrivate(_ context.Context, message string, id uint32) error {
	return f.record("private", id, message)
}

func (f *fakeController) SendGameScript(_ context.Context, json string) error {
	return f.record("gamescript", 0, json)
}

func (f *fakeController) SendExternalChat(_ context.Context, source string, _ uint16, user, message string) error {
	return f.record("external", 0, source+"|"+user+"|"+message)
}

func (f *fakeController) sent() []sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentCall(nil), f.calls...)
}

type fixture struct {
	server  *Server
	ctrl    *fakeController
	state   *game.State
	journal *db.Journal
	cfg     *config.Config
}

func newFixture(t *testing.T, token string) *fixture {
	t.Helper()

	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	cfg.API.Token = token
	cfg.API.RateLimitRPS = 0

	journal, err := db.NewJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	bus := events.NewEventBus()
	t.Cleanup(bus.Stop)

	registry := admin.NewRegistry()
	state := game.NewState()
	state.Attach(registry)
	rcon := game.NewRconRunner()
	rcon.Attach(registry)

	ctrl := &fakeController{state: admin.StateActive, registry: registry}

	srv := NewServer(Deps{
		Config:     cfg,
		Bus:        bus,
		State:      state,
		Controller: ctrl,
		Rcon:       rcon,
		Journal:    journal,
	})

	require.NoError(t, registry.Dispatch(nil, protocol.Welcome{ServerName: "Test Server", Version: "14.1"}))
	require.NoError(t, registry.Dispatch(nil, protocol.ClientInfo{ID: 2, Name: "alice", CompanyID: 0}))
	require.NoError(t, registry.Dispatch(nil, protocol.CompanyInfo{ID: 0, Name: "Alice & Co"}))

	return &fixture{server: srv, ctrl: ctrl, state: state, journal: journal, cfg: cfg}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}, header ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestPing(t *testing.T) {
	f := newFixture(t, "secret")

	rec := f.do(t, http.MethodGet, "/api/public/ping", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "active", body["session"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestTokenRequired(t *testing.T) {
	f := newFixture(t, "secret")

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/status", nil).Code)
	assert.Equal(t, http.StatusUnauthorized,
		f.do(t, http.MethodGet, "/api/status", nil, "Authorization", "Bearer wrong").Code)
	assert.Equal(t, http.StatusOK,
		f.do(t, http.MethodGet, "/api/status", nil, "Authorization", "Bearer secret").Code)
}

func TestStatusAndMirror(t *testing.T) {
	f := newFixture(t, "")

	body := decode(t, f.do(t, http.MethodGet, "/api/status", nil))
	assert.Equal(t, true, body["online"])
	assert.Equal(t, float64(1), body["client_count"])
	assert.Equal(t, "Test Server", body["server"].(map[string]interface{})["name"])

	body = decode(t, f.do(t, http.MethodGet, "/api/clients", nil))
	assert.Equal(t, float64(1), body["total"])

	rec := f.do(t, http.MethodGet, "/api/clients/2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decode(t, rec)["name"])

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/clients/99", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/clients/abc", nil).Code)

	rec = f.do(t, http.MethodGet, "/api/companies/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice & Co", decode(t, rec)["name"])
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/companies/300", nil).Code)
}

func TestChatScopes(t *testing.T) {
	f := newFixture(t, "")

	for _, req := range []chatRequest{
		{Message: "hello all"},
		{Scope: "company", ID: 1, Message: "hello team"},
		{Scope: "private", ID: 2, Message: "hello you"},
	} {
		rec := f.do(t, http.MethodPost, "/api/chat", req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	assert.Equal(t, []sentCall{
		{Kind: "global", Text: "hello all"},
		{Kind: "company", ID: 1, Text: "hello team"},
		{Kind: "private", ID: 2, Text: "hello you"},
	}, f.ctrl.sent())

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/chat", chatRequest{Scope: "nope", Message: "x"}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/chat", chatRequest{Message: "a\x00b"}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/chat", map[string]string{}).Code)
}

func TestChatNotConnected(t *testing.T) {
	f := newFixture(t, "")
	f.ctrl.err = admin.ErrNotConnected

	rec := f.do(t, http.MethodPost, "/api/chat", chatRequest{Message: "hi"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestExternalChatAndGameScript(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(t, http.MethodPost, "/api/chat/external", externalChatRequest{Source: "irc", User: "bob", Message: "hey"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodPost, "/api/gamescript", gameScriptRequest{JSON: `{"action":"ping"}`})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []sentCall{
		{Kind: "external", Text: "irc|bob|hey"},
		{Kind: "gamescript", Text: `{"action":"ping"}`},
	}, f.ctrl.sent())
}

func TestRcon(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(t, http.MethodPost, "/api/rcon", rconRequest{Command: "clients"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	output := body["output"].([]interface{})
	require.Len(t, output, 1)
	assert.Equal(t, "out:clients", output[0].(map[string]interface{})["text"])
}

func TestPoll(t *testing.T) {
	f := newFixture(t, "")
	id := uint32(4)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/poll", pollRequest{Type: "company_info"}).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/poll", pollRequest{Type: "client_info", ID: &id}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/poll", pollRequest{Type: "weather"}).Code)

	assert.Equal(t, []sentCall{
		{Kind: "poll", ID: protocol.PollAll, Text: "company_info"},
		{Kind: "poll", ID: 4, Text: "client_info"},
	}, f.ctrl.sent())
}

func TestJournal(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	_, err := f.journal.Append(ctx, db.Entry{Kind: db.KindChat, ClientID: 2, Message: "gg"})
	require.NoError(t, err)
	_, err = f.journal.Append(ctx, db.Entry{Kind: db.KindConsole, Message: "autosave"})
	require.NoError(t, err)

	body := decode(t, f.do(t, http.MethodGet, "/api/journal?kind=chat&since=1h", nil))
	assert.Equal(t, float64(1), body["total"])

	body = decode(t, f.do(t, http.MethodGet, "/api/journal?limit=5", nil))
	assert.Equal(t, float64(2), body["total"])

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/journal?since=yesterday", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/journal?limit=0", nil).Code)
}

func TestConfigRedactedAndSubscriptions(t *testing.T) {
	f := newFixture(t, "")
	f.cfg.Admin.Password = "hunter2"

	body := decode(t, f.do(t, http.MethodGet, "/api/config", nil))
	assert.Equal(t, "***", body["admin"].(map[string]interface{})["password"])

	subs := []config.Subscription{{Type: "chat", Frequency: "automatic"}, {Type: "date", Frequency: "monthly"}}
	rec := f.do(t, http.MethodPut, "/api/config/subscriptions", subs)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(2), decode(t, rec)["applied"])
	assert.Equal(t, subs, f.cfg.GetSubscriptions())

	bad := []config.Subscription{{Type: "chat", Frequency: "daily"}}
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/api/config/subscriptions", bad).Code)
	assert.Equal(t, subs, f.cfg.GetSubscriptions())
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1)
	now := time.Now()

	assert.True(t, rl.allow("1.2.3.4", now))
	assert.True(t, rl.allow("1.2.3.4", now))
	assert.False(t, rl.allow("1.2.3.4", now))
	assert.True(t, rl.allow("5.6.7.8", now))
	assert.True(t, rl.allow("1.2.3.4", now.Add(time.Second)))
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t, "")
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/nothing", nil).Code)
}
