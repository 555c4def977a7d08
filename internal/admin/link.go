package admin

import (
	"context"
	"sync/atomic"

	"github.com/energizer-project/ottdadmin/internal/protocol"
)

// Link points at the current session of a reconnecting client. Senders hold
// the Link rather than a Session so they keep working across reconnects;
// while no session is set every send fails with ErrNotConnected.
type Link struct {
	current atomic.Pointer[Session]
}

// Set installs s as the current session. Passing nil clears it.
func (l *Link) Set(s *Session) {
	l.current.Store(s)
}

// Session returns the current session, or nil.
func (l *Link) Session() *Session {
	return l.current.Load()
}

// State returns the current session's state, or StateDisconnected.
func (l *Link) State() State {
	if s := l.current.Load(); s != nil {
		return s.State()
	}
	return StateDisconnected
}

// Drop closes the current session without clearing it; whoever runs the
// session sees its loop end and decides whether to reconnect.
func (l *Link) Drop() error {
	return l.with(func(s *Session) error { return s.Close() })
}

func (l *Link) with(fn func(*Session) error) error {
	s := l.current.Load()
	if s == nil {
		return ErrNotConnected
	}
	return fn(s)
}

// Subscribe forwards to Session.Subscribe.
func (l *Link) Subscribe(ctx context.Context, u protocol.UpdateType, f protocol.UpdateFrequency) error {
	return l.with(func(s *Session) error { return s.Subscribe(ctx, u, f) })
}

// Poll forwards to Session.Poll.
func (l *Link) Poll(ctx context.Context, u protocol.UpdateType, d1 uint32) error {
	return l.with(func(s *Session) error { return s.Poll(ctx, u, d1) })
}

// Ping forwards to Session.Ping.
func (l *Link) Ping(ctx context.Context, payload uint32) error {
	return l.with(func(s *Session) error { return s.Ping(ctx, payload) })
}

// SendRcon forwards to Session.SendRcon.
func (l *Link) SendRcon(ctx context.Context, command string) error {
	return l.with(func(s *Session) error { return s.SendRcon(ctx, command) })
}

// SendGlobal forwards to Session.SendGlobal.
func (l *Link) SendGlobal(ctx context.Context, message string) error {
	return l.with(func(s *Session) error { return s.SendGlobal(ctx, message) })
}

// SendCompany forwards to Session.SendCompany.
func (l *Link) SendCompany(ctx context.Context, message string, companyID uint32) error {
	return l.with(func(s *Session) error { return s.SendCompany(ctx, message, companyID) })
}

// SendPrivate forwards to Session.SendPrivate.
func (l *Link) SendPrivate(ctx context.Context, message string, clientID uint32) error {
	return l.with(func(s *Session) error { return s.SendPrivate(ctx, message, clientID) })
}

// SendGameScript forwards to Session.SendGameScript.
func (l *Link) SendGameScript(ctx context.Context, json string) error {
	return l.with(func(s *Session) error { return s.SendGameScript(ctx, json) })
}

// SendExternalChat forwards to Session.SendExternalChat.
func (l *Link) SendExternalChat(ctx context.Context, source string, colour uint16, user, message string) error {
	return l.with(func(s *Session) error { return s.SendExternalChat(ctx, source, colour, user, message) })
}
