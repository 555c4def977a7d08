// Package admin manages one logical admin-port connection: the login
// handshake, subscriptions, outgoing chat and rcon, and the receive loop that
// dispatches decoded packets to registered handlers.
package admin

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/energizer-project/ottdadmin/internal/network"
	"github.com/energizer-project/ottdadmin/internal/protocol"
)

// Transport is the byte stream a Session speaks over.
//
// Read returns up to max bytes; an empty result with a nil error means
// nothing arrived in time. Read and Write return ErrTransportClosed once the
// stream is gone. Close must unblock a pending Read.
type Transport interface {
	Read(ctx context.Context, max int) ([]byte, error)
	Write(ctx context.Context, b []byte) error
	Close() error
}

// State is the lifecycle position of a Session.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Session owns one admin connection. Receive and Run belong to a single
// goroutine; the send helpers may be called from others since writes are
// serialised by the transport.
type Session struct {
	transport Transport
	codec     *protocol.Codec
	frames    *protocol.FrameAssembler
	registry  *Registry
	logger    zerolog.Logger
	opts      options

	state     atomic.Int32
	protoInfo atomic.Pointer[protocol.ProtocolInfo]
	welcome   atomic.Pointer[protocol.Welcome]
}

// NewSession creates a session over an established transport. A nil
// transport gives a Disconnected session whose operations fail with
// ErrNotConnected.
func NewSession(t Transport, opts ...Option) *Session {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}

	s := &Session{
		transport: t,
		codec:     protocol.NewCodecWithLogger(o.logger),
		frames:    protocol.NewFrameAssembler(o.readSize * 2),
		registry:  o.registry,
		logger:    o.logger,
		opts:      o,
	}
	if t != nil {
		s.setState(StateConnecting)
	}
	return s
}

// Dial opens a TCP connection to addr and wraps it in a Session.
func Dial(ctx context.Context, addr string, cfg network.DialConfig, opts ...Option) (*Session, error) {
	conn, err := network.Dial(ctx, addr, cfg)
	if err != nil {
		return nil, err
	}
	return NewSession(conn, opts...), nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	old := State(s.state.Swap(int32(st)))
	if old != st {
		s.logger.Debug().Stringer("from", old).Stringer("to", st).Msg("session state changed")
	}
}

// transition moves from one state to another only if the session is still
// in from. It never overrides a concurrent change.
func (s *Session) transition(from, to State) bool {
	if !s.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	s.logger.Debug().Stringer("from", from).Stringer("to", to).Msg("session state changed")
	return true
}

// Registry returns the handler registry used by Run.
func (s *Session) Registry() *Registry {
	return s.registry
}

// Handle registers h for the given packet types.
func (s *Session) Handle(h Handler, types ...protocol.PacketType) {
	s.registry.Register(h, types...)
}

// ProtocolInfo returns the last Protocol packet received, if any.
func (s *Session) ProtocolInfo() (protocol.ProtocolInfo, bool) {
	p := s.protoInfo.Load()
	if p == nil {
		return protocol.ProtocolInfo{}, false
	}
	return *p, true
}

// Welcome returns the last Welcome packet received, if any.
func (s *Session) Welcome() (protocol.Welcome, bool) {
	w := s.welcome.Load()
	if w == nil {
		return protocol.Welcome{}, false
	}
	return *w, true
}

// Send encodes p and writes it as one frame.
func (s *Session) Send(ctx context.Context, p protocol.Packet) error {
	if s.transport == nil || s.State() == StateClosed {
		return ErrNotConnected
	}

	frame, err := protocol.EncodeFrame(p)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", p.Type(), err)
	}
	if err := s.transport.Write(ctx, frame); err != nil {
		return fmt.Errorf("failed to send %s: %w", p.Type(), err)
	}

	s.logger.Trace().Stringer("type", p.Type()).Int("len", len(frame)).Msg("sent packet")
	return nil
}

// Login sends the Join packet. The server's answer arrives through Receive;
// Login does not wait for it.
//
// The session moves to Authenticating before the write so a reply handled
// by a concurrent Run cannot be overtaken. A failed write moves it back.
func (s *Session) Login(ctx context.Context, name, password, version string) error {
	entered := s.transition(StateConnecting, StateAuthenticating)
	if err := s.Send(ctx, protocol.Join{Password: password, Name: name, Version: version}); err != nil {
		if entered {
			s.transition(StateAuthenticating, StateConnecting)
		}
		return err
	}
	s.logger.Info().Str("name", name).Str("version", version).Msg("join sent")
	return nil
}

// Subscribe asks for updates of type u at frequency f. Combinations the
// server does not accept fail with ErrInvalidFrequency before anything is
// sent.
func (s *Session) Subscribe(ctx context.Context, u protocol.UpdateType, f protocol.UpdateFrequency) error {
	if err := protocol.CheckFrequency(u, f); err != nil {
		return err
	}
	if err := s.Send(ctx, protocol.Subscribe{Update: u, Frequency: f}); err != nil {
		return err
	}
	s.logger.Debug().Stringer("update", u).Stringer("frequency", f).Msg("subscribed")
	return nil
}

// Poll requests one update of type u. d1 selects a client or company id,
// or protocol.PollAll.
func (s *Session) Poll(ctx context.Context, u protocol.UpdateType, d1 uint32) error {
	if err := protocol.CheckFrequency(u, protocol.FrequencyPoll); err != nil {
		return err
	}
	return s.Send(ctx, protocol.Poll{Update: u, D1: d1})
}

// SendRcon runs command on the server console.
func (s *Session) SendRcon(ctx context.Context, command string) error {
	return s.Send(ctx, protocol.RconCommand{Command: command})
}

// SendGlobal broadcasts message to every client.
func (s *Session) SendGlobal(ctx context.Context, message string) error {
	return s.Send(ctx, protocol.ChatRequest{
		Action:  protocol.ActionChat,
		Dest:    protocol.DestBroadcast,
		Message: message,
	})
}

// SendCompany sends message to the members of one company.
func (s *Session) SendCompany(ctx context.Context, message string, companyID uint32) error {
	return s.Send(ctx, protocol.ChatRequest{
		Action:  protocol.ActionChatCompany,
		Dest:    protocol.DestTeam,
		ID:      companyID,
		Message: message,
	})
}

// SendPrivate sends message to one client.
func (s *Session) SendPrivate(ctx context.Context, message string, clientID uint32) error {
	return s.Send(ctx, protocol.ChatRequest{
		Action:  protocol.ActionChatClient,
		Dest:    protocol.DestClient,
		ID:      clientID,
		Message: message,
	})
}

// SendGameScript passes JSON to the running GameScript.
func (s *Session) SendGameScript(ctx context.Context, json string) error {
	return s.Send(ctx, protocol.GameScriptRequest{JSON: json})
}

// SendExternalChat relays a chat line from another service into the game.
func (s *Session) SendExternalChat(ctx context.Context, source string, colour uint16, user, message string) error {
	return s.Send(ctx, protocol.ExternalChat{Source: source, Colour: colour, User: user, Message: message})
}

// Ping asks the server for a Pong carrying payload.
func (s *Session) Ping(ctx context.Context, payload uint32) error {
	return s.Send(ctx, protocol.Ping{Payload: payload})
}

// Quit tells the server this admin is leaving. The connection stays open
// until Close.
func (s *Session) Quit(ctx context.Context) error {
	return s.Send(ctx, protocol.Quit{})
}

// Close closes the transport, which also unblocks a pending Receive. Any
// partial frame still buffered is discarded.
func (s *Session) Close() error {
	if s.State() == StateClosed {
		return nil
	}
	s.setState(StateClosed)
	if s.transport == nil {
		return nil
	}
	s.logger.Info().Msg("closing session")
	return s.transport.Close()
}

// Receive performs one read, plus up to the configured number of extra
// reads while a partial frame is buffered, and decodes every complete frame.
// A read timeout yields no packets and no error.
//
// Frames that fail to decode do not stop the others: the packets that did
// decode are returned together with the joined decode errors. A transport
// failure is returned on its own.
func (s *Session) Receive(ctx context.Context) ([]protocol.Packet, error) {
	b, err := s.receive(ctx)
	if err != nil {
		return nil, err
	}
	return b.packets, b.decodeErr
}

// batch is the outcome of one receive step.
type batch struct {
	packets   []protocol.Packet
	decodeErr error
}

func (s *Session) receive(ctx context.Context) (batch, error) {
	if s.transport == nil {
		return batch{}, ErrNotConnected
	}

	data, err := s.transport.Read(ctx, s.opts.readSize)
	if err != nil {
		return batch{}, err
	}
	s.frames.Append(data)

	for attempt := 0; attempt < s.opts.maxReadAttempts && s.frames.NeedsMore(); attempt++ {
		more, err := s.transport.Read(ctx, s.opts.readSize)
		if err != nil {
			return batch{}, err
		}
		s.frames.Append(more)
	}

	frames, ferr := s.frames.Drain()

	var (
		b    batch
		errs []error
	)
	if ferr != nil {
		s.reportDecodeError(ferr)
		errs = append(errs, ferr)
	}

	for _, f := range frames {
		p, err := s.codec.Decode(f)
		if err != nil {
			s.reportDecodeError(err)
			errs = append(errs, err)
			continue
		}
		s.observe(p)
		b.packets = append(b.packets, p)
	}

	b.decodeErr = errors.Join(errs...)
	return b, nil
}

// observe updates session state from packets the session itself cares about.
func (s *Session) observe(p protocol.Packet) {
	switch v := p.(type) {
	case protocol.ProtocolInfo:
		s.protoInfo.Store(&v)
		s.activate()
	case protocol.Welcome:
		s.welcome.Store(&v)
		s.activate()
		s.logger.Info().
			Str("server", v.ServerName).
			Str("version", v.Version).
			Str("map", v.MapName).
			Msg("joined server")
	case protocol.Full, protocol.Banned, protocol.Error:
		s.logger.Warn().Stringer("type", p.Type()).Msg("server rejected admin")
	case protocol.Shutdown:
		s.logger.Info().Msg("server is shutting down")
	}
}

func (s *Session) activate() {
	if !s.transition(StateAuthenticating, StateActive) {
		s.transition(StateConnecting, StateActive)
	}
}

func (s *Session) reportDecodeError(err error) {
	s.logger.Warn().Err(err).Msg("dropping undecodable frame")
	if s.opts.onDecodeError != nil {
		s.opts.onDecodeError(err)
	}
}

func (s *Session) reportHandlerError(p protocol.Packet, err error) {
	s.logger.Error().Err(err).Stringer("type", p.Type()).Msg("packet handler failed")
	if s.opts.onHandlerError != nil {
		s.opts.onHandlerError(p, err)
	}
}

// Run receives and dispatches packets until the server shuts down, the
// transport closes or ctx is cancelled. When a received batch contains a
// Shutdown packet, the whole batch is dispatched and Run returns nil without
// reading again.
//
// Decode and handler failures are logged and passed to the error hooks; they
// do not stop the loop.
func (s *Session) Run(ctx context.Context) error {
	s.logger.Info().Stringer("state", s.State()).Msg("session loop started")

	defer s.discardBuffered()

	for {
		if err := ctx.Err(); err != nil {
			s.Close()
			return err
		}

		b, err := s.receive(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			s.logger.Info().Err(err).Msg("session loop stopped")
			s.Close()
			return err
		}

		s.dispatchBatch(b.packets)

		if containsShutdown(b.packets) {
			s.logger.Info().Msg("session loop finished after shutdown")
			s.Close()
			return nil
		}
	}
}

func (s *Session) discardBuffered() {
	if n := s.frames.Buffered(); n > 0 {
		s.logger.Debug().Int("bytes", n).Msg("discarding partial frame")
	}
	s.frames.Reset()
}

func containsShutdown(packets []protocol.Packet) bool {
	for _, p := range packets {
		if _, ok := p.(protocol.Shutdown); ok {
			return true
		}
	}
	return false
}

// Dispatch runs the handlers for p and reports their failures.
func (s *Session) Dispatch(p protocol.Packet) error {
	err := s.registry.Dispatch(s, p)
	if err != nil {
		s.reportHandlerError(p, err)
	}
	return err
}

func (s *Session) dispatchBatch(packets []protocol.Packet) {
	if !s.opts.concurrent || len(packets) < 2 {
		for _, p := range packets {
			s.Dispatch(p)
		}
		return
	}

	var g errgroup.Group
	for _, p := range packets {
		started := make(chan struct{})
		g.Go(func() error {
			close(started)
			s.Dispatch(p)
			return nil
		})
		<-started
	}
	g.Wait()
}
