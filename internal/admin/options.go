package admin

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/energizer-project/ottdadmin/internal/protocol"
)

// Defaults for a Session.
const (
	DefaultReadSize = 1024
)

type options struct {
	logger          zerolog.Logger
	registry        *Registry
	readSize        int
	maxReadAttempts int
	concurrent      bool

	onDecodeError  func(err error)
	onHandlerError func(p protocol.Packet, err error)
}

func defaultOptions() options {
	return options{
		logger:          log.With().Str("component", "session").Logger(),
		readSize:        DefaultReadSize,
		maxReadAttempts: protocol.MaxReadAttempts,
	}
}

// Option configures a Session.
type Option func(*options)

// WithLogger sets the session logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger.With().Str("component", "session").Logger()
	}
}

// WithRegistry uses r instead of a fresh registry.
func WithRegistry(r *Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithReadSize sets how many bytes one transport read asks for.
func WithReadSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.readSize = n
		}
	}
}

// WithMaxReadAttempts bounds the extra reads made while a partial frame is
// buffered.
func WithMaxReadAttempts(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxReadAttempts = n
		}
	}
}

// WithConcurrentDispatch runs the handlers for the packets of one receive
// batch in parallel goroutines, started in arrival order. The batch finishes
// before the next read.
func WithConcurrentDispatch(enabled bool) Option {
	return func(o *options) {
		o.concurrent = enabled
	}
}

// OnDecodeError is called for every frame that fails to decode.
func OnDecodeError(cb func(err error)) Option {
	return func(o *options) {
		o.onDecodeError = cb
	}
}

// OnHandlerError is called when handlers for p fail or panic.
func OnHandlerError(cb func(p protocol.Packet, err error)) Option {
	return func(o *options) {
		o.onHandlerError = cb
	}
}
