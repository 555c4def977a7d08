package admin

import (
	"fmt"

	"github.com/energizer-project/ottdadmin/internal/network"
	"github.com/energizer-project/ottdadmin/internal/protocol"
)

// Errors surfaced by a Session. They are the same values as the protocol and
// network sentinels, so errors.Is works with either name.
var (
	ErrNotConnected      = network.ErrNotConnected
	ErrTransportClosed   = network.ErrTransportClosed
	ErrMalformedPacket   = protocol.ErrMalformedPacket
	ErrUnknownPacketType = protocol.ErrUnknownPacketType
	ErrInvalidFrequency  = protocol.ErrInvalidFrequency
)

// HandlerError reports a handler that returned an error or panicked.
type HandlerError struct {
	Type  protocol.PacketType
	Index int // position in the registration list
	Panic any // recovered value, nil unless the handler panicked
	Err   error
}

func (e *HandlerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("handler %d for %s panicked: %v", e.Index, e.Type, e.Panic)
	}
	return fmt.Sprintf("handler %d for %s: %v", e.Index, e.Type, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
