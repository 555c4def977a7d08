package protocol

import (
	"errors"
	"fmt"
)

// Errors returned by the codec and the frame assembler.
var (
	// ErrMalformedPacket is returned when a payload is shorter than its
	// schema requires or a mandatory enum holds an undefined value.
	ErrMalformedPacket = errors.New("malformed packet")
	// ErrUnknownPacketType is returned for a tag without a decoder.
	ErrUnknownPacketType = errors.New("unknown packet type")
	// ErrInvalidFrequency is returned when an update type does not accept
	// the requested frequency.
	ErrInvalidFrequency = errors.New("invalid update frequency")
	// ErrInvalidFrameLength is returned when a length prefix is smaller than
	// the frame header itself.
	ErrInvalidFrameLength = fmt.Errorf("%w: invalid frame length", ErrMalformedPacket)
)

// DecodeError reports which frame failed to decode.
type DecodeError struct {
	Type PacketType
	Len  int
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s (%d bytes): %v", e.Type, e.Len, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
