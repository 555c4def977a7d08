package protocol

import (
	"encoding/binary"
	"fmt"
)

// FrameAssembler rebuilds length-prefixed frames from a byte stream that may
// arrive split across reads or with several frames per read.
//
// Consumed bytes are tracked with a read cursor and the backing slice is
// compacted lazily on Append, so draining does not reallocate per frame.
type FrameAssembler struct {
	buf []byte
	off int
}

// NewFrameAssembler creates an assembler with an initial buffer capacity.
func NewFrameAssembler(capacity int) *FrameAssembler {
	return &FrameAssembler{buf: make([]byte, 0, capacity)}
}

// Append adds newly read bytes to the buffer.
func (a *FrameAssembler) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	a.compact()
	a.buf = append(a.buf, p...)
}

// Buffered returns the number of bytes not yet consumed into frames.
func (a *FrameAssembler) Buffered() int {
	return len(a.buf) - a.off
}

// NeedsMore reports whether the buffer holds the start of a frame whose
// declared length is not fully present yet.
func (a *FrameAssembler) NeedsMore() bool {
	n := a.Buffered()
	if n == 0 {
		return false
	}
	if n < LengthPrefixSize {
		return true
	}
	length := int(binary.LittleEndian.Uint16(a.buf[a.off:]))
	return length >= HeaderSize && n < length
}

// Drain removes and returns every complete frame in arrival order. Each frame
// starts with its type tag; the length prefix is stripped. A trailing partial
// frame stays buffered for the next call.
//
// A length prefix smaller than the header makes the rest of the stream
// unframeable: the buffer is discarded and ErrInvalidFrameLength returned
// together with the frames extracted before it.
func (a *FrameAssembler) Drain() ([][]byte, error) {
	var frames [][]byte

	for {
		n := a.Buffered()
		if n < LengthPrefixSize {
			break
		}

		length := int(binary.LittleEndian.Uint16(a.buf[a.off:]))
		if length < HeaderSize {
			a.Reset()
			return frames, fmt.Errorf("%w: declared %d bytes", ErrInvalidFrameLength, length)
		}
		if n < length {
			break
		}

		frame := make([]byte, length-LengthPrefixSize)
		copy(frame, a.buf[a.off+LengthPrefixSize:a.off+length])
		frames = append(frames, frame)
		a.off += length
	}

	if a.off == len(a.buf) {
		a.buf = a.buf[:0]
		a.off = 0
	}

	return frames, nil
}

// Reset discards everything buffered, including a partial frame.
func (a *FrameAssembler) Reset() {
	a.buf = a.buf[:0]
	a.off = 0
}

// compact moves unconsumed bytes to the front once the consumed prefix
// outweighs them.
func (a *FrameAssembler) compact() {
	if a.off == 0 || a.off < len(a.buf)-a.off {
		return
	}
	n := copy(a.buf, a.buf[a.off:])
	a.buf = a.buf[:n]
	a.off = 0
}
