package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// payloadReader reads schema fields from a payload. Every short read is
// reported as ErrMalformedPacket naming the field.
type payloadReader struct {
	r *bytes.Reader
}

func newPayloadReader(payload []byte) *payloadReader {
	return &payloadReader{r: bytes.NewReader(payload)}
}

func short(field string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrMalformedPacket, field, err)
}

func (p *payloadReader) uint8(field string) (uint8, error) {
	b, err := p.r.ReadByte()
	if err != nil {
		return 0, short(field, io.ErrUnexpectedEOF)
	}
	return b, nil
}

func (p *payloadReader) bool(field string) (bool, error) {
	b, err := p.uint8(field)
	return b != 0, err
}

func (p *payloadReader) uint16(field string) (uint16, error) {
	var v uint16
	if err := binary.Read(p.r, binary.LittleEndian, &v); err != nil {
		return 0, short(field, err)
	}
	return v, nil
}

func (p *payloadReader) uint32(field string) (uint32, error) {
	var v uint32
	if err := binary.Read(p.r, binary.LittleEndian, &v); err != nil {
		return 0, short(field, err)
	}
	return v, nil
}

func (p *payloadReader) uint64(field string) (uint64, error) {
	var v uint64
	if err := binary.Read(p.r, binary.LittleEndian, &v); err != nil {
		return 0, short(field, err)
	}
	return v, nil
}

// string reads up to the next 0x00. When no terminator is left, the rest of
// the payload is the string.
func (p *payloadReader) string() string {
	var buf bytes.Buffer
	for {
		b, err := p.r.ReadByte()
		if err != nil || b == 0 {
			break
		}
		buf.WriteByte(b)
	}
	return buf.String()
}

func (p *payloadReader) bytes(field string, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(p.r, buf); err != nil {
		return nil, short(field, err)
	}
	return buf, nil
}

// rest consumes and returns everything left.
func (p *payloadReader) rest() []byte {
	buf := make([]byte, p.r.Len())
	p.r.Read(buf)
	return buf
}

func (p *payloadReader) len() int {
	return p.r.Len()
}
