package protocol

import (
	"fmt"
	"sort"
	"strings"
)

// Encode produces the payload of p without the length prefix or tag.
// Strings that would be written null-terminated must not contain 0x00.
func Encode(p Packet) ([]byte, error) {
	b := NewPacketBuilder()

	switch v := p.(type) {
	case Join:
		if err := noNUL(v.Password, v.Name, v.Version); err != nil {
			return nil, err
		}
		b.WriteNullString(v.Password).WriteNullString(v.Name).WriteNullString(v.Version)
	case Quit, Full, Banned, NewGame, Shutdown:
	case Subscribe:
		b.WriteUint16(uint16(v.Update)).WriteUint16(uint16(v.Frequency)).WriteUint8(0)
	case Poll:
		b.WriteUint8(uint8(v.Update)).WriteUint32(v.D1)
	case ChatRequest:
		if err := noNUL(v.Message); err != nil {
			return nil, err
		}
		b.WriteUint8(uint8(v.Action)).WriteUint8(uint8(v.Dest)).WriteUint32(v.ID).WriteNullString(v.Message)
	case RconCommand:
		if err := noNUL(v.Command); err != nil {
			return nil, err
		}
		b.WriteNullString(v.Command)
	case GameScriptRequest:
		if err := noNUL(v.JSON); err != nil {
			return nil, err
		}
		b.WriteNullString(v.JSON)
	case Ping:
		b.WriteUint32(v.Payload)
	case ExternalChat:
		if err := noNUL(v.Source, v.User, v.Message); err != nil {
			return nil, err
		}
		b.WriteNullString(v.Source).WriteUint16(v.Colour).WriteNullString(v.User).WriteNullString(v.Message)
	case Error:
		b.WriteUint8(uint8(v.Code))
	case ProtocolInfo:
		encodeProtocol(b, v)
	case Welcome:
		if err := noNUL(v.ServerName, v.Version, v.MapName); err != nil {
			return nil, err
		}
		b.WriteNullString(v.ServerName).
			WriteNullString(v.Version).
			WriteBool(v.Dedicated).
			WriteNullString(v.MapName).
			WriteUint32(v.Seed).
			WriteUint8(uint8(v.Landscape)).
			WriteUint32(v.StartDate).
			WriteUint16(v.MapHeight).
			WriteUint16(v.MapWidth)
	case Date:
		b.WriteUint32(v.Days)
	case ClientJoin:
		b.WriteUint32(v.ID)
	case ClientInfo:
		if err := noNUL(v.IP, v.Name); err != nil {
			return nil, err
		}
		b.WriteUint32(v.ID).
			WriteNullString(v.IP).
			WriteNullString(v.Name).
			WriteUint8(v.Language).
			WriteUint32(v.Joined).
			WriteUint8(v.CompanyID)
	case ClientUpdate:
		if err := noNUL(v.Name); err != nil {
			return nil, err
		}
		b.WriteUint32(v.ID).WriteNullString(v.Name).WriteUint8(v.CompanyID)
	case ClientQuit:
		b.WriteUint32(v.ID)
	case ClientError:
		b.WriteUint32(v.ID).WriteUint8(uint8(v.Error))
	case CompanyNew:
		b.WriteUint8(v.ID)
	case CompanyInfo:
		if err := noNUL(v.Name, v.Manager); err != nil {
			return nil, err
		}
		b.WriteUint8(v.ID).
			WriteNullString(v.Name).
			WriteNullString(v.Manager).
			WriteUint8(uint8(v.Colour)).
			WriteBool(v.Passworded).
			WriteUint32(v.StartYear).
			WriteBool(v.IsAI).
			WriteUint8(v.QuartersBankrupt)
	case CompanyUpdate:
		if err := noNUL(v.Name, v.Manager); err != nil {
			return nil, err
		}
		b.WriteUint8(v.ID).
			WriteNullString(v.Name).
			WriteNullString(v.Manager).
			WriteUint8(uint8(v.Colour)).
			WriteBool(v.Passworded).
			WriteUint8(v.QuartersBankrupt)
	case CompanyRemove:
		b.WriteUint8(v.ID).WriteUint8(uint8(v.Reason))
	case CompanyEconomy:
		b.WriteUint8(v.ID).WriteUint64(v.Money).WriteUint64(v.Loan).WriteUint16(v.DeliveredCargo)
		for _, q := range v.Quarters {
			b.WriteUint64(q.CompanyValue).WriteUint16(q.Performance).WriteUint16(q.DeliveredCargo)
		}
	case CompanyStats:
		b.WriteUint8(v.ID)
		for _, n := range v.Vehicles {
			b.WriteUint16(n)
		}
	case Chat:
		b.WriteUint8(uint8(v.Action)).
			WriteUint8(uint8(v.Dest)).
			WriteUint32(v.ID).
			WriteNullString(v.Message).
			WriteInt64(v.Money)
	case Rcon:
		if err := noNUL(v.Output); err != nil {
			return nil, err
		}
		b.WriteUint16(v.Colour).WriteNullString(v.Output)
	case Console:
		if err := noNUL(v.Origin, v.Message); err != nil {
			return nil, err
		}
		b.WriteNullString(v.Origin).WriteNullString(v.Message)
	case CmdNames:
		if err := noNUL(v.Names...); err != nil {
			return nil, err
		}
		for _, name := range v.Names {
			b.WriteNullString(name)
		}
	case GameScript:
		b.WriteString(v.JSON)
	case RconEnd:
		if err := noNUL(v.Command); err != nil {
			return nil, err
		}
		b.WriteNullString(v.Command)
	case Pong:
		b.WriteUint32(v.Payload)
	case CmdLogging:
		if len(v.Data) > 0xFFFF {
			return nil, fmt.Errorf("command data too large: %d bytes", len(v.Data))
		}
		b.WriteUint32(v.ClientID).
			WriteUint8(v.CompanyID).
			WriteUint16(v.Command).
			WriteUint16(uint16(len(v.Data))).
			WriteBytes(v.Data).
			WriteUint32(v.Frame)
	default:
		return nil, fmt.Errorf("%w: cannot encode %T", ErrUnknownPacketType, p)
	}

	return b.Build(), nil
}

// EncodeFrame encodes p and wraps it with its length prefix and tag.
func EncodeFrame(p Packet) ([]byte, error) {
	payload, err := Encode(p)
	if err != nil {
		return nil, err
	}
	return frame(p.Type(), payload)
}

// encodeProtocol writes one flagged record per update type in ascending
// order, then the closing zero flag.
func encodeProtocol(b *PacketBuilder, v ProtocolInfo) {
	b.WriteUint8(v.Version)

	types := make([]UpdateType, 0, len(v.Subscriptions))
	for u := range v.Subscriptions {
		types = append(types, u)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	for _, u := range types {
		b.WriteBool(true).WriteUint16(uint16(u)).WriteUint16(uint16(v.Subscriptions[u]))
	}
	b.WriteBool(false)
}

func noNUL(fields ...string) error {
	for _, s := range fields {
		if strings.IndexByte(s, 0) >= 0 {
			return fmt.Errorf("string %q contains a NUL byte", s)
		}
	}
	return nil
}
