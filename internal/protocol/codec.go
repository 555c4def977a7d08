package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Codec decodes admin-port frames into typed packets.
type Codec struct {
	logger zerolog.Logger
}

// NewCodec creates a codec logging under the "codec" component.
func NewCodec() *Codec {
	return &Codec{
		logger: log.With().Str("component", "codec").Logger(),
	}
}

// NewCodecWithLogger creates a codec that logs through logger.
func NewCodecWithLogger(logger zerolog.Logger) *Codec {
	return &Codec{logger: logger.With().Str("component", "codec").Logger()}
}

// Decode turns one frame (tag byte followed by the payload, as returned by
// FrameAssembler.Drain) into a packet. Errors are *DecodeError wrapping
// ErrMalformedPacket or ErrUnknownPacketType.
func (c *Codec) Decode(frame []byte) (Packet, error) {
	if len(frame) < 1 {
		return nil, &DecodeError{
			Type: InvalidPacket,
			Err:  fmt.Errorf("%w: empty frame", ErrMalformedPacket),
		}
	}

	tag := PacketType(frame[0])
	r := newPayloadReader(frame[1:])

	var (
		pkt Packet
		err error
	)

	switch tag {
	case AdminJoin:
		pkt = Join{Password: r.string(), Name: r.string(), Version: r.string()}
	case AdminQuit:
		pkt = Quit{}
	case AdminFrequency:
		pkt, err = decodeSubscribe(r)
	case AdminPoll:
		pkt, err = decodePoll(r)
	case AdminChat:
		pkt, err = decodeChatRequest(r)
	case AdminRcon:
		pkt = RconCommand{Command: r.string()}
	case AdminGameScript:
		pkt = GameScriptRequest{JSON: r.string()}
	case AdminPing:
		pkt, err = decodePing(r)
	case AdminExternalChat:
		pkt, err = decodeExternalChat(r)
	case ServerFull:
		pkt = Full{}
	case ServerBanned:
		pkt = Banned{}
	case ServerError:
		pkt, err = decodeError(r)
	case ServerProtocol:
		pkt, err = decodeProtocol(r)
	case ServerWelcome:
		pkt, err = decodeWelcome(r)
	case ServerNewGame:
		pkt = NewGame{}
	case ServerShutdown:
		pkt = Shutdown{}
	case ServerDate:
		pkt, err = decodeDate(r)
	case ServerClientJoin:
		var id uint32
		id, err = r.uint32("client id")
		pkt = ClientJoin{ID: id}
	case ServerClientInfo:
		pkt, err = decodeClientInfo(r)
	case ServerClientUpdate:
		pkt, err = decodeClientUpdate(r)
	case ServerClientQuit:
		var id uint32
		id, err = r.uint32("client id")
		pkt = ClientQuit{ID: id}
	case ServerClientError:
		pkt, err = decodeClientError(r)
	case ServerCompanyNew:
		var id uint8
		id, err = r.uint8("company id")
		pkt = CompanyNew{ID: id}
	case ServerCompanyInfo:
		pkt, err = decodeCompanyInfo(r)
	case ServerCompanyUpdate:
		pkt, err = decodeCompanyUpdate(r)
	case ServerCompanyRemove:
		pkt, err = decodeCompanyRemove(r)
	case ServerCompanyEconomy:
		pkt, err = decodeCompanyEconomy(r)
	case ServerCompanyStats:
		pkt, err = decodeCompanyStats(r)
	case ServerChat:
		pkt, err = decodeChat(r)
	case ServerRcon:
		pkt, err = decodeRcon(r)
	case ServerConsole:
		pkt = Console{Origin: r.string(), Message: r.string()}
	case ServerCmdNames:
		pkt = decodeCmdNames(r)
	case ServerGameScript:
		pkt = GameScript{JSON: strings.TrimSuffix(string(r.rest()), "\x00")}
	case ServerRconEnd:
		pkt = RconEnd{Command: r.string()}
	case ServerPong:
		var payload uint32
		payload, err = r.uint32("payload")
		pkt = Pong{Payload: payload}
	case ServerCmdLogging:
		pkt, err = decodeCmdLogging(r)
	default:
		c.logger.Warn().
			Uint8("tag", uint8(tag)).
			Int("payload_len", len(frame)-1).
			Msg("unknown packet type")
		return nil, &DecodeError{
			Type: tag,
			Len:  len(frame),
			Err:  fmt.Errorf("%w: 0x%02X", ErrUnknownPacketType, uint8(tag)),
		}
	}

	if err != nil {
		c.logger.Debug().
			Err(err).
			Stringer("type", tag).
			Int("len", len(frame)).
			Msg("failed to decode packet")
		return nil, &DecodeError{Type: tag, Len: len(frame), Err: err}
	}

	c.logger.Trace().Stringer("type", tag).Int("len", len(frame)).Msg("decoded packet")
	return pkt, nil
}

func invalidEnum(field string, v any) error {
	return fmt.Errorf("%w: undefined %s %v", ErrMalformedPacket, field, v)
}

func decodeSubscribe(r *payloadReader) (Packet, error) {
	u, err := r.uint16("update type")
	if err != nil {
		return nil, err
	}
	f, err := r.uint16("frequency")
	if err != nil {
		return nil, err
	}
	return Subscribe{Update: UpdateType(u), Frequency: UpdateFrequency(f)}, nil
}

func decodePoll(r *payloadReader) (Packet, error) {
	u, err := r.uint8("update type")
	if err != nil {
		return nil, err
	}
	d1, err := r.uint32("d1")
	if err != nil {
		return nil, err
	}
	return Poll{Update: UpdateType(u), D1: d1}, nil
}

func decodeChatRequest(r *payloadReader) (Packet, error) {
	action, err := r.uint8("chat action")
	if err != nil {
		return nil, err
	}
	dest, err := r.uint8("destination type")
	if err != nil {
		return nil, err
	}
	id, err := r.uint32("destination id")
	if err != nil {
		return nil, err
	}
	if !ChatAction(action).Valid() {
		return nil, invalidEnum("chat action", action)
	}
	if !DestType(dest).Valid() {
		return nil, invalidEnum("destination type", dest)
	}
	return ChatRequest{Action: ChatAction(action), Dest: DestType(dest), ID: id, Message: r.string()}, nil
}

func decodePing(r *payloadReader) (Packet, error) {
	payload, err := r.uint32("payload")
	if err != nil {
		return nil, err
	}
	return Ping{Payload: payload}, nil
}

func decodeExternalChat(r *payloadReader) (Packet, error) {
	source := r.string()
	colour, err := r.uint16("colour")
	if err != nil {
		return nil, err
	}
	return ExternalChat{Source: source, Colour: colour, User: r.string(), Message: r.string()}, nil
}

func decodeError(r *payloadReader) (Packet, error) {
	code, err := r.uint8("error code")
	if err != nil {
		return nil, err
	}
	if !NetworkErrorCode(code).Valid() {
		return nil, invalidEnum("error code", code)
	}
	return Error{Code: NetworkErrorCode(code)}, nil
}

// protocolRecordSize is one [flag:1][type:2][frequency:2] record.
const protocolRecordSize = 5

// decodeProtocol reads the version and the flagged update records. A record
// with a zero flag carries nothing; a lone trailing byte ends the list.
func decodeProtocol(r *payloadReader) (Packet, error) {
	version, err := r.uint8("version")
	if err != nil {
		return nil, err
	}

	records := r.rest()
	subs := make(map[UpdateType]UpdateFrequency)
	for i := 0; i < len(records)-1; i += protocolRecordSize {
		if records[i] == 0 {
			continue
		}
		if i+protocolRecordSize > len(records) {
			return nil, fmt.Errorf("%w: truncated update record at offset %d", ErrMalformedPacket, i)
		}
		u := UpdateType(binary.LittleEndian.Uint16(records[i+1:]))
		if !u.Valid() {
			return nil, invalidEnum("update type", uint16(u))
		}
		f := UpdateFrequency(binary.LittleEndian.Uint16(records[i+3:]))
		if !f.Known() {
			f = FrequencyUnknown
		}
		subs[u] = f
	}

	return ProtocolInfo{Version: version, Subscriptions: subs}, nil
}

func decodeWelcome(r *payloadReader) (Packet, error) {
	w := Welcome{
		ServerName: r.string(),
		Version:    r.string(),
	}
	var err error
	if w.Dedicated, err = r.bool("dedicated"); err != nil {
		return nil, err
	}
	w.MapName = r.string()
	if w.Seed, err = r.uint32("seed"); err != nil {
		return nil, err
	}
	landscape, err := r.uint8("landscape")
	if err != nil {
		return nil, err
	}
	w.Landscape = Landscape(landscape)
	if w.StartDate, err = r.uint32("start date"); err != nil {
		return nil, err
	}
	if w.MapHeight, err = r.uint16("map height"); err != nil {
		return nil, err
	}
	if w.MapWidth, err = r.uint16("map width"); err != nil {
		return nil, err
	}
	return w, nil
}

func decodeDate(r *payloadReader) (Packet, error) {
	days, err := r.uint32("date")
	if err != nil {
		return nil, err
	}
	return Date{Days: days}, nil
}

func decodeClientInfo(r *payloadReader) (Packet, error) {
	var (
		ci  ClientInfo
		err error
	)
	if ci.ID, err = r.uint32("client id"); err != nil {
		return nil, err
	}
	ci.IP = r.string()
	ci.Name = r.string()
	if ci.Language, err = r.uint8("language"); err != nil {
		return nil, err
	}
	if ci.Joined, err = r.uint32("join date"); err != nil {
		return nil, err
	}
	if ci.CompanyID, err = r.uint8("company id"); err != nil {
		return nil, err
	}
	return ci, nil
}

func decodeClientUpdate(r *payloadReader) (Packet, error) {
	id, err := r.uint32("client id")
	if err != nil {
		return nil, err
	}
	name := r.string()
	company, err := r.uint8("company id")
	if err != nil {
		return nil, err
	}
	return ClientUpdate{ID: id, Name: name, CompanyID: company}, nil
}

func decodeClientError(r *payloadReader) (Packet, error) {
	id, err := r.uint32("client id")
	if err != nil {
		return nil, err
	}
	code, err := r.uint8("error code")
	if err != nil {
		return nil, err
	}
	if !NetworkErrorCode(code).Valid() {
		return nil, invalidEnum("error code", code)
	}
	return ClientError{ID: id, Error: NetworkErrorCode(code)}, nil
}

func decodeCompanyInfo(r *payloadReader) (Packet, error) {
	var (
		ci  CompanyInfo
		err error
	)
	if ci.ID, err = r.uint8("company id"); err != nil {
		return nil, err
	}
	ci.Name = r.string()
	ci.Manager = r.string()
	colour, err := r.uint8("colour")
	if err != nil {
		return nil, err
	}
	ci.Colour = Colour(colour)
	if ci.Passworded, err = r.bool("passworded"); err != nil {
		return nil, err
	}
	if ci.StartYear, err = r.uint32("start year"); err != nil {
		return nil, err
	}
	if ci.IsAI, err = r.bool("is ai"); err != nil {
		return nil, err
	}
	if ci.QuartersBankrupt, err = r.uint8("quarters bankrupt"); err != nil {
		return nil, err
	}
	return ci, nil
}

func decodeCompanyUpdate(r *payloadReader) (Packet, error) {
	var (
		cu  CompanyUpdate
		err error
	)
	if cu.ID, err = r.uint8("company id"); err != nil {
		return nil, err
	}
	cu.Name = r.string()
	cu.Manager = r.string()
	colour, err := r.uint8("colour")
	if err != nil {
		return nil, err
	}
	cu.Colour = Colour(colour)
	if cu.Passworded, err = r.bool("passworded"); err != nil {
		return nil, err
	}
	if cu.QuartersBankrupt, err = r.uint8("quarters bankrupt"); err != nil {
		return nil, err
	}
	return cu, nil
}

func decodeCompanyRemove(r *payloadReader) (Packet, error) {
	id, err := r.uint8("company id")
	if err != nil {
		return nil, err
	}
	reason, err := r.uint8("remove reason")
	if err != nil {
		return nil, err
	}
	if !CompanyRemoveReason(reason).Valid() {
		return nil, invalidEnum("remove reason", reason)
	}
	return CompanyRemove{ID: id, Reason: CompanyRemoveReason(reason)}, nil
}

func decodeCompanyEconomy(r *payloadReader) (Packet, error) {
	var (
		ce  CompanyEconomy
		err error
	)
	if ce.ID, err = r.uint8("company id"); err != nil {
		return nil, err
	}
	if ce.Money, err = r.uint64("money"); err != nil {
		return nil, err
	}
	if ce.Loan, err = r.uint64("loan"); err != nil {
		return nil, err
	}
	if ce.DeliveredCargo, err = r.uint16("delivered cargo"); err != nil {
		return nil, err
	}
	for q := range ce.Quarters {
		info := &ce.Quarters[q]
		if info.CompanyValue, err = r.uint64("company value"); err != nil {
			return nil, err
		}
		if info.Performance, err = r.uint16("performance"); err != nil {
			return nil, err
		}
		if info.DeliveredCargo, err = r.uint16("delivered cargo"); err != nil {
			return nil, err
		}
	}
	return ce, nil
}

func decodeCompanyStats(r *payloadReader) (Packet, error) {
	var (
		cs  CompanyStats
		err error
	)
	if cs.ID, err = r.uint8("company id"); err != nil {
		return nil, err
	}
	for v := range cs.Vehicles {
		if cs.Vehicles[v], err = r.uint16(VehicleType(v).String() + " count"); err != nil {
			return nil, err
		}
	}
	return cs, nil
}

// chatTrailerSize is the message terminator plus the money field.
const chatTrailerSize = 1 + 8

// decodeChat takes the message as everything between the fixed header and
// the trailing money field, so a message never runs into it.
func decodeChat(r *payloadReader) (Packet, error) {
	action, err := r.uint8("chat action")
	if err != nil {
		return nil, err
	}
	dest, err := r.uint8("destination type")
	if err != nil {
		return nil, err
	}
	id, err := r.uint32("client id")
	if err != nil {
		return nil, err
	}
	if !ChatAction(action).Valid() {
		return nil, invalidEnum("chat action", action)
	}
	if !DestType(dest).Valid() {
		return nil, invalidEnum("destination type", dest)
	}

	rest := r.rest()
	if len(rest) < chatTrailerSize {
		return nil, fmt.Errorf("%w: chat trailer needs %d bytes, have %d", ErrMalformedPacket, chatTrailerSize, len(rest))
	}
	msgEnd := len(rest) - chatTrailerSize

	return Chat{
		Action:  ChatAction(action),
		Dest:    DestType(dest),
		ID:      id,
		Message: string(rest[:msgEnd]),
		Money:   int64(binary.LittleEndian.Uint64(rest[msgEnd+1:])),
	}, nil
}

func decodeRcon(r *payloadReader) (Packet, error) {
	colour, err := r.uint16("colour")
	if err != nil {
		return nil, err
	}
	return Rcon{Colour: colour, Output: r.string()}, nil
}

func decodeCmdNames(r *payloadReader) Packet {
	var names []string
	for r.len() > 0 {
		names = append(names, r.string())
	}
	return CmdNames{Names: names}
}

func decodeCmdLogging(r *payloadReader) (Packet, error) {
	var (
		cl  CmdLogging
		err error
	)
	if cl.ClientID, err = r.uint32("client id"); err != nil {
		return nil, err
	}
	if cl.CompanyID, err = r.uint8("company id"); err != nil {
		return nil, err
	}
	if cl.Command, err = r.uint16("command"); err != nil {
		return nil, err
	}
	n, err := r.uint16("data length")
	if err != nil {
		return nil, err
	}
	if cl.Data, err = r.bytes("data", int(n)); err != nil {
		return nil, err
	}
	if cl.Frame, err = r.uint32("frame"); err != nil {
		return nil, err
	}
	return cl, nil
}
