package events

import (
	"context"

	"github.com/energizer-project/ottdadmin/internal/admin"
	"github.com/energizer-project/ottdadmin/internal/protocol"
)

// packetEvents maps server packets to the event they are republished as.
var packetEvents = map[protocol.PacketType]EventType{
	protocol.ServerFull:           EventServerRejected,
	protocol.ServerBanned:         EventServerRejected,
	protocol.ServerError:          EventServerRejected,
	protocol.ServerProtocol:       EventServerProtocol,
	protocol.ServerWelcome:        EventServerWelcome,
	protocol.ServerNewGame:        EventNewGame,
	protocol.ServerShutdown:       EventServerShutdown,
	protocol.ServerDate:           EventDate,
	protocol.ServerClientJoin:     EventClientJoin,
	protocol.ServerClientInfo:     EventClientInfo,
	protocol.ServerClientUpdate:   EventClientUpdate,
	protocol.ServerClientQuit:     EventClientQuit,
	protocol.ServerClientError:    EventClientError,
	protocol.ServerCompanyNew:     EventCompanyNew,
	protocol.ServerCompanyInfo:    EventCompanyInfo,
	protocol.ServerCompanyUpdate:  EventCompanyUpdate,
	protocol.ServerCompanyRemove:  EventCompanyRemove,
	protocol.ServerCompanyEconomy: EventCompanyEconomy,
	protocol.ServerCompanyStats:   EventCompanyStats,
	protocol.ServerChat:           EventChat,
	protocol.ServerRcon:           EventRcon,
	protocol.ServerRconEnd:        EventRconEnd,
	protocol.ServerConsole:        EventConsole,
	protocol.ServerGameScript:     EventGameScript,
	protocol.ServerCmdNames:       EventCmdNames,
	protocol.ServerCmdLogging:     EventCmdLogging,
	protocol.ServerPong:           EventPong,
}

// EventFor returns the event type a packet is published as.
func EventFor(t protocol.PacketType) (EventType, bool) {
	e, ok := packetEvents[t]
	return e, ok
}

// Bridge republishes packets dispatched by a session as bus events. The
// packet value itself is the event payload.
type Bridge struct {
	bus    *EventBus
	source string
	ctx    context.Context
}

// NewBridge creates a bridge that emits on bus with the given source name.
func NewBridge(ctx context.Context, bus *EventBus, source string) *Bridge {
	return &Bridge{bus: bus, source: source, ctx: ctx}
}

// Attach registers the bridge on r for every server packet type.
func (b *Bridge) Attach(r *admin.Registry) {
	types := make([]protocol.PacketType, 0, len(packetEvents))
	for t := range packetEvents {
		types = append(types, t)
	}
	r.Register(b.handle, types...)
}

func (b *Bridge) handle(_ *admin.Session, p protocol.Packet) error {
	eventType, ok := packetEvents[p.Type()]
	if !ok {
		return nil
	}
	b.bus.Emit(b.ctx, Event{
		Type:    eventType,
		Source:  b.source,
		Payload: p,
	})
	return nil
}

// PublishState emits a session state change.
func (b *Bridge) PublishState(state admin.State, err error) {
	payload := SessionStatePayload{State: state.String()}
	if err != nil {
		payload.Err = err.Error()
	}
	b.bus.Emit(b.ctx, Event{Type: EventSessionState, Source: b.source, Payload: payload})
}
