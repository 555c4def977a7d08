// Package events defines the event types published on the ottdadmin event bus.
package events

import "time"

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// Session lifecycle events
	EventSessionState   EventType = "session_state"
	EventServerRejected EventType = "server_rejected"
	EventServerProtocol EventType = "server_protocol"
	EventServerWelcome  EventType = "server_welcome"
	EventNewGame        EventType = "new_game"
	EventServerShutdown EventType = "server_shutdown"
	EventDate           EventType = "date"
	EventPong           EventType = "pong"

	// Client events
	EventClientJoin   EventType = "client_join"
	EventClientInfo   EventType = "client_info"
	EventClientUpdate EventType = "client_update"
	EventClientQuit   EventType = "client_quit"
	EventClientError  EventType = "client_error"

	// Company events
	EventCompanyNew     EventType = "company_new"
	EventCompanyInfo    EventType = "company_info"
	EventCompanyUpdate  EventType = "company_update"
	EventCompanyRemove  EventType = "company_remove"
	EventCompanyEconomy EventType = "company_economy"
	EventCompanyStats   EventType = "company_stats"

	// Text events
	EventChat       EventType = "chat"
	EventRcon       EventType = "rcon"
	EventRconEnd    EventType = "rcon_end"
	EventConsole    EventType = "console"
	EventGameScript EventType = "gamescript"
	EventCmdNames   EventType = "cmd_names"
	EventCmdLogging EventType = "cmd_logging"

	// Application events
	EventConfigChanged EventType = "config_changed"
	EventHealthAlert   EventType = "health_alert"
	EventShutdown      EventType = "shutdown"
)

// Event represents a single event in the system.
type Event struct {
	Type   EventType
	Source string
	Time   time.Time
	// Seq is assigned by the bus in emit order. Handlers run concurrently,
	// so consumers that care about arrival order sort on it.
	Seq     uint64
	Payload interface{}
}

// SessionStatePayload is emitted when the admin session changes state.
type SessionStatePayload struct {
	State string
	Err   string `json:",omitempty"`
}

// ConfigChangedPayload is emitted when configuration changes occur.
type ConfigChangedPayload struct {
	Section string
	Key     string
	Value   interface{}
}

// HealthAlertPayload is emitted when a health check finds a problem.
type HealthAlertPayload struct {
	Check   string `json:"check"`
	Level   string `json:"level"`
	Message string `json:"message"`
}
