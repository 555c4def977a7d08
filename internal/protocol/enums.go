package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// UpdateType selects a category of server updates an admin can subscribe to.
type UpdateType uint16

const (
	UpdateDate           UpdateType = 0x00
	UpdateClientInfo     UpdateType = 0x01
	UpdateCompanyInfo    UpdateType = 0x02
	UpdateCompanyEconomy UpdateType = 0x03
	UpdateCompanyStats   UpdateType = 0x04
	UpdateChat           UpdateType = 0x05
	UpdateConsole        UpdateType = 0x06
	UpdateCmdNames       UpdateType = 0x07
	UpdateCmdLogging     UpdateType = 0x08
	UpdateGameScript     UpdateType = 0x09
	UpdateEnd            UpdateType = 0x0A
)

var updateTypeNames = map[UpdateType]string{
	UpdateDate:           "date",
	UpdateClientInfo:     "client_info",
	UpdateCompanyInfo:    "company_info",
	UpdateCompanyEconomy: "company_economy",
	UpdateCompanyStats:   "company_stats",
	UpdateChat:           "chat",
	UpdateConsole:        "console",
	UpdateCmdNames:       "cmd_names",
	UpdateCmdLogging:     "cmd_logging",
	UpdateGameScript:     "gamescript",
}

// Valid reports whether u names a known update type.
func (u UpdateType) Valid() bool {
	return u < UpdateEnd
}

func (u UpdateType) String() string {
	if name, ok := updateTypeNames[u]; ok {
		return name
	}
	return fmt.Sprintf("update_type(%d)", uint16(u))
}

// ParseUpdateType resolves a lowercase update type name.
func ParseUpdateType(s string) (UpdateType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for u, name := range updateTypeNames {
		if name == s {
			return u, nil
		}
	}
	return 0, fmt.Errorf("unknown update type %q", s)
}

// UpdateFrequency is how often (or on what trigger) an update is delivered.
type UpdateFrequency uint16

const (
	// FrequencyUnknown stands in for a value the server sent that this
	// client does not recognise.
	FrequencyUnknown   UpdateFrequency = 0x00
	FrequencyPoll      UpdateFrequency = 0x01
	FrequencyDaily     UpdateFrequency = 0x02
	FrequencyWeekly    UpdateFrequency = 0x04
	FrequencyMonthly   UpdateFrequency = 0x08
	FrequencyQuarterly UpdateFrequency = 0x10
	FrequencyAnnually  UpdateFrequency = 0x20
	FrequencyAutomatic UpdateFrequency = 0x40
)

var frequencyNames = map[UpdateFrequency]string{
	FrequencyPoll:      "poll",
	FrequencyDaily:     "daily",
	FrequencyWeekly:    "weekly",
	FrequencyMonthly:   "monthly",
	FrequencyQuarterly: "quarterly",
	FrequencyAnnually:  "annually",
	FrequencyAutomatic: "automatic",
}

// Known reports whether f is one of the defined frequencies.
func (f UpdateFrequency) Known() bool {
	_, ok := frequencyNames[f]
	return ok
}

func (f UpdateFrequency) String() string {
	if name, ok := frequencyNames[f]; ok {
		return name
	}
	return "unknown"
}

// ParseUpdateFrequency resolves a lowercase frequency name.
func ParseUpdateFrequency(s string) (UpdateFrequency, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for f, name := range frequencyNames {
		if name == s {
			return f, nil
		}
	}
	return FrequencyUnknown, fmt.Errorf("unknown update frequency %q", s)
}

// ChatAction describes what a chat packet represents.
type ChatAction uint8

const (
	ActionJoin             ChatAction = 0x00
	ActionLeave            ChatAction = 0x01
	ActionServerMessage    ChatAction = 0x02
	ActionChat             ChatAction = 0x03
	ActionChatCompany      ChatAction = 0x04
	ActionChatClient       ChatAction = 0x05
	ActionGiveMoney        ChatAction = 0x06
	ActionNameChange       ChatAction = 0x07
	ActionCompanySpectator ChatAction = 0x08
	ActionCompanyJoin      ChatAction = 0x09
	ActionCompanyNew       ChatAction = 0x0A
	actionEnd              ChatAction = 0x0B
)

// Valid reports whether a is a defined chat action.
func (a ChatAction) Valid() bool { return a < actionEnd }

var chatActionNames = [...]string{
	"join", "leave", "server_message", "chat", "chat_company", "chat_client",
	"give_money", "name_change", "company_spectator", "company_join", "company_new",
}

func (a ChatAction) String() string {
	if a.Valid() {
		return chatActionNames[a]
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

// DestType is the audience of a chat message.
type DestType uint8

const (
	DestBroadcast DestType = 0x00
	DestTeam      DestType = 0x01
	DestClient    DestType = 0x02
	destEnd       DestType = 0x03
)

// Valid reports whether d is a defined destination type.
func (d DestType) Valid() bool { return d < destEnd }

func (d DestType) String() string {
	switch d {
	case DestBroadcast:
		return "broadcast"
	case DestTeam:
		return "team"
	case DestClient:
		return "client"
	default:
		return fmt.Sprintf("dest(%d)", uint8(d))
	}
}

// CompanyRemoveReason explains why a company disappeared.
type CompanyRemoveReason uint8

const (
	RemoveManual    CompanyRemoveReason = 0x00
	RemoveAutoclean CompanyRemoveReason = 0x01
	RemoveBankrupt  CompanyRemoveReason = 0x02
	removeEnd       CompanyRemoveReason = 0x03
)

// Valid reports whether r is a defined remove reason.
func (r CompanyRemoveReason) Valid() bool { return r < removeEnd }

func (r CompanyRemoveReason) String() string {
	switch r {
	case RemoveManual:
		return "manual"
	case RemoveAutoclean:
		return "autoclean"
	case RemoveBankrupt:
		return "bankrupt"
	default:
		return "unknown"
	}
}

// NetworkErrorCode is an error reported by the server for the admin or a client.
type NetworkErrorCode uint8

const (
	ErrorGeneral           NetworkErrorCode = 0x00
	ErrorDesync            NetworkErrorCode = 0x01
	ErrorSavegameFailed    NetworkErrorCode = 0x02
	ErrorConnectionLost    NetworkErrorCode = 0x03
	ErrorIllegalPacket     NetworkErrorCode = 0x04
	ErrorNotAuthorized     NetworkErrorCode = 0x05
	ErrorNotExpected       NetworkErrorCode = 0x06
	ErrorWrongRevision     NetworkErrorCode = 0x07
	ErrorNameInUse         NetworkErrorCode = 0x08
	ErrorWrongPassword     NetworkErrorCode = 0x09
	ErrorCompanyMismatch   NetworkErrorCode = 0x0A
	ErrorKicked            NetworkErrorCode = 0x0B
	ErrorCheater           NetworkErrorCode = 0x0C
	ErrorFull              NetworkErrorCode = 0x0D
	ErrorTooManyCommands   NetworkErrorCode = 0x0E
	ErrorTimeoutPassword   NetworkErrorCode = 0x0F
	ErrorTimeoutComputer   NetworkErrorCode = 0x10
	ErrorTimeoutMap        NetworkErrorCode = 0x11
	ErrorTimeoutJoin       NetworkErrorCode = 0x12
	ErrorInvalidClientName NetworkErrorCode = 0x13
	ErrorNotOnAllowList    NetworkErrorCode = 0x14
	errorEnd               NetworkErrorCode = 0x15
)

var networkErrorNames = [...]string{
	"general", "desync", "savegame_failed", "connection_lost", "illegal_packet",
	"not_authorized", "not_expected", "wrong_revision", "name_in_use",
	"wrong_password", "company_mismatch", "kicked", "cheater", "full",
	"too_many_commands", "timeout_password", "timeout_computer", "timeout_map",
	"timeout_join", "invalid_client_name", "not_on_allow_list",
}

// Valid reports whether c is a defined error code.
func (c NetworkErrorCode) Valid() bool { return c < errorEnd }

func (c NetworkErrorCode) String() string {
	if c.Valid() {
		return networkErrorNames[c]
	}
	return fmt.Sprintf("error(%d)", uint8(c))
}

// VehicleType indexes the per-type vehicle counts of a company stats packet.
type VehicleType int

const (
	VehicleTrain VehicleType = iota
	VehicleLorry
	VehicleBus
	VehiclePlane
	VehicleShip

	// VehicleTypeCount is the number of counts carried on the wire.
	VehicleTypeCount
)

var vehicleTypeNames = [VehicleTypeCount]string{"train", "lorry", "bus", "plane", "ship"}

func (v VehicleType) String() string {
	if v >= 0 && v < VehicleTypeCount {
		return vehicleTypeNames[v]
	}
	return "unknown"
}

// Colour is a company colour index.
type Colour uint8

var colourNames = [...]string{
	"dark_blue", "pale_green", "pink", "yellow", "red", "light_blue", "green",
	"dark_green", "blue", "cream", "mauve", "purple", "orange", "brown", "grey", "white",
}

func (c Colour) String() string {
	if int(c) < len(colourNames) {
		return colourNames[c]
	}
	return fmt.Sprintf("colour(%d)", uint8(c))
}

// Landscape is the climate of the running map.
type Landscape uint8

const (
	LandscapeTemperate Landscape = iota
	LandscapeSubArctic
	LandscapeSubTropical
	LandscapeToyland
)

func (l Landscape) String() string {
	switch l {
	case LandscapeTemperate:
		return "temperate"
	case LandscapeSubArctic:
		return "sub_arctic"
	case LandscapeSubTropical:
		return "sub_tropical"
	case LandscapeToyland:
		return "toyland"
	default:
		return fmt.Sprintf("landscape(%d)", uint8(l))
	}
}

// MarshalJSON serializes the update type by name (e.g. "date").
func (u UpdateType) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// MarshalJSON serializes the frequency by name (e.g. "daily").
func (f UpdateFrequency) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}
