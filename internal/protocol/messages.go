package protocol

import "time"

// ---- Admin → server ----

// Join authenticates the admin (0x00).
// Format: [password:str][name:str][version:str]
type Join struct {
	Password string
	Name     string
	Version  string
}

// Quit tells the server the admin is leaving (0x01).
type Quit struct{}

// Subscribe sets the update frequency for one update type (0x02).
// Format: [type:2][frequency:2][0x00]
type Subscribe struct {
	Update    UpdateType
	Frequency UpdateFrequency
}

// PollAll asks a poll for every client or company instead of a single one.
const PollAll uint32 = 0xFFFFFFFF

// Poll explicitly requests an update (0x03).
// Format: [type:1][d1:4]
type Poll struct {
	Update UpdateType
	D1     uint32
}

// ChatRequest is a chat message from the admin (0x04).
// Format: [action:1][dest:1][id:4][message:str]
type ChatRequest struct {
	Action  ChatAction
	Dest    DestType
	ID      uint32
	Message string
}

// RconCommand runs a remote console command (0x05).
type RconCommand struct {
	Command string
}

// GameScriptRequest sends JSON to the GameScript (0x06).
type GameScriptRequest struct {
	JSON string
}

// Ping asks for a Pong echoing Payload (0x07).
type Ping struct {
	Payload uint32
}

// ExternalChat relays a chat line from another service (0x08).
// Format: [source:str][colour:2][user:str][message:str]
type ExternalChat struct {
	Source  string
	Colour  uint16
	User    string
	Message string
}

// ---- Server → admin ----

// Full means the server has no free admin slot (0x64).
type Full struct{}

// Banned means this admin is banned (0x65).
type Banned struct{}

// Error carries an error for the admin connection (0x66).
type Error struct {
	Code NetworkErrorCode
}

// ProtocolInfo announces the protocol version and the update types the
// server supports (0x67). A frequency this client does not know is kept as
// FrequencyUnknown.
type ProtocolInfo struct {
	Version       uint8
	Subscriptions map[UpdateType]UpdateFrequency
}

// Welcome describes the running game (0x68).
type Welcome struct {
	ServerName string
	Version    string
	Dedicated  bool
	MapName    string
	Seed       uint32
	Landscape  Landscape
	StartDate  uint32
	MapHeight  uint16
	MapWidth   uint16
}

// NewGame announces that a new game is starting (0x69).
type NewGame struct{}

// Shutdown announces that the server is going away (0x6A).
type Shutdown struct{}

// Date is the current game date in days since year 0 (0x6B).
type Date struct {
	Days uint32
}

// Time converts the game date to a calendar date.
func (d Date) Time() time.Time {
	return GameDate(d.Days)
}

// ClientJoin announces a new client (0x6C).
type ClientJoin struct {
	ID uint32
}

// ClientInfo describes a client (0x6D).
type ClientInfo struct {
	ID        uint32
	IP        string
	Name      string
	Language  uint8
	Joined    uint32
	CompanyID uint8
}

// ClientUpdate reports a client name or company change (0x6E).
type ClientUpdate struct {
	ID        uint32
	Name      string
	CompanyID uint8
}

// ClientQuit announces a client leaving (0x6F).
type ClientQuit struct {
	ID uint32
}

// ClientError reports a client being dropped with an error (0x70).
type ClientError struct {
	ID    uint32
	Error NetworkErrorCode
}

// CompanyNew announces a founded company (0x71).
type CompanyNew struct {
	ID uint8
}

// CompanyInfo describes a company (0x72).
type CompanyInfo struct {
	ID               uint8
	Name             string
	Manager          string
	Colour           Colour
	Passworded       bool
	StartYear        uint32
	IsAI             bool
	QuartersBankrupt uint8
}

// CompanyUpdate reports changed company details (0x73).
type CompanyUpdate struct {
	ID               uint8
	Name             string
	Manager          string
	Colour           Colour
	Passworded       bool
	QuartersBankrupt uint8
}

// CompanyRemove announces a removed company (0x74).
type CompanyRemove struct {
	ID     uint8
	Reason CompanyRemoveReason
}

// EconomyQuarters is the number of past quarters in a CompanyEconomy packet.
const EconomyQuarters = 2

// QuarterlyInfo is one past quarter of a company's economy.
type QuarterlyInfo struct {
	CompanyValue   uint64
	Performance    uint16
	DeliveredCargo uint16
}

// CompanyEconomy reports finances (0x75).
type CompanyEconomy struct {
	ID             uint8
	Money          uint64
	Loan           uint64
	DeliveredCargo uint16
	Quarters       [EconomyQuarters]QuarterlyInfo
}

// CompanyStats reports vehicle counts indexed by VehicleType (0x76).
type CompanyStats struct {
	ID       uint8
	Vehicles [VehicleTypeCount]uint16
}

// Chat relays a chat message (0x77).
// Format: [action:1][dest:1][id:4][message:str][money:8]
type Chat struct {
	Action  ChatAction
	Dest    DestType
	ID      uint32
	Message string
	Money   int64
}

// Rcon is one line of rcon output (0x78).
type Rcon struct {
	Colour uint16
	Output string
}

// Console is a line printed on the server console (0x79).
type Console struct {
	Origin  string
	Message string
}

// CmdNames lists DoCommand names (0x7A).
type CmdNames struct {
	Names []string
}

// GameScript carries JSON from the GameScript (0x7C).
type GameScript struct {
	JSON string
}

// RconEnd marks the end of an rcon command's output (0x7D).
type RconEnd struct {
	Command string
}

// Pong answers a Ping (0x7E).
type Pong struct {
	Payload uint32
}

// CmdLogging is a copy of an executed DoCommand (0x7F).
// Format: [client:4][company:1][cmd:2][len:2][data:len][frame:4]
type CmdLogging struct {
	ClientID  uint32
	CompanyID uint8
	Command   uint16
	Data      []byte
	Frame     uint32
}

func (Join) Type() PacketType              { return AdminJoin }
func (Quit) Type() PacketType              { return AdminQuit }
func (Subscribe) Type() PacketType         { return AdminFrequency }
func (Poll) Type() PacketType              { return AdminPoll }
func (ChatRequest) Type() PacketType       { return AdminChat }
func (RconCommand) Type() PacketType       { return AdminRcon }
func (GameScriptRequest) Type() PacketType { return AdminGameScript }
func (Ping) Type() PacketType              { return AdminPing }
func (ExternalChat) Type() PacketType      { return AdminExternalChat }
func (Full) Type() PacketType              { return ServerFull }
func (Banned) Type() PacketType            { return ServerBanned }
func (Error) Type() PacketType             { return ServerError }
func (ProtocolInfo) Type() PacketType      { return ServerProtocol }
func (Welcome) Type() PacketType           { return ServerWelcome }
func (NewGame) Type() PacketType           { return ServerNewGame }
func (Shutdown) Type() PacketType          { return ServerShutdown }
func (Date) Type() PacketType              { return ServerDate }
func (ClientJoin) Type() PacketType        { return ServerClientJoin }
func (ClientInfo) Type() PacketType        { return ServerClientInfo }
func (ClientUpdate) Type() PacketType      { return ServerClientUpdate }
func (ClientQuit) Type() PacketType        { return ServerClientQuit }
func (ClientError) Type() PacketType       { return ServerClientError }
func (CompanyNew) Type() PacketType        { return ServerCompanyNew }
func (CompanyInfo) Type() PacketType       { return ServerCompanyInfo }
func (CompanyUpdate) Type() PacketType     { return ServerCompanyUpdate }
func (CompanyRemove) Type() PacketType     { return ServerCompanyRemove }
func (CompanyEconomy) Type() PacketType    { return ServerCompanyEconomy }
func (CompanyStats) Type() PacketType      { return ServerCompanyStats }
func (Chat) Type() PacketType              { return ServerChat }
func (Rcon) Type() PacketType              { return ServerRcon }
func (Console) Type() PacketType           { return ServerConsole }
func (CmdNames) Type() PacketType          { return ServerCmdNames }
func (GameScript) Type() PacketType        { return ServerGameScript }
func (RconEnd) Type() PacketType           { return ServerRconEnd }
func (Pong) Type() PacketType              { return ServerPong }
func (CmdLogging) Type() PacketType        { return ServerCmdLogging }

// GameDate converts a day count since 1 January of year 0 to a UTC date.
func GameDate(days uint32) time.Time {
	return time.Date(0, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(days))
}
