// Package protocol implements the binary admin-port protocol spoken between
// ottdadmin and an OpenTTD server: frame reassembly, packet decoding and
// packet encoding. All multi-byte integers are little-endian and every frame
// carries a 2-byte length prefix that counts itself.
package protocol

import "fmt"

// PacketType is the one-byte tag that follows the length prefix of a frame.
type PacketType byte

// Packet tags sent from the admin to the server.
const (
	AdminJoin         PacketType = 0x00 // Authenticate with password, name and version
	AdminQuit         PacketType = 0x01 // Admin is leaving
	AdminFrequency    PacketType = 0x02 // Set update frequency for an update type
	AdminPoll         PacketType = 0x03 // Explicitly poll for an update type
	AdminChat         PacketType = 0x04 // Chat message to distribute
	AdminRcon         PacketType = 0x05 // Remote console command
	AdminGameScript   PacketType = 0x06 // JSON for the GameScript
	AdminPing         PacketType = 0x07 // Expects a Pong carrying the same payload
	AdminExternalChat PacketType = 0x08 // Chat relayed from an external source
)

// Packet tags sent from the server to the admin.
const (
	ServerFull           PacketType = 0x64 // Server cannot accept more admins
	ServerBanned         PacketType = 0x65 // Admin is banned
	ServerError          PacketType = 0x66 // An error occurred
	ServerProtocol       PacketType = 0x67 // Protocol version and supported updates
	ServerWelcome        PacketType = 0x68 // Game/map details after a successful join
	ServerNewGame        PacketType = 0x69 // A new game is starting
	ServerShutdown       PacketType = 0x6A // Server is shutting down
	ServerDate           PacketType = 0x6B // Current game date
	ServerClientJoin     PacketType = 0x6C
	ServerClientInfo     PacketType = 0x6D
	ServerClientUpdate   PacketType = 0x6E
	ServerClientQuit     PacketType = 0x6F
	ServerClientError    PacketType = 0x70
	ServerCompanyNew     PacketType = 0x71
	ServerCompanyInfo    PacketType = 0x72
	ServerCompanyUpdate  PacketType = 0x73
	ServerCompanyRemove  PacketType = 0x74
	ServerCompanyEconomy PacketType = 0x75
	ServerCompanyStats   PacketType = 0x76
	ServerChat           PacketType = 0x77 // Relayed chat message
	ServerRcon           PacketType = 0x78 // One line of rcon output
	ServerConsole        PacketType = 0x79 // Console output
	ServerCmdNames       PacketType = 0x7A
	ServerCmdLoggingOld  PacketType = 0x7B // Reserved by protocol version 1, never decoded
	ServerGameScript     PacketType = 0x7C
	ServerRconEnd        PacketType = 0x7D // Rcon command finished
	ServerPong           PacketType = 0x7E
	ServerCmdLogging     PacketType = 0x7F

	InvalidPacket PacketType = 0xFF
)

var packetTypeNames = map[PacketType]string{
	AdminJoin:            "ADMIN_JOIN",
	AdminQuit:            "ADMIN_QUIT",
	AdminFrequency:       "ADMIN_UPDATE_FREQUENCY",
	AdminPoll:            "ADMIN_POLL",
	AdminChat:            "ADMIN_CHAT",
	AdminRcon:            "ADMIN_RCON",
	AdminGameScript:      "ADMIN_GAMESCRIPT",
	AdminPing:            "ADMIN_PING",
	AdminExternalChat:    "ADMIN_EXTERNAL_CHAT",
	ServerFull:           "SERVER_FULL",
	ServerBanned:         "SERVER_BANNED",
	ServerError:          "SERVER_ERROR",
	ServerProtocol:       "SERVER_PROTOCOL",
	ServerWelcome:        "SERVER_WELCOME",
	ServerNewGame:        "SERVER_NEWGAME",
	ServerShutdown:       "SERVER_SHUTDOWN",
	ServerDate:           "SERVER_DATE",
	ServerClientJoin:     "SERVER_CLIENT_JOIN",
	ServerClientInfo:     "SERVER_CLIENT_INFO",
	ServerClientUpdate:   "SERVER_CLIENT_UPDATE",
	ServerClientQuit:     "SERVER_CLIENT_QUIT",
	ServerClientError:    "SERVER_CLIENT_ERROR",
	ServerCompanyNew:     "SERVER_COMPANY_NEW",
	ServerCompanyInfo:    "SERVER_COMPANY_INFO",
	ServerCompanyUpdate:  "SERVER_COMPANY_UPDATE",
	ServerCompanyRemove:  "SERVER_COMPANY_REMOVE",
	ServerCompanyEconomy: "SERVER_COMPANY_ECONOMY",
	ServerCompanyStats:   "SERVER_COMPANY_STATS",
	ServerChat:           "SERVER_CHAT",
	ServerRcon:           "SERVER_RCON",
	ServerConsole:        "SERVER_CONSOLE",
	ServerCmdNames:       "SERVER_CMD_NAMES",
	ServerCmdLoggingOld:  "SERVER_CMD_LOGGING_OLD",
	ServerGameScript:     "SERVER_GAMESCRIPT",
	ServerRconEnd:        "SERVER_RCON_END",
	ServerPong:           "SERVER_PONG",
	ServerCmdLogging:     "SERVER_CMD_LOGGING",
	InvalidPacket:        "INVALID_ADMIN_PACKET",
}

// String returns the protocol name of the tag.
func (t PacketType) String() string {
	if name, ok := packetTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("PacketType(0x%02X)", byte(t))
}

// IsAdmin reports whether the tag lies in the admin→server range.
func (t PacketType) IsAdmin() bool {
	return t <= AdminExternalChat
}

// IsServer reports whether the tag lies in the server→admin range.
func (t PacketType) IsServer() bool {
	return t >= ServerFull && t <= ServerCmdLogging
}

// Frame layout constants.
const (
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 2

	// HeaderSize is the length prefix plus the type tag.
	HeaderSize = LengthPrefixSize + 1

	// MaxPacketSize is the largest frame the length prefix can describe.
	MaxPacketSize = 65535

	// MaxReadAttempts bounds the extra transport reads performed while a
	// partial frame is buffered.
	MaxReadAttempts = 5

	// DefaultPort is the admin port an OpenTTD server listens on.
	DefaultPort = 3977
)

// Packet is a decoded protocol message.
type Packet interface {
	Type() PacketType
}
