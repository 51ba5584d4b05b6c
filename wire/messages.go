package wire

import "time"

// Outbound message types.
const (
	TypeAuthStatus            = "auth_status"
	TypeMicrosoftAuthCode     = "microsoft_auth_code"
	TypeMicrosoftAuthVerified = "microsoft_auth_verified"
	TypeBotConnected          = "bot_connected"
	TypeBotDisconnected       = "bot_disconnected"
	TypeChatMessage           = "chat_message"
	TypePingUpdate            = "ping_update"
	TypePositionUpdate        = "position_update"
	TypeServerInfoUpdate      = "server_info_update"
	TypePlayersUpdate         = "players_update"
	TypeInventoryUpdate       = "inventory_update"
	TypeItemDropped           = "item_dropped"
	TypeBotError              = "bot_error"
	TypeConnectionError       = "connection_error"
	TypeAlwaysOnlineEnabled   = "always_online_enabled"
	TypeAlwaysOnlineDisabled  = "always_online_disabled"
	TypeError                 = "error"
)

// Message is the outbound envelope sent to a viewer channel.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Sender delivers outbound messages to one attached viewer channel.
// Implementations must be safe for concurrent use; a send to a closed
// channel returns an error and is never fatal to the session.
type Sender interface {
	Send(msg Message) error
}

// AuthStatusData reports progress of an authentication flow.
type AuthStatusData struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// AuthCodeData carries the device-code prompt of the Microsoft flow.
type AuthCodeData struct {
	VerificationURI string `json:"verificationUri"`
	UserCode        string `json:"userCode"`
	Message         string `json:"message"`
}

// BotConnectedData announces a successful login.
type BotConnectedData struct {
	ConnectionID string `json:"connectionId"`
	Username     string `json:"username"`
	Version      string `json:"version"`
	Players      string `json:"players"`
}

// BotDisconnectedData announces the end of a protocol connection.
type BotDisconnectedData struct {
	ConnectionID string `json:"connectionId"`
	Reason       string `json:"reason,omitempty"`
}

// ChatMessageData mirrors a persisted chat record.
type ChatMessageData struct {
	ID           string    `json:"id"`
	ConnectionID string    `json:"connectionId"`
	Username     string    `json:"username"`
	Message      string    `json:"message"`
	MessageType  string    `json:"messageType"`
	IsCommand    bool      `json:"isCommand"`
	Timestamp    time.Time `json:"timestamp"`
}

// PingUpdateData carries the latest measured ping.
type PingUpdateData struct {
	Ping int `json:"ping"`
}

// PositionUpdateData carries the bot position, formatted to two decimals
// the way the browser panel renders it.
type PositionUpdateData struct {
	X string `json:"x"`
	Y string `json:"y"`
	Z string `json:"z"`
}

// ServerInfoData summarizes the server the bot is connected to.
type ServerInfoData struct {
	Version string `json:"version"`
	Players string `json:"players"`
	MOTD    string `json:"motd"`
}

// PlayerInfo is one entry of a players_update list.
type PlayerInfo struct {
	UUID     string `json:"uuid"`
	Username string `json:"username"`
	Ping     int    `json:"ping"`
}

// PlayersUpdateData carries the online player list.
type PlayersUpdateData struct {
	Players    []PlayerInfo `json:"players"`
	MaxPlayers int          `json:"maxPlayers"`
}

// InventoryItem is one occupied inventory slot.
type InventoryItem struct {
	Slot        int    `json:"slot"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Count       int    `json:"count"`
}

// InventoryUpdateData carries an inventory snapshot.
type InventoryUpdateData struct {
	Inventory  []InventoryItem `json:"inventory"`
	TotalItems int             `json:"totalItems"`
}

// ItemDroppedData confirms a completed drop command.
type ItemDroppedData struct {
	Slot     int    `json:"slot"`
	ItemName string `json:"itemName"`
	Count    int    `json:"count"`
}

// NoticeData carries a human-readable error or status line.
type NoticeData struct {
	Message string `json:"message"`
}

// ConnectionIDData is the payload of messages that only reference a session.
type ConnectionIDData struct {
	ConnectionID string `json:"connectionId"`
}

// AuthStatus builds an auth_status message.
func AuthStatus(status, message string) Message {
	return Message{Type: TypeAuthStatus, Data: AuthStatusData{Status: status, Message: message}}
}

// MicrosoftAuthCode builds a microsoft_auth_code message.
func MicrosoftAuthCode(uri, code string) Message {
	return Message{Type: TypeMicrosoftAuthCode, Data: AuthCodeData{
		VerificationURI: uri,
		UserCode:        code,
		Message:         "Please visit " + uri + " and enter code: " + code,
	}}
}

// MicrosoftAuthVerified builds a microsoft_auth_verified message.
func MicrosoftAuthVerified() Message {
	return Message{Type: TypeMicrosoftAuthVerified, Data: AuthStatusData{
		Status:  "verified",
		Message: "Microsoft account verified successfully! Connecting to server...",
	}}
}

// BotConnected builds a bot_connected message.
func BotConnected(connectionID, username, version, players string) Message {
	return Message{Type: TypeBotConnected, Data: BotConnectedData{
		ConnectionID: connectionID,
		Username:     username,
		Version:      version,
		Players:      players,
	}}
}

// BotDisconnected builds a bot_disconnected message.
func BotDisconnected(connectionID, reason string) Message {
	return Message{Type: TypeBotDisconnected, Data: BotDisconnectedData{
		ConnectionID: connectionID,
		Reason:       reason,
	}}
}

// ChatMessage builds a chat_message from a persisted record.
func ChatMessage(data ChatMessageData) Message {
	return Message{Type: TypeChatMessage, Data: data}
}

// PingUpdate builds a ping_update message.
func PingUpdate(ping int) Message {
	return Message{Type: TypePingUpdate, Data: PingUpdateData{Ping: ping}}
}

// PositionUpdate builds a position_update message.
func PositionUpdate(x, y, z string) Message {
	return Message{Type: TypePositionUpdate, Data: PositionUpdateData{X: x, Y: y, Z: z}}
}

// ServerInfoUpdate builds a server_info_update message.
func ServerInfoUpdate(version, players, motd string) Message {
	return Message{Type: TypeServerInfoUpdate, Data: ServerInfoData{Version: version, Players: players, MOTD: motd}}
}

// PlayersUpdate builds a players_update message.
func PlayersUpdate(players []PlayerInfo, maxPlayers int) Message {
	if players == nil {
		players = []PlayerInfo{}
	}
	return Message{Type: TypePlayersUpdate, Data: PlayersUpdateData{Players: players, MaxPlayers: maxPlayers}}
}

// InventoryUpdate builds an inventory_update message.
func InventoryUpdate(items []InventoryItem) Message {
	if items == nil {
		items = []InventoryItem{}
	}
	return Message{Type: TypeInventoryUpdate, Data: InventoryUpdateData{Inventory: items, TotalItems: len(items)}}
}

// ItemDropped builds an item_dropped message.
func ItemDropped(slot int, itemName string, count int) Message {
	return Message{Type: TypeItemDropped, Data: ItemDroppedData{Slot: slot, ItemName: itemName, Count: count}}
}

// BotError builds a non-fatal bot_error notice.
func BotError(message string) Message {
	return Message{Type: TypeBotError, Data: NoticeData{Message: message}}
}

// ConnectionError builds a connect-time failure notice.
func ConnectionError(message string) Message {
	return Message{Type: TypeConnectionError, Data: NoticeData{Message: message}}
}

// AlwaysOnlineEnabled confirms that persistence mode was enabled.
func AlwaysOnlineEnabled(connectionID string) Message {
	return Message{Type: TypeAlwaysOnlineEnabled, Data: ConnectionIDData{ConnectionID: connectionID}}
}

// AlwaysOnlineDisabled confirms that persistence mode was disabled.
func AlwaysOnlineDisabled(connectionID string) Message {
	return Message{Type: TypeAlwaysOnlineDisabled, Data: ConnectionIDData{ConnectionID: connectionID}}
}

// Error builds a protocol-level error reply, used for malformed or unknown
// inbound messages.
func Error(message string) Message {
	return Message{Type: TypeError, Data: NoticeData{Message: message}}
}
