package wire

import (
	"encoding/json"
	"fmt"
)

// Inbound control message types.
const (
	TypeConnectBot          = "connect_bot"
	TypeDisconnectBot       = "disconnect_bot"
	TypeSendChat            = "send_chat"
	TypeSendCommand         = "send_command"
	TypeMoveBot             = "move_bot"
	TypeGetInventory        = "get_inventory"
	TypeDropItem            = "drop_item"
	TypeEnableAlwaysOnline  = "enable_always_online"
	TypeDisableAlwaysOnline = "disable_always_online"
)

// Inbound is the envelope of a viewer control message. The payload stays
// raw until the type is known.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ConnectBotData starts a new bot session for an existing connection record.
type ConnectBotData struct {
	ConnectionID       string `json:"connectionId"`
	Username           string `json:"username"`
	ServerIP           string `json:"serverIp"`
	Version            string `json:"version"`
	AuthMode           string `json:"authMode"`
	MessageOnLoad      string `json:"messageOnLoad,omitempty"`
	MessageOnLoadDelay int    `json:"messageOnLoadDelay,omitempty"`
	AutoReconnect      bool   `json:"autoReconnect,omitempty"`
}

// DisconnectBotData tears down a bot session.
type DisconnectBotData struct {
	ConnectionID string `json:"connectionId"`
}

// SendChatData relays a chat line through the bot.
type SendChatData struct {
	ConnectionID string `json:"connectionId"`
	Message      string `json:"message"`
}

// SendCommandData relays a slash command through the bot.
type SendCommandData struct {
	ConnectionID string `json:"connectionId"`
	Command      string `json:"command"`
}

// MoveBotData toggles a movement control. Action is "start" or "stop".
type MoveBotData struct {
	ConnectionID string `json:"connectionId"`
	Direction    string `json:"direction"`
	Action       string `json:"action"`
}

// GetInventoryData requests an inventory snapshot.
type GetInventoryData struct {
	ConnectionID string `json:"connectionId"`
}

// DropItemData drops the full stack in one slot.
type DropItemData struct {
	ConnectionID string `json:"connectionId"`
	Slot         int    `json:"slot"`
}

// AlwaysOnlineData toggles persistence mode for a session.
type AlwaysOnlineData struct {
	ConnectionID string `json:"connectionId"`
}

// ParseInbound decodes the envelope of a raw frame.
func ParseInbound(raw []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return Inbound{}, fmt.Errorf("invalid message format: %w", err)
	}
	return in, nil
}

// DecodeData decodes the payload of an inbound message into the typed
// struct matching its type. A missing data object decodes to zero values so
// that the dispatcher's missing-session handling applies uniformly.
func DecodeData(in Inbound, dst any) error {
	if len(in.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(in.Data, dst); err != nil {
		return fmt.Errorf("invalid %s payload: %w", in.Type, err)
	}
	return nil
}
