package websocket

import (
	"context"

	"github.com/crafthub/craftrelay/wire"
)

// dispatch routes one inbound frame to the relay. Decode failures and
// unknown types get an error reply and mutate nothing.
func (h *Hub) dispatch(c *Client, raw []byte) {
	in, err := wire.ParseInbound(raw)
	if err != nil {
		c.Send(wire.Error("Invalid message format"))
		return
	}

	switch in.Type {
	case wire.TypeConnectBot:
		var data wire.ConnectBotData
		if err := wire.DecodeData(in, &data); err != nil {
			c.Send(wire.Error(err.Error()))
			return
		}
		// Dialing can block on the server handshake; never stall the
		// read pump for it.
		go h.relay.ConnectBot(context.Background(), c, data)

	case wire.TypeDisconnectBot:
		var data wire.DisconnectBotData
		if err := wire.DecodeData(in, &data); err != nil {
			c.Send(wire.Error(err.Error()))
			return
		}
		h.relay.DisconnectBot(data.ConnectionID)

	case wire.TypeSendChat:
		var data wire.SendChatData
		if err := wire.DecodeData(in, &data); err != nil {
			c.Send(wire.Error(err.Error()))
			return
		}
		h.relay.SendChat(data.ConnectionID, data.Message)

	case wire.TypeSendCommand:
		var data wire.SendCommandData
		if err := wire.DecodeData(in, &data); err != nil {
			c.Send(wire.Error(err.Error()))
			return
		}
		h.relay.SendCommand(data.ConnectionID, data.Command)

	case wire.TypeMoveBot:
		var data wire.MoveBotData
		if err := wire.DecodeData(in, &data); err != nil {
			c.Send(wire.Error(err.Error()))
			return
		}
		h.relay.MoveBot(data.ConnectionID, data.Direction, data.Action)

	case wire.TypeGetInventory:
		var data wire.GetInventoryData
		if err := wire.DecodeData(in, &data); err != nil {
			c.Send(wire.Error(err.Error()))
			return
		}
		h.relay.GetInventory(data.ConnectionID)

	case wire.TypeDropItem:
		var data wire.DropItemData
		if err := wire.DecodeData(in, &data); err != nil {
			c.Send(wire.Error(err.Error()))
			return
		}
		h.relay.DropItem(data.ConnectionID, data.Slot)

	case wire.TypeEnableAlwaysOnline:
		var data wire.AlwaysOnlineData
		if err := wire.DecodeData(in, &data); err != nil {
			c.Send(wire.Error(err.Error()))
			return
		}
		h.relay.EnableAlwaysOnline(data.ConnectionID)

	case wire.TypeDisableAlwaysOnline:
		var data wire.AlwaysOnlineData
		if err := wire.DecodeData(in, &data); err != nil {
			c.Send(wire.Error(err.Error()))
			return
		}
		h.relay.DisableAlwaysOnline(data.ConnectionID)

	default:
		c.Send(wire.Error("Unknown message type: " + in.Type))
	}
}
