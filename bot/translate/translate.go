// Package translate turns adapter events into persisted records and
// outbound wire messages.
//
// The translator is the only component that writes chat history for a
// session, so every viewer-visible line exists in storage before it is
// forwarded. Storage failures are logged and never interrupt the stream.
package translate

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/crafthub/craftrelay/bot/adapter"
	"github.com/crafthub/craftrelay/bot/protocol"
	"github.com/crafthub/craftrelay/storage"
	"github.com/crafthub/craftrelay/wire"
)

// BotInfo exposes the connection state the translator needs for events
// that carry no payload of their own. The adapter satisfies it.
type BotInfo interface {
	Username() string
	Version() string
	Players() []protocol.Player
	MaxPlayers() int
}

// Translator translates one session's event stream. A fresh translator is
// built for every adapter, including reconnects.
type Translator struct {
	connectionID string
	info         BotInfo
	store        storage.Store
	send         func(wire.Message)
	log          zerolog.Logger
}

func New(connectionID string, info BotInfo, store storage.Store, send func(wire.Message), log zerolog.Logger) *Translator {
	return &Translator{
		connectionID: connectionID,
		info:         info,
		store:        store,
		send:         send,
		log:          log.With().Str("connection_id", connectionID).Logger(),
	}
}

// Handle is the adapter.Handler for the session.
func (t *Translator) Handle(ev adapter.Event) {
	switch ev := ev.(type) {
	case adapter.ConnectedEvent:
		t.appendLog(storage.LevelInfo, fmt.Sprintf("Connected to server as %s", t.info.Username()))
		t.setConnected(true)
		t.send(wire.BotConnected(t.connectionID, t.info.Username(), t.info.Version(), t.playerCount()))

	case adapter.DisconnectedEvent:
		t.appendLog(storage.LevelWarning, fmt.Sprintf("Disconnected from server: %s", ev.Reason))
		t.setConnected(false)
		t.send(wire.BotDisconnected(t.connectionID, ev.Reason))

	case adapter.ChatEvent:
		t.forwardChat(storage.NewChatMessage{
			ConnectionID: t.connectionID,
			Username:     ev.Username,
			Message:      ev.Text,
			MessageType:  storage.MessageChat,
		})

	case adapter.RawMessageEvent:
		if !SystemLine(ev.Text) {
			return
		}
		t.forwardChat(storage.NewChatMessage{
			ConnectionID: t.connectionID,
			Username:     "Server",
			Message:      ev.Text,
			MessageType:  storage.MessageSystem,
		})

	case adapter.PlayerJoinedEvent:
		t.forwardChat(storage.NewChatMessage{
			ConnectionID: t.connectionID,
			Username:     ev.Player.Username,
			Message:      fmt.Sprintf("%s joined the game", ev.Player.Username),
			MessageType:  storage.MessageJoin,
		})
		t.sendPlayers()

	case adapter.PlayerLeftEvent:
		t.forwardChat(storage.NewChatMessage{
			ConnectionID: t.connectionID,
			Username:     ev.Player.Username,
			Message:      fmt.Sprintf("%s left the game", ev.Player.Username),
			MessageType:  storage.MessageLeave,
		})
		t.sendPlayers()

	case adapter.DeathEvent:
		name := t.info.Username()
		t.forwardChat(storage.NewChatMessage{
			ConnectionID: t.connectionID,
			Username:     name,
			Message:      fmt.Sprintf("%s died", name),
			MessageType:  storage.MessageDeath,
		})

	case adapter.ErrorEvent:
		level := storage.LevelError
		if ev.Recoverable {
			level = storage.LevelWarning
		}
		t.appendLog(level, ev.Err.Error())
		t.send(wire.BotError(ev.Err.Error()))

	case adapter.AuthCodeEvent:
		t.send(wire.MicrosoftAuthCode(ev.URI, ev.Code))

	case adapter.AuthVerifiedEvent:
		t.send(wire.MicrosoftAuthVerified())

	case adapter.InventoryEvent:
		t.send(wire.InventoryUpdate(InventoryItems(ev.Slots)))

	case adapter.TelemetryEvent:
		t.storePing(ev.Ping)
		t.send(wire.PingUpdate(ev.Ping))
		if ev.HasPosition {
			t.send(wire.PositionUpdate(coord(ev.Position.X), coord(ev.Position.Y), coord(ev.Position.Z)))
		}
		players := PlayerInfos(ev.Players)
		t.send(wire.ServerInfoUpdate(ev.Version, fmt.Sprintf("%d/%d", len(players), ev.MaxPlayers), ""))
		t.send(wire.PlayersUpdate(players, ev.MaxPlayers))
	}
}

// forwardChat persists a chat line and forwards the stored record, so the
// viewer sees the same id and timestamp that history queries return.
func (t *Translator) forwardChat(msg storage.NewChatMessage) {
	stored, err := t.store.AppendChatMessage(msg)
	if err != nil {
		t.log.Error().Err(err).Msg("failed to persist chat message")
		return
	}
	t.send(wire.ChatMessage(wire.ChatMessageData{
		ID:           stored.ID,
		ConnectionID: stored.ConnectionID,
		Username:     stored.Username,
		Message:      stored.Message,
		MessageType:  stored.MessageType,
		IsCommand:    stored.IsCommand,
		Timestamp:    stored.Timestamp,
	}))
}

func (t *Translator) appendLog(level, message string) {
	if _, err := t.store.AppendLog(t.connectionID, level, message); err != nil {
		t.log.Error().Err(err).Msg("failed to persist log line")
	}
}

func (t *Translator) setConnected(connected bool) {
	if err := t.store.UpdateConnection(t.connectionID, storage.ConnectionUpdate{IsConnected: &connected}); err != nil {
		t.log.Debug().Err(err).Msg("failed to update connection state")
	}
}

func (t *Translator) storePing(ping int) {
	if err := t.store.UpdateConnection(t.connectionID, storage.ConnectionUpdate{LastPing: &ping}); err != nil {
		t.log.Debug().Err(err).Msg("failed to update last ping")
	}
}

func (t *Translator) sendPlayers() {
	t.send(wire.PlayersUpdate(PlayerInfos(t.info.Players()), t.info.MaxPlayers()))
}

func (t *Translator) playerCount() string {
	return fmt.Sprintf("%d/%d", len(t.info.Players()), t.info.MaxPlayers())
}

// coord renders a coordinate the way the panel displays it.
func coord(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// PlayerInfos converts protocol players to their wire form.
func PlayerInfos(players []protocol.Player) []wire.PlayerInfo {
	out := make([]wire.PlayerInfo, 0, len(players))
	for _, p := range players {
		out = append(out, wire.PlayerInfo{UUID: p.UUID, Username: p.Username, Ping: p.Ping})
	}
	return out
}

// InventoryItems converts protocol slots to their wire form.
func InventoryItems(slots []protocol.Slot) []wire.InventoryItem {
	out := make([]wire.InventoryItem, 0, len(slots))
	for _, s := range slots {
		out = append(out, wire.InventoryItem{
			Slot:        s.Slot,
			Name:        s.ItemID,
			DisplayName: s.DisplayName,
			Count:       s.Count,
		})
	}
	return out
}
