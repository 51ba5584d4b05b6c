package adapter

import "github.com/crafthub/craftrelay/bot/protocol"

// Event is one entry of the adapter's ordered event stream. The concrete
// types below are the full vocabulary.
type Event interface {
	isEvent()
}

// Handler consumes the adapter's event stream. Exactly one handler is
// attached per adapter, at dial time; events are delivered sequentially.
type Handler func(Event)

// ConnectedEvent fires once the bot has logged into the server.
type ConnectedEvent struct{}

// DisconnectedEvent fires when the connection ends for any reason. Kicked
// is set when the server explicitly kicked the bot, which suppresses
// always-online retries.
type DisconnectedEvent struct {
	Reason string
	Kicked bool
}

// ChatEvent is a dedicated player chat line.
type ChatEvent struct {
	Username string
	Text     string
}

// RawMessageEvent is a raw server text line outside the dedicated chat
// event. Some client builds re-emit player chat here, so consumers run
// these through the system-message filter before forwarding.
type RawMessageEvent struct {
	Text string
}

// PlayerJoinedEvent and PlayerLeftEvent track the online player list.
type PlayerJoinedEvent struct {
	Player protocol.Player
}

type PlayerLeftEvent struct {
	Player protocol.Player
}

// DeathEvent fires when the bot dies.
type DeathEvent struct{}

// ErrorEvent is a contained protocol error. Recoverable errors are known
// protocol-compatibility noise; either way the session survives.
type ErrorEvent struct {
	Err         error
	Recoverable bool
}

// AuthCodeEvent carries the device-code verification prompt.
type AuthCodeEvent struct {
	URI  string
	Code string
}

// AuthVerifiedEvent fires when the device-code flow completes.
type AuthVerifiedEvent struct{}

// InventoryEvent fires when the known inventory contents change.
type InventoryEvent struct {
	Slots []protocol.Slot
}

// TelemetryEvent is the periodic status snapshot pumped every telemetry
// interval while the client is up.
type TelemetryEvent struct {
	Ping        int
	Position    protocol.Position
	HasPosition bool
	Players     []protocol.Player
	MaxPlayers  int
	Version     string
}

func (ConnectedEvent) isEvent()    {}
func (DisconnectedEvent) isEvent() {}
func (ChatEvent) isEvent()         {}
func (RawMessageEvent) isEvent()   {}
func (PlayerJoinedEvent) isEvent() {}
func (PlayerLeftEvent) isEvent()   {}
func (DeathEvent) isEvent()        {}
func (ErrorEvent) isEvent()        {}
func (AuthCodeEvent) isEvent()     {}
func (AuthVerifiedEvent) isEvent() {}
func (InventoryEvent) isEvent()    {}
func (TelemetryEvent) isEvent()    {}
