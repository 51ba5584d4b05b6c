package protocol

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by commands issued against a client whose
	// underlying connection has ended.
	ErrNotConnected = errors.New("protocol client is not connected")
)

// AuthMode selects how the protocol client authenticates.
type AuthMode string

const (
	// AuthOffline treats the identity as a free-form display name.
	AuthOffline AuthMode = "offline"
	// AuthMicrosoft runs the federated device-code flow; the identity is an
	// email-like account name. The flow emits an AuthCode event before the
	// connection completes.
	AuthMicrosoft AuthMode = "microsoft"
)

// ParseAuthMode normalizes a viewer-supplied auth mode string. Anything
// other than "microsoft" is treated as offline, matching the panel's
// two-mode selector.
func ParseAuthMode(mode string) AuthMode {
	if mode == string(AuthMicrosoft) {
		return AuthMicrosoft
	}
	return AuthOffline
}

// Options carries the connect parameters for one protocol connection.
type Options struct {
	Host     string
	Port     int
	Username string
	Version  string
	Auth     AuthMode
}

// Addr returns the host:port target of the connection.
func (o Options) Addr() string {
	return fmt.Sprintf("%s:%d", o.Host, o.Port)
}

// Control is a held movement control on the protocol client.
type Control string

const (
	ControlForward Control = "forward"
	ControlBack    Control = "back"
	ControlLeft    Control = "left"
	ControlRight   Control = "right"
	ControlJump    Control = "jump"
	ControlSneak   Control = "sneak"
)

// ParseControl maps a viewer-supplied direction to a control. "crouch" is
// accepted as an alias for sneak.
func ParseControl(direction string) (Control, error) {
	switch direction {
	case "forward":
		return ControlForward, nil
	case "back":
		return ControlBack, nil
	case "left":
		return ControlLeft, nil
	case "right":
		return ControlRight, nil
	case "jump":
		return ControlJump, nil
	case "sneak", "crouch":
		return ControlSneak, nil
	default:
		return "", fmt.Errorf("unknown movement direction %q", direction)
	}
}

// Position is the bot's location in the world.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Slot is one occupied inventory slot.
type Slot struct {
	Slot        int    `json:"slot"`
	ItemID      string `json:"itemId"`
	DisplayName string `json:"displayName"`
	Count       int    `json:"count"`
}

// Player is one entry of the server's online player list.
type Player struct {
	UUID     string `json:"uuid"`
	Username string `json:"username"`
	Ping     int    `json:"ping"`
}

// Events is the callback set a Dialer wires into the new client. Nil
// callbacks are skipped. Callbacks for a single client are invoked in
// emission order and must not block.
type Events struct {
	// Connected fires once the client has logged into the server.
	Connected func()
	// End fires when the connection ends for any reason. It is the only
	// trigger for session teardown or reconnection.
	End func(reason string)
	// Kicked fires on an explicit server-initiated kick, before End.
	Kicked func(reason string)
	// Chat fires for dedicated player chat events.
	Chat func(username, text string)
	// Message fires for raw text lines outside the dedicated chat event;
	// some client builds re-emit player chat here.
	Message func(text string)
	// PlayerJoined and PlayerLeft track the online player list.
	PlayerJoined func(player Player)
	PlayerLeft   func(player Player)
	// Death fires when the bot dies.
	Death func()
	// Error fires for protocol-level errors; it never implies the
	// connection ended.
	Error func(err error)
	// AuthCode fires during the device-code flow with the verification URI
	// and user code.
	AuthCode func(uri, code string)
	// AuthVerified fires when the device-code flow completes.
	AuthVerified func()
	// Inventory fires when the known inventory contents change.
	Inventory func(slots []Slot)
}

// Client is one live protocol connection. All commands are safe to call
// from any goroutine. Commands issued after the connection ended return
// ErrNotConnected.
type Client interface {
	// Chat sends a chat line or slash command verbatim.
	Chat(text string) error
	// SetControlState presses or releases a held movement control.
	SetControlState(ctrl Control, active bool) error
	// Inventory returns the currently known inventory slots; empty until
	// the server has sent the inventory.
	Inventory() []Slot
	// Toss drops the full stack in the given slot.
	Toss(slot int) error

	// Username is the authenticated display name.
	Username() string
	// Version is the negotiated protocol version.
	Version() string
	// Players is the current online player list.
	Players() []Player
	// MaxPlayers is the server's advertised capacity.
	MaxPlayers() int
	// Ping is the latest measured latency in milliseconds.
	Ping() int
	// Position returns the bot position; ok is false before the first
	// position packet.
	Position() (pos Position, ok bool)

	// Quit releases the underlying connection. It is idempotent.
	Quit() error
}

// Dialer opens one protocol connection. A returned error means the
// connection never came up (bad host, rejected auth); errors after a
// successful return are delivered through Events.
type Dialer func(ctx context.Context, opts Options, events Events) (Client, error)
