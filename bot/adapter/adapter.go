package adapter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/crafthub/craftrelay/bot/protocol"
)

// ErrEmptySlot is returned by DropItem when the requested slot holds
// nothing. No protocol command is issued in that case.
var ErrEmptySlot = errors.New("inventory slot is empty")

const (
	defaultTelemetryInterval = 3 * time.Second
	defaultJumpPulse         = 100 * time.Millisecond
)

// Config configures one adapter.
type Config struct {
	// ConnectionID tags log lines for this session.
	ConnectionID string
	// Handler receives the adapter's event stream. Required.
	Handler Handler
	// Logger is the parent logger; the adapter derives a child with the
	// connection id attached.
	Logger zerolog.Logger
	// TelemetryInterval is the status snapshot period. Zero means 3s.
	TelemetryInterval time.Duration
	// JumpPulse is how long a jump press is held. Zero means 100ms.
	JumpPulse time.Duration
}

// Adapter owns exactly one protocol client and narrows it to the command
// surface the relay exposes to viewers.
type Adapter struct {
	client    protocol.Client
	handler   Handler
	log       zerolog.Logger
	jumpPulse time.Duration

	telemetryStop chan struct{}
	telemetryOnce sync.Once

	// emitMu serializes handler invocations across the protocol read loop
	// and the telemetry pump.
	emitMu sync.Mutex

	mu         sync.Mutex
	terminated bool
	kicked     bool
	kickReason string
	jumpTimer  *time.Timer
}

// Dial opens a protocol connection through dial and returns the adapter
// owning it. Event callbacks are live before Dial returns, so device-code
// prompts raised during the handshake reach the handler.
func Dial(ctx context.Context, dial protocol.Dialer, opts protocol.Options, cfg Config) (*Adapter, error) {
	if cfg.Handler == nil {
		cfg.Handler = func(Event) {}
	}
	if cfg.TelemetryInterval <= 0 {
		cfg.TelemetryInterval = defaultTelemetryInterval
	}
	if cfg.JumpPulse <= 0 {
		cfg.JumpPulse = defaultJumpPulse
	}

	a := &Adapter{
		handler:       cfg.Handler,
		log:           cfg.Logger.With().Str("connection_id", cfg.ConnectionID).Logger(),
		jumpPulse:     cfg.JumpPulse,
		telemetryStop: make(chan struct{}),
	}

	client, err := dial(ctx, opts, a.events())
	if err != nil {
		return nil, err
	}
	a.client = client

	go a.telemetryLoop(cfg.TelemetryInterval)
	return a, nil
}

// events wires the protocol callbacks through the containment layer.
func (a *Adapter) events() protocol.Events {
	return protocol.Events{
		Connected: func() {
			a.dispatch("connected", func() { a.emit(ConnectedEvent{}) })
		},
		Kicked: func(reason string) {
			a.dispatch("kicked", func() {
				a.mu.Lock()
				a.kicked = true
				a.kickReason = reason
				a.mu.Unlock()
			})
		},
		End: func(reason string) {
			a.dispatch("end", func() {
				a.mu.Lock()
				kicked := a.kicked
				if reason == "" {
					reason = a.kickReason
				}
				a.mu.Unlock()
				a.stopTelemetry()
				a.emit(DisconnectedEvent{Reason: reason, Kicked: kicked})
			})
		},
		Chat: func(username, text string) {
			a.dispatch("chat", func() { a.emit(ChatEvent{Username: username, Text: text}) })
		},
		Message: func(text string) {
			a.dispatch("message", func() { a.emit(RawMessageEvent{Text: text}) })
		},
		PlayerJoined: func(player protocol.Player) {
			a.dispatch("player_joined", func() { a.emit(PlayerJoinedEvent{Player: player}) })
		},
		PlayerLeft: func(player protocol.Player) {
			a.dispatch("player_left", func() { a.emit(PlayerLeftEvent{Player: player}) })
		},
		Death: func() {
			a.dispatch("death", func() { a.emit(DeathEvent{}) })
		},
		Error: func(err error) {
			a.dispatch("error", func() { a.reportError(err) })
		},
		AuthCode: func(uri, code string) {
			a.dispatch("auth_code", func() { a.emit(AuthCodeEvent{URI: uri, Code: code}) })
		},
		AuthVerified: func() {
			a.dispatch("auth_verified", func() { a.emit(AuthVerifiedEvent{}) })
		},
		Inventory: func(slots []protocol.Slot) {
			a.dispatch("inventory", func() { a.emit(InventoryEvent{Slots: slots}) })
		},
	}
}

func (a *Adapter) emit(ev Event) {
	a.mu.Lock()
	terminated := a.terminated
	a.mu.Unlock()
	if terminated {
		return
	}
	a.emitMu.Lock()
	defer a.emitMu.Unlock()
	a.handler(ev)
}

func (a *Adapter) telemetryLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-a.telemetryStop:
			return
		case <-ticker.C:
			pos, ok := a.client.Position()
			a.emit(TelemetryEvent{
				Ping:        a.client.Ping(),
				Position:    pos,
				HasPosition: ok,
				Players:     a.client.Players(),
				MaxPlayers:  a.client.MaxPlayers(),
				Version:     a.client.Version(),
			})
		}
	}
}

func (a *Adapter) stopTelemetry() {
	a.telemetryOnce.Do(func() { close(a.telemetryStop) })
}

// IsCommand reports whether a viewer text line is a slash command rather
// than chat.
func IsCommand(text string) bool {
	return strings.HasPrefix(text, "/")
}

// SendChatOrCommand forwards a viewer text line to the server. Lines sent
// against a dead client are dropped with a log entry; other send failures
// go through error containment.
func (a *Adapter) SendChatOrCommand(text string) {
	kind := "chat"
	if IsCommand(text) {
		kind = "command"
	}
	if err := a.client.Chat(text); err != nil {
		if errors.Is(err, protocol.ErrNotConnected) {
			a.log.Debug().Str("kind", kind).Msg("dropping outbound text, client not connected")
			return
		}
		a.reportError(err)
		return
	}
	a.log.Debug().Str("kind", kind).Msg("sent outbound text")
}

// SetMovement presses or releases a movement control. A jump press is a
// one-shot pulse released automatically after the configured duration.
func (a *Adapter) SetMovement(direction string, start bool) error {
	ctrl, err := protocol.ParseControl(direction)
	if err != nil {
		return err
	}

	if ctrl == protocol.ControlJump && start {
		if err := a.client.SetControlState(ctrl, true); err != nil {
			return a.commandErr(err)
		}
		a.mu.Lock()
		if a.jumpTimer != nil {
			a.jumpTimer.Stop()
		}
		a.jumpTimer = time.AfterFunc(a.jumpPulse, func() {
			a.client.SetControlState(protocol.ControlJump, false)
		})
		a.mu.Unlock()
		return nil
	}

	return a.commandErr(a.client.SetControlState(ctrl, start))
}

// commandErr swallows not-connected failures; viewer commands against a
// dead client are a no-op, not an error.
func (a *Adapter) commandErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, protocol.ErrNotConnected) {
		a.log.Debug().Msg("dropping command, client not connected")
		return nil
	}
	return err
}

// QueryInventory returns the currently known inventory slots. Empty until
// the server has sent the inventory.
func (a *Adapter) QueryInventory() []protocol.Slot {
	return a.client.Inventory()
}

// DropItem tosses the full stack in the given slot and returns the slot
// contents for the notification. An unoccupied slot fails locally with
// ErrEmptySlot and issues no protocol command.
func (a *Adapter) DropItem(slot int) (protocol.Slot, error) {
	for _, s := range a.client.Inventory() {
		if s.Slot == slot && s.Count > 0 {
			if err := a.client.Toss(slot); err != nil {
				return protocol.Slot{}, err
			}
			return s, nil
		}
	}
	return protocol.Slot{}, ErrEmptySlot
}

// Terminate stops the telemetry pump and the jump timer and quits the
// client. Safe to call multiple times; only the first call does anything.
func (a *Adapter) Terminate() {
	a.mu.Lock()
	if a.terminated {
		a.mu.Unlock()
		return
	}
	a.terminated = true
	if a.jumpTimer != nil {
		a.jumpTimer.Stop()
		a.jumpTimer = nil
	}
	a.mu.Unlock()

	a.stopTelemetry()
	a.client.Quit()
}

// Terminated reports whether Terminate has run.
func (a *Adapter) Terminated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.terminated
}

func (a *Adapter) Username() string { return a.client.Username() }

func (a *Adapter) Version() string { return a.client.Version() }

func (a *Adapter) Players() []protocol.Player { return a.client.Players() }

func (a *Adapter) MaxPlayers() int { return a.client.MaxPlayers() }

func (a *Adapter) Ping() int { return a.client.Ping() }

func (a *Adapter) Position() (protocol.Position, bool) { return a.client.Position() }
