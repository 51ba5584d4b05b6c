// Package protocoltest provides a scripted protocol client for tests.
//
// A Fake records every command issued against it and exposes Emit helpers
// that drive the Events callbacks captured at dial time, so tests can
// replay server-side event sequences deterministically.
package protocoltest

import (
	"context"
	"sync"

	"github.com/crafthub/craftrelay/bot/protocol"
)

// Fake is a scripted protocol.Client.
type Fake struct {
	mu     sync.Mutex
	events protocol.Events
	quit   bool

	// Scripted state returned by the getters.
	Name       string
	Ver        string
	PlayerList []protocol.Player
	Capacity   int
	Latency    int
	Pos        protocol.Position
	HasPos     bool
	Slots      []protocol.Slot

	// Recorded commands.
	ChatLines []string
	Controls  map[protocol.Control]bool
	Tossed    []int
	QuitCalls int

	// ChatErr, when set, is returned by Chat.
	ChatErr error
}

// NewFake returns a Fake with sensible connected-state defaults.
func NewFake() *Fake {
	return &Fake{
		Name:     "TestBot",
		Ver:      "1.20.1",
		Capacity: 20,
		Controls: make(map[protocol.Control]bool),
	}
}

// Dialer returns a protocol.Dialer that hands out this fake and captures
// the adapter's event callbacks.
func (f *Fake) Dialer() protocol.Dialer {
	return func(ctx context.Context, opts protocol.Options, events protocol.Events) (protocol.Client, error) {
		f.mu.Lock()
		f.events = events
		f.quit = false
		f.mu.Unlock()
		return f, nil
	}
}

// FailingDialer returns a Dialer whose every attempt fails with err.
func FailingDialer(err error) protocol.Dialer {
	return func(ctx context.Context, opts protocol.Options, events protocol.Events) (protocol.Client, error) {
		return nil, err
	}
}

// SequenceDialer returns a Dialer that runs through the given dialers, one
// per attempt, sticking with the last once exhausted. It also returns a
// counter of attempts made.
func SequenceDialer(dialers ...protocol.Dialer) (protocol.Dialer, *int) {
	attempts := new(int)
	return func(ctx context.Context, opts protocol.Options, events protocol.Events) (protocol.Client, error) {
		i := *attempts
		*attempts++
		if i >= len(dialers) {
			i = len(dialers) - 1
		}
		return dialers[i](ctx, opts, events)
	}, attempts
}

func (f *Fake) Chat(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ChatErr != nil {
		return f.ChatErr
	}
	if f.quit {
		return protocol.ErrNotConnected
	}
	f.ChatLines = append(f.ChatLines, text)
	return nil
}

func (f *Fake) SetControlState(ctrl protocol.Control, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.quit {
		return protocol.ErrNotConnected
	}
	f.Controls[ctrl] = active
	return nil
}

func (f *Fake) Inventory() []protocol.Slot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Slot(nil), f.Slots...)
}

func (f *Fake) Toss(slot int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.quit {
		return protocol.ErrNotConnected
	}
	f.Tossed = append(f.Tossed, slot)
	return nil
}

func (f *Fake) Username() string { return f.Name }
func (f *Fake) Version() string  { return f.Ver }

func (f *Fake) Players() []protocol.Player {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Player(nil), f.PlayerList...)
}

func (f *Fake) MaxPlayers() int { return f.Capacity }
func (f *Fake) Ping() int       { return f.Latency }

func (f *Fake) Position() (protocol.Position, bool) {
	return f.Pos, f.HasPos
}

func (f *Fake) Quit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.QuitCalls++
	f.quit = true
	return nil
}

// Quitted reports whether Quit has been called at least once.
func (f *Fake) Quitted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quit
}

// ControlState returns the recorded state of one control.
func (f *Fake) ControlState(ctrl protocol.Control) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Controls[ctrl]
}

func (f *Fake) callbacks() protocol.Events {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events
}

// EmitConnected invokes the captured Connected callback.
func (f *Fake) EmitConnected() {
	if cb := f.callbacks().Connected; cb != nil {
		cb()
	}
}

// EmitEnd invokes the captured End callback.
func (f *Fake) EmitEnd(reason string) {
	if cb := f.callbacks().End; cb != nil {
		cb(reason)
	}
}

// EmitKicked invokes the captured Kicked callback.
func (f *Fake) EmitKicked(reason string) {
	if cb := f.callbacks().Kicked; cb != nil {
		cb(reason)
	}
}

// EmitChat invokes the captured Chat callback.
func (f *Fake) EmitChat(username, text string) {
	if cb := f.callbacks().Chat; cb != nil {
		cb(username, text)
	}
}

// EmitMessage invokes the captured Message callback.
func (f *Fake) EmitMessage(text string) {
	if cb := f.callbacks().Message; cb != nil {
		cb(text)
	}
}

// EmitPlayerJoined invokes the captured PlayerJoined callback.
func (f *Fake) EmitPlayerJoined(player protocol.Player) {
	if cb := f.callbacks().PlayerJoined; cb != nil {
		cb(player)
	}
}

// EmitPlayerLeft invokes the captured PlayerLeft callback.
func (f *Fake) EmitPlayerLeft(player protocol.Player) {
	if cb := f.callbacks().PlayerLeft; cb != nil {
		cb(player)
	}
}

// EmitDeath invokes the captured Death callback.
func (f *Fake) EmitDeath() {
	if cb := f.callbacks().Death; cb != nil {
		cb()
	}
}

// EmitError invokes the captured Error callback.
func (f *Fake) EmitError(err error) {
	if cb := f.callbacks().Error; cb != nil {
		cb(err)
	}
}

// EmitAuthCode invokes the captured AuthCode callback.
func (f *Fake) EmitAuthCode(uri, code string) {
	if cb := f.callbacks().AuthCode; cb != nil {
		cb(uri, code)
	}
}

// EmitAuthVerified invokes the captured AuthVerified callback.
func (f *Fake) EmitAuthVerified() {
	if cb := f.callbacks().AuthVerified; cb != nil {
		cb()
	}
}

// EmitInventory invokes the captured Inventory callback.
func (f *Fake) EmitInventory(slots []protocol.Slot) {
	if cb := f.callbacks().Inventory; cb != nil {
		cb(slots)
	}
}
