// Package relay orchestrates bot sessions on behalf of viewer channels.
//
// It owns the connect flow, the shared handler-attachment procedure used
// by first connects and reconnects alike, the per-session reconnect
// machines, and session teardown. Transports call into it and never touch
// adapters or the registry directly.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/crafthub/craftrelay/bot/adapter"
	"github.com/crafthub/craftrelay/bot/protocol"
	"github.com/crafthub/craftrelay/bot/reconnect"
	"github.com/crafthub/craftrelay/bot/session"
	"github.com/crafthub/craftrelay/bot/translate"
	"github.com/crafthub/craftrelay/storage"
	"github.com/crafthub/craftrelay/wire"
)

const defaultMessageOnLoadDelay = 2 * time.Second

// Config wires the service's collaborators.
type Config struct {
	Store    storage.Store
	Registry *session.Registry
	Dialer   protocol.Dialer
	Logger   zerolog.Logger

	// TelemetryInterval and JumpPulse pass through to adapters. Zero
	// means the adapter defaults.
	TelemetryInterval time.Duration
	JumpPulse         time.Duration
	// ManualDelay passes through to reconnect machines. Zero means the
	// machine default.
	ManualDelay time.Duration
	// After overrides timer scheduling for reconnects and delayed
	// message-on-load sends. Nil means real timers.
	After reconnect.AfterFunc
}

// Service is the session orchestrator.
type Service struct {
	store    storage.Store
	registry *session.Registry
	dial     protocol.Dialer
	log      zerolog.Logger

	telemetryInterval time.Duration
	jumpPulse         time.Duration
	manualDelay       time.Duration
	after             reconnect.AfterFunc

	mu       sync.Mutex
	machines map[string]*reconnect.Machine
}

func New(cfg Config) *Service {
	after := cfg.After
	if after == nil {
		after = func(d time.Duration, fn func()) func() {
			t := time.AfterFunc(d, fn)
			return func() { t.Stop() }
		}
	}
	return &Service{
		store:             cfg.Store,
		registry:          cfg.Registry,
		dial:              cfg.Dialer,
		log:               cfg.Logger.With().Str("component", "relay").Logger(),
		telemetryInterval: cfg.TelemetryInterval,
		jumpPulse:         cfg.JumpPulse,
		manualDelay:       cfg.ManualDelay,
		after:             after,
		machines:          make(map[string]*reconnect.Machine),
	}
}

// ConnectBot starts a bot session for a viewer channel. Connect-time
// failures are reported on the channel and leave no session behind.
func (s *Service) ConnectBot(ctx context.Context, ch wire.Sender, req wire.ConnectBotData) {
	id := req.ConnectionID
	if id == "" {
		ch.Send(wire.Error("connectionId is required"))
		return
	}
	if s.registry.Active(id) {
		ch.Send(wire.ConnectionError("A bot is already connected for this connection"))
		return
	}

	host, port, err := protocol.ParseServerAddr(req.ServerIP)
	if err != nil {
		ch.Send(wire.ConnectionError(err.Error()))
		return
	}
	opts := protocol.Options{
		Host:     host,
		Port:     port,
		Username: req.Username,
		Version:  req.Version,
		Auth:     protocol.ParseAuthMode(req.AuthMode),
	}

	if opts.Auth == protocol.AuthMicrosoft {
		ch.Send(wire.AuthStatus("authenticating", "Starting Microsoft authentication..."))
	}

	a, err := s.attachAdapter(ctx, id, opts, ch)
	if err != nil {
		s.log.Warn().Err(err).Str("connection_id", id).Msg("connect failed")
		s.appendLog(id, storage.LevelError, fmt.Sprintf("Failed to connect: %v", err))
		ch.Send(wire.ConnectionError(fmt.Sprintf("Failed to connect: %v", err)))
		s.dropMachine(id)
		return
	}

	loadDelay := defaultMessageOnLoadDelay
	if req.MessageOnLoadDelay > 0 {
		loadDelay = time.Duration(req.MessageOnLoadDelay) * time.Millisecond
	}
	sess, err := s.registry.Create(session.Params{
		ID:                 id,
		Options:            opts,
		AutoReconnect:      req.AutoReconnect,
		MessageOnLoad:      req.MessageOnLoad,
		MessageOnLoadDelay: loadDelay,
		Adapter:            a,
		Channel:            ch,
	})
	if err != nil {
		a.Terminate()
		ch.Send(wire.ConnectionError("A bot is already connected for this connection"))
		return
	}

	if sess.MessageOnLoad != "" {
		s.scheduleMessageOnLoad(sess)
	}
}

// scheduleMessageOnLoad sends the configured greeting once the bot has had
// a moment to finish spawning.
func (s *Service) scheduleMessageOnLoad(sess *session.Session) {
	id := sess.ID
	text := sess.MessageOnLoad
	s.after(sess.MessageOnLoadDelay, func() {
		live, ok := s.registry.Get(id)
		if !ok {
			return
		}
		if a := live.Adapter(); a != nil && !a.Terminated() {
			a.SendChatOrCommand(text)
		}
	})
}

// attachAdapter is the single procedure that dials a protocol connection
// and attaches the session's event handling, used by the first connect
// and by every reconnect so the event surface never diverges between the
// two.
func (s *Service) attachAdapter(ctx context.Context, id string, opts protocol.Options, fallback wire.Sender) (*adapter.Adapter, error) {
	info := &botInfo{}
	send := func(msg wire.Message) {
		if sess, ok := s.registry.Get(id); ok {
			sess.Send(msg)
			return
		}
		if fallback != nil {
			fallback.Send(msg)
		}
	}
	tr := translate.New(id, info, s.store, send, s.log)
	machine := s.machineFor(id)

	handler := func(ev adapter.Event) {
		tr.Handle(ev)
		switch ev := ev.(type) {
		case adapter.ConnectedEvent:
			machine.HandleConnected()
		case adapter.TelemetryEvent:
			s.registry.SetTelemetry(id, ev)
		case adapter.DisconnectedEvent:
			sess, ok := s.registry.Get(id)
			if !ok {
				return
			}
			manual := sess.AutoReconnect && sess.Channel() != nil
			machine.HandleDisconnect(ev.Kicked, sess.Persistent(), manual)
		}
	}

	a, err := adapter.Dial(ctx, s.dial, opts, adapter.Config{
		ConnectionID:      id,
		Handler:           handler,
		Logger:            s.log,
		TelemetryInterval: s.telemetryInterval,
		JumpPulse:         s.jumpPulse,
	})
	if err != nil {
		return nil, err
	}
	info.set(a)
	return a, nil
}

// redial is the reconnect machine's attempt: a brand-new adapter swapped
// into the existing session.
func (s *Service) redial(id string) error {
	sess, ok := s.registry.Get(id)
	if !ok {
		return errors.New("session is no longer registered")
	}
	a, err := s.attachAdapter(context.Background(), id, sess.Options, nil)
	if err != nil {
		return err
	}
	if prev := s.registry.ReplaceAdapter(id, a); prev != nil {
		prev.Terminate()
	}
	s.appendLog(id, storage.LevelInfo, "Reconnected to server")
	return nil
}

func (s *Service) machineFor(id string) *reconnect.Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.machines[id]; ok {
		return m
	}
	m := reconnect.New(reconnect.Config{
		ConnectionID: id,
		Logger:       s.log,
		Attempt:      func() error { return s.redial(id) },
		OnFailure: func(err error) {
			s.appendLog(id, storage.LevelError, fmt.Sprintf("Reconnect failed: %v", err))
			if sess, ok := s.registry.Get(id); ok {
				sess.Send(wire.ConnectionError(fmt.Sprintf("Reconnect failed: %v", err)))
			}
		},
		ManualDelay: s.manualDelay,
		After:       s.after,
	})
	s.machines[id] = m
	return m
}

func (s *Service) dropMachine(id string) {
	s.mu.Lock()
	m, ok := s.machines[id]
	delete(s.machines, id)
	s.mu.Unlock()
	if ok {
		m.Terminate()
	}
}

// DisconnectBot tears down a session at the viewer's request. Unknown ids
// are ignored.
func (s *Service) DisconnectBot(id string) {
	if sess, ok := s.registry.Get(id); ok {
		s.teardown(sess, "Disconnected by user")
	}
}

// Terminate tears down a session administratively, notifying any attached
// viewer. Unknown ids are ignored.
func (s *Service) Terminate(id string) {
	if sess, ok := s.registry.Get(id); ok {
		s.teardown(sess, "Terminated by administrator")
	}
}

// teardown ends a session for good: reconnects stop, the adapter quits
// exactly once, and the registry entry goes away.
func (s *Service) teardown(sess *session.Session, reason string) {
	s.dropMachine(sess.ID)
	if a := sess.Adapter(); a != nil {
		a.Terminate()
	}
	sess.Send(wire.BotDisconnected(sess.ID, reason))
	s.registry.Remove(sess.ID)

	connected := false
	if err := s.store.UpdateConnection(sess.ID, storage.ConnectionUpdate{IsConnected: &connected}); err != nil {
		s.log.Debug().Err(err).Str("connection_id", sess.ID).Msg("failed to update connection record")
	}
	s.appendLog(sess.ID, storage.LevelInfo, reason)
	s.log.Info().Str("connection_id", sess.ID).Str("reason", reason).Msg("session terminated")
}

// DetachChannel handles a closed viewer connection: persistent sessions
// stay registered without a channel, everything else is torn down.
func (s *Service) DetachChannel(ch wire.Sender) {
	for _, sess := range s.registry.ByChannel(ch) {
		if sess.Persistent() {
			s.registry.DetachChannel(sess.ID)
			s.appendLog(sess.ID, storage.LevelInfo, "Viewer disconnected, bot staying online")
			continue
		}
		s.teardown(sess, "Viewer disconnected")
	}
}

// AttachChannel points an existing session at a new viewer channel, so a
// returning viewer can resume watching a persistent bot.
func (s *Service) AttachChannel(id string, ch wire.Sender) {
	s.registry.AttachChannel(id, ch)
}

// SendChat relays a chat line through the bot. Missing sessions are
// dropped silently.
func (s *Service) SendChat(id, message string) {
	s.sendText(id, message)
}

// SendCommand relays a slash command through the bot, prefixing the slash
// when the viewer omitted it.
func (s *Service) SendCommand(id, command string) {
	if !adapter.IsCommand(command) {
		command = "/" + command
	}
	s.sendText(id, command)
}

func (s *Service) sendText(id, text string) {
	sess, a := s.liveAdapter(id)
	if a == nil {
		return
	}
	a.SendChatOrCommand(text)

	stored, err := s.store.AppendChatMessage(storage.NewChatMessage{
		ConnectionID: id,
		Username:     a.Username(),
		Message:      text,
		MessageType:  storage.MessageChat,
		IsCommand:    adapter.IsCommand(text),
	})
	if err != nil {
		s.log.Error().Err(err).Str("connection_id", id).Msg("failed to persist outgoing chat")
		return
	}
	sess.Send(wire.ChatMessage(wire.ChatMessageData{
		ID:           stored.ID,
		ConnectionID: stored.ConnectionID,
		Username:     stored.Username,
		Message:      stored.Message,
		MessageType:  stored.MessageType,
		IsCommand:    stored.IsCommand,
		Timestamp:    stored.Timestamp,
	}))
}

// MoveBot toggles a movement control. Missing sessions are dropped
// silently; a bad direction is reported on the channel.
func (s *Service) MoveBot(id, direction, action string) {
	sess, a := s.liveAdapter(id)
	if a == nil {
		return
	}
	if err := a.SetMovement(direction, action == "start"); err != nil {
		sess.Send(wire.Error(err.Error()))
	}
}

// GetInventory pushes an inventory snapshot to the session's channel.
func (s *Service) GetInventory(id string) {
	sess, a := s.liveAdapter(id)
	if a == nil {
		return
	}
	sess.Send(wire.InventoryUpdate(translate.InventoryItems(a.QueryInventory())))
}

// DropItem tosses the stack in one slot. An empty slot is logged and
// issues no protocol command.
func (s *Service) DropItem(id string, slot int) {
	sess, a := s.liveAdapter(id)
	if a == nil {
		return
	}
	item, err := a.DropItem(slot)
	if err != nil {
		if errors.Is(err, adapter.ErrEmptySlot) {
			s.appendLog(id, storage.LevelWarning, fmt.Sprintf("No item in slot %d to drop", slot))
			return
		}
		sess.Send(wire.Error(err.Error()))
		return
	}
	s.appendLog(id, storage.LevelInfo, fmt.Sprintf("Dropped %d x %s", item.Count, item.DisplayName))
	sess.Send(wire.ItemDropped(slot, item.DisplayName, item.Count))
}

// EnableAlwaysOnline keeps the session alive after its viewer leaves.
func (s *Service) EnableAlwaysOnline(id string) {
	sess, ok := s.registry.Get(id)
	if !ok {
		return
	}
	s.registry.SetPersistent(id, true)
	s.appendLog(id, storage.LevelInfo, "Always-online mode enabled")
	sess.Send(wire.AlwaysOnlineEnabled(id))
}

// DisableAlwaysOnline reverts the session to viewer-bound lifetime.
func (s *Service) DisableAlwaysOnline(id string) {
	sess, ok := s.registry.Get(id)
	if !ok {
		return
	}
	s.registry.SetPersistent(id, false)
	s.appendLog(id, storage.LevelInfo, "Always-online mode disabled")
	sess.Send(wire.AlwaysOnlineDisabled(id))
}

// Shutdown terminates every live session, used on server exit.
func (s *Service) Shutdown() {
	for _, sess := range s.registry.List() {
		s.teardown(sess, "Server shutting down")
	}
}

func (s *Service) liveAdapter(id string) (*session.Session, *adapter.Adapter) {
	sess, ok := s.registry.Get(id)
	if !ok {
		s.log.Debug().Str("connection_id", id).Msg("command for unknown session dropped")
		return nil, nil
	}
	a := sess.Adapter()
	if a == nil {
		s.log.Debug().Str("connection_id", id).Msg("command while session has no adapter dropped")
		return nil, nil
	}
	return sess, a
}

func (s *Service) appendLog(id, level, message string) {
	if _, err := s.store.AppendLog(id, level, message); err != nil {
		s.log.Debug().Err(err).Str("connection_id", id).Msg("failed to persist log line")
	}
}

// botInfo defers the translator's view of the adapter until the dial has
// returned, since auth events can arrive first.
type botInfo struct {
	mu sync.RWMutex
	a  *adapter.Adapter
}

func (b *botInfo) set(a *adapter.Adapter) {
	b.mu.Lock()
	b.a = a
	b.mu.Unlock()
}

func (b *botInfo) get() *adapter.Adapter {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.a
}

func (b *botInfo) Username() string {
	if a := b.get(); a != nil {
		return a.Username()
	}
	return ""
}

func (b *botInfo) Version() string {
	if a := b.get(); a != nil {
		return a.Version()
	}
	return ""
}

func (b *botInfo) Players() []protocol.Player {
	if a := b.get(); a != nil {
		return a.Players()
	}
	return nil
}

func (b *botInfo) MaxPlayers() int {
	if a := b.get(); a != nil {
		return a.MaxPlayers()
	}
	return 0
}
