// Package remote implements the protocol collaborator over a WebSocket
// bridge to an external protocol-client daemon.
//
// The daemon owns the actual Minecraft connection (handshake, encryption,
// packet decode) and exposes it as a stream of normalized JSON events; the
// relay sends it JSON commands. One WebSocket connection backs exactly one
// protocol session, so tearing the socket down tears the bot down.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/crafthub/craftrelay/bot/protocol"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	writeWait               = 10 * time.Second
)

// Config configures the bridge dialer.
type Config struct {
	// URL is the WebSocket endpoint of the protocol daemon,
	// e.g. "ws://127.0.0.1:3200/session".
	URL string
	// HandshakeTimeout bounds the WebSocket dial. Zero means 10s.
	HandshakeTimeout time.Duration
	// Logger receives bridge-level diagnostics.
	Logger zerolog.Logger
}

// command is one frame sent to the daemon.
type command struct {
	Op   string `json:"op"`
	Data any    `json:"data,omitempty"`
}

// event is one frame received from the daemon.
type event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type createData struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Version  string `json:"version"`
	Auth     string `json:"auth"`
}

type connectedData struct {
	Username   string            `json:"username"`
	Version    string            `json:"version"`
	Players    []protocol.Player `json:"players"`
	MaxPlayers int               `json:"maxPlayers"`
}

type chatData struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

type textData struct {
	Text string `json:"text"`
}

type reasonData struct {
	Reason string `json:"reason"`
}

type noticeData struct {
	Message string `json:"message"`
}

type authCodeData struct {
	URI  string `json:"uri"`
	Code string `json:"code"`
}

type inventoryData struct {
	Slots []protocol.Slot `json:"slots"`
}

type telemetryData struct {
	Ping       int               `json:"ping"`
	Position   protocol.Position `json:"position"`
	HasPos     bool              `json:"hasPosition"`
	Players    []protocol.Player `json:"players"`
	MaxPlayers int               `json:"maxPlayers"`
}

// NewDialer returns a protocol.Dialer backed by the bridge daemon at
// cfg.URL.
func NewDialer(cfg Config) protocol.Dialer {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	return func(ctx context.Context, opts protocol.Options, events protocol.Events) (protocol.Client, error) {
		dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
		conn, _, err := dialer.DialContext(ctx, cfg.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("dial protocol bridge: %w", err)
		}

		c := &client{
			conn:   conn,
			events: events,
			log:    cfg.Logger.With().Str("bridge", cfg.URL).Logger(),
		}
		if err := c.write(command{Op: "create", Data: createData{
			Host:     opts.Host,
			Port:     opts.Port,
			Username: opts.Username,
			Version:  opts.Version,
			Auth:     string(opts.Auth),
		}}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("start protocol session: %w", err)
		}

		go c.readLoop()
		return c, nil
	}
}

// client is one bridge-backed protocol session.
type client struct {
	conn    *websocket.Conn
	events  protocol.Events
	log     zerolog.Logger
	writeMu sync.Mutex

	quitOnce sync.Once

	mu         sync.RWMutex
	closed     bool
	username   string
	version    string
	players    []protocol.Player
	maxPlayers int
	ping       int
	pos        protocol.Position
	hasPos     bool
	slots      []protocol.Slot
}

func (c *client) write(cmd command) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return protocol.ErrNotConnected
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(cmd)
}

// readLoop decodes daemon events and fans them out to the registered
// callbacks. It owns the connection's read side and runs until the socket
// closes.
func (c *client) readLoop() {
	for {
		var ev event
		if err := c.conn.ReadJSON(&ev); err != nil {
			c.handleClosed(err)
			return
		}
		c.dispatch(ev)
	}
}

// handleClosed synthesizes an End event when the socket drops without the
// daemon having announced one. A local Quit produces no End.
func (c *client) handleClosed(err error) {
	c.mu.Lock()
	wasClosed := c.closed
	c.closed = true
	c.mu.Unlock()
	if wasClosed {
		return
	}

	c.log.Debug().Err(err).Msg("bridge connection closed")
	if cb := c.events.End; cb != nil {
		cb("connection ended")
	}
}

func (c *client) dispatch(ev event) {
	switch ev.Event {
	case "connected":
		var data connectedData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			c.dispatchError(fmt.Errorf("malformed connected event: %w", err))
			return
		}
		c.mu.Lock()
		c.username = data.Username
		c.version = data.Version
		c.players = data.Players
		c.maxPlayers = data.MaxPlayers
		c.mu.Unlock()
		if cb := c.events.Connected; cb != nil {
			cb()
		}

	case "chat":
		var data chatData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			c.dispatchError(fmt.Errorf("malformed chat event: %w", err))
			return
		}
		if cb := c.events.Chat; cb != nil {
			cb(data.Username, data.Message)
		}

	case "message":
		var data textData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			c.dispatchError(fmt.Errorf("malformed message event: %w", err))
			return
		}
		if cb := c.events.Message; cb != nil {
			cb(data.Text)
		}

	case "player_joined", "player_left":
		var player protocol.Player
		if err := json.Unmarshal(ev.Data, &player); err != nil {
			c.dispatchError(fmt.Errorf("malformed %s event: %w", ev.Event, err))
			return
		}
		c.updatePlayers(player, ev.Event == "player_joined")
		if ev.Event == "player_joined" {
			if cb := c.events.PlayerJoined; cb != nil {
				cb(player)
			}
		} else if cb := c.events.PlayerLeft; cb != nil {
			cb(player)
		}

	case "death":
		if cb := c.events.Death; cb != nil {
			cb()
		}

	case "kicked":
		var data reasonData
		json.Unmarshal(ev.Data, &data)
		if cb := c.events.Kicked; cb != nil {
			cb(data.Reason)
		}

	case "end":
		var data reasonData
		json.Unmarshal(ev.Data, &data)
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		if cb := c.events.End; cb != nil {
			cb(data.Reason)
		}

	case "error":
		var data noticeData
		json.Unmarshal(ev.Data, &data)
		c.dispatchError(fmt.Errorf("%s", data.Message))

	case "auth_code":
		var data authCodeData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			c.dispatchError(fmt.Errorf("malformed auth_code event: %w", err))
			return
		}
		if cb := c.events.AuthCode; cb != nil {
			cb(data.URI, data.Code)
		}

	case "auth_verified":
		if cb := c.events.AuthVerified; cb != nil {
			cb()
		}

	case "inventory":
		var data inventoryData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			c.dispatchError(fmt.Errorf("malformed inventory event: %w", err))
			return
		}
		c.mu.Lock()
		c.slots = data.Slots
		c.mu.Unlock()
		if cb := c.events.Inventory; cb != nil {
			cb(data.Slots)
		}

	case "telemetry":
		var data telemetryData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			c.dispatchError(fmt.Errorf("malformed telemetry event: %w", err))
			return
		}
		c.mu.Lock()
		c.ping = data.Ping
		c.pos = data.Position
		c.hasPos = data.HasPos
		if data.Players != nil {
			c.players = data.Players
		}
		if data.MaxPlayers > 0 {
			c.maxPlayers = data.MaxPlayers
		}
		c.mu.Unlock()

	default:
		c.log.Debug().Str("event", ev.Event).Msg("ignoring unknown bridge event")
	}
}

func (c *client) dispatchError(err error) {
	if cb := c.events.Error; cb != nil {
		cb(err)
	}
}

func (c *client) updatePlayers(player protocol.Player, joined bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	filtered := c.players[:0]
	for _, p := range c.players {
		if p.Username != player.Username {
			filtered = append(filtered, p)
		}
	}
	c.players = filtered
	if joined {
		c.players = append(c.players, player)
	}
}

func (c *client) Chat(text string) error {
	return c.write(command{Op: "chat", Data: map[string]string{"message": text}})
}

func (c *client) SetControlState(ctrl protocol.Control, active bool) error {
	return c.write(command{Op: "control", Data: map[string]any{
		"control": string(ctrl),
		"state":   active,
	}})
}

func (c *client) Inventory() []protocol.Slot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]protocol.Slot(nil), c.slots...)
}

func (c *client) Toss(slot int) error {
	return c.write(command{Op: "toss", Data: map[string]int{"slot": slot}})
}

func (c *client) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

func (c *client) Version() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

func (c *client) Players() []protocol.Player {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]protocol.Player(nil), c.players...)
}

func (c *client) MaxPlayers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxPlayers
}

func (c *client) Ping() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ping
}

func (c *client) Position() (protocol.Position, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pos, c.hasPos
}

// Quit sends a quit command and closes the socket. Safe to call multiple
// times; only the first call does anything.
func (c *client) Quit() error {
	c.quitOnce.Do(func() {
		c.write(command{Op: "quit"})
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.conn.Close()
	})
	return nil
}
