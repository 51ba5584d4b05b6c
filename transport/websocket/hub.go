package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/crafthub/craftrelay/wire"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Outbound buffer per connection. Telemetry bursts fit comfortably;
	// a viewer that stops reading loses messages rather than blocking
	// the relay.
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The panel is served from arbitrary origins in development.
		return true
	},
}

// ErrClientGone is returned by Send once the connection is closed or its
// buffer overflowed.
var ErrClientGone = errors.New("viewer connection is gone")

// Relay is the command surface the hub drives. Satisfied by
// relay.Service.
type Relay interface {
	ConnectBot(ctx context.Context, ch wire.Sender, req wire.ConnectBotData)
	DisconnectBot(id string)
	SendChat(id, message string)
	SendCommand(id, command string)
	MoveBot(id, direction, action string)
	GetInventory(id string)
	DropItem(id string, slot int)
	EnableAlwaysOnline(id string)
	DisableAlwaysOnline(id string)
	DetachChannel(ch wire.Sender)
}

// Client is one browser connection. It implements wire.Sender, so a bot
// session can be pointed straight at it.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// Hub maintains the set of active viewer connections.
type Hub struct {
	relay Relay
	log   zerolog.Logger

	// Registered clients.
	clients map[*Client]bool

	// Register and unregister requests from clients.
	register   chan *Client
	unregister chan *Client
}

func NewHub(relay Relay, log zerolog.Logger) *Hub {
	return &Hub{
		relay:      relay,
		log:        log.With().Str("component", "websocket").Logger(),
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's event loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.log.Debug().Int("clients", len(h.clients)).Msg("viewer connected")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				h.relay.DetachChannel(client)
				h.log.Debug().Int("clients", len(h.clients)).Msg("viewer disconnected")
			}
		}
	}
}

// ServeWS handles WebSocket requests from viewers.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// Send queues an outbound message for the viewer. It never blocks; a
// full buffer or closed connection returns ErrClientGone.
func (c *Client) Send(msg wire.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClientGone
	case c.send <- data:
		return nil
	default:
		return ErrClientGone
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// readPump pumps control frames from the connection to the relay.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug().Err(err).Msg("websocket read error")
			}
			break
		}
		c.hub.dispatch(c, raw)
	}
}

// writePump pumps queued messages to the connection and keeps it alive
// with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
