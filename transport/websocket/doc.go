// Package websocket is the viewer-facing control channel.
//
// The package uses a hub-and-spoke model: a central Hub tracks every
// browser connection, and each connection is handled by a pair of
// goroutines pumping reads and writes. A connection doubles as the
// session's outbound channel, so bot events flow back over the same
// socket the commands came in on.
//
// Message protocol:
//
// Frames are JSON envelopes with a type and payload:
//   - Incoming: {"type": "send_chat", "data": {"connectionId": "…", "message": "hi"}}
//   - Outgoing: {"type": "chat_message", "data": {…}}
//
// Incoming frames are routed to the relay by type; malformed or unknown
// frames get an "error" reply and change nothing. When a connection
// closes, every session attached to it is detached, which tears down
// non-persistent bots.
package websocket
