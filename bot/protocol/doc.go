// Package protocol defines the contract between the relay and the
// game-protocol client that actually speaks to Minecraft servers.
//
// The protocol client is an external collaborator: handshake, encryption,
// and packet decoding all happen behind the Client interface, and the relay
// never sees raw packets. A Dialer produces one connected Client per call;
// event callbacks are registered up front through the Events struct so no
// event can be lost between dialing and subscription.
//
// Implementations:
//   - remote: production dialer that bridges to an external protocol-client
//     daemon over a WebSocket (see bot/protocol/remote)
//   - protocoltest: scripted in-memory client for tests
package protocol
