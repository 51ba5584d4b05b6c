// Package wire defines the message vocabulary exchanged with browser viewers.
//
// Every frame on the viewer channel is a JSON envelope of the form
// {type, data}. The set of types is closed: each inbound control type and
// each outbound event type has its own payload struct in this package, and
// the dispatcher rejects anything outside the set.
//
// Outbound messages are built through constructor functions (BotConnected,
// ChatMessage, ...) so that callers cannot produce a type/payload mismatch.
// Inbound messages are decoded in two steps: the envelope first, then the
// payload via DecodeData once the type is known.
package wire
