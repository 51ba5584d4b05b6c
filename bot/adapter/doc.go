// Package adapter wraps a single protocol client behind a uniform command
// surface and a single ordered event stream.
//
// Every protocol callback is dispatched through a containment layer that
// recovers panics and screens errors against a recoverable classification,
// so a misbehaving protocol client can degrade a session but never crash
// the relay. The adapter also owns the periodic telemetry pump and the
// jump-pulse timer; Terminate stops both and releases the client exactly
// once.
package adapter
