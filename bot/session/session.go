// Package session tracks live bot sessions keyed by connection id.
//
// The registry is the single source of truth for which bots exist, which
// viewer channel (if any) observes each one, and which adapter currently
// owns the protocol connection. All handoffs happen atomically under the
// session lock so a session never half-points at two adapters.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/crafthub/craftrelay/bot/adapter"
	"github.com/crafthub/craftrelay/bot/protocol"
	"github.com/crafthub/craftrelay/wire"
)

// ErrDuplicateSession is returned by Create when a live session already
// exists for the connection id.
var ErrDuplicateSession = errors.New("session already exists for this connection")

// Session is one tracked bot. The connect parameters are immutable after
// creation; the adapter, channel, and persistence flag are swapped through
// the accessors below.
type Session struct {
	ID string
	// Options are the parameters the bot was dialed with, kept for
	// reconnection.
	Options protocol.Options
	// AutoReconnect records whether the viewer asked for a manual
	// reconnect attempt after unexpected disconnects.
	AutoReconnect bool
	// MessageOnLoad, when non-empty, is chat sent shortly after connecting.
	MessageOnLoad      string
	MessageOnLoadDelay time.Duration
	CreatedAt          time.Time

	mu         sync.RWMutex
	adapter    *adapter.Adapter
	channel    wire.Sender
	persistent bool
	telemetry  adapter.TelemetryEvent
}

// Adapter returns the adapter currently owning the protocol connection,
// or nil between reconnect attempts.
func (s *Session) Adapter() *adapter.Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.adapter
}

// Channel returns the attached viewer channel, or nil for a detached
// persistent session.
func (s *Session) Channel() wire.Sender {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channel
}

// Persistent reports whether the session outlives its viewer channel.
func (s *Session) Persistent() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persistent
}

// Telemetry returns the last recorded status snapshot.
func (s *Session) Telemetry() adapter.TelemetryEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.telemetry
}

// Send forwards a message to the attached channel, if any. Detached
// sessions drop the message.
func (s *Session) Send(msg wire.Message) {
	s.mu.RLock()
	ch := s.channel
	s.mu.RUnlock()
	if ch == nil {
		return
	}
	ch.Send(msg)
}

// Registry is the session table.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	log      zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		log:      log.With().Str("component", "registry").Logger(),
	}
}

// Params carries the fields of a new session. ID, Options, and the
// reconnect settings are immutable once registered.
type Params struct {
	ID                 string
	Options            protocol.Options
	AutoReconnect      bool
	MessageOnLoad      string
	MessageOnLoadDelay time.Duration
	Adapter            *adapter.Adapter
	Channel            wire.Sender
}

// Create registers a new session. A second Create for the same id fails
// with ErrDuplicateSession while the first is still registered.
func (r *Registry) Create(p Params) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[p.ID]; exists {
		return nil, ErrDuplicateSession
	}
	s := &Session{
		ID:                 p.ID,
		Options:            p.Options,
		AutoReconnect:      p.AutoReconnect,
		MessageOnLoad:      p.MessageOnLoad,
		MessageOnLoadDelay: p.MessageOnLoadDelay,
		CreatedAt:          time.Now(),
		adapter:            p.Adapter,
		channel:            p.Channel,
	}
	r.sessions[p.ID] = s
	r.log.Debug().Str("connection_id", p.ID).Msg("session registered")
	return s, nil
}

// Get returns the session for id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Active reports whether a session is registered for id.
func (r *Registry) Active(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// List returns all registered sessions.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// ByChannel returns every session attached to the given channel. Used to
// fan out teardown when a viewer connection closes.
func (r *Registry) ByChannel(ch wire.Sender) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Session
	for _, s := range r.sessions {
		if s.Channel() == ch {
			out = append(out, s)
		}
	}
	return out
}

// AttachChannel points the session at a new viewer channel. No-op for
// unknown ids.
func (r *Registry) AttachChannel(id string, ch wire.Sender) {
	if s, ok := r.Get(id); ok {
		s.mu.Lock()
		s.channel = ch
		s.mu.Unlock()
	}
}

// DetachChannel clears the session's viewer channel, leaving the session
// registered. No-op for unknown ids.
func (r *Registry) DetachChannel(id string) {
	if s, ok := r.Get(id); ok {
		s.mu.Lock()
		s.channel = nil
		s.mu.Unlock()
	}
}

// ReplaceAdapter atomically swaps in a new adapter and returns the
// previous one, which the caller is expected to have terminated already.
// No-op for unknown ids.
func (r *Registry) ReplaceAdapter(id string, a *adapter.Adapter) (prev *adapter.Adapter) {
	s, ok := r.Get(id)
	if !ok {
		return nil
	}
	s.mu.Lock()
	prev = s.adapter
	s.adapter = a
	s.mu.Unlock()
	return prev
}

// SetPersistent toggles always-online mode. No-op for unknown ids.
func (r *Registry) SetPersistent(id string, persistent bool) {
	if s, ok := r.Get(id); ok {
		s.mu.Lock()
		s.persistent = persistent
		s.mu.Unlock()
	}
}

// SetTelemetry records the latest status snapshot. No-op for unknown ids.
func (r *Registry) SetTelemetry(id string, t adapter.TelemetryEvent) {
	if s, ok := r.Get(id); ok {
		s.mu.Lock()
		s.telemetry = t
		s.mu.Unlock()
	}
}

// Remove drops the session from the registry. Idempotent.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; ok {
		delete(r.sessions, id)
		r.log.Debug().Str("connection_id", id).Msg("session removed")
	}
}
