// Package reconnect decides whether and when a dropped session dials
// again.
//
// Two policies exist. A manual policy makes a single attempt shortly
// after an unexpected disconnect when the viewer opted in and is still
// watching. The always-online policy retries on a short backoff schedule
// and then goes dormant, leaving the session registered for a later
// manual reconnect. A server kick suppresses both.
package reconnect

import (
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"
)

// State is the machine's view of the session's connection.
type State int

const (
	StateConnected State = iota
	StateDisconnected
	StateReconnecting
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateReconnecting:
		return "reconnecting"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

const (
	defaultManualDelay = 5 * time.Second
	autoRetryMin       = 3 * time.Second
	autoRetryMax       = 10 * time.Second
	// maxAutoAttempts bounds the always-online schedule: one attempt at
	// the minimum delay, one at the maximum, then dormant.
	maxAutoAttempts = 2
)

// AfterFunc schedules fn after d and returns a cancel function.
// Injectable so tests control time.
type AfterFunc func(d time.Duration, fn func()) (cancel func())

func stdAfter(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// Config configures one machine. A machine belongs to exactly one
// session.
type Config struct {
	ConnectionID string
	Logger       zerolog.Logger
	// Attempt dials a replacement connection and swaps it into the
	// session. A nil error means the connection came up.
	Attempt func() error
	// OnFailure reports an attempt that did not come up, so the viewer
	// can be told. Optional.
	OnFailure func(err error)
	// ManualDelay overrides the single-attempt delay. Zero means 5s.
	ManualDelay time.Duration
	// After overrides timer scheduling. Nil means real timers.
	After AfterFunc
}

// Machine tracks connection state for one session and schedules
// reconnect attempts.
type Machine struct {
	log         zerolog.Logger
	attempt     func() error
	onFailure   func(error)
	manualDelay time.Duration
	after       AfterFunc

	mu           sync.Mutex
	state        State
	cancel       func()
	retry        *backoff.Backoff
	autoFailures int
}

func New(cfg Config) *Machine {
	if cfg.ManualDelay <= 0 {
		cfg.ManualDelay = defaultManualDelay
	}
	if cfg.After == nil {
		cfg.After = stdAfter
	}
	return &Machine{
		log:         cfg.Logger.With().Str("connection_id", cfg.ConnectionID).Logger(),
		attempt:     cfg.Attempt,
		onFailure:   cfg.OnFailure,
		manualDelay: cfg.ManualDelay,
		after:       cfg.After,
		state:       StateConnected,
		retry: &backoff.Backoff{
			Min:    autoRetryMin,
			Max:    autoRetryMax,
			Factor: float64(autoRetryMax) / float64(autoRetryMin),
		},
	}
}

// State returns the current connection state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// HandleConnected records a live connection and resets the retry
// schedule.
func (m *Machine) HandleConnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateTerminated {
		return
	}
	m.stopPendingLocked()
	m.state = StateConnected
	m.retry.Reset()
	m.autoFailures = 0
}

// HandleDisconnect reacts to a dropped connection. kicked suppresses all
// retries; persistent selects the always-online schedule; manual selects
// the single delayed attempt. When both modes apply, always-online wins.
func (m *Machine) HandleDisconnect(kicked, persistent, manual bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateTerminated {
		return
	}
	m.stopPendingLocked()

	switch {
	case kicked:
		m.log.Info().Msg("kicked by server, not reconnecting")
		m.state = StateDisconnected
	case persistent:
		m.retry.Reset()
		m.autoFailures = 0
		m.scheduleAutoLocked()
	case manual:
		m.scheduleManualLocked()
	default:
		m.state = StateDisconnected
	}
}

// Terminate stops any pending attempt for good.
func (m *Machine) Terminate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopPendingLocked()
	m.state = StateTerminated
}

func (m *Machine) stopPendingLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Machine) scheduleAutoLocked() {
	delay := m.retry.Duration()
	m.state = StateReconnecting
	m.log.Info().Dur("delay", delay).Msg("scheduling always-online reconnect")
	m.cancel = m.after(delay, m.runAuto)
}

func (m *Machine) runAuto() {
	if !m.beginAttempt() {
		return
	}
	err := m.attempt()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateTerminated {
		return
	}
	if err == nil {
		m.state = StateConnected
		m.retry.Reset()
		m.autoFailures = 0
		return
	}

	m.autoFailures++
	m.log.Warn().Err(err).Int("failures", m.autoFailures).Msg("always-online reconnect failed")
	if m.autoFailures >= maxAutoAttempts {
		m.log.Warn().Msg("always-online retries exhausted, going dormant")
		m.state = StateDisconnected
		m.reportFailure(err)
		return
	}
	m.scheduleAutoLocked()
}

func (m *Machine) scheduleManualLocked() {
	m.state = StateReconnecting
	m.log.Info().Dur("delay", m.manualDelay).Msg("scheduling reconnect attempt")
	m.cancel = m.after(m.manualDelay, m.runManual)
}

func (m *Machine) runManual() {
	if !m.beginAttempt() {
		return
	}
	err := m.attempt()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateTerminated {
		return
	}
	if err == nil {
		m.state = StateConnected
		return
	}
	m.log.Warn().Err(err).Msg("reconnect attempt failed")
	m.state = StateDisconnected
	m.reportFailure(err)
}

// beginAttempt gates a fired timer: a cancel that raced the timer loses,
// and terminated machines never dial.
func (m *Machine) beginAttempt() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateReconnecting {
		return false
	}
	m.cancel = nil
	return true
}

func (m *Machine) reportFailure(err error) {
	if m.onFailure != nil {
		go m.onFailure(err)
	}
}
