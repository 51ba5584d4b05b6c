package adapter

import (
	"fmt"
	"strings"
)

// recoverablePatterns are substrings of known protocol-compatibility noise
// emitted by client builds against servers with mismatched versions or
// plugins. Matching is case-insensitive.
var recoverablePatterns = []string{
	"chat format code",
	"undefined",
	"vec3",
	"physics",
	"explosion",
	"partial packet",
	"timed out",
}

// Recoverable reports whether err is known compatibility noise the session
// can survive without intervention.
func Recoverable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range recoverablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// dispatch runs one protocol callback under panic containment. A recovered
// panic is reported as a recoverable error event; the adapter stays up.
func (a *Adapter) dispatch(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Warn().Str("event", name).Interface("panic", r).Msg("recovered panic in protocol event handler")
			a.emit(ErrorEvent{Err: fmt.Errorf("%s handler panicked: %v", name, r), Recoverable: true})
		}
	}()
	fn()
}

// reportError screens a protocol error and emits the contained form. No
// error terminates the adapter on its own.
func (a *Adapter) reportError(err error) {
	if Recoverable(err) {
		a.log.Warn().Err(err).Msg("recoverable protocol error")
		a.emit(ErrorEvent{Err: err, Recoverable: true})
		return
	}
	a.log.Error().Err(err).Msg("protocol error")
	a.emit(ErrorEvent{Err: err, Recoverable: false})
}
