// Package validate checks caller-supplied records before they reach
// storage. It checks:
//   - required fields on connection and profile records
//   - player name shape (3-16 word characters, or an account email when
//     the record uses Microsoft auth)
//   - server address syntax ("host" or "host:port", port 1-65535)
//   - auth mode values and message-on-load delay bounds
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/crafthub/craftrelay/bot/protocol"
	"github.com/crafthub/craftrelay/storage"
)

// Result captures the outcome of validating one record.
type Result struct {
	Valid  bool
	Errors []string
}

func (r *Result) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Err returns the accumulated errors as a single message, or "" when the
// record is valid.
func (r Result) Err() string {
	if r.Valid {
		return ""
	}
	return strings.Join(r.Errors, "; ")
}

var (
	playerName = regexp.MustCompile(`^\w{3,16}$`)
	// Loose on purpose; the auth service is the authority on account
	// names.
	accountEmail = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

const maxMessageOnLoadDelay = 60_000

// Connection validates a new connection record.
func Connection(conn storage.NewConnection) Result {
	result := Result{Valid: true}

	validateIdentity(&result, conn.Username, conn.AuthMode)
	validateServerIP(&result, conn.ServerIP)
	validateAuthMode(&result, conn.AuthMode)
	if conn.Version == "" {
		result.fail("version is required")
	}

	return result
}

// Profile validates a saved connect preset.
func Profile(profile storage.ServerProfile) Result {
	result := Result{Valid: true}

	if strings.TrimSpace(profile.ProfileName) == "" {
		result.fail("profileName is required")
	}
	validateIdentity(&result, profile.Username, profile.AuthMode)
	validateServerIP(&result, profile.ServerIP)
	validateAuthMode(&result, profile.AuthMode)
	if profile.MessageOnLoadDelay < 0 || profile.MessageOnLoadDelay > maxMessageOnLoadDelay {
		result.fail("messageOnLoadDelay must be between 0 and %d ms", maxMessageOnLoadDelay)
	}

	return result
}

func validateIdentity(result *Result, username, authMode string) {
	if username == "" {
		result.fail("username is required")
		return
	}
	if protocol.ParseAuthMode(authMode) == protocol.AuthMicrosoft {
		if !accountEmail.MatchString(username) && !playerName.MatchString(username) {
			result.fail("username must be a player name or account email")
		}
		return
	}
	if !playerName.MatchString(username) {
		result.fail("username must be 3-16 letters, digits, or underscores")
	}
}

func validateServerIP(result *Result, serverIP string) {
	if serverIP == "" {
		result.fail("serverIp is required")
		return
	}
	if _, _, err := protocol.ParseServerAddr(serverIP); err != nil {
		result.fail("%v", err)
	}
}

func validateAuthMode(result *Result, authMode string) {
	switch authMode {
	case "", string(protocol.AuthOffline), string(protocol.AuthMicrosoft):
	default:
		result.fail("authMode must be %q or %q", protocol.AuthOffline, protocol.AuthMicrosoft)
	}
}
