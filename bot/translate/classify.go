package translate

import (
	"regexp"
	"strings"
)

// serverPlayerStamp matches console-style echo lines some servers emit for
// player chat, e.g. "[12:04:33][Server][Player] Steve: hi".
var serverPlayerStamp = regexp.MustCompile(`\[\d{2}:\d{2}:\d{2}\]\[Server\]\[Player\]`)

// SystemLine reports whether a raw server text line is a genuine system
// message. Player chat reaches viewers through the dedicated chat event,
// so raw lines that are just another rendering of player chat are
// suppressed to avoid duplicates:
//
//   - vanilla chat formatting ("<name> text")
//   - formatted-chat plugins using the "»" separator
//   - console echoes tagged "[Player]" or stamped "[HH:MM:SS][Server][Player]"
//   - blank lines
func SystemLine(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "<") {
		return false
	}
	if strings.Contains(text, "»") {
		return false
	}
	if strings.Contains(text, "[Player]") {
		return false
	}
	if serverPlayerStamp.MatchString(text) {
		return false
	}
	return true
}
