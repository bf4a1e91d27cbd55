package logger

import (
	"fmt"
	"net/url"
	"strings"
)

// SanitizeForLog escapes control characters in a string pulled from remote
// data (page titles, file titles, API payloads) before it reaches a log line.
// Unicode is preserved; newlines, tabs, null bytes, ANSI escapes and other
// control characters become visible escape sequences so a crafted title
// cannot forge log entries or drive the terminal.
func SanitizeForLog(s string) string {
	var result strings.Builder
	result.Grow(len(s))

	for _, r := range s {
		switch r {
		case '\n':
			result.WriteString("\\n")
		case '\r':
			result.WriteString("\\r")
		case '\t':
			result.WriteString("\\t")
		case '\x00':
			result.WriteString("\\x00")
		default:
			if r < 32 || r == 127 || r == '\x1b' {
				result.WriteString(fmt.Sprintf("\\x%02x", r))
			} else {
				result.WriteRune(r)
			}
		}
	}
	return result.String()
}

// RedactURL reduces a URL to scheme, host and path for logging. Query strings
// and userinfo never reach the log.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return SanitizeForLog(raw)
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return SanitizeForLog(u.String())
}
