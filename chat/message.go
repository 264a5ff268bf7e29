package chat

import (
	"errors"
	"strings"

	"gopkg.in/irc.v4"
)

// Commands and numerics the client cares about.
const (
	cmdPass       = "PASS"
	cmdNick       = "NICK"
	cmdJoin       = "JOIN"
	cmdPrivmsg    = "PRIVMSG"
	cmdPing       = "PING"
	cmdPong       = "PONG"
	cmdQuit       = "QUIT"
	cmdNotice     = "NOTICE"
	cmdReconnect  = "RECONNECT"
	rplWelcome    = "001"
	errNoSuchChan = "403"
)

// isParseError reports whether err came from a line that could not be parsed, as opposed to the transport.
func isParseError(err error) bool {
	return errors.Is(err, irc.ErrZeroLengthMessage) ||
		errors.Is(err, irc.ErrMissingDataAfterPrefix) ||
		errors.Is(err, irc.ErrMissingDataAfterTags) ||
		errors.Is(err, irc.ErrMissingCommand)
}

// NormalizeChannel returns the channel name with its leading '#', lower-cased.
func NormalizeChannel(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || strings.HasPrefix(name, "#") {
		return name
	}
	return "#" + name
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// sanitize keeps a cue on a single protocol line.
func sanitize(text string) string {
	return strings.TrimSpace(lineBreaks.Replace(text))
}
