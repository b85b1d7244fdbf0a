package verify

import (
	"errors"
	"strings"

	sessiondomain "github.com/smallbiznis/bookpay/internal/session/domain"
)

// Verb is one of the two admin actions the channel understands.
type Verb string

const (
	VerbVerify Verb = "verify"
	VerbReject Verb = "reject"
)

// Command is a parsed admin instruction: a verb plus the session it targets.
type Command struct {
	Verb      Verb
	SessionID string
}

var (
	ErrUnknownCommand  = errors.New("unknown_command")
	ErrMissingArgument = errors.New("missing_session_id")
)

// targetStatus dispatches verbs to the session status they drive.
var targetStatus = map[Verb]sessiondomain.Status{
	VerbVerify: sessiondomain.StatusVerified,
	VerbReject: sessiondomain.StatusRejected,
}

// ParseText parses a typed command such as "/verify <id>". The bot-mention
// suffix ("/verify@SomeBot") is tolerated.
func ParseText(text string) (Command, error) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return Command{}, ErrUnknownCommand
	}

	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.Index(name, "@"); at >= 0 {
		name = name[:at]
	}

	verb := Verb(strings.ToLower(name))
	if _, ok := targetStatus[verb]; !ok {
		return Command{}, ErrUnknownCommand
	}
	if len(fields) < 2 {
		return Command{Verb: verb}, ErrMissingArgument
	}

	return Command{Verb: verb, SessionID: fields[1]}, nil
}

// ParseCallback parses button-click data of the form "<verb>_<id>".
func ParseCallback(data string) (Command, error) {
	verbPart, id, found := strings.Cut(strings.TrimSpace(data), "_")
	if !found {
		return Command{}, ErrUnknownCommand
	}

	verb := Verb(strings.ToLower(verbPart))
	if _, ok := targetStatus[verb]; !ok {
		return Command{}, ErrUnknownCommand
	}
	if id == "" {
		return Command{Verb: verb}, ErrMissingArgument
	}

	return Command{Verb: verb, SessionID: id}, nil
}
