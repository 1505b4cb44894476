package flow

import (
	"strings"

	"github.com/poiesic/mediastash/core"
)

// Input is one inbound chat message, already stripped of transport details.
// Media is nil for plain text. A message with neither text nor media is
// something the transport could not recognize.
type Input struct {
	UserID   core.UserID
	Username string
	Text     string
	Media    *core.Draft
}

// Message keys of replies. Rendering them is up to the caller.
const (
	ReplyStart            = "start"
	ReplyDescribe         = "describe"
	ReplyAdded            = "added"
	ReplyDuplicate        = "duplicate"
	ReplyDelete           = "delete"
	ReplyDeleted          = "deleted"
	ReplyNotFound         = "not found"
	ReplyCancelled        = "cancelled"
	ReplyFinishDeleting   = "finish deleting"
	ReplyNotRecognized    = "not recognized"
	ReplyCheckDescription = "check description"
	ReplyDescription      = "description"
)

// Reply is what the engine wants said back to the user.
// Values fill placeholders of the message; ReplyDescription carries the
// stored description under "description".
type Reply struct {
	Key    string
	Values map[string]string
}

// Command is an explicit control input. Commands take precedence over
// whatever the current flow would make of the text.
type Command string

const (
	CommandStart       Command = "/start"
	CommandDelete      Command = "/delete"
	CommandDescription Command = "/description"
	CommandCancel      Command = "/cancel"
	CommandDone        Command = "/done"
)

var commands = []Command{CommandStart, CommandDelete, CommandDescription, CommandCancel, CommandDone}

// parseCommand recognizes "/cmd", "/cmd@botname" and "/cmd payload".
func parseCommand(text string) (Command, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", false
	}
	name, _, _ := strings.Cut(fields[0], "@")
	for _, c := range commands {
		if Command(strings.ToLower(name)) == c {
			return c, true
		}
	}
	return "", false
}

// target returns the file reference an input points at: the media's FileID,
// or the text itself.
func (in Input) target() string {
	if in.Media != nil {
		return in.Media.FileID
	}
	return strings.TrimSpace(in.Text)
}
