package model

// Command names a monitor operation. The literal value is what travels
// through the mailbox.
type Command string

const (
	CmdListHunts     Command = "list_hunts"
	CmdListTreasures Command = "list_treasures"
	CmdViewTreasure  Command = "view_treasure"
	CmdStopMonitor   Command = "stop_monitor"
)

// Request is the single-slot mailbox payload. It lives for one cycle and
// is overwritten by the next submission.
type Request struct {
	Command  Command
	Argument string
}

// Streaming reports whether the supervisor waits for a framed response.
func (r Request) Streaming() bool {
	return r.Command != CmdStopMonitor
}
