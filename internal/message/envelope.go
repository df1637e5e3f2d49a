package message

import "fmt"

// Type is the wire discriminator carried in the "type" field of every frame.
type Type string

const (
	TypeNotice        Type = "notice"
	TypeChat          Type = "chat"
	TypeRosterRequest Type = "roster_request"
	TypeRoster        Type = "roster"
	TypeCommand       Type = "command"
)

// CategorySystem marks notices generated by the server itself.
const CategorySystem = "SYSTEM"

// Envelope is the closed set of messages exchanged over a relay connection.
// Only the types declared in this package implement it.
type Envelope interface {
	Type() Type
	sealed()
}

// Notice is server-originated or relayed informational text.
type Notice struct {
	Category string
	Text     string
}

// Chat is a user-originated message. To is advisory; delivery is always a broadcast.
type Chat struct {
	From string
	To   string
	Text string
}

// RosterRequest asks the server for the names of everyone connected.
type RosterRequest struct{}

// Roster carries the display names of the connected participants.
type Roster struct {
	Names []string
}

// Command is an opaque control request. It is accepted but not acted upon.
type Command struct {
	Raw string
}

func (Notice) Type() Type        { return TypeNotice }
func (Chat) Type() Type          { return TypeChat }
func (RosterRequest) Type() Type { return TypeRosterRequest }
func (Roster) Type() Type        { return TypeRoster }
func (Command) Type() Type       { return TypeCommand }

func (Notice) sealed()        {}
func (Chat) sealed()          {}
func (RosterRequest) sealed() {}
func (Roster) sealed()        {}
func (Command) sealed()       {}

// NewSystemNotice builds a notice in the SYSTEM category.
func NewSystemNotice(text string) Notice {
	return Notice{Category: CategorySystem, Text: text}
}

// JoinNotice announces that identity entered the chat.
func JoinNotice(identity string) Notice {
	return NewSystemNotice(fmt.Sprintf("*** %s has joined the chat ***", identity))
}

// LeaveNotice announces that identity left the chat.
func LeaveNotice(identity string) Notice {
	return NewSystemNotice(fmt.Sprintf("*** %s has left the chat ***", identity))
}
