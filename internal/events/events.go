// Package events declares the lifecycle facts published on the observer bus
// and the audit subscriber that records them.
package events

import (
	"time"

	"github.com/nfrund/relay/internal/pubsub"
)

// Participant describes a participant entering or leaving the relay.
type Participant struct {
	SessionID     string    `json:"session_id"`
	ConnectionKey string    `json:"connection_key"`
	Identity      string    `json:"identity"`
	At            time.Time `json:"at"`
}

// Command describes a control request received from a participant.
type Command struct {
	ConnectionKey string    `json:"connection_key"`
	Identity      string    `json:"identity"`
	Raw           string    `json:"raw"`
	At            time.Time `json:"at"`
}

var (
	// ParticipantJoined is published once a connection completes the name handshake.
	ParticipantJoined = pubsub.NewEvent[Participant](
		"relay.participant.joined",
		"A connection completed the handshake and was registered",
	)

	// ParticipantLeft is published after a participant has been deregistered.
	ParticipantLeft = pubsub.NewEvent[Participant](
		"relay.participant.left",
		"A registered participant disconnected",
	)

	// CommandReceived is published for every Command envelope. Commands are
	// observed only, never broadcast.
	CommandReceived = pubsub.NewEvent[Command](
		"relay.command.received",
		"A participant sent an opaque control command",
	)
)
