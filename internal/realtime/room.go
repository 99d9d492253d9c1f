// Package realtime abstracts the video room the agent joins.
package realtime

import "context"

// EventKind enumerates room events delivered to the agent.
type EventKind int

const (
	ParticipantConnected EventKind = iota + 1
	ParticipantDisconnected
	DataReceived
	Disconnected
)

func (k EventKind) String() string {
	switch k {
	case ParticipantConnected:
		return "participant_connected"
	case ParticipantDisconnected:
		return "participant_disconnected"
	case DataReceived:
		return "data_received"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Topics used on the room data channel.
const (
	TopicChat       = "lk.chat"
	TopicTranscript = "agent.transcript"
	TopicAudio      = "agent.audio"
)

// Event is one thing that happened in the room.
type Event struct {
	Kind     EventKind
	Identity string
	Topic    string
	Payload  []byte
}

// Utterance is something the agent says. Audio is optional.
type Utterance struct {
	Text        string
	Audio       []byte
	AudioFormat string
}

// Room is a joined room.
type Room interface {
	Name() string
	Events() <-chan Event
	Publish(ctx context.Context, u Utterance) error
	Disconnect()
}

// Connector joins rooms.
type Connector interface {
	Connect(ctx context.Context, roomName, identity string) (Room, error)
}
