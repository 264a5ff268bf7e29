package chat

// State is the connection lifecycle of a Client.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateJoined
	// StateFailed means the connection ended before the channel was ever joined.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// EventType identifies a connection notification.
type EventType int

const (
	// EventJoined is sent once the client has asked to join the channel.
	EventJoined EventType = iota
	// EventDisconnected ends a session that had joined.
	EventDisconnected
	// EventConnectFailed ends an attempt that never joined.
	EventConnectFailed
)

func (t EventType) String() string {
	switch t {
	case EventJoined:
		return "joined"
	case EventDisconnected:
		return "disconnected"
	case EventConnectFailed:
		return "connect failed"
	default:
		return "unknown"
	}
}

// Event is a connection notification. Err carries the transport error that ended the connection, if any.
type Event struct {
	Type EventType
	Err  error
}
