package session

import "fmt"

// State is the connection state of a Session.
type State int32

// Session states. Disconnected is both the initial and the terminal state
// of a session that was connected; Failed is terminal for a session whose
// Connect did not succeed.
const (
	Disconnected State = iota
	Connecting
	Connected
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}
