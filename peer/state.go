package peer

import "fmt"

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateHandshakeSent
	StateHandshakeReceived
	StateValidated
	StateRejected
)

var stateNames = [...]string{
	"disconnected",
	"connecting",
	"handshake sent",
	"handshake received",
	"validated",
	"rejected",
}

func (state State) String() string {
	if state < 0 || int(state) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(state))
	}

	return stateNames[state]
}

// Terminal states have no outgoing transition.
func (state State) Terminal() bool {
	return state == StateValidated || state == StateRejected
}

var transitions = map[State][]State{
	StateDisconnected:      {StateConnecting},
	StateConnecting:        {StateHandshakeSent, StateRejected},
	StateHandshakeSent:     {StateHandshakeReceived, StateRejected},
	StateHandshakeReceived: {StateValidated, StateRejected},
}

func (state State) canTransition(to State) bool {
	for _, allowed := range transitions[state] {
		if allowed == to {
			return true
		}
	}

	return false
}
