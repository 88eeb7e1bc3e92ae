package common

// ConnState is a TcpConnection's position in the Connecting -> Connected ->
// Disconnecting -> Disconnected lifecycle DAG (spec.md section 4.7).
type ConnState int

const (
	StateConnecting ConnState = iota
	StateConnected
	StateDisconnecting
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// ConnectorState is the active-open state machine of section 4.8.
type ConnectorState int

const (
	ConnectorDisconnected ConnectorState = iota
	ConnectorConnecting
	ConnectorConnected
)
