package relay

// Policy - decides what happens with every received chunk.
type Policy int

const (
	// PolicyNone - received data is only printed on the server console.
	PolicyNone Policy = iota
	// PolicyEcho - received data is sent back to its sender.
	PolicyEcho
	// PolicyBroadcast - received data is sent to every connected peer, sender included.
	PolicyBroadcast
)

func (p Policy) String() string {
	switch p {
	case PolicyEcho:
		return "echo"
	case PolicyBroadcast:
		return "broadcast"
	default:
		return "none"
	}
}

// Config - server configuration, it is never changed after the server is built.
type Config struct {
	Echo      bool
	Broadcast bool
}

// Policy - broadcast takes priority over echo.
func (c Config) Policy() Policy {
	switch {
	case c.Broadcast:
		return PolicyBroadcast
	case c.Echo:
		return PolicyEcho
	default:
		return PolicyNone
	}
}

// relay - delivers chunk according to policy.
// Delivery errors are dropped, failed peer detects its problem in own session.
func (s *Server) relay(sender Peer, chunk []byte) {
	switch s.policy {
	case PolicyBroadcast:
		s.peers.broadcast(chunk)
	case PolicyEcho:
		sender.Write(chunk)
	}
}
