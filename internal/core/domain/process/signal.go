package process

// ProcessSignal represents signals the supervisor sends to plugin processes
type ProcessSignal int

const (
	SignalTerminate ProcessSignal = iota // SIGTERM
	SignalInterrupt                      // SIGINT
	SignalKill                           // SIGKILL
)

func (s ProcessSignal) String() string {
	switch s {
	case SignalTerminate:
		return "terminate"
	case SignalInterrupt:
		return "interrupt"
	case SignalKill:
		return "kill"
	default:
		return "unknown"
	}
}
