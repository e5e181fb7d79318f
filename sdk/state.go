package presto

// State is the coarse lifecycle of a voice session.
type State int

const (
	StateDisabled State = iota
	StateConnecting
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MachineEvent is an input to the voice state machine.
type MachineEvent int

const (
	EventEnableRequested MachineEvent = iota
	EventConnected
	EventConnectFailed
	EventSpeechStarted
	EventSpeechStopped
	EventPlaybackStarted
	EventPlaybackIdle
	EventMute
	EventUnmute
	EventDisable
	EventFatalError
)

func (e MachineEvent) String() string {
	switch e {
	case EventEnableRequested:
		return "enable_requested"
	case EventConnected:
		return "connected"
	case EventConnectFailed:
		return "connect_failed"
	case EventSpeechStarted:
		return "speech_started"
	case EventSpeechStopped:
		return "speech_stopped"
	case EventPlaybackStarted:
		return "playback_started"
	case EventPlaybackIdle:
		return "playback_idle"
	case EventMute:
		return "mute"
	case EventUnmute:
		return "unmute"
	case EventDisable:
		return "disable"
	case EventFatalError:
		return "fatal_error"
	default:
		return "unknown"
	}
}

// Effect is a side effect the caller must perform after a transition. The
// machine itself never touches the scheduler or the connection; keeping
// transitions pure makes interruption races testable without goroutines.
type Effect int

const (
	// EffectInterrupt halts playback and drops scheduled audio.
	EffectInterrupt Effect = iota
	// EffectEmitStatus surfaces the new coarse state to the user.
	EffectEmitStatus
)

func (e Effect) String() string {
	switch e {
	case EffectInterrupt:
		return "interrupt"
	case EffectEmitStatus:
		return "emit_status"
	default:
		return "unknown"
	}
}

// Machine holds the full voice UI state: the coarse lifecycle plus the
// orthogonal flags that only mean anything while connected. The zero value
// is the initial disabled state.
type Machine struct {
	State     State
	Muted     bool
	Listening bool
	Speaking  bool
}

// Apply returns the machine after the event plus the effects the caller
// must run. Events that make no sense in the current state leave the
// machine unchanged. Muted is a user preference and survives disable and
// reconnect cycles; Listening and Speaking reset whenever the session
// leaves the connected state.
func (m Machine) Apply(ev MachineEvent) (Machine, []Effect) {
	switch ev {
	case EventEnableRequested:
		if m.State != StateDisabled && m.State != StateError {
			return m, nil
		}
		return Machine{State: StateConnecting, Muted: m.Muted}, []Effect{EffectEmitStatus}
	case EventConnected:
		if m.State != StateConnecting {
			return m, nil
		}
		m.State = StateConnected
		return m, []Effect{EffectEmitStatus}
	case EventConnectFailed:
		if m.State != StateConnecting {
			return m, nil
		}
		return Machine{State: StateError, Muted: m.Muted}, []Effect{EffectEmitStatus}
	case EventSpeechStarted:
		if m.State != StateConnected {
			return m, nil
		}
		m.Listening = true
		m.Speaking = false
		return m, []Effect{EffectInterrupt}
	case EventSpeechStopped:
		if m.State != StateConnected {
			return m, nil
		}
		m.Listening = false
		return m, nil
	case EventPlaybackStarted:
		if m.State != StateConnected {
			return m, nil
		}
		m.Speaking = true
		return m, nil
	case EventPlaybackIdle:
		m.Speaking = false
		return m, nil
	case EventMute:
		m.Muted = true
		return m, nil
	case EventUnmute:
		m.Muted = false
		return m, nil
	case EventDisable:
		if m.State == StateDisabled {
			return m, nil
		}
		return Machine{State: StateDisabled, Muted: m.Muted}, []Effect{EffectInterrupt, EffectEmitStatus}
	case EventFatalError:
		if m.State == StateDisabled || m.State == StateError {
			return m, nil
		}
		return Machine{State: StateError, Muted: m.Muted}, []Effect{EffectInterrupt, EffectEmitStatus}
	default:
		return m, nil
	}
}
