package presto

import (
	"testing"
)

func applyAll(m Machine, events ...MachineEvent) (Machine, []Effect) {
	var last []Effect
	for _, ev := range events {
		m, last = m.Apply(ev)
	}
	return m, last
}

func TestMachine_TransitionTable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		start   Machine
		event   MachineEvent
		want    Machine
		effects []Effect
	}{
		{
			name:    "enable from disabled",
			start:   Machine{},
			event:   EventEnableRequested,
			want:    Machine{State: StateConnecting},
			effects: []Effect{EffectEmitStatus},
		},
		{
			name:    "enable retries from error",
			start:   Machine{State: StateError},
			event:   EventEnableRequested,
			want:    Machine{State: StateConnecting},
			effects: []Effect{EffectEmitStatus},
		},
		{
			name:  "enable ignored while connected",
			start: Machine{State: StateConnected},
			event: EventEnableRequested,
			want:  Machine{State: StateConnected},
		},
		{
			name:    "connected from connecting",
			start:   Machine{State: StateConnecting},
			event:   EventConnected,
			want:    Machine{State: StateConnected},
			effects: []Effect{EffectEmitStatus},
		},
		{
			name:  "connected ignored while disabled",
			start: Machine{},
			event: EventConnected,
			want:  Machine{},
		},
		{
			name:    "connect failure surfaces error",
			start:   Machine{State: StateConnecting},
			event:   EventConnectFailed,
			want:    Machine{State: StateError},
			effects: []Effect{EffectEmitStatus},
		},
		{
			name:    "speech start interrupts and listens",
			start:   Machine{State: StateConnected, Speaking: true},
			event:   EventSpeechStarted,
			want:    Machine{State: StateConnected, Listening: true},
			effects: []Effect{EffectInterrupt},
		},
		{
			name:  "speech start ignored before connected",
			start: Machine{State: StateConnecting},
			event: EventSpeechStarted,
			want:  Machine{State: StateConnecting},
		},
		{
			name:  "speech stop clears listening",
			start: Machine{State: StateConnected, Listening: true},
			event: EventSpeechStopped,
			want:  Machine{State: StateConnected},
		},
		{
			name:  "playback start sets speaking",
			start: Machine{State: StateConnected},
			event: EventPlaybackStarted,
			want:  Machine{State: StateConnected, Speaking: true},
		},
		{
			name:  "playback idle clears speaking",
			start: Machine{State: StateConnected, Speaking: true},
			event: EventPlaybackIdle,
			want:  Machine{State: StateConnected},
		},
		{
			name:  "mute keeps connected",
			start: Machine{State: StateConnected, Listening: true},
			event: EventMute,
			want:  Machine{State: StateConnected, Listening: true, Muted: true},
		},
		{
			name:  "unmute keeps connected",
			start: Machine{State: StateConnected, Muted: true},
			event: EventUnmute,
			want:  Machine{State: StateConnected},
		},
		{
			name:    "disable from connected",
			start:   Machine{State: StateConnected, Listening: true, Speaking: true},
			event:   EventDisable,
			want:    Machine{State: StateDisabled},
			effects: []Effect{EffectInterrupt, EffectEmitStatus},
		},
		{
			name:    "disable from error",
			start:   Machine{State: StateError},
			event:   EventDisable,
			want:    Machine{State: StateDisabled},
			effects: []Effect{EffectInterrupt, EffectEmitStatus},
		},
		{
			name:  "disable ignored when already disabled",
			start: Machine{},
			event: EventDisable,
			want:  Machine{},
		},
		{
			name:    "fatal error from connected",
			start:   Machine{State: StateConnected, Speaking: true},
			event:   EventFatalError,
			want:    Machine{State: StateError},
			effects: []Effect{EffectInterrupt, EffectEmitStatus},
		},
		{
			name:  "fatal error ignored when disabled",
			start: Machine{},
			event: EventFatalError,
			want:  Machine{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, effects := tc.start.Apply(tc.event)
			if got != tc.want {
				t.Fatalf("state=%+v, want %+v", got, tc.want)
			}
			if len(effects) != len(tc.effects) {
				t.Fatalf("effects=%v, want %v", effects, tc.effects)
			}
			for i := range effects {
				if effects[i] != tc.effects[i] {
					t.Fatalf("effects=%v, want %v", effects, tc.effects)
				}
			}
		})
	}
}

func TestMachine_MutedSurvivesDisableAndReconnect(t *testing.T) {
	t.Parallel()

	m, _ := applyAll(Machine{},
		EventEnableRequested,
		EventConnected,
		EventMute,
		EventDisable,
	)
	if !m.Muted {
		t.Fatalf("muted flag lost on disable: %+v", m)
	}

	m, _ = applyAll(m, EventEnableRequested, EventConnected)
	if m.State != StateConnected || !m.Muted {
		t.Fatalf("muted flag lost on re-enable: %+v", m)
	}
	if m.Listening || m.Speaking {
		t.Fatalf("transient flags survived reconnect: %+v", m)
	}
}

func TestMachine_BargeInScenario(t *testing.T) {
	t.Parallel()

	m, _ := applyAll(Machine{}, EventEnableRequested, EventConnected, EventPlaybackStarted)
	if !m.Speaking {
		t.Fatalf("expected speaking before barge-in: %+v", m)
	}

	m, effects := m.Apply(EventSpeechStarted)
	if !m.Listening || m.Speaking {
		t.Fatalf("barge-in state=%+v", m)
	}
	if len(effects) != 1 || effects[0] != EffectInterrupt {
		t.Fatalf("barge-in effects=%v, want interrupt", effects)
	}

	m, _ = m.Apply(EventSpeechStopped)
	if m.Listening {
		t.Fatalf("listening not cleared: %+v", m)
	}
}

func TestStateAndEventStrings(t *testing.T) {
	t.Parallel()

	if got := StateConnecting.String(); got != "connecting" {
		t.Fatalf("state string=%q", got)
	}
	if got := State(99).String(); got != "unknown" {
		t.Fatalf("state string=%q", got)
	}
	if got := EventSpeechStarted.String(); got != "speech_started" {
		t.Fatalf("event string=%q", got)
	}
	if got := EffectInterrupt.String(); got != "interrupt" {
		t.Fatalf("effect string=%q", got)
	}
}
