package realtime

// ClientEvent is the base shape for events the gateway sends upstream.
type ClientEvent struct {
	EventID string `json:"event_id,omitempty"`
	Type    string `json:"type"`
}

// SessionUpdateEvent replaces the active session configuration.
type SessionUpdateEvent struct {
	ClientEvent
	Session SessionConfig `json:"session"`
}

// InstructionsUpdateEvent rewrites only the session instructions. Unlike
// SessionUpdateEvent it omits turn_detection entirely, so the upstream keeps
// its current VAD settings.
type InstructionsUpdateEvent struct {
	ClientEvent
	Session InstructionsConfig `json:"session"`
}

// InstructionsConfig is the instructions-only session payload.
type InstructionsConfig struct {
	Instructions string `json:"instructions"`
}

// InputAudioAppendEvent pushes one base64 chunk of caller audio into the
// upstream input buffer.
type InputAudioAppendEvent struct {
	ClientEvent
	Audio string `json:"audio"`
}

// ResponseCreateEvent asks the model to produce a response now, outside the
// normal VAD-driven turn flow. Used after tool output lands.
type ResponseCreateEvent struct {
	ClientEvent
}

// ResponseCancelEvent aborts the in-flight response.
type ResponseCancelEvent struct {
	ClientEvent
}

// ItemCreateEvent injects a conversation item, either a user message or a
// function_call_output carrying a tool result.
type ItemCreateEvent struct {
	ClientEvent
	Item Item `json:"item"`
}

// Item is one conversation entry.
type Item struct {
	Type    string        `json:"type"`
	Role    string        `json:"role,omitempty"`
	Content []ItemContent `json:"content,omitempty"`
	CallID  string        `json:"call_id,omitempty"`
	Output  string        `json:"output,omitempty"`
}

// ItemContent is one content part of a conversation item.
type ItemContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// SessionConfig is the session.update payload.
//
// TurnDetection deliberately omits omitempty: sending an explicit null is how
// the upstream disables server VAD, and omitting the field leaves the prior
// setting in place.
type SessionConfig struct {
	Modalities        []string             `json:"modalities,omitempty"`
	Instructions      string               `json:"instructions,omitempty"`
	Voice             string               `json:"voice,omitempty"`
	InputAudioFormat  string               `json:"input_audio_format,omitempty"`
	OutputAudioFormat string               `json:"output_audio_format,omitempty"`
	InputTranscription *TranscriptionConfig `json:"input_audio_transcription,omitempty"`
	TurnDetection     *TurnDetectionConfig `json:"turn_detection"`
	Tools             []ToolDef            `json:"tools,omitempty"`
	ToolChoice        string               `json:"tool_choice,omitempty"`
	Temperature       float64              `json:"temperature,omitempty"`
}

// TranscriptionConfig selects the model used for user-side transcripts.
type TranscriptionConfig struct {
	Model string `json:"model"`
}

// TurnDetectionConfig tunes upstream server VAD.
type TurnDetectionConfig struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMS int     `json:"silence_duration_ms,omitempty"`
}

// ToolDef declares one callable tool to the model.
type ToolDef struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// DefaultSessionConfig returns the gateway's baseline session: both
// modalities, PCM16 audio in and out, user transcription, and server VAD
// tuned for conversational turn-taking.
func DefaultSessionConfig(instructions string, tools []ToolDef) SessionConfig {
	return SessionConfig{
		Modalities:        []string{"text", "audio"},
		Instructions:      instructions,
		Voice:             "verse",
		InputAudioFormat:  "pcm16",
		OutputAudioFormat: "pcm16",
		InputTranscription: &TranscriptionConfig{
			Model: "whisper-1",
		},
		TurnDetection: &TurnDetectionConfig{
			Type:              "server_vad",
			Threshold:         0.5,
			PrefixPaddingMS:   300,
			SilenceDurationMS: 500,
		},
		Tools:      tools,
		ToolChoice: "auto",
	}
}

// NewSessionUpdate wraps cfg in a session.update event.
func NewSessionUpdate(cfg SessionConfig) SessionUpdateEvent {
	return SessionUpdateEvent{
		ClientEvent: ClientEvent{Type: "session.update"},
		Session:     cfg,
	}
}

// NewInstructionsUpdate builds a session.update that changes only the
// instructions, used after a mode switch.
func NewInstructionsUpdate(instructions string) InstructionsUpdateEvent {
	return InstructionsUpdateEvent{
		ClientEvent: ClientEvent{Type: "session.update"},
		Session:     InstructionsConfig{Instructions: instructions},
	}
}

// NewInputAudioAppend wraps a base64 audio chunk in an
// input_audio_buffer.append event.
func NewInputAudioAppend(audioB64 string) InputAudioAppendEvent {
	return InputAudioAppendEvent{
		ClientEvent: ClientEvent{Type: "input_audio_buffer.append"},
		Audio:       audioB64,
	}
}

// NewResponseCreate builds a response.create event.
func NewResponseCreate() ResponseCreateEvent {
	return ResponseCreateEvent{ClientEvent: ClientEvent{Type: "response.create"}}
}

// NewResponseCancel builds a response.cancel event.
func NewResponseCancel() ResponseCancelEvent {
	return ResponseCancelEvent{ClientEvent: ClientEvent{Type: "response.cancel"}}
}

// NewToolOutputItem builds a conversation.item.create carrying the result of
// a completed tool call.
func NewToolOutputItem(callID, output string) ItemCreateEvent {
	return ItemCreateEvent{
		ClientEvent: ClientEvent{Type: "conversation.item.create"},
		Item: Item{
			Type:   "function_call_output",
			CallID: callID,
			Output: output,
		},
	}
}

// NewUserMessageItem builds a conversation.item.create carrying a text
// message from the user.
func NewUserMessageItem(text string) ItemCreateEvent {
	return ItemCreateEvent{
		ClientEvent: ClientEvent{Type: "conversation.item.create"},
		Item: Item{
			Type: "message",
			Role: "user",
			Content: []ItemContent{
				{Type: "input_text", Text: text},
			},
		},
	}
}
