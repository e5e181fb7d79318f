// Package realtime speaks the wire protocol of the upstream speech-to-speech
// model: a full-duplex WebSocket carrying JSON events in both directions.
//
// The package has three parts:
//
//   - client events (session.update, input_audio_buffer.append, ...) sent
//     by the gateway to steer the model
//   - server events parsed from the upstream via ParseServerEvent
//   - Dial, which opens an authenticated connection against either the
//     OpenAI endpoint or an Azure deployment
//
// The relay layer consumes this package through the Conn interface so tests
// can substitute a scripted upstream.
package realtime

import "encoding/json"

// ServerEvent is the base shape shared by every upstream event.
type ServerEvent struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
}

// ErrorEvent reports an upstream failure. The session may survive it; the
// relay maps Error.Type onto its own error taxonomy.
type ErrorEvent struct {
	ServerEvent
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the upstream's error payload.
type ErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
	EventID string `json:"event_id,omitempty"`
}

// SessionCreatedEvent confirms the upstream session is established.
type SessionCreatedEvent struct {
	ServerEvent
	Session SessionInfo `json:"session"`
}

// SessionUpdatedEvent confirms a session.update was applied.
type SessionUpdatedEvent struct {
	ServerEvent
	Session SessionInfo `json:"session"`
}

// SessionInfo echoes the active session configuration.
type SessionInfo struct {
	ID                string `json:"id"`
	Model             string `json:"model"`
	Voice             string `json:"voice"`
	InputAudioFormat  string `json:"input_audio_format"`
	OutputAudioFormat string `json:"output_audio_format"`
}

// SpeechStartedEvent fires when server-side VAD detects the user speaking.
type SpeechStartedEvent struct {
	ServerEvent
	AudioStartMS int    `json:"audio_start_ms"`
	ItemID       string `json:"item_id"`
}

// SpeechStoppedEvent fires when server-side VAD detects the user stopped.
type SpeechStoppedEvent struct {
	ServerEvent
	AudioEndMS int    `json:"audio_end_ms"`
	ItemID     string `json:"item_id"`
}

// InputAudioCommittedEvent confirms buffered input audio became a
// conversation item.
type InputAudioCommittedEvent struct {
	ServerEvent
	PreviousItemID string `json:"previous_item_id"`
	ItemID         string `json:"item_id"`
}

// InputTranscriptionCompletedEvent delivers the user-side transcript for a
// committed audio item.
type InputTranscriptionCompletedEvent struct {
	ServerEvent
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	Transcript   string `json:"transcript"`
}

// InputTranscriptionFailedEvent reports a failed user-side transcription.
type InputTranscriptionFailedEvent struct {
	ServerEvent
	ItemID       string      `json:"item_id"`
	ContentIndex int         `json:"content_index"`
	Error        ErrorDetail `json:"error"`
}

// ResponseCreatedEvent marks the start of a model response.
type ResponseCreatedEvent struct {
	ServerEvent
	Response ResponseInfo `json:"response"`
}

// ResponseDoneEvent marks the end of a model response.
type ResponseDoneEvent struct {
	ServerEvent
	Response ResponseInfo `json:"response"`
}

// ResponseInfo summarizes one model response.
type ResponseInfo struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// AudioDeltaEvent carries one base64 chunk of synthesized speech.
type AudioDeltaEvent struct {
	ServerEvent
	ResponseID   string `json:"response_id"`
	ItemID       string `json:"item_id"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
	Delta        string `json:"delta"`
}

// AudioDoneEvent marks the end of a response's audio stream.
type AudioDoneEvent struct {
	ServerEvent
	ResponseID   string `json:"response_id"`
	ItemID       string `json:"item_id"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
}

// AudioTranscriptDeltaEvent carries an assistant transcript fragment aligned
// with the audio stream.
type AudioTranscriptDeltaEvent struct {
	ServerEvent
	ResponseID   string `json:"response_id"`
	ItemID       string `json:"item_id"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
	Delta        string `json:"delta"`
}

// AudioTranscriptDoneEvent finalizes the assistant transcript for one item.
type AudioTranscriptDoneEvent struct {
	ServerEvent
	ResponseID   string `json:"response_id"`
	ItemID       string `json:"item_id"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
	Transcript   string `json:"transcript"`
}

// FunctionCallArgumentsDeltaEvent streams one fragment of a tool call's
// argument JSON. Fragments for concurrent calls interleave; OutputIndex keys
// the call each fragment belongs to.
type FunctionCallArgumentsDeltaEvent struct {
	ServerEvent
	ResponseID  string `json:"response_id"`
	ItemID      string `json:"item_id"`
	OutputIndex int    `json:"output_index"`
	CallID      string `json:"call_id"`
	Delta       string `json:"delta"`
}

// FunctionCallArgumentsDoneEvent completes a tool call, naming it and
// restating the full argument JSON.
type FunctionCallArgumentsDoneEvent struct {
	ServerEvent
	ResponseID  string `json:"response_id"`
	ItemID      string `json:"item_id"`
	OutputIndex int    `json:"output_index"`
	CallID      string `json:"call_id"`
	Name        string `json:"name"`
	Arguments   string `json:"arguments"`
}

// RateLimitsUpdatedEvent reports upstream quota after each response.
type RateLimitsUpdatedEvent struct {
	ServerEvent
	RateLimits []RateLimit `json:"rate_limits"`
}

// RateLimit is a single upstream quota entry.
type RateLimit struct {
	Name         string  `json:"name"`
	Limit        int     `json:"limit"`
	Remaining    int     `json:"remaining"`
	ResetSeconds float64 `json:"reset_seconds"`
}

// ParseServerEvent decodes one upstream frame into its concrete event type.
// Unrecognized types decode to *ServerEvent so new upstream events degrade to
// a logged no-op instead of an error.
func ParseServerEvent(data []byte) (any, error) {
	var base ServerEvent
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, err
	}

	switch base.Type {
	case "error":
		var e ErrorEvent
		return &e, json.Unmarshal(data, &e)
	case "session.created":
		var e SessionCreatedEvent
		return &e, json.Unmarshal(data, &e)
	case "session.updated":
		var e SessionUpdatedEvent
		return &e, json.Unmarshal(data, &e)
	case "input_audio_buffer.speech_started":
		var e SpeechStartedEvent
		return &e, json.Unmarshal(data, &e)
	case "input_audio_buffer.speech_stopped":
		var e SpeechStoppedEvent
		return &e, json.Unmarshal(data, &e)
	case "input_audio_buffer.committed":
		var e InputAudioCommittedEvent
		return &e, json.Unmarshal(data, &e)
	case "conversation.item.input_audio_transcription.completed":
		var e InputTranscriptionCompletedEvent
		return &e, json.Unmarshal(data, &e)
	case "conversation.item.input_audio_transcription.failed":
		var e InputTranscriptionFailedEvent
		return &e, json.Unmarshal(data, &e)
	case "response.created":
		var e ResponseCreatedEvent
		return &e, json.Unmarshal(data, &e)
	case "response.done":
		var e ResponseDoneEvent
		return &e, json.Unmarshal(data, &e)
	case "response.audio.delta":
		var e AudioDeltaEvent
		return &e, json.Unmarshal(data, &e)
	case "response.audio.done":
		var e AudioDoneEvent
		return &e, json.Unmarshal(data, &e)
	case "response.audio_transcript.delta":
		var e AudioTranscriptDeltaEvent
		return &e, json.Unmarshal(data, &e)
	case "response.audio_transcript.done":
		var e AudioTranscriptDoneEvent
		return &e, json.Unmarshal(data, &e)
	case "response.function_call_arguments.delta":
		var e FunctionCallArgumentsDeltaEvent
		return &e, json.Unmarshal(data, &e)
	case "response.function_call_arguments.done":
		var e FunctionCallArgumentsDoneEvent
		return &e, json.Unmarshal(data, &e)
	case "rate_limits.updated":
		var e RateLimitsUpdatedEvent
		return &e, json.Unmarshal(data, &e)
	default:
		return &base, nil
	}
}
