// Package protocol defines the JSON envelopes exchanged with gateway clients
// over the voice and chat WebSockets, and the decoders that validate them.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Connection status values carried by ServerStatus.
const (
	StatusConnected    = "connected"
	StatusReconnecting = "reconnecting"
	StatusDisconnected = "disconnected"
	StatusDraining     = "draining"
	StatusError        = "error"
)

// Transcript roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

// ClientAudio carries one base64 chunk of caller microphone audio.
type ClientAudio struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

// ClientMute toggles forwarding of caller audio without closing anything.
type ClientMute struct {
	Type  string `json:"type"`
	Muted bool   `json:"muted"`
}

// ClientStop asks the gateway to end the voice session.
type ClientStop struct {
	Type string `json:"type"`
}

// ClientChat carries one user chat message on the chat socket.
type ClientChat struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// DecodeVoiceMessage decodes one frame from the voice socket. Errors are
// always *DecodeError so the session can apply its malformed-frame policy.
func DecodeVoiceMessage(data []byte) (any, error) {
	typ, err := frameType(data)
	if err != nil {
		return nil, err
	}

	switch typ {
	case "audio":
		var msg ClientAudio
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid audio frame", "")
		}
		if strings.TrimSpace(msg.Audio) == "" {
			return nil, badRequest("audio.audio is required", "audio")
		}
		return msg, nil
	case "mute":
		var msg ClientMute
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid mute frame", "")
		}
		return msg, nil
	case "stop":
		var msg ClientStop
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid stop frame", "")
		}
		return msg, nil
	default:
		return nil, badRequest("unsupported message type", "type")
	}
}

// DecodeChatMessage decodes one frame from the chat socket.
func DecodeChatMessage(data []byte) (any, error) {
	typ, err := frameType(data)
	if err != nil {
		return nil, err
	}

	switch typ {
	case "chat":
		var msg ClientChat
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid chat frame", "")
		}
		if strings.TrimSpace(msg.Text) == "" {
			return nil, badRequest("chat.text is required", "text")
		}
		return msg, nil
	default:
		return nil, badRequest("unsupported message type", "type")
	}
}

func frameType(data []byte) (string, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return "", badRequest("missing type", "type")
	}
	return typ, nil
}

// ServerStatus reports connection lifecycle to the client.
type ServerStatus struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// ServerSpeechStarted signals the caller began speaking; the client should
// interrupt local playback.
type ServerSpeechStarted struct {
	Type string `json:"type"`
}

// ServerSpeechStopped signals the caller stopped speaking.
type ServerSpeechStopped struct {
	Type string `json:"type"`
}

// ServerAudio carries one base64 chunk of assistant speech.
type ServerAudio struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

// ServerTranscript carries transcript text. Final is false for streaming
// assistant deltas and true for a completed utterance.
type ServerTranscript struct {
	Type  string `json:"type"`
	Role  string `json:"role"`
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// ServerToolResult forwards an executed tool's result for rendering.
type ServerToolResult struct {
	Type   string          `json:"type"`
	Name   string          `json:"name"`
	Result json.RawMessage `json:"result"`
}

// ServerModeSwitch announces a completed mode switch with the full new
// configuration and its persona data.
type ServerModeSwitch struct {
	Type    string `json:"type"`
	Mode    any    `json:"mode"`
	Persona any    `json:"persona,omitempty"`
}

// ServerModeGenerating tells the client a mode switch was detected and
// generation is in progress.
type ServerModeGenerating struct {
	Type     string `json:"type"`
	Industry string `json:"industry"`
}

// ServerModeGeneratingCancel withdraws a ServerModeGenerating after a
// false positive or failed generation.
type ServerModeGeneratingCancel struct {
	Type string `json:"type"`
}

// ServerError reports a session-level failure to the client.
type ServerError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ServerChatDelta streams one chunk of assistant chat text.
type ServerChatDelta struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ServerChatDone marks the end of a streamed chat response.
type ServerChatDone struct {
	Type string `json:"type"`
}

func NewStatus(status, detail string) ServerStatus {
	return ServerStatus{Type: "status", Status: status, Detail: detail}
}

func NewSpeechStarted() ServerSpeechStarted {
	return ServerSpeechStarted{Type: "speech_started"}
}

func NewSpeechStopped() ServerSpeechStopped {
	return ServerSpeechStopped{Type: "speech_stopped"}
}

func NewAudio(audioB64 string) ServerAudio {
	return ServerAudio{Type: "audio", Audio: audioB64}
}

func NewTranscript(role, text string, final bool) ServerTranscript {
	return ServerTranscript{Type: "transcript", Role: role, Text: text, Final: final}
}

func NewToolResult(name string, result json.RawMessage) ServerToolResult {
	return ServerToolResult{Type: "tool_result", Name: name, Result: result}
}

func NewModeSwitch(mode, persona any) ServerModeSwitch {
	return ServerModeSwitch{Type: "mode_switch", Mode: mode, Persona: persona}
}

func NewModeGenerating(industry string) ServerModeGenerating {
	return ServerModeGenerating{Type: "mode_generating", Industry: industry}
}

func NewModeGeneratingCancel() ServerModeGeneratingCancel {
	return ServerModeGeneratingCancel{Type: "mode_generating_cancel"}
}

func NewError(code, message string) ServerError {
	return ServerError{Type: "error", Code: code, Message: message}
}

func NewChatDelta(text string) ServerChatDelta {
	return ServerChatDelta{Type: "chat_delta", Text: text}
}

func NewChatDone() ServerChatDone {
	return ServerChatDone{Type: "chat_done"}
}
