// Package presto is the Go client for the Presto voice gateway. It dials
// the gateway's voice WebSocket and decodes server envelopes into typed
// events, and it carries the client-side audio pipeline: microphone capture,
// gapless playback scheduling with barge-in interrupt, and the voice state
// machine that derives UI state from session events.
package presto

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/prestolabs/presto/pkg/core"
	liveproto "github.com/prestolabs/presto/pkg/gateway/live/protocol"
)

const defaultDialTimeout = 15 * time.Second

// DialConfig configures a voice session dial.
type DialConfig struct {
	// BaseURL is the gateway root, with an http(s) or ws(s) scheme.
	BaseURL string
	// APIKey is sent as a bearer token when set. Browser clients pass the
	// key as an api_key query parameter instead; the gateway accepts both.
	APIKey string
}

// Event is a typed server-to-client message from the voice socket.
type Event interface {
	eventType() string
}

// Connection status values carried by StatusEvent.
const (
	StatusConnected    = liveproto.StatusConnected
	StatusReconnecting = liveproto.StatusReconnecting
	StatusDisconnected = liveproto.StatusDisconnected
	StatusDraining     = liveproto.StatusDraining
	StatusError        = liveproto.StatusError
)

// StatusEvent reports connection lifecycle changes for the upstream model
// link ("connected", "reconnecting", "draining", ...).
type StatusEvent struct {
	Status string
	Detail string
}

func (e StatusEvent) eventType() string { return "status" }

// SpeechStartedEvent signals the caller began speaking. Local playback
// should be interrupted immediately.
type SpeechStartedEvent struct{}

func (e SpeechStartedEvent) eventType() string { return "speech_started" }

// SpeechStoppedEvent signals the caller stopped speaking.
type SpeechStoppedEvent struct{}

func (e SpeechStoppedEvent) eventType() string { return "speech_stopped" }

// AudioEvent carries one decoded PCM frame of assistant speech.
type AudioEvent struct {
	Data []byte
}

func (e AudioEvent) eventType() string { return "audio" }

// TranscriptEvent carries transcript text for either speaker. Final is
// false for streaming assistant deltas and true for completed utterances.
type TranscriptEvent struct {
	Role  string
	Text  string
	Final bool
}

func (e TranscriptEvent) eventType() string { return "transcript" }

// ToolResultEvent forwards an executed tool's result for rendering.
type ToolResultEvent struct {
	Name   string
	Result json.RawMessage
}

func (e ToolResultEvent) eventType() string { return "tool_result" }

// ModeSwitchEvent announces a completed mode switch. Mode and Persona are
// left raw so callers can decode only the fields their UI renders.
type ModeSwitchEvent struct {
	Mode    json.RawMessage
	Persona json.RawMessage
}

func (e ModeSwitchEvent) eventType() string { return "mode_switch" }

// ModeGeneratingEvent tells the client a mode switch was detected and
// generation is in progress. Prior-mode content should be cleared.
type ModeGeneratingEvent struct {
	Industry string
}

func (e ModeGeneratingEvent) eventType() string { return "mode_generating" }

// ModeGeneratingCancelEvent withdraws a ModeGeneratingEvent after a false
// positive or a failed generation.
type ModeGeneratingCancelEvent struct{}

func (e ModeGeneratingCancelEvent) eventType() string { return "mode_generating_cancel" }

// ErrorEvent reports a session-level failure.
type ErrorEvent struct {
	Code    string
	Message string
}

func (e ErrorEvent) eventType() string { return "error" }

// UnknownEvent preserves frames with an unrecognized type so newer gateways
// stay consumable.
type UnknownEvent struct {
	Type string
	Raw  json.RawMessage
}

func (e UnknownEvent) eventType() string { return e.Type }

// VoiceSession is a live connection to the gateway voice endpoint.
type VoiceSession struct {
	conn *websocket.Conn

	events chan Event
	done   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool

	errMu sync.Mutex
	err   error
}

// Events yields decoded server events. The channel closes when the
// connection ends; check Err afterwards.
func (s *VoiceSession) Events() <-chan Event {
	if s == nil {
		return nil
	}
	return s.events
}

// SendAudio forwards one PCM frame of caller audio.
func (s *VoiceSession) SendAudio(pcm []byte) error {
	if s == nil {
		return fmt.Errorf("session must not be nil")
	}
	frame := liveproto.ClientAudio{
		Type:  "audio",
		Audio: base64.StdEncoding.EncodeToString(pcm),
	}
	return s.sendJSON(frame)
}

// SendMute toggles server-side forwarding of caller audio. The gateway
// keeps its upstream connection open while muted, so unmuting is instant.
func (s *VoiceSession) SendMute(muted bool) error {
	if s == nil {
		return fmt.Errorf("session must not be nil")
	}
	return s.sendJSON(liveproto.ClientMute{Type: "mute", Muted: muted})
}

// SendStop asks the gateway to end the session gracefully.
func (s *VoiceSession) SendStop() error {
	if s == nil {
		return fmt.Errorf("session must not be nil")
	}
	return s.sendJSON(liveproto.ClientStop{Type: "stop"})
}

func (s *VoiceSession) sendJSON(v any) error {
	if s.closed.Load() {
		return fmt.Errorf("voice session is closed")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

// Close closes the websocket session and waits for the read loop to exit.
func (s *VoiceSession) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
	<-s.done
	return nil
}

// Err returns the terminal session error, if any, once the session ends.
func (s *VoiceSession) Err() error {
	if s == nil {
		return nil
	}
	<-s.done
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *VoiceSession) setErr(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *VoiceSession) readLoop() {
	defer close(s.done)
	defer close(s.events)

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			if !s.closed.Load() {
				s.setErr(err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		event, err := decodeServerFrame(data)
		if err != nil {
			s.setErr(err)
			return
		}
		s.emitEvent(event)
		if errEvent, ok := event.(ErrorEvent); ok {
			s.setErr(&core.Error{Type: core.ErrorType(errEvent.Code), Message: errEvent.Message})
		}
	}
}

func (s *VoiceSession) emitEvent(event Event) {
	if event == nil {
		return
	}
	select {
	case s.events <- event:
	default:
		// Avoid deadlocking the read loop if the caller stops consuming.
	}
}

func decodeServerFrame(data []byte) (Event, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode frame envelope: %w", err)
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, fmt.Errorf("frame missing type")
	}

	switch typ {
	case "status":
		var msg liveproto.ServerStatus
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode status: %w", err)
		}
		return StatusEvent{Status: msg.Status, Detail: msg.Detail}, nil
	case "speech_started":
		return SpeechStartedEvent{}, nil
	case "speech_stopped":
		return SpeechStoppedEvent{}, nil
	case "audio":
		var msg liveproto.ServerAudio
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode audio: %w", err)
		}
		pcm, err := base64.StdEncoding.DecodeString(msg.Audio)
		if err != nil {
			return nil, fmt.Errorf("decode audio payload: %w", err)
		}
		return AudioEvent{Data: pcm}, nil
	case "transcript":
		var msg liveproto.ServerTranscript
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode transcript: %w", err)
		}
		return TranscriptEvent{Role: msg.Role, Text: msg.Text, Final: msg.Final}, nil
	case "tool_result":
		var msg liveproto.ServerToolResult
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode tool_result: %w", err)
		}
		return ToolResultEvent{Name: msg.Name, Result: msg.Result}, nil
	case "mode_switch":
		var msg struct {
			Mode    json.RawMessage `json:"mode"`
			Persona json.RawMessage `json:"persona"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode mode_switch: %w", err)
		}
		return ModeSwitchEvent{Mode: msg.Mode, Persona: msg.Persona}, nil
	case "mode_generating":
		var msg liveproto.ServerModeGenerating
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode mode_generating: %w", err)
		}
		return ModeGeneratingEvent{Industry: msg.Industry}, nil
	case "mode_generating_cancel":
		return ModeGeneratingCancelEvent{}, nil
	case "error":
		var msg liveproto.ServerError
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode error: %w", err)
		}
		return ErrorEvent{Code: msg.Code, Message: msg.Message}, nil
	default:
		return UnknownEvent{Type: typ, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}

// Dial connects to the gateway voice endpoint and waits for the relay to
// report that the upstream model link is up. The session is ready for audio
// as soon as Dial returns; the initial status event is also delivered on
// Events.
func Dial(ctx context.Context, cfg DialConfig) (*VoiceSession, error) {
	wsURL, err := voiceEndpoint(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	headers := make(http.Header)
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		headers.Set("Authorization", "Bearer "+key)
	}

	dialer := websocket.DefaultDialer
	if dialer == nil {
		dialer = &websocket.Dialer{}
	}

	dialCtx := ctx
	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		dialCtx, cancel = context.WithTimeout(ctx, defaultDialTimeout)
		defer cancel()
	}

	conn, resp, err := dialer.DialContext(dialCtx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: websocket dial failed (status %d): %w", wsURL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(defaultDialTimeout))
	messageType, payload, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read first frame: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})
	if messageType != websocket.TextMessage {
		_ = conn.Close()
		return nil, fmt.Errorf("unexpected first frame type %d", messageType)
	}

	first, err := decodeServerFrame(payload)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	switch e := first.(type) {
	case StatusEvent:
		if e.Status != liveproto.StatusConnected {
			_ = conn.Close()
			return nil, fmt.Errorf("unexpected initial status %q", e.Status)
		}
		session := &VoiceSession{
			conn:   conn,
			events: make(chan Event, 256),
			done:   make(chan struct{}),
		}
		// Surface the initial status to consumers too.
		session.emitEvent(e)
		go session.readLoop()
		return session, nil
	case ErrorEvent:
		_ = conn.Close()
		return nil, &core.Error{Type: core.ErrorType(e.Code), Message: e.Message}
	default:
		_ = conn.Close()
		return nil, fmt.Errorf("unexpected first frame %q", first.eventType())
	}
}

func voiceEndpoint(baseURL string) (string, error) {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		return "", fmt.Errorf("gateway base URL is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid gateway base URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
		// Already a websocket scheme.
	default:
		return "", fmt.Errorf("gateway base URL must use http(s) or ws(s)")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/voice"
	return u.String(), nil
}
