package presto

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/prestolabs/presto/pkg/core"
)

func newVoiceTestServer(t *testing.T, handler func(conn *websocket.Conn)) (string, func()) {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/voice" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn)
	}))

	return server.URL, server.Close
}

func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatalf("event channel closed early")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return nil
}

func recvFrame(t *testing.T, ch <-chan map[string]any) map[string]any {
	t.Helper()
	select {
	case frame := <-ch:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for client frame")
	}
	return nil
}

func sendConnected(conn *websocket.Conn) {
	_ = conn.WriteJSON(map[string]any{"type": "status", "status": "connected"})
}

func sendClose(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
}

func TestDial_DeliversInitialStatusAndEvents(t *testing.T) {
	t.Parallel()

	baseURL, closeServer := newVoiceTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		sendConnected(conn)
		_ = conn.WriteJSON(map[string]any{"type": "transcript", "role": "user", "text": "hello there", "final": true})
		sendClose(conn)
	})
	defer closeServer()

	session, err := Dial(context.Background(), DialConfig{BaseURL: baseURL})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer session.Close()

	status, ok := nextEvent(t, session.Events()).(StatusEvent)
	if !ok || status.Status != "connected" {
		t.Fatalf("first event=%+v, want connected status", status)
	}

	transcript, ok := nextEvent(t, session.Events()).(TranscriptEvent)
	if !ok {
		t.Fatalf("expected transcript event")
	}
	if transcript.Role != "user" || transcript.Text != "hello there" || !transcript.Final {
		t.Fatalf("transcript=%+v", transcript)
	}

	if err := session.Err(); err != nil {
		t.Fatalf("session err: %v", err)
	}
}

func TestDial_ErrorFirstFrameSurfaces(t *testing.T) {
	t.Parallel()

	baseURL, closeServer := newVoiceTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		_ = conn.WriteJSON(map[string]any{"type": "error", "code": "auth_error", "message": "invalid api key"})
	})
	defer closeServer()

	_, err := Dial(context.Background(), DialConfig{BaseURL: baseURL})
	if err == nil {
		t.Fatalf("expected dial error")
	}
	if core.TypeOf(err) != core.ErrAuth {
		t.Fatalf("error type=%q, want %q", core.TypeOf(err), core.ErrAuth)
	}
	if !strings.Contains(err.Error(), "invalid api key") {
		t.Fatalf("error=%q", err.Error())
	}
}

func TestDial_UnexpectedFirstFrameRejected(t *testing.T) {
	t.Parallel()

	baseURL, closeServer := newVoiceTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		_ = conn.WriteJSON(map[string]any{"type": "transcript", "role": "user", "text": "early"})
	})
	defer closeServer()

	_, err := Dial(context.Background(), DialConfig{BaseURL: baseURL})
	if err == nil {
		t.Fatalf("expected dial error")
	}
	if !strings.Contains(err.Error(), "unexpected first frame") {
		t.Fatalf("error=%q", err.Error())
	}
}

func TestDial_SendsBearerToken(t *testing.T) {
	t.Parallel()

	sawAuth := make(chan string, 1)
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		sendConnected(conn)
		sendClose(conn)
	}))
	defer server.Close()

	session, err := Dial(context.Background(), DialConfig{BaseURL: server.URL, APIKey: "sk_test"})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer session.Close()

	select {
	case got := <-sawAuth:
		if got != "Bearer sk_test" {
			t.Fatalf("authorization=%q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("handler never saw the upgrade request")
	}
}

func TestVoiceSession_SendFramesReachGateway(t *testing.T) {
	t.Parallel()

	received := make(chan map[string]any, 3)
	baseURL, closeServer := newVoiceTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		sendConnected(conn)
		for i := 0; i < 3; i++ {
			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			var frame map[string]any
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			received <- frame
		}
		sendClose(conn)
	})
	defer closeServer()

	session, err := Dial(context.Background(), DialConfig{BaseURL: baseURL})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer session.Close()

	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	if err := session.SendAudio(pcm); err != nil {
		t.Fatalf("send audio: %v", err)
	}
	if err := session.SendMute(true); err != nil {
		t.Fatalf("send mute: %v", err)
	}
	if err := session.SendStop(); err != nil {
		t.Fatalf("send stop: %v", err)
	}

	audio := recvFrame(t, received)
	if audio["type"] != "audio" || audio["audio"] != base64.StdEncoding.EncodeToString(pcm) {
		t.Fatalf("audio frame=%+v", audio)
	}
	mute := recvFrame(t, received)
	if mute["type"] != "mute" || mute["muted"] != true {
		t.Fatalf("mute frame=%+v", mute)
	}
	stop := recvFrame(t, received)
	if stop["type"] != "stop" {
		t.Fatalf("stop frame=%+v", stop)
	}
}

func TestVoiceSession_DecodesServerEvents(t *testing.T) {
	t.Parallel()

	pcm := []byte{0x10, 0x20, 0x30, 0x40}
	baseURL, closeServer := newVoiceTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		sendConnected(conn)
		_ = conn.WriteJSON(map[string]any{"type": "speech_started"})
		_ = conn.WriteJSON(map[string]any{"type": "speech_stopped"})
		_ = conn.WriteJSON(map[string]any{"type": "audio", "audio": base64.StdEncoding.EncodeToString(pcm)})
		_ = conn.WriteJSON(map[string]any{"type": "tool_result", "name": "show_chart", "result": map[string]any{"title": "Balance"}})
		_ = conn.WriteJSON(map[string]any{
			"type":    "mode_switch",
			"mode":    map[string]any{"id": "banking", "display_name": "Banking"},
			"persona": map[string]any{"name": "Morgan"},
		})
		_ = conn.WriteJSON(map[string]any{"type": "mode_generating", "industry": "florist"})
		_ = conn.WriteJSON(map[string]any{"type": "mode_generating_cancel"})
		_ = conn.WriteJSON(map[string]any{"type": "something_new", "payload": 7})
		sendClose(conn)
	})
	defer closeServer()

	session, err := Dial(context.Background(), DialConfig{BaseURL: baseURL})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer session.Close()

	if _, ok := nextEvent(t, session.Events()).(StatusEvent); !ok {
		t.Fatalf("expected initial status event")
	}
	if _, ok := nextEvent(t, session.Events()).(SpeechStartedEvent); !ok {
		t.Fatalf("expected speech started")
	}
	if _, ok := nextEvent(t, session.Events()).(SpeechStoppedEvent); !ok {
		t.Fatalf("expected speech stopped")
	}

	audioEvent, ok := nextEvent(t, session.Events()).(AudioEvent)
	if !ok || !bytes.Equal(audioEvent.Data, pcm) {
		t.Fatalf("audio event=%+v", audioEvent)
	}

	toolEvent, ok := nextEvent(t, session.Events()).(ToolResultEvent)
	if !ok || toolEvent.Name != "show_chart" {
		t.Fatalf("tool event=%+v", toolEvent)
	}
	if !strings.Contains(string(toolEvent.Result), "Balance") {
		t.Fatalf("tool result=%s", toolEvent.Result)
	}

	modeEvent, ok := nextEvent(t, session.Events()).(ModeSwitchEvent)
	if !ok {
		t.Fatalf("expected mode switch event")
	}
	if !strings.Contains(string(modeEvent.Mode), `"banking"`) {
		t.Fatalf("mode payload=%s", modeEvent.Mode)
	}
	if !strings.Contains(string(modeEvent.Persona), "Morgan") {
		t.Fatalf("persona payload=%s", modeEvent.Persona)
	}

	generating, ok := nextEvent(t, session.Events()).(ModeGeneratingEvent)
	if !ok || generating.Industry != "florist" {
		t.Fatalf("generating event=%+v", generating)
	}
	if _, ok := nextEvent(t, session.Events()).(ModeGeneratingCancelEvent); !ok {
		t.Fatalf("expected generating cancel")
	}

	unknown, ok := nextEvent(t, session.Events()).(UnknownEvent)
	if !ok || unknown.Type != "something_new" {
		t.Fatalf("unknown event=%+v", unknown)
	}

	if err := session.Err(); err != nil {
		t.Fatalf("session err: %v", err)
	}
}

func TestVoiceSession_ErrorEventBecomesTerminalErr(t *testing.T) {
	t.Parallel()

	baseURL, closeServer := newVoiceTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		sendConnected(conn)
		_ = conn.WriteJSON(map[string]any{"type": "error", "code": "connection_error", "message": "upstream gone"})
		sendClose(conn)
	})
	defer closeServer()

	session, err := Dial(context.Background(), DialConfig{BaseURL: baseURL})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer session.Close()

	sawError := false
	for event := range session.Events() {
		if _, ok := event.(ErrorEvent); ok {
			sawError = true
		}
	}
	if !sawError {
		t.Fatalf("error event never delivered")
	}

	var cerr *core.Error
	if err := session.Err(); !errors.As(err, &cerr) || cerr.Type != core.ErrConnection {
		t.Fatalf("session err=%v, want connection error", err)
	}
}

func TestVoiceSession_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	baseURL, closeServer := newVoiceTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		sendConnected(conn)
		// Hold the connection open until the client closes.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, _, _ = conn.ReadMessage()
	})
	defer closeServer()

	session, err := Dial(context.Background(), DialConfig{BaseURL: baseURL})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	if err := session.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := session.SendAudio([]byte{1, 2}); err == nil {
		t.Fatalf("send after close should fail")
	}
}

func TestVoiceEndpoint_SchemeMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		base string
		want string
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws/voice"},
		{"https://gateway.example.com", "wss://gateway.example.com/ws/voice"},
		{"ws://localhost:8080/", "ws://localhost:8080/ws/voice"},
		{"wss://gateway.example.com/presto/", "wss://gateway.example.com/presto/ws/voice"},
	}
	for _, tc := range cases {
		got, err := voiceEndpoint(tc.base)
		if err != nil {
			t.Fatalf("voiceEndpoint(%q): %v", tc.base, err)
		}
		if got != tc.want {
			t.Fatalf("voiceEndpoint(%q)=%q, want %q", tc.base, got, tc.want)
		}
	}

	if _, err := voiceEndpoint(""); err == nil {
		t.Fatalf("empty base URL accepted")
	}
	if _, err := voiceEndpoint("ftp://example.com"); err == nil {
		t.Fatalf("ftp scheme accepted")
	}
}
