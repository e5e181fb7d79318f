package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prestolabs/presto/pkg/core"
	"github.com/prestolabs/presto/pkg/core/realtime"
	"github.com/prestolabs/presto/pkg/gateway/modes"
	"github.com/prestolabs/presto/pkg/gateway/persona"
	"github.com/prestolabs/presto/pkg/gateway/tools"
)

type fakeUpstream struct {
	mu       sync.Mutex
	sent     []any
	reads    chan rawFrame
	closed   bool
	writeErr error
}

var _ realtime.Conn = (*fakeUpstream)(nil)

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{reads: make(chan rawFrame, 32)}
}

func (f *fakeUpstream) ReadMessage() ([]byte, error) {
	frame, ok := <-f.reads
	if !ok {
		return nil, errors.New("upstream closed")
	}
	if frame.err != nil {
		return nil, frame.err
	}
	return frame.data, nil
}

func (f *fakeUpstream) WriteEvent(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.sent = append(f.sent, v)
	return nil
}

func (f *fakeUpstream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeUpstream) events() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]any, len(f.sent))
	copy(out, f.sent)
	return out
}

type fakeBackend struct {
	response string
	err      error
}

func (b *fakeBackend) Complete(ctx context.Context, system, user string) (string, error) {
	return b.response, b.err
}

func (b *fakeBackend) Provider() string { return "fake" }

func newTestRelay(t *testing.T) *Relay {
	t.Helper()
	catalog, err := modes.LoadCatalog("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	store, err := modes.NewStore(catalog, "banking")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	registry, err := tools.Dashboard()
	if err != nil {
		t.Fatalf("dashboard registry: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &Relay{
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		tools:            registry,
		modes:            store,
		sessionID:        "sess_test",
		cfg:              Config{ParseErrorLimit: 5, ParseErrorWindow: 10 * time.Second},
		now:              time.Now,
		ctx:              ctx,
		cancel:           cancel,
		outboundPriority: make(chan outboundFrame, priorityQueueSize),
		outboundNormal:   make(chan outboundFrame, 64),
		guard:            newSwitchGuard(time.Now, time.Second),
		seed:             persona.SessionSeed("test-session"),
		transcript:       newTranscriptBuffer(),
		calls:            newInvocationAssembler(),
	}
}

func drainEnvelopes(t *testing.T, ch chan outboundFrame) []map[string]any {
	t.Helper()
	var out []map[string]any
	for {
		select {
		case frame := <-ch:
			var msg map[string]any
			if err := json.Unmarshal(frame.payload, &msg); err != nil {
				t.Fatalf("decode frame %q: %v", frame.payload, err)
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func envelopeTypes(msgs []map[string]any) []string {
	types := make([]string, len(msgs))
	for i, m := range msgs {
		types[i], _ = m["type"].(string)
	}
	return types
}

func TestPumpClient_MuteDropsCallerAudio(t *testing.T) {
	r := newTestRelay(t)
	up := newFakeUpstream()

	clientCh := make(chan rawFrame, 8)
	clientCh <- rawFrame{data: []byte(`{"type":"mute","muted":true}`)}
	clientCh <- rawFrame{data: []byte(`{"type":"audio","audio":"QUJD"}`)}
	clientCh <- rawFrame{data: []byte(`{"type":"mute","muted":false}`)}
	clientCh <- rawFrame{data: []byte(`{"type":"audio","audio":"REVG"}`)}
	clientCh <- rawFrame{data: []byte(`{"type":"stop"}`)}

	err := r.pumpClient(context.Background(), up, clientCh)
	if !errors.Is(err, errStopRequested) {
		t.Fatalf("err=%v, want errStopRequested", err)
	}

	var appended []realtime.InputAudioAppendEvent
	for _, e := range up.events() {
		if a, ok := e.(realtime.InputAudioAppendEvent); ok {
			appended = append(appended, a)
		}
	}
	if len(appended) != 1 {
		t.Fatalf("forwarded %d audio frames, want 1 (muted frame dropped)", len(appended))
	}
	if appended[0].Audio != "REVG" {
		t.Fatalf("forwarded audio=%q, want the unmuted frame", appended[0].Audio)
	}
	if r.muted.Load() {
		t.Fatalf("mute flag still set after unmute")
	}
}

func TestPumpClient_MalformedFramesEndSession(t *testing.T) {
	r := newTestRelay(t)
	r.cfg.ParseErrorLimit = 3
	up := newFakeUpstream()

	clientCh := make(chan rawFrame, 8)
	clientCh <- rawFrame{data: []byte(`not json`)}
	clientCh <- rawFrame{data: []byte(`{"type":"bogus"}`)}
	clientCh <- rawFrame{data: []byte(`{"audio":"missing type"}`)}

	err := r.pumpClient(context.Background(), up, clientCh)
	if !errors.Is(err, errClientProtocol) {
		t.Fatalf("err=%v, want errClientProtocol", err)
	}
	if len(up.events()) != 0 {
		t.Fatalf("malformed frames reached upstream: %+v", up.events())
	}
}

func TestPumpClient_SingleMalformedFrameIsDropped(t *testing.T) {
	r := newTestRelay(t)
	up := newFakeUpstream()

	clientCh := make(chan rawFrame, 8)
	clientCh <- rawFrame{data: []byte(`not json`)}
	clientCh <- rawFrame{data: []byte(`{"type":"audio","audio":"QUJD"}`)}
	clientCh <- rawFrame{data: []byte(`{"type":"stop"}`)}

	err := r.pumpClient(context.Background(), up, clientCh)
	if !errors.Is(err, errStopRequested) {
		t.Fatalf("err=%v, want errStopRequested", err)
	}
	if len(up.events()) != 1 {
		t.Fatalf("events=%d, want audio forwarded after dropped frame", len(up.events()))
	}
}

func TestPumpClient_ClientReadErrorEndsSession(t *testing.T) {
	r := newTestRelay(t)
	up := newFakeUpstream()

	clientCh := make(chan rawFrame, 1)
	clientCh <- rawFrame{err: io.ErrUnexpectedEOF}

	err := r.pumpClient(context.Background(), up, clientCh)
	if !errors.Is(err, errClientGone) {
		t.Fatalf("err=%v, want errClientGone", err)
	}
}

func TestHandleBargeIn_CancelsAndInvalidatesQueuedAudio(t *testing.T) {
	r := newTestRelay(t)
	up := newFakeUpstream()

	r.sendAudio("QUJD")
	r.handleBargeIn(up)

	events := up.events()
	if len(events) != 1 {
		t.Fatalf("upstream events=%d, want response.cancel only", len(events))
	}
	if _, ok := events[0].(realtime.ResponseCancelEvent); !ok {
		t.Fatalf("events[0]=%T, want ResponseCancelEvent", events[0])
	}

	prio := drainEnvelopes(t, r.outboundPriority)
	if len(prio) != 1 || prio[0]["type"] != "speech_started" {
		t.Fatalf("priority envelopes=%v, want speech_started", envelopeTypes(prio))
	}

	// The audio queued before the barge-in is now a stale epoch.
	select {
	case frame := <-r.outboundNormal:
		if !r.isStaleAudio(frame) {
			t.Fatalf("pre-interruption audio not marked stale")
		}
	default:
		t.Fatalf("expected queued audio frame")
	}

	// Audio produced after the barge-in plays normally.
	r.sendAudio("REVG")
	select {
	case frame := <-r.outboundNormal:
		if r.isStaleAudio(frame) {
			t.Fatalf("post-interruption audio marked stale")
		}
	default:
		t.Fatalf("expected fresh audio frame")
	}
}

func TestHandleUpstreamEvent_ForwardsAudioAndTranscripts(t *testing.T) {
	r := newTestRelay(t)
	up := newFakeUpstream()
	ctx := context.Background()

	r.handleUpstreamEvent(ctx, up, &realtime.AudioDeltaEvent{Delta: "QUJD"}, false)
	r.handleUpstreamEvent(ctx, up, &realtime.AudioTranscriptDeltaEvent{Delta: "Your "}, false)
	r.handleUpstreamEvent(ctx, up, &realtime.AudioTranscriptDeltaEvent{Delta: "balance"}, false)
	r.handleUpstreamEvent(ctx, up, &realtime.AudioTranscriptDoneEvent{Transcript: "Your balance"}, false)
	r.handleUpstreamEvent(ctx, up, &realtime.InputTranscriptionCompletedEvent{Transcript: "what is my balance"}, false)

	msgs := drainEnvelopes(t, r.outboundNormal)
	wantTypes := []string{"audio", "transcript", "transcript", "transcript", "transcript"}
	gotTypes := envelopeTypes(msgs)
	if len(gotTypes) != len(wantTypes) {
		t.Fatalf("envelope types=%v, want %v", gotTypes, wantTypes)
	}
	for i := range wantTypes {
		if gotTypes[i] != wantTypes[i] {
			t.Fatalf("envelope[%d]=%q, want %q (all=%v)", i, gotTypes[i], wantTypes[i], gotTypes)
		}
	}

	if msgs[0]["audio"] != "QUJD" {
		t.Fatalf("audio envelope=%v", msgs[0])
	}
	if msgs[1]["final"] != false || msgs[1]["role"] != "assistant" {
		t.Fatalf("streaming transcript envelope=%v", msgs[1])
	}
	if msgs[3]["final"] != true || msgs[3]["text"] != "Your balance" {
		t.Fatalf("final assistant transcript=%v", msgs[3])
	}
	if msgs[4]["role"] != "user" || msgs[4]["final"] != true {
		t.Fatalf("user transcript envelope=%v", msgs[4])
	}
}

func TestHandleUpstreamEvent_EmptyTranscriptIgnored(t *testing.T) {
	r := newTestRelay(t)
	up := newFakeUpstream()

	r.handleUpstreamEvent(context.Background(), up, &realtime.InputTranscriptionCompletedEvent{Transcript: "   "}, false)
	if msgs := drainEnvelopes(t, r.outboundNormal); len(msgs) != 0 {
		t.Fatalf("blank transcript produced envelopes: %v", envelopeTypes(msgs))
	}
}

func TestHandleUpstreamEvent_GuardDiscardsModelOutput(t *testing.T) {
	r := newTestRelay(t)
	up := newFakeUpstream()
	ctx := context.Background()

	r.guard.begin()
	r.handleUpstreamEvent(ctx, up, &realtime.AudioDeltaEvent{Delta: "QUJD"}, false)
	r.handleUpstreamEvent(ctx, up, &realtime.AudioTranscriptDeltaEvent{Delta: "stale"}, false)
	r.handleUpstreamEvent(ctx, up, &realtime.AudioTranscriptDoneEvent{Transcript: "stale"}, false)
	r.handleUpstreamEvent(ctx, up, &realtime.InputTranscriptionCompletedEvent{Transcript: "what about fees"}, false)
	r.handleUpstreamEvent(ctx, up, &realtime.FunctionCallArgumentsDeltaEvent{OutputIndex: 0, CallID: "c1", Delta: `{"x":1}`}, false)
	r.handleUpstreamEvent(ctx, up, &realtime.FunctionCallArgumentsDoneEvent{OutputIndex: 0, CallID: "c1", Name: "show_chart"}, false)

	if msgs := drainEnvelopes(t, r.outboundNormal); len(msgs) != 0 {
		t.Fatalf("guarded events reached client: %v", envelopeTypes(msgs))
	}
	if len(up.events()) != 0 {
		t.Fatalf("guarded tool call reached upstream: %+v", up.events())
	}
	if r.calls.pending() != 0 {
		t.Fatalf("guarded fragments were buffered")
	}
	if len(r.transcript.entries) != 0 {
		t.Fatalf("guarded transcript was buffered")
	}
}

func TestHandleUpstreamEvent_SpeechEventsPassDuringSwitch(t *testing.T) {
	r := newTestRelay(t)
	up := newFakeUpstream()
	ctx := context.Background()

	r.guard.begin()
	r.handleUpstreamEvent(ctx, up, &realtime.SpeechStartedEvent{}, false)
	r.handleUpstreamEvent(ctx, up, &realtime.SpeechStoppedEvent{}, false)

	prio := drainEnvelopes(t, r.outboundPriority)
	if len(prio) != 1 || prio[0]["type"] != "speech_started" {
		t.Fatalf("priority=%v, want speech_started", envelopeTypes(prio))
	}
	normal := drainEnvelopes(t, r.outboundNormal)
	if len(normal) != 1 || normal[0]["type"] != "speech_stopped" {
		t.Fatalf("normal=%v, want speech_stopped", envelopeTypes(normal))
	}

	// Barge-in during the switch still cancels upstream.
	events := up.events()
	if len(events) != 1 {
		t.Fatalf("upstream events=%d, want 1", len(events))
	}
	if _, ok := events[0].(realtime.ResponseCancelEvent); !ok {
		t.Fatalf("events[0]=%T, want ResponseCancelEvent", events[0])
	}
}

func TestHandleUserTranscript_SwitchesToBuiltinMode(t *testing.T) {
	r := newTestRelay(t)
	up := newFakeUpstream()

	done := r.handleUserTranscript(context.Background(), up,
		"Presto Change O, switch me over to insurance please.", false)
	if done != nil {
		t.Fatalf("built-in switch should complete inline, got a generation channel")
	}

	if got := r.modes.Current().ID; got != "insurance" {
		t.Fatalf("current mode=%q, want insurance", got)
	}
	if !r.guard.engaged() {
		t.Fatalf("drain window should still be open right after the switch")
	}

	msgs := drainEnvelopes(t, r.outboundNormal)
	gotTypes := envelopeTypes(msgs)
	wantTypes := []string{"transcript", "mode_generating", "mode_switch"}
	if len(gotTypes) != len(wantTypes) {
		t.Fatalf("envelopes=%v, want %v", gotTypes, wantTypes)
	}
	for i := range wantTypes {
		if gotTypes[i] != wantTypes[i] {
			t.Fatalf("envelope[%d]=%q, want %q", i, gotTypes[i], wantTypes[i])
		}
	}
	mode, ok := msgs[2]["mode"].(map[string]any)
	if !ok || mode["id"] != "insurance" {
		t.Fatalf("mode_switch payload=%v", msgs[2])
	}
	if msgs[2]["persona"] == nil {
		t.Fatalf("mode_switch carries no persona")
	}

	events := up.events()
	if len(events) != 4 {
		t.Fatalf("upstream events=%d, want cancel+update+item+response", len(events))
	}
	if _, ok := events[0].(realtime.ResponseCancelEvent); !ok {
		t.Fatalf("events[0]=%T, want ResponseCancelEvent", events[0])
	}
	update, ok := events[1].(realtime.InstructionsUpdateEvent)
	if !ok {
		t.Fatalf("events[1]=%T, want InstructionsUpdateEvent", events[1])
	}
	if !strings.Contains(update.Session.Instructions, "Sentinel Mutual") {
		t.Fatalf("instructions not rebuilt for the insurance mode")
	}
	item, ok := events[2].(realtime.ItemCreateEvent)
	if !ok {
		t.Fatalf("events[2]=%T, want ItemCreateEvent", events[2])
	}
	if len(item.Item.Content) == 0 || !strings.Contains(item.Item.Content[0].Text, "switched to Insurance mode") {
		t.Fatalf("greeting item=%+v", item.Item)
	}
	if _, ok := events[3].(realtime.ResponseCreateEvent); !ok {
		t.Fatalf("events[3]=%T, want ResponseCreateEvent", events[3])
	}
}

func TestHandleUserTranscript_FalsePositiveWithdraws(t *testing.T) {
	r := newTestRelay(t)
	up := newFakeUpstream()

	done := r.handleUserTranscript(context.Background(), up,
		"I heard the word presto in a song today.", false)
	if done != nil {
		t.Fatalf("no switch should launch")
	}
	if got := r.modes.Current().ID; got != "banking" {
		t.Fatalf("mode changed on false positive: %q", got)
	}
	if r.guard.engaged() {
		t.Fatalf("guard engaged on false positive")
	}

	gotTypes := envelopeTypes(drainEnvelopes(t, r.outboundNormal))
	wantTypes := []string{"transcript", "mode_generating", "mode_generating_cancel"}
	if len(gotTypes) != len(wantTypes) {
		t.Fatalf("envelopes=%v, want %v", gotTypes, wantTypes)
	}
	for i := range wantTypes {
		if gotTypes[i] != wantTypes[i] {
			t.Fatalf("envelope[%d]=%q, want %q", i, gotTypes[i], wantTypes[i])
		}
	}
}

func TestHandleUserTranscript_GeneratedIndustry(t *testing.T) {
	r := newTestRelay(t)
	up := newFakeUpstream()

	backend := &fakeBackend{response: `{
		"industry_id": "florist",
		"industry_name": "Florist",
		"company_name": "Bloom & Co",
		"tagline": "Fresh flowers daily",
		"primary_color": "#336699"
	}`}
	gen, err := modes.NewGenerator(backend, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	r.generator = gen

	done := r.handleUserTranscript(context.Background(), up,
		"Presto-Change-O! You're a florist.", false)
	if done == nil {
		t.Fatalf("expected generation to launch")
	}
	if !r.guard.engaged() {
		t.Fatalf("guard should be engaged while generating")
	}

	var outcome switchOutcome
	select {
	case outcome = <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("generation did not complete")
	}
	if outcome.err != nil {
		t.Fatalf("generation error: %v", outcome.err)
	}
	if outcome.industry != "florist" {
		t.Fatalf("industry=%q, want florist", outcome.industry)
	}

	r.finishGeneratedSwitch(up, outcome)
	if got := r.modes.Current().ID; got != "florist" {
		t.Fatalf("current mode=%q, want florist", got)
	}

	msgs := drainEnvelopes(t, r.outboundNormal)
	gotTypes := envelopeTypes(msgs)
	wantTypes := []string{"transcript", "mode_generating", "mode_generating", "mode_switch"}
	if len(gotTypes) != len(wantTypes) {
		t.Fatalf("envelopes=%v, want %v", gotTypes, wantTypes)
	}
	if msgs[2]["industry"] != "florist" {
		t.Fatalf("second mode_generating=%v, want industry florist", msgs[2])
	}

	// The generated mode is remembered: switching back by ID works.
	if _, err := r.modes.SwitchTo("banking"); err != nil {
		t.Fatalf("switch to banking: %v", err)
	}
	if _, err := r.modes.SwitchTo("florist"); err != nil {
		t.Fatalf("switch back to generated mode: %v", err)
	}
}

func TestFinishGeneratedSwitch_FailureKeepsCurrentMode(t *testing.T) {
	r := newTestRelay(t)
	up := newFakeUpstream()

	r.guard.begin()
	r.finishGeneratedSwitch(up, switchOutcome{
		industry: "florist",
		err:      core.NewGenerationError("model returned malformed JSON", nil),
	})

	if r.guard.engaged() {
		t.Fatalf("guard should release immediately on failed generation")
	}
	if got := r.modes.Current().ID; got != "banking" {
		t.Fatalf("mode changed on failed generation: %q", got)
	}
	gotTypes := envelopeTypes(drainEnvelopes(t, r.outboundNormal))
	if len(gotTypes) != 1 || gotTypes[0] != "mode_generating_cancel" {
		t.Fatalf("envelopes=%v, want mode_generating_cancel", gotTypes)
	}
	if len(up.events()) != 0 {
		t.Fatalf("failed generation touched upstream: %+v", up.events())
	}
}

func TestExecuteToolCall_ResultForwardedBothWays(t *testing.T) {
	r := newTestRelay(t)
	up := newFakeUpstream()
	ctx := context.Background()

	r.handleUpstreamEvent(ctx, up, &realtime.FunctionCallArgumentsDeltaEvent{
		OutputIndex: 0, CallID: "call_9", Delta: `{"chart_type":"bar",`,
	}, false)
	r.handleUpstreamEvent(ctx, up, &realtime.FunctionCallArgumentsDeltaEvent{
		OutputIndex: 0, Delta: `"title":"Spending","data":[{"label":"Jan","value":120.5}]}`,
	}, false)
	r.handleUpstreamEvent(ctx, up, &realtime.FunctionCallArgumentsDoneEvent{
		OutputIndex: 0, CallID: "call_9", Name: "show_chart",
	}, false)

	msgs := drainEnvelopes(t, r.outboundNormal)
	if len(msgs) != 1 || msgs[0]["type"] != "tool_result" {
		t.Fatalf("envelopes=%v, want one tool_result", envelopeTypes(msgs))
	}
	if msgs[0]["name"] != "show_chart" {
		t.Fatalf("tool_result name=%v", msgs[0]["name"])
	}
	result, ok := msgs[0]["result"].(map[string]any)
	if !ok || result["chart_type"] != "bar" || result["title"] != "Spending" {
		t.Fatalf("tool_result payload=%v", msgs[0]["result"])
	}

	events := up.events()
	if len(events) != 2 {
		t.Fatalf("upstream events=%d, want output item and response.create", len(events))
	}
	item, ok := events[0].(realtime.ItemCreateEvent)
	if !ok || item.Item.Type != "function_call_output" {
		t.Fatalf("events[0]=%+v, want function_call_output item", events[0])
	}
	if item.Item.CallID != "call_9" {
		t.Fatalf("output CallID=%q, want call_9", item.Item.CallID)
	}
	var upstreamResult map[string]any
	if err := json.Unmarshal([]byte(item.Item.Output), &upstreamResult); err != nil {
		t.Fatalf("decode upstream output: %v", err)
	}
	if upstreamResult["chart_type"] != "bar" {
		t.Fatalf("upstream output=%v, want same result as client", upstreamResult)
	}
	if _, ok := events[1].(realtime.ResponseCreateEvent); !ok {
		t.Fatalf("events[1]=%T, want ResponseCreateEvent", events[1])
	}
}

func TestExecuteToolCall_UnknownToolKeepsSessionAlive(t *testing.T) {
	r := newTestRelay(t)
	up := newFakeUpstream()

	r.executeToolCall(context.Background(), up, &realtime.FunctionCallArgumentsDoneEvent{
		OutputIndex: 0, CallID: "call_1", Name: "show_pie", Arguments: "{}",
	})

	msgs := drainEnvelopes(t, r.outboundNormal)
	if len(msgs) != 1 || msgs[0]["type"] != "tool_result" {
		t.Fatalf("envelopes=%v, want tool_result", envelopeTypes(msgs))
	}
	result, ok := msgs[0]["result"].(map[string]any)
	if !ok || result["error"] != "unknown tool: show_pie" {
		t.Fatalf("tool_result payload=%v", msgs[0]["result"])
	}

	// The error result still goes upstream so the model can recover.
	events := up.events()
	if len(events) != 2 {
		t.Fatalf("upstream events=%d, want output item and response.create", len(events))
	}
}

func TestPumpUpstream_ConnectionLossIsRetryable(t *testing.T) {
	r := newTestRelay(t)
	up := newFakeUpstream()
	up.reads <- rawFrame{err: io.ErrUnexpectedEOF}

	err := r.pumpUpstream(context.Background(), up)
	if core.TypeOf(err) != core.ErrConnection {
		t.Fatalf("err=%v, want connection error", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("err=%v, want wrapped read error", err)
	}
}

func TestPumpUpstream_RepeatedParseFailuresEscalate(t *testing.T) {
	r := newTestRelay(t)
	r.cfg.ParseErrorLimit = 2
	up := newFakeUpstream()
	up.reads <- rawFrame{data: []byte(`}{`)}
	up.reads <- rawFrame{data: []byte(`not json either`)}

	err := r.pumpUpstream(context.Background(), up)
	if core.TypeOf(err) != core.ErrConnection {
		t.Fatalf("err=%v, want connection error after parse failures", err)
	}
}

func TestPumpUpstream_UnknownEventTypesIgnored(t *testing.T) {
	r := newTestRelay(t)
	up := newFakeUpstream()
	up.reads <- rawFrame{data: []byte(`{"type":"response.output_item.added","item":{}}`)}
	up.reads <- rawFrame{data: []byte(`{"type":"response.audio.delta","delta":"QUJD"}`)}
	up.reads <- rawFrame{err: io.EOF}

	err := r.pumpUpstream(context.Background(), up)
	if core.TypeOf(err) != core.ErrConnection {
		t.Fatalf("err=%v, want connection error at stream end", err)
	}

	msgs := drainEnvelopes(t, r.outboundNormal)
	if len(msgs) != 1 || msgs[0]["type"] != "audio" {
		t.Fatalf("envelopes=%v, want just the audio frame", envelopeTypes(msgs))
	}
}

func TestWaitReconnect_AppliesControlsWhileWaiting(t *testing.T) {
	r := newTestRelay(t)

	clientCh := make(chan rawFrame, 8)
	clientCh <- rawFrame{data: []byte(`{"type":"mute","muted":true}`)}
	clientCh <- rawFrame{data: []byte(`{"type":"audio","audio":"QUJD"}`)}

	if err := r.waitReconnect(50*time.Millisecond, clientCh); err != nil {
		t.Fatalf("waitReconnect: %v", err)
	}
	if !r.muted.Load() {
		t.Fatalf("mute not applied during reconnect wait")
	}
}

func TestWaitReconnect_StopAbandonsReconnect(t *testing.T) {
	r := newTestRelay(t)

	clientCh := make(chan rawFrame, 1)
	clientCh <- rawFrame{data: []byte(`{"type":"stop"}`)}

	err := r.waitReconnect(time.Hour, clientCh)
	if !errors.Is(err, errStopRequested) {
		t.Fatalf("err=%v, want errStopRequested", err)
	}
}

func TestNew_ValidatesDependencies(t *testing.T) {
	if _, err := New(Dependencies{}); err == nil {
		t.Fatalf("expected error for missing client connection")
	}
}

func TestEnqueuePriority_EvictsOldestWhenFull(t *testing.T) {
	r := newTestRelay(t)
	r.outboundPriority = make(chan outboundFrame, 1)

	r.sendPriority(map[string]string{"type": "status", "status": "reconnecting"})
	r.sendPriority(map[string]string{"type": "status", "status": "disconnected"})

	msgs := drainEnvelopes(t, r.outboundPriority)
	if len(msgs) != 1 {
		t.Fatalf("priority frames=%d, want 1", len(msgs))
	}
	if msgs[0]["status"] != "disconnected" {
		t.Fatalf("surviving frame=%v, want the latest", msgs[0])
	}
}
