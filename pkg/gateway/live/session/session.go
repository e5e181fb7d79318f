// Package session implements the voice relay: one client WebSocket bridged to
// one upstream realtime connection. The relay forwards caller audio up and
// synthesized speech down, executes dashboard tool calls, runs voice-driven
// mode switches behind a drain guard, interrupts playback on barge-in, and
// reconnects a dropped upstream with exponential backoff.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/prestolabs/presto/pkg/core"
	"github.com/prestolabs/presto/pkg/core/realtime"
	"github.com/prestolabs/presto/pkg/gateway/live/protocol"
	"github.com/prestolabs/presto/pkg/gateway/metrics"
	"github.com/prestolabs/presto/pkg/gateway/modes"
	"github.com/prestolabs/presto/pkg/gateway/persona"
	"github.com/prestolabs/presto/pkg/gateway/tools"
)

const (
	defaultOutboundQueue  = 128
	priorityQueueSize     = 8
	defaultPendingFrames  = 50
	defaultReconnectBase  = time.Second
	defaultReconnectCap   = 30 * time.Second
	shutdownFlushDeadline = 100 * time.Millisecond
)

var (
	errStopRequested  = errors.New("stop requested by client")
	errClientGone     = errors.New("client connection closed")
	errClientProtocol = errors.New("client protocol failure threshold exceeded")
	errBackpressure   = errors.New("outbound queue full")
)

// DialFunc opens a fresh upstream connection. The relay calls it once at
// startup and again on every reconnect attempt.
type DialFunc func(ctx context.Context) (realtime.Conn, error)

// Config tunes one relay session. Zero values take defaults.
type Config struct {
	MaxMessageBytes  int64
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	PendingFrames    int
	OutboundQueue    int
	ReconnectBase    time.Duration
	ReconnectCap     time.Duration
	DrainWindow      time.Duration
	ParseErrorLimit  int
	ParseErrorWindow time.Duration
}

// Dependencies carries everything a relay needs. Conn, Dial, Tools, and
// Modes are required; Generator is optional and disables industry-driven
// mode generation when absent.
type Dependencies struct {
	Conn      *websocket.Conn
	Dial      DialFunc
	Logger    *slog.Logger
	Tools     *tools.Registry
	Modes     *modes.Store
	Generator *modes.Generator
	SeedKey   string
	SessionID string
	Config    Config
	Now       func() time.Time
}

// Relay owns one voice session end to end.
//
// Exactly two fields are shared across its goroutines: muted, written only
// by the client loop, and audioEpoch, written only by the upstream loop.
// Everything else is owned by a single goroutine at a time, so the relay
// holds no locks.
type Relay struct {
	conn      *websocket.Conn
	dial      DialFunc
	logger    *slog.Logger
	tools     *tools.Registry
	modes     *modes.Store
	generator *modes.Generator
	sessionID string
	cfg       Config
	now       func() time.Time

	ctx        context.Context
	cancel     context.CancelFunc
	writerDone chan struct{}

	outboundPriority chan outboundFrame
	outboundNormal   chan outboundFrame

	muted      atomic.Bool
	audioEpoch atomic.Int64
	guard      *switchGuard

	// Owned by the upstream loop once Run starts.
	seed       int64
	persona    any
	transcript *transcriptBuffer
	calls      *invocationAssembler
}

// New validates deps and builds a relay ready to Run.
func New(deps Dependencies) (*Relay, error) {
	if deps.Conn == nil {
		return nil, fmt.Errorf("client connection is required")
	}
	if deps.Dial == nil {
		return nil, fmt.Errorf("upstream dialer is required")
	}
	if deps.Tools == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	if deps.Modes == nil {
		return nil, fmt.Errorf("mode store is required")
	}
	if deps.SessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.SeedKey == "" {
		deps.SeedKey = persona.DefaultSeedKey
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	cfg := deps.Config
	if cfg.OutboundQueue <= 0 {
		cfg.OutboundQueue = defaultOutboundQueue
	}
	if cfg.PendingFrames <= 0 {
		cfg.PendingFrames = defaultPendingFrames
	}
	if cfg.ReconnectBase <= 0 {
		cfg.ReconnectBase = defaultReconnectBase
	}
	if cfg.ReconnectCap <= 0 {
		cfg.ReconnectCap = defaultReconnectCap
	}
	if cfg.ReconnectCap < cfg.ReconnectBase {
		cfg.ReconnectCap = cfg.ReconnectBase
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Relay{
		conn:             deps.Conn,
		dial:             deps.Dial,
		logger:           deps.Logger.With("session_id", deps.SessionID),
		tools:            deps.Tools,
		modes:            deps.Modes,
		generator:        deps.Generator,
		sessionID:        deps.SessionID,
		cfg:              cfg,
		now:              deps.Now,
		ctx:              ctx,
		cancel:           cancel,
		outboundPriority: make(chan outboundFrame, priorityQueueSize),
		outboundNormal:   make(chan outboundFrame, cfg.OutboundQueue),
		guard:            newSwitchGuard(deps.Now, cfg.DrainWindow),
		seed:             persona.SessionSeed(deps.SeedKey),
		transcript:       newTranscriptBuffer(),
		calls:            newInvocationAssembler(),
	}, nil
}

// Cancel tears the session down from outside, typically at server shutdown.
func (r *Relay) Cancel() {
	r.cancel()
}

// Warn pushes a status notice to the client, used at shutdown to announce
// the drain before sessions are cancelled.
func (r *Relay) Warn(code, message string) error {
	r.sendPriority(protocol.NewStatus(code, message))
	return nil
}

// Run drives the session until the client leaves, a stop is requested, or a
// fatal error occurs. The returned error is for logging; everything the
// client needs to know has already been sent as envelopes.
//
// An upstream that fails on the very first connect is reported as an error
// and never retried, since a bad endpoint or credential will not heal on its
// own. An upstream that drops after connecting successfully is redialed with
// exponential backoff for as long as the client stays.
func (r *Relay) Run() error {
	defer r.shutdown()

	if r.cfg.MaxMessageBytes > 0 {
		r.conn.SetReadLimit(r.cfg.MaxMessageBytes)
	}

	r.writerDone = make(chan struct{})
	go func() {
		defer close(r.writerDone)
		w := outboundWriter{
			ws:           r.conn,
			ctx:          r.ctx,
			pingInterval: r.cfg.PingInterval,
			writeTimeout: r.cfg.WriteTimeout,
			priority:     r.outboundPriority,
			normal:       r.outboundNormal,
			isStale:      r.isStaleAudio,
		}
		if err := w.Run(); err != nil {
			r.logger.Debug("client writer stopped", "error", err)
		}
		r.cancel()
	}()

	clientCh := make(chan rawFrame, r.cfg.PendingFrames)
	go r.readClientLoop(clientCh)

	upstream, err := r.connectUpstream()
	if err != nil {
		r.logger.Error("initial upstream connect failed", "error", err)
		r.surfaceFatal(err)
		return err
	}

	attempts := 0
	for {
		r.sendPriority(protocol.NewStatus(protocol.StatusConnected, ""))
		relayErr := r.relayOnce(upstream, clientCh)
		_ = upstream.Close()

		switch {
		case errors.Is(relayErr, errStopRequested):
			r.logger.Info("session stopped by client")
			return nil
		case errors.Is(relayErr, errClientGone):
			r.logger.Info("client disconnected")
			return nil
		case errors.Is(relayErr, errClientProtocol):
			r.surfaceFatal(core.NewConnectionError("too many malformed client frames", relayErr))
			return relayErr
		case r.ctx.Err() != nil:
			return nil
		case isFatalUpstream(relayErr):
			r.surfaceFatal(relayErr)
			return relayErr
		}

		// Unexpected upstream drop. Redial with doubling delays until a
		// connect succeeds, the client leaves, or the failure turns fatal.
		for {
			attempts++
			delay := reconnectDelay(attempts, r.cfg.ReconnectBase, r.cfg.ReconnectCap)
			r.logger.Warn("upstream dropped, reconnecting",
				"error", relayErr, "attempt", attempts, "delay", delay)
			r.sendPriority(protocol.NewStatus(protocol.StatusReconnecting,
				fmt.Sprintf("retrying in %s", delay)))
			metrics.RecordReconnect()

			if waitErr := r.waitReconnect(delay, clientCh); waitErr != nil {
				if errors.Is(waitErr, errStopRequested) {
					r.logger.Info("session stopped by client")
				}
				return nil
			}

			upstream, relayErr = r.connectUpstream()
			if relayErr == nil {
				attempts = 0
				break
			}
			if isFatalUpstream(relayErr) {
				r.surfaceFatal(relayErr)
				return relayErr
			}
		}
	}
}

func isFatalUpstream(err error) bool {
	switch core.TypeOf(err) {
	case core.ErrAuth, core.ErrPermission:
		return true
	}
	return false
}

// shutdown tells the client the session is over, stops the writer, and
// gives it a moment to flush before the socket closes underneath it.
func (r *Relay) shutdown() {
	r.sendPriority(protocol.NewStatus(protocol.StatusDisconnected, ""))
	r.cancel()
	if r.writerDone == nil {
		return
	}
	timer := time.NewTimer(shutdownFlushDeadline + 50*time.Millisecond)
	defer timer.Stop()
	select {
	case <-r.writerDone:
	case <-timer.C:
	}
}

func (r *Relay) surfaceFatal(err error) {
	code := string(core.TypeOf(err))
	if code == "" {
		code = string(core.ErrConnection)
	}
	r.sendPriority(protocol.NewError(code, err.Error()))
	r.sendPriority(protocol.NewStatus(protocol.StatusError, err.Error()))
}

// connectUpstream dials the model and configures the session for the active
// mode. The persona survives reconnects so the caller keeps talking to the
// same advisor; it only changes on a mode switch.
func (r *Relay) connectUpstream() (realtime.Conn, error) {
	upstream, err := r.dial(r.ctx)
	if err != nil {
		return nil, err
	}

	mode := r.modes.Current()
	if r.persona == nil {
		r.persona = persona.Generate(mode.ID, r.seed)
	}
	instructions := persona.BuildSystemPrompt(mode, r.persona)
	cfg := realtime.DefaultSessionConfig(instructions, r.tools.RealtimeTools())
	if err := upstream.WriteEvent(realtime.NewSessionUpdate(cfg)); err != nil {
		_ = upstream.Close()
		return nil, core.NewConnectionError("configure upstream session", err)
	}
	r.logger.Info("upstream session configured", "mode", mode.ID)
	return upstream, nil
}

// relayOnce runs both forwarding directions over one upstream connection.
// The loops fail together: the first error cancels the group context, and
// the closer goroutine unblocks the upstream read by closing the socket.
func (r *Relay) relayOnce(upstream realtime.Conn, clientCh <-chan rawFrame) error {
	g, ctx := errgroup.WithContext(r.ctx)
	g.Go(func() error {
		return r.pumpClient(ctx, upstream, clientCh)
	})
	g.Go(func() error {
		return r.pumpUpstream(ctx, upstream)
	})
	g.Go(func() error {
		<-ctx.Done()
		_ = upstream.Close()
		return nil
	})
	return g.Wait()
}

// rawFrame is one frame read off a socket, or the read error that ended it.
type rawFrame struct {
	data []byte
	err  error
}

// readClientLoop owns conn.ReadMessage for the whole session, surviving
// upstream reconnects. Frames buffer in out while no pump is consuming.
func (r *Relay) readClientLoop(out chan<- rawFrame) {
	defer close(out)
	for {
		_, data, err := r.conn.ReadMessage()
		if err != nil {
			select {
			case out <- rawFrame{err: err}:
			case <-r.ctx.Done():
			}
			return
		}
		select {
		case out <- rawFrame{data: data}:
		case <-r.ctx.Done():
			return
		}
	}
}

// pumpClient forwards caller audio upstream and applies mute and stop
// controls. Malformed frames are dropped and logged; enough of them inside
// the failure window ends the session.
func (r *Relay) pumpClient(ctx context.Context, upstream realtime.Conn, clientCh <-chan rawFrame) error {
	failures := protocol.NewFailureWindow(r.now, r.cfg.ParseErrorLimit, r.cfg.ParseErrorWindow)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-clientCh:
			if !ok || frame.err != nil {
				return errClientGone
			}
			msg, err := protocol.DecodeVoiceMessage(frame.data)
			if err != nil {
				metrics.RecordProtocolError("voice")
				r.logger.Warn("dropping malformed client frame", "error", err)
				if failures.Record() {
					return errClientProtocol
				}
				continue
			}
			switch m := msg.(type) {
			case protocol.ClientAudio:
				if r.muted.Load() {
					continue
				}
				if err := upstream.WriteEvent(realtime.NewInputAudioAppend(m.Audio)); err != nil {
					return core.NewConnectionError("forward caller audio", err)
				}
				metrics.RecordFrame(metrics.DirectionUp)
			case protocol.ClientMute:
				r.muted.Store(m.Muted)
				r.logger.Info("mute toggled", "muted", m.Muted)
			case protocol.ClientStop:
				return errStopRequested
			}
		}
	}
}

// switchOutcome is the result of an asynchronous mode generation.
type switchOutcome struct {
	industry string
	mode     *modes.Mode
	err      error
}

// pumpUpstream forwards model events to the client. A dedicated reader
// goroutine feeds the loop so it stays responsive while a mode generation
// runs: guarded events keep getting discarded instead of piling up behind a
// blocking read.
func (r *Relay) pumpUpstream(ctx context.Context, upstream realtime.Conn) error {
	frames := make(chan rawFrame, 16)
	go func() {
		defer close(frames)
		for {
			data, err := upstream.ReadMessage()
			if err != nil {
				select {
				case frames <- rawFrame{err: err}:
				case <-ctx.Done():
				}
				return
			}
			select {
			case frames <- rawFrame{data: data}:
			case <-ctx.Done():
				return
			}
		}
	}()

	failures := protocol.NewFailureWindow(r.now, r.cfg.ParseErrorLimit, r.cfg.ParseErrorWindow)
	var switchDone chan switchOutcome

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case outcome := <-switchDone:
			switchDone = nil
			r.finishGeneratedSwitch(upstream, outcome)
		case frame, ok := <-frames:
			if !ok {
				return core.NewConnectionError("upstream connection lost", nil)
			}
			if frame.err != nil {
				return core.NewConnectionError("upstream connection lost", frame.err)
			}
			event, err := realtime.ParseServerEvent(frame.data)
			if err != nil {
				metrics.RecordProtocolError("upstream")
				r.logger.Warn("dropping unparseable upstream event", "error", err)
				if failures.Record() {
					return core.NewConnectionError("upstream protocol failure threshold exceeded", err)
				}
				continue
			}
			if ch := r.handleUpstreamEvent(ctx, upstream, event, switchDone != nil); ch != nil {
				switchDone = ch
			}
		}
	}
}

// handleUpstreamEvent dispatches one parsed model event. It returns a
// non-nil channel when the event launched an asynchronous mode generation.
//
// While the switch guard is engaged, output tied to the outgoing mode
// (audio, transcripts, tool calls) is discarded. Speech boundary events
// still pass so barge-in keeps working across the switch.
func (r *Relay) handleUpstreamEvent(ctx context.Context, upstream realtime.Conn, event any, switching bool) chan switchOutcome {
	switch e := event.(type) {
	case *realtime.SpeechStartedEvent:
		r.handleBargeIn(upstream)
	case *realtime.SpeechStoppedEvent:
		r.send(protocol.NewSpeechStopped())
	case *realtime.InputTranscriptionCompletedEvent:
		return r.handleUserTranscript(ctx, upstream, e.Transcript, switching)
	case *realtime.AudioDeltaEvent:
		if r.guard.engaged() || e.Delta == "" {
			return nil
		}
		r.sendAudio(e.Delta)
	case *realtime.AudioTranscriptDeltaEvent:
		if r.guard.engaged() || e.Delta == "" {
			return nil
		}
		r.transcript.appendDelta(protocol.RoleAssistant, e.Delta)
		r.send(protocol.NewTranscript(protocol.RoleAssistant, e.Delta, false))
	case *realtime.AudioTranscriptDoneEvent:
		if r.guard.engaged() {
			return nil
		}
		entry := r.transcript.finalize(protocol.RoleAssistant, e.Transcript)
		r.send(protocol.NewTranscript(protocol.RoleAssistant, entry.Text, true))
	case *realtime.FunctionCallArgumentsDeltaEvent:
		if r.guard.engaged() {
			return nil
		}
		r.calls.append(e.OutputIndex, e.CallID, e.Delta)
	case *realtime.FunctionCallArgumentsDoneEvent:
		if r.guard.engaged() {
			return nil
		}
		r.executeToolCall(ctx, upstream, e)
	case *realtime.ErrorEvent:
		r.handleUpstreamError(e)
	case *realtime.SessionCreatedEvent:
		r.logger.Info("upstream session created", "upstream_session", e.Session.ID)
	case *realtime.InputTranscriptionFailedEvent:
		r.logger.Warn("caller transcription failed", "error", e.Error.Message)
	case *realtime.ServerEvent:
		r.logger.Debug("ignoring upstream event", "type", e.Type)
	}
	return nil
}

// handleBargeIn reacts to the caller speaking over the assistant: cancel the
// in-flight response, invalidate already queued assistant audio, and tell
// the client to halt playback now.
func (r *Relay) handleBargeIn(upstream realtime.Conn) {
	if err := upstream.WriteEvent(realtime.NewResponseCancel()); err != nil {
		r.logger.Warn("response cancel failed", "error", err)
	}
	r.audioEpoch.Add(1)
	r.sendPriority(protocol.NewSpeechStarted())
	metrics.RecordInterruption()
}

// handleUserTranscript forwards the caller's utterance and checks it for
// mode switch intent. A switch phrase cancels the response the model is
// already forming from the literal words, then either applies a known mode
// inline or launches a generation for a new industry.
func (r *Relay) handleUserTranscript(ctx context.Context, upstream realtime.Conn, text string, switching bool) chan switchOutcome {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if r.guard.engaged() {
		return nil
	}
	entry := r.transcript.finalize(protocol.RoleUser, text)
	r.send(protocol.NewTranscript(protocol.RoleUser, entry.Text, true))

	if switching || !modes.MightSwitch(text) {
		return nil
	}

	if err := upstream.WriteEvent(realtime.NewResponseCancel()); err != nil {
		r.logger.Warn("response cancel failed", "error", err)
	}
	r.send(protocol.NewModeGenerating(""))

	detection, ok := modes.DetectSwitch(text)
	if !ok {
		r.send(protocol.NewModeGeneratingCancel())
		metrics.RecordModeSwitch("voice", "canceled")
		return nil
	}

	if detection.ModeID != "" {
		r.beginSwitch()
		mode, err := r.modes.SwitchTo(detection.ModeID)
		if err != nil {
			r.logger.Error("mode switch failed", "mode", detection.ModeID, "error", err)
			r.guard.cancel()
			r.send(protocol.NewModeGeneratingCancel())
			metrics.RecordModeSwitch("voice", "failed")
			return nil
		}
		r.activateMode(upstream, mode)
		r.guard.complete()
		metrics.RecordModeSwitch("voice", "applied")
		return nil
	}

	if r.generator == nil {
		r.logger.Warn("mode generation unavailable", "industry", detection.Industry)
		r.send(protocol.NewModeGeneratingCancel())
		metrics.RecordModeSwitch("voice", "failed")
		return nil
	}

	r.beginSwitch()
	r.send(protocol.NewModeGenerating(detection.Industry))
	done := make(chan switchOutcome, 1)
	go func() {
		start := r.now()
		mode, err := r.generator.Generate(ctx, detection.Industry, text)
		metrics.RecordModeGeneration(r.generator.Provider(), r.now().Sub(start).Seconds())
		done <- switchOutcome{industry: detection.Industry, mode: mode, err: err}
	}()
	return done
}

// beginSwitch engages the guard and drops every buffer tied to the outgoing
// mode, queued assistant audio included.
func (r *Relay) beginSwitch() {
	r.guard.begin()
	r.audioEpoch.Add(1)
	r.transcript.clear()
	r.calls.clear()
}

// activateMode rolls a fresh persona for the new mode, announces the switch
// to the client, points the upstream at the new instructions, and asks the
// model to greet the caller in character.
func (r *Relay) activateMode(upstream realtime.Conn, mode *modes.Mode) {
	r.persona = persona.Generate(mode.ID, r.seed)
	r.send(protocol.NewModeSwitch(mode, r.persona))

	instructions := persona.BuildSystemPrompt(mode, r.persona)
	if err := upstream.WriteEvent(realtime.NewInstructionsUpdate(instructions)); err != nil {
		r.logger.Warn("instructions update failed", "error", err)
		return
	}
	greeting := fmt.Sprintf(
		"The user just switched to %s mode. Greet them warmly as their new %s assistant. Be brief.",
		mode.Name, mode.Name)
	if err := upstream.WriteEvent(realtime.NewUserMessageItem(greeting)); err != nil {
		r.logger.Warn("greeting item failed", "error", err)
		return
	}
	if err := upstream.WriteEvent(realtime.NewResponseCreate()); err != nil {
		r.logger.Warn("greeting response failed", "error", err)
	}
	r.logger.Info("mode switched", "mode", mode.ID, "company", mode.CompanyName)
}

// finishGeneratedSwitch lands an asynchronous generation. Failure abandons
// the switch and releases the guard immediately so the session carries on in
// the current mode.
func (r *Relay) finishGeneratedSwitch(upstream realtime.Conn, outcome switchOutcome) {
	if outcome.err != nil {
		r.logger.Error("mode generation failed",
			"industry", outcome.industry, "error", outcome.err)
		r.guard.cancel()
		r.send(protocol.NewModeGeneratingCancel())
		metrics.RecordModeSwitch("voice", "failed")
		return
	}
	r.modes.Apply(outcome.mode)
	r.activateMode(upstream, outcome.mode)
	r.guard.complete()
	metrics.RecordModeSwitch("voice", "applied")
}

// executeToolCall assembles the finished invocation, runs it, and forwards
// the identical result both to the client panel and back upstream so the
// model can narrate what it displayed. Tool failures are logged and answered
// with an error result; they never end the session.
func (r *Relay) executeToolCall(ctx context.Context, upstream realtime.Conn, e *realtime.FunctionCallArgumentsDoneEvent) {
	inv := r.calls.complete(e.OutputIndex, e.CallID, e.Name, e.Arguments)
	result, err := r.tools.Execute(ctx, inv.Name, inv.Arguments)
	if err != nil {
		r.logger.Warn("tool execution failed", "tool", inv.Name, "error", err)
	}
	r.send(protocol.NewToolResult(inv.Name, result))

	if err := upstream.WriteEvent(realtime.NewToolOutputItem(inv.CallID, string(result))); err != nil {
		r.logger.Warn("tool output delivery failed", "error", err)
		return
	}
	if err := upstream.WriteEvent(realtime.NewResponseCreate()); err != nil {
		r.logger.Warn("tool continuation failed", "error", err)
		return
	}
	r.logger.Info("tool executed", "tool", inv.Name, "call_id", inv.CallID)
}

func (r *Relay) handleUpstreamError(e *realtime.ErrorEvent) {
	code := e.Error.Code
	if code == "" {
		code = "upstream_error"
	}
	r.logger.Error("upstream error event", "code", code, "message", e.Error.Message)
	r.send(protocol.NewError(code, e.Error.Message))
}

// waitReconnect sleeps out the backoff while still honoring client traffic:
// mute and stop apply immediately, audio frames are dropped because the
// upstream they were meant for is gone.
func (r *Relay) waitReconnect(delay time.Duration, clientCh <-chan rawFrame) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return r.ctx.Err()
		case <-timer.C:
			return nil
		case frame, ok := <-clientCh:
			if !ok || frame.err != nil {
				return errClientGone
			}
			msg, err := protocol.DecodeVoiceMessage(frame.data)
			if err != nil {
				metrics.RecordProtocolError("voice")
				continue
			}
			switch m := msg.(type) {
			case protocol.ClientAudio:
				metrics.RecordDroppedFrame()
				r.logger.Debug("dropping caller audio while disconnected")
			case protocol.ClientMute:
				r.muted.Store(m.Muted)
			case protocol.ClientStop:
				return errStopRequested
			}
		}
	}
}

func (r *Relay) send(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		r.logger.Error("marshal outbound envelope", "error", err)
		return
	}
	if err := r.enqueueNormal(outboundFrame{payload: payload}); err != nil {
		r.logger.Debug("outbound frame dropped", "error", err)
	}
}

func (r *Relay) sendAudio(audioB64 string) {
	payload, err := json.Marshal(protocol.NewAudio(audioB64))
	if err != nil {
		r.logger.Error("marshal audio envelope", "error", err)
		return
	}
	frame := outboundFrame{payload: payload, isAudio: true, epoch: r.audioEpoch.Load()}
	if err := r.enqueueNormal(frame); err != nil {
		metrics.RecordDroppedFrame()
		r.logger.Debug("assistant audio dropped", "error", err)
		return
	}
	metrics.RecordFrame(metrics.DirectionDown)
}

func (r *Relay) sendPriority(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		r.logger.Error("marshal priority envelope", "error", err)
		return
	}
	if err := r.enqueuePriority(outboundFrame{payload: payload}); err != nil {
		r.logger.Warn("priority frame dropped", "error", err)
	}
}

func (r *Relay) enqueueNormal(frame outboundFrame) error {
	select {
	case r.outboundNormal <- frame:
		return nil
	default:
		return errBackpressure
	}
}

// enqueuePriority evicts the oldest queued control frame rather than drop
// the new one; for control messages the latest state wins.
func (r *Relay) enqueuePriority(frame outboundFrame) error {
	for i := 0; i < 4; i++ {
		select {
		case r.outboundPriority <- frame:
			return nil
		default:
		}
		select {
		case <-r.outboundPriority:
		default:
		}
	}
	select {
	case r.outboundPriority <- frame:
		return nil
	default:
		return errBackpressure
	}
}

func (r *Relay) isStaleAudio(frame outboundFrame) bool {
	return frame.epoch < r.audioEpoch.Load()
}
