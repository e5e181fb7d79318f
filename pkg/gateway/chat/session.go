// Package chat implements the text assistant surface: one client WebSocket
// carrying user messages, answered by streamed chat completions with the
// same dashboard tools, mode switching, and persona state as the voice
// relay. There is no standing upstream connection here; each turn is one or
// more completion calls, so the whole session runs on a single goroutine.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/openai/openai-go"

	"github.com/prestolabs/presto/pkg/core"
	"github.com/prestolabs/presto/pkg/gateway/live/protocol"
	"github.com/prestolabs/presto/pkg/gateway/metrics"
	"github.com/prestolabs/presto/pkg/gateway/modes"
	"github.com/prestolabs/presto/pkg/gateway/persona"
	"github.com/prestolabs/presto/pkg/gateway/tools"
)

const defaultWriteTimeout = 5 * time.Second

var errClientGone = errors.New("client connection closed")

// completionStream is the part of the openai-go streaming client the
// session consumes. Scripted implementations stand in for the API in tests.
type completionStream interface {
	Next() bool
	Current() openai.ChatCompletionChunk
	Err() error
	Close() error
}

// streamFunc opens one streaming completion call.
type streamFunc func(ctx context.Context, params openai.ChatCompletionNewParams) completionStream

// Config tunes one chat session. Zero values take defaults.
type Config struct {
	MaxMessageBytes  int64
	WriteTimeout     time.Duration
	HistoryLimit     int
	ParseErrorLimit  int
	ParseErrorWindow time.Duration
}

// Dependencies carries everything a chat session needs. Conn, Model, Tools,
// and Modes are required; Generator is optional and disables industry-driven
// mode generation when absent.
type Dependencies struct {
	Conn      *websocket.Conn
	Client    openai.Client
	Model     string
	Logger    *slog.Logger
	Tools     *tools.Registry
	Modes     *modes.Store
	Generator *modes.Generator
	SeedKey   string
	SessionID string
	Config    Config
	Now       func() time.Time
}

// Session owns one chat connection end to end: read a frame, answer it,
// read the next.
type Session struct {
	conn      *websocket.Conn
	stream    streamFunc
	model     string
	logger    *slog.Logger
	tools     *tools.Registry
	modes     *modes.Store
	generator *modes.Generator
	sessionID string
	cfg       Config
	now       func() time.Time

	seed    int64
	persona any
	history *history

	// writeMu serializes socket writes: the turn loop and a shutdown Warn
	// may both write.
	writeMu sync.Mutex
	send    func(v any) error
}

// New validates deps and builds a session ready to Run.
func New(deps Dependencies) (*Session, error) {
	if deps.Conn == nil {
		return nil, fmt.Errorf("client connection is required")
	}
	if deps.Model == "" {
		return nil, fmt.Errorf("completion model is required")
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
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	client := deps.Client
	s := &Session{
		conn:      deps.Conn,
		model:     deps.Model,
		logger:    deps.Logger.With("session_id", deps.SessionID),
		tools:     deps.Tools,
		modes:     deps.Modes,
		generator: deps.Generator,
		sessionID: deps.SessionID,
		cfg:       cfg,
		now:       deps.Now,
		seed:      persona.SessionSeed(deps.SeedKey),
		history:   newHistory(cfg.HistoryLimit),
	}
	s.persona = persona.Generate(s.modes.Current().ID, s.seed)
	s.stream = func(ctx context.Context, params openai.ChatCompletionNewParams) completionStream {
		return client.Chat.Completions.NewStreaming(ctx, params)
	}
	s.send = s.writeEnvelope
	return s, nil
}

// Run serves the connection until the client leaves or the peer exhausts
// the malformed-frame budget. The returned error is for logging; everything
// the client needs to know has already been sent as envelopes.
func (s *Session) Run(ctx context.Context) error {
	if s.cfg.MaxMessageBytes > 0 {
		s.conn.SetReadLimit(s.cfg.MaxMessageBytes)
	}
	s.logger.Info("chat session started", "mode", s.modes.Current().ID)

	failures := protocol.NewFailureWindow(s.now, s.cfg.ParseErrorLimit, s.cfg.ParseErrorWindow)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Info("client disconnected", "reason", err)
			}
			return nil
		}

		msg, err := protocol.DecodeChatMessage(data)
		if err != nil {
			metrics.RecordProtocolError("chat")
			s.logger.Warn("dropping malformed chat frame", "error", err)
			if failures.Record() {
				s.send(protocol.NewError(string(core.ErrConnection), "too many malformed frames"))
				return core.NewConnectionError("too many malformed chat frames", err)
			}
			continue
		}
		chat, ok := msg.(protocol.ClientChat)
		if !ok {
			continue
		}

		if err := s.handleMessage(ctx, chat.Text); err != nil {
			s.logger.Info("chat session ended", "reason", err)
			return nil
		}
	}
}

// handleMessage answers one user message. Switch detection runs before the
// model sees the text, so the switch phrase is never answered in character.
func (s *Session) handleMessage(ctx context.Context, text string) error {
	if detection, ok := modes.DetectSwitch(text); ok {
		return s.handleSwitch(ctx, detection, text)
	}
	return s.respond(ctx, text)
}

// handleSwitch applies a detected switch request: built-in modes apply
// immediately, industries go through the generator. Either way the
// conversation restarts, with the history cleared, the persona rerolled,
// and a canned greeting streamed in place of a model reply.
func (s *Session) handleSwitch(ctx context.Context, d modes.Detection, fullText string) error {
	var mode *modes.Mode
	switch {
	case d.ModeID != "":
		m, err := s.modes.SwitchTo(d.ModeID)
		if err != nil {
			s.logger.Error("mode switch failed", "mode", d.ModeID, "error", err)
			metrics.RecordModeSwitch("chat", "failed")
			return s.send(protocol.NewError(string(core.ErrGeneration), "mode unavailable"))
		}
		mode = m

	case s.generator == nil:
		s.logger.Warn("mode generation unavailable", "industry", d.Industry)
		metrics.RecordModeSwitch("chat", "failed")
		return s.send(protocol.NewError(string(core.ErrGeneration), "mode generation unavailable"))

	default:
		if err := s.send(protocol.NewModeGenerating(d.Industry)); err != nil {
			return err
		}
		start := s.now()
		m, err := s.generator.Generate(ctx, d.Industry, fullText)
		metrics.RecordModeGeneration(s.generator.Provider(), s.now().Sub(start).Seconds())
		if err != nil {
			s.logger.Error("mode generation failed", "industry", d.Industry, "error", err)
			metrics.RecordModeSwitch("chat", "failed")
			if sendErr := s.send(protocol.NewModeGeneratingCancel()); sendErr != nil {
				return sendErr
			}
			return s.send(protocol.NewError(string(core.ErrGeneration), "mode generation failed"))
		}
		s.modes.Apply(m)
		mode = m
	}

	s.history.clear()
	s.persona = persona.Generate(mode.ID, s.seed)
	if err := s.send(protocol.NewModeSwitch(mode, s.persona)); err != nil {
		return err
	}
	metrics.RecordModeSwitch("chat", "applied")
	s.logger.Info("mode switched", "mode", mode.ID, "company", mode.CompanyName)

	welcome := fmt.Sprintf(
		"Presto-Change-O! I'm now your %s assistant. How can I help you today?",
		mode.Name)
	if err := s.send(protocol.NewChatDelta(welcome)); err != nil {
		return err
	}
	return s.send(protocol.NewChatDone())
}

// Cancel tears the session down from outside, typically at server
// shutdown. Closing the socket unblocks the read loop.
func (s *Session) Cancel() {
	_ = s.conn.Close()
}

// Warn pushes a status notice to the client ahead of shutdown.
func (s *Session) Warn(code, message string) error {
	return s.send(protocol.NewStatus(code, message))
}

func (s *Session) writeEnvelope(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}
