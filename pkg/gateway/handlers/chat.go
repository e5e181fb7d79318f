package handlers

import (
	"log/slog"
	"net/http"

	"github.com/openai/openai-go"

	"github.com/prestolabs/presto/pkg/core"
	"github.com/prestolabs/presto/pkg/gateway/chat"
	"github.com/prestolabs/presto/pkg/gateway/config"
	"github.com/prestolabs/presto/pkg/gateway/lifecycle"
	"github.com/prestolabs/presto/pkg/gateway/live/protocol"
	"github.com/prestolabs/presto/pkg/gateway/live/sessions"
	"github.com/prestolabs/presto/pkg/gateway/modes"
	"github.com/prestolabs/presto/pkg/gateway/tools"
)

// ChatHandler upgrades /ws/chat and runs the text assistant loop. Chat
// sessions register in the same tracker as voice ones, so the session cap
// and the drain warning cover both surfaces.
type ChatHandler struct {
	Config    config.Config
	Logger    *slog.Logger
	Client    openai.Client
	Tools     *tools.Registry
	Catalog   *modes.Catalog
	Generator *modes.Generator
	Lifecycle *lifecycle.State
	Sessions  *sessions.Tracker
}

func (h ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, ok := acceptWS(w, r, h.Config, h.Lifecycle)
	if !ok {
		return
	}
	defer conn.Close()

	sessionID := "c_" + randHex(8)

	store, err := modes.NewStore(h.Catalog, h.Config.DefaultMode)
	if err != nil {
		writeEnvelope(conn, protocol.NewError(string(core.ErrInternal), "mode catalog unavailable"))
		return
	}

	s, err := chat.New(chat.Dependencies{
		Conn:      conn,
		Client:    h.Client,
		Model:     h.Config.ChatModel,
		Logger:    h.Logger,
		Tools:     h.Tools,
		Modes:     store,
		Generator: h.Generator,
		SessionID: sessionID,
		Config: chat.Config{
			MaxMessageBytes:  h.Config.LiveMaxMessageBytes,
			WriteTimeout:     h.Config.LiveWSWriteTimeout,
			HistoryLimit:     h.Config.ChatHistoryLimit,
			ParseErrorLimit:  h.Config.LiveParseErrorLimit,
			ParseErrorWindow: h.Config.LiveParseErrorWindow,
		},
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("chat session setup failed", "session_id", sessionID, "error", err)
		}
		writeEnvelope(conn, protocol.NewError(string(core.ErrInternal), "session setup failed"))
		return
	}

	unregister, ok := h.Sessions.Register(sessionID, sessions.Handle{Cancel: s.Cancel, Warn: s.Warn})
	if !ok {
		writeEnvelope(conn, protocol.NewError(string(core.ErrOverloaded), "session capacity reached"))
		return
	}
	defer unregister()

	if err := s.Run(r.Context()); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("chat session ended with error", "session_id", sessionID, "error", err)
		}
	}
}
