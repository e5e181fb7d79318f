package handlers

import (
	"log/slog"
	"net/http"

	"github.com/prestolabs/presto/pkg/core"
	"github.com/prestolabs/presto/pkg/gateway/config"
	"github.com/prestolabs/presto/pkg/gateway/lifecycle"
	"github.com/prestolabs/presto/pkg/gateway/live/protocol"
	"github.com/prestolabs/presto/pkg/gateway/live/session"
	"github.com/prestolabs/presto/pkg/gateway/live/sessions"
	"github.com/prestolabs/presto/pkg/gateway/metrics"
	"github.com/prestolabs/presto/pkg/gateway/modes"
	"github.com/prestolabs/presto/pkg/gateway/tools"
)

// VoiceHandler upgrades /ws/voice and runs a speech relay session on the
// connection until either side goes away.
type VoiceHandler struct {
	Config    config.Config
	Logger    *slog.Logger
	Tools     *tools.Registry
	Catalog   *modes.Catalog
	Generator *modes.Generator
	Dial      session.DialFunc
	Lifecycle *lifecycle.State
	Sessions  *sessions.Tracker
}

func (h VoiceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, ok := acceptWS(w, r, h.Config, h.Lifecycle)
	if !ok {
		return
	}
	defer conn.Close()

	sessionID := "s_" + randHex(8)

	// Each connection gets its own mode store so a switch in one session
	// never leaks into another.
	store, err := modes.NewStore(h.Catalog, h.Config.DefaultMode)
	if err != nil {
		writeEnvelope(conn, protocol.NewError(string(core.ErrInternal), "mode catalog unavailable"))
		return
	}

	s, err := session.New(session.Dependencies{
		Conn:      conn,
		Dial:      h.Dial,
		Logger:    h.Logger,
		Tools:     h.Tools,
		Modes:     store,
		Generator: h.Generator,
		SessionID: sessionID,
		Config: session.Config{
			MaxMessageBytes:  h.Config.LiveMaxMessageBytes,
			WriteTimeout:     h.Config.LiveWSWriteTimeout,
			PingInterval:     h.Config.LiveWSPingInterval,
			PendingFrames:    h.Config.LivePendingFrames,
			ReconnectBase:    h.Config.LiveReconnectBase,
			ReconnectCap:     h.Config.LiveReconnectCap,
			DrainWindow:      h.Config.LiveDrainWindow,
			ParseErrorLimit:  h.Config.LiveParseErrorLimit,
			ParseErrorWindow: h.Config.LiveParseErrorWindow,
		},
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("voice session setup failed", "session_id", sessionID, "error", err)
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

	metrics.SessionStarted()
	defer metrics.SessionEnded()

	if err := s.Run(); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("voice session ended with error", "session_id", sessionID, "error", err)
		}
	}
}
