// Package server assembles the gateway: shared state, routes, and the
// middleware chain, plus the drain hooks the process shutdown sequence
// drives.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/prestolabs/presto/pkg/core/realtime"
	"github.com/prestolabs/presto/pkg/gateway/config"
	"github.com/prestolabs/presto/pkg/gateway/handlers"
	"github.com/prestolabs/presto/pkg/gateway/lifecycle"
	"github.com/prestolabs/presto/pkg/gateway/live/protocol"
	"github.com/prestolabs/presto/pkg/gateway/live/session"
	"github.com/prestolabs/presto/pkg/gateway/live/sessions"
	"github.com/prestolabs/presto/pkg/gateway/metrics"
	"github.com/prestolabs/presto/pkg/gateway/modes"
	"github.com/prestolabs/presto/pkg/gateway/mw"
	"github.com/prestolabs/presto/pkg/gateway/tools"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	catalog   *modes.Catalog
	tools     *tools.Registry
	generator *modes.Generator
	client    openai.Client
	dial      session.DialFunc

	lifecycle *lifecycle.State
	sessions  *sessions.Tracker
}

// New loads the mode catalog and tool registry and wires every route. The
// credential is only consulted for keyless Azure upstream auth; pass nil
// otherwise.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, cred azcore.TokenCredential) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	catalog, err := modes.LoadCatalog(cfg.ModesDir)
	if err != nil {
		return nil, fmt.Errorf("load mode catalog: %w", err)
	}
	registry, err := tools.Dashboard()
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}
	generator, err := buildGenerator(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	endpoint := cfg.Endpoint()
	endpoint.Credential = cred

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		mux:       http.NewServeMux(),
		catalog:   catalog,
		tools:     registry,
		generator: generator,
		client:    openai.NewClient(option.WithAPIKey(cfg.OpenAIAPIKey)),
		dial:      dialFunc(endpoint),
		lifecycle: &lifecycle.State{},
		sessions:  sessions.NewTracker(cfg.LiveMaxSessions),
	}

	s.routes()
	return s, nil
}

func buildGenerator(ctx context.Context, cfg config.Config, logger *slog.Logger) (*modes.Generator, error) {
	var backend modes.Backend
	switch cfg.GeneratorProvider {
	case config.GeneratorGemini:
		b, err := modes.NewGeminiBackend(ctx, cfg.GeminiAPIKey, cfg.GeneratorModel)
		if err != nil {
			return nil, fmt.Errorf("gemini generator: %w", err)
		}
		backend = b
	default:
		backend = modes.NewOpenAIBackend(cfg.OpenAIAPIKey, cfg.GeneratorModel)
	}
	return modes.NewGenerator(backend, logger)
}

// dialFunc wraps realtime.Dial so every connect attempt lands in the
// upstream metrics no matter which session triggered it.
func dialFunc(ep realtime.Endpoint) session.DialFunc {
	return func(ctx context.Context) (realtime.Conn, error) {
		conn, err := realtime.Dial(ctx, ep)
		if err != nil {
			metrics.RecordUpstreamConnect(ep.Provider, "error")
			return nil, err
		}
		metrics.RecordUpstreamConnect(ep.Provider, "ok")
		return conn, nil
	}
}

func (s *Server) routes() {
	// Probes and metrics stay reachable without credentials; auth wraps the
	// API routes individually.
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{
		Config:    s.cfg,
		Lifecycle: s.lifecycle,
		Catalog:   s.catalog,
		Sessions:  s.sessions,
	})
	s.mux.Handle("/metrics", metrics.Handler())

	s.mux.Handle("/api/modes", mw.Auth(s.cfg, handlers.ModesHandler{
		Catalog: s.catalog,
		Default: s.cfg.DefaultMode,
	}))
	s.mux.Handle("/ws/voice", mw.Auth(s.cfg, handlers.VoiceHandler{
		Config:    s.cfg,
		Logger:    s.logger,
		Tools:     s.tools,
		Catalog:   s.catalog,
		Generator: s.generator,
		Dial:      s.dial,
		Lifecycle: s.lifecycle,
		Sessions:  s.sessions,
	}))
	s.mux.Handle("/ws/chat", mw.Auth(s.cfg, handlers.ChatHandler{
		Config:    s.cfg,
		Logger:    s.logger,
		Client:    s.client,
		Tools:     s.tools,
		Catalog:   s.catalog,
		Generator: s.generator,
		Lifecycle: s.lifecycle,
		Sessions:  s.sessions,
	}))

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// SetDraining flips readiness and makes new WebSocket upgrades fail fast.
// Sessions already running are untouched.
func (s *Server) SetDraining() {
	s.lifecycle.BeginDrain()
}

// WarnLiveSessionsDraining sends a draining status to every running session
// and reports how many were reached.
func (s *Server) WarnLiveSessionsDraining() int {
	return s.sessions.WarnAll(protocol.StatusDraining, "gateway is shutting down")
}

// WaitLiveSessions blocks until every session has unregistered or ctx
// expires, reporting whether the tracker emptied in time.
func (s *Server) WaitLiveSessions(ctx context.Context) bool {
	return s.sessions.Wait(ctx)
}

// CancelLiveSessions force-closes every session still running.
func (s *Server) CancelLiveSessions() int {
	return s.sessions.CancelAll()
}
