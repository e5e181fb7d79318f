// Package config loads gateway configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prestolabs/presto/pkg/core/realtime"
)

// Generator backends for dynamic mode creation.
const (
	GeneratorOpenAI = "openai"
	GeneratorGemini = "gemini"
)

type Config struct {
	Addr string

	// APIKeys, when non-empty, requires a bearer token on every HTTP and
	// WebSocket request.
	APIKeys map[string]struct{}

	// CORS
	CORSAllowedOrigins map[string]struct{}

	// Upstream speech-to-speech endpoint.
	RealtimeProvider string
	RealtimeModel    string
	OpenAIAPIKey     string
	AzureEndpoint    string
	AzureDeployment  string
	AzureAPIVersion  string
	AzureAPIKey      string

	// Text chat.
	ChatModel        string
	ChatHistoryLimit int

	// Dynamic mode generation.
	GeneratorProvider string
	GeneratorModel    string
	GeminiAPIKey      string

	// Mode catalog.
	ModesDir    string
	DefaultMode string

	// Live session tuning.
	LiveMaxSessions      int
	LiveMaxMessageBytes  int64
	LiveWSWriteTimeout   time.Duration
	LiveWSPingInterval   time.Duration
	LivePendingFrames    int
	LiveReconnectBase    time.Duration
	LiveReconnectCap     time.Duration
	LiveDrainWindow      time.Duration
	LiveParseErrorLimit  int
	LiveParseErrorWindow time.Duration

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                 envOr("PRESTO_ADDR", ":8000"),
		APIKeys:              make(map[string]struct{}),
		CORSAllowedOrigins:   make(map[string]struct{}),
		RealtimeProvider:     envOr("PRESTO_REALTIME_PROVIDER", realtime.ProviderOpenAI),
		RealtimeModel:        envOr("PRESTO_REALTIME_MODEL", "gpt-realtime"),
		OpenAIAPIKey:         envOr("PRESTO_OPENAI_API_KEY", os.Getenv("OPENAI_API_KEY")),
		AzureEndpoint:        envOr("PRESTO_AZURE_ENDPOINT", ""),
		AzureDeployment:      envOr("PRESTO_AZURE_DEPLOYMENT", "gpt-realtime"),
		AzureAPIVersion:      envOr("PRESTO_AZURE_API_VERSION", realtime.DefaultAzureAPIVersion),
		AzureAPIKey:          envOr("PRESTO_AZURE_API_KEY", ""),
		ChatModel:            envOr("PRESTO_CHAT_MODEL", "gpt-4o-mini"),
		ChatHistoryLimit:     envIntOr("PRESTO_CHAT_HISTORY_LIMIT", 20),
		GeneratorProvider:    envOr("PRESTO_GENERATOR", GeneratorOpenAI),
		GeneratorModel:       envOr("PRESTO_GENERATOR_MODEL", ""),
		GeminiAPIKey:         envOr("PRESTO_GEMINI_API_KEY", os.Getenv("GEMINI_API_KEY")),
		ModesDir:             envOr("PRESTO_MODES_DIR", ""),
		DefaultMode:          envOr("PRESTO_DEFAULT_MODE", "banking"),
		LiveMaxSessions:      envIntOr("PRESTO_LIVE_MAX_SESSIONS", 16),
		LiveMaxMessageBytes:  envInt64Or("PRESTO_LIVE_MAX_MESSAGE_BYTES", 256<<10),
		LiveWSWriteTimeout:   envDurationOr("PRESTO_LIVE_WS_WRITE_TIMEOUT", 5*time.Second),
		LiveWSPingInterval:   envDurationOr("PRESTO_LIVE_WS_PING_INTERVAL", 20*time.Second),
		LivePendingFrames:    envIntOr("PRESTO_LIVE_PENDING_FRAMES", 50),
		LiveReconnectBase:    envDurationOr("PRESTO_LIVE_RECONNECT_BASE", time.Second),
		LiveReconnectCap:     envDurationOr("PRESTO_LIVE_RECONNECT_CAP", 30*time.Second),
		LiveDrainWindow:      envDurationOr("PRESTO_LIVE_DRAIN_WINDOW", time.Second),
		LiveParseErrorLimit:  envIntOr("PRESTO_LIVE_PARSE_ERROR_LIMIT", 5),
		LiveParseErrorWindow: envDurationOr("PRESTO_LIVE_PARSE_ERROR_WINDOW", 10*time.Second),
		ReadHeaderTimeout:    envDurationOr("PRESTO_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod:  envDurationOr("PRESTO_SHUTDOWN_GRACE_PERIOD", 15*time.Second),
	}

	for _, key := range splitCSV(os.Getenv("PRESTO_API_KEYS")) {
		cfg.APIKeys[key] = struct{}{}
	}

	for _, origin := range splitCSV(envOr("PRESTO_CORS_ORIGINS", "http://localhost:5173")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	switch cfg.RealtimeProvider {
	case realtime.ProviderOpenAI, realtime.ProviderAzure:
	default:
		return Config{}, fmt.Errorf("PRESTO_REALTIME_PROVIDER must be one of openai|azure")
	}
	switch cfg.GeneratorProvider {
	case GeneratorOpenAI, GeneratorGemini:
	default:
		return Config{}, fmt.Errorf("PRESTO_GENERATOR must be one of openai|gemini")
	}

	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		return Config{}, fmt.Errorf("PRESTO_OPENAI_API_KEY must be set")
	}
	if cfg.RealtimeProvider == realtime.ProviderAzure {
		if strings.TrimSpace(cfg.AzureEndpoint) == "" {
			return Config{}, fmt.Errorf("PRESTO_AZURE_ENDPOINT must be set when PRESTO_REALTIME_PROVIDER=azure")
		}
		if strings.TrimSpace(cfg.AzureDeployment) == "" {
			return Config{}, fmt.Errorf("PRESTO_AZURE_DEPLOYMENT must not be empty")
		}
	}
	if cfg.GeneratorProvider == GeneratorGemini && strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		return Config{}, fmt.Errorf("PRESTO_GEMINI_API_KEY must be set when PRESTO_GENERATOR=gemini")
	}

	if strings.TrimSpace(cfg.RealtimeModel) == "" {
		return Config{}, fmt.Errorf("PRESTO_REALTIME_MODEL must not be empty")
	}
	if strings.TrimSpace(cfg.ChatModel) == "" {
		return Config{}, fmt.Errorf("PRESTO_CHAT_MODEL must not be empty")
	}
	if cfg.ChatHistoryLimit <= 0 {
		return Config{}, fmt.Errorf("PRESTO_CHAT_HISTORY_LIMIT must be > 0")
	}
	if strings.TrimSpace(cfg.DefaultMode) == "" {
		return Config{}, fmt.Errorf("PRESTO_DEFAULT_MODE must not be empty")
	}
	if cfg.LiveMaxSessions < 0 {
		return Config{}, fmt.Errorf("PRESTO_LIVE_MAX_SESSIONS must be >= 0")
	}
	if cfg.LiveMaxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("PRESTO_LIVE_MAX_MESSAGE_BYTES must be > 0")
	}
	if cfg.LiveWSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("PRESTO_LIVE_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.LiveWSPingInterval <= 0 {
		return Config{}, fmt.Errorf("PRESTO_LIVE_WS_PING_INTERVAL must be > 0")
	}
	if cfg.LivePendingFrames <= 0 {
		return Config{}, fmt.Errorf("PRESTO_LIVE_PENDING_FRAMES must be > 0")
	}
	if cfg.LiveReconnectBase <= 0 {
		return Config{}, fmt.Errorf("PRESTO_LIVE_RECONNECT_BASE must be > 0")
	}
	if cfg.LiveReconnectCap < cfg.LiveReconnectBase {
		return Config{}, fmt.Errorf("PRESTO_LIVE_RECONNECT_CAP must be >= PRESTO_LIVE_RECONNECT_BASE")
	}
	if cfg.LiveDrainWindow <= 0 {
		return Config{}, fmt.Errorf("PRESTO_LIVE_DRAIN_WINDOW must be > 0")
	}
	if cfg.LiveParseErrorLimit <= 0 {
		return Config{}, fmt.Errorf("PRESTO_LIVE_PARSE_ERROR_LIMIT must be > 0")
	}
	if cfg.LiveParseErrorWindow <= 0 {
		return Config{}, fmt.Errorf("PRESTO_LIVE_PARSE_ERROR_WINDOW must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("PRESTO_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("PRESTO_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

// Endpoint builds the upstream dial target from the loaded configuration.
// The Azure credential, when needed, is attached by the caller.
func (c Config) Endpoint() realtime.Endpoint {
	ep := realtime.Endpoint{
		Provider: c.RealtimeProvider,
		Model:    c.RealtimeModel,
	}
	switch c.RealtimeProvider {
	case realtime.ProviderAzure:
		ep.APIKey = c.AzureAPIKey
		ep.AzureEndpoint = c.AzureEndpoint
		ep.AzureDeployment = c.AzureDeployment
		ep.AzureAPIVersion = c.AzureAPIVersion
	default:
		ep.APIKey = c.OpenAIAPIKey
	}
	return ep
}

// AuthRequired reports whether bearer auth is enforced.
func (c Config) AuthRequired() bool {
	return len(c.APIKeys) > 0
}

// OriginAllowed reports whether origin is in the CORS allowlist. An empty
// origin or an empty allowlist never matches.
func (c Config) OriginAllowed(origin string) bool {
	if origin == "" || len(c.CORSAllowedOrigins) == 0 {
		return false
	}
	_, ok := c.CORSAllowedOrigins[origin]
	return ok
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
