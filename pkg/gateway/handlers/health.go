package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prestolabs/presto/pkg/gateway/config"
	"github.com/prestolabs/presto/pkg/gateway/lifecycle"
	"github.com/prestolabs/presto/pkg/gateway/live/sessions"
	"github.com/prestolabs/presto/pkg/gateway/modes"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// ReadyHandler reports whether the gateway should receive traffic. A
// draining gateway is alive but not ready, so rollouts stop routing new
// sessions to it while the old ones finish.
type ReadyHandler struct {
	Config    config.Config
	Lifecycle *lifecycle.State
	Catalog   *modes.Catalog
	Sessions  *sessions.Tracker
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK           bool     `json:"ok"`
		Draining     bool     `json:"draining"`
		AuthEnabled  bool     `json:"auth_enabled"`
		LiveSessions int      `json:"live_sessions"`
		Issues       []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 2)
	since, draining := h.Lifecycle.DrainingSince()
	if draining {
		issues = append(issues, fmt.Sprintf("draining for %s", time.Since(since).Round(time.Second)))
	}

	if h.Catalog == nil || h.Catalog.Len() == 0 {
		issues = append(issues, "mode catalog is empty")
	} else if _, ok := h.Catalog.Get(h.Config.DefaultMode); !ok {
		issues = append(issues, fmt.Sprintf("default mode %q not in catalog", h.Config.DefaultMode))
	}

	count := 0
	if h.Sessions != nil {
		count = h.Sessions.Count()
	}

	ok := len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:           ok,
		Draining:     draining,
		AuthEnabled:  h.Config.AuthRequired(),
		LiveSessions: count,
		Issues:       issues,
	})
}
