package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/prestolabs/presto/pkg/core"
	"github.com/prestolabs/presto/pkg/gateway/modes"
	"github.com/prestolabs/presto/pkg/gateway/mw"
)

// ModesHandler lists the built-in mode catalog so the frontend can render
// its switcher without waiting for a session. System prompts never appear
// in the payload; Mode's JSON shape already excludes them.
type ModesHandler struct {
	Catalog *modes.Catalog
	Default string
}

func (h ModesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		mw.WriteError(w, r, http.StatusMethodNotAllowed, &core.Error{Type: core.ErrInvalidRequest, Message: "method not allowed"})
		return
	}

	type modesResp struct {
		Default string        `json:"default"`
		Modes   []*modes.Mode `json:"modes"`
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(modesResp{
		Default: h.Default,
		Modes:   h.Catalog.List(),
	})
}
