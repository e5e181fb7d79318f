// Package handlers exposes the gateway's HTTP surface: the two WebSocket
// endpoints, the mode catalog, and health probes.
package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/prestolabs/presto/pkg/core"
	"github.com/prestolabs/presto/pkg/gateway/config"
	"github.com/prestolabs/presto/pkg/gateway/lifecycle"
	"github.com/prestolabs/presto/pkg/gateway/mw"
)

// statusGatewayDraining is sent to upgrade attempts during shutdown. It is
// not a registered HTTP status; clients treat anything >= 500 as retryable.
const statusGatewayDraining = 529

// acceptWS runs the shared pre-upgrade guards and, when they pass, upgrades
// the connection. Guard failures are answered with the canonical error
// envelope before the caller ever sees the request.
func acceptWS(w http.ResponseWriter, r *http.Request, cfg config.Config, lc *lifecycle.State) (*websocket.Conn, bool) {
	if r.Method != http.MethodGet {
		mw.WriteError(w, r, http.StatusMethodNotAllowed, &core.Error{Type: core.ErrInvalidRequest, Message: "method not allowed"})
		return nil, false
	}
	if lc != nil && lc.Draining() {
		mw.WriteError(w, r, statusGatewayDraining, &core.Error{Type: core.ErrOverloaded, Message: "gateway is draining"})
		return nil, false
	}
	if !originAllowed(cfg, r) {
		mw.WriteError(w, r, http.StatusForbidden, core.NewPermissionError("origin is not allowed"))
		return nil, false
	}

	upgrader := websocket.Upgrader{
		// The allowlist decision already happened above.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, false
	}
	return conn, true
}

// originAllowed mirrors the CORS allowlist for WebSocket upgrades, which
// never go through preflight. Non-browser clients send no Origin and pass.
func originAllowed(cfg config.Config, r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	return cfg.OriginAllowed(origin)
}

// writeEnvelope sends one protocol envelope on a connection that has no
// session behind it yet.
func writeEnvelope(conn *websocket.Conn, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_ = conn.WriteMessage(websocket.TextMessage, payload)
}

func randHex(nbytes int) string {
	b := make([]byte, nbytes)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().Format("20060102150405.000000000")))
	}
	return hex.EncodeToString(b)
}
