package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prestolabs/presto/pkg/gateway/modes"
)

func TestModes_ListsBuiltinCatalog(t *testing.T) {
	catalog, err := modes.LoadCatalog("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	h := ModesHandler{Catalog: catalog, Default: "banking"}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/modes", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}

	var resp struct {
		Default string `json:"default"`
		Modes   []struct {
			ID string `json:"id"`
		} `json:"modes"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Default != "banking" {
		t.Fatalf("default=%q", resp.Default)
	}

	seen := make(map[string]bool, len(resp.Modes))
	for _, m := range resp.Modes {
		seen[m.ID] = true
	}
	for _, id := range []string{"banking", "insurance", "healthcare"} {
		if !seen[id] {
			t.Fatalf("catalog listing missing %q: %v", id, seen)
		}
	}
}

func TestModes_NeverLeaksSystemPrompts(t *testing.T) {
	catalog, err := modes.LoadCatalog("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	h := ModesHandler{Catalog: catalog, Default: "banking"}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/modes", nil))

	if strings.Contains(rr.Body.String(), "system_prompt") {
		t.Fatalf("system prompt leaked into catalog listing")
	}
}

func TestModes_RejectsNonGET(t *testing.T) {
	catalog, err := modes.LoadCatalog("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	h := ModesHandler{Catalog: catalog, Default: "banking"}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/modes", nil))

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}
