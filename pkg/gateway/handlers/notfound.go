package handlers

import (
	"net/http"

	"github.com/prestolabs/presto/pkg/core"
	"github.com/prestolabs/presto/pkg/gateway/mw"
)

type NotFoundHandler struct{}

func (h NotFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mw.WriteError(w, r, http.StatusNotFound, core.NewNotFoundError("not found"))
}
