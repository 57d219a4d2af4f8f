package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jbweber/homelab/ploi/internal/domain"
)

// ErrorResponse is the body of every non-action error
type ErrorResponse struct {
	Error string `json:"error"`
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("failed to encode response", slog.String("error", err.Error()))
	}
}

func (a *API) writeError(w http.ResponseWriter, status int, msg string) {
	a.writeJSON(w, status, ErrorResponse{Error: msg})
}

// parseID reads a positive integer URL parameter.
func parseID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// serverFromRequest resolves {id} against the current server list, writing
// the error response itself when it cannot.
func (a *API) serverFromRequest(w http.ResponseWriter, r *http.Request) (domain.Server, bool) {
	id, ok := parseID(r, "id")
	if !ok {
		a.writeError(w, http.StatusBadRequest, "Invalid server ID")
		return domain.Server{}, false
	}
	server, found := a.servers.Server(id)
	if !found {
		a.writeError(w, http.StatusNotFound, "Server not found")
		return domain.Server{}, false
	}
	return server, true
}
