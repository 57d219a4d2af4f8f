package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

// serversWSHandler handles GET /api/v0/ws.
//
// The current list is sent on connect, then every list the coordinator
// publishes. The stream ends when the client goes away.
func (a *API) serversWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("upgrading to websocket", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	updates, cancel := a.servers.Subscribe()
	defer cancel()

	// reads only detect the peer closing
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := a.writeWS(conn, a.serversResponse()); err != nil {
		return
	}

	for {
		select {
		case servers, ok := <-updates:
			if !ok {
				return
			}
			resp := ServersResponse{State: a.servers.State(), Servers: servers}
			if err := a.writeWS(conn, resp); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (a *API) writeWS(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(v); err != nil {
		a.logger.Debug("websocket client gone", slog.String("error", err.Error()))
		return err
	}
	return nil
}
