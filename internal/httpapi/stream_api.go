package httpapi

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/umarkhanovv/roadwatch/internal/logging"
	"github.com/umarkhanovv/roadwatch/internal/notify"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamAPI upgrades /ws connections and registers them with the hub.
type StreamAPI struct {
	hub    *notify.Hub
	logger *logging.Logger
}

func NewStreamAPI(hub *notify.Hub, logger *logging.Logger) *StreamAPI {
	return &StreamAPI{hub: hub, logger: logger}
}

func (api *StreamAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", api.handleStream)
}

func (api *StreamAPI) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		api.logger.Warn("WebSocket upgrade failed", logging.WithField("error", err.Error()))
		return
	}

	sub := notify.NewWSSubscriber(conn)
	api.hub.Subscribe(sub)
	defer api.hub.Unsubscribe(sub)

	api.logger.Debug("WebSocket client connected", logging.WithField("remote", r.RemoteAddr))
	sub.Serve()
	api.logger.Debug("WebSocket client disconnected", logging.WithField("remote", r.RemoteAddr))
}
